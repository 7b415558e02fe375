package identifier

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExtract(t *testing.T) {
	tests := []struct {
		name    string
		text    string
		want    string
		wantErr error
	}{
		{name: "marker", text: "worker:W007", want: "W007"},
		{name: "marker with padding", text: "  worker:W003\n", want: "W003"},
		{name: "marker inside url", text: "https://hr.example/badge?worker:A120&v=2", want: "A120"},
		{name: "marker wins over earlier run", text: "B999 worker:C001", want: "C001"},
		{name: "marker value not uppercased", text: "worker:w007", wantErr: ErrInvalidShape},
		{name: "marker value too long", text: "worker:W0071", wantErr: ErrInvalidShape},
		{name: "whole text exact", text: "W123", want: "W123"},
		{name: "whole text lowercase", text: "w123", want: "W123"},
		{name: "loose run in sentence", text: "badge id: k042 issued", want: "K042"},
		{name: "two digits rejected", text: "w12", wantErr: ErrInvalidShape},
		{name: "single leading letter consumed", text: "scan ABC12345 now", wantErr: ErrInvalidShape},
		{name: "no letter digit run", text: "hello world", wantErr: ErrUnrecognizedFormat},
		{name: "digits only", text: "0042", wantErr: ErrUnrecognizedFormat},
		{name: "empty", text: "   ", wantErr: ErrUnrecognizedFormat},
		{name: "empty marker falls through", text: "worker: Z900", want: "Z900"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			id, err := Extract(tc.text)
			if tc.wantErr != nil {
				assert.ErrorIs(t, err, tc.wantErr)
				assert.True(t, id.IsZero())
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.want, id.String())
		})
	}
}

func TestCandidateOf_LooseMatchBoundary(t *testing.T) {
	c, ok := candidateOf("scan ABC12345 now")
	require.True(t, ok)
	assert.Equal(t, "C12345", c)
}

func TestParse(t *testing.T) {
	_, err := Parse("W007")
	assert.NoError(t, err)

	for _, bad := range []string{"", "w007", "W07", "W0007", "WW07", "7007", " W007"} {
		_, err := Parse(bad)
		assert.ErrorIs(t, err, ErrInvalidShape, "input %q", bad)
	}
}

func TestMustParse_Panics(t *testing.T) {
	assert.Panics(t, func() { MustParse("nope") })
	assert.Equal(t, "A001", MustParse("A001").String())
}

func TestID_JSON(t *testing.T) {
	data, err := json.Marshal(struct {
		ID   ID `json:"id"`
		Zero ID `json:"zero"`
	}{ID: MustParse("W003")})
	require.NoError(t, err)
	assert.JSONEq(t, `{"id":"W003","zero":null}`, string(data))

	var id ID
	require.NoError(t, json.Unmarshal([]byte(`"X999"`), &id))
	assert.Equal(t, "X999", id.String())

	assert.ErrorIs(t, json.Unmarshal([]byte(`"x999"`), &id), ErrInvalidShape)
}
