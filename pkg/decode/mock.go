package decode

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/teslashibe/go-badgescan/pkg/camera"
)

// Mock implements Capability for testing.
type Mock struct {
	// MockName is returned by Name (default "mock").
	MockName string

	// InitFunc is called when Init is invoked.
	InitFunc func(ctx context.Context) error

	// DetectFunc is called when Detect is invoked; call is 1-based.
	DetectFunc func(call int, frame camera.Frame) (RawPayload, bool, error)

	inits  atomic.Int64
	calls  atomic.Int64
	closes atomic.Int64

	mu   sync.Mutex
	seqs []uint64
}

// NewMock creates a mock that never detects anything.
func NewMock(name string) *Mock {
	return &Mock{MockName: name}
}

// DetectOn returns a mock that yields text on the nth Detect call only.
func DetectOn(name string, n int, text string) *Mock {
	m := NewMock(name)
	m.DetectFunc = func(call int, _ camera.Frame) (RawPayload, bool, error) {
		if call == n {
			return RawPayload{Text: text}, true, nil
		}
		return RawPayload{}, false, nil
	}
	return m
}

// Failing returns a mock whose Init fails.
func Failing(name string, err error) *Mock {
	m := NewMock(name)
	m.InitFunc = func(context.Context) error { return err }
	return m
}

// Name returns the mock name.
func (m *Mock) Name() string {
	if m.MockName == "" {
		return "mock"
	}
	return m.MockName
}

// Init calls InitFunc.
func (m *Mock) Init(ctx context.Context) error {
	m.inits.Add(1)
	if m.InitFunc != nil {
		return m.InitFunc(ctx)
	}
	return nil
}

// Detect calls DetectFunc and records the frame sequence number.
func (m *Mock) Detect(frame camera.Frame) (RawPayload, bool, error) {
	call := int(m.calls.Add(1))

	m.mu.Lock()
	m.seqs = append(m.seqs, frame.Seq)
	m.mu.Unlock()

	if m.DetectFunc != nil {
		return m.DetectFunc(call, frame)
	}
	return RawPayload{}, false, nil
}

// Close records the call.
func (m *Mock) Close() error {
	m.closes.Add(1)
	return nil
}

// Inits returns the number of Init calls.
func (m *Mock) Inits() int { return int(m.inits.Load()) }

// Calls returns the number of Detect calls.
func (m *Mock) Calls() int { return int(m.calls.Load()) }

// Closes returns the number of Close calls.
func (m *Mock) Closes() int { return int(m.closes.Load()) }

// Seqs returns the frame sequence numbers seen, in call order.
func (m *Mock) Seqs() []uint64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]uint64(nil), m.seqs...)
}
