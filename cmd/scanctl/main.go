// scanctl drives a running badgescan service from the terminal.
//
//	scanctl [-server URL] start [-wait]
//	scanctl [-server URL] stop <id>
//	scanctl [-server URL] status <id>
//	scanctl [-server URL] decoders
//	scanctl [-server URL] watch
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/gorilla/websocket"

	"github.com/teslashibe/go-badgescan/internal/config"
	"github.com/teslashibe/go-badgescan/internal/httpc"
	"github.com/teslashibe/go-badgescan/pkg/scan"
	"github.com/teslashibe/go-badgescan/pkg/web"
)

func main() {
	server := flag.String("server", config.String("SCAN_SERVER", "http://localhost"+config.DefaultListenAddr), "badgescan base URL")
	flag.Usage = usage
	flag.Parse()

	if flag.NArg() == 0 {
		usage()
		os.Exit(2)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	c := &client{base: strings.TrimRight(*server, "/")}

	var err error
	switch cmd, args := flag.Arg(0), flag.Args()[1:]; cmd {
	case "start":
		var wait bool
		if wait, err = parseStart(args); err == nil {
			err = c.start(ctx, wait)
		}
	case "stop":
		err = withID(args, func(id string) error { return c.stop(ctx, id) })
	case "status":
		err = withID(args, func(id string) error { return c.status(ctx, id) })
	case "decoders":
		err = c.decoders(ctx)
	case "watch":
		err = c.watch(ctx)
	default:
		usage()
		os.Exit(2)
	}

	if err != nil && !errors.Is(err, context.Canceled) {
		fmt.Fprintln(os.Stderr, "scanctl:", err)
		os.Exit(1)
	}
}

func usage() {
	fmt.Fprintln(os.Stderr, "usage: scanctl [-server URL] start [-wait] | stop <id> | status <id> | decoders | watch")
	flag.PrintDefaults()
}

// parseStart reads the flags of the start subcommand.
func parseStart(args []string) (bool, error) {
	fs := flag.NewFlagSet("start", flag.ContinueOnError)
	wait := fs.Bool("wait", false, "wait until the scan finishes")
	if err := fs.Parse(args); err != nil {
		return false, err
	}
	if fs.NArg() > 0 {
		return false, fmt.Errorf("unexpected arguments: %s", strings.Join(fs.Args(), " "))
	}
	return *wait, nil
}

func withID(args []string, fn func(string) error) error {
	if len(args) != 1 {
		return errors.New("expected exactly one session id")
	}
	return fn(args[0])
}

type client struct {
	base string
}

func (c *client) start(ctx context.Context, wait bool) error {
	var sr web.ScanResponse
	if err := httpc.DoJSON(ctx, nil, http.MethodPost, c.base+"/api/scans", nil, &sr); err != nil {
		return err
	}
	fmt.Println(sr.ID)
	if !wait {
		return nil
	}

	ticker := time.NewTicker(250 * time.Millisecond)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			c.stop(context.Background(), sr.ID)
			return ctx.Err()
		case <-ticker.C:
		}

		if err := httpc.DoJSON(ctx, nil, http.MethodGet, c.base+"/api/scans/"+sr.ID, nil, &sr); err != nil {
			return err
		}
		switch sr.State {
		case scan.StateSuccess:
			fmt.Println(sr.Identifier)
			return nil
		case scan.StateError:
			return fmt.Errorf("%s: %s", sr.Error, sr.Reason)
		case scan.StateIdle:
			return errors.New("scan stopped")
		}
	}
}

func (c *client) stop(ctx context.Context, id string) error {
	return httpc.DoJSON(ctx, nil, http.MethodDelete, c.base+"/api/scans/"+id, nil, nil)
}

func (c *client) status(ctx context.Context, id string) error {
	var sr web.ScanResponse
	if err := httpc.DoJSON(ctx, nil, http.MethodGet, c.base+"/api/scans/"+id, nil, &sr); err != nil {
		return err
	}
	return printJSON(sr)
}

func (c *client) decoders(ctx context.Context) error {
	var infos []json.RawMessage
	if err := httpc.DoJSON(ctx, nil, http.MethodGet, c.base+"/api/decoders", nil, &infos); err != nil {
		return err
	}
	return printJSON(infos)
}

// watch tails /ws/status until interrupted.
func (c *client) watch(ctx context.Context) error {
	url := "ws" + strings.TrimPrefix(c.base, "http") + "/ws/status"
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, url, nil)
	if err != nil {
		return fmt.Errorf("dial %s: %w", url, err)
	}
	defer conn.Close()

	go func() {
		<-ctx.Done()
		conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(time.Second))
		conn.Close()
	}()

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if ctx.Err() != nil || websocket.IsCloseError(err, websocket.CloseNormalClosure) {
				return nil
			}
			return err
		}

		var msg web.Event
		if err := json.Unmarshal(data, &msg); err != nil {
			fmt.Println(string(data))
			continue
		}
		if ci := msg.CheckIn; ci != nil {
			fmt.Printf("%s  %-8.8s  checkin       %s %s%s\n",
				ci.Time.Format("15:04:05.000"), ci.Session, ci.WorkerID, ci.Action, ci.Error)
			continue
		}
		if msg.Status == nil {
			continue
		}
		ev := msg.Status
		line := fmt.Sprintf("%s  %-8.8s  %-12s", ev.Time.Format("15:04:05.000"), ev.Session, ev.State)
		switch ev.State {
		case scan.StateSuccess:
			line += "  " + ev.Identifier.String()
		case scan.StateError:
			line += fmt.Sprintf("  %s: %s", ev.Error, ev.Reason)
		}
		fmt.Println(line)
	}
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
