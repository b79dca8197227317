// internal/pvclient/client_test.go
package pvclient

import (
	"context"
	"errors"
	"net"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/tamzrod/tc-ioc/internal/pv"
	"github.com/tamzrod/tc-ioc/internal/server"
)

func startServer(t *testing.T) (*pv.Database, *Client) {
	t.Helper()

	db := pv.NewDatabase()
	_ = db.Add(pv.New(pv.Spec{Name: "temp:t1:temperature", ReadOnly: true, Units: "C", Initial: 21.5}))
	_ = db.Add(pv.New(pv.Spec{Name: "temp:t1:run_mode", Kind: pv.KindInt}))

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		_ = server.New(db, zerolog.Nop()).Serve(ctx, ln)
		close(done)
	}()
	t.Cleanup(func() {
		cancel()
		<-done
	})

	c, err := New(Config{Endpoint: ln.Addr().String(), Timeout: 2 * time.Second})
	if err != nil {
		t.Fatalf("New err=%v", err)
	}
	return db, c
}

func TestNew_RequiresEndpoint(t *testing.T) {
	if _, err := New(Config{}); err == nil {
		t.Fatalf("expected error")
	}
}

func TestGetPutList(t *testing.T) {
	_, c := startServer(t)
	ctx := context.Background()

	v, err := c.Get(ctx, "temp:t1:temperature")
	if err != nil || v.Value != 21.5 || v.TS.IsZero() {
		t.Fatalf("Get: %+v err=%v", v, err)
	}

	v, err = c.Put(ctx, "temp:t1:run_mode", 1.9)
	if err != nil || v.Value != 1 {
		t.Fatalf("Put: %+v err=%v", v, err)
	}

	names, err := c.List(ctx)
	if err != nil || len(names) != 2 {
		t.Fatalf("List: %v err=%v", names, err)
	}

	info, err := c.Info(ctx, "temp:t1:run_mode")
	if err != nil || info.Kind != "int" || info.ReadOnly {
		t.Fatalf("Info: %+v err=%v", info, err)
	}
}

func TestRemoteError(t *testing.T) {
	_, c := startServer(t)

	_, err := c.Put(context.Background(), "temp:t1:temperature", 5)
	var re *RemoteError
	if !errors.As(err, &re) || re.Op != "put" || re.PV != "temp:t1:temperature" {
		t.Fatalf("expected RemoteError, got %v", err)
	}
}

func TestDialRefused(t *testing.T) {
	ln, _ := net.Listen("tcp", "127.0.0.1:0")
	addr := ln.Addr().String()
	_ = ln.Close()

	c, _ := New(Config{Endpoint: addr, Timeout: 500 * time.Millisecond})
	if _, err := c.Get(context.Background(), "x"); err == nil {
		t.Fatalf("expected dial error")
	}
}

func TestMonitor(t *testing.T) {
	db, c := startServer(t)
	p, _ := db.Get("temp:t1:temperature")

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()

	var got []float64
	stop := errors.New("stop")
	err := c.Monitor(ctx, "temp:t1:temperature", func(v Value) error {
		got = append(got, v.Value)
		if len(got) == 1 {
			go p.Set(22.0)
			return nil
		}
		return stop
	})
	if !errors.Is(err, stop) {
		t.Fatalf("Monitor err=%v", err)
	}
	if len(got) != 2 || got[0] != 21.5 || got[1] != 22.0 {
		t.Fatalf("updates: %v", got)
	}
}

func TestMonitor_Cancel(t *testing.T) {
	_, c := startServer(t)

	ctx, cancel := context.WithCancel(context.Background())
	err := c.Monitor(ctx, "temp:t1:temperature", func(Value) error {
		cancel()
		return nil
	})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("Monitor err=%v", err)
	}
}
