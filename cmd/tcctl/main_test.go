// cmd/tcctl/main_test.go
package main

import (
	"bytes"
	"context"
	"net"
	"strings"
	"testing"

	"github.com/rs/zerolog"

	"github.com/tamzrod/tc-ioc/internal/pv"
	"github.com/tamzrod/tc-ioc/internal/server"
)

func startServer(t *testing.T) string {
	t.Helper()

	db := pv.NewDatabase()
	_ = db.Add(pv.New(pv.Spec{Name: "temp:t1:temperature", ReadOnly: true, Units: "C", Initial: 23.5}))
	_ = db.Add(pv.New(pv.Spec{Name: "temp:t1:setpoint", Units: "C"}))

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
	return ln.Addr().String()
}

func TestRun_Commands(t *testing.T) {
	addr := startServer(t)
	ctx := context.Background()

	tests := []struct {
		args []string
		want string
	}{
		{args: []string{"list"}, want: "temp:t1:temperature\ntemp:t1:setpoint\n"},
		{args: []string{"get", "temp:t1:temperature"}, want: "\t23.5\n"},
		{args: []string{"put", "temp:t1:setpoint", "50"}, want: "\t50\n"},
		{args: []string{"info", "temp:t1:temperature"}, want: "temp:t1:temperature\tfloat\tro\tC"},
	}
	for _, tt := range tests {
		var out bytes.Buffer
		args := append([]string{"-addr", addr}, tt.args...)
		if err := run(ctx, args, &out); err != nil {
			t.Fatalf("%v: err=%v", tt.args, err)
		}
		if !strings.Contains(out.String(), tt.want) {
			t.Fatalf("%v: output %q does not contain %q", tt.args, out.String(), tt.want)
		}
	}
}

func TestRun_Errors(t *testing.T) {
	addr := startServer(t)
	ctx := context.Background()

	for _, args := range [][]string{
		{},
		{"frobnicate"},
		{"get"},
		{"put", "temp:t1:setpoint"},
		{"put", "temp:t1:setpoint", "abc"},
		{"put", "temp:t1:temperature", "1"},
		{"get", "temp:t9:temperature"},
	} {
		var out bytes.Buffer
		if err := run(ctx, append([]string{"-addr", addr}, args...), &out); err == nil {
			t.Fatalf("%v: expected error", args)
		}
	}
}
