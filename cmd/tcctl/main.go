// cmd/tcctl/main.go
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/tamzrod/tc-ioc/internal/pvclient"
)

const usage = `usage: tcctl [-addr host:port] [-timeout 5s] <command>

commands:
  list                 list every PV
  get <pv>...          read PVs
  info <pv>            describe a PV
  put <pv> <value>     write a PV
  monitor <pv>         stream updates until interrupted
`

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, os.Args[1:], os.Stdout); err != nil {
		fmt.Fprintln(os.Stderr, "tcctl:", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, args []string, out io.Writer) error {
	fs := flag.NewFlagSet("tcctl", flag.ContinueOnError)
	fs.Usage = func() { fmt.Fprint(fs.Output(), usage) }

	addr := fs.String("addr", "127.0.0.1:5064", "PV server address")
	timeout := fs.Duration("timeout", 5*time.Second, "per-request timeout")

	if err := fs.Parse(args); err != nil {
		return err
	}
	rest := fs.Args()
	if len(rest) == 0 {
		fs.Usage()
		return errors.New("command required")
	}

	c, err := pvclient.New(pvclient.Config{Endpoint: *addr, Timeout: *timeout})
	if err != nil {
		return err
	}

	cmd, rest := rest[0], rest[1:]
	switch cmd {
	case "list":
		names, err := c.List(ctx)
		if err != nil {
			return err
		}
		for _, n := range names {
			fmt.Fprintln(out, n)
		}
		return nil

	case "get":
		if len(rest) == 0 {
			return errors.New("get: pv name required")
		}
		for _, name := range rest {
			v, err := c.Get(ctx, name)
			if err != nil {
				return err
			}
			printValue(out, v)
		}
		return nil

	case "info":
		if len(rest) != 1 {
			return errors.New("info: exactly one pv name required")
		}
		info, err := c.Info(ctx, rest[0])
		if err != nil {
			return err
		}
		mode := "rw"
		if info.ReadOnly {
			mode = "ro"
		}
		fmt.Fprintf(out, "%s\t%s\t%s\t%s\t%s\n", rest[0], info.Kind, mode, info.Units, info.Doc)
		return nil

	case "put":
		if len(rest) != 2 {
			return errors.New("put: pv name and value required")
		}
		f, err := strconv.ParseFloat(rest[1], 64)
		if err != nil {
			return fmt.Errorf("put: bad value %q: %w", rest[1], err)
		}
		v, err := c.Put(ctx, rest[0], f)
		if err != nil {
			return err
		}
		printValue(out, v)
		return nil

	case "monitor":
		if len(rest) != 1 {
			return errors.New("monitor: exactly one pv name required")
		}
		err := c.Monitor(ctx, rest[0], func(v pvclient.Value) error {
			printValue(out, v)
			return nil
		})
		if errors.Is(err, context.Canceled) {
			return nil
		}
		return err

	default:
		fs.Usage()
		return fmt.Errorf("unknown command %q", cmd)
	}
}

func printValue(out io.Writer, v pvclient.Value) {
	fmt.Fprintf(out, "%s\t%s\t%g\n", v.PV, v.TS.Format(time.RFC3339Nano), v.Value)
}
