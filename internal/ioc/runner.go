// internal/ioc/runner.go
package ioc

import (
	"context"
	"sync"
	"time"

	"github.com/tamzrod/tc-ioc/internal/poller"
)

// Run starts one poller and one orchestrator per device and blocks until ctx is done.
// Devices are scheduled independently; a slow or failed device never delays another.
func (g *Group) Run(ctx context.Context) {
	var wg sync.WaitGroup

	for _, name := range g.order {
		d := g.devices[name]
		out := make(chan poller.PollResult)

		wg.Add(2)
		go func() {
			defer wg.Done()
			d.poller.Run(ctx, out)
		}()
		go func() {
			defer wg.Done()
			d.orchestrate(ctx, out)
		}()
	}

	g.log.Info().
		Int("devices", len(g.order)).
		Dur("interval", g.interval).
		Msg("scanning")

	wg.Wait()
}

// orchestrate owns the apply side of one device: scan results and the 1 Hz status ticker.
func (d *device) orchestrate(ctx context.Context, in <-chan poller.PollResult) {
	secTicker := time.NewTicker(time.Second)
	defer secTicker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case res := <-in:
			d.apply(res)
		case <-secTicker.C:
			d.tick()
		}
	}
}
