package provisioning

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"
)

// Countdown waits d before action, printing the remaining seconds. SIGINT,
// SIGTERM or cancellation of ctx during the wait returns ErrAborted.
func Countdown(ctx context.Context, log Logger, d time.Duration, action string) error {
	if d <= 0 {
		return ctx.Err()
	}

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	log.Printf("%s in %s. Press Ctrl-C to abort.", action, d.Round(time.Second))

	deadline := time.NewTimer(d)
	defer deadline.Stop()
	tick := time.NewTicker(time.Second)
	defer tick.Stop()

	remaining := d
	for {
		select {
		case <-ctx.Done():
			return fmt.Errorf("%w: %s cancelled", ErrAborted, action)
		case <-deadline.C:
			return nil
		case <-tick.C:
			remaining -= time.Second
			if remaining > 0 {
				log.Printf("%s in %s...", action, remaining.Round(time.Second))
			}
		}
	}
}
