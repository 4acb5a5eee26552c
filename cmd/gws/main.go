// Command gws runs the groundwater anomaly pipeline, one stage at a time or
// end to end.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := Root.ExecuteContext(ctx)
	stop()
	if err != nil {
		os.Exit(1)
	}
}
