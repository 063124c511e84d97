package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/danmuck/qosctl/internal/controller"
	"github.com/danmuck/qosctl/internal/loadgen"
	"github.com/danmuck/qosctl/internal/logging"
	"github.com/danmuck/qosctl/internal/transport"
	"github.com/rs/zerolog/log"
)

func main() {
	logging.ConfigureRuntime("qosload")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "qosload: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context) error {
	pub, err := transport.Bind(ctx, transport.MustParseEndpoint(transport.DefaultEndpoint), transport.DefaultConfig())
	if err != nil {
		return err
	}
	defer func() {
		if err := pub.Close(); err != nil {
			log.Warn().Err(err).Msg("publisher close")
		}
	}()

	fmt.Printf("QoS load generator started, one batch every %v\n", loadgen.Interval)
	fmt.Printf("Target terminals %d and %d, channel %d\n", loadgen.Terminals[0], loadgen.Terminals[1], loadgen.Channel)
	fmt.Println("Press Ctrl+C to stop")
	fmt.Println()

	ctl := controller.New(pub, controller.Options{})
	sent, err := loadgen.Run(ctx, ctl, loadgen.NewGenerator(nil), loadgen.Options{
		Interval: loadgen.Interval,
		Warmup:   loadgen.Warmup,
		Out:      os.Stdout,
	})
	fmt.Printf("\nStopping, %d batches sent\n", sent)
	return err
}
