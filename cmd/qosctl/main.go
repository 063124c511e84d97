package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/danmuck/qosctl/internal/config"
	"github.com/danmuck/qosctl/internal/controller"
	"github.com/danmuck/qosctl/internal/logging"
	"github.com/danmuck/qosctl/internal/observability"
	"github.com/danmuck/qosctl/internal/protocol"
	"github.com/danmuck/qosctl/internal/qos"
	"github.com/danmuck/qosctl/internal/shell"
	"github.com/danmuck/qosctl/internal/transport"
	"github.com/rs/zerolog/log"
)

var errUsage = errors.New("usage")

func main() {
	logging.ConfigureRuntime("qosctl")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, os.Args[1:], os.Stdin, os.Stdout); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return
		}
		fmt.Fprintf(os.Stderr, "qosctl: %v\n", err)
		if errors.Is(err, errUsage) {
			os.Exit(2)
		}
		os.Exit(1)
	}
}

func run(ctx context.Context, args []string, in io.Reader, out io.Writer) error {
	opts, err := parseFlags(args)
	if err != nil {
		return err
	}
	cfg, err := resolveConfig(opts)
	if err != nil {
		return err
	}
	ep, err := transport.ParseEndpoint(cfg.Endpoint)
	if err != nil {
		return err
	}
	codec, err := protocol.Lookup(cfg.Codec)
	if err != nil {
		return err
	}

	var oneShot *oneShotRequest
	if opts.hasTarget() {
		req, err := opts.oneShot()
		if err != nil {
			return err
		}
		oneShot = &req
	}

	metrics := observability.NewMetrics()
	if cfg.MetricsAddr != "" {
		go func() {
			if err := observability.Serve(ctx, cfg.MetricsAddr, metrics); err != nil {
				log.Error().Err(err).Str("addr", cfg.MetricsAddr).Msg("metrics listener failed")
			}
		}()
	}

	tc := cfg.TransportConfig()
	tc.Observer = metrics
	pub, err := transport.Bind(ctx, ep, tc)
	if err != nil {
		return err
	}
	defer func() {
		if err := pub.Close(); err != nil {
			log.Warn().Err(err).Msg("publisher close")
		}
	}()

	if err := warmup(ctx, cfg.Warmup); err != nil {
		return err
	}

	ctl := controller.New(pub, controller.Options{
		ProducerID:   cfg.ProducerID,
		Codec:        codec,
		WarnAdvisory: cfg.WarnAdvisory,
		Observer:     metrics,
	})

	if oneShot != nil {
		for _, w := range oneShot.warnings {
			log.Warn().Msg(w)
		}
		msg, err := ctl.Send([]qos.Update{oneShot.update})
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "QoS update sent (seq %d): %s\n", msg.SequenceNumber, oneShot.update)
		return nil
	}
	return shell.NewSession(ctl, in, out).Run(ctx)
}

// warmup waits d after bind so subscribers that are already dialing receive
// the first batch.
func warmup(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

func resolveConfig(opts cliOptions) (config.Config, error) {
	cfg := config.Default()
	if opts.configPath != "" {
		loaded, err := config.Load(opts.configPath)
		if err != nil {
			return config.Config{}, err
		}
		cfg = loaded
	}
	if opts.set["ipc"] {
		cfg.Endpoint = opts.endpoint
	}
	if opts.set["codec"] {
		cfg.Codec = opts.codec
	}
	if opts.set["producer-id"] {
		cfg.ProducerID = opts.producerID
	}
	if opts.set["metrics-addr"] {
		cfg.MetricsAddr = opts.metricsAddr
	}
	if err := config.Validate(cfg); err != nil {
		return config.Config{}, err
	}
	return cfg, nil
}
