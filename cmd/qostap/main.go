package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/danmuck/qosctl/internal/logging"
	"github.com/danmuck/qosctl/internal/protocol"
	"github.com/danmuck/qosctl/internal/transport"
	"github.com/rs/zerolog/log"
)

func main() {
	endpoint := flag.String("ipc", transport.DefaultEndpoint, "control endpoint to subscribe to")
	codecName := flag.String("codec", protocol.CodecProtobuf, "wire codec: protobuf|tlv")
	count := flag.Int("count", 0, "exit after this many frames (0 = until interrupted)")
	flag.Parse()

	logging.ConfigureRuntime("qostap")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, *endpoint, *codecName, *count, os.Stdout); err != nil {
		fmt.Fprintf(os.Stderr, "qostap: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, endpoint, codecName string, count int, out io.Writer) error {
	ep, err := transport.ParseEndpoint(endpoint)
	if err != nil {
		return err
	}
	codec, err := protocol.Lookup(codecName)
	if err != nil {
		return err
	}
	sub, err := transport.Dial(ctx, ep, transport.DefaultConfig())
	if err != nil {
		return err
	}
	defer sub.Close()

	tracker := newGapTracker()
	for n := 0; count <= 0 || n < count; n++ {
		frame, err := sub.Recv()
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("recv: %w", err)
		}
		msg, err := codec.Decode(frame)
		if err != nil {
			log.Warn().Err(err).Int("bytes", len(frame)).Msg("undecodable frame")
			continue
		}
		fmt.Fprintf(out, "[%04d] producer=%q records=%d\n", msg.SequenceNumber, msg.ProducerID, msg.Len())
		for _, u := range msg.Updates {
			fmt.Fprintf(out, "  %s\n", u)
		}
		if note := tracker.observe(msg.ProducerID, msg.SequenceNumber); note != "" {
			fmt.Fprintf(out, "  ! %s\n", note)
		}
	}
	return nil
}

// gapTracker follows the last sequence number seen per producer id.
type gapTracker struct {
	last map[string]uint64
}

func newGapTracker() *gapTracker {
	return &gapTracker{last: map[string]uint64{}}
}

// observe records seq and describes any discontinuity with the previous
// frame from the same producer.
func (g *gapTracker) observe(producer string, seq uint64) string {
	prev, seen := g.last[producer]
	g.last[producer] = seq
	switch {
	case !seen, seq == prev+1:
		return ""
	case seq <= prev:
		return fmt.Sprintf("sequence went back from %d to %d (producer restarted?)", prev, seq)
	default:
		return fmt.Sprintf("missed %d batch(es) between %d and %d", seq-prev-1, prev, seq)
	}
}
