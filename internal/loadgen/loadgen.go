// Package loadgen drives a producer with random in-range overrides for two
// fixed test terminals.
package loadgen

import (
	"context"
	"fmt"
	"io"
	"math/rand/v2"
	"time"

	"github.com/danmuck/qosctl/internal/qos"
	"github.com/rs/zerolog/log"
)

const (
	Channel  uint32 = 4
	Interval        = 200 * time.Millisecond
	// Warmup gives subscribers time to connect before the first batch.
	Warmup = 500 * time.Millisecond
)

// Terminals are the RNTIs targeted by every batch, in record order.
var Terminals = [2]uint32{17922, 17923}

// Range is an inclusive value range.
type Range struct {
	Min uint32
	Max uint32
}

func (r Range) Contains(v uint32) bool { return v >= r.Min && v <= r.Max }

var (
	QosPriorityRange = Range{qos.MinQosPriority, qos.MaxQosPriority}
	ArpPriorityRange = Range{qos.MinArpPriority, qos.MaxArpPriority}
	PacketDelayRange = Range{10, 300}
	// GBR ranges are in whole Mbps.
	DownlinkMbpsRange = Range{1, 50}
	UplinkMbpsRange   = Range{1, 20}
)

// Generator draws batches from rng. It is not safe for concurrent use.
type Generator struct {
	rng *rand.Rand
}

// NewGenerator uses rng, or a time-seeded source when rng is nil.
func NewGenerator(rng *rand.Rand) *Generator {
	if rng == nil {
		seed := uint64(time.Now().UnixNano())
		rng = rand.New(rand.NewPCG(seed, seed>>1))
	}
	return &Generator{rng: rng}
}

// Batch returns one record per terminal with every optional field set.
func (g *Generator) Batch() []qos.Update {
	out := make([]qos.Update, 0, len(Terminals))
	for _, terminal := range Terminals {
		out = append(out, qos.NewUpdate(terminal, Channel,
			qos.WithQosPriority(g.draw(QosPriorityRange)),
			qos.WithArpPriority(g.draw(ArpPriorityRange)),
			qos.WithPacketDelayBudget(g.draw(PacketDelayRange)),
			qos.WithGBRDownlink(uint64(g.draw(DownlinkMbpsRange))*qos.BPSPerMbps),
			qos.WithGBRUplink(uint64(g.draw(UplinkMbpsRange))*qos.BPSPerMbps),
		))
	}
	return out
}

func (g *Generator) draw(r Range) uint32 {
	return r.Min + g.rng.Uint32N(r.Max-r.Min+1)
}

// Sender publishes one batch. *controller.Controller satisfies it.
type Sender interface {
	Send(records []qos.Update) (qos.ControlMessage, error)
}

type Options struct {
	Interval time.Duration
	Warmup   time.Duration
	// Out receives a human-readable line per record. Nil discards.
	Out io.Writer
}

// Run sends one generated batch per interval until ctx is done and returns
// the number of batches handed to sender. Send failures are logged and the
// loop continues.
func Run(ctx context.Context, sender Sender, g *Generator, opts Options) (int, error) {
	if opts.Interval <= 0 {
		opts.Interval = Interval
	}
	out := opts.Out
	if out == nil {
		out = io.Discard
	}

	if opts.Warmup > 0 {
		timer := time.NewTimer(opts.Warmup)
		select {
		case <-ctx.Done():
			timer.Stop()
			return 0, nil
		case <-timer.C:
		}
	}

	ticker := time.NewTicker(opts.Interval)
	defer ticker.Stop()
	sent := 0
	for {
		if ctx.Err() != nil {
			return sent, nil
		}
		msg, err := sender.Send(g.Batch())
		if err != nil {
			log.Warn().Err(err).Uint64("seq", msg.SequenceNumber).Msg("load batch failed")
		} else {
			sent++
			report(out, msg)
		}
		select {
		case <-ctx.Done():
			return sent, nil
		case <-ticker.C:
		}
	}
}

func report(w io.Writer, msg qos.ControlMessage) {
	fmt.Fprintf(w, "[%04d] sent QoS updates:\n", msg.SequenceNumber)
	for _, u := range msg.Updates {
		fmt.Fprintf(w, "  %s\n", u)
	}
}
