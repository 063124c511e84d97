// Package controller turns update records into published control frames.
package controller

import (
	"errors"
	"fmt"

	"github.com/danmuck/qosctl/internal/protocol"
	"github.com/danmuck/qosctl/internal/qos"
	"github.com/danmuck/qosctl/internal/transport"
	"github.com/rs/zerolog/log"
)

// Sink accepts encoded frames. *transport.Publisher satisfies it.
type Sink interface {
	Publish(frame []byte) error
}

// BatchObserver is notified once per encoded batch.
type BatchObserver interface {
	ObserveBatch(seq uint64, records int)
}

type Options struct {
	ProducerID string
	// Codec defaults to protocol.Default.
	Codec protocol.Codec
	// WarnAdvisory logs records outside the advisory priority ranges.
	// They are sent unchanged either way.
	WarnAdvisory bool
	Observer     BatchObserver
}

// Controller is one producer: a sequencer, a codec and a sink. It is not
// safe for concurrent use.
type Controller struct {
	seq          *qos.Sequencer
	codec        protocol.Codec
	sink         Sink
	warnAdvisory bool
	observer     BatchObserver
}

func New(sink Sink, opts Options) *Controller {
	codec := opts.Codec
	if codec == nil {
		codec = protocol.Default()
	}
	return &Controller{
		seq:          qos.NewSequencer(opts.ProducerID),
		codec:        codec,
		sink:         sink,
		warnAdvisory: opts.WarnAdvisory,
		observer:     opts.Observer,
	}
}

// NextSequence is the number the next Send will stamp.
func (c *Controller) NextSequence() uint64 { return c.seq.Peek() }

func (c *Controller) Codec() protocol.Codec { return c.codec }

// Send stamps records as one batch, encodes it and hands it to the sink.
// The sequence number is consumed even when encoding or publishing fails.
// A frame dropped on a full send queue is logged, not returned.
func (c *Controller) Send(records []qos.Update) (qos.ControlMessage, error) {
	msg := c.seq.BuildBatch(records)
	if c.warnAdvisory {
		for i, u := range msg.Updates {
			if err := qos.CheckAdvisory(u); err != nil {
				log.Warn().Err(err).Uint64("seq", msg.SequenceNumber).Int("record", i).Msg("record outside advisory range")
			}
		}
	}

	frame, err := c.codec.Encode(&msg)
	if err != nil {
		return msg, fmt.Errorf("encode batch %d: %w", msg.SequenceNumber, err)
	}
	if c.observer != nil {
		c.observer.ObserveBatch(msg.SequenceNumber, msg.Len())
	}

	if err := c.sink.Publish(frame); err != nil {
		if errors.Is(err, transport.ErrQueueFull) {
			log.Warn().Uint64("seq", msg.SequenceNumber).Int("bytes", len(frame)).Msg("send queue full, batch dropped")
			return msg, nil
		}
		return msg, fmt.Errorf("publish batch %d: %w", msg.SequenceNumber, err)
	}
	log.Debug().
		Uint64("seq", msg.SequenceNumber).
		Int("records", msg.Len()).
		Int("bytes", len(frame)).
		Str("codec", c.codec.Name()).
		Msg("batch published")
	return msg, nil
}

func (c *Controller) SetPriority(terminal, channel, qosPriority uint32, arp *uint32) (qos.ControlMessage, error) {
	return c.Send([]qos.Update{qos.SetPriority(terminal, channel, qosPriority, arp)})
}

func (c *Controller) SetPacketDelayBudget(terminal, channel, ms uint32) (qos.ControlMessage, error) {
	return c.Send([]qos.Update{qos.SetPacketDelayBudget(terminal, channel, ms)})
}

func (c *Controller) SetGBR(terminal, channel uint32, downlinkBPS uint64, uplinkBPS *uint64) (qos.ControlMessage, error) {
	return c.Send([]qos.Update{qos.SetGBR(terminal, channel, downlinkBPS, uplinkBPS)})
}

func (c *Controller) Clear(terminal, channel uint32) (qos.ControlMessage, error) {
	return c.Send([]qos.Update{qos.Clear(terminal, channel)})
}

// SendExample publishes qos.ExampleBatch as a single batch.
func (c *Controller) SendExample() (qos.ControlMessage, error) {
	return c.Send(qos.ExampleBatch())
}
