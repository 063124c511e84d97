package transport

import (
	"context"
	"fmt"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/go-zeromq/zmq4"
	"github.com/rs/zerolog/log"
)

// Subscriber is the SUB side of a control endpoint, subscribed to every
// frame. Frames published before it connected are never delivered.
type Subscriber struct {
	endpoint Endpoint
	sock     zmq4.Socket
	cancel   context.CancelFunc

	closeOnce sync.Once
	closeErr  error
}

// Dial connects to ep, retrying with cfg.Backoff until ctx is done.
func Dial(ctx context.Context, ep Endpoint, cfg Config) (*Subscriber, error) {
	cfg = cfg.withDefaults()
	rng := rand.New(rand.NewPCG(uint64(time.Now().UnixNano()), 0))

	for attempt := 1; ; attempt++ {
		sockCtx, cancel := context.WithCancel(ctx)
		sock := zmq4.NewSub(sockCtx, zmq4.WithTimeout(cfg.SendTimeout))
		err := sock.Dial(ep.String())
		if err == nil {
			if err = sock.SetOption(zmq4.OptionSubscribe, ""); err == nil {
				log.Info().Str("endpoint", ep.String()).Int("attempt", attempt).Msg("subscriber connected")
				return &Subscriber{endpoint: ep, sock: sock, cancel: cancel}, nil
			}
		}
		_ = sock.Close()
		cancel()

		delay := cfg.Backoff.Delay(attempt, rng)
		log.Debug().Err(err).Str("endpoint", ep.String()).Int("attempt", attempt).Dur("retry_in", delay).Msg("dial failed")
		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil, fmt.Errorf("transport: dial %s: %w (last error: %v)", ep, ctx.Err(), err)
		case <-timer.C:
		}
	}
}

func (s *Subscriber) Endpoint() Endpoint { return s.endpoint }

// Recv blocks for the next frame. It returns an error once the dial context
// is cancelled or the subscriber is closed.
func (s *Subscriber) Recv() ([]byte, error) {
	msg, err := s.sock.Recv()
	if err != nil {
		return nil, err
	}
	if len(msg.Frames) == 0 {
		return nil, ErrEmptyMessage
	}
	return msg.Frames[0], nil
}

func (s *Subscriber) Close() error {
	s.closeOnce.Do(func() {
		s.closeErr = s.sock.Close()
		s.cancel()
	})
	return s.closeErr
}
