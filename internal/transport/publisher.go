package transport

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/go-zeromq/zmq4"
	"github.com/rs/zerolog/log"
	"golang.org/x/sys/unix"
)

// frameSocket is the part of a zmq4 PUB socket the sender goroutine needs.
type frameSocket interface {
	Send(msg zmq4.Msg) error
	Close() error
}

// socketFlush is how long Close keeps the zmq4 socket open after the local
// queue is empty. zmq4 copies frames onto connections from its own goroutine
// and has no flush call, so the window is a bounded wait.
const socketFlush = 100 * time.Millisecond

// Stats counts frame outcomes since Bind. Discarded frames were still queued
// when Close gave up on flushing.
type Stats struct {
	Sent      uint64
	Dropped   uint64
	Failed    uint64
	Discarded uint64
}

// Publisher is a fire-and-forget PUB endpoint. Publish never blocks: frames
// go through a bounded queue drained by one sender goroutine, and a full
// queue drops the frame.
type Publisher struct {
	endpoint Endpoint
	cfg      Config
	sock     frameSocket
	lock     *endpointLock

	ctx    context.Context
	cancel context.CancelFunc
	done   chan struct{}

	mu     sync.RWMutex
	closed bool
	queue  chan []byte

	closeOnce sync.Once
	closeErr  error

	sent      atomic.Uint64
	dropped   atomic.Uint64
	failed    atomic.Uint64
	discarded atomic.Uint64
}

// Bind takes exclusive ownership of ep and starts publishing. For ipc
// endpoints a second Bind on the same path fails with ErrEndpointBusy while
// the first publisher is alive.
func Bind(ctx context.Context, ep Endpoint, cfg Config) (*Publisher, error) {
	cfg = cfg.withDefaults()

	var lock *endpointLock
	if ep.IsIPC() {
		l, err := acquireLock(ep.lockPath())
		if err != nil {
			return nil, err
		}
		if err := removeStale(ep.Address); err != nil {
			_ = l.release()
			return nil, err
		}
		lock = l
	}

	// The socket outlives ctx cancellation so Close can still flush.
	sockCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	sock := zmq4.NewPub(sockCtx, zmq4.WithTimeout(cfg.SendTimeout))
	if err := sock.Listen(ep.String()); err != nil {
		cancel()
		_ = sock.Close()
		_ = lock.release()
		if errors.Is(err, unix.EADDRINUSE) {
			return nil, fmt.Errorf("%w: %s", ErrEndpointBusy, ep)
		}
		return nil, fmt.Errorf("%w: %s: %v", ErrBindFailed, ep, err)
	}

	p := newPublisher(sockCtx, cancel, ep, cfg, sock, lock)
	log.Info().
		Str("endpoint", ep.String()).
		Int("send_queue", cfg.QueueSize).
		Dur("linger", cfg.Linger).
		Msg("publisher bound")
	return p, nil
}

func newPublisher(ctx context.Context, cancel context.CancelFunc, ep Endpoint, cfg Config, sock frameSocket, lock *endpointLock) *Publisher {
	p := &Publisher{
		endpoint: ep,
		cfg:      cfg,
		sock:     sock,
		lock:     lock,
		ctx:      ctx,
		cancel:   cancel,
		done:     make(chan struct{}),
		queue:    make(chan []byte, cfg.QueueSize),
	}
	go p.run()
	return p
}

func (p *Publisher) Endpoint() Endpoint { return p.endpoint }

// Publish enqueues one frame. ErrQueueFull means the frame was dropped; the
// producer should log it and carry on.
func (p *Publisher) Publish(frame []byte) error {
	if len(frame) == 0 {
		return ErrEmptyMessage
	}
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.closed {
		return ErrClosed
	}
	select {
	case p.queue <- frame:
		return nil
	default:
		p.dropped.Add(1)
		p.observe(ResultDropped, len(frame))
		return ErrQueueFull
	}
}

func (p *Publisher) Stats() Stats {
	return Stats{
		Sent:      p.sent.Load(),
		Dropped:   p.dropped.Load(),
		Failed:    p.failed.Load(),
		Discarded: p.discarded.Load(),
	}
}

func (p *Publisher) run() {
	defer close(p.done)
	for {
		select {
		case <-p.ctx.Done():
			p.discard()
			return
		case frame, ok := <-p.queue:
			if !ok {
				return
			}
			if p.ctx.Err() != nil {
				p.discarded.Add(1)
				p.discard()
				return
			}
			p.send(frame)
		}
	}
}

// discard empties the queue without sending. Close has closed the queue by
// the time the context is cancelled, so the range terminates.
func (p *Publisher) discard() {
	for range p.queue {
		p.discarded.Add(1)
	}
}

func (p *Publisher) send(frame []byte) {
	if err := p.sock.Send(zmq4.NewMsg(frame)); err != nil {
		p.failed.Add(1)
		p.observe(ResultFailed, len(frame))
		log.Warn().Err(err).Str("endpoint", p.endpoint.String()).Int("bytes", len(frame)).Msg("publish failed")
		return
	}
	p.sent.Add(1)
	p.observe(ResultSent, len(frame))
}

func (p *Publisher) observe(result string, n int) {
	if p.cfg.Observer != nil {
		p.cfg.Observer.ObserveFrame(result, n)
	}
}

// Close stops the sender, closes the socket, removes the ipc socket file and
// releases the endpoint lock. Queued frames are flushed and the socket is kept
// open for a short drain window, all bounded by Linger. Close is idempotent.
func (p *Publisher) Close() error {
	p.closeOnce.Do(func() {
		p.mu.Lock()
		p.closed = true
		close(p.queue)
		p.mu.Unlock()

		if p.cfg.Linger > 0 {
			deadline := time.Now().Add(p.cfg.Linger)
			timer := time.NewTimer(p.cfg.Linger)
			select {
			case <-p.done:
				if p.sent.Load() > 0 {
					timer.Reset(min(socketFlush, time.Until(deadline)))
					<-timer.C
				}
			case <-timer.C:
			}
			timer.Stop()
		}
		p.cancel()
		sockErr := p.sock.Close()
		if errors.Is(sockErr, context.Canceled) {
			sockErr = nil
		}
		<-p.done

		var fileErr error
		if p.endpoint.IsIPC() {
			fileErr = removeStale(p.endpoint.Address)
		}
		lockErr := p.lock.release()
		p.closeErr = errors.Join(sockErr, fileErr, lockErr)

		stats := p.Stats()
		log.Info().
			Str("endpoint", p.endpoint.String()).
			Uint64("sent", stats.Sent).
			Uint64("dropped", stats.Dropped).
			Uint64("failed", stats.Failed).
			Uint64("discarded", stats.Discarded).
			Msg("publisher closed")
	})
	return p.closeErr
}
