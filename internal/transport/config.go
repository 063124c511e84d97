package transport

import "time"

// BackoffConfig defines Dial retry behavior.
type BackoffConfig struct {
	InitialDelay time.Duration
	Multiplier   float64
	MaxDelay     time.Duration
	Jitter       bool
}

// Config defines publisher and subscriber socket behavior.
type Config struct {
	// QueueSize bounds frames waiting for the sender goroutine. It mirrors
	// the ZeroMQ default send high-water mark.
	QueueSize int
	// Linger bounds how long Close keeps flushing queued frames to connected
	// subscribers. Zero discards them.
	Linger time.Duration
	// SendTimeout bounds socket handshakes and writes.
	SendTimeout time.Duration
	Backoff     BackoffConfig
	// Observer receives per-frame outcomes. Nil disables reporting.
	Observer Observer
}

func DefaultConfig() Config {
	return Config{
		QueueSize:   1000,
		Linger:      time.Second,
		SendTimeout: 5 * time.Second,
		Backoff: BackoffConfig{
			InitialDelay: 100 * time.Millisecond,
			Multiplier:   2.0,
			MaxDelay:     2 * time.Second,
			Jitter:       true,
		},
	}
}

func (c Config) withDefaults() Config {
	def := DefaultConfig()
	if c.QueueSize <= 0 {
		c.QueueSize = def.QueueSize
	}
	if c.SendTimeout <= 0 {
		c.SendTimeout = def.SendTimeout
	}
	if c.Linger < 0 {
		c.Linger = 0
	}
	if c.Backoff.InitialDelay <= 0 {
		c.Backoff = def.Backoff
	}
	return c
}

// Frame outcomes reported to an Observer.
const (
	ResultSent    = "sent"
	ResultDropped = "dropped"
	ResultFailed  = "failed"
)

// Observer is notified once per published frame.
type Observer interface {
	ObserveFrame(result string, bytes int)
}
