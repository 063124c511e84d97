package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/danmuck/qosctl/internal/protocol"
	"github.com/danmuck/qosctl/internal/transport"
)

var ErrInvalidConfig = errors.New("config: invalid")

// DefaultWarmup is the pause after bind so subscribers can connect before the
// first frame. PUB sockets drop frames for peers that are not yet subscribed.
const DefaultWarmup = 500 * time.Millisecond

// Config is the producer configuration shared by qosctl and configgen.
type Config struct {
	Endpoint     string
	Codec        string
	ProducerID   string
	SendQueue    int
	Linger       time.Duration
	SendTimeout  time.Duration
	Warmup       time.Duration
	MetricsAddr  string
	WarnAdvisory bool
}

type fileConfig struct {
	Endpoint     string `toml:"endpoint"`
	Codec        string `toml:"codec"`
	ProducerID   string `toml:"producer_id"`
	SendQueue    int    `toml:"send_queue"`
	Linger       string `toml:"linger"`
	SendTimeout  string `toml:"send_timeout"`
	Warmup       string `toml:"warmup"`
	MetricsAddr  string `toml:"metrics_addr"`
	WarnAdvisory bool   `toml:"warn_advisory"`
}

func Default() Config {
	tc := transport.DefaultConfig()
	return Config{
		Endpoint:     transport.DefaultEndpoint,
		Codec:        protocol.CodecProtobuf,
		SendQueue:    tc.QueueSize,
		Linger:       tc.Linger,
		SendTimeout:  tc.SendTimeout,
		Warmup:       DefaultWarmup,
		WarnAdvisory: true,
	}
}

// Load overlays the keys present in the TOML file at path onto Default and
// validates the result.
func Load(path string) (Config, error) {
	cfg := Default()

	var raw fileConfig
	meta, err := toml.DecodeFile(path, &raw)
	if err != nil {
		return Config{}, fmt.Errorf("config load failed (%s): %w", path, err)
	}
	if undecoded := meta.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, 0, len(undecoded))
		for _, k := range undecoded {
			keys = append(keys, k.String())
		}
		return Config{}, fmt.Errorf("%w: unknown keys in %s: %s", ErrInvalidConfig, path, strings.Join(keys, ", "))
	}

	if meta.IsDefined("endpoint") {
		cfg.Endpoint = strings.TrimSpace(raw.Endpoint)
	}
	if meta.IsDefined("codec") {
		cfg.Codec = strings.TrimSpace(raw.Codec)
	}
	if meta.IsDefined("producer_id") {
		cfg.ProducerID = strings.TrimSpace(raw.ProducerID)
	}
	if meta.IsDefined("send_queue") {
		cfg.SendQueue = raw.SendQueue
	}
	if meta.IsDefined("linger") {
		d, err := time.ParseDuration(strings.TrimSpace(raw.Linger))
		if err != nil {
			return Config{}, fmt.Errorf("parse linger: %w", err)
		}
		cfg.Linger = d
	}
	if meta.IsDefined("send_timeout") {
		d, err := time.ParseDuration(strings.TrimSpace(raw.SendTimeout))
		if err != nil {
			return Config{}, fmt.Errorf("parse send_timeout: %w", err)
		}
		cfg.SendTimeout = d
	}
	if meta.IsDefined("warmup") {
		d, err := time.ParseDuration(strings.TrimSpace(raw.Warmup))
		if err != nil {
			return Config{}, fmt.Errorf("parse warmup: %w", err)
		}
		cfg.Warmup = d
	}
	if meta.IsDefined("metrics_addr") {
		cfg.MetricsAddr = strings.TrimSpace(raw.MetricsAddr)
	}
	if meta.IsDefined("warn_advisory") {
		cfg.WarnAdvisory = raw.WarnAdvisory
	}

	if err := Validate(cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func Validate(cfg Config) error {
	if _, err := transport.ParseEndpoint(cfg.Endpoint); err != nil {
		return fmt.Errorf("%w: endpoint: %w", ErrInvalidConfig, err)
	}
	if _, err := protocol.Lookup(cfg.Codec); err != nil {
		return fmt.Errorf("%w: codec: %w", ErrInvalidConfig, err)
	}
	if cfg.SendQueue <= 0 {
		return fmt.Errorf("%w: send_queue must be positive, got %d", ErrInvalidConfig, cfg.SendQueue)
	}
	if cfg.Linger < 0 {
		return fmt.Errorf("%w: linger must not be negative", ErrInvalidConfig)
	}
	if cfg.SendTimeout <= 0 {
		return fmt.Errorf("%w: send_timeout must be positive", ErrInvalidConfig)
	}
	if cfg.Warmup < 0 {
		return fmt.Errorf("%w: warmup must not be negative", ErrInvalidConfig)
	}
	return nil
}

// TransportConfig maps the socket settings onto a transport.Config.
func (c Config) TransportConfig() transport.Config {
	tc := transport.DefaultConfig()
	tc.QueueSize = c.SendQueue
	tc.Linger = c.Linger
	tc.SendTimeout = c.SendTimeout
	return tc
}
