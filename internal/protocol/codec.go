package protocol

import (
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/danmuck/qosctl/internal/protocol/frame"
	"github.com/danmuck/qosctl/internal/qos"
)

const (
	CodecProtobuf = "protobuf"
	CodecTLV      = "tlv"
)

// Codec serializes one ControlMessage per transport frame.
//
// Encode is deterministic and never mutates msg. Decode returns absent
// optional fields as nil, never as a zero sentinel.
type Codec interface {
	Name() string
	Encode(msg *qos.ControlMessage) ([]byte, error)
	Decode(frame []byte) (*qos.ControlMessage, error)
}

var (
	mu     sync.RWMutex
	codecs = map[string]Codec{
		CodecProtobuf: ProtobufCodec{},
		CodecTLV:      NewTLVCodec(frame.DefaultLimits()),
	}
)

// Register adds or replaces a codec under its lower-cased Name.
func Register(c Codec) {
	mu.Lock()
	defer mu.Unlock()
	codecs[strings.ToLower(c.Name())] = c
}

// Default returns the receiver-compatible protobuf codec.
func Default() Codec {
	mu.RLock()
	defer mu.RUnlock()
	return codecs[CodecProtobuf]
}

// Lookup resolves a codec by name; an empty name selects Default.
func Lookup(name string) (Codec, error) {
	key := strings.ToLower(strings.TrimSpace(name))
	if key == "" {
		return Default(), nil
	}
	mu.RLock()
	c, ok := codecs[key]
	mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %q (known: %s)", ErrUnknownCodec, name, strings.Join(Names(), ", "))
	}
	return c, nil
}

// Names lists registered codecs in sorted order.
func Names() []string {
	mu.RLock()
	defer mu.RUnlock()
	out := make([]string, 0, len(codecs))
	for name := range codecs {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}
