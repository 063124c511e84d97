package transport

import (
	"fmt"
	"net"
	"strings"
)

const (
	SchemeIPC = "ipc"
	SchemeTCP = "tcp"
)

// DefaultEndpoint is the control endpoint shared by every producer.
const DefaultEndpoint = "ipc:///tmp/control_qos_actions"

// Endpoint is a parsed ZeroMQ address. For ipc, Address is the socket path.
type Endpoint struct {
	Scheme  string
	Address string
}

// ParseEndpoint accepts ipc://path, a bare absolute path (treated as ipc) and
// tcp://host:port.
func ParseEndpoint(raw string) (Endpoint, error) {
	s := strings.TrimSpace(raw)
	switch {
	case s == "":
		return Endpoint{}, fmt.Errorf("%w: empty", ErrInvalidEndpoint)
	case strings.HasPrefix(s, "/"):
		return Endpoint{Scheme: SchemeIPC, Address: s}, nil
	case strings.HasPrefix(s, SchemeIPC+"://"):
		path := strings.TrimPrefix(s, SchemeIPC+"://")
		if path == "" {
			return Endpoint{}, fmt.Errorf("%w: %q has no path", ErrInvalidEndpoint, raw)
		}
		return Endpoint{Scheme: SchemeIPC, Address: path}, nil
	case strings.HasPrefix(s, SchemeTCP+"://"):
		addr := strings.TrimPrefix(s, SchemeTCP+"://")
		host, port, err := net.SplitHostPort(addr)
		if err != nil {
			return Endpoint{}, fmt.Errorf("%w: %q: %v", ErrInvalidEndpoint, raw, err)
		}
		if host == "" || port == "" {
			return Endpoint{}, fmt.Errorf("%w: %q needs host and port", ErrInvalidEndpoint, raw)
		}
		return Endpoint{Scheme: SchemeTCP, Address: addr}, nil
	default:
		return Endpoint{}, fmt.Errorf("%w: %q (want ipc://, tcp:// or an absolute path)", ErrInvalidEndpoint, raw)
	}
}

// MustParseEndpoint is ParseEndpoint for compile-time constants.
func MustParseEndpoint(raw string) Endpoint {
	ep, err := ParseEndpoint(raw)
	if err != nil {
		panic(err)
	}
	return ep
}

func (e Endpoint) String() string {
	return e.Scheme + "://" + e.Address
}

func (e Endpoint) IsIPC() bool { return e.Scheme == SchemeIPC }

func (e Endpoint) lockPath() string { return e.Address + ".lock" }
