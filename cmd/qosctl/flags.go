package main

import (
	"flag"
	"fmt"
	"io"
	"math"

	"github.com/danmuck/qosctl/internal/qos"
	"github.com/danmuck/qosctl/internal/transport"
)

type cliOptions struct {
	configPath  string
	endpoint    string
	codec       string
	producerID  string
	metricsAddr string

	rnti        uint
	lcid        uint
	qosPriority uint
	arpPriority uint
	pdbMS       uint
	gbrDLMbps   string
	gbrULMbps   string
	clear       bool
	interactive bool

	set map[string]bool
}

type oneShotRequest struct {
	update   qos.Update
	warnings []string
}

func parseFlags(args []string) (cliOptions, error) {
	var o cliOptions
	fs := flag.NewFlagSet("qosctl", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	fs.StringVar(&o.configPath, "config", "", "path to a qosctl TOML config")
	fs.StringVar(&o.endpoint, "ipc", transport.DefaultEndpoint, "control endpoint (ipc://path, /abs/path or tcp://host:port)")
	fs.StringVar(&o.codec, "codec", "", "wire codec: protobuf|tlv")
	fs.StringVar(&o.producerID, "producer-id", "", "producer id stamped into every batch")
	fs.StringVar(&o.metricsAddr, "metrics-addr", "", "serve /metrics on this address")
	fs.UintVar(&o.rnti, "rnti", 0, "terminal (RNTI) for a one-shot update")
	fs.UintVar(&o.lcid, "lcid", 0, "channel (LCID) for a one-shot update")
	fs.UintVar(&o.qosPriority, "qos-priority", 0, "QoS priority (1-127)")
	fs.UintVar(&o.arpPriority, "arp-priority", 0, "ARP priority (1-15)")
	fs.UintVar(&o.pdbMS, "pdb-ms", 0, "packet delay budget in ms")
	fs.StringVar(&o.gbrDLMbps, "gbr-dl-mbps", "", "downlink GBR in Mbps")
	fs.StringVar(&o.gbrULMbps, "gbr-ul-mbps", "", "uplink GBR in Mbps")
	fs.BoolVar(&o.clear, "clear", false, "clear every override on the bearer")
	fs.BoolVar(&o.interactive, "i", false, "interactive mode")
	fs.BoolVar(&o.interactive, "interactive", false, "interactive mode")

	if err := fs.Parse(args); err != nil {
		if err == flag.ErrHelp {
			fs.SetOutput(nil)
			fs.PrintDefaults()
			return cliOptions{}, err
		}
		return cliOptions{}, fmt.Errorf("%w: %v", errUsage, err)
	}
	if fs.NArg() > 0 {
		return cliOptions{}, fmt.Errorf("%w: unexpected arguments %v", errUsage, fs.Args())
	}

	o.set = map[string]bool{}
	fs.Visit(func(f *flag.Flag) { o.set[f.Name] = true })

	if o.set["rnti"] != o.set["lcid"] {
		return cliOptions{}, fmt.Errorf("%w: -rnti and -lcid must be given together", errUsage)
	}
	if o.hasTarget() && o.interactive {
		return cliOptions{}, fmt.Errorf("%w: -rnti/-lcid and -i are mutually exclusive", errUsage)
	}
	if !o.hasTarget() {
		for _, name := range append(overrideFlags, "clear") {
			if o.set[name] {
				return cliOptions{}, fmt.Errorf("%w: -%s needs -rnti and -lcid", errUsage, name)
			}
		}
	}
	return o, nil
}

var overrideFlags = []string{"qos-priority", "arp-priority", "pdb-ms", "gbr-dl-mbps", "gbr-ul-mbps"}

func (o cliOptions) hasTarget() bool {
	return o.set["rnti"] && o.set["lcid"]
}

// oneShot builds the single record for a one-shot invocation. -clear sends
// a pure clear and the other value flags are reported as ignored.
func (o cliOptions) oneShot() (oneShotRequest, error) {
	terminal, err := narrow("rnti", o.rnti)
	if err != nil {
		return oneShotRequest{}, err
	}
	channel, err := narrow("lcid", o.lcid)
	if err != nil {
		return oneShotRequest{}, err
	}

	if o.clear {
		req := oneShotRequest{update: qos.Clear(terminal, channel)}
		for _, name := range overrideFlags {
			if o.set[name] {
				req.warnings = append(req.warnings, fmt.Sprintf("-%s ignored with -clear", name))
			}
		}
		return req, nil
	}

	u := qos.NewUpdate(terminal, channel)
	if o.set["qos-priority"] {
		v, err := narrow("qos-priority", o.qosPriority)
		if err != nil {
			return oneShotRequest{}, err
		}
		u.QosPriority = qos.Uint32(v)
	}
	if o.set["arp-priority"] {
		v, err := narrow("arp-priority", o.arpPriority)
		if err != nil {
			return oneShotRequest{}, err
		}
		u.ArpPriority = qos.Uint32(v)
	}
	if o.set["pdb-ms"] {
		v, err := narrow("pdb-ms", o.pdbMS)
		if err != nil {
			return oneShotRequest{}, err
		}
		u.PacketDelayBudgetMS = qos.Uint32(v)
	}
	if o.set["gbr-dl-mbps"] {
		bps, err := qos.MbpsToBPS(o.gbrDLMbps)
		if err != nil {
			return oneShotRequest{}, fmt.Errorf("%w: -gbr-dl-mbps: %w", errUsage, err)
		}
		u.GBRDownlinkBPS = qos.Uint64(bps)
	}
	if o.set["gbr-ul-mbps"] {
		bps, err := qos.MbpsToBPS(o.gbrULMbps)
		if err != nil {
			return oneShotRequest{}, fmt.Errorf("%w: -gbr-ul-mbps: %w", errUsage, err)
		}
		u.GBRUplinkBPS = qos.Uint64(bps)
	}
	return oneShotRequest{update: u}, nil
}

func narrow(name string, v uint) (uint32, error) {
	if uint64(v) > math.MaxUint32 {
		return 0, fmt.Errorf("%w: -%s=%d exceeds 32 bits", errUsage, name, v)
	}
	return uint32(v), nil
}
