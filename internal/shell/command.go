package shell

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/danmuck/qosctl/internal/qos"
)

// Kind identifies a parsed operator command.
type Kind int

const (
	KindNone Kind = iota
	KindPriority
	KindPacketDelay
	KindGBR
	KindClear
	KindExample
	KindHelp
	KindQuit
)

var ErrUnknownCommand = errors.New("unknown command")

// ParseError reports a malformed command line. The session prints Usage and
// continues.
type ParseError struct {
	Name  string
	Usage string
	Err   error
}

func (e *ParseError) Error() string {
	if e.Usage == "" {
		return fmt.Sprintf("%v: %s", e.Err, e.Name)
	}
	return fmt.Sprintf("usage: %s (%v)", e.Usage, e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }

// Command is one parsed operator line.
type Command struct {
	Kind     Kind
	Name     string
	Terminal uint32
	Channel  uint32

	QosPriority   uint32
	ArpPriority   *uint32
	PacketDelayMS uint32
	DownlinkBPS   uint64
	UplinkBPS     *uint64
}

type commandSpec struct {
	kind    Kind
	usage   string
	summary string
	minArgs int
	maxArgs int
	parse   func(cmd *Command, args []string) error
}

var commandOrder = []string{"priority", "pdb", "gbr", "clear", "example", "help", "quit"}

var commands = map[string]commandSpec{
	"priority": {
		kind:    KindPriority,
		usage:   "priority <terminal> <channel> <qos_prio> [arp_prio]",
		summary: "set QoS priority, optionally ARP priority",
		minArgs: 3, maxArgs: 4,
		parse: func(cmd *Command, args []string) error {
			v, err := parseUint32("qos_prio", args[2])
			if err != nil {
				return err
			}
			cmd.QosPriority = v
			if len(args) == 4 {
				arp, err := parseUint32("arp_prio", args[3])
				if err != nil {
					return err
				}
				cmd.ArpPriority = qos.Uint32(arp)
			}
			return nil
		},
	},
	"pdb": {
		kind:    KindPacketDelay,
		usage:   "pdb <terminal> <channel> <pdb_ms>",
		summary: "set packet delay budget in milliseconds",
		minArgs: 3, maxArgs: 3,
		parse: func(cmd *Command, args []string) error {
			v, err := parseUint32("pdb_ms", args[2])
			cmd.PacketDelayMS = v
			return err
		},
	},
	"gbr": {
		kind:    KindGBR,
		usage:   "gbr <terminal> <channel> <gbr_dl_mbps> [gbr_ul_mbps]",
		summary: "set guaranteed bit rate in Mbps",
		minArgs: 3, maxArgs: 4,
		parse: func(cmd *Command, args []string) error {
			dl, err := qos.MbpsToBPS(args[2])
			if err != nil {
				return fmt.Errorf("gbr_dl_mbps: %w", err)
			}
			cmd.DownlinkBPS = dl
			if len(args) == 4 {
				ul, err := qos.MbpsToBPS(args[3])
				if err != nil {
					return fmt.Errorf("gbr_ul_mbps: %w", err)
				}
				cmd.UplinkBPS = qos.Uint64(ul)
			}
			return nil
		},
	},
	"clear": {
		kind:    KindClear,
		usage:   "clear <terminal> <channel>",
		summary: "clear every override on the bearer",
		minArgs: 2, maxArgs: 2,
	},
	"example": {kind: KindExample, usage: "example", summary: "send the demonstration batch"},
	"help":    {kind: KindHelp, usage: "help", summary: "list commands"},
	"quit":    {kind: KindQuit, usage: "quit", summary: "exit (alias: exit)"},
}

// Parse reads one operator line. A blank line yields KindNone.
func Parse(line string) (Command, error) {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return Command{Kind: KindNone}, nil
	}
	name := strings.ToLower(fields[0])
	if name == "exit" {
		name = "quit"
	}
	def, ok := commands[name]
	if !ok {
		return Command{}, &ParseError{Name: fields[0], Err: ErrUnknownCommand}
	}
	args := fields[1:]
	if len(args) < def.minArgs || len(args) > def.maxArgs {
		return Command{}, &ParseError{
			Name:  name,
			Usage: def.usage,
			Err:   fmt.Errorf("want %s, got %d", argCount(def), len(args)),
		}
	}

	cmd := Command{Kind: def.kind, Name: name}
	if def.minArgs >= 2 {
		var err error
		if cmd.Terminal, err = parseUint32("terminal", args[0]); err != nil {
			return Command{}, &ParseError{Name: name, Usage: def.usage, Err: err}
		}
		if cmd.Channel, err = parseUint32("channel", args[1]); err != nil {
			return Command{}, &ParseError{Name: name, Usage: def.usage, Err: err}
		}
	}
	if def.parse != nil {
		if err := def.parse(&cmd, args); err != nil {
			return Command{}, &ParseError{Name: name, Usage: def.usage, Err: err}
		}
	}
	return cmd, nil
}

// Records returns the update records cmd sends, or nil for commands that
// send nothing.
func (c Command) Records() []qos.Update {
	switch c.Kind {
	case KindPriority:
		return []qos.Update{qos.SetPriority(c.Terminal, c.Channel, c.QosPriority, c.ArpPriority)}
	case KindPacketDelay:
		return []qos.Update{qos.SetPacketDelayBudget(c.Terminal, c.Channel, c.PacketDelayMS)}
	case KindGBR:
		return []qos.Update{qos.SetGBR(c.Terminal, c.Channel, c.DownlinkBPS, c.UplinkBPS)}
	case KindClear:
		return []qos.Update{qos.Clear(c.Terminal, c.Channel)}
	case KindExample:
		return qos.ExampleBatch()
	default:
		return nil
	}
}

// Usage lists every command with its summary.
func Usage() string {
	var b strings.Builder
	b.WriteString("Commands:\n")
	for _, name := range commandOrder {
		def := commands[name]
		fmt.Fprintf(&b, "  %-54s %s\n", def.usage, def.summary)
	}
	return b.String()
}

func argCount(def commandSpec) string {
	if def.minArgs == def.maxArgs {
		return fmt.Sprintf("%d arguments", def.minArgs)
	}
	return fmt.Sprintf("%d-%d arguments", def.minArgs, def.maxArgs)
}

func parseUint32(field, s string) (uint32, error) {
	v, err := strconv.ParseUint(s, 10, 32)
	if err != nil {
		return 0, fmt.Errorf("%s %q is not an unsigned 32-bit integer", field, s)
	}
	return uint32(v), nil
}
