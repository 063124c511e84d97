package shell

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/danmuck/qosctl/internal/qos"
	"github.com/rs/zerolog/log"
)

// Sender publishes one batch. *controller.Controller satisfies it.
type Sender interface {
	Send(records []qos.Update) (qos.ControlMessage, error)
}

const Prompt = "qos> "

// Session is the interactive operator loop: read a line, parse it, dispatch
// it, report the result. Parse and send failures are printed and the loop
// continues.
type Session struct {
	sender Sender
	in     io.Reader
	out    io.Writer
}

func NewSession(sender Sender, in io.Reader, out io.Writer) *Session {
	return &Session{sender: sender, in: in, out: out}
}

// Run returns nil on quit, end of input or ctx cancellation.
//
// Lines are read on a separate goroutine. When the input is an io.Closer, Run
// closes it on return so that goroutine is released from a pending read;
// otherwise it stays blocked until the reader yields an error.
func (s *Session) Run(ctx context.Context) error {
	fmt.Fprintln(s.out, "=== QoS controller, interactive mode ===")
	fmt.Fprint(s.out, Usage())

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	if c, ok := s.in.(io.Closer); ok {
		defer c.Close()
	}
	lines := make(chan string)
	readErr := make(chan error, 1)
	go readLines(ctx, s.in, lines, readErr)

	for {
		fmt.Fprint(s.out, Prompt)
		select {
		case <-ctx.Done():
			fmt.Fprintln(s.out)
			return nil
		case err := <-readErr:
			fmt.Fprintln(s.out)
			if errors.Is(err, io.EOF) {
				return nil
			}
			return fmt.Errorf("read command: %w", err)
		case line := <-lines:
			if quit := s.Execute(line); quit {
				return nil
			}
		}
	}
}

// Execute handles one line and reports whether the session should end.
func (s *Session) Execute(line string) (quit bool) {
	cmd, err := Parse(line)
	if err != nil {
		var perr *ParseError
		if errors.As(err, &perr) && errors.Is(err, ErrUnknownCommand) {
			fmt.Fprintf(s.out, "unknown command: %s\n", perr.Name)
			return false
		}
		fmt.Fprintln(s.out, err)
		return false
	}

	switch cmd.Kind {
	case KindNone:
		return false
	case KindQuit:
		return true
	case KindHelp:
		fmt.Fprint(s.out, Usage())
		return false
	}

	msg, err := s.sender.Send(cmd.Records())
	if err != nil {
		log.Debug().Err(err).Str("command", cmd.Name).Msg("command failed")
		fmt.Fprintf(s.out, "error: %v\n", err)
		return false
	}
	fmt.Fprintf(s.out, "  -> %s (seq %d)\n", confirmation(cmd), msg.SequenceNumber)
	return false
}

func confirmation(cmd Command) string {
	switch cmd.Kind {
	case KindPriority:
		arp := "unset"
		if cmd.ArpPriority != nil {
			arp = fmt.Sprint(*cmd.ArpPriority)
		}
		return fmt.Sprintf("set priority for terminal=%d channel=%d: qos=%d arp=%s", cmd.Terminal, cmd.Channel, cmd.QosPriority, arp)
	case KindPacketDelay:
		return fmt.Sprintf("set PDB for terminal=%d channel=%d: %dms", cmd.Terminal, cmd.Channel, cmd.PacketDelayMS)
	case KindGBR:
		ul := "unset"
		if cmd.UplinkBPS != nil {
			ul = qos.FormatMbps(*cmd.UplinkBPS) + "Mbps"
		}
		return fmt.Sprintf("set GBR for terminal=%d channel=%d: dl=%sMbps ul=%s", cmd.Terminal, cmd.Channel, qos.FormatMbps(cmd.DownlinkBPS), ul)
	case KindClear:
		return fmt.Sprintf("cleared override for terminal=%d channel=%d", cmd.Terminal, cmd.Channel)
	case KindExample:
		return fmt.Sprintf("sent example updates for terminal=%d channels 4, 5, 6", qos.ExampleTerminal)
	default:
		return cmd.Name
	}
}

func readLines(ctx context.Context, in io.Reader, lines chan<- string, errs chan<- error) {
	r := bufio.NewReader(in)
	for {
		line, err := r.ReadString('\n')
		if line != "" {
			select {
			case lines <- strings.TrimRight(line, "\r\n"):
			case <-ctx.Done():
				return
			}
		}
		if err != nil {
			errs <- err
			return
		}
	}
}
