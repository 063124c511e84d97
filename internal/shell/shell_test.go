package shell

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/danmuck/qosctl/internal/controller"
	"github.com/danmuck/qosctl/internal/protocol"
	"github.com/danmuck/qosctl/internal/qos"
	"github.com/danmuck/qosctl/internal/testutil/testlog"
)

type frameSink struct {
	frames [][]byte
	fail   error
}

func (s *frameSink) Publish(frame []byte) error {
	if s.fail != nil {
		return s.fail
	}
	s.frames = append(s.frames, frame)
	return nil
}

func decodeAll(t *testing.T, sink *frameSink) []*qos.ControlMessage {
	t.Helper()
	out := make([]*qos.ControlMessage, 0, len(sink.frames))
	for i, f := range sink.frames {
		msg, err := protocol.Default().Decode(f)
		if err != nil {
			t.Fatalf("decode frame %d: %v", i, err)
		}
		out = append(out, msg)
	}
	return out
}

func TestParseCommands(t *testing.T) {
	testlog.Start(t)
	cmd, err := Parse("priority 17921 4 1 1")
	if err != nil {
		t.Fatalf("parse priority: %v", err)
	}
	if cmd.Kind != KindPriority || cmd.Terminal != 17921 || cmd.Channel != 4 || cmd.QosPriority != 1 || *cmd.ArpPriority != 1 {
		t.Fatalf("unexpected priority command: %+v", cmd)
	}

	cmd, err = Parse("  GBR 17921 5 2.5  ")
	if err != nil {
		t.Fatalf("parse gbr: %v", err)
	}
	if cmd.DownlinkBPS != 2_500_000 || cmd.UplinkBPS != nil {
		t.Fatalf("unexpected gbr command: %+v", cmd)
	}

	if cmd, err := Parse("exit"); err != nil || cmd.Kind != KindQuit {
		t.Fatalf("exit alias: %+v %v", cmd, err)
	}
	if cmd, err := Parse("   "); err != nil || cmd.Kind != KindNone {
		t.Fatalf("blank line: %+v %v", cmd, err)
	}
}

func TestParseRejectsMalformed(t *testing.T) {
	testlog.Start(t)
	for _, line := range []string{
		"priority 17921 4",
		"priority 17921 4 1 1 1",
		"pdb 17921 four 20",
		"pdb -1 4 20",
		"gbr 17921 5 fast",
		"gbr 17921 5 1e3",
		"clear 17921",
		"example now",
	} {
		_, err := Parse(line)
		var perr *ParseError
		if !errors.As(err, &perr) || perr.Usage == "" {
			t.Fatalf("%q: expected ParseError with usage, got %v", line, err)
		}
	}
	_, err := Parse("reboot 1 2")
	if !errors.Is(err, ErrUnknownCommand) {
		t.Fatalf("expected ErrUnknownCommand, got %v", err)
	}
}

func TestOperatorScenarios(t *testing.T) {
	testlog.Start(t)
	sink := &frameSink{}
	s := NewSession(controller.New(sink, controller.Options{}), nil, &strings.Builder{})

	for _, line := range []string{"priority 17921 4 1 1", "gbr 17921 5 10 2", "clear 17921 4", "example"} {
		if s.Execute(line) {
			t.Fatalf("%q ended the session", line)
		}
	}
	msgs := decodeAll(t, sink)
	if len(msgs) != 4 {
		t.Fatalf("expected 4 batches, got %d", len(msgs))
	}
	for i, m := range msgs {
		if m.SequenceNumber != uint64(i) {
			t.Fatalf("batch %d carried seq %d", i, m.SequenceNumber)
		}
	}

	want := qos.NewUpdate(17921, 4, qos.WithQosPriority(1), qos.WithArpPriority(1))
	if msgs[0].Len() != 1 || !msgs[0].Updates[0].Equal(want) {
		t.Fatalf("priority batch: %+v", msgs[0].Updates)
	}
	want = qos.NewUpdate(17921, 5, qos.WithGBRDownlink(10_000_000), qos.WithGBRUplink(2_000_000))
	if msgs[1].Len() != 1 || !msgs[1].Updates[0].Equal(want) {
		t.Fatalf("gbr batch: %+v", msgs[1].Updates)
	}
	if msgs[2].Len() != 1 || !msgs[2].Updates[0].Equal(qos.Clear(17921, 4)) {
		t.Fatalf("clear batch: %+v", msgs[2].Updates)
	}
	if msgs[3].Len() != 3 {
		t.Fatalf("example batch: %+v", msgs[3].Updates)
	}
	for i, ch := range []uint32{4, 5, 6} {
		if msgs[3].Updates[i].TerminalID != qos.ExampleTerminal || msgs[3].Updates[i].ChannelID != ch {
			t.Fatalf("example record %d: %s", i, msgs[3].Updates[i])
		}
	}
}

func TestRunRecoversFromBadInputAndStopsOnQuit(t *testing.T) {
	testlog.Start(t)
	sink := &frameSink{}
	in := strings.NewReader("bogus 1\npriority 1\n\nhelp\npdb 17921 4 20\nquit\npdb 17921 4 30\n")
	var out strings.Builder
	s := NewSession(controller.New(sink, controller.Options{}), in, &out)

	if err := s.Run(context.Background()); err != nil {
		t.Fatalf("run: %v", err)
	}
	text := out.String()
	for _, want := range []string{"unknown command: bogus", "usage: priority", "set PDB for terminal=17921 channel=4: 20ms (seq 0)"} {
		if !strings.Contains(text, want) {
			t.Fatalf("output missing %q:\n%s", want, text)
		}
	}
	if len(sink.frames) != 1 {
		t.Fatalf("expected one batch before quit, got %d", len(sink.frames))
	}
}

func TestRunReportsSendErrorsAndContinues(t *testing.T) {
	testlog.Start(t)
	sink := &frameSink{fail: errors.New("socket gone")}
	in := strings.NewReader("clear 1 4\nclear 1 5")
	var out strings.Builder
	s := NewSession(controller.New(sink, controller.Options{}), in, &out)

	if err := s.Run(context.Background()); err != nil {
		t.Fatalf("run should end cleanly at EOF: %v", err)
	}
	if got := strings.Count(out.String(), "error: publish batch"); got != 2 {
		t.Fatalf("expected two reported errors, got %d:\n%s", got, out.String())
	}
}

func TestRunOnCancelReleasesBlockedReader(t *testing.T) {
	testlog.Start(t)
	pr, pw := io.Pipe()
	defer pw.Close()
	ctx, cancel := context.WithCancel(context.Background())
	s := NewSession(controller.New(&frameSink{}, controller.Options{}), pr, io.Discard)

	done := make(chan error, 1)
	go func() { done <- s.Run(ctx) }()
	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("run after cancel: %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("run did not return after cancel")
	}
	if _, err := pw.Write([]byte("quit\n")); !errors.Is(err, io.ErrClosedPipe) {
		t.Fatalf("expected input closed after run, got %v", err)
	}
}
