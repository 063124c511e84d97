package qos

import (
	"fmt"
	"strings"
)

// Update is one requested change to one bearer.
//
// Optional fields use nil for "absent" (no change at the receiver). A non-nil
// pointer to zero is an explicit zero and must survive encoding as such.
type Update struct {
	TerminalID uint32
	ChannelID  uint32

	QosPriority         *uint32
	ArpPriority         *uint32
	PacketDelayBudgetMS *uint32
	GBRDownlinkBPS      *uint64
	GBRUplinkBPS        *uint64

	ClearOverride bool
}

// Option sets one optional value on an Update.
type Option func(*Update)

// NewUpdate builds a record for the bearer (terminal, channel).
// Values are passed through unchanged; see CheckAdvisory for range checks.
func NewUpdate(terminal, channel uint32, opts ...Option) Update {
	u := Update{TerminalID: terminal, ChannelID: channel}
	for _, opt := range opts {
		if opt != nil {
			opt(&u)
		}
	}
	return u
}

func WithQosPriority(v uint32) Option {
	return func(u *Update) { u.QosPriority = Uint32(v) }
}

func WithArpPriority(v uint32) Option {
	return func(u *Update) { u.ArpPriority = Uint32(v) }
}

func WithPacketDelayBudget(ms uint32) Option {
	return func(u *Update) { u.PacketDelayBudgetMS = Uint32(ms) }
}

func WithGBRDownlink(bps uint64) Option {
	return func(u *Update) { u.GBRDownlinkBPS = Uint64(bps) }
}

func WithGBRUplink(bps uint64) Option {
	return func(u *Update) { u.GBRUplinkBPS = Uint64(bps) }
}

// WithClear marks the record as a revert-to-static-configuration instruction.
// Other fields already set are kept.
func WithClear() Option {
	return func(u *Update) { u.ClearOverride = true }
}

// Uint32 returns a pointer to v.
func Uint32(v uint32) *uint32 { return &v }

// Uint64 returns a pointer to v.
func Uint64(v uint64) *uint64 { return &v }

// Bearer returns the (terminal, channel) key of the record.
func (u Update) Bearer() Bearer {
	return Bearer{TerminalID: u.TerminalID, ChannelID: u.ChannelID}
}

// HasOverrides reports whether any optional value is present.
func (u Update) HasOverrides() bool {
	return u.QosPriority != nil ||
		u.ArpPriority != nil ||
		u.PacketDelayBudgetMS != nil ||
		u.GBRDownlinkBPS != nil ||
		u.GBRUplinkBPS != nil
}

// Clone returns a deep copy so the caller's pointers are never shared.
func (u Update) Clone() Update {
	out := u
	out.QosPriority = clone32(u.QosPriority)
	out.ArpPriority = clone32(u.ArpPriority)
	out.PacketDelayBudgetMS = clone32(u.PacketDelayBudgetMS)
	out.GBRDownlinkBPS = clone64(u.GBRDownlinkBPS)
	out.GBRUplinkBPS = clone64(u.GBRUplinkBPS)
	return out
}

// Equal compares presence and values of every field.
func (u Update) Equal(o Update) bool {
	return u.TerminalID == o.TerminalID &&
		u.ChannelID == o.ChannelID &&
		u.ClearOverride == o.ClearOverride &&
		eq32(u.QosPriority, o.QosPriority) &&
		eq32(u.ArpPriority, o.ArpPriority) &&
		eq32(u.PacketDelayBudgetMS, o.PacketDelayBudgetMS) &&
		eq64(u.GBRDownlinkBPS, o.GBRDownlinkBPS) &&
		eq64(u.GBRUplinkBPS, o.GBRUplinkBPS)
}

func (u Update) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "rnti=%d lcid=%d", u.TerminalID, u.ChannelID)
	if u.ClearOverride {
		b.WriteString(" clear")
	}
	if u.QosPriority != nil {
		fmt.Fprintf(&b, " qos_prio=%d", *u.QosPriority)
	}
	if u.ArpPriority != nil {
		fmt.Fprintf(&b, " arp_prio=%d", *u.ArpPriority)
	}
	if u.PacketDelayBudgetMS != nil {
		fmt.Fprintf(&b, " pdb_ms=%d", *u.PacketDelayBudgetMS)
	}
	if u.GBRDownlinkBPS != nil {
		fmt.Fprintf(&b, " gbr_dl=%d", *u.GBRDownlinkBPS)
	}
	if u.GBRUplinkBPS != nil {
		fmt.Fprintf(&b, " gbr_ul=%d", *u.GBRUplinkBPS)
	}
	return b.String()
}

// Bearer identifies one flow subject to QoS control.
type Bearer struct {
	TerminalID uint32
	ChannelID  uint32
}

func clone32(p *uint32) *uint32 {
	if p == nil {
		return nil
	}
	return Uint32(*p)
}

func clone64(p *uint64) *uint64 {
	if p == nil {
		return nil
	}
	return Uint64(*p)
}

func eq32(a, b *uint32) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}

func eq64(a, b *uint64) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}
