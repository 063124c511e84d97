package qos

// SetPriority builds a priority override. arp is optional.
func SetPriority(terminal, channel, qosPriority uint32, arp *uint32) Update {
	u := NewUpdate(terminal, channel, WithQosPriority(qosPriority))
	if arp != nil {
		u.ArpPriority = Uint32(*arp)
	}
	return u
}

// SetPacketDelayBudget builds a packet delay budget override.
func SetPacketDelayBudget(terminal, channel, ms uint32) Update {
	return NewUpdate(terminal, channel, WithPacketDelayBudget(ms))
}

// SetGBR builds a guaranteed bit rate override. ul is optional.
func SetGBR(terminal, channel uint32, downlinkBPS uint64, uplinkBPS *uint64) Update {
	u := NewUpdate(terminal, channel, WithGBRDownlink(downlinkBPS))
	if uplinkBPS != nil {
		u.GBRUplinkBPS = Uint64(*uplinkBPS)
	}
	return u
}

// Clear builds a pure clear record with no optional values.
func Clear(terminal, channel uint32) Update {
	return NewUpdate(terminal, channel, WithClear())
}

// ExampleTerminal is the RNTI targeted by the demonstration batch.
const ExampleTerminal uint32 = 17921

// ExampleBatch returns the demonstration records: voice, video and data
// bearers of ExampleTerminal on channels 4, 5 and 6.
func ExampleBatch() []Update {
	return []Update{
		NewUpdate(ExampleTerminal, 4,
			WithQosPriority(1),
			WithArpPriority(1),
			WithPacketDelayBudget(20),
		),
		NewUpdate(ExampleTerminal, 5,
			WithQosPriority(20),
			WithGBRDownlink(10_000_000),
			WithGBRUplink(2_000_000),
		),
		NewUpdate(ExampleTerminal, 6,
			WithQosPriority(80),
		),
	}
}
