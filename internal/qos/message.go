package qos

// ControlMessage is one atomically transmitted batch of updates.
//
// It is built by Sequencer.BuildBatch and must not be modified after it is
// handed to a codec.
type ControlMessage struct {
	SequenceNumber uint64
	// ProducerID is optional; empty means absent on the wire.
	ProducerID string
	Updates    []Update
}

// Len returns the number of records in the batch.
func (m *ControlMessage) Len() int {
	if m == nil {
		return 0
	}
	return len(m.Updates)
}

// Equal compares sequence number, producer and every record in order.
func (m *ControlMessage) Equal(o *ControlMessage) bool {
	if m == nil || o == nil {
		return m == nil && o == nil
	}
	if m.SequenceNumber != o.SequenceNumber || m.ProducerID != o.ProducerID {
		return false
	}
	if len(m.Updates) != len(o.Updates) {
		return false
	}
	for i := range m.Updates {
		if !m.Updates[i].Equal(o.Updates[i]) {
			return false
		}
	}
	return true
}

// Effective resolves duplicate bearers with last-write-wins in batch order,
// which is the resolution order receivers are expected to apply. A clear
// record drops earlier overrides for its bearer; later records for the same
// bearer merge over it field by field.
func (m *ControlMessage) Effective() map[Bearer]Update {
	out := make(map[Bearer]Update, m.Len())
	if m == nil {
		return out
	}
	for _, u := range m.Updates {
		key := u.Bearer()
		if u.ClearOverride {
			out[key] = Clear(key.TerminalID, key.ChannelID)
			continue
		}
		cur, ok := out[key]
		if !ok {
			out[key] = u.Clone()
			continue
		}
		cur.ClearOverride = false
		merge(&cur, u)
		out[key] = cur
	}
	return out
}

func merge(dst *Update, src Update) {
	if src.QosPriority != nil {
		dst.QosPriority = clone32(src.QosPriority)
	}
	if src.ArpPriority != nil {
		dst.ArpPriority = clone32(src.ArpPriority)
	}
	if src.PacketDelayBudgetMS != nil {
		dst.PacketDelayBudgetMS = clone32(src.PacketDelayBudgetMS)
	}
	if src.GBRDownlinkBPS != nil {
		dst.GBRDownlinkBPS = clone64(src.GBRDownlinkBPS)
	}
	if src.GBRUplinkBPS != nil {
		dst.GBRUplinkBPS = clone64(src.GBRUplinkBPS)
	}
}
