package protocol

import (
	"fmt"

	"github.com/danmuck/qosctl/internal/protocol/frame"
	"github.com/danmuck/qosctl/internal/protocol/schema"
	"github.com/danmuck/qosctl/internal/protocol/tlv"
	"github.com/danmuck/qosctl/internal/qos"
)

// TLVCodec frames a batch with the fixed frame header and carries each
// record as a nested TLV payload. Presence is structural: a field exists on
// the wire iff it is set.
type TLVCodec struct {
	limits frame.Limits
}

func NewTLVCodec(limits frame.Limits) TLVCodec {
	return TLVCodec{limits: limits}
}

func (TLVCodec) Name() string { return CodecTLV }

func (c TLVCodec) Encode(msg *qos.ControlMessage) ([]byte, error) {
	if msg == nil {
		return nil, ErrNilMessage
	}
	fields := make([]tlv.Field, 0, 2+len(msg.Updates))
	fields = append(fields, tlv.U64(schema.FieldSequence, msg.SequenceNumber))
	if msg.ProducerID != "" {
		fields = append(fields, tlv.String(schema.FieldProducerID, msg.ProducerID))
	}
	for _, u := range msg.Updates {
		fields = append(fields, tlv.Field{
			ID:    schema.FieldUpdate,
			Type:  tlv.TypeBytes,
			Value: tlv.EncodeFields(recordFields(u)),
		})
	}
	return frame.Marshal(frame.Frame{
		Header: frame.Header{
			MessageID:   msg.SequenceNumber,
			MessageType: schema.MsgQosControl,
		},
		Payload: tlv.EncodeFields(fields),
	}, c.limits)
}

func recordFields(u qos.Update) []tlv.Field {
	out := []tlv.Field{
		tlv.U32(schema.FieldTerminalID, u.TerminalID),
		tlv.U32(schema.FieldChannelID, u.ChannelID),
	}
	if u.QosPriority != nil {
		out = append(out, tlv.U32(schema.FieldQosPriority, *u.QosPriority))
	}
	if u.ArpPriority != nil {
		out = append(out, tlv.U32(schema.FieldArpPriority, *u.ArpPriority))
	}
	if u.PacketDelayBudgetMS != nil {
		out = append(out, tlv.U32(schema.FieldPacketDelay, *u.PacketDelayBudgetMS))
	}
	if u.GBRDownlinkBPS != nil {
		out = append(out, tlv.U64(schema.FieldGBRDownlink, *u.GBRDownlinkBPS))
	}
	if u.GBRUplinkBPS != nil {
		out = append(out, tlv.U64(schema.FieldGBRUplink, *u.GBRUplinkBPS))
	}
	if u.ClearOverride {
		out = append(out, tlv.Bool(schema.FieldClearOverride, true))
	}
	return out
}

func (c TLVCodec) Decode(b []byte) (*qos.ControlMessage, error) {
	f, err := frame.Unmarshal(b, c.limits)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrMalformed, err)
	}
	if f.Header.MessageType != schema.MsgQosControl {
		return nil, fmt.Errorf("%w: %d", ErrMessageTypeMismatch, f.Header.MessageType)
	}
	fields, err := tlv.DecodeFields(f.Payload)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrMalformed, err)
	}
	if err := schema.Validate(schema.MsgQosControl, fields); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrMalformed, err)
	}

	seqField, _ := tlv.GetField(fields, schema.FieldSequence)
	seq, err := seqField.AsU64()
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrMalformed, err)
	}
	if seq != f.Header.MessageID {
		return nil, fmt.Errorf("%w: header=%d payload=%d", ErrSequenceMismatch, f.Header.MessageID, seq)
	}
	msg := &qos.ControlMessage{SequenceNumber: seq}
	if pf, ok := tlv.GetField(fields, schema.FieldProducerID); ok {
		if msg.ProducerID, err = pf.AsString(); err != nil {
			return nil, fmt.Errorf("%w: %w", ErrMalformed, err)
		}
	}

	for i, rf := range tlv.All(fields, schema.FieldUpdate) {
		u, err := decodeRecord(rf.Value)
		if err != nil {
			return nil, fmt.Errorf("update[%d]: %w", i, err)
		}
		msg.Updates = append(msg.Updates, u)
	}
	return msg, nil
}

func decodeRecord(payload []byte) (qos.Update, error) {
	fields, err := tlv.DecodeFields(payload)
	if err != nil {
		return qos.Update{}, fmt.Errorf("%w: %w", ErrMalformed, err)
	}
	if err := schema.Validate(schema.RecordDrbQos, fields); err != nil {
		return qos.Update{}, fmt.Errorf("%w: %w", ErrMalformed, err)
	}

	var u qos.Update
	// Types were checked by schema.Validate; accessor errors can only be
	// length faults and are reported as malformed.
	u32 := func(id uint16) (*uint32, error) {
		f, ok := tlv.GetField(fields, id)
		if !ok {
			return nil, nil
		}
		v, err := f.AsU32()
		if err != nil {
			return nil, err
		}
		return qos.Uint32(v), nil
	}
	u64 := func(id uint16) (*uint64, error) {
		f, ok := tlv.GetField(fields, id)
		if !ok {
			return nil, nil
		}
		v, err := f.AsU64()
		if err != nil {
			return nil, err
		}
		return qos.Uint64(v), nil
	}

	terminal, err := u32(schema.FieldTerminalID)
	if err != nil {
		return qos.Update{}, fmt.Errorf("%w: %w", ErrMalformed, err)
	}
	channel, err := u32(schema.FieldChannelID)
	if err != nil {
		return qos.Update{}, fmt.Errorf("%w: %w", ErrMalformed, err)
	}
	u.TerminalID, u.ChannelID = *terminal, *channel

	if u.QosPriority, err = u32(schema.FieldQosPriority); err != nil {
		return qos.Update{}, fmt.Errorf("%w: %w", ErrMalformed, err)
	}
	if u.ArpPriority, err = u32(schema.FieldArpPriority); err != nil {
		return qos.Update{}, fmt.Errorf("%w: %w", ErrMalformed, err)
	}
	if u.PacketDelayBudgetMS, err = u32(schema.FieldPacketDelay); err != nil {
		return qos.Update{}, fmt.Errorf("%w: %w", ErrMalformed, err)
	}
	if u.GBRDownlinkBPS, err = u64(schema.FieldGBRDownlink); err != nil {
		return qos.Update{}, fmt.Errorf("%w: %w", ErrMalformed, err)
	}
	if u.GBRUplinkBPS, err = u64(schema.FieldGBRUplink); err != nil {
		return qos.Update{}, fmt.Errorf("%w: %w", ErrMalformed, err)
	}
	if cf, ok := tlv.GetField(fields, schema.FieldClearOverride); ok {
		if u.ClearOverride, err = cf.AsBool(); err != nil {
			return qos.Update{}, fmt.Errorf("%w: %w", ErrMalformed, err)
		}
	}
	return u, nil
}
