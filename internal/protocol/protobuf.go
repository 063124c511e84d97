package protocol

import (
	"fmt"
	"math"

	"github.com/danmuck/qosctl/internal/qos"
	"google.golang.org/protobuf/encoding/protowire"
)

// QosControl field numbers.
const (
	pbRanIndex   protowire.Number = 1
	pbDrbQos     protowire.Number = 2
	pbProducerID protowire.Number = 3
)

// DrbQosParams field numbers.
const (
	pbRnti          protowire.Number = 1
	pbLcid          protowire.Number = 2
	pbQosPriority   protowire.Number = 3
	pbArpPriority   protowire.Number = 4
	pbPdbMS         protowire.Number = 5
	pbGbrDL         protowire.Number = 6
	pbGbrUL         protowire.Number = 7
	pbClearOverride protowire.Number = 8
)

// ProtobufCodec writes the QosControl protobuf message with explicit field
// presence: an optional field is on the wire iff it is set, zero included.
type ProtobufCodec struct{}

func (ProtobufCodec) Name() string { return CodecProtobuf }

func (ProtobufCodec) Encode(msg *qos.ControlMessage) ([]byte, error) {
	if msg == nil {
		return nil, ErrNilMessage
	}
	if msg.SequenceNumber > math.MaxUint32 {
		return nil, fmt.Errorf("%w: ran_index=%d", ErrValueOverflow, msg.SequenceNumber)
	}
	b := make([]byte, 0, 8+len(msg.ProducerID)+24*len(msg.Updates))
	b = appendVarintField(b, pbRanIndex, msg.SequenceNumber)
	var rec []byte
	for _, u := range msg.Updates {
		rec = appendDrbQos(rec[:0], u)
		b = protowire.AppendTag(b, pbDrbQos, protowire.BytesType)
		b = protowire.AppendBytes(b, rec)
	}
	if msg.ProducerID != "" {
		b = protowire.AppendTag(b, pbProducerID, protowire.BytesType)
		b = protowire.AppendString(b, msg.ProducerID)
	}
	return b, nil
}

func appendDrbQos(b []byte, u qos.Update) []byte {
	b = appendVarintField(b, pbRnti, uint64(u.TerminalID))
	b = appendVarintField(b, pbLcid, uint64(u.ChannelID))
	if u.QosPriority != nil {
		b = appendVarintField(b, pbQosPriority, uint64(*u.QosPriority))
	}
	if u.ArpPriority != nil {
		b = appendVarintField(b, pbArpPriority, uint64(*u.ArpPriority))
	}
	if u.PacketDelayBudgetMS != nil {
		b = appendVarintField(b, pbPdbMS, uint64(*u.PacketDelayBudgetMS))
	}
	if u.GBRDownlinkBPS != nil {
		b = appendVarintField(b, pbGbrDL, *u.GBRDownlinkBPS)
	}
	if u.GBRUplinkBPS != nil {
		b = appendVarintField(b, pbGbrUL, *u.GBRUplinkBPS)
	}
	if u.ClearOverride {
		b = appendVarintField(b, pbClearOverride, protowire.EncodeBool(true))
	}
	return b
}

func appendVarintField(b []byte, num protowire.Number, v uint64) []byte {
	b = protowire.AppendTag(b, num, protowire.VarintType)
	return protowire.AppendVarint(b, v)
}

func (ProtobufCodec) Decode(frame []byte) (*qos.ControlMessage, error) {
	msg := &qos.ControlMessage{}
	b := frame
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return nil, fmt.Errorf("%w: %v", ErrMalformed, protowire.ParseError(n))
		}
		b = b[n:]
		switch num {
		case pbRanIndex:
			v, rest, err := consumeVarint(b, num, typ)
			if err != nil {
				return nil, err
			}
			seq, err := narrow32(num, v)
			if err != nil {
				return nil, err
			}
			msg.SequenceNumber = uint64(seq)
			b = rest
		case pbDrbQos:
			v, rest, err := consumeBytes(b, num, typ)
			if err != nil {
				return nil, err
			}
			u, err := decodeDrbQos(v)
			if err != nil {
				return nil, fmt.Errorf("drb_qos[%d]: %w", len(msg.Updates), err)
			}
			msg.Updates = append(msg.Updates, u)
			b = rest
		case pbProducerID:
			v, rest, err := consumeBytes(b, num, typ)
			if err != nil {
				return nil, err
			}
			msg.ProducerID = string(v)
			b = rest
		default:
			rest, err := skipField(b, num, typ)
			if err != nil {
				return nil, err
			}
			b = rest
		}
	}
	return msg, nil
}

// decodeDrbQos treats a missing rnti or lcid as zero. Both are implicit
// presence fields, so standard proto3 producers omit them when zero.
func decodeDrbQos(b []byte) (qos.Update, error) {
	var u qos.Update
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return qos.Update{}, fmt.Errorf("%w: %v", ErrMalformed, protowire.ParseError(n))
		}
		b = b[n:]
		switch num {
		case pbRnti, pbLcid, pbQosPriority, pbArpPriority, pbPdbMS, pbGbrDL, pbGbrUL, pbClearOverride:
		default:
			rest, err := skipField(b, num, typ)
			if err != nil {
				return qos.Update{}, err
			}
			b = rest
			continue
		}
		v, rest, err := consumeVarint(b, num, typ)
		if err != nil {
			return qos.Update{}, err
		}
		b = rest
		switch num {
		case pbRnti:
			if u.TerminalID, err = narrow32(num, v); err != nil {
				return qos.Update{}, err
			}
		case pbLcid:
			if u.ChannelID, err = narrow32(num, v); err != nil {
				return qos.Update{}, err
			}
		case pbQosPriority:
			if u.QosPriority, err = optional32(num, v); err != nil {
				return qos.Update{}, err
			}
		case pbArpPriority:
			if u.ArpPriority, err = optional32(num, v); err != nil {
				return qos.Update{}, err
			}
		case pbPdbMS:
			if u.PacketDelayBudgetMS, err = optional32(num, v); err != nil {
				return qos.Update{}, err
			}
		case pbGbrDL:
			u.GBRDownlinkBPS = qos.Uint64(v)
		case pbGbrUL:
			u.GBRUplinkBPS = qos.Uint64(v)
		case pbClearOverride:
			u.ClearOverride = protowire.DecodeBool(v)
		}
	}
	return u, nil
}

func consumeVarint(b []byte, num protowire.Number, typ protowire.Type) (uint64, []byte, error) {
	if typ != protowire.VarintType {
		return 0, nil, fmt.Errorf("%w: field %d has wire type %d", ErrWireTypeMismatch, num, typ)
	}
	v, n := protowire.ConsumeVarint(b)
	if n < 0 {
		return 0, nil, fmt.Errorf("%w: field %d: %v", ErrMalformed, num, protowire.ParseError(n))
	}
	return v, b[n:], nil
}

func consumeBytes(b []byte, num protowire.Number, typ protowire.Type) ([]byte, []byte, error) {
	if typ != protowire.BytesType {
		return nil, nil, fmt.Errorf("%w: field %d has wire type %d", ErrWireTypeMismatch, num, typ)
	}
	v, n := protowire.ConsumeBytes(b)
	if n < 0 {
		return nil, nil, fmt.Errorf("%w: field %d: %v", ErrMalformed, num, protowire.ParseError(n))
	}
	return v, b[n:], nil
}

func skipField(b []byte, num protowire.Number, typ protowire.Type) ([]byte, error) {
	n := protowire.ConsumeFieldValue(num, typ, b)
	if n < 0 {
		return nil, fmt.Errorf("%w: field %d: %v", ErrMalformed, num, protowire.ParseError(n))
	}
	return b[n:], nil
}

func narrow32(num protowire.Number, v uint64) (uint32, error) {
	if v > math.MaxUint32 {
		return 0, fmt.Errorf("%w: field %d=%d", ErrValueOverflow, num, v)
	}
	return uint32(v), nil
}

func optional32(num protowire.Number, v uint64) (*uint32, error) {
	n, err := narrow32(num, v)
	if err != nil {
		return nil, err
	}
	return qos.Uint32(n), nil
}
