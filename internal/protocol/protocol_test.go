package protocol

import (
	"bytes"
	"errors"
	"math"
	"testing"

	"github.com/danmuck/qosctl/internal/protocol/frame"
	"github.com/danmuck/qosctl/internal/protocol/schema"
	"github.com/danmuck/qosctl/internal/protocol/tlv"
	"github.com/danmuck/qosctl/internal/qos"
	"github.com/danmuck/qosctl/internal/testutil/testlog"
	"google.golang.org/protobuf/encoding/protowire"
)

func allCodecs() []Codec {
	return []Codec{ProtobufCodec{}, NewTLVCodec(frame.DefaultLimits())}
}

// subsetUpdate sets the optional fields selected by mask to v.
func subsetUpdate(mask int, v uint64, clear bool) qos.Update {
	u := qos.Update{TerminalID: 17921, ChannelID: 4, ClearOverride: clear}
	if mask&1 != 0 {
		u.QosPriority = qos.Uint32(uint32(v))
	}
	if mask&2 != 0 {
		u.ArpPriority = qos.Uint32(uint32(v))
	}
	if mask&4 != 0 {
		u.PacketDelayBudgetMS = qos.Uint32(uint32(v))
	}
	if mask&8 != 0 {
		u.GBRDownlinkBPS = qos.Uint64(v * 1_000_000)
	}
	if mask&16 != 0 {
		u.GBRUplinkBPS = qos.Uint64(v)
	}
	return u
}

func TestRoundTripEveryPresenceSubset(t *testing.T) {
	testlog.Start(t)
	for _, c := range allCodecs() {
		for mask := 0; mask < 32; mask++ {
			for _, v := range []uint64{0, 1, 127} {
				for _, clear := range []bool{false, true} {
					in := &qos.ControlMessage{SequenceNumber: uint64(mask), Updates: []qos.Update{subsetUpdate(mask, v, clear)}}
					b, err := c.Encode(in)
					if err != nil {
						t.Fatalf("%s encode mask=%d: %v", c.Name(), mask, err)
					}
					out, err := c.Decode(b)
					if err != nil {
						t.Fatalf("%s decode mask=%d: %v", c.Name(), mask, err)
					}
					if !in.Equal(out) {
						t.Fatalf("%s mask=%d v=%d clear=%v: got %s want %s", c.Name(), mask, v, clear, out.Updates[0], in.Updates[0])
					}
				}
			}
		}
	}
}

func TestExplicitZeroDistinctFromAbsent(t *testing.T) {
	testlog.Start(t)
	for _, c := range allCodecs() {
		withZero := &qos.ControlMessage{Updates: []qos.Update{qos.NewUpdate(1, 4, qos.WithQosPriority(0))}}
		absent := &qos.ControlMessage{Updates: []qos.Update{qos.NewUpdate(1, 4)}}
		a, _ := c.Encode(withZero)
		b, _ := c.Encode(absent)
		if bytes.Equal(a, b) {
			t.Fatalf("%s: explicit zero encoded like absence", c.Name())
		}
		out, err := c.Decode(a)
		if err != nil {
			t.Fatalf("%s decode: %v", c.Name(), err)
		}
		if out.Updates[0].QosPriority == nil || *out.Updates[0].QosPriority != 0 {
			t.Fatalf("%s: explicit zero lost", c.Name())
		}
		out, _ = c.Decode(b)
		if out.Updates[0].QosPriority != nil {
			t.Fatalf("%s: absent field decoded as present", c.Name())
		}
	}
}

func TestBatchOrderProducerAndEmptyBatch(t *testing.T) {
	testlog.Start(t)
	for _, c := range allCodecs() {
		in := &qos.ControlMessage{SequenceNumber: 9, ProducerID: "agent-a", Updates: qos.ExampleBatch()}
		b, err := c.Encode(in)
		if err != nil {
			t.Fatalf("%s encode: %v", c.Name(), err)
		}
		out, err := c.Decode(b)
		if err != nil {
			t.Fatalf("%s decode: %v", c.Name(), err)
		}
		if !in.Equal(out) {
			t.Fatalf("%s: example batch mismatch", c.Name())
		}

		empty := &qos.ControlMessage{SequenceNumber: 3}
		b, err = c.Encode(empty)
		if err != nil {
			t.Fatalf("%s encode empty: %v", c.Name(), err)
		}
		out, err = c.Decode(b)
		if err != nil || out.SequenceNumber != 3 || out.Len() != 0 || out.ProducerID != "" {
			t.Fatalf("%s: unexpected empty batch %+v %v", c.Name(), out, err)
		}
	}
}

func TestEncodeIsDeterministicAndDoesNotMutate(t *testing.T) {
	testlog.Start(t)
	for _, c := range allCodecs() {
		in := &qos.ControlMessage{SequenceNumber: 1, Updates: qos.ExampleBatch()}
		before := *in.Updates[0].QosPriority
		a, _ := c.Encode(in)
		b, _ := c.Encode(in)
		if !bytes.Equal(a, b) {
			t.Fatalf("%s: encoding not deterministic", c.Name())
		}
		if *in.Updates[0].QosPriority != before || len(in.Updates) != 3 {
			t.Fatalf("%s: encoder mutated input", c.Name())
		}
	}
}

func TestProtobufGoldenBytes(t *testing.T) {
	testlog.Start(t)
	msg := &qos.ControlMessage{Updates: []qos.Update{qos.SetPriority(17921, 4, 1, qos.Uint32(1))}}
	got, err := ProtobufCodec{}.Encode(msg)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	want := []byte{
		0x08, 0x00, // ran_index = 0
		0x12, 0x0a, // drb_qos, 10 bytes
		0x08, 0x81, 0x8c, 0x01, // rnti = 17921
		0x10, 0x04, // lcid = 4
		0x18, 0x01, // qos_priority = 1
		0x20, 0x01, // arp_priority = 1
	}
	if !bytes.Equal(got, want) {
		t.Fatalf("golden mismatch:\n got %x\nwant %x", got, want)
	}
}

func TestProtobufSkipsUnknownFields(t *testing.T) {
	testlog.Start(t)
	b, _ := ProtobufCodec{}.Encode(&qos.ControlMessage{SequenceNumber: 5, Updates: []qos.Update{qos.Clear(7, 4)}})
	b = protowire.AppendTag(b, 99, protowire.BytesType)
	b = protowire.AppendString(b, "future")
	b = protowire.AppendTag(b, 98, protowire.Fixed64Type)
	b = protowire.AppendFixed64(b, 1)
	out, err := ProtobufCodec{}.Decode(b)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if out.SequenceNumber != 5 || !out.Updates[0].ClearOverride {
		t.Fatalf("unexpected message: %+v", out)
	}
}

func TestProtobufRejectsMalformed(t *testing.T) {
	testlog.Start(t)
	good, _ := ProtobufCodec{}.Encode(&qos.ControlMessage{Updates: []qos.Update{qos.Clear(7, 4)}})

	if _, err := (ProtobufCodec{}).Decode(good[:len(good)-1]); !errors.Is(err, ErrMalformed) {
		t.Fatalf("expected ErrMalformed for truncation, got %v", err)
	}

	wrongType := protowire.AppendTag(nil, pbRanIndex, protowire.BytesType)
	wrongType = protowire.AppendBytes(wrongType, []byte{1})
	if _, err := (ProtobufCodec{}).Decode(wrongType); !errors.Is(err, ErrWireTypeMismatch) {
		t.Fatalf("expected ErrWireTypeMismatch, got %v", err)
	}

	wideSeq := protowire.AppendTag(nil, pbRanIndex, protowire.VarintType)
	wideSeq = protowire.AppendVarint(wideSeq, math.MaxUint32+1)
	if _, err := (ProtobufCodec{}).Decode(wideSeq); !errors.Is(err, ErrValueOverflow) {
		t.Fatalf("expected ErrValueOverflow for ran_index, got %v", err)
	}

	wide := protowire.AppendTag(nil, pbRnti, protowire.VarintType)
	wide = protowire.AppendVarint(wide, 1<<40)
	wide = protowire.AppendTag(wide, pbLcid, protowire.VarintType)
	wide = protowire.AppendVarint(wide, 4)
	frame := protowire.AppendTag(nil, pbDrbQos, protowire.BytesType)
	frame = protowire.AppendBytes(frame, wide)
	if _, err := (ProtobufCodec{}).Decode(frame); !errors.Is(err, ErrValueOverflow) {
		t.Fatalf("expected ErrValueOverflow, got %v", err)
	}
}

func TestProtobufSequenceOverflow(t *testing.T) {
	testlog.Start(t)
	_, err := ProtobufCodec{}.Encode(&qos.ControlMessage{SequenceNumber: 1 << 32})
	if !errors.Is(err, ErrValueOverflow) {
		t.Fatalf("expected ErrValueOverflow, got %v", err)
	}
	if _, err := (ProtobufCodec{}).Encode(nil); !errors.Is(err, ErrNilMessage) {
		t.Fatalf("expected ErrNilMessage, got %v", err)
	}
}

func TestTLVRejectsMalformed(t *testing.T) {
	testlog.Start(t)
	c := NewTLVCodec(frame.DefaultLimits())

	if _, err := c.Decode([]byte{1, 2, 3}); !errors.Is(err, ErrMalformed) || !errors.Is(err, frame.ErrShortHeader) {
		t.Fatalf("expected wrapped ErrShortHeader, got %v", err)
	}

	payload := tlv.EncodeFields([]tlv.Field{tlv.U64(schema.FieldSequence, 2)})
	mismatch, _ := frame.Marshal(frame.Frame{
		Header:  frame.Header{MessageID: 1, MessageType: schema.MsgQosControl},
		Payload: payload,
	}, frame.DefaultLimits())
	if _, err := c.Decode(mismatch); !errors.Is(err, ErrSequenceMismatch) {
		t.Fatalf("expected ErrSequenceMismatch, got %v", err)
	}

	wrongType, _ := frame.Marshal(frame.Frame{
		Header:  frame.Header{MessageID: 2, MessageType: 7},
		Payload: payload,
	}, frame.DefaultLimits())
	if _, err := c.Decode(wrongType); !errors.Is(err, ErrMessageTypeMismatch) {
		t.Fatalf("expected ErrMessageTypeMismatch, got %v", err)
	}

	badRecord := tlv.EncodeFields([]tlv.Field{
		tlv.U64(schema.FieldSequence, 2),
		tlv.Bytes(schema.FieldUpdate, tlv.EncodeFields([]tlv.Field{tlv.U32(schema.FieldTerminalID, 1)})),
	})
	missing, _ := frame.Marshal(frame.Frame{
		Header:  frame.Header{MessageID: 2, MessageType: schema.MsgQosControl},
		Payload: badRecord,
	}, frame.DefaultLimits())
	_, err := c.Decode(missing)
	var ve schema.ValidationError
	if !errors.As(err, &ve) || ve.FieldID != schema.FieldChannelID {
		t.Fatalf("expected channel ValidationError, got %v", err)
	}
}

func TestLookup(t *testing.T) {
	testlog.Start(t)
	c, err := Lookup("")
	if err != nil || c.Name() != CodecProtobuf {
		t.Fatalf("expected default protobuf codec, got %v %v", c, err)
	}
	c, err = Lookup(" TLV ")
	if err != nil || c.Name() != CodecTLV {
		t.Fatalf("expected tlv codec, got %v %v", c, err)
	}
	if _, err := Lookup("json"); !errors.Is(err, ErrUnknownCodec) {
		t.Fatalf("expected ErrUnknownCodec, got %v", err)
	}
	if names := Names(); len(names) < 2 || names[0] != CodecProtobuf || names[1] != CodecTLV {
		t.Fatalf("unexpected names: %v", names)
	}
}

type renamedCodec struct {
	Codec
	name string
}

func (c renamedCodec) Name() string { return c.name }

func TestRegisterCodec(t *testing.T) {
	testlog.Start(t)
	small := frame.Limits{MaxPayloadBytes: 64}
	Register(renamedCodec{Codec: NewTLVCodec(small), name: "tlv-small"})

	c, err := Lookup("TLV-SMALL")
	if err != nil {
		t.Fatalf("lookup registered codec: %v", err)
	}
	big := &qos.ControlMessage{ProducerID: string(make([]byte, 128))}
	if _, err := c.Encode(big); !errors.Is(err, frame.ErrPayloadTooLarge) {
		t.Fatalf("expected ErrPayloadTooLarge from registered limits, got %v", err)
	}
}

func TestProtobufDecodeImplicitZeroBearer(t *testing.T) {
	testlog.Start(t)
	// A proto3 producer omits rnti and lcid when they are zero.
	rec := protowire.AppendTag(nil, pbQosPriority, protowire.VarintType)
	rec = protowire.AppendVarint(rec, 3)
	frame := protowire.AppendTag(nil, pbRanIndex, protowire.VarintType)
	frame = protowire.AppendVarint(frame, 9)
	frame = protowire.AppendTag(frame, pbDrbQos, protowire.BytesType)
	frame = protowire.AppendBytes(frame, rec)
	frame = protowire.AppendTag(frame, pbDrbQos, protowire.BytesType)
	frame = protowire.AppendBytes(frame, nil)

	msg, err := ProtobufCodec{}.Decode(frame)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if msg.SequenceNumber != 9 || len(msg.Updates) != 2 {
		t.Fatalf("unexpected message: %+v", msg)
	}
	if want := qos.NewUpdate(0, 0, qos.WithQosPriority(3)); !msg.Updates[0].Equal(want) {
		t.Fatalf("record 0: got %s want %s", msg.Updates[0], want)
	}
	if want := qos.NewUpdate(0, 0); !msg.Updates[1].Equal(want) {
		t.Fatalf("record 1: got %s want %s", msg.Updates[1], want)
	}
}
