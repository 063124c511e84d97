package tlv

import (
	"bytes"
	"errors"
	"testing"
)

func TestEncodeDecodeFieldsRoundTripPreservesUnknown(t *testing.T) {
	in := []Field{
		U32(100, 17921),
		{ID: 9999, Type: TypeBytes, Value: []byte{0xAA, 0xBB}}, // unknown field id
	}
	out, err := DecodeFields(EncodeFields(in))
	if err != nil {
		t.Fatalf("decode fields: %v", err)
	}
	if len(out) != 2 {
		t.Fatalf("expected 2 fields, got %d", len(out))
	}
	if out[1].ID != 9999 || out[1].Type != TypeBytes || !bytes.Equal(out[1].Value, []byte{0xAA, 0xBB}) {
		t.Fatalf("unknown field not preserved: %+v", out[1])
	}
	v, err := out[0].AsU32()
	if err != nil || v != 17921 {
		t.Fatalf("unexpected u32: %d %v", v, err)
	}
}

func TestZeroValuesAreEncoded(t *testing.T) {
	b := EncodeFields([]Field{U32(1, 0), U64(2, 0), Bool(3, false)})
	if len(b) != 3*HeaderLen+4+8+1 {
		t.Fatalf("unexpected encoded length: %d", len(b))
	}
	out, err := DecodeFields(b)
	if err != nil {
		t.Fatalf("decode fields: %v", err)
	}
	if _, ok := GetField(out, 2); !ok {
		t.Fatalf("expected explicit zero field to be present")
	}
}

func TestAccessorTypeMismatch(t *testing.T) {
	_, err := U64(1, 5).AsU32()
	if !errors.Is(err, ErrTypeMismatch) {
		t.Fatalf("expected ErrTypeMismatch, got %v", err)
	}
	_, err = Field{ID: 1, Type: TypeU32, Value: []byte{1}}.AsU32()
	if !errors.Is(err, ErrInvalidLength) {
		t.Fatalf("expected ErrInvalidLength, got %v", err)
	}
	_, err = Field{ID: 1, Type: TypeBool, Value: []byte{2}}.AsBool()
	if !errors.Is(err, ErrInvalidBool) {
		t.Fatalf("expected ErrInvalidBool, got %v", err)
	}
}

func TestAllKeepsWireOrder(t *testing.T) {
	fields := []Field{String(10, "a"), U32(1, 1), String(10, "b")}
	got := All(fields, 10)
	if len(got) != 2 || string(got[0].Value) != "a" || string(got[1].Value) != "b" {
		t.Fatalf("unexpected order: %+v", got)
	}
}

func TestDecodeFieldsMalformedHeaderIsDeterministic(t *testing.T) {
	_, err := DecodeFields([]byte{1, 2, 3})
	if !errors.Is(err, ErrShortFieldHeader) {
		t.Fatalf("expected ErrShortFieldHeader, got %v", err)
	}
}

func TestDecodeFieldsMalformedLengthIsDeterministic(t *testing.T) {
	// id=1, type=string, len=5, value only 2 bytes
	payload := []byte{0, 1, TypeString, 0, 0, 0, 5, 'a', 'b'}
	_, err := DecodeFields(payload)
	if !errors.Is(err, ErrShortFieldValue) {
		t.Fatalf("expected ErrShortFieldValue, got %v", err)
	}
}
