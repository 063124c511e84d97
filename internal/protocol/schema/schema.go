package schema

import (
	"fmt"

	"github.com/danmuck/qosctl/internal/protocol/tlv"
	"github.com/rs/zerolog/log"
)

// Message type IDs carried in the frame header. Record types only appear as
// nested TLV payloads.
const (
	MsgQosControl uint32 = 1

	RecordDrbQos uint32 = 100
)

// QosControl field IDs.
const (
	FieldSequence   uint16 = 1
	FieldProducerID uint16 = 2
	FieldUpdate     uint16 = 10
)

// DrbQos record field IDs.
const (
	FieldTerminalID    uint16 = 100
	FieldChannelID     uint16 = 101
	FieldQosPriority   uint16 = 102
	FieldArpPriority   uint16 = 103
	FieldPacketDelay   uint16 = 104
	FieldGBRDownlink   uint16 = 105
	FieldGBRUplink     uint16 = 106
	FieldClearOverride uint16 = 107
)

type Requirement struct {
	ID       uint16
	Type     uint8
	Required bool
}

type ValidationError struct {
	MessageType uint32
	FieldID     uint16
	Reason      string
}

func (e ValidationError) Error() string {
	if e.FieldID == 0 {
		return fmt.Sprintf("schema: message_type=%d: %s", e.MessageType, e.Reason)
	}
	return fmt.Sprintf("schema: message_type=%d field=%d: %s", e.MessageType, e.FieldID, e.Reason)
}

var requirements = map[uint32][]Requirement{
	MsgQosControl: {
		{FieldSequence, tlv.TypeU64, true},
		{FieldProducerID, tlv.TypeString, false},
		{FieldUpdate, tlv.TypeBytes, false},
	},
	RecordDrbQos: {
		{FieldTerminalID, tlv.TypeU32, true},
		{FieldChannelID, tlv.TypeU32, true},
		{FieldQosPriority, tlv.TypeU32, false},
		{FieldArpPriority, tlv.TypeU32, false},
		{FieldPacketDelay, tlv.TypeU32, false},
		{FieldGBRDownlink, tlv.TypeU64, false},
		{FieldGBRUplink, tlv.TypeU64, false},
		{FieldClearOverride, tlv.TypeBool, false},
	},
}

// Validate enforces required fields and the type of every known field.
// Unknown fields are ignored so newer producers stay readable.
func Validate(messageType uint32, fields []tlv.Field) error {
	reqs, ok := requirements[messageType]
	if !ok {
		return fail(ValidationError{MessageType: messageType, Reason: "unknown message_type"})
	}
	for _, req := range reqs {
		matches := tlv.All(fields, req.ID)
		if len(matches) == 0 {
			if req.Required {
				return fail(ValidationError{MessageType: messageType, FieldID: req.ID, Reason: "missing required field"})
			}
			continue
		}
		for _, f := range matches {
			if f.Type != req.Type {
				return fail(ValidationError{MessageType: messageType, FieldID: req.ID, Reason: "type mismatch"})
			}
		}
	}
	return nil
}

func fail(err ValidationError) error {
	log.Debug().
		Uint32("message_type", err.MessageType).
		Uint16("field_id", err.FieldID).
		Str("reason", err.Reason).
		Msg("schema validation failed")
	return err
}
