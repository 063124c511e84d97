package protocol

import "errors"

var (
	ErrNilMessage          = errors.New("protocol: nil message")
	ErrUnknownCodec        = errors.New("protocol: unknown codec")
	ErrMalformed           = errors.New("protocol: malformed frame")
	ErrWireTypeMismatch    = errors.New("protocol: wire type mismatch")
	ErrValueOverflow       = errors.New("protocol: value overflows field width")
	ErrMessageTypeMismatch = errors.New("protocol: message type mismatch")
	ErrSequenceMismatch    = errors.New("protocol: header and payload sequence differ")
)
