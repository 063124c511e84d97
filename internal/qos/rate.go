package qos

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// BPSPerMbps is the Mbps to bps multiplier.
const BPSPerMbps = 1_000_000

const mbpsFractionDigits = 6

var (
	ErrInvalidRate   = errors.New("qos: invalid rate")
	ErrRatePrecision = errors.New("qos: rate finer than 1 bps")
	ErrRateOverflow  = errors.New("qos: rate overflows uint64")
)

// MbpsToBPS converts a decimal Mbps token to bits per second.
//
// The conversion works on the decimal digits so inputs such as "2.5" or
// "0.000001" are exact. Negative values, exponents and more than six
// significant fractional digits are rejected.
func MbpsToBPS(raw string) (uint64, error) {
	s := strings.TrimSpace(raw)
	s = strings.TrimPrefix(s, "+")
	if s == "" {
		return 0, fmt.Errorf("%w: empty", ErrInvalidRate)
	}
	whole, frac, _ := strings.Cut(s, ".")
	if whole == "" && frac == "" {
		return 0, fmt.Errorf("%w: %q", ErrInvalidRate, raw)
	}
	if !digits(whole) || !digits(frac) {
		return 0, fmt.Errorf("%w: %q", ErrInvalidRate, raw)
	}
	if len(frac) > mbpsFractionDigits {
		if strings.Trim(frac[mbpsFractionDigits:], "0") != "" {
			return 0, fmt.Errorf("%w: %q", ErrRatePrecision, raw)
		}
		frac = frac[:mbpsFractionDigits]
	}
	frac += strings.Repeat("0", mbpsFractionDigits-len(frac))

	var w uint64
	if whole != "" {
		v, err := strconv.ParseUint(whole, 10, 64)
		if err != nil {
			return 0, fmt.Errorf("%w: %q", ErrRateOverflow, raw)
		}
		w = v
	}
	f, err := strconv.ParseUint(frac, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: %q", ErrInvalidRate, raw)
	}
	if w > (math.MaxUint64-f)/BPSPerMbps {
		return 0, fmt.Errorf("%w: %q", ErrRateOverflow, raw)
	}
	return w*BPSPerMbps + f, nil
}

// FormatMbps renders bps as Mbps without trailing zeros.
func FormatMbps(bps uint64) string {
	whole := bps / BPSPerMbps
	frac := bps % BPSPerMbps
	if frac == 0 {
		return strconv.FormatUint(whole, 10)
	}
	f := strings.TrimRight(fmt.Sprintf("%06d", frac), "0")
	return strconv.FormatUint(whole, 10) + "." + f
}

func digits(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}
