package invoice

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

const (
	PrefixCustomer = "CUS"
	PrefixProducer = "PRD"
	PrefixPackage  = "PKG"
)

// Prefix returns the number prefix for an invoice type.
func Prefix(t Type) (string, error) {
	switch t {
	case TypeCustomer:
		return PrefixCustomer, nil
	case TypeProducer:
		return PrefixProducer, nil
	case TypePackagePurchase:
		return PrefixPackage, nil
	default:
		return "", ErrInvalidArgument
	}
}

// SequencePeriod is the YYYYMM segment a number sequence is scoped to.
func SequencePeriod(at time.Time) string {
	return at.Format("200601")
}

// FormatNumber renders PREFIX-YYYYMM-NNNNN.
func FormatNumber(prefix string, at time.Time, seq int64) string {
	return fmt.Sprintf("%s-%s-%05d", prefix, SequencePeriod(at), seq)
}

// ParseNumber splits an invoice number into its parts.
func ParseNumber(n string) (prefix, period string, seq int64, err error) {
	parts := strings.Split(n, "-")
	if len(parts) != 3 || len(parts[1]) != 6 {
		return "", "", 0, fmt.Errorf("invoice number %q: %w", n, ErrInvalidArgument)
	}
	seq, err = strconv.ParseInt(parts[2], 10, 64)
	if err != nil || seq <= 0 {
		return "", "", 0, fmt.Errorf("invoice number %q: %w", n, ErrInvalidArgument)
	}
	return parts[0], parts[1], seq, nil
}
