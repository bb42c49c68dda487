package alignment

import (
	"fmt"
	"strings"
)

// Format selects the response shape the oracle is asked for and parsed as.
type Format string

const (
	FormatDelimited  Format = "delimited"
	FormatStructured Format = "structured"
)

// DefaultDelimiter separates fields in the delimited shape.
const DefaultDelimiter = ";"

// ParseFormat resolves a configured format name. Blank selects delimited.
func ParseFormat(value string) (Format, error) {
	switch Format(strings.ToLower(strings.TrimSpace(value))) {
	case "", FormatDelimited:
		return FormatDelimited, nil
	case FormatStructured:
		return FormatStructured, nil
	default:
		return "", fmt.Errorf("unknown response format %q (want delimited or structured)", value)
	}
}

func (f Format) String() string {
	return string(f)
}
