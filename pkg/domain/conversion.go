package domain

import (
	"fmt"
	"strings"
)

// Conversion names a transformation a converter can perform.
type Conversion string

const (
	ConversionNFAToDFA   Conversion = "nfa-to-dfa"   // Subset construction
	ConversionMinimize   Conversion = "minimize"     // DFA minimization
	ConversionRegexToNFA Conversion = "regex-to-nfa" // Thompson construction
)

// Conversions lists every supported conversion.
var Conversions = []Conversion{ConversionNFAToDFA, ConversionMinimize, ConversionRegexToNFA}

// ParseConversion accepts the canonical names plus a few short aliases.
func ParseConversion(s string) (Conversion, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "nfa-to-dfa", "determinize", "subset":
		return ConversionNFAToDFA, nil
	case "minimize", "minimise", "min":
		return ConversionMinimize, nil
	case "regex-to-nfa", "regex":
		return ConversionRegexToNFA, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownConversion, s)
	}
}

// Operation is the history label of the conversion.
func (c Conversion) Operation() string {
	switch c {
	case ConversionNFAToDFA:
		return "NFA to DFA conversion"
	case ConversionMinimize:
		return "DFA minimization"
	case ConversionRegexToNFA:
		return "Regex to NFA conversion"
	default:
		return string(c)
	}
}
