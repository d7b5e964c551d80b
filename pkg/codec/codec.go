// Package codec converts automata between their validated form, the raw
// Definition text and the structured Document exchanged as JSON or YAML.
package codec

import (
	"bytes"
	"encoding/json"
	"fmt"
	"path/filepath"
	"reflect"
	"sort"
	"strings"

	"github.com/aretw0/automata/internal/validator"
	"github.com/aretw0/automata/pkg/domain"
	"github.com/mitchellh/mapstructure"
	"gopkg.in/yaml.v3"
)

// Format selects a document encoding.
type Format string

const (
	FormatJSON Format = "json"
	FormatYAML Format = "yaml"
)

// FormatFromPath picks the format from a file extension, defaulting to JSON.
func FormatFromPath(path string) Format {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return FormatYAML
	default:
		return FormatJSON
	}
}

// ParseFormat accepts "json", "yaml" and "yml".
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "json":
		return FormatJSON, nil
	case "yaml", "yml":
		return FormatYAML, nil
	default:
		return "", fmt.Errorf("unknown format %q (expected json or yaml)", s)
	}
}

// Encode writes doc in the given format.
func Encode(doc domain.Document, format Format) ([]byte, error) {
	switch format {
	case FormatYAML:
		var buf bytes.Buffer
		enc := yaml.NewEncoder(&buf)
		enc.SetIndent(2)
		if err := enc.Encode(doc); err != nil {
			return nil, fmt.Errorf("failed to encode yaml: %w", err)
		}
		if err := enc.Close(); err != nil {
			return nil, fmt.Errorf("failed to encode yaml: %w", err)
		}
		return buf.Bytes(), nil
	default:
		data, err := json.MarshalIndent(doc, "", "  ")
		if err != nil {
			return nil, fmt.Errorf("failed to encode json: %w", err)
		}
		return data, nil
	}
}

// Decode reads a document. List fields may be arrays or comma separated strings.
func Decode(data []byte, format Format) (domain.Document, error) {
	var raw map[string]any
	var err error
	if format == FormatYAML {
		err = yaml.Unmarshal(data, &raw)
	} else {
		err = json.Unmarshal(data, &raw)
	}
	if err != nil {
		return domain.Document{}, fmt.Errorf("failed to parse %s document: %w", format, err)
	}
	return DecodeMap(raw)
}

// DecodeMap builds a Document from loosely typed data (JSON objects, YAML
// mappings, frontmatter, MCP arguments).
func DecodeMap(raw map[string]any) (domain.Document, error) {
	var doc domain.Document
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		DecodeHook: mapstructure.ComposeDecodeHookFunc(
			modeHook,
			mapstructure.StringToSliceHookFunc(","),
			trimHook,
		),
		WeaklyTypedInput: true,
		Result:           &doc,
	})
	if err != nil {
		return domain.Document{}, err
	}
	if err := dec.Decode(raw); err != nil {
		return domain.Document{}, fmt.Errorf("%w: %v", domain.ErrInvalidDefinition, err)
	}
	if doc.Type == "" {
		doc.Type = DetectMode(doc.Transitions)
	}
	return doc, nil
}

func modeHook(from, to reflect.Type, data any) (any, error) {
	if to != reflect.TypeOf(domain.Mode("")) || from.Kind() != reflect.String {
		return data, nil
	}
	s := reflect.ValueOf(data).String()
	if s == "" {
		return domain.Mode(""), nil
	}
	return domain.ParseMode(s)
}

func trimHook(from, to reflect.Type, data any) (any, error) {
	items, ok := data.([]string)
	if !ok {
		return data, nil
	}
	out := items[:0]
	for _, s := range items {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out, nil
}

// DetectMode guesses the table variant from the shape of the values:
// strings mean DFA ("state,symbol": "next"), nested maps mean NFA.
func DetectMode(transitions map[string]any) domain.Mode {
	for _, v := range transitions {
		switch v.(type) {
		case string:
			return domain.ModeDFA
		default:
			return domain.ModeNFA
		}
	}
	return domain.ModeDFA
}

// FromAutomaton exports a validated automaton.
func FromAutomaton(a *domain.Automaton) domain.Document {
	doc := domain.Document{
		Type:         a.Mode(),
		States:       append([]string{}, a.States...),
		Alphabet:     append([]string{}, a.Alphabet...),
		StartState:   a.Start,
		AcceptStates: a.Ordered(a.Accept),
		Transitions:  make(map[string]any),
	}

	switch t := a.Transitions.(type) {
	case domain.DFATable:
		for k, next := range t {
			doc.Transitions[k.State+","+k.Symbol] = next
		}
	case domain.NFATable:
		for state, bySymbol := range t {
			out := make(map[string]any, len(bySymbol))
			for symbol, targets := range bySymbol {
				out[symbol] = a.Ordered(targets)
			}
			doc.Transitions[state] = out
		}
	}
	return doc
}

// ToDefinition renders a document back into the raw text fields.
// Transition lines follow declaration order of states and symbols.
func ToDefinition(doc domain.Document) (domain.Definition, error) {
	mode := doc.Type
	if mode == "" {
		mode = DetectMode(doc.Transitions)
	}

	def := domain.Definition{
		Mode:         mode,
		States:       strings.Join(doc.States, ","),
		Alphabet:     strings.Join(doc.Alphabet, ","),
		StartState:   doc.StartState,
		AcceptStates: strings.Join(doc.AcceptStates, ","),
	}

	var lines []string
	var err error
	if mode == domain.ModeNFA {
		lines, err = nfaLines(doc)
	} else {
		lines, err = dfaLines(doc)
	}
	if err != nil {
		return domain.Definition{}, err
	}
	def.Transitions = strings.Join(lines, "\n")
	return def, nil
}

// ToAutomaton validates a document.
func ToAutomaton(doc domain.Document, opts ...validator.Option) (*domain.Automaton, error) {
	def, err := ToDefinition(doc)
	if err != nil {
		return nil, err
	}
	return validator.Parse(def, opts...)
}

// FromDefinition validates raw text and exports it as a document.
func FromDefinition(def domain.Definition, opts ...validator.Option) (domain.Document, error) {
	a, err := validator.Parse(def, opts...)
	if err != nil {
		return domain.Document{}, err
	}
	return FromAutomaton(a), nil
}

func dfaLines(doc domain.Document) ([]string, error) {
	var table map[string]string
	if err := mapstructure.WeakDecode(doc.Transitions, &table); err != nil {
		return nil, fmt.Errorf("%w: dfa transitions must map \"state,symbol\" to a state: %v", domain.ErrInvalidDefinition, err)
	}

	type line struct {
		state, symbol, next string
	}
	parsed := make([]line, 0, len(table))
	for key, next := range table {
		state, symbol, ok := strings.Cut(key, ",")
		if !ok {
			return nil, fmt.Errorf("%w: dfa transition key %q must be \"state,symbol\"", domain.ErrInvalidDefinition, key)
		}
		parsed = append(parsed, line{strings.TrimSpace(state), strings.TrimSpace(symbol), strings.TrimSpace(next)})
	}

	stateRank, symbolRank := rank(doc.States), rank(doc.Alphabet)
	sort.Slice(parsed, func(i, j int) bool {
		a, b := parsed[i], parsed[j]
		if c := compareRank(stateRank, a.state, b.state); c != 0 {
			return c < 0
		}
		return compareRank(symbolRank, a.symbol, b.symbol) < 0
	})

	out := make([]string, len(parsed))
	for i, l := range parsed {
		out[i] = l.state + "," + l.symbol + "," + l.next
	}
	return out, nil
}

func nfaLines(doc domain.Document) ([]string, error) {
	var table map[string]map[string][]string
	if err := mapstructure.WeakDecode(doc.Transitions, &table); err != nil {
		return nil, fmt.Errorf("%w: nfa transitions must map state to symbol to states: %v", domain.ErrInvalidDefinition, err)
	}

	stateRank, symbolRank := rank(doc.States), rank(doc.Alphabet)
	states := make([]string, 0, len(table))
	for s := range table {
		states = append(states, s)
	}
	sort.Slice(states, func(i, j int) bool { return compareRank(stateRank, states[i], states[j]) < 0 })

	var out []string
	for _, state := range states {
		bySymbol := table[state]
		symbols := make([]string, 0, len(bySymbol))
		for sym := range bySymbol {
			symbols = append(symbols, sym)
		}
		sort.Slice(symbols, func(i, j int) bool { return compareRank(symbolRank, symbols[i], symbols[j]) < 0 })

		for _, sym := range symbols {
			var targets []string
			for _, t := range bySymbol[sym] {
				targets = append(targets, strings.Split(t, ";")...)
			}
			if sym == domain.EpsilonGlyph {
				sym = domain.Epsilon
			}
			out = append(out, state+","+sym+","+strings.Join(targets, ";"))
		}
	}
	return out, nil
}

func rank(items []string) map[string]int {
	r := make(map[string]int, len(items))
	for i, s := range items {
		if _, ok := r[s]; !ok {
			r[s] = i
		}
	}
	return r
}

// compareRank orders declared items by position, then undeclared ones lexically.
// Epsilon sorts first.
func compareRank(r map[string]int, a, b string) int {
	ra, oka := r[a]
	rb, okb := r[b]
	if a == domain.Epsilon || a == domain.EpsilonGlyph {
		ra, oka = -1, true
	}
	if b == domain.Epsilon || b == domain.EpsilonGlyph {
		rb, okb = -1, true
	}
	switch {
	case oka && okb:
		return ra - rb
	case oka:
		return -1
	case okb:
		return 1
	default:
		return strings.Compare(a, b)
	}
}
