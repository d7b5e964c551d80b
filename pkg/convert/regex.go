package convert

import (
	"fmt"
	"strconv"

	"github.com/aretw0/automata/pkg/domain"
)

// FromRegex compiles a regular expression into an epsilon-NFA by Thompson
// construction. Supported syntax: literals, alternation '|', implicit
// concatenation, Kleene star '*' and parentheses. A backslash escapes the
// next character. States are named q1, q2, ... in creation order.
func FromRegex(expr string) (*domain.Automaton, error) {
	p := &regexParser{
		input: []rune(expr),
		b: &thompson{
			table:   domain.NFATable{},
			symbols: domain.NewStateSet(),
		},
	}
	if len(p.input) == 0 {
		return nil, fmt.Errorf("%w: empty regex", domain.ErrInvalidRegex)
	}

	frag, err := p.alternation()
	if err != nil {
		return nil, err
	}
	if p.pos < len(p.input) {
		return nil, p.errorf("unexpected character %q", p.input[p.pos])
	}

	return &domain.Automaton{
		States:      p.b.states,
		Alphabet:    p.b.alphabet,
		Start:       frag.start,
		Accept:      domain.NewStateSet(frag.accept),
		Transitions: p.b.table,
	}, nil
}

type fragment struct {
	start, accept string
}

type thompson struct {
	states   []string
	alphabet []string
	symbols  domain.StateSet
	table    domain.NFATable
}

func (b *thompson) state() string {
	name := "q" + strconv.Itoa(len(b.states)+1)
	b.states = append(b.states, name)
	return name
}

func (b *thompson) symbol(sym string) fragment {
	if b.symbols.Add(sym) {
		b.alphabet = append(b.alphabet, sym)
	}
	f := fragment{start: b.state(), accept: b.state()}
	b.table.Add(f.start, sym, f.accept)
	return f
}

func (b *thompson) concat(left, right fragment) fragment {
	b.table.Add(left.accept, domain.Epsilon, right.start)
	return fragment{start: left.start, accept: right.accept}
}

func (b *thompson) union(left, right fragment) fragment {
	f := fragment{start: b.state(), accept: b.state()}
	b.table.Add(f.start, domain.Epsilon, left.start, right.start)
	b.table.Add(left.accept, domain.Epsilon, f.accept)
	b.table.Add(right.accept, domain.Epsilon, f.accept)
	return f
}

func (b *thompson) star(inner fragment) fragment {
	f := fragment{start: b.state(), accept: b.state()}
	b.table.Add(f.start, domain.Epsilon, inner.start, f.accept)
	b.table.Add(inner.accept, domain.Epsilon, inner.start, f.accept)
	return f
}

type regexParser struct {
	input []rune
	pos   int
	b     *thompson
}

func (p *regexParser) errorf(format string, args ...any) error {
	return fmt.Errorf("%w: %s at position %d", domain.ErrInvalidRegex, fmt.Sprintf(format, args...), p.pos)
}

func (p *regexParser) peek() (rune, bool) {
	if p.pos >= len(p.input) {
		return 0, false
	}
	return p.input[p.pos], true
}

func (p *regexParser) alternation() (fragment, error) {
	left, err := p.concatenation()
	if err != nil {
		return fragment{}, err
	}
	for {
		r, ok := p.peek()
		if !ok || r != '|' {
			return left, nil
		}
		p.pos++
		right, err := p.concatenation()
		if err != nil {
			return fragment{}, err
		}
		left = p.b.union(left, right)
	}
}

func (p *regexParser) concatenation() (fragment, error) {
	left, err := p.kleene()
	if err != nil {
		return fragment{}, err
	}
	for {
		r, ok := p.peek()
		if !ok || r == '|' || r == ')' {
			return left, nil
		}
		right, err := p.kleene()
		if err != nil {
			return fragment{}, err
		}
		left = p.b.concat(left, right)
	}
}

func (p *regexParser) kleene() (fragment, error) {
	f, err := p.atom()
	if err != nil {
		return fragment{}, err
	}
	for {
		r, ok := p.peek()
		if !ok || r != '*' {
			return f, nil
		}
		p.pos++
		f = p.b.star(f)
	}
}

func (p *regexParser) atom() (fragment, error) {
	r, ok := p.peek()
	if !ok {
		return fragment{}, p.errorf("unexpected end of regex")
	}

	switch r {
	case '(':
		p.pos++
		f, err := p.alternation()
		if err != nil {
			return fragment{}, err
		}
		if r, ok := p.peek(); !ok || r != ')' {
			return fragment{}, p.errorf("missing closing parenthesis")
		}
		p.pos++
		return f, nil
	case ')', '|', '*':
		return fragment{}, p.errorf("unexpected character %q", r)
	case ',', ';', 'ε', ' ', '\t', '\n', '\r':
		// Not representable as an alphabet symbol.
		return fragment{}, p.errorf("unexpected character %q", r)
	case '\\':
		p.pos++
		escaped, ok := p.peek()
		if !ok {
			return fragment{}, p.errorf("unexpected end of regex")
		}
		p.pos++
		return p.b.symbol(string(escaped)), nil
	default:
		p.pos++
		return p.b.symbol(string(r)), nil
	}
}
