package memory

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/custodia-labs/docrag/internal/core/ports/driven"
)

// predicate is a compiled RediSearch filter over a row's attributes.
type predicate interface {
	match(row attrs) bool
}

// attrs exposes the filterable fields of a row.
type attrs interface {
	number(field string) (float64, bool)
	tag(field string) (string, bool)
}

type (
	anyOf    []predicate
	allOf    []predicate
	negated  struct{ p predicate }
	matchAll struct{}

	numericRange struct {
		field                    string
		lo, hi                   float64
		loExclusive, hiExclusive bool
	}

	tagSet struct {
		field  string
		values []string
	}
)

func (a anyOf) match(r attrs) bool {
	for _, p := range a {
		if p.match(r) {
			return true
		}
	}
	return false
}

func (a allOf) match(r attrs) bool {
	for _, p := range a {
		if !p.match(r) {
			return false
		}
	}
	return true
}

func (n negated) match(r attrs) bool { return !n.p.match(r) }

func (matchAll) match(attrs) bool { return true }

func (q numericRange) match(r attrs) bool {
	v, ok := r.number(q.field)
	if !ok {
		return false
	}
	if v < q.lo || (q.loExclusive && v == q.lo) {
		return false
	}
	if v > q.hi || (q.hiExclusive && v == q.hi) {
		return false
	}
	return true
}

// caseSensitiveTags lists the TAG fields the Redis schema declares
// CASESENSITIVE. Other tags compare case-insensitively, as RediSearch does.
var caseSensitiveTags = map[string]bool{
	driven.FieldDepartment: true,
}

func (q tagSet) match(r attrs) bool {
	v, ok := r.tag(q.field)
	if !ok {
		return false
	}
	exact := caseSensitiveTags[q.field]
	for _, want := range q.values {
		if v == want || (!exact && strings.EqualFold(v, want)) {
			return true
		}
	}
	return false
}

// compilePredicate parses the subset of the RediSearch query language used
// for filtering: numeric ranges, tag sets, implicit AND, "|" for OR,
// parentheses, "-" for negation and "*". An empty string matches every row.
func compilePredicate(s string) (predicate, error) {
	p := &predParser{src: []rune(s)}
	p.skipSpace()
	if p.eof() {
		return matchAll{}, nil
	}
	expr, err := p.union()
	if err != nil {
		return nil, err
	}
	p.skipSpace()
	if !p.eof() {
		return nil, p.errorf("unexpected %q", p.peek())
	}
	return expr, nil
}

type predParser struct {
	src []rune
	pos int
}

func (p *predParser) eof() bool  { return p.pos >= len(p.src) }
func (p *predParser) peek() rune { return p.src[p.pos] }

func (p *predParser) skipSpace() {
	for !p.eof() && (p.peek() == ' ' || p.peek() == '\t' || p.peek() == '\n') {
		p.pos++
	}
}

func (p *predParser) errorf(format string, args ...any) error {
	return fmt.Errorf("predicate at offset %d: %s", p.pos, fmt.Sprintf(format, args...))
}

func (p *predParser) union() (predicate, error) {
	var alts anyOf
	for {
		term, err := p.intersection()
		if err != nil {
			return nil, err
		}
		alts = append(alts, term)
		p.skipSpace()
		if p.eof() || p.peek() != '|' {
			break
		}
		p.pos++
	}
	if len(alts) == 1 {
		return alts[0], nil
	}
	return alts, nil
}

func (p *predParser) intersection() (predicate, error) {
	var all allOf
	for {
		p.skipSpace()
		if p.eof() || p.peek() == '|' || p.peek() == ')' {
			break
		}
		f, err := p.factor()
		if err != nil {
			return nil, err
		}
		all = append(all, f)
	}
	switch len(all) {
	case 0:
		return nil, p.errorf("empty expression")
	case 1:
		return all[0], nil
	default:
		return all, nil
	}
}

func (p *predParser) factor() (predicate, error) {
	switch p.peek() {
	case '(':
		p.pos++
		expr, err := p.union()
		if err != nil {
			return nil, err
		}
		p.skipSpace()
		if p.eof() || p.peek() != ')' {
			return nil, p.errorf("missing )")
		}
		p.pos++
		return expr, nil
	case '-':
		p.pos++
		inner, err := p.factor()
		if err != nil {
			return nil, err
		}
		return negated{inner}, nil
	case '*':
		p.pos++
		return matchAll{}, nil
	case '@':
		return p.fieldTerm()
	default:
		return nil, p.errorf("unexpected %q", p.peek())
	}
}

func (p *predParser) fieldTerm() (predicate, error) {
	p.pos++ // @
	start := p.pos
	for !p.eof() && p.peek() != ':' {
		p.pos++
	}
	if p.eof() {
		return nil, p.errorf("missing : after field name")
	}
	field := string(p.src[start:p.pos])
	p.pos++ // :
	p.skipSpace()
	if p.eof() {
		return nil, p.errorf("missing value for @%s", field)
	}

	switch p.peek() {
	case '[':
		return p.numeric(field)
	case '{':
		return p.tags(field)
	default:
		return nil, p.errorf("unsupported value for @%s", field)
	}
}

func (p *predParser) numeric(field string) (predicate, error) {
	p.pos++ // [
	end := p.pos
	for end < len(p.src) && p.src[end] != ']' {
		end++
	}
	if end >= len(p.src) {
		return nil, p.errorf("missing ]")
	}
	parts := strings.Fields(string(p.src[p.pos:end]))
	p.pos = end + 1
	if len(parts) != 2 {
		return nil, p.errorf("numeric range for @%s needs two bounds", field)
	}

	q := numericRange{field: field}
	var err error
	if q.lo, q.loExclusive, err = parseBound(parts[0]); err != nil {
		return nil, p.errorf("%v", err)
	}
	if q.hi, q.hiExclusive, err = parseBound(parts[1]); err != nil {
		return nil, p.errorf("%v", err)
	}
	return q, nil
}

func parseBound(s string) (float64, bool, error) {
	exclusive := strings.HasPrefix(s, "(")
	s = strings.TrimPrefix(s, "(")
	switch s {
	case "+inf", "inf":
		return math.Inf(1), exclusive, nil
	case "-inf":
		return math.Inf(-1), exclusive, nil
	}
	v, err := strconv.ParseFloat(s, 64)
	return v, exclusive, err
}

// tags reads "{a | b\ c}". Backslash escapes the next rune; unescaped "|"
// separates alternatives.
func (p *predParser) tags(field string) (predicate, error) {
	p.pos++ // {
	var (
		values []string
		cur    strings.Builder
	)
	for {
		if p.eof() {
			return nil, p.errorf("missing }")
		}
		r := p.peek()
		p.pos++
		switch r {
		case '\\':
			if p.eof() {
				return nil, p.errorf("dangling escape")
			}
			cur.WriteRune(p.peek())
			p.pos++
		case '|':
			values = append(values, strings.TrimSpace(cur.String()))
			cur.Reset()
		case '}':
			values = append(values, strings.TrimSpace(cur.String()))
			return tagSet{field: field, values: values}, nil
		default:
			cur.WriteRune(r)
		}
	}
}
