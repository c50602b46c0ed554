package sigparse

import (
	"fmt"
	"strings"

	"github.com/alecthomas/participle/v2"
	"github.com/alecthomas/participle/v2/lexer"
)

// Signature is the parsed form of one textual method signature, e.g.
//
//	applyAsInt(int, int) int
//	hello(string) string
//	printf(string, ...any)
//	split(string, string) ([]string, error)
//
// Type names are left as written; resolving them to concrete types is the
// caller's job.
type Signature struct {
	Name    string    `parser:"@Ident"`
	Params  []Param   `parser:"'(' ( @@ ( ',' @@ )* )? ')'"`
	Returns []TypeRef `parser:"( '(' @@ ( ',' @@ )* ')' | @@ )?"`
}

// Param is a single parameter in a parsed signature
type Param struct {
	Variadic bool    `parser:"@Ellipsis?"`
	Type     TypeRef `parser:"@@"`
}

// TypeRef is a type name with optional slice and pointer decoration
type TypeRef struct {
	Slices  []string `parser:"@Slice*"`
	Pointer bool     `parser:"@'*'?"`
	Name    string   `parser:"@Ident"`
}

// String reassembles the type reference as written
func (t TypeRef) String() string {
	var sb strings.Builder
	for range t.Slices {
		sb.WriteString("[]")
	}
	if t.Pointer {
		sb.WriteString("*")
	}
	sb.WriteString(t.Name)
	return sb.String()
}

// String reassembles the signature in canonical form
func (s *Signature) String() string {
	var sb strings.Builder
	sb.WriteString(s.Name)
	sb.WriteString("(")
	for i, p := range s.Params {
		if i > 0 {
			sb.WriteString(", ")
		}
		if p.Variadic {
			sb.WriteString("...")
		}
		sb.WriteString(p.Type.String())
	}
	sb.WriteString(")")
	switch len(s.Returns) {
	case 0:
	case 1:
		sb.WriteString(" ")
		sb.WriteString(s.Returns[0].String())
	default:
		sb.WriteString(" (")
		for i, r := range s.Returns {
			if i > 0 {
				sb.WriteString(", ")
			}
			sb.WriteString(r.String())
		}
		sb.WriteString(")")
	}
	return sb.String()
}

var signatureLexer = lexer.MustSimple([]lexer.SimpleRule{
	{Name: "Ellipsis", Pattern: `\.\.\.`},
	{Name: "Slice", Pattern: `\[\]`},
	{Name: "Ident", Pattern: `[a-zA-Z_][a-zA-Z0-9_]*(\.[a-zA-Z_][a-zA-Z0-9_]*)?`},
	{Name: "Punct", Pattern: `[(),*]`},
	{Name: "Whitespace", Pattern: `\s+`},
})

var signatureParser = participle.MustBuild[Signature](
	participle.Lexer(signatureLexer),
	participle.Elide("Whitespace"),
	participle.UseLookahead(2),
)

// Parse parses a single textual method signature
func Parse(input string) (*Signature, error) {
	input = strings.TrimSpace(input)
	if input == "" {
		return nil, fmt.Errorf("empty signature")
	}

	sig, err := signatureParser.ParseString("", input)
	if err != nil {
		return nil, fmt.Errorf("invalid signature %q: %w", input, err)
	}

	// Only the final parameter may be variadic
	for i, p := range sig.Params {
		if p.Variadic && i != len(sig.Params)-1 {
			return nil, fmt.Errorf("invalid signature %q: variadic parameter must be last", input)
		}
		if p.Variadic && len(p.Type.Slices) > 0 {
			return nil, fmt.Errorf("invalid signature %q: variadic parameter cannot also be a slice", input)
		}
	}

	return sig, nil
}
