// Package directive parses quiver directives from Go source comments.
//
// Directives are line comments attached to type declarations:
//
//	//quiver:decorator Name [param=default ...]
//	//quiver:use Name[(arg, arg, ...)] [order=N]
//
// The decorator form promotes a generic wrapper type into a generatable
// marker with the given name; key=value pairs capture literal defaults for
// the constructor's same-named configuration parameters.
//
// The use form attaches a marker to a request or query type, with
// positional literal arguments for the marker's configuration parameters
// and an optional pipeline order. Arguments are read from the comment text
// only, never resolved semantically, so a use may reference a marker
// generated in the same pass. Only literal expressions are supported.
package directive

import (
	"fmt"
	"go/scanner"
	"go/token"
	"strconv"
	"strings"
)

// Prefix introduces a quiver directive comment.
const Prefix = "//quiver:"

// Kind represents the type of directive.
type Kind string

const (
	KindDecorator Kind = "decorator"
	KindUse       Kind = "use"
)

// Directive represents a parsed quiver directive.
type Directive struct {
	Kind Kind
	Name string

	// Args holds the positional literal arguments of a use directive,
	// verbatim as written.
	Args []string

	// Order is the explicit order of a use directive, nil when omitted.
	Order *int

	// Defaults holds the ordered key=value defaults of a decorator
	// directive, values verbatim as written.
	Defaults []Default

	Pos token.Position
}

// Default is one captured key=value default from a decorator directive.
type Default struct {
	Key   string
	Value string
}

// Default returns the captured default for a decorator parameter name,
// or "" when none was declared.
func (d *Directive) Default(key string) string {
	for _, def := range d.Defaults {
		if def.Key == key {
			return def.Value
		}
	}
	return ""
}

// IsDirective reports whether a comment line is a quiver directive.
func IsDirective(text string) bool {
	return strings.HasPrefix(text, Prefix)
}

// Parse parses a single directive comment line. pos is used for error
// messages and recorded on the result.
func Parse(text string, pos token.Position) (*Directive, error) {
	rest := strings.TrimPrefix(text, Prefix)

	kindWord, rest := splitWord(rest)
	var kind Kind
	switch kindWord {
	case "decorator":
		kind = KindDecorator
	case "use":
		kind = KindUse
	default:
		return nil, fmt.Errorf("%s: unknown directive //quiver:%s", pos, kindWord)
	}

	toks, src, err := scanTokens(rest)
	if err != nil {
		return nil, fmt.Errorf("%s: malformed //quiver:%s directive: %v", pos, kind, err)
	}
	if len(toks) == 0 || toks[0].tok != token.IDENT {
		return nil, fmt.Errorf("%s: //quiver:%s requires a marker name", pos, kind)
	}

	d := &Directive{
		Kind: kind,
		Name: toks[0].lit,
		Pos:  pos,
	}
	i := 1

	// Positional argument list, use form only.
	if i < len(toks) && toks[i].tok == token.LPAREN {
		if kind != KindUse {
			return nil, fmt.Errorf("%s: //quiver:decorator takes key=value defaults, not positional arguments", pos)
		}
		args, next, err := parseArgList(toks, src, i)
		if err != nil {
			return nil, fmt.Errorf("%s: %v", pos, err)
		}
		d.Args = args
		i = next
	}

	// Trailing key=value pairs.
	for i < len(toks) {
		if toks[i].tok != token.IDENT || i+1 >= len(toks) || toks[i+1].tok != token.ASSIGN {
			return nil, fmt.Errorf("%s: unexpected %q in //quiver:%s directive", pos, src[toks[i].off:], kind)
		}
		key := toks[i].lit
		value, next, err := parseValue(toks, src, i+2)
		if err != nil {
			return nil, fmt.Errorf("%s: %v", pos, err)
		}
		i = next

		if key == "order" {
			if kind != KindUse {
				return nil, fmt.Errorf("%s: order= is only valid on //quiver:use", pos)
			}
			n, err := strconv.Atoi(value)
			if err != nil {
				return nil, fmt.Errorf("%s: order must be an integer, got %q", pos, value)
			}
			d.Order = &n
			continue
		}

		if kind != KindDecorator {
			return nil, fmt.Errorf("%s: //quiver:use only accepts order=, got %s=", pos, key)
		}
		for _, def := range d.Defaults {
			if def.Key == key {
				return nil, fmt.Errorf("%s: duplicate default %s=", pos, key)
			}
		}
		d.Defaults = append(d.Defaults, Default{Key: key, Value: value})
	}

	return d, nil
}

type tokenInfo struct {
	off int
	end int
	tok token.Token
	lit string
}

// scanTokens tokenizes a directive body, dropping automatically inserted
// semicolons so callers see only meaningful tokens.
func scanTokens(body string) ([]tokenInfo, string, error) {
	src := []byte(body)
	fset := token.NewFileSet()
	file := fset.AddFile("", fset.Base(), len(src))

	var scanErr error
	var sc scanner.Scanner
	sc.Init(file, src, func(pos token.Position, msg string) {
		if scanErr == nil {
			scanErr = fmt.Errorf("%s", msg)
		}
	}, 0)

	var toks []tokenInfo
	for {
		pos, tok, lit := sc.Scan()
		if tok == token.EOF {
			break
		}
		if tok == token.SEMICOLON {
			continue
		}
		off := int(pos) - file.Base()
		end := off + tokenWidth(tok, lit)
		toks = append(toks, tokenInfo{off: off, end: end, tok: tok, lit: lit})
	}
	if scanErr != nil {
		return nil, "", scanErr
	}
	return toks, body, nil
}

func tokenWidth(tok token.Token, lit string) int {
	if lit != "" {
		return len(lit)
	}
	return len(tok.String())
}

// parseArgList consumes a parenthesized argument list starting at the
// LPAREN token toks[i], returning the verbatim top-level comma-separated
// argument expressions.
func parseArgList(toks []tokenInfo, src string, i int) (args []string, next int, err error) {
	depth := 0
	argStart := -1

	flush := func(end int) {
		if argStart >= 0 {
			arg := strings.TrimSpace(src[argStart:end])
			if arg != "" {
				args = append(args, arg)
			}
			argStart = -1
		}
	}

	for ; i < len(toks); i++ {
		t := toks[i]
		switch t.tok {
		case token.LPAREN, token.LBRACK:
			depth++
			if depth == 1 {
				continue
			}
		case token.RPAREN, token.RBRACK:
			depth--
			if depth == 0 {
				flush(t.off)
				return args, i + 1, nil
			}
		case token.COMMA:
			if depth == 1 {
				flush(t.off)
				continue
			}
		}
		if argStart < 0 {
			argStart = t.off
		}
	}
	return nil, i, fmt.Errorf("unterminated argument list")
}

// parseValue consumes one key=value value: a literal, optionally signed,
// or a dotted constant reference like pkg.Name.
func parseValue(toks []tokenInfo, src string, i int) (string, int, error) {
	if i >= len(toks) {
		return "", i, fmt.Errorf("missing value after =")
	}
	start := toks[i].off
	end := toks[i].end

	switch toks[i].tok {
	case token.SUB, token.ADD:
		if i+1 >= len(toks) || (toks[i+1].tok != token.INT && toks[i+1].tok != token.FLOAT) {
			return "", i, fmt.Errorf("malformed numeric value")
		}
		i++
		end = toks[i].end
	case token.INT, token.FLOAT, token.STRING, token.CHAR:
	case token.IDENT:
		// true, false, or a qualified constant name.
		for i+2 < len(toks) && toks[i+1].tok == token.PERIOD && toks[i+2].tok == token.IDENT {
			i += 2
			end = toks[i].end
		}
	default:
		return "", i, fmt.Errorf("unsupported value %q: only literals are allowed", src[start:end])
	}

	return src[start:end], i + 1, nil
}

func splitWord(s string) (word, rest string) {
	s = strings.TrimLeft(s, " \t")
	i := strings.IndexAny(s, " \t(")
	if i < 0 {
		return s, ""
	}
	if s[i] == '(' {
		return s[:i], s[i:]
	}
	return s[:i], s[i+1:]
}
