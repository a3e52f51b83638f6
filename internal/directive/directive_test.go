package directive

import (
	"go/token"
	"reflect"
	"strings"
	"testing"
)

func TestParseUse(t *testing.T) {
	tests := []struct {
		name      string
		text      string
		wantName  string
		wantArgs  []string
		wantOrder *int
		wantErr   string
	}{
		{
			name:     "bare marker",
			text:     "//quiver:use Logged",
			wantName: "Logged",
		},
		{
			name:     "empty argument list",
			text:     "//quiver:use Logged()",
			wantName: "Logged",
		},
		{
			name:     "single argument",
			text:     `//quiver:use Cached(600)`,
			wantName: "Cached",
			wantArgs: []string{"600"},
		},
		{
			name:     "multiple arguments",
			text:     `//quiver:use Logged("info", true)`,
			wantName: "Logged",
			wantArgs: []string{`"info"`, "true"},
		},
		{
			name:     "string argument with spaces and comma",
			text:     `//quiver:use Logged("a, b c")`,
			wantName: "Logged",
			wantArgs: []string{`"a, b c"`},
		},
		{
			name:     "negative numeric argument",
			text:     `//quiver:use Clamped(-5)`,
			wantName: "Clamped",
			wantArgs: []string{"-5"},
		},
		{
			name:      "explicit order",
			text:      "//quiver:use Logged order=1",
			wantName:  "Logged",
			wantOrder: intp(1),
		},
		{
			name:      "order zero",
			text:      `//quiver:use Logged("info") order=0`,
			wantName:  "Logged",
			wantArgs:  []string{`"info"`},
			wantOrder: intp(0),
		},
		{
			name:    "missing name",
			text:    "//quiver:use",
			wantErr: "requires a marker name",
		},
		{
			name:    "unterminated argument list",
			text:    "//quiver:use Cached(600",
			wantErr: "unterminated argument list",
		},
		{
			name:    "non-integer order",
			text:    `//quiver:use Logged order="first"`,
			wantErr: "order must be an integer",
		},
		{
			name:    "defaults not allowed on use",
			text:    "//quiver:use Cached ttl=600",
			wantErr: "only accepts order=",
		},
		{
			name:    "unknown directive kind",
			text:    "//quiver:wrap Logged",
			wantErr: "unknown directive",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d, err := Parse(tt.text, token.Position{Filename: "x.go", Line: 1})
			if tt.wantErr != "" {
				if err == nil {
					t.Fatalf("Parse(%q) = %+v, want error containing %q", tt.text, d, tt.wantErr)
				}
				if !strings.Contains(err.Error(), tt.wantErr) {
					t.Fatalf("Parse(%q) error = %v, want containing %q", tt.text, err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("Parse(%q) failed: %v", tt.text, err)
			}
			if d.Kind != KindUse {
				t.Errorf("Kind = %q, want use", d.Kind)
			}
			if d.Name != tt.wantName {
				t.Errorf("Name = %q, want %q", d.Name, tt.wantName)
			}
			if !reflect.DeepEqual(d.Args, tt.wantArgs) {
				t.Errorf("Args = %#v, want %#v", d.Args, tt.wantArgs)
			}
			switch {
			case tt.wantOrder == nil && d.Order != nil:
				t.Errorf("Order = %d, want none", *d.Order)
			case tt.wantOrder != nil && d.Order == nil:
				t.Errorf("Order = none, want %d", *tt.wantOrder)
			case tt.wantOrder != nil && *d.Order != *tt.wantOrder:
				t.Errorf("Order = %d, want %d", *d.Order, *tt.wantOrder)
			}
		})
	}
}

func TestParseDecorator(t *testing.T) {
	tests := []struct {
		name         string
		text         string
		wantName     string
		wantDefaults []Default
		wantErr      string
	}{
		{
			name:     "no defaults",
			text:     "//quiver:decorator Logged",
			wantName: "Logged",
		},
		{
			name:         "integer default",
			text:         "//quiver:decorator Cached ttl=600",
			wantName:     "Cached",
			wantDefaults: []Default{{Key: "ttl", Value: "600"}},
		},
		{
			name:     "multiple defaults preserve order",
			text:     `//quiver:decorator Logged level="info" slow=true`,
			wantName: "Logged",
			wantDefaults: []Default{
				{Key: "level", Value: `"info"`},
				{Key: "slow", Value: "true"},
			},
		},
		{
			name:         "qualified constant default",
			text:         "//quiver:decorator Traced level=trace.LevelBasic",
			wantName:     "Traced",
			wantDefaults: []Default{{Key: "level", Value: "trace.LevelBasic"}},
		},
		{
			name:         "negative default",
			text:         "//quiver:decorator Clamped min=-1",
			wantName:     "Clamped",
			wantDefaults: []Default{{Key: "min", Value: "-1"}},
		},
		{
			name:    "positional arguments rejected",
			text:    "//quiver:decorator Cached(600)",
			wantErr: "key=value defaults",
		},
		{
			name:    "duplicate default",
			text:    "//quiver:decorator Cached ttl=600 ttl=300",
			wantErr: "duplicate default",
		},
		{
			name:    "missing value",
			text:    "//quiver:decorator Cached ttl=",
			wantErr: "missing value",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d, err := Parse(tt.text, token.Position{Filename: "x.go", Line: 1})
			if tt.wantErr != "" {
				if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
					t.Fatalf("Parse(%q) error = %v, want containing %q", tt.text, err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("Parse(%q) failed: %v", tt.text, err)
			}
			if d.Kind != KindDecorator {
				t.Errorf("Kind = %q, want decorator", d.Kind)
			}
			if d.Name != tt.wantName {
				t.Errorf("Name = %q, want %q", d.Name, tt.wantName)
			}
			if !reflect.DeepEqual(d.Defaults, tt.wantDefaults) {
				t.Errorf("Defaults = %#v, want %#v", d.Defaults, tt.wantDefaults)
			}
		})
	}
}

func TestDefaultLookup(t *testing.T) {
	d, err := Parse(`//quiver:decorator Cached ttl=600 layer="l1"`, token.Position{})
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	if got := d.Default("ttl"); got != "600" {
		t.Errorf("Default(ttl) = %q, want 600", got)
	}
	if got := d.Default("layer"); got != `"l1"` {
		t.Errorf("Default(layer) = %q, want %q", got, `"l1"`)
	}
	if got := d.Default("missing"); got != "" {
		t.Errorf("Default(missing) = %q, want empty", got)
	}
}

func TestIsDirective(t *testing.T) {
	if !IsDirective("//quiver:use Logged") {
		t.Error("IsDirective should accept //quiver:use")
	}
	if IsDirective("// quiver:use Logged") {
		t.Error("IsDirective should reject a spaced comment")
	}
	if IsDirective("//go:generate quiver gen") {
		t.Error("IsDirective should reject foreign directives")
	}
}

func intp(n int) *int { return &n }
