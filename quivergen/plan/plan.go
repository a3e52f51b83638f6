// Package plan computes composition plans: the ordered, fully resolved
// sequence of decorator constructions for one handler.
package plan

import (
	"fmt"
	"regexp"
	"sort"

	"github.com/quiverdev/quiver/quivergen/ir"
)

// Arg is one resolved constructor argument expression.
type Arg struct {
	// Inner marks the inner-handler slot; the emitter substitutes the
	// composed handler-so-far here.
	Inner bool

	// Service marks a registry-resolved dependency; Expr is then the
	// rendered service type, not a literal.
	Service bool

	Expr string

	// Comment is a visible degradation note attached to the argument.
	Comment string
}

// Step is one decorator construction. Steps appear in construction order:
// the first step wraps the concrete handler, the last step is the
// outermost wrapper.
type Step struct {
	Usage ir.DecoratorUsage
	Def   *ir.DecoratorDefinition

	// TypeArgs instantiate the constructor, in its type-parameter order.
	TypeArgs []string

	// Args are the constructor arguments in order. Empty when Degraded.
	Args []Arg

	// ConfigArgs are the resolved config literals in config-parameter
	// order, shared with the marker metadata annotation.
	ConfigArgs []string

	// Degraded marks the parameterless fallback construction for a
	// definition without a usable constructor.
	Degraded bool
}

// Plan is the construction plan for one handler.
type Plan struct {
	Handler *ir.HandlerDescriptor

	// Steps in construction order, innermost first.
	Steps []Step
}

// Pipeline returns the steps in pipeline order: ascending declared
// order, outermost first. This is the order markers were applied and the
// order the metadata annotation reports.
func (p *Plan) Pipeline() []Step {
	out := make([]Step, len(p.Steps))
	for i, s := range p.Steps {
		out[len(out)-1-i] = s
	}
	return out
}

// Build resolves a handler's marker usages against the known decorator
// definitions.
//
// Usages sort by ascending order, stable on syntactic appearance; the
// plan iterates that ordering in reverse so the lowest order becomes the
// outermost wrapper: order 1 is first to observe a call and last to be
// constructed. A usage naming an unknown marker is dropped with a
// diagnostic and never silently miscompiled; every other fallback
// degrades only the affected registration.
func Build(h *ir.HandlerDescriptor, defs []*ir.DecoratorDefinition) (*Plan, []ir.Diagnostic) {
	var diags []ir.Diagnostic

	byName := make(map[string]*ir.DecoratorDefinition, len(defs))
	for _, d := range defs {
		byName[d.Marker] = d
	}

	sorted := append([]ir.DecoratorUsage(nil), h.Usages...)
	sort.SliceStable(sorted, func(i, j int) bool {
		if sorted[i].Order != sorted[j].Order {
			return sorted[i].Order < sorted[j].Order
		}
		return sorted[i].Index < sorted[j].Index
	})

	p := &Plan{Handler: h}
	for i := len(sorted) - 1; i >= 0; i-- {
		use := sorted[i]

		def, known := byName[use.Marker]
		if !known {
			diags = append(diags, ir.Diagnostic{
				Code:    "unknown_marker",
				Message: fmt.Sprintf("%s: request %s uses unknown marker %s; usage dropped", h.Name, h.Request, use.Marker),
				Pos:     use.Pos,
			})
			continue
		}
		if len(def.TypeParams) != 2 {
			diags = append(diags, ir.Diagnostic{
				Code:    "usage_dropped",
				Message: fmt.Sprintf("%s: marker %s resolves to a malformed decorator; usage dropped", h.Name, use.Marker),
				Pos:     use.Pos,
			})
			continue
		}

		step, ds := buildStep(h, def, use)
		diags = append(diags, ds...)
		p.Steps = append(p.Steps, step)
	}

	return p, diags
}

func buildStep(h *ir.HandlerDescriptor, def *ir.DecoratorDefinition, use ir.DecoratorUsage) (Step, []ir.Diagnostic) {
	var diags []ir.Diagnostic

	step := Step{
		Usage:    use,
		Def:      def,
		Degraded: def.Degraded,
		TypeArgs: make([]string, len(def.TypeParams)),
	}
	step.TypeArgs[def.ReqSlot] = h.Request
	step.TypeArgs[def.ResSlot] = h.Response

	configParams := def.ConfigParams()
	if len(use.Args) > len(configParams) {
		diags = append(diags, ir.Diagnostic{
			Code:    "usage_extra_args",
			Message: fmt.Sprintf("%s: marker %s takes %d arguments, got %d; extras ignored", h.Name, use.Marker, len(configParams), len(use.Args)),
			Pos:     use.Pos,
		})
	}

	if def.Degraded {
		return step, diags
	}

	cfgIdx := 0
	for _, param := range def.Params {
		switch param.Class {
		case ir.ClassInner:
			step.Args = append(step.Args, Arg{Inner: true})

		case ir.ClassService:
			step.Args = append(step.Args, Arg{
				Service: true,
				Expr:    substitute(param.Type, def, h),
			})

		case ir.ClassConfig:
			arg := resolveConfig(param, use, cfgIdx, &diags, h)
			cfgIdx++
			step.Args = append(step.Args, arg)
			step.ConfigArgs = append(step.ConfigArgs, arg.Expr)
		}
	}

	return step, diags
}

// resolveConfig picks the argument for one config parameter: the next
// positional literal from the usage, else the captured default, else the
// zero-value sentinel. The sentinel case is flagged visibly, never
// substituted silently.
func resolveConfig(param ir.Param, use ir.DecoratorUsage, idx int, diags *[]ir.Diagnostic, h *ir.HandlerDescriptor) Arg {
	if idx < len(use.Args) {
		return Arg{Expr: use.Args[idx]}
	}
	if param.Default != "" {
		return Arg{Expr: param.Default}
	}

	*diags = append(*diags, ir.Diagnostic{
		Code:    "config_default_missing",
		Message: fmt.Sprintf("%s: marker %s parameter %s has no argument and no default; using zero value", h.Name, use.Marker, param.Name),
		Pos:     use.Pos,
	})
	return Arg{
		Expr:    param.Zero,
		Comment: fmt.Sprintf("degraded: no value for %s", param.Name),
	}
}

// substitute replaces the decorator's generic parameter names with the
// handler's concrete request/response expressions wherever they appear as
// whole identifiers in a service type expression.
// A single pass over both names keeps a concrete expression from being
// re-substituted when a request type shares a name with a type parameter.
func substitute(typeExpr string, def *ir.DecoratorDefinition, h *ir.HandlerDescriptor) string {
	reqName := def.TypeParams[def.ReqSlot]
	resName := def.TypeParams[def.ResSlot]
	re := regexp.MustCompile(`\b(` + regexp.QuoteMeta(reqName) + `|` + regexp.QuoteMeta(resName) + `)\b`)
	return re.ReplaceAllStringFunc(typeExpr, func(name string) string {
		if name == reqName {
			return h.Request
		}
		return h.Response
	})
}
