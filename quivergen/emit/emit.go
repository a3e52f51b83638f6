// Package emit renders the generated wiring file: synthesized marker
// types, the RegisterHandlers installer, and the notification
// Dispatcher. Rendering is a pure function of the analysis results so
// two runs over the same source produce byte-identical output.
package emit

import (
	"bytes"
	"fmt"
	"go/format"
	"regexp"
	"sort"
	"strings"

	"github.com/quiverdev/quiver/quivergen/ir"
	"github.com/quiverdev/quiver/quivergen/model"
	"github.com/quiverdev/quiver/quivergen/plan"
)

const header = "// Code generated by quiver; DO NOT EDIT.\n\n"

// File renders the complete generated file for the output package named
// pkgName. im must be the same import tracker the analysis rendered
// types through, so qualifiers line up. The returned bytes are
// gofmt-formatted; if formatting fails the raw text is returned together
// with a diagnostic so the caller can still inspect it.
func File(pkgName string, im *model.Imports, defs []*ir.DecoratorDefinition, plans []*plan.Plan) ([]byte, []ir.Diagnostic) {
	q := im.Name(ir.RuntimePath, "quiver")
	ctxQ := im.Name("context", "context")

	ordered := sortPlans(plans)

	var body bytes.Buffer
	emitMarkers(&body, defs, q)
	emitRegister(&body, ordered, q)
	emitDispatcher(&body, ordered, q, ctxQ)

	var file bytes.Buffer
	file.WriteString(header)
	fmt.Fprintf(&file, "package %s\n\n", pkgName)
	writeImports(&file, im, body.Bytes())
	file.Write(body.Bytes())

	src, err := format.Source(file.Bytes())
	if err != nil {
		return file.Bytes(), []ir.Diagnostic{{
			Code:    "format_failed",
			Message: fmt.Sprintf("generated file does not format: %v", err),
		}}
	}
	return src, nil
}

// sortPlans fixes the emission order: handler name, then the rendered
// concrete type for names that collide across packages.
func sortPlans(plans []*plan.Plan) []*plan.Plan {
	out := append([]*plan.Plan(nil), plans...)
	sort.Slice(out, func(i, j int) bool {
		a, b := out[i].Handler, out[j].Handler
		if a.Name != b.Name {
			return a.Name < b.Name
		}
		return a.Concrete < b.Concrete
	})
	return out
}

// writeImports writes the import block, keeping only packages whose
// qualifier actually appears in the rendered body. The tracker records
// every package touched during analysis, including ones that ended up
// only in dropped or degraded paths.
func writeImports(out *bytes.Buffer, im *model.Imports, body []byte) {
	var used []model.Import
	for _, imp := range im.List() {
		re := regexp.MustCompile(`\b` + regexp.QuoteMeta(imp.Qualifier) + `\.`)
		if re.Match(body) {
			used = append(used, imp)
		}
	}
	if len(used) == 0 {
		return
	}

	out.WriteString("import (\n")
	for _, imp := range used {
		if imp.Name != "" {
			fmt.Fprintf(out, "\t%s %q\n", imp.Name, imp.Path)
		} else {
			fmt.Fprintf(out, "\t%q\n", imp.Path)
		}
	}
	out.WriteString(")\n\n")
}

// emitRegister writes RegisterHandlers: per handler the concrete
// registration, the decorated contract registration, and the marker
// metadata annotation, followed by the publisher.
func emitRegister(buf *bytes.Buffer, plans []*plan.Plan, q string) {
	buf.WriteString("// RegisterHandlers installs every discovered handler into reg: the\n")
	buf.WriteString("// concrete types, their decorated contracts, the marker metadata, and\n")
	buf.WriteString("// the notification publisher.\n")
	fmt.Fprintf(buf, "func RegisterHandlers(reg *%s.Registry) {\n", q)

	for i, p := range plans {
		if i > 0 {
			buf.WriteString("\n")
		}
		h := p.Handler
		if h.Kind == ir.KindNotification {
			fmt.Fprintf(buf, "\t// %s: %s %s\n", h.Name, h.Kind, h.Request)
		} else {
			fmt.Fprintf(buf, "\t// %s: %s %s -> %s\n", h.Name, h.Kind, h.Request, h.Response)
		}
		emitConcrete(buf, p, q)
		if h.Kind != ir.KindNotification {
			emitContract(buf, p, q)
			emitAnnotate(buf, p, q)
		}
	}

	if len(plans) > 0 {
		buf.WriteString("\n")
	}
	fmt.Fprintf(buf, "\t%s.RegisterValue[%s.Publisher](reg, NewDispatcher(reg))\n", q, q)
	buf.WriteString("}\n\n")
}

func emitConcrete(buf *bytes.Buffer, p *plan.Plan, q string) {
	h := p.Handler
	fmt.Fprintf(buf, "\t%s.Register(reg, func(r *%s.Registry) %s {\n", q, q, h.Concrete)

	if h.Ctor == "" {
		if elem, ok := strings.CutPrefix(h.Concrete, "*"); ok {
			fmt.Fprintf(buf, "\t\treturn &%s{}\n", elem)
		} else {
			fmt.Fprintf(buf, "\t\treturn %s{}\n", h.Concrete)
		}
	} else {
		args := make([]string, len(h.CtorArgs))
		for i, t := range h.CtorArgs {
			args[i] = fmt.Sprintf("%s.MustResolve[%s](r)", q, t)
		}
		call := fmt.Sprintf("%s(%s)", h.Ctor, strings.Join(args, ", "))
		if strings.HasPrefix(h.Concrete, "*") && !h.CtorPointer {
			// Constructor returns a value but Handle wants a pointer
			// receiver.
			fmt.Fprintf(buf, "\t\th := %s\n\t\treturn &h\n", call)
		} else {
			fmt.Fprintf(buf, "\t\treturn %s\n", call)
		}
	}
	buf.WriteString("\t})\n")
}

func emitContract(buf *bytes.Buffer, p *plan.Plan, q string) {
	h := p.Handler
	contract := fmt.Sprintf("%s.Handler[%s, %s]", q, h.Request, h.Response)

	fmt.Fprintf(buf, "\t%s.Register(reg, func(r *%s.Registry) %s {\n", q, q, contract)
	inner := fmt.Sprintf("%s.MustResolve[%s](r)", q, h.Concrete)
	if h.Kind == ir.KindCommandVoid {
		inner = fmt.Sprintf("%s.AsHandler(%s)", q, inner)
	}
	fmt.Fprintf(buf, "\t\tvar h %s = %s\n", contract, inner)
	for _, s := range p.Steps {
		emitStep(buf, s, q)
	}
	buf.WriteString("\t\treturn h\n\t})\n")
}

// emitStep writes one decorator construction wrapping the handler built
// so far. Type arguments are always explicit so the output does not
// depend on inference.
func emitStep(buf *bytes.Buffer, s plan.Step, q string) {
	typeArgs := strings.Join(s.TypeArgs, ", ")

	if s.Degraded {
		fmt.Fprintf(buf, "\t\t// degraded: %s has no usable constructor; config and services\n\t\t// are not applied\n", s.Def.Type)
		fmt.Fprintf(buf, "\t\th = &%s[%s]{}\n", s.Def.Type, typeArgs)
		return
	}

	args := make([]string, 0, len(s.Args))
	for _, a := range s.Args {
		switch {
		case a.Inner:
			args = append(args, "h")
		case a.Service:
			args = append(args, fmt.Sprintf("%s.MustResolve[%s](r)", q, a.Expr))
		default:
			expr := a.Expr
			if a.Comment != "" {
				expr += " /* " + a.Comment + " */"
			}
			args = append(args, expr)
		}
	}
	fmt.Fprintf(buf, "\t\th = %s[%s](%s)\n", s.Def.Ctor, typeArgs, strings.Join(args, ", "))
}

// emitAnnotate records the resolved pipeline as marker metadata, in
// pipeline order. Explicit positions reproduce their At call; default
// positions stay implicit.
func emitAnnotate(buf *bytes.Buffer, p *plan.Plan, q string) {
	steps := p.Pipeline()
	if len(steps) == 0 {
		return
	}

	markers := make([]string, len(steps))
	for i, s := range steps {
		m := fmt.Sprintf("%s(%s)", s.Usage.Marker, strings.Join(s.ConfigArgs, ", "))
		if s.Usage.Order != ir.OrderLast {
			m += fmt.Sprintf(".At(%d)", s.Usage.Order)
		}
		markers[i] = m
	}
	fmt.Fprintf(buf, "\t%s.Annotate[%s](reg, %s)\n", q, p.Handler.Request, strings.Join(markers, ", "))
}

// emitDispatcher writes the Dispatcher type backing quiver.Publisher.
// One case per notification type, subscribers invoked sequentially in
// discovery order; the first error stops the fan-out.
func emitDispatcher(buf *bytes.Buffer, plans []*plan.Plan, q, ctxQ string) {
	type subscriber struct {
		concrete  string
		discovery int
	}
	type group struct {
		event string
		subs  []subscriber
	}
	var groups []group
	index := make(map[string]int)
	for _, p := range plans {
		if p.Handler.Kind != ir.KindNotification {
			continue
		}
		i, ok := index[p.Handler.Request]
		if !ok {
			i = len(groups)
			index[p.Handler.Request] = i
			groups = append(groups, group{event: p.Handler.Request})
		}
		groups[i].subs = append(groups[i].subs, subscriber{p.Handler.Concrete, p.Handler.Index})
	}
	sort.Slice(groups, func(i, j int) bool { return groups[i].event < groups[j].event })
	for _, g := range groups {
		subs := g.subs
		sort.Slice(subs, func(i, j int) bool { return subs[i].discovery < subs[j].discovery })
	}

	fmt.Fprintf(buf, "// Dispatcher implements %s.Publisher over the discovered notification\n", q)
	buf.WriteString("// handlers. Subscribers run to completion one after another; the first\n")
	buf.WriteString("// failure stops the fan-out.\n")
	fmt.Fprintf(buf, "type Dispatcher struct {\n\treg *%s.Registry\n}\n\n", q)

	fmt.Fprintf(buf, "// NewDispatcher builds a Dispatcher resolving subscribers from reg.\n")
	fmt.Fprintf(buf, "func NewDispatcher(reg *%s.Registry) *Dispatcher {\n\treturn &Dispatcher{reg: reg}\n}\n\n", q)

	buf.WriteString("// Publish routes event to its subscribers. Events with no subscriber\n")
	buf.WriteString("// are dropped.\n")
	fmt.Fprintf(buf, "func (d *Dispatcher) Publish(ctx %s.Context, event any) error {\n", ctxQ)
	if len(groups) == 0 {
		buf.WriteString("\treturn nil\n}\n")
		return
	}

	buf.WriteString("\tswitch ev := event.(type) {\n")
	for _, g := range groups {
		fmt.Fprintf(buf, "\tcase %s:\n", g.event)
		for _, sub := range g.subs {
			fmt.Fprintf(buf, "\t\tif err := %s.MustResolve[%s](d.reg).Handle(ctx, ev); err != nil {\n\t\t\treturn err\n\t\t}\n", q, sub.concrete)
		}
	}
	buf.WriteString("\t}\n\treturn nil\n}\n")
}
