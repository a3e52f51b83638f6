// Package analyze turns the loaded declaration model into the quivergen
// intermediate representation: decorator definitions from
// //quiver:decorator types and handler descriptors from the concrete
// types implementing the dispatch contracts.
package analyze

import (
	"fmt"
	"go/types"

	"github.com/quiverdev/quiver/internal/directive"
	"github.com/quiverdev/quiver/quivergen/ir"
	"github.com/quiverdev/quiver/quivergen/model"
)

// RuntimePath is the import path of the quiver runtime package whose
// contracts anchor shape detection.
const RuntimePath = ir.RuntimePath

// Decorators analyzes every //quiver:decorator declaration and returns
// one definition per marker name. Classification of constructor
// parameters into config, service, and the inner-handler slot is purely
// structural, so it is stable across runs.
func Decorators(m *model.Model, im *model.Imports) ([]*ir.DecoratorDefinition, []ir.Diagnostic) {
	var defs []*ir.DecoratorDefinition
	var diags []ir.Diagnostic
	seen := make(map[string]*ir.DecoratorDefinition)

	for _, td := range m.Types {
		dir := td.Directive(directive.KindDecorator)
		if dir == nil {
			continue
		}

		if prev := seen[dir.Name]; prev != nil {
			diags = append(diags, ir.Diagnostic{
				Code:    "duplicate_marker",
				Message: fmt.Sprintf("marker %s already declared at %s", dir.Name, prev.Pos),
				Pos:     td.Pos,
			})
			continue
		}

		def, ds := analyzeDecorator(m, im, td, dir)
		diags = append(diags, ds...)
		defs = append(defs, def)
		seen[dir.Name] = def
	}

	return defs, diags
}

func analyzeDecorator(m *model.Model, im *model.Imports, td *model.TypeDecl, dir *directive.Directive) (*ir.DecoratorDefinition, []ir.Diagnostic) {
	var diags []ir.Diagnostic

	def := &ir.DecoratorDefinition{
		Marker:  dir.Name,
		Type:    qualifiedName(im, td.Obj),
		ReqSlot: 0,
		ResSlot: 1,
		Pos:     td.Pos,
	}

	if td.Named.TypeParams().Len() != 2 {
		// A decorator wraps one request/response pair; anything else
		// cannot be composed. Recorded degraded so usages still resolve
		// and surface visibly instead of silently miscompiling.
		def.Degraded = true
		def.TypeParams = typeParamNames(td.Named.TypeParams())
		diags = append(diags, ir.Diagnostic{
			Code:    "decorator_bad_shape",
			Message: fmt.Sprintf("decorator %s must have exactly two type parameters, has %d", td.Obj.Name(), td.Named.TypeParams().Len()),
			Pos:     td.Pos,
		})
		return def, diags
	}
	def.TypeParams = typeParamNames(td.Named.TypeParams())

	ctor := m.Constructor(td)
	if ctor == nil {
		def.Degraded = true
		diags = append(diags, ir.Diagnostic{
			Code:    "decorator_no_constructor",
			Message: fmt.Sprintf("decorator %s (marker %s) has no constructor; composition will fall back to a bare literal", td.Obj.Name(), dir.Name),
			Pos:     td.Pos,
		})
		return def, diags
	}

	def.Ctor = qualifiedName(im, ctor.Func)
	if tp := ctor.Sig.TypeParams(); tp.Len() == 2 {
		def.TypeParams = typeParamNames(tp)
	} else {
		def.Degraded = true
		diags = append(diags, ir.Diagnostic{
			Code:    "decorator_bad_shape",
			Message: fmt.Sprintf("constructor %s must mirror the decorator's two type parameters", ctor.Func.Name()),
			Pos:     td.Pos,
		})
		return def, diags
	}

	innerSeen := false
	params := ctor.Sig.Params()
	for i := 0; i < params.Len(); i++ {
		pv := params.At(i)
		p := classifyParam(im, pv, def.TypeParams, innerSeen)
		if p.Class == ir.ClassInner {
			innerSeen = true
			if req, res, ok := innerSlots(pv.Type(), def.TypeParams); ok {
				def.ReqSlot, def.ResSlot = req, res
			} else {
				diags = append(diags, ir.Diagnostic{
					Code:    "decorator_bad_shape",
					Message: fmt.Sprintf("decorator %s: inner slot must name both type parameters; keeping the positional mapping", td.Obj.Name()),
					Pos:     td.Pos,
				})
			}
		}
		if p.Class == ir.ClassConfig {
			p.Default = dir.Default(p.Name)
		}
		def.Params = append(def.Params, p)
	}

	if !innerSeen {
		// Without an inner slot the wrapper cannot thread the composed
		// chain; the positional slot mapping stays in effect.
		diags = append(diags, ir.Diagnostic{
			Code:    "decorator_no_inner",
			Message: fmt.Sprintf("decorator %s has no inner-handler parameter; it will not receive the wrapped handler", td.Obj.Name()),
			Pos:     td.Pos,
		})
	}

	// Directive defaults that matched nothing are authoring mistakes
	// worth surfacing.
	for _, d := range dir.Defaults {
		if !hasConfigParam(def, d.Key) {
			diags = append(diags, ir.Diagnostic{
				Code:    "default_unmatched",
				Message: fmt.Sprintf("decorator %s declares default %s= but has no config parameter %q", td.Obj.Name(), d.Key, d.Key),
				Pos:     dir.Pos,
			})
		}
	}

	return def, diags
}

// classifyParam classifies one constructor parameter from its type shape:
// the wrapped-handler contract becomes the inner slot, literal-
// representable types become config, everything else is an injected
// service.
func classifyParam(im *model.Imports, pv *types.Var, typeParams []string, innerTaken bool) ir.Param {
	t := pv.Type()

	if !innerTaken && isInnerContract(t, typeParams) {
		return ir.Param{
			Name:  pv.Name(),
			Class: ir.ClassInner,
			Type:  im.Render(t),
		}
	}

	if kind, elem, optional, ok := configShape(t); ok {
		return ir.Param{
			Name:       pv.Name(),
			Class:      ir.ClassConfig,
			Type:       im.Render(elem),
			ConfigKind: kind,
			Zero:       zeroLiteral(im, kind, elem),
			Optional:   optional,
		}
	}

	return ir.Param{
		Name:  pv.Name(),
		Class: ir.ClassService,
		Type:  im.Render(t),
	}
}

// isInnerContract reports whether t is quiver.Handler instantiated over
// the decorator's own type parameters.
func isInnerContract(t types.Type, typeParams []string) bool {
	named, ok := t.(*types.Named)
	if !ok {
		return false
	}
	obj := named.Obj()
	if obj.Pkg() == nil || obj.Pkg().Path() != RuntimePath || obj.Name() != "Handler" {
		return false
	}
	args := named.TypeArgs()
	if args.Len() != 2 {
		return false
	}
	for i := 0; i < args.Len(); i++ {
		tp, ok := args.At(i).(*types.TypeParam)
		if !ok || !containsName(typeParams, tp.Obj().Name()) {
			return false
		}
	}
	return true
}

// innerSlots maps the Handler[A, B] instantiation onto the constructor's
// type-parameter positions: A is the request slot, B the response slot.
// This is the declared slot mapping; no name heuristics.
func innerSlots(t types.Type, typeParams []string) (req, res int, ok bool) {
	named, isNamed := t.(*types.Named)
	if !isNamed || named.TypeArgs().Len() != 2 {
		return 0, 0, false
	}
	req, res = -1, -1
	for i, name := range typeParams {
		if a, ok := named.TypeArgs().At(0).(*types.TypeParam); ok && a.Obj().Name() == name {
			req = i
		}
		if b, ok := named.TypeArgs().At(1).(*types.TypeParam); ok && b.Obj().Name() == name {
			res = i
		}
	}
	if req < 0 || res < 0 || req == res {
		// Handler[A, A] leaves one slot unmapped; no usable mapping.
		return 0, 0, false
	}
	return req, res, true
}

// configShape reports whether t is literal-representable: a basic type, a
// named type with a basic underlying type, or a single pointer layer over
// either (the optional wrapping, unwrapped for the marker property).
func configShape(t types.Type) (kind ir.ConfigKind, elem types.Type, optional bool, ok bool) {
	if ptr, isPtr := t.(*types.Pointer); isPtr {
		optional = true
		t = ptr.Elem()
	}

	switch u := t.(type) {
	case *types.Basic:
		kind, ok = basicConfigKind(u)
		return kind, t, optional, ok
	case *types.Named:
		basic, isBasic := u.Underlying().(*types.Basic)
		if !isBasic {
			return 0, nil, false, false
		}
		if _, underlyingOK := basicConfigKind(basic); !underlyingOK {
			return 0, nil, false, false
		}
		return ir.ConfigEnum, t, optional, true
	default:
		return 0, nil, false, false
	}
}

func basicConfigKind(b *types.Basic) (ir.ConfigKind, bool) {
	switch {
	case b.Kind() == types.String:
		return ir.ConfigString, true
	case b.Kind() == types.Bool:
		return ir.ConfigBool, true
	case b.Info()&types.IsUnsigned != 0:
		return ir.ConfigUint, true
	case b.Info()&types.IsInteger != 0:
		return ir.ConfigInt, true
	case b.Info()&types.IsFloat != 0:
		return ir.ConfigFloat, true
	default:
		return 0, false
	}
}

// zeroLiteral renders the language-default sentinel for a config kind,
// the last-resort fallback when a usage supplies no argument and the
// definition captured no default.
func zeroLiteral(im *model.Imports, kind ir.ConfigKind, elem types.Type) string {
	switch kind {
	case ir.ConfigString:
		return `""`
	case ir.ConfigBool:
		return "false"
	case ir.ConfigFloat:
		return "0.0"
	case ir.ConfigEnum:
		named := elem.(*types.Named)
		inner, _ := basicConfigKind(named.Underlying().(*types.Basic))
		return fmt.Sprintf("%s(%s)", im.Render(elem), zeroLiteral(im, inner, named.Underlying()))
	default:
		return "0"
	}
}

func qualifiedName(im *model.Imports, obj types.Object) string {
	if obj.Pkg() == nil {
		return obj.Name()
	}
	qual := im.Name(obj.Pkg().Path(), obj.Pkg().Name())
	if qual == "" {
		return obj.Name()
	}
	return qual + "." + obj.Name()
}

func typeParamNames(tp *types.TypeParamList) []string {
	names := make([]string, tp.Len())
	for i := 0; i < tp.Len(); i++ {
		names[i] = tp.At(i).Obj().Name()
	}
	return names
}

func containsName(names []string, name string) bool {
	for _, n := range names {
		if n == name {
			return true
		}
	}
	return false
}

func hasConfigParam(def *ir.DecoratorDefinition, name string) bool {
	for _, p := range def.Params {
		if p.Class == ir.ClassConfig && p.Name == name {
			return true
		}
	}
	return false
}
