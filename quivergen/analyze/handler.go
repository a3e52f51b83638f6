package analyze

import (
	"fmt"
	"go/types"

	"github.com/quiverdev/quiver/internal/directive"
	"github.com/quiverdev/quiver/quivergen/ir"
	"github.com/quiverdev/quiver/quivergen/model"
)

// Handlers discovers every concrete handler in the loaded packages: a
// non-generic named type with a Handle method matching one of the four
// contract shapes, whose request type embeds a quiver kind marker.
// Decorator types themselves are excluded, as is any generic type.
func Handlers(m *model.Model, im *model.Imports) ([]*ir.HandlerDescriptor, []ir.Diagnostic) {
	var handlers []*ir.HandlerDescriptor
	var diags []ir.Diagnostic

	// contract key -> concrete expr, to reject double registrations of
	// one command/query contract.
	claimed := make(map[string]string)

	for _, td := range m.Types {
		if td.Directive(directive.KindDecorator) != nil {
			continue
		}
		if td.Named.TypeParams().Len() > 0 {
			continue
		}
		if _, isIface := td.Named.Underlying().(*types.Interface); isIface {
			continue
		}

		h, d := analyzeHandler(m, im, td)
		if d != nil {
			diags = append(diags, *d)
			continue
		}
		if h == nil {
			continue
		}

		if h.Kind != ir.KindNotification {
			key := h.Request + "→" + h.Response
			if prev, dup := claimed[key]; dup {
				diags = append(diags, ir.Diagnostic{
					Code:    "duplicate_contract",
					Message: fmt.Sprintf("%s and %s both handle %s; keeping %s", prev, h.Concrete, h.Request, prev),
					Pos:     h.Pos,
				})
				continue
			}
			claimed[key] = h.Concrete
		}

		h.Index = len(handlers)
		handlers = append(handlers, h)
	}

	return handlers, diags
}

// analyzeHandler returns (nil, nil) for types that are simply not
// handlers, and a diagnostic for types that look like handlers but have a
// contradictory shape.
func analyzeHandler(m *model.Model, im *model.Imports, td *model.TypeDecl) (*ir.HandlerDescriptor, *ir.Diagnostic) {
	method := lookupHandle(td.Named)
	if method == nil {
		return nil, nil
	}

	sig := method.Type().(*types.Signature)
	reqNamed, resType, ptrReq, ok := contractShape(sig)
	if !ok {
		return nil, nil
	}

	marker := kindMarker(reqNamed)
	if marker == "" {
		return nil, nil
	}

	// The contract is keyed by the request value type; a pointer request
	// would register *T while the wrappers expect T. Refuse it rather
	// than emit code that cannot compile.
	if ptrReq {
		return nil, &ir.Diagnostic{
			Code:    "handler_shape",
			Message: fmt.Sprintf("%s: Handle takes *%s; requests must be passed by value", td.Obj.Name(), reqNamed.Obj().Name()),
			Pos:     td.Pos,
		}
	}

	var kind ir.Kind
	void := resType == nil
	switch {
	case marker == "Command" && void:
		kind = ir.KindCommandVoid
	case marker == "Command":
		kind = ir.KindCommand
	case marker == "Query" && !void:
		kind = ir.KindQuery
	case marker == "Event" && void:
		kind = ir.KindNotification
	default:
		return nil, &ir.Diagnostic{
			Code:    "handler_shape",
			Message: fmt.Sprintf("%s: a %s request cannot pair with this Handle signature", td.Obj.Name(), marker),
			Pos:     td.Pos,
		}
	}

	ptrRecv := false
	if recv := sig.Recv(); recv != nil {
		_, ptrRecv = recv.Type().(*types.Pointer)
	}

	h := &ir.HandlerDescriptor{
		Kind:    kind,
		Name:    td.Obj.Name(),
		Request: im.Render(reqNamed),
		Pos:     td.Pos,
	}

	switch kind {
	case ir.KindCommand, ir.KindQuery:
		h.Response = im.Render(resType)
	case ir.KindCommandVoid:
		h.Response = runtimeQual(im) + ".Void"
	}

	ctor := m.Constructor(td)
	concretePtr := ptrRecv || (ctor != nil && ctor.ReturnsPointer)
	h.Concrete = im.Render(td.Named)
	if concretePtr {
		h.Concrete = "*" + h.Concrete
	}
	if ctor != nil {
		h.Ctor = qualifiedName(im, ctor.Func)
		h.CtorPointer = ctor.ReturnsPointer
		params := ctor.Sig.Params()
		for i := 0; i < params.Len(); i++ {
			h.CtorArgs = append(h.CtorArgs, im.Render(params.At(i).Type()))
		}
	}

	// Markers are read from the request type's own declaration syntax.
	// Notifications carry no ordering markers; any attached ones are
	// ignored by kind.
	if kind != ir.KindNotification {
		if reqDecl := m.Lookup(reqNamed.Obj()); reqDecl != nil {
			for i, use := range reqDecl.Uses() {
				u := ir.DecoratorUsage{
					Marker: use.Name,
					Order:  ir.OrderLast,
					Args:   use.Args,
					Index:  i,
					Pos:    use.Pos,
				}
				if use.Order != nil {
					u.Order = *use.Order
				}
				h.Usages = append(h.Usages, u)
			}
		}
	}

	return h, nil
}

func lookupHandle(named *types.Named) *types.Func {
	for i := 0; i < named.NumMethods(); i++ {
		if m := named.Method(i); m.Name() == "Handle" {
			return m
		}
	}
	return nil
}

// contractShape matches Handle(ctx context.Context, req R) (res, error)
// and Handle(ctx context.Context, req R) error. resType is nil for the
// void shape. ptrReq reports a *R request, which the caller rejects.
func contractShape(sig *types.Signature) (req *types.Named, resType types.Type, ptrReq, ok bool) {
	params := sig.Params()
	if params.Len() != 2 || !isContextType(params.At(0).Type()) {
		return nil, nil, false, false
	}

	reqType := params.At(1).Type()
	if ptr, isPtr := reqType.(*types.Pointer); isPtr {
		ptrReq = true
		reqType = ptr.Elem()
	}
	named, isNamed := reqType.(*types.Named)
	if !isNamed {
		return nil, nil, false, false
	}

	res := sig.Results()
	switch res.Len() {
	case 1:
		if !isErrorType(res.At(0).Type()) {
			return nil, nil, false, false
		}
		return named, nil, ptrReq, true
	case 2:
		if !isErrorType(res.At(1).Type()) {
			return nil, nil, false, false
		}
		return named, res.At(0).Type(), ptrReq, true
	default:
		return nil, nil, false, false
	}
}

// kindMarker returns "Command", "Query", or "Event" when the request
// struct embeds the corresponding quiver marker, and "" otherwise.
func kindMarker(named *types.Named) string {
	st, ok := named.Underlying().(*types.Struct)
	if !ok {
		return ""
	}
	for i := 0; i < st.NumFields(); i++ {
		f := st.Field(i)
		if !f.Embedded() {
			continue
		}
		fn, ok := f.Type().(*types.Named)
		if !ok {
			continue
		}
		obj := fn.Obj()
		if obj.Pkg() == nil || obj.Pkg().Path() != RuntimePath {
			continue
		}
		switch obj.Name() {
		case "Command", "Query", "Event":
			return obj.Name()
		}
	}
	return ""
}

func isContextType(t types.Type) bool {
	named, ok := t.(*types.Named)
	if !ok {
		return false
	}
	obj := named.Obj()
	return obj.Pkg() != nil && obj.Pkg().Path() == "context" && obj.Name() == "Context"
}

func isErrorType(t types.Type) bool {
	named, ok := t.(*types.Named)
	return ok && named.Obj().Pkg() == nil && named.Obj().Name() == "error"
}

func runtimeQual(im *model.Imports) string {
	return im.Name(RuntimePath, "quiver")
}
