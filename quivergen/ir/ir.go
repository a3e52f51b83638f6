// Package ir defines the intermediate representation shared by the
// quivergen analysis and emission stages: handler descriptors, decorator
// definitions, marker usages, and diagnostics.
package ir

import (
	"go/token"
	"math"
)

// RuntimePath is the import path of the quiver runtime package whose
// contracts anchor shape detection and generated code.
const RuntimePath = "github.com/quiverdev/quiver"

// OrderLast is the order of a marker usage without an explicit order=.
// It mirrors quiver.OrderLast: the usage is applied last, as the innermost
// wrapper.
const OrderLast = math.MaxInt32

// Kind classifies a discovered handler by its contract shape.
type Kind int

const (
	KindCommand Kind = iota
	KindCommandVoid
	KindQuery
	KindNotification
)

func (k Kind) String() string {
	switch k {
	case KindCommand:
		return "command"
	case KindCommandVoid:
		return "command (void)"
	case KindQuery:
		return "query"
	case KindNotification:
		return "notification"
	default:
		return "unknown"
	}
}

// Diagnostic is a non-fatal issue found during analysis or planning.
// Diagnostics never abort the pass; they isolate the affected handler or
// decorator and generation continues for everything else.
type Diagnostic struct {
	Code    string
	Message string
	Pos     token.Position
}

// ParamClass classifies one decorator constructor parameter.
type ParamClass int

const (
	// ClassConfig is a literal-representable configuration parameter,
	// exposed as a property on the synthesized marker.
	ClassConfig ParamClass = iota

	// ClassService is an injected dependency resolved from the registry.
	ClassService

	// ClassInner is the distinguished inner-handler slot receiving the
	// composed handler-so-far.
	ClassInner
)

func (c ParamClass) String() string {
	switch c {
	case ClassConfig:
		return "config"
	case ClassService:
		return "service"
	case ClassInner:
		return "inner"
	default:
		return "unknown"
	}
}

// ConfigKind is the literal-representable value kind of a config param.
type ConfigKind int

const (
	ConfigString ConfigKind = iota
	ConfigBool
	ConfigInt
	ConfigUint
	ConfigFloat

	// ConfigEnum is a named type with a basic underlying type; literal
	// values render as a conversion expression Type(value).
	ConfigEnum
)

// Param is one decorator constructor parameter, classified structurally
// from its type shape.
type Param struct {
	Name  string
	Class ParamClass

	// Type is the rendered Go type expression. For config params the
	// optional/pointer layer is already unwrapped (markers cannot hold
	// optional primitives); for service params the decorator's own
	// generic parameter names are left in place as substitution
	// placeholders.
	Type string

	// Config-only fields.
	ConfigKind ConfigKind
	Default    string // verbatim captured literal, "" when none
	Zero       string // rendered zero-value literal, the last-resort fallback
	Optional   bool   // declared as a pointer in the constructor
}

// DecoratorDefinition is the analyzed shape of one //quiver:decorator
// type. Built once per decorator; classification of its constructor
// parameters is a pure function of their type shapes.
type DecoratorDefinition struct {
	// Marker is the name chosen by the directive, e.g. "Logged".
	Marker string

	// Type is the rendered decorator type expression without type
	// arguments, qualified relative to the output package.
	Type string

	// Ctor is the rendered constructor expression, "" when the
	// decorator has no constructor (Degraded is then set).
	Ctor string

	// TypeParams are the constructor's generic parameter names in
	// declaration order; ReqSlot and ResSlot index into it. The mapping
	// comes from the inner-handler slot's Handler[A, B] instantiation.
	TypeParams []string
	ReqSlot    int
	ResSlot    int

	// Params are the constructor parameters in declaration order.
	Params []Param

	// Degraded marks a definition with no usable constructor: usages
	// still resolve to it, but composition emits a visibly degraded
	// parameterless construction.
	Degraded bool

	Pos token.Position
}

// ConfigParams returns the config parameters in declaration order.
func (d *DecoratorDefinition) ConfigParams() []Param {
	var out []Param
	for _, p := range d.Params {
		if p.Class == ClassConfig {
			out = append(out, p)
		}
	}
	return out
}

// DecoratorUsage is one //quiver:use attachment read from a request
// type's declaration syntax.
type DecoratorUsage struct {
	Marker string

	// Order is the pipeline position; OrderLast when order= was omitted.
	Order int

	// Args are the positional literal arguments, verbatim.
	Args []string

	// Index is the syntactic appearance index on the request type; it is
	// the stable tie-break for equal orders.
	Index int

	Pos token.Position
}

// HandlerDescriptor is one discovered concrete handler. Immutable once
// discovered; the uniqueness key is (Concrete, contract shape).
type HandlerDescriptor struct {
	Kind Kind

	// Name is the concrete type's bare name, the deterministic sort key
	// for emission.
	Name string

	// Concrete is the rendered concrete type expression registered for
	// the handler, including a leading * when the Handle method has a
	// pointer receiver.
	Concrete string

	// Request and Response are rendered type expressions. Response is
	// the quiver.Void sentinel for void commands and "" for
	// notifications, which have no response or decorators.
	Request  string
	Response string

	// Usages are the markers attached to the request type, in syntactic
	// order.
	Usages []DecoratorUsage

	// Index is the discovery position across the scanned packages.
	// Notification fan-out runs subscribers in this order.
	Index int

	// Ctor is the rendered constructor expression for the concrete
	// registration, "" when the type is constructed as a literal.
	// CtorArgs are the rendered types of its parameters, each resolved
	// from the registry. CtorPointer reports whether the constructor
	// returns *T.
	Ctor        string
	CtorArgs    []string
	CtorPointer bool

	Pos token.Position
}
