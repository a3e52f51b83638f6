// Package quiver provides the runtime contracts for quiver's generated
// dispatch wiring: handler and decorator interfaces, the request kind
// markers, an explicit registration table, and the event publish contract.
//
// Application code implements handlers against these interfaces and tags
// request types with //quiver:use directives; the quiver CLI generates the
// registration function, the marker types, and the event dispatcher that
// tie everything together. See the quivergen package for the generator.
package quiver

import "context"

// Handler is the uniform request contract for commands and queries.
// Decorators wrap one Handler around another, forming a call chain that
// executes strictly sequentially from the outermost layer inward. The
// context is threaded unchanged through every layer; a layer observing
// cancellation aborts and the failure propagates out unmodified.
type Handler[Req any, Res any] interface {
	Handle(ctx context.Context, req Req) (Res, error)
}

// VoidHandler is the contract for commands without a result and for
// notification subscribers.
type VoidHandler[Req any] interface {
	Handle(ctx context.Context, req Req) error
}

// Void is the response sentinel for commands that return nothing.
type Void struct{}

// Command marks a request type as a command. Embed it in the request
// struct; the generator classifies the handler kind from this marker and
// the Handle signature.
type Command struct{}

// Query marks a request type as a query.
type Query struct{}

// Event marks a type as a notification event. Handlers for an event are
// fanned out sequentially by the generated dispatcher.
type Event struct{}

// HandlerFunc adapts a function to the Handler interface.
type HandlerFunc[Req any, Res any] func(ctx context.Context, req Req) (Res, error)

// Handle calls f.
func (f HandlerFunc[Req, Res]) Handle(ctx context.Context, req Req) (Res, error) {
	return f(ctx, req)
}

type voidAdapter[Req any] struct {
	inner VoidHandler[Req]
}

func (a voidAdapter[Req]) Handle(ctx context.Context, req Req) (Void, error) {
	return Void{}, a.inner.Handle(ctx, req)
}

// AsHandler adapts a void command handler into the decorator-wrappable
// Handler shape using the Void sentinel as its response type. Generated
// factories use this so void commands share the same pipeline machinery.
func AsHandler[Req any](h VoidHandler[Req]) Handler[Req, Void] {
	return voidAdapter[Req]{inner: h}
}

// Publisher is the event publish contract implemented by the generated
// dispatcher. Publish dispatches the event to every subscriber handler
// registered for its concrete type, invoking each sequentially in
// discovery order and stopping at the first failure.
type Publisher interface {
	Publish(ctx context.Context, event any) error
}
