package decorator

import (
	"context"
	"fmt"
	"reflect"

	"github.com/go-playground/validator/v10"

	"github.com/quiverdev/quiver"
)

// Validating rejects a request before its handler runs. Struct tag rules
// (go-playground/validator `validate:"..."` tags) and any registered
// custom checks all run against the same request; checks run
// concurrently and every violation is reported, not just the first.
//
//quiver:decorator Validated
type Validating[Req, Res any] struct {
	next     quiver.Handler[Req, Res]
	validate *validator.Validate
	checks   []quiver.Check[Req]
}

// NewValidating builds the validation decorator around next.
func NewValidating[Req, Res any](next quiver.Handler[Req, Res]) *Validating[Req, Res] {
	return &Validating[Req, Res]{
		next:     next,
		validate: validator.New(validator.WithRequiredStructEnabled()),
	}
}

// WithCheck registers an additional custom check. Checks are read-only
// over the request and must be safe to run concurrently with each other.
func (v *Validating[Req, Res]) WithCheck(check quiver.Check[Req]) *Validating[Req, Res] {
	v.checks = append(v.checks, check)
	return v
}

func (v *Validating[Req, Res]) Handle(ctx context.Context, req Req) (Res, error) {
	checks := make([]quiver.Check[Req], 0, len(v.checks)+1)
	checks = append(checks, v.tagCheck)
	checks = append(checks, v.checks...)

	if err := quiver.RunChecks(ctx, req, checks); err != nil {
		var zero Res
		return zero, fmt.Errorf("validate %s: %w", typeName(req), err)
	}
	return v.next.Handle(ctx, req)
}

// tagCheck applies the struct tag rules. Non-struct requests have no
// tags and pass.
func (v *Validating[Req, Res]) tagCheck(ctx context.Context, req Req) error {
	rv := reflect.ValueOf(req)
	for rv.Kind() == reflect.Pointer {
		if rv.IsNil() {
			return nil
		}
		rv = rv.Elem()
	}
	if rv.Kind() != reflect.Struct {
		return nil
	}
	return v.validate.StructCtx(ctx, rv.Interface())
}

func typeName(v any) string {
	t := reflect.TypeOf(v)
	if t == nil {
		return "<nil>"
	}
	for t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	if t.Name() != "" {
		return t.Name()
	}
	return t.String()
}
