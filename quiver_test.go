package quiver

import (
	"context"
	"errors"
	"testing"
)

func TestHandlerFunc(t *testing.T) {
	h := HandlerFunc[int, string](func(ctx context.Context, req int) (string, error) {
		if req < 0 {
			return "", errors.New("negative")
		}
		return "ok", nil
	})

	res, err := h.Handle(context.Background(), 1)
	if err != nil || res != "ok" {
		t.Fatalf("Handle(1) = (%q, %v), want (ok, nil)", res, err)
	}
	if _, err := h.Handle(context.Background(), -1); err == nil {
		t.Fatal("Handle(-1) succeeded, want error")
	}
}

type countingVoid struct {
	calls int
	err   error
}

func (c *countingVoid) Handle(ctx context.Context, req int) error {
	c.calls++
	return c.err
}

func TestAsHandler(t *testing.T) {
	inner := &countingVoid{}
	h := AsHandler[int](inner)

	res, err := h.Handle(context.Background(), 5)
	if err != nil {
		t.Fatalf("Handle() error = %v", err)
	}
	if res != (Void{}) {
		t.Errorf("Handle() = %v, want the Void sentinel", res)
	}
	if inner.calls != 1 {
		t.Errorf("inner called %d times, want 1", inner.calls)
	}

	boom := errors.New("boom")
	inner.err = boom
	if _, err := h.Handle(context.Background(), 5); !errors.Is(err, boom) {
		t.Errorf("Handle() error = %v, want %v", err, boom)
	}
}
