// Package httpbridge maps HTTP requests onto quiver handlers resolved
// from a registry. GET requests decode the query string, everything else
// decodes a JSON body; responses use a {"result": ...} / {"error": ...}
// envelope.
package httpbridge

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"reflect"

	"github.com/gorilla/schema"

	"github.com/quiverdev/quiver"
)

var queryDecoder = schema.NewDecoder()

func init() {
	queryDecoder.IgnoreUnknownKeys(true)
}

// response is the envelope for successful responses.
type response struct {
	Result any `json:"result"`
}

// errorResponse is the envelope for failures.
type errorResponse struct {
	Error errorBody `json:"error"`
}

type errorBody struct {
	Message string `json:"message"`
}

// Bind returns an http.Handler serving the Req/Res contract registered
// in reg. The handler is resolved per request, so registrations made
// after Bind still take effect.
func Bind[Req, Res any](reg *quiver.Registry) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		req, err := decodeRequest[Req](r)
		if err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}

		h, err := quiver.Resolve[quiver.Handler[Req, Res]](reg)
		if err != nil {
			writeError(w, http.StatusNotImplemented, err)
			return
		}

		res, err := h.Handle(r.Context(), req)
		if err != nil {
			writeError(w, http.StatusInternalServerError, err)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(response{Result: res})
	})
}

// BindVoid is Bind for void-command contracts registered through the
// quiver.Void sentinel.
func BindVoid[Req any](reg *quiver.Registry) http.Handler {
	return Bind[Req, quiver.Void](reg)
}

func decodeRequest[Req any](r *http.Request) (Req, error) {
	var req Req

	if r.Method == http.MethodGet {
		// The query decoder wants a pointer to a struct. When Req is
		// itself a pointer type the zero value is nil, so allocate the
		// element first.
		if t := reflect.TypeOf(req); t != nil && t.Kind() == reflect.Pointer {
			val := reflect.New(t.Elem())
			if err := queryDecoder.Decode(val.Interface(), r.URL.Query()); err != nil {
				return req, err
			}
			req = val.Interface().(Req)
			return req, nil
		}
		if err := queryDecoder.Decode(&req, r.URL.Query()); err != nil {
			return req, err
		}
		return req, nil
	}

	if r.Body == nil {
		return req, nil
	}
	// An empty body is fine; request types with no fields need no
	// payload.
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		return req, err
	}
	return req, nil
}

func writeError(w http.ResponseWriter, status int, err error) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(errorResponse{Error: errorBody{Message: err.Error()}})
}
