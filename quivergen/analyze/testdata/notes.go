// Package testdata is a small note-taking app exercising every handler
// kind and decorator shape the generator understands.
package testdata

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"github.com/quiverdev/quiver"
)

// NoteStore is an injected service dependency.
type NoteStore struct {
	mu    sync.Mutex
	notes map[int]string
}

func NewNoteStore() *NoteStore {
	return &NoteStore{notes: make(map[int]string)}
}

func (s *NoteStore) Put(id int, title string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.notes[id] = title
}

func (s *NoteStore) Get(id int) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	title, ok := s.notes[id]
	return title, ok
}

// Logging is a decorator with a service dep and a defaulted config
// param, the inner slot first.
//
//quiver:decorator Logged level="info"
type Logging[Q, S any] struct {
	next   quiver.Handler[Q, S]
	logger *slog.Logger
	level  string
}

func NewLogging[Q, S any](next quiver.Handler[Q, S], logger *slog.Logger, level string) *Logging[Q, S] {
	return &Logging[Q, S]{next: next, logger: logger, level: level}
}

func (l *Logging[Q, S]) Handle(ctx context.Context, req Q) (S, error) {
	l.logger.Info("handling", slog.String("level", l.level))
	return l.next.Handle(ctx, req)
}

// Caching puts its config param before the inner slot and has no
// default, so omitting the argument degrades to the zero value.
//
//quiver:decorator Cached
type Caching[Req, Res any] struct {
	ttl  int
	next quiver.Handler[Req, Res]
}

func NewCaching[Req, Res any](ttl int, next quiver.Handler[Req, Res]) *Caching[Req, Res] {
	return &Caching[Req, Res]{ttl: ttl, next: next}
}

func (c *Caching[Req, Res]) Handle(ctx context.Context, req Req) (Res, error) {
	return c.next.Handle(ctx, req)
}

// Auditing has no constructor at all.
//
//quiver:decorator Audited
type Auditing[Req, Res any] struct {
	Next quiver.Handler[Req, Res]
}

func (a *Auditing[Req, Res]) Handle(ctx context.Context, req Req) (Res, error) {
	if a.Next == nil {
		var zero Res
		return zero, errors.New("auditing: no inner handler")
	}
	return a.Next.Handle(ctx, req)
}

// Mirroring declares its inner slot over a single type parameter, so
// the request/response mapping cannot be read from it.
//
//quiver:decorator Mirrored
type Mirroring[Q, S any] struct {
	next quiver.Handler[Q, Q]
}

func NewMirroring[Q, S any](next quiver.Handler[Q, Q]) *Mirroring[Q, S] {
	return &Mirroring[Q, S]{next: next}
}

func (m *Mirroring[Q, S]) Handle(ctx context.Context, req Q) (S, error) {
	var zero S
	if _, err := m.next.Handle(ctx, req); err != nil {
		return zero, err
	}
	return zero, nil
}

// NoteID is a response type.
type NoteID struct {
	ID int
}

// CreateNote is a command with two markers: an explicit position and a
// defaulted one.
//
//quiver:use Logged("debug") order=1
//quiver:use Cached(600)
type CreateNote struct {
	quiver.Command
	Title string
}

type CreateNoteHandler struct {
	store *NoteStore
	next  int
}

func NewCreateNoteHandler(store *NoteStore) *CreateNoteHandler {
	return &CreateNoteHandler{store: store}
}

func (h *CreateNoteHandler) Handle(ctx context.Context, req CreateNote) (NoteID, error) {
	h.next++
	h.store.Put(h.next, req.Title)
	return NoteID{ID: h.next}, nil
}

// PurgeNotes is a void command; its marker argument is omitted and the
// parameter has no default.
//
//quiver:use Cached
type PurgeNotes struct {
	quiver.Command
}

type PurgeNotesHandler struct {
	store *NoteStore
}

func NewPurgeNotesHandler(store *NoteStore) *PurgeNotesHandler {
	return &PurgeNotesHandler{store: store}
}

func (h *PurgeNotesHandler) Handle(ctx context.Context, req PurgeNotes) error {
	return nil
}

// GetNote is a query with no markers; its handler has no constructor.
type GetNote struct {
	quiver.Query
	ID int
}

type GetNoteHandler struct{}

func (GetNoteHandler) Handle(ctx context.Context, req GetNote) (string, error) {
	return "", nil
}

// RenameNote's handler takes the request by pointer, which the dispatch
// contract does not allow.
type RenameNote struct {
	quiver.Command
	ID    int
	Title string
}

type RenameNoteHandler struct{}

func (RenameNoteHandler) Handle(ctx context.Context, req *RenameNote) error {
	return nil
}

// NoteCreated is a notification with two subscribers.
type NoteCreated struct {
	quiver.Event
	ID int
}

type NoteAuditor struct{}

func NewNoteAuditor() *NoteAuditor {
	return &NoteAuditor{}
}

func (a *NoteAuditor) Handle(ctx context.Context, ev NoteCreated) error {
	return nil
}

type NoteIndexer struct{}

func NewNoteIndexer() *NoteIndexer {
	return &NoteIndexer{}
}

func (i *NoteIndexer) Handle(ctx context.Context, ev NoteCreated) error {
	return nil
}
