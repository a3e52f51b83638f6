package emit

import (
	"bytes"
	"strings"
	"testing"

	"github.com/quiverdev/quiver/quivergen/ir"
	"github.com/quiverdev/quiver/quivergen/model"
	"github.com/quiverdev/quiver/quivergen/plan"
)

func testDefs() []*ir.DecoratorDefinition {
	return []*ir.DecoratorDefinition{
		{
			Marker:     "Logged",
			Type:       "Logging",
			Ctor:       "NewLogging",
			TypeParams: []string{"Q", "S"},
			ReqSlot:    0,
			ResSlot:    1,
			Params: []ir.Param{
				{Name: "next", Class: ir.ClassInner},
				{Name: "logger", Class: ir.ClassService, Type: "*slog.Logger"},
				{Name: "level", Class: ir.ClassConfig, Type: "string", ConfigKind: ir.ConfigString, Default: `"info"`, Zero: `""`},
			},
		},
		{
			Marker:     "Cached",
			Type:       "Caching",
			Ctor:       "NewCaching",
			TypeParams: []string{"Req", "Res"},
			ReqSlot:    0,
			ResSlot:    1,
			Params: []ir.Param{
				{Name: "ttl", Class: ir.ClassConfig, Type: "int", ConfigKind: ir.ConfigInt, Zero: "0"},
				{Name: "next", Class: ir.ClassInner},
			},
		},
	}
}

func testPlans(t *testing.T, defs []*ir.DecoratorDefinition) []*plan.Plan {
	t.Helper()

	command := &ir.HandlerDescriptor{
		Kind:        ir.KindCommand,
		Name:        "CreateNoteHandler",
		Concrete:    "*CreateNoteHandler",
		Request:     "CreateNote",
		Response:    "NoteID",
		Ctor:        "NewCreateNoteHandler",
		CtorArgs:    []string{"*NoteStore"},
		CtorPointer: true,
		Usages: []ir.DecoratorUsage{
			{Marker: "Logged", Order: 2, Index: 0, Args: []string{`"debug"`}},
			{Marker: "Cached", Order: 1, Index: 1, Args: []string{"600"}},
		},
	}
	void := &ir.HandlerDescriptor{
		Kind:     ir.KindCommandVoid,
		Name:     "PurgeNotesHandler",
		Concrete: "*PurgeNotesHandler",
		Request:  "PurgeNotes",
		Response: "quiver.Void",
	}
	query := &ir.HandlerDescriptor{
		Kind:     ir.KindQuery,
		Name:     "GetNoteHandler",
		Concrete: "GetNoteHandler",
		Request:  "GetNote",
		Response: "string",
	}
	auditor := &ir.HandlerDescriptor{
		Kind:     ir.KindNotification,
		Name:     "NoteAuditor",
		Concrete: "*NoteAuditor",
		Request:  "NoteCreated",
		Index:    3,
	}
	indexer := &ir.HandlerDescriptor{
		Kind:     ir.KindNotification,
		Name:     "NoteIndexer",
		Concrete: "*NoteIndexer",
		Request:  "NoteCreated",
		Index:    4,
	}

	var plans []*plan.Plan
	for _, h := range []*ir.HandlerDescriptor{command, void, query, auditor, indexer} {
		p, diags := plan.Build(h, defs)
		if len(diags) != 0 {
			t.Fatalf("plan.Build(%s) diagnostics: %v", h.Name, diags)
		}
		plans = append(plans, p)
	}
	return plans
}

func render(t *testing.T) string {
	t.Helper()
	im := model.NewImports("example.com/app")
	im.Name("log/slog", "slog")

	defs := testDefs()
	src, diags := File("app", im, defs, testPlans(t, defs))
	if len(diags) != 0 {
		t.Fatalf("File() diagnostics: %v", diags)
	}
	return string(src)
}

func TestFile_HeaderAndImports(t *testing.T) {
	src := render(t)

	if !strings.HasPrefix(src, "// Code generated by quiver; DO NOT EDIT.") {
		t.Error("missing generated-code header")
	}
	if !strings.Contains(src, "package app") {
		t.Error("missing package clause")
	}
	for _, imp := range []string{`"context"`, `"github.com/quiverdev/quiver"`, `"log/slog"`} {
		if !strings.Contains(src, imp) {
			t.Errorf("missing import %s", imp)
		}
	}
}

func TestFile_SynthesizedMarkers(t *testing.T) {
	src := render(t)

	for _, want := range []string{
		"type LoggedMarker struct {",
		"Level string",
		"func Logged(level string) LoggedMarker {",
		"func (m LoggedMarker) At(order int) LoggedMarker {",
		`func (m LoggedMarker) MarkerName() string { return "Logged" }`,
		"func (m LoggedMarker) Order() int { return m.order }",
		"type CachedMarker struct {",
		"Ttl int",
	} {
		if !strings.Contains(src, want) {
			t.Errorf("missing %q in generated output", want)
		}
	}

	// Markers emit in name order: Cached before Logged.
	if strings.Index(src, "type CachedMarker") > strings.Index(src, "type LoggedMarker") {
		t.Error("markers not emitted in name order")
	}
}

func TestFile_WrapOrderAndRegistration(t *testing.T) {
	src := render(t)

	if !strings.Contains(src, "func RegisterHandlers(reg *quiver.Registry) {") {
		t.Fatal("missing RegisterHandlers")
	}
	if !strings.Contains(src, "return NewCreateNoteHandler(quiver.MustResolve[*NoteStore](r))") {
		t.Error("missing concrete constructor registration")
	}

	// Logged has order 2, Cached order 1: Logged wraps the handler
	// first, Cached wraps Logged and observes the call first.
	logging := strings.Index(src, "h = NewLogging[CreateNote, NoteID](h, quiver.MustResolve[*slog.Logger](r), \"debug\")")
	caching := strings.Index(src, "h = NewCaching[CreateNote, NoteID](600, h)")
	if logging < 0 || caching < 0 {
		t.Fatalf("missing decorator constructions:\n%s", src)
	}
	if logging > caching {
		t.Error("lowest order must be constructed last (outermost)")
	}

	// Metadata reports pipeline order, outermost first.
	if !strings.Contains(src, `quiver.Annotate[CreateNote](reg, Cached(600).At(1), Logged("debug").At(2))`) {
		t.Error("missing or misordered Annotate call")
	}
}

func TestFile_VoidCommandAdapts(t *testing.T) {
	src := render(t)

	if !strings.Contains(src, "quiver.Handler[PurgeNotes, quiver.Void]") {
		t.Error("missing void contract registration")
	}
	if !strings.Contains(src, "quiver.AsHandler(quiver.MustResolve[*PurgeNotesHandler](r))") {
		t.Error("void handler not adapted with AsHandler")
	}
}

func TestFile_DispatcherSequentialFailFast(t *testing.T) {
	src := render(t)

	if !strings.Contains(src, "func (d *Dispatcher) Publish(ctx context.Context, event any) error {") {
		t.Fatal("missing Publish")
	}
	if !strings.Contains(src, "case NoteCreated:") {
		t.Error("missing notification case")
	}
	auditor := strings.Index(src, "quiver.MustResolve[*NoteAuditor](d.reg).Handle(ctx, ev)")
	indexer := strings.Index(src, "quiver.MustResolve[*NoteIndexer](d.reg).Handle(ctx, ev)")
	if auditor < 0 || indexer < 0 {
		t.Fatal("missing subscriber invocations")
	}
	if auditor > indexer {
		t.Error("subscribers out of discovery order")
	}
	if !strings.Contains(src, "quiver.RegisterValue[quiver.Publisher](reg, NewDispatcher(reg))") {
		t.Error("publisher not registered")
	}
}

func TestFile_DispatcherDiscoveryOrderBeatsNameOrder(t *testing.T) {
	// Subscriber names reverse the discovery order; the fan-out must
	// follow discovery, even though registration blocks sort by name.
	zebra := &ir.HandlerDescriptor{
		Kind:     ir.KindNotification,
		Name:     "ZebraAuditor",
		Concrete: "*ZebraAuditor",
		Request:  "NoteCreated",
		Index:    0,
	}
	alpha := &ir.HandlerDescriptor{
		Kind:     ir.KindNotification,
		Name:     "AlphaIndexer",
		Concrete: "*AlphaIndexer",
		Request:  "NoteCreated",
		Index:    1,
	}
	var plans []*plan.Plan
	for _, h := range []*ir.HandlerDescriptor{zebra, alpha} {
		p, diags := plan.Build(h, nil)
		if len(diags) != 0 {
			t.Fatalf("plan.Build(%s) diagnostics: %v", h.Name, diags)
		}
		plans = append(plans, p)
	}

	im := model.NewImports("example.com/app")
	src, diags := File("app", im, nil, plans)
	if len(diags) != 0 {
		t.Fatalf("File() diagnostics: %v", diags)
	}
	out := string(src)

	zebraCall := strings.Index(out, "quiver.MustResolve[*ZebraAuditor](d.reg).Handle(ctx, ev)")
	alphaCall := strings.Index(out, "quiver.MustResolve[*AlphaIndexer](d.reg).Handle(ctx, ev)")
	if zebraCall < 0 || alphaCall < 0 {
		t.Fatal("missing subscriber invocations")
	}
	if zebraCall > alphaCall {
		t.Error("subscribers must fan out in discovery order, not name order")
	}
}

func TestFile_DegradedStepIsVisible(t *testing.T) {
	defs := []*ir.DecoratorDefinition{{
		Marker:     "Audited",
		Type:       "Auditing",
		TypeParams: []string{"Req", "Res"},
		ReqSlot:    0,
		ResSlot:    1,
		Degraded:   true,
	}}
	h := &ir.HandlerDescriptor{
		Kind:     ir.KindCommand,
		Name:     "CreateNoteHandler",
		Concrete: "*CreateNoteHandler",
		Request:  "CreateNote",
		Response: "NoteID",
		Usages:   []ir.DecoratorUsage{{Marker: "Audited", Order: ir.OrderLast}},
	}
	p, _ := plan.Build(h, defs)

	im := model.NewImports("example.com/app")
	src, diags := File("app", im, defs, []*plan.Plan{p})
	if len(diags) != 0 {
		t.Fatalf("File() diagnostics: %v", diags)
	}
	out := string(src)
	if !strings.Contains(out, "// degraded: Auditing has no usable constructor") {
		t.Error("degraded construction not visibly commented")
	}
	if !strings.Contains(out, "h = &Auditing[CreateNote, NoteID]{}") {
		t.Error("missing degraded literal construction")
	}
}

func TestFile_Deterministic(t *testing.T) {
	first := []byte(render(t))
	second := []byte(render(t))
	if !bytes.Equal(first, second) {
		t.Error("two renders of the same analysis differ")
	}
}

func TestFile_OmitsUnusedImports(t *testing.T) {
	im := model.NewImports("example.com/app")
	// Recorded during analysis but never referenced by any surviving
	// construction.
	im.Name("example.com/unused", "unused")

	src, diags := File("app", im, nil, nil)
	if len(diags) != 0 {
		t.Fatalf("File() diagnostics: %v", diags)
	}
	if strings.Contains(string(src), "example.com/unused") {
		t.Error("unused import survived filtering")
	}
}
