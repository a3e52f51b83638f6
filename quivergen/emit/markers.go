package emit

import (
	"bytes"
	"fmt"
	"sort"
	"unicode"
	"unicode/utf8"

	"github.com/quiverdev/quiver/quivergen/ir"
)

// emitMarkers synthesizes one marker type per decorator definition: an
// exported field per config parameter, a constructor taking the config
// parameters positionally, an At setter for the pipeline order, and the
// quiver.Marker accessors. Definitions emit in marker-name order.
func emitMarkers(buf *bytes.Buffer, defs []*ir.DecoratorDefinition, q string) {
	sorted := append([]*ir.DecoratorDefinition(nil), defs...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Marker < sorted[j].Marker })

	for _, def := range sorted {
		emitMarker(buf, def, q)
	}
}

func emitMarker(buf *bytes.Buffer, def *ir.DecoratorDefinition, q string) {
	name := def.Marker
	typeName := name + "Marker"
	cfg := def.ConfigParams()

	fmt.Fprintf(buf, "// %s opts a request type into the %s decorator.\n", typeName, def.Type)
	fmt.Fprintf(buf, "type %s struct {\n", typeName)
	for _, p := range cfg {
		fmt.Fprintf(buf, "\t%s %s\n", propertyName(p.Name), p.Type)
	}
	if len(cfg) > 0 {
		fmt.Fprintf(buf, "\n")
	}
	fmt.Fprintf(buf, "\torder int\n")
	fmt.Fprintf(buf, "}\n\n")

	fmt.Fprintf(buf, "// %s builds a %s. The marker applies last unless repositioned\n// with At.\n", name, typeName)
	fmt.Fprintf(buf, "func %s(", name)
	for i, p := range cfg {
		if i > 0 {
			fmt.Fprintf(buf, ", ")
		}
		fmt.Fprintf(buf, "%s %s", p.Name, p.Type)
	}
	fmt.Fprintf(buf, ") %s {\n", typeName)
	fmt.Fprintf(buf, "\treturn %s{", typeName)
	for i, p := range cfg {
		if i > 0 {
			fmt.Fprintf(buf, ", ")
		}
		fmt.Fprintf(buf, "%s: %s", propertyName(p.Name), p.Name)
	}
	if len(cfg) > 0 {
		fmt.Fprintf(buf, ", ")
	}
	fmt.Fprintf(buf, "order: %s.OrderLast}\n", q)
	fmt.Fprintf(buf, "}\n\n")

	fmt.Fprintf(buf, "// At sets the pipeline position; order 1 runs first, as the outermost\n// wrapper.\n")
	fmt.Fprintf(buf, "func (m %s) At(order int) %s {\n\tm.order = order\n\treturn m\n}\n\n", typeName, typeName)

	fmt.Fprintf(buf, "func (m %s) MarkerName() string { return %q }\n\n", typeName, name)
	fmt.Fprintf(buf, "func (m %s) Order() int { return m.order }\n\n", typeName)
}

// propertyName derives the exported accessor name for a config parameter.
func propertyName(param string) string {
	r, size := utf8.DecodeRuneInString(param)
	return string(unicode.ToUpper(r)) + param[size:]
}
