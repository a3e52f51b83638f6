package quiver

import "math"

// OrderLast is the default marker order. A marker without an explicit
// order is applied last: it becomes the innermost wrapper, the last layer
// to observe a call before the handler itself. Lower orders move a marker
// outward; order 1 is the outermost wrapper and the first to run.
const OrderLast = math.MaxInt32

// Marker is implemented by the generated marker types that request types
// opt into via //quiver:use directives. Markers carry the configuration
// literals and pipeline position of one decorator application; they exist
// only as generation-time vocabulary and registry metadata, never as a
// runtime dispatch mechanism.
type Marker interface {
	// MarkerName is the name declared by the decorator's
	// //quiver:decorator directive.
	MarkerName() string

	// Order is the pipeline position. Defaults to OrderLast.
	Order() int
}
