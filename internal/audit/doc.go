// Package audit provides the internal audit event model, pluggable sinks
// and the asynchronous dispatcher that keeps audit writes off the hot path.
package audit
