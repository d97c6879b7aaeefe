// Package dispatch routes LLM tool calls to capability handlers.
//
// Invoke always yields exactly one capability.Result. Unknown names, argument
// validation failures, handler errors, handler panics, and timeouts each map
// to an error Result; none of them escape to the caller.
package dispatch
