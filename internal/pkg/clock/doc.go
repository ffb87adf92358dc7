// Package clock provides a tiny time abstraction.
//
// Expiry decisions depend on Clocker rather than time.Now, so tests can pin
// the clock with Frozen and step it past a code's deadline.
package clock
