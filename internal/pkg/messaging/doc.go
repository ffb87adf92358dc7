// Package messaging publishes and consumes broker messages behind one API.
//
// Drivers exist for NSQ, NATS, Kafka and Google Pub/Sub and are selected by name
// with NewFromDriver. Consume blocks until its context is canceled, so callers
// run it inside a goroutine manager.
package messaging
