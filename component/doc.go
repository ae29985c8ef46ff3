// Package component defines the lifecycle interface shared by snapstream's
// long-lived parts: broker clients, the key-value store, and the dispatch
// engine.
//
// Components are registered with a Registry, started in registration order
// and stopped in reverse order.
package component
