package interfaces

// EventPublisher pushes domain events to downstream consumers. Publishing is
// best-effort from the ledger's point of view; a failed publish never undoes
// a recorded entry.
type EventPublisher interface {
	Publish(topic string, event any) error
}
