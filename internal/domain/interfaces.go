package domain

// EventPublisher receives market events for fan-out to subscribers.
// Publishing is best-effort: a slow or broken subscriber must never affect
// matching or settlement.
type EventPublisher interface {
	Publish(marketID string, event any)
}
