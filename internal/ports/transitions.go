package ports

import "tour-planning-service/internal/domain"

// Receives planner lifecycle transitions.
type TransitionPublisher interface {
	Publish(topic string, t domain.Transition)
}

// Fan-out of lifecycle transitions to live subscribers.
type TransitionBroker interface {
	TransitionPublisher
	Subscribe(topic string) chan domain.Transition
	Unsubscribe(topic string, ch chan domain.Transition)
}
