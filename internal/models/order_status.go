package models

import "fmt"

// OrderStatus is a step in the order lifecycle.
type OrderStatus string

const (
	StatusPlaced     OrderStatus = "placed"
	StatusConfirmed  OrderStatus = "confirmed"
	StatusInProcess  OrderStatus = "inprocess"
	StatusShipping   OrderStatus = "shipping"
	StatusShipped    OrderStatus = "shipped"
	StatusDispatched OrderStatus = "dispatched"
	StatusDelivered  OrderStatus = "delivered"
	StatusCompleted  OrderStatus = "completed"
	StatusRejected   OrderStatus = "rejected"
)

type transition struct {
	to         OrderStatus
	systemOnly bool
}

var transitions = map[OrderStatus][]transition{
	StatusPlaced:     {{to: StatusConfirmed}, {to: StatusInProcess}, {to: StatusRejected}},
	StatusConfirmed:  {{to: StatusInProcess}, {to: StatusRejected}},
	StatusInProcess:  {{to: StatusShipping, systemOnly: true}, {to: StatusShipped}, {to: StatusDispatched}, {to: StatusRejected}},
	StatusShipping:   {{to: StatusShipped, systemOnly: true}, {to: StatusInProcess, systemOnly: true}},
	StatusShipped:    {{to: StatusDispatched}, {to: StatusDelivered}},
	StatusDispatched: {{to: StatusDelivered}},
	StatusDelivered:  {{to: StatusCompleted}},
	StatusCompleted:  nil,
	StatusRejected:   nil,
}

// ParseOrderStatus validates a client-supplied status string.
func ParseOrderStatus(s string) (OrderStatus, error) {
	st := OrderStatus(s)
	if _, ok := transitions[st]; !ok {
		return "", fmt.Errorf("unknown order status %q", s)
	}
	return st, nil
}

// IsTerminal reports whether no transition leaves s.
func (s OrderStatus) IsTerminal() bool {
	return len(transitions[s]) == 0
}

// CanTransition reports whether an administrator may move an order from s to
// next. System-only edges are reserved for the fulfillment coordinator.
func (s OrderStatus) CanTransition(next OrderStatus) bool {
	for _, t := range transitions[s] {
		if t.to == next {
			return !t.systemOnly
		}
	}
	return false
}

// CanSystemTransition reports whether any actor, including the coordinator,
// may move from s to next.
func (s OrderStatus) CanSystemTransition(next OrderStatus) bool {
	for _, t := range transitions[s] {
		if t.to == next {
			return true
		}
	}
	return false
}
