package models

import "time"

// OrderEvent is an operator-facing audit entry for one order
type OrderEvent struct {
	ID        string
	OrderID   string
	Action    string
	Status    string
	Message   string
	CreatedAt time.Time
}
