package domain

import (
	"time"

	"github.com/google/uuid"
)

type ProcessingStatus string

const (
	StatusPending    ProcessingStatus = "PENDING"
	StatusProcessing ProcessingStatus = "PROCESSING"
	StatusSuccess    ProcessingStatus = "SUCCESS"
	StatusFailed     ProcessingStatus = "FAILED"
)

// IsTerminal reports whether no further transition is allowed from s.
func (s ProcessingStatus) IsTerminal() bool {
	return s == StatusSuccess || s == StatusFailed
}

// OrderProcessing is the per-order processing record. OrderID is unique in
// the table, so at most one record ever exists per order; the status walks
// PENDING -> PROCESSING -> {SUCCESS|FAILED} and never leaves a terminal
// state.
type OrderProcessing struct {
	ID           uuid.UUID
	OrderID      uuid.UUID
	Status       ProcessingStatus
	ErrorMessage *string
	ProcessedAt  *time.Time
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// CanTransitionTo reports whether moving from the current status to next is
// a legal step of the processing state machine.
func (p *OrderProcessing) CanTransitionTo(next ProcessingStatus) bool {
	if p.Status.IsTerminal() {
		return false
	}
	switch p.Status {
	case StatusPending:
		return next == StatusProcessing || next == StatusFailed
	case StatusProcessing:
		return next == StatusSuccess || next == StatusFailed
	}
	return false
}
