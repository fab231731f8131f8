package domain

import (
	"strings"
	"time"
)

// OrderStatus enumerates order lifecycle states.
type OrderStatus string

const (
	OrderStatusPending    OrderStatus = "pending"
	OrderStatusProcessing OrderStatus = "processing"
	OrderStatusCompleted  OrderStatus = "completed"
	OrderStatusFailed     OrderStatus = "failed"
)

// IsTerminal reports whether no regular transition may leave the status.
func (s OrderStatus) IsTerminal() bool {
	return s == OrderStatusCompleted || s == OrderStatusFailed
}

// Valid reports whether s is one of the known statuses.
func (s OrderStatus) Valid() bool {
	switch s {
	case OrderStatusPending, OrderStatusProcessing, OrderStatusCompleted, OrderStatusFailed:
		return true
	}
	return false
}

// CanTransition reports whether from -> to is a regular lifecycle step.
// The administrative override is not expressed here.
func CanTransition(from, to OrderStatus) bool {
	switch from {
	case OrderStatusPending:
		return to == OrderStatusProcessing
	case OrderStatusProcessing:
		return to == OrderStatusCompleted || to == OrderStatusFailed
	default:
		return false
	}
}

// Order is a single video-generation request and its tracked lifecycle.
type Order struct {
	ID                string
	UserID            string
	Email             string
	Plan              string
	Prompt            string
	Duration          int
	VoiceText         string
	WatermarkRequired bool
	Country           string
	Status            OrderStatus
	ResultLocation    string
	FailureReason     string
	CreatedAt         time.Time
	UpdatedAt         time.Time
	StartedAt         *time.Time
	CompletedAt       *time.Time
}

// WantsVoice reports whether a narration track was requested.
func (o Order) WantsVoice() bool {
	return strings.TrimSpace(o.VoiceText) != ""
}

// Transition describes one atomic status change. Stores apply it only when
// the current status equals From.
type Transition struct {
	From           OrderStatus
	To             OrderStatus
	ResultLocation string
	FailureReason  string
	At             time.Time
}

// Apply returns a copy of o with t applied. It does not check From; callers
// (the stores) do that under their own synchronization.
func (t Transition) Apply(o Order) Order {
	at := t.At.UTC()
	o.Status = t.To
	o.UpdatedAt = at
	switch t.To {
	case OrderStatusProcessing:
		o.StartedAt = &at
	case OrderStatusCompleted:
		o.ResultLocation = t.ResultLocation
		o.FailureReason = ""
		o.CompletedAt = &at
	case OrderStatusFailed:
		o.FailureReason = t.FailureReason
		o.ResultLocation = ""
		o.CompletedAt = &at
	}
	return o
}
