package store

import (
	"context"
	"errors"
	"time"
)

var ErrNotFound = errors.New("not found")

// PaymentStatus is the lifecycle state of a recorded payment.
type PaymentStatus string

const (
	StatusPending   PaymentStatus = "pending"
	StatusConfirmed PaymentStatus = "confirmed"
	StatusFailed    PaymentStatus = "failed"
)

// Payment is a single recorded payment against a payment link.
// Exactly one of TransactionHash or UserOpHash identifies the payment;
// the other is left empty.
type Payment struct {
	ID                 string        `json:"id"`
	TransactionHash    string        `json:"transactionHash"`
	UserOpHash         string        `json:"userOpHash,omitempty"`
	PayerAddress       string        `json:"payerAddress"`
	Amount             string        `json:"amount"`
	Timestamp          time.Time     `json:"timestamp"`
	Status             PaymentStatus `json:"status"`
	GaslessTransaction bool          `json:"gaslessTransaction,omitempty"`
}

// PaymentLink is a shareable, slug-addressed payment destination.
// Links are never deleted; deactivation flips IsActive and the record
// stays readable.
type PaymentLink struct {
	ID               string    `json:"id"`
	Slug             string    `json:"slug"`
	Title            string    `json:"title"`
	Description      string    `json:"description,omitempty"`
	Amount           string    `json:"amount"` // USDC, two fraction digits
	RecipientAddress string    `json:"recipientAddress"`
	CreatedAt        time.Time `json:"createdAt"`
	CreatedBy        string    `json:"createdBy,omitempty"`
	IsActive         bool      `json:"isActive"`
	Payments         []Payment `json:"payments"`
}

// NewPayment carries the client-supplied fields for recording a payment.
type NewPayment struct {
	TransactionHash    string
	UserOpHash         string
	PayerAddress       string
	Amount             string
	GaslessTransaction bool
}

// Totals aggregates confirmed payments for a link.
type Totals struct {
	Count int    `json:"count"`
	Total string `json:"total"` // two fraction digits
}

// Store defines the interface for payment-link bookkeeping.
type Store interface {
	// Create inserts a link keyed by slug. A colliding slug replaces the
	// existing entry and keeps its position in the listing order.
	Create(ctx context.Context, link *PaymentLink) error
	Get(ctx context.Context, slug string) (*PaymentLink, error)
	// List returns all links in insertion order.
	List(ctx context.Context) ([]*PaymentLink, error)
	// AddPayment appends a payment to the link's history. An unknown slug
	// is a no-op on the store; the built Payment is still returned.
	AddPayment(ctx context.Context, slug string, p NewPayment) (*Payment, error)
	// Totals sums confirmed payments for a link.
	Totals(ctx context.Context, slug string) (*Totals, error)
	// UpdatePaymentStatus changes the status of a recorded payment.
	// Returns false if the slug or payment is unknown.
	UpdatePaymentStatus(ctx context.Context, slug, paymentID string, status PaymentStatus) (bool, error)
	// Deactivate flips the link's active flag. Returns whether a link existed.
	Deactivate(ctx context.Context, slug string) (bool, error)
}
