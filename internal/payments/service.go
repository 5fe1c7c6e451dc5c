// Package payments performs the Unpaid → Paid bookkeeping for protected
// resources. Confirmations are client-asserted: the service validates field
// presence and amount tolerance but performs no on-chain verification, which
// is the documented scope of this demo.
package payments

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strconv"
	"sync"

	"linkpay/internal/logging"
	"linkpay/internal/store"
)

var (
	ErrMissingConfirmation = errors.New("invalid payment confirmation - missing paymentConfirmed or transaction ID")
	ErrMissingPayment      = errors.New("missing required fields: payerAddress and transaction ID")
)

// AmountTolerance is the allowed absolute difference between the asserted
// and expected link amounts.
const AmountTolerance = 0.01

// AmountMismatchError reports an asserted amount outside the tolerance.
type AmountMismatchError struct {
	Expected string
	Received string
}

func (e *AmountMismatchError) Error() string {
	return fmt.Sprintf("amount mismatch. Expected: %s USDC, Received: %s USDC", e.Expected, e.Received)
}

// ConfirmedCallback is called when a payment is accepted for a resource.
type ConfirmedCallback func(resourceID string)

// Service tracks payment confirmations for files and payment links.
type Service struct {
	store store.Store

	mu             sync.RWMutex
	confirmedFiles map[string]bool
	onConfirmed    ConfirmedCallback
}

// NewService creates a new payment confirmation service.
func NewService(st store.Store) *Service {
	return &Service{
		store:          st,
		confirmedFiles: make(map[string]bool),
	}
}

// SetConfirmedCallback sets a callback invoked after each accepted
// confirmation. This lets external components (like the unpaid-link
// limiter) react to payments.
func (s *Service) SetConfirmedCallback(cb ConfirmedCallback) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onConfirmed = cb
}

// FileConfirmation carries the client-asserted result of a file payment.
type FileConfirmation struct {
	PaymentConfirmed   bool
	TransactionHash    string
	UserOpHash         string
	GaslessTransaction bool
}

// ConfirmFile marks a file as paid. Either hash field is accepted as the
// transaction identifier; the returned string is whichever was used.
func (s *Service) ConfirmFile(fileID string, c FileConfirmation) (string, error) {
	txID := c.TransactionHash
	if txID == "" {
		txID = c.UserOpHash
	}
	if !c.PaymentConfirmed || txID == "" {
		return "", ErrMissingConfirmation
	}

	s.mu.Lock()
	s.confirmedFiles[fileID] = true
	cb := s.onConfirmed
	s.mu.Unlock()

	paymentType := "regular"
	if c.GaslessTransaction {
		paymentType = "gasless"
	}
	logging.Payments.Printf("payment confirmed for file %s: %s (%s transaction)", fileID, txID, paymentType)

	s.notify(cb, fileID)
	return txID, nil
}

// FileConfirmed reports whether a file has an accepted payment.
func (s *Service) FileConfirmed(fileID string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.confirmedFiles[fileID]
}

// LinkConfirmation carries the client-asserted result of a link payment.
type LinkConfirmation struct {
	TransactionHash    string
	UserOpHash         string
	PayerAddress       string
	Amount             string
	GaslessTransaction bool
}

// ConfirmLink validates a confirmation against the link's expected amount
// and records the payment. The recorded amount is the link's expected
// amount, not the asserted one.
func (s *Service) ConfirmLink(ctx context.Context, link *store.PaymentLink, c LinkConfirmation) (*store.Payment, error) {
	if c.PayerAddress == "" || (c.TransactionHash == "" && c.UserOpHash == "") {
		return nil, ErrMissingPayment
	}

	expected, err := strconv.ParseFloat(link.Amount, 64)
	if err != nil {
		return nil, fmt.Errorf("parse expected amount: %w", err)
	}
	paid, err := strconv.ParseFloat(c.Amount, 64)
	if err != nil || math.Abs(expected-paid) > AmountTolerance {
		return nil, &AmountMismatchError{Expected: link.Amount, Received: c.Amount}
	}

	payment, err := s.store.AddPayment(ctx, link.Slug, store.NewPayment{
		TransactionHash:    c.TransactionHash,
		UserOpHash:         c.UserOpHash,
		PayerAddress:       c.PayerAddress,
		Amount:             link.Amount,
		GaslessTransaction: c.GaslessTransaction,
	})
	if err != nil {
		return nil, err
	}

	s.mu.RLock()
	cb := s.onConfirmed
	s.mu.RUnlock()

	logging.Payments.Printf("payment received for %q: %s USDC from %s (gasless=%v)",
		link.Title, payment.Amount, c.PayerAddress, c.GaslessTransaction)

	s.notify(cb, link.Slug)
	return payment, nil
}

func (s *Service) notify(cb ConfirmedCallback, resourceID string) {
	if cb == nil {
		return
	}
	defer func() {
		if r := recover(); r != nil {
			logging.Payments.Printf("confirmation callback panic for %s: %v", resourceID, r)
		}
	}()
	cb(resourceID)
}
