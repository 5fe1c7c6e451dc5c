package store

import (
	"context"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemoryStore implements Store with an in-process map. State does not
// survive a restart; that is the intended scope of this demo.
type MemoryStore struct {
	mu    sync.RWMutex
	links map[string]*PaymentLink
	order []string // slugs in insertion order
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		links: make(map[string]*PaymentLink),
	}
}

func (s *MemoryStore) Create(ctx context.Context, link *PaymentLink) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.links[link.Slug]; !exists {
		s.order = append(s.order, link.Slug)
	}
	stored := *link
	if stored.Payments == nil {
		stored.Payments = []Payment{}
	}
	s.links[link.Slug] = &stored
	return nil
}

func (s *MemoryStore) Get(ctx context.Context, slug string) (*PaymentLink, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	link, ok := s.links[slug]
	if !ok {
		return nil, ErrNotFound
	}
	return copyLink(link), nil
}

func (s *MemoryStore) List(ctx context.Context) ([]*PaymentLink, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*PaymentLink, 0, len(s.order))
	for _, slug := range s.order {
		if link, ok := s.links[slug]; ok {
			out = append(out, copyLink(link))
		}
	}
	return out, nil
}

func (s *MemoryStore) AddPayment(ctx context.Context, slug string, p NewPayment) (*Payment, error) {
	payment := Payment{
		ID:                 uuid.New().String(),
		TransactionHash:    p.TransactionHash,
		UserOpHash:         p.UserOpHash,
		PayerAddress:       p.PayerAddress,
		Amount:             p.Amount,
		Timestamp:          time.Now().UTC(),
		Status:             StatusConfirmed, // no settlement pipeline in this demo
		GaslessTransaction: p.GaslessTransaction,
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if link, ok := s.links[slug]; ok {
		link.Payments = append(link.Payments, payment)
	}
	return &payment, nil
}

func (s *MemoryStore) Totals(ctx context.Context, slug string) (*Totals, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	link, ok := s.links[slug]
	if !ok {
		return nil, ErrNotFound
	}

	count := 0
	total := 0.0
	for _, p := range link.Payments {
		if p.Status != StatusConfirmed {
			continue
		}
		amount, err := strconv.ParseFloat(p.Amount, 64)
		if err != nil {
			continue
		}
		count++
		total += amount
	}
	return &Totals{Count: count, Total: fmt.Sprintf("%.2f", total)}, nil
}

func (s *MemoryStore) UpdatePaymentStatus(ctx context.Context, slug, paymentID string, status PaymentStatus) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	link, ok := s.links[slug]
	if !ok {
		return false, nil
	}
	for i := range link.Payments {
		if link.Payments[i].ID == paymentID {
			link.Payments[i].Status = status
			return true, nil
		}
	}
	return false, nil
}

func (s *MemoryStore) Deactivate(ctx context.Context, slug string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	link, ok := s.links[slug]
	if !ok {
		return false, nil
	}
	link.IsActive = false
	return true, nil
}

// copyLink returns a snapshot so callers cannot mutate stored state.
func copyLink(link *PaymentLink) *PaymentLink {
	out := *link
	out.Payments = make([]Payment, len(link.Payments))
	copy(out.Payments, link.Payments)
	return &out
}
