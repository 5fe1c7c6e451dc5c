// Package links implements payment-link lifecycle on top of the store:
// input validation, slug derivation, amount normalization, and sample data.
package links

import (
	"context"
	"errors"
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"

	"linkpay/internal/logging"
	"linkpay/internal/store"
)

var (
	ErrMissingFields  = errors.New("missing required fields: title, amount, recipientAddress")
	ErrInvalidAmount  = errors.New("amount must be a positive number")
	ErrInvalidAddress = errors.New("invalid Ethereum address format")
	ErrInactive       = errors.New("payment link is no longer active")
)

var (
	nonSlugChars = regexp.MustCompile(`[^a-z0-9\s-]`)
	whitespace   = regexp.MustCompile(`\s+`)
	hyphenRuns   = regexp.MustCompile(`-+`)
)

const maxSlugBaseLen = 50

// Service handles payment-link operations.
type Service struct {
	store store.Store
}

// NewService creates a new link service.
func NewService(st store.Store) *Service {
	return &Service{store: st}
}

// CreateInput carries the fields for creating a payment link.
// CustomSlug is only used for seeded sample links.
type CreateInput struct {
	Title            string
	Description      string
	Amount           string
	RecipientAddress string
	CreatedBy        string
	CustomSlug       string
}

// GenerateSlug derives a URL-safe slug from a title. A custom slug is used
// verbatim when supplied. Derived slugs get a base-36 timestamp suffix so
// repeated titles stay unique within a process run.
func GenerateSlug(title, customSlug string) string {
	if customSlug != "" {
		return customSlug
	}

	base := strings.ToLower(title)
	base = nonSlugChars.ReplaceAllString(base, "")
	base = whitespace.ReplaceAllString(base, "-")
	base = hyphenRuns.ReplaceAllString(base, "-")
	base = strings.Trim(base, "-")
	if len(base) > maxSlugBaseLen {
		base = base[:maxSlugBaseLen]
	}

	suffix := strconv.FormatInt(time.Now().UnixMilli(), 36)
	if base == "" {
		return suffix
	}
	return base + "-" + suffix
}

// Create validates the input and inserts a new active link.
// The stored amount is normalized to exactly two fraction digits.
func (s *Service) Create(ctx context.Context, in CreateInput) (*store.PaymentLink, error) {
	if in.Title == "" || in.Amount == "" || in.RecipientAddress == "" {
		return nil, ErrMissingFields
	}

	// ParseFloat accepts "NaN" and "Inf" without error; both would poison
	// the stored amount and the tolerance check downstream.
	amount, err := strconv.ParseFloat(in.Amount, 64)
	if err != nil || amount <= 0 || math.IsNaN(amount) || math.IsInf(amount, 0) {
		return nil, ErrInvalidAmount
	}

	if !common.IsHexAddress(in.RecipientAddress) || !strings.HasPrefix(in.RecipientAddress, "0x") {
		return nil, ErrInvalidAddress
	}

	link := &store.PaymentLink{
		ID:               uuid.New().String(),
		Slug:             GenerateSlug(in.Title, in.CustomSlug),
		Title:            in.Title,
		Description:      in.Description,
		Amount:           fmt.Sprintf("%.2f", amount),
		RecipientAddress: in.RecipientAddress,
		CreatedAt:        time.Now().UTC(),
		CreatedBy:        in.CreatedBy,
		IsActive:         true,
		Payments:         []store.Payment{},
	}

	if err := s.store.Create(ctx, link); err != nil {
		return nil, err
	}
	return link, nil
}

// Get returns an active link and its confirmed-payment totals.
// Returns store.ErrNotFound for unknown slugs and ErrInactive for
// deactivated links.
func (s *Service) Get(ctx context.Context, slug string) (*store.PaymentLink, *store.Totals, error) {
	link, err := s.store.Get(ctx, slug)
	if err != nil {
		return nil, nil, err
	}
	if !link.IsActive {
		return nil, nil, ErrInactive
	}

	totals, err := s.store.Totals(ctx, slug)
	if err != nil {
		return nil, nil, err
	}
	return link, totals, nil
}

// List returns every link in insertion order, active or not.
func (s *Service) List(ctx context.Context) ([]*store.PaymentLink, error) {
	return s.store.List(ctx)
}

// Deactivate retires a link. The record stays readable through List.
func (s *Service) Deactivate(ctx context.Context, slug string) (bool, error) {
	return s.store.Deactivate(ctx, slug)
}

// SeedSampleData inserts the demo links with fixed slugs. It only runs
// against an empty store so restarts in dev don't duplicate entries
// (the store is in-process, so in practice that means once per boot).
func (s *Service) SeedSampleData(ctx context.Context) error {
	existing, err := s.store.List(ctx)
	if err != nil {
		return err
	}
	if len(existing) > 0 {
		return nil
	}

	samples := []CreateInput{
		{
			Title:            "Coffee Fund",
			Description:      "Help fuel my coding sessions with coffee!",
			Amount:           "5.00",
			RecipientAddress: "0xde0B295669a9FD93d5F28D9Ec85E40f4cb697BAe",
			CustomSlug:       "coffee-fund",
		},
		{
			Title:            "Open Source Contribution",
			Description:      "Support my open source work on blockchain tools",
			Amount:           "25.00",
			RecipientAddress: "0xde0B295669a9FD93d5F28D9Ec85E40f4cb697BAe",
			CustomSlug:       "open-source-contribution",
		},
		{
			Title:            "Bitcoin Whitepaper Download",
			Description:      "Get the original Bitcoin whitepaper by Satoshi Nakamoto",
			Amount:           "0.05",
			RecipientAddress: "0xde0B295669a9FD93d5F28D9Ec85E40f4cb697BAe",
			CustomSlug:       "bitcoin-whitepaper",
		},
	}

	for _, in := range samples {
		if _, err := s.Create(ctx, in); err != nil {
			return err
		}
		logging.Internal.Printf("seeded sample payment link %q", in.CustomSlug)
	}
	return nil
}
