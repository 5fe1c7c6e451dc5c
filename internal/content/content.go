// Package content holds the registry of downloadable items and the byte
// sources that back them. Items carry their payment terms; whether a
// download is actually paid for is tracked by the payments service.
package content

import (
	"bytes"
	"context"
	"errors"
	"io"
	"sync"
)

var ErrNotFound = errors.New("content not found")

// Item is a downloadable file and its payment terms.
// A price of "0" (or empty) means the file is free and never challenged.
type Item struct {
	ID          string
	Name        string // filename used in Content-Disposition
	ContentType string
	Price       string
	Currency    string
	Address     string // payment recipient
	Description string
	Data        []byte // inline bytes, used when no source has the item
}

// RequiresPayment reports whether downloads of this item are gated.
func (i *Item) RequiresPayment() bool {
	return i.Price != "" && i.Price != "0"
}

// Source resolves an item's bytes from a backing store.
type Source interface {
	Open(ctx context.Context, id string) (io.ReadCloser, error)
}

// Registry is the set of known downloadable items. An optional Source
// overrides an item's inline bytes, so operators can swap the demo files
// for real ones in a directory or bucket without touching the registry.
type Registry struct {
	mu     sync.RWMutex
	items  map[string]*Item
	source Source
}

// NewRegistry creates an empty registry. source may be nil.
func NewRegistry(source Source) *Registry {
	return &Registry{
		items:  make(map[string]*Item),
		source: source,
	}
}

// Register adds or replaces an item.
func (r *Registry) Register(item *Item) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.items[item.ID] = item
}

// Get returns the item for an id.
func (r *Registry) Get(id string) (*Item, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	item, ok := r.items[id]
	return item, ok
}

// Open returns the item's bytes, preferring the configured source and
// falling back to inline data.
func (r *Registry) Open(ctx context.Context, id string) (io.ReadCloser, error) {
	item, ok := r.Get(id)
	if !ok {
		return nil, ErrNotFound
	}

	if r.source != nil {
		rc, err := r.source.Open(ctx, id)
		if err == nil {
			return rc, nil
		}
		if !errors.Is(err, ErrNotFound) {
			return nil, err
		}
	}

	if item.Data == nil {
		return nil, ErrNotFound
	}
	return io.NopCloser(bytes.NewReader(item.Data)), nil
}

// SeedSampleContent registers the demo files: the gated Bitcoin whitepaper
// and a free sample document.
func SeedSampleContent(r *Registry) {
	r.Register(&Item{
		ID:          "bitcoin-whitepaper",
		Name:        "bitcoin-whitepaper.pdf",
		ContentType: "application/pdf",
		Price:       "0.05",
		Currency:    "USDC",
		Address:     "0xde0B295669a9FD93d5F28D9Ec85E40f4cb697BAe",
		Description: "Bitcoin: A Peer-to-Peer Electronic Cash System",
		Data:        []byte("Bitcoin: A Peer-to-Peer Electronic Cash System\nSatoshi Nakamoto\n\n(demo placeholder content)\n"),
	})
	r.Register(&Item{
		ID:          "sample-file",
		Name:        "sample.txt",
		ContentType: "text/plain",
		Price:       "0",
		Currency:    "USDC",
		Address:     "0xde0B295669a9FD93d5F28D9Ec85E40f4cb697BAe",
		Description: "Free sample download",
		Data:        []byte("This sample file is free to download.\n"),
	})
}
