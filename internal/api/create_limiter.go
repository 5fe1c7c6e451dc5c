package api

import (
	"sync"
	"time"
)

// CreateLimiter tracks links that were created but never received a payment,
// per client IP, and caps how many such links one IP may accumulate. This
// keeps a script from flooding the in-process store with throwaway links.
type CreateLimiter struct {
	mu         sync.RWMutex
	maxUnpaid  int
	unpaidByIP map[string]map[string]time.Time // IP -> slug -> tracked time
	slugToIP   map[string]string               // slug -> IP (reverse lookup)
}

// NewCreateLimiter creates a limiter with the given maximum number of
// unpaid links per IP.
func NewCreateLimiter(maxUnpaid int) *CreateLimiter {
	return &CreateLimiter{
		maxUnpaid:  maxUnpaid,
		unpaidByIP: make(map[string]map[string]time.Time),
		slugToIP:   make(map[string]string),
	}
}

// CanCreate checks if the IP can create another link.
func (l *CreateLimiter) CanCreate(ip string) bool {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.unpaidByIP[ip]) < l.maxUnpaid
}

// UnpaidCount returns the number of tracked unpaid links for an IP.
func (l *CreateLimiter) UnpaidCount(ip string) int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.unpaidByIP[ip])
}

// MaxUnpaid returns the configured limit.
func (l *CreateLimiter) MaxUnpaid() int {
	return l.maxUnpaid
}

// TrackLink records a newly created link for an IP.
func (l *CreateLimiter) TrackLink(ip, slug string) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.unpaidByIP[ip] == nil {
		l.unpaidByIP[ip] = make(map[string]time.Time)
	}
	l.unpaidByIP[ip][slug] = time.Now()
	l.slugToIP[slug] = ip
}

// OnPaymentReceived clears tracking for a link once it receives a payment.
// Wired as the payment service's confirmation callback.
func (l *CreateLimiter) OnPaymentReceived(slug string) {
	l.mu.Lock()
	defer l.mu.Unlock()

	ip, ok := l.slugToIP[slug]
	if !ok {
		return
	}
	delete(l.slugToIP, slug)
	if links := l.unpaidByIP[ip]; links != nil {
		delete(links, slug)
		if len(links) == 0 {
			delete(l.unpaidByIP, ip)
		}
	}
}

// CleanupExpired drops tracking entries older than maxAge and returns how
// many were removed. Old unpaid links stop counting against their creator.
func (l *CreateLimiter) CleanupExpired(maxAge time.Duration) int {
	l.mu.Lock()
	defer l.mu.Unlock()

	cutoff := time.Now().Add(-maxAge)
	removed := 0
	for ip, slugs := range l.unpaidByIP {
		for slug, tracked := range slugs {
			if tracked.Before(cutoff) {
				delete(slugs, slug)
				delete(l.slugToIP, slug)
				removed++
			}
		}
		if len(slugs) == 0 {
			delete(l.unpaidByIP, ip)
		}
	}
	return removed
}
