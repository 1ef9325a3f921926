// Package mirror implements the thread-safe mirror pool from spec
// section 4.3: an ordered list of base URLs, shuffled on construction,
// with head-preference and single-mirror eviction. The original
// Python picked a mirror at random per download (patcher.py's
// get_mirror); the REDESIGN in spec section 9 instead keeps one
// ordered, shared pool per run so a failing mirror can be evicted and
// every worker benefits.
package mirror

import (
	"math/rand"
	"sync"

	"github.com/sanbornm/ttr-patcher/internal/patcherr"
)

//go:generate mockgen -destination=./mocks/pool_mock.go -package=mocks -source=mirror.go

// Interface is the subset of *Pool's behavior internal/executor
// depends on, so executor tests can swap in a generated mock instead
// of driving eviction through real retries against an httptest server.
type Interface interface {
	Current() string
	Evict(base string)
	Len() int
	Snapshot() []string
}

// Pool owns an ordered list of mirror base URLs guarded by a mutex.
// Contention is negligible: workers only touch the pool on start and
// on failure, per spec section 4.3.
type Pool struct {
	mu   sync.Mutex
	urls []string
}

var _ Interface = (*Pool)(nil)

// New builds a Pool from a JSON-decoded array of base URLs (the
// response body of the mirrors endpoint, spec section 6), uniformly
// shuffling it as construction requires.
func New(urls []string) (*Pool, error) {
	if len(urls) == 0 {
		return nil, patcherr.New(patcherr.KindDecode, "mirror list is empty")
	}
	shuffled := make([]string, len(urls))
	copy(shuffled, urls)
	rand.Shuffle(len(shuffled), func(i, j int) {
		shuffled[i], shuffled[j] = shuffled[j], shuffled[i]
	})
	return &Pool{urls: shuffled}, nil
}

// Current returns the head of the pool: the preferred mirror to use
// for the next request.
func (p *Pool) Current() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.urls[0]
}

// Evict removes the given base URL if and only if more than one
// remains, so the pool is never drained to empty while a retry is
// still possible (spec section 4.3). Any present URL can be evicted,
// not only the head; evicting a URL that isn't present is a silent
// no-op.
func (p *Pool) Evict(base string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if len(p.urls) <= 1 {
		return
	}
	for i, u := range p.urls {
		if u == base {
			p.urls = append(p.urls[:i], p.urls[i+1:]...)
			return
		}
	}
}

// Len reports how many mirrors remain in the pool.
func (p *Pool) Len() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.urls)
}

// Snapshot returns a copy of the current ordering, mostly useful for
// tests and diagnostics.
func (p *Pool) Snapshot() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, len(p.urls))
	copy(out, p.urls)
	return out
}
