package engine

import (
	"sync"

	"predmarket/internal/book"
)

// Registry owns the live order books, one per market. It has an explicit
// lifecycle: created at process start, entries added on first access or
// market creation, entries removed when a market resolves.
type Registry struct {
	mu    sync.Mutex
	books map[string]*book.MarketBook
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{books: make(map[string]*book.MarketBook)}
}

// Get returns the live book for a market, if one exists.
func (r *Registry) Get(marketID string) (*book.MarketBook, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	b, ok := r.books[marketID]
	return b, ok
}

// GetOrCreate returns the live book for a market, building it with load on
// first access. A failed load caches nothing.
func (r *Registry) GetOrCreate(marketID string, load func() (*book.MarketBook, error)) (*book.MarketBook, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if b, ok := r.books[marketID]; ok {
		return b, nil
	}
	b, err := load()
	if err != nil {
		return nil, err
	}
	r.books[marketID] = b
	return b, nil
}

// Evict drops a market's live book, typically on resolution.
func (r *Registry) Evict(marketID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.books, marketID)
}

// Len returns the number of live books.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.books)
}
