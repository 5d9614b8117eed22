package counter

import (
	"context"
	"sync"
)

// MemoryStore keeps counters in process memory. It backs tests and local
// runs where no database is configured.
type MemoryStore struct {
	mu     sync.Mutex
	counts map[string]int64
	subs   map[string]map[chan int64]struct{}
	closed bool
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		counts: make(map[string]int64),
		subs:   make(map[string]map[chan int64]struct{}),
	}
}

func (m *MemoryStore) Increment(_ context.Context, slug string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return 0, ErrClosed
	}
	m.counts[slug]++
	n := m.counts[slug]
	for ch := range m.subs[slug] {
		offer(ch, n)
	}
	return n, nil
}

func (m *MemoryStore) Get(_ context.Context, slug string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return 0, ErrClosed
	}
	return m.counts[slug], nil
}

func (m *MemoryStore) List(_ context.Context) ([]PageViews, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return nil, ErrClosed
	}
	pages := make([]PageViews, 0, len(m.counts))
	for slug, n := range m.counts {
		pages = append(pages, PageViews{Slug: slug, Views: n})
	}
	return pages, nil
}

func (m *MemoryStore) Subscribe(ctx context.Context, slug string) (<-chan int64, error) {
	ch := make(chan int64, 1)
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return nil, ErrClosed
	}
	if m.subs[slug] == nil {
		m.subs[slug] = make(map[chan int64]struct{})
	}
	m.subs[slug][ch] = struct{}{}
	m.mu.Unlock()

	go func() {
		<-ctx.Done()
		m.mu.Lock()
		if _, ok := m.subs[slug][ch]; ok {
			delete(m.subs[slug], ch)
			if len(m.subs[slug]) == 0 {
				delete(m.subs, slug)
			}
			close(ch)
		}
		m.mu.Unlock()
	}()
	return ch, nil
}

// Close ends every open subscription.
func (m *MemoryStore) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return nil
	}
	m.closed = true
	for slug, set := range m.subs {
		for ch := range set {
			close(ch)
		}
		delete(m.subs, slug)
	}
	return nil
}
