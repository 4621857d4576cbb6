package ticket

import "sync"

// Book keeps one open ticket per session key.
type Book struct {
	mu      sync.Mutex
	tickets map[string]*Ticket
}

func NewBook() *Book {
	return &Book{tickets: make(map[string]*Ticket)}
}

// With runs fn against the session's ticket, creating it on first use.
// Calls for the same book are serialized.
func (b *Book) With(key string, fn func(t *Ticket) error) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	t, ok := b.tickets[key]
	if !ok {
		t = New()
		b.tickets[key] = t
	}
	return fn(t)
}

func (b *Book) Drop(key string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.tickets, key)
}
