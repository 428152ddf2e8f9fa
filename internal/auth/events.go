package auth

import "sync"

type EventKind int

const (
	SignedIn EventKind = iota + 1
	SignedOut
)

// Event is an auth-state change for one user.
type Event struct {
	Kind   EventKind
	UserID string
}

// Session is the explicit identity handed to stores and gateways.
type Session struct {
	UserID string
	Token  string
}

// Subscriber hands out event streams. The returned cancel func closes the
// channel and must be called exactly once.
type Subscriber interface {
	Subscribe() (events <-chan Event, cancel func())
}

// Broker fans auth events out to subscribers. Publish never blocks: a
// subscriber that is not keeping up misses events.
type Broker struct {
	mu     sync.Mutex
	nextID int
	subs   map[int]chan Event
}

func NewBroker() *Broker {
	return &Broker{subs: make(map[int]chan Event)}
}

func (b *Broker) Subscribe() (<-chan Event, func()) {
	b.mu.Lock()
	defer b.mu.Unlock()
	id := b.nextID
	b.nextID++
	ch := make(chan Event, 8)
	b.subs[id] = ch

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			b.mu.Lock()
			defer b.mu.Unlock()
			delete(b.subs, id)
			close(ch)
		})
	}
}

func (b *Broker) Publish(ev Event) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, ch := range b.subs {
		select {
		case ch <- ev:
		default:
		}
	}
}

// Subscribers returns the number of live subscriptions.
func (b *Broker) Subscribers() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.subs)
}
