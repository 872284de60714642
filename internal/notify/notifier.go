package notify

import (
	"sync"

	"github.com/custodex/custodex/internal/logging"
)

// Kind classifies a user-facing notification.
type Kind string

const (
	KindSuccess Kind = "success"
	KindError   Kind = "error"
	KindInfo    Kind = "info"
)

// Notification is one message destined for the user interface layer.
// Link, when set, points at an external resource such as a block
// explorer page for a transaction.
type Notification struct {
	Kind    Kind
	Message string
	Link    string
}

// Notifier receives user-facing notifications from the core. The UI
// collaborator (CLI renderer, test spy) implements it; the core never
// renders anything itself.
type Notifier interface {
	Notify(n Notification)
}

// Func adapts a function to the Notifier interface.
type Func func(n Notification)

func (f Func) Notify(n Notification) { f(n) }

// LogNotifier writes notifications to the structured log. Used as the
// default collaborator when no interactive UI is attached.
type LogNotifier struct{}

func (LogNotifier) Notify(n Notification) {
	switch n.Kind {
	case KindError:
		logging.Error(n.Message, "link", n.Link)
	default:
		logging.Info(n.Message, "kind", string(n.Kind), "link", n.Link)
	}
}

// Spy records notifications for assertions in tests.
type Spy struct {
	mu   sync.Mutex
	sent []Notification
}

func (s *Spy) Notify(n Notification) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sent = append(s.sent, n)
}

// All returns a copy of every notification received so far.
func (s *Spy) All() []Notification {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Notification, len(s.sent))
	copy(out, s.sent)
	return out
}

// Count returns the number of notifications received.
func (s *Spy) Count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sent)
}

// CountKind returns the number of notifications of the given kind.
func (s *Spy) CountKind(k Kind) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, msg := range s.sent {
		if msg.Kind == k {
			n++
		}
	}
	return n
}

// Last returns the most recent notification, or false if none.
func (s *Spy) Last() (Notification, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.sent) == 0 {
		return Notification{}, false
	}
	return s.sent[len(s.sent)-1], true
}
