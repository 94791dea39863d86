package relay

import (
	"errors"
	"sync"
	"testing"
	"time"

	kwakerrors "kwak/pkg/errors"
	"kwak/pkg/presence"
	"kwak/pkg/protocol"
	"kwak/pkg/registry"
)

// fakeStore assigns sequential ids under its own lock, mimicking the
// commit order of a real database.
type fakeStore struct {
	mu     sync.Mutex
	nextID int64
	fail   bool
}

func (s *fakeStore) AppendMessage(authorID int64, authorUsername, content string) (*protocol.ChatMessage, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.fail {
		return nil, errors.New("database gone")
	}

	s.nextID++
	return &protocol.ChatMessage{
		ID:             s.nextID,
		Content:        content,
		AuthorID:       authorID,
		AuthorUsername: authorUsername,
		CreatedAt:      time.Now(),
	}, nil
}

func newTestRelay(store *fakeStore) (*Relay, *registry.Registry) {
	reg := registry.New()
	return New(store, reg, presence.New(reg)), reg
}

func addAuthed(t *testing.T, reg *registry.Registry, id string, userID int64, username string, buffer int) *registry.Conn {
	t.Helper()

	conn := registry.NewConn(id, nil, buffer)
	reg.Add(conn)
	if !reg.AttachIdentity(id, protocol.Identity{UserID: userID, Username: username}) {
		t.Fatalf("AttachIdentity failed for %s", id)
	}
	return conn
}

func collect(conn *registry.Conn) []*protocol.Event {
	var events []*protocol.Event
	for {
		select {
		case event := <-conn.Events():
			events = append(events, event)
		default:
			return events
		}
	}
}

func TestSubmitFansOutToSender(t *testing.T) {
	relay, reg := newTestRelay(&fakeStore{})
	sender := addAuthed(t, reg, "c1", 1, "alice", 16)
	observer := addAuthed(t, reg, "c2", 2, "bob", 16)

	msg, err := relay.Submit("c1", "  hello  ")
	if err != nil {
		t.Fatalf("Submit failed: %v", err)
	}
	if msg.Content != "hello" {
		t.Errorf("Content should be trimmed, got %q", msg.Content)
	}
	if msg.AuthorUsername != "alice" {
		t.Errorf("Expected author alice, got %s", msg.AuthorUsername)
	}
	if msg.ID == 0 {
		t.Error("Store should have assigned an id")
	}

	// Sender and observer both receive the same fan-out event
	for _, conn := range []*registry.Conn{sender, observer} {
		events := collect(conn)
		if len(events) != 1 {
			t.Fatalf("Expected 1 event for %s, got %d", conn.ID(), len(events))
		}
		if events[0].Type != protocol.EventNewMessage {
			t.Errorf("Expected newMessage, got %s", events[0].Type)
		}

		var received protocol.ChatMessage
		if err := events[0].ParsePayload(&received); err != nil {
			t.Fatal(err)
		}
		if received.ID != msg.ID || received.Content != "hello" {
			t.Errorf("Fan-out should carry the stored record, got %+v", received)
		}
	}
}

func TestSubmitRejectsUnauthenticated(t *testing.T) {
	store := &fakeStore{}
	relay, reg := newTestRelay(store)
	conn := registry.NewConn("c1", nil, 16)
	reg.Add(conn)

	_, err := relay.Submit("c1", "hello")
	if !errors.Is(err, kwakerrors.ErrNotAuthenticated) {
		t.Errorf("Expected ErrNotAuthenticated, got %v", err)
	}
	if store.nextID != 0 {
		t.Error("Store should never be called for unauthenticated submits")
	}
	if len(collect(conn)) != 0 {
		t.Error("No fan-out should occur")
	}
}

func TestSubmitRejectsEmptyMessage(t *testing.T) {
	store := &fakeStore{}
	relay, reg := newTestRelay(store)
	addAuthed(t, reg, "c1", 1, "alice", 16)

	for _, text := range []string{"", "   ", "\n\t"} {
		_, err := relay.Submit("c1", text)
		if !errors.Is(err, kwakerrors.ErrEmptyMessage) {
			t.Errorf("Submit(%q) = %v, want ErrEmptyMessage", text, err)
		}
	}
	if store.nextID != 0 {
		t.Error("Store should never be called for empty messages")
	}
}

func TestSubmitUnknownConnection(t *testing.T) {
	relay, _ := newTestRelay(&fakeStore{})

	_, err := relay.Submit("missing", "hello")
	if !errors.Is(err, kwakerrors.ErrConnectionNotFound) {
		t.Errorf("Expected ErrConnectionNotFound, got %v", err)
	}
}

func TestSubmitPersistenceFailure(t *testing.T) {
	relay, reg := newTestRelay(&fakeStore{fail: true})
	sender := addAuthed(t, reg, "c1", 1, "alice", 16)
	observer := addAuthed(t, reg, "c2", 2, "bob", 16)

	_, err := relay.Submit("c1", "hello")
	if !errors.Is(err, kwakerrors.ErrPersistenceFailed) {
		t.Errorf("Expected ErrPersistenceFailed, got %v", err)
	}

	// No fan-out on failure, to anyone
	if len(collect(sender)) != 0 || len(collect(observer)) != 0 {
		t.Error("Failed submits must not fan out")
	}
}

func TestConcurrentSubmitsTotallyOrdered(t *testing.T) {
	relay, reg := newTestRelay(&fakeStore{})

	const senders = 8
	const perSender = 10

	observers := make([]*registry.Conn, 3)
	for i := range observers {
		observers[i] = addAuthed(t, reg, "obs"+string(rune('0'+i)), int64(100+i), "observer", senders*perSender+4)
	}
	for i := 0; i < senders; i++ {
		addAuthed(t, reg, "s"+string(rune('0'+i)), int64(i+1), "sender", senders*perSender+4)
	}

	var wg sync.WaitGroup
	for i := 0; i < senders; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			for j := 0; j < perSender; j++ {
				if _, err := relay.Submit("s"+string(rune('0'+n)), "msg"); err != nil {
					t.Errorf("Submit failed: %v", err)
				}
			}
		}(i)
	}
	wg.Wait()

	// Every observer sees all messages in strictly increasing commit order
	for _, obs := range observers {
		events := collect(obs)
		if len(events) != senders*perSender {
			t.Fatalf("Observer %s saw %d events, want %d", obs.ID(), len(events), senders*perSender)
		}

		var lastID int64
		for _, event := range events {
			var msg protocol.ChatMessage
			if err := event.ParsePayload(&msg); err != nil {
				t.Fatal(err)
			}
			if msg.ID <= lastID {
				t.Fatalf("Out of order delivery: %d after %d", msg.ID, lastID)
			}
			lastID = msg.ID
		}
	}
}
