package registry

import (
	"errors"
	"fmt"
	"sync"
	"testing"

	kwakerrors "kwak/pkg/errors"
	"kwak/pkg/protocol"
)

func TestAddAndGet(t *testing.T) {
	r := New()

	conn := NewConn("c1", nil, 8)
	r.Add(conn)

	got, ok := r.Get("c1")
	if !ok {
		t.Fatal("Get should find the added connection")
	}
	if got != conn {
		t.Error("Get returned a different connection")
	}
	if got.State() != StateUnauthenticated {
		t.Errorf("New connections should be unauthenticated, got %s", got.State())
	}

	if _, ok := r.Get("missing"); ok {
		t.Error("Get should not find unknown ids")
	}
}

func TestAttachIdentityOnce(t *testing.T) {
	r := New()
	r.Add(NewConn("c1", nil, 8))

	alice := protocol.Identity{UserID: 1, Username: "alice"}
	if !r.AttachIdentity("c1", alice) {
		t.Fatal("First AttachIdentity should succeed")
	}

	// Second attach is a no-op, even with a different identity
	if r.AttachIdentity("c1", protocol.Identity{UserID: 2, Username: "bob"}) {
		t.Error("Second AttachIdentity should fail")
	}

	conn, _ := r.Get("c1")
	identity, ok := conn.Identity()
	if !ok || identity.Username != "alice" {
		t.Errorf("Identity should remain alice, got %+v", identity)
	}
	if conn.State() != StateAuthenticated {
		t.Errorf("Expected authenticated state, got %s", conn.State())
	}
}

func TestAttachIdentityUnknownConn(t *testing.T) {
	r := New()
	if r.AttachIdentity("missing", protocol.Identity{UserID: 1, Username: "alice"}) {
		t.Error("AttachIdentity should fail for unknown connections")
	}
}

func TestRemove(t *testing.T) {
	r := New()
	conn := NewConn("c1", nil, 8)
	r.Add(conn)
	r.AttachIdentity("c1", protocol.Identity{UserID: 1, Username: "alice"})

	identity, authenticated := r.Remove("c1")
	if !authenticated {
		t.Fatal("Remove should report the connection was authenticated")
	}
	if identity.Username != "alice" {
		t.Errorf("Expected alice, got %s", identity.Username)
	}
	if !conn.IsClosed() {
		t.Error("Remove should close the connection")
	}
	if _, ok := r.Get("c1"); ok {
		t.Error("Removed connection should be gone")
	}

	// Removing again is harmless
	if _, authenticated := r.Remove("c1"); authenticated {
		t.Error("Second Remove should report unauthenticated")
	}
}

func TestRemoveUnauthenticated(t *testing.T) {
	r := New()
	r.Add(NewConn("c1", nil, 8))

	_, authenticated := r.Remove("c1")
	if authenticated {
		t.Error("Unauthenticated connection should not report an identity")
	}
}

func TestRosterMatchesAuthenticatedCount(t *testing.T) {
	r := New()

	for i := 0; i < 5; i++ {
		r.Add(NewConn(fmt.Sprintf("c%d", i), nil, 8))
	}

	// Authenticate three of five, with a duplicate user on two devices
	r.AttachIdentity("c0", protocol.Identity{UserID: 1, Username: "alice"})
	r.AttachIdentity("c1", protocol.Identity{UserID: 1, Username: "alice"})
	r.AttachIdentity("c2", protocol.Identity{UserID: 2, Username: "bob"})

	roster := r.Roster()
	if len(roster) != 3 {
		t.Fatalf("Roster size should equal authenticated connections, got %d", len(roster))
	}
	if len(r.AuthenticatedConns()) != 3 {
		t.Error("AuthenticatedConns should return 3 connections")
	}
	if r.Count() != 5 {
		t.Errorf("Count should include unauthenticated connections, got %d", r.Count())
	}

	// Multi-device users appear once per connection
	aliceEntries := 0
	for _, entry := range roster {
		if entry.UserID == 1 {
			aliceEntries++
		}
	}
	if aliceEntries != 2 {
		t.Errorf("Expected 2 roster entries for alice, got %d", aliceEntries)
	}

	r.Remove("c1")
	if len(r.Roster()) != 2 {
		t.Error("Roster should shrink when an authenticated connection leaves")
	}

	r.Remove("c3") // never authenticated
	if len(r.Roster()) != 2 {
		t.Error("Removing an unauthenticated connection should not change the roster")
	}
}

func TestRosterIsSnapshot(t *testing.T) {
	r := New()
	r.Add(NewConn("c1", nil, 8))
	r.AttachIdentity("c1", protocol.Identity{UserID: 1, Username: "alice"})

	roster := r.Roster()
	r.Remove("c1")

	if len(roster) != 1 {
		t.Error("A snapshot taken before removal should be unaffected by it")
	}
}

func TestEnqueueAfterClose(t *testing.T) {
	conn := NewConn("c1", nil, 1)

	event, _ := protocol.NewEvent(protocol.EventRoster, protocol.RosterPayload{})
	if err := conn.Enqueue(event); err != nil {
		t.Fatalf("Enqueue failed: %v", err)
	}

	// Buffer of one is now full
	if err := conn.Enqueue(event); !errors.Is(err, kwakerrors.ErrSendBufferFull) {
		t.Errorf("Expected ErrSendBufferFull, got %v", err)
	}

	conn.Close()
	if err := conn.Enqueue(event); !errors.Is(err, kwakerrors.ErrConnectionClosed) {
		t.Errorf("Expected ErrConnectionClosed, got %v", err)
	}
}

func TestCloseIdempotent(t *testing.T) {
	conn := NewConn("c1", nil, 8)

	if err := conn.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}
	if err := conn.Close(); err != nil {
		t.Fatalf("Second Close failed: %v", err)
	}
	if conn.State() != StateClosed {
		t.Errorf("Expected closed state, got %s", conn.State())
	}
}

func TestRegistryConcurrency(t *testing.T) {
	r := New()

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()

			id := fmt.Sprintf("c%d", n)
			r.Add(NewConn(id, nil, 8))
			r.AttachIdentity(id, protocol.Identity{UserID: int64(n), Username: fmt.Sprintf("user%d", n)})
			r.Roster()
			if n%2 == 0 {
				r.Remove(id)
			}
		}(i)
	}
	wg.Wait()

	if len(r.Roster()) != 10 {
		t.Errorf("Expected 10 remaining authenticated connections, got %d", len(r.Roster()))
	}
}
