package realtime

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"github.com/emberfall/emberfall-api/internal/domain"
	"github.com/emberfall/emberfall-api/internal/observability"
	apperrors "github.com/emberfall/emberfall-api/pkg/util"
)

// ---------- test helpers ----------

type fakeResolver struct {
	identities map[string]domain.Identity
}

func (f *fakeResolver) Resolve(_ context.Context, credential string) (*domain.Identity, error) {
	identity, ok := f.identities[credential]
	if !ok {
		return nil, apperrors.NewUnauthenticated("invalid token")
	}
	return &identity, nil
}

type fakeTickets struct {
	tickets map[string]*domain.Ticket
}

func (f *fakeTickets) GetByID(_ context.Context, id string) (*domain.Ticket, error) {
	ticket, ok := f.tickets[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	copied := *ticket
	return &copied, nil
}

func newTestHub() (*Hub, *fakeResolver, *fakeTickets) {
	resolver := &fakeResolver{identities: map[string]domain.Identity{
		"tok-owner": {ID: "u1", Username: "alice", Role: domain.RolePlayer},
		"tok-other": {ID: "u2", Username: "bob", Role: domain.RolePlayer},
		"tok-staff": {ID: "s1", Username: "gm", Role: domain.RoleGameMaster},
	}}
	tickets := &fakeTickets{tickets: map[string]*domain.Ticket{
		"t1": {ID: "t1", UserID: "u1", Status: domain.TicketStatusOpen},
	}}
	hub := NewHub(resolver, tickets, zap.NewNop(), observability.NewMetrics(), 8)
	return hub, resolver, tickets
}

func drain(conn *Connection) []ServerFrame {
	var frames []ServerFrame
	for {
		select {
		case frame, ok := <-conn.Out():
			if !ok {
				return frames
			}
			frames = append(frames, frame)
		default:
			return frames
		}
	}
}

func authenticated(t *testing.T, hub *Hub, credential string) *Connection {
	t.Helper()
	conn := hub.Accept()
	if err := hub.Authenticate(context.Background(), conn.ID(), credential); err != nil {
		t.Fatalf("authenticate: %v", err)
	}
	frames := drain(conn)
	if len(frames) != 1 || frames[0].Type != FrameAuthSuccess {
		t.Fatalf("expected auth_success frame, got %+v", frames)
	}
	return conn
}

// ---------- authentication ----------

func TestHub_Authenticate_InvalidCredential(t *testing.T) {
	hub, _, _ := newTestHub()
	conn := hub.Accept()

	if err := hub.Authenticate(context.Background(), conn.ID(), "bogus"); err == nil {
		t.Fatal("expected authentication error")
	}
	frames := drain(conn)
	if len(frames) != 1 || frames[0].Type != FrameError {
		t.Fatalf("expected error frame, got %+v", frames)
	}

	// the connection survives a failed attempt and may retry
	if err := hub.Authenticate(context.Background(), conn.ID(), "tok-owner"); err != nil {
		t.Fatalf("retry after failure: %v", err)
	}
}

func TestHub_Subscribe_RequiresAuthentication(t *testing.T) {
	hub, _, _ := newTestHub()
	conn := hub.Accept()

	err := hub.Subscribe(context.Background(), conn.ID(), "t1")
	if !apperrors.IsCode(err, "UNAUTHENTICATED") {
		t.Fatalf("expected UNAUTHENTICATED, got %v", err)
	}
	frames := drain(conn)
	if len(frames) != 1 || frames[0].Type != FrameError {
		t.Fatalf("expected error frame, got %+v", frames)
	}
}

// ---------- authorization ----------

func TestHub_Subscribe_VisibilityPredicate(t *testing.T) {
	tests := []struct {
		name       string
		credential string
		wantCode   string
	}{
		{name: "owner allowed", credential: "tok-owner"},
		{name: "staff allowed", credential: "tok-staff"},
		{name: "other player denied", credential: "tok-other", wantCode: "FORBIDDEN"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			hub, _, _ := newTestHub()
			conn := authenticated(t, hub, tc.credential)

			err := hub.Subscribe(context.Background(), conn.ID(), "t1")
			if tc.wantCode == "" {
				if err != nil {
					t.Fatalf("subscribe: %v", err)
				}
				return
			}
			if !apperrors.IsCode(err, tc.wantCode) {
				t.Fatalf("expected %s, got %v", tc.wantCode, err)
			}
		})
	}
}

func TestHub_Subscribe_UnknownTicket(t *testing.T) {
	hub, _, _ := newTestHub()
	conn := authenticated(t, hub, "tok-staff")

	err := hub.Subscribe(context.Background(), conn.ID(), "missing")
	if !apperrors.IsCode(err, "NOT_FOUND") {
		t.Fatalf("expected NOT_FOUND, got %v", err)
	}
}

// ---------- fan-out ----------

func TestHub_Publish_FanOutExactlyOnce(t *testing.T) {
	hub, _, _ := newTestHub()
	conns := []*Connection{
		authenticated(t, hub, "tok-owner"),
		authenticated(t, hub, "tok-staff"),
	}
	for _, conn := range conns {
		if err := hub.Subscribe(context.Background(), conn.ID(), "t1"); err != nil {
			t.Fatalf("subscribe: %v", err)
		}
	}

	msg := domain.TicketMessage{ID: "m1", TicketID: "t1", SenderID: "u1", Message: "hello"}
	hub.Publish("t1", msg)

	for i, conn := range conns {
		frames := drain(conn)
		if len(frames) != 1 {
			t.Fatalf("conn %d: expected exactly one frame, got %d", i, len(frames))
		}
		if frames[0].Type != FrameNewMessage {
			t.Fatalf("conn %d: expected new_message, got %s", i, frames[0].Type)
		}
		delivered, ok := frames[0].Message.(domain.TicketMessage)
		if !ok || delivered.ID != "m1" {
			t.Fatalf("conn %d: unexpected payload %+v", i, frames[0].Message)
		}
	}
}

func TestHub_Publish_PreservesOrderPerConnection(t *testing.T) {
	hub, _, _ := newTestHub()
	conn := authenticated(t, hub, "tok-owner")
	if err := hub.Subscribe(context.Background(), conn.ID(), "t1"); err != nil {
		t.Fatalf("subscribe: %v", err)
	}

	hub.Publish("t1", domain.TicketMessage{ID: "m1", TicketID: "t1"})
	hub.Publish("t1", domain.TicketMessage{ID: "m2", TicketID: "t1"})

	frames := drain(conn)
	if len(frames) != 2 {
		t.Fatalf("expected 2 frames, got %d", len(frames))
	}
	first := frames[0].Message.(domain.TicketMessage)
	second := frames[1].Message.(domain.TicketMessage)
	if first.ID != "m1" || second.ID != "m2" {
		t.Fatalf("frames out of order: %s, %s", first.ID, second.ID)
	}
}

func TestHub_Publish_SkipsUnsubscribedAndOtherTickets(t *testing.T) {
	hub, _, tickets := newTestHub()
	tickets.tickets["t2"] = &domain.Ticket{ID: "t2", UserID: "u1"}

	conn := authenticated(t, hub, "tok-owner")
	if err := hub.Subscribe(context.Background(), conn.ID(), "t2"); err != nil {
		t.Fatalf("subscribe: %v", err)
	}

	hub.Publish("t1", domain.TicketMessage{ID: "m1", TicketID: "t1"})
	if frames := drain(conn); len(frames) != 0 {
		t.Fatalf("expected no frames for other ticket, got %+v", frames)
	}
}

func TestHub_Unsubscribe_StopsDelivery(t *testing.T) {
	hub, _, _ := newTestHub()
	conn := authenticated(t, hub, "tok-owner")
	if err := hub.Subscribe(context.Background(), conn.ID(), "t1"); err != nil {
		t.Fatalf("subscribe: %v", err)
	}

	hub.Unsubscribe(conn.ID(), "t1")
	hub.Publish("t1", domain.TicketMessage{ID: "m1", TicketID: "t1"})

	if frames := drain(conn); len(frames) != 0 {
		t.Fatalf("expected no frames after unsubscribe, got %+v", frames)
	}

	// no-op on an absent subscription
	hub.Unsubscribe(conn.ID(), "t1")
}

func TestHub_Subscribe_Idempotent(t *testing.T) {
	hub, _, _ := newTestHub()
	conn := authenticated(t, hub, "tok-owner")
	for i := 0; i < 2; i++ {
		if err := hub.Subscribe(context.Background(), conn.ID(), "t1"); err != nil {
			t.Fatalf("subscribe %d: %v", i, err)
		}
	}

	hub.Publish("t1", domain.TicketMessage{ID: "m1", TicketID: "t1"})
	if frames := drain(conn); len(frames) != 1 {
		t.Fatalf("expected a single delivery, got %d", len(frames))
	}
}

// ---------- release ----------

func TestHub_Release_CleansUp(t *testing.T) {
	hub, _, _ := newTestHub()
	conn := authenticated(t, hub, "tok-owner")
	if err := hub.Subscribe(context.Background(), conn.ID(), "t1"); err != nil {
		t.Fatalf("subscribe: %v", err)
	}

	hub.Release(conn.ID())

	// publish after release must not deliver; the out channel is closed
	hub.Publish("t1", domain.TicketMessage{ID: "m1", TicketID: "t1"})
	if _, ok := <-conn.Out(); ok {
		t.Fatal("expected closed out channel after release")
	}

	// subscribe on a released connection fails
	err := hub.Subscribe(context.Background(), conn.ID(), "t1")
	if !apperrors.IsCode(err, "NOT_FOUND") {
		t.Fatalf("expected NOT_FOUND for released connection, got %v", err)
	}

	// double release is a no-op
	hub.Release(conn.ID())
}

// Auth outcomes are not droppable: with the buffer full of publishes, the
// auth_success frame waits for the writer to drain instead of being lost.
func TestHub_AuthOutcomeSurvivesFullBuffer(t *testing.T) {
	resolver := &fakeResolver{identities: map[string]domain.Identity{
		"tok-owner": {ID: "u1", Role: domain.RolePlayer},
	}}
	tickets := &fakeTickets{tickets: map[string]*domain.Ticket{
		"t1": {ID: "t1", UserID: "u1"},
	}}
	hub := NewHub(resolver, tickets, zap.NewNop(), observability.NewMetrics(), 1)

	conn := authenticated(t, hub, "tok-owner")
	if err := hub.Subscribe(context.Background(), conn.ID(), "t1"); err != nil {
		t.Fatalf("subscribe: %v", err)
	}
	hub.Publish("t1", domain.TicketMessage{ID: "m1", TicketID: "t1"})

	// the writer drains the backlog while the control frame waits for space
	got := make(chan ServerFrame, 4)
	go func() {
		for frame := range conn.Out() {
			got <- frame
			if frame.Type == FrameAuthSuccess {
				return
			}
		}
	}()

	if err := hub.Authenticate(context.Background(), conn.ID(), "tok-owner"); err != nil {
		t.Fatalf("re-authenticate: %v", err)
	}

	if frame := <-got; frame.Type != FrameNewMessage {
		t.Fatalf("expected buffered new_message first, got %s", frame.Type)
	}
	if frame := <-got; frame.Type != FrameAuthSuccess {
		t.Fatalf("expected auth_success after drain, got %s", frame.Type)
	}
}

// A subscriber that stays put must see every publish exactly once and in
// order, no matter how much connection churn runs alongside. Run with -race.
func TestHub_ConcurrentChurn_StableSubscriberSeesEverything(t *testing.T) {
	const publishes = 200

	resolver := &fakeResolver{identities: map[string]domain.Identity{
		"tok-owner": {ID: "u1", Username: "alice", Role: domain.RolePlayer},
		"tok-staff": {ID: "s1", Username: "gm", Role: domain.RoleGameMaster},
	}}
	tickets := &fakeTickets{tickets: map[string]*domain.Ticket{
		"t1": {ID: "t1", UserID: "u1", Status: domain.TicketStatusOpen},
	}}
	// buffer holds every publish so the stable connection never drops
	hub := NewHub(resolver, tickets, zap.NewNop(), observability.NewMetrics(), publishes+16)

	stable := authenticated(t, hub, "tok-owner")
	if err := hub.Subscribe(context.Background(), stable.ID(), "t1"); err != nil {
		t.Fatalf("subscribe: %v", err)
	}

	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ctx := context.Background()
			for j := 0; j < 50; j++ {
				conn := hub.Accept()
				if err := hub.Authenticate(ctx, conn.ID(), "tok-staff"); err != nil {
					t.Errorf("authenticate: %v", err)
					return
				}
				if err := hub.Subscribe(ctx, conn.ID(), "t1"); err != nil {
					t.Errorf("subscribe: %v", err)
					return
				}
				hub.Unsubscribe(conn.ID(), "t1")
				if err := hub.Subscribe(ctx, conn.ID(), "t1"); err != nil {
					t.Errorf("resubscribe: %v", err)
					return
				}
				hub.Release(conn.ID())
			}
		}()
	}
	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := 0; i < publishes; i++ {
			hub.Publish("t1", domain.TicketMessage{ID: fmt.Sprintf("m%d", i), TicketID: "t1"})
		}
	}()
	wg.Wait()

	frames := drain(stable)
	if len(frames) != publishes {
		t.Fatalf("stable subscriber got %d frames, want %d", len(frames), publishes)
	}
	for i, frame := range frames {
		msg, ok := frame.Message.(domain.TicketMessage)
		if !ok || msg.ID != fmt.Sprintf("m%d", i) {
			t.Fatalf("frame %d out of order: %+v", i, frame.Message)
		}
	}
}

func TestHub_Publish_DropsWhenBufferFull(t *testing.T) {
	resolver := &fakeResolver{identities: map[string]domain.Identity{
		"tok-owner": {ID: "u1", Role: domain.RolePlayer},
	}}
	tickets := &fakeTickets{tickets: map[string]*domain.Ticket{
		"t1": {ID: "t1", UserID: "u1"},
	}}
	hub := NewHub(resolver, tickets, zap.NewNop(), observability.NewMetrics(), 1)

	conn := authenticated(t, hub, "tok-owner")
	if err := hub.Subscribe(context.Background(), conn.ID(), "t1"); err != nil {
		t.Fatalf("subscribe: %v", err)
	}

	hub.Publish("t1", domain.TicketMessage{ID: "m1", TicketID: "t1"})
	hub.Publish("t1", domain.TicketMessage{ID: "m2", TicketID: "t1"})

	frames := drain(conn)
	if len(frames) != 1 {
		t.Fatalf("expected the overflow frame to be dropped, got %d frames", len(frames))
	}
	if frames[0].Message.(domain.TicketMessage).ID != "m1" {
		t.Fatalf("expected first frame kept, got %+v", frames[0].Message)
	}
}
