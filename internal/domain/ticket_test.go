package domain

import "testing"

func TestTicketViewableBy(t *testing.T) {
	ticket := &Ticket{ID: "t1", UserID: "u1"}

	tests := []struct {
		name     string
		identity Identity
		want     bool
	}{
		{name: "owner", identity: Identity{ID: "u1", Role: RolePlayer}, want: true},
		{name: "other player", identity: Identity{ID: "u2", Role: RolePlayer}, want: false},
		{name: "gamemaster", identity: Identity{ID: "u2", Role: RoleGameMaster}, want: true},
		{name: "community manager", identity: Identity{ID: "u2", Role: RoleCommunityManager}, want: true},
		{name: "admin", identity: Identity{ID: "u2", Role: RoleAdmin}, want: true},
		{name: "unknown role non-owner", identity: Identity{ID: "u2", Role: "superuser"}, want: false},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := ticket.ViewableBy(tc.identity); got != tc.want {
				t.Fatalf("ViewableBy(%+v) = %v, want %v", tc.identity, got, tc.want)
			}
		})
	}
}

func TestRoleIsStaff(t *testing.T) {
	staff := []Role{RoleGameMaster, RoleCommunityManager, RoleAdmin}
	for _, role := range staff {
		if !role.IsStaff() {
			t.Fatalf("%s must be staff", role)
		}
	}
	if RolePlayer.IsStaff() {
		t.Fatal("player must not be staff")
	}
	if Role("superuser").IsStaff() {
		t.Fatal("unknown role must not be staff")
	}
}

func TestTicketStatus(t *testing.T) {
	for _, status := range []TicketStatus{TicketStatusOpen, TicketStatusInProgress, TicketStatusResolved, TicketStatusClosed} {
		if !status.Valid() {
			t.Fatalf("%s must be valid", status)
		}
	}
	if TicketStatus("archived").Valid() {
		t.Fatal("unknown status must be invalid")
	}

	if !TicketStatusOpen.IsActive() || !TicketStatusInProgress.IsActive() {
		t.Fatal("open and in_progress are active")
	}
	if TicketStatusResolved.IsActive() || TicketStatusClosed.IsActive() {
		t.Fatal("resolved and closed are not active")
	}
}

func TestTicketEnums(t *testing.T) {
	if TicketPriority("asap").Valid() || TicketCategory("weather").Valid() {
		t.Fatal("unknown enum values must be invalid")
	}
	if !TicketPriorityUrgent.Valid() || !TicketCategoryBilling.Valid() {
		t.Fatal("known enum values must be valid")
	}
}

func TestUserIdentityProjection(t *testing.T) {
	user := &User{ID: "u1", Username: "alice", Email: "a@b.c", PasswordHash: "x", Role: RoleAdmin, VIPLevel: 3}
	identity := user.Identity()
	if identity.ID != "u1" || identity.Username != "alice" || identity.Role != RoleAdmin || identity.VIPLevel != 3 {
		t.Fatalf("unexpected identity %+v", identity)
	}
}
