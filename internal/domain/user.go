package domain

import "time"

// Role enumerates account roles. Anything above RolePlayer counts as staff.
type Role string

const (
	RolePlayer           Role = "player"
	RoleGameMaster       Role = "gamemaster"
	RoleCommunityManager Role = "community_manager"
	RoleAdmin            Role = "admin"
)

// Valid reports whether the role is one of the known values.
func (r Role) Valid() bool {
	switch r {
	case RolePlayer, RoleGameMaster, RoleCommunityManager, RoleAdmin:
		return true
	}
	return false
}

// IsStaff reports whether the role grants staff access.
func (r Role) IsStaff() bool {
	return r.Valid() && r != RolePlayer
}

// User is the domain model for site accounts.
type User struct {
	ID           string    `json:"id"`
	Username     string    `json:"username"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"`
	Role         Role      `json:"role"`
	VIPLevel     int       `json:"vipLevel"`
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
}

// Identity is the resolved caller passed through services and the hub.
type Identity struct {
	ID       string `json:"id"`
	Username string `json:"username"`
	Role     Role   `json:"role"`
	VIPLevel int    `json:"vipLevel"`
}

// Identity projects the user into its resolver view.
func (u *User) Identity() Identity {
	return Identity{
		ID:       u.ID,
		Username: u.Username,
		Role:     u.Role,
		VIPLevel: u.VIPLevel,
	}
}
