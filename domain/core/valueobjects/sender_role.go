package valueobjects

import "fmt"

// SenderRole attributes a message to one side of the conversation.
type SenderRole string

const (
	SenderSystem  SenderRole = "system"
	SenderEndUser SenderRole = "user"
	SenderStaff   SenderRole = "admin"
)

// ParseSenderRole validates a wire value.
func ParseSenderRole(s string) (SenderRole, error) {
	switch r := SenderRole(s); r {
	case SenderSystem, SenderEndUser, SenderStaff:
		return r, nil
	default:
		return "", fmt.Errorf("unknown sender role %q", s)
	}
}

func (r SenderRole) String() string {
	return string(r)
}

// Role is the kind of authenticated user.
type Role string

const (
	RoleDriver Role = "driver"
	RoleAdmin  Role = "admin"
)

func ParseRole(s string) (Role, error) {
	switch r := Role(s); r {
	case RoleDriver, RoleAdmin:
		return r, nil
	default:
		return "", fmt.Errorf("unknown role %q", s)
	}
}

// SenderRole maps a user role onto the side of the conversation they write on.
func (r Role) SenderRole() SenderRole {
	if r == RoleAdmin {
		return SenderStaff
	}
	return SenderEndUser
}

// Identity is the caller attributed on messages. It is supplied explicitly by
// the caller and never read from ambient state.
type Identity struct {
	UserID      string `json:"id"`
	Role        Role   `json:"role"`
	Email       string `json:"email"`
	Name        string `json:"name,omitempty"`
	Affiliation string `json:"affiliation,omitempty"`
}

func (i Identity) IsAdmin() bool {
	return i.Role == RoleAdmin
}

// DisplayName falls back to a generic label per role.
func (i Identity) DisplayName() string {
	if i.Name != "" {
		return i.Name
	}
	if i.IsAdmin() {
		return "Admin"
	}
	return "Driver"
}
