package auth

import "time"

type User struct {
	ID           string   `json:"id"`
	Username     string   `json:"username"`
	PasswordHash string   `json:"-"`
	Roles        []string `json:"roles"`
}

// Session is a signed-in browser. Token is the bearer secret; ID is the public
// handle admins use to revoke it.
type Session struct {
	ID        string
	Token     string
	UserID    string
	Username  string
	Roles     []string
	CreatedAt time.Time
	ExpiresAt time.Time
}

func (s Session) Expired(now time.Time) bool {
	return now.After(s.ExpiresAt)
}

// View strips the token for listing.
func (s Session) View() SessionView {
	return SessionView{
		ID:        s.ID,
		UserID:    s.UserID,
		Username:  s.Username,
		Roles:     append([]string(nil), s.Roles...),
		CreatedAt: s.CreatedAt,
		ExpiresAt: s.ExpiresAt,
	}
}

type SessionView struct {
	ID        string    `json:"id"`
	UserID    string    `json:"user_id"`
	Username  string    `json:"username"`
	Roles     []string  `json:"roles"`
	CreatedAt time.Time `json:"created_at"`
	ExpiresAt time.Time `json:"expires_at"`
}
