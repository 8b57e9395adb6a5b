package sessions

import (
	"time"

	"github.com/google/uuid"
)

// Session is one issued application token, keyed by its JWT ID.
type Session struct {
	JTI       string    `json:"jti"`
	UserID    uuid.UUID `json:"user_id"`
	Username  string    `json:"username"`
	IPAddress string    `json:"ip_address,omitempty"`
	UserAgent string    `json:"user_agent,omitempty"`
	IssuedAt  time.Time `json:"issued_at"`
	ExpiresAt time.Time `json:"expires_at"`
}
