package shortener

import (
	"time"

	"github.com/google/uuid"
)

// Link is a short code pointing at a full URL until ExpiresAt.
type Link struct {
	ID        uuid.UUID
	FullURL   string
	Code      string
	Clicks    int64
	CreatedAt time.Time
	ExpiresAt time.Time

	// Visits is only populated by the analytics query.
	Visits []Visit
}

// Expired reports whether the link can no longer be redirected to at now.
// A link is still live at the exact instant of ExpiresAt.
func (l Link) Expired(now time.Time) bool {
	return now.After(l.ExpiresAt)
}

type Visit struct {
	IP        string
	Timestamp time.Time
}

// Visitor identifies the client behind a redirect request.
type Visitor struct {
	RemoteIP     string
	ForwardedFor string
}

// ip prefers the forwarded-for value and falls back to the socket peer.
func (v Visitor) ip() string {
	if v.ForwardedFor != "" {
		return v.ForwardedFor
	}
	return v.RemoteIP
}

// Analytics is a durable snapshot of one link's traffic.
type Analytics struct {
	Code       string
	FullURL    string
	Clicks     int64
	Visits     []Visit
	EventCount int64
}
