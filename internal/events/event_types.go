package events

import "time"

// EventType enumerates supported event identifiers.
type EventType string

const (
	EventUserRegistered EventType = "user_registered"
	EventUserLoggedIn   EventType = "user_logged_in"
)

// Event represents a domain event emitted by the auth services.
type Event struct {
	ID        string      `json:"id"`
	Type      EventType   `json:"type"`
	UserID    int64       `json:"user_id"`
	Timestamp time.Time   `json:"timestamp"`
	Payload   interface{} `json:"payload"`
}

// UserRegisteredPayload payload.
type UserRegisteredPayload struct {
	Username string `json:"username"`
	Domain   string `json:"domain"`
	Score    int    `json:"score"`
}

// UserLoggedInPayload payload.
type UserLoggedInPayload struct {
	Username  string `json:"username"`
	IP        string `json:"ip"`
	UserAgent string `json:"user_agent,omitempty"`
}
