package domain

import "time"

// Session is a server-side sign-in record. Many sessions may exist per user
// (one per device). The cookie only carries the session id; this record is
// the authority on whether the sign-in is still valid.
type Session struct {
	SessionID      string    `json:"id" dynamodbav:"session_id"`
	UserID         string    `json:"user_id" dynamodbav:"user_id"`
	ExpirationDate time.Time `json:"expiration_date" dynamodbav:"expiration_date"`
	CreatedAt      time.Time `json:"created" dynamodbav:"created_at"`
}

func (s *Session) Expired(now time.Time) bool {
	return now.After(s.ExpirationDate)
}
