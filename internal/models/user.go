package models

// SessionUser is the minimal user record persisted next to the auth
// token. It mirrors the JSON stored under the foodlog_user key:
//
//	{
//	  "email": "user@example.com",
//	  "provider": "password",
//	  "id": "550e8400-e29b-41d4-a716-446655440000"
//	}
//
// All fields are optional: a session saved with only a token has no
// user record at all, and a record may carry any subset of the three.
type SessionUser struct {
	Email    string `json:"email,omitempty"`
	Provider string `json:"provider,omitempty"`
	ID       string `json:"id,omitempty"`
}

// AuthUser is the user object returned by the auth endpoints
// (/auth/login, /auth/signup, /auth/me). The backend has used both
// "id" and "user_id" for the identifier; ResolveID picks whichever is
// present.
type AuthUser struct {
	ID       string `json:"id,omitempty"`
	UserID   string `json:"user_id,omitempty"`
	Email    string `json:"email,omitempty"`
	Provider string `json:"provider,omitempty"`
}

// ResolveID returns the user identifier, preferring the modern "id"
// field over the legacy "user_id".
func (u AuthUser) ResolveID() string {
	if u.ID != "" {
		return u.ID
	}
	return u.UserID
}
