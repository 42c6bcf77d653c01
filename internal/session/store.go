// Package session implements the durable session store: the auth token and
// minimal user record that survive restarts, plus the change broadcast that
// keeps the rest of the client reactive to logins and logouts.
//
// The store never interprets the token; presence alone means authenticated.
// Writes are independent per key: saving a token does not touch an existing
// user record and vice versa.
package session

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/dorsakh/Food-Log-FrontEnd/internal/bus"
	"github.com/dorsakh/Food-Log-FrontEnd/internal/models"
	"github.com/dorsakh/Food-Log-FrontEnd/internal/storage"
)

// Storage keys and the broadcast channel name. TokenKey and UserKey are the
// durable session; the legacy key is only ever removed, kept for sessions
// written by old builds.
const (
	TokenKey          = "foodlog_token"
	UserKey           = "foodlog_user"
	legacyTestUserKey = "foodlog_test_user"

	// AuthChannel is the storage-level broadcast channel for auth changes,
	// observable by other processes sharing the same storage backend.
	AuthChannel = "foodlog-auth-changed"
)

// Input carries the fields accepted by SaveSession. Partial input is
// valid: fields are written independently, never as an atomic pair.
type Input struct {
	Token    string
	Email    string
	Provider string
	UserID   string
}

// Store persists the session in durable storage and broadcasts a
// process-wide auth-changed notification on every mutation.
type Store struct {
	storage storage.Store
	bus     *bus.Bus

	// instanceID tags outgoing storage broadcasts so ListenRemote can
	// ignore the echo of this process's own publishes.
	instanceID string
}

// New creates a session store over the given storage backend and event bus.
func New(store storage.Store, b *bus.Bus) *Store {
	return &Store{
		storage:    store,
		bus:        b,
		instanceID: uuid.NewString(),
	}
}

// SaveSession writes the token (if present) and a user record (if any of
// email/provider/userID is present) to durable storage, then broadcasts
// the auth-changed notification. A call that supplies only a token leaves
// any previously stored user record untouched, and user fields alone
// never fabricate a token.
//
// The provider defaults to "password" when a user record is written
// without one, matching what the auth backend issues for email signups.
func (s *Store) SaveSession(ctx context.Context, in Input) error {
	if in.Token != "" {
		if err := s.storage.Set(ctx, TokenKey, in.Token); err != nil {
			return err
		}
	}

	if in.Email != "" || in.Provider != "" || in.UserID != "" {
		provider := in.Provider
		if provider == "" {
			provider = "password"
		}
		record, err := json.Marshal(models.SessionUser{
			Email:    in.Email,
			Provider: provider,
			ID:       in.UserID,
		})
		if err != nil {
			return err
		}
		if err := s.storage.Set(ctx, UserKey, string(record)); err != nil {
			return err
		}
	}

	s.notifyAuthChange(ctx)
	return nil
}

// ClearSession removes the token, the user record, and the legacy test
// user key from storage, then broadcasts the auth-changed notification.
func (s *Store) ClearSession(ctx context.Context) error {
	if err := s.storage.Delete(ctx, TokenKey, UserKey, legacyTestUserKey); err != nil {
		return err
	}

	s.notifyAuthChange(ctx)
	return nil
}

// Token returns the stored auth token, or "" when no session exists.
// Storage failures other than absence are returned so callers can decide;
// the reactive refresh path treats them as an absent token.
func (s *Store) Token(ctx context.Context) (string, error) {
	token, err := s.storage.Get(ctx, TokenKey)
	if errors.Is(err, storage.ErrNotFound) {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	return token, nil
}

// User returns the stored user record, or nil when it is missing or
// corrupt. A deserialization failure is logged and swallowed, never
// surfaced; the session simply has no user record.
func (s *Store) User(ctx context.Context) *models.SessionUser {
	raw, err := s.storage.Get(ctx, UserKey)
	if errors.Is(err, storage.ErrNotFound) {
		return nil
	}
	if err != nil {
		log.Warn().Err(err).Msg("Unable to read stored user")
		return nil
	}

	var user models.SessionUser
	if err := json.Unmarshal([]byte(raw), &user); err != nil {
		log.Warn().Err(err).Msg("Unable to parse stored user")
		return nil
	}
	return &user
}

// IsAuthenticated reports whether a token is currently stored.
func (s *Store) IsAuthenticated(ctx context.Context) bool {
	token, err := s.Token(ctx)
	if err != nil {
		log.Warn().Err(err).Msg("Unable to read stored token")
		return false
	}
	return token != ""
}

// notifyAuthChange broadcasts the change both in-process (bus) and to
// other processes sharing the storage (storage channel). Broadcast
// failures are logged, not returned; the write itself already succeeded.
func (s *Store) notifyAuthChange(ctx context.Context) {
	hasToken := s.IsAuthenticated(ctx)

	s.bus.Publish(bus.AuthChanged{HasToken: hasToken})

	if err := s.storage.Publish(ctx, AuthChannel, s.instanceID); err != nil {
		log.Warn().Err(err).Msg("Unable to broadcast auth change to other processes")
	}
}

// ListenRemote forwards auth-change broadcasts from other processes onto
// the in-process bus until ctx is cancelled. Echoes of this process's own
// publishes are skipped; local mutations already went out on the bus
// directly.
//
// Run it in a goroutine after constructing the store:
//
//	go sessions.ListenRemote(ctx)
func (s *Store) ListenRemote(ctx context.Context) {
	signals, stop, err := s.storage.Subscribe(ctx, AuthChannel)
	if err != nil {
		log.Warn().Err(err).Msg("Unable to subscribe to remote auth changes")
		return
	}
	defer stop()

	for {
		select {
		case <-ctx.Done():
			return
		case sender, ok := <-signals:
			if !ok {
				return
			}
			if sender == s.instanceID {
				continue
			}
			log.Debug().Msg("Auth change observed from another process")
			s.bus.Publish(bus.AuthChanged{HasToken: s.IsAuthenticated(ctx)})
		}
	}
}
