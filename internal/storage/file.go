package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/rs/zerolog/log"
)

// FileStore persists session keys in a single JSON file, for running the
// client without a Redis daemon. The file is rewritten atomically on every
// mutation (write to temp file, then rename), giving last-write-wins
// semantics per whole-file update.
//
// Publish only reaches subscribers in the current process. Another foodlog
// process reading the same file still sees the written keys: durability
// is shared, wake-ups are not.
type FileStore struct {
	path string

	mu   sync.RWMutex
	subs map[string][]chan string
}

// NewFileStore creates a file-backed store at path, creating the parent
// directory if needed. The file itself is created lazily on first write.
func NewFileStore(path string) (*FileStore, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return nil, fmt.Errorf("failed to create session directory: %w", err)
	}
	return &FileStore{
		path: path,
		subs: make(map[string][]chan string),
	}, nil
}

// load reads the whole key/value map from disk. A missing file is an
// empty session, not an error.
func (s *FileStore) load() (map[string]string, error) {
	data, err := os.ReadFile(s.path)
	if os.IsNotExist(err) {
		return map[string]string{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read session file: %w", err)
	}

	values := map[string]string{}
	if err := json.Unmarshal(data, &values); err != nil {
		return nil, fmt.Errorf("failed to parse session file: %w", err)
	}
	return values, nil
}

// save writes the whole key/value map to a temp file and renames it over
// the session file, so readers never observe a partial write.
func (s *FileStore) save(values map[string]string) error {
	data, err := json.MarshalIndent(values, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal session file: %w", err)
	}

	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return fmt.Errorf("failed to write session file: %w", err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		return fmt.Errorf("failed to replace session file: %w", err)
	}
	return nil
}

// Get retrieves the value stored under key. Returns ErrNotFound when the
// key is absent.
func (s *FileStore) Get(_ context.Context, key string) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	values, err := s.load()
	if err != nil {
		return "", err
	}
	value, ok := values[key]
	if !ok {
		return "", ErrNotFound
	}
	return value, nil
}

// Set stores value under key.
func (s *FileStore) Set(_ context.Context, key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	values, err := s.load()
	if err != nil {
		return err
	}
	values[key] = value
	return s.save(values)
}

// Delete removes the given keys. Absent keys are ignored.
func (s *FileStore) Delete(_ context.Context, keys ...string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	values, err := s.load()
	if err != nil {
		return err
	}
	for _, key := range keys {
		delete(values, key)
	}
	return s.save(values)
}

// Publish delivers payload to every in-process subscriber of the channel.
// Slow subscribers are skipped rather than blocking the publisher.
func (s *FileStore) Publish(_ context.Context, channel, payload string) error {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, sub := range s.subs[channel] {
		select {
		case sub <- payload:
		default:
			log.Warn().Str("channel", channel).Msg("Subscriber channel full, dropping signal")
		}
	}
	return nil
}

// Subscribe registers an in-process listener for the named channel.
func (s *FileStore) Subscribe(_ context.Context, channel string) (<-chan string, func(), error) {
	ch := make(chan string, 8)

	s.mu.Lock()
	s.subs[channel] = append(s.subs[channel], ch)
	s.mu.Unlock()

	stop := func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		subs := s.subs[channel]
		for i, sub := range subs {
			if sub == ch {
				s.subs[channel] = append(subs[:i], subs[i+1:]...)
				close(ch)
				return
			}
		}
	}

	return ch, stop, nil
}

// Ping verifies the session directory is accessible.
func (s *FileStore) Ping(_ context.Context) error {
	_, err := os.Stat(filepath.Dir(s.path))
	return err
}

// Close releases all subscriptions.
func (s *FileStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for channel, subs := range s.subs {
		for _, sub := range subs {
			close(sub)
		}
		delete(s.subs, channel)
	}
	return nil
}
