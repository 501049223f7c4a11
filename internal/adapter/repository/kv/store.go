// Package kv provides repository implementations on a flat key/value store.
// The store lives in memory and can optionally be mirrored to a TOML file.
package kv

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"sync"

	"github.com/BurntSushi/toml"
)

// Store is a string key/value map. With a path it is loaded from and saved to a TOML file
// on every write, which is the same contract the desktop preferences API offered.
//
// Thread-safe: All operations protected by sync.RWMutex.
type Store struct {
	mu     sync.RWMutex
	values map[string]string
	path   string
}

// NewStore creates an empty in-memory store.
func NewStore() *Store {
	return &Store{values: make(map[string]string)}
}

// OpenFile loads the TOML file at path, or starts empty if it does not exist yet.
func OpenFile(path string) (*Store, error) {
	s := &Store{values: make(map[string]string), path: path}

	if _, err := toml.DecodeFile(path, &s.values); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	return s, nil
}

// String returns the value for key, or "" if unset.
func (s *Store) String(key string) string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.values[key]
}

// StringWithFallback returns the value for key, or fallback if unset.
func (s *Store) StringWithFallback(key, fallback string) string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if v, ok := s.values[key]; ok {
		return v
	}
	return fallback
}

// BoolWithFallback returns the boolean value for key, or fallback if unset or malformed.
func (s *Store) BoolWithFallback(key string, fallback bool) bool {
	v, err := strconv.ParseBool(s.StringWithFallback(key, strconv.FormatBool(fallback)))
	if err != nil {
		return fallback
	}
	return v
}

// SetString stores value under key and persists the store.
func (s *Store) SetString(key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.values[key] = value
	return s.saveLocked()
}

// SetBool stores a boolean under key.
func (s *Store) SetBool(key string, value bool) error {
	return s.SetString(key, strconv.FormatBool(value))
}

// Remove deletes keys and persists the store.
func (s *Store) Remove(keys ...string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, key := range keys {
		delete(s.values, key)
	}
	return s.saveLocked()
}

func (s *Store) saveLocked() error {
	if s.path == "" {
		return nil
	}

	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return fmt.Errorf("create %s: %w", filepath.Dir(s.path), err)
	}

	tmp := s.path + ".tmp"
	file, err := os.Create(tmp)
	if err != nil {
		return fmt.Errorf("write %s: %w", s.path, err)
	}

	encodeErr := toml.NewEncoder(file).Encode(s.values)
	closeErr := file.Close()
	if encodeErr != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("encode %s: %w", s.path, encodeErr)
	}
	if closeErr != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("close %s: %w", s.path, closeErr)
	}

	return os.Rename(tmp, s.path)
}
