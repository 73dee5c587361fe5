// Package store persists the user profile and saved manual selections as JSON
// blobs in a key-value table.
package store

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	jsoniter "github.com/json-iterator/go"
	"go.uber.org/zap"

	"github.com/xkilldash9x/pagefinder/api/schemas"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// ErrNotFound is returned by KV.Get for a missing key.
var ErrNotFound = errors.New("store: key not found")

// Keys used in the key-value table.
const (
	KeyUserProfile      = "userProfile"
	keySelectionsPrefix = "manualSelections:"
)

// SelectionsKey is the key holding the saved selections for url.
func SelectionsKey(url string) string {
	return keySelectionsPrefix + url
}

// KV is a durable byte store. Implementations must be safe for concurrent use.
type KV interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Put(ctx context.Context, key string, value []byte) error
	// PutAll writes every entry atomically.
	PutAll(ctx context.Context, entries map[string][]byte) error
	// Keys lists keys with the given prefix in ascending order.
	Keys(ctx context.Context, prefix string) ([]string, error)
	Close() error
}

// Store maps domain records onto a KV backend.
type Store struct {
	kv  KV
	log *zap.Logger
}

// New wraps kv.
func New(kv KV, logger *zap.Logger) *Store {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Store{kv: kv, log: logger.Named("store")}
}

// LoadProfile returns the stored profile, or the default profile when none is stored.
func (s *Store) LoadProfile(ctx context.Context) (schemas.UserProfile, error) {
	raw, err := s.kv.Get(ctx, KeyUserProfile)
	if errors.Is(err, ErrNotFound) {
		return schemas.DefaultUserProfile(), nil
	}
	if err != nil {
		return schemas.UserProfile{}, fmt.Errorf("failed to load profile: %w", err)
	}
	p := schemas.DefaultUserProfile()
	if err := json.Unmarshal(raw, &p); err != nil {
		return schemas.UserProfile{}, fmt.Errorf("failed to decode profile: %w", err)
	}
	if p.PersonalInfo == nil {
		p.PersonalInfo = map[schemas.SemanticType]string{}
	}
	return p, nil
}

// SaveProfile replaces the stored profile.
func (s *Store) SaveProfile(ctx context.Context, p schemas.UserProfile) error {
	raw, err := json.Marshal(p)
	if err != nil {
		return fmt.Errorf("failed to encode profile: %w", err)
	}
	if err := s.kv.Put(ctx, KeyUserProfile, raw); err != nil {
		return fmt.Errorf("failed to save profile: %w", err)
	}
	return nil
}

// SaveSelections replaces the saved selections for url.
func (s *Store) SaveSelections(ctx context.Context, url string, regions []schemas.FormRegion) error {
	raw, err := json.Marshal(regions)
	if err != nil {
		return fmt.Errorf("failed to encode selections: %w", err)
	}
	if err := s.kv.Put(ctx, SelectionsKey(url), raw); err != nil {
		return fmt.Errorf("failed to save selections: %w", err)
	}
	return nil
}

// LoadSelections returns the saved selections for url, or nil when there are none.
func (s *Store) LoadSelections(ctx context.Context, url string) ([]schemas.FormRegion, error) {
	raw, err := s.kv.Get(ctx, SelectionsKey(url))
	if errors.Is(err, ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load selections: %w", err)
	}
	var regions []schemas.FormRegion
	if err := json.Unmarshal(raw, &regions); err != nil {
		return nil, fmt.Errorf("failed to decode selections: %w", err)
	}
	return regions, nil
}

// SelectionURLs lists every URL with saved selections.
func (s *Store) SelectionURLs(ctx context.Context) ([]string, error) {
	keys, err := s.kv.Keys(ctx, keySelectionsPrefix)
	if err != nil {
		return nil, fmt.Errorf("failed to list selections: %w", err)
	}
	urls := make([]string, 0, len(keys))
	for _, k := range keys {
		urls = append(urls, strings.TrimPrefix(k, keySelectionsPrefix))
	}
	sort.Strings(urls)
	return urls, nil
}

// Bundle is the portable form of everything the store holds.
type Bundle struct {
	UserProfile     *schemas.UserProfile            `json:"userProfile,omitempty"`
	SavedSelections map[string][]schemas.FormRegion `json:"savedSelections,omitempty"`
}

// Import writes a bundle in one atomic step.
func (s *Store) Import(ctx context.Context, b Bundle) error {
	entries := make(map[string][]byte, len(b.SavedSelections)+1)
	if b.UserProfile != nil {
		raw, err := json.Marshal(b.UserProfile)
		if err != nil {
			return fmt.Errorf("failed to encode profile: %w", err)
		}
		entries[KeyUserProfile] = raw
	}
	for url, regions := range b.SavedSelections {
		raw, err := json.Marshal(regions)
		if err != nil {
			return fmt.Errorf("failed to encode selections for %s: %w", url, err)
		}
		entries[SelectionsKey(url)] = raw
	}
	if len(entries) == 0 {
		return nil
	}
	if err := s.kv.PutAll(ctx, entries); err != nil {
		return fmt.Errorf("failed to import bundle: %w", err)
	}
	s.log.Info("Imported bundle.", zap.Int("entries", len(entries)))
	return nil
}

// Close releases the backend.
func (s *Store) Close() error {
	return s.kv.Close()
}

// sortedKeys returns the keys of entries in ascending order so batch writes
// are deterministic.
func sortedKeys(entries map[string][]byte) []string {
	keys := make([]string, 0, len(entries))
	for k := range entries {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
