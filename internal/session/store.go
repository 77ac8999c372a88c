// Package session persists the auth token and device identity in a durable
// key-value backend scoped to this client installation.
package session

import (
	"context"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/google/uuid"

	"reader_sync/internal/domain"
)

// Persisted keys.
const (
	KeyAuthToken   = "authToken"
	KeyAuthSavedAt = "authSavedAt"
	KeyDeviceID    = "deviceId"
	KeyDeviceName  = "deviceName"
)

const deviceIDLength = 12

// KV is a durable string key-value backend.
type KV interface {
	Get(ctx context.Context, key string) (string, bool, error)
	SetMany(ctx context.Context, values map[string]string) error
	Delete(ctx context.Context, keys ...string) error
}

type Store struct {
	kv  KV
	now func() time.Time
}

func NewStore(kv KV) *Store {
	return &Store{kv: kv, now: time.Now}
}

// Load returns the persisted token. The format is not validated.
func (s *Store) Load(ctx context.Context) (string, bool, error) {
	token, ok, err := s.kv.Get(ctx, KeyAuthToken)
	if err != nil {
		return "", false, fmt.Errorf("load token: %w", err)
	}
	if !ok || token == "" {
		return "", false, nil
	}
	return token, true, nil
}

func (s *Store) Save(ctx context.Context, token string) error {
	err := s.kv.SetMany(ctx, map[string]string{
		KeyAuthToken:   token,
		KeyAuthSavedAt: s.now().UTC().Format(time.RFC3339),
	})
	if err != nil {
		return fmt.Errorf("save token: %w", err)
	}
	return nil
}

func (s *Store) Clear(ctx context.Context) error {
	if err := s.kv.Delete(ctx, KeyAuthToken, KeyAuthSavedAt); err != nil {
		return fmt.Errorf("clear token: %w", err)
	}
	return nil
}

// SavedAt reports when the current token was persisted.
func (s *Store) SavedAt(ctx context.Context) (time.Time, bool, error) {
	raw, ok, err := s.kv.Get(ctx, KeyAuthSavedAt)
	if err != nil || !ok {
		return time.Time{}, false, err
	}
	t, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return time.Time{}, false, nil
	}
	return t, true, nil
}

// Device returns the installation's device identity, creating the id on
// first use or when the stored one is malformed.
func (s *Store) Device(ctx context.Context) (domain.Device, error) {
	id, _, err := s.kv.Get(ctx, KeyDeviceID)
	if err != nil {
		return domain.Device{}, fmt.Errorf("load device id: %w", err)
	}
	if len(id) != deviceIDLength {
		id = newDeviceID()
		if err := s.kv.SetMany(ctx, map[string]string{KeyDeviceID: id}); err != nil {
			return domain.Device{}, fmt.Errorf("save device id: %w", err)
		}
	}

	name, _, err := s.kv.Get(ctx, KeyDeviceName)
	if err != nil {
		return domain.Device{}, fmt.Errorf("load device name: %w", err)
	}
	return domain.Device{ID: id, Name: name}, nil
}

func (s *Store) SetDeviceName(ctx context.Context, name string) error {
	if err := s.kv.SetMany(ctx, map[string]string{KeyDeviceName: name}); err != nil {
		return fmt.Errorf("save device name: %w", err)
	}
	return nil
}

// newDeviceID hashes a random UUID so the id reveals nothing about the host.
func newDeviceID() string {
	sum := sha256.Sum256([]byte(uuid.NewString()))
	encoded := base64.StdEncoding.EncodeToString([]byte(hex.EncodeToString(sum[:])))
	return encoded[:deviceIDLength]
}
