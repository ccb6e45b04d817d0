// Package authstore persists the device's authentication state (bearer
// token, user id, device id) in a local BoltDB file and serves as the
// credential source for outgoing sync requests.
package authstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"go.etcd.io/bbolt"

	"github.com/fishyu-mushroom/Chaterm-sub004/internal/remote"
)

// ErrAuthNotFound means no auth data is stored (never logged in, or logged
// out).
var ErrAuthNotFound = errors.New("auth data not found")

var (
	bucketAuth   = []byte("auth")
	bucketDevice = []byte("device")

	authKey     = []byte("current")
	deviceIDKey = []byte("id")
)

// AuthData is the persisted authentication state.
type AuthData struct {
	Token     string    `json:"token"`
	UserID    string    `json:"user_id"`
	ExpiresAt time.Time `json:"expires_at"`
}

// Store is the BoltDB-backed auth store. It implements the remote client's
// AuthProvider.
type Store struct {
	db *bbolt.DB
}

var _ remote.AuthProvider = (*Store)(nil)

// New opens (and if needed creates) the auth database at dbPath.
func New(ctx context.Context, dbPath string) (*Store, error) {
	db, err := bbolt.Open(dbPath, 0600, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to open boltdb: %w", err)
	}

	store := &Store{db: db}
	if err := store.initBuckets(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize buckets: %w", err)
	}
	return store, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *Store) initBuckets() error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		if _, err := tx.CreateBucketIfNotExists(bucketAuth); err != nil {
			return fmt.Errorf("failed to create auth bucket: %w", err)
		}
		if _, err := tx.CreateBucketIfNotExists(bucketDevice); err != nil {
			return fmt.Errorf("failed to create device bucket: %w", err)
		}
		return nil
	})
}

// SaveAuth stores the bearer token and user id. When the token carries an
// exp claim it is recorded as the expiry; the claim is read without
// signature verification since the server remains the authority.
func (s *Store) SaveAuth(ctx context.Context, token, userID string) error {
	auth := AuthData{
		Token:  token,
		UserID: userID,
	}
	if exp, ok := tokenExpiry(token); ok {
		auth.ExpiresAt = exp
	}

	return s.db.Update(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket(bucketAuth)
		if bucket == nil {
			return fmt.Errorf("auth bucket not found")
		}

		data, err := json.Marshal(auth)
		if err != nil {
			return fmt.Errorf("failed to marshal auth data: %w", err)
		}
		if err := bucket.Put(authKey, data); err != nil {
			return fmt.Errorf("failed to save auth data: %w", err)
		}
		return nil
	})
}

// GetAuth retrieves the stored authentication state.
func (s *Store) GetAuth(ctx context.Context) (*AuthData, error) {
	var auth *AuthData
	err := s.db.View(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket(bucketAuth)
		if bucket == nil {
			return fmt.Errorf("auth bucket not found")
		}

		data := bucket.Get(authKey)
		if data == nil {
			return ErrAuthNotFound
		}

		auth = &AuthData{}
		if err := json.Unmarshal(data, auth); err != nil {
			return fmt.Errorf("failed to unmarshal auth data: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return auth, nil
}

// GetAuthToken returns the stored bearer token for outgoing requests.
func (s *Store) GetAuthToken(ctx context.Context) (string, error) {
	auth, err := s.GetAuth(ctx)
	if err != nil {
		return "", err
	}
	return auth.Token, nil
}

// GetUserID returns the stored user id.
func (s *Store) GetUserID(ctx context.Context) (string, error) {
	auth, err := s.GetAuth(ctx)
	if err != nil {
		return "", err
	}
	return auth.UserID, nil
}

// GetDeviceID returns this device's stable identifier, generating and
// persisting one on first use. The id survives logout.
func (s *Store) GetDeviceID(ctx context.Context) (string, error) {
	var deviceID string
	err := s.db.Update(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket(bucketDevice)
		if bucket == nil {
			return fmt.Errorf("device bucket not found")
		}

		if data := bucket.Get(deviceIDKey); data != nil {
			deviceID = string(data)
			return nil
		}

		deviceID = uuid.NewString()
		if err := bucket.Put(deviceIDKey, []byte(deviceID)); err != nil {
			return fmt.Errorf("failed to save device id: %w", err)
		}
		return nil
	})
	if err != nil {
		return "", err
	}
	return deviceID, nil
}

// ClearAuthInfo removes the stored credentials (logout, or server-side 401).
// Clearing an already-empty store is a no-op.
func (s *Store) ClearAuthInfo(ctx context.Context) error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket(bucketAuth)
		if bucket == nil {
			return fmt.Errorf("auth bucket not found")
		}
		if err := bucket.Delete(authKey); err != nil {
			return fmt.Errorf("failed to delete auth data: %w", err)
		}
		return nil
	})
}

// IsAuthenticated reports whether valid, unexpired credentials are stored.
func (s *Store) IsAuthenticated(ctx context.Context) (bool, error) {
	auth, err := s.GetAuth(ctx)
	if err != nil {
		if errors.Is(err, ErrAuthNotFound) {
			return false, nil
		}
		return false, err
	}
	if auth.Token == "" {
		return false, nil
	}
	if !auth.ExpiresAt.IsZero() && time.Now().After(auth.ExpiresAt) {
		return false, nil
	}
	return true, nil
}

// tokenExpiry reads the exp claim of a JWT without verifying its signature.
func tokenExpiry(token string) (time.Time, bool) {
	parser := jwt.NewParser()
	claims := jwt.MapClaims{}
	if _, _, err := parser.ParseUnverified(token, claims); err != nil {
		return time.Time{}, false
	}
	exp, err := claims.GetExpirationTime()
	if err != nil || exp == nil {
		return time.Time{}, false
	}
	return exp.Time, true
}
