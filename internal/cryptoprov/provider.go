// Package cryptoprov holds the per-user encryption state that gates sync:
// sensitive asset fields are encrypted with a key derived from the user's
// identity, and no sync runs until the provider is initialized for the
// current user.
package cryptoprov

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"fmt"
	"log/slog"
	"sync"

	"golang.org/x/crypto/argon2"
)

// Argon2id parameters for key derivation.
const (
	argon2Time    = 1
	argon2Memory  = 64 * 1024
	argon2Threads = 4
	keyLen        = 32

	nonceSize = 12
)

// Status is a snapshot of the provider state.
type Status struct {
	Initialized bool
	UserID      string
}

// Provider derives and holds the field-encryption key for one user at a
// time.
type Provider struct {
	logger *slog.Logger

	mu     sync.RWMutex
	key    []byte
	userID string
}

// New creates an uninitialized provider.
func New(logger *slog.Logger) *Provider {
	return &Provider{logger: logger}
}

// Initialize derives the encryption key for the given user. When silent is
// set, failures are logged and swallowed so app startup is never blocked by
// crypto state; callers then simply see an uninitialized provider.
func (p *Provider) Initialize(userID string, silent bool) error {
	err := p.initialize(userID)
	if err != nil && silent {
		p.logger.Warn("encryption provider initialization failed", "error", err)
		return nil
	}
	return err
}

func (p *Provider) initialize(userID string) error {
	if userID == "" {
		return fmt.Errorf("user id cannot be empty")
	}

	// The salt is derived from the user identity so every device of the
	// same user produces the same key without a salt exchange.
	salt := sha256.Sum256([]byte("chaterm-sync/" + userID))
	key := argon2.IDKey([]byte(userID), salt[:], argon2Time, argon2Memory, argon2Threads, keyLen)

	p.mu.Lock()
	p.key = key
	p.userID = userID
	p.mu.Unlock()

	p.logger.Info("encryption provider initialized", "user_id", userID)
	return nil
}

// Initialized reports whether a key is loaded. Sync operations check this
// before touching credential fields.
func (p *Provider) Initialized() bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.key != nil
}

// Status returns the provider snapshot for diagnostics.
func (p *Provider) Status() Status {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return Status{Initialized: p.key != nil, UserID: p.userID}
}

// Destroy wipes the key material. The provider needs re-initialization
// afterwards.
func (p *Provider) Destroy() {
	p.mu.Lock()
	defer p.mu.Unlock()
	for i := range p.key {
		p.key[i] = 0
	}
	p.key = nil
	p.userID = ""
}

// EncryptField encrypts a sensitive field value with AES-256-GCM and
// returns it base64-encoded as nonce || ciphertext || tag.
func (p *Provider) EncryptField(plaintext string) (string, error) {
	p.mu.RLock()
	key := p.key
	p.mu.RUnlock()
	if key == nil {
		return "", fmt.Errorf("encryption provider not initialized")
	}
	if plaintext == "" {
		return "", nil
	}

	block, err := aes.NewCipher(key)
	if err != nil {
		return "", fmt.Errorf("failed to create cipher: %w", err)
	}
	aesGCM, err := cipher.NewGCM(block)
	if err != nil {
		return "", fmt.Errorf("failed to create GCM: %w", err)
	}

	nonce := make([]byte, nonceSize)
	if _, err := rand.Read(nonce); err != nil {
		return "", fmt.Errorf("failed to generate nonce: %w", err)
	}

	sealed := aesGCM.Seal(nonce, nonce, []byte(plaintext), nil)
	return base64.StdEncoding.EncodeToString(sealed), nil
}

// DecryptField reverses EncryptField.
func (p *Provider) DecryptField(encoded string) (string, error) {
	p.mu.RLock()
	key := p.key
	p.mu.RUnlock()
	if key == nil {
		return "", fmt.Errorf("encryption provider not initialized")
	}
	if encoded == "" {
		return "", nil
	}

	sealed, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return "", fmt.Errorf("failed to decode encrypted field: %w", err)
	}
	if len(sealed) < nonceSize {
		return "", fmt.Errorf("encrypted field too short")
	}

	block, err := aes.NewCipher(key)
	if err != nil {
		return "", fmt.Errorf("failed to create cipher: %w", err)
	}
	aesGCM, err := cipher.NewGCM(block)
	if err != nil {
		return "", fmt.Errorf("failed to create GCM: %w", err)
	}

	plaintext, err := aesGCM.Open(nil, sealed[:nonceSize], sealed[nonceSize:], nil)
	if err != nil {
		return "", fmt.Errorf("failed to decrypt field: %w", err)
	}
	return string(plaintext), nil
}
