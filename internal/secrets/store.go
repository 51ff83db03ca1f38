// Package secrets persists API credentials as a JSON blob encrypted at
// rest, keyed to the current user through a private key file. Loading
// never fails: any problem degrades to empty defaults, while save and
// clear propagate errors since silent credential loss is worse than a
// visible one.
package secrets

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"golang.org/x/crypto/scrypt"

	"calexport/internal/domain"
)

const (
	configFileName = "config.enc"
	keyFileName    = "secret.key"
)

// entropy salts the key derivation so the key file alone is not the
// encryption key.
var entropy = []byte("calexport-v1")

// ExportMode is the user's default export preference.
type ExportMode string

const (
	ModeAPIOnly   ExportMode = "api"
	ModeClipboard ExportMode = "clipboard"
)

// Credentials holds per-provider API keys and the default export mode.
type Credentials struct {
	ClaudeAPIKey      string     `json:"claude_api_key"`
	ChatGPTAPIKey     string     `json:"chatgpt_api_key"`
	GeminiAPIKey      string     `json:"gemini_api_key"`
	PerplexityAPIKey  string     `json:"perplexity_api_key"`
	DefaultExportMode ExportMode `json:"default_export_mode"`
}

// APIKey returns the key for the given service, empty when unset.
func (c *Credentials) APIKey(kind domain.ServiceKind) string {
	switch kind {
	case domain.ServiceClaude:
		return c.ClaudeAPIKey
	case domain.ServiceChatGPT:
		return c.ChatGPTAPIKey
	case domain.ServiceGemini:
		return c.GeminiAPIKey
	case domain.ServicePerplexity:
		return c.PerplexityAPIKey
	}
	return ""
}

func defaults() *Credentials {
	return &Credentials{DefaultExportMode: ModeAPIOnly}
}

// Store reads and writes the encrypted credential blob.
type Store struct {
	dir string
}

// NewStore creates a store rooted at dir. An empty dir places it under
// the user's config directory.
func NewStore(dir string) *Store {
	if dir == "" {
		base, err := os.UserConfigDir()
		if err != nil {
			base = "."
		}
		dir = filepath.Join(base, "calexport")
	}
	return &Store{dir: dir}
}

// Location returns the directory holding the credential files.
func (s *Store) Location() string {
	return s.dir
}

// Load returns the stored credentials, or empty defaults when the blob
// is missing, unreadable or fails to decrypt.
func (s *Store) Load() *Credentials {
	blob, err := os.ReadFile(filepath.Join(s.dir, configFileName))
	if err != nil {
		return defaults()
	}

	key, err := s.readKey()
	if err != nil {
		return defaults()
	}

	plain, err := open(key, blob)
	if err != nil {
		return defaults()
	}

	creds := defaults()
	if err := json.Unmarshal(plain, creds); err != nil {
		return defaults()
	}
	return creds
}

// Save encrypts and writes the credentials.
func (s *Store) Save(creds *Credentials) error {
	if err := os.MkdirAll(s.dir, 0700); err != nil {
		return fmt.Errorf("create config dir: %w", err)
	}

	key, err := s.ensureKey()
	if err != nil {
		return err
	}

	plain, err := json.MarshalIndent(creds, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal credentials: %w", err)
	}

	blob, err := seal(key, plain)
	if err != nil {
		return fmt.Errorf("encrypt credentials: %w", err)
	}

	if err := os.WriteFile(filepath.Join(s.dir, configFileName), blob, 0600); err != nil {
		return fmt.Errorf("write credentials: %w", err)
	}
	return nil
}

// Clear removes the stored credential blob. The key file is left in
// place so a later Save reuses it.
func (s *Store) Clear() error {
	err := os.Remove(filepath.Join(s.dir, configFileName))
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("clear credentials: %w", err)
	}
	return nil
}

func (s *Store) readKey() ([]byte, error) {
	secret, err := os.ReadFile(filepath.Join(s.dir, keyFileName))
	if err != nil {
		return nil, err
	}
	return derive(secret)
}

func (s *Store) ensureKey() ([]byte, error) {
	path := filepath.Join(s.dir, keyFileName)
	secret, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		secret = make([]byte, 32)
		if _, err := rand.Read(secret); err != nil {
			return nil, fmt.Errorf("generate key: %w", err)
		}
		if err := os.WriteFile(path, secret, 0600); err != nil {
			return nil, fmt.Errorf("write key file: %w", err)
		}
	} else if err != nil {
		return nil, fmt.Errorf("read key file: %w", err)
	}
	return derive(secret)
}

func derive(secret []byte) ([]byte, error) {
	return scrypt.Key(secret, entropy, 1<<15, 8, 1, 32)
}

func seal(key, plain []byte) ([]byte, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, err
	}
	nonce := make([]byte, gcm.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return nil, err
	}
	return gcm.Seal(nonce, nonce, plain, nil), nil
}

func open(key, blob []byte) ([]byte, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, err
	}
	if len(blob) < gcm.NonceSize() {
		return nil, fmt.Errorf("blob too short")
	}
	nonce, sealed := blob[:gcm.NonceSize()], blob[gcm.NonceSize():]
	return gcm.Open(nil, nonce, sealed, nil)
}
