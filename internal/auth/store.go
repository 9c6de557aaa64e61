package auth

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"dlvideo/pkg/logger"

	"github.com/google/renameio/v2"
	"go.uber.org/zap"
	"golang.org/x/crypto/pbkdf2"
)

const (
	pbkdf2Iterations = 100000
	pbkdf2KeyLen     = 32
	saltBytes        = 32
	tokenBytes       = 48

	defaultAdminUser     = "admin"
	defaultAdminPassword = "admin123"
)

// User is one credential record.
type User struct {
	Username           string     `json:"username"`
	PasswordHash       string     `json:"password_hash"`
	Salt               string     `json:"salt"`
	Role               string     `json:"role"`
	CreatedAt          time.Time  `json:"created_at"`
	MustChangePassword bool       `json:"must_change_password"`
	LoginAttempts      int        `json:"login_attempts"`
	LockedUntil        *time.Time `json:"locked_until,omitempty"`
	LastLogin          *time.Time `json:"last_login,omitempty"`
}

// Session is one issued login token.
type Session struct {
	Username  string    `json:"username"`
	Role      string    `json:"role"`
	CreatedAt time.Time `json:"created_at"`
	ExpiresAt time.Time `json:"expires_at"`
	IPAddress string    `json:"ip_address,omitempty"`
}

// Data is the full persisted record set: every mutation rewrites it whole.
type Data struct {
	Users    map[string]*User    `json:"users"`
	Sessions map[string]*Session `json:"sessions"`
}

// Store owns the credential file. All load-mutate-persist cycles run under
// one writer lock so concurrent logins for the same user cannot lose updates.
type Store struct {
	mu   sync.Mutex
	path string
	data *Data
}

// Open loads the store from path, creating it (with a default admin account
// that must change its password) when absent.
func Open(path string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return nil, fmt.Errorf("creating auth data dir: %w", err)
	}

	s := &Store{
		path: path,
		data: &Data{
			Users:    make(map[string]*User),
			Sessions: make(map[string]*Session),
		},
	}

	raw, err := os.ReadFile(path)
	if err == nil {
		if err := json.Unmarshal(raw, s.data); err != nil {
			return nil, fmt.Errorf("parsing %s: %w", path, err)
		}
		if s.data.Users == nil {
			s.data.Users = make(map[string]*User)
		}
		if s.data.Sessions == nil {
			s.data.Sessions = make(map[string]*Session)
		}
	} else if !os.IsNotExist(err) {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}

	if _, ok := s.data.Users[defaultAdminUser]; !ok {
		salt := NewSalt()
		s.data.Users[defaultAdminUser] = &User{
			Username:           defaultAdminUser,
			PasswordHash:       HashPassword(defaultAdminPassword, salt),
			Salt:               salt,
			Role:               RoleAdmin,
			CreatedAt:          time.Now(),
			MustChangePassword: true,
		}
		if err := s.persistLocked(); err != nil {
			return nil, err
		}
		logger.Logger.Info("Default admin account created, password change required on first login",
			zap.String("username", defaultAdminUser))
	}

	return s, nil
}

// Mutate runs fn under the writer lock and rewrites the file only when fn
// succeeds, so fn must leave the data untouched on error.
func (s *Store) Mutate(fn func(d *Data) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := fn(s.data); err != nil {
		return err
	}
	return s.persistLocked()
}

// Update runs fn under the writer lock and always rewrites the file. Used by
// paths that must persist state even when the operation itself is rejected,
// such as failed-login attempt counting.
func (s *Store) Update(fn func(d *Data)) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	fn(s.data)
	return s.persistLocked()
}

// View runs fn with read access under the same lock.
func (s *Store) View(fn func(d *Data)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	fn(s.data)
}

func (s *Store) persistLocked() error {
	raw, err := json.MarshalIndent(s.data, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding auth data: %w", err)
	}
	if err := renameio.WriteFile(s.path, raw, 0600); err != nil {
		return fmt.Errorf("writing %s: %w", s.path, err)
	}
	return nil
}

// HashPassword derives a hex-encoded PBKDF2-SHA256 hash.
func HashPassword(password, salt string) string {
	key := pbkdf2.Key([]byte(password), []byte(salt), pbkdf2Iterations, pbkdf2KeyLen, sha256.New)
	return hex.EncodeToString(key)
}

// NewSalt returns a random per-user salt.
func NewSalt() string {
	b := make([]byte, saltBytes)
	if _, err := rand.Read(b); err != nil {
		panic(fmt.Sprintf("crypto/rand unavailable: %v", err))
	}
	return hex.EncodeToString(b)
}

// NewSessionToken returns a high-entropy, URL-safe session token.
func NewSessionToken() string {
	b := make([]byte, tokenBytes)
	if _, err := rand.Read(b); err != nil {
		panic(fmt.Sprintf("crypto/rand unavailable: %v", err))
	}
	return base64.RawURLEncoding.EncodeToString(b)
}
