package auth

import (
	"crypto/subtle"
	"errors"
	"fmt"
	"sort"
	"time"

	"dlvideo/internal/model"
	"dlvideo/pkg/logger"

	"go.uber.org/zap"
)

// Roles.
const (
	RoleAdmin = "admin"
	RoleUser  = "user"
)

// Named invariant and validation errors. Credential failures stay generic so
// login responses cannot be used for account enumeration.
var (
	ErrInvalidCredentials = errors.New("invalid username or password")
	ErrUserNotFound       = errors.New("user not found")
	ErrUserExists         = errors.New("username already exists")
	ErrWeakPassword       = errors.New("password must be at least 6 characters")
	ErrInvalidRole        = errors.New("invalid role")
	ErrLastAdmin          = errors.New("cannot delete the last admin account")
	ErrSelfDelete         = errors.New("cannot delete your own account")
	ErrSelfRename         = errors.New("cannot change your own username")
	ErrShortUsername      = errors.New("username must be at least 3 characters")
	ErrWrongPassword      = errors.New("current password is incorrect")
)

// LockedError is returned while an account lockout window is still open.
type LockedError struct {
	Until time.Time
}

func (e *LockedError) Error() string {
	remaining := time.Until(e.Until).Round(time.Minute)
	if remaining < time.Minute {
		remaining = time.Minute
	}
	return fmt.Sprintf("account is locked, try again in %s", remaining)
}

// LoginResult is what a successful login yields.
type LoginResult struct {
	Token              string
	Username           string
	Role               string
	MustChangePassword bool
	ExpiresAt          time.Time
}

// SessionInfo is the verified identity attached to a request.
type SessionInfo struct {
	Username  string
	Role      string
	ExpiresAt time.Time
}

// UserInfo is the admin-facing user listing entry, without secrets.
type UserInfo struct {
	Username  string     `json:"username"`
	Role      string     `json:"role"`
	CreatedAt time.Time  `json:"created_at"`
	LastLogin *time.Time `json:"last_login,omitempty"`
	IsLocked  bool       `json:"is_locked"`
}

// SessionEntry is the admin-facing session listing entry; only a token
// preview is ever exposed.
type SessionEntry struct {
	Username     string    `json:"username"`
	Role         string    `json:"role"`
	CreatedAt    time.Time `json:"created_at"`
	ExpiresAt    time.Time `json:"expires_at"`
	IPAddress    string    `json:"ip_address,omitempty"`
	TokenPreview string    `json:"token_preview"`
}

// Manager is the login/logout/verification/lockout state machine on top of
// the credential store.
type Manager struct {
	store *Store
	cfg   *model.AuthConfig
}

// NewManager creates a new session authenticator
func NewManager(store *Store, cfg *model.AuthConfig) *Manager {
	return &Manager{store: store, cfg: cfg}
}

// Login authenticates a user and issues a fresh session, invalidating every
// session the user held before. Failed attempts count toward lockout;
// attempts during an open lockout window are rejected without counting.
func (m *Manager) Login(username, password, ip string) (*LoginResult, error) {
	var result *LoginResult
	var loginErr error

	err := m.store.Update(func(d *Data) {
		user, ok := d.Users[username]
		if !ok {
			logger.Logger.Warn("Login failed: unknown user", zap.String("username", username))
			loginErr = ErrInvalidCredentials
			return
		}

		now := time.Now()
		if user.LockedUntil != nil {
			if now.Before(*user.LockedUntil) {
				loginErr = &LockedError{Until: *user.LockedUntil}
				return
			}
			// Lockout window elapsed: unlock and evaluate normally.
			user.LockedUntil = nil
			user.LoginAttempts = 0
		}

		hash := HashPassword(password, user.Salt)
		if subtle.ConstantTimeCompare([]byte(hash), []byte(user.PasswordHash)) != 1 {
			user.LoginAttempts++
			if user.LoginAttempts >= m.cfg.MaxLoginAttempts {
				until := now.Add(time.Duration(m.cfg.LockoutMinutes) * time.Minute)
				user.LockedUntil = &until
				logger.Logger.Warn("Account locked after repeated failures",
					zap.String("username", username),
					zap.Time("until", until))
				loginErr = &LockedError{Until: until}
				return
			}
			logger.Logger.Warn("Login failed: wrong password",
				zap.String("username", username),
				zap.Int("attempts", user.LoginAttempts))
			loginErr = ErrInvalidCredentials
			return
		}

		user.LoginAttempts = 0
		user.LockedUntil = nil
		lastLogin := now
		user.LastLogin = &lastLogin

		// One active session per user: logging in drops all prior sessions.
		for token, sess := range d.Sessions {
			if sess.Username == username {
				delete(d.Sessions, token)
			}
		}

		token := NewSessionToken()
		expiresAt := now.Add(time.Duration(m.cfg.SessionExpiryHours) * time.Hour)
		d.Sessions[token] = &Session{
			Username:  username,
			Role:      user.Role,
			CreatedAt: now,
			ExpiresAt: expiresAt,
			IPAddress: ip,
		}

		result = &LoginResult{
			Token:              token,
			Username:           username,
			Role:               user.Role,
			MustChangePassword: user.MustChangePassword,
			ExpiresAt:          expiresAt,
		}
	})
	if err != nil {
		return nil, err
	}
	if loginErr != nil {
		return nil, loginErr
	}

	logger.Logger.Info("Login successful",
		zap.String("username", username),
		zap.String("ip", ip))
	return result, nil
}

// Verify checks a session token. A lookup miss and an expired session both
// read as unauthenticated; expired records are deleted lazily.
func (m *Manager) Verify(token string) (*SessionInfo, bool) {
	var info *SessionInfo
	var expired bool

	m.store.View(func(d *Data) {
		sess, ok := d.Sessions[token]
		if !ok {
			return
		}
		if time.Now().After(sess.ExpiresAt) {
			expired = true
			return
		}
		info = &SessionInfo{
			Username:  sess.Username,
			Role:      sess.Role,
			ExpiresAt: sess.ExpiresAt,
		}
	})

	if expired {
		_ = m.store.Update(func(d *Data) {
			delete(d.Sessions, token)
		})
	}

	return info, info != nil
}

// Logout deletes the presented session.
func (m *Manager) Logout(token string) bool {
	found := false
	_ = m.store.Update(func(d *Data) {
		if sess, ok := d.Sessions[token]; ok {
			found = true
			delete(d.Sessions, token)
			logger.Logger.Info("User logged out", zap.String("username", sess.Username))
		}
	})
	return found
}

// ChangePassword verifies the old password and sets a new one.
func (m *Manager) ChangePassword(username, oldPassword, newPassword string) error {
	return m.store.Mutate(func(d *Data) error {
		user, ok := d.Users[username]
		if !ok {
			return ErrUserNotFound
		}
		if HashPassword(oldPassword, user.Salt) != user.PasswordHash {
			return ErrWrongPassword
		}
		if len(newPassword) < 6 {
			return ErrWeakPassword
		}

		salt := NewSalt()
		user.Salt = salt
		user.PasswordHash = HashPassword(newPassword, salt)
		user.MustChangePassword = false

		logger.Logger.Info("Password changed", zap.String("username", username))
		return nil
	})
}

// CreateUser adds a new account. Validation failures are reported
// specifically since they are not security-sensitive.
func (m *Manager) CreateUser(username, password, role string) error {
	return m.store.Mutate(func(d *Data) error {
		if _, ok := d.Users[username]; ok {
			return ErrUserExists
		}
		if len(password) < 6 {
			return ErrWeakPassword
		}
		if role != RoleAdmin && role != RoleUser {
			return ErrInvalidRole
		}

		salt := NewSalt()
		d.Users[username] = &User{
			Username:     username,
			PasswordHash: HashPassword(password, salt),
			Salt:         salt,
			Role:         role,
			CreatedAt:    time.Now(),
		}

		logger.Logger.Info("User created",
			zap.String("username", username),
			zap.String("role", role))
		return nil
	})
}

// ListUsers returns all accounts without sensitive fields.
func (m *Manager) ListUsers() []UserInfo {
	var users []UserInfo
	m.store.View(func(d *Data) {
		for _, u := range d.Users {
			users = append(users, UserInfo{
				Username:  u.Username,
				Role:      u.Role,
				CreatedAt: u.CreatedAt,
				LastLogin: u.LastLogin,
				IsLocked:  u.LockedUntil != nil && time.Now().Before(*u.LockedUntil),
			})
		}
	})
	sort.Slice(users, func(i, j int) bool { return users[i].Username < users[j].Username })
	return users
}

// DeleteUser removes an account and its sessions. The acting admin cannot
// delete itself, and the last remaining admin account is undeletable.
func (m *Manager) DeleteUser(username, requester string) error {
	return m.store.Mutate(func(d *Data) error {
		target, ok := d.Users[username]
		if !ok {
			return ErrUserNotFound
		}
		if username == requester {
			return ErrSelfDelete
		}
		if target.Role == RoleAdmin && countAdmins(d) <= 1 {
			return ErrLastAdmin
		}

		delete(d.Users, username)
		for token, sess := range d.Sessions {
			if sess.Username == username {
				delete(d.Sessions, token)
			}
		}

		logger.Logger.Info("User deleted",
			zap.String("username", username),
			zap.String("by", requester))
		return nil
	})
}

// ResetPassword sets a new password without the old one (admin action) and
// invalidates the target's sessions. When an admin resets their own
// password, the session making the request survives; all others drop.
func (m *Manager) ResetPassword(username, newPassword, adminUsername, currentToken string) error {
	return m.store.Mutate(func(d *Data) error {
		user, ok := d.Users[username]
		if !ok {
			return ErrUserNotFound
		}
		if len(newPassword) < 6 {
			return ErrWeakPassword
		}

		salt := NewSalt()
		user.Salt = salt
		user.PasswordHash = HashPassword(newPassword, salt)
		user.MustChangePassword = false

		selfReset := username == adminUsername
		removed := 0
		for token, sess := range d.Sessions {
			if sess.Username != username {
				continue
			}
			if selfReset && token == currentToken {
				continue
			}
			delete(d.Sessions, token)
			removed++
		}

		logger.Logger.Info("Password reset",
			zap.String("username", username),
			zap.String("by", adminUsername),
			zap.Bool("self_reset", selfReset),
			zap.Int("sessions_invalidated", removed))
		return nil
	})
}

// RenameUser moves an account to a new username and rewrites the username on
// every session that referenced the old one. Renaming the acting admin's own
// account is blocked to avoid self-lockout via a stale credential reference.
func (m *Manager) RenameUser(oldUsername, newUsername, adminUsername string) error {
	return m.store.Mutate(func(d *Data) error {
		user, ok := d.Users[oldUsername]
		if !ok {
			return ErrUserNotFound
		}
		if _, ok := d.Users[newUsername]; ok {
			return ErrUserExists
		}
		if len(newUsername) < 3 {
			return ErrShortUsername
		}
		if oldUsername == adminUsername {
			return ErrSelfRename
		}

		user.Username = newUsername
		d.Users[newUsername] = user
		delete(d.Users, oldUsername)

		for _, sess := range d.Sessions {
			if sess.Username == oldUsername {
				sess.Username = newUsername
			}
		}

		logger.Logger.Info("Username changed",
			zap.String("old", oldUsername),
			zap.String("new", newUsername),
			zap.String("by", adminUsername))
		return nil
	})
}

// DeleteUserSessions drops every session held by username.
func (m *Manager) DeleteUserSessions(username, adminUsername string) (int, error) {
	removed := 0
	err := m.store.Mutate(func(d *Data) error {
		if _, ok := d.Users[username]; !ok {
			return ErrUserNotFound
		}
		for token, sess := range d.Sessions {
			if sess.Username == username {
				delete(d.Sessions, token)
				removed++
			}
		}
		logger.Logger.Info("Sessions invalidated",
			zap.String("username", username),
			zap.String("by", adminUsername),
			zap.Int("count", removed))
		return nil
	})
	return removed, err
}

// ListSessions returns all unexpired sessions with token previews only.
func (m *Manager) ListSessions() []SessionEntry {
	var entries []SessionEntry
	now := time.Now()
	m.store.View(func(d *Data) {
		for token, sess := range d.Sessions {
			if now.After(sess.ExpiresAt) {
				continue
			}
			preview := token
			if len(preview) > 20 {
				preview = preview[:20] + "..."
			}
			entries = append(entries, SessionEntry{
				Username:     sess.Username,
				Role:         sess.Role,
				CreatedAt:    sess.CreatedAt,
				ExpiresAt:    sess.ExpiresAt,
				IPAddress:    sess.IPAddress,
				TokenPreview: preview,
			})
		}
	})
	sort.Slice(entries, func(i, j int) bool { return entries[i].CreatedAt.Before(entries[j].CreatedAt) })
	return entries
}

// SweepSessions removes every expired session. Safe to call at any time;
// unexpired sessions are untouched and a second call removes nothing new.
func (m *Manager) SweepSessions() int {
	removed := 0
	_ = m.store.Update(func(d *Data) {
		now := time.Now()
		for token, sess := range d.Sessions {
			if now.After(sess.ExpiresAt) {
				delete(d.Sessions, token)
				removed++
			}
		}
	})
	if removed > 0 {
		logger.Logger.Info("Expired sessions swept", zap.Int("removed", removed))
	}
	return removed
}

func countAdmins(d *Data) int {
	count := 0
	for _, u := range d.Users {
		if u.Role == RoleAdmin {
			count++
		}
	}
	return count
}
