// Package auth implements stateless JWT authentication and role-based
// access control for graphdb's procedure and admin surfaces (spec §8):
// bcrypt-hashed passwords, account lockout after repeated failures, and an
// HS256 token whose claims carry the user's roles.
package auth

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"golang.org/x/crypto/bcrypt"
)

var (
	ErrUserNotFound       = errors.New("user not found")
	ErrUserExists         = errors.New("user already exists")
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrAccountLocked      = errors.New("account locked due to failed login attempts")
	ErrPasswordTooShort   = errors.New("password does not meet minimum length requirement")
	ErrInvalidToken       = errors.New("invalid or expired token")
	ErrInsufficientRole   = errors.New("insufficient role permissions")
	ErrSessionExpired     = errors.New("session expired")
	ErrNoCredentials      = errors.New("no credentials provided")
	ErrMissingSecret      = errors.New("JWT secret not configured")
)

// Role names a user's access level.
type Role string

const (
	RoleAdmin  Role = "admin"
	RoleEditor Role = "editor"
	RoleViewer Role = "viewer"
	RoleNone   Role = "none"
)

// Permission names one allowed action.
type Permission string

const (
	PermRead       Permission = "read"
	PermWrite      Permission = "write"
	PermCreate     Permission = "create"
	PermDelete     Permission = "delete"
	PermAdmin      Permission = "admin"
	PermSchema     Permission = "schema"
	PermUserManage Permission = "user_manage"
)

// RolePermissions maps each role to the permissions it grants.
var RolePermissions = map[Role][]Permission{
	RoleAdmin:  {PermRead, PermWrite, PermCreate, PermDelete, PermAdmin, PermSchema, PermUserManage},
	RoleEditor: {PermRead, PermWrite, PermCreate, PermDelete},
	RoleViewer: {PermRead},
	RoleNone:   {},
}

// User is one authenticated account. PasswordHash is never serialized.
type User struct {
	ID           string            `json:"id"`
	Username     string            `json:"username"`
	Email        string            `json:"email,omitempty"`
	PasswordHash string            `json:"-"`
	Roles        []Role            `json:"roles"`
	CreatedAt    time.Time         `json:"created_at"`
	UpdatedAt    time.Time         `json:"updated_at"`
	LastLogin    time.Time         `json:"last_login,omitempty"`
	FailedLogins int               `json:"-"`
	LockedUntil  time.Time         `json:"-"`
	Disabled     bool              `json:"disabled,omitempty"`
	Metadata     map[string]string `json:"metadata,omitempty"`
}

// HasRole reports whether role is one of u's assigned roles.
func (u *User) HasRole(role Role) bool {
	for _, r := range u.Roles {
		if r == role {
			return true
		}
	}
	return false
}

// HasPermission reports whether any of u's roles grants perm.
func (u *User) HasPermission(perm Permission) bool {
	for _, role := range u.Roles {
		perms, ok := RolePermissions[role]
		if !ok {
			continue
		}
		for _, p := range perms {
			if p == perm {
				return true
			}
		}
	}
	return false
}

// JWTClaims is the payload of an issued token.
type JWTClaims struct {
	Sub      string   `json:"sub"`
	Email    string   `json:"email,omitempty"`
	Username string   `json:"username,omitempty"`
	Roles    []string `json:"roles"`
	Iat      int64    `json:"iat"`
	Exp      int64    `json:"exp,omitempty"` // 0 = never expires
}

// TokenResponse follows the OAuth 2.0 RFC 6749 token response shape.
type TokenResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	ExpiresIn   int64  `json:"expires_in,omitempty"`
	Scope       string `json:"scope,omitempty"`
}

// AuthConfig configures an Authenticator.
type AuthConfig struct {
	MinPasswordLength int
	BcryptCost        int

	JWTSecret   []byte
	TokenExpiry time.Duration // 0 = never expire

	MaxFailedLogins int
	LockoutDuration time.Duration

	SecurityEnabled bool
}

// DefaultAuthConfig returns sensible defaults: 8-char minimum passwords,
// bcrypt's default cost, no token expiry, and lockout after 5 failures for
// 15 minutes.
func DefaultAuthConfig() AuthConfig {
	return AuthConfig{
		MinPasswordLength: 8,
		BcryptCost:        bcrypt.DefaultCost,
		TokenExpiry:       0,
		MaxFailedLogins:   5,
		LockoutDuration:   15 * time.Minute,
		SecurityEnabled:   true,
	}
}

// Authenticator manages a user directory and issues/validates tokens
// against it. All methods are safe for concurrent use.
type Authenticator struct {
	mu     sync.RWMutex
	users  map[string]*User
	config AuthConfig

	auditLog func(event AuditEvent)
}

// AuditEvent records one authentication-related action for an audit trail.
type AuditEvent struct {
	Timestamp   time.Time `json:"timestamp"`
	EventType   string    `json:"event_type"`
	Username    string    `json:"username,omitempty"`
	UserID      string    `json:"user_id,omitempty"`
	IPAddress   string    `json:"ip_address,omitempty"`
	UserAgent   string    `json:"user_agent,omitempty"`
	Success     bool      `json:"success"`
	Details     string    `json:"details,omitempty"`
	RequestPath string    `json:"request_path,omitempty"`
}

// NewAuthenticator builds an Authenticator from config, filling in zero
// fields with DefaultAuthConfig's values. Returns ErrMissingSecret if
// SecurityEnabled is true but no JWTSecret was given.
func NewAuthenticator(config AuthConfig) (*Authenticator, error) {
	if config.SecurityEnabled && len(config.JWTSecret) == 0 {
		return nil, ErrMissingSecret
	}
	if config.BcryptCost == 0 {
		config.BcryptCost = bcrypt.DefaultCost
	}
	if config.MinPasswordLength == 0 {
		config.MinPasswordLength = 8
	}
	if config.MaxFailedLogins == 0 {
		config.MaxFailedLogins = 5
	}
	if config.LockoutDuration == 0 {
		config.LockoutDuration = 15 * time.Minute
	}
	return &Authenticator{
		users:  make(map[string]*User),
		config: config,
	}, nil
}

// SetAuditLogger installs fn to receive every AuditEvent this Authenticator
// emits.
func (a *Authenticator) SetAuditLogger(fn func(AuditEvent)) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.auditLog = fn
}

func (a *Authenticator) logAudit(event AuditEvent) {
	if a.auditLog != nil {
		event.Timestamp = time.Now()
		a.auditLog(event)
	}
}

// CreateUser registers a new account, hashing password with bcrypt. Roles
// defaults to [RoleViewer] when empty.
func (a *Authenticator) CreateUser(username, password string, roles []Role) (*User, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if _, exists := a.users[username]; exists {
		a.logAudit(AuditEvent{EventType: "user_create", Username: username, Success: false, Details: "user already exists"})
		return nil, ErrUserExists
	}
	if len(password) < a.config.MinPasswordLength {
		return nil, fmt.Errorf("%w: minimum %d characters required", ErrPasswordTooShort, a.config.MinPasswordLength)
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), a.config.BcryptCost)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}
	if len(roles) == 0 {
		roles = []Role{RoleViewer}
	}

	now := time.Now()
	user := &User{
		ID:           generateID(),
		Username:     username,
		Email:        username + "@localhost",
		PasswordHash: string(hash),
		Roles:        roles,
		CreatedAt:    now,
		UpdatedAt:    now,
		Metadata:     make(map[string]string),
	}
	a.users[username] = user

	a.logAudit(AuditEvent{EventType: "user_create", Username: username, UserID: user.ID, Success: true, Details: fmt.Sprintf("created with roles %v", roles)})
	return a.copyUserSafe(user), nil
}

// Authenticate verifies username/password (RFC 6749 §4.3 password grant)
// and, on success, returns a signed TokenResponse. Locks the account after
// config.MaxFailedLogins consecutive failures; never reveals whether a
// username exists.
func (a *Authenticator) Authenticate(username, password, ipAddress, userAgent string) (*TokenResponse, *User, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	user, exists := a.users[username]
	if !exists {
		a.logAudit(AuditEvent{EventType: "login", Username: username, IPAddress: ipAddress, UserAgent: userAgent, Success: false, Details: "user not found"})
		return nil, nil, ErrInvalidCredentials
	}
	if !user.LockedUntil.IsZero() && time.Now().Before(user.LockedUntil) {
		a.logAudit(AuditEvent{EventType: "login", Username: username, UserID: user.ID, IPAddress: ipAddress, UserAgent: userAgent, Success: false, Details: "account locked"})
		return nil, nil, ErrAccountLocked
	}
	if user.Disabled {
		a.logAudit(AuditEvent{EventType: "login", Username: username, UserID: user.ID, IPAddress: ipAddress, UserAgent: userAgent, Success: false, Details: "account disabled"})
		return nil, nil, ErrInvalidCredentials
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		user.FailedLogins++
		if user.FailedLogins >= a.config.MaxFailedLogins {
			user.LockedUntil = time.Now().Add(a.config.LockoutDuration)
		}
		user.UpdatedAt = time.Now()
		a.logAudit(AuditEvent{EventType: "login", Username: username, UserID: user.ID, IPAddress: ipAddress, UserAgent: userAgent, Success: false, Details: fmt.Sprintf("invalid password (attempt %d/%d)", user.FailedLogins, a.config.MaxFailedLogins)})
		return nil, nil, ErrInvalidCredentials
	}

	user.FailedLogins = 0
	user.LockedUntil = time.Time{}
	user.LastLogin = time.Now()
	user.UpdatedAt = time.Now()

	token, err := a.generateJWT(user)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to generate token: %w", err)
	}
	response := &TokenResponse{AccessToken: token, TokenType: "Bearer", Scope: "default"}
	if a.config.TokenExpiry > 0 {
		response.ExpiresIn = int64(a.config.TokenExpiry.Seconds())
	}

	a.logAudit(AuditEvent{EventType: "login", Username: username, UserID: user.ID, IPAddress: ipAddress, UserAgent: userAgent, Success: true, Details: "token generated"})
	return response, a.copyUserSafe(user), nil
}

// ValidateToken verifies token's signature and expiration, returning its
// claims. Strips a leading "Bearer " prefix. When SecurityEnabled is
// false, returns admin claims for "anonymous" unconditionally.
func (a *Authenticator) ValidateToken(token string) (*JWTClaims, error) {
	if !a.config.SecurityEnabled {
		return &JWTClaims{Sub: "anonymous", Roles: []string{string(RoleAdmin)}}, nil
	}
	if token == "" {
		return nil, ErrNoCredentials
	}
	token = strings.TrimSpace(strings.TrimPrefix(token, "Bearer "))
	return a.verifyJWT(token)
}

// GetUserByID looks up a user by ID, returning a copy with no password hash.
func (a *Authenticator) GetUserByID(id string) (*User, error) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	for _, user := range a.users {
		if user.ID == id {
			return a.copyUserSafe(user), nil
		}
	}
	return nil, ErrUserNotFound
}

// GetUser looks up a user by username, returning a copy with no password hash.
func (a *Authenticator) GetUser(username string) (*User, error) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	user, exists := a.users[username]
	if !exists {
		return nil, ErrUserNotFound
	}
	return a.copyUserSafe(user), nil
}

// ListUsers returns every registered user, without password hashes.
func (a *Authenticator) ListUsers() []*User {
	a.mu.RLock()
	defer a.mu.RUnlock()
	users := make([]*User, 0, len(a.users))
	for _, u := range a.users {
		users = append(users, a.copyUserSafe(u))
	}
	return users
}

// ChangePassword verifies oldPassword and replaces it with newPassword.
func (a *Authenticator) ChangePassword(username, oldPassword, newPassword string) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	user, exists := a.users[username]
	if !exists {
		return ErrUserNotFound
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(oldPassword)); err != nil {
		a.logAudit(AuditEvent{EventType: "password_change", Username: username, UserID: user.ID, Success: false, Details: "old password incorrect"})
		return ErrInvalidCredentials
	}
	if len(newPassword) < a.config.MinPasswordLength {
		return fmt.Errorf("%w: minimum %d characters required", ErrPasswordTooShort, a.config.MinPasswordLength)
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(newPassword), a.config.BcryptCost)
	if err != nil {
		return fmt.Errorf("failed to hash password: %w", err)
	}
	user.PasswordHash = string(hash)
	user.UpdatedAt = time.Now()
	a.logAudit(AuditEvent{EventType: "password_change", Username: username, UserID: user.ID, Success: true})
	return nil
}

// UpdateRoles replaces a user's role set.
func (a *Authenticator) UpdateRoles(username string, newRoles []Role) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	user, exists := a.users[username]
	if !exists {
		return ErrUserNotFound
	}
	oldRoles := user.Roles
	user.Roles = newRoles
	user.UpdatedAt = time.Now()
	a.logAudit(AuditEvent{EventType: "role_change", Username: username, UserID: user.ID, Success: true, Details: fmt.Sprintf("roles changed from %v to %v", oldRoles, newRoles)})
	return nil
}

// DisableUser suspends a user account, blocking further authentication.
func (a *Authenticator) DisableUser(username string) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	user, exists := a.users[username]
	if !exists {
		return ErrUserNotFound
	}
	user.Disabled = true
	user.UpdatedAt = time.Now()
	a.logAudit(AuditEvent{EventType: "user_disable", Username: username, UserID: user.ID, Success: true})
	return nil
}

// EnableUser re-enables a disabled account and clears its lockout state.
func (a *Authenticator) EnableUser(username string) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	user, exists := a.users[username]
	if !exists {
		return ErrUserNotFound
	}
	user.Disabled = false
	user.FailedLogins = 0
	user.LockedUntil = time.Time{}
	user.UpdatedAt = time.Now()
	a.logAudit(AuditEvent{EventType: "user_enable", Username: username, UserID: user.ID, Success: true})
	return nil
}

// UnlockUser clears a user's failed-login lockout without touching
// Disabled.
func (a *Authenticator) UnlockUser(username string) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	user, exists := a.users[username]
	if !exists {
		return ErrUserNotFound
	}
	user.FailedLogins = 0
	user.LockedUntil = time.Time{}
	user.UpdatedAt = time.Now()
	a.logAudit(AuditEvent{EventType: "user_unlock", Username: username, UserID: user.ID, Success: true})
	return nil
}

// DeleteUser removes a user account entirely.
func (a *Authenticator) DeleteUser(username string) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	user, exists := a.users[username]
	if !exists {
		return ErrUserNotFound
	}
	userID := user.ID
	delete(a.users, username)
	a.logAudit(AuditEvent{EventType: "user_delete", Username: username, UserID: userID, Success: true})
	return nil
}

// UserCount returns the number of registered users.
func (a *Authenticator) UserCount() int {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return len(a.users)
}

// IsSecurityEnabled reports whether this Authenticator enforces auth checks.
func (a *Authenticator) IsSecurityEnabled() bool {
	return a.config.SecurityEnabled
}

// GenerateClusterToken issues a token for a cluster node identified by
// nodeID, carrying role and respecting config.TokenExpiry.
func (a *Authenticator) GenerateClusterToken(nodeID string, role Role) (string, error) {
	if len(a.config.JWTSecret) == 0 {
		return "", ErrMissingSecret
	}
	user := &User{ID: "cluster-" + nodeID, Username: nodeID, Roles: []Role{role}}
	token, err := a.generateJWT(user)
	if err != nil {
		return "", fmt.Errorf("failed to generate cluster token: %w", err)
	}
	a.logAudit(AuditEvent{Timestamp: time.Now(), EventType: "cluster_token_generated", Username: nodeID, UserID: user.ID, Success: true, Details: fmt.Sprintf("cluster token generated for node %s with role %s", nodeID, role)})
	return token, nil
}

// GenerateClusterTokenWithExpiry is GenerateClusterToken with an explicit
// token lifetime (0 = never expires) instead of config.TokenExpiry.
func (a *Authenticator) GenerateClusterTokenWithExpiry(nodeID string, role Role, expiry time.Duration) (string, error) {
	if len(a.config.JWTSecret) == 0 {
		return "", ErrMissingSecret
	}
	now := time.Now().Unix()
	claims := JWTClaims{Sub: "cluster-" + nodeID, Username: nodeID, Roles: []string{string(role)}, Iat: now}
	if expiry > 0 {
		claims.Exp = now + int64(expiry.Seconds())
	}

	token, err := signClaims(claims, a.config.JWTSecret)
	if err != nil {
		return "", err
	}
	a.logAudit(AuditEvent{Timestamp: time.Now(), EventType: "cluster_token_generated", Username: nodeID, UserID: "cluster-" + nodeID, Success: true, Details: fmt.Sprintf("cluster token generated for node %s with role %s, expiry=%v", nodeID, role, expiry)})
	return token, nil
}

func (a *Authenticator) generateJWT(user *User) (string, error) {
	if len(a.config.JWTSecret) == 0 {
		return "", ErrMissingSecret
	}
	now := time.Now().Unix()
	roles := make([]string, len(user.Roles))
	for i, r := range user.Roles {
		roles[i] = string(r)
	}
	claims := JWTClaims{Sub: user.ID, Email: user.Email, Username: user.Username, Roles: roles, Iat: now}
	if a.config.TokenExpiry > 0 {
		claims.Exp = now + int64(a.config.TokenExpiry.Seconds())
	}
	return signClaims(claims, a.config.JWTSecret)
}

// signClaims builds a header.payload.signature token, HMAC-SHA256 signed.
func signClaims(claims JWTClaims, secret []byte) (string, error) {
	header := map[string]string{"alg": "HS256", "typ": "JWT"}
	headerJSON, err := json.Marshal(header)
	if err != nil {
		return "", err
	}
	claimsJSON, err := json.Marshal(claims)
	if err != nil {
		return "", err
	}
	headerB64 := base64.RawURLEncoding.EncodeToString(headerJSON)
	claimsB64 := base64.RawURLEncoding.EncodeToString(claimsJSON)

	message := headerB64 + "." + claimsB64
	mac := hmac.New(sha256.New, secret)
	mac.Write([]byte(message))
	signature := base64.RawURLEncoding.EncodeToString(mac.Sum(nil))
	return message + "." + signature, nil
}

func (a *Authenticator) verifyJWT(token string) (*JWTClaims, error) {
	if len(a.config.JWTSecret) == 0 {
		return nil, ErrMissingSecret
	}
	parts := strings.Split(token, ".")
	if len(parts) != 3 {
		return nil, ErrInvalidToken
	}

	message := parts[0] + "." + parts[1]
	mac := hmac.New(sha256.New, a.config.JWTSecret)
	mac.Write([]byte(message))
	expectedSig := base64.RawURLEncoding.EncodeToString(mac.Sum(nil))
	if !SecureCompare(parts[2], expectedSig) {
		return nil, ErrInvalidToken
	}

	claimsJSON, err := base64.RawURLEncoding.DecodeString(parts[1])
	if err != nil {
		return nil, ErrInvalidToken
	}
	var claims JWTClaims
	if err := json.Unmarshal(claimsJSON, &claims); err != nil {
		return nil, ErrInvalidToken
	}
	if claims.Exp > 0 && time.Now().Unix() > claims.Exp {
		return nil, ErrSessionExpired
	}
	return &claims, nil
}

func (a *Authenticator) copyUserSafe(u *User) *User {
	roles := make([]Role, len(u.Roles))
	copy(roles, u.Roles)
	metadata := make(map[string]string, len(u.Metadata))
	for k, v := range u.Metadata {
		metadata[k] = v
	}
	return &User{
		ID:        u.ID,
		Username:  u.Username,
		Email:     u.Email,
		Roles:     roles,
		CreatedAt: u.CreatedAt,
		UpdatedAt: u.UpdatedAt,
		LastLogin: u.LastLogin,
		Disabled:  u.Disabled,
		Metadata:  metadata,
	}
}

func generateID() string {
	b := make([]byte, 16)
	_, _ = rand.Read(b)
	return base64.RawURLEncoding.EncodeToString(b)
}

// SecureCompare is a constant-time string comparison, used to check a
// token's signature without leaking timing information.
func SecureCompare(a, b string) bool {
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}

// ValidRole reports whether r is one of the defined roles.
func ValidRole(r Role) bool {
	switch r {
	case RoleAdmin, RoleEditor, RoleViewer, RoleNone:
		return true
	default:
		return false
	}
}

// RoleFromString parses s into a Role, rejecting unknown names.
func RoleFromString(s string) (Role, error) {
	r := Role(s)
	if !ValidRole(r) {
		return RoleNone, fmt.Errorf("invalid role: %s", s)
	}
	return r, nil
}

// HasCredentials reports whether any credential source is non-empty.
func HasCredentials(authHeader, apiKeyHeader, cookie, queryToken, queryAPIKey string) bool {
	return authHeader != "" || apiKeyHeader != "" || cookie != "" || queryToken != "" || queryAPIKey != ""
}

// ExtractToken picks a token from the first non-empty source, in priority
// order: Authorization header (RFC 6750 Bearer), X-API-Key header, cookie,
// then query parameters.
func ExtractToken(authHeader, apiKeyHeader, cookie, queryToken, queryAPIKey string) string {
	if authHeader != "" {
		return strings.TrimPrefix(authHeader, "Bearer ")
	}
	if apiKeyHeader != "" {
		return apiKeyHeader
	}
	if cookie != "" {
		return cookie
	}
	if queryToken != "" {
		return queryToken
	}
	return queryAPIKey
}
