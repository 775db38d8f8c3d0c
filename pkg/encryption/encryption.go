// Package encryption implements AES-256-GCM encryption at rest for
// sensitive property values (spec §8): versioned keys so a rotated key
// never blocks decrypting older data, PBKDF2 password-based key
// derivation, and an "enc:v{version}:{base64}" field format pkg/tenancy
// wires through SetEncryptor for per-tenant transparent field encryption.
package encryption

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/binary"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"golang.org/x/crypto/pbkdf2"
)

const versionHeaderSize = 4

var (
	ErrInvalidKey       = errors.New("encryption: invalid key length (must be 32 bytes)")
	ErrInvalidData      = errors.New("encryption: invalid encrypted data")
	ErrDecryptionFailed = errors.New("encryption: decryption failed (authentication error)")
	ErrNoKey            = errors.New("encryption: no encryption key available")
	ErrKeyNotFound      = errors.New("encryption: key version not found")
	ErrKeyExpired       = errors.New("encryption: key has expired")
)

// Key is one versioned AES-256 key.
type Key struct {
	ID        uint32
	Material  []byte
	CreatedAt time.Time
	ExpiresAt time.Time // zero = never
	Active    bool
}

// IsExpired reports whether k has passed its ExpiresAt.
func (k *Key) IsExpired() bool {
	if k.ExpiresAt.IsZero() {
		return false
	}
	return time.Now().After(k.ExpiresAt)
}

// Validate checks k's material length and expiry.
func (k *Key) Validate() error {
	if len(k.Material) != 32 {
		return ErrInvalidKey
	}
	if k.IsExpired() {
		return ErrKeyExpired
	}
	return nil
}

// Config configures a KeyManager.
type Config struct {
	Enabled       bool
	KeyDerivation KeyDerivationConfig
	Rotation      KeyRotationConfig
}

// KeyDerivationConfig configures password-based key derivation.
type KeyDerivationConfig struct {
	Salt       []byte
	Iterations int // default 600000, OWASP 2023 recommendation
	UseArgon2  bool
}

// KeyRotationConfig configures automatic key rotation.
type KeyRotationConfig struct {
	Enabled     bool
	Interval    time.Duration
	RetainCount int
}

// DefaultConfig returns 600,000-iteration PBKDF2 derivation and 90-day
// rotation retaining 5 old keys.
func DefaultConfig() Config {
	return Config{
		Enabled: true,
		KeyDerivation: KeyDerivationConfig{
			Iterations: 600000,
			UseArgon2:  false,
		},
		Rotation: KeyRotationConfig{
			Enabled:     true,
			Interval:    90 * 24 * time.Hour,
			RetainCount: 5,
		},
	}
}

// KeyManager holds every key version a tenant has ever used, so data
// encrypted before a rotation can still be decrypted.
type KeyManager struct {
	mu      sync.RWMutex
	keys    map[uint32]*Key
	current uint32
	config  Config
}

// NewKeyManager returns an empty KeyManager; call AddKey or RotateKey to
// populate it.
func NewKeyManager(config Config) *KeyManager {
	return &KeyManager{
		keys:   make(map[uint32]*Key),
		config: config,
	}
}

// AddKey registers key, making it current if Active is set.
func (km *KeyManager) AddKey(key *Key) error {
	if err := key.Validate(); err != nil {
		return err
	}
	km.mu.Lock()
	defer km.mu.Unlock()
	km.keys[key.ID] = key
	if key.Active {
		km.current = key.ID
	}
	return nil
}

// GetKey looks up a specific key version, for decrypting data written
// under an older key.
func (km *KeyManager) GetKey(version uint32) (*Key, error) {
	km.mu.RLock()
	defer km.mu.RUnlock()
	key, ok := km.keys[version]
	if !ok {
		return nil, ErrKeyNotFound
	}
	return key, nil
}

// CurrentKey returns the active key new encryptions use.
func (km *KeyManager) CurrentKey() (*Key, error) {
	km.mu.RLock()
	defer km.mu.RUnlock()
	if km.current == 0 {
		return nil, ErrNoKey
	}
	key, ok := km.keys[km.current]
	if !ok {
		return nil, ErrNoKey
	}
	if err := key.Validate(); err != nil {
		return nil, err
	}
	return key, nil
}

// RotateKey deactivates the current key, generates and activates a new
// one, and prunes keys beyond config.Rotation.RetainCount.
func (km *KeyManager) RotateKey() (*Key, error) {
	material := make([]byte, 32)
	if _, err := rand.Read(material); err != nil {
		return nil, fmt.Errorf("encryption: failed to generate key: %w", err)
	}

	km.mu.Lock()
	defer km.mu.Unlock()

	if current, ok := km.keys[km.current]; ok {
		current.Active = false
	}

	newID := km.current + 1
	key := &Key{ID: newID, Material: material, CreatedAt: time.Now().UTC(), Active: true}
	if km.config.Rotation.Enabled && km.config.Rotation.Interval > 0 {
		key.ExpiresAt = key.CreatedAt.Add(km.config.Rotation.Interval * 2)
	}
	km.keys[newID] = key
	km.current = newID

	km.cleanupOldKeys()
	return key, nil
}

func (km *KeyManager) cleanupOldKeys() {
	if !km.config.Rotation.Enabled || km.config.Rotation.RetainCount <= 0 {
		return
	}
	keep := km.config.Rotation.RetainCount + 1
	if len(km.keys) <= keep {
		return
	}
	minVersion := km.current
	for version := range km.keys {
		if version < minVersion {
			minVersion = version
		}
	}
	for len(km.keys) > keep {
		delete(km.keys, minVersion)
		minVersion++
	}
}

// KeyCount returns the number of key versions currently retained.
func (km *KeyManager) KeyCount() int {
	km.mu.RLock()
	defer km.mu.RUnlock()
	return len(km.keys)
}

// Encryptor applies AES-256-GCM encryption through a KeyManager. When
// disabled it is a passthrough (base64 only), so callers can keep one code
// path across dev and production.
type Encryptor struct {
	km      *KeyManager
	enabled bool
}

// NewEncryptor pairs an Encryptor with an existing KeyManager.
func NewEncryptor(km *KeyManager, enabled bool) *Encryptor {
	return &Encryptor{km: km, enabled: enabled}
}

// NewEncryptorWithPassword derives a single AES-256 key from password via
// PBKDF2-HMAC-SHA256 (config.KeyDerivation.Iterations, default 600000) and
// registers it as key version 1. A zero-length Salt falls back to a fixed
// default, which callers should override per installation.
func NewEncryptorWithPassword(password string, config Config) (*Encryptor, error) {
	if !config.Enabled {
		return &Encryptor{enabled: false}, nil
	}

	salt := config.KeyDerivation.Salt
	if len(salt) == 0 {
		salt = []byte("graphdb-default-salt-change-me")
	}
	iterations := config.KeyDerivation.Iterations
	if iterations <= 0 {
		iterations = 600000
	}
	material := pbkdf2.Key([]byte(password), salt, iterations, 32, sha256.New)

	km := NewKeyManager(config)
	key := &Key{ID: 1, Material: material, CreatedAt: time.Now().UTC(), Active: true}
	if err := km.AddKey(key); err != nil {
		return nil, err
	}
	return &Encryptor{km: km, enabled: true}, nil
}

// Encrypt returns base64-encoded ciphertext with a key-version header.
// When disabled, returns plaintext base64-encoded unchanged.
func (e *Encryptor) Encrypt(plaintext []byte) (string, error) {
	if !e.enabled {
		return base64.StdEncoding.EncodeToString(plaintext), nil
	}
	key, err := e.km.CurrentKey()
	if err != nil {
		return "", err
	}
	ciphertext, err := encrypt(plaintext, key)
	if err != nil {
		return "", err
	}
	return base64.StdEncoding.EncodeToString(ciphertext), nil
}

// Decrypt reverses Encrypt, selecting the key version the ciphertext's
// header names.
func (e *Encryptor) Decrypt(ciphertext string) ([]byte, error) {
	data, err := base64.StdEncoding.DecodeString(ciphertext)
	if err != nil {
		return nil, ErrInvalidData
	}
	if !e.enabled {
		return data, nil
	}
	if len(data) < versionHeaderSize {
		return nil, ErrInvalidData
	}
	version := binary.BigEndian.Uint32(data[:versionHeaderSize])
	key, err := e.km.GetKey(version)
	if err != nil {
		return nil, err
	}
	return decrypt(data[versionHeaderSize:], key)
}

// EncryptString is Encrypt for a string value.
func (e *Encryptor) EncryptString(plaintext string) (string, error) {
	return e.Encrypt([]byte(plaintext))
}

// DecryptString is Decrypt for a string value.
func (e *Encryptor) DecryptString(ciphertext string) (string, error) {
	data, err := e.Decrypt(ciphertext)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// EncryptField encrypts value for storage as a property, producing
// "enc:v{version}:{base64}" so DecryptField can round-trip it even after a
// key rotation.
func (e *Encryptor) EncryptField(value string) (string, error) {
	if !e.enabled {
		return value, nil
	}
	ciphertext, err := e.EncryptString(value)
	if err != nil {
		return "", err
	}
	key, _ := e.km.CurrentKey()
	return fmt.Sprintf("enc:v%d:%s", key.ID, ciphertext), nil
}

// DecryptField reverses EncryptField. A value without the "enc:" prefix is
// returned unchanged, so a store can hold a mix of encrypted and plain
// properties.
func (e *Encryptor) DecryptField(encrypted string) (string, error) {
	if !e.enabled {
		return encrypted, nil
	}
	if len(encrypted) < 6 || encrypted[:4] != "enc:" {
		return encrypted, nil
	}
	var version uint32
	var ciphertext string
	if _, err := fmt.Sscanf(encrypted, "enc:v%d:%s", &version, &ciphertext); err != nil {
		return encrypted, nil
	}
	return e.DecryptString(ciphertext)
}

// IsEnabled reports whether this Encryptor performs real encryption.
func (e *Encryptor) IsEnabled() bool { return e.enabled }

// KeyManager returns the Encryptor's backing key manager.
func (e *Encryptor) KeyManager() *KeyManager { return e.km }

func encrypt(plaintext []byte, key *Key) ([]byte, error) {
	block, err := aes.NewCipher(key.Material)
	if err != nil {
		return nil, err
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, err
	}
	nonce := make([]byte, gcm.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return nil, err
	}
	ciphertext := gcm.Seal(nil, nonce, plaintext, nil)

	result := make([]byte, versionHeaderSize+len(nonce)+len(ciphertext))
	binary.BigEndian.PutUint32(result[:versionHeaderSize], key.ID)
	copy(result[versionHeaderSize:], nonce)
	copy(result[versionHeaderSize+len(nonce):], ciphertext)
	return result, nil
}

func decrypt(data []byte, key *Key) ([]byte, error) {
	block, err := aes.NewCipher(key.Material)
	if err != nil {
		return nil, err
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, err
	}
	nonceSize := gcm.NonceSize()
	if len(data) < nonceSize {
		return nil, ErrInvalidData
	}
	nonce, ciphertext := data[:nonceSize], data[nonceSize:]
	plaintext, err := gcm.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return nil, ErrDecryptionFailed
	}
	return plaintext, nil
}

// DeriveKey derives a 32-byte AES-256 key from password and salt via
// PBKDF2-HMAC-SHA256. iterations<=0 defaults to 600000.
func DeriveKey(password, salt []byte, iterations int) []byte {
	if iterations <= 0 {
		iterations = 600000
	}
	return pbkdf2.Key(password, salt, iterations, 32, sha256.New)
}

// GenerateKey returns a cryptographically random 32-byte AES-256 key.
func GenerateKey() ([]byte, error) {
	key := make([]byte, 32)
	if _, err := rand.Read(key); err != nil {
		return nil, err
	}
	return key, nil
}

// GenerateSalt returns a cryptographically random 32-byte salt for
// DeriveKey/NewEncryptorWithPassword. Unique per installation/tenant;
// does not need to stay secret.
func GenerateSalt() ([]byte, error) {
	salt := make([]byte, 32)
	if _, err := rand.Read(salt); err != nil {
		return nil, err
	}
	return salt, nil
}

// HashKey returns a short, non-reversible fingerprint of key material
// suitable for audit logs (never the key itself).
func HashKey(key []byte) string {
	hash := sha256.Sum256(key)
	return hex.EncodeToString(hash[:16])
}

// SecureWipe overwrites data with zeros, shrinking the window a secret
// spends in memory after use.
func SecureWipe(data []byte) {
	for i := range data {
		data[i] = 0
	}
}

// FieldEncryptionConfig names which node/edge properties require
// encryption.
type FieldEncryptionConfig struct {
	EncryptFields []string
	PHIFields     []string
	FieldPatterns []string
}

// ShouldEncryptField reports whether fieldName is in EncryptFields or
// PHIFields.
func (c *FieldEncryptionConfig) ShouldEncryptField(fieldName string) bool {
	for _, f := range c.EncryptFields {
		if f == fieldName {
			return true
		}
	}
	for _, f := range c.PHIFields {
		if f == fieldName {
			return true
		}
	}
	return false
}

// DefaultPHIFields lists common property names that typically hold
// sensitive personal or financial data.
func DefaultPHIFields() []string {
	return []string{
		"ssn", "social_security_number",
		"mrn", "medical_record_number",
		"diagnosis", "treatment", "medication",
		"dob", "date_of_birth", "birthdate",
		"email", "email_address",
		"phone", "phone_number", "mobile",
		"address", "street_address", "postal_code", "zip_code",
		"credit_card", "card_number", "cvv",
		"password", "password_hash",
		"api_key", "secret_key", "access_token",
		"account_number", "routing_number", "bank_account",
		"salary", "income",
	}
}
