package encryption

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func newTestEncryptor(t *testing.T) *Encryptor {
	t.Helper()
	km := NewKeyManager(DefaultConfig())
	key, err := GenerateKey()
	require.NoError(t, err)
	require.NoError(t, km.AddKey(&Key{ID: 1, Material: key, Active: true}))
	return NewEncryptor(km, true)
}

func TestEncryptDecryptRoundTrip(t *testing.T) {
	enc := newTestEncryptor(t)

	plaintext := []byte("sensitive payload")
	ciphertext, err := enc.Encrypt(plaintext)
	require.NoError(t, err)
	require.NotEqual(t, string(plaintext), ciphertext)

	decrypted, err := enc.Decrypt(ciphertext)
	require.NoError(t, err)
	require.Equal(t, plaintext, decrypted)
}

func TestDisabledEncryptorIsPassthrough(t *testing.T) {
	enc := NewEncryptor(nil, false)

	out, err := enc.EncryptString("plain")
	require.NoError(t, err)
	back, err := enc.DecryptString(out)
	require.NoError(t, err)
	require.Equal(t, "plain", back)
}

func TestEncryptFieldDecryptField(t *testing.T) {
	enc := newTestEncryptor(t)

	encoded, err := enc.EncryptField("alice@example.com")
	require.NoError(t, err)
	require.True(t, len(encoded) >= 6 && encoded[:4] == "enc:")

	decoded, err := enc.DecryptField(encoded)
	require.NoError(t, err)
	require.Equal(t, "alice@example.com", decoded)
}

func TestDecryptFieldPassesThroughUnencryptedValues(t *testing.T) {
	enc := newTestEncryptor(t)

	out, err := enc.DecryptField("plain-value")
	require.NoError(t, err)
	require.Equal(t, "plain-value", out)
}

func TestKeyRotationKeepsOldKeysDecryptable(t *testing.T) {
	km := NewKeyManager(DefaultConfig())
	key, err := GenerateKey()
	require.NoError(t, err)
	require.NoError(t, km.AddKey(&Key{ID: 1, Material: key, Active: true}))
	enc := NewEncryptor(km, true)

	ciphertext, err := enc.EncryptString("before rotation")
	require.NoError(t, err)

	_, err = km.RotateKey()
	require.NoError(t, err)

	decrypted, err := enc.DecryptString(ciphertext)
	require.NoError(t, err)
	require.Equal(t, "before rotation", decrypted)
	require.Equal(t, 2, km.KeyCount())
}

func TestKeyRotationPrunesBeyondRetainCount(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Rotation.RetainCount = 1
	km := NewKeyManager(cfg)
	key, err := GenerateKey()
	require.NoError(t, err)
	require.NoError(t, km.AddKey(&Key{ID: 1, Material: key, Active: true}))

	for i := 0; i < 3; i++ {
		_, err := km.RotateKey()
		require.NoError(t, err)
	}

	require.LessOrEqual(t, km.KeyCount(), 2)
}

func TestDecryptRejectsUnknownKeyVersion(t *testing.T) {
	enc := newTestEncryptor(t)
	ciphertext, err := enc.EncryptString("payload")
	require.NoError(t, err)

	other := NewKeyManager(DefaultConfig())
	otherKey, err := GenerateKey()
	require.NoError(t, err)
	require.NoError(t, other.AddKey(&Key{ID: 99, Material: otherKey, Active: true}))
	wrongEnc := NewEncryptor(other, true)

	_, err = wrongEnc.DecryptString(ciphertext)
	require.Error(t, err)
}

func TestDeriveKeyIsDeterministic(t *testing.T) {
	salt := []byte("fixed-salt-for-test-purposes!!!!")
	k1 := DeriveKey([]byte("hunter2"), salt, 1000)
	k2 := DeriveKey([]byte("hunter2"), salt, 1000)
	require.Equal(t, k1, k2)
	require.Len(t, k1, 32)
}

func TestHashKeyIsStableAndNotReversible(t *testing.T) {
	key, err := GenerateKey()
	require.NoError(t, err)
	h1 := HashKey(key)
	h2 := HashKey(key)
	require.Equal(t, h1, h2)
	require.NotEqual(t, string(key), h1)
}

func TestFieldEncryptionConfigShouldEncryptField(t *testing.T) {
	cfg := &FieldEncryptionConfig{
		EncryptFields: []string{"notes"},
		PHIFields:     DefaultPHIFields(),
	}

	cases := []struct {
		field string
		want  bool
	}{
		{"notes", true},
		{"ssn", true},
		{"email", true},
		{"title", false},
	}
	for _, c := range cases {
		require.Equal(t, c.want, cfg.ShouldEncryptField(c.field), "field %q", c.field)
	}
}

func TestNewEncryptorWithPasswordRoundTrip(t *testing.T) {
	cfg := DefaultConfig()
	cfg.KeyDerivation.Iterations = 1000
	cfg.KeyDerivation.Salt = []byte("per-installation-salt-value!!!!")

	enc, err := NewEncryptorWithPassword("correct horse battery staple", cfg)
	require.NoError(t, err)

	ciphertext, err := enc.EncryptString("top secret")
	require.NoError(t, err)
	decrypted, err := enc.DecryptString(ciphertext)
	require.NoError(t, err)
	require.Equal(t, "top secret", decrypted)
}

func TestSecureWipeZeroesBuffer(t *testing.T) {
	data := []byte{1, 2, 3, 4}
	SecureWipe(data)
	require.Equal(t, []byte{0, 0, 0, 0}, data)
}
