package keys

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPublicKeyRoundTrip(t *testing.T) {
	assert := assert.New(t)

	privateKey, err := Generate()
	assert.Nil(err)

	encoded, err := EncodePublicKey(&privateKey.PublicKey, "test-key")
	assert.Nil(err)

	decoded, err := DecodePublicKey(encoded)
	assert.Nil(err)
	assert.Equal(privateKey.PublicKey.X, decoded.X)
	assert.Equal(privateKey.PublicKey.Y, decoded.Y)
}

func TestPrivateKeyEncryption(t *testing.T) {
	assert := assert.New(t)

	privateKey, err := Generate()
	assert.Nil(err)
	secret := []byte("correct horse battery staple")

	encrypted, err := EncryptPrivateKey(privateKey, "test-key", secret)
	assert.Nil(err)
	assert.Contains(encrypted, ".")

	t.Run("decrypts with the right secret", func(t *testing.T) {
		decrypted, err := DecryptPrivateKey(encrypted, secret)
		assert.Nil(err)
		assert.Equal(privateKey.D, decrypted.D)
	})

	t.Run("wrong secret fails with typed error", func(t *testing.T) {
		_, err := DecryptPrivateKey(encrypted, []byte("wrong"))
		assert.ErrorIs(err, ErrorDecryptFailed)
	})

	t.Run("malformed input", func(t *testing.T) {
		_, err := DecryptPrivateKey("no-dot-here", secret)
		assert.NotNil(err)
	})

	t.Run("nonce is fresh per encryption", func(t *testing.T) {
		encrypted2, err := EncryptPrivateKey(privateKey, "test-key", secret)
		assert.Nil(err)
		assert.NotEqual(encrypted, encrypted2)
	})
}

func TestPrivateKeyRoundTrip(t *testing.T) {
	assert := assert.New(t)

	privateKey, err := Generate()
	assert.Nil(err)

	encoded, err := EncodePrivateKey(privateKey, "deployer")
	assert.Nil(err)

	decoded, err := DecodePrivateKey(encoded)
	assert.Nil(err)
	assert.Equal(privateKey.D, decoded.D)
}

func TestFromMnemonic(t *testing.T) {
	assert := assert.New(t)

	first, err := FromMnemonic("spoon theory useful hazard arrow slush", 0)
	assert.Nil(err)
	assert.True(first.Curve.IsOnCurve(first.PublicKey.X, first.PublicKey.Y))

	t.Run("deterministic for the same phrase and account", func(t *testing.T) {
		again, err := FromMnemonic("spoon theory useful hazard arrow slush", 0)
		assert.Nil(err)
		assert.Equal(first.D, again.D)
	})

	t.Run("accounts derive distinct keys", func(t *testing.T) {
		other, err := FromMnemonic("spoon theory useful hazard arrow slush", 1)
		assert.Nil(err)
		assert.NotEqual(first.D, other.D)
	})

	t.Run("empty phrase rejected", func(t *testing.T) {
		_, err := FromMnemonic("  ", 0)
		assert.NotNil(err)
	})
}
