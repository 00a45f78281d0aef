package principal

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFromPublicKey(t *testing.T) {
	assert := assert.New(t)

	privateKey, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	assert.Nil(err)

	t.Run("testnet principal round-trips through Parse", func(t *testing.T) {
		p, err := FromPublicKey(&privateKey.PublicKey, NetworkTestnet)
		assert.Nil(err)
		assert.NotEmpty(p)

		parsed, err := Parse(string(p))
		assert.Nil(err)
		assert.Equal(p, parsed)

		network, err := p.Network()
		assert.Nil(err)
		assert.Equal(NetworkTestnet, network)
	})

	t.Run("mainnet and testnet principals differ for the same key", func(t *testing.T) {
		mainnet, err := FromPublicKey(&privateKey.PublicKey, NetworkMainnet)
		assert.Nil(err)
		testnet, err := FromPublicKey(&privateKey.PublicKey, NetworkTestnet)
		assert.Nil(err)
		assert.NotEqual(mainnet, testnet)
	})

	t.Run("derivation is deterministic", func(t *testing.T) {
		p1, err := FromPublicKey(&privateKey.PublicKey, NetworkTestnet)
		assert.Nil(err)
		p2, err := FromPublicKey(&privateKey.PublicKey, NetworkTestnet)
		assert.Nil(err)
		assert.Equal(p1, p2)
	})

	t.Run("unknown network is rejected", func(t *testing.T) {
		_, err := FromPublicKey(&privateKey.PublicKey, Network("devnet"))
		assert.ErrorIs(err, ErrorUnknownNetwork)
	})
}

func TestParse(t *testing.T) {
	assert := assert.New(t)

	t.Run("empty string", func(t *testing.T) {
		_, err := Parse("")
		assert.ErrorIs(err, ErrorInvalidPrincipal)
	})

	t.Run("garbage", func(t *testing.T) {
		_, err := Parse("not-a-principal")
		assert.ErrorIs(err, ErrorInvalidPrincipal)
	})

	t.Run("corrupted checksum", func(t *testing.T) {
		privateKey, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
		assert.Nil(err)
		p, err := FromPublicKey(&privateKey.PublicKey, NetworkTestnet)
		assert.Nil(err)

		corrupted := []byte(p)
		if corrupted[len(corrupted)-1] == 'z' {
			corrupted[len(corrupted)-1] = '2'
		} else {
			corrupted[len(corrupted)-1] = 'z'
		}
		_, err = Parse(string(corrupted))
		assert.ErrorIs(err, ErrorInvalidPrincipal)
	})
}
