package boot

import (
	"context"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/chainvoice/chainvoice-go/internal/model"
	"github.com/chainvoice/chainvoice-go/pkg/principal"
)

func testAddress(t *testing.T) string {
	t.Helper()
	privateKey, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		t.Fatalf("generating key: %v", err)
	}
	p, err := principal.FromPublicKey(&privateKey.PublicKey, principal.NetworkTestnet)
	if err != nil {
		t.Fatalf("deriving principal: %v", err)
	}
	return string(p)
}

func setValidEnv(t *testing.T) {
	t.Helper()
	address := testAddress(t)
	t.Setenv("NETWORK", "testnet")
	t.Setenv("NODE_URL", "http://localhost:3999")
	t.Setenv("DATA_DIR", t.TempDir())
	t.Setenv("PROFILES_CONTRACT_ADDRESS", address)
	t.Setenv("PROFILES_CONTRACT_NAME", "profiles")
	t.Setenv("MESSAGES_CONTRACT_ADDRESS", address)
	t.Setenv("MESSAGES_CONTRACT_NAME", "messages")
}

func TestLoad(t *testing.T) {
	assert := assert.New(t)

	t.Run("valid environment", func(t *testing.T) {
		setValidEnv(t)
		config, err := Load(context.Background())
		assert.Nil(err)
		assert.Equal(principal.NetworkTestnet, config.LedgerNetwork())
		assert.Equal("profiles", config.Profiles.Name)
		assert.True(config.IsDevelopment())
	})

	t.Run("missing fields are enumerated", func(t *testing.T) {
		setValidEnv(t)
		t.Setenv("NODE_URL", "")
		t.Setenv("MESSAGES_CONTRACT_ADDRESS", "not-a-principal")

		_, err := Load(context.Background())
		assert.NotNil(err)

		configErr := &model.ConfigError{}
		assert.ErrorAs(err, &configErr)
		assert.Len(configErr.Fields, 2)
	})

	t.Run("unknown network rejected", func(t *testing.T) {
		setValidEnv(t)
		t.Setenv("NETWORK", "devnet")

		_, err := Load(context.Background())
		configErr := &model.ConfigError{}
		assert.ErrorAs(err, &configErr)
	})
}
