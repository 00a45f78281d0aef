package tx

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/chainvoice/chainvoice-go/pkg/principal"
)

func TestContractDeploy(t *testing.T) {
	assert := assert.New(t)

	privateKey, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	assert.Nil(err)
	deployer, err := principal.FromPublicKey(&privateKey.PublicKey, principal.NetworkTestnet)
	assert.Nil(err)

	descriptor, err := NewContractDeploy("profiles",
		"(define-map profiles principal {username: (string-ascii 32)})",
		principal.NetworkTestnet)
	assert.Nil(err)

	envelope, err := SignDeploy(descriptor, deployer, privateKey)
	assert.Nil(err)
	assert.NotEmpty(envelope.TxID)
	assert.Len(strings.Split(envelope.Raw, "."), 3)
	assert.Equal(string(deployer), envelope.Header.KeyID)
	assert.Contains(envelope.Header.Type, SubTypeContractDeploy)

	t.Run("rejects a missing name", func(t *testing.T) {
		_, err := NewContractDeploy("", "(ok true)", principal.NetworkTestnet)
		assert.NotNil(err)
	})

	t.Run("rejects empty source", func(t *testing.T) {
		_, err := NewContractDeploy("profiles", "", principal.NetworkTestnet)
		assert.ErrorIs(err, ErrorMissingSource)
	})
}
