package tx

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/chainvoice/chainvoice-go/pkg/clarval"
	"github.com/chainvoice/chainvoice-go/pkg/principal"
)

func TestContractCall(t *testing.T) {
	assert := assert.New(t)

	privateKey, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	assert.Nil(err)
	publicKey := privateKey.PublicKey
	sender, err := principal.FromPublicKey(&publicKey, principal.NetworkTestnet)
	assert.Nil(err)

	contract := Contract{Address: string(sender), Name: "messages"}

	descriptor, err := NewContractCall(contract, "post-public-message",
		principal.NetworkTestnet, clarval.StringUTF8("hello world"))
	assert.Nil(err)
	assert.Equal(PostConditionDeny, descriptor.PostConditionMode)
	assert.Equal(AnchorAny, descriptor.AnchorMode)
	assert.Len(descriptor.Args, 1)

	envelope, err := Sign(descriptor, sender, privateKey)
	assert.Nil(err)
	assert.NotEmpty(envelope.TxID)
	assert.NotEmpty(envelope.Raw)

	t.Run("round-trips through Parse with signature intact", func(t *testing.T) {
		parsed, err := Parse([]byte(envelope.Raw), func(header *Header) (*ecdsa.PublicKey, error) {
			return &publicKey, nil
		})
		assert.Nil(err)
		assert.Equal(envelope.TxID, parsed.TxID)
		assert.Equal("post-public-message", parsed.Function)
		assert.Equal(string(sender), parsed.Header.KeyID)
		assert.Equal(PostConditionDeny, parsed.PostConditionMode)
	})

	t.Run("tampered payload fails verification", func(t *testing.T) {
		tampered := []byte(envelope.Raw)
		// flip a byte inside the payload segment
		mid := len(tampered) / 2
		if tampered[mid] == 'A' {
			tampered[mid] = 'B'
		} else {
			tampered[mid] = 'A'
		}
		_, err := Parse(tampered, func(header *Header) (*ecdsa.PublicKey, error) {
			return &publicKey, nil
		})
		assert.NotNil(err)
	})

	t.Run("wrong key fails verification", func(t *testing.T) {
		otherKey, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
		assert.Nil(err)
		_, err = Parse([]byte(envelope.Raw), func(header *Header) (*ecdsa.PublicKey, error) {
			return &otherKey.PublicKey, nil
		})
		assert.ErrorIs(err, ErrorInvalidSignature)
	})

	t.Run("txid is deterministic for a given signature", func(t *testing.T) {
		parsed, err := Parse([]byte(envelope.Raw), func(header *Header) (*ecdsa.PublicKey, error) {
			return &publicKey, nil
		})
		assert.Nil(err)
		assert.Equal(envelope.TxID, parsed.TxID)
	})
}

func TestNewContractCallValidation(t *testing.T) {
	assert := assert.New(t)

	_, err := NewContractCall(Contract{Name: "messages"}, "", principal.NetworkTestnet)
	assert.ErrorIs(err, ErrorMissingFunction)

	_, err = NewContractCall(Contract{Name: "messages"}, "post-public-message",
		principal.NetworkTestnet, clarval.StringASCII("héllo"))
	assert.NotNil(err) // non-ascii content in an ascii argument
}

func TestParseRejectsMalformed(t *testing.T) {
	assert := assert.New(t)

	_, err := Parse([]byte("only.two"), nil)
	assert.ErrorIs(err, ErrorInvalidEnvelope)

	_, err = Parse([]byte("a.b.c.d"), nil)
	assert.ErrorIs(err, ErrorInvalidEnvelope)
}
