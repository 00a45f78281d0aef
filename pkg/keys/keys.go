// Package keys handles serialization and at-rest encryption of session key
// material. Private keys are stored as JWK documents sealed with AES-GCM;
// they exist in cleartext only inside a live session.
package keys

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"math/big"
	"strings"

	"github.com/rakutentech/jwk-go/jwk"
)

var ErrorDecryptFailed = errors.New("key decryption failed")

// Generate creates a fresh P-256 key pair for a new identity.
func Generate() (*ecdsa.PrivateKey, error) {
	privateKey, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		return nil, fmt.Errorf("generating key pair: %w", err)
	}
	return privateKey, nil
}

// FromMnemonic derives a deterministic key pair from a recovery phrase and
// account index by hashing the phrase into a curve scalar. The same phrase
// and index always yield the same principal.
func FromMnemonic(mnemonic string, account uint32) (*ecdsa.PrivateKey, error) {
	if strings.TrimSpace(mnemonic) == "" {
		return nil, errors.New("empty mnemonic")
	}

	curve := elliptic.P256()
	digest := sha256.Sum256([]byte(fmt.Sprintf("%s/%d", mnemonic, account)))
	for i := 0; i < 100; i++ {
		k := new(big.Int).SetBytes(digest[:])
		if k.Sign() > 0 && k.Cmp(curve.Params().N) < 0 {
			privateKey := &ecdsa.PrivateKey{D: k}
			privateKey.Curve = curve
			privateKey.PublicKey.X, privateKey.PublicKey.Y = curve.ScalarBaseMult(k.Bytes())
			return privateKey, nil
		}
		digest = sha256.Sum256(digest[:])
	}
	return nil, errors.New("mnemonic does not derive a usable key")
}

func EncodePublicKey(publicKey *ecdsa.PublicKey, keyID string) (string, error) {
	ks := jwk.NewSpec(publicKey)
	rawJWK, err := ks.ToJWK()
	if err != nil {
		return "", fmt.Errorf("creating JWK: %w", err)
	}

	rawJWK.Use = "sig"
	rawJWK.Alg = "ES256"
	rawJWK.Kid = keyID

	keyData, err := rawJWK.MarshalJSON()
	if err != nil {
		return "", fmt.Errorf("marshalling JWK: %w", err)
	}
	return base64.StdEncoding.EncodeToString(keyData), nil
}

func DecodePublicKey(encoded string) (*ecdsa.PublicKey, error) {
	keyData, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return nil, fmt.Errorf("decoding public key: %w", err)
	}

	keySpec, err := jwk.Parse(string(keyData))
	if err != nil {
		return nil, fmt.Errorf("parsing public key: %w", err)
	}

	publicKey, ok := keySpec.Key.(*ecdsa.PublicKey)
	if !ok {
		return nil, errors.New("not an ECDSA public key")
	}
	return publicKey, nil
}

// EncodePrivateKey serializes a private key as a base64 JWK without
// encryption. Only deployment tooling uses this; session keys are always
// sealed with EncryptPrivateKey.
func EncodePrivateKey(privateKey *ecdsa.PrivateKey, keyID string) (string, error) {
	ks := jwk.NewSpec(privateKey)
	rawJWK, err := ks.ToJWK()
	if err != nil {
		return "", fmt.Errorf("creating JWK: %w", err)
	}

	rawJWK.Use = "sig"
	rawJWK.Alg = "ES256"
	rawJWK.Kid = keyID

	keyData, err := rawJWK.MarshalJSON()
	if err != nil {
		return "", fmt.Errorf("marshalling JWK: %w", err)
	}
	return base64.StdEncoding.EncodeToString(keyData), nil
}

func DecodePrivateKey(encoded string) (*ecdsa.PrivateKey, error) {
	keyData, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return nil, fmt.Errorf("decoding private key: %w", err)
	}

	keySpec, err := jwk.Parse(string(keyData))
	if err != nil {
		return nil, fmt.Errorf("parsing private key: %w", err)
	}

	privateKey, ok := keySpec.Key.(*ecdsa.PrivateKey)
	if !ok {
		return nil, errors.New("not an ECDSA private key")
	}
	return privateKey, nil
}

// EncryptPrivateKey seals the key's JWK form under sha256(secret) and
// returns "nonce.ciphertext" in base64.
func EncryptPrivateKey(privateKey *ecdsa.PrivateKey, keyID string, secret []byte) (string, error) {
	ks := jwk.NewSpec(privateKey)
	rawJWK, err := ks.ToJWK()
	if err != nil {
		return "", fmt.Errorf("creating JWK: %w", err)
	}

	rawJWK.Use = "sig"
	rawJWK.Alg = "ES256"
	rawJWK.Kid = keyID

	keyData, err := rawJWK.MarshalJSON()
	if err != nil {
		return "", fmt.Errorf("marshalling JWK: %w", err)
	}

	aesgcm, err := newSealer(secret)
	if err != nil {
		return "", err
	}

	nonce := make([]byte, 12)
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", fmt.Errorf("creating AES nonce: %w", err)
	}

	ciphertext := aesgcm.Seal(nil, nonce, keyData, nil)
	sb := strings.Builder{}
	sb.WriteString(base64.StdEncoding.EncodeToString(nonce))
	sb.WriteRune('.')
	sb.WriteString(base64.StdEncoding.EncodeToString(ciphertext))

	return sb.String(), nil
}

// DecryptPrivateKey reverses EncryptPrivateKey. A wrong secret surfaces as
// ErrorDecryptFailed rather than a generic cipher error.
func DecryptPrivateKey(encoded string, secret []byte) (*ecdsa.PrivateKey, error) {
	parts := strings.Split(encoded, ".")
	if len(parts) != 2 {
		return nil, errors.New("invalid encrypted key")
	}

	nonce, err := base64.StdEncoding.DecodeString(parts[0])
	if err != nil {
		return nil, fmt.Errorf("decoding nonce: %w", err)
	}
	ciphertext, err := base64.StdEncoding.DecodeString(parts[1])
	if err != nil {
		return nil, fmt.Errorf("decoding ciphertext: %w", err)
	}

	aesgcm, err := newSealer(secret)
	if err != nil {
		return nil, err
	}

	keyData, err := aesgcm.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return nil, ErrorDecryptFailed
	}

	keySpec, err := jwk.Parse(string(keyData))
	if err != nil {
		return nil, fmt.Errorf("parsing private key: %w", err)
	}

	privateKey, ok := keySpec.Key.(*ecdsa.PrivateKey)
	if !ok {
		return nil, errors.New("not an ECDSA private key")
	}
	return privateKey, nil
}

func newSealer(secret []byte) (cipher.AEAD, error) {
	shaHash := sha256.New()
	shaHash.Write(secret)
	key := shaHash.Sum(nil)

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("creating AES cipher: %w", err)
	}

	aesgcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("creating GCM cipher: %w", err)
	}
	return aesgcm, nil
}
