package wallet

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/chainvoice/chainvoice-go/internal/model"
	"github.com/chainvoice/chainvoice-go/pkg/keys"
	"github.com/chainvoice/chainvoice-go/pkg/principal"
)

// PassphraseFn prompts for the keystore passphrase. creating is true on
// first use, when the passphrase is being chosen rather than verified.
type PassphraseFn func(creating bool) (string, error)

type keystoreFile struct {
	Principal  string    `json:"principal"`
	PublicKey  string    `json:"publicKey"`
	PrivateKey string    `json:"privateKey"`
	Verifier   string    `json:"verifier"`
	CreatedAt  time.Time `json:"createdAt"`
}

// KeystoreConnector is a local signing agent: the key pair lives in an
// encrypted file and never leaves this machine.
type KeystoreConnector struct {
	path       string
	network    principal.Network
	passphrase PassphraseFn
}

func NewKeystoreConnector(path string, network principal.Network, passphrase PassphraseFn) *KeystoreConnector {
	return &KeystoreConnector{path: path, network: network, passphrase: passphrase}
}

func (k *KeystoreConnector) Connect(ctx context.Context) (*Identity, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	_, err := os.Stat(k.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return k.create()
		}
		return nil, fmt.Errorf("checking keystore: %w", err)
	}
	return k.open()
}

func (k *KeystoreConnector) create() (*Identity, error) {
	passphrase, err := k.passphrase(true)
	if err != nil {
		return nil, fmt.Errorf("reading passphrase: %w", err)
	}

	privateKey, err := keys.Generate()
	if err != nil {
		return nil, err
	}

	p, err := principal.FromPublicKey(&privateKey.PublicKey, k.network)
	if err != nil {
		return nil, fmt.Errorf("deriving principal: %w", err)
	}

	publicKeyEnc, err := keys.EncodePublicKey(&privateKey.PublicKey, string(p))
	if err != nil {
		return nil, fmt.Errorf("encoding public key: %w", err)
	}

	privateKeyEnc, err := keys.EncryptPrivateKey(privateKey, string(p), sealSecret(p, passphrase))
	if err != nil {
		return nil, fmt.Errorf("encrypting private key: %w", err)
	}

	verifier, err := bcrypt.GenerateFromPassword([]byte(passphrase), 10)
	if err != nil {
		return nil, fmt.Errorf("generating passphrase verifier: %w", err)
	}

	file := keystoreFile{
		Principal:  string(p),
		PublicKey:  publicKeyEnc,
		PrivateKey: privateKeyEnc,
		Verifier:   base64.StdEncoding.EncodeToString(verifier),
		CreatedAt:  time.Now().UTC(),
	}

	data, err := json.MarshalIndent(file, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshalling keystore: %w", err)
	}
	if err := os.WriteFile(k.path, data, 0600); err != nil {
		return nil, fmt.Errorf("writing keystore: %w", err)
	}

	return &Identity{Principal: p, SigningKey: privateKey}, nil
}

func (k *KeystoreConnector) open() (*Identity, error) {
	data, err := os.ReadFile(k.path)
	if err != nil {
		return nil, fmt.Errorf("reading keystore: %w", err)
	}

	file := keystoreFile{}
	if err := json.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("unmarshalling keystore: %w", err)
	}

	p, err := principal.Parse(file.Principal)
	if err != nil {
		return nil, fmt.Errorf("keystore principal: %w", err)
	}

	passphrase, err := k.passphrase(false)
	if err != nil {
		return nil, fmt.Errorf("reading passphrase: %w", err)
	}

	verifier, err := base64.StdEncoding.DecodeString(file.Verifier)
	if err != nil {
		return nil, fmt.Errorf("decoding verifier: %w", err)
	}
	if err := bcrypt.CompareHashAndPassword(verifier, []byte(passphrase)); err != nil {
		return nil, model.ErrorInvalidPassphrase
	}

	privateKey, err := keys.DecryptPrivateKey(file.PrivateKey, sealSecret(p, passphrase))
	if err != nil {
		if errors.Is(err, keys.ErrorDecryptFailed) {
			return nil, model.ErrorInvalidPassphrase
		}
		return nil, fmt.Errorf("decrypting private key: %w", err)
	}

	return &Identity{Principal: p, SigningKey: privateKey}, nil
}

func sealSecret(p principal.Principal, passphrase string) []byte {
	secret := make([]byte, 0, len(p)+len(passphrase))
	secret = append(secret, []byte(p)...)
	secret = append(secret, []byte(passphrase)...)
	return secret
}
