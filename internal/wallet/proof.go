package wallet

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt"

	"github.com/chainvoice/chainvoice-go/pkg/keys"
	"github.com/chainvoice/chainvoice-go/pkg/principal"
)

var (
	ErrorInvalidProof      = errors.New("invalid identity proof")
	ErrorHandshakeMismatch = errors.New("identity proof does not match handshake")
)

const (
	claimPublicKey  = "publicKey"
	claimSessionKey = "sessionKey"
)

// IssueProof is the agent side of the handshake: a JWT asserting the
// principal, carrying the public key and the session key sealed under the
// handshake transit secret, signed with the identity key itself.
func IssueProof(handshakeID string, identity *Identity, transitSecret string) (string, error) {
	publicKey, err := keys.EncodePublicKey(&identity.SigningKey.PublicKey, string(identity.Principal))
	if err != nil {
		return "", fmt.Errorf("encoding public key: %w", err)
	}

	sessionKey, err := keys.EncryptPrivateKey(identity.SigningKey, string(identity.Principal), []byte(transitSecret))
	if err != nil {
		return "", fmt.Errorf("sealing session key: %w", err)
	}

	claims := jwt.MapClaims{
		"iss":           string(identity.Principal),
		"jti":           handshakeID,
		"iat":           time.Now().UTC().Unix(),
		claimPublicKey:  publicKey,
		claimSessionKey: sessionKey,
	}

	token := jwt.NewWithClaims(jwt.SigningMethodES256, claims)
	signed, err := token.SignedString(identity.SigningKey)
	if err != nil {
		return "", fmt.Errorf("signing identity proof: %w", err)
	}
	return signed, nil
}

// VerifyProof checks a proof received on the handshake callback: the
// signature must verify against the embedded public key, the principal must
// derive from that key on the expected network, and the handshake id must
// match. On success the unsealed session key is returned.
func VerifyProof(raw, handshakeID, transitSecret string, network principal.Network) (*Identity, error) {
	token, err := jwt.Parse(raw, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodECDSA); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		claims, ok := token.Claims.(jwt.MapClaims)
		if !ok {
			return nil, ErrorInvalidProof
		}
		encoded, ok := claims[claimPublicKey].(string)
		if !ok {
			return nil, fmt.Errorf("%w: missing public key", ErrorInvalidProof)
		}
		return keys.DecodePublicKey(encoded)
	})
	if err != nil {
		return nil, fmt.Errorf("parsing identity proof: %w", err)
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok || !token.Valid {
		return nil, ErrorInvalidProof
	}

	if jti, _ := claims["jti"].(string); jti != handshakeID {
		return nil, ErrorHandshakeMismatch
	}

	issuer, _ := claims["iss"].(string)
	claimed, err := principal.Parse(issuer)
	if err != nil {
		return nil, fmt.Errorf("%w: bad issuer: %v", ErrorInvalidProof, err)
	}

	encoded, _ := claims[claimPublicKey].(string)
	publicKey, err := keys.DecodePublicKey(encoded)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrorInvalidProof, err)
	}

	derived, err := principal.FromPublicKey(publicKey, network)
	if err != nil {
		return nil, fmt.Errorf("deriving principal: %w", err)
	}
	if derived != claimed {
		return nil, fmt.Errorf("%w: principal does not derive from key", ErrorInvalidProof)
	}

	sealed, _ := claims[claimSessionKey].(string)
	signingKey, err := keys.DecryptPrivateKey(sealed, []byte(transitSecret))
	if err != nil {
		return nil, fmt.Errorf("unsealing session key: %w", err)
	}
	if signingKey.PublicKey.X.Cmp(publicKey.X) != 0 || signingKey.PublicKey.Y.Cmp(publicKey.Y) != 0 {
		return nil, fmt.Errorf("%w: session key does not match public key", ErrorInvalidProof)
	}

	return &Identity{Principal: claimed, SigningKey: signingKey}, nil
}
