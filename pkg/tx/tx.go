// Package tx constructs signed contract-call transactions. A transaction
// serializes as three base64url segments (header.payload.signature); the
// transaction id is derived from the signature hash, so it is stable from
// the moment of signing and independent of broadcast.
package tx

import (
	"crypto/ecdsa"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/btcsuite/btcutil/base58"

	"github.com/chainvoice/chainvoice-go/pkg/clarval"
	"github.com/chainvoice/chainvoice-go/pkg/principal"
)

const (
	AlgorithmES256        = "ES256"
	TypeChainvoiceTx      = "x-chainvoice-tx"
	SubTypeContractCall   = "contract-call"
	SubTypeContractDeploy = "contract-deploy"
)

// PostConditionMode restricts what asset transfers a transaction may cause.
// Every contract call this client builds uses Deny: nothing moves besides
// the intended state change.
type PostConditionMode string

const (
	PostConditionDeny  PostConditionMode = "deny"
	PostConditionAllow PostConditionMode = "allow"
)

type AnchorMode string

const AnchorAny AnchorMode = "any"

var (
	ErrorInvalidSignature = errors.New("invalid signature")
	ErrorInvalidEnvelope  = errors.New("invalid transaction envelope")
	ErrorMissingFunction  = errors.New("missing function name")
)

type Contract struct {
	Address string `json:"address"`
	Name    string `json:"name"`
}

// Descriptor is the fully specified contract call before signing.
type Descriptor struct {
	Contract          Contract          `json:"contract"`
	Function          string            `json:"function"`
	Args              []string          `json:"args"`
	Network           principal.Network `json:"network"`
	PostConditionMode PostConditionMode `json:"postConditionMode"`
	AnchorMode        AnchorMode        `json:"anchorMode"`
}

type Header struct {
	KeyID     string `json:"kid"`
	Algorithm string `json:"alg"`
	Type      string `json:"typ"`
	Version   string `json:"v"`
	Timestamp int64  `json:"ts"`
}

// Envelope is a signed, broadcast-ready transaction.
type Envelope struct {
	Raw    string
	TxID   string
	Header Header
	Descriptor
}

// NewContractCall builds a descriptor with the fixed safety defaults: deny
// all unlisted transfers, any anchor mode.
func NewContractCall(contract Contract, function string, network principal.Network, args ...clarval.Value) (*Descriptor, error) {
	if function == "" {
		return nil, ErrorMissingFunction
	}

	encoded := make([]string, 0, len(args))
	for _, arg := range args {
		hexArg, err := clarval.EncodeHex(arg)
		if err != nil {
			return nil, fmt.Errorf("encoding argument: %w", err)
		}
		encoded = append(encoded, hexArg)
	}

	return &Descriptor{
		Contract:          contract,
		Function:          function,
		Args:              encoded,
		Network:           network,
		PostConditionMode: PostConditionDeny,
		AnchorMode:        AnchorAny,
	}, nil
}

// Sign produces the broadcast envelope. The signing key comes from the
// session, never from the operation caller.
func Sign(d *Descriptor, sender principal.Principal, privateKey *ecdsa.PrivateKey) (*Envelope, error) {
	header := Header{
		KeyID:     string(sender),
		Algorithm: AlgorithmES256,
		Type:      fmt.Sprintf("%s;%s", TypeChainvoiceTx, SubTypeContractCall),
		Version:   "1",
		Timestamp: time.Now().UTC().UnixMilli(),
	}

	raw, txID, err := signPayload(header, d, privateKey)
	if err != nil {
		return nil, err
	}

	return &Envelope{
		Raw:        raw,
		TxID:       txID,
		Header:     header,
		Descriptor: *d,
	}, nil
}

func signPayload(header Header, payload interface{}, privateKey *ecdsa.PrivateKey) (string, string, error) {
	payloadBytes, err := json.Marshal(payload)
	if err != nil {
		return "", "", fmt.Errorf("marshalling payload: %w", err)
	}

	headerBytes, err := json.Marshal(header)
	if err != nil {
		return "", "", fmt.Errorf("marshalling header: %w", err)
	}

	sb := strings.Builder{}
	sb.WriteString(encodeSegment(headerBytes))
	sb.WriteString(".")
	sb.WriteString(encodeSegment(payloadBytes))

	shaHash := sha256.New()
	shaHash.Write([]byte(sb.String()))
	hashBytes := shaHash.Sum(nil)

	r, s, err := ecdsa.Sign(rand.Reader, privateKey, hashBytes)
	if err != nil {
		return "", "", fmt.Errorf("signing transaction: %w", err)
	}
	signature := make([]byte, 64)
	r.FillBytes(signature[0:32])
	s.FillBytes(signature[32:64])

	sb.WriteString(".")
	sb.WriteString(encodeSegment(signature))

	sigHash := sha256.New()
	sigHash.Write(signature)

	return sb.String(), base58.Encode(sigHash.Sum(nil)), nil
}

type PublicKeyFn func(header *Header) (*ecdsa.PublicKey, error)

// Parse verifies a raw envelope and recovers the descriptor. Used by
// signing agents and tests; the client itself only produces envelopes.
func Parse(data []byte, publicKeyFn PublicKeyFn) (*Envelope, error) {
	segments := strings.Split(string(data), ".")
	if len(segments) != 3 {
		return nil, ErrorInvalidEnvelope
	}

	headerBytes, err := decodeSegment(segments[0])
	if err != nil {
		return nil, fmt.Errorf("decoding header: %w", err)
	}
	header := Header{}
	if err := json.Unmarshal(headerBytes, &header); err != nil {
		return nil, fmt.Errorf("unmarshalling header: %w", err)
	}

	if header.Algorithm != AlgorithmES256 {
		return nil, fmt.Errorf("unsupported algorithm: %s", header.Algorithm)
	}
	typeParts := strings.SplitN(header.Type, ";", 2)
	if typeParts[0] != TypeChainvoiceTx {
		return nil, fmt.Errorf("unsupported type: %s", header.Type)
	}
	if header.Version != "1" {
		return nil, fmt.Errorf("unsupported version: %s", header.Version)
	}

	signature, err := decodeSegment(segments[2])
	if err != nil {
		return nil, fmt.Errorf("decoding signature: %w", err)
	}
	if len(signature) != 64 {
		return nil, ErrorInvalidSignature
	}

	signingString := strings.Join(segments[:2], ".")
	shaHash := sha256.New()
	shaHash.Write([]byte(signingString))
	hashBytes := shaHash.Sum(nil)

	publicKey, err := publicKeyFn(&header)
	if err != nil {
		return nil, fmt.Errorf("getting public key: %w", err)
	}

	r := new(big.Int).SetBytes(signature[0:32])
	s := new(big.Int).SetBytes(signature[32:64])
	if !ecdsa.Verify(publicKey, hashBytes, r, s) {
		return nil, ErrorInvalidSignature
	}

	payloadBytes, err := decodeSegment(segments[1])
	if err != nil {
		return nil, fmt.Errorf("decoding payload: %w", err)
	}
	descriptor := Descriptor{}
	if err := json.Unmarshal(payloadBytes, &descriptor); err != nil {
		return nil, fmt.Errorf("unmarshalling descriptor: %w", err)
	}

	sigHash := sha256.New()
	sigHash.Write(signature)

	return &Envelope{
		Raw:        string(data),
		TxID:       base58.Encode(sigHash.Sum(nil)),
		Header:     header,
		Descriptor: descriptor,
	}, nil
}

func encodeSegment(seg []byte) string {
	return strings.TrimRight(base64.URLEncoding.EncodeToString(seg), "=")
}

func decodeSegment(seg string) ([]byte, error) {
	if l := len(seg) % 4; l > 0 {
		seg += strings.Repeat("=", 4-l)
	}
	return base64.URLEncoding.DecodeString(seg)
}
