package principal

import (
	"crypto/ecdsa"
	"crypto/sha256"
	"errors"
	"fmt"

	"github.com/btcsuite/btcutil/base58"
)

// Version bytes distinguish mainnet and testnet principals so an address
// minted against one network can never be submitted against the other.
const (
	VersionMainnet byte = 0x16
	VersionTestnet byte = 0x1a
)

const hashSize = 20

type Network string

const (
	NetworkMainnet Network = "mainnet"
	NetworkTestnet Network = "testnet"
)

// Principal is the account identifier derived from a key pair. It is the
// owner key for profiles, message authorship and follow edges.
type Principal string

var (
	ErrorInvalidPrincipal = errors.New("invalid principal")
	ErrorUnknownNetwork   = errors.New("unknown network")
)

func (n Network) Version() (byte, error) {
	switch n {
	case NetworkMainnet:
		return VersionMainnet, nil
	case NetworkTestnet:
		return VersionTestnet, nil
	default:
		return 0, fmt.Errorf("%w: %s", ErrorUnknownNetwork, n)
	}
}

// FromPublicKey derives the network principal for a key pair: the truncated
// sha256 of the public key point, base58check-encoded under the network's
// version byte.
func FromPublicKey(publicKey *ecdsa.PublicKey, network Network) (Principal, error) {
	version, err := network.Version()
	if err != nil {
		return "", err
	}

	shaHash := sha256.New()
	shaHash.Write(publicKey.X.Bytes())
	shaHash.Write(publicKey.Y.Bytes())
	digest := shaHash.Sum(nil)

	return Principal(base58.CheckEncode(digest[:hashSize], version)), nil
}

// Parse validates the encoding, checksum and version byte of a principal
// received from user input or the wire.
func Parse(s string) (Principal, error) {
	payload, version, err := base58.CheckDecode(s)
	if err != nil {
		return "", fmt.Errorf("%w: %s", ErrorInvalidPrincipal, s)
	}
	if version != VersionMainnet && version != VersionTestnet {
		return "", fmt.Errorf("%w: unknown version 0x%02x", ErrorInvalidPrincipal, version)
	}
	if len(payload) != hashSize {
		return "", fmt.Errorf("%w: bad payload length %d", ErrorInvalidPrincipal, len(payload))
	}
	return Principal(s), nil
}

func (p Principal) String() string {
	return string(p)
}

// Network reports which network the principal was minted for.
func (p Principal) Network() (Network, error) {
	_, version, err := base58.CheckDecode(string(p))
	if err != nil {
		return "", fmt.Errorf("%w: %s", ErrorInvalidPrincipal, p)
	}
	switch version {
	case VersionMainnet:
		return NetworkMainnet, nil
	case VersionTestnet:
		return NetworkTestnet, nil
	}
	return "", fmt.Errorf("%w: unknown version 0x%02x", ErrorInvalidPrincipal, version)
}
