package tx

import (
	"crypto/ecdsa"
	"errors"
	"fmt"
	"time"

	"github.com/chainvoice/chainvoice-go/pkg/principal"
)

var ErrorMissingSource = errors.New("missing contract source")

// DeployDescriptor publishes a new contract under the deployer's principal.
type DeployDescriptor struct {
	Name    string            `json:"name"`
	Source  string            `json:"source"`
	Network principal.Network `json:"network"`
}

// DeployEnvelope is a signed contract deployment ready for broadcast.
type DeployEnvelope struct {
	Raw    string
	TxID   string
	Header Header
	DeployDescriptor
}

func NewContractDeploy(name, source string, network principal.Network) (*DeployDescriptor, error) {
	if name == "" {
		return nil, ErrorMissingFunction
	}
	if source == "" {
		return nil, ErrorMissingSource
	}
	return &DeployDescriptor{Name: name, Source: source, Network: network}, nil
}

// SignDeploy signs a deployment the same way Sign signs a contract call,
// distinguished only by the header subtype.
func SignDeploy(d *DeployDescriptor, deployer principal.Principal, privateKey *ecdsa.PrivateKey) (*DeployEnvelope, error) {
	header := Header{
		KeyID:     string(deployer),
		Algorithm: AlgorithmES256,
		Type:      fmt.Sprintf("%s;%s", TypeChainvoiceTx, SubTypeContractDeploy),
		Version:   "1",
		Timestamp: time.Now().UTC().UnixMilli(),
	}

	raw, txID, err := signPayload(header, d, privateKey)
	if err != nil {
		return nil, err
	}

	return &DeployEnvelope{
		Raw:              raw,
		TxID:             txID,
		Header:           header,
		DeployDescriptor: *d,
	}, nil
}
