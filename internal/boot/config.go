package boot

import (
	"context"
	"fmt"

	"github.com/sethvargo/go-envconfig"

	"github.com/chainvoice/chainvoice-go/internal/model"
	"github.com/chainvoice/chainvoice-go/pkg/principal"
)

type ContractConfig struct {
	Address string `env:"ADDRESS"`
	Name    string `env:"NAME"`
}

type Config struct {
	Env      string         `env:"ENV,default=dev"`
	Network  string         `env:"NETWORK,default=testnet"`
	NodeURL  string         `env:"NODE_URL"`
	DataDir  string         `env:"DATA_DIR"`
	AgentURL string         `env:"WALLET_AGENT_URL"` // optional; keystore wallet when unset
	Profiles ContractConfig `env:",prefix=PROFILES_CONTRACT_"`
	Messages ContractConfig `env:",prefix=MESSAGES_CONTRACT_"`
}

// Load reads the environment into a typed config and validates it in one
// pass. A bad environment fails fast with every offending field listed.
func Load(ctx context.Context) (*Config, error) {
	config := &Config{}
	if err := envconfig.Process(ctx, config); err != nil {
		return nil, fmt.Errorf("parsing env vars: %w", err)
	}
	if err := config.validate(); err != nil {
		return nil, err
	}
	return config, nil
}

func (c *Config) validate() error {
	invalid := []string{}

	if _, err := principal.Network(c.Network).Version(); err != nil {
		invalid = append(invalid, fmt.Sprintf("NETWORK (%q is not mainnet or testnet)", c.Network))
	}
	if c.NodeURL == "" {
		invalid = append(invalid, "NODE_URL (missing)")
	}
	if c.DataDir == "" {
		invalid = append(invalid, "DATA_DIR (missing)")
	}
	if c.Profiles.Name == "" {
		invalid = append(invalid, "PROFILES_CONTRACT_NAME (missing)")
	}
	if _, err := principal.Parse(c.Profiles.Address); err != nil {
		invalid = append(invalid, "PROFILES_CONTRACT_ADDRESS (not a valid principal)")
	}
	if c.Messages.Name == "" {
		invalid = append(invalid, "MESSAGES_CONTRACT_NAME (missing)")
	}
	if _, err := principal.Parse(c.Messages.Address); err != nil {
		invalid = append(invalid, "MESSAGES_CONTRACT_ADDRESS (not a valid principal)")
	}

	if len(invalid) > 0 {
		return &model.ConfigError{Fields: invalid}
	}
	return nil
}

func (c *Config) IsProduction() bool {
	return c.Env == "prod"
}

func (c *Config) IsDevelopment() bool {
	return c.Env == "dev"
}

func (c *Config) LedgerNetwork() principal.Network {
	return principal.Network(c.Network)
}
