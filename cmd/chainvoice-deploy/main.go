package main

import (
	"context"
	"crypto/ecdsa"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/labstack/gommon/log"

	"github.com/chainvoice/chainvoice-go/internal/ledger"
	"github.com/chainvoice/chainvoice-go/pkg/keys"
	"github.com/chainvoice/chainvoice-go/pkg/principal"
	"github.com/chainvoice/chainvoice-go/pkg/tx"
)

type deployerSettings struct {
	Key      string `toml:"key"`
	Mnemonic string `toml:"mnemonic"`
	Account  uint32 `toml:"account"`
}

type contractSettings struct {
	Name   string `toml:"name"`
	Source string `toml:"source"`
}

type settings struct {
	Network      string             `toml:"network"`
	NodeURL      string             `toml:"node_url"`
	ExplorerURL  string             `toml:"explorer_url"`
	DelaySeconds int                `toml:"delay_seconds"`
	Deployer     deployerSettings   `toml:"deployer"`
	Contracts    []contractSettings `toml:"contracts"`
}

func main() {
	settingsPath := flag.String("settings", "deploy.toml", "path to the deployment settings file")
	flag.Parse()

	config := settings{DelaySeconds: 30}
	if _, err := toml.DecodeFile(*settingsPath, &config); err != nil {
		log.Fatalf("reading %s: %+v", *settingsPath, err)
	}

	network := principal.Network(config.Network)
	if _, err := network.Version(); err != nil {
		log.Fatalf("settings: %+v", err)
	}
	if config.NodeURL == "" {
		log.Fatal("settings: node_url is missing")
	}
	if len(config.Contracts) == 0 {
		log.Fatal("settings: no contracts to deploy")
	}

	privateKey, err := deployerKey(config.Deployer)
	if err != nil {
		log.Fatalf("deployer credentials: %+v", err)
	}

	deployer, err := principal.FromPublicKey(&privateKey.PublicKey, network)
	if err != nil {
		log.Fatalf("deriving deployer principal: %+v", err)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	client := ledger.NewClient(config.NodeURL, nil, ledger.DefaultBackoff)
	delay := time.Duration(config.DelaySeconds) * time.Second

	log.Infof("deploying %d contract(s) as %s on %s", len(config.Contracts), deployer, network)

	for i, contract := range config.Contracts {
		if i > 0 {
			// give the previous deployment time to settle into a block
			log.Infof("waiting %s before the next deployment", delay)
			select {
			case <-time.After(delay):
			case <-ctx.Done():
				log.Fatal("interrupted")
			}
		}

		txID, err := deploy(ctx, client, contract, deployer, privateKey, network)
		if err != nil {
			log.Fatalf("deploying %s: %+v", contract.Name, err)
		}

		log.Infof("%s deployed: txid %s", contract.Name, txID)
		if config.ExplorerURL != "" {
			log.Infof("  %s/txid/%s", strings.TrimRight(config.ExplorerURL, "/"), txID)
		}
	}

	log.Info("all contracts submitted")
}

func deploy(ctx context.Context, client *ledger.Client, contract contractSettings,
	deployer principal.Principal, privateKey *ecdsa.PrivateKey, network principal.Network) (string, error) {
	source, err := os.ReadFile(contract.Source)
	if err != nil {
		return "", fmt.Errorf("reading contract source: %w", err)
	}

	descriptor, err := tx.NewContractDeploy(contract.Name, string(source), network)
	if err != nil {
		return "", err
	}

	envelope, err := tx.SignDeploy(descriptor, deployer, privateKey)
	if err != nil {
		return "", err
	}

	return client.BroadcastRaw(ctx, envelope.Raw)
}

// deployerKey resolves the signing key from the settings file: an explicit
// serialized key wins, otherwise the key is derived from the recovery
// phrase. Placeholder values left over from a settings template are
// rejected the same as missing ones.
func deployerKey(deployer deployerSettings) (*ecdsa.PrivateKey, error) {
	if isPlaceholder(deployer.Key) && isPlaceholder(deployer.Mnemonic) {
		return nil, errors.New("set deployer.key or deployer.mnemonic in the settings file")
	}

	if !isPlaceholder(deployer.Key) {
		privateKey, err := keys.DecodePrivateKey(deployer.Key)
		if err != nil {
			return nil, fmt.Errorf("parsing deployer.key: %w", err)
		}
		return privateKey, nil
	}

	privateKey, err := keys.FromMnemonic(deployer.Mnemonic, deployer.Account)
	if err != nil {
		return nil, fmt.Errorf("deriving key from mnemonic: %w", err)
	}
	return privateKey, nil
}

func isPlaceholder(value string) bool {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return true
	}
	if strings.HasPrefix(trimmed, "<") && strings.HasSuffix(trimmed, ">") {
		return true
	}
	return strings.Contains(strings.ToLower(trimmed), "your-")
}
