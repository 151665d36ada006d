package connectors

import (
	"fmt"

	"github.com/kelseyhightower/envconfig"
)

// Production endpoints and contract addresses for the Arbitrum settlement
// leg and the HyperCore trading ledger, with testnet defaults overridable
// from the environment.
type Config struct {
	ArbProdRPC string `envconfig:"ARB_PROD_RPC" default:"https://arb1.arbitrum.io/rpc"`
	ArbTestRPC string `envconfig:"ARB_TEST_RPC" default:"https://sepolia-rollup.arbitrum.io/rpc"`

	UsdcProdAddr string `envconfig:"USDC_ARB_PROD_ADDR" default:"0xaf88d065e77c8cC2239327C5EDb3A432268e5831"`
	UsdcTestAddr string `envconfig:"USDC_ARB_TEST_ADDR" default:"0x1baAbB04529D43a73232B713C0FE471f7c7334d5"`

	BridgeProdAddr string `envconfig:"BRIDGE2_PROD_ADDR" default:"0x2Df1c51E09aECF9cacB7bc98cB1742757f163dF7"`
	BridgeTestAddr string `envconfig:"BRIDGE2_TEST_ADDR" default:"0x08cfc1B6b2dCF36A1480b99353A354AA8AC56f89"`

	LedgerProdURL string `envconfig:"LEDGER_PROD_URL" default:"https://api.hyperliquid.xyz"`
	LedgerTestURL string `envconfig:"LEDGER_TEST_URL" default:"https://api.hyperliquid-testnet.xyz"`
}

func GetConfig() Config {
	var config Config
	if err := envconfig.Process("", &config); err != nil {
		panic(fmt.Errorf("error processing env config: %w", err))
	}
	return config
}

// RPCURL picks the chain endpoint for the environment.
func (c Config) RPCURL(production bool) string {
	if production {
		return c.ArbProdRPC
	}
	return c.ArbTestRPC
}

// UsdcAddr picks the USDC token contract for the environment.
func (c Config) UsdcAddr(production bool) string {
	if production {
		return c.UsdcProdAddr
	}
	return c.UsdcTestAddr
}

// BridgeAddr picks the bridge deposit address for the environment.
func (c Config) BridgeAddr(production bool) string {
	if production {
		return c.BridgeProdAddr
	}
	return c.BridgeTestAddr
}

// LedgerURL picks the trading-ledger API base URL for the environment.
func (c Config) LedgerURL(production bool) string {
	if production {
		return c.LedgerProdURL
	}
	return c.LedgerTestURL
}
