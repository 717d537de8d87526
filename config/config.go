package config

import (
	"strconv"
	"time"

	"github.com/btcsuite/btcd/chaincfg"
)

// Config holds every tunable of the sale and payout cores. The padding band
// and count are heuristics tuned against current wallet/indexer behavior and
// are deliberately configuration, not constants.
type Config struct {
	// Network is one of "mainnet", "testnet", "regtest".
	Network string

	// EsploraURL is the base URL of the esplora-compatible indexer used for
	// UTXO lookup and broadcast.
	EsploraURL string

	// FeeOracleURL is the fee/recommended endpoint.
	FeeOracleURL string

	// FallbackFeeRate (sat/vbyte) is used when the oracle is unreachable.
	FallbackFeeRate uint64

	// FeeOracleTimeout bounds a single oracle lookup.
	FeeOracleTimeout time.Duration

	// PaddingMin/PaddingMax bound the padding candidate band [min, max).
	PaddingMin uint64
	PaddingMax uint64

	// PaddingCount is the number of padding inputs a purchase requires.
	// Changing it from 2 breaks compatibility with seller signatures
	// produced under the standard layout; it exists for test harnesses and
	// future protocol revisions, not live tuning.
	PaddingCount int

	// PaddingValue is the output value used when provisioning padding UTXOs.
	PaddingValue uint64

	// ProvisionCount is the number of padding outputs a provisioning
	// transaction creates.
	ProvisionCount int

	// PaymentFloor excludes outputs at or below this value from the payment
	// pool during selection.
	PaymentFloor uint64

	// DustLimit is the minimum standard output value in satoshis.
	DustLimit uint64

	// DBPath locates the bbolt listing store.
	DBPath string

	// ListenAddr is the host:port the API server binds to.
	ListenAddr string

	// LogLevel is one of debug, info, warn, error.
	LogLevel string
}

// DefaultConfig returns the documented defaults. The indexer URL has no
// mainnet default: it must be configured explicitly.
func DefaultConfig() Config {
	return Config{
		Network:          "mainnet",
		FeeOracleURL:     "https://mempool.space/api/v1/fees/recommended",
		FallbackFeeRate:  10,
		FeeOracleTimeout: 5 * time.Second,
		PaddingMin:       600,
		PaddingMax:       3000,
		PaddingCount:     2,
		PaddingValue:     600,
		ProvisionCount:   5,
		PaymentFloor:     800,
		DustLimit:        546,
		DBPath:           "ordmarket.db",
		ListenAddr:       "0.0.0.0:8080",
		LogLevel:         "info",
	}
}

// FromEnv overlays environment values onto cfg. Unset or malformed numeric
// values leave the existing field untouched.
func FromEnv(cfg Config, env map[string]string) Config {
	if v := env["ORDMARKET_NETWORK"]; v != "" {
		cfg.Network = v
	}
	if v := env["ORDMARKET_ESPLORA_URL"]; v != "" {
		cfg.EsploraURL = v
	}
	if v := env["ORDMARKET_FEE_ORACLE_URL"]; v != "" {
		cfg.FeeOracleURL = v
	}
	if v := env["ORDMARKET_FALLBACK_FEE_RATE"]; v != "" {
		if n, err := strconv.ParseUint(v, 10, 64); err == nil {
			cfg.FallbackFeeRate = n
		}
	}
	if v := env["ORDMARKET_DB_PATH"]; v != "" {
		cfg.DBPath = v
	}
	if v := env["ORDMARKET_LISTEN"]; v != "" {
		cfg.ListenAddr = v
	}
	if v := env["ORDMARKET_LOG_LEVEL"]; v != "" {
		cfg.LogLevel = v
	}
	return cfg
}

// Params returns the chain parameters for cfg.Network. Call Validate first;
// unknown networks map to mainnet.
func (c Config) Params() *chaincfg.Params {
	switch c.Network {
	case "testnet":
		return &chaincfg.TestNet3Params
	case "regtest":
		return &chaincfg.RegressionNetParams
	default:
		return &chaincfg.MainNetParams
	}
}
