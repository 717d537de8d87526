package config

import (
	"fmt"
	"net"
	"strings"
)

// validLogLevels lists the accepted log level strings.
var validLogLevels = map[string]bool{
	"debug": true,
	"info":  true,
	"warn":  true,
	"error": true,
}

// Validate checks that all configuration values are within acceptable ranges
// and returns the first error encountered, or nil if valid.
func Validate(cfg Config) error {
	if cfg.Network != "mainnet" && cfg.Network != "testnet" && cfg.Network != "regtest" {
		return fmt.Errorf("%w: %q", ErrInvalidNetwork, cfg.Network)
	}

	if cfg.EsploraURL == "" {
		return ErrMissingEsploraURL
	}

	if cfg.FallbackFeeRate == 0 {
		return ErrZeroFallbackRate
	}

	if cfg.PaddingMin >= cfg.PaddingMax {
		return fmt.Errorf("%w: [%d, %d)", ErrInvalidPaddingBand, cfg.PaddingMin, cfg.PaddingMax)
	}
	if cfg.PaddingMin < cfg.DustLimit {
		return fmt.Errorf("%w: band floor %d below dust limit %d",
			ErrInvalidPaddingBand, cfg.PaddingMin, cfg.DustLimit)
	}

	if cfg.PaddingCount <= 0 || cfg.ProvisionCount <= 0 {
		return ErrInvalidPaddingCount
	}

	if cfg.PaddingValue < cfg.DustLimit || cfg.PaddingValue < cfg.PaddingMin || cfg.PaddingValue >= cfg.PaddingMax {
		return fmt.Errorf("%w: %d for band [%d, %d)",
			ErrInvalidPaddingValue, cfg.PaddingValue, cfg.PaddingMin, cfg.PaddingMax)
	}

	if cfg.DBPath == "" {
		return ErrEmptyDBPath
	}

	if err := validateAddr(cfg.ListenAddr); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidListenAddr, err)
	}

	if !validLogLevels[strings.ToLower(cfg.LogLevel)] {
		return fmt.Errorf("%w: %q", ErrInvalidLogLevel, cfg.LogLevel)
	}

	return nil
}

// validateAddr checks that addr is a valid host:port address.
func validateAddr(addr string) error {
	_, _, err := net.SplitHostPort(addr)
	return err
}
