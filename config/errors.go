package config

import "errors"

var (
	// ErrInvalidNetwork indicates Network is not mainnet, testnet, or regtest.
	ErrInvalidNetwork = errors.New("config: invalid network")

	// ErrMissingEsploraURL indicates no indexer URL was configured.
	ErrMissingEsploraURL = errors.New("config: esplora URL required")

	// ErrInvalidPaddingBand indicates the padding band bounds are inconsistent.
	ErrInvalidPaddingBand = errors.New("config: invalid padding band")

	// ErrInvalidPaddingCount indicates a non-positive padding count.
	ErrInvalidPaddingCount = errors.New("config: invalid padding count")

	// ErrInvalidPaddingValue indicates the padding value is below the dust limit
	// or outside the padding band.
	ErrInvalidPaddingValue = errors.New("config: invalid padding value")

	// ErrZeroFallbackRate indicates the fallback fee rate is zero.
	ErrZeroFallbackRate = errors.New("config: fallback fee rate must be positive")

	// ErrInvalidListenAddr indicates ListenAddr is not host:port.
	ErrInvalidListenAddr = errors.New("config: invalid listen address")

	// ErrInvalidLogLevel indicates an unknown log level.
	ErrInvalidLogLevel = errors.New("config: invalid log level")

	// ErrEmptyDBPath indicates no database path was configured.
	ErrEmptyDBPath = errors.New("config: database path required")
)
