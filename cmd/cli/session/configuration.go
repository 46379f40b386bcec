package session

import (
	"time"
)

const (
	defaultConfirmationTimeoutConstant = 5 * time.Minute
	defaultPollIntervalConstant        = 2 * time.Second
	defaultAddressBookDirectory        = "deployments"
	defaultArtifactsDirectory          = "build/contracts"
)

// NetworkConfiguration describes how to reach one network's JSON-RPC endpoint.
type NetworkConfiguration struct {
	RPCURL              string        `mapstructure:"rpc_url"`
	ChainID             uint64        `mapstructure:"chain_id"`
	GasPriceGwei        uint64        `mapstructure:"gas_price_gwei"`
	ConfirmationTimeout time.Duration `mapstructure:"confirmation_timeout"`
	PollInterval        time.Duration `mapstructure:"poll_interval"`
}

// StorageConfiguration locates the address book and the compiled contract artifacts.
type StorageConfiguration struct {
	AddressBookDirectory string `mapstructure:"address_book_directory"`
	ArtifactsDirectory   string `mapstructure:"artifacts_directory"`
}

// DefaultStorageConfiguration returns the storage locations used when none are configured.
func DefaultStorageConfiguration() StorageConfiguration {
	return StorageConfiguration{
		AddressBookDirectory: defaultAddressBookDirectory,
		ArtifactsDirectory:   defaultArtifactsDirectory,
	}
}

func (configuration NetworkConfiguration) sanitize() NetworkConfiguration {
	sanitized := configuration
	if sanitized.ConfirmationTimeout <= 0 {
		sanitized.ConfirmationTimeout = defaultConfirmationTimeoutConstant
	}
	if sanitized.PollInterval <= 0 {
		sanitized.PollInterval = defaultPollIntervalConstant
	}
	return sanitized
}
