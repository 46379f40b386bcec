package session

import (
	"context"
	"fmt"
	"math/big"
	"os"
	"strings"

	"github.com/ethereum/go-ethereum/params"
	"go.uber.org/zap"

	"github.com/temirov/ensmigrate/internal/addressbook"
	"github.com/temirov/ensmigrate/internal/chain"
	"github.com/temirov/ensmigrate/internal/migrationerrors"
	"github.com/temirov/ensmigrate/internal/networks"
	"github.com/temirov/ensmigrate/internal/utils"
	pathutils "github.com/temirov/ensmigrate/internal/utils/path"
)

const (
	connectStepConstant               = "connect"
	missingEndpointTemplateConstant   = "networks.%s.rpc_url is not configured"
	catalogErrorTemplateConstant      = "build network catalog: %w"
	addressBookErrorTemplateConstant  = "open address book: %w"
	connectionErrorTemplateConstant   = "connect to %s: %w"
	sessionOpenedMessageConstant      = "Session opened"
	placeholderKeyWarningConstant     = "Using the development placeholder signing key"
	networkFieldConstant              = "network"
	runIdentifierFieldConstant        = "run_id"
	addressBookFieldConstant          = "address_book"
	ownerAccountFieldConstant         = "owner"
	deployerAccountFieldConstant      = "deployer"
	timeAdvanceAvailableFieldConstant = "time_advance"
	configFileFieldConstant           = "config_file"
)

// Connection is an open chain connection. TestNetwork is nil unless the network allows
// administrative time advance.
type Connection struct {
	Client      chain.Client
	Clock       chain.Clock
	TestNetwork chain.TestNetwork
	Release     func()
}

// Connector opens a chain connection for profile.
type Connector func(executionContext context.Context, profile networks.Profile, network NetworkConfiguration, storage StorageConfiguration, logger *zap.Logger) (Connection, error)

// Session bundles everything a phase needs for one network.
type Session struct {
	Profile networks.Profile
	Book    *addressbook.Store
	Connection
}

// Close releases the chain connection.
func (session *Session) Close() {
	if session == nil || session.Release == nil {
		return
	}
	session.Release()
}

// Opener resolves profiles and opens sessions.
type Opener struct {
	LoggerProvider    func() *zap.Logger
	NetworksProvider  func() map[string]NetworkConfiguration
	StorageProvider   func() StorageConfiguration
	EnvironmentLookup networks.EnvironmentLookup
	Connector         Connector
	HomeExpander      *pathutils.HomeExpander
}

// Resolve returns the profile of network built from the compiled-in tables and the
// process environment. Placeholder keys are rejected off development.
func (opener Opener) Resolve(network string) (networks.Profile, error) {
	lookup := opener.EnvironmentLookup
	if lookup == nil {
		lookup = os.LookupEnv
	}
	catalog, catalogError := networks.NewCatalog(networks.OverridesFromEnvironment(lookup))
	if catalogError != nil {
		return networks.Profile{}, fmt.Errorf(catalogErrorTemplateConstant, catalogError)
	}
	profile, resolveError := catalog.Resolve(networks.Identifier(network))
	if resolveError != nil {
		return networks.Profile{}, resolveError
	}
	if keyError := profile.ValidateKeys(); keyError != nil {
		return networks.Profile{}, keyError
	}
	return profile, nil
}

// Networks lists the identifiers the catalog resolves.
func (opener Opener) Networks() []string {
	catalog, catalogError := networks.NewCatalog(networks.EnvironmentOverrides{})
	if catalogError != nil {
		return nil
	}
	identifiers := catalog.Identifiers()
	names := make([]string, 0, len(identifiers))
	for _, identifier := range identifiers {
		names = append(names, identifier.String())
	}
	return names
}

// Open resolves network, opens its address book and connects to its endpoint.
func (opener Opener) Open(executionContext context.Context, network string) (*Session, error) {
	profile, resolveError := opener.Resolve(network)
	if resolveError != nil {
		return nil, resolveError
	}
	return opener.OpenProfile(executionContext, profile)
}

// OpenProfile opens the address book and connection of an already resolved profile.
func (opener Opener) OpenProfile(executionContext context.Context, profile networks.Profile) (*Session, error) {
	logger := opener.logger()
	storage := opener.storage()

	book, bookError := addressbook.Open(storage.AddressBookDirectory, profile.Network.String())
	if bookError != nil {
		return nil, fmt.Errorf(addressBookErrorTemplateConstant, bookError)
	}

	connector := opener.Connector
	if connector == nil {
		connector = DialConnector
	}
	connection, connectionError := connector(executionContext, profile, opener.networkConfiguration(profile.Network), storage, logger)
	if connectionError != nil {
		return nil, fmt.Errorf(connectionErrorTemplateConstant, profile.Network, connectionError)
	}

	if profile.UsesPlaceholderKey() {
		logger.Warn(placeholderKeyWarningConstant, zap.String(networkFieldConstant, profile.Network.String()))
	}
	configurationFile, _ := utils.NewCommandContextAccessor().ConfigurationFilePath(executionContext)
	logger.Info(sessionOpenedMessageConstant,
		zap.String(networkFieldConstant, profile.Network.String()),
		zap.String(configFileFieldConstant, configurationFile),
		zap.String(runIdentifierFieldConstant, book.RunID()),
		zap.String(addressBookFieldConstant, book.Path()),
		zap.String(ownerAccountFieldConstant, connection.Client.Account(chain.RoleOwner).Hex()),
		zap.String(deployerAccountFieldConstant, connection.Client.Account(chain.RoleDeployer).Hex()),
		zap.Bool(timeAdvanceAvailableFieldConstant, connection.TestNetwork != nil),
	)

	return &Session{Profile: profile, Book: book, Connection: connection}, nil
}

// DialConnector connects to the configured JSON-RPC endpoint with go-ethereum.
func DialConnector(executionContext context.Context, profile networks.Profile, network NetworkConfiguration, storage StorageConfiguration, logger *zap.Logger) (Connection, error) {
	if len(strings.TrimSpace(network.RPCURL)) == 0 {
		return Connection{}, migrationerrors.MisconfiguredBranchError{
			Step:    connectStepConstant,
			Network: profile.Network.String(),
			Detail:  fmt.Sprintf(missingEndpointTemplateConstant, profile.Network),
		}
	}
	network = network.sanitize()

	var gasPrice *big.Int
	if network.GasPriceGwei > 0 {
		gasPrice = new(big.Int).Mul(new(big.Int).SetUint64(network.GasPriceGwei), big.NewInt(params.GWei))
	}

	client, dialError := chain.DialEthereum(executionContext, chain.EthereumConfiguration{
		RPCURL:              network.RPCURL,
		ChainID:             network.ChainID,
		GasPrice:            gasPrice,
		ConfirmationTimeout: network.ConfirmationTimeout,
		PollInterval:        network.PollInterval,
		OwnerKey:            profile.OwnerKey,
		DeploymentKey:       profile.DeploymentKey,
		Artifacts:           chain.DirectoryArtifacts{Directory: storage.ArtifactsDirectory},
		Observer:            chain.NewLoggingTransactionObserver(logger),
	})
	if dialError != nil {
		return Connection{}, dialError
	}

	connection := Connection{Client: client, Clock: client, Release: client.Close}
	if profile.Network.IsDevelopment() {
		connection.TestNetwork = client
	}
	return connection, nil
}

func (opener Opener) logger() *zap.Logger {
	if opener.LoggerProvider == nil {
		return zap.NewNop()
	}
	logger := opener.LoggerProvider()
	if logger == nil {
		return zap.NewNop()
	}
	return logger
}

func (opener Opener) storage() StorageConfiguration {
	storage := DefaultStorageConfiguration()
	if opener.StorageProvider != nil {
		configured := opener.StorageProvider()
		if len(strings.TrimSpace(configured.AddressBookDirectory)) > 0 {
			storage.AddressBookDirectory = configured.AddressBookDirectory
		}
		if len(strings.TrimSpace(configured.ArtifactsDirectory)) > 0 {
			storage.ArtifactsDirectory = configured.ArtifactsDirectory
		}
	}
	expander := opener.HomeExpander
	if expander == nil {
		expander = pathutils.NewHomeExpander()
	}
	storage.AddressBookDirectory = expander.Expand(storage.AddressBookDirectory)
	storage.ArtifactsDirectory = expander.Expand(storage.ArtifactsDirectory)
	return storage
}

func (opener Opener) networkConfiguration(network networks.Identifier) NetworkConfiguration {
	if opener.NetworksProvider == nil {
		return NetworkConfiguration{}
	}
	return opener.NetworksProvider()[network.String()]
}
