package activation

import (
	"context"
	"errors"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"

	"github.com/temirov/ensmigrate/internal/chain"
	"github.com/temirov/ensmigrate/internal/contracts"
	"github.com/temirov/ensmigrate/internal/migrationerrors"
	"github.com/temirov/ensmigrate/internal/namehash"
	"github.com/temirov/ensmigrate/internal/networks"
	"github.com/temirov/ensmigrate/internal/prober"
)

// Status is the result class of an activation run.
type Status string

// Activation results.
const (
	StatusActivated        Status = "activated"
	StatusAlreadyActivated Status = "already-activated"
	StatusAborted          Status = "aborted"
)

// Path names how the eth node was reassigned.
type Path string

// Activation paths.
const (
	PathNone      Path = ""
	PathDirect    Path = "direct"
	PathDelegated Path = "delegated"
)

const (
	locateRegistryStepConstant     = "locate-registry"
	locateMigrationStepConstant    = "locate-migration"
	activateStepConstant           = "activate"
	rootNodeOwnerCheckConstant     = "root node owner"
	rootControllerCheckConstant    = "root controller owner"
	registryMissingDetailConstant  = "no legacy registry is known for this network"
	migrationMissingDetailConstant = "address book has no RegistrarMigration entry; run deploy-replacement first"
	migrationNoCodeDetailConstant  = "recorded RegistrarMigration address hosts no contract code"
	notObservedMessageConstant     = "eth node owner did not change after activation"
	alreadyActivatedMessage        = "Registrar migration already owns the eth node"
	directPathMessage              = "Owner account holds the root node directly"
	delegatedPathMessage           = "Owner account controls the root node through the root controller"
	activatedMessage               = "Registrar migration activated"
	abortedMessage                 = "Cannot activate the registrar migration; skipping"
	networkFieldName               = "network"
	registryFieldName              = "registry"
	migrationFieldName             = "migration"
	rootOwnerFieldName             = "root_owner"
	accountFieldName               = "account"
	pathFieldName                  = "path"
	reasonFieldName                = "reason"
)

// ErrActivationNotObserved reports a confirmed activation transaction after which the
// eth node still has a different owner.
var ErrActivationNotObserved = errors.New(notObservedMessageConstant)

// AddressLookup reads previously recorded artifacts.
type AddressLookup interface {
	Lookup(name string) (common.Address, bool)
}

// Outcome describes an activation run.
type Outcome struct {
	Status    Status
	Path      Path
	Registry  common.Address
	Migration common.Address
	RootOwner common.Address
	Reason    error
}

// Activator performs the activation phase for one network.
type Activator struct {
	client  chain.Client
	profile networks.Profile
	book    AddressLookup
	logger  *zap.Logger
}

// NewActivator constructs an Activator.
func NewActivator(client chain.Client, profile networks.Profile, book AddressLookup, logger *zap.Logger) *Activator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Activator{client: client, profile: profile, book: book, logger: logger}
}

// Activate re-probes the legacy state and reassigns the eth node to the migration
// contract when the owner account is authorized. An unauthorized account yields a
// StatusAborted outcome with a NotAuthorizedError reason and a nil error.
func (activator *Activator) Activate(executionContext context.Context) (Outcome, error) {
	registryAddress, registryError := activator.locateRegistry()
	if registryError != nil {
		return Outcome{}, registryError
	}
	legacyProber := prober.New(activator.client, registryAddress)

	migrationAddress, migrationError := activator.locateMigration(executionContext, legacyProber)
	if migrationError != nil {
		return Outcome{}, migrationError
	}

	outcome := Outcome{Registry: registryAddress, Migration: migrationAddress}
	logger := activator.logger.With(
		zap.String(networkFieldName, activator.profile.Network.String()),
		zap.String(registryFieldName, registryAddress.Hex()),
		zap.String(migrationFieldName, migrationAddress.Hex()),
	)

	ethOwner, ethOwnerError := legacyProber.NodeOwner(executionContext, namehash.EthNode)
	if ethOwnerError != nil {
		return Outcome{}, ethOwnerError
	}
	if ethOwner == migrationAddress {
		logger.Info(alreadyActivatedMessage)
		outcome.Status = StatusAlreadyActivated
		return outcome, nil
	}

	rootOwner, rootOwnerError := legacyProber.RootOwner(executionContext)
	if rootOwnerError != nil {
		return Outcome{}, rootOwnerError
	}
	outcome.RootOwner = rootOwner
	account := activator.client.Account(chain.RoleOwner)
	logger = logger.With(zap.String(rootOwnerFieldName, rootOwner.Hex()), zap.String(accountFieldName, account.Hex()))

	var activation chain.Call
	switch {
	case rootOwner == account:
		logger.Info(directPathMessage)
		outcome.Path = PathDirect
		activation = chain.Call{Target: registryAddress, Function: contracts.FuncSetSubnodeOwner, Arguments: []any{namehash.Root, namehash.EthLabel, migrationAddress}}
	default:
		rootOwnerHasCode, codeError := legacyProber.HasCode(executionContext, rootOwner)
		if codeError != nil {
			return Outcome{}, codeError
		}
		if !rootOwnerHasCode {
			return activator.abort(logger, outcome, rootNodeOwnerCheckConstant, account, rootOwner), nil
		}
		controllerOwner, controllerOwnerError := legacyProber.RootControllerOwner(executionContext, rootOwner)
		if controllerOwnerError != nil {
			return Outcome{}, controllerOwnerError
		}
		if controllerOwner != account {
			return activator.abort(logger, outcome, rootControllerCheckConstant, account, controllerOwner), nil
		}
		logger.Info(delegatedPathMessage)
		outcome.Path = PathDelegated
		activation = chain.Call{Target: rootOwner, Function: contracts.FuncRootSetSubnodeOwner, Arguments: []any{namehash.EthLabel, migrationAddress}}
	}

	if _, transactError := activator.client.Transact(executionContext, chain.RoleOwner, activation); transactError != nil {
		return Outcome{}, migrationerrors.CallFailedError{Step: activateStepConstant, Method: activation.Label(), Target: activation.Target.Hex(), Cause: transactError}
	}

	confirmedOwner, confirmError := legacyProber.NodeOwner(executionContext, namehash.EthNode)
	if confirmError != nil {
		return Outcome{}, confirmError
	}
	if confirmedOwner != migrationAddress {
		return Outcome{}, ErrActivationNotObserved
	}

	logger.Info(activatedMessage, zap.String(pathFieldName, string(outcome.Path)))
	outcome.Status = StatusActivated
	return outcome, nil
}

func (activator *Activator) abort(logger *zap.Logger, outcome Outcome, check string, account common.Address, observed common.Address) Outcome {
	reason := migrationerrors.NotAuthorizedError{Check: check, Account: account.Hex(), Observed: observed.Hex()}
	logger.Warn(abortedMessage, zap.String(reasonFieldName, reason.Error()))
	outcome.Status = StatusAborted
	outcome.Reason = reason
	return outcome
}

func (activator *Activator) locateRegistry() (common.Address, error) {
	if activator.profile.Network.IsDevelopment() {
		if address, found := lookup(activator.book, contracts.LegacyRegistry.Name); found {
			return address, nil
		}
	} else if activator.profile.HasLegacyRegistry {
		return activator.profile.LegacyRegistry, nil
	}
	return common.Address{}, migrationerrors.MisconfiguredBranchError{
		Step:       locateRegistryStepConstant,
		Dependency: contracts.LegacyRegistry.Name,
		Network:    activator.profile.Network.String(),
		Detail:     registryMissingDetailConstant,
	}
}

func (activator *Activator) locateMigration(executionContext context.Context, legacyProber *prober.Prober) (common.Address, error) {
	migrationAddress, found := lookup(activator.book, contracts.RegistrarMigration.Name)
	if !found {
		return common.Address{}, migrationerrors.MisconfiguredBranchError{
			Step:       locateMigrationStepConstant,
			Dependency: contracts.RegistrarMigration.Name,
			Network:    activator.profile.Network.String(),
			Detail:     migrationMissingDetailConstant,
		}
	}
	hasCode, codeError := legacyProber.HasCode(executionContext, migrationAddress)
	if codeError != nil {
		return common.Address{}, codeError
	}
	if !hasCode {
		return common.Address{}, migrationerrors.MisconfiguredBranchError{
			Step:       locateMigrationStepConstant,
			Dependency: contracts.RegistrarMigration.Name,
			Network:    activator.profile.Network.String(),
			Detail:     migrationNoCodeDetailConstant,
		}
	}
	return migrationAddress, nil
}

func lookup(book AddressLookup, name string) (common.Address, bool) {
	if book == nil {
		return common.Address{}, false
	}
	return book.Lookup(name)
}
