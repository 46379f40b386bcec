package prober

import (
	"context"

	"github.com/ethereum/go-ethereum/common"
	"github.com/lmittmann/w3"

	"github.com/temirov/ensmigrate/internal/chain"
	"github.com/temirov/ensmigrate/internal/contracts"
	"github.com/temirov/ensmigrate/internal/migrationerrors"
	"github.com/temirov/ensmigrate/internal/namehash"
)

const (
	probeStepNameConstant   = "probe"
	codeMethodLabelConstant = "eth_getCode"
)

// Prober reads ownership state of one registry.
type Prober struct {
	client   chain.Client
	registry common.Address
}

// New constructs a Prober for the registry at registryAddress.
func New(client chain.Client, registryAddress common.Address) *Prober {
	return &Prober{client: client, registry: registryAddress}
}

// Registry returns the probed registry address.
func (prober *Prober) Registry() common.Address {
	return prober.registry
}

// RootOwner returns the current owner of the root node.
func (prober *Prober) RootOwner(executionContext context.Context) (common.Address, error) {
	return prober.NodeOwner(executionContext, namehash.Root)
}

// NodeOwner returns the current owner of node.
func (prober *Prober) NodeOwner(executionContext context.Context, node namehash.Node) (common.Address, error) {
	return prober.readAddress(executionContext, prober.registry, contracts.FuncOwner, node)
}

// TopLevelOwner returns the current owner of the top-level name label.
func (prober *Prober) TopLevelOwner(executionContext context.Context, label string) (common.Address, error) {
	return prober.NodeOwner(executionContext, namehash.Subnode(namehash.Root, namehash.LabelHash(label)))
}

// HasCode reports whether address hosts contract code.
func (prober *Prober) HasCode(executionContext context.Context, address common.Address) (bool, error) {
	code, codeError := prober.client.CodeAt(executionContext, address)
	if codeError != nil {
		return false, migrationerrors.CallFailedError{Step: probeStepNameConstant, Method: codeMethodLabelConstant, Target: address.Hex(), Cause: codeError}
	}
	return len(code) > 0, nil
}

// RootControllerOwner returns the owner of the root controller contract at address.
func (prober *Prober) RootControllerOwner(executionContext context.Context, address common.Address) (common.Address, error) {
	return prober.readAddress(executionContext, address, contracts.FuncContractOwner)
}

func (prober *Prober) readAddress(executionContext context.Context, target common.Address, function *w3.Func, arguments ...any) (common.Address, error) {
	var result common.Address
	call := chain.Call{Target: target, Function: function, Arguments: arguments}
	if viewError := prober.client.View(executionContext, call, &result); viewError != nil {
		return common.Address{}, migrationerrors.CallFailedError{Step: probeStepNameConstant, Method: call.Label(), Target: target.Hex(), Cause: viewError}
	}
	return result, nil
}
