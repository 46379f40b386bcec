package plan

import (
	"context"

	"github.com/ethereum/go-ethereum/common"
	"github.com/lmittmann/w3"

	"github.com/temirov/ensmigrate/internal/chain"
	"github.com/temirov/ensmigrate/internal/contracts"
	"github.com/temirov/ensmigrate/internal/migrationerrors"
)

// ArgumentsFunc computes call or constructor arguments from the step scope.
type ArgumentsFunc func(executionContext context.Context, scope Scope) ([]any, error)

// Deploy builds a step placing contract as role. The step produces and records a
// reference named after the contract.
func Deploy(name string, contract contracts.Contract, role chain.Role, requires []string, arguments ArgumentsFunc) Step {
	return Step{
		Name:     name,
		Kind:     KindDeploy,
		Role:     role,
		Requires: requires,
		Produces: contract.Name,
		Artifact: contract.Name,
		Action: func(executionContext context.Context, scope Scope) (common.Address, error) {
			constructorArguments, argumentsError := resolveArguments(executionContext, scope, arguments)
			if argumentsError != nil {
				return common.Address{}, argumentsError
			}
			receipt, deployError := scope.Client.Deploy(executionContext, role, chain.Deployment{Contract: contract, Arguments: constructorArguments})
			if deployError != nil {
				return common.Address{}, migrationerrors.DeploymentFailedError{Step: scope.Step(), Contract: contract.Name, Cause: deployError}
			}
			return receipt.ContractAddress, nil
		},
	}
}

// Invoke builds a step sending function to the contract behind the target reference.
// The target is added to the requirements.
func Invoke(name string, role chain.Role, target string, function *w3.Func, requires []string, arguments ArgumentsFunc) Step {
	return Step{
		Name:     name,
		Kind:     KindCall,
		Role:     role,
		Requires: withRequirement(requires, target),
		Action: func(executionContext context.Context, scope Scope) (common.Address, error) {
			targetAddress, referenceError := scope.Reference(target)
			if referenceError != nil {
				return common.Address{}, referenceError
			}
			callArguments, argumentsError := resolveArguments(executionContext, scope, arguments)
			if argumentsError != nil {
				return common.Address{}, argumentsError
			}
			if _, transactError := scope.Client.Transact(executionContext, role, chain.Call{Target: targetAddress, Function: function, Arguments: callArguments}); transactError != nil {
				return common.Address{}, migrationerrors.CallFailedError{Step: scope.Step(), Method: function.Signature, Target: targetAddress.Hex(), Cause: transactError}
			}
			return common.Address{}, nil
		},
	}
}

// Observe builds a read-only step whose result becomes the produces reference.
func Observe(name string, produces string, requires []string, observe Action) Step {
	return Step{
		Name:     name,
		Kind:     KindObserve,
		Requires: requires,
		Produces: produces,
		Action:   observe,
	}
}

// When returns a copy of the step guarded by condition.
func (step Step) When(condition Condition) Step {
	step.Condition = condition
	return step
}

// Producing returns a copy of the step producing reference instead of its default.
// The address book entry keeps the artifact name.
func (step Step) Producing(reference string) Step {
	if len(step.Artifact) == 0 {
		step.Artifact = step.Produces
	}
	step.Produces = reference
	return step
}

// Arguments returns an ArgumentsFunc yielding fixed values.
func Arguments(values ...any) ArgumentsFunc {
	return func(context.Context, Scope) ([]any, error) {
		return values, nil
	}
}

// References returns an ArgumentsFunc yielding the addresses of the named references.
func References(names ...string) ArgumentsFunc {
	return func(_ context.Context, scope Scope) ([]any, error) {
		values := make([]any, 0, len(names))
		for _, name := range names {
			address, referenceError := scope.Reference(name)
			if referenceError != nil {
				return nil, referenceError
			}
			values = append(values, address)
		}
		return values, nil
	}
}

func resolveArguments(executionContext context.Context, scope Scope, arguments ArgumentsFunc) ([]any, error) {
	if arguments == nil {
		return nil, nil
	}
	return arguments(executionContext, scope)
}

func withRequirement(requires []string, requirement string) []string {
	for _, existing := range requires {
		if existing == requirement {
			return requires
		}
	}
	combined := make([]string, 0, len(requires)+1)
	combined = append(combined, requires...)
	return append(combined, requirement)
}
