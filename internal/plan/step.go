package plan

import (
	"context"

	"github.com/ethereum/go-ethereum/common"

	"github.com/temirov/ensmigrate/internal/chain"
	"github.com/temirov/ensmigrate/internal/migrationerrors"
	"github.com/temirov/ensmigrate/internal/networks"
)

// Kind classifies a step.
type Kind string

// Step kinds.
const (
	KindDeploy  Kind = "deploy"
	KindCall    Kind = "call"
	KindObserve Kind = "observe"
)

// Action performs a step. Deploy and observe actions return the address their step
// produces; an observe action returning the zero address leaves its reference unset.
type Action func(executionContext context.Context, scope Scope) (common.Address, error)

// Condition decides whether a step applies.
type Condition func(facts Facts) bool

// Step is one unit of a plan.
type Step struct {
	Name      string
	Kind      Kind
	Role      chain.Role
	Requires  []string
	Produces  string
	Artifact  string
	Condition Condition
	Action    Action
}

// artifactName returns the address book key of a deploy step.
func (step Step) artifactName() string {
	if len(step.Artifact) > 0 {
		return step.Artifact
	}
	return step.Produces
}

// Facts is the read-only state conditions are evaluated against.
type Facts struct {
	Network    networks.Identifier
	Profile    networks.Profile
	references map[string]common.Address
}

// Has reports whether reference name is known at this point of the run.
func (facts Facts) Has(name string) bool {
	_, exists := facts.references[name]
	return exists
}

// Reference returns the address of name when known.
func (facts Facts) Reference(name string) (common.Address, bool) {
	address, exists := facts.references[name]
	return address, exists
}

// Scope is the view of a run handed to a step action. It exposes only the references
// the step declared.
type Scope struct {
	Client     chain.Client
	Network    networks.Identifier
	Profile    networks.Profile
	RunID      string
	step       string
	references map[string]common.Address
}

// Step returns the name of the executing step.
func (scope Scope) Step() string {
	return scope.step
}

// Reference returns a declared requirement. Asking for anything else is a plan
// construction bug and yields a MisconfiguredBranchError.
func (scope Scope) Reference(name string) (common.Address, error) {
	address, exists := scope.references[name]
	if !exists {
		return common.Address{}, migrationerrors.MisconfiguredBranchError{
			Step:       scope.step,
			Dependency: name,
			Network:    string(scope.Network),
			Detail:     undeclaredReferenceDetailConstant,
		}
	}
	return address, nil
}

// Account returns the address signing for role.
func (scope Scope) Account(role chain.Role) common.Address {
	return scope.Client.Account(role)
}

// OwnerAddress returns the final owner: the configured target address or the owner account.
func (scope Scope) OwnerAddress() common.Address {
	if scope.Profile.HasTargetAddress {
		return scope.Profile.TargetAddress
	}
	return scope.Client.Account(chain.RoleOwner)
}
