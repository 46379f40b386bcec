package migrationerrors

import (
	"errors"
	"fmt"
)

const (
	unknownNetworkMessageConstant             = "unknown network"
	deploymentFailedMessageConstant           = "deployment failed"
	callFailedMessageConstant                 = "call failed"
	notAuthorizedMessageConstant              = "not authorized"
	misconfiguredBranchMessageConstant        = "misconfigured branch"
	unknownNetworkTemplateConstant            = "%s: %q is not registered (known: %v)"
	deploymentFailedTemplateConstant          = "%s: step %s could not deploy %s: %v"
	callFailedTemplateConstant                = "%s: step %s could not invoke %s on %s: %v"
	notAuthorizedTemplateConstant             = "%s: %s (account %s, observed %s)"
	misconfiguredBranchTemplateConstant       = "%s: step %s requires %s which is absent on network %s"
	misconfiguredBranchDetailTemplateConstant = "%s: step %s requires %s which is absent on network %s: %s"
)

// Sentinel errors matched with errors.Is.
var (
	ErrUnknownNetwork      = errors.New(unknownNetworkMessageConstant)
	ErrDeploymentFailed    = errors.New(deploymentFailedMessageConstant)
	ErrCallFailed          = errors.New(callFailedMessageConstant)
	ErrNotAuthorized       = errors.New(notAuthorizedMessageConstant)
	ErrMisconfiguredBranch = errors.New(misconfiguredBranchMessageConstant)
)

// UnknownNetworkError reports a configuration lookup for an unregistered network identifier.
type UnknownNetworkError struct {
	Network string
	Known   []string
}

// Error describes the failed lookup.
func (unknownNetworkError UnknownNetworkError) Error() string {
	return fmt.Sprintf(unknownNetworkTemplateConstant, unknownNetworkMessageConstant, unknownNetworkError.Network, unknownNetworkError.Known)
}

// Is matches ErrUnknownNetwork.
func (UnknownNetworkError) Is(target error) bool {
	return target == ErrUnknownNetwork
}

// DeploymentFailedError reports a contract placement that did not confirm or reverted.
type DeploymentFailedError struct {
	Step     string
	Contract string
	Cause    error
}

// Error describes the failed deployment.
func (deploymentError DeploymentFailedError) Error() string {
	return fmt.Sprintf(deploymentFailedTemplateConstant, deploymentFailedMessageConstant, deploymentError.Step, deploymentError.Contract, deploymentError.Cause)
}

// Is matches ErrDeploymentFailed.
func (DeploymentFailedError) Is(target error) bool {
	return target == ErrDeploymentFailed
}

// Unwrap exposes the underlying cause.
func (deploymentError DeploymentFailedError) Unwrap() error {
	return deploymentError.Cause
}

// CallFailedError reports a state-changing or view call that reverted or timed out.
type CallFailedError struct {
	Step   string
	Method string
	Target string
	Cause  error
}

// Error describes the failed call.
func (callError CallFailedError) Error() string {
	return fmt.Sprintf(callFailedTemplateConstant, callFailedMessageConstant, callError.Step, callError.Method, callError.Target, callError.Cause)
}

// Is matches ErrCallFailed.
func (CallFailedError) Is(target error) bool {
	return target == ErrCallFailed
}

// Unwrap exposes the underlying cause.
func (callError CallFailedError) Unwrap() error {
	return callError.Cause
}

// NotAuthorizedError reports an activation precondition that failed. It is a defined
// outcome rather than a system failure.
type NotAuthorizedError struct {
	Check    string
	Account  string
	Observed string
}

// Error names the ownership check that failed.
func (authorizationError NotAuthorizedError) Error() string {
	return fmt.Sprintf(notAuthorizedTemplateConstant, notAuthorizedMessageConstant, authorizationError.Check, authorizationError.Account, authorizationError.Observed)
}

// Is matches ErrNotAuthorized.
func (NotAuthorizedError) Is(target error) bool {
	return target == ErrNotAuthorized
}

// MisconfiguredBranchError reports a conditional dependency that should exist under the
// active network rules but does not. It indicates a plan construction bug.
type MisconfiguredBranchError struct {
	Step       string
	Dependency string
	Network    string
	Detail     string
}

// Error describes the missing dependency.
func (branchError MisconfiguredBranchError) Error() string {
	if len(branchError.Detail) > 0 {
		return fmt.Sprintf(misconfiguredBranchDetailTemplateConstant, misconfiguredBranchMessageConstant, branchError.Step, branchError.Dependency, branchError.Network, branchError.Detail)
	}
	return fmt.Sprintf(misconfiguredBranchTemplateConstant, misconfiguredBranchMessageConstant, branchError.Step, branchError.Dependency, branchError.Network)
}

// Is matches ErrMisconfiguredBranch.
func (MisconfiguredBranchError) Is(target error) bool {
	return target == ErrMisconfiguredBranch
}
