package plan

import (
	"context"
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/temirov/ensmigrate/internal/chain"
	"github.com/temirov/ensmigrate/internal/migrationerrors"
)

const (
	executorMissingClientMessageConstant = "plan executor requires a chain client"
	recordArtifactErrorTemplateConstant  = "step %s could not record %s: %w"
	emptyDeploymentAddressMessage        = "deployment produced no contract address"
	stepStartedMessageConstant           = "Plan step started"
	stepCompletedMessageConstant         = "Plan step completed"
	stepSkippedMessageConstant           = "Plan step skipped"
	planStartedMessageConstant           = "Plan started"
	planCompletedMessageConstant         = "Plan completed"
	planFieldNameConstant                = "plan"
	networkFieldNameConstant             = "network"
	runIDFieldNameConstant               = "run_id"
	stepFieldNameConstant                = "step"
	kindFieldNameConstant                = "kind"
	contractFieldNameConstant            = "contract"
	addressFieldNameConstant             = "address"
	executedFieldNameConstant            = "executed"
	skippedFieldNameConstant             = "skipped"
)

var errEmptyDeploymentAddress = errors.New(emptyDeploymentAddressMessage)

// ArtifactRecorder persists deployed contract addresses.
type ArtifactRecorder interface {
	Record(name string, address common.Address) error
}

// Dependencies configures the collaborators of an Executor.
type Dependencies struct {
	Client   chain.Client
	Recorder ArtifactRecorder
	Logger   *zap.Logger
	RunID    string
}

// Report summarizes an execution.
type Report struct {
	RunID      string
	Executed   []string
	Skipped    []string
	References map[string]common.Address
}

// Executor runs plans step by step.
type Executor struct {
	dependencies Dependencies
}

// NewExecutor constructs an Executor.
func NewExecutor(dependencies Dependencies) *Executor {
	if dependencies.Logger == nil {
		dependencies.Logger = zap.NewNop()
	}
	if len(dependencies.RunID) == 0 {
		dependencies.RunID = uuid.NewString()
	}
	return &Executor{dependencies: dependencies}
}

// Execute validates and runs the plan. Steps execute strictly in order; the first failure
// aborts the run and is returned together with the partial report.
func (executor *Executor) Execute(executionContext context.Context, plan Plan) (Report, error) {
	report := Report{RunID: executor.dependencies.RunID, References: map[string]common.Address{}}
	if executor.dependencies.Client == nil {
		return report, errors.New(executorMissingClientMessageConstant)
	}
	if validationError := plan.Validate(); validationError != nil {
		return report, validationError
	}

	for inputName, inputAddress := range plan.Inputs {
		report.References[inputName] = inputAddress
	}

	logger := executor.dependencies.Logger.With(
		zap.String(planFieldNameConstant, plan.Name),
		zap.String(networkFieldNameConstant, plan.Network.String()),
		zap.String(runIDFieldNameConstant, executor.dependencies.RunID),
	)
	logger.Info(planStartedMessageConstant)

	for stepIndex := range plan.Steps {
		step := plan.Steps[stepIndex]
		if contextError := executionContext.Err(); contextError != nil {
			return report, contextError
		}

		facts := Facts{Network: plan.Network, Profile: plan.Profile, references: report.References}
		if step.Condition != nil && !step.Condition(facts) {
			logger.Info(stepSkippedMessageConstant, zap.String(stepFieldNameConstant, step.Name))
			report.Skipped = append(report.Skipped, step.Name)
			continue
		}

		scope, scopeError := executor.scopeFor(plan, step, report.References)
		if scopeError != nil {
			return report, scopeError
		}

		logger.Debug(stepStartedMessageConstant, zap.String(stepFieldNameConstant, step.Name), zap.String(kindFieldNameConstant, string(step.Kind)))
		producedAddress, actionError := step.Action(executionContext, scope)
		if actionError != nil {
			return report, classifyFailure(step, actionError)
		}

		completionFields := []zap.Field{zap.String(stepFieldNameConstant, step.Name), zap.String(kindFieldNameConstant, string(step.Kind))}
		switch step.Kind {
		case KindDeploy:
			if producedAddress == (common.Address{}) {
				return report, migrationerrors.DeploymentFailedError{Step: step.Name, Contract: step.artifactName(), Cause: errEmptyDeploymentAddress}
			}
			report.References[step.Produces] = producedAddress
			if executor.dependencies.Recorder != nil {
				if recordError := executor.dependencies.Recorder.Record(step.artifactName(), producedAddress); recordError != nil {
					return report, fmt.Errorf(recordArtifactErrorTemplateConstant, step.Name, step.artifactName(), recordError)
				}
			}
			completionFields = append(completionFields, zap.String(contractFieldNameConstant, step.artifactName()), zap.String(addressFieldNameConstant, producedAddress.Hex()))
		default:
			if len(step.Produces) > 0 && producedAddress != (common.Address{}) {
				report.References[step.Produces] = producedAddress
				completionFields = append(completionFields, zap.String(contractFieldNameConstant, step.Produces), zap.String(addressFieldNameConstant, producedAddress.Hex()))
			}
		}

		report.Executed = append(report.Executed, step.Name)
		logger.Info(stepCompletedMessageConstant, completionFields...)
	}

	logger.Info(planCompletedMessageConstant, zap.Int(executedFieldNameConstant, len(report.Executed)), zap.Int(skippedFieldNameConstant, len(report.Skipped)))
	return report, nil
}

func (executor *Executor) scopeFor(plan Plan, step Step, references map[string]common.Address) (Scope, error) {
	declared := make(map[string]common.Address, len(step.Requires))
	for _, requirement := range step.Requires {
		address, exists := references[requirement]
		if !exists {
			return Scope{}, migrationerrors.MisconfiguredBranchError{Step: step.Name, Dependency: requirement, Network: plan.Network.String()}
		}
		declared[requirement] = address
	}
	return Scope{
		Client:     executor.dependencies.Client,
		Network:    plan.Network,
		Profile:    plan.Profile,
		RunID:      executor.dependencies.RunID,
		step:       step.Name,
		references: declared,
	}, nil
}

// classifyFailure keeps taxonomy errors intact and wraps anything else by step kind.
func classifyFailure(step Step, failure error) error {
	for _, sentinel := range []error{
		migrationerrors.ErrDeploymentFailed,
		migrationerrors.ErrCallFailed,
		migrationerrors.ErrMisconfiguredBranch,
		migrationerrors.ErrNotAuthorized,
		migrationerrors.ErrUnknownNetwork,
	} {
		if errors.Is(failure, sentinel) {
			return failure
		}
	}
	if step.Kind == KindDeploy {
		return migrationerrors.DeploymentFailedError{Step: step.Name, Contract: step.artifactName(), Cause: failure}
	}
	return migrationerrors.CallFailedError{Step: step.Name, Method: step.Name, Cause: failure}
}
