package plan

import (
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum/common"

	"github.com/temirov/ensmigrate/internal/networks"
)

const (
	undeclaredReferenceDetailConstant      = "reference was not declared by the step"
	emptyStepNameTemplateConstant          = "step %d has no name"
	duplicateStepTemplateConstant          = "step %s is declared twice"
	missingActionTemplateConstant          = "step %s has no action"
	unknownKindTemplateConstant            = "step %s has unknown kind %q"
	deployWithoutProductTemplateConstant   = "deploy step %s produces no reference"
	duplicateProductTemplateConstant       = "step %s produces %s which step %s already produces unconditionally"
	unsatisfiedRequirementTemplateConstant = "step %s requires %s which is neither an input nor produced by an earlier step"
	invalidPlanMessageConstant             = "invalid plan"
)

// ErrInvalidPlan reports a plan whose dependency graph is broken.
var ErrInvalidPlan = errors.New(invalidPlanMessageConstant)

// Plan is an ordered list of steps for one network.
type Plan struct {
	Name    string
	Network networks.Identifier
	Profile networks.Profile
	Inputs  map[string]common.Address
	Steps   []Step
}

// Validate statically checks that every requirement is an input or is produced by an
// earlier step, and that steps are well formed. It makes no chain calls.
func (plan Plan) Validate() error {
	available := make(map[string]struct{}, len(plan.Inputs)+len(plan.Steps))
	for name := range plan.Inputs {
		available[name] = struct{}{}
	}
	unconditionalProducers := map[string]string{}
	names := make(map[string]struct{}, len(plan.Steps))

	var problems []error
	for stepIndex, step := range plan.Steps {
		if len(step.Name) == 0 {
			problems = append(problems, fmt.Errorf(emptyStepNameTemplateConstant, stepIndex))
			continue
		}
		if _, duplicate := names[step.Name]; duplicate {
			problems = append(problems, fmt.Errorf(duplicateStepTemplateConstant, step.Name))
		}
		names[step.Name] = struct{}{}

		switch step.Kind {
		case KindDeploy, KindCall, KindObserve:
		default:
			problems = append(problems, fmt.Errorf(unknownKindTemplateConstant, step.Name, step.Kind))
		}
		if step.Action == nil {
			problems = append(problems, fmt.Errorf(missingActionTemplateConstant, step.Name))
		}
		if step.Kind == KindDeploy && len(step.Produces) == 0 {
			problems = append(problems, fmt.Errorf(deployWithoutProductTemplateConstant, step.Name))
		}

		for _, requirement := range step.Requires {
			if _, satisfied := available[requirement]; !satisfied {
				problems = append(problems, fmt.Errorf(unsatisfiedRequirementTemplateConstant, step.Name, requirement))
			}
		}

		if len(step.Produces) > 0 {
			if producer, produced := unconditionalProducers[step.Produces]; produced {
				problems = append(problems, fmt.Errorf(duplicateProductTemplateConstant, step.Name, step.Produces, producer))
			}
			if step.Condition == nil {
				unconditionalProducers[step.Produces] = step.Name
			}
			available[step.Produces] = struct{}{}
		}
	}

	if len(problems) == 0 {
		return nil
	}
	return fmt.Errorf("%w: %w", ErrInvalidPlan, errors.Join(problems...))
}

// StepNames lists the step names in execution order.
func (plan Plan) StepNames() []string {
	names := make([]string, 0, len(plan.Steps))
	for _, step := range plan.Steps {
		names = append(names, step.Name)
	}
	return names
}
