package flags

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/pflag"
)

const (
	toggleTrueCanonicalValue  = "true"
	toggleFalseCanonicalValue = "false"
	toggleTypeName            = "bool"
	toggleParseErrorTemplate  = "invalid toggle value %q"
)

var toggleLiterals = map[string]bool{
	"yes": true,
	"y":   true,
	"on":  true,
	"no":  false,
	"n":   false,
	"off": false,
}

// AddToggleFlag registers a boolean flag accepting yes/no style values in addition to
// the strconv boolean literals. A bare "--name" sets the flag.
func AddToggleFlag(flagSet *pflag.FlagSet, target *bool, name string, defaultValue bool, usage string) {
	if flagSet == nil || target == nil || len(name) == 0 {
		return
	}

	*target = defaultValue
	flagSet.Var(&toggleValue{target: target}, name, FormatChoiceUsage(strconv.FormatBool(defaultValue), []string{toggleTrueCanonicalValue, toggleFalseCanonicalValue}, usage))
	flagSet.Lookup(name).NoOptDefVal = toggleTrueCanonicalValue
}

type toggleValue struct {
	target *bool
}

func (value *toggleValue) Set(rawValue string) error {
	parsed, parseError := parseToggle(rawValue)
	if parseError != nil {
		return parseError
	}
	*value.target = parsed
	return nil
}

func (value *toggleValue) String() string {
	if value == nil || value.target == nil || !*value.target {
		return toggleFalseCanonicalValue
	}
	return toggleTrueCanonicalValue
}

func (value *toggleValue) Type() string {
	return toggleTypeName
}

func parseToggle(rawValue string) (bool, error) {
	normalized := strings.ToLower(strings.TrimSpace(rawValue))
	if parsed, known := toggleLiterals[normalized]; known {
		return parsed, nil
	}
	parsed, parseError := strconv.ParseBool(normalized)
	if parseError != nil {
		return false, fmt.Errorf(toggleParseErrorTemplate, rawValue)
	}
	return parsed, nil
}
