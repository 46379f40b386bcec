package chaintest

import (
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

func argumentAt(arguments []any, index int, operation string) (any, error) {
	if index >= len(arguments) {
		return nil, fmt.Errorf(argumentCountTemplateConstant, operation, index+1)
	}
	return arguments[index], nil
}

func addressArgument(arguments []any, index int, operation string) (common.Address, error) {
	value, valueError := argumentAt(arguments, index, operation)
	if valueError != nil {
		return common.Address{}, valueError
	}
	address, matches := value.(common.Address)
	if !matches {
		return common.Address{}, fmt.Errorf(argumentTypeTemplateConstant, index, operation, value)
	}
	return address, nil
}

func hashArgument(arguments []any, index int, operation string) (common.Hash, error) {
	value, valueError := argumentAt(arguments, index, operation)
	if valueError != nil {
		return common.Hash{}, valueError
	}
	switch typed := value.(type) {
	case common.Hash:
		return typed, nil
	case [32]byte:
		return common.Hash(typed), nil
	default:
		return common.Hash{}, fmt.Errorf(argumentTypeTemplateConstant, index, operation, value)
	}
}

func integerArgument(arguments []any, index int, operation string) (*big.Int, error) {
	value, valueError := argumentAt(arguments, index, operation)
	if valueError != nil {
		return nil, valueError
	}
	integer, matches := value.(*big.Int)
	if !matches || integer == nil {
		return nil, fmt.Errorf(argumentTypeTemplateConstant, index, operation, value)
	}
	return integer, nil
}

func boolArgument(arguments []any, index int, operation string) (bool, error) {
	value, valueError := argumentAt(arguments, index, operation)
	if valueError != nil {
		return false, valueError
	}
	flag, matches := value.(bool)
	if !matches {
		return false, fmt.Errorf(argumentTypeTemplateConstant, index, operation, value)
	}
	return flag, nil
}

func interfaceArgument(arguments []any, index int, operation string) ([4]byte, error) {
	value, valueError := argumentAt(arguments, index, operation)
	if valueError != nil {
		return [4]byte{}, valueError
	}
	identifier, matches := value.([4]byte)
	if !matches {
		return [4]byte{}, fmt.Errorf(argumentTypeTemplateConstant, index, operation, value)
	}
	return identifier, nil
}

func hashListArgument(arguments []any, index int, operation string) ([]common.Hash, error) {
	value, valueError := argumentAt(arguments, index, operation)
	if valueError != nil {
		return nil, valueError
	}
	switch typed := value.(type) {
	case []common.Hash:
		return typed, nil
	case [][32]byte:
		hashes := make([]common.Hash, 0, len(typed))
		for _, word := range typed {
			hashes = append(hashes, common.Hash(word))
		}
		return hashes, nil
	default:
		return nil, fmt.Errorf(argumentTypeTemplateConstant, index, operation, value)
	}
}

func integerListArgument(arguments []any, index int, operation string) ([]*big.Int, error) {
	value, valueError := argumentAt(arguments, index, operation)
	if valueError != nil {
		return nil, valueError
	}
	integers, matches := value.([]*big.Int)
	if !matches {
		return nil, fmt.Errorf(argumentTypeTemplateConstant, index, operation, value)
	}
	return integers, nil
}

// assign copies simulated return values into the caller's decode targets.
func assign(returns []any, values []any) error {
	for index := range returns {
		if index >= len(values) {
			return nil
		}
		target := returns[index]
		value := values[index]
		switch typedTarget := target.(type) {
		case *common.Address:
			typedValue, matches := value.(common.Address)
			if !matches {
				return fmt.Errorf(returnTypeTemplateConstant, value, target)
			}
			*typedTarget = typedValue
		case *common.Hash:
			typedValue, matches := value.(common.Hash)
			if !matches {
				return fmt.Errorf(returnTypeTemplateConstant, value, target)
			}
			*typedTarget = typedValue
		case *big.Int:
			typedValue, matches := value.(*big.Int)
			if !matches {
				return fmt.Errorf(returnTypeTemplateConstant, value, target)
			}
			typedTarget.Set(typedValue)
		case *bool:
			typedValue, matches := value.(bool)
			if !matches {
				return fmt.Errorf(returnTypeTemplateConstant, value, target)
			}
			*typedTarget = typedValue
		case *uint8:
			typedValue, matches := value.(uint8)
			if !matches {
				return fmt.Errorf(returnTypeTemplateConstant, value, target)
			}
			*typedTarget = typedValue
		case nil:
		default:
			return fmt.Errorf(returnTypeTemplateConstant, value, target)
		}
	}
	return nil
}
