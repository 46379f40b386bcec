package chain

import (
	"context"
	"errors"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/lmittmann/w3"

	"github.com/temirov/ensmigrate/internal/contracts"
)

// Role names a signing identity.
type Role string

// Signing identities used by the migration.
const (
	RoleOwner    Role = "owner"
	RoleDeployer Role = "deployer"
)

const (
	transactionRevertedMessageConstant = "transaction reverted"
	emptyReturnDataMessageConstant     = "call returned no data"
)

var (
	// ErrTransactionReverted reports a mined transaction whose status is failure.
	ErrTransactionReverted = errors.New(transactionRevertedMessageConstant)
	// ErrEmptyReturnData reports a view call against an address without a matching function.
	ErrEmptyReturnData = errors.New(emptyReturnDataMessageConstant)
)

// Call addresses a function on a deployed contract.
type Call struct {
	Target    common.Address
	Function  *w3.Func
	Arguments []any
	Value     *big.Int
	GasLimit  uint64
}

// Label returns a short human readable description of the call.
func (call Call) Label() string {
	if call.Function == nil {
		return ""
	}
	return call.Function.Signature
}

// Deployment describes a contract instance to place on-chain. A zero GasLimit defers to
// the contract's budget and then to estimation.
type Deployment struct {
	Contract  contracts.Contract
	Arguments []any
	GasLimit  uint64
}

// Receipt summarizes a confirmed transaction.
type Receipt struct {
	TransactionHash common.Hash
	ContractAddress common.Address
	BlockNumber     uint64
	GasUsed         uint64
}

// Client is the chain capability consumed by the orchestrator.
type Client interface {
	Account(role Role) common.Address
	Deploy(executionContext context.Context, role Role, deployment Deployment) (Receipt, error)
	Transact(executionContext context.Context, role Role, call Call) (Receipt, error)
	View(executionContext context.Context, call Call, returns ...any) error
	CodeAt(executionContext context.Context, address common.Address) ([]byte, error)
	EstimateGas(executionContext context.Context, role Role, call Call) (uint64, error)
}

// Clock reports chain time.
type Clock interface {
	LatestTimestamp(executionContext context.Context) (uint64, error)
}

// TestNetwork exposes administrative primitives of local development nodes.
type TestNetwork interface {
	Clock
	AdvanceTime(executionContext context.Context, seconds uint64) error
}
