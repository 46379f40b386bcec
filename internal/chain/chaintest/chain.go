package chaintest

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/lmittmann/w3"

	"github.com/temirov/ensmigrate/internal/chain"
)

const (
	defaultGenesisTimestampConstant = 1_600_000_000
	simulatedGasConstant            = 21_000

	unknownRoleTemplateConstant     = "unknown role %q"
	unknownContractTemplateConstant = "contract %s is not simulated"
	noContractTemplateConstant      = "%w: no contract at %s"
	unsupportedCallTemplateConstant = "%w: %s does not implement %s"
	revertTemplateConstant          = "%w: %s"
	argumentTypeTemplateConstant    = "argument %d of %s has type %T"
	argumentCountTemplateConstant   = "%s expects at least %d arguments"
	returnTypeTemplateConstant      = "cannot assign %T to %T"
	injectedFailureTemplateConstant = "%s: %w"
	missingFunctionMessageConstant  = "call has no function binding"
)

// Default account addresses used by New.
var (
	DefaultOwner    = common.HexToAddress("0x90F8bf6A479f320ead074411a4B0e7944Ea8c9C1")
	DefaultDeployer = common.HexToAddress("0xFFcf8FDEE72ac11b5c542428B35EEF5769C409f0")
)

// Transaction records a confirmed state change.
type Transaction struct {
	Role      chain.Role
	Sender    common.Address
	Target    common.Address
	Contract  string
	Operation string
	Arguments []any
	Value     *big.Int
}

// Chain is an in-memory chain. It is safe for concurrent use.
type Chain struct {
	mutex        sync.Mutex
	accounts     map[chain.Role]common.Address
	nonces       map[common.Address]uint64
	contracts    map[common.Address]*contractState
	foreignCode  map[common.Address]bool
	failures     map[string]error
	transactions []Transaction
	timestamp    uint64
	blockNumber  uint64
}

// New constructs a chain with DefaultOwner and DefaultDeployer accounts.
func New() *Chain {
	return NewWithAccounts(DefaultOwner, DefaultDeployer)
}

// NewWithAccounts constructs a chain signing with the provided owner and deployer.
func NewWithAccounts(owner common.Address, deployer common.Address) *Chain {
	return &Chain{
		accounts: map[chain.Role]common.Address{
			chain.RoleOwner:    owner,
			chain.RoleDeployer: deployer,
		},
		nonces:      map[common.Address]uint64{},
		contracts:   map[common.Address]*contractState{},
		foreignCode: map[common.Address]bool{},
		failures:    map[string]error{},
		timestamp:   defaultGenesisTimestampConstant,
	}
}

// FailOn makes every deployment of the named contract, or every call of the function
// signature, fail with failure.
func (simulated *Chain) FailOn(operation string, failure error) {
	simulated.mutex.Lock()
	defer simulated.mutex.Unlock()
	simulated.failures[operation] = failure
}

// InstallCode marks address as hosting contract code the simulation does not interpret.
func (simulated *Chain) InstallCode(address common.Address) {
	simulated.mutex.Lock()
	defer simulated.mutex.Unlock()
	simulated.foreignCode[address] = true
}

// Transactions returns the confirmed state changes in order.
func (simulated *Chain) Transactions() []Transaction {
	simulated.mutex.Lock()
	defer simulated.mutex.Unlock()
	return append([]Transaction{}, simulated.transactions...)
}

// ContractName returns the simulated contract deployed at address.
func (simulated *Chain) ContractName(address common.Address) string {
	simulated.mutex.Lock()
	defer simulated.mutex.Unlock()
	state, exists := simulated.contracts[address]
	if !exists {
		return ""
	}
	return state.name
}

// Account implements chain.Client.
func (simulated *Chain) Account(role chain.Role) common.Address {
	simulated.mutex.Lock()
	defer simulated.mutex.Unlock()
	return simulated.accounts[role]
}

// Deploy implements chain.Client.
func (simulated *Chain) Deploy(executionContext context.Context, role chain.Role, deployment chain.Deployment) (chain.Receipt, error) {
	if contextError := executionContext.Err(); contextError != nil {
		return chain.Receipt{}, contextError
	}
	if _, encodeError := deployment.Contract.EncodeConstructor(deployment.Arguments...); encodeError != nil {
		return chain.Receipt{}, encodeError
	}

	simulated.mutex.Lock()
	defer simulated.mutex.Unlock()

	sender, senderError := simulated.sender(role)
	if senderError != nil {
		return chain.Receipt{}, senderError
	}
	if failure, exists := simulated.failures[deployment.Contract.Name]; exists {
		return chain.Receipt{}, fmt.Errorf(injectedFailureTemplateConstant, deployment.Contract.Name, failure)
	}

	address := crypto.CreateAddress(sender, simulated.nonces[sender])
	state, constructError := simulated.construct(deployment.Contract.Name, sender, deployment.Arguments)
	if constructError != nil {
		return chain.Receipt{}, constructError
	}
	simulated.contracts[address] = state

	receipt := simulated.confirm(Transaction{
		Role:      role,
		Sender:    sender,
		Target:    address,
		Contract:  deployment.Contract.Name,
		Arguments: deployment.Arguments,
	})
	receipt.ContractAddress = address
	return receipt, nil
}

// Transact implements chain.Client.
func (simulated *Chain) Transact(executionContext context.Context, role chain.Role, call chain.Call) (chain.Receipt, error) {
	if contextError := executionContext.Err(); contextError != nil {
		return chain.Receipt{}, contextError
	}
	if encodeError := encodeCall(call); encodeError != nil {
		return chain.Receipt{}, encodeError
	}

	simulated.mutex.Lock()
	defer simulated.mutex.Unlock()

	sender, senderError := simulated.sender(role)
	if senderError != nil {
		return chain.Receipt{}, senderError
	}
	if failure, exists := simulated.failures[call.Function.Signature]; exists {
		return chain.Receipt{}, fmt.Errorf(injectedFailureTemplateConstant, call.Function.Signature, failure)
	}

	state, exists := simulated.contracts[call.Target]
	if !exists {
		return chain.Receipt{}, fmt.Errorf(noContractTemplateConstant, chain.ErrTransactionReverted, call.Target.Hex())
	}
	invocation := invocation{sender: sender, target: call.Target, state: state, call: call}
	if executeError := simulated.execute(invocation); executeError != nil {
		return chain.Receipt{}, executeError
	}

	return simulated.confirm(Transaction{
		Role:      role,
		Sender:    sender,
		Target:    call.Target,
		Contract:  state.name,
		Operation: call.Function.Signature,
		Arguments: call.Arguments,
		Value:     call.Value,
	}), nil
}

// View implements chain.Client.
func (simulated *Chain) View(executionContext context.Context, call chain.Call, returns ...any) error {
	if contextError := executionContext.Err(); contextError != nil {
		return contextError
	}
	if encodeError := encodeCall(call); encodeError != nil {
		return encodeError
	}

	simulated.mutex.Lock()
	defer simulated.mutex.Unlock()

	state, exists := simulated.contracts[call.Target]
	if !exists {
		return fmt.Errorf("%w: %s", chain.ErrEmptyReturnData, call.Target.Hex())
	}
	values, viewError := simulated.read(invocation{target: call.Target, state: state, call: call})
	if viewError != nil {
		return viewError
	}
	return assign(returns, values)
}

// CodeAt implements chain.Client. Simulated contracts report a one-byte placeholder.
func (simulated *Chain) CodeAt(executionContext context.Context, address common.Address) ([]byte, error) {
	if contextError := executionContext.Err(); contextError != nil {
		return nil, contextError
	}
	simulated.mutex.Lock()
	defer simulated.mutex.Unlock()
	if _, exists := simulated.contracts[address]; exists || simulated.foreignCode[address] {
		return []byte{0x60}, nil
	}
	return nil, nil
}

// EstimateGas implements chain.Client by validating the call without applying it.
func (simulated *Chain) EstimateGas(executionContext context.Context, role chain.Role, call chain.Call) (uint64, error) {
	if contextError := executionContext.Err(); contextError != nil {
		return 0, contextError
	}
	if encodeError := encodeCall(call); encodeError != nil {
		return 0, encodeError
	}
	simulated.mutex.Lock()
	defer simulated.mutex.Unlock()
	if _, senderError := simulated.sender(role); senderError != nil {
		return 0, senderError
	}
	if _, exists := simulated.contracts[call.Target]; !exists {
		return 0, fmt.Errorf(noContractTemplateConstant, chain.ErrTransactionReverted, call.Target.Hex())
	}
	return simulatedGasConstant * uint64(len(call.Arguments)+1), nil
}

// AdvanceTime implements chain.TestNetwork.
func (simulated *Chain) AdvanceTime(executionContext context.Context, seconds uint64) error {
	if contextError := executionContext.Err(); contextError != nil {
		return contextError
	}
	simulated.mutex.Lock()
	defer simulated.mutex.Unlock()
	simulated.timestamp += seconds
	simulated.blockNumber++
	return nil
}

// LatestTimestamp implements chain.Clock.
func (simulated *Chain) LatestTimestamp(executionContext context.Context) (uint64, error) {
	if contextError := executionContext.Err(); contextError != nil {
		return 0, contextError
	}
	simulated.mutex.Lock()
	defer simulated.mutex.Unlock()
	return simulated.timestamp, nil
}

func (simulated *Chain) sender(role chain.Role) (common.Address, error) {
	address, exists := simulated.accounts[role]
	if !exists {
		return common.Address{}, fmt.Errorf(unknownRoleTemplateConstant, role)
	}
	return address, nil
}

func (simulated *Chain) confirm(transaction Transaction) chain.Receipt {
	simulated.nonces[transaction.Sender]++
	simulated.blockNumber++
	simulated.transactions = append(simulated.transactions, transaction)
	hashInput := append(transaction.Sender.Bytes(), new(big.Int).SetUint64(simulated.nonces[transaction.Sender]).Bytes()...)
	return chain.Receipt{
		TransactionHash: crypto.Keccak256Hash(hashInput),
		BlockNumber:     simulated.blockNumber,
		GasUsed:         simulatedGasConstant,
	}
}

func encodeCall(call chain.Call) error {
	if call.Function == nil {
		return errors.New(missingFunctionMessageConstant)
	}
	_, encodeError := call.Function.EncodeArgs(call.Arguments...)
	return encodeError
}

func revert(reason string) error {
	return fmt.Errorf(revertTemplateConstant, chain.ErrTransactionReverted, reason)
}

func unsupported(state *contractState, function *w3.Func) error {
	return fmt.Errorf(unsupportedCallTemplateConstant, chain.ErrTransactionReverted, state.name, function.Signature)
}
