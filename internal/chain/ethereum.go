package chain

import (
	"context"
	"crypto/ecdsa"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/ethereum/go-ethereum/rpc"
)

const (
	defaultConfirmationTimeoutConstant = 5 * time.Minute
	defaultPollIntervalConstant        = 2 * time.Second
	baseFeeMultiplierConstant          = 2
	estimatedGasNumeratorConstant      = 6
	estimatedGasDenominatorConstant    = 5
	increaseTimeMethodConstant         = "evm_increaseTime"
	mineMethodConstant                 = "evm_mine"

	dialErrorTemplateConstant            = "dial rpc %s: %w"
	chainIdentifierErrorTemplateConstant = "query chain id: %w"
	chainMismatchTemplateConstant        = "rpc endpoint reports chain id %d, configuration expects %d"
	keyDecodeErrorTemplateConstant       = "decode %s key: %w"
	unknownRoleTemplateConstant          = "unknown signing role %q"
	nonceErrorTemplateConstant           = "query nonce of %s: %w"
	feeErrorTemplateConstant             = "determine transaction fees: %w"
	estimateErrorTemplateConstant        = "estimate gas for %s: %w"
	signErrorTemplateConstant            = "sign transaction: %w"
	sendErrorTemplateConstant            = "send transaction: %w"
	receiptErrorTemplateConstant         = "await receipt of %s: %w"
	revertedTemplateConstant             = "%w: %s"
	bytecodeErrorTemplateConstant        = "load bytecode of %s: %w"
	callErrorTemplateConstant            = "call %s on %s: %w"
	decodeErrorTemplateConstant          = "decode %s result: %w"
	encodeErrorTemplateConstant          = "encode %s arguments: %w"
	codeErrorTemplateConstant            = "read code at %s: %w"
	increaseTimeErrorTemplateConstant    = "advance time by %d seconds: %w"
	mineErrorTemplateConstant            = "mine block: %w"
	latestHeaderErrorTemplateConstant    = "read latest block header: %w"
	missingRPCURLMessageConstant         = "rpc url is not configured"
	missingArtifactsMessageConstant      = "artifact source is not configured"
	missingFunctionMessageConstant       = "call has no function binding"
	deploymentOperationTemplateConstant  = "deploy %s"
	keyHexPrefixConstant                 = "0x"
)

// EthereumConfiguration describes how to reach and sign for a JSON-RPC node.
type EthereumConfiguration struct {
	RPCURL              string
	ChainID             uint64
	GasPrice            *big.Int
	ConfirmationTimeout time.Duration
	PollInterval        time.Duration
	OwnerKey            string
	DeploymentKey       string
	Artifacts           ArtifactSource
	Observer            TransactionObserver
}

type signingAccount struct {
	key     *ecdsa.PrivateKey
	address common.Address
	mutex   sync.Mutex
	nonce   *uint64
}

// EthereumClient implements Client and TestNetwork over go-ethereum's RPC client.
type EthereumClient struct {
	rpcClient           *rpc.Client
	client              *ethclient.Client
	signer              types.Signer
	accounts            map[Role]*signingAccount
	artifacts           ArtifactSource
	observer            TransactionObserver
	gasPrice            *big.Int
	confirmationTimeout time.Duration
	pollInterval        time.Duration
}

// DialEthereum connects to the configured endpoint and verifies its chain identifier.
func DialEthereum(executionContext context.Context, configuration EthereumConfiguration) (*EthereumClient, error) {
	if len(strings.TrimSpace(configuration.RPCURL)) == 0 {
		return nil, errors.New(missingRPCURLMessageConstant)
	}
	if configuration.Artifacts == nil {
		return nil, errors.New(missingArtifactsMessageConstant)
	}

	ownerAccount, ownerError := newSigningAccount(RoleOwner, configuration.OwnerKey)
	if ownerError != nil {
		return nil, ownerError
	}
	deploymentKey := configuration.DeploymentKey
	if len(strings.TrimSpace(deploymentKey)) == 0 {
		deploymentKey = configuration.OwnerKey
	}
	deployerAccount, deployerError := newSigningAccount(RoleDeployer, deploymentKey)
	if deployerError != nil {
		return nil, deployerError
	}
	if deployerAccount.address == ownerAccount.address {
		deployerAccount = ownerAccount
	}

	rpcClient, dialError := rpc.DialContext(executionContext, configuration.RPCURL)
	if dialError != nil {
		return nil, fmt.Errorf(dialErrorTemplateConstant, configuration.RPCURL, dialError)
	}
	client := ethclient.NewClient(rpcClient)

	chainID, chainIDError := client.ChainID(executionContext)
	if chainIDError != nil {
		client.Close()
		return nil, fmt.Errorf(chainIdentifierErrorTemplateConstant, chainIDError)
	}
	if configuration.ChainID != 0 && chainID.Uint64() != configuration.ChainID {
		client.Close()
		return nil, fmt.Errorf(chainMismatchTemplateConstant, chainID, new(big.Int).SetUint64(configuration.ChainID))
	}

	observer := configuration.Observer
	if observer == nil {
		observer = noopTransactionObserver{}
	}
	confirmationTimeout := configuration.ConfirmationTimeout
	if confirmationTimeout <= 0 {
		confirmationTimeout = defaultConfirmationTimeoutConstant
	}
	pollInterval := configuration.PollInterval
	if pollInterval <= 0 {
		pollInterval = defaultPollIntervalConstant
	}

	return &EthereumClient{
		rpcClient: rpcClient,
		client:    client,
		signer:    types.LatestSignerForChainID(chainID),
		accounts: map[Role]*signingAccount{
			RoleOwner:    ownerAccount,
			RoleDeployer: deployerAccount,
		},
		artifacts:           configuration.Artifacts,
		observer:            observer,
		gasPrice:            configuration.GasPrice,
		confirmationTimeout: confirmationTimeout,
		pollInterval:        pollInterval,
	}, nil
}

func newSigningAccount(role Role, encodedKey string) (*signingAccount, error) {
	key, keyError := crypto.HexToECDSA(strings.TrimPrefix(strings.TrimSpace(encodedKey), keyHexPrefixConstant))
	if keyError != nil {
		return nil, fmt.Errorf(keyDecodeErrorTemplateConstant, role, keyError)
	}
	return &signingAccount{key: key, address: crypto.PubkeyToAddress(key.PublicKey)}, nil
}

// Close releases the RPC connection.
func (ethereumClient *EthereumClient) Close() {
	ethereumClient.client.Close()
}

// Account returns the address signing for role, or the zero address for unknown roles.
func (ethereumClient *EthereumClient) Account(role Role) common.Address {
	account, exists := ethereumClient.accounts[role]
	if !exists {
		return common.Address{}
	}
	return account.address
}

// Deploy places a new contract instance and returns its confirmed receipt.
func (ethereumClient *EthereumClient) Deploy(executionContext context.Context, role Role, deployment Deployment) (Receipt, error) {
	bytecode, bytecodeError := ethereumClient.artifacts.Bytecode(deployment.Contract.Name)
	if bytecodeError != nil {
		return Receipt{}, fmt.Errorf(bytecodeErrorTemplateConstant, deployment.Contract.Name, bytecodeError)
	}
	encodedArguments, encodeError := deployment.Contract.EncodeConstructor(deployment.Arguments...)
	if encodeError != nil {
		return Receipt{}, encodeError
	}

	gasLimit := deployment.GasLimit
	if gasLimit == 0 {
		gasLimit = deployment.Contract.GasLimit
	}

	request := transactionRequest{
		operation: fmt.Sprintf(deploymentOperationTemplateConstant, deployment.Contract.Name),
		data:      append(append([]byte{}, bytecode...), encodedArguments...),
		gasLimit:  gasLimit,
	}
	return ethereumClient.submit(executionContext, role, request)
}

// Transact submits a state-changing call and returns its confirmed receipt.
func (ethereumClient *EthereumClient) Transact(executionContext context.Context, role Role, call Call) (Receipt, error) {
	data, encodeError := encodeCall(call)
	if encodeError != nil {
		return Receipt{}, encodeError
	}
	target := call.Target
	request := transactionRequest{
		operation: call.Label(),
		target:    &target,
		data:      data,
		value:     call.Value,
		gasLimit:  call.GasLimit,
	}
	return ethereumClient.submit(executionContext, role, request)
}

// View executes a read-only call against the latest block and decodes the results into returns.
func (ethereumClient *EthereumClient) View(executionContext context.Context, call Call, returns ...any) error {
	data, encodeError := encodeCall(call)
	if encodeError != nil {
		return encodeError
	}
	target := call.Target
	output, callError := ethereumClient.client.CallContract(executionContext, ethereum.CallMsg{To: &target, Data: data, Value: call.Value}, nil)
	if callError != nil {
		return fmt.Errorf(callErrorTemplateConstant, call.Label(), call.Target.Hex(), callError)
	}
	if len(returns) == 0 {
		return nil
	}
	if len(output) == 0 {
		return fmt.Errorf(callErrorTemplateConstant, call.Label(), call.Target.Hex(), ErrEmptyReturnData)
	}
	if decodeError := call.Function.DecodeReturns(output, returns...); decodeError != nil {
		return fmt.Errorf(decodeErrorTemplateConstant, call.Label(), decodeError)
	}
	return nil
}

// CodeAt returns the deployed code at address; the result is empty when no contract is present.
func (ethereumClient *EthereumClient) CodeAt(executionContext context.Context, address common.Address) ([]byte, error) {
	code, codeError := ethereumClient.client.CodeAt(executionContext, address, nil)
	if codeError != nil {
		return nil, fmt.Errorf(codeErrorTemplateConstant, address.Hex(), codeError)
	}
	return code, nil
}

// EstimateGas estimates the gas a call would consume when sent by role.
func (ethereumClient *EthereumClient) EstimateGas(executionContext context.Context, role Role, call Call) (uint64, error) {
	account, accountError := ethereumClient.account(role)
	if accountError != nil {
		return 0, accountError
	}
	data, encodeError := encodeCall(call)
	if encodeError != nil {
		return 0, encodeError
	}
	target := call.Target
	gas, estimateError := ethereumClient.client.EstimateGas(executionContext, ethereum.CallMsg{From: account.address, To: &target, Data: data, Value: call.Value})
	if estimateError != nil {
		return 0, fmt.Errorf(estimateErrorTemplateConstant, call.Label(), estimateError)
	}
	return gas, nil
}

// AdvanceTime moves the node clock forward and mines a block so the new time is observable.
func (ethereumClient *EthereumClient) AdvanceTime(executionContext context.Context, seconds uint64) error {
	var increaseResult any
	if increaseError := ethereumClient.rpcClient.CallContext(executionContext, &increaseResult, increaseTimeMethodConstant, seconds); increaseError != nil {
		return fmt.Errorf(increaseTimeErrorTemplateConstant, seconds, increaseError)
	}
	var mineResult any
	if mineError := ethereumClient.rpcClient.CallContext(executionContext, &mineResult, mineMethodConstant); mineError != nil {
		return fmt.Errorf(mineErrorTemplateConstant, mineError)
	}
	return nil
}

// LatestTimestamp returns the timestamp of the latest block.
func (ethereumClient *EthereumClient) LatestTimestamp(executionContext context.Context) (uint64, error) {
	header, headerError := ethereumClient.client.HeaderByNumber(executionContext, nil)
	if headerError != nil {
		return 0, fmt.Errorf(latestHeaderErrorTemplateConstant, headerError)
	}
	return header.Time, nil
}

type transactionRequest struct {
	operation string
	target    *common.Address
	data      []byte
	value     *big.Int
	gasLimit  uint64
}

func (ethereumClient *EthereumClient) account(role Role) (*signingAccount, error) {
	account, exists := ethereumClient.accounts[role]
	if !exists {
		return nil, fmt.Errorf(unknownRoleTemplateConstant, role)
	}
	return account, nil
}

func (ethereumClient *EthereumClient) submit(executionContext context.Context, role Role, request transactionRequest) (Receipt, error) {
	account, accountError := ethereumClient.account(role)
	if accountError != nil {
		return Receipt{}, accountError
	}

	event := TransactionEvent{Role: role, Account: account.address, Operation: request.operation}
	if request.target != nil {
		event.Target = *request.target
	}

	transactionHash, sendError := ethereumClient.signAndSend(executionContext, account, request)
	if sendError != nil {
		ethereumClient.observer.TransactionFailed(event, sendError)
		return Receipt{}, sendError
	}
	event.TransactionHash = transactionHash
	ethereumClient.observer.TransactionSubmitted(event)

	receipt, receiptError := ethereumClient.awaitReceipt(executionContext, transactionHash)
	if receiptError != nil {
		ethereumClient.observer.TransactionFailed(event, receiptError)
		return Receipt{}, receiptError
	}

	summary := Receipt{
		TransactionHash: transactionHash,
		ContractAddress: receipt.ContractAddress,
		GasUsed:         receipt.GasUsed,
	}
	if receipt.BlockNumber != nil {
		summary.BlockNumber = receipt.BlockNumber.Uint64()
	}
	if receipt.Status != types.ReceiptStatusSuccessful {
		revertError := fmt.Errorf(revertedTemplateConstant, ErrTransactionReverted, transactionHash.Hex())
		ethereumClient.observer.TransactionFailed(event, revertError)
		return summary, revertError
	}

	ethereumClient.observer.TransactionConfirmed(event, summary)
	return summary, nil
}

// signAndSend holds the account lock from nonce assignment until the node accepts the
// transaction so concurrent batch members never share a nonce.
func (ethereumClient *EthereumClient) signAndSend(executionContext context.Context, account *signingAccount, request transactionRequest) (common.Hash, error) {
	account.mutex.Lock()
	defer account.mutex.Unlock()

	if account.nonce == nil {
		pendingNonce, nonceError := ethereumClient.client.PendingNonceAt(executionContext, account.address)
		if nonceError != nil {
			return common.Hash{}, fmt.Errorf(nonceErrorTemplateConstant, account.address.Hex(), nonceError)
		}
		account.nonce = &pendingNonce
	}

	gasFeeCap, gasTipCap, feeError := ethereumClient.fees(executionContext)
	if feeError != nil {
		return common.Hash{}, fmt.Errorf(feeErrorTemplateConstant, feeError)
	}

	gasLimit := request.gasLimit
	if gasLimit == 0 {
		estimate, estimateError := ethereumClient.client.EstimateGas(executionContext, ethereum.CallMsg{
			From:  account.address,
			To:    request.target,
			Data:  request.data,
			Value: request.value,
		})
		if estimateError != nil {
			return common.Hash{}, fmt.Errorf(estimateErrorTemplateConstant, request.operation, estimateError)
		}
		gasLimit = estimate * estimatedGasNumeratorConstant / estimatedGasDenominatorConstant
	}

	value := request.value
	if value == nil {
		value = new(big.Int)
	}

	transaction := types.NewTx(&types.DynamicFeeTx{
		Nonce:     *account.nonce,
		To:        request.target,
		Value:     value,
		Gas:       gasLimit,
		GasFeeCap: gasFeeCap,
		GasTipCap: gasTipCap,
		Data:      request.data,
	})
	signedTransaction, signError := types.SignTx(transaction, ethereumClient.signer, account.key)
	if signError != nil {
		return common.Hash{}, fmt.Errorf(signErrorTemplateConstant, signError)
	}
	if sendError := ethereumClient.client.SendTransaction(executionContext, signedTransaction); sendError != nil {
		account.nonce = nil
		return common.Hash{}, fmt.Errorf(sendErrorTemplateConstant, sendError)
	}

	nextNonce := *account.nonce + 1
	account.nonce = &nextNonce
	return signedTransaction.Hash(), nil
}

func (ethereumClient *EthereumClient) fees(executionContext context.Context) (*big.Int, *big.Int, error) {
	if ethereumClient.gasPrice != nil && ethereumClient.gasPrice.Sign() > 0 {
		return new(big.Int).Set(ethereumClient.gasPrice), new(big.Int).Set(ethereumClient.gasPrice), nil
	}
	gasTipCap, tipError := ethereumClient.client.SuggestGasTipCap(executionContext)
	if tipError != nil {
		return nil, nil, tipError
	}
	header, headerError := ethereumClient.client.HeaderByNumber(executionContext, nil)
	if headerError != nil {
		return nil, nil, headerError
	}
	gasFeeCap := new(big.Int).Set(gasTipCap)
	if header.BaseFee != nil {
		gasFeeCap.Add(gasFeeCap, new(big.Int).Mul(header.BaseFee, big.NewInt(baseFeeMultiplierConstant)))
	}
	return gasFeeCap, gasTipCap, nil
}

func (ethereumClient *EthereumClient) awaitReceipt(executionContext context.Context, transactionHash common.Hash) (*types.Receipt, error) {
	waitContext, cancel := context.WithTimeout(executionContext, ethereumClient.confirmationTimeout)
	defer cancel()

	ticker := time.NewTicker(ethereumClient.pollInterval)
	defer ticker.Stop()

	for {
		receipt, receiptError := ethereumClient.client.TransactionReceipt(waitContext, transactionHash)
		if receiptError == nil {
			return receipt, nil
		}
		if !errors.Is(receiptError, ethereum.NotFound) {
			return nil, fmt.Errorf(receiptErrorTemplateConstant, transactionHash.Hex(), receiptError)
		}

		select {
		case <-waitContext.Done():
			return nil, fmt.Errorf(receiptErrorTemplateConstant, transactionHash.Hex(), waitContext.Err())
		case <-ticker.C:
		}
	}
}

func encodeCall(call Call) ([]byte, error) {
	if call.Function == nil {
		return nil, errors.New(missingFunctionMessageConstant)
	}
	data, encodeError := call.Function.EncodeArgs(call.Arguments...)
	if encodeError != nil {
		return nil, fmt.Errorf(encodeErrorTemplateConstant, call.Label(), encodeError)
	}
	return data, nil
}
