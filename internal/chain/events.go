package chain

import (
	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"
)

const (
	logFieldRoleConstant            = "role"
	logFieldAccountConstant         = "account"
	logFieldOperationConstant       = "operation"
	logFieldTargetConstant          = "target"
	logFieldTransactionHashConstant = "tx_hash"
	logFieldContractAddressConstant = "address"
	logFieldBlockNumberConstant     = "block"
	logFieldGasUsedConstant         = "gas_used"

	transactionSubmittedMessageConstant = "transaction submitted"
	transactionConfirmedMessageConstant = "transaction confirmed"
	transactionFailedMessageConstant    = "transaction failed"
)

// TransactionEvent identifies a submitted transaction.
type TransactionEvent struct {
	Role            Role
	Account         common.Address
	Operation       string
	Target          common.Address
	TransactionHash common.Hash
}

// TransactionObserver receives lifecycle notifications for chain-mutating transactions.
type TransactionObserver interface {
	// TransactionSubmitted notifies observers that a signed transaction reached the node.
	TransactionSubmitted(event TransactionEvent)
	// TransactionConfirmed reports a successfully mined transaction.
	TransactionConfirmed(event TransactionEvent, receipt Receipt)
	// TransactionFailed reports a transaction that could not be submitted, reverted or timed out.
	TransactionFailed(event TransactionEvent, failure error)
}

type noopTransactionObserver struct{}

func (noopTransactionObserver) TransactionSubmitted(TransactionEvent) {}

func (noopTransactionObserver) TransactionConfirmed(TransactionEvent, Receipt) {}

func (noopTransactionObserver) TransactionFailed(TransactionEvent, error) {}

// LoggingTransactionObserver writes transaction lifecycle events to a zap logger.
type LoggingTransactionObserver struct {
	logger *zap.Logger
}

// NewLoggingTransactionObserver constructs an observer; a nil logger discards events.
func NewLoggingTransactionObserver(logger *zap.Logger) LoggingTransactionObserver {
	if logger == nil {
		logger = zap.NewNop()
	}
	return LoggingTransactionObserver{logger: logger}
}

// TransactionSubmitted logs submission at debug level.
func (observer LoggingTransactionObserver) TransactionSubmitted(event TransactionEvent) {
	observer.logger.Debug(transactionSubmittedMessageConstant, eventFields(event)...)
}

// TransactionConfirmed logs confirmation with the receipt details.
func (observer LoggingTransactionObserver) TransactionConfirmed(event TransactionEvent, receipt Receipt) {
	fields := eventFields(event)
	fields = append(fields,
		zap.Uint64(logFieldBlockNumberConstant, receipt.BlockNumber),
		zap.Uint64(logFieldGasUsedConstant, receipt.GasUsed),
	)
	if receipt.ContractAddress != (common.Address{}) {
		fields = append(fields, zap.String(logFieldContractAddressConstant, receipt.ContractAddress.Hex()))
	}
	observer.logger.Info(transactionConfirmedMessageConstant, fields...)
}

// TransactionFailed logs the failure at warn level.
func (observer LoggingTransactionObserver) TransactionFailed(event TransactionEvent, failure error) {
	fields := append(eventFields(event), zap.Error(failure))
	observer.logger.Warn(transactionFailedMessageConstant, fields...)
}

func eventFields(event TransactionEvent) []zap.Field {
	fields := []zap.Field{
		zap.String(logFieldRoleConstant, string(event.Role)),
		zap.String(logFieldAccountConstant, event.Account.Hex()),
		zap.String(logFieldOperationConstant, event.Operation),
	}
	if event.Target != (common.Address{}) {
		fields = append(fields, zap.String(logFieldTargetConstant, event.Target.Hex()))
	}
	if event.TransactionHash != (common.Hash{}) {
		fields = append(fields, zap.String(logFieldTransactionHashConstant, event.TransactionHash.Hex()))
	}
	return fields
}
