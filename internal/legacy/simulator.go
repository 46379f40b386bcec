package legacy

import (
	"context"
	"errors"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"go.uber.org/zap"

	"github.com/temirov/ensmigrate/internal/chain"
	"github.com/temirov/ensmigrate/internal/contracts"
	"github.com/temirov/ensmigrate/internal/migrationerrors"
	"github.com/temirov/ensmigrate/internal/namehash"
	"github.com/temirov/ensmigrate/internal/networks"
)

const (
	secondsPerDay                  = 24 * 60 * 60
	biddingPeriodSeconds           = 3*secondsPerDay + 1
	revealPeriodSeconds            = 2*secondsPerDay + 1
	bidSaltSeedConstant            = "foo"
	bidValueWeiConstant            = 10_000_000_000_000_000
	defaultConcurrencyConstant     = 8
	timeAdvanceMessageConstant     = "chain time cannot be advanced on this network"
	unknownFinalisedTemplate       = "finalised name %q is not among the registered names"
	advanceTimeErrorTemplate       = "advance chain time by %d seconds: %w"
	advanceTimeMethodConstant      = "evm_increaseTime"
	auctionsStartedMessageConstant = "Legacy auctions started"
	bidsSubmittedMessageConstant   = "Legacy bids submitted"
	bidsRevealedMessageConstant    = "Legacy bids revealed"
	auctionsSettledMessageConstant = "Legacy auctions finalised"
	namesFieldNameConstant         = "names"
	finalisedFieldNameConstant     = "finalised"
	registrarFieldNameConstant     = "registrar"
	countFieldNameConstant         = "count"
)

// ErrTimeAdvanceUnavailable reports an attempt to simulate auctions where chain time
// cannot be manipulated.
var ErrTimeAdvanceUnavailable = errors.New(timeAdvanceMessageConstant)

// BidSalt is the salt sealed into every simulated bid.
var BidSalt = crypto.Keccak256Hash([]byte(bidSaltSeedConstant))

// BidValue is the deposit and revealed value of every simulated bid.
func BidValue() *big.Int {
	return big.NewInt(bidValueWeiConstant)
}

// Simulator runs legacy auctions against a development chain.
type Simulator struct {
	client      chain.Client
	testNetwork chain.TestNetwork
	network     networks.Identifier
	role        chain.Role
	concurrency int
	logger      *zap.Logger
}

// SimulatorOption customizes a Simulator.
type SimulatorOption func(*Simulator)

// WithConcurrency bounds the number of bids in flight.
func WithConcurrency(concurrency int) SimulatorOption {
	return func(simulator *Simulator) {
		if concurrency > 0 {
			simulator.concurrency = concurrency
		}
	}
}

// WithLogger attaches a logger.
func WithLogger(logger *zap.Logger) SimulatorOption {
	return func(simulator *Simulator) {
		if logger != nil {
			simulator.logger = logger
		}
	}
}

// NewSimulator constructs a Simulator bidding as the owner account.
func NewSimulator(client chain.Client, testNetwork chain.TestNetwork, network networks.Identifier, options ...SimulatorOption) *Simulator {
	simulator := &Simulator{
		client:      client,
		testNetwork: testNetwork,
		network:     network,
		role:        chain.RoleOwner,
		concurrency: defaultConcurrencyConstant,
		logger:      zap.NewNop(),
	}
	for _, option := range options {
		option(simulator)
	}
	return simulator
}

// Available reports whether the simulator can advance chain time.
func (simulator *Simulator) Available() bool {
	return simulator.network.IsDevelopment() && simulator.testNetwork != nil
}

// Register runs a sealed-bid auction for every name on the auction registrar and
// finalises the subset in finalised. Unfinalised names stay owned in the auction
// registrar without a registry record.
func (simulator *Simulator) Register(executionContext context.Context, auctionRegistrar common.Address, names []string, finalised []string) error {
	if !simulator.Available() {
		return ErrTimeAdvanceUnavailable
	}

	labels := make([]common.Hash, len(names))
	labelsByName := make(map[string]common.Hash, len(names))
	for nameIndex, name := range names {
		labels[nameIndex] = namehash.LabelHash(name)
		labelsByName[name] = labels[nameIndex]
	}
	finalisedLabels := make([]common.Hash, 0, len(finalised))
	for _, name := range finalised {
		label, registered := labelsByName[name]
		if !registered {
			return fmt.Errorf(unknownFinalisedTemplate, name)
		}
		finalisedLabels = append(finalisedLabels, label)
	}

	bidder := simulator.client.Account(simulator.role)
	value := BidValue()
	logger := simulator.logger.With(zap.String(registrarFieldNameConstant, auctionRegistrar.Hex()))

	seals := make([]common.Hash, len(labels))
	indexes := make([]int, len(labels))
	for labelIndex := range labels {
		indexes[labelIndex] = labelIndex
	}
	sealError := chain.Batch(executionContext, simulator.concurrency, indexes, func(batchContext context.Context, labelIndex int) error {
		call := chain.Call{Target: auctionRegistrar, Function: contracts.FuncShaBid, Arguments: []any{labels[labelIndex], bidder, value, BidSalt}}
		if viewError := simulator.client.View(batchContext, call, &seals[labelIndex]); viewError != nil {
			return simulator.callFailed(call, viewError)
		}
		return nil
	})
	if sealError != nil {
		return sealError
	}

	if transactError := simulator.transact(executionContext, chain.Call{Target: auctionRegistrar, Function: contracts.FuncStartAuctions, Arguments: []any{contracts.Words(labels)}}); transactError != nil {
		return transactError
	}
	logger.Info(auctionsStartedMessageConstant, zap.Strings(namesFieldNameConstant, names))

	bidError := chain.Batch(executionContext, simulator.concurrency, seals, func(batchContext context.Context, seal common.Hash) error {
		return simulator.transact(batchContext, chain.Call{Target: auctionRegistrar, Function: contracts.FuncNewBid, Arguments: []any{seal}, Value: value})
	})
	if bidError != nil {
		return bidError
	}
	logger.Info(bidsSubmittedMessageConstant, zap.Int(countFieldNameConstant, len(seals)))

	if advanceError := simulator.advance(executionContext, biddingPeriodSeconds); advanceError != nil {
		return advanceError
	}

	unsealError := chain.Batch(executionContext, simulator.concurrency, labels, func(batchContext context.Context, label common.Hash) error {
		return simulator.transact(batchContext, chain.Call{Target: auctionRegistrar, Function: contracts.FuncUnsealBid, Arguments: []any{label, value, BidSalt}})
	})
	if unsealError != nil {
		return unsealError
	}
	logger.Info(bidsRevealedMessageConstant, zap.Int(countFieldNameConstant, len(labels)))

	if advanceError := simulator.advance(executionContext, revealPeriodSeconds); advanceError != nil {
		return advanceError
	}

	finaliseError := chain.Batch(executionContext, simulator.concurrency, finalisedLabels, func(batchContext context.Context, label common.Hash) error {
		return simulator.transact(batchContext, chain.Call{Target: auctionRegistrar, Function: contracts.FuncFinalizeAuction, Arguments: []any{label}})
	})
	if finaliseError != nil {
		return finaliseError
	}
	logger.Info(auctionsSettledMessageConstant, zap.Strings(finalisedFieldNameConstant, finalised))
	return nil
}

// AdvanceTime moves chain time forward by seconds.
func (simulator *Simulator) AdvanceTime(executionContext context.Context, seconds uint64) error {
	if !simulator.Available() {
		return ErrTimeAdvanceUnavailable
	}
	return simulator.advance(executionContext, seconds)
}

// LatestTimestamp reads the timestamp of the latest block.
func (simulator *Simulator) LatestTimestamp(executionContext context.Context) (uint64, error) {
	if !simulator.Available() {
		return 0, ErrTimeAdvanceUnavailable
	}
	return simulator.testNetwork.LatestTimestamp(executionContext)
}

func (simulator *Simulator) advance(executionContext context.Context, seconds uint64) error {
	if advanceError := simulator.testNetwork.AdvanceTime(executionContext, seconds); advanceError != nil {
		return migrationerrors.CallFailedError{
			Step:   simulateAuctionsStepNameConstant,
			Method: advanceTimeMethodConstant,
			Cause:  fmt.Errorf(advanceTimeErrorTemplate, seconds, advanceError),
		}
	}
	return nil
}

func (simulator *Simulator) transact(executionContext context.Context, call chain.Call) error {
	if _, transactError := simulator.client.Transact(executionContext, simulator.role, call); transactError != nil {
		return simulator.callFailed(call, transactError)
	}
	return nil
}

func (simulator *Simulator) callFailed(call chain.Call, cause error) error {
	return migrationerrors.CallFailedError{Step: simulateAuctionsStepNameConstant, Method: call.Label(), Target: call.Target.Hex(), Cause: cause}
}
