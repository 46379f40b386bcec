package namemigration

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"slices"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/lmittmann/w3"
	"go.uber.org/zap"

	"github.com/temirov/ensmigrate/internal/chain"
	"github.com/temirov/ensmigrate/internal/contracts"
	"github.com/temirov/ensmigrate/internal/migrationerrors"
)

// Category classifies a label by the registrar currently holding it.
type Category string

// Label categories, in the order they are checked.
const (
	CategoryMigrated     Category = "migrated"
	CategoryPermanent    Category = "permanent"
	CategoryLegacy       Category = "legacy"
	CategoryUnregistered Category = "unregistered"
)

const (
	defaultBatchSizeConstant   = 100
	defaultConcurrencyConstant = 10
	categoriseStepConstant     = "categorise"
	discoverStepConstant       = "discover-registrars"
	migrateStepConstant        = "migrate-names"
	verifyFailedTemplate       = "verify %s: %w"
	batchFailedTemplate        = "migrate %d %s names: %w"
	missingRegistrarTemplate   = "registrar migration at %s reports no %s"
	discoveredMessage          = "Registrar migration discovered"
	skippingMessage            = "Skipping names"
	migratingMessage           = "Migrating names"
	estimatedMessage           = "Estimated migration gas"
	migratedMessage            = "Migrated names"
	unmigratedMessage          = "Name is not migrated"
	resumeSavedMessage         = "Saved resume point"
	categoryFieldName          = "category"
	countFieldName             = "count"
	gasFieldName               = "gas"
	txHashFieldName            = "tx_hash"
	labelFieldName             = "label"
	auctionFieldName           = "auction_registrar"
	oldFieldName               = "old_registrar"
	newFieldName               = "new_registrar"
	resumeFieldName            = "resume_file"
)

// Registrars are the contracts the migration contract moves names between.
type Registrars struct {
	Migration common.Address
	Auction   common.Address
	Old       common.Address
	New       common.Address
}

// Entry is a categorised label.
type Entry struct {
	Label    common.Hash
	Category Category
	Expires  uint64
}

// Summary reports a migration run.
type Summary struct {
	Migrated     map[Category]int
	Skipped      map[Category]int
	Transactions []common.Hash
	GasEstimates []uint64
}

// Options tunes a Migrator.
type Options struct {
	BatchSize   int
	Concurrency int
	DryRun      bool
	ResumeFile  string
}

// Migrator performs bulk name migration.
type Migrator struct {
	client     chain.Client
	clock      chain.Clock
	registrars Registrars
	options    Options
	logger     *zap.Logger
}

// DiscoverRegistrars reads the registrar addresses from the migration contract.
func DiscoverRegistrars(executionContext context.Context, client chain.Client, migration common.Address) (Registrars, error) {
	registrars := Registrars{Migration: migration}
	for _, view := range []struct {
		function    *w3.Func
		destination *common.Address
	}{
		{function: contracts.FuncLegacyRegistrar, destination: &registrars.Auction},
		{function: contracts.FuncOldRegistrar, destination: &registrars.Old},
		{function: contracts.FuncNewRegistrar, destination: &registrars.New},
	} {
		call := chain.Call{Target: migration, Function: view.function}
		if viewError := client.View(executionContext, call, view.destination); viewError != nil {
			return Registrars{}, migrationerrors.CallFailedError{Step: discoverStepConstant, Method: call.Label(), Target: migration.Hex(), Cause: viewError}
		}
		if *view.destination == (common.Address{}) {
			return Registrars{}, fmt.Errorf(missingRegistrarTemplate, migration.Hex(), view.function.Signature)
		}
	}
	return registrars, nil
}

// NewMigrator constructs a Migrator. A nil clock measures expiry against wall time.
func NewMigrator(client chain.Client, clock chain.Clock, registrars Registrars, options Options, logger *zap.Logger) *Migrator {
	if options.BatchSize <= 0 {
		options.BatchSize = defaultBatchSizeConstant
	}
	if options.Concurrency <= 0 {
		options.Concurrency = defaultConcurrencyConstant
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	logger.Info(discoveredMessage,
		zap.String(auctionFieldName, registrars.Auction.Hex()),
		zap.String(oldFieldName, registrars.Old.Hex()),
		zap.String(newFieldName, registrars.New.Hex()),
	)
	return &Migrator{client: client, clock: clock, registrars: registrars, options: options, logger: logger}
}

// Categorise classifies every label concurrently. The result keeps the input order.
func (migrator *Migrator) Categorise(executionContext context.Context, labels []common.Hash) ([]Entry, error) {
	now, nowError := migrator.now(executionContext)
	if nowError != nil {
		return nil, nowError
	}

	entries := make([]Entry, len(labels))
	indexes := make([]int, len(labels))
	for labelIndex := range labels {
		indexes[labelIndex] = labelIndex
	}
	categoriseError := chain.Batch(executionContext, migrator.options.Concurrency, indexes, func(batchContext context.Context, labelIndex int) error {
		entry, entryError := migrator.categorise(batchContext, labels[labelIndex], now)
		if entryError != nil {
			return entryError
		}
		entries[labelIndex] = entry
		return nil
	})
	if categoriseError != nil {
		return nil, categoriseError
	}
	return entries, nil
}

func (migrator *Migrator) categorise(executionContext context.Context, label common.Hash, now uint64) (Entry, error) {
	migratedExpiry, migratedError := migrator.nameExpires(executionContext, migrator.registrars.New, label)
	if migratedError != nil {
		return Entry{}, migratedError
	}
	if migratedExpiry > 0 {
		return Entry{Label: label, Category: CategoryMigrated, Expires: migratedExpiry}, nil
	}

	permanentExpiry, permanentError := migrator.nameExpires(executionContext, migrator.registrars.Old, label)
	if permanentError != nil {
		return Entry{}, permanentError
	}
	if permanentExpiry > now {
		return Entry{Label: label, Category: CategoryPermanent, Expires: permanentExpiry}, nil
	}

	var (
		mode             uint8
		deed             common.Address
		registrationDate = new(big.Int)
		value            = new(big.Int)
		highestBid       = new(big.Int)
	)
	call := chain.Call{Target: migrator.registrars.Auction, Function: contracts.FuncEntries, Arguments: []any{label}}
	if viewError := migrator.client.View(executionContext, call, &mode, &deed, registrationDate, value, highestBid); viewError != nil {
		return Entry{}, migrationerrors.CallFailedError{Step: categoriseStepConstant, Method: call.Label(), Target: call.Target.Hex(), Cause: viewError}
	}
	if mode == contracts.AuctionModeOwned {
		return Entry{Label: label, Category: CategoryLegacy}, nil
	}
	return Entry{Label: label, Category: CategoryUnregistered}, nil
}

func (migrator *Migrator) nameExpires(executionContext context.Context, registrar common.Address, label common.Hash) (uint64, error) {
	expiry := new(big.Int)
	call := chain.Call{Target: registrar, Function: contracts.FuncNameExpires, Arguments: []any{labelIdentifier(label)}}
	if viewError := migrator.client.View(executionContext, call, expiry); viewError != nil {
		return 0, migrationerrors.CallFailedError{Step: categoriseStepConstant, Method: call.Label(), Target: registrar.Hex(), Cause: viewError}
	}
	return expiry.Uint64(), nil
}

// Migrate categorises labels and migrates permanent and legacy names in batches. On
// failure the label preceding the earliest unmigrated label is written to the resume
// file, so resuming never skips a pending name; a complete run removes it. Dry runs
// leave the resume file untouched.
func (migrator *Migrator) Migrate(executionContext context.Context, labels []common.Hash) (Summary, error) {
	summary := Summary{Migrated: map[Category]int{}, Skipped: map[Category]int{}}

	entries, categoriseError := migrator.Categorise(executionContext, labels)
	if categoriseError != nil {
		return summary, categoriseError
	}

	settled := make([]bool, len(entries))
	for _, group := range groupByCategory(entries, migrator.options.BatchSize) {
		if group.category == CategoryMigrated || group.category == CategoryUnregistered {
			migrator.logger.Info(skippingMessage, zap.String(categoryFieldName, string(group.category)), zap.Int(countFieldName, len(group.labels)))
			summary.Skipped[group.category] += len(group.labels)
			group.settle(settled)
			continue
		}

		migrator.logger.Info(migratingMessage, zap.String(categoryFieldName, string(group.category)), zap.Int(countFieldName, len(group.labels)))
		if batchError := migrator.migrateBatch(executionContext, group, &summary); batchError != nil {
			if !migrator.options.DryRun {
				if saveError := migrator.saveProgress(labels, settled); saveError != nil {
					return summary, errors.Join(batchError, saveError)
				}
			}
			return summary, fmt.Errorf(batchFailedTemplate, len(group.labels), group.category, batchError)
		}
		summary.Migrated[group.category] += len(group.labels)
		group.settle(settled)
	}

	if migrator.options.DryRun {
		return summary, nil
	}
	return summary, deleteResumePoint(migrator.options.ResumeFile)
}

// saveProgress records the label just before the first unsettled one. When the first
// label is unsettled any existing resume point still holds and is kept.
func (migrator *Migrator) saveProgress(labels []common.Hash, settled []bool) error {
	firstPending := slices.Index(settled, false)
	if firstPending <= 0 {
		return nil
	}
	resumeAfter := labels[firstPending-1]
	if saveError := saveResumePoint(migrator.options.ResumeFile, resumeAfter); saveError != nil {
		return saveError
	}
	migrator.logger.Warn(resumeSavedMessage, zap.String(labelFieldName, resumeAfter.Hex()), zap.String(resumeFieldName, migrator.options.ResumeFile))
	return nil
}

func (migrator *Migrator) migrateBatch(executionContext context.Context, group labelGroup, summary *Summary) error {
	call := chain.Call{Target: migrator.registrars.Migration}
	switch group.category {
	case CategoryPermanent:
		identifiers := make([]*big.Int, 0, len(group.labels))
		for _, label := range group.labels {
			identifiers = append(identifiers, labelIdentifier(label))
		}
		call.Function = contracts.FuncMigrateAll
		call.Arguments = []any{identifiers}
	default:
		call.Function = contracts.FuncMigrateAllLegacy
		call.Arguments = []any{contracts.Words(group.labels)}
	}

	if migrator.options.DryRun {
		gas, estimateError := migrator.client.EstimateGas(executionContext, chain.RoleOwner, call)
		if estimateError != nil {
			return migrationerrors.CallFailedError{Step: migrateStepConstant, Method: call.Label(), Target: call.Target.Hex(), Cause: estimateError}
		}
		migrator.logger.Info(estimatedMessage, zap.String(categoryFieldName, string(group.category)), zap.Uint64(gasFieldName, gas))
		summary.GasEstimates = append(summary.GasEstimates, gas)
		return nil
	}

	receipt, transactError := migrator.client.Transact(executionContext, chain.RoleOwner, call)
	if transactError != nil {
		return migrationerrors.CallFailedError{Step: migrateStepConstant, Method: call.Label(), Target: call.Target.Hex(), Cause: transactError}
	}
	migrator.logger.Info(migratedMessage, zap.String(categoryFieldName, string(group.category)), zap.Int(countFieldName, len(group.labels)), zap.String(txHashFieldName, receipt.TransactionHash.Hex()))
	summary.Transactions = append(summary.Transactions, receipt.TransactionHash)
	return nil
}

// Verify returns the labels the replacement registrar does not know. Lookup failures are
// aggregated rather than stopping the scan.
func (migrator *Migrator) Verify(executionContext context.Context, labels []common.Hash) ([]common.Hash, error) {
	var (
		mutex      sync.Mutex
		unmigrated = make([]bool, len(labels))
		failures   []error
	)
	indexes := make([]int, len(labels))
	for labelIndex := range labels {
		indexes[labelIndex] = labelIndex
	}
	batchError := chain.Batch(executionContext, migrator.options.Concurrency, indexes, func(batchContext context.Context, labelIndex int) error {
		expiry, expiryError := migrator.nameExpires(batchContext, migrator.registrars.New, labels[labelIndex])
		if expiryError != nil {
			mutex.Lock()
			failures = append(failures, fmt.Errorf(verifyFailedTemplate, labels[labelIndex].Hex(), expiryError))
			mutex.Unlock()
			return nil
		}
		unmigrated[labelIndex] = expiry == 0
		return nil
	})
	if batchError != nil {
		return nil, batchError
	}

	var missing []common.Hash
	for labelIndex, label := range labels {
		if unmigrated[labelIndex] {
			migrator.logger.Info(unmigratedMessage, zap.String(labelFieldName, label.Hex()))
			missing = append(missing, label)
		}
	}
	return missing, errors.Join(failures...)
}

func (migrator *Migrator) now(executionContext context.Context) (uint64, error) {
	if migrator.clock == nil {
		return uint64(time.Now().Unix()), nil
	}
	return migrator.clock.LatestTimestamp(executionContext)
}

type labelGroup struct {
	category  Category
	labels    []common.Hash
	positions []int
}

func (group labelGroup) settle(settled []bool) {
	for _, position := range group.positions {
		settled[position] = true
	}
}

// groupByCategory batches entries per category. Full batches are emitted as soon as they
// fill; remainders follow in the order their category first appeared. Each group keeps the
// input positions of its labels.
func groupByCategory(entries []Entry, batchSize int) []labelGroup {
	var (
		groups  []labelGroup
		order   []Category
		pending = map[Category]*labelGroup{}
	)
	for position, entry := range entries {
		group, seen := pending[entry.Category]
		if !seen {
			order = append(order, entry.Category)
			group = &labelGroup{category: entry.Category}
			pending[entry.Category] = group
		}
		group.labels = append(group.labels, entry.Label)
		group.positions = append(group.positions, position)
		if len(group.labels) >= batchSize {
			groups = append(groups, *group)
			pending[entry.Category] = &labelGroup{category: entry.Category}
		}
	}
	for _, category := range order {
		if remaining := pending[category]; len(remaining.labels) > 0 {
			groups = append(groups, *remaining)
		}
	}
	return groups
}

func labelIdentifier(label common.Hash) *big.Int {
	return new(big.Int).SetBytes(label.Bytes())
}
