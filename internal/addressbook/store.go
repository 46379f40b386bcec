package addressbook

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"
	"gopkg.in/yaml.v3"
)

const (
	fileExtensionConstant          = ".yaml"
	temporaryPatternSuffixConstant = ".tmp-*"
	directoryPermissionsConstant   = 0o755
	filePermissionsConstant        = 0o644

	readErrorTemplateConstant       = "read address book %s: %w"
	decodeErrorTemplateConstant     = "decode address book %s: %w"
	invalidAddressTemplateConstant  = "address book %s holds an invalid address for %s: %q"
	networkMismatchTemplateConstant = "address book %s belongs to network %q"
	encodeErrorTemplateConstant     = "encode address book: %w"
	writeErrorTemplateConstant      = "write address book %s: %w"
	emptyNameMessageConstant        = "contract name must not be empty"
	emptyDirectoryMessageConstant   = "address book directory must not be empty"
	emptyNetworkMessageConstant     = "address book network must not be empty"
)

// Entry is one recorded deployment.
type Entry struct {
	Address    common.Address
	RunID      string
	RecordedAt time.Time
}

type documentEntry struct {
	Address    string    `yaml:"address"`
	RunID      string    `yaml:"run_id,omitempty"`
	RecordedAt time.Time `yaml:"recorded_at"`
}

type document struct {
	Network   string                   `yaml:"network"`
	Contracts map[string]documentEntry `yaml:"contracts"`
}

// Store is the address book of one network. It is safe for concurrent use.
type Store struct {
	mutex   sync.Mutex
	path    string
	network string
	runID   string
	entries map[string]Entry
	now     func() time.Time
}

// NewRunID returns a fresh run identifier.
func NewRunID() string {
	return uuid.NewString()
}

// Open loads the address book of network from directory, starting empty when no file exists.
func Open(directory string, network string) (*Store, error) {
	if len(strings.TrimSpace(directory)) == 0 {
		return nil, errors.New(emptyDirectoryMessageConstant)
	}
	if len(strings.TrimSpace(network)) == 0 {
		return nil, errors.New(emptyNetworkMessageConstant)
	}

	store := &Store{
		path:    filepath.Join(directory, network+fileExtensionConstant),
		network: network,
		runID:   NewRunID(),
		entries: map[string]Entry{},
		now:     time.Now,
	}

	contents, readError := os.ReadFile(store.path)
	if errors.Is(readError, os.ErrNotExist) {
		return store, nil
	}
	if readError != nil {
		return nil, fmt.Errorf(readErrorTemplateConstant, store.path, readError)
	}

	var loaded document
	if decodeError := yaml.Unmarshal(contents, &loaded); decodeError != nil {
		return nil, fmt.Errorf(decodeErrorTemplateConstant, store.path, decodeError)
	}
	if len(loaded.Network) > 0 && loaded.Network != network {
		return nil, fmt.Errorf(networkMismatchTemplateConstant, store.path, loaded.Network)
	}
	for name, entry := range loaded.Contracts {
		if !common.IsHexAddress(entry.Address) {
			return nil, fmt.Errorf(invalidAddressTemplateConstant, store.path, name, entry.Address)
		}
		store.entries[name] = Entry{
			Address:    common.HexToAddress(entry.Address),
			RunID:      entry.RunID,
			RecordedAt: entry.RecordedAt,
		}
	}
	return store, nil
}

// Path returns the backing file.
func (store *Store) Path() string {
	return store.path
}

// RunID returns the identifier stamped on entries recorded by this store.
func (store *Store) RunID() string {
	return store.runID
}

// Lookup returns the recorded address of name.
func (store *Store) Lookup(name string) (common.Address, bool) {
	store.mutex.Lock()
	defer store.mutex.Unlock()
	entry, exists := store.entries[name]
	return entry.Address, exists
}

// Entry returns the full record of name.
func (store *Store) Entry(name string) (Entry, bool) {
	store.mutex.Lock()
	defer store.mutex.Unlock()
	entry, exists := store.entries[name]
	return entry, exists
}

// Names lists recorded contract names in sorted order.
func (store *Store) Names() []string {
	store.mutex.Lock()
	defer store.mutex.Unlock()
	names := make([]string, 0, len(store.entries))
	for name := range store.entries {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Record stores the address of name, replacing any earlier entry, and persists the book.
func (store *Store) Record(name string, address common.Address) error {
	if len(strings.TrimSpace(name)) == 0 {
		return errors.New(emptyNameMessageConstant)
	}

	store.mutex.Lock()
	defer store.mutex.Unlock()

	previous, existed := store.entries[name]
	store.entries[name] = Entry{Address: address, RunID: store.runID, RecordedAt: store.now().UTC()}
	if persistError := store.persist(); persistError != nil {
		if existed {
			store.entries[name] = previous
		} else {
			delete(store.entries, name)
		}
		return persistError
	}
	return nil
}

func (store *Store) persist() error {
	serialized := document{Network: store.network, Contracts: make(map[string]documentEntry, len(store.entries))}
	for name, entry := range store.entries {
		serialized.Contracts[name] = documentEntry{
			Address:    entry.Address.Hex(),
			RunID:      entry.RunID,
			RecordedAt: entry.RecordedAt,
		}
	}

	contents, encodeError := yaml.Marshal(serialized)
	if encodeError != nil {
		return fmt.Errorf(encodeErrorTemplateConstant, encodeError)
	}

	directory := filepath.Dir(store.path)
	if mkdirError := os.MkdirAll(directory, directoryPermissionsConstant); mkdirError != nil {
		return fmt.Errorf(writeErrorTemplateConstant, store.path, mkdirError)
	}
	temporaryFile, createError := os.CreateTemp(directory, filepath.Base(store.path)+temporaryPatternSuffixConstant)
	if createError != nil {
		return fmt.Errorf(writeErrorTemplateConstant, store.path, createError)
	}
	temporaryPath := temporaryFile.Name()

	if _, writeError := temporaryFile.Write(contents); writeError != nil {
		temporaryFile.Close()
		os.Remove(temporaryPath)
		return fmt.Errorf(writeErrorTemplateConstant, store.path, writeError)
	}
	if closeError := temporaryFile.Close(); closeError != nil {
		os.Remove(temporaryPath)
		return fmt.Errorf(writeErrorTemplateConstant, store.path, closeError)
	}
	if chmodError := os.Chmod(temporaryPath, filePermissionsConstant); chmodError != nil {
		os.Remove(temporaryPath)
		return fmt.Errorf(writeErrorTemplateConstant, store.path, chmodError)
	}
	if renameError := os.Rename(temporaryPath, store.path); renameError != nil {
		os.Remove(temporaryPath)
		return fmt.Errorf(writeErrorTemplateConstant, store.path, renameError)
	}
	return nil
}
