package state

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"slices"
	"time"

	"github.com/NethermindEth/committer/core/crypto"
	"github.com/NethermindEth/committer/core/felt"
	"github.com/NethermindEth/committer/core/trie"
	"github.com/NethermindEth/committer/core/trie/triedb"
	"github.com/NethermindEth/committer/core/trie/trienode"
	"github.com/NethermindEth/committer/core/trie/trieutils"
	"github.com/NethermindEth/committer/db"
	"github.com/NethermindEth/committer/utils"
	"github.com/sourcegraph/conc/pool"
)

type Config struct {
	// Workers bounds the number of storage tries committed concurrently,
	// zero means GOMAXPROCS
	Workers int
	// ClassesHash hashes the classes trie and its leaves
	ClassesHash crypto.HashFn
	// CommitmentHash combines the trie roots into the state commitment
	CommitmentHash crypto.ArrayHashFn
}

func DefaultConfig() Config {
	return Config{
		Workers:        runtime.GOMAXPROCS(0),
		ClassesHash:    crypto.Blake2s,
		CommitmentHash: crypto.Blake2sArray,
	}
}

// Committer computes new state commitments over the forest of tries kept in a
// content-addressed node store. Commits only read the store, nothing is
// written until Persist.
type Committer struct {
	db     *triedb.Database
	config Config
	log    utils.SimpleLogger
}

func NewCommitter(database *triedb.Database, config Config, log utils.SimpleLogger) *Committer {
	defaults := DefaultConfig()
	if config.Workers <= 0 {
		config.Workers = defaults.Workers
	}
	if config.ClassesHash == nil {
		config.ClassesHash = defaults.ClassesHash
	}
	if config.CommitmentHash == nil {
		config.CommitmentHash = defaults.CommitmentHash
	}
	return &Committer{
		db:     database,
		config: config,
		log:    log,
	}
}

func (c *Committer) StorageTrie(addr felt.Address) *trie.Trie {
	return trie.New(trieutils.StorageTrieID(addr), trie.StorageTrieHeight, crypto.Pedersen, c.db, trienode.DecodeValueLeaf)
}

func (c *Committer) ContractsTrie() *trie.Trie {
	return trie.New(trieutils.ContractsTrieID(), trie.ContractsTrieHeight, crypto.Pedersen, c.db, DecodeContractState)
}

func (c *Committer) ClassesTrie() *trie.Trie {
	return trie.New(trieutils.ClassesTrieID(), trie.ClassesTrieHeight, c.config.ClassesHash, c.db, DecodeCompiledClassLeaf)
}

type commitOptions struct {
	storageRoots bool
}

type CommitOption func(*commitOptions)

// WithStorageRoots makes Commit report the new storage root of every touched
// contract.
func WithStorageRoots() CommitOption {
	return func(o *commitOptions) {
		o.storageRoots = true
	}
}

type contractResult struct {
	address felt.Address
	state   ContractState
	storage *trienode.NodeSet
}

// Commit applies diff on top of the state with roots prev. The storage tries
// of the touched contracts are committed concurrently, then the contracts and
// classes tries. If any trie fails, the commit fails with a
// PartialFailureError and the results of the other tries are discarded.
func (c *Committer) Commit(ctx context.Context, prev Roots, diff *StateDiff, opts ...CommitOption) (*Output, error) {
	var options commitOptions
	for _, opt := range opts {
		opt(&options)
	}

	start := time.Now()
	if err := diff.Validate(); err != nil {
		commits.WithLabelValues("invalid").Inc()
		return nil, err
	}
	observePhase(phaseValidate, start)

	start = time.Now()
	contracts, err := c.commitStorage(ctx, prev, diff)
	if err != nil {
		commits.WithLabelValues("failed").Inc()
		return nil, err
	}
	observePhase(phaseStorage, start)

	start = time.Now()
	out, err := c.commitGlobal(ctx, prev, diff, contracts)
	if err != nil {
		commits.WithLabelValues("failed").Inc()
		return nil, err
	}
	observePhase(phaseGlobal, start)

	if options.storageRoots {
		out.StorageRoots = make(map[felt.Address]felt.Felt, len(contracts))
		for i := range contracts {
			out.StorageRoots[contracts[i].address] = contracts[i].state.StorageRoot
		}
	}

	commits.WithLabelValues("ok").Inc()
	c.log.Debugw("Committed state",
		"commitment", out.Commitment.String(),
		"contracts", len(contracts),
		"classes", len(diff.DeclaredClasses),
		"facts", out.Facts.Len(),
	)
	return out, nil
}

func (c *Committer) commitStorage(ctx context.Context, prev Roots, diff *StateDiff) ([]contractResult, error) {
	addresses := diff.Contracts()
	results := make([]contractResult, len(addresses))
	failures := make([]*ContractError, len(addresses))
	contractsTrie := c.ContractsTrie()

	workers := pool.New().WithErrors().WithMaxGoroutines(c.config.Workers)
	for i, addr := range addresses {
		workers.Go(func() error {
			res, err := c.commitContract(ctx, contractsTrie, prev.ContractsRoot, addr, diff)
			if err != nil {
				failures[i] = &ContractError{Address: addr, Err: err}
				return failures[i]
			}
			results[i] = *res
			return nil
		})
	}

	if err := workers.Wait(); err != nil {
		failed := slices.DeleteFunc(failures, func(e *ContractError) bool { return e == nil })
		contractsCommitted.WithLabelValues("ok").Add(float64(len(addresses) - len(failed)))
		contractsCommitted.WithLabelValues("failed").Add(float64(len(failed)))
		c.log.Warnw("Storage commit failed", "failed", len(failed), "contracts", len(addresses))
		return nil, &PartialFailureError{Failed: failed, Total: len(addresses)}
	}
	contractsCommitted.WithLabelValues("ok").Add(float64(len(addresses)))
	return results, nil
}

func (c *Committer) commitContract(ctx context.Context, contractsTrie *trie.Trie, contractsRoot felt.Felt,
	addr felt.Address, diff *StateDiff,
) (*contractResult, error) {
	state, err := contractState(ctx, contractsTrie, contractsRoot, addr)
	if err != nil {
		return nil, err
	}

	storage, err := c.StorageTrie(addr).Commit(ctx, state.StorageRoot, diff.storageUpdates(addr))
	if err != nil {
		return nil, err
	}

	state.StorageRoot = storage.Root
	if classHash, ok := diff.classHash(addr); ok {
		state.ClassHash = classHash
	}
	if nonce, ok := diff.Nonces[addr]; ok {
		state.Nonce = nonce
	}
	return &contractResult{address: addr, state: state, storage: storage.Nodes}, nil
}

// commitGlobal commits the contracts and classes tries concurrently and
// gathers the facts of the whole forest.
func (c *Committer) commitGlobal(ctx context.Context, prev Roots, diff *StateDiff, contracts []contractResult) (*Output, error) {
	facts := trienode.NewMergeNodeSet()
	updates := make([]trie.Update, len(contracts))
	for i := range contracts {
		if err := facts.Merge(contracts[i].storage); err != nil {
			return nil, err
		}
		updates[i] = trie.Update{Key: felt.Felt(contracts[i].address), Value: &contracts[i].state}
	}

	var (
		contractsRes, classesRes *trie.Result
		failures                 [2]*TrieError
	)
	tries := pool.New().WithErrors()
	tries.Go(func() error {
		var err error
		if contractsRes, err = c.ContractsTrie().Commit(ctx, prev.ContractsRoot, updates); err != nil {
			failures[0] = &TrieError{Trie: trieutils.ContractsTrieID(), Err: err}
		}
		return err
	})
	tries.Go(func() error {
		var err error
		if classesRes, err = c.ClassesTrie().Commit(ctx, prev.ClassesRoot, diff.classUpdates()); err != nil {
			failures[1] = &TrieError{Trie: trieutils.ClassesTrieID(), Err: err}
		}
		return err
	})
	if err := tries.Wait(); err != nil {
		failed := slices.DeleteFunc(failures[:], func(e *TrieError) bool { return e == nil })
		c.log.Warnw("Global commit failed", "failed", len(failed))
		return nil, &PartialFailureError{Tries: failed, Total: len(contracts)}
	}

	if err := facts.Merge(contractsRes.Nodes); err != nil {
		return nil, err
	}
	if err := facts.Merge(classesRes.Nodes); err != nil {
		return nil, err
	}

	roots := Roots{ContractsRoot: contractsRes.Root, ClassesRoot: classesRes.Root}
	return &Output{
		Roots:      roots,
		Commitment: roots.Commitment(c.config.CommitmentHash),
		Facts:      facts,
	}, nil
}

// Persist writes the facts of out together with the record that maps its
// commitment to its roots, in one atomic batch.
func (c *Committer) Persist(out *Output) error {
	start := time.Now()
	value, err := out.Roots.MarshalBinary()
	if err != nil {
		return err
	}
	if err := c.db.Write(out.Facts, triedb.Record{Key: rootsKey(&out.Commitment), Value: value}); err != nil {
		return err
	}
	observePhase(phasePersist, start)

	c.log.Infow("Persisted state", "commitment", out.Commitment.String(), "facts", out.Facts.Len())
	return nil
}

// Roots returns the roots of a persisted commitment. The zero commitment is
// the genesis state.
func (c *Committer) Roots(commitment felt.Felt) (Roots, error) {
	var roots Roots
	if commitment.IsZero() {
		return roots, nil
	}

	value, err := c.db.Get(rootsKey(&commitment))
	if err != nil {
		if errors.Is(err, db.ErrKeyNotFound) {
			return roots, fmt.Errorf("%w %s", ErrUnknownRoots, commitment.String())
		}
		return roots, err
	}
	return roots, roots.UnmarshalBinary(value)
}

// ContractState returns the committed leaf of addr, all zero if absent.
func (c *Committer) ContractState(ctx context.Context, roots Roots, addr felt.Address) (ContractState, error) {
	return contractState(ctx, c.ContractsTrie(), roots.ContractsRoot, addr)
}

// Storage returns the committed value of a storage slot, zero if absent.
func (c *Committer) Storage(ctx context.Context, roots Roots, addr felt.Address, key felt.Felt) (felt.Felt, error) {
	contract, err := c.ContractState(ctx, roots, addr)
	if err != nil {
		return felt.Zero, err
	}
	leaf, err := c.StorageTrie(addr).Get(ctx, contract.StorageRoot, key)
	if err != nil || leaf == nil {
		return felt.Zero, err
	}
	return leaf.(*trienode.ValueLeaf).Felt, nil
}

// CompiledClassHash returns the compiled class hash a class was declared
// with, zero if it was not.
func (c *Committer) CompiledClassHash(ctx context.Context, roots Roots, classHash felt.ClassHash) (felt.CasmClassHash, error) {
	leaf, err := c.ClassesTrie().Get(ctx, roots.ClassesRoot, felt.Felt(classHash))
	if err != nil || leaf == nil {
		return felt.CasmClassHash{}, err
	}
	return leaf.(*CompiledClassLeaf).CompiledClassHash, nil
}

func contractState(ctx context.Context, contractsTrie *trie.Trie, root felt.Felt, addr felt.Address) (ContractState, error) {
	leaf, err := contractsTrie.Get(ctx, root, felt.Felt(addr))
	if err != nil || leaf == nil {
		return ContractState{}, err
	}
	return *leaf.(*ContractState), nil
}
