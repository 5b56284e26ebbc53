package state

import (
	"errors"
	"fmt"
	"strings"

	"github.com/NethermindEth/committer/core/felt"
	"github.com/NethermindEth/committer/core/trie/trieutils"
)

var (
	// ErrPartialFailure is returned when some of the tries of a forest commit
	// failed. The results of the tries that succeeded are discarded.
	ErrPartialFailure     = errors.New("partial failure")
	ErrUnknownRoots       = errors.New("no roots stored for commitment")
	ErrInvalidRootsRecord = errors.New("invalid roots record")
)

// ContractError reports the failure of the commit of one contract.
type ContractError struct {
	Address felt.Address
	Err     error
}

func (e *ContractError) Error() string {
	return fmt.Sprintf("contract %s: %v", e.Address.String(), e.Err)
}

func (e *ContractError) Unwrap() error {
	return e.Err
}

// TrieError reports the failure of the commit of the contracts or the
// classes trie.
type TrieError struct {
	Trie trieutils.ID
	Err  error
}

func (e *TrieError) Error() string {
	return fmt.Sprintf("%s: %v", e.Trie, e.Err)
}

func (e *TrieError) Unwrap() error {
	return e.Err
}

// PartialFailureError names every contract, or global trie, whose commit
// failed. It matches ErrPartialFailure as well as the errors of the failed
// tries. Total counts the contracts of the diff.
type PartialFailureError struct {
	Failed []*ContractError
	Tries  []*TrieError
	Total  int
}

func (e *PartialFailureError) Error() string {
	msgs := make([]string, 0, len(e.Failed)+len(e.Tries))
	for _, failed := range e.Failed {
		msgs = append(msgs, failed.Error())
	}
	for _, failed := range e.Tries {
		msgs = append(msgs, failed.Error())
	}
	if len(e.Failed) == 0 {
		return fmt.Sprintf("%v: %s", ErrPartialFailure, strings.Join(msgs, "; "))
	}
	return fmt.Sprintf("%v: %d of %d contracts failed: %s", ErrPartialFailure, len(e.Failed), e.Total, strings.Join(msgs, "; "))
}

func (e *PartialFailureError) Unwrap() []error {
	errs := make([]error, 0, len(e.Failed)+len(e.Tries)+1)
	errs = append(errs, ErrPartialFailure)
	for _, failed := range e.Failed {
		errs = append(errs, failed)
	}
	for _, failed := range e.Tries {
		errs = append(errs, failed)
	}
	return errs
}
