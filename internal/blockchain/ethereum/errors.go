package ethereum

import (
	"fmt"

	"github.com/ethereum/go-ethereum/common"
)

// ChainError is a failure reported by the node or a reverted transaction
type ChainError struct {
	Op       string
	Hash     common.Hash
	Reverted bool
	Block    uint64
	Err      error
}

func (e *ChainError) Error() string {
	if e.Reverted {
		return fmt.Sprintf("transaction %s reverted in block %d", e.Hash.Hex(), e.Block)
	}
	if e.Hash != (common.Hash{}) {
		return fmt.Sprintf("chain %s %s: %v", e.Op, e.Hash.Hex(), e.Err)
	}
	return fmt.Sprintf("chain %s: %v", e.Op, e.Err)
}

func (e *ChainError) Unwrap() error {
	return e.Err
}
