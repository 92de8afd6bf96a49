package access

import (
	"context"
	"fmt"
	"math/big"
	"strings"
	"sync"
)

// ChainReader answers the on-chain queries needed to evaluate conditions.
// Implementations may hit a real RPC endpoint; tests use StaticChainReader.
type ChainReader interface {
	// Balance returns the native coin balance of an address in wei.
	Balance(ctx context.Context, chainID int64, address string) (*big.Int, error)
	// TokenBalance returns an ERC-20 balance of an address.
	TokenBalance(ctx context.Context, chainID int64, contract, address string) (*big.Int, error)
	// TokenOwner returns the current owner of an ERC-721 token.
	TokenOwner(ctx context.Context, chainID int64, contract, tokenID string) (string, error)
	// TokenHolding returns an ERC-1155 balance of an address for a token ID.
	TokenHolding(ctx context.Context, chainID int64, contract, address, tokenID string) (*big.Int, error)
}

// StaticChainReader is an in-memory ChainReader seeded by setters. Absent
// entries read as zero balances and no owner.
type StaticChainReader struct {
	mu       sync.RWMutex
	balances map[string]*big.Int
	tokens   map[string]*big.Int
	owners   map[string]string
	holdings map[string]*big.Int
}

// NewStaticChainReader creates an empty static chain state.
func NewStaticChainReader() *StaticChainReader {
	return &StaticChainReader{
		balances: make(map[string]*big.Int),
		tokens:   make(map[string]*big.Int),
		owners:   make(map[string]string),
		holdings: make(map[string]*big.Int),
	}
}

// SetBalance seeds a native coin balance.
func (r *StaticChainReader) SetBalance(chainID int64, address string, balance *big.Int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.balances[chainKey(chainID, address)] = new(big.Int).Set(balance)
}

// SetTokenBalance seeds an ERC-20 balance.
func (r *StaticChainReader) SetTokenBalance(chainID int64, contract, address string, balance *big.Int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.tokens[chainKey(chainID, contract, address)] = new(big.Int).Set(balance)
}

// SetTokenOwner seeds an ERC-721 owner.
func (r *StaticChainReader) SetTokenOwner(chainID int64, contract, tokenID, owner string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.owners[chainKey(chainID, contract, tokenID)] = strings.ToLower(owner)
}

// SetTokenHolding seeds an ERC-1155 holding.
func (r *StaticChainReader) SetTokenHolding(chainID int64, contract, address, tokenID string, balance *big.Int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.holdings[chainKey(chainID, contract, address, tokenID)] = new(big.Int).Set(balance)
}

// Balance implements ChainReader.
func (r *StaticChainReader) Balance(_ context.Context, chainID int64, address string) (*big.Int, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return lookupAmount(r.balances, chainKey(chainID, address)), nil
}

// TokenBalance implements ChainReader.
func (r *StaticChainReader) TokenBalance(_ context.Context, chainID int64, contract, address string) (*big.Int, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return lookupAmount(r.tokens, chainKey(chainID, contract, address)), nil
}

// TokenOwner implements ChainReader.
func (r *StaticChainReader) TokenOwner(_ context.Context, chainID int64, contract, tokenID string) (string, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.owners[chainKey(chainID, contract, tokenID)], nil
}

// TokenHolding implements ChainReader.
func (r *StaticChainReader) TokenHolding(_ context.Context, chainID int64, contract, address, tokenID string) (*big.Int, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return lookupAmount(r.holdings, chainKey(chainID, contract, address, tokenID)), nil
}

func lookupAmount(m map[string]*big.Int, key string) *big.Int {
	if amount, ok := m[key]; ok {
		return new(big.Int).Set(amount)
	}
	return new(big.Int)
}

func chainKey(chainID int64, parts ...string) string {
	key := fmt.Sprintf("%d", chainID)
	for _, part := range parts {
		key += "|" + strings.ToLower(part)
	}
	return key
}
