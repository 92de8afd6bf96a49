package access

import (
	"context"
	"errors"
	"math/big"
	"testing"
	"time"
)

func TestEvaluateTimeCondition(t *testing.T) {
	now := time.Date(2026, 6, 1, 12, 0, 0, 0, time.UTC)
	identity := IdentityContext{Address: "0xaa"}

	tests := []struct {
		name      string
		value     int64
		satisfied bool
	}{
		{name: "lock elapsed", value: now.Add(-time.Minute).Unix(), satisfied: true},
		{name: "lock boundary", value: now.Unix(), satisfied: true},
		{name: "lock in future", value: now.Add(time.Minute).Unix(), satisfied: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			condition := Condition{
				Kind: KindTime, ChainID: 1,
				Comparator: CompareGreaterOrEqual,
				Value:      big.NewInt(tt.value).String(),
			}

			err := EvaluateCondition(context.Background(), condition, identity, now)
			if tt.satisfied && err != nil {
				t.Fatalf("EvaluateCondition returned error: %v", err)
			}
			if !tt.satisfied && !errors.Is(err, ErrConditionNotSatisfied) {
				t.Fatalf("EvaluateCondition error = %v, want ErrConditionNotSatisfied", err)
			}
		})
	}
}

func TestEvaluateERC721Ownership(t *testing.T) {
	chain := NewStaticChainReader()
	chain.SetTokenOwner(137, "0xNFT", "42", "0xAA")

	condition := Condition{
		Kind: KindERC721Ownership, ChainID: 137,
		Comparator: CompareEqual, Value: "1",
		ContractAddress: "0xNFT", TokenID: "42",
	}

	// Ownership comparison is case-insensitive over hex addresses.
	owner := IdentityContext{Address: "0xaa", Chain: chain}
	if err := EvaluateCondition(context.Background(), condition, owner, time.Now()); err != nil {
		t.Fatalf("EvaluateCondition for owner returned error: %v", err)
	}

	stranger := IdentityContext{Address: "0xbb", Chain: chain}
	err := EvaluateCondition(context.Background(), condition, stranger, time.Now())
	if !errors.Is(err, ErrConditionNotSatisfied) {
		t.Fatalf("EvaluateCondition for stranger error = %v, want ErrConditionNotSatisfied", err)
	}
}

func TestEvaluateERC20AndERC1155Balances(t *testing.T) {
	chain := NewStaticChainReader()
	chain.SetTokenBalance(1, "0xToken", "0xaa", big.NewInt(250))
	chain.SetTokenHolding(1, "0xMulti", "0xaa", "7", big.NewInt(3))
	identity := IdentityContext{Address: "0xaa", Chain: chain}

	erc20 := Condition{
		Kind: KindERC20Balance, ChainID: 1,
		Comparator: CompareGreaterOrEqual, Value: "100",
		ContractAddress: "0xToken",
	}
	if err := EvaluateCondition(context.Background(), erc20, identity, time.Now()); err != nil {
		t.Fatalf("ERC20 evaluation returned error: %v", err)
	}

	erc20.Value = "1000"
	if err := EvaluateCondition(context.Background(), erc20, identity, time.Now()); !errors.Is(err, ErrConditionNotSatisfied) {
		t.Fatalf("ERC20 over-threshold error = %v, want ErrConditionNotSatisfied", err)
	}

	erc1155 := Condition{
		Kind: KindERC1155Balance, ChainID: 1,
		Comparator: CompareGreaterOrEqual, Value: "1",
		ContractAddress: "0xMulti", TokenID: "7",
	}
	if err := EvaluateCondition(context.Background(), erc1155, identity, time.Now()); err != nil {
		t.Fatalf("ERC1155 evaluation returned error: %v", err)
	}
}

func TestEvaluateWithoutChainState(t *testing.T) {
	condition := Condition{
		Kind: KindEtherBalance, ChainID: 1,
		Comparator: CompareGreaterOrEqual, Value: "1",
	}
	identity := IdentityContext{Address: "0xaa"}

	err := EvaluateCondition(context.Background(), condition, identity, time.Now())
	if !errors.Is(err, ErrConditionNotSatisfied) {
		t.Fatalf("EvaluateCondition error = %v, want ErrConditionNotSatisfied", err)
	}
}

func TestEvaluateRequiresIdentity(t *testing.T) {
	condition := Condition{
		Kind: KindTime, ChainID: 1,
		Comparator: CompareGreaterOrEqual, Value: "1",
	}

	err := EvaluateCondition(context.Background(), condition, IdentityContext{}, time.Now())
	if !errors.Is(err, ErrNoIdentity) {
		t.Fatalf("EvaluateCondition error = %v, want ErrNoIdentity", err)
	}
}
