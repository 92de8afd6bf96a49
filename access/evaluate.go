package access

import (
	"context"
	"fmt"
	"math/big"
	"strconv"
	"strings"
	"time"
)

// EvaluateCondition checks whether an identity currently satisfies a
// condition. A nil error means satisfied; ErrConditionNotSatisfied (possibly
// wrapped with a reason) means not satisfied right now.
func EvaluateCondition(ctx context.Context, c Condition, identity IdentityContext, now time.Time) error {
	if err := c.Validate(); err != nil {
		return err
	}
	if identity.Address == "" {
		return ErrNoIdentity
	}

	switch c.Kind {
	case KindTime:
		threshold, err := parseUnixSeconds(c.Value)
		if err != nil {
			return err
		}
		if !compareInt64(now.Unix(), c.Comparator, threshold) {
			return fmt.Errorf("%w: time lock until %s", ErrConditionNotSatisfied,
				time.Unix(threshold, 0).UTC().Format(time.RFC3339))
		}
		return nil

	case KindEtherBalance:
		chain, err := requireChain(identity)
		if err != nil {
			return err
		}
		balance, err := chain.Balance(ctx, c.ChainID, identity.Address)
		if err != nil {
			return fmt.Errorf("read balance: %w", err)
		}
		return compareAmountTest(balance, c)

	case KindERC20Balance:
		chain, err := requireChain(identity)
		if err != nil {
			return err
		}
		balance, err := chain.TokenBalance(ctx, c.ChainID, c.ContractAddress, identity.Address)
		if err != nil {
			return fmt.Errorf("read token balance: %w", err)
		}
		return compareAmountTest(balance, c)

	case KindERC721Ownership:
		chain, err := requireChain(identity)
		if err != nil {
			return err
		}
		owner, err := chain.TokenOwner(ctx, c.ChainID, c.ContractAddress, c.TokenID)
		if err != nil {
			return fmt.Errorf("read token owner: %w", err)
		}
		if !strings.EqualFold(owner, identity.Address) {
			return fmt.Errorf("%w: token %s not owned", ErrConditionNotSatisfied, c.TokenID)
		}
		return nil

	case KindERC1155Balance:
		chain, err := requireChain(identity)
		if err != nil {
			return err
		}
		holding, err := chain.TokenHolding(ctx, c.ChainID, c.ContractAddress, identity.Address, c.TokenID)
		if err != nil {
			return fmt.Errorf("read token holding: %w", err)
		}
		return compareAmountTest(holding, c)

	default:
		return fmt.Errorf("%w: %q", ErrUnknownKind, c.Kind)
	}
}

func requireChain(identity IdentityContext) (ChainReader, error) {
	if identity.Chain == nil {
		return nil, fmt.Errorf("%w: no chain state available", ErrConditionNotSatisfied)
	}
	return identity.Chain, nil
}

func compareAmountTest(observed *big.Int, c Condition) error {
	threshold, ok := new(big.Int).SetString(c.Value, 10)
	if !ok {
		return fmt.Errorf("access: condition value %q is not a decimal integer", c.Value)
	}
	if !compareBig(observed, c.Comparator, threshold) {
		return fmt.Errorf("%w: have %s, want %s %s",
			ErrConditionNotSatisfied, observed.String(), c.Comparator, threshold.String())
	}
	return nil
}

func compareBig(observed *big.Int, comparator string, threshold *big.Int) bool {
	cmp := observed.Cmp(threshold)
	switch comparator {
	case CompareGreaterOrEqual:
		return cmp >= 0
	case CompareGreater:
		return cmp > 0
	case CompareEqual:
		return cmp == 0
	case CompareLess:
		return cmp < 0
	case CompareLessOrEqual:
		return cmp <= 0
	default:
		return false
	}
}

func compareInt64(observed int64, comparator string, threshold int64) bool {
	switch comparator {
	case CompareGreaterOrEqual:
		return observed >= threshold
	case CompareGreater:
		return observed > threshold
	case CompareEqual:
		return observed == threshold
	case CompareLess:
		return observed < threshold
	case CompareLessOrEqual:
		return observed <= threshold
	default:
		return false
	}
}

func parseUnixSeconds(value string) (int64, error) {
	ts, err := strconv.ParseInt(value, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("access: time value %q is not a unix timestamp: %w", value, err)
	}
	return ts, nil
}
