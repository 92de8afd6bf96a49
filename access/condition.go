package access

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// Kind discriminates the supported access condition variants.
type Kind string

const (
	// KindTime gates on the chain clock reaching a unix timestamp.
	KindTime Kind = "time"
	// KindEtherBalance gates on the identity's native coin balance.
	KindEtherBalance Kind = "etherBalance"
	// KindERC20Balance gates on an ERC-20 token balance.
	KindERC20Balance Kind = "erc20Balance"
	// KindERC721Ownership gates on ownership of a specific ERC-721 token.
	KindERC721Ownership Kind = "erc721Ownership"
	// KindERC1155Balance gates on an ERC-1155 token balance.
	KindERC1155Balance Kind = "erc1155Balance"
)

// Comparator values accepted in a condition's return value test.
const (
	CompareGreaterOrEqual = ">="
	CompareGreater        = ">"
	CompareEqual          = "=="
	CompareLess           = "<"
	CompareLessOrEqual    = "<="
)

// SupportedChains maps accepted chain IDs to display names.
var SupportedChains = map[int64]string{
	1:        "Ethereum Mainnet",
	137:      "Polygon Mainnet",
	80001:    "Mumbai Testnet",
	80002:    "Amoy Testnet",
	11155111: "Sepolia Testnet",
}

var (
	// ErrUnknownKind indicates an unrecognized condition variant.
	ErrUnknownKind = errors.New("access: unknown condition kind")
	// ErrUnsupportedChain indicates a chain ID outside SupportedChains.
	ErrUnsupportedChain = errors.New("access: unsupported chain ID")
)

// Condition is a policy that must hold for an identity before an envelope
// decrypts. It is a closed tagged union: Kind selects the variant and
// determines which payload fields are meaningful.
type Condition struct {
	Kind    Kind   `json:"kind"`
	ChainID int64  `json:"chainId"`
	// Comparator and Value form the return value test: the observed
	// quantity (timestamp, balance, holding) is compared against Value.
	Comparator string `json:"comparator"`
	Value      string `json:"value"`

	// ContractAddress applies to the token kinds.
	ContractAddress string `json:"contractAddress,omitempty"`
	// TokenID applies to ERC-721 ownership and ERC-1155 balance.
	TokenID string `json:"tokenId,omitempty"`
}

// Validate checks structural correctness per variant. It does not evaluate
// the condition against any identity.
func (c Condition) Validate() error {
	if _, ok := SupportedChains[c.ChainID]; !ok {
		return fmt.Errorf("%w: %d", ErrUnsupportedChain, c.ChainID)
	}
	if err := validateComparator(c.Comparator); err != nil {
		return err
	}
	if c.Value == "" {
		return errors.New("access: condition value is required")
	}

	switch c.Kind {
	case KindTime, KindEtherBalance:
		return nil
	case KindERC20Balance:
		if c.ContractAddress == "" {
			return errors.New("access: ERC20 condition requires contract address")
		}
		return nil
	case KindERC721Ownership:
		if c.ContractAddress == "" {
			return errors.New("access: ERC721 condition requires contract address")
		}
		if c.TokenID == "" {
			return errors.New("access: ERC721 condition requires token ID")
		}
		return nil
	case KindERC1155Balance:
		if c.ContractAddress == "" {
			return errors.New("access: ERC1155 condition requires contract address")
		}
		if c.TokenID == "" {
			return errors.New("access: ERC1155 condition requires token ID")
		}
		return nil
	default:
		return fmt.Errorf("%w: %q", ErrUnknownKind, c.Kind)
	}
}

// Describe renders the shorthand the UI shows next to the composer.
func (c Condition) Describe() string {
	switch c.Kind {
	case KindTime:
		if ts, err := parseUnixSeconds(c.Value); err == nil {
			return "Time: " + time.Unix(ts, 0).UTC().Format(time.RFC822)
		}
		return "Time condition"
	case KindEtherBalance:
		return fmt.Sprintf("Ether: %s %s wei", c.Comparator, c.Value)
	case KindERC20Balance:
		return "ERC20: " + shortAddress(c.ContractAddress)
	case KindERC721Ownership:
		return "ERC721: " + shortAddress(c.ContractAddress)
	case KindERC1155Balance:
		return "ERC1155: " + shortAddress(c.ContractAddress)
	default:
		return "Unknown condition"
	}
}

// Marshal serializes the condition to the opaque string attached to
// envelopes.
func (c Condition) Marshal() (string, error) {
	if err := c.Validate(); err != nil {
		return "", err
	}
	raw, err := json.Marshal(c)
	if err != nil {
		return "", fmt.Errorf("marshal condition: %w", err)
	}
	return string(raw), nil
}

// ParseCondition deserializes and validates a serialized condition.
func ParseCondition(serialized string) (Condition, error) {
	var c Condition
	if err := json.Unmarshal([]byte(serialized), &c); err != nil {
		return Condition{}, fmt.Errorf("parse condition: %w", err)
	}
	if err := c.Validate(); err != nil {
		return Condition{}, err
	}
	return c, nil
}

func validateComparator(comparator string) error {
	switch comparator {
	case CompareGreaterOrEqual, CompareGreater, CompareEqual, CompareLess, CompareLessOrEqual:
		return nil
	default:
		return fmt.Errorf("access: invalid comparator %q", comparator)
	}
}

func shortAddress(address string) string {
	if len(address) <= 6 {
		return address
	}
	return address[:6] + "..."
}
