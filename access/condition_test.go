package access

import (
	"errors"
	"strings"
	"testing"
)

func TestConditionValidate(t *testing.T) {
	tests := []struct {
		name      string
		condition Condition
		wantErr   bool
	}{
		{
			name: "valid time lock",
			condition: Condition{
				Kind: KindTime, ChainID: 80002,
				Comparator: CompareGreaterOrEqual, Value: "1700000000",
			},
		},
		{
			name: "valid ether balance",
			condition: Condition{
				Kind: KindEtherBalance, ChainID: 1,
				Comparator: CompareGreater, Value: "0",
			},
		},
		{
			name: "valid erc20 balance",
			condition: Condition{
				Kind: KindERC20Balance, ChainID: 137,
				Comparator: CompareGreaterOrEqual, Value: "100",
				ContractAddress: "0xToken",
			},
		},
		{
			name: "valid erc721 ownership",
			condition: Condition{
				Kind: KindERC721Ownership, ChainID: 11155111,
				Comparator: CompareEqual, Value: "1",
				ContractAddress: "0xNFT", TokenID: "42",
			},
		},
		{
			name: "valid erc1155 balance",
			condition: Condition{
				Kind: KindERC1155Balance, ChainID: 80001,
				Comparator: CompareGreaterOrEqual, Value: "1",
				ContractAddress: "0xMulti", TokenID: "7",
			},
		},
		{
			name: "unsupported chain",
			condition: Condition{
				Kind: KindTime, ChainID: 56,
				Comparator: CompareGreaterOrEqual, Value: "1700000000",
			},
			wantErr: true,
		},
		{
			name: "invalid comparator",
			condition: Condition{
				Kind: KindTime, ChainID: 1,
				Comparator: "!=", Value: "1700000000",
			},
			wantErr: true,
		},
		{
			name: "missing value",
			condition: Condition{
				Kind: KindTime, ChainID: 1, Comparator: CompareGreaterOrEqual,
			},
			wantErr: true,
		},
		{
			name: "erc20 without contract",
			condition: Condition{
				Kind: KindERC20Balance, ChainID: 1,
				Comparator: CompareGreaterOrEqual, Value: "1",
			},
			wantErr: true,
		},
		{
			name: "erc721 without token id",
			condition: Condition{
				Kind: KindERC721Ownership, ChainID: 1,
				Comparator: CompareEqual, Value: "1",
				ContractAddress: "0xNFT",
			},
			wantErr: true,
		},
		{
			name: "erc1155 without token id",
			condition: Condition{
				Kind: KindERC1155Balance, ChainID: 1,
				Comparator: CompareGreaterOrEqual, Value: "1",
				ContractAddress: "0xMulti",
			},
			wantErr: true,
		},
		{
			name: "unknown kind",
			condition: Condition{
				Kind: "quorum", ChainID: 1,
				Comparator: CompareGreaterOrEqual, Value: "1",
			},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.condition.Validate()
			if tt.wantErr && err == nil {
				t.Fatal("Validate succeeded, want error")
			}
			if !tt.wantErr && err != nil {
				t.Fatalf("Validate returned error: %v", err)
			}
		})
	}
}

func TestConditionMarshalRoundTrip(t *testing.T) {
	original := Condition{
		Kind: KindERC721Ownership, ChainID: 137,
		Comparator: CompareEqual, Value: "1",
		ContractAddress: "0xNFT", TokenID: "42",
	}

	serialized, err := original.Marshal()
	if err != nil {
		t.Fatalf("Marshal returned error: %v", err)
	}

	parsed, err := ParseCondition(serialized)
	if err != nil {
		t.Fatalf("ParseCondition returned error: %v", err)
	}
	if parsed != original {
		t.Errorf("parsed = %+v, want %+v", parsed, original)
	}
}

func TestParseConditionRejectsInvalid(t *testing.T) {
	if _, err := ParseCondition("{not json"); err == nil {
		t.Error("ParseCondition of malformed JSON succeeded, want error")
	}

	unknownKind := `{"kind":"quorum","chainId":1,"comparator":">=","value":"1"}`
	if _, err := ParseCondition(unknownKind); !errors.Is(err, ErrUnknownKind) {
		t.Errorf("ParseCondition error = %v, want ErrUnknownKind", err)
	}
}

func TestConditionDescribe(t *testing.T) {
	tests := []struct {
		name      string
		condition Condition
		want      string
	}{
		{
			name: "time lock",
			condition: Condition{
				Kind: KindTime, ChainID: 1,
				Comparator: CompareGreaterOrEqual, Value: "1700000000",
			},
			want: "Time: ",
		},
		{
			name: "ether balance",
			condition: Condition{
				Kind: KindEtherBalance, ChainID: 1,
				Comparator: CompareGreater, Value: "1000",
			},
			want: "Ether: > 1000 wei",
		},
		{
			name: "erc20",
			condition: Condition{
				Kind: KindERC20Balance, ChainID: 1,
				Comparator: CompareGreaterOrEqual, Value: "1",
				ContractAddress: "0x1234567890",
			},
			want: "ERC20: 0x1234...",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := tt.condition.Describe()
			if !strings.HasPrefix(got, tt.want) {
				t.Errorf("Describe = %q, want prefix %q", got, tt.want)
			}
		})
	}
}
