package ledger

import (
	"fmt"
	"strconv"
	"strings"

	"golang.org/x/xerrors"
)

// EntityID is the address of an entity of the ledger in the form
// shard.realm.num.
type EntityID struct {
	Shard int64
	Realm int64
	Num   int64
}

// ParseEntityID parses the text representation of an entity. It returns an
// error wrapping ErrInvalidArgument when the text is malformed.
func ParseEntityID(text string) (EntityID, error) {
	parts := strings.Split(strings.TrimSpace(text), ".")
	if len(parts) != 3 {
		return EntityID{}, xerrors.Errorf("entity '%s' is not shard.realm.num: %w",
			text, ErrInvalidArgument)
	}

	var nums [3]int64

	for i, part := range parts {
		n, err := strconv.ParseInt(part, 10, 64)
		if err != nil || n < 0 {
			return EntityID{}, xerrors.Errorf("entity '%s' has a malformed number '%s': %w",
				text, part, ErrInvalidArgument)
		}

		nums[i] = n
	}

	return EntityID{Shard: nums[0], Realm: nums[1], Num: nums[2]}, nil
}

// String implements fmt.Stringer.
func (id EntityID) String() string {
	return fmt.Sprintf("%d.%d.%d", id.Shard, id.Realm, id.Num)
}

// MarshalText implements encoding.TextMarshaler.
func (id EntityID) MarshalText() ([]byte, error) {
	return []byte(id.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (id *EntityID) UnmarshalText(text []byte) error {
	parsed, err := ParseEntityID(string(text))
	if err != nil {
		return err
	}

	*id = parsed

	return nil
}

// IsZero returns true if the identifier is unset.
func (id EntityID) IsZero() bool {
	return id == EntityID{}
}

// AccountID is the identifier of an account that pays for transactions.
type AccountID struct {
	EntityID
}

// ParseAccountID parses the text representation of an account.
func ParseAccountID(text string) (AccountID, error) {
	id, err := ParseEntityID(text)
	if err != nil {
		return AccountID{}, xerrors.Errorf("invalid account: %w", err)
	}

	return AccountID{EntityID: id}, nil
}

// FileID is the identifier of a file stored on the ledger.
type FileID struct {
	EntityID
}

// ParseFileID parses the text representation of a file.
func ParseFileID(text string) (FileID, error) {
	id, err := ParseEntityID(text)
	if err != nil {
		return FileID{}, xerrors.Errorf("invalid file: %w", err)
	}

	return FileID{EntityID: id}, nil
}

// ContractID is the identifier of a deployed contract.
type ContractID struct {
	EntityID
}

// ParseContractID parses the text representation of a contract.
func ParseContractID(text string) (ContractID, error) {
	id, err := ParseEntityID(text)
	if err != nil {
		return ContractID{}, xerrors.Errorf("invalid contract: %w", err)
	}

	return ContractID{EntityID: id}, nil
}

// TokenID is the identifier of a token that a contract can be associated to.
type TokenID struct {
	EntityID
}
