package signature

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"hash"

	"github.com/ethereum/go-ethereum/crypto"
	"golang.org/x/crypto/blake2b"
)

// ZeroHash represents a hash code of zeros. It is used as the previous hash
// of the genesis block and as the merkle root of an empty batch.
const ZeroHash string = "0000000000000000000000000000000000000000000000000000000000000000"

// Hasher represents a named hashing strategy. Every digest in the ledger,
// transaction leaves, merkle nodes and block seals, is produced by the same
// Hasher so the chain can be re-derived end to end.
type Hasher struct {
	Name string
	New  func() hash.Hash
}

// Set of supported hash strategies. All of them produce 32 byte digests.
var (
	SHA256     = Hasher{Name: "sha256", New: sha256.New}
	Keccak256  = Hasher{Name: "keccak256", New: newKeccak256}
	Blake2b256 = Hasher{Name: "blake2b", New: newBlake2b256}
)

// HasherByName returns the hash strategy registered under the specified name.
// An empty name selects SHA256.
func HasherByName(name string) (Hasher, error) {
	switch name {
	case "", SHA256.Name:
		return SHA256, nil
	case Keccak256.Name:
		return Keccak256, nil
	case Blake2b256.Name:
		return Blake2b256, nil
	}

	return Hasher{}, fmt.Errorf("unknown hash strategy %q", name)
}

// Size returns the number of bytes in a digest.
func (h Hasher) Size() int {
	return h.New().Size()
}

// Sum returns the digest of the data.
func (h Hasher) Sum(data []byte) []byte {
	hh := h.New()
	hh.Write(data)
	return hh.Sum(nil)
}

// Hex returns the digest of the data as a lower case hex string.
func (h Hasher) Hex(data []byte) string {
	return hex.EncodeToString(h.Sum(data))
}

// Hash returns the hex digest of the canonical encoding of the value.
func (h Hasher) Hash(value any) (string, error) {
	data, err := Canonical(value)
	if err != nil {
		return "", err
	}

	return h.Hex(data), nil
}

// Canonical returns the canonical encoding of the value. Struct fields are
// encoded in declaration order and map keys are sorted, so two values with
// the same field values always produce the same bytes.
func Canonical(value any) ([]byte, error) {
	data, err := json.Marshal(value)
	if err != nil {
		return nil, fmt.Errorf("canonical encoding: %w", err)
	}

	return data, nil
}

// =============================================================================

func newKeccak256() hash.Hash {
	return crypto.NewKeccakState()
}

func newBlake2b256() hash.Hash {

	// New256 only fails when the key is longer than 64 bytes.
	h, _ := blake2b.New256(nil)
	return h
}
