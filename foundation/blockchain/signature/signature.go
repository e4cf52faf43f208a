// Package signature provides the hashing strategies used to seal the ledger
// and the public key sign/verify support used by the wallet layer.
package signature

import (
	"crypto/ecdsa"
	"errors"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"
)

// ledgerID is an arbitrary number added to the recovery id so signatures
// produced here can't be mistaken for Ethereum (27) or Bitcoin signatures.
const ledgerID = 29

// =============================================================================

// Sign uses the specified private key to sign the canonical encoding of
// the value.
func Sign(value any, privateKey *ecdsa.PrivateKey) (v, r, s *big.Int, err error) {

	// Prepare the data for signing.
	data, err := stamp(value)
	if err != nil {
		return nil, nil, nil, err
	}

	// Sign the hash with the private key to produce a signature.
	sig, err := crypto.Sign(data, privateKey)
	if err != nil {
		return nil, nil, nil, err
	}

	// Extract the public key from the data and the signature.
	publicKey, err := crypto.SigToPub(data, sig)
	if err != nil {
		return nil, nil, nil, err
	}

	// Check the public key extracted from the data and signature.
	rs := sig[:crypto.RecoveryIDOffset]
	if !crypto.VerifySignature(crypto.FromECDSAPub(publicKey), data, rs) {
		return nil, nil, nil, errors.New("invalid signature")
	}

	// Convert the 65 byte signature into the [R|S|V] format.
	v, r, s = toSignatureValues(sig)

	return v, r, s, nil
}

// VerifySignature verifies the signature conforms to our standards.
func VerifySignature(v, r, s *big.Int) error {

	// Check the recovery id is either 0 or 1.
	uintV := v.Uint64() - ledgerID
	if uintV != 0 && uintV != 1 {
		return errors.New("invalid recovery id")
	}

	// Check the signature values are valid.
	if !crypto.ValidateSignatureValues(byte(uintV), r, s, false) {
		return errors.New("invalid signature values")
	}

	return nil
}

// FromAddress extracts the address for the account that signed the value.
func FromAddress(value any, v, r, s *big.Int) (string, error) {

	// NOTE: If the same exact data for the given signature is not provided
	// we will get the wrong from address. The public key is recovered from
	// the data and signature, so a different payload yields a different key.

	data, err := stamp(value)
	if err != nil {
		return "", err
	}

	// Convert the [R|S|V] format into the original 65 bytes.
	sig := ToSignatureBytes(v, r, s)

	publicKey, err := crypto.SigToPub(data, sig)
	if err != nil {
		return "", err
	}

	return crypto.PubkeyToAddress(*publicKey).String(), nil
}

// SignatureString returns the signature as a hex string.
func SignatureString(v, r, s *big.Int) string {
	return hexutil.Encode(ToSignatureBytesWithLedgerID(v, r, s))
}

// ToVRSFromHexSignature converts a hex representation of the signature into
// its R, S and V parts.
func ToVRSFromHexSignature(sigStr string) (v, r, s *big.Int, err error) {
	sig, err := hexutil.Decode(sigStr)
	if err != nil {
		return nil, nil, nil, err
	}

	if len(sig) != crypto.SignatureLength {
		return nil, nil, nil, fmt.Errorf("invalid signature length %d", len(sig))
	}

	r = new(big.Int).SetBytes(sig[:32])
	s = new(big.Int).SetBytes(sig[32:64])
	v = new(big.Int).SetBytes([]byte{sig[64]})

	return v, r, s, nil
}

// =============================================================================

// stamp returns a hash of 32 bytes that represents this value with the
// ledger stamp embedded into the final hash.
func stamp(value any) ([]byte, error) {
	v, err := Canonical(value)
	if err != nil {
		return nil, err
	}

	// Hash the data into a 32 byte array. This will provide a data length
	// consistency with all data.
	txHash := crypto.Keccak256(v)

	// The stamp makes signatures produced here unique to this ledger.
	stamp := []byte("\x19Ledger Signed Message:\n32")

	return crypto.Keccak256(stamp, txHash), nil
}

// toSignatureValues converts the signature into the r, s, v values.
func toSignatureValues(sig []byte) (v, r, s *big.Int) {
	r = new(big.Int).SetBytes(sig[:32])
	s = new(big.Int).SetBytes(sig[32:64])
	v = new(big.Int).SetBytes([]byte{sig[64] + ledgerID})

	return v, r, s
}

// ToSignatureBytes converts the r, s, v values into a slice of bytes
// with the removal of the ledgerID.
func ToSignatureBytes(v, r, s *big.Int) []byte {
	sig := make([]byte, crypto.SignatureLength)

	r.FillBytes(sig[:32])
	s.FillBytes(sig[32:64])
	sig[64] = byte(v.Uint64() - ledgerID)

	return sig
}

// ToSignatureBytesWithLedgerID converts the r, s, v values into a slice of
// bytes keeping the ledger id.
func ToSignatureBytesWithLedgerID(v, r, s *big.Int) []byte {
	sig := ToSignatureBytes(v, r, s)
	sig[64] = byte(v.Uint64())

	return sig
}
