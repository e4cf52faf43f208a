package database

import (
	"bytes"
	"crypto/ecdsa"
	"encoding/json"
	"errors"
	"fmt"
	"reflect"
	"strings"
	"unicode/utf8"

	"github.com/ardanlabs/hashledger/foundation/blockchain/signature"
)

// Set of transaction types written by the ledger itself.
const (
	TypeGenesis      = "genesis"
	TypeMiningReward = "mining_reward"
)

// ErrMalformedTx is returned when a transaction can't be canonically encoded.
var ErrMalformedTx = errors.New("malformed transaction")

// ErrUnsigned is returned when a signature is verified on a transaction
// that doesn't carry one.
var ErrUnsigned = errors.New("transaction is not signed")

// =============================================================================

// Tx is an order preserving record of an amount moving between two accounts.
// Fields are declared in alphabetical order and omitted when empty, so the
// canonical encoding matches a key sorted encoding of the same record.
type Tx struct {
	Amount    int64     `json:"amount,omitempty"`    // Amount moved from the sender to the receiver.
	Data      any       `json:"data,omitempty"`      // Free form payload.
	From      AccountID `json:"from,omitempty"`      // Account sending the amount.
	Signature string    `json:"signature,omitempty"` // Wallet signature over the record without this field.
	TimeStamp float64   `json:"timestamp,omitempty"` // Time the transaction was created by the wallet.
	To        AccountID `json:"to,omitempty"`        // Account receiving the amount.
	Type      string    `json:"type,omitempty"`      // Ledger record type, empty for transfers.
}

// NewRewardTx constructs the transaction the network pays a miner.
func NewRewardTx(to AccountID, amount int64) Tx {
	return Tx{
		From:   NetworkAccount,
		To:     to,
		Amount: amount,
		Type:   TypeMiningReward,
	}
}

// GenesisTx constructs the single transaction held by the genesis block.
func GenesisTx(data string) Tx {
	return Tx{
		Type: TypeGenesis,
		Data: data,
	}
}

// MarshalJSON implements the json.Marshaler interface. Data is encoded in
// its decoded form, so a struct payload and the map it reloads as produce
// the same bytes. Text that isn't valid UTF-8 is rejected rather than
// replaced.
func (tx Tx) MarshalJSON() ([]byte, error) {
	ntx, err := tx.normalize()
	if err != nil {
		return nil, err
	}

	type fields Tx
	return json.Marshal(fields(ntx))
}

// normalize returns a copy of the transaction whose Data is what decoding
// its encoding produces. The copy shares no memory with the original.
func (tx Tx) normalize() (Tx, error) {
	if !validText(reflect.ValueOf(tx), 0) {
		return Tx{}, fmt.Errorf("%w: text is not valid utf-8", ErrMalformedTx)
	}

	if tx.Data == nil {
		return tx, nil
	}

	data, err := json.Marshal(tx.Data)
	if err != nil {
		return Tx{}, fmt.Errorf("%w: %w", ErrMalformedTx, err)
	}

	d := json.NewDecoder(bytes.NewReader(data))
	d.UseNumber()

	var v any
	if err := d.Decode(&v); err != nil {
		return Tx{}, fmt.Errorf("%w: %w", ErrMalformedTx, err)
	}
	tx.Data = v

	return tx, nil
}

// maxTextDepth bounds the walk over nested data, matching the nesting the
// json decoder accepts.
const maxTextDepth = 10000

// validText reports whether every string reachable from v, map keys
// included, is valid UTF-8.
func validText(v reflect.Value, depth int) bool {
	if depth > maxTextDepth {
		return false
	}

	switch v.Kind() {
	case reflect.String:
		return utf8.ValidString(v.String())

	case reflect.Interface, reflect.Pointer:
		if v.IsNil() {
			return true
		}
		return validText(v.Elem(), depth+1)

	case reflect.Slice, reflect.Array:
		if v.Type().Elem().Kind() == reflect.Uint8 {
			return true
		}
		for i := range v.Len() {
			if !validText(v.Index(i), depth+1) {
				return false
			}
		}

	case reflect.Map:
		iter := v.MapRange()
		for iter.Next() {
			if !validText(iter.Key(), depth+1) || !validText(iter.Value(), depth+1) {
				return false
			}
		}

	case reflect.Struct:
		t := v.Type()
		for i := range v.NumField() {
			if !t.Field(i).IsExported() {
				continue
			}
			if !validText(v.Field(i), depth+1) {
				return false
			}
		}
	}

	return true
}

// cloneTxs returns copies of the transactions that share no Data with the
// originals.
func cloneTxs(txs []Tx) []Tx {
	out := make([]Tx, len(txs))
	for i, tx := range txs {
		ntx, err := tx.normalize()
		if err != nil {

			// Only transactions that normalized once are held by the ledger.
			ntx = tx
		}
		out[i] = ntx
	}
	return out
}

// Encode implements the merkle Hashable interface by returning the canonical
// encoding of the transaction.
func (tx Tx) Encode() ([]byte, error) {
	data, err := signature.Canonical(tx)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrMalformedTx, err)
	}

	return data, nil
}

// Equals implements the merkle Hashable interface. Two transactions are the
// same when their canonical encodings are the same.
func (tx Tx) Equals(otherTx Tx) bool {
	d1, err := tx.Encode()
	if err != nil {
		return false
	}

	d2, err := otherTx.Encode()
	if err != nil {
		return false
	}

	return bytes.Equal(d1, d2)
}

// Validate checks the transaction can be canonically encoded and that all
// of its text is valid UTF-8. No other checks are performed since the ledger
// accepts any record shape.
func (tx Tx) Validate() error {
	_, err := tx.Encode()
	return err
}

// String implements the fmt.Stringer interface for logging.
func (tx Tx) String() string {
	if tx.Type != "" && tx.From == "" {
		return tx.Type
	}

	return fmt.Sprintf("%s->%s:%d", tx.From, tx.To, tx.Amount)
}

// =============================================================================

// Sign uses the specified private key to sign the transaction. The from
// account is set to the account of the key and the signature covers the
// canonical encoding of the transaction without the signature field.
func (tx Tx) Sign(privateKey *ecdsa.PrivateKey) (Tx, error) {
	tx.From = PublicKeyToAccountID(privateKey.PublicKey)
	tx.Signature = ""

	if !tx.To.IsAccountID() {
		return Tx{}, errors.New("to account is not properly formatted")
	}

	v, r, s, err := signature.Sign(tx, privateKey)
	if err != nil {
		return Tx{}, err
	}

	tx.Signature = signature.SignatureString(v, r, s)

	return tx, nil
}

// VerifySignature checks the signature was produced by the from account. The
// ledger never calls this, it's the job of the layer submitting transactions.
func (tx Tx) VerifySignature() error {
	if tx.Signature == "" {
		return ErrUnsigned
	}

	v, r, s, err := signature.ToVRSFromHexSignature(tx.Signature)
	if err != nil {
		return fmt.Errorf("decoding signature: %w", err)
	}

	if err := signature.VerifySignature(v, r, s); err != nil {
		return err
	}

	unsigned := tx
	unsigned.Signature = ""

	address, err := signature.FromAddress(unsigned, v, r, s)
	if err != nil {
		return err
	}

	if !strings.EqualFold(address, string(tx.From)) {
		return fmt.Errorf("signature belongs to %s, not %s", address, tx.From)
	}

	return nil
}
