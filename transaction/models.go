// Package transaction defines the committed transaction model, posting
// digests for idempotency, and cursor tokens for history pagination.
package transaction

import (
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"github.com/dway/ledger/id"
	"github.com/dway/ledger/types"
)

// Metadata keys with engine-level meaning.
const (
	// MetaType is the mandatory transaction classification
	// ("p2p_transfer", "deposit", "revert", ...).
	MetaType = "type"

	// MetaReverts on a compensating transaction names the transaction
	// it inverts.
	MetaReverts = "reverts"

	// MetaRevertedBy on an original transaction names the compensating
	// transaction that inverted it. Set once, never cleared.
	MetaRevertedBy = "reverted_by"
)

// TypeRevert is the metadata type assigned to compensating transactions.
const TypeRevert = "revert"

// Posting is a single directed movement of one asset from a source to a
// destination account. Amount is always positive; direction is carried
// by the source/destination pair.
type Posting struct {
	Source      string `json:"source"`
	Destination string `json:"destination"`
	Asset       string `json:"asset"`
	Amount      int64  `json:"amount"`
}

// NewPosting builds a posting moving v from source to destination.
func NewPosting(source, destination string, v types.Volume) Posting {
	return Posting{
		Source:      source,
		Destination: destination,
		Asset:       v.Asset,
		Amount:      v.Amount,
	}
}

// Volume returns the moved amount as a typed volume.
func (p Posting) Volume() types.Volume {
	return types.Volume{Asset: p.Asset, Amount: p.Amount}
}

// Transaction is an immutable committed group of postings. The only
// mutation ever applied to a committed record is stamping
// MetaRevertedBy when a compensating transaction lands.
type Transaction struct {
	ID        id.TransactionID  `json:"id"`
	Reference string            `json:"reference"`
	Postings  []Posting         `json:"postings"`
	Metadata  map[string]string `json:"metadata"`
	Timestamp time.Time         `json:"timestamp"`
	Digest    string            `json:"digest"`
}

// Type returns the metadata type classification.
func (t *Transaction) Type() string {
	return t.Metadata[MetaType]
}

// Reverted reports whether a compensating transaction has inverted this one.
func (t *Transaction) Reverted() bool {
	_, ok := t.Metadata[MetaRevertedBy]
	return ok
}

// Touches reports whether any posting references the address.
func (t *Transaction) Touches(addr string) bool {
	for _, p := range t.Postings {
		if p.Source == addr || p.Destination == addr {
			return true
		}
	}
	return false
}

// Volumes returns the net per-account, per-asset balance change this
// transaction causes. Accounts whose net change is zero for an asset
// are omitted.
func (t *Transaction) Volumes() map[string]types.Balances {
	out := map[string]types.Balances{}
	apply := func(addr, asset string, delta int64) {
		b, ok := out[addr]
		if !ok {
			b = types.Balances{}
			out[addr] = b
		}
		b.Apply(asset, delta)
		if len(b) == 0 {
			delete(out, addr)
		}
	}
	for _, p := range t.Postings {
		apply(p.Source, p.Asset, -p.Amount)
		apply(p.Destination, p.Asset, p.Amount)
	}
	return out
}

// Inverse returns the postings that exactly cancel this transaction's
// effect: every posting with source and destination swapped, in the
// original order.
func (t *Transaction) Inverse() []Posting {
	out := make([]Posting, len(t.Postings))
	for i, p := range t.Postings {
		out[i] = Posting{
			Source:      p.Destination,
			Destination: p.Source,
			Asset:       p.Asset,
			Amount:      p.Amount,
		}
	}
	return out
}

// Copy returns an independent copy of the transaction.
func (t *Transaction) Copy() *Transaction {
	out := &Transaction{
		ID:        t.ID,
		Reference: t.Reference,
		Postings:  append([]Posting(nil), t.Postings...),
		Metadata:  make(map[string]string, len(t.Metadata)),
		Timestamp: t.Timestamp,
		Digest:    t.Digest,
	}
	for k, v := range t.Metadata {
		out.Metadata[k] = v
	}
	return out
}

// ──────────────────────────────────────────────────
// Payload digest
// ──────────────────────────────────────────────────

// digestEnvelope is the canonical form hashed for idempotency checks.
// Postings keep submission order; metadata is flattened to sorted
// key=value pairs so map iteration order cannot change the digest.
type digestEnvelope struct {
	Postings []Posting `json:"postings"`
	Metadata []string  `json:"metadata"`
}

// Digest returns the hex SHA-256 of the canonical payload. Two Apply
// calls with the same reference must carry the same digest to be
// treated as an idempotent replay; a differing digest is a reference
// conflict.
func Digest(postings []Posting, metadata map[string]string) string {
	pairs := make([]string, 0, len(metadata))
	for k, v := range metadata {
		pairs = append(pairs, k+"="+v)
	}
	sort.Strings(pairs)

	raw, err := json.Marshal(digestEnvelope{Postings: postings, Metadata: pairs})
	if err != nil {
		// Postings and string slices always marshal.
		panic(fmt.Sprintf("transaction: digest marshal: %v", err))
	}

	sum := sha256.Sum256(raw)
	return hex.EncodeToString(sum[:])
}

// ──────────────────────────────────────────────────
// History pagination
// ──────────────────────────────────────────────────

// ListOpts filters transaction history queries. AfterTime/AfterID come
// from a decoded cursor and select transactions strictly after that
// (timestamp, id) position in ascending commit order.
type ListOpts struct {
	Since     time.Time
	AfterTime time.Time
	AfterID   string
	Limit     int
}

// Cursor is the resume position encoded into an opaque token.
type Cursor struct {
	Timestamp time.Time `json:"ts"`
	ID        string    `json:"id"`
}

// EncodeCursor returns the opaque token for a resume position.
func EncodeCursor(c Cursor) string {
	raw, _ := json.Marshal(c)
	return base64.RawURLEncoding.EncodeToString(raw)
}

// DecodeCursor parses an opaque token produced by EncodeCursor.
func DecodeCursor(token string) (Cursor, error) {
	raw, err := base64.RawURLEncoding.DecodeString(token)
	if err != nil {
		return Cursor{}, fmt.Errorf("transaction: decode cursor: %w", err)
	}
	var c Cursor
	if err := json.Unmarshal(raw, &c); err != nil {
		return Cursor{}, fmt.Errorf("transaction: decode cursor: %w", err)
	}
	return c, nil
}
