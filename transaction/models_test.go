package transaction

import (
	"testing"
	"time"

	"github.com/dway/ledger/id"
	"github.com/dway/ledger/types"
)

func samplePostings() []Posting {
	return []Posting{
		{Source: "users:alice:wallet", Destination: "users:bob:wallet", Asset: "USD", Amount: 2500},
		{Source: "users:bob:wallet", Destination: "fees:platform:collected", Asset: "USD", Amount: 100},
	}
}

func TestNewPosting(t *testing.T) {
	p := NewPosting("users:alice:wallet", "users:bob:wallet", types.USD(2500))

	want := Posting{
		Source:      "users:alice:wallet",
		Destination: "users:bob:wallet",
		Asset:       "USD",
		Amount:      2500,
	}
	if p != want {
		t.Errorf("got %+v, want %+v", p, want)
	}
	if !p.Volume().Equal(types.USD(2500)) {
		t.Errorf("volume round-trip: got %s", p.Volume())
	}
}

func TestDigestDeterministic(t *testing.T) {
	postings := samplePostings()
	meta := map[string]string{"type": "p2p_transfer", "note": "rent"}

	a := Digest(postings, meta)
	b := Digest(samplePostings(), map[string]string{"note": "rent", "type": "p2p_transfer"})
	if a != b {
		t.Errorf("digest should not depend on metadata map order: %s != %s", a, b)
	}
}

func TestDigestDiscriminates(t *testing.T) {
	base := Digest(samplePostings(), map[string]string{"type": "p2p_transfer"})

	tests := []struct {
		name     string
		postings []Posting
		metadata map[string]string
	}{
		{"DifferentAmount", []Posting{
			{Source: "users:alice:wallet", Destination: "users:bob:wallet", Asset: "USD", Amount: 2600},
			{Source: "users:bob:wallet", Destination: "fees:platform:collected", Asset: "USD", Amount: 100},
		}, map[string]string{"type": "p2p_transfer"}},
		{"DifferentOrder", []Posting{
			{Source: "users:bob:wallet", Destination: "fees:platform:collected", Asset: "USD", Amount: 100},
			{Source: "users:alice:wallet", Destination: "users:bob:wallet", Asset: "USD", Amount: 2500},
		}, map[string]string{"type": "p2p_transfer"}},
		{"DifferentMetadata", samplePostings(), map[string]string{"type": "deposit"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Digest(tt.postings, tt.metadata); got == base {
				t.Error("expected a different digest")
			}
		})
	}
}

func TestVolumes(t *testing.T) {
	txn := &Transaction{Postings: samplePostings()}

	vols := txn.Volumes()
	if got := vols["users:alice:wallet"].Get("USD"); got != -2500 {
		t.Errorf("alice: got %d, want -2500", got)
	}
	if got := vols["users:bob:wallet"].Get("USD"); got != 2400 {
		t.Errorf("bob: got %d, want 2400", got)
	}
	if got := vols["fees:platform:collected"].Get("USD"); got != 100 {
		t.Errorf("fees: got %d, want 100", got)
	}
}

func TestVolumesOmitsNetZero(t *testing.T) {
	txn := &Transaction{Postings: []Posting{
		{Source: "users:alice:wallet", Destination: "users:bob:wallet", Asset: "USD", Amount: 100},
		{Source: "users:bob:wallet", Destination: "users:alice:wallet", Asset: "USD", Amount: 100},
	}}

	if vols := txn.Volumes(); len(vols) != 0 {
		t.Errorf("expected empty volumes, got %v", vols)
	}
}

func TestInverseCancelsVolumes(t *testing.T) {
	txn := &Transaction{Postings: samplePostings()}
	inverse := &Transaction{Postings: txn.Inverse()}

	forward := txn.Volumes()
	backward := inverse.Volumes()

	for addr, balances := range forward {
		for asset, delta := range balances {
			if got := backward[addr].Get(asset); got != -delta {
				t.Errorf("%s/%s: inverse delta %d does not cancel %d", addr, asset, got, delta)
			}
		}
	}
}

func TestTouches(t *testing.T) {
	txn := &Transaction{Postings: samplePostings()}

	if !txn.Touches("users:alice:wallet") {
		t.Error("expected alice touched")
	}
	if !txn.Touches("fees:platform:collected") {
		t.Error("expected fees touched")
	}
	if txn.Touches("users:carol:wallet") {
		t.Error("carol should not be touched")
	}
}

func TestReverted(t *testing.T) {
	txn := &Transaction{Metadata: map[string]string{MetaType: "p2p_transfer"}}
	if txn.Reverted() {
		t.Error("fresh transaction should not be reverted")
	}

	txn.Metadata[MetaRevertedBy] = id.NewTransactionID().String()
	if !txn.Reverted() {
		t.Error("expected reverted after stamp")
	}
}

func TestCursorRoundTrip(t *testing.T) {
	c := Cursor{
		Timestamp: time.Date(2026, 3, 14, 9, 26, 53, 589793238, time.UTC),
		ID:        id.NewTransactionID().String(),
	}

	token := EncodeCursor(c)
	decoded, err := DecodeCursor(token)
	if err != nil {
		t.Fatalf("DecodeCursor: %v", err)
	}
	if !decoded.Timestamp.Equal(c.Timestamp) || decoded.ID != c.ID {
		t.Errorf("round trip mismatch: got %+v, want %+v", decoded, c)
	}
}

func TestDecodeCursorInvalid(t *testing.T) {
	for _, token := range []string{"%%%", "bm90LWpzb24"} {
		if _, err := DecodeCursor(token); err == nil {
			t.Errorf("expected error decoding %q", token)
		}
	}
}
