package ledger

import (
	"context"
	"fmt"

	"github.com/dway/ledger/account"
	"github.com/dway/ledger/address"
	"github.com/dway/ledger/transaction"
	"github.com/dway/ledger/types"
)

// validatePostings is the gatekeeper in front of every commit. Checks
// run in a fixed order and short-circuit on the first failure:
//
//  1. postings non-empty
//  2. every amount positive
//  3. every address matches the grammar
//  4. source differs from destination per posting
//  5. per-asset outflows equal inflows across the whole transaction
//  6. metadata carries a non-empty type
//  7. no referenced account is closed
//  8. no non-credit-enabled account would go negative
//
// It reads the store for balance and metadata checks but never writes,
// so DryRun can reuse it for side-effect-free previews. The caller
// holds the commit lock when validating for a real commit, making the
// balance check authoritative.
//
// On success it returns the net per-account, per-asset deltas the
// transaction would cause.
func (l *Ledger) validatePostings(ctx context.Context, postings []transaction.Posting, metadata map[string]string) (map[string]types.Balances, error) {
	if len(postings) == 0 {
		return nil, validationErr(ErrEmptyPostings, "postings", "at least one posting is required")
	}

	// Each check completes across all postings before the next begins,
	// so the error class reports the first failing check, not the
	// first failing posting.
	for i, p := range postings {
		if !p.Volume().IsPositive() {
			return nil, validationErr(ErrZeroAmount, fmt.Sprintf("postings[%d].amount", i), "got %d", p.Amount)
		}
	}

	parsed := map[string]address.Address{}
	for i, p := range postings {
		for _, addr := range []string{p.Source, p.Destination} {
			if _, ok := parsed[addr]; ok {
				continue
			}
			a, err := address.Parse(addr)
			if err != nil {
				return nil, validationErr(ErrInvalidAddress, fmt.Sprintf("postings[%d]", i), "%v", err)
			}
			parsed[addr] = a
		}
	}

	for i, p := range postings {
		if p.Source == p.Destination {
			return nil, validationErr(ErrSameAccount, fmt.Sprintf("postings[%d]", i), "source and destination are both %q", p.Source)
		}
	}

	deltas := (&transaction.Transaction{Postings: postings}).Volumes()

	// Double-entry balance law: per asset, the signed deltas across all
	// accounts (including @world) must sum to zero — what leaves equals
	// what enters.
	netPerAsset := types.Balances{}
	for _, change := range deltas {
		for _, asset := range change.Assets() {
			netPerAsset.Apply(asset, change.Get(asset))
		}
	}
	if len(netPerAsset) != 0 {
		return nil, validationErr(ErrUnbalancedPosting, "postings", "per-asset net is non-zero: %v", netPerAsset)
	}

	if metadata[transaction.MetaType] == "" {
		return nil, validationErr(ErrMissingType, "metadata.type", "transactions must carry a type")
	}

	// Load every referenced account once for the closed and overdraft
	// checks. @world is boundary value, not an account.
	accounts := map[string]*account.Account{}
	for addr, a := range parsed {
		if a.IsWorld() {
			continue
		}
		acct, err := l.store.GetAccount(ctx, l.name, addr)
		if IsNotFound(err) {
			// A valid address with no history is a zero-balance
			// virtual account; it exists implicitly.
			acct = account.New(addr, nil)
		} else if err != nil {
			return nil, fmt.Errorf("%w: load account %q: %v", ErrDurability, addr, err)
		}
		if acct.Closed() {
			return nil, validationErr(ErrAccountClosed, "postings", "account %q is closed", addr)
		}
		accounts[addr] = acct
	}

	for addr, change := range deltas {
		a := parsed[addr]
		if a.IsWorld() || a.CreditEnabled() {
			continue
		}
		acct := accounts[addr]
		if acct.CreditEnabled() {
			continue
		}
		for _, asset := range change.Assets() {
			delta := change.Get(asset)
			if delta >= 0 {
				continue
			}
			if balance := acct.Balances.Get(asset); balance+delta < 0 {
				have := types.Volume{Asset: asset, Amount: balance}
				need := types.Volume{Asset: asset, Amount: -delta}
				return nil, validationErr(ErrInsufficientFunds, "postings",
					"account %q holds %s, needs %s", addr, have, need)
			}
		}
	}

	return deltas, nil
}
