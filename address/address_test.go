package address_test

import (
	"errors"
	"testing"

	"github.com/dway/ledger/address"
)

func TestParseValid(t *testing.T) {
	tests := []struct {
		name string
		addr string
	}{
		{"UserWallet", "users:alice@example.com:wallet"},
		{"UserSavings", "users:bob:savings"},
		{"UserCrypto", "users:alice@example.com:crypto:BTC"},
		{"BusinessMain", "business:acme:main"},
		{"BusinessSub", "business:acme:sub:payroll"},
		{"BusinessEscrow", "business:acme:escrow"},
		{"Treasury", "treasury:ops:holdings"},
		{"Fees", "fees:platform:collected"},
		{"Liquidity", "liquidity:usd-pool:pool"},
		{"Compliance", "compliance:kyc:reserve"},
		{"VaultHot", "vault:primary:hot_storage"},
		{"VaultCold", "vault:primary:cold_storage"},
		{"External", "external:stripe:payout"},
		{"ExternalDeep", "external:formance:connector:bridge"},
		{"World", "@world"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a, err := address.Parse(tt.addr)
			if err != nil {
				t.Fatalf("Parse(%q): %v", tt.addr, err)
			}
			if a.String() != tt.addr {
				t.Errorf("String: got %q, want %q", a.String(), tt.addr)
			}
		})
	}
}

func TestParseInvalid(t *testing.T) {
	tests := []struct {
		name string
		addr string
	}{
		{"Empty", ""},
		{"UnknownNamespace", "not:a:valid"},
		{"LegacyUserMain", "users:alice@example.com:main"},
		{"UserWalletExtra", "users:alice:wallet:extra"},
		{"UserCryptoMissingAsset", "users:alice:crypto"},
		{"BusinessUnknownSuffix", "business:acme:wallet"},
		{"BusinessSubMissingName", "business:acme:sub"},
		{"TreasuryWrongSuffix", "treasury:ops:main"},
		{"VaultWrongSuffix", "vault:primary:warm_storage"},
		{"MissingSuffix", "users:alice"},
		{"BareNamespace", "users"},
		{"EmptySegment", "users::wallet"},
		{"BadCharacter", "users:al ice:wallet"},
		{"WorldWithSuffix", "@world:extra:seg"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := address.Parse(tt.addr)
			if err == nil {
				t.Fatalf("Parse(%q): expected error", tt.addr)
			}
			if !errors.Is(err, address.ErrInvalid) {
				t.Errorf("expected ErrInvalid, got %v", err)
			}
		})
	}
}

func TestNamespaceAndOwner(t *testing.T) {
	a := address.MustParse("users:alice@example.com:wallet")
	if a.Namespace() != address.NamespaceUsers {
		t.Errorf("Namespace: got %q", a.Namespace())
	}
	if a.Owner() != "alice@example.com" {
		t.Errorf("Owner: got %q", a.Owner())
	}

	w := address.MustParse("@world")
	if !w.IsWorld() {
		t.Error("expected IsWorld")
	}
	if w.Namespace() != "" {
		t.Errorf("world Namespace: got %q, want empty", w.Namespace())
	}
}

func TestCreditEnabled(t *testing.T) {
	tests := []struct {
		addr string
		want bool
	}{
		{"treasury:ops:holdings", true},
		{"fees:platform:collected", true},
		{"liquidity:usd-pool:pool", true},
		{"@world", true},
		{"users:alice:wallet", false},
		{"business:acme:main", false},
		{"vault:primary:cold_storage", false},
		{"compliance:kyc:reserve", false},
	}

	for _, tt := range tests {
		t.Run(tt.addr, func(t *testing.T) {
			a := address.MustParse(tt.addr)
			if got := a.CreditEnabled(); got != tt.want {
				t.Errorf("CreditEnabled(%q): got %v, want %v", tt.addr, got, tt.want)
			}
		})
	}
}
