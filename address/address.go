// Package address validates and inspects ledger account addresses.
//
// Addresses are colon-separated paths rooted in a recognized namespace,
// e.g. "users:alice@example.com:wallet" or "treasury:ops:holdings". The
// sentinel "@world" represents value entering or leaving the system
// boundary (issuance and redemption) and is exempt from the grammar.
//
// The grammar is enforced at posting-validation time: an address that
// does not match a recognized shape is rejected, never silently
// accepted. The canonical suffix for a user's primary account is
// "wallet"; the legacy "main" spelling under "users:" fails validation.
package address

import (
	"errors"
	"fmt"
	"strings"
)

// World is the sentinel address for value crossing the system boundary.
const World = "@world"

// Namespace constants for all recognized top-level address namespaces.
const (
	NamespaceUsers      = "users"
	NamespaceBusiness   = "business"
	NamespaceTreasury   = "treasury"
	NamespaceFees       = "fees"
	NamespaceLiquidity  = "liquidity"
	NamespaceCompliance = "compliance"
	NamespaceVault      = "vault"
	NamespaceExternal   = "external"
)

// ErrInvalid is the sentinel error for addresses that fail the grammar.
// All parse failures wrap it.
var ErrInvalid = errors.New("address: invalid")

// Address is a parsed, validated account address.
type Address struct {
	raw      string
	segments []string
}

// Parse validates an address string against the namespace grammar and
// returns the parsed form. The sentinel "@world" parses successfully
// with no segments.
func Parse(s string) (Address, error) {
	if s == World {
		return Address{raw: s}, nil
	}

	if s == "" {
		return Address{}, fmt.Errorf("%w: empty address", ErrInvalid)
	}

	segments := strings.Split(s, ":")
	for _, seg := range segments {
		if !validSegment(seg) {
			return Address{}, fmt.Errorf("%w: %q: bad segment %q", ErrInvalid, s, seg)
		}
	}

	if err := validateShape(segments); err != nil {
		return Address{}, fmt.Errorf("%w: %q: %v", ErrInvalid, s, err)
	}

	return Address{raw: s, segments: segments}, nil
}

// Validate reports whether an address string matches the grammar.
func Validate(s string) error {
	_, err := Parse(s)
	return err
}

// MustParse is like Parse but panics on error. Use for hardcoded addresses.
func MustParse(s string) Address {
	a, err := Parse(s)
	if err != nil {
		panic(fmt.Sprintf("address: must parse %q: %v", s, err))
	}
	return a
}

// String returns the raw address string.
func (a Address) String() string { return a.raw }

// IsWorld reports whether the address is the "@world" sentinel.
func (a Address) IsWorld() bool { return a.raw == World }

// Namespace returns the top-level namespace, or "" for "@world".
func (a Address) Namespace() string {
	if len(a.segments) == 0 {
		return ""
	}
	return a.segments[0]
}

// Owner returns the <id> segment, or "" for "@world".
func (a Address) Owner() string {
	if len(a.segments) < 2 {
		return ""
	}
	return a.segments[1]
}

// CreditEnabled reports whether the address lives in a namespace that
// may legitimately run a negative balance against "@world". Accounts
// outside these namespaces opt in via credit_enabled metadata instead.
func (a Address) CreditEnabled() bool {
	switch a.Namespace() {
	case NamespaceTreasury, NamespaceFees, NamespaceLiquidity:
		return true
	}
	return a.IsWorld()
}

// validSegment accepts the characters seen in platform account paths:
// alphanumerics plus "_", "-", ".", "@" (user ids are email addresses).
func validSegment(seg string) bool {
	if seg == "" {
		return false
	}
	for _, r := range seg {
		switch {
		case r >= 'a' && r <= 'z':
		case r >= 'A' && r <= 'Z':
		case r >= '0' && r <= '9':
		case r == '_' || r == '-' || r == '.' || r == '@':
		default:
			return false
		}
	}
	return true
}

// validateShape enforces the per-namespace address shapes.
func validateShape(segments []string) error {
	if len(segments) < 3 {
		return errors.New("expected namespace:<id>:<suffix>")
	}

	namespace, suffix := segments[0], segments[2]

	switch namespace {
	case NamespaceUsers:
		// users:<id>:(wallet|savings|crypto:<asset>)
		switch suffix {
		case "wallet", "savings":
			return exactLength(segments, 3)
		case "crypto":
			return exactLength(segments, 4)
		}
		return fmt.Errorf("unknown users suffix %q", suffix)

	case NamespaceBusiness:
		// business:<id>:(main|sub:<name>|escrow)
		switch suffix {
		case "main", "escrow":
			return exactLength(segments, 3)
		case "sub":
			return exactLength(segments, 4)
		}
		return fmt.Errorf("unknown business suffix %q", suffix)

	case NamespaceTreasury:
		return exactSuffix(segments, "holdings")
	case NamespaceFees:
		return exactSuffix(segments, "collected")
	case NamespaceLiquidity:
		return exactSuffix(segments, "pool")
	case NamespaceCompliance:
		return exactSuffix(segments, "reserve")

	case NamespaceVault:
		// vault:<id>:(hot|cold)_storage
		if suffix != "hot_storage" && suffix != "cold_storage" {
			return fmt.Errorf("unknown vault suffix %q", suffix)
		}
		return exactLength(segments, 3)

	case NamespaceExternal:
		// external:<id>:<suffix...> — interop escape hatch, any suffix depth
		return nil
	}

	return fmt.Errorf("unknown namespace %q", namespace)
}

func exactLength(segments []string, n int) error {
	if len(segments) != n {
		return fmt.Errorf("expected %d segments, got %d", n, len(segments))
	}
	return nil
}

func exactSuffix(segments []string, want string) error {
	if segments[2] != want {
		return fmt.Errorf("expected suffix %q, got %q", want, segments[2])
	}
	return exactLength(segments, 3)
}
