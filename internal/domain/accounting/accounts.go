// Package accounting holds the static per-location configuration that maps
// payment and refund instruments to ledger accounts, and the freight bracket
// table. Lookups are pure; a missing entry is an error the caller surfaces,
// never a silent fallback.
package accounting

import (
	"errors"
	"fmt"

	"github.com/erpsync/backend/internal/domain/erp"
)

// ---------------------------------------------------------------------------
// Instruments
// ---------------------------------------------------------------------------

// InstrumentKind is the class of a payment or refund instrument
type InstrumentKind string

const (
	InstrumentCash          InstrumentKind = "cash"
	InstrumentBankTransfer  InstrumentKind = "bank-transfer"
	InstrumentCardOrVoucher InstrumentKind = "card-or-voucher"
)

// IsValid returns true if the kind is a known instrument kind
func (k InstrumentKind) IsValid() bool {
	switch k {
	case InstrumentCash, InstrumentBankTransfer, InstrumentCardOrVoucher:
		return true
	default:
		return false
	}
}

// GiftCardInstrument is the canonical instrument name for gift-card
// redemption. Redemptions are mapped through this sentinel regardless of the
// gateway that reported them, so the redemption account is configured once
// per location.
const GiftCardInstrument = "GiftCard"

// CODGateway is the gateway name under which cash-on-delivery transactions
// arrive; their transfer account is keyed by courier, not by gateway.
const CODGateway = "Cash on Delivery (COD)"

// AccountRef is a ledger account reference in the ERP chart of accounts
type AccountRef string

// ---------------------------------------------------------------------------
// Errors
// ---------------------------------------------------------------------------

var (
	// ErrUnmappedInstrument means no configuration entry exists for the
	// (location, kind, name) triple. Non-retryable for the item.
	ErrUnmappedInstrument = errors.New("accounting: no account mapping for instrument")
	// ErrUnknownLocation means the location key has no configuration record
	ErrUnknownLocation = errors.New("accounting: unknown location")
)

// ---------------------------------------------------------------------------
// Location Configuration
// ---------------------------------------------------------------------------

// LocationType distinguishes online (web) locations from physical stores
type LocationType string

const (
	LocationTypeOnline LocationType = "online"
	LocationTypeStore  LocationType = "store"
)

// SeriesConfig holds the ERP numbering series per document kind for a location
type SeriesConfig struct {
	Invoices         int
	CreditNotes      int
	IncomingPayments int
	OutgoingPayments int
}

// LocationConfig is the static configuration record for one fulfillment
// location: warehouse, cost attribution, document series and the instrument
// account tables.
type LocationConfig struct {
	Type         LocationType
	Warehouse    string
	CostingCodes erp.CostingCodes
	Series       SeriesConfig
	// SalesPersonCode is the default salesperson stamped on documents
	SalesPersonCode int
	// GroupCode is the customer group for customers created from this location
	GroupCode int

	// CashAccount is the single cash account for the location
	CashAccount AccountRef
	// StoreTransfers maps storefront store key -> gateway (or courier, for
	// COD) -> transfer account. Online locations serve several stores, so
	// their transfer tables carry the extra store dimension.
	StoreTransfers map[string]map[string]AccountRef
	// Transfers is the flat gateway -> account table for store locations
	Transfers map[string]AccountRef
	// Cards is the card/voucher name -> account table
	Cards map[string]AccountRef
}

// AccountTable is the root of the typed mapping structure:
// location -> instrument kind -> instrument name -> account reference.
type AccountTable struct {
	Locations map[string]LocationConfig
	// DefaultLocation is used when an order carries no location key
	DefaultLocation string
}

// Location returns the configuration for a location key, falling back to the
// default location for empty keys.
func (t *AccountTable) Location(key string) (LocationConfig, error) {
	if key == "" {
		key = t.DefaultLocation
	}
	cfg, ok := t.Locations[key]
	if !ok {
		return LocationConfig{}, fmt.Errorf("%w: %q", ErrUnknownLocation, key)
	}
	return cfg, nil
}

// Resolve maps a (location, instrument kind, instrument name) triple to a
// ledger account. Online locations scope bank transfers by store key; store
// locations use their flat tables. Cash ignores the instrument name.
func (t *AccountTable) Resolve(storeKey, locationKey string, kind InstrumentKind, name string) (AccountRef, error) {
	cfg, err := t.Location(locationKey)
	if err != nil {
		return "", err
	}

	switch kind {
	case InstrumentCash:
		if cfg.CashAccount != "" {
			return cfg.CashAccount, nil
		}
	case InstrumentBankTransfer:
		if cfg.Type == LocationTypeOnline {
			if byGateway, ok := cfg.StoreTransfers[storeKey]; ok {
				if acct, ok := byGateway[name]; ok {
					return acct, nil
				}
			}
		} else if acct, ok := cfg.Transfers[name]; ok {
			return acct, nil
		}
	case InstrumentCardOrVoucher:
		if acct, ok := cfg.Cards[name]; ok {
			return acct, nil
		}
	}

	return "", fmt.Errorf("%w: location=%q store=%q kind=%q name=%q",
		ErrUnmappedInstrument, locationKey, storeKey, kind, name)
}
