package config

import (
	"github.com/shopspring/decimal"

	"github.com/erpsync/backend/internal/domain/accounting"
	"github.com/erpsync/backend/internal/domain/erp"
)

// AccountTable converts the configured location tables into the typed
// domain mapping structure.
func (c *Config) AccountTable() *accounting.AccountTable {
	table := &accounting.AccountTable{
		DefaultLocation: c.Locations.Default,
		Locations:       make(map[string]accounting.LocationConfig, len(c.Locations.Tables)),
	}

	for key, loc := range c.Locations.Tables {
		table.Locations[key] = accounting.LocationConfig{
			Type:      accounting.LocationType(loc.Type),
			Warehouse: loc.Warehouse,
			CostingCodes: erp.CostingCodes{
				Dimension1: loc.CostingCode1,
				Dimension2: loc.CostingCode2,
				Dimension3: loc.CostingCode3,
			},
			Series: accounting.SeriesConfig{
				Invoices:         loc.Series.Invoices,
				CreditNotes:      loc.Series.CreditNotes,
				IncomingPayments: loc.Series.IncomingPayments,
				OutgoingPayments: loc.Series.OutgoingPayments,
			},
			SalesPersonCode: loc.SalesPersonCode,
			GroupCode:       loc.GroupCode,
			CashAccount:     accounting.AccountRef(loc.CashAccount),
			StoreTransfers:  nestedAccountRefs(loc.StoreTransfers),
			Transfers:       accountRefs(loc.Transfers),
			Cards:           accountRefs(loc.Cards),
		}
	}
	return table
}

// FreightTable converts the configured brackets into the typed freight table
func (c *Config) FreightTable() *accounting.FreightTable {
	table := &accounting.FreightTable{
		Brackets: make(map[string]map[string]accounting.FreightBracket, len(c.Freight)),
	}
	for store, brackets := range c.Freight {
		byAmount := make(map[string]accounting.FreightBracket, len(brackets))
		for amount, bracket := range brackets {
			byAmount[amount] = accounting.FreightBracket{
				Revenue: accounting.ExpenseEntry{
					ExpenseCode: bracket.RevenueCode,
					Amount:      decimal.NewFromFloat(bracket.RevenueAmount),
				},
				Cost: accounting.ExpenseEntry{
					ExpenseCode: bracket.CostCode,
					Amount:      decimal.NewFromFloat(bracket.CostAmount),
				},
			}
		}
		table.Brackets[store] = byAmount
	}
	return table
}

func accountRefs(in map[string]string) map[string]accounting.AccountRef {
	if in == nil {
		return nil
	}
	out := make(map[string]accounting.AccountRef, len(in))
	for k, v := range in {
		out[k] = accounting.AccountRef(v)
	}
	return out
}

func nestedAccountRefs(in map[string]map[string]string) map[string]map[string]accounting.AccountRef {
	if in == nil {
		return nil
	}
	out := make(map[string]map[string]accounting.AccountRef, len(in))
	for k, v := range in {
		out[k] = accountRefs(v)
	}
	return out
}
