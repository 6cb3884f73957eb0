package ledger

import "fmt"

// Accounts maps each role the invoice flows need onto a concrete account id.
// It is injected into workflows and the reconciliation engine so that no
// account id appears as a literal anywhere else.
type Accounts struct {
	Cash               AccountID
	Bank               AccountID
	Inventory          AccountID
	AccountsReceivable AccountID
	AccountsPayable    AccountID
	Sales              AccountID
	CostOfSales        AccountID
	DiscountEarned     AccountID
	DiscountGiven      AccountID
}

// DefaultAccounts returns the ids used by existing installations.
func DefaultAccounts() Accounts {
	return Accounts{
		Cash:               1,
		Bank:               2,
		Inventory:          3,
		AccountsReceivable: 4,
		AccountsPayable:    5,
		Sales:              8,
		CostOfSales:        9,
		DiscountEarned:     13,
		DiscountGiven:      14,
	}
}

// CashAccounts are the accounts through which money actually moves.
func (a Accounts) CashAccounts() []AccountID {
	return []AccountID{a.Cash, a.Bank}
}

// IsCash reports whether id is one of the cash accounts.
func (a Accounts) IsCash(id AccountID) bool {
	return id == a.Cash || id == a.Bank
}

// Validate checks that every role is assigned and no two roles share an id.
func (a Accounts) Validate() error {
	roles := []struct {
		name string
		id   AccountID
	}{
		{"cash", a.Cash},
		{"bank", a.Bank},
		{"inventory", a.Inventory},
		{"accounts_receivable", a.AccountsReceivable},
		{"accounts_payable", a.AccountsPayable},
		{"sales", a.Sales},
		{"cost_of_sales", a.CostOfSales},
		{"discount_earned", a.DiscountEarned},
		{"discount_given", a.DiscountGiven},
	}
	seen := make(map[AccountID]string, len(roles))
	for _, r := range roles {
		if r.id <= 0 {
			return fmt.Errorf("account role %s is not assigned", r.name)
		}
		if other, ok := seen[r.id]; ok {
			return fmt.Errorf("account roles %s and %s share id %d", other, r.name, r.id)
		}
		seen[r.id] = r.name
	}
	return nil
}
