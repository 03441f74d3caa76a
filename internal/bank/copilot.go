package bank

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/ledgerline/importd/internal/domain"
)

// Copilot exports one row per transaction with columns:
// date, name, amount, status, category, parent category, excluded, tags,
// type, account, account mask, note.
var copilotAdapter = Adapter{
	Name:     "copilot",
	Required: []string{"date", "name", "amount", "type"},
	Convert:  convertCopilot,
}

var copilotDateLayouts = []string{"2006-01-02", "2006-01-02 15:04:05", time.RFC3339}

func convertCopilot(row Row, userID string) (Converted, error) {
	date, err := parseDate(row.get("date"), copilotDateLayouts)
	if err != nil {
		return Converted{}, fmt.Errorf("copilot: bad date %q: %w", row.get("date"), err)
	}

	amount, err := decimal.NewFromString(row.get("amount"))
	if err != nil {
		return Converted{}, fmt.Errorf("copilot: bad amount %q: %w", row.get("amount"), err)
	}

	return Converted{
		AccountName: row.get("account"),
		Tx: domain.Transaction{
			UserID:         userID,
			Type:           copilotType(row.get("type"), amount),
			Amount:         amount.String(),
			Date:           date,
			Description:    row.get("name"),
			Category:       row.get("category"),
			ParentCategory: row.get("parent category"),
			AccountMask:    row.get("account mask"),
			Note:           row.get("note"),
			Tags:           row.get("tags"),
			Excluded:       parseBool(row.get("excluded")),
		},
	}, nil
}

// copilotType maps Copilot's type column to the canonical transaction type.
// "internal transfer" is explicit; a "regular" row is classified by sign:
// positive → income, negative → expense. Already-canonical values pass
// through unchanged.
func copilotType(raw string, amount decimal.Decimal) domain.TransactionType {
	switch raw {
	case "internal transfer", "internal_transfer":
		return domain.TransactionTransfer
	case "income":
		return domain.TransactionIncome
	case "regular", "":
		if amount.IsNegative() {
			return domain.TransactionExpense
		}
		return domain.TransactionIncome
	}

	if t := domain.TransactionType(raw); t.Valid() {
		return t
	}
	if amount.IsNegative() {
		return domain.TransactionExpense
	}
	return domain.TransactionIncome
}

func parseDate(s string, layouts []string) (time.Time, error) {
	var lastErr error
	for _, layout := range layouts {
		t, err := time.Parse(layout, s)
		if err == nil {
			return t.UTC(), nil
		}
		lastErr = err
	}
	return time.Time{}, lastErr
}
