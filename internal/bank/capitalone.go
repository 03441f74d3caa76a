package bank

import (
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/ledgerline/importd/internal/domain"
)

// Capital One statement exports carry columns:
// Account Number, Transaction Date, Transaction Amount, Transaction Type,
// Transaction Description, Balance.
var capitalOneAdapter = Adapter{
	Name:     "capital-one",
	Required: []string{"transaction date", "transaction amount", "transaction description"},
	Convert:  convertCapitalOne,
}

var capitalOneDateLayouts = []string{"01/02/06", "01/02/2006", "2006-01-02"}

func convertCapitalOne(row Row, userID string) (Converted, error) {
	date, err := parseDate(row.get("transaction date"), capitalOneDateLayouts)
	if err != nil {
		return Converted{}, fmt.Errorf("capital-one: bad date %q: %w", row.get("transaction date"), err)
	}

	amount, err := decimal.NewFromString(row.get("transaction amount"))
	if err != nil {
		return Converted{}, fmt.Errorf("capital-one: bad amount %q: %w", row.get("transaction amount"), err)
	}

	accountNumber := row.get("account number")
	accountName := "Capital One"
	if accountNumber != "" {
		accountName = "Capital One " + accountNumber
	}

	return Converted{
		AccountName: accountName,
		Tx: domain.Transaction{
			UserID:      userID,
			Type:        capitalOneType(row.get("transaction type"), amount),
			Amount:      amount.String(),
			Date:        date,
			Description: row.get("transaction description"),
			AccountMask: lastFour(accountNumber),
		},
	}, nil
}

// capitalOneType uses the statement's explicit Credit/Debit marker when
// present, falling back to the amount sign.
func capitalOneType(raw string, amount decimal.Decimal) domain.TransactionType {
	switch raw {
	case "Credit", "credit":
		return domain.TransactionIncome
	case "Debit", "debit":
		return domain.TransactionExpense
	}
	if amount.IsNegative() {
		return domain.TransactionExpense
	}
	return domain.TransactionIncome
}
