package bank

import (
	"errors"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/ledgerline/importd/internal/domain"
)

func TestDetectFormat(t *testing.T) {
	cases := []struct {
		name    string
		headers []string
		want    string
	}{
		{
			"copilot",
			[]string{"date", "name", "amount", "status", "category", "type", "account"},
			"copilot",
		},
		{
			"copilot headers with padding and case",
			[]string{" Date", "Name", "AMOUNT", "Type"},
			"copilot",
		},
		{
			"capital one",
			[]string{"Account Number", "Transaction Date", "Transaction Amount", "Transaction Type", "Transaction Description", "Balance"},
			"capital-one",
		},
		{
			"unknown",
			[]string{"foo", "bar"},
			"",
		},
		{
			"partial copilot match",
			[]string{"date", "name"},
			"",
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			adapter := DetectFormat(tc.headers)
			if tc.want == "" {
				if adapter != nil {
					t.Errorf("expected no match, got %s", adapter.Name)
				}
				return
			}
			if adapter == nil || adapter.Name != tc.want {
				t.Errorf("expected %s, got %v", tc.want, adapter)
			}
		})
	}
}

func TestConvertCopilot(t *testing.T) {
	row := Row{
		"date":            "2024-03-15",
		"name":            "Coffee Shop",
		"amount":          "-4.50",
		"type":            "regular",
		"account":         "Checking",
		"account mask":    "1234",
		"category":        "Dining",
		"parent category": "Food",
		"note":            "morning",
		"tags":            "coffee",
		"excluded":        "false",
	}

	got, err := convertCopilot(row, "u1")
	if err != nil {
		t.Fatalf("convertCopilot failed: %v", err)
	}
	if got.AccountName != "Checking" {
		t.Errorf("account name: %q", got.AccountName)
	}
	tx := got.Tx
	if tx.Type != domain.TransactionExpense {
		t.Errorf("type: %s", tx.Type)
	}
	if tx.Amount != "-4.5" {
		t.Errorf("amount not canonical: %q", tx.Amount)
	}
	if !tx.Date.Equal(time.Date(2024, 3, 15, 0, 0, 0, 0, time.UTC)) {
		t.Errorf("date: %v", tx.Date)
	}
	if tx.Category != "Dining" || tx.ParentCategory != "Food" || tx.AccountMask != "1234" {
		t.Errorf("metadata not mapped: %+v", tx)
	}
}

func TestConvertCopilot_TypeInference(t *testing.T) {
	cases := []struct {
		rawType string
		amount  string
		want    domain.TransactionType
	}{
		{"internal transfer", "-10", domain.TransactionTransfer},
		{"income", "-10", domain.TransactionIncome},
		{"regular", "-10", domain.TransactionExpense},
		{"regular", "10", domain.TransactionIncome},
		{"", "-10", domain.TransactionExpense},
		{"investment", "10", domain.TransactionInvestment},
		{"garbage", "-10", domain.TransactionExpense},
	}
	for _, tc := range cases {
		row := Row{"date": "2024-01-01", "name": "x", "amount": tc.amount, "type": tc.rawType}
		got, err := convertCopilot(row, "u1")
		if err != nil {
			t.Fatalf("convertCopilot(%q) failed: %v", tc.rawType, err)
		}
		if got.Tx.Type != tc.want {
			t.Errorf("type %q amount %s: expected %s, got %s", tc.rawType, tc.amount, tc.want, got.Tx.Type)
		}
	}
}

func TestConvertCopilot_BadRows(t *testing.T) {
	cases := []struct {
		name string
		row  Row
	}{
		{"bad date", Row{"date": "not-a-date", "name": "x", "amount": "1", "type": "regular"}},
		{"bad amount", Row{"date": "2024-01-01", "name": "x", "amount": "abc", "type": "regular"}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := convertCopilot(tc.row, "u1"); err == nil {
				t.Error("expected an error")
			}
		})
	}
}

func TestConvertCapitalOne(t *testing.T) {
	row := Row{
		"account number":          "00012345678",
		"transaction date":        "03/15/24",
		"transaction amount":      "-25.00",
		"transaction type":        "Debit",
		"transaction description": "GROCERY STORE",
		"balance":                 "1200.00",
	}

	got, err := convertCapitalOne(row, "u1")
	if err != nil {
		t.Fatalf("convertCapitalOne failed: %v", err)
	}
	if got.AccountName != "Capital One 00012345678" {
		t.Errorf("account name: %q", got.AccountName)
	}
	tx := got.Tx
	if tx.Type != domain.TransactionExpense {
		t.Errorf("type: %s", tx.Type)
	}
	if tx.AccountMask != "5678" {
		t.Errorf("mask: %q", tx.AccountMask)
	}
	if !tx.Date.Equal(time.Date(2024, 3, 15, 0, 0, 0, 0, time.UTC)) {
		t.Errorf("date: %v", tx.Date)
	}
	if tx.Amount != "-25" {
		t.Errorf("amount not canonical: %q", tx.Amount)
	}
}

func TestConvertCapitalOne_CreditMarkerWins(t *testing.T) {
	row := Row{
		"transaction date":        "2024-03-15",
		"transaction amount":      "-5.00",
		"transaction type":        "Credit",
		"transaction description": "REFUND",
	}
	got, err := convertCapitalOne(row, "u1")
	if err != nil {
		t.Fatalf("convertCapitalOne failed: %v", err)
	}
	if got.Tx.Type != domain.TransactionIncome {
		t.Errorf("explicit Credit marker should win over sign, got %s", got.Tx.Type)
	}
}

func TestParseCSV(t *testing.T) {
	csv := "date,name,amount,type,account\n" +
		"2024-03-15,Coffee,-4.50,regular,Checking\n" +
		"2024-03-16,Paycheck,2500.00,income,Checking\n"

	rows, err := ParseCSV(csv, "u1", zap.NewNop())
	if err != nil {
		t.Fatalf("ParseCSV failed: %v", err)
	}
	if len(rows) != 2 {
		t.Fatalf("expected 2 rows, got %d", len(rows))
	}
	if rows[0].Tx.Description != "Coffee" || rows[1].Tx.Description != "Paycheck" {
		t.Errorf("rows out of order: %+v", rows)
	}
}

func TestParseCSV_SkipsInvalidRows(t *testing.T) {
	csv := "date,name,amount,type\n" +
		"2024-03-15,Good,-4.50,regular\n" +
		"bogus-date,Bad,-1.00,regular\n" +
		"2024-03-16,AlsoGood,1.00,regular\n"

	rows, err := ParseCSV(csv, "u1", zap.NewNop())
	if err != nil {
		t.Fatalf("ParseCSV failed: %v", err)
	}
	if len(rows) != 2 {
		t.Errorf("expected the bad row skipped, got %d rows", len(rows))
	}
}

func TestParseCSV_UnknownFormatYieldsNoRows(t *testing.T) {
	rows, err := ParseCSV("colA,colB\n1,2\n", "u1", zap.NewNop())
	if err != nil {
		t.Fatalf("unknown format must not be an error: %v", err)
	}
	if len(rows) != 0 {
		t.Errorf("expected no rows, got %d", len(rows))
	}
}

func TestParseCSV_UnparsableIsSetupError(t *testing.T) {
	_, err := ParseCSV("date,name\n\"unterminated", "u1", zap.NewNop())
	if err == nil {
		t.Fatal("expected an error")
	}
	var setup *domain.ErrSetup
	if !errors.As(err, &setup) {
		t.Errorf("expected ErrSetup, got %T", err)
	}
}

func TestParseCSV_EmptyIsSetupError(t *testing.T) {
	if _, err := ParseCSV("", "u1", zap.NewNop()); err == nil {
		t.Fatal("expected an error for empty content")
	}
}
