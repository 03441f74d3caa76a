// Package bank translates external bank-export CSV row shapes into the
// canonical transaction record. Adapters are pure: they never touch
// storage, and each one owns the sign and type-inference rules of its
// source format.
package bank

import (
	"strings"

	"github.com/ledgerline/importd/internal/domain"
)

// Row is one parsed CSV record, keyed by lower-cased header name.
type Row map[string]string

// Converted is an adapter's output: the canonical transaction (without an
// account id, resolved later) plus the source account name from the row.
type Converted struct {
	AccountName string
	Tx          domain.Transaction
}

// Adapter recognizes one bank-export format. Detection is a pure
// set-membership test on the header row.
type Adapter struct {
	Name     string
	Required []string
	Convert  func(row Row, userID string) (Converted, error)
}

// adapters is the ordered dispatch table; first match wins. Adding a bank
// format is a pure data addition here.
var adapters = []Adapter{copilotAdapter, capitalOneAdapter}

// DetectFormat returns the first adapter whose required headers are all
// present, or nil when the format is unknown.
func DetectFormat(headers []string) *Adapter {
	set := make(map[string]bool, len(headers))
	for _, h := range headers {
		set[strings.ToLower(strings.TrimSpace(h))] = true
	}

	for i := range adapters {
		matched := true
		for _, req := range adapters[i].Required {
			if !set[req] {
				matched = false
				break
			}
		}
		if matched {
			return &adapters[i]
		}
	}
	return nil
}

func (r Row) get(key string) string {
	return strings.TrimSpace(r[key])
}

func parseBool(s string) bool {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "true", "1", "yes", "y":
		return true
	}
	return false
}

// lastFour reduces an account number to its mask form.
func lastFour(s string) string {
	s = strings.TrimSpace(s)
	if len(s) > 4 {
		return s[len(s)-4:]
	}
	return s
}
