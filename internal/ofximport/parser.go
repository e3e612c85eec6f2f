// Package ofximport reads bank and credit card statements in OFX/QFX
// format into transaction parameters.
package ofximport

import (
	"fmt"
	"io"
	"regexp"
	"strings"

	"github.com/aclindsa/ofxgo"
	"github.com/pennywise-app/pennywise-go/pkg/pennywise"
	pkgerrors "github.com/pkg/errors"
	"github.com/shopspring/decimal"
)

// DefaultCategory is assigned when the transaction type implies none
const DefaultCategory = "Uncategorized"

var (
	severityRegex = regexp.MustCompile(`(?i)<SEVERITY>(Info|Warn|Error)</SEVERITY>`)
	openTagRegex  = regexp.MustCompile(`(?m)^(\s*<[A-Z][A-Z0-9._]*[A-Z0-9])$`)
)

// categoryByType maps OFX transaction types that imply a category
var categoryByType = map[string]string{
	"INT":    "Interest",
	"DIV":    "Dividends",
	"FEE":    "Bank Fees",
	"SRVCHG": "Bank Fees",
	"ATM":    "Cash",
	"CASH":   "Cash",
}

// Statement is one parsed file
type Statement struct {
	Accounts     []string
	Transactions []pennywise.CreateTransactionParams
	Skipped      int
}

// preprocess fixes common formatting issues in exported files
func preprocess(content string) string {
	content = strings.TrimLeft(content, " \t\r\n")
	content = severityRegex.ReplaceAllStringFunc(content, strings.ToUpper)
	return openTagRegex.ReplaceAllString(content, "$1>")
}

// Parse reads every bank and credit card statement in r. Debits become
// expenses and credits income; zero amounts are skipped.
func Parse(r io.Reader) (*Statement, error) {
	content, err := io.ReadAll(r)
	if err != nil {
		return nil, pkgerrors.Wrap(err, "failed to read OFX file")
	}

	resp, err := ofxgo.ParseResponse(strings.NewReader(preprocess(string(content))))
	if err != nil {
		return nil, pkgerrors.Wrap(err, "failed to parse OFX file")
	}

	st := &Statement{}
	add := func(account string, list *ofxgo.TransactionList) {
		st.Accounts = append(st.Accounts, account)
		if list == nil {
			return
		}
		for _, tx := range list.Transactions {
			params, ok := convert(tx)
			if !ok {
				st.Skipped++
				continue
			}
			st.Transactions = append(st.Transactions, params)
		}
	}

	for _, msg := range resp.Bank {
		if stmt, ok := msg.(*ofxgo.StatementResponse); ok {
			add(string(stmt.BankAcctFrom.AcctID), stmt.BankTranList)
		}
	}
	for _, msg := range resp.CreditCard {
		if stmt, ok := msg.(*ofxgo.CCStatementResponse); ok {
			add(string(stmt.CCAcctFrom.AcctID), stmt.BankTranList)
		}
	}
	return st, nil
}

func convert(tx ofxgo.Transaction) (pennywise.CreateTransactionParams, bool) {
	amount, err := decimal.NewFromString(tx.TrnAmt.Rat.FloatString(2))
	if err != nil || amount.IsZero() {
		return pennywise.CreateTransactionParams{}, false
	}

	kind := pennywise.KindIncome
	if amount.IsNegative() {
		kind = pennywise.KindExpense
		amount = amount.Neg()
	}

	category, ok := categoryByType[strings.ToUpper(fmt.Sprint(tx.TrnType))]
	if !ok {
		category = DefaultCategory
	}

	return pennywise.CreateTransactionParams{
		Amount:      amount,
		Category:    category,
		Description: description(tx),
		Date:        pennywise.DateOf(tx.DtPosted.Time),
		Type:        kind,
	}, true
}

var purchasePrefixes = []string{
	"POS PURCHASE ",
	"PURCHASE AUTHORIZED ON ",
	"DEBIT CARD PURCHASE ",
	"ACH DEBIT ",
	"CHECK CARD ",
	"VISA PURCHASE ",
	"MC PURCHASE ",
	"DEBIT PURCHASE ",
}

// description picks the cleanest payee text available
func description(tx ofxgo.Transaction) string {
	if tx.Payee != nil && tx.Payee.Name != "" {
		return strings.TrimSpace(string(tx.Payee.Name))
	}

	name := strings.TrimSpace(string(tx.Name))
	if tx.Memo != "" && isGeneric(name) {
		name = strings.TrimSpace(string(tx.Memo))
	}

	upper := strings.ToUpper(name)
	for _, prefix := range purchasePrefixes {
		if strings.HasPrefix(upper, prefix) {
			name = name[len(prefix):]
			break
		}
	}

	// leading "MM/DD "
	if len(name) > 5 && name[2] == '/' && name[5] == ' ' {
		name = strings.TrimSpace(name[6:])
	}
	if name == "" {
		name = "Imported transaction"
	}
	return name
}

func isGeneric(name string) bool {
	switch strings.ToUpper(name) {
	case "", "DEBIT", "CREDIT", "PURCHASE", "PAYMENT", "POS TRANSACTION", "CARD PURCHASE":
		return true
	}
	return false
}

// Key identifies a transaction for duplicate detection
func Key(date pennywise.Date, kind pennywise.Kind, amount decimal.Decimal, description string) string {
	return strings.Join([]string{
		date.String(),
		string(kind),
		amount.StringFixed(2),
		strings.ToLower(strings.TrimSpace(description)),
	}, "|")
}

// Dedupe drops params already present in existing, and repeats within params
func Dedupe(params []pennywise.CreateTransactionParams, existing []pennywise.Transaction) (fresh []pennywise.CreateTransactionParams, duplicates int) {
	seen := make(map[string]bool, len(existing)+len(params))
	for _, t := range existing {
		seen[Key(t.Date, t.Type, t.Amount, t.Description)] = true
	}
	for _, p := range params {
		k := Key(p.Date, p.Type, p.Amount, p.Description)
		if seen[k] {
			duplicates++
			continue
		}
		seen[k] = true
		fresh = append(fresh, p)
	}
	return fresh, duplicates
}
