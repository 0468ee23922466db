package cli

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"github.com/finsync-app/finsync/internal/models"
)

// Summary prints income, expenses and per-category expense totals for the
// current month.
func (a *App) Summary(ctx context.Context) error {
	if err := a.requireLogin(); err != nil {
		return err
	}

	doc, err := a.store.Load(ctx, a.identity)
	if err != nil {
		printlnFn("Error:", err.Error())
		return err
	}

	now := time.Now()
	income := decimal.Zero
	expenses := decimal.Zero
	byCategory := make(map[string]decimal.Decimal)

	for _, tx := range doc.Transactions {
		if tx.Date.Year() != now.Year() || tx.Date.Month() != now.Month() {
			continue
		}
		if tx.Type == models.TransactionIncome {
			income = income.Add(tx.Amount)
			continue
		}
		expenses = expenses.Add(tx.Amount)
		byCategory[tx.Category] = byCategory[tx.Category].Add(tx.Amount)
	}

	cur := doc.Profile.Currency
	printlnFn(fmt.Sprintf("Summary for %s", now.Format("January 2006")))
	printlnFn(fmt.Sprintf("  Income:   %s %s", income.StringFixed(2), cur))
	printlnFn(fmt.Sprintf("  Expenses: %s %s", expenses.StringFixed(2), cur))
	printlnFn(fmt.Sprintf("  Balance:  %s %s", income.Sub(expenses).StringFixed(2), cur))

	if len(byCategory) == 0 {
		return nil
	}
	categories := make([]string, 0, len(byCategory))
	for c := range byCategory {
		categories = append(categories, c)
	}
	sort.Strings(categories)

	printlnFn("  By category:")
	for _, c := range categories {
		printlnFn(fmt.Sprintf("    %-12s %s %s", c, byCategory[c].StringFixed(2), cur))
	}
	return nil
}
