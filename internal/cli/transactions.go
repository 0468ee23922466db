package cli

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/finsync-app/finsync/internal/common"
	"github.com/finsync-app/finsync/internal/models"
)

func (a *App) requireLogin() error {
	if !a.isLoggedIn() {
		printlnFn("Please login first")
		return common.ErrNoActiveSession
	}
	return nil
}

// AddTransaction interactively records an income or expense transaction.
func (a *App) AddTransaction(ctx context.Context) error {
	if err := a.requireLogin(); err != nil {
		return err
	}

	description, err := GetSimpleText(a.reader, "Description", a.out)
	if err != nil {
		return err
	}

	amountStr, err := GetSimpleText(a.reader, "Amount", a.out)
	if err != nil {
		return err
	}
	amount, err := decimal.NewFromString(amountStr)
	if err != nil {
		printlnFn("Invalid amount:", amountStr)
		return err
	}

	category, err := GetSimpleText(a.reader, "Category", a.out)
	if err != nil {
		return err
	}
	if category == "" {
		category = "Other"
	}

	typStr, err := GetSimpleText(a.reader, "Type (income/expense) [expense]", a.out)
	if err != nil {
		return err
	}
	typ := models.TransactionExpense
	if typStr == string(models.TransactionIncome) {
		typ = models.TransactionIncome
	}

	doc, err := a.store.Load(ctx, a.identity)
	if err != nil {
		printlnFn("Error:", err.Error())
		return err
	}
	txs := append(doc.Transactions, models.Transaction{
		ID:          uuid.NewString(),
		Date:        time.Now(),
		Amount:      amount,
		Category:    category,
		Description: description,
		Type:        typ,
	})

	if _, err := a.store.Update(ctx, a.identity, models.Patch{Transactions: &txs}); err != nil {
		printlnFn("Error:", err.Error())
		return err
	}
	printlnFn("Transaction added")
	return nil
}

// ListTransactions prints the recorded transactions, newest last.
func (a *App) ListTransactions(ctx context.Context) error {
	if err := a.requireLogin(); err != nil {
		return err
	}

	doc, err := a.store.Load(ctx, a.identity)
	if err != nil {
		printlnFn("Error:", err.Error())
		return err
	}
	if len(doc.Transactions) == 0 {
		printlnFn("No transactions yet")
		return nil
	}

	for _, tx := range doc.Transactions {
		sign := "-"
		if tx.Type == models.TransactionIncome {
			sign = "+"
		}
		printlnFn(fmt.Sprintf("%s  %s%s %s  %-12s %s",
			tx.Date.Format("2006-01-02"), sign, tx.Amount.StringFixed(2),
			doc.Profile.Currency, tx.Category, tx.Description))
	}
	return nil
}
