// Package models defines the application document (the full per-user
// financial dataset plus settings and profile, versioned by a single
// timestamp) and the observable synchronization state.
package models

import (
	"slices"
	"time"

	"github.com/shopspring/decimal"
)

type TransactionType string

const (
	TransactionIncome  TransactionType = "income"
	TransactionExpense TransactionType = "expense"
)

type Transaction struct {
	ID          string          `json:"id"`
	Date        time.Time       `json:"date"`
	Amount      decimal.Decimal `json:"amount"`
	Category    string          `json:"category"`
	Description string          `json:"description"`
	Type        TransactionType `json:"type"`
}

type Category struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Color string `json:"color"`
	Icon  string `json:"icon"`
}

type Budget struct {
	CategoryID string          `json:"categoryId"`
	Limit      decimal.Decimal `json:"limit"`
	Spent      decimal.Decimal `json:"spent"`
}

type SavingsGoal struct {
	ID            string          `json:"id"`
	Name          string          `json:"name"`
	TargetAmount  decimal.Decimal `json:"targetAmount"`
	CurrentAmount decimal.Decimal `json:"currentAmount"`
	Deadline      string          `json:"deadline"`
}

type Note struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	Body      string    `json:"body"`
	UpdatedAt time.Time `json:"updatedAt"`
}

type Settings struct {
	Theme         string `json:"theme"`
	Notifications bool   `json:"notifications"`
	// SyncInterval is advisory; the only timer the engine enforces is the
	// quiescence window of the background scheduler.
	SyncInterval string `json:"syncInterval"`
	AutoSync     bool   `json:"autoSync"`
}

type Profile struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Avatar   string `json:"avatar"`
	Currency string `json:"currency"`
}

// Document is the unit of synchronization. Timestamp is milliseconds since
// epoch, bumped on every mutation and only on mutation; it is the sole
// signal used for conflict detection.
type Document struct {
	Transactions []Transaction `json:"transactions"`
	Categories   []Category    `json:"categories"`
	Budgets      []Budget      `json:"budgets"`
	SavingsGoals []SavingsGoal `json:"savingsGoals"`
	Notes        []Note        `json:"notes"`
	Settings     Settings      `json:"settings"`
	Profile      Profile       `json:"profile"`
	Timestamp    int64         `json:"timestamp"`
}

// Patch is a partial document change. Nil fields are left unchanged.
type Patch struct {
	Transactions *[]Transaction
	Categories   *[]Category
	Budgets      *[]Budget
	SavingsGoals *[]SavingsGoal
	Notes        *[]Note
	Settings     *Settings
	Profile      *Profile
}

// Apply merges p into d. It does not touch Timestamp; bumping the timestamp
// is the document store's job, so that it happens exactly once per mutation.
func (d *Document) Apply(p Patch) {
	if p.Transactions != nil {
		d.Transactions = *p.Transactions
	}
	if p.Categories != nil {
		d.Categories = *p.Categories
	}
	if p.Budgets != nil {
		d.Budgets = *p.Budgets
	}
	if p.SavingsGoals != nil {
		d.SavingsGoals = *p.SavingsGoals
	}
	if p.Notes != nil {
		d.Notes = *p.Notes
	}
	if p.Settings != nil {
		d.Settings = *p.Settings
	}
	if p.Profile != nil {
		d.Profile = *p.Profile
	}
}

// Clone returns a deep copy of d. Slice elements are value types, so copying
// the slices is sufficient.
func (d *Document) Clone() *Document {
	if d == nil {
		return nil
	}
	c := *d
	c.Transactions = slices.Clone(d.Transactions)
	c.Categories = slices.Clone(d.Categories)
	c.Budgets = slices.Clone(d.Budgets)
	c.SavingsGoals = slices.Clone(d.SavingsGoals)
	c.Notes = slices.Clone(d.Notes)
	return &c
}
