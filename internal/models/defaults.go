package models

import (
	"time"

	"github.com/google/uuid"
)

// DefaultDocument builds the scaffolding document for a fresh identity:
// a starter category set, default settings and a profile bound to the
// identity's email.
func DefaultDocument(identity string, now time.Time) *Document {
	return &Document{
		Transactions: []Transaction{},
		Categories: []Category{
			{ID: uuid.NewString(), Name: "Food", Color: "#ef4444", Icon: "utensils"},
			{ID: uuid.NewString(), Name: "Transport", Color: "#3b82f6", Icon: "car"},
			{ID: uuid.NewString(), Name: "Shopping", Color: "#8b5cf6", Icon: "bag"},
			{ID: uuid.NewString(), Name: "Income", Color: "#10b981", Icon: "trend-up"},
		},
		Budgets:      []Budget{},
		SavingsGoals: []SavingsGoal{},
		Notes:        []Note{},
		Settings: Settings{
			Theme:         "light",
			Notifications: true,
			SyncInterval:  "6h",
			AutoSync:      true,
		},
		Profile: Profile{
			Name:     "User",
			Email:    identity,
			Currency: "USD",
		},
		Timestamp: now.UnixMilli(),
	}
}
