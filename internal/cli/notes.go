package cli

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/finsync-app/finsync/internal/models"
)

// AddNote interactively records a free-form note.
func (a *App) AddNote(ctx context.Context) error {
	if err := a.requireLogin(); err != nil {
		return err
	}

	title, err := GetSimpleText(a.reader, "Title", a.out)
	if err != nil {
		return err
	}
	body, err := GetMultiline(a.reader, "Note text", a.out)
	if err != nil {
		return err
	}

	doc, err := a.store.Load(ctx, a.identity)
	if err != nil {
		printlnFn("Error:", err.Error())
		return err
	}
	notes := append(doc.Notes, models.Note{
		ID:        uuid.NewString(),
		Title:     title,
		Body:      body,
		UpdatedAt: time.Now(),
	})

	if _, err := a.store.Update(ctx, a.identity, models.Patch{Notes: &notes}); err != nil {
		printlnFn("Error:", err.Error())
		return err
	}
	printlnFn("Note added")
	return nil
}

// ListNotes prints note titles with their last update time.
func (a *App) ListNotes(ctx context.Context) error {
	if err := a.requireLogin(); err != nil {
		return err
	}

	doc, err := a.store.Load(ctx, a.identity)
	if err != nil {
		printlnFn("Error:", err.Error())
		return err
	}
	if len(doc.Notes) == 0 {
		printlnFn("No notes yet")
		return nil
	}

	for _, n := range doc.Notes {
		printlnFn(fmt.Sprintf("%s  %s", n.UpdatedAt.Format("2006-01-02 15:04"), n.Title))
	}
	return nil
}
