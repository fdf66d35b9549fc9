package notesync_test

import (
	"context"
	"fmt"
	"log"

	"github.com/aretw0/notesync"
	"github.com/aretw0/notesync/pkg/core"
)

// Example_basic creates a note in an in-memory store and reads it back.
func Example_basic() {
	svc, err := notesync.New("", notesync.WithAdapter(notesync.AdapterMemory))
	if err != nil {
		log.Fatal(err)
	}

	ctx := context.Background()
	n, err := svc.CreateNote(ctx, core.NoteFields{Title: "Groceries", Content: "Milk,eggs"})
	if err != nil {
		log.Fatal(err)
	}

	got, err := svc.GetNote(ctx, n.ID)
	if err != nil {
		log.Fatal(err)
	}
	fmt.Println(got.Title, "-", got.Content)

	// Output:
	// Groceries - Milk,eggs
}

// Example_validation shows that a note needs both a title and content.
func Example_validation() {
	svc, err := notesync.New("", notesync.WithAdapter(notesync.AdapterMemory))
	if err != nil {
		log.Fatal(err)
	}

	_, err = svc.CreateNote(context.Background(), core.NoteFields{Title: "Groceries"})
	fmt.Println(err, core.IsValidation(err))

	// Output:
	// content is required true
}
