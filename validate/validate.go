// Command validate checks game container documents written by the file
// store, typically a directory of backups. For every *.json file it checks:
//   - JSON structure and that the document names the container it is stored as
//   - Every game record decodes and satisfies the game invariants
//   - Every record is keyed by its own session id
//
// It prints a concise report and exits non-zero if any document is invalid.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/wricardo/mcp-training/chopsticks/game/engine"
	"github.com/wricardo/mcp-training/chopsticks/game/session"
)

// ValidationResult captures the outcome of validating a single file.
// If Valid is true, Errors contains informational messages; otherwise it
// accumulates the validation errors that were found.
type ValidationResult struct {
	File   string
	Valid  bool
	Errors []string
}

// validateDocument loads one container document and audits its games
func validateDocument(ctx context.Context, filePath string) ValidationResult {
	result := ValidationResult{
		File:   filepath.Base(filePath),
		Valid:  true,
		Errors: []string{},
	}

	container := strings.TrimSuffix(result.File, filepath.Ext(result.File))
	store, err := session.NewFileStore(filepath.Dir(filePath), container)
	if err != nil {
		result.Valid = false
		result.Errors = append(result.Errors, fmt.Sprintf("Failed to load document: %v", err))
		return result
	}
	defer store.Close()

	checked, issues, err := session.Audit(ctx, store)
	if err != nil {
		result.Valid = false
		result.Errors = append(result.Errors, fmt.Sprintf("Failed to scan document: %v", err))
		return result
	}

	for _, issue := range issues {
		result.Valid = false
		result.Errors = append(result.Errors, fmt.Sprintf("Game %s: %v", issue.SessionID, issue.Err))
	}
	if !result.Valid {
		result.Errors = append(result.Errors, fmt.Sprintf("%d/%d games invalid", len(issues), checked))
		return result
	}

	games, err := store.List(ctx)
	if err != nil {
		result.Valid = false
		result.Errors = append(result.Errors, fmt.Sprintf("Failed to list games: %v", err))
		return result
	}
	result.Errors = append(result.Errors, summarize(games))
	return result
}

// summarize counts games per phase
func summarize(games []*engine.Game) string {
	var awaiting, inProgress, finished int
	for _, g := range games {
		switch g.Phase.(type) {
		case engine.AwaitingOpponent:
			awaiting++
		case engine.InProgress:
			inProgress++
		case engine.Finished:
			finished++
		}
	}
	return fmt.Sprintf("✓ %d games: %d awaiting opponent, %d in progress, %d finished",
		len(games), awaiting, inProgress, finished)
}

// main scans the directory for *.json documents and validates each one
func main() {
	dir := flag.String("dir", "sessions", "Directory containing container documents")
	flag.Parse()

	files, err := filepath.Glob(filepath.Join(*dir, "*.json"))
	if err != nil {
		fmt.Printf("Error finding documents: %v\n", err)
		os.Exit(1)
	}
	if len(files) == 0 {
		fmt.Printf("No documents found in %s\n", *dir)
		os.Exit(1)
	}

	ctx := context.Background()
	allValid := true
	for _, file := range files {
		result := validateDocument(ctx, file)

		fmt.Printf("\n%s %s\n", strings.Repeat("=", 20), result.File)

		if result.Valid {
			fmt.Println("✅ VALID")
			for _, info := range result.Errors {
				fmt.Println("  " + info)
			}
		} else {
			fmt.Println("❌ INVALID")
			allValid = false
			for _, err := range result.Errors {
				fmt.Println("  ❌ " + err)
			}
		}
	}

	fmt.Printf("\n%s\n", strings.Repeat("=", 40))
	if allValid {
		fmt.Println("✅ All documents are valid!")
	} else {
		fmt.Println("❌ Some documents have errors")
		os.Exit(1)
	}
}
