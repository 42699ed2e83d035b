package mapping

import (
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// saveSuggestionsToFile writes one AI exchange to a timestamped text file.
func saveSuggestionsToFile(dir string, sources, targets []string, suggestions []Suggestion, err error) error {
	if mkErr := os.MkdirAll(dir, 0755); mkErr != nil {
		return mkErr
	}

	now := time.Now()
	path := filepath.Join(dir, fmt.Sprintf("ai_suggestions_%s.txt", now.Format("2006-01-02_15-04-05.000")))
	file, createErr := os.Create(path)
	if createErr != nil {
		return createErr
	}
	defer file.Close()

	fmt.Fprintf(file, "AI Suggestions Debug - %s\n", now.Format("2006-01-02 15:04:05"))
	fmt.Fprintf(file, "===========================================\n\n")

	fmt.Fprintf(file, "UNMATCHED QUESTIONS SENT TO AI (%d):\n", len(sources))
	for i, s := range sources {
		fmt.Fprintf(file, "%d. %s\n", i+1, s)
	}

	fmt.Fprintf(file, "\nREPORT ROWS (%d):\n", len(targets))
	for i, t := range targets {
		fmt.Fprintf(file, "%d. %s\n", i+1, t)
	}

	fmt.Fprintf(file, "\nAI RESPONSE:\n")
	if err != nil {
		fmt.Fprintf(file, "ERROR: %v\n", err)
	} else {
		fmt.Fprintf(file, "SUCCESS - %d suggestions:\n", len(suggestions))
		for i, s := range suggestions {
			fmt.Fprintf(file, "%d. '%s' → '%s' (%.2f confidence)\n", i+1, s.SourceLabel, s.TargetLabel, s.Confidence)
		}
		if len(suggestions) == 0 {
			fmt.Fprintf(file, "No suggestions (all were NO_MATCH or low confidence)\n")
		}
	}

	fmt.Fprintf(file, "\n===========================================\n")
	return nil
}
