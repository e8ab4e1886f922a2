// Command relcheck validates that every relationship inside an .xlsx
// package resolves to a part that actually exists in the archive.
//
// Usage: relcheck <path-to-xlsx-file>
package main

import (
	"fmt"
	"os"

	"github.com/EndeavorEverlasting/web-excel-repair-triage"
)

func main() {
	if len(os.Args) < 2 {
		fmt.Fprintln(os.Stderr, "Usage: relcheck <path-to-xlsx-file>")
		os.Exit(1)
	}
	path := os.Args[1]

	fmt.Printf("Validating relationships in: %s\n\n", path)

	report, err := triage.RunGates(path)
	if err != nil {
		fmt.Printf("failed to open: %v\n", err)
		os.Exit(1)
	}

	if len(report.RelsMissing) == 0 {
		fmt.Println("all relationships resolve to existing parts")
		return
	}

	for _, f := range report.RelsMissing {
		target, _ := f.Data["target"].(string)
		resolved, _ := f.Data["resolved"].(string)
		fmt.Printf("%s: target %q resolved to missing part %q\n", f.Part, target, resolved)
	}
	fmt.Printf("\nfound %d broken relationship(s)\n", len(report.RelsMissing))
	os.Exit(2)
}
