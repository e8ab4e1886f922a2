// Command gatecheck runs the full gate battery against an .xlsx package
// and prints the resulting JSON GateReport.
//
// Usage: gatecheck <path-to-xlsx-file>
package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/EndeavorEverlasting/web-excel-repair-triage"
)

func main() {
	if len(os.Args) < 2 {
		fmt.Fprintln(os.Stderr, "Usage: gatecheck <path-to-xlsx-file>")
		os.Exit(1)
	}

	report, err := triage.RunGates(os.Args[1])
	if err != nil {
		fmt.Fprintf(os.Stderr, "gatecheck: %v\n", err)
		os.Exit(1)
	}

	out, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		fmt.Fprintf(os.Stderr, "gatecheck: %v\n", err)
		os.Exit(1)
	}
	fmt.Println(string(out))

	if !report.Pass() {
		os.Exit(2)
	}
}
