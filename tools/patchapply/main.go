// Command patchapply loads a JSON patch recipe and applies it to a
// candidate .xlsx package.
//
// Usage: patchapply <path-to-xlsx-file> <path-to-recipe.json> [output-path]
package main

import (
	"fmt"
	"os"

	"github.com/EndeavorEverlasting/web-excel-repair-triage"
)

func main() {
	if len(os.Args) < 3 {
		fmt.Println("Usage: patchapply <path-to-xlsx-file> <path-to-recipe.json> [output-path]")
		os.Exit(1)
	}

	sourcePath := os.Args[1]
	recipePath := os.Args[2]
	outputPath := ""
	if len(os.Args) > 3 {
		outputPath = os.Args[3]
	}

	recipeBytes, err := os.ReadFile(recipePath)
	if err != nil {
		fmt.Printf("failed to read recipe: %v\n", err)
		os.Exit(1)
	}
	recipe, err := triage.ParseRecipe(recipeBytes)
	if err != nil {
		fmt.Printf("failed to parse recipe: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("Applying %d patch op(s) to: %s\n", len(recipe.Patches), sourcePath)

	result, err := triage.ApplyRecipe(sourcePath, recipe, outputPath)
	if result == nil {
		fmt.Printf("failed to apply recipe: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("Output: %s\n", result.OutputPath)
	switch {
	case triage.IsPatchError(err):
		fmt.Printf("may be incomplete — evidence only (%d error(s)):\n", len(result.Errors))
		for _, e := range result.Errors {
			fmt.Printf("  %s\n", e)
		}
		os.Exit(2)
	case triage.IsPatchWarning(err):
		fmt.Printf("valid, but %d stub(s) require editing:\n", len(result.Skipped))
		for _, s := range result.Skipped {
			fmt.Printf("  %s\n", s)
		}
		os.Exit(3)
	default:
		fmt.Println("patch applied cleanly")
	}
}
