// Package triage diagnoses and repairs OOXML .xlsx workbook packages that
// trigger an automatic "repair" banner in a web-based spreadsheet host.
//
// # Quick Start
//
//	report, err := triage.RunGates("candidate.xlsx")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	if !report.Pass() {
//	    recipe := triage.RecipeFromGates(report)
//	    result, err := triage.ApplyRecipe("candidate.xlsx", recipe, "")
//	    if triage.IsPatchWarning(err) {
//	        log.Printf("patched with %d stub(s) pending review: %s", len(result.Skipped), result.OutputPath)
//	    }
//	}
//
// # Architecture
//
// A candidate package flows through five cooperating, read-mostly stages.
// [Scan] enumerates ZIP parts and hashes them. [RunGates] runs ten
// structural hazard detectors over the raw bytes. [DiffPackages], when a
// host-repaired copy is available, produces per-part unified diffs.
// [ClassifyPatterns] recognizes named repair signatures in that diff.
// [RecipeFromGates] and [RecipeFromPatterns] turn evidence into a
// [PatchRecipe] that [ApplyRecipe] applies as byte-level mutations, never
// round-tripping the XML through a parser. [RunPipeline] composes all of
// this into one call.
//
// No component reserializes XML. Bytes outside a matched region are
// preserved bit-for-bit, and running the same recipe against the same
// candidate produces byte-identical output regardless of platform.
package triage
