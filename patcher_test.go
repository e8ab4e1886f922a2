package triage_test

import (
	"archive/zip"
	"bytes"
	"io"
	"os"
	"path/filepath"
	"testing"

	triage "github.com/EndeavorEverlasting/web-excel-repair-triage"
)

// readZipEntries reads every entry of the ZIP at path into a name->bytes map.
func readZipEntries(t *testing.T, path string) map[string][]byte {
	t.Helper()
	r, err := zip.OpenReader(path)
	if err != nil {
		t.Fatalf("open zip %s: %v", path, err)
	}
	defer r.Close()
	out := make(map[string][]byte, len(r.File))
	for _, f := range r.File {
		rc, err := f.Open()
		if err != nil {
			t.Fatalf("open entry %s: %v", f.Name, err)
		}
		raw, err := io.ReadAll(rc)
		rc.Close()
		if err != nil {
			t.Fatalf("read entry %s: %v", f.Name, err)
		}
		out[f.Name] = raw
	}
	return out
}

func TestApplyRecipeEmptyRecipeIsANoOp(t *testing.T) {
	source := writeFixture(t, "candidate.xlsx", baseWorkbookParts())
	recipe := triage.NewPatchRecipe(source)
	output := filepath.Join(t.TempDir(), "out.xlsx")

	result, err := triage.ApplyRecipe(source, recipe, output)
	if err != nil {
		t.Fatalf("expected no error for an empty recipe, got %v", err)
	}
	if result.Outcome != triage.OutcomeOK {
		t.Fatalf("expected OutcomeOK, got %v", result.Outcome)
	}

	before := readZipEntries(t, source)
	after := readZipEntries(t, output)
	if len(before) != len(after) {
		t.Fatalf("expected the same entry count, got %d vs %d", len(before), len(after))
	}
	for name, raw := range before {
		if !bytes.Equal(raw, after[name]) {
			t.Fatalf("expected %s to be byte-identical after an empty recipe", name)
		}
	}
}

func TestApplyRecipeLiteralReplaceThenInverseRestoresOriginalBytes(t *testing.T) {
	parts := withParts(baseWorkbookParts(), map[string]string{
		"xl/worksheets/sheet1.xml": `<?xml version="1.0"?><worksheet><sheetData>` +
			`<row r="1"><c r="A1"><v>HELLO</v></c></row></sheetData></worksheet>`,
	})
	source := writeFixture(t, "candidate.xlsx", parts)

	forward := triage.NewPatchRecipe(source)
	forward.Patches = append(forward.Patches, triage.PatchOp{
		ID: "p1", Part: "xl/worksheets/sheet1.xml", Operation: triage.OpLiteralReplace,
		Match: "HELLO", Replacement: "PATCHED", Occurrence: 1,
	})
	mid := filepath.Join(t.TempDir(), "mid.xlsx")
	if _, err := triage.ApplyRecipe(source, forward, mid); err != nil {
		t.Fatalf("forward apply failed: %v", err)
	}

	inverse := triage.NewPatchRecipe(mid)
	inverse.Patches = append(inverse.Patches, triage.PatchOp{
		ID: "p2", Part: "xl/worksheets/sheet1.xml", Operation: triage.OpLiteralReplace,
		Match: "PATCHED", Replacement: "HELLO", Occurrence: 1,
	})
	final := filepath.Join(t.TempDir(), "final.xlsx")
	if _, err := triage.ApplyRecipe(mid, inverse, final); err != nil {
		t.Fatalf("inverse apply failed: %v", err)
	}

	before := readZipEntries(t, source)["xl/worksheets/sheet1.xml"]
	after := readZipEntries(t, final)["xl/worksheets/sheet1.xml"]
	if !bytes.Equal(before, after) {
		t.Fatalf("expected sheet1.xml to be byte-identical after forward+inverse replace.\nbefore: %s\nafter: %s", before, after)
	}
}

func TestApplyRecipeStubOnlyRecipeLeavesOutputUnchangedAndWarns(t *testing.T) {
	source := writeFixture(t, "candidate.xlsx", baseWorkbookParts())
	recipe := triage.NewPatchRecipe(source)
	recipe.Patches = append(recipe.Patches, triage.PatchOp{
		ID: "p1", Part: "xl/worksheets/sheet1.xml", Operation: triage.OpLiteralReplace,
		Match: triage.StubReviewRequired, Replacement: triage.StubReviewRequired,
	})
	output := filepath.Join(t.TempDir(), "out.xlsx")

	result, err := triage.ApplyRecipe(source, recipe, output)
	if !triage.IsPatchWarning(err) {
		t.Fatalf("expected a PatchWarning, got %v", err)
	}
	if result.Outcome != triage.OutcomeWarning {
		t.Fatalf("expected OutcomeWarning, got %v", result.Outcome)
	}
	if len(result.Skipped) != 1 {
		t.Fatalf("expected one skipped stub, got %d", len(result.Skipped))
	}

	before := readZipEntries(t, source)
	after := readZipEntries(t, output)
	for name, raw := range before {
		if !bytes.Equal(raw, after[name]) {
			t.Fatalf("expected %s to be untouched when the only op is a skipped stub", name)
		}
	}
}

func TestApplyRecipeMixedValidAndStubAppliesRealOpAndWarns(t *testing.T) {
	parts := withParts(baseWorkbookParts(), map[string]string{
		"xl/worksheets/sheet1.xml": `<?xml version="1.0"?><worksheet><sheetData>` +
			`<row r="1"><c r="A1"><v>HELLO</v></c></row></sheetData></worksheet>`,
	})
	source := writeFixture(t, "candidate.xlsx", parts)
	recipe := triage.NewPatchRecipe(source)
	recipe.Patches = append(recipe.Patches,
		triage.PatchOp{ID: "p1", Part: "xl/worksheets/sheet1.xml", Operation: triage.OpLiteralReplace,
			Match: "HELLO", Replacement: "PATCHED", Occurrence: 1},
		triage.PatchOp{ID: "p2", Part: "xl/worksheets/sheet1.xml", Operation: triage.OpLiteralReplace,
			Match: triage.StubReviewRequired, Replacement: triage.StubReviewRequired},
	)
	output := filepath.Join(t.TempDir(), "out.xlsx")

	result, err := triage.ApplyRecipe(source, recipe, output)
	if !triage.IsPatchWarning(err) {
		t.Fatalf("expected PatchWarning (not PatchError) for a mixed valid+stub recipe, got %v", err)
	}
	if len(result.Errors) != 0 {
		t.Fatalf("expected zero hard errors, got %v", result.Errors)
	}
	if len(result.Skipped) != 1 {
		t.Fatalf("expected one skipped stub, got %d", len(result.Skipped))
	}

	after := readZipEntries(t, output)
	if !bytes.Contains(after["xl/worksheets/sheet1.xml"], []byte("PATCHED")) {
		t.Fatalf("expected the real op to be applied despite the stub sitting alongside it")
	}
}

func TestApplyRecipeUnreachableMatchRaisesPatchError(t *testing.T) {
	source := writeFixture(t, "candidate.xlsx", baseWorkbookParts())
	recipe := triage.NewPatchRecipe(source)
	recipe.Patches = append(recipe.Patches, triage.PatchOp{
		ID: "p1", Part: "xl/worksheets/sheet1.xml", Operation: triage.OpLiteralReplace,
		Match: "THIS_STRING_DOES_NOT_EXIST_ANYWHERE", Replacement: "x", Occurrence: 1,
	})
	output := filepath.Join(t.TempDir(), "out.xlsx")

	result, err := triage.ApplyRecipe(source, recipe, output)
	if !triage.IsPatchError(err) {
		t.Fatalf("expected PatchError, got %v", err)
	}
	if result == nil {
		t.Fatalf("expected the output file to exist as post-mortem evidence even on PatchError")
	}
	if _, statErr := os.Stat(output); statErr != nil {
		t.Fatalf("expected output file to exist at %s: %v", output, statErr)
	}
	if len(result.Errors) != 1 {
		t.Fatalf("expected exactly one hard error, got %d", len(result.Errors))
	}
}

func TestApplyRecipePatchErrorSupersedesPatchWarning(t *testing.T) {
	source := writeFixture(t, "candidate.xlsx", baseWorkbookParts())
	recipe := triage.NewPatchRecipe(source)
	recipe.Patches = append(recipe.Patches,
		triage.PatchOp{ID: "p1", Part: "xl/worksheets/sheet1.xml", Operation: triage.OpLiteralReplace,
			Match: "THIS_STRING_DOES_NOT_EXIST_ANYWHERE", Replacement: "x", Occurrence: 1},
		triage.PatchOp{ID: "p2", Part: "xl/styles.xml", Operation: triage.OpLiteralReplace,
			Match: triage.StubReviewRequired, Replacement: triage.StubReviewRequired},
	)
	output := filepath.Join(t.TempDir(), "out.xlsx")

	result, err := triage.ApplyRecipe(source, recipe, output)
	if !triage.IsPatchError(err) {
		t.Fatalf("expected PatchError to supersede PatchWarning when both occur, got %v", err)
	}
	if result.Outcome != triage.OutcomeError {
		t.Fatalf("expected OutcomeError, got %v", result.Outcome)
	}
}

func TestApplyRecipeDeletePartRemovesEntry(t *testing.T) {
	parts := withParts(baseWorkbookParts(), map[string]string{
		"xl/calcChain.xml": `<?xml version="1.0"?><calcChain><c r="A1" i="1"/></calcChain>`,
	})
	source := writeFixture(t, "candidate.xlsx", parts)
	recipe := triage.NewPatchRecipe(source)
	recipe.Patches = append(recipe.Patches, triage.PatchOp{
		ID: "p1", Part: "xl/calcChain.xml", Operation: triage.OpDeletePart,
	})
	output := filepath.Join(t.TempDir(), "out.xlsx")

	result, err := triage.ApplyRecipe(source, recipe, output)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if result.Outcome != triage.OutcomeOK {
		t.Fatalf("expected OutcomeOK, got %v", result.Outcome)
	}

	entries := readZipEntries(t, output)
	if _, ok := entries["xl/calcChain.xml"]; ok {
		t.Fatalf("expected xl/calcChain.xml to be absent after delete_part")
	}
}

func TestApplyRecipeDeletePartOnAbsentEntryIsHardErrorButContinues(t *testing.T) {
	source := writeFixture(t, "candidate.xlsx", baseWorkbookParts())
	recipe := triage.NewPatchRecipe(source)
	recipe.Patches = append(recipe.Patches,
		triage.PatchOp{ID: "p1", Part: "xl/calcChain.xml", Operation: triage.OpDeletePart},
		triage.PatchOp{ID: "p2", Part: "xl/worksheets/sheet1.xml", Operation: triage.OpLiteralReplace,
			Match: "A1", Replacement: "A1", Occurrence: 1},
	)
	output := filepath.Join(t.TempDir(), "out.xlsx")

	result, err := triage.ApplyRecipe(source, recipe, output)
	if !triage.IsPatchError(err) {
		t.Fatalf("expected PatchError for delete_part on an absent entry, got %v", err)
	}
	if len(result.Errors) != 1 {
		t.Fatalf("expected exactly one hard error (the second op should still run), got %d: %v", len(result.Errors), result.Errors)
	}
}
