package triage_test

import (
	"strings"
	"testing"

	triage "github.com/EndeavorEverlasting/web-excel-repair-triage"
)

func TestDiffPackagesClassifiesEveryStatus(t *testing.T) {
	candidate := writeFixture(t, "candidate.xlsx", withParts(baseWorkbookParts(), map[string]string{
		"xl/calcChain.xml": `<?xml version="1.0"?><calcChain><c r="A1" i="1"/></calcChain>`,
	}))
	repaired := writeFixture(t, "repaired.xlsx", withParts(baseWorkbookParts(), map[string]string{
		"xl/sharedStrings.xml": `<?xml version="1.0"?><sst><si><t>hello</t></si></sst>`,
	}))

	report, err := triage.DiffPackages(candidate, repaired)
	if err != nil {
		t.Fatalf("DiffPackages failed: %v", err)
	}

	if len(report.Removed()) != 1 || report.Removed()[0].Name != "xl/calcChain.xml" {
		t.Fatalf("expected xl/calcChain.xml to be removed, got %+v", report.Removed())
	}
	if len(report.Added()) != 1 || report.Added()[0].Name != "xl/sharedStrings.xml" {
		t.Fatalf("expected xl/sharedStrings.xml to be added, got %+v", report.Added())
	}
	for _, name := range []string{"xl/workbook.xml", "xl/worksheets/sheet1.xml", "xl/styles.xml", "[Content_Types].xml"} {
		found := false
		for _, p := range report.Unchanged() {
			if p.Name == name {
				found = true
			}
		}
		if !found {
			t.Fatalf("expected %s to be unchanged, unchanged set: %+v", name, report.Unchanged())
		}
	}
}

func TestDiffPackagesProducesUnifiedDiffForChangedXML(t *testing.T) {
	candidate := writeFixture(t, "candidate.xlsx", withParts(baseWorkbookParts(), map[string]string{
		"xl/worksheets/sheet1.xml": `<?xml version="1.0"?><worksheet><sheetData>` +
			`<row r="1"><c r="A1"><v>HELLO</v></c></row></sheetData></worksheet>`,
	}))
	repaired := writeFixture(t, "repaired.xlsx", withParts(baseWorkbookParts(), map[string]string{
		"xl/worksheets/sheet1.xml": `<?xml version="1.0"?><worksheet><sheetData>` +
			`<row r="1"><c r="A1"><v>PATCHED</v></c></row></sheetData></worksheet>`,
	}))

	report, err := triage.DiffPackages(candidate, repaired)
	if err != nil {
		t.Fatalf("DiffPackages failed: %v", err)
	}

	var delta *triage.PartDelta
	for i := range report.Parts {
		if report.Parts[i].Name == "xl/worksheets/sheet1.xml" {
			delta = &report.Parts[i]
		}
	}
	if delta == nil {
		t.Fatalf("expected a delta for xl/worksheets/sheet1.xml")
	}
	if delta.Status != "changed" {
		t.Fatalf("expected status changed, got %q", delta.Status)
	}
	if delta.XMLDiff == "" {
		t.Fatalf("expected a non-empty unified diff for a changed XML part")
	}
	if !strings.Contains(delta.XMLDiff, "-") || !strings.Contains(delta.XMLDiff, "+") {
		t.Fatalf("expected diff to contain removed and added lines, got %q", delta.XMLDiff)
	}

	lines := strings.Split(delta.XMLDiff, "\n")
	if len(lines) < 2 || lines[0] != "--- " || lines[1] != "+++ " {
		t.Fatalf("expected unified diff to open with bare --- / +++ headers, got %q", delta.XMLDiff)
	}
}

func TestDifferIsDeterministicAcrossRuns(t *testing.T) {
	candidate := writeFixture(t, "candidate.xlsx", baseWorkbookParts())
	repaired := writeFixture(t, "repaired.xlsx", withParts(baseWorkbookParts(), map[string]string{
		"xl/worksheets/sheet1.xml": `<?xml version="1.0"?><worksheet><sheetData>` +
			`<row r="1"><c r="A1"><v>2</v></c></row></sheetData></worksheet>`,
	}))

	a, err := triage.DiffPackages(candidate, repaired)
	if err != nil {
		t.Fatalf("first DiffPackages failed: %v", err)
	}
	b, err := triage.DiffPackages(candidate, repaired)
	if err != nil {
		t.Fatalf("second DiffPackages failed: %v", err)
	}

	if len(a.Parts) != len(b.Parts) {
		t.Fatalf("expected the same number of part deltas across runs")
	}
	for i := range a.Parts {
		if a.Parts[i] != b.Parts[i] {
			t.Fatalf("expected identical part delta at index %d across runs, got %+v vs %+v", i, a.Parts[i], b.Parts[i])
		}
	}
}

func TestUnifiedDiffTruncatesAt200Lines(t *testing.T) {
	var aLines, bLines []string
	for i := 0; i < 400; i++ {
		aLines = append(aLines, "line")
		bLines = append(bLines, "LINE")
	}
	candidateParts := withParts(baseWorkbookParts(), map[string]string{
		"xl/worksheets/sheet1.xml": strings.Join(aLines, "\n"),
	})
	repairedParts := withParts(baseWorkbookParts(), map[string]string{
		"xl/worksheets/sheet1.xml": strings.Join(bLines, "\n"),
	})
	candidate := writeFixture(t, "candidate.xlsx", candidateParts)
	repaired := writeFixture(t, "repaired.xlsx", repairedParts)

	report, err := triage.DiffPackages(candidate, repaired)
	if err != nil {
		t.Fatalf("DiffPackages failed: %v", err)
	}

	var delta *triage.PartDelta
	for i := range report.Parts {
		if report.Parts[i].Name == "xl/worksheets/sheet1.xml" {
			delta = &report.Parts[i]
		}
	}
	if delta == nil {
		t.Fatalf("expected a delta for xl/worksheets/sheet1.xml")
	}
	if !strings.Contains(delta.XMLDiff, "truncated at 200 lines") {
		t.Fatalf("expected truncation sentinel in long diff, got tail: %q",
			delta.XMLDiff[max(0, len(delta.XMLDiff)-80):])
	}
}
