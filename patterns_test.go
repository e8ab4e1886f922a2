package triage_test

import (
	"testing"

	triage "github.com/EndeavorEverlasting/web-excel-repair-triage"
)

func findPattern(patterns []triage.Pattern, name string) *triage.Pattern {
	for i := range patterns {
		if patterns[i].Name == name {
			return &patterns[i]
		}
	}
	return nil
}

func TestClassifyPatternsDetectsCalcChainDrop(t *testing.T) {
	diff := &triage.DiffReport{
		Parts: []triage.PartDelta{
			{Name: "xl/calcChain.xml", Status: "removed"},
		},
	}
	patterns := triage.ClassifyPatterns(diff)
	p := findPattern(patterns, "CALCCHAIN_DROP")
	if p == nil {
		t.Fatalf("expected CALCCHAIN_DROP pattern, got %+v", patterns)
	}
	if p.Confidence != triage.ConfidenceHigh {
		t.Fatalf("expected HIGH confidence, got %v", p.Confidence)
	}
}

func TestClassifyPatternsDetectsDxfsInsertionConfidence(t *testing.T) {
	withCount := &triage.DiffReport{Parts: []triage.PartDelta{
		{Name: "xl/styles.xml", Status: "changed", XMLDiff: "@@ -1,1 +1,3 @@\n-<dxfs count=\"5\">\n+<dxfs count=\"7\">\n+<dxf/>"},
	}}
	p := findPattern(triage.ClassifyPatterns(withCount), "DXFS_INSERTION")
	if p == nil || p.Confidence != triage.ConfidenceHigh {
		t.Fatalf("expected HIGH confidence when count= line is also added, got %+v", p)
	}

	withoutCount := &triage.DiffReport{Parts: []triage.PartDelta{
		{Name: "xl/styles.xml", Status: "changed", XMLDiff: "@@ -1,1 +1,2 @@\n <dxfs count=\"7\">\n+<dxf/>"},
	}}
	p2 := findPattern(triage.ClassifyPatterns(withoutCount), "DXFS_INSERTION")
	if p2 == nil || p2.Confidence != triage.ConfidenceMedium {
		t.Fatalf("expected MEDIUM confidence without a count= change, got %+v", p2)
	}
}

func TestClassifyPatternsDetectsCFDxfIDClone(t *testing.T) {
	diff := &triage.DiffReport{Parts: []triage.PartDelta{
		{Name: "xl/worksheets/sheet1.xml", Status: "changed",
			XMLDiff: "@@ -1,1 +1,1 @@\n-<cfRule dxfId=\"0\"/>\n+<cfRule dxfId=\"3\"/>"},
	}}
	p := findPattern(triage.ClassifyPatterns(diff), "CF_DXFID_CLONE")
	if p == nil {
		t.Fatalf("expected CF_DXFID_CLONE pattern")
	}
	if p.Confidence != triage.ConfidenceHigh {
		t.Fatalf("expected HIGH confidence, got %v", p.Confidence)
	}
}

func TestClassifyPatternsDetectsSharedStringsRebuild(t *testing.T) {
	diff := &triage.DiffReport{Parts: []triage.PartDelta{
		{Name: "xl/sharedStrings.xml", Status: "changed", XMLDiff: "@@ -1,1 +1,1 @@\n-<si><t>a</t></si>\n+<si><t>b</t></si>"},
	}}
	p := findPattern(triage.ClassifyPatterns(diff), "SHAREDSTRINGS_REBUILD")
	if p == nil || p.Confidence != triage.ConfidenceMedium {
		t.Fatalf("expected MEDIUM SHAREDSTRINGS_REBUILD, got %+v", p)
	}
}

func TestClassifyPatternsDetectsTableStyleNorm(t *testing.T) {
	diff := &triage.DiffReport{Parts: []triage.PartDelta{
		{Name: "xl/tables/table1.xml", Status: "changed", XMLDiff: "@@ -1,1 +1,1 @@\n-<tableStyleInfo name=\"Bogus\"/>\n+<tableStyleInfo name=\"TableStyleMedium9\"/>"},
	}}
	p := findPattern(triage.ClassifyPatterns(diff), "TABLE_STYLE_NORM")
	if p == nil || p.Confidence != triage.ConfidenceMedium {
		t.Fatalf("expected MEDIUM TABLE_STYLE_NORM, got %+v", p)
	}
}

func TestClassifyPatternsDetectsSharedRefTrim(t *testing.T) {
	diff := &triage.DiffReport{Parts: []triage.PartDelta{
		{Name: "xl/worksheets/sheet1.xml", Status: "changed", XMLDiff: "@@ -1,1 +1,1 @@\n-<f t=\"shared\" ref=\"A1:A100\" si=\"0\">X</f>\n+<f t=\"shared\" ref=\"A1:A50\" si=\"0\">X</f>"},
	}}
	p := findPattern(triage.ClassifyPatterns(diff), "SHARED_REF_TRIM")
	if p == nil || p.Confidence != triage.ConfidenceHigh {
		t.Fatalf("expected HIGH SHARED_REF_TRIM, got %+v", p)
	}
}

func TestClassifyPatternsDetectsRelsCleanup(t *testing.T) {
	diff := &triage.DiffReport{Parts: []triage.PartDelta{
		{Name: "xl/_rels/workbook.xml.rels", Status: "changed", XMLDiff: "@@ -1,1 +1,1 @@\n-<Relationship Id=\"rId9\" Target=\"missing.xml\"/>\n"},
	}}
	p := findPattern(triage.ClassifyPatterns(diff), "RELS_CLEANUP")
	if p == nil || p.Confidence != triage.ConfidenceMedium {
		t.Fatalf("expected MEDIUM RELS_CLEANUP, got %+v", p)
	}
}

func TestClassifyPatternsPreservesCatalogueOrder(t *testing.T) {
	diff := &triage.DiffReport{Parts: []triage.PartDelta{
		{Name: "xl/calcChain.xml", Status: "removed"},
		{Name: "xl/styles.xml", Status: "changed", XMLDiff: "@@ -1,1 +1,1 @@\n+<dxf/>"},
		{Name: "xl/sharedStrings.xml", Status: "changed", XMLDiff: "@@ -1,1 +1,1 @@\n-a\n+b"},
		{Name: "xl/_rels/workbook.xml.rels", Status: "changed", XMLDiff: "@@ -1,1 +1,1 @@\n-a\n+b"},
	}}
	patterns := triage.ClassifyPatterns(diff)
	wantOrder := []string{"CALCCHAIN_DROP", "DXFS_INSERTION", "SHAREDSTRINGS_REBUILD", "RELS_CLEANUP"}
	if len(patterns) != len(wantOrder) {
		t.Fatalf("expected %d patterns, got %d: %+v", len(wantOrder), len(patterns), patterns)
	}
	for i, name := range wantOrder {
		if patterns[i].Name != name {
			t.Fatalf("expected pattern %d to be %s, got %s", i, name, patterns[i].Name)
		}
	}
}

func TestClassifyPatternsEmptyDiffYieldsNoPatterns(t *testing.T) {
	diff := &triage.DiffReport{Parts: []triage.PartDelta{
		{Name: "xl/workbook.xml", Status: "unchanged"},
	}}
	if patterns := triage.ClassifyPatterns(diff); len(patterns) != 0 {
		t.Fatalf("expected no patterns for an unchanged-only diff, got %+v", patterns)
	}
}
