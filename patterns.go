package triage

import (
	"fmt"
	"strings"
)

// patternDetector inspects a DiffReport and reports a matched Pattern, or
// ok=false if its signature is absent.
type patternDetector func(*DiffReport) (Pattern, bool)

func detectCalcChainDrop(diff *DiffReport) (Pattern, bool) {
	for _, p := range diff.Removed() {
		if p.Name == "xl/calcChain.xml" {
			return Pattern{
				Name: "CALCCHAIN_DROP",
				Description: "Excel removed xl/calcChain.xml during repair. " +
					"The calcChain had entries pointing to non-formula cells.",
				AffectedParts:  []string{"xl/calcChain.xml"},
				Confidence:     ConfidenceHigh,
				SuggestedPatch: "delete_part: xl/calcChain.xml",
			}, true
		}
	}
	return Pattern{}, false
}

func detectDxfsInsertion(diff *DiffReport) (Pattern, bool) {
	for _, p := range diff.Changed() {
		if p.Name != "xl/styles.xml" || p.XMLDiff == "" {
			continue
		}
		addedDxf, changedCount := 0, 0
		for _, ln := range strings.Split(p.XMLDiff, "\n") {
			if strings.HasPrefix(ln, "+") {
				if strings.Contains(ln, "<dxf") {
					addedDxf++
				}
				if strings.Contains(ln, `count="`) {
					changedCount++
				}
			}
		}
		if addedDxf > 0 {
			conf := ConfidenceMedium
			if changedCount > 0 {
				conf = ConfidenceHigh
			}
			return Pattern{
				Name: "DXFS_INSERTION",
				Description: fmt.Sprintf("Excel inserted %d <dxf> element(s) into xl/styles.xml "+
					"and updated dxfs/@count. Likely triggered by cfRule dxfId references "+
					"pointing beyond the declared dxf pool.", addedDxf),
				AffectedParts: []string{"xl/styles.xml"},
				Confidence:    conf,
				SuggestedPatch: "append_block: insert missing <dxf> entries before </dxfs>, " +
					"then literal_replace dxfs count= to match new total.",
			}, true
		}
	}
	return Pattern{}, false
}

func detectCfDxfIDClone(diff *DiffReport) (Pattern, bool) {
	for _, p := range diff.Changed() {
		if !strings.HasPrefix(p.Name, "xl/worksheets/sheet") || p.XMLDiff == "" {
			continue
		}
		minusDxf, plusDxf := 0, 0
		for _, ln := range strings.Split(p.XMLDiff, "\n") {
			if strings.HasPrefix(ln, "-") && strings.Contains(ln, "dxfId=") {
				minusDxf++
			}
			if strings.HasPrefix(ln, "+") && strings.Contains(ln, "dxfId=") {
				plusDxf++
			}
		}
		if minusDxf > 0 && plusDxf > 0 {
			return Pattern{
				Name: "CF_DXFID_CLONE",
				Description: fmt.Sprintf("Excel renumbered dxfId values in conditional formatting "+
					"rules (%d removed, %d added lines). Affected part: %s", minusDxf, plusDxf, p.Name),
				AffectedParts: []string{p.Name, "xl/styles.xml"},
				Confidence:    ConfidenceHigh,
				SuggestedPatch: "literal_replace: update each dxfId= in cfRule to reference valid index " +
					"within dxfs pool, or append missing dxf entries.",
			}, true
		}
	}
	return Pattern{}, false
}

func detectSharedStringsRebuild(diff *DiffReport) (Pattern, bool) {
	for _, p := range diff.Changed() {
		if p.Name == "xl/sharedStrings.xml" {
			return Pattern{
				Name: "SHAREDSTRINGS_REBUILD",
				Description: "Excel rebuilt xl/sharedStrings.xml. This often happens when si/t " +
					"elements have illegal control characters or malformed XML.",
				AffectedParts: []string{"xl/sharedStrings.xml"},
				Confidence:    ConfidenceMedium,
				SuggestedPatch: "check illegal_control gate, then strip or encode offending bytes.",
			}, true
		}
	}
	return Pattern{}, false
}

func detectTableStyleNorm(diff *DiffReport) (Pattern, bool) {
	var hits []PartDelta
	for _, p := range diff.Changed() {
		if strings.HasPrefix(p.Name, "xl/tables/table") && strings.HasSuffix(p.Name, ".xml") {
			hits = append(hits, p)
		}
	}
	if len(hits) == 0 {
		return Pattern{}, false
	}
	names := make([]string, len(hits))
	for i, p := range hits {
		names[i] = p.Name
	}
	return Pattern{
		Name: "TABLE_STYLE_NORM",
		Description: fmt.Sprintf("Excel normalised %d table XML part(s). "+
			"Common cause: tableStyleInfo name pointing to a non-existent style, "+
			"or tableColumn/@name containing linefeeds.", len(hits)),
		AffectedParts: names,
		Confidence:    ConfidenceMedium,
		SuggestedPatch: "literal_replace: set tableStyleInfo name= to a built-in style " +
			"(e.g. TableStyleMedium9), strip linefeeds from tableColumn name=.",
	}, true
}

func detectSharedRefTrim(diff *DiffReport) (Pattern, bool) {
	for _, p := range diff.Changed() {
		if !strings.HasPrefix(p.Name, "xl/worksheets/sheet") || p.XMLDiff == "" {
			continue
		}
		for _, ln := range strings.Split(p.XMLDiff, "\n") {
			if !strings.Contains(ln, "ref=") {
				continue
			}
			if strings.HasPrefix(ln, "-") || strings.HasPrefix(ln, "+") {
				return Pattern{
					Name: "SHARED_REF_TRIM",
					Description: fmt.Sprintf("Excel adjusted shared formula ref= bounding boxes in %s. "+
						"Declared bbox extended beyond actual data rows (OOB) or mismatched "+
						"participating cells.", p.Name),
					AffectedParts: []string{p.Name},
					Confidence:    ConfidenceHigh,
					SuggestedPatch: "literal_replace: update ref= attribute on shared formula base cell " +
						"to match actual bounding box of all si= siblings.",
				}, true
			}
		}
	}
	return Pattern{}, false
}

func detectRelsCleanup(diff *DiffReport) (Pattern, bool) {
	var hits []PartDelta
	for _, p := range diff.Changed() {
		if strings.HasSuffix(p.Name, ".rels") {
			hits = append(hits, p)
		}
	}
	if len(hits) == 0 {
		return Pattern{}, false
	}
	names := make([]string, len(hits))
	for i, p := range hits {
		names[i] = p.Name
	}
	return Pattern{
		Name: "RELS_CLEANUP",
		Description: fmt.Sprintf("Excel rewrote %d relationship part(s): %s. "+
			"Missing or orphaned relationship targets are common triggers.",
			len(hits), strings.Join(names, ", ")),
		AffectedParts:  names,
		Confidence:     ConfidenceMedium,
		SuggestedPatch: "check rels_missing gate; add or remove Relationship entries to match.",
	}, true
}

// patternDetectors lists the closed catalogue in fixed evaluation order.
var patternDetectors = []patternDetector{
	detectCalcChainDrop,
	detectDxfsInsertion,
	detectCfDxfIDClone,
	detectSharedStringsRebuild,
	detectTableStyleNorm,
	detectSharedRefTrim,
	detectRelsCleanup,
}

// ClassifyPatterns runs every pattern detector against diff, in catalogue
// order, and returns the matches.
func ClassifyPatterns(diff *DiffReport) []Pattern {
	var out []Pattern
	for _, detect := range patternDetectors {
		if p, ok := detect(diff); ok {
			out = append(out, p)
		}
	}
	return out
}
