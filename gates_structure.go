package triage

import (
	"bytes"
	"encoding/xml"
	"fmt"
	"io"
	"regexp"
	"strconv"
	"strings"
)

var (
	reDxfs      = regexp.MustCompile(`<dxfs\b[^>]*\bcount="(\d+)"`)
	reDxf       = regexp.MustCompile(`<dxf\b`)
	reCfRuleDxf = regexp.MustCompile(`<cfRule\b[^>]*\bdxfId="(\d+)"`)
	reRelTag    = regexp.MustCompile(`<Relationship\b[^>]*>`)
	reRelTarget = regexp.MustCompile(`\bTarget="([^"]+)"`)
	reWbViewTab = regexp.MustCompile(`<workbookView\b[^>]*\bactiveTab="(\d+)"`)
	reWbSheet   = regexp.MustCompile(`<sheet\b[^>]*\bname="([^"]+)"[^>]*\br:id="([^"]+)"[^>]*/>`)
)

// checkTableColumnLF flags xl/tables/tableN.xml parts whose column name
// attribute contains an embedded newline or carriage return. Only the first
// hit in a given part is reported, matching the original system's
// first-hit-per-part behavior (spec.md §9 Open Question resolution).
func checkTableColumnLF(names []string, data map[string][]byte) []GateFinding {
	var hits []GateFinding
	for _, name := range names {
		if !strings.HasPrefix(name, "xl/tables/table") || !strings.HasSuffix(name, ".xml") {
			continue
		}
		raw := data[name]
		idx := 0
		for {
			j := bytes.Index(raw[idx:], []byte(`name="`))
			if j < 0 {
				break
			}
			j = idx + j + len(`name="`)
			k := bytes.IndexByte(raw[j:], '"')
			if k < 0 {
				break
			}
			k = j + k
			val := raw[j:k]
			if bytes.ContainsAny(val, "\n\r") {
				hits = append(hits, GateFinding{
					Part: name, Issue: "tablecolumn_lf",
					Excerpt: string(bytes.ReplaceAll(val, []byte{0}, nil)),
				})
				break
			}
			idx = k + 1
		}
	}
	return hits
}

// checkStylesDXF validates xl/styles.xml's declared dxfs count against the
// actual number of <dxf> elements, and flags conditional-format rules whose
// dxfId falls outside the valid range.
func checkStylesDXF(names []string, data map[string][]byte) []GateFinding {
	raw, ok := data["xl/styles.xml"]
	if !ok {
		return []GateFinding{{Part: "xl/styles.xml", Issue: "missing_styles"}}
	}
	var issues []GateFinding
	txt := string(raw)
	actual := len(reDxf.FindAllString(txt, -1))
	if m := reDxfs.FindStringSubmatch(txt); m != nil {
		declared, _ := strconv.Atoi(m[1])
		if declared != actual {
			issues = append(issues, GateFinding{
				Part: "xl/styles.xml", Issue: "dxfs_count_mismatch",
				Data: map[string]any{"declared": declared, "actual": actual},
			})
		}
	}
	for _, name := range sheetParts(names) {
		s := string(data[name])
		for _, m := range reCfRuleDxf.FindAllStringSubmatch(s, -1) {
			did, _ := strconv.Atoi(m[1])
			if did < 0 || did >= actual {
				issues = append(issues, GateFinding{
					Part: name, Issue: "cf_dxfId_out_of_range",
					Data: map[string]any{"dxfId": did, "dxf_count": actual},
				})
			}
		}
	}
	return issues
}

// checkXMLWellformed is the one gate permitted to parse XML: it feeds each
// .xml part through a token-stream decoder (never building a tree) purely
// to confirm the bytes are well-formed markup.
func checkXMLWellformed(names []string, data map[string][]byte) []GateFinding {
	var bad []GateFinding
	for _, name := range names {
		if !strings.HasSuffix(strings.ToLower(name), ".xml") {
			continue
		}
		dec := xml.NewDecoder(bytes.NewReader(data[name]))
		var tokErr error
		for {
			_, err := dec.Token()
			if err != nil {
				if err != io.EOF {
					tokErr = err
				}
				break
			}
		}
		if tokErr != nil {
			bad = append(bad, GateFinding{
				Part: name, Issue: "xml_not_wellformed",
				Excerpt: fmt.Sprintf("%T: %v", tokErr, tokErr),
			})
		}
	}
	return bad
}

// checkIllegalControlChars flags .xml parts containing raw control bytes
// below 0x20 other than tab, LF and CR, which OOXML forbids unescaped.
func checkIllegalControlChars(names []string, data map[string][]byte) []GateFinding {
	var bad []GateFinding
	for _, name := range names {
		if !strings.HasSuffix(strings.ToLower(name), ".xml") {
			continue
		}
		raw := data[name]
		var examples []map[string]any
		for i, b := range raw {
			if b < 0x20 && b != 0x09 && b != 0x0A && b != 0x0D {
				examples = append(examples, map[string]any{"offset": i, "byte": int(b)})
				if len(examples) == 10 {
					break
				}
			}
		}
		if len(examples) > 0 {
			bad = append(bad, GateFinding{Part: name, Issue: "illegal_control_chars", Data: map[string]any{"examples": examples}})
		}
	}
	return bad
}

// checkRelsMissing resolves every internal relationship Target against the
// package's own part list, flagging any that resolve to a part not present
// in the archive. External relationships are skipped.
func checkRelsMissing(names []string, data map[string][]byte) []GateFinding {
	allParts := make(map[string]bool, len(names))
	for _, n := range names {
		allParts[n] = true
	}
	var missing []GateFinding
	for _, rels := range names {
		if !strings.HasSuffix(rels, ".rels") {
			continue
		}
		txt := string(data[rels])
		for _, tag := range reRelTag.FindAllString(txt, -1) {
			if strings.Contains(tag, "External") {
				continue
			}
			tm := reRelTarget.FindStringSubmatch(tag)
			if tm == nil {
				continue
			}
			target := tm[1]
			resolved := resolveRelTarget(rels, target)
			if !allParts[resolved] {
				missing = append(missing, GateFinding{
					Part: rels, Issue: "rels_missing_target",
					Data: map[string]any{"target": target, "resolved": resolved},
				})
			}
		}
	}
	return missing
}

// resolveRelTarget resolves a relationship Target path relative to the
// directory that owns rels (one level above the _rels folder containing
// it), collapsing "." segments and double slashes and letting each ".."
// segment remove the segment before it.
func resolveRelTarget(rels, target string) string {
	base := rels
	if i := strings.LastIndex(base, "/"); i >= 0 {
		base = base[:i]
	} else {
		base = ""
	}
	owner := base
	if i := strings.LastIndex(base, "/"); i >= 0 {
		owner = base[:i]
	} else {
		owner = ""
	}
	joined := strings.ReplaceAll(owner+"/"+target, "//", "/")
	parts := strings.Split(joined, "/")
	var out []string
	for _, p := range parts {
		if p == "" || p == "." {
			continue
		}
		if p == ".." {
			if len(out) > 0 {
				out = out[:len(out)-1]
			}
			continue
		}
		out = append(out, p)
	}
	return strings.Join(out, "/")
}

// checkWorkbookActiveTab extracts the triage-only active-sheet view from
// xl/workbook.xml. It never fails or contributes to GateReport.Pass.
func checkWorkbookActiveTab(names []string, data map[string][]byte) ActiveView {
	var av ActiveView
	raw, ok := data["xl/workbook.xml"]
	if !ok {
		return av
	}
	wb := string(raw)
	m := reWbViewTab.FindStringSubmatch(wb)
	if m == nil {
		return av
	}
	active, _ := strconv.Atoi(m[1])
	av.ActiveTab = active
	av.HasActiveTab = true
	sheets := reWbSheet.FindAllStringSubmatch(wb, -1)
	av.SheetCount = len(sheets)
	if active >= 0 && active < len(sheets) {
		av.ActiveSheetName = sheets[active][1]
		av.ActiveSheetRID = sheets[active][2]
	}
	return av
}

// RunGates runs the full ten-gate battery plus the active-view triage
// helper against path and returns the assembled GateReport.
func RunGates(path string) (*GateReport, error) {
	names, data, err := readAllParts(path)
	if err != nil {
		return nil, err
	}

	oob, bbox := checkSharedRef(names, data)
	return &GateReport{
		Path:             path,
		StopshipTokens:   checkStopshipTokens(names, data),
		CFRefHits:        checkCFRefHits(names, data),
		TableColumnLF:    checkTableColumnLF(names, data),
		CalcChainInvalid: checkCalcChainInvalid(names, data),
		SharedRefOOB:     oob,
		SharedRefBBox:    bbox,
		StylesDXF:        checkStylesDXF(names, data),
		XMLWellformed:    checkXMLWellformed(names, data),
		IllegalControl:   checkIllegalControlChars(names, data),
		RelsMissing:      checkRelsMissing(names, data),
		ActiveView:       checkWorkbookActiveTab(names, data),
	}, nil
}
