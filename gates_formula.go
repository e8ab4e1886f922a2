package triage

import (
	"regexp"
	"sort"
	"strconv"
	"strings"
)

// stopshipTokens are formula substrings the web host cannot evaluate and
// that force it into forced-repair mode.
var stopshipTokens = []string{"_xlfn.", "_xludf.", "_xlpm.", "AGGREGATE("}

var (
	reSheetFormula  = regexp.MustCompile(`(?s)<f\b[^>]*>(.*?)</f>`)
	reCondFormat    = regexp.MustCompile(`(?s)<conditionalFormatting\b.*?</conditionalFormatting>`)
	reRowAttr       = regexp.MustCompile(`<row[^>]*\br="(\d+)"`)
	reCalcChainCell = regexp.MustCompile(`<c\b[^>]*\br="([^"]+)"[^>]*\bi="(\d+)"[^>]*/>`)
	reCellRef       = regexp.MustCompile(`<c\b[^>]*\br="([A-Z]+\d+)"`)
	reFTag          = regexp.MustCompile(`(?s)<f\b([^>]*)>`)
	reSharedSi      = regexp.MustCompile(`\bsi="(\d+)"|\bsi='(\d+)'`)
	reSharedRef     = regexp.MustCompile(`\bref="([^"]+)"|\bref='([^']+)'`)
	reCellAddr      = regexp.MustCompile(`^([A-Z]+)(\d+)$`)
	reRangeRef      = regexp.MustCompile(`^([A-Z]+)(\d+):([A-Z]+)(\d+)$`)
)

func sheetParts(names []string) []string {
	var out []string
	for _, n := range names {
		if strings.HasPrefix(n, "xl/worksheets/sheet") && strings.HasSuffix(n, ".xml") {
			out = append(out, n)
		}
	}
	return out
}

func maxRow(xml string) int {
	max := 0
	for _, m := range reRowAttr.FindAllStringSubmatch(xml, -1) {
		n, err := strconv.Atoi(m[1])
		if err == nil && n > max {
			max = n
		}
	}
	return max
}

func colToNum(col string) int {
	n := 0
	for _, ch := range col {
		n = n*26 + int(ch-64)
	}
	return n
}

func numToCol(n int) string {
	var b []byte
	for n > 0 {
		n--
		r := n % 26
		b = append([]byte{byte('A' + r)}, b...)
		n /= 26
	}
	return string(b)
}

type rangeRef struct {
	c1 string
	r1 int
	c2 string
	r2 int
}

func parseRangeRef(ref string) (rangeRef, bool) {
	m := reRangeRef.FindStringSubmatch(ref)
	if m == nil {
		return rangeRef{}, false
	}
	r1, _ := strconv.Atoi(m[2])
	r2, _ := strconv.Atoi(m[4])
	return rangeRef{c1: m[1], r1: r1, c2: m[3], r2: r2}, true
}

// checkStopshipTokens finds formula bodies containing any of the reserved
// unsupported-function prefixes that the web host cannot evaluate.
func checkStopshipTokens(names []string, data map[string][]byte) []GateFinding {
	var hits []GateFinding
	for _, name := range sheetParts(names) {
		s := string(data[name])
		for _, m := range reSheetFormula.FindAllStringSubmatch(s, -1) {
			body := m[1]
			for _, tok := range stopshipTokens {
				if strings.Contains(body, tok) {
					snippet := body
					if len(snippet) > 120 {
						snippet = snippet[:120]
					}
					hits = append(hits, GateFinding{
						Part:    name,
						Issue:   "stopship_token",
						Excerpt: snippet,
						Data:    map[string]any{"token": tok},
					})
				}
			}
		}
	}
	return hits
}

// checkCFRefHits finds conditionalFormatting blocks whose formula references
// a broken #REF! cell, reporting at most one hit per part (the first such
// block).
func checkCFRefHits(names []string, data map[string][]byte) []GateFinding {
	var hits []GateFinding
	for _, name := range sheetParts(names) {
		s := string(data[name])
		for _, m := range reCondFormat.FindAllString(s, -1) {
			if strings.Contains(m, "#REF!") {
				snippet := m
				if len(snippet) > 200 {
					snippet = snippet[:200]
				}
				hits = append(hits, GateFinding{Part: name, Issue: "cf_ref_hit", Excerpt: snippet})
				break
			}
		}
	}
	return hits
}

// checkCalcChainInvalid verifies every xl/calcChain.xml entry points at a
// cell that actually carries a formula in its target sheet. Uses a
// </c>-split O(n) scan rather than a single DOTALL regex over the whole
// sheet to avoid catastrophic backtracking on large worksheets.
func checkCalcChainInvalid(names []string, data map[string][]byte) []GateFinding {
	var invalid []GateFinding
	if _, ok := data["xl/calcChain.xml"]; !ok {
		return invalid
	}
	calc := string(data["xl/calcChain.xml"])
	nameSet := make(map[string]bool, len(names))
	for _, n := range names {
		nameSet[n] = true
	}

	type cellEntry struct {
		cell string
		i    string
	}
	var entries []cellEntry
	for _, m := range reCalcChainCell.FindAllStringSubmatch(calc, -1) {
		entries = append(entries, cellEntry{cell: m[1], i: m[2]})
	}

	sheetCache := make(map[string]map[string]bool)
	missingParts := make(map[string]bool)
	for _, e := range entries {
		part := "xl/worksheets/sheet" + e.i + ".xml"
		pool, cached := sheetCache[part]
		if !cached {
			if !nameSet[part] {
				missingParts[part] = true
				sheetCache[part] = nil
			} else {
				pool = formulaCellsOf(string(data[part]))
				sheetCache[part] = pool
			}
		}
		pool = sheetCache[part]
		if pool == nil {
			invalid = append(invalid, GateFinding{
				Part: part, Issue: "calcchain_invalid",
				Data: map[string]any{"cell": e.cell, "reason": "missing_sheet_part"},
			})
		} else if !pool[e.cell] {
			invalid = append(invalid, GateFinding{
				Part: part, Issue: "calcchain_invalid",
				Data: map[string]any{"cell": e.cell, "reason": "no_formula_at_target"},
			})
		}
	}
	return invalid
}

// formulaCellsOf returns the set of cell references in xml that carry a
// <f> formula element, scanning via </c> splits to stay O(n).
func formulaCellsOf(xml string) map[string]bool {
	cells := make(map[string]bool)
	for _, chunk := range strings.Split(xml, "</c>") {
		ms := reCellRef.FindAllStringSubmatchIndex(chunk, -1)
		if len(ms) == 0 {
			continue
		}
		last := ms[len(ms)-1]
		cell := chunk[last[2]:last[3]]
		after := chunk[last[1]:]
		if strings.Contains(after, "<f") {
			cells[cell] = true
		}
	}
	return cells
}

// sharedFormulaCell is one shared-formula occurrence: the owning cell plus
// its raw <f ...> attribute text.
type sharedFormulaCell struct {
	cell string
	attr string
}

func iterSharedCells(xml string) []sharedFormulaCell {
	var out []sharedFormulaCell
	for _, chunk := range strings.Split(xml, "</c>") {
		ms := reCellRef.FindAllStringSubmatchIndex(chunk, -1)
		if len(ms) == 0 {
			continue
		}
		last := ms[len(ms)-1]
		cell := chunk[last[2]:last[3]]
		after := chunk[last[1]:]
		fm := reFTag.FindStringSubmatchIndex(after)
		if fm == nil {
			continue
		}
		out = append(out, sharedFormulaCell{cell: cell, attr: after[fm[2]:fm[3]]})
	}
	return out
}

func firstGroup(m []string) string {
	for _, g := range m[1:] {
		if g != "" {
			return g
		}
	}
	return ""
}

// checkSharedRef finds two classes of shared-formula hazards: a declared
// master range whose bottom row exceeds the sheet's own max row
// (out-of-bounds), and a declared range whose bounding box does not match
// the actual spread of cells sharing that formula (bbox mismatch).
func checkSharedRef(names []string, data map[string][]byte) (oob, bbox []GateFinding) {
	for _, part := range sheetParts(names) {
		s := string(data[part])
		mrow := maxRow(s)

		siCells := make(map[string][]string)
		siDecl := make(map[string]string)
		for _, sc := range iterSharedCells(s) {
			if !strings.Contains(sc.attr, `t="shared"`) && !strings.Contains(sc.attr, `t='shared'`) {
				continue
			}
			siM := reSharedSi.FindStringSubmatch(sc.attr)
			if siM == nil {
				continue
			}
			si := firstGroup(siM)
			siCells[si] = append(siCells[si], sc.cell)
			if refM := reSharedRef.FindStringSubmatch(sc.attr); refM != nil {
				siDecl[si] = firstGroup(refM)
			}
		}

		declaredSIs := make([]string, 0, len(siDecl))
		for si := range siDecl {
			declaredSIs = append(declaredSIs, si)
		}
		sort.Strings(declaredSIs)
		for _, si := range declaredSIs {
			ref := siDecl[si]
			if pr, ok := parseRangeRef(ref); ok && pr.r2 > mrow {
				oob = append(oob, GateFinding{
					Part: part, Issue: "shared_ref_oob",
					Data: map[string]any{"si": si, "ref": ref, "sheet_max_row": mrow},
				})
			}
		}

		cellSIs := make([]string, 0, len(siCells))
		for si := range siCells {
			cellSIs = append(cellSIs, si)
		}
		sort.Strings(cellSIs)
		for _, si := range cellSIs {
			declared, ok := siDecl[si]
			if !ok {
				continue
			}
			pr, ok := parseRangeRef(declared)
			if !ok {
				continue
			}
			var cmin, cmax, rmin, rmax int
			first := true
			for _, c := range siCells[si] {
				am := reCellAddr.FindStringSubmatch(c)
				if am == nil {
					continue
				}
				col := colToNum(am[1])
				row, _ := strconv.Atoi(am[2])
				if first {
					cmin, cmax, rmin, rmax = col, col, row, row
					first = false
					continue
				}
				if col < cmin {
					cmin = col
				}
				if col > cmax {
					cmax = col
				}
				if row < rmin {
					rmin = row
				}
				if row > rmax {
					rmax = row
				}
			}
			if first {
				continue
			}
			actual := numToCol(cmin) + strconv.Itoa(rmin) + ":" + numToCol(cmax) + strconv.Itoa(rmax)
			declaredStr := pr.c1 + strconv.Itoa(pr.r1) + ":" + pr.c2 + strconv.Itoa(pr.r2)
			if actual != declaredStr {
				bbox = append(bbox, GateFinding{
					Part: part, Issue: "shared_ref_bbox",
					Data: map[string]any{"si": si, "declared_ref": declaredStr, "actual_ref": actual},
				})
			}
		}
	}
	return oob, bbox
}
