package triage

import (
	"fmt"
	"strings"
)

// diffOp is one line-level edit produced by myersDiff, carrying the actual
// line text so rendering never needs to re-index into the source slices.
type diffOp struct {
	kind string // "equal" | "insert" | "delete"
	text string
}

// myersDiff computes the shortest edit script turning a into b using the
// classic Myers O(ND) algorithm, returning it as a flat sequence of
// equal/insert/delete ops in a-then-b order.
func myersDiff(a, b []string) []diffOp {
	n, m := len(a), len(b)
	max := n + m
	if max == 0 {
		return nil
	}
	offset := max
	size := 2*max + 1
	trace := make([][]int, 0, max+1)

	v := make([]int, size)
	found := n == 0 && m == 0
	dFound := 0

	if !found {
	outer:
		for d := 0; d <= max; d++ {
			snapshot := make([]int, size)
			copy(snapshot, v)
			trace = append(trace, snapshot)
			for k := -d; k <= d; k += 2 {
				var x int
				if k == -d || (k != d && v[offset+k-1] < v[offset+k+1]) {
					x = v[offset+k+1]
				} else {
					x = v[offset+k-1] + 1
				}
				y := x - k
				for x < n && y < m && a[x] == b[y] {
					x++
					y++
				}
				v[offset+k] = x
				if x >= n && y >= m {
					dFound = d
					found = true
					break outer
				}
			}
		}
	}
	if n == 0 && m == 0 {
		return nil
	}

	// Backtrack through the recorded V arrays to recover the (x, y) path,
	// oldest state first.
	type point struct{ x, y int }
	path := []point{{n, m}}
	x, y := n, m
	for d := dFound; d > 0; d-- {
		vPrev := trace[d]
		k := x - y
		var prevK int
		if k == -d || (k != d && vPrev[offset+k-1] < vPrev[offset+k+1]) {
			prevK = k + 1
		} else {
			prevK = k - 1
		}
		prevX := vPrev[offset+prevK]
		prevY := prevX - prevK
		for x > prevX && y > prevY {
			x--
			y--
			path = append(path, point{x, y})
		}
		x, y = prevX, prevY
		path = append(path, point{x, y})
	}
	// Walk the d=0 snake (the common leading run) back to the origin.
	for x > 0 && y > 0 {
		x--
		y--
		path = append(path, point{x, y})
	}
	for i, j := 0, len(path)-1; i < j; i, j = i+1, j-1 {
		path[i], path[j] = path[j], path[i]
	}

	var ops []diffOp
	px, py := 0, 0
	for _, p := range path[1:] {
		dx, dy := p.x-px, p.y-py
		switch {
		case dx == 1 && dy == 1:
			ops = append(ops, diffOp{kind: "equal", text: a[px]})
		case dx == 1 && dy == 0:
			ops = append(ops, diffOp{kind: "delete", text: a[px]})
		case dx == 0 && dy == 1:
			ops = append(ops, diffOp{kind: "insert", text: b[py]})
		}
		px, py = p.x, p.y
	}
	return ops
}

// unifiedDiff produces a unified diff comparing a and b with the given
// number of lines of context. When there is at least one hunk, the output
// is prefixed with bare "--- "/"+++ " headers (the system this was ported
// from calls its diff routine with no fromfile/tofile labels, so those
// headers carry no path). Output beyond maxLines, headers included, is
// truncated with a trailing sentinel line.
func unifiedDiff(a, b []string, context, maxLines int) string {
	ops := myersDiff(a, b)
	if len(ops) == 0 {
		return ""
	}

	// Split into groups wherever more than 2*context equal lines separate two
	// changes, mirroring difflib's hunk-grouping behavior. The split falls
	// after the run's first context lines, so both sides keep full context.
	var groups [][]diffOp
	var cur []diffOp
	for i := 0; i < len(ops); i++ {
		cur = append(cur, ops[i])
		if ops[i].kind != "equal" {
			continue
		}
		run := 0
		for j := i; j >= 0 && ops[j].kind == "equal"; j-- {
			run++
		}
		if run == max(context, 1) {
			fwd := 0
			nextChangeFound := false
			for j := i + 1; j < len(ops); j++ {
				if ops[j].kind != "equal" {
					nextChangeFound = true
					break
				}
				fwd++
			}
			if nextChangeFound && run+fwd > 2*context {
				groups = append(groups, cur)
				cur = nil
			}
		}
	}
	if len(cur) > 0 {
		groups = append(groups, cur)
	}

	aLine, bLine := 1, 1
	var out []string
	for _, g := range groups {
		h, consumedA, consumedB := renderHunk(g, context, aLine, bLine)
		aLine += consumedA
		bLine += consumedB
		if len(h) == 0 {
			continue
		}
		out = append(out, h...)
	}
	if len(out) == 0 {
		return ""
	}

	full := make([]string, 0, len(out)+2)
	full = append(full, "--- ", "+++ ")
	full = append(full, out...)

	if len(full) > maxLines {
		full = full[:maxLines]
		full = append(full, fmt.Sprintf("... diff truncated at %d lines ...", maxLines))
	}
	return strings.Join(full, "\n")
}

// renderHunk trims a group's leading/trailing equal runs down to context
// lines and renders a single "@@ ... @@" hunk, returning its lines plus how
// many a-side and b-side source lines the untrimmed group consumed (so the
// caller can track absolute line numbers across groups).
func renderHunk(group []diffOp, context, aLineStart, bLineStart int) (lines []string, consumedA, consumedB int) {
	for _, op := range group {
		switch op.kind {
		case "equal":
			consumedA++
			consumedB++
		case "delete":
			consumedA++
		case "insert":
			consumedB++
		}
	}

	start := 0
	for start < len(group) && group[start].kind == "equal" {
		start++
	}
	end := len(group)
	for end > start && group[end-1].kind == "equal" {
		end--
	}
	if start == len(group) {
		return nil, consumedA, consumedB
	}

	leadFrom := start - context
	if leadFrom < 0 {
		leadFrom = 0
	}
	trailTo := end + context
	if trailTo > len(group) {
		trailTo = len(group)
	}

	// Walk the full group computing line numbers as we go, only emitting
	// text for ops within [leadFrom, trailTo).
	aNum, bNum := aLineStart, bLineStart
	var hunkAStart, hunkBStart int
	aCount, bCount := 0, 0
	var body []string
	for i, op := range group {
		if i == leadFrom {
			hunkAStart, hunkBStart = aNum, bNum
		}
		inWindow := i >= leadFrom && i < trailTo
		switch op.kind {
		case "equal":
			if inWindow {
				body = append(body, " "+op.text)
				aCount++
				bCount++
			}
			aNum++
			bNum++
		case "delete":
			if inWindow {
				body = append(body, "-"+op.text)
				aCount++
			}
			aNum++
		case "insert":
			if inWindow {
				body = append(body, "+"+op.text)
				bCount++
			}
			bNum++
		}
	}

	header := fmt.Sprintf("@@ -%d,%d +%d,%d @@", hunkAStart, aCount, hunkBStart, bCount)
	return append([]string{header}, body...), consumedA, consumedB
}
