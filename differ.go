package triage

import (
	"sort"
	"strings"
)

const (
	diffContextLines = 4
	diffMaxLines     = 200
)

// DiffPackages compares a candidate package against a host-repaired copy at
// the ZIP-entry level: every part is classified added, removed, changed, or
// unchanged by content hash, and changed XML parts additionally carry a
// unified-diff snippet.
func DiffPackages(candidatePath, repairedPath string) (*DiffReport, error) {
	candScan, err := Scan(candidatePath)
	if err != nil {
		return nil, err
	}
	repScan, err := Scan(repairedPath)
	if err != nil {
		return nil, err
	}

	candMap := make(map[string]Part, len(candScan.Parts))
	for _, p := range candScan.Parts {
		candMap[p.Name] = p
	}
	repMap := make(map[string]Part, len(repScan.Parts))
	for _, p := range repScan.Parts {
		repMap[p.Name] = p
	}

	nameSet := make(map[string]bool, len(candMap)+len(repMap))
	for n := range candMap {
		nameSet[n] = true
	}
	for n := range repMap {
		nameSet[n] = true
	}
	allNames := make([]string, 0, len(nameSet))
	for n := range nameSet {
		allNames = append(allNames, n)
	}
	sort.Strings(allNames)

	report := &DiffReport{CandidatePath: candidatePath, RepairedPath: repairedPath}

	for _, name := range allNames {
		cp, inCand := candMap[name]
		rp, inRep := repMap[name]

		switch {
		case inCand && !inRep:
			report.Parts = append(report.Parts, PartDelta{
				Name: name, Status: "removed",
				CandidateSize: cp.Size, CandidateSHA256: cp.SHA256,
			})
		case inRep && !inCand:
			report.Parts = append(report.Parts, PartDelta{
				Name: name, Status: "added",
				RepairedSize: rp.Size, RepairedSHA256: rp.SHA256,
			})
		case cp.SHA256 == rp.SHA256:
			report.Parts = append(report.Parts, PartDelta{
				Name: name, Status: "unchanged",
				CandidateSize: cp.Size, RepairedSize: rp.Size,
				CandidateSHA256: cp.SHA256, RepairedSHA256: rp.SHA256,
			})
		default:
			var xmlDiff string
			if strings.HasSuffix(strings.ToLower(name), ".xml") {
				aRaw, err := ReadPartBytes(candidatePath, name)
				if err != nil {
					return nil, err
				}
				bRaw, err := ReadPartBytes(repairedPath, name)
				if err != nil {
					return nil, err
				}
				xmlDiff = unifiedDiff(splitLinesPermissive(aRaw), splitLinesPermissive(bRaw), diffContextLines, diffMaxLines)
			}
			report.Parts = append(report.Parts, PartDelta{
				Name: name, Status: "changed",
				CandidateSize: cp.Size, RepairedSize: rp.Size,
				SizeDelta:       rp.Size - cp.Size,
				CandidateSHA256: cp.SHA256, RepairedSHA256: rp.SHA256,
				XMLDiff: xmlDiff,
			})
		}
	}

	return report, nil
}

// splitLinesPermissive converts raw to a string (invalid UTF-8 sequences are
// kept as-is, neither dropped nor replaced) and splits on \r\n, \r and \n
// line boundaries without keeping the terminators.
func splitLinesPermissive(raw []byte) []string {
	s := string(raw)
	s = strings.ReplaceAll(s, "\r\n", "\n")
	s = strings.ReplaceAll(s, "\r", "\n")
	s = strings.TrimSuffix(s, "\n")
	if s == "" {
		return nil
	}
	return strings.Split(s, "\n")
}
