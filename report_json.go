package triage

import "encoding/json"

// findingJSON flattens a GateFinding into a single JSON object: part,
// issue, excerpt (when present) alongside whatever ad hoc Data fields the
// gate attached.
func findingJSON(f GateFinding) map[string]any {
	out := map[string]any{"part": f.Part}
	if f.Issue != "" {
		out["issue"] = f.Issue
	}
	if f.Excerpt != "" {
		out["excerpt"] = f.Excerpt
	}
	for k, v := range f.Data {
		out[k] = v
	}
	return out
}

func sampleOf(findings []GateFinding, n int) []map[string]any {
	if len(findings) > n {
		findings = findings[:n]
	}
	out := make([]map[string]any, len(findings))
	for i, f := range findings {
		out[i] = findingJSON(f)
	}
	return out
}

// MarshalJSON renders GateReport as {path, pass, failing_gates, samples,
// triage.activetab}, matching the wire format the original system's
// GateReport.to_dict() produces.
func (r *GateReport) MarshalJSON() ([]byte, error) {
	by := r.byGate()
	return json.Marshal(map[string]any{
		"path":          r.Path,
		"pass":          r.Pass(),
		"failing_gates": r.FailingGates(),
		"samples": map[string]any{
			"stopship":          sampleOf(by["stopship"], 25),
			"cf_ref":            sampleOf(by["cf_ref"], 25),
			"tablecolumn_lf":    sampleOf(by["tablecolumn_lf"], 25),
			"calcchain_invalid": sampleOf(by["calcchain_invalid"], 25),
			"shared_ref_oob":    sampleOf(by["shared_ref_oob"], 25),
			"shared_ref_bbox":   sampleOf(by["shared_ref_bbox"], 25),
			"styles_dxf":        sampleOf(by["styles_dxf"], 25),
			"xml_wellformed":    sampleOf(by["xml_wellformed"], 10),
			"illegal_control":   sampleOf(by["illegal_control"], 10),
			"rels_missing":      sampleOf(by["rels_missing"], 20),
		},
		"triage": map[string]any{"activetab": activeTabJSON(r.ActiveView)},
	})
}

func activeTabJSON(av ActiveView) map[string]any {
	if !av.HasActiveTab {
		return map[string]any{}
	}
	out := map[string]any{
		"activeTab":  av.ActiveTab,
		"sheetCount": av.SheetCount,
	}
	if av.ActiveSheetName != "" {
		out["activeSheetName"] = av.ActiveSheetName
		out["activeSheetRid"] = av.ActiveSheetRID
	}
	return out
}

// partDeltaJSON renders a single changed PartDelta the way DiffReport's
// "changed" list entries are shaped in the wire format.
func partDeltaJSON(p PartDelta) map[string]any {
	return map[string]any{
		"part":             p.Name,
		"candidate_size":   p.CandidateSize,
		"repaired_size":    p.RepairedSize,
		"size_delta":       p.SizeDelta,
		"candidate_sha256": p.CandidateSHA256,
		"repaired_sha256":  p.RepairedSHA256,
		"xml_diff":         p.XMLDiff,
	}
}

// MarshalJSON renders DiffReport as {candidate, repaired, summary, added,
// removed, changed}, matching DiffReport.to_dict().
func (d *DiffReport) MarshalJSON() ([]byte, error) {
	added := d.Added()
	removed := d.Removed()
	changed := d.Changed()

	addedNames := make([]string, len(added))
	for i, p := range added {
		addedNames[i] = p.Name
	}
	removedNames := make([]string, len(removed))
	for i, p := range removed {
		removedNames[i] = p.Name
	}
	changedList := make([]map[string]any, len(changed))
	for i, p := range changed {
		changedList[i] = partDeltaJSON(p)
	}

	return json.Marshal(map[string]any{
		"candidate": d.CandidatePath,
		"repaired":  d.RepairedPath,
		"summary":   d.Summary(),
		"added":     addedNames,
		"removed":   removedNames,
		"changed":   changedList,
	})
}
