package triage

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Patch operation discriminators. A PatchOp carries exactly one of these in
// its Operation field; the four-operation set is closed — ApplyRecipe
// rejects anything else.
const (
	OpLiteralReplace = "literal_replace"
	OpAppendBlock    = "append_block"
	OpDeletePart     = "delete_part"
	OpSetPart        = "set_part"
)

// Reserved stub sentinel strings. A recipe builder emits these in place of
// a real match/replacement value when the correct fix requires a human to
// inspect the diff; the Patch Engine recognizes them and skips the op
// instead of executing them as a literal match, producing a PatchWarning.
const (
	StubReviewRequired   = "<REVIEW_REQUIRED>"
	StubFillInLinefeed   = "<FILL_IN_LINEFEED_VALUE>"
	StubFillInCleanValue = "<FILL_IN_CLEAN_VALUE>"
)

// stubSentinels lists every reserved token the Patch Engine treats as "not
// a real value" when deciding whether to skip an op.
var stubSentinels = map[string]bool{
	StubReviewRequired:   true,
	StubFillInLinefeed:   true,
	StubFillInCleanValue: true,
}

// PatchOp is a single patch instruction. Only the fields relevant to
// Operation are populated; MarshalJSON/UnmarshalJSON restrict the wire
// representation to exactly those fields, matching the original system's
// conditional to_dict().
type PatchOp struct {
	ID          string
	Part        string
	Operation   string
	Description string

	// literal_replace
	Match       string
	Replacement string
	Occurrence  int

	// append_block
	Anchor   string
	Block    string
	Position string // "before" | "after"

	// set_part
	Content string
}

// NewPatchOpID generates a random patch-op identifier shaped "p" + 6 lower
// hex characters, mirroring f"p{uuid.uuid4().hex[:6]}".
func NewPatchOpID() string {
	return "p" + strings.ToLower(strings.ReplaceAll(uuid.NewString(), "-", ""))[:6]
}

// IsStub reports whether op's match field is a reserved sentinel value
// rather than real content, meaning it cannot be safely applied without a
// human filling it in first.
func (op PatchOp) IsStub() bool {
	return op.Operation == OpLiteralReplace && stubSentinels[op.Match]
}

type patchOpWire struct {
	ID          string  `json:"id"`
	Part        string  `json:"part"`
	Operation   string  `json:"operation"`
	Description string  `json:"description"`
	Match       *string `json:"match,omitempty"`
	Replacement *string `json:"replacement,omitempty"`
	Occurrence  *int    `json:"occurrence,omitempty"`
	Anchor      *string `json:"anchor,omitempty"`
	Block       *string `json:"block,omitempty"`
	Position    *string `json:"position,omitempty"`
	Content     *string `json:"content,omitempty"`
}

// MarshalJSON emits only the fields relevant to op.Operation, matching the
// original system's conditional to_dict().
func (op PatchOp) MarshalJSON() ([]byte, error) {
	w := patchOpWire{ID: op.ID, Part: op.Part, Operation: op.Operation, Description: op.Description}
	switch op.Operation {
	case OpLiteralReplace:
		w.Match = &op.Match
		w.Replacement = &op.Replacement
		occ := op.Occurrence
		if occ == 0 {
			occ = 1
		}
		w.Occurrence = &occ
	case OpAppendBlock:
		w.Anchor = &op.Anchor
		w.Block = &op.Block
		pos := op.Position
		if pos == "" {
			pos = "before"
		}
		w.Position = &pos
	case OpSetPart:
		w.Content = &op.Content
	}
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(w); err != nil {
		return nil, err
	}
	return bytes.TrimRight(buf.Bytes(), "\n"), nil
}

// UnmarshalJSON reconstructs a PatchOp from any of the four operation
// shapes the wire format allows.
func (op *PatchOp) UnmarshalJSON(b []byte) error {
	var w patchOpWire
	if err := json.Unmarshal(b, &w); err != nil {
		return err
	}
	*op = PatchOp{ID: w.ID, Part: w.Part, Operation: w.Operation, Description: w.Description}
	if w.Match != nil {
		op.Match = *w.Match
	}
	if w.Replacement != nil {
		op.Replacement = *w.Replacement
	}
	if w.Occurrence != nil {
		op.Occurrence = *w.Occurrence
	} else {
		op.Occurrence = 1
	}
	if w.Anchor != nil {
		op.Anchor = *w.Anchor
	}
	if w.Block != nil {
		op.Block = *w.Block
	}
	if w.Position != nil {
		op.Position = *w.Position
	} else {
		op.Position = "before"
	}
	if w.Content != nil {
		op.Content = *w.Content
	}
	return nil
}

// PatchRecipe is an ordered set of patch operations targeting one source
// file, serializable to the original system's JSON schema.
type PatchRecipe struct {
	Version    string    `json:"version"`
	SourceFile string    `json:"source_file"`
	CreatedAt  string    `json:"created_at"`
	Patches    []PatchOp `json:"patches"`
}

// NewPatchRecipe creates an empty recipe stamped with the current time, for
// the given source file.
func NewPatchRecipe(sourceFile string) *PatchRecipe {
	return &PatchRecipe{
		Version:    "1",
		SourceFile: sourceFile,
		CreatedAt:  time.Now().UTC().Format("2006-01-02T15:04:05.000000") + "Z",
	}
}

// ToJSON renders the recipe as indented JSON, matching PatchRecipe.to_json.
// <, > and & are written verbatim, so stub sentinels and XML fragments stay
// readable in the file.
func (r *PatchRecipe) ToJSON() (string, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(r); err != nil {
		return "", err
	}
	return strings.TrimRight(buf.String(), "\n"), nil
}

// ParseRecipe decodes a JSON-encoded PatchRecipe.
func ParseRecipe(data []byte) (*PatchRecipe, error) {
	var r PatchRecipe
	if err := json.Unmarshal(data, &r); err != nil {
		return nil, err
	}
	return &r, nil
}

// RecipeFromGates auto-generates conservative patch operations directly
// from a GateReport, with no diff required.
func RecipeFromGates(gate *GateReport) *PatchRecipe {
	recipe := NewPatchRecipe(gate.Path)

	if len(gate.CalcChainInvalid) > 0 {
		recipe.Patches = append(recipe.Patches, PatchOp{
			ID:        NewPatchOpID(),
			Part:      "xl/calcChain.xml",
			Operation: OpDeletePart,
			Description: fmt.Sprintf("Drop xl/calcChain.xml (%d invalid entries). "+
				"Excel will rebuild it on next open.", len(gate.CalcChainInvalid)),
		})
	}

	for _, issue := range gate.StylesDXF {
		if issue.Issue != "dxfs_count_mismatch" {
			continue
		}
		declared := issue.Data["declared"]
		actual := issue.Data["actual"]
		recipe.Patches = append(recipe.Patches, PatchOp{
			ID:          NewPatchOpID(),
			Part:        "xl/styles.xml",
			Operation:   OpLiteralReplace,
			Description: fmt.Sprintf("Fix dxfs/@count: declared %v, actual %v.", declared, actual),
			Match:       fmt.Sprintf(`count="%v"`, declared),
			Replacement: fmt.Sprintf(`count="%v"`, actual),
			Occurrence:  1,
		})
		break // only one <dxfs> element
	}

	for _, hit := range gate.TableColumnLF {
		recipe.Patches = append(recipe.Patches, PatchOp{
			ID:        NewPatchOpID(),
			Part:      hit.Part,
			Operation: OpLiteralReplace,
			Description: "Strip linefeed from tableColumn name= attribute. " +
				"Set match/replacement manually after inspecting the part.",
			Match:       StubFillInLinefeed,
			Replacement: StubFillInCleanValue,
			Occurrence:  1,
		})
	}

	return recipe
}

// RecipeFromPatterns translates detected diff patterns into patch
// operations. More precise than gate-only recipes because an actual diff
// is available.
func RecipeFromPatterns(sourceFile string, patterns []Pattern) *PatchRecipe {
	recipe := NewPatchRecipe(sourceFile)
	for _, p := range patterns {
		switch p.Name {
		case "CALCCHAIN_DROP":
			recipe.Patches = append(recipe.Patches, PatchOp{
				ID:          NewPatchOpID(),
				Part:        "xl/calcChain.xml",
				Operation:   OpDeletePart,
				Description: p.Description,
			})
		case "DXFS_INSERTION":
			recipe.Patches = append(recipe.Patches, PatchOp{
				ID:          NewPatchOpID(),
				Part:        "xl/styles.xml",
				Operation:   OpAppendBlock,
				Description: p.Description + " — Fill in <dxf> content from repaired file diff.",
				Anchor:      "</dxfs>",
				Block:       "<!-- INSERT_DXF_ELEMENTS_HERE -->",
				Position:    "before",
			})
		case "CF_DXFID_CLONE", "SHARED_REF_TRIM", "TABLE_STYLE_NORM",
			"SHAREDSTRINGS_REBUILD", "RELS_CLEANUP":
			for _, part := range p.AffectedParts {
				recipe.Patches = append(recipe.Patches, PatchOp{
					ID:        NewPatchOpID(),
					Part:      part,
					Operation: OpLiteralReplace,
					Description: fmt.Sprintf("[%s] %s — Manual review required. "+
						"Set match/replacement from the XML diff.", p.Name, p.Description),
					Match:       StubReviewRequired,
					Replacement: StubReviewRequired,
					Occurrence:  1,
				})
			}
		}
	}
	return recipe
}

// MergeRecipes combines multiple recipes, deduplicating by
// (part, operation, match) and preserving first-seen insertion order.
func MergeRecipes(recipes ...*PatchRecipe) *PatchRecipe {
	type key struct{ part, op, match string }
	seen := make(map[key]bool)
	source := ""
	if len(recipes) > 0 {
		source = recipes[0].SourceFile
	}
	merged := NewPatchRecipe(source)
	for _, r := range recipes {
		for _, p := range r.Patches {
			k := key{p.Part, p.Operation, p.Match}
			if seen[k] {
				continue
			}
			seen[k] = true
			merged.Patches = append(merged.Patches, p)
		}
	}
	return merged
}
