package triage

import (
	"archive/zip"
	"bytes"
	"fmt"
	"os"
	"strings"
)

// literalReplace replaces the occurrence-th (1-based) instance of match in
// data with replacement. It returns an error if that occurrence does not
// exist; data outside the match is never touched.
func literalReplace(data, match, replacement []byte, occurrence int) ([]byte, error) {
	if occurrence < 1 {
		occurrence = 1
	}
	idx := -1
	for i := 0; i < occurrence; i++ {
		next := bytes.Index(data[idx+1:], match)
		if next == -1 {
			excerpt := match
			if len(excerpt) > 80 {
				excerpt = excerpt[:80]
			}
			return nil, fmt.Errorf("literal_replace: match not found (occurrence %d): %q", occurrence, excerpt)
		}
		idx = idx + 1 + next
	}
	out := make([]byte, 0, len(data)-len(match)+len(replacement))
	out = append(out, data[:idx]...)
	out = append(out, replacement...)
	out = append(out, data[idx+len(match):]...)
	return out, nil
}

// appendBlock inserts block immediately before or after the first
// occurrence of anchor in data.
func appendBlock(data, anchor, block []byte, position string) ([]byte, error) {
	idx := bytes.Index(data, anchor)
	if idx == -1 {
		excerpt := anchor
		if len(excerpt) > 80 {
			excerpt = excerpt[:80]
		}
		return nil, fmt.Errorf("append_block: anchor not found: %q", excerpt)
	}
	var insertAt int
	switch position {
	case "before", "":
		insertAt = idx
	case "after":
		insertAt = idx + len(anchor)
	default:
		return nil, fmt.Errorf("append_block: unknown position %q; use 'before' or 'after'", position)
	}
	out := make([]byte, 0, len(data)+len(block))
	out = append(out, data[:insertAt]...)
	out = append(out, block...)
	out = append(out, data[insertAt:]...)
	return out, nil
}

// applyOne dispatches a single patch op against data, returning the new
// bytes. ok is false only for delete_part, signaling the caller to remove
// the entry instead of rewriting it.
func applyOne(data []byte, op PatchOp) (result []byte, ok bool, err error) {
	switch op.Operation {
	case OpLiteralReplace:
		occ := op.Occurrence
		if occ == 0 {
			occ = 1
		}
		out, err := literalReplace(data, []byte(op.Match), []byte(op.Replacement), occ)
		return out, true, err
	case OpAppendBlock:
		out, err := appendBlock(data, []byte(op.Anchor), []byte(op.Block), op.Position)
		return out, true, err
	case OpDeletePart:
		return nil, false, nil
	case OpSetPart:
		return []byte(op.Content), true, nil
	default:
		return nil, true, fmt.Errorf("unknown operation: %q", op.Operation)
	}
}

// ApplyOutcome classifies the result of applying a recipe.
type ApplyOutcome string

const (
	OutcomeOK      ApplyOutcome = "ok"
	OutcomeWarning ApplyOutcome = "warning"
	OutcomeError   ApplyOutcome = "error"
)

// ApplyResult is ApplyRecipe's full result: the output path plus whichever
// per-op problems occurred, in recipe order.
type ApplyResult struct {
	OutputPath string
	Outcome    ApplyOutcome
	Errors     []string // hard op failures
	Skipped    []string // stub ops skipped (reserved sentinel values)
}

// ApplyRecipe applies every patch op in recipe to sourcePath and writes the
// result to outputPath (or sourcePath with a "_patched" suffix before the
// extension, if outputPath is empty). Stub ops — literal_replace ops whose
// match is a reserved sentinel (see PatchOp.IsStub) — are never executed; they are
// recorded as skipped and surface as a PatchWarning unless a hard op
// failure also occurred, in which case PatchError supersedes the warning.
func ApplyRecipe(sourcePath string, recipe *PatchRecipe, outputPath string) (*ApplyResult, error) {
	if outputPath == "" {
		outputPath = defaultPatchedPath(sourcePath)
	}

	names, parts, err := readAllParts(sourcePath)
	if err != nil {
		return nil, err
	}

	deleted := make(map[string]bool)
	var hardErrors []string
	var skipped []string

	for _, op := range recipe.Patches {
		if op.IsStub() {
			skipped = append(skipped, fmt.Sprintf("[%s] %s: %s stub skipped, manual review required", op.ID, op.Part, op.Operation))
			continue
		}

		if op.Operation == OpDeletePart {
			if _, ok := parts[op.Part]; ok {
				deleted[op.Part] = true
			} else {
				hardErrors = append(hardErrors, fmt.Sprintf("[%s] delete_part: %q not in archive (already absent?)", op.ID, op.Part))
			}
			continue
		}

		existing, ok := parts[op.Part]
		if !ok {
			hardErrors = append(hardErrors, fmt.Sprintf("[%s] part %q not found in archive", op.ID, op.Part))
			continue
		}

		result, changed, err := applyOne(existing, op)
		if err != nil {
			hardErrors = append(hardErrors, fmt.Sprintf("[%s] %v", op.ID, err))
			continue
		}
		if changed {
			parts[op.Part] = result
		}
	}

	if err := writeZip(outputPath, names, parts, deleted); err != nil {
		return nil, err
	}

	result := &ApplyResult{OutputPath: outputPath, Errors: hardErrors, Skipped: skipped}
	switch {
	case len(hardErrors) > 0:
		result.Outcome = OutcomeError
		return result, NewPatchError(outputPath, hardErrors)
	case len(skipped) > 0:
		result.Outcome = OutcomeWarning
		return result, NewPatchWarning(outputPath, skipped)
	default:
		result.Outcome = OutcomeOK
		return result, nil
	}
}

// defaultPatchedPath inserts a "_patched" suffix before the file extension,
// mirroring Path.with_stem(stem + "_patched").
func defaultPatchedPath(sourcePath string) string {
	dir := ""
	base := sourcePath
	if i := strings.LastIndex(sourcePath, "/"); i >= 0 {
		dir = sourcePath[:i+1]
		base = sourcePath[i+1:]
	}
	ext := ""
	stem := base
	if i := strings.LastIndex(base, "."); i > 0 {
		ext = base[i:]
		stem = base[:i]
	}
	return dir + stem + "_patched" + ext
}

// writeZip writes a fresh ZIP archive to outputPath containing every entry
// in names (in order) except those marked deleted, using parts for content.
// Compression is deflate throughout, matching zipfile.ZIP_DEFLATED.
func writeZip(outputPath string, names []string, parts map[string][]byte, deleted map[string]bool) error {
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for _, name := range names {
		if deleted[name] {
			continue
		}
		w, err := zw.CreateHeader(&zip.FileHeader{Name: name, Method: zip.Deflate})
		if err != nil {
			return err
		}
		if _, err := w.Write(parts[name]); err != nil {
			return err
		}
	}
	if err := zw.Close(); err != nil {
		return err
	}
	return os.WriteFile(outputPath, buf.Bytes(), 0o644)
}
