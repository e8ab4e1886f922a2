package triage

import (
	"context"
	"net/http"
)

// PipelineOptions controls which optional phases RunPipeline executes.
// Gate Checks always run; every other phase is conditional on the inputs
// supplied here.
type PipelineOptions struct {
	// RepairedPath, if non-empty, enables the Differ and Pattern Classifier
	// phases against the host-repaired counterpart of CandidatePath.
	RepairedPath string

	// ApplyPatch, if true, runs the Patch Engine against the merged recipe
	// once gate/pattern evidence has been gathered.
	ApplyPatch bool
	OutputPath string

	// ProbeToken, if non-empty, enables the cloud-probe phase after
	// patching (or after recipe-building, if ApplyPatch is false).
	// ProbeClient defaults to http.DefaultClient when left nil.
	ProbeToken      string
	ProbeRemoteName string
	ProbeClient     *http.Client
}

// PipelineResult collects every phase's output that actually ran. Phases
// that were skipped leave their field nil/zero.
type PipelineResult struct {
	Gate     *GateReport
	Diff     *DiffReport
	Patterns []Pattern
	Recipe   *PatchRecipe
	Apply    *ApplyResult
	Probe    *ProbeResult
}

// RunPipeline composes the five core phases plus the two optional
// boundaries in the fixed order the orchestrator contract requires: Gate
// Checks always run; Differ and Pattern Classifier run only when a
// repaired package is supplied; the Recipe builder always runs on whatever
// evidence exists; the Patch Engine runs only on explicit request; the
// cloud probe runs only when credentials are supplied. Each phase consumes
// the previous phase's typed output; phases carry no state between calls.
func RunPipeline(ctx context.Context, candidatePath string, opts PipelineOptions) (*PipelineResult, error) {
	result := &PipelineResult{}

	gate, err := RunGates(candidatePath)
	if err != nil {
		return nil, err
	}
	result.Gate = gate

	recipes := []*PatchRecipe{RecipeFromGates(gate)}

	if opts.RepairedPath != "" {
		diff, err := DiffPackages(candidatePath, opts.RepairedPath)
		if err != nil {
			return nil, err
		}
		result.Diff = diff

		patterns := ClassifyPatterns(diff)
		result.Patterns = patterns

		recipes = append(recipes, RecipeFromPatterns(candidatePath, patterns))
	}

	recipe := MergeRecipes(recipes...)
	result.Recipe = recipe

	patchedPath := candidatePath
	if opts.ApplyPatch {
		apply, err := ApplyRecipe(candidatePath, recipe, opts.OutputPath)
		// ApplyRecipe always returns a non-nil *ApplyResult alongside a
		// PatchError/PatchWarning; only a phase-boundary failure (cannot
		// open the source archive or write the output) returns a nil result.
		if apply == nil {
			return nil, err
		}
		result.Apply = apply
		patchedPath = apply.OutputPath
	}

	if opts.ProbeToken != "" {
		client := opts.ProbeClient
		if client == nil {
			client = http.DefaultClient
		}
		probe, err := ProbeUploadAndTest(ctx, client, opts.ProbeToken, patchedPath, opts.ProbeRemoteName)
		if err != nil {
			return nil, err
		}
		result.Probe = probe
	}

	return result, nil
}
