package triage

import (
	"fmt"

	xgxerror "github.com/xgx-io/xgx-error"
)

// Error codes for the three typed failures the core raises. Package-level
// and per-op failures are returned as findings or accumulated error lists
// instead (see GateReport and ApplyResult); these codes mark only the
// boundary-crossing failures a caller must branch on.
const (
	CodeInvalidPackage xgxerror.Code = "invalid_package"
	CodePatchError     xgxerror.Code = "patch_error"
	CodePatchWarning   xgxerror.Code = "patch_warning"
)

// NewInvalidPackageError reports that path could not be opened as a ZIP
// container at all (corrupt archive, not a ZIP, truncated read).
func NewInvalidPackageError(path string, cause error) error {
	return xgxerror.New("cannot open package").
		Code(CodeInvalidPackage).
		With("path", path).
		With("cause", fmt.Sprint(cause))
}

// NewPatchError reports that one or more patch operations failed outright.
// The output file has already been written; errs is the accumulated,
// in-order list of per-op failure descriptions.
func NewPatchError(outputPath string, errs []string) error {
	return xgxerror.New("patch completed with errors").
		Code(CodePatchError).
		With("output_path", outputPath).
		With("errors", errs)
}

// NewPatchWarning reports that the output is valid but one or more stub
// ops (reserved sentinel matches) were skipped and require manual review.
func NewPatchWarning(outputPath string, skipped []string) error {
	return xgxerror.New("patch completed with skipped stubs").
		Code(CodePatchWarning).
		With("output_path", outputPath).
		With("skipped", skipped)
}

// IsInvalidPackage reports whether err is (or wraps) an invalid-package failure.
func IsInvalidPackage(err error) bool { return xgxerror.HasCode(err, CodeInvalidPackage) }

// IsPatchError reports whether err is (or wraps) a hard patch failure.
func IsPatchError(err error) bool { return xgxerror.HasCode(err, CodePatchError) }

// IsPatchWarning reports whether err is (or wraps) a skipped-stub warning.
func IsPatchWarning(err error) bool { return xgxerror.HasCode(err, CodePatchWarning) }
