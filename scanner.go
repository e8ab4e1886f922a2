package triage

import (
	"archive/zip"
	"crypto/sha256"
	"encoding/hex"
	"io"
	"sort"
	"strings"
)

// Scan opens path as a ZIP archive and enumerates every entry into a
// ScanResult. It never parses XML; every field is derived from the raw
// decompressed bytes or the ZIP directory itself.
func Scan(path string) (*ScanResult, error) {
	r, err := zip.OpenReader(path)
	if err != nil {
		return nil, NewInvalidPackageError(path, err)
	}
	defer r.Close()

	names := make([]string, 0, len(r.File))
	byName := make(map[string]*zip.File, len(r.File))
	for _, f := range r.File {
		names = append(names, f.Name)
		byName[f.Name] = f
	}
	sort.Strings(names)

	result := &ScanResult{
		Path:   path,
		byName: make(map[string]Part, len(names)),
	}
	for _, name := range names {
		f := byName[name]
		raw, err := readZipFile(f)
		if err != nil {
			return nil, NewInvalidPackageError(path, err)
		}
		p := Part{
			Name:           f.Name,
			Size:           int64(f.UncompressedSize64),
			CompressedSize: int64(f.CompressedSize64),
			SHA256:         sha256Hex(raw),
			IsXML:          strings.HasSuffix(strings.ToLower(f.Name), ".xml"),
		}
		result.Parts = append(result.Parts, p)
		result.byName[p.Name] = p
	}
	return result, nil
}

func readZipFile(f *zip.File) ([]byte, error) {
	rc, err := f.Open()
	if err != nil {
		return nil, err
	}
	defer rc.Close()
	return io.ReadAll(rc)
}

func sha256Hex(b []byte) string {
	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:])
}

// ReadPartBytes reads a single named ZIP entry from path as raw bytes.
func ReadPartBytes(path, part string) ([]byte, error) {
	r, err := zip.OpenReader(path)
	if err != nil {
		return nil, NewInvalidPackageError(path, err)
	}
	defer r.Close()
	for _, f := range r.File {
		if f.Name == part {
			return readZipFile(f)
		}
	}
	return nil, nil
}

// ReadPartText reads a single named ZIP entry from path as a string.
// Invalid UTF-8 sequences are kept as-is; they are neither dropped nor
// replaced.
func ReadPartText(path, part string) (string, error) {
	b, err := ReadPartBytes(path, part)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// PartNamesOf returns the ordered entry-name listing of path without reading
// any file contents.
func PartNamesOf(path string) ([]string, error) {
	r, err := zip.OpenReader(path)
	if err != nil {
		return nil, NewInvalidPackageError(path, err)
	}
	defer r.Close()
	names := make([]string, 0, len(r.File))
	for _, f := range r.File {
		names = append(names, f.Name)
	}
	return names, nil
}

// readAllParts reads every ZIP entry in path into an in-memory
// name-to-bytes map, preserving the original entry order. This is the
// access pattern the gate battery and the Patch Engine build on: load once,
// inspect or mutate selected entries, rewrite deterministically.
func readAllParts(path string) (names []string, data map[string][]byte, err error) {
	r, err := zip.OpenReader(path)
	if err != nil {
		return nil, nil, NewInvalidPackageError(path, err)
	}
	defer r.Close()

	names = make([]string, 0, len(r.File))
	data = make(map[string][]byte, len(r.File))
	for _, f := range r.File {
		raw, err := readZipFile(f)
		if err != nil {
			return nil, nil, NewInvalidPackageError(path, err)
		}
		names = append(names, f.Name)
		data[f.Name] = raw
	}
	return names, data, nil
}
