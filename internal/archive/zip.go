// Package archive decodes uploaded zip containers into the flat
// path-to-content mapping consumed by the tree synchronizer.
//
// The package trusts nothing about the container: a corrupt archive or an
// entry escaping the archive root is rejected with ErrMalformedArchive.
package archive

import (
	"archive/zip"
	"bytes"
	"errors"
	"fmt"
	"io"
	"path"
	"strings"
)

// ErrMalformedArchive is returned when the container cannot be decoded or
// holds entries with illegal paths. Check with errors.Is().
var ErrMalformedArchive = errors.New("malformed archive")

// Unpack decodes a zip container held fully in memory and returns its
// files keyed by repository-relative path. Directory entries are skipped;
// empty files are kept as empty byte slices and left for the caller's
// content policy to handle.
func Unpack(data []byte) (map[string][]byte, error) {
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrMalformedArchive, err)
	}

	files := make(map[string][]byte, len(zr.File))

	for _, entry := range zr.File {
		if entry.FileInfo().IsDir() {
			continue
		}

		name, err := cleanEntryPath(entry.Name)
		if err != nil {
			return nil, err
		}

		rc, err := entry.Open()
		if err != nil {
			return nil, fmt.Errorf("%w: opening entry %q: %s", ErrMalformedArchive, entry.Name, err)
		}

		content, err := io.ReadAll(rc)
		closeErr := rc.Close()
		if err != nil {
			return nil, fmt.Errorf("%w: reading entry %q: %s", ErrMalformedArchive, entry.Name, err)
		}
		if closeErr != nil {
			return nil, fmt.Errorf("%w: closing entry %q: %s", ErrMalformedArchive, entry.Name, closeErr)
		}

		files[name] = content
	}

	return files, nil
}

// cleanEntryPath normalizes an archive entry name to a repository-relative
// path and rejects absolute paths and parent-directory traversal.
func cleanEntryPath(name string) (string, error) {
	cleaned := path.Clean(strings.ReplaceAll(name, `\`, "/"))

	if cleaned == "." || cleaned == "" {
		return "", fmt.Errorf("%w: empty entry path %q", ErrMalformedArchive, name)
	}
	if strings.HasPrefix(cleaned, "/") || cleaned == ".." || strings.HasPrefix(cleaned, "../") {
		return "", fmt.Errorf("%w: entry path %q escapes archive root", ErrMalformedArchive, name)
	}

	return cleaned, nil
}
