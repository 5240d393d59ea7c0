// Package fileid derives stable document ids for ingested files.
package fileid

import (
	"crypto/sha256"
	"encoding/hex"
	"path/filepath"
	"strings"
)

const prefix = "file:"

// FromAbs returns the document id for an absolute path. Equivalent paths
// ("/a/b/", "/a/./b") yield the same id.
func FromAbs(absolutePath string) string {
	hash := sha256.Sum256([]byte(filepath.Clean(absolutePath)))
	// 128 bits keeps ids short in logs and URLs.
	return prefix + hex.EncodeToString(hash[:16])
}

// FromPath resolves path against the working directory and returns its document id
// along with the absolute path.
func FromPath(path string) (id, abs string, err error) {
	abs, err = filepath.Abs(path)
	if err != nil {
		return "", "", err
	}
	return FromAbs(abs), abs, nil
}

// IsFileID reports whether id was produced by this package.
func IsFileID(id string) bool {
	return strings.HasPrefix(id, prefix) && len(id) == len(prefix)+32
}
