package checksum

import (
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/cespare/xxhash/v2"
)

// FileDigest returns the xxhash digest of a file's content, hex encoded.
// Used by the run manifest to fingerprint every artifact a stage writes.
func FileDigest(filePath string) (string, error) {
	file, err := os.Open(filePath)
	if err != nil {
		return "", fmt.Errorf("failed to open file %s: %w", filePath, err)
	}
	defer file.Close()

	hasher := xxhash.New()
	if _, err := io.Copy(hasher, file); err != nil {
		return "", fmt.Errorf("failed to copy file content to hasher for file %s: %w", filePath, err)
	}

	return hex.EncodeToString(hasher.Sum(nil)), nil
}

// RecordDigest returns the xxhash digest of a single delimited record.
func RecordDigest(record []string) string {
	digest := xxhash.New()
	digest.Write([]byte(strings.Join(record, ",")))

	return hex.EncodeToString(digest.Sum(nil))
}
