package pipeline

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"github.com/strokeml/strokeprep/pkg/checksum"
)

var manifestHeader = []string{"RunId", "Stage", "Artifact", "Checksum", "Rows", "Timestamp"}

// Manifest appends one audit row per artifact a stage writes: run id,
// stage name, artifact path, content digest, row count and timestamp.
// Write-once; the pipeline never reads it back.
type Manifest struct {
	path  string
	runID string
	now   func() time.Time
}

func NewManifest(path string) *Manifest {
	return &Manifest{
		path:  path,
		runID: uuid.NewString(),
		now:   time.Now,
	}
}

// Record fingerprints the artifact and appends its manifest row.
func (m *Manifest) Record(stage, artifact string, rows int) error {
	digest, err := checksum.FileDigest(artifact)
	if err != nil {
		return err
	}

	if dir := filepath.Dir(m.path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("failed to create manifest directory %s: %w", dir, err)
		}
	}

	_, statErr := os.Stat(m.path)
	fresh := os.IsNotExist(statErr)

	file, err := os.OpenFile(m.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("failed to open manifest %s: %w", m.path, err)
	}
	defer file.Close()

	writer := csv.NewWriter(file)
	if fresh {
		if err := writer.Write(manifestHeader); err != nil {
			return fmt.Errorf("failed to write manifest header: %w", err)
		}
	}
	row := []string{
		m.runID,
		stage,
		artifact,
		digest,
		fmt.Sprintf("%d", rows),
		m.now().UTC().Format(time.RFC3339),
	}
	if err := writer.Write(row); err != nil {
		return fmt.Errorf("failed to write manifest row: %w", err)
	}
	writer.Flush()

	return writer.Error()
}
