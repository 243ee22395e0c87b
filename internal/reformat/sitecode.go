package reformat

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"sort"
	"strconv"
	"strings"

	"github.com/strokeml/strokeprep/internal/table"
)

// SiteCodeStore abstracts the persisted site anonymization mapping. The
// mapping is created and persisted exactly once; downstream published
// artifacts depend on the codes never changing across reruns.
type SiteCodeStore interface {
	// Load returns the persisted mapping, or exists=false when no mapping
	// has been persisted yet.
	Load() (codes map[string]int, exists bool, err error)
	// Save persists a freshly created mapping.
	Save(codes map[string]int) error
}

// FileSiteCodeStore keeps the mapping as a two-column CSV: site label and
// positive integer code, one row per distinct site.
type FileSiteCodeStore struct {
	Path string
}

func NewFileSiteCodeStore(path string) *FileSiteCodeStore {
	return &FileSiteCodeStore{Path: path}
}

func (s *FileSiteCodeStore) Load() (map[string]int, bool, error) {
	if _, err := os.Stat(s.Path); errors.Is(err, fs.ErrNotExist) {
		return nil, false, nil
	}

	tbl, err := table.ReadCSV(s.Path)
	if err != nil {
		return nil, false, err
	}
	teamIdx, err := tbl.ColumnIndex("StrokeTeam")
	if err != nil {
		return nil, false, fmt.Errorf("site-code table %s: %w", s.Path, err)
	}
	codeIdx, err := tbl.ColumnIndex("TeamCode")
	if err != nil {
		return nil, false, fmt.Errorf("site-code table %s: %w", s.Path, err)
	}

	codes := make(map[string]int, tbl.Len())
	for i := 0; i < tbl.Len(); i++ {
		label := strings.TrimSpace(tbl.Cell(i, teamIdx))
		code, err := strconv.Atoi(tbl.Cell(i, codeIdx))
		if err != nil {
			return nil, false, fmt.Errorf("site-code table %s row %d: malformed code: %w", s.Path, i+1, err)
		}
		codes[label] = code
	}
	return codes, true, nil
}

func (s *FileSiteCodeStore) Save(codes map[string]int) error {
	labels := make([]string, 0, len(codes))
	for label := range codes {
		labels = append(labels, label)
	}
	sort.Slice(labels, func(i, j int) bool { return codes[labels[i]] < codes[labels[j]] })

	tbl := table.New([]string{"StrokeTeam", "TeamCode"})
	for _, label := range labels {
		tbl.Rows = append(tbl.Rows, []string{label, strconv.Itoa(codes[label])})
	}
	return tbl.WriteCSV(s.Path)
}
