// Package split partitions the cohort table into stratified k-fold
// train/test pairs for cross-validation.
package split

import (
	"fmt"
	"math/rand"
	"path/filepath"
	"strconv"

	"go.uber.org/zap"

	"github.com/strokeml/strokeprep/internal/table"
)

// notApplicable mirrors the reformatter's treatment sentinel; the binary
// treatment column no longer exists in the cohort, so the outcome label is
// read back off the composite duration.
const notApplicable = -100

// Fold is one train/test pair. Train and Test share the cohort's header.
type Fold struct {
	Train *table.Table
	Test  *table.Table
}

// Splitter produces k disjoint, collectively exhaustive test partitions,
// stratified jointly on site code and outcome label.
type Splitter struct {
	log  *zap.Logger
	k    int
	seed int64
}

func NewSplitter(log *zap.Logger, k int, seed int64) *Splitter {
	return &Splitter{log: log, k: k, seed: seed}
}

// Split assigns every cohort row to exactly one test fold. Rows are
// shuffled with the fixed seed, grouped by the composite stratum key, and
// each stratum is dealt across the folds so the joint site/outcome
// distribution is approximately preserved per fold.
func (s *Splitter) Split(cohort *table.Table) ([]Fold, error) {
	if s.k < 2 {
		return nil, fmt.Errorf("fold count must be at least 2, got %d", s.k)
	}

	teamIdx, err := cohort.ColumnIndex("TeamCode")
	if err != nil {
		return nil, fmt.Errorf("cohort table: %w", err)
	}
	durationIdx, err := cohort.ColumnIndex("OnsetToThrombolysis")
	if err != nil {
		return nil, fmt.Errorf("cohort table: %w", err)
	}

	n := cohort.Len()
	order := make([]int, n)
	for i := range order {
		order[i] = i
	}
	rng := rand.New(rand.NewSource(s.seed))
	rng.Shuffle(n, func(i, j int) {
		order[i], order[j] = order[j], order[i]
	})

	// Group shuffled rows by stratum, preserving shuffle order within
	// each stratum and first-seen order across strata.
	strata := make(map[string][]int)
	var keys []string
	for _, row := range order {
		key, err := s.stratumKey(cohort, row, teamIdx, durationIdx)
		if err != nil {
			return nil, err
		}
		if _, ok := strata[key]; !ok {
			keys = append(keys, key)
		}
		strata[key] = append(strata[key], row)
	}

	// Deal each stratum's rows to folds through one rotating pointer that
	// carries across strata: every stratum spreads evenly over the folds
	// (counts differ by at most one) and so does the overall fold size.
	assignment := make([]int, n)
	next := 0
	for _, key := range keys {
		for _, row := range strata[key] {
			assignment[row] = next
			next = (next + 1) % s.k
		}
	}

	folds := make([]Fold, s.k)
	for fold := 0; fold < s.k; fold++ {
		testMask := make([]bool, n)
		trainMask := make([]bool, n)
		for row, assigned := range assignment {
			if assigned == fold {
				testMask[row] = true
			} else {
				trainMask[row] = true
			}
		}
		folds[fold] = Fold{
			Train: cohort.Select(trainMask),
			Test:  cohort.Select(testMask),
		}
	}

	s.log.Info("built stratified folds",
		zap.Int("folds", s.k),
		zap.Int("rows", n),
		zap.Int("strata", len(keys)))
	return folds, nil
}

// stratumKey concatenates site code and outcome label into one composite
// categorical key; the two are balanced jointly, not marginally.
func (s *Splitter) stratumKey(cohort *table.Table, row, teamIdx, durationIdx int) (string, error) {
	duration, err := cohort.Value(row, durationIdx)
	if err != nil {
		return "", err
	}
	label := 1
	if duration.Is(notApplicable) {
		label = 0
	}
	return cohort.Cell(row, teamIdx) + "-" + strconv.Itoa(label), nil
}

// WriteFolds writes train_i.csv / test_i.csv pairs into dir, preserving
// the cohort's column set and order in every file.
func WriteFolds(folds []Fold, dir string) error {
	for i, fold := range folds {
		if err := fold.Train.WriteCSV(filepath.Join(dir, fmt.Sprintf("train_%d.csv", i))); err != nil {
			return err
		}
		if err := fold.Test.WriteCSV(filepath.Join(dir, fmt.Sprintf("test_%d.csv", i))); err != nil {
			return err
		}
	}
	return nil
}
