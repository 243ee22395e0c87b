package split

import (
	"fmt"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/strokeml/strokeprep/internal/table"
)

// cohortTable builds a minimal cohort: site code, treatment composite and
// a row id for identity checks.
func cohortTable(rows [][3]string) *table.Table {
	tbl := table.New([]string{"PatientId", "TeamCode", "OnsetToThrombolysis"})
	for _, r := range rows {
		tbl.Rows = append(tbl.Rows, []string{r[0], r[1], r[2]})
	}
	return tbl
}

// mixedCohort spreads n rows over two sites with treated and untreated
// outcomes in every site.
func mixedCohort(n int) *table.Table {
	var rows [][3]string
	for i := 0; i < n; i++ {
		site := "1"
		if i%2 == 0 {
			site = "2"
		}
		duration := "-100"
		if i%3 == 0 {
			duration = fmt.Sprintf("%d", 90+i)
		}
		rows = append(rows, [3]string{fmt.Sprintf("P%d", i), site, duration})
	}
	return cohortTable(rows)
}

func ids(t *testing.T, tbl *table.Table) map[string]bool {
	t.Helper()
	idx, err := tbl.ColumnIndex("PatientId")
	require.NoError(t, err)
	out := make(map[string]bool)
	for i := 0; i < tbl.Len(); i++ {
		out[tbl.Cell(i, idx)] = true
	}
	return out
}

func TestSplitter_PartitionInvariants(t *testing.T) {
	cohort := mixedCohort(23)
	folds, err := NewSplitter(zap.NewNop(), 5, 42).Split(cohort)
	require.NoError(t, err)
	require.Len(t, folds, 5)

	all := ids(t, cohort)
	seen := make(map[string]int)
	for i, fold := range folds {
		testIDs := ids(t, fold.Test)
		trainIDs := ids(t, fold.Train)

		assert.Equal(t, cohort.Len(), fold.Test.Len()+fold.Train.Len())
		for id := range testIDs {
			seen[id]++
			assert.False(t, trainIDs[id], "fold %d: row %s in both train and test", i, id)
		}
		for id := range all {
			assert.True(t, testIDs[id] || trainIDs[id],
				"fold %d: row %s in neither train nor test", i, id)
		}
	}

	require.Len(t, seen, cohort.Len(), "every row held out exactly once across folds")
	for id, n := range seen {
		assert.Equal(t, 1, n, "row %s appears in %d test partitions", id, n)
	}
}

func TestSplitter_StratumBalance(t *testing.T) {
	// 40 rows, one stratum of 30 and one of 10: each fold's test share of
	// a stratum may deviate by at most one row.
	var rows [][3]string
	for i := 0; i < 30; i++ {
		rows = append(rows, [3]string{fmt.Sprintf("a%d", i), "1", "-100"})
	}
	for i := 0; i < 10; i++ {
		rows = append(rows, [3]string{fmt.Sprintf("b%d", i), "1", "120"})
	}
	cohort := cohortTable(rows)

	folds, err := NewSplitter(zap.NewNop(), 5, 42).Split(cohort)
	require.NoError(t, err)

	for i, fold := range folds {
		var untreated, treated int
		for id := range ids(t, fold.Test) {
			if id[0] == 'a' {
				untreated++
			} else {
				treated++
			}
		}
		assert.Equal(t, 6, untreated, "fold %d untreated share", i)
		assert.Equal(t, 2, treated, "fold %d treated share", i)
	}
}

func TestSplitter_TwoFoldSizesDifferByAtMostOne(t *testing.T) {
	cohort := mixedCohort(9)
	folds, err := NewSplitter(zap.NewNop(), 2, 42).Split(cohort)
	require.NoError(t, err)

	diff := folds[0].Test.Len() - folds[1].Test.Len()
	if diff < 0 {
		diff = -diff
	}
	assert.LessOrEqual(t, diff, 1)
	assert.Equal(t, cohort.Len(), folds[0].Test.Len()+folds[1].Test.Len())
}

func TestSplitter_Deterministic(t *testing.T) {
	a, err := NewSplitter(zap.NewNop(), 5, 42).Split(mixedCohort(23))
	require.NoError(t, err)
	b, err := NewSplitter(zap.NewNop(), 5, 42).Split(mixedCohort(23))
	require.NoError(t, err)

	for i := range a {
		assert.Equal(t, a[i].Test.Rows, b[i].Test.Rows, "fold %d", i)
		assert.Equal(t, a[i].Train.Rows, b[i].Train.Rows, "fold %d", i)
	}
}

func TestSplitter_Validation(t *testing.T) {
	t.Run("FoldCountTooSmall", func(t *testing.T) {
		_, err := NewSplitter(zap.NewNop(), 1, 42).Split(mixedCohort(4))
		assert.ErrorContains(t, err, "fold count")
	})

	t.Run("MissingColumn", func(t *testing.T) {
		tbl := table.New([]string{"PatientId"})
		_, err := NewSplitter(zap.NewNop(), 2, 42).Split(tbl)
		assert.ErrorContains(t, err, "missing expected column")
	})
}

func TestWriteFolds(t *testing.T) {
	dir := t.TempDir()
	folds, err := NewSplitter(zap.NewNop(), 2, 42).Split(mixedCohort(8))
	require.NoError(t, err)
	require.NoError(t, WriteFolds(folds, dir))

	for i := 0; i < 2; i++ {
		train, err := table.ReadCSV(filepath.Join(dir, fmt.Sprintf("train_%d.csv", i)))
		require.NoError(t, err)
		test, err := table.ReadCSV(filepath.Join(dir, fmt.Sprintf("test_%d.csv", i)))
		require.NoError(t, err)
		assert.Equal(t, []string{"PatientId", "TeamCode", "OnsetToThrombolysis"}, train.Header)
		assert.Equal(t, train.Header, test.Header)
		assert.Equal(t, 8, train.Len()+test.Len())
	}
}
