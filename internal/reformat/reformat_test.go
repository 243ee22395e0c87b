package reformat

import (
	"fmt"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/strokeml/strokeprep/internal/table"
)

// cleanHeader is the subset of clean-table columns the reformatter reads
// or removes, plus a couple of passthrough columns.
var cleanHeader = []string{
	"PatientId", "StrokeTeam", "Age", "Male",
	"OnsetTimeKnown", "ArriveByAmbulance", "Infarction",
	"ArrivalYear", "OnsetToArrival", "ArrivalToScan", "ScanToThrombolysis",
	"ArrivalToThrombectomy", "Thrombolysis", "Thrombectomy",
	"PriorDisability", "DischargeDisability", "DischargeDestination",
	"Death", "CallToAmbulanceArrival", "AmbulanceOnScene",
	"AmbulanceTravel", "AmbulanceWait",
	"AFAnticoagulentVitK", "AFAnticoagulentDOAC", "AFAnticoagulentHeparin",
}

// defaultCleanRow passes every cohort filter: a treated 2017 infarction
// arrival by ambulance with recorded disability scores.
func defaultCleanRow() map[string]string {
	return map[string]string{
		"PatientId":           "P1",
		"StrokeTeam":          "Alpha",
		"Age":                 "72.5",
		"Male":                "1",
		"OnsetTimeKnown":      "1",
		"ArriveByAmbulance":   "1",
		"Infarction":          "1",
		"ArrivalYear":         "2017",
		"OnsetToArrival":      "85",
		"ArrivalToScan":       "20",
		"ScanToThrombolysis":  "30",
		"Thrombolysis":        "1",
		"Thrombectomy":        "0",
		"PriorDisability":     "0",
		"DischargeDisability": "2",
		"Death":               "0",
	}
}

func cleanTable(rows ...map[string]string) *table.Table {
	tbl := table.New(cleanHeader)
	for _, row := range rows {
		cells := make([]string, len(cleanHeader))
		for i, col := range cleanHeader {
			cells[i] = row[col]
		}
		tbl.Rows = append(tbl.Rows, cells)
	}
	return tbl
}

func newTestReformatter(t *testing.T, opts Options) *Reformatter {
	t.Helper()
	store := NewFileSiteCodeStore(filepath.Join(t.TempDir(), "site_codes.csv"))
	return NewReformatter(zap.NewNop(), store, opts)
}

func looseOptions() Options {
	return Options{YearCutoff: 2016, MinAdmissions: 1, MinThrombolysis: 0, ShuffleSeed: 42}
}

func column(t *testing.T, tbl *table.Table, name string) []string {
	t.Helper()
	idx, err := tbl.ColumnIndex(name)
	require.NoError(t, err)
	out := make([]string, tbl.Len())
	for i := range out {
		out[i] = tbl.Cell(i, idx)
	}
	return out
}

func TestReformatter_FilterChain(t *testing.T) {
	keep := defaultCleanRow()
	keep["PatientId"] = "keep"

	exclusions := []struct {
		name   string
		column string
		value  string
	}{
		{"YearBeforeCutoff", "ArrivalYear", "2015"},
		{"Haemorrhage", "Infarction", "0"},
		{"NotByAmbulance", "ArriveByAmbulance", "0"},
		{"ThrombectomyRecipient", "Thrombectomy", "1"},
		{"PriorDisabilityUnrecorded", "PriorDisability", ""},
		{"DischargeDisabilityUnrecorded", "DischargeDisability", ""},
		{"OnsetToArrivalMissing", "OnsetToArrival", ""},
		{"OnsetTimeUnknown", "OnsetTimeKnown", "0"},
	}

	rows := []map[string]string{keep}
	for _, ex := range exclusions {
		row := defaultCleanRow()
		row["PatientId"] = ex.name
		row[ex.column] = ex.value
		rows = append(rows, row)
	}

	out, err := newTestReformatter(t, looseOptions()).Run(cleanTable(rows...))
	require.NoError(t, err)
	require.Equal(t, 1, out.Len())
	assert.Equal(t, []string{"keep"}, column(t, out, "PatientId"))
}

func TestReformatter_VolumeGatesAreSequential(t *testing.T) {
	// Site A: exactly 250 admissions, 9 treated. Passes the admissions
	// gate, fails the treatment gate. Site B: 251 admissions, 10 treated.
	var rows []map[string]string
	addSite := func(site string, admissions, treated int) {
		for i := 0; i < admissions; i++ {
			row := defaultCleanRow()
			row["PatientId"] = fmt.Sprintf("%s%d", site, i)
			row["StrokeTeam"] = site
			if i >= treated {
				row["Thrombolysis"] = "0"
				row["ScanToThrombolysis"] = ""
			}
			rows = append(rows, row)
		}
	}
	addSite("A", 250, 9)
	addSite("B", 251, 10)

	opts := Options{YearCutoff: 2016, MinAdmissions: 250, MinThrombolysis: 10, ShuffleSeed: 42}
	out, err := newTestReformatter(t, opts).Run(cleanTable(rows...))
	require.NoError(t, err)

	require.Equal(t, 251, out.Len())
	for _, id := range column(t, out, "PatientId") {
		assert.True(t, strings.HasPrefix(id, "B"), "site A must not survive the sequential gates, got %s", id)
	}
}

func TestReformatter_SentinelAndCompositeDuration(t *testing.T) {
	treated := defaultCleanRow()
	treated["PatientId"] = "treated"

	untreated := defaultCleanRow()
	untreated["PatientId"] = "untreated"
	untreated["Thrombolysis"] = "0"
	untreated["ScanToThrombolysis"] = ""
	untreated["Age"] = "57.5"
	untreated["Male"] = "0"

	out, err := newTestReformatter(t, looseOptions()).Run(cleanTable(treated, untreated))
	require.NoError(t, err)
	require.Equal(t, 2, out.Len())

	assert.Equal(t, []string{"30", "-100"}, column(t, out, "ScanToThrombolysis"),
		"untreated rows carry the not-applicable sentinel, not a missing cell")
	assert.Equal(t, []string{"135", "-100"}, column(t, out, "OnsetToThrombolysis"),
		"composite is the exact component sum when treated, sentinel otherwise")
}

func TestReformatter_SiteCodes(t *testing.T) {
	multiSiteRows := func() []map[string]string {
		var rows []map[string]string
		for i, site := range []string{"Alpha", "Beta", "Gamma"} {
			for j := 0; j < 2; j++ {
				row := defaultCleanRow()
				row["PatientId"] = fmt.Sprintf("P%d%d", i, j)
				row["StrokeTeam"] = site
				if j == 1 {
					row["Thrombolysis"] = "0"
					row["ScanToThrombolysis"] = ""
				}
				rows = append(rows, row)
			}
		}
		return rows
	}

	t.Run("FirstRunPersistsMapping", func(t *testing.T) {
		storePath := filepath.Join(t.TempDir(), "site_codes.csv")
		store := NewFileSiteCodeStore(storePath)
		out, err := NewReformatter(zap.NewNop(), store, looseOptions()).Run(cleanTable(multiSiteRows()...))
		require.NoError(t, err)

		codes, exists, err := store.Load()
		require.NoError(t, err)
		require.True(t, exists)
		require.Len(t, codes, 3)
		assigned := map[int]bool{}
		for _, code := range codes {
			assigned[code] = true
		}
		assert.Equal(t, map[int]bool{1: true, 2: true, 3: true}, assigned,
			"sequential codes starting at 1")

		teamCodes := column(t, out, "TeamCode")
		assert.Len(t, teamCodes, 6)
	})

	t.Run("FirstRunIsDeterministic", func(t *testing.T) {
		storeA := NewFileSiteCodeStore(filepath.Join(t.TempDir(), "a.csv"))
		storeB := NewFileSiteCodeStore(filepath.Join(t.TempDir(), "b.csv"))
		_, err := NewReformatter(zap.NewNop(), storeA, looseOptions()).Run(cleanTable(multiSiteRows()...))
		require.NoError(t, err)
		_, err = NewReformatter(zap.NewNop(), storeB, looseOptions()).Run(cleanTable(multiSiteRows()...))
		require.NoError(t, err)

		codesA, _, err := storeA.Load()
		require.NoError(t, err)
		codesB, _, err := storeB.Load()
		require.NoError(t, err)
		assert.Equal(t, codesA, codesB)
	})

	t.Run("PersistedMappingNeverRegenerated", func(t *testing.T) {
		storePath := filepath.Join(t.TempDir(), "site_codes.csv")
		store := NewFileSiteCodeStore(storePath)
		require.NoError(t, store.Save(map[string]int{"Alpha": 7, "Beta": 2}))

		rows := multiSiteRows() // Alpha, Beta and the unmapped Gamma
		out, err := NewReformatter(zap.NewNop(), store, looseOptions()).Run(cleanTable(rows...))
		require.NoError(t, err)

		require.Equal(t, 4, out.Len(), "unmapped site rows are dropped, not coded")
		for _, code := range column(t, out, "TeamCode") {
			assert.Contains(t, []string{"7", "2"}, code)
		}

		codes, _, err := store.Load()
		require.NoError(t, err)
		assert.Equal(t, map[string]int{"Alpha": 7, "Beta": 2}, codes,
			"mapping on disk stays untouched")
	})
}

func TestReformatter_TrimsSiteLabelsBeforeGrouping(t *testing.T) {
	a := defaultCleanRow()
	a["StrokeTeam"] = " Alpha "
	a["PatientId"] = "a"
	b := defaultCleanRow()
	b["StrokeTeam"] = "Alpha"
	b["PatientId"] = "b"
	b["Thrombolysis"] = "0"
	b["ScanToThrombolysis"] = ""

	opts := Options{YearCutoff: 2016, MinAdmissions: 2, MinThrombolysis: 0, ShuffleSeed: 42}
	out, err := newTestReformatter(t, opts).Run(cleanTable(a, b))
	require.NoError(t, err)
	assert.Equal(t, 2, out.Len(),
		"untrimmed duplicate labels must not fragment the volume aggregate")
}

func TestReformatter_ColumnRemoval(t *testing.T) {
	a := defaultCleanRow()
	b := defaultCleanRow()
	b["PatientId"] = "P2"
	b["Male"] = "0"
	b["Thrombolysis"] = "0"
	b["ScanToThrombolysis"] = ""

	out, err := newTestReformatter(t, looseOptions()).Run(cleanTable(a, b))
	require.NoError(t, err)

	for _, name := range namedRemovals {
		_, err := out.ColumnIndex(name)
		assert.Error(t, err, "named column %s must be removed", name)
	}

	_, err = out.ColumnIndex("Age")
	assert.Error(t, err, "zero-variance numeric column must be auto-removed")

	_, err = out.ColumnIndex("Male")
	assert.NoError(t, err, "varying column must survive")
	_, err = out.ColumnIndex("PatientId")
	assert.NoError(t, err, "non-numeric column is never variance-removed")
}

// MockSiteCodeStore exercises the injected persist-once contract.
type MockSiteCodeStore struct {
	mock.Mock
}

func (m *MockSiteCodeStore) Load() (map[string]int, bool, error) {
	args := m.Called()
	codes, _ := args.Get(0).(map[string]int)
	return codes, args.Bool(1), args.Error(2)
}

func (m *MockSiteCodeStore) Save(codes map[string]int) error {
	args := m.Called(codes)
	return args.Error(0)
}

func TestReformatter_StoreContract(t *testing.T) {
	t.Run("SaveCalledOnceOnFirstRun", func(t *testing.T) {
		store := new(MockSiteCodeStore)
		store.On("Load").Return(nil, false, nil).Once()
		store.On("Save", mock.Anything).Return(nil).Once()

		_, err := NewReformatter(zap.NewNop(), store, looseOptions()).Run(cleanTable(defaultCleanRow()))
		require.NoError(t, err)
		store.AssertExpectations(t)
	})

	t.Run("SaveSkippedWhenMappingExists", func(t *testing.T) {
		store := new(MockSiteCodeStore)
		store.On("Load").Return(map[string]int{"Alpha": 1}, true, nil).Once()

		_, err := NewReformatter(zap.NewNop(), store, looseOptions()).Run(cleanTable(defaultCleanRow()))
		require.NoError(t, err)
		store.AssertExpectations(t)
		store.AssertNotCalled(t, "Save", mock.Anything)
	})

	t.Run("LoadFailureAborts", func(t *testing.T) {
		store := new(MockSiteCodeStore)
		store.On("Load").Return(nil, false, assert.AnError).Once()

		_, err := NewReformatter(zap.NewNop(), store, looseOptions()).Run(cleanTable(defaultCleanRow()))
		assert.Error(t, err)
	})
}

func TestReformatter_MissingColumnIsStructural(t *testing.T) {
	tbl := cleanTable(defaultCleanRow()).DropColumns(map[string]bool{"Thrombolysis": true})
	_, err := newTestReformatter(t, looseOptions()).Run(tbl)
	assert.ErrorContains(t, err, `missing expected column "Thrombolysis"`)
}
