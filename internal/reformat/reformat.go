// Package reformat filters the cleaned table down to the modeling cohort,
// derives the composite onset-to-treatment feature, anonymizes the site
// identifier and drops redundant or leakage-prone columns.
package reformat

import (
	"fmt"
	"math/rand"
	"sort"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/strokeml/strokeprep/internal/table"
)

// NotApplicable is the sentinel distinguishing "treatment not given" from
// "value unknown" in the treatment-duration columns. Downstream modeling
// reads it literally; it must never be rendered as a missing cell.
const NotApplicable = -100

// Options carries the cohort thresholds. Zero values are not defaulted
// here; config owns the defaults.
type Options struct {
	YearCutoff      int
	MinAdmissions   int
	MinThrombolysis int
	ShuffleSeed     int64
}

// Reformatter turns a clean table into the cohort table. The site-code
// store is injected so persist-once semantics are explicit rather than
// ambient filesystem state.
type Reformatter struct {
	log   *zap.Logger
	store SiteCodeStore
	opts  Options
}

func NewReformatter(log *zap.Logger, store SiteCodeStore, opts Options) *Reformatter {
	return &Reformatter{log: log, store: store, opts: opts}
}

// Run produces the cohort table. The filter chain, the two sequential
// hospital-volume gates, the feature edits, site anonymization and column
// removal are applied in that order.
func (r *Reformatter) Run(clean *table.Table) (*table.Table, error) {
	cols, err := newCleanColumns(clean)
	if err != nil {
		return nil, err
	}

	// Trim site labels before anything groups by them; untrimmed
	// duplicates would fragment the volume aggregates.
	for i := 0; i < clean.Len(); i++ {
		clean.SetCell(i, cols.team, strings.TrimSpace(clean.Cell(i, cols.team)))
	}

	tbl, err := r.applyFilters(clean, cols)
	if err != nil {
		return nil, err
	}
	tbl, err = r.applyVolumeGates(tbl, cols)
	if err != nil {
		return nil, err
	}
	if err := r.applyFeatureEdits(tbl, cols); err != nil {
		return nil, err
	}
	tbl, err = r.applySiteCodes(tbl, cols)
	if err != nil {
		return nil, err
	}
	return r.removeColumns(tbl)
}

// cleanColumns caches the indices the reformatter touches. A missing
// column is a structural failure detected before any row work.
type cleanColumns struct {
	team                int
	year                int
	infarction          int
	ambulance           int
	thrombectomy        int
	priorDisability     int
	dischargeDisability int
	onsetToArrival      int
	onsetKnown          int
	thrombolysis        int
	arrivalToScan       int
	scanToThrombolysis  int
}

func newCleanColumns(t *table.Table) (cleanColumns, error) {
	var c cleanColumns
	var err error
	for _, bind := range []struct {
		name string
		dst  *int
	}{
		{"StrokeTeam", &c.team},
		{"ArrivalYear", &c.year},
		{"Infarction", &c.infarction},
		{"ArriveByAmbulance", &c.ambulance},
		{"Thrombectomy", &c.thrombectomy},
		{"PriorDisability", &c.priorDisability},
		{"DischargeDisability", &c.dischargeDisability},
		{"OnsetToArrival", &c.onsetToArrival},
		{"OnsetTimeKnown", &c.onsetKnown},
		{"Thrombolysis", &c.thrombolysis},
		{"ArrivalToScan", &c.arrivalToScan},
		{"ScanToThrombolysis", &c.scanToThrombolysis},
	} {
		if *bind.dst, err = t.ColumnIndex(bind.name); err != nil {
			return c, fmt.Errorf("clean table: %w", err)
		}
	}
	return c, nil
}

func (r *Reformatter) applyFilters(t *table.Table, cols cleanColumns) (*table.Table, error) {
	mask := make([]bool, t.Len())
	for i := range mask {
		year, err := t.Value(i, cols.year)
		if err != nil {
			return nil, err
		}
		infarction, err := t.Value(i, cols.infarction)
		if err != nil {
			return nil, err
		}
		ambulance, err := t.Value(i, cols.ambulance)
		if err != nil {
			return nil, err
		}
		thrombectomy, err := t.Value(i, cols.thrombectomy)
		if err != nil {
			return nil, err
		}
		prior, err := t.Value(i, cols.priorDisability)
		if err != nil {
			return nil, err
		}
		discharge, err := t.Value(i, cols.dischargeDisability)
		if err != nil {
			return nil, err
		}
		onset, err := t.Value(i, cols.onsetToArrival)
		if err != nil {
			return nil, err
		}
		known, err := t.Value(i, cols.onsetKnown)
		if err != nil {
			return nil, err
		}

		mask[i] = year.Valid && year.F >= float64(r.opts.YearCutoff) &&
			infarction.Is(1) &&
			ambulance.Is(1) &&
			!thrombectomy.Is(1) &&
			prior.Valid && prior.F >= 0 &&
			discharge.Valid && discharge.F >= 0 &&
			onset.Valid && onset.F > 0 &&
			known.Is(1)
	}

	out := t.Select(mask)
	r.log.Info("applied cohort filters",
		zap.Int("rows_in", t.Len()),
		zap.Int("rows_out", out.Len()))
	return out, nil
}

// applyVolumeGates keeps high-volume sites only. The gates are sequential
// on purpose: the treatment-count aggregate is recomputed on the table the
// admission gate already reduced.
func (r *Reformatter) applyVolumeGates(t *table.Table, cols cleanColumns) (*table.Table, error) {
	admissions := make(map[string]int)
	for i := 0; i < t.Len(); i++ {
		admissions[t.Cell(i, cols.team)]++
	}
	mask := make([]bool, t.Len())
	for i := range mask {
		mask[i] = admissions[t.Cell(i, cols.team)] >= r.opts.MinAdmissions
	}
	t = t.Select(mask)

	treatments := make(map[string]int)
	for i := 0; i < t.Len(); i++ {
		lysis, err := t.Value(i, cols.thrombolysis)
		if err != nil {
			return nil, err
		}
		if lysis.Is(1) {
			treatments[t.Cell(i, cols.team)]++
		}
	}
	mask = make([]bool, t.Len())
	for i := range mask {
		mask[i] = treatments[t.Cell(i, cols.team)] >= r.opts.MinThrombolysis
	}
	out := t.Select(mask)

	sites := make(map[string]bool)
	for i := 0; i < out.Len(); i++ {
		sites[out.Cell(i, cols.team)] = true
	}
	r.log.Info("applied hospital-volume gates",
		zap.Int("rows_out", out.Len()),
		zap.Int("sites_out", len(sites)))
	return out, nil
}

// applyFeatureEdits writes the NotApplicable sentinel into the treatment
// duration of untreated rows and derives the composite onset-to-treatment
// duration.
func (r *Reformatter) applyFeatureEdits(t *table.Table, cols cleanColumns) error {
	sentinel := strconv.Itoa(NotApplicable)
	composite := make([]string, t.Len())
	for i := 0; i < t.Len(); i++ {
		lysis, err := t.Value(i, cols.thrombolysis)
		if err != nil {
			return err
		}
		if lysis.Is(0) {
			t.SetCell(i, cols.scanToThrombolysis, sentinel)
		}
		if !lysis.Is(1) {
			composite[i] = sentinel
			continue
		}

		onset, err := t.Value(i, cols.onsetToArrival)
		if err != nil {
			return err
		}
		toScan, err := t.Value(i, cols.arrivalToScan)
		if err != nil {
			return err
		}
		toLysis, err := t.Value(i, cols.scanToThrombolysis)
		if err != nil {
			return err
		}
		if onset.Valid && toScan.Valid && toLysis.Valid {
			composite[i] = table.Num(onset.F + toScan.F + toLysis.F).String()
		}
	}
	return t.AppendColumn("OnsetToThrombolysis", composite)
}

// applySiteCodes attaches the anonymized site code, creating the mapping
// once and only once. Labels missing from a persisted mapping get no code:
// their rows are dropped and the condition is reported.
func (r *Reformatter) applySiteCodes(t *table.Table, cols cleanColumns) (*table.Table, error) {
	codes, exists, err := r.store.Load()
	if err != nil {
		return nil, err
	}
	if !exists {
		codes = r.buildSiteCodes(t, cols)
		if err := r.store.Save(codes); err != nil {
			return nil, fmt.Errorf("failed to persist site-code mapping: %w", err)
		}
		r.log.Info("persisted new site-code mapping", zap.Int("sites", len(codes)))
	}

	mask := make([]bool, t.Len())
	unmapped := make(map[string]int)
	for i := range mask {
		label := t.Cell(i, cols.team)
		code, ok := codes[label]
		if !ok {
			unmapped[label]++
			continue
		}
		t.SetCell(i, cols.team, strconv.Itoa(code))
		mask[i] = true
	}
	for label, n := range unmapped {
		r.log.Warn("site label absent from persisted code mapping, rows dropped",
			zap.String("site", label),
			zap.Int("rows", n))
	}

	t.Header[cols.team] = "TeamCode"
	return t.Select(mask), nil
}

// buildSiteCodes assigns sequential codes in fixed-seed shuffle order over
// the sorted distinct labels, so a first run is deterministic.
func (r *Reformatter) buildSiteCodes(t *table.Table, cols cleanColumns) map[string]int {
	seen := make(map[string]bool)
	var labels []string
	for i := 0; i < t.Len(); i++ {
		label := t.Cell(i, cols.team)
		if !seen[label] {
			seen[label] = true
			labels = append(labels, label)
		}
	}
	sort.Strings(labels)

	rng := rand.New(rand.NewSource(r.opts.ShuffleSeed))
	rng.Shuffle(len(labels), func(i, j int) {
		labels[i], labels[j] = labels[j], labels[i]
	})

	codes := make(map[string]int, len(labels))
	for i, label := range labels {
		codes[label] = i + 1
	}
	return codes
}

// namedRemovals lists the columns dropped unconditionally: constants after
// filtering, superseded encodings, and outcome fields that would leak the
// prediction target.
var namedRemovals = []string{
	"OnsetTimeKnown",
	"AFAnticoagulentVitK",
	"AFAnticoagulentDOAC",
	"AFAnticoagulentHeparin",
	"Thrombolysis",
	"Death",
	"DischargeDisability",
	"DischargeDestination",
	"CallToAmbulanceArrival",
	"AmbulanceOnScene",
	"AmbulanceTravel",
	"AmbulanceWait",
	"Thrombectomy",
	"ArrivalToThrombectomy",
}

// removeColumns evaluates the ordered removal predicates once against the
// filtered table snapshot: the named list first, then any numeric column
// whose values never vary.
func (r *Reformatter) removeColumns(t *table.Table) (*table.Table, error) {
	drop := make(map[string]bool, len(namedRemovals))
	for _, name := range namedRemovals {
		drop[name] = true
	}

	for col, name := range t.Header {
		if drop[name] {
			continue
		}
		if constantNumericColumn(t, col) {
			drop[name] = true
			r.log.Info("removed zero-variance column", zap.String("column", name))
		}
	}

	return t.DropColumns(drop), nil
}

// constantNumericColumn reports whether every cell in the column parses as
// the same number (or the column is entirely empty). Columns with any
// non-numeric cell are left alone.
func constantNumericColumn(t *table.Table, col int) bool {
	var first float64
	seen := false
	for i := 0; i < t.Len(); i++ {
		cell := t.Cell(i, col)
		if cell == "" {
			continue
		}
		f, err := strconv.ParseFloat(cell, 64)
		if err != nil {
			return false
		}
		if !seen {
			first = f
			seen = true
			continue
		}
		if f != first {
			return false
		}
	}
	return true
}
