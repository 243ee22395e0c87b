package clean

import (
	"fmt"

	"github.com/strokeml/strokeprep/internal/table"
)

// rawView wraps the raw extract with a verified header index. Every column
// the cleaner reads must be present up front; a missing column is a
// structural failure, not a data-quality condition.
type rawView struct {
	t   *table.Table
	idx map[string]int
}

func newRawView(t *table.Table) (*rawView, error) {
	idx := make(map[string]int, len(t.Header))
	for i, h := range t.Header {
		idx[h] = i
	}
	for _, name := range RawColumns() {
		if _, ok := idx[name]; !ok {
			return nil, fmt.Errorf("raw extract: missing expected column %q", name)
		}
	}
	return &rawView{t: t, idx: idx}, nil
}

// RawColumns lists every column the cleaner requires of the raw extract.
func RawColumns() []string {
	cols := []string{
		"PatientId",
		"StrokeTeam",
		"Gender",
		"StrokeType",
		"OnsetTimeType",
		"OnsetDuringSleep",
		"ArriveByAmbulance",
		"CallMinutes",
		"AmbulanceArrivalMinutes",
		"AmbulanceLeaveSceneMinutes",
		"HospitalArrivalMinutes",
		"HandoverMinutes",
		"ArrivalYear",
		"ArrivalMonth",
		"ArrivalDay",
		"ArrivalHour",
		"ArrivalMinute",
		"ScanMinutes",
		"ThrombolysisMinutes",
		"ThrombectomyMinutes",
		"Thrombolysis",
		"Thrombectomy",
		"CongestiveHeartFailure",
		"Hypertension",
		"AtrialFibrillation",
		"Diabetes",
		"PriorStrokeTIA",
		"AFAntiplatelet",
		"AFAnticoagulent",
		"PriorDisability",
		"DischargeDisability",
		"DischargeDestination",
		"DaysToDeath",
		"NoThrombolysisReason",
	}
	for _, b := range ageBands {
		cols = append(cols, b.Column)
	}
	cols = append(cols, anticoagulantSubtypes...)
	cols = append(cols, nihssItems...)
	return cols
}

// rowReader reads typed cells from one raw row, capturing the first
// malformed-cell error so decode call sites stay linear.
type rowReader struct {
	view *rawView
	row  int
	err  error
}

func (r *rowReader) cell(name string) string {
	return r.view.t.Cell(r.row, r.view.idx[name])
}

func (r *rowReader) num(name string) table.Value {
	v, err := table.Parse(r.cell(name))
	if err != nil && r.err == nil {
		r.err = fmt.Errorf("column %q: %w", name, err)
	}
	return v
}

// offset reads a minute-offset field where any negative source value is
// the extract's "not recorded" sentinel.
func (r *rowReader) offset(name string) table.Value {
	v := r.num(name)
	if v.Valid && v.F < 0 {
		return table.Value{}
	}
	return v
}

// flag maps the extract's Y/N/NB coding to {1, 0, 0}; anything else,
// including an empty cell, stays missing.
func (r *rowReader) flag(name string) table.Value {
	switch r.cell(name) {
	case "Y":
		return table.Num(1)
	case "N", "NB":
		return table.Num(0)
	default:
		return table.Value{}
	}
}
