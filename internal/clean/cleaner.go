// Package clean normalizes the raw stroke-audit extract into typed
// columns, neutralizes implausible records, and emits a parallel issue
// table naming every anomaly it detected.
package clean

import (
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/strokeml/strokeprep/internal/table"
)

// Cleaner turns a raw extract table into a clean table plus its issue
// table. Data-quality findings null the offending fields and raise issue
// flags; only structural problems (missing columns, malformed cells)
// return an error.
type Cleaner struct {
	log *zap.Logger
}

func NewCleaner(log *zap.Logger) *Cleaner {
	return &Cleaner{log: log}
}

// Run cleans the raw table. The issue table is row-aligned with the clean
// table: both are built pre-drop and then filtered by the same mask that
// removes records with an unset stroke type.
func (c *Cleaner) Run(raw *table.Table) (*table.Table, *table.Table, error) {
	view, err := newRawView(raw)
	if err != nil {
		return nil, nil, err
	}

	records := make([]Record, 0, raw.Len())
	issues := make([]Issues, 0, raw.Len())
	for i := 0; i < raw.Len(); i++ {
		rec, is, err := decodeRow(view, i)
		if err != nil {
			return nil, nil, fmt.Errorf("raw extract row %d: %w", i+1, err)
		}
		records = append(records, rec)
		issues = append(issues, is)
	}

	// Fixed pass order: later passes must see fields already nulled by
	// earlier ones.
	ambulancePass(records, issues)
	onsetPass(records, issues)
	anticoagulantPass(records, issues)
	deathPass(records, issues)

	cleanTbl := table.New(Header())
	issueTbl := table.New(IssueHeader())
	dropped := 0
	for i := range records {
		if !records[i].Infarction.Valid {
			dropped++
			continue
		}
		cleanTbl.Rows = append(cleanTbl.Rows, records[i].row())
		issueTbl.Rows = append(issueTbl.Rows, issues[i].row())
	}

	c.log.Info("cleaned raw extract",
		zap.Int("raw_rows", raw.Len()),
		zap.Int("clean_rows", cleanTbl.Len()),
		zap.Int("dropped_unset_stroke_type", dropped))

	return cleanTbl, issueTbl, nil
}

func decodeRow(view *rawView, row int) (Record, Issues, error) {
	r := &rowReader{view: view, row: row}

	rec := Record{
		PatientID:  r.cell("PatientId"),
		StrokeTeam: r.cell("StrokeTeam"),
	}
	is := Issues{PatientID: rec.PatientID}

	// Banded age: exactly one active indicator selects the midpoint.
	active := 0
	midpoint := 0.0
	for _, b := range ageBands {
		if r.num(b.Column).Is(1) {
			active++
			midpoint = b.Midpoint
		}
	}
	if active == 1 {
		rec.Age = table.Num(midpoint)
	} else {
		is.AgeBandInvalid = true
	}

	switch r.cell("Gender") {
	case "M":
		rec.Male = table.Num(1)
	case "F":
		rec.Male = table.Num(0)
	}

	switch r.cell("StrokeType") {
	case "I":
		rec.Infarction = table.Num(1)
	case "PIH":
		rec.Infarction = table.Num(0)
	}

	switch r.cell("OnsetTimeType") {
	case "P":
		rec.OnsetTimeKnown = table.Num(1)
		rec.OnsetTimePrecise = table.Num(1)
	case "BE":
		rec.OnsetTimeKnown = table.Num(1)
		rec.OnsetTimePrecise = table.Num(0)
	case "NK":
		rec.OnsetTimeKnown = table.Num(0)
		rec.OnsetTimePrecise = table.Num(0)
	}
	rec.OnsetDuringSleep = r.flag("OnsetDuringSleep")
	rec.ArriveByAmbulance = r.flag("ArriveByAmbulance")

	// Ambulance phases are differences of cumulative offsets from onset.
	call := r.offset("CallMinutes")
	arrival := r.offset("AmbulanceArrivalMinutes")
	leave := r.offset("AmbulanceLeaveSceneMinutes")
	hospital := r.offset("HospitalArrivalMinutes")
	handover := r.offset("HandoverMinutes")
	rec.Ambulance[phaseCallToArrival] = diff(arrival, call)
	rec.Ambulance[phaseOnScene] = diff(leave, arrival)
	rec.Ambulance[phaseTravel] = diff(hospital, leave)
	rec.Ambulance[phaseWait] = diff(handover, hospital)
	rec.OnsetToArrival = hospital

	decodeArrival(r, &rec, &is)

	// Pathway durations: a present but non-positive result is a
	// data-entry fault, not a valid short duration.
	scan := r.offset("ScanMinutes")
	lysis := r.offset("ThrombolysisMinutes")
	ectomy := r.offset("ThrombectomyMinutes")
	rec.ArrivalToScan = positiveOr(scan, &is.ArrivalToScanInvalid)
	rec.ScanToThrombolysis = positiveOr(diff(lysis, scan), &is.ScanToThrombolysisInvalid)
	rec.ArrivalToThrombectomy = positiveOr(ectomy, &is.ArrivalToThrombectomyInvalid)

	rec.Thrombolysis = r.flag("Thrombolysis")
	rec.Thrombectomy = r.flag("Thrombectomy")

	rec.CongestiveHeartFailure = r.flag("CongestiveHeartFailure")
	rec.Hypertension = r.flag("Hypertension")
	rec.AtrialFibrillation = r.flag("AtrialFibrillation")
	rec.Diabetes = r.flag("Diabetes")
	rec.PriorStrokeTIA = r.flag("PriorStrokeTIA")
	rec.AFAnticoagulent = r.flag("AFAnticoagulent")

	// Antiplatelet on anticoagulation is clinically impossible without
	// the parent diagnosis, so an unrecorded flag collapses to 0 there.
	rec.AFAntiplatelet = r.flag("AFAntiplatelet")
	if !rec.AFAntiplatelet.Valid && rec.AtrialFibrillation.Is(0) {
		rec.AFAntiplatelet = table.Num(0)
	}

	// The sub-type group has different null semantics: unrecorded means
	// the sub-type was not given.
	for i, name := range anticoagulantSubtypes {
		v := r.flag(name)
		if !v.Valid {
			v = table.Num(0)
		}
		rec.AnticoagulantSubtype[i] = v
	}

	decodeNihss(r, &rec)

	rec.PriorDisability = notAssessedToMissing(r.num("PriorDisability"))
	rec.DischargeDisability = notAssessedToMissing(r.num("DischargeDisability"))
	rec.DischargeDestination = r.cell("DischargeDestination")

	daysToDeath := r.num("DaysToDeath")
	if daysToDeath.Valid && daysToDeath.F >= 0 {
		rec.Death = table.Num(1)
	} else {
		rec.Death = table.Num(0)
	}

	if err := decodeReason(r, &rec); err != nil {
		return Record{}, Issues{}, err
	}

	if r.err != nil {
		return Record{}, Issues{}, r.err
	}
	return rec, is, nil
}

func decodeArrival(r *rowReader, rec *Record, is *Issues) {
	year := r.num("ArrivalYear")
	month := r.num("ArrivalMonth")
	day := r.num("ArrivalDay")
	hour := r.num("ArrivalHour")
	minute := r.num("ArrivalMinute")
	if !year.Valid || !month.Valid || !day.Valid || !hour.Valid || !minute.Valid {
		is.ArrivalTimeMissing = true
		return
	}

	rec.ArrivalYear = year
	rec.ArrivalMonth = month
	rec.ArrivalHour = hour

	// ISO weekday, Monday=1 .. Sunday=7.
	wd := time.Date(int(year.F), time.Month(month.F), int(day.F), 0, 0, 0, 0, time.UTC).Weekday()
	iso := int(wd)
	if iso == 0 {
		iso = 7
	}
	rec.ArrivalWeekday = table.Num(float64(iso))
}

func decodeNihss(r *rowReader, rec *Record) {
	rec.Nihss = make([]table.Value, len(nihssItems))
	complete := true
	for i, item := range nihssItems {
		v := r.num(item)
		if !v.Valid || v.Is(-1) {
			complete = false
		}
		// Loc is the only item whose "not assessed" sentinel survives; it
		// alone feeds the completeness flag downstream.
		if v.Is(-1) && item != "Loc" {
			v = table.Value{}
		}
		rec.Nihss[i] = v
	}
	if complete {
		rec.NihssComplete = table.Num(1)
	} else {
		rec.NihssComplete = table.Num(0)
	}
}

func decodeReason(r *rowReader, rec *Record) error {
	rec.Reason = make([]table.Value, len(reasonCodes))
	code := r.cell("NoThrombolysisReason")
	if code == "" {
		// No recorded reason stays missing across the whole group, so it
		// remains distinguishable from "no barrier to treatment".
		return nil
	}
	found := false
	for i, rc := range reasonCodes {
		if rc == code {
			rec.Reason[i] = table.Num(1)
			found = true
		} else {
			rec.Reason[i] = table.Num(0)
		}
	}
	if !found {
		return fmt.Errorf("column %q: unrecognised reason code %q", "NoThrombolysisReason", code)
	}
	return nil
}

// diff subtracts two cumulative offsets, missing if either is missing.
func diff(later, earlier table.Value) table.Value {
	if !later.Valid || !earlier.Valid {
		return table.Value{}
	}
	return table.Num(later.F - earlier.F)
}

// positiveOr keeps a strictly positive duration; a present non-positive
// value is nulled and flagged.
func positiveOr(v table.Value, fault *bool) table.Value {
	if v.Valid && v.F <= 0 {
		*fault = true
		return table.Value{}
	}
	return v
}

// notAssessedToMissing converts the -1 "not recorded" sentinel to missing.
func notAssessedToMissing(v table.Value) table.Value {
	if v.Is(-1) {
		return table.Value{}
	}
	return v
}
