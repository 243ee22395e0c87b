package clean

import (
	"github.com/strokeml/strokeprep/internal/table"
)

// Ambulance phase ordering within Record.Ambulance. AmbulanceWait is the
// final phase and the only one for which a zero duration is plausible.
const (
	phaseCallToArrival = iota
	phaseOnScene
	phaseTravel
	phaseWait
	numPhases
)

var phaseColumns = [numPhases]string{
	"CallToAmbulanceArrival",
	"AmbulanceOnScene",
	"AmbulanceTravel",
	"AmbulanceWait",
}

// Per-phase plausibility ceilings, minutes.
var phaseCeilings = [numPhases]float64{1440, 720, 360, 720}

// nihssItems lists the arrival severity sub-scores in output order. Loc is
// first and is the only item whose -1 sentinel survives cleaning.
var nihssItems = []string{
	"Loc",
	"LocQuestions",
	"LocCommands",
	"BestGaze",
	"Visual",
	"FacialPalsy",
	"MotorArmLeft",
	"MotorArmRight",
	"MotorLegLeft",
	"MotorLegRight",
	"LimbAtaxia",
	"Sensory",
	"BestLanguage",
	"Dysarthria",
	"ExtinctionInattention",
}

// reasonCodes lists the recognised reason-for-no-thrombolysis codes. Each
// becomes a NoThrombolysis<code> indicator column; "None" is the explicit
// no-barrier category.
var reasonCodes = []string{
	"TimeWindow",
	"Comorbidity",
	"Medication",
	"Refusal",
	"Age",
	"Improving",
	"TooMildSevere",
	"TimeUnknownWakeUp",
	"OtherMedical",
	"None",
}

var anticoagulantSubtypes = []string{
	"AFAnticoagulentVitK",
	"AFAnticoagulentDOAC",
	"AFAnticoagulentHeparin",
}

// Record is one cleaned row. Every indicator field holds one of
// {0, 1, missing}; every duration is positive or missing except where a
// sentinel is documented on the field.
type Record struct {
	PatientID  string
	StrokeTeam string

	Age               table.Value
	Male              table.Value
	Infarction        table.Value
	OnsetTimeKnown    table.Value
	OnsetTimePrecise  table.Value
	OnsetDuringSleep  table.Value
	ArriveByAmbulance table.Value

	Ambulance      [numPhases]table.Value
	OnsetToArrival table.Value

	ArrivalYear    table.Value
	ArrivalMonth   table.Value
	ArrivalWeekday table.Value
	ArrivalHour    table.Value

	ArrivalToScan         table.Value
	ScanToThrombolysis    table.Value
	ArrivalToThrombectomy table.Value
	Thrombolysis          table.Value
	Thrombectomy          table.Value

	CongestiveHeartFailure table.Value
	Hypertension           table.Value
	AtrialFibrillation     table.Value
	Diabetes               table.Value
	PriorStrokeTIA         table.Value
	AFAntiplatelet         table.Value
	AFAnticoagulent        table.Value
	AnticoagulantSubtype   [3]table.Value

	// Nihss holds the sub-scores in nihssItems order; Loc keeps its raw -1.
	Nihss         []table.Value
	NihssComplete table.Value

	PriorDisability      table.Value
	DischargeDisability  table.Value
	DischargeDestination string
	Death                table.Value

	// Reason holds the NoThrombolysis indicators in reasonCodes order.
	// All missing when no reason code was recorded.
	Reason []table.Value
}

// Header returns the clean-table column order.
func Header() []string {
	h := []string{
		"PatientId",
		"StrokeTeam",
		"Age",
		"Male",
		"Infarction",
		"OnsetTimeKnown",
		"OnsetTimePrecise",
		"OnsetDuringSleep",
		"ArriveByAmbulance",
	}
	h = append(h, phaseColumns[:]...)
	h = append(h,
		"OnsetToArrival",
		"ArrivalYear",
		"ArrivalMonth",
		"ArrivalWeekday",
		"ArrivalHour",
		"ArrivalToScan",
		"ScanToThrombolysis",
		"ArrivalToThrombectomy",
		"Thrombolysis",
		"Thrombectomy",
		"CongestiveHeartFailure",
		"Hypertension",
		"AtrialFibrillation",
		"Diabetes",
		"PriorStrokeTIA",
		"AFAntiplatelet",
		"AFAnticoagulent",
	)
	h = append(h, anticoagulantSubtypes...)
	h = append(h, nihssItems...)
	h = append(h,
		"NihssComplete",
		"PriorDisability",
		"DischargeDisability",
		"DischargeDestination",
		"Death",
	)
	for _, code := range reasonCodes {
		h = append(h, "NoThrombolysis"+code)
	}
	return h
}

func (r *Record) row() []string {
	cells := []string{
		r.PatientID,
		r.StrokeTeam,
		r.Age.String(),
		r.Male.String(),
		r.Infarction.String(),
		r.OnsetTimeKnown.String(),
		r.OnsetTimePrecise.String(),
		r.OnsetDuringSleep.String(),
		r.ArriveByAmbulance.String(),
	}
	for _, p := range r.Ambulance {
		cells = append(cells, p.String())
	}
	cells = append(cells,
		r.OnsetToArrival.String(),
		r.ArrivalYear.String(),
		r.ArrivalMonth.String(),
		r.ArrivalWeekday.String(),
		r.ArrivalHour.String(),
		r.ArrivalToScan.String(),
		r.ScanToThrombolysis.String(),
		r.ArrivalToThrombectomy.String(),
		r.Thrombolysis.String(),
		r.Thrombectomy.String(),
		r.CongestiveHeartFailure.String(),
		r.Hypertension.String(),
		r.AtrialFibrillation.String(),
		r.Diabetes.String(),
		r.PriorStrokeTIA.String(),
		r.AFAntiplatelet.String(),
		r.AFAnticoagulent.String(),
	)
	for _, s := range r.AnticoagulantSubtype {
		cells = append(cells, s.String())
	}
	for _, n := range r.Nihss {
		cells = append(cells, n.String())
	}
	cells = append(cells,
		r.NihssComplete.String(),
		r.PriorDisability.String(),
		r.DischargeDisability.String(),
		r.DischargeDestination,
		r.Death.String(),
	)
	for _, v := range r.Reason {
		cells = append(cells, v.String())
	}
	return cells
}
