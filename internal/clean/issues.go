package clean

// Issues is the audit row paired with each cleaned record: one boolean per
// detected anomaly. Written once per run; never read back by the pipeline.
type Issues struct {
	PatientID string

	AgeBandInvalid bool

	ArrivalTimeMissing bool

	ArrivalToScanInvalid         bool
	ScanToThrombolysisInvalid    bool
	ArrivalToThrombectomyInvalid bool

	AmbulancePhaseMissing     bool
	AmbulancePhaseNegative    bool
	AmbulancePhaseZero        bool
	AmbulanceWithoutTransport bool
	// Per-phase ceiling breaches, phaseColumns order.
	AmbulanceOverCeiling [numPhases]bool

	OnsetToArrivalNonPositive bool
	OnsetTimeNotKnown         bool

	AnticoagulantDiscrepancy bool
	DeathDiscrepancy         bool
}

// IssueHeader returns the issue-table column order.
func IssueHeader() []string {
	h := []string{
		"PatientId",
		"AgeBandInvalid",
		"ArrivalTimeMissing",
		"ArrivalToScanInvalid",
		"ScanToThrombolysisInvalid",
		"ArrivalToThrombectomyInvalid",
		"AmbulancePhaseMissing",
		"AmbulancePhaseNegative",
		"AmbulancePhaseZero",
		"AmbulanceWithoutTransport",
	}
	for _, col := range phaseColumns {
		h = append(h, "OverCeiling"+col)
	}
	h = append(h,
		"OnsetToArrivalNonPositive",
		"OnsetTimeNotKnown",
		"AnticoagulantDiscrepancy",
		"DeathDiscrepancy",
	)
	return h
}

func flagCell(b bool) string {
	if b {
		return "1"
	}
	return "0"
}

func (is *Issues) row() []string {
	cells := []string{
		is.PatientID,
		flagCell(is.AgeBandInvalid),
		flagCell(is.ArrivalTimeMissing),
		flagCell(is.ArrivalToScanInvalid),
		flagCell(is.ScanToThrombolysisInvalid),
		flagCell(is.ArrivalToThrombectomyInvalid),
		flagCell(is.AmbulancePhaseMissing),
		flagCell(is.AmbulancePhaseNegative),
		flagCell(is.AmbulancePhaseZero),
		flagCell(is.AmbulanceWithoutTransport),
	}
	for _, b := range is.AmbulanceOverCeiling {
		cells = append(cells, flagCell(b))
	}
	cells = append(cells,
		flagCell(is.OnsetToArrivalNonPositive),
		flagCell(is.OnsetTimeNotKnown),
		flagCell(is.AnticoagulantDiscrepancy),
		flagCell(is.DeathDiscrepancy),
	)
	return cells
}
