package clean

import "github.com/strokeml/strokeprep/internal/table"

// The consistency passes run over the whole table in a fixed order, so a
// later pass always sees fields already nulled by an earlier one. Each
// condition raises its own issue flag even when several co-occur on a row.

// ambulancePass neutralizes the whole ambulance-phase group when any phase
// is implausible, or when durations exist for a patient not transported by
// ambulance (which also clears the transport flag itself).
func ambulancePass(records []Record, issues []Issues) {
	for i := range records {
		rec := &records[i]
		is := &issues[i]

		var anyPresent, anyMissing, anyNegative, anyZeroNonFinal bool
		var over [numPhases]bool
		for p, v := range rec.Ambulance {
			if !v.Valid {
				anyMissing = true
				continue
			}
			anyPresent = true
			if v.F < 0 {
				anyNegative = true
			}
			if v.F == 0 && p != phaseWait {
				anyZeroNonFinal = true
			}
			if v.F > phaseCeilings[p] {
				over[p] = true
			}
		}

		nullGroup := false
		if rec.ArriveByAmbulance.Is(1) && anyMissing {
			is.AmbulancePhaseMissing = true
			nullGroup = true
		}
		if anyNegative {
			is.AmbulancePhaseNegative = true
			nullGroup = true
		}
		if anyZeroNonFinal {
			is.AmbulancePhaseZero = true
			nullGroup = true
		}
		if rec.ArriveByAmbulance.Is(0) && anyPresent {
			is.AmbulanceWithoutTransport = true
			rec.ArriveByAmbulance = table.Value{}
			nullGroup = true
		}
		for p := range over {
			if over[p] {
				is.AmbulanceOverCeiling[p] = true
				nullGroup = true
			}
		}

		if nullGroup {
			for p := range rec.Ambulance {
				rec.Ambulance[p] = table.Value{}
			}
		}
	}
}

// onsetPass nulls the onset-to-arrival duration when it is non-positive or
// when the onset time was never known; the two causes log separately.
func onsetPass(records []Record, issues []Issues) {
	for i := range records {
		rec := &records[i]
		is := &issues[i]

		if rec.OnsetToArrival.Valid && rec.OnsetToArrival.F <= 0 {
			is.OnsetToArrivalNonPositive = true
			rec.OnsetToArrival = table.Value{}
		}
		if rec.OnsetTimeKnown.Is(0) {
			is.OnsetTimeNotKnown = true
			rec.OnsetToArrival = table.Value{}
		}
	}
}

// anticoagulantPass clears the whole anticoagulant group when a sub-type
// is recorded for a patient whose parent flag says no anticoagulant.
func anticoagulantPass(records []Record, issues []Issues) {
	for i := range records {
		rec := &records[i]

		if !rec.AFAnticoagulent.Is(0) {
			continue
		}
		any := false
		for _, v := range rec.AnticoagulantSubtype {
			if v.Is(1) {
				any = true
			}
		}
		if !any {
			continue
		}

		issues[i].AnticoagulantDiscrepancy = true
		rec.AFAnticoagulent = table.Value{}
		for s := range rec.AnticoagulantSubtype {
			rec.AnticoagulantSubtype[s] = table.Value{}
		}
	}
}

// deathPass checks the three death markers against each other: if any one
// says the patient died while another present marker disagrees, all three
// are nulled.
func deathPass(records []Record, issues []Issues) {
	for i := range records {
		rec := &records[i]

		died := rec.Death.Is(1)
		disability := rec.DischargeDisability.Is(6)
		destination := rec.DischargeDestination == "D"
		if !died && !disability && !destination {
			continue
		}

		consistent := (died || !rec.Death.Valid) &&
			(disability || !rec.DischargeDisability.Valid) &&
			(destination || rec.DischargeDestination == "")
		if consistent {
			continue
		}

		issues[i].DeathDiscrepancy = true
		rec.Death = table.Value{}
		rec.DischargeDisability = table.Value{}
		rec.DischargeDestination = ""
	}
}
