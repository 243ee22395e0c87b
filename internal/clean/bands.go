package clean

// ageBand is one entry in the strictly ordered age-band enumeration of the
// raw extract. Exactly one band indicator must be active per row; the band
// maps to its numeric midpoint. Zero or multiple active indicators leave
// the age undefined and raise an issue flag instead of guessing.
type ageBand struct {
	Column   string
	Midpoint float64
}

var ageBands = []ageBand{
	{"AgeUnder40", 37.5},
	{"Age40to44", 42.5},
	{"Age45to49", 47.5},
	{"Age50to54", 52.5},
	{"Age55to59", 57.5},
	{"Age60to64", 62.5},
	{"Age65to69", 67.5},
	{"Age70to74", 72.5},
	{"Age75to79", 77.5},
	{"Age80to84", 82.5},
	{"Age85to89", 87.5},
	{"AgeOver90", 92.5},
}
