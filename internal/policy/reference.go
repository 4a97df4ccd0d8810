// Package policy holds static Tamil Nadu agricultural policy reference
// data: TNAU crop guidance, scheme eligibility by district, and scheme
// names. Compiled from the TNAU crop production guide (2023), PMKSY
// scheme guidelines, and State Agriculture Department advisories; it is
// decision-support context, not an authoritative source; verify against
// current government circulars before official use.
package policy

// CropNotes is the per-crop policy context injected into generation
// prompts.
type CropNotes struct {
	TNAURecommendation string
	PMKSYEligible      bool
	PMKSYNote          string
	WaterSavingNote    string
	MarketNote         string
	Challenges         string
}

var cropSchemes = map[string]CropNotes{
	"Bajra": {
		TNAURecommendation: "TNAU recommends Co(Cu)-9 and K-677 varieties for Tamil Nadu dryland conditions. " +
			"Suited for districts with annual rainfall 300-700mm. Duration 75-85 days.",
		PMKSYEligible: true,
		PMKSYNote: "Eligible under PMKSY Per Drop More Crop component for micro-irrigation subsidy " +
			"(drip/sprinkler). Subsidy covers 55% of installation cost for small/marginal farmers.",
		WaterSavingNote: "Bajra requires 350-400mm seasonal water against Rice's 1200-1500mm. " +
			"Most water-efficient cereal option for Tamil Nadu dryland tracts.",
		MarketNote: "Procurement under MSP through TNCSC. Coarse grain demand rising with " +
			"ethanol blending programme and livestock feed sector.",
		Challenges: "Low farmer familiarity in traditionally rice-growing districts. " +
			"Processing infrastructure limited outside Tirunelveli and Virudhunagar belts.",
	},
	"Jowar": {
		TNAURecommendation: "TNAU recommends CO(S) 28 and CSH-16 for Tamil Nadu. Dual purpose — " +
			"grain and fodder. Duration 100-110 days.",
		PMKSYEligible: true,
		PMKSYNote: "Eligible under PMKSY. Drip irrigation subsidy applicable. " +
			"Also covered under Rashtriya Krishi Vikas Yojana (RKVY) for coarse cereals promotion.",
		WaterSavingNote: "Requires 450-550mm seasonal water. 40-50% less than Rice.",
		MarketNote: "Strong local demand for fodder in dairy districts. " +
			"MSP procurement available through TNCSC.",
		Challenges: "Bird damage in open field conditions. Requires crop protection advisory.",
	},
	"Groundnut": {
		TNAURecommendation: "TNAU recommends VRI 8 and CO 7 varieties. Kharif and Rabi seasons both viable. " +
			"Duration 100-110 days. Best in sandy loam soils.",
		PMKSYEligible: true,
		PMKSYNote: "Eligible under PMKSY micro-irrigation. Also covered under National Food " +
			"Security Mission (oilseeds component) for seed subsidy.",
		WaterSavingNote: "Requires 500-600mm seasonal water against Rice's 1200-1500mm. " +
			"60% water saving potential where Rice is currently dominant.",
		MarketNote: "Strong domestic and export demand. Good price realisation in Vellore, " +
			"Villupuram, and Tiruvannamalai belts. NAFED procurement for buffer stock.",
		Challenges: "Aflatoxin risk in high-humidity post-harvest conditions. " +
			"Requires proper storage advisory.",
	},
	"Maize": {
		TNAURecommendation: "TNAU recommends COH(M) 8 hybrid for Tamil Nadu. Suited to irrigated and " +
			"semi-irrigated conditions. Duration 90-100 days.",
		PMKSYEligible:   true,
		PMKSYNote:       "Eligible under PMKSY. Also covered under RKVY for feed grain promotion.",
		WaterSavingNote: "Requires 500-600mm seasonal water. Moderate saving vs Rice.",
		MarketNote: "Strong demand from poultry feed industry centred in Namakkal and Erode districts. " +
			"Contract farming arrangements available with major integrators.",
		Challenges: "Highly competitive market. Price volatile against imports.",
	},
	"Rice": {
		TNAURecommendation: "TNAU recommends ADT 53, CO 51, and CR 1009 sub1 for Samba season. " +
			"ADT 36 for medium-duration situations. TRY 3 and ADT 43 for flood-prone areas.",
		PMKSYEligible: false,
		PMKSYNote: "Rice is not prioritised under PMKSY water efficiency component " +
			"given its high water requirement. Canal-irrigated rice is supported " +
			"under Pradhan Mantri Fasal Bima Yojana (PMFBY) for crop insurance.",
		WaterSavingNote: "Highest water requirement crop. No saving — transition away from Rice " +
			"is the primary lever for groundwater conservation in GW-dependent districts.",
		MarketNote: "MSP procurement well-established through TNCSC. Cultural preference strong " +
			"especially in delta districts. Transition away faces social resistance.",
		Challenges: "Any transition away from Rice faces significant farmer resistance " +
			"and requires sustained extension support over 3-5 cropping seasons.",
	},
}

// District-level scheme eligibility per the State Agriculture Department
// drought-prone area classification.
var districtSchemes = map[string][]string{
	"Coimbatore":     {"PMKSY", "RKVY", "NMSA", "NHM"},
	"Tiruppur":       {"PMKSY", "RKVY", "NMSA"},
	"Namakkal":       {"PMKSY", "RKVY", "NMSA"},
	"Theni":          {"PMKSY", "RKVY", "NMSA", "NHM"},
	"Krishnagiri":    {"PMKSY", "RKVY", "NMSA"},
	"Dharmapuri":     {"PMKSY", "RKVY", "NMSA", "NHM"},
	"Dindigul":       {"PMKSY", "RKVY"},
	"Virudhunagar":   {"PMKSY", "RKVY"},
	"Madurai":        {"PMKSY", "RKVY"},
	"Salem":          {"PMKSY", "RKVY", "NMSA"},
	"Erode":          {"PMKSY", "RKVY"},
	"Karur":          {"PMKSY"},
	"Tiruchirapalli": {"PMKSY"},
}

var defaultSchemes = []string{"PMKSY"}

// SchemeNames maps scheme codes to their full names.
var SchemeNames = map[string]string{
	"PMKSY": "Pradhan Mantri Krishi Sinchayee Yojana — micro-irrigation subsidy",
	"RKVY":  "Rashtriya Krishi Vikas Yojana — crop diversification funding",
	"NMSA":  "National Mission for Sustainable Agriculture — dryland farming support",
	"NHM":   "National Horticulture Mission — high-value crop transition support",
}

// CropPolicy returns the policy notes for a crop. Unknown crops fall back
// to the Rice entry, which carries the transition-away framing.
func CropPolicy(crop string) CropNotes {
	if notes, ok := cropSchemes[crop]; ok {
		return notes
	}
	return cropSchemes["Rice"]
}

// SchemesForDistrict returns the scheme codes a district is eligible for.
func SchemesForDistrict(district string) []string {
	if schemes, ok := districtSchemes[district]; ok {
		return schemes
	}
	return defaultSchemes
}
