package district

import (
	"math"
	"sort"
)

// Thresholds for "similar groundwater stress". Districts qualify as
// comparable when predicted depth, urgency tier, and pump dependency all
// fall within these bands of the target district.
const (
	comparableDepthBand = 1.5  // metres of predicted 1yr depth
	comparableTierBand  = 1    // urgency tiers
	comparableDepBand   = 0.15 // groundwater dependency ratio
	maxComparables      = 3
)

// Comparables returns up to three districts facing similar groundwater
// stress to the named district, nearest predicted depth first. An unknown
// district or an empty dataset yields an empty slice, never an error.
// The comparison prompt renders an explicit "none found" line instead.
func (d *Dataset) Comparables(name string) []Record {
	target, ok := d.Get(name)
	if !ok {
		return nil
	}

	depth, _ := target.Float("CASA_Pred_1yr")
	tier, _ := target.Float("Tier")
	dep, _ := target.Float("GW_Dep_Ratio")

	var out []Record
	for _, r := range d.Records {
		if r.Name() == name || r.Name() == "" {
			continue
		}
		rDepth, _ := r.Float("CASA_Pred_1yr")
		rTier, _ := r.Float("Tier")
		rDep, _ := r.Float("GW_Dep_Ratio")

		if math.Abs(rDepth-depth) <= comparableDepthBand &&
			math.Abs(rTier-tier) <= comparableTierBand &&
			math.Abs(rDep-dep) <= comparableDepBand {
			out = append(out, r)
		}
	}

	sort.SliceStable(out, func(i, j int) bool {
		di, _ := out[i].Float("CASA_Pred_1yr")
		dj, _ := out[j].Float("CASA_Pred_1yr")
		return math.Abs(di-depth) < math.Abs(dj-depth)
	})

	if len(out) > maxComparables {
		out = out[:maxComparables]
	}
	return out
}
