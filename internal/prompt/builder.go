// Package prompt renders district records into the fixed natural-language
// templates sent upstream. Building is pure: identical inputs produce
// byte-identical prompts, missing fields render a fixed placeholder, and
// no template ever emits a bare zero value where data was absent.
package prompt

import (
	"fmt"
	"math"
	"strings"

	"github.com/arivoli/neer/internal/district"
	"github.com/arivoli/neer/internal/policy"
)

// placeholder renders in place of any field the dataset row does not carry.
const placeholder = "not available"

const defaultSHAPDriver = "long-term depletion trend"

// Context carries the auxiliary records a section template interpolates
// alongside the district row. The caller owns all of it; empty slices are
// valid input and render as explicit "none" lines.
type Context struct {
	Crop        policy.CropNotes
	Schemes     []string
	Comparables []district.Record
	Advisories  []string
}

// Build renders the template for the given dossier section.
func Build(section Section, rec district.Record, aux Context) (string, error) {
	switch section {
	case SectionRecommendation:
		return buildRecommendation(rec, aux), nil
	case SectionFeasibility:
		return buildFeasibility(rec, aux), nil
	case SectionContingency:
		return buildContingency(rec), nil
	case SectionComparable:
		return buildComparable(rec, aux), nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownSection, section)
}

// Brief renders the single-narrative policy brief template used by the
// district panel.
func Brief(rec district.Record) string {
	return fmt.Sprintf(`You are a groundwater policy analyst advising the Tamil Nadu state government.
Using only the data below, write a 3-sentence policy brief (maximum 80 words) that:
1. States the core groundwater problem with specific numbers
2. Identifies the primary driver from the SHAP analysis
3. Gives one clear, specific actionable recommendation

District: %s
Predicted GW depth (next year): %sm below ground
Water table trend: %sm per year
Urgency tier: Tier %s of 4
Pump-fed irrigation dependency: %s%%
Recommended crop transition: %s
Potential water saving from transition: %s%%
Primary model driver (SHAP): %s
Flood risk level: %s
Drought risk level: %s

Write only the brief. No headings, no bullet points, no preamble.`,
		str(rec, "District"),
		num(rec, "CASA_Pred_1yr", 2),
		signed(rec, "GW_Trend_m_per_yr", 2),
		num(rec, "Tier", 0),
		pct(rec, "GW_Dep_Ratio"),
		str(rec, "Recommended_Crop"),
		num(rec, "Potential_Water_Saving_pct", 0),
		strOr(rec, "SHAP_Top_Driver_Label", defaultSHAPDriver),
		str(rec, "Flood_Risk"),
		str(rec, "Drought_Risk"),
	)
}

const analystPreamble = "You are a senior groundwater policy analyst advising the Tamil Nadu Agriculture Department."

func buildRecommendation(rec district.Record, aux Context) string {
	schemes := make([]string, 0, len(aux.Schemes))
	for _, code := range aux.Schemes {
		if full, ok := policy.SchemeNames[code]; ok {
			schemes = append(schemes, code+": "+full)
		} else {
			schemes = append(schemes, code)
		}
	}
	schemeList := strings.Join(schemes, "; ")
	if schemeList == "" {
		schemeList = placeholder
	}

	currentCrop, ok := rec.String("Rec_Crop_Original")
	if !ok {
		currentCrop = str(rec, "Recommended_Crop")
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, `%s

District: %s
Urgency Tier: Tier %s — %s
Predicted GW depth (1yr): %sm below ground
Predicted GW depth (5yr): %sm below ground
Water table trend: %sm per year
Groundwater dependency: %s%% pump-fed
Recommendation type: %s
Recommended crop: %s
Current dominant crop: %s
Water saving potential: %s%%
Primary model driver (SHAP): %s

Government scheme eligibility: %s

TNAU crop guidance: %s
PMKSY eligibility: %s
Market context: %s
Implementation challenges: %s
`,
		analystPreamble,
		str(rec, "District"),
		num(rec, "Tier", 0),
		str(rec, "Tier_Label"),
		num(rec, "CASA_Pred_1yr", 2),
		num(rec, "CASA_Pred_5yr", 2),
		signed(rec, "GW_Trend_m_per_yr", 2),
		pct(rec, "GW_Dep_Ratio"),
		str(rec, "Recommendation_Type"),
		str(rec, "Recommended_Crop"),
		currentCrop,
		num(rec, "Potential_Water_Saving_pct", 0),
		strOr(rec, "SHAP_Top_Driver_Label", defaultSHAPDriver),
		schemeList,
		aux.Crop.TNAURecommendation,
		aux.Crop.PMKSYNote,
		aux.Crop.MarketNote,
		aux.Crop.Challenges,
	)

	if len(aux.Advisories) > 0 {
		sb.WriteString("\nRecent department circular extracts:\n")
		for _, a := range aux.Advisories {
			fmt.Fprintf(&sb, "- %s\n", a)
		}
	}

	fmt.Fprintf(&sb, `
Write 3-4 sentences explaining WHY this specific recommendation was made for %s.
Reference the actual depth numbers, trend, and GW dependency.
Mention which government schemes support this transition.
Be specific to Tamil Nadu agricultural context — avoid generic advice.
Write in plain English suitable for a district agricultural officer.
No headings, no bullet points, no preamble.`, str(rec, "District"))

	return sb.String()
}

func buildFeasibility(rec district.Record, aux Context) string {
	return fmt.Sprintf(`%s

District: %s
Feasibility score: %s/100 — %s
Recommendation type: %s
Recommended crop: %s
Water saving potential: %s%%
GW dependency: %s%%
Canal dependency: %s%%
GW trend: %sm per year

Crop market context: %s
Crop challenges: %s
Water saving context: %s

Write 3-4 sentences analysing the feasibility score for %s.
Explain specifically what is helping or hurting feasibility — reference the actual score components.
If feasibility is Low or Medium, identify the one main barrier and suggest how it could be addressed.
Be specific to Tamil Nadu agricultural and infrastructure context.
No headings, no bullet points, no preamble.`,
		analystPreamble,
		str(rec, "District"),
		num(rec, "Feasibility_Score", 0),
		str(rec, "Feasibility_Label"),
		str(rec, "Recommendation_Type"),
		str(rec, "Recommended_Crop"),
		num(rec, "Potential_Water_Saving_pct", 0),
		pct(rec, "GW_Dep_Ratio"),
		pct(rec, "Canal_Dep_Ratio"),
		signed(rec, "GW_Trend_m_per_yr", 2),
		aux.Crop.MarketNote,
		aux.Crop.Challenges,
		aux.Crop.WaterSavingNote,
		str(rec, "District"),
	)
}

func buildContingency(rec district.Record) string {
	return fmt.Sprintf(`%s

District: %s
GW depth: %sm
GW dependency: %s%%
Flood risk: %s
Drought risk: %s
NE monsoon actual vs normal: %smm vs %smm normal
SW monsoon actual vs normal: %smm vs %smm normal
Fallback crop: %s

Write 3-4 sentences describing the combined flood and drought risk picture for %s across the full agricultural year.
Explain how the Samba and Kuruvai seasons are each affected.
Reference the actual monsoon numbers.
Mention what the fallback crop option means for farmer income stability.
Be specific to Tamil Nadu cropping calendar context.
No headings, no bullet points, no preamble.`,
		analystPreamble,
		str(rec, "District"),
		num(rec, "CASA_Pred_1yr", 2),
		pct(rec, "GW_Dep_Ratio"),
		str(rec, "Flood_Risk"),
		str(rec, "Drought_Risk"),
		num(rec, "NE_Monsoon_Actual_mm", 0),
		num(rec, "NE_Monsoon_Normal_mm", 0),
		num(rec, "SW_Monsoon_Actual_mm", 0),
		num(rec, "SW_Monsoon_Normal_mm", 0),
		str(rec, "Drought_Fallback_Crop"),
		str(rec, "District"),
	)
}

func buildComparable(rec district.Record, aux Context) string {
	lines := make([]string, 0, len(aux.Comparables))
	for _, c := range aux.Comparables {
		lines = append(lines, fmt.Sprintf("%s: depth %sm, %s%% GW dep, Tier %s, feasibility %s, rec: %s (%s)",
			str(c, "District"),
			num(c, "CASA_Pred_1yr", 2),
			pct(c, "GW_Dep_Ratio"),
			num(c, "Tier", 0),
			num(c, "Feasibility_Score", 0),
			str(c, "Recommended_Crop"),
			str(c, "Recommendation_Type"),
		))
	}
	compText := strings.Join(lines, "\n")
	if compText == "" {
		compText = "No comparable districts found in this depth and dependency range."
	}

	return fmt.Sprintf(`%s

District being analysed: %s
Depth: %sm, GW dep: %s%%, Tier %s, feasibility: %s

Comparable districts facing similar groundwater stress:
%s

Write 3-4 sentences comparing %s to these comparable districts.
Identify whether %s is doing better or worse on feasibility and why.
If a comparable district has a higher feasibility score, explain what %s could learn from it.
Be specific — reference actual numbers from the comparable districts.
No headings, no bullet points, no preamble.`,
		analystPreamble,
		str(rec, "District"),
		num(rec, "CASA_Pred_1yr", 2),
		pct(rec, "GW_Dep_Ratio"),
		num(rec, "Tier", 0),
		num(rec, "Feasibility_Score", 0),
		compText,
		str(rec, "District"),
		str(rec, "District"),
		str(rec, "District"),
	)
}

// str renders a string field or the placeholder.
func str(rec district.Record, key string) string {
	if s, ok := rec.String(key); ok {
		return s
	}
	return placeholder
}

// strOr renders a string field or the given default.
func strOr(rec district.Record, key, def string) string {
	if s, ok := rec.String(key); ok {
		return s
	}
	return def
}

// num renders a numeric field at fixed decimal precision, or the
// placeholder when the field is absent or non-numeric.
func num(rec district.Record, key string, prec int) string {
	f, ok := rec.Float(key)
	if !ok {
		return placeholder
	}
	return fmt.Sprintf("%.*f", prec, f)
}

// signed renders like num but with an explicit leading + for positives,
// matching the dashboard's trend display.
func signed(rec district.Record, key string, prec int) string {
	f, ok := rec.Float(key)
	if !ok {
		return placeholder
	}
	if f > 0 {
		return fmt.Sprintf("+%.*f", prec, f)
	}
	return fmt.Sprintf("%.*f", prec, f)
}

// pct renders a 0..1 ratio field as a rounded whole percentage. Absent
// ratios render as 0, matching the dashboard's `|| 0` handling.
func pct(rec district.Record, key string) string {
	f, _ := rec.Float(key)
	return fmt.Sprintf("%.0f", math.Round(f*100))
}
