package prompt

import (
	"errors"
	"fmt"
)

// Section identifies one part of a multi-section policy dossier.
type Section string

const (
	SectionRecommendation Section = "recommendation"
	SectionFeasibility    Section = "feasibility"
	SectionContingency    Section = "contingency"
	SectionComparable     Section = "comparable"
)

// DossierSections is the fixed generation order for a full dossier.
var DossierSections = []Section{
	SectionRecommendation,
	SectionFeasibility,
	SectionContingency,
	SectionComparable,
}

// ErrUnknownSection is returned for a section id outside the closed set.
// It indicates a programming error at the call site, not bad user input.
var ErrUnknownSection = errors.New("unknown section")

// ParseSection validates a section id from external input.
func ParseSection(s string) (Section, error) {
	switch Section(s) {
	case SectionRecommendation, SectionFeasibility, SectionContingency, SectionComparable:
		return Section(s), nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownSection, s)
}

// Label returns the progress line shown while the section generates.
func (s Section) Label() string {
	switch s {
	case SectionRecommendation:
		return "Analysing recommendation rationale..."
	case SectionFeasibility:
		return "Evaluating feasibility factors..."
	case SectionContingency:
		return "Assessing contingency risk..."
	case SectionComparable:
		return "Comparing with similar districts..."
	}
	return string(s)
}
