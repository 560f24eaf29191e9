package signal

import (
	"slices"
)

// Name identifies a qualification signal.
type Name string

const (
	TeamSize         Name = "team_size"
	MonthlyVolume    Name = "monthly_volume"
	IntegrationNeeds Name = "integration_needs"
	Urgency          Name = "urgency"
	Industry         Name = "industry"
	PainPoints       Name = "pain_points"
)

// Confidence ranks how specific an extraction was. Higher wins on merge.
type Confidence float64

const (
	ConfidenceVague  Confidence = 0.5 // "about 10", "a few", "dozens of"
	ConfidenceStated Confidence = 0.8 // "12 people"
	ConfidenceExact  Confidence = 1.0 // "exactly 12 people"
)

// UrgencyLevel is ordinal: none < normal < high.
type UrgencyLevel string

const (
	UrgencyUnset  UrgencyLevel = ""
	UrgencyNone   UrgencyLevel = "none"
	UrgencyNormal UrgencyLevel = "normal"
	UrgencyHigh   UrgencyLevel = "high"
)

func (u UrgencyLevel) Rank() int {
	switch u {
	case UrgencyNone:
		return 1
	case UrgencyNormal:
		return 2
	case UrgencyHigh:
		return 3
	default:
		return 0
	}
}

// Measure is a numeric signal with the confidence it was extracted at.
type Measure struct {
	Value      int        `json:"value"`
	Confidence Confidence `json:"confidence"`
}

// Set is the signal state accumulated over a whole conversation.
// IntegrationNeeds is kept sorted so two equal sets serialize identically.
type Set struct {
	TeamSize         *Measure     `json:"team_size,omitempty"`
	MonthlyVolume    *Measure     `json:"monthly_volume,omitempty"`
	IntegrationNeeds []string     `json:"integration_needs,omitempty"`
	Urgency          UrgencyLevel `json:"urgency,omitempty"`
	Industry         string       `json:"industry,omitempty"`
	PainPoints       []string     `json:"pain_points,omitempty"`
}

// Update is one proposed change produced by the extractor.
type Update struct {
	Signal     Name         `json:"signal"`
	Number     int          `json:"number,omitempty"`
	Text       string       `json:"text,omitempty"`
	Urgency    UrgencyLevel `json:"urgency,omitempty"`
	Confidence Confidence   `json:"confidence"`
	// Offset is the byte position of the match in the utterance.
	Offset int `json:"offset"`
}

func (s Set) Empty() bool {
	return s.TeamSize == nil &&
		s.MonthlyVolume == nil &&
		len(s.IntegrationNeeds) == 0 &&
		s.Urgency == UrgencyUnset &&
		s.Industry == "" &&
		len(s.PainPoints) == 0
}

func (s Set) TeamSizeValue() int {
	if s.TeamSize == nil {
		return 0
	}
	return s.TeamSize.Value
}

func (s Set) MonthlyVolumeValue() int {
	if s.MonthlyVolume == nil {
		return 0
	}
	return s.MonthlyVolume.Value
}

func (s Set) HasIntegration(name string) bool {
	_, found := slices.BinarySearch(s.IntegrationNeeds, name)
	return found
}

// Clone returns a deep copy that shares no memory with s.
func (s Set) Clone() Set {
	out := Set{
		Urgency:  s.Urgency,
		Industry: s.Industry,
	}
	if s.TeamSize != nil {
		m := *s.TeamSize
		out.TeamSize = &m
	}
	if s.MonthlyVolume != nil {
		m := *s.MonthlyVolume
		out.MonthlyVolume = &m
	}
	if len(s.IntegrationNeeds) > 0 {
		out.IntegrationNeeds = slices.Clone(s.IntegrationNeeds)
	}
	if len(s.PainPoints) > 0 {
		out.PainPoints = slices.Clone(s.PainPoints)
	}
	return out
}
