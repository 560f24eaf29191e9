package qualify

import (
	"errors"
	"fmt"
	"slices"
	"strings"

	signalx "github.com/tanpawarit/Chative-Voice-Qualification/agent/signal"
)

var ErrInvalidConfig = errors.New("invalid qualification config")

type Tier string

const (
	TierSalesReady Tier = "SALES_READY"
	TierNurture    Tier = "NURTURE"
	TierSelfServe  Tier = "SELF_SERVE"
)

// Config holds every threshold the tier function reads. It is loaded from
// QUALIFICATION_* environment variables.
type Config struct {
	SalesReadyTeamSize      int      `split_words:"true" default:"5"`
	SalesReadyVolume        int      `split_words:"true" default:"100"`
	UrgentTeamSize          int      `split_words:"true" default:"3"`
	ComplexIndustryTeamSize int      `split_words:"true" default:"3"`
	EnterpriseIntegrations  []string `split_words:"true" default:"salesforce,hubspot,crm,api,embedded"`
	ComplexIndustries       []string `split_words:"true" default:"healthcare,finance,legal"`

	// Below these floors a numeric signal alone does not lift a caller out of
	// SELF_SERVE ("just me", "a couple documents a month").
	NurtureTeamSize int `split_words:"true" default:"2"`
	NurtureVolume   int `split_words:"true" default:"10"`
}

func DefaultConfig() Config {
	return Config{
		SalesReadyTeamSize:      5,
		SalesReadyVolume:        100,
		UrgentTeamSize:          3,
		ComplexIndustryTeamSize: 3,
		EnterpriseIntegrations:  []string{"salesforce", "hubspot", "crm", "api", "embedded"},
		ComplexIndustries:       []string{"healthcare", "finance", "legal"},
		NurtureTeamSize:         2,
		NurtureVolume:           10,
	}
}

// Assessment is a tier together with the rules that produced it.
type Assessment struct {
	Tier    Tier     `json:"tier"`
	Reasons []string `json:"reasons,omitempty"`
}

// Engine evaluates the tier function. It holds no mutable state and is safe
// for concurrent use.
type Engine struct {
	cfg        Config
	enterprise map[string]struct{}
	complex    map[string]struct{}
}

func NewEngine(cfg Config) (*Engine, error) {
	if cfg.SalesReadyTeamSize <= 0 || cfg.SalesReadyVolume <= 0 {
		return nil, fmt.Errorf("%w: sales-ready thresholds must be positive", ErrInvalidConfig)
	}
	if cfg.UrgentTeamSize < 0 || cfg.ComplexIndustryTeamSize < 0 {
		return nil, fmt.Errorf("%w: team thresholds must not be negative", ErrInvalidConfig)
	}
	if cfg.NurtureTeamSize < 0 || cfg.NurtureVolume < 0 {
		return nil, fmt.Errorf("%w: nurture floors must not be negative", ErrInvalidConfig)
	}

	return &Engine{
		cfg:        cfg,
		enterprise: toSet(cfg.EnterpriseIntegrations),
		complex:    toSet(cfg.ComplexIndustries),
	}, nil
}

func toSet(values []string) map[string]struct{} {
	out := make(map[string]struct{}, len(values))
	for _, v := range values {
		v = strings.ToLower(strings.TrimSpace(v))
		if v != "" {
			out[v] = struct{}{}
		}
	}
	return out
}

func (e *Engine) Tier(s signalx.Set) Tier {
	return e.Assess(s).Tier
}

func (e *Engine) Assess(s signalx.Set) Assessment {
	cfg := e.cfg
	team := s.TeamSizeValue()
	volume := s.MonthlyVolumeValue()

	var reasons []string
	if s.TeamSize != nil && team >= cfg.SalesReadyTeamSize {
		reasons = append(reasons, fmt.Sprintf("team_size>=%d", cfg.SalesReadyTeamSize))
	}
	if s.MonthlyVolume != nil && volume >= cfg.SalesReadyVolume {
		reasons = append(reasons, fmt.Sprintf("monthly_volume>=%d", cfg.SalesReadyVolume))
	}
	for _, integration := range s.IntegrationNeeds {
		if _, ok := e.enterprise[integration]; ok {
			reasons = append(reasons, "enterprise_integration:"+integration)
		}
	}
	if s.Urgency == signalx.UrgencyHigh && s.TeamSize != nil && team >= cfg.UrgentTeamSize {
		reasons = append(reasons, fmt.Sprintf("urgency_high+team_size>=%d", cfg.UrgentTeamSize))
	}
	if _, ok := e.complex[s.Industry]; ok && s.TeamSize != nil && team >= cfg.ComplexIndustryTeamSize {
		reasons = append(reasons, fmt.Sprintf("complex_industry:%s+team_size>=%d", s.Industry, cfg.ComplexIndustryTeamSize))
	}
	if len(reasons) > 0 {
		return Assessment{Tier: TierSalesReady, Reasons: reasons}
	}

	if s.TeamSize != nil && team >= cfg.NurtureTeamSize {
		reasons = append(reasons, "team_size")
	}
	if s.MonthlyVolume != nil && volume >= cfg.NurtureVolume {
		reasons = append(reasons, "monthly_volume")
	}
	if len(s.IntegrationNeeds) > 0 {
		reasons = append(reasons, "integration_needs")
	}
	if s.Urgency.Rank() >= signalx.UrgencyNormal.Rank() {
		reasons = append(reasons, "urgency")
	}
	if s.Industry != "" {
		reasons = append(reasons, "industry")
	}
	if len(s.PainPoints) > 0 {
		reasons = append(reasons, "pain_points")
	}
	if len(reasons) > 0 {
		return Assessment{Tier: TierNurture, Reasons: reasons}
	}

	return Assessment{Tier: TierSelfServe}
}

// Merge folds one turn's updates into the accumulated set and returns a new
// set; current is left untouched. Numeric signals accept an update whose
// confidence is at least the stored one. Integrations union and stay sorted.
// Urgency only moves up. Industry is last-write-wins. Pain points are
// append-only: every mention is kept in the order it was heard.
func Merge(current signalx.Set, updates []signalx.Update) signalx.Set {
	out := current.Clone()

	for _, u := range updates {
		switch u.Signal {
		case signalx.TeamSize:
			out.TeamSize = mergeMeasure(out.TeamSize, u)
		case signalx.MonthlyVolume:
			out.MonthlyVolume = mergeMeasure(out.MonthlyVolume, u)
		case signalx.IntegrationNeeds:
			if u.Text == "" {
				continue
			}
			if i, found := slices.BinarySearch(out.IntegrationNeeds, u.Text); !found {
				out.IntegrationNeeds = slices.Insert(out.IntegrationNeeds, i, u.Text)
			}
		case signalx.Urgency:
			if u.Urgency.Rank() > out.Urgency.Rank() {
				out.Urgency = u.Urgency
			}
		case signalx.Industry:
			if u.Text != "" {
				out.Industry = u.Text
			}
		case signalx.PainPoints:
			if u.Text != "" {
				out.PainPoints = append(out.PainPoints, u.Text)
			}
		}
	}

	return out
}

func mergeMeasure(cur *signalx.Measure, u signalx.Update) *signalx.Measure {
	if u.Number < 0 {
		return cur
	}
	if cur != nil && u.Confidence < cur.Confidence {
		return cur
	}
	return &signalx.Measure{Value: u.Number, Confidence: u.Confidence}
}
