package signal

import (
	"reflect"
	"testing"
)

func findUpdate(updates []Update, name Name) (Update, bool) {
	for _, u := range updates {
		if u.Signal == name {
			return u, true
		}
	}
	return Update{}, false
}

func TestExtractTeamSize(t *testing.T) {
	t.Parallel()

	cases := []struct {
		utterance string
		want      int
		conf      Confidence
	}{
		{"we have 12 sales reps", 12, ConfidenceStated},
		{"There are five people on my team", 5, ConfidenceStated},
		{"a team of 8", 8, ConfidenceStated},
		{"we're a 3-person shop", 3, ConfidenceStated},
		{"it's just me", 1, ConfidenceStated},
		{"about 10 people use it", 10, ConfidenceVague},
		{"a handful of users", 5, ConfidenceVague},
		{"exactly 7 seats", 7, ConfidenceExact},
		{"twenty five reps", 25, ConfidenceStated},
		{"we have 1,200 employees", 1200, ConfidenceStated},
		{"a team of forty-two", 42, ConfidenceStated},
	}

	for _, tc := range cases {
		updates := Extract(tc.utterance, Set{})
		got, ok := findUpdate(updates, TeamSize)
		if !ok {
			t.Fatalf("Extract(%q) missing team_size, got %+v", tc.utterance, updates)
		}
		if got.Number != tc.want || got.Confidence != tc.conf {
			t.Fatalf("Extract(%q) team_size = %d@%v, want %d@%v", tc.utterance, got.Number, got.Confidence, tc.want, tc.conf)
		}
	}
}

func TestExtractVolumeNormalisesPeriod(t *testing.T) {
	t.Parallel()

	cases := []struct {
		utterance string
		want      int
	}{
		{"we send about 150 proposals a month", 150},
		{"maybe 30 contracts per week", 120},
		{"10 documents a day", 200},
		{"1200 agreements a year", 100},
		{"a couple documents a month", 2},
		{"hundreds of contracts monthly", 200},
		{"two hundred contracts a month", 200},
		{"1,500 contracts a month", 1500},
		{"three hundred proposals a month", 300},
		{"three thousand documents a month", 3000},
		{"we send two hundred and fifty agreements a month", 250},
		{"a hundred contracts per week", 400},
	}

	for _, tc := range cases {
		got, ok := findUpdate(Extract(tc.utterance, Set{}), MonthlyVolume)
		if !ok {
			t.Fatalf("Extract(%q) missing monthly_volume", tc.utterance)
		}
		if got.Number != tc.want {
			t.Fatalf("Extract(%q) monthly_volume = %d, want %d", tc.utterance, got.Number, tc.want)
		}
	}
}

func TestExtractIgnoresImplausibleCounts(t *testing.T) {
	t.Parallel()

	for _, utterance := range []string{
		"999999999999999999 documents a day",
		"99999999999 people on the team",
	} {
		updates := Extract(utterance, Set{})
		for _, u := range updates {
			if u.Signal == MonthlyVolume || u.Signal == TeamSize {
				t.Fatalf("Extract(%q) = %+v, want no count", utterance, u)
			}
		}
	}
}

func TestParseNumber(t *testing.T) {
	t.Parallel()

	cases := []struct {
		raw  string
		want int
		ok   bool
	}{
		{"12", 12, true},
		{"1,500", 1500, true},
		{"twenty five", 25, true},
		{"forty-two", 42, true},
		{"two hundred", 200, true},
		{"a hundred", 100, true},
		{"two hundred and fifty", 250, true},
		{"three thousand", 3000, true},
		{"twelve thousand five hundred", 12500, true},
		{"10000001", 0, false},
		{"lots", 0, false},
		{"", 0, false},
	}

	for _, tc := range cases {
		got, ok := parseNumber(tc.raw)
		if ok != tc.ok || got != tc.want {
			t.Fatalf("parseNumber(%q) = %d, %v, want %d, %v", tc.raw, got, ok, tc.want, tc.ok)
		}
	}
}

func TestExtractPrefersSpecificOverVague(t *testing.T) {
	t.Parallel()

	updates := Extract("about 10 people, well exactly 12 people", Set{})
	got, ok := findUpdate(updates, TeamSize)
	if !ok {
		t.Fatal("expected team_size update")
	}
	if got.Number != 12 || got.Confidence != ConfidenceExact {
		t.Fatalf("team_size = %d@%v, want 12@exact", got.Number, got.Confidence)
	}

	count := 0
	for _, u := range updates {
		if u.Signal == TeamSize {
			count++
		}
	}
	if count != 1 {
		t.Fatalf("expected one team_size update, got %d", count)
	}
}

func TestExtractEqualConfidenceTakesFirstOccurrence(t *testing.T) {
	t.Parallel()

	got, ok := findUpdate(Extract("20 users today and 40 users next year", Set{}), TeamSize)
	if !ok {
		t.Fatal("expected team_size update")
	}
	if got.Number != 20 {
		t.Fatalf("team_size = %d, want 20", got.Number)
	}
}

func TestExtractKeywordFamilies(t *testing.T) {
	t.Parallel()

	updates := Extract("We're a law firm, need Salesforce and an API, chasing signatures manually, need it ASAP", Set{})

	industry, ok := findUpdate(updates, Industry)
	if !ok || industry.Text != "legal" {
		t.Fatalf("industry = %+v, want legal", industry)
	}
	urgency, ok := findUpdate(updates, Urgency)
	if !ok || urgency.Urgency != UrgencyHigh {
		t.Fatalf("urgency = %+v, want high", urgency)
	}

	var integrations, pains []string
	for _, u := range updates {
		switch u.Signal {
		case IntegrationNeeds:
			integrations = append(integrations, u.Text)
		case PainPoints:
			pains = append(pains, u.Text)
		}
	}
	if !reflect.DeepEqual(integrations, []string{"salesforce", "api"}) {
		t.Fatalf("integrations = %v", integrations)
	}
	if !reflect.DeepEqual(pains, []string{"manual follow-up", "manual process"}) {
		t.Fatalf("pain points = %v", pains)
	}
}

func TestExtractWordBoundaries(t *testing.T) {
	t.Parallel()

	// "rapid" contains "api", "crmble" is not "crm"
	updates := Extract("rapid growth, crmble", Set{})
	if _, ok := findUpdate(updates, IntegrationNeeds); ok {
		t.Fatalf("unexpected integration in %+v", updates)
	}
}

func TestExtractSkipsKnownIntegrations(t *testing.T) {
	t.Parallel()

	current := Set{IntegrationNeeds: []string{"hubspot"}, PainPoints: []string{"errors"}}
	updates := Extract("hubspot sync causes errors and zapier breaks", current)

	for _, u := range updates {
		if u.Text == "hubspot" {
			t.Fatalf("known integration re-proposed: %+v", u)
		}
	}
	if u, ok := findUpdate(updates, PainPoints); !ok || u.Text != "errors" {
		t.Fatalf("repeated pain point not proposed, got %+v", updates)
	}
	if u, ok := findUpdate(updates, IntegrationNeeds); !ok || u.Text != "zapier" {
		t.Fatalf("expected zapier, got %+v", updates)
	}
}

func TestExtractDoesNotMutateInput(t *testing.T) {
	t.Parallel()

	current := Set{
		TeamSize:         &Measure{Value: 4, Confidence: ConfidenceStated},
		IntegrationNeeds: []string{"api"},
		PainPoints:       []string{"errors"},
	}
	before := current.Clone()

	_ = Extract("we have 40 people using salesforce with slow approvals", current)

	if !reflect.DeepEqual(current, before) {
		t.Fatalf("input mutated: %+v", current)
	}
}

func TestExtractNoMatch(t *testing.T) {
	t.Parallel()

	for _, utterance := range []string{"", "   ", "hello there", "sounds good"} {
		if got := Extract(utterance, Set{}); len(got) != 0 {
			t.Fatalf("Extract(%q) = %+v, want none", utterance, got)
		}
	}
}

func TestExtractUnqualifiedScenario(t *testing.T) {
	t.Parallel()

	updates := Extract("it's just me, a couple documents a month", Set{})
	team, ok := findUpdate(updates, TeamSize)
	if !ok || team.Number != 1 {
		t.Fatalf("team_size = %+v, want 1", team)
	}
	volume, ok := findUpdate(updates, MonthlyVolume)
	if !ok || volume.Number != 2 {
		t.Fatalf("monthly_volume = %+v, want 2", volume)
	}
}
