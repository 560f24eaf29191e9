package signal

import (
	"regexp"
	"sort"
	"strconv"
	"strings"
)

// rule is one row of the extraction table. A row either captures a number
// (named group "num"), carries a fixed number, or carries a fixed text value.
// Optional named groups: "qual" adjusts confidence, "period" normalises a
// volume to a monthly figure.
type rule struct {
	signal     Name
	pattern    *regexp.Regexp
	confidence Confidence
	number     int
	text       string
	urgency    UrgencyLevel
}

const (
	wordNumber  = `zero|one|two|three|four|five|six|seven|eight|nine|ten|eleven|twelve|thirteen|fourteen|fifteen|sixteen|seventeen|eighteen|nineteen|twenty|thirty|forty|fifty|sixty|seventy|eighty|ninety|hundred|thousand`
	numberWords = `\d{1,3}(?:,\d{3})+|\d+|(?:a\s+(?:hundred|thousand)|(?:` + wordNumber + `))\b(?:(?:\s+and\s+|[\s-]+)(?:` + wordNumber + `)\b)*`
	adjective   = `(?:(?P<adj>[a-z]+)\s+)?`
	qualifiers  = `about|around|roughly|approximately|maybe|probably|like|nearly|almost|over|under|close to|more than|less than|exactly|precisely|only`
	teamNouns   = `people|persons|users|seats|employees|members|reps|representatives|agents|salespeople|staff|colleagues|teammates|folks|licenses|licences|coworkers`
	volumeNouns = `documents?|docs|contracts?|proposals?|quotes?|agreements?|ndas?|invoices?|forms?|envelopes?|signatures?|deals?|files?|offers?`
	periods     = `months?|weeks?|days?|years?|quarters?|monthly|weekly|daily|yearly|annually|quarterly`
	perPeriod   = `\s+(?:(?:per|a|an|every|each)\s+)?(?P<period>` + periods + `)\b`

	// maxQuantity bounds any parsed count; larger values are not a plausible
	// team or monthly volume.
	maxQuantity = 10_000_000
)

var wordValues = map[string]int{
	"zero": 0, "one": 1, "two": 2, "three": 3, "four": 4, "five": 5, "six": 6,
	"seven": 7, "eight": 8, "nine": 9, "ten": 10, "eleven": 11, "twelve": 12,
	"thirteen": 13, "fourteen": 14, "fifteen": 15, "sixteen": 16, "seventeen": 17,
	"eighteen": 18, "nineteen": 19, "twenty": 20, "thirty": 30, "forty": 40,
	"fifty": 50, "sixty": 60, "seventy": 70, "eighty": 80, "ninety": 90,
}

var vagueQualifiers = map[string]struct{}{
	"about": {}, "around": {}, "roughly": {}, "approximately": {}, "maybe": {},
	"probably": {}, "like": {}, "nearly": {}, "almost": {}, "over": {},
	"under": {}, "close to": {}, "more than": {}, "less than": {},
}

var exactQualifiers = map[string]struct{}{
	"exactly": {}, "precisely": {}, "only": {},
}

func re(expr string) *regexp.Regexp {
	return regexp.MustCompile(expr)
}

func numberRule(signal Name, expr string) rule {
	return rule{signal: signal, pattern: re(expr), confidence: ConfidenceStated}
}

func fixedRule(signal Name, expr string, n int, conf Confidence) rule {
	return rule{signal: signal, pattern: re(expr), confidence: conf, number: n}
}

func textRule(signal Name, expr, value string) rule {
	return rule{signal: signal, pattern: re(expr), confidence: ConfidenceStated, text: value}
}

func urgencyRule(expr string, level UrgencyLevel) rule {
	return rule{signal: Urgency, pattern: re(expr), confidence: ConfidenceStated, urgency: level}
}

var rules = []rule{
	// team size
	numberRule(TeamSize, `\b(?:(?P<qual>`+qualifiers+`)\s+)?(?P<num>`+numberWords+`)\s+`+adjective+`(?:`+teamNouns+`)\b`),
	numberRule(TeamSize, `\bteam\s+of\s+(?:(?P<qual>`+qualifiers+`)\s+)?(?P<num>`+numberWords+`)\b`),
	numberRule(TeamSize, `\b(?P<num>`+numberWords+`)[\s-]+(?:person|people|member|man)\s+(?:team|company|shop|business|firm)\b`),
	fixedRule(TeamSize, `\b(?:just|only)\s+(?:me|myself)\b|\bby myself\b|\bsolo\b`, 1, ConfidenceStated),
	fixedRule(TeamSize, `\ba\s+couple\s+(?:of\s+)?(?:[a-z]+\s+)?(?:`+teamNouns+`)\b`, 2, ConfidenceVague),
	fixedRule(TeamSize, `\ba\s+few\s+(?:[a-z]+\s+)?(?:`+teamNouns+`)\b`, 3, ConfidenceVague),
	fixedRule(TeamSize, `\ba\s+handful\s+of\s+(?:[a-z]+\s+)?(?:`+teamNouns+`)\b`, 5, ConfidenceVague),
	fixedRule(TeamSize, `\ba\s+dozen\s+(?:[a-z]+\s+)?(?:`+teamNouns+`)\b`, 12, ConfidenceVague),
	fixedRule(TeamSize, `\bdozens\s+of\s+(?:[a-z]+\s+)?(?:`+teamNouns+`)\b`, 24, ConfidenceVague),
	fixedRule(TeamSize, `\bhundreds\s+of\s+(?:[a-z]+\s+)?(?:`+teamNouns+`)\b`, 200, ConfidenceVague),

	// monthly volume
	numberRule(MonthlyVolume, `\b(?:(?P<qual>`+qualifiers+`)\s+)?(?P<num>`+numberWords+`)\s+`+adjective+`(?:`+volumeNouns+`)`+perPeriod),
	numberRule(MonthlyVolume, `\b(?:send|sends|sending|create|process|generate|sign|handle|do)\s+(?:(?P<qual>`+qualifiers+`)\s+)?(?P<num>`+numberWords+`)\s+`+adjective+`(?:`+volumeNouns+`)\b(?:`+perPeriod+`)?`),
	fixedRule(MonthlyVolume, `\ba\s+couple\s+(?:of\s+)?(?:[a-z]+\s+)?(?:`+volumeNouns+`)\b(?:`+perPeriod+`)?`, 2, ConfidenceVague),
	fixedRule(MonthlyVolume, `\ba\s+few\s+(?:[a-z]+\s+)?(?:`+volumeNouns+`)\b(?:`+perPeriod+`)?`, 3, ConfidenceVague),
	fixedRule(MonthlyVolume, `\ba\s+handful\s+of\s+(?:[a-z]+\s+)?(?:`+volumeNouns+`)\b(?:`+perPeriod+`)?`, 5, ConfidenceVague),
	fixedRule(MonthlyVolume, `\bdozens\s+of\s+(?:[a-z]+\s+)?(?:`+volumeNouns+`)\b(?:`+perPeriod+`)?`, 24, ConfidenceVague),
	fixedRule(MonthlyVolume, `\bhundreds\s+of\s+(?:[a-z]+\s+)?(?:`+volumeNouns+`)\b(?:`+perPeriod+`)?`, 200, ConfidenceVague),
	fixedRule(MonthlyVolume, `\bthousands\s+of\s+(?:[a-z]+\s+)?(?:`+volumeNouns+`)\b(?:`+perPeriod+`)?`, 2000, ConfidenceVague),

	// integrations
	textRule(IntegrationNeeds, `\bsalesforce\b`, "salesforce"),
	textRule(IntegrationNeeds, `\bhub\s?spot\b`, "hubspot"),
	textRule(IntegrationNeeds, `\bzapier\b`, "zapier"),
	textRule(IntegrationNeeds, `\bapis?\b`, "api"),
	textRule(IntegrationNeeds, `\bcrm\b`, "crm"),
	textRule(IntegrationNeeds, `\bembedded\b|\bembed\b`, "embedded"),
	textRule(IntegrationNeeds, `\bwebhooks?\b`, "webhook"),
	textRule(IntegrationNeeds, `\bpipedrive\b`, "pipedrive"),
	textRule(IntegrationNeeds, `\bquickbooks\b`, "quickbooks"),
	textRule(IntegrationNeeds, `\bslack\b`, "slack"),
	textRule(IntegrationNeeds, `\bgoogle\s+drive\b`, "google drive"),

	// urgency
	urgencyRule(`\b(?:urgent(?:ly)?|asap|immediately|right away|this week|today|tomorrow|deadline)\b`, UrgencyHigh),
	urgencyRule(`\b(?:soon|this month|next week|next month|in a few weeks)\b`, UrgencyNormal),
	urgencyRule(`\b(?:eventually|sometime|someday|no rush|down the road|in the future|just exploring|just looking)\b`, UrgencyNone),

	// industry
	textRule(Industry, `\b(?:healthcare|health care|hospitals?|clinics?|medical|dental|pharma(?:ceutical)?)\b`, "healthcare"),
	textRule(Industry, `\b(?:legal|law firm|lawyers?|attorneys?|paralegals?)\b`, "legal"),
	textRule(Industry, `\b(?:real estate|realtors?|brokerage|property management)\b`, "real estate"),
	textRule(Industry, `\b(?:finance|financial|banks?|banking|insurance|accounting|fintech)\b`, "finance"),
	textRule(Industry, `\b(?:human resources|recruiting|recruitment|staffing)\b`, "hr"),
	textRule(Industry, `\b(?:education|schools?|university|universities|college)\b`, "education"),
	textRule(Industry, `\b(?:construction|contractors?)\b`, "construction"),
	textRule(Industry, `\b(?:saas|software)\b`, "software"),

	// pain points
	textRule(PainPoints, `\b(?:manual(?:ly)?|by hand|copy[- ]paste|copy and paste)\b`, "manual process"),
	textRule(PainPoints, `\b(?:slow|takes forever|takes too long|delays?|bottlenecks?)\b`, "slow turnaround"),
	textRule(PainPoints, `\b(?:no visibility|can'?t track|lose track|losing track)\b`, "no tracking"),
	textRule(PainPoints, `\b(?:follow[- ]?ups?|chasing|chase)\b`, "manual follow-up"),
	textRule(PainPoints, `\b(?:errors?|mistakes?|typos?)\b`, "errors"),
	textRule(PainPoints, `\bapprovals?\b`, "approval delays"),
	textRule(PainPoints, `\b(?:lost deals?|losing deals?)\b`, "lost deals"),
	textRule(PainPoints, `\b(?:paper(?:work)?|printing|scanning|fax(?:ing)?)\b`, "paperwork"),
}

type match struct {
	update Update
	order  int
}

// Extract proposes signal updates for one utterance. It never fails and never
// mutates current; an utterance with no recognised pattern yields nil.
//
// Numeric signals yield at most one update per utterance: the most specific
// match wins, and among equally specific matches the earliest one does.
// Integrations yield one update per newly mentioned item. Pain points yield
// one update per item mentioned in the utterance, even if heard before.
func Extract(utterance string, current Set) []Update {
	text := strings.ToLower(strings.TrimSpace(utterance))
	if text == "" {
		return nil
	}

	best := map[Name]match{}
	var items []match
	seen := map[string]struct{}{}
	order := 0

	for _, r := range rules {
		names := r.pattern.SubexpNames()
		for _, loc := range r.pattern.FindAllStringSubmatchIndex(text, -1) {
			order++
			groups := captures(text, names, loc)
			u := Update{Signal: r.signal, Confidence: r.confidence, Offset: loc[0]}

			switch r.signal {
			case TeamSize, MonthlyVolume:
				n, conf, ok := evalNumber(r, groups)
				if !ok {
					continue
				}
				u.Number, u.Confidence = n, conf
				m := match{update: u, order: order}
				if prev, exists := best[r.signal]; !exists || beats(m.update, prev.update) {
					best[r.signal] = m
				}
			case Urgency:
				u.Urgency = r.urgency
				m := match{update: u, order: order}
				if prev, exists := best[Urgency]; !exists || u.Urgency.Rank() > prev.update.Urgency.Rank() {
					best[Urgency] = m
				}
			case Industry:
				u.Text = r.text
				if prev, exists := best[Industry]; !exists || u.Offset < prev.update.Offset {
					best[Industry] = match{update: u, order: order}
				}
			case IntegrationNeeds, PainPoints:
				key := string(r.signal) + "|" + r.text
				if _, dup := seen[key]; dup {
					continue
				}
				if r.signal == IntegrationNeeds && current.HasIntegration(r.text) {
					continue
				}
				seen[key] = struct{}{}
				u.Text = r.text
				items = append(items, match{update: u, order: order})
			}
		}
	}

	out := make([]match, 0, len(best)+len(items))
	for _, m := range best {
		out = append(out, m)
	}
	out = append(out, items...)
	if len(out) == 0 {
		return nil
	}

	sort.SliceStable(out, func(i, j int) bool {
		if out[i].update.Offset != out[j].update.Offset {
			return out[i].update.Offset < out[j].update.Offset
		}
		return out[i].order < out[j].order
	})

	updates := make([]Update, len(out))
	for i, m := range out {
		updates[i] = m.update
	}
	return updates
}

// beats reports whether candidate should replace incumbent for a numeric
// signal: higher confidence wins, then earlier position in the utterance.
func beats(candidate, incumbent Update) bool {
	if candidate.Confidence != incumbent.Confidence {
		return candidate.Confidence > incumbent.Confidence
	}
	return candidate.Offset < incumbent.Offset
}


func captures(text string, names []string, loc []int) map[string]string {
	groups := make(map[string]string, len(names))
	for i, name := range names {
		if name == "" || loc[2*i] < 0 {
			continue
		}
		groups[name] = text[loc[2*i]:loc[2*i+1]]
	}
	return groups
}

func evalNumber(r rule, groups map[string]string) (int, Confidence, bool) {
	n := r.number
	conf := r.confidence

	if adj, ok := groups["adj"]; ok && isNumberWord(adj) {
		return 0, 0, false
	}
	if raw, ok := groups["num"]; ok {
		v, ok := parseNumber(raw)
		if !ok {
			return 0, 0, false
		}
		n = v
	}

	if q, ok := groups["qual"]; ok {
		if _, vague := vagueQualifiers[q]; vague {
			conf = ConfidenceVague
		} else if _, exact := exactQualifiers[q]; exact {
			conf = ConfidenceExact
		}
	}

	if r.signal == MonthlyVolume {
		if p, ok := groups["period"]; ok {
			n = perMonth(n, p)
		} else if r.number == 0 && conf > ConfidenceVague {
			// a count with no period is assumed monthly but is less specific
			conf = ConfidenceVague
		}
	}

	return n, conf, true
}

// parseNumber reads digits ("150", "1,500") or a spoken number ("twenty
// five", "two hundred and fifty", "a thousand") as one value.
func parseNumber(raw string) (int, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0, false
	}
	if raw[0] >= '0' && raw[0] <= '9' {
		v, err := strconv.Atoi(strings.ReplaceAll(raw, ",", ""))
		if err != nil || v < 0 || v > maxQuantity {
			return 0, false
		}
		return v, true
	}

	total, current := 0, 0
	for i, tok := range strings.Fields(strings.ReplaceAll(raw, "-", " ")) {
		switch tok {
		case "and":
			continue
		case "a":
			if i != 0 {
				return 0, false
			}
			current = 1
		case "hundred":
			current = max(current, 1) * 100
		case "thousand":
			total += max(current, 1) * 1000
			current = 0
		default:
			v, ok := wordValues[tok]
			if !ok {
				return 0, false
			}
			current += v
		}
		if total+current > maxQuantity {
			return 0, false
		}
	}
	return total + current, true
}

func isNumberWord(w string) bool {
	if _, ok := wordValues[w]; ok {
		return true
	}
	return w == "hundred" || w == "thousand" || w == "and"
}

// perMonth converts n per period to a monthly figure. n is at most
// maxQuantity, so the product stays well inside int.
func perMonth(n int, period string) int {
	switch strings.TrimSuffix(period, "s") {
	case "week", "weekly":
		return n * 4
	case "day", "daily":
		return n * 20
	case "year", "yearly", "annually":
		return (n + 6) / 12
	case "quarter", "quarterly":
		return (n + 1) / 3
	default:
		return n
	}
}
