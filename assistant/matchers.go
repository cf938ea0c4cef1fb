package assistant

import (
	"math"
	"regexp"
	"strconv"
	"strings"
	"unicode"

	"github.com/ariebrainware/realty-leads/util"
)

type matcher func(input string, data *ChatUserData) bool

var matchers = map[Step]matcher{
	StepGreeting: matchPreference,
	StepLocation: matchLocation,
	StepBudget:   matchBudget,
	StepBedrooms: matchBedrooms,
	StepName:     matchName,
	StepPhone:    matchPhone,
	StepEmail:    matchEmail,
	StepTimeline: matchTimeline,
}

var preferenceKeywords = []struct {
	re    *regexp.Regexp
	value string
}{
	{regexp.MustCompile(`(?i)\b(rent|rental|renting|lease|leasing)\b`), "rent"},
	{regexp.MustCompile(`(?i)\b(buy|buying|purchase|purchasing)\b`), "buy"},
	{regexp.MustCompile(`(?i)\b(sell|selling)\b`), "sell"},
	{regexp.MustCompile(`(?i)\b(invest|investing|investment)\b`), "invest"},
}

func matchPreference(input string, d *ChatUserData) bool {
	for _, k := range preferenceKeywords {
		if k.re.MatchString(input) {
			d.Preference = k.value
			return true
		}
	}
	return false
}

var (
	locationFiller = regexp.MustCompile(`(?i)^(i'?m\s+)?(looking\s+)?(in|at|around|near|somewhere\s+in)\s+`)
	locationShape  = regexp.MustCompile(`^\p{L}[\p{L}\s'.\-]*\p{L}$`)
)

func matchLocation(input string, d *ChatUserData) bool {
	loc := util.NormalizeName(locationFiller.ReplaceAllString(strings.TrimSpace(input), ""))
	loc = strings.TrimRight(loc, ".!")
	if len([]rune(loc)) < 2 || len(loc) > 100 || !locationShape.MatchString(loc) {
		return false
	}
	d.Location = titleCase(loc)
	return true
}

func titleCase(s string) string {
	words := strings.Fields(s)
	for i, w := range words {
		r := []rune(strings.ToLower(w))
		r[0] = unicode.ToUpper(r[0])
		words[i] = string(r)
	}
	return strings.Join(words, " ")
}

var (
	amountPattern = `(\d{1,3}(?:[.,]\d{3})+|\d+(?:[.,]\d+)?)\s*(thousand|million|billion|miliar|juta|mil|jt|k|m|b)?\b`
	groupedNumber = regexp.MustCompile(`^\d{1,3}(?:[.,]\d{3})+$`)
	budgetRange   = regexp.MustCompile(`(?i)` + amountPattern + `\s*(?:to|-|–|until|sampai)\s*` + amountPattern)
	budgetSingle  = regexp.MustCompile(`(?i)` + amountPattern)
)

// parseAmount reads "1,500,000", "2.5" or "15" scaled by an optional unit suffix.
func parseAmount(num, unit string) (int64, bool) {
	if groupedNumber.MatchString(num) {
		num = strings.NewReplacer(",", "", ".", "").Replace(num)
	} else {
		num = strings.ReplaceAll(num, ",", ".")
	}
	v, err := strconv.ParseFloat(num, 64)
	if err != nil || v <= 0 {
		return 0, false
	}
	switch strings.ToLower(unit) {
	case "k", "thousand":
		v *= 1e3
	case "m", "million", "mil", "jt", "juta":
		v *= 1e6
	case "b", "billion", "miliar":
		v *= 1e9
	}
	if v > math.MaxInt64/2 {
		return 0, false
	}
	return int64(math.Round(v)), true
}

func matchBudget(input string, d *ChatUserData) bool {
	if m := budgetRange.FindStringSubmatch(input); m != nil {
		lo, ok1 := parseAmount(m[1], m[2])
		hi, ok2 := parseAmount(m[3], m[4])
		if !ok1 || !ok2 {
			return false
		}
		// A bare lower bound borrows the upper bound's unit: "5 to 15M".
		if m[2] == "" && m[4] != "" {
			lo, _ = parseAmount(m[1], m[4])
		}
		if lo > hi {
			lo, hi = hi, lo
		}
		d.BudgetMin, d.BudgetMax = &lo, &hi
		return true
	}
	if m := budgetSingle.FindStringSubmatch(input); m != nil {
		hi, ok := parseAmount(m[1], m[2])
		if !ok {
			return false
		}
		d.BudgetMin, d.BudgetMax = nil, &hi
		return true
	}
	return false
}

var (
	bedroomNumber = regexp.MustCompile(`\b(10|[1-9])\b`)
	bedroomStudio = regexp.MustCompile(`(?i)\bstudio\b`)
	bedroomWords  = map[string]int{"one": 1, "two": 2, "three": 3, "four": 4, "five": 5, "six": 6, "seven": 7, "eight": 8, "nine": 9, "ten": 10}
)

func matchBedrooms(input string, d *ChatUserData) bool {
	if bedroomStudio.MatchString(input) {
		n := 0
		d.Bedrooms = &n
		return true
	}
	if m := bedroomNumber.FindStringSubmatch(input); m != nil {
		n, _ := strconv.Atoi(m[1])
		d.Bedrooms = &n
		return true
	}
	for _, w := range strings.Fields(strings.ToLower(input)) {
		if n, ok := bedroomWords[strings.Trim(w, ".,!")]; ok {
			d.Bedrooms = &n
			return true
		}
	}
	return false
}

var namePrefix = regexp.MustCompile(`(?i)^(my name is|my name's|i am|i'm|im|this is|it's|call me)\s+`)

func matchName(input string, d *ChatUserData) bool {
	name := util.NormalizeName(namePrefix.ReplaceAllString(strings.TrimSpace(input), ""))
	name = strings.TrimRight(name, ".!")
	if util.ValidateName(name) != nil {
		return false
	}
	d.Name = titleCase(name)
	return true
}

var phoneCandidate = regexp.MustCompile(`\+?[\d\s\-().]{7,}`)

func matchPhone(input string, d *ChatUserData) bool {
	raw := strings.TrimSpace(phoneCandidate.FindString(input))
	if raw == "" || util.ValidatePhone(raw) != nil {
		return false
	}
	d.Phone = util.NormalizePhone(raw)
	return true
}

var emailCandidate = regexp.MustCompile(`[^\s<>"']+@[^\s<>"']+`)

func matchEmail(input string, d *ChatUserData) bool {
	email := strings.TrimRight(emailCandidate.FindString(input), ".,;!")
	if util.ValidateEmail(email) != nil {
		return false
	}
	d.Email = strings.ToLower(email)
	return true
}

var timelineKeywords = []struct {
	re    *regexp.Regexp
	value string
}{
	{regexp.MustCompile(`(?i)\b(immediately|asap|right away|now|this month)\b`), "immediately"},
	{regexp.MustCompile(`(?i)\b1\s*(-|to)\s*3\s*months?\b`), "1-3 months"},
	{regexp.MustCompile(`(?i)\b3\s*(-|to)\s*6\s*months?\b`), "3-6 months"},
	{regexp.MustCompile(`(?i)(\b6\s*\+|\bmore than 6|\bover 6|\b6 months or more|\bnext year)`), "6+ months"},
	{regexp.MustCompile(`(?i)\b(just browsing|browsing|not sure|no rush)\b`), "just browsing"},
}

func matchTimeline(input string, d *ChatUserData) bool {
	for _, k := range timelineKeywords {
		if k.re.MatchString(input) {
			d.Timeline = k.value
			return true
		}
	}
	return false
}
