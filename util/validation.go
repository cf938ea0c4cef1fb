package util

import (
	"errors"
	"fmt"
	"html"
	"net/url"
	"regexp"
	"sort"
	"strings"
	"unicode/utf8"
)

// ThreatCategory names a family of hostile input patterns.
type ThreatCategory string

const (
	ThreatXSS              ThreatCategory = "xss"
	ThreatSQLInjection     ThreatCategory = "sql_injection"
	ThreatPathTraversal    ThreatCategory = "path_traversal"
	ThreatCommandInjection ThreatCategory = "command_injection"
)

const defaultMaxInputLength = 1000

// ErrInvalidInput is returned by the field validators.
var ErrInvalidInput = errors.New("invalid input")

// threatWeights feed RiskScore. Each category counts once per input.
var threatWeights = map[ThreatCategory]int{
	ThreatXSS:              40,
	ThreatSQLInjection:     40,
	ThreatCommandInjection: 30,
	ThreatPathTraversal:    20,
}

// threatPatterns is a denylist. It will miss novel payloads and can flag odd prose.
var threatPatterns = []struct {
	category ThreatCategory
	re       *regexp.Regexp
}{
	{ThreatXSS, regexp.MustCompile(`(?i)<\s*/?\s*script`)},
	{ThreatXSS, regexp.MustCompile(`(?i)(java|vb)script\s*:`)},
	{ThreatXSS, regexp.MustCompile(`(?i)\bon[a-z]+\s*=`)},
	{ThreatXSS, regexp.MustCompile(`(?i)<\s*(iframe|object|embed|applet|meta|link|base)\b`)},
	{ThreatXSS, regexp.MustCompile(`(?i)<\s*(img|svg|body|video|audio)[^>]*\b(src|on\w+)\s*=`)},
	{ThreatXSS, regexp.MustCompile(`(?i)data\s*:\s*text/html`)},
	{ThreatXSS, regexp.MustCompile(`(?i)expression\s*\(`)},

	{ThreatSQLInjection, regexp.MustCompile(`(?i)\bunion\b(\s+all)?\s+select\b`)},
	{ThreatSQLInjection, regexp.MustCompile(`(?i);\s*(drop|delete|truncate|alter|insert|update|create)\s+`)},
	{ThreatSQLInjection, regexp.MustCompile(`(?i)['"]\s*(or|and)\s+['"]?\w+['"]?\s*=\s*['"]?\w+`)},
	{ThreatSQLInjection, regexp.MustCompile(`(?i)\b(sleep|benchmark|pg_sleep)\s*\(\s*\d+`)},
	{ThreatSQLInjection, regexp.MustCompile(`(?i)\bwaitfor\s+delay\b`)},
	{ThreatSQLInjection, regexp.MustCompile(`(?i)\b(exec|execute)\s+(xp_|sp_)\w+`)},
	{ThreatSQLInjection, regexp.MustCompile(`('|")\s*--`)},
	{ThreatSQLInjection, regexp.MustCompile(`/\*.*\*/`)},

	{ThreatPathTraversal, regexp.MustCompile(`\.\.[/\\]`)},
	{ThreatPathTraversal, regexp.MustCompile(`(?i)%2e%2e(%2f|%5c|/|\\)`)},
	{ThreatPathTraversal, regexp.MustCompile(`(?i)/etc/(passwd|shadow|hosts)\b`)},
	{ThreatPathTraversal, regexp.MustCompile(`(?i)\b[a-z]:\\windows\\`)},

	{ThreatCommandInjection, regexp.MustCompile(`\$\(`)},
	{ThreatCommandInjection, regexp.MustCompile("`")},
	{ThreatCommandInjection, regexp.MustCompile(`\$\{[^}]*\}`)},
	{ThreatCommandInjection, regexp.MustCompile(`(?i)[;&|]\s*(sh|bash|zsh|powershell|cmd|nc|netcat|curl|wget|chmod|chown|rm\s+-)\b`)},
}

var (
	emailPattern = regexp.MustCompile(`^[a-zA-Z0-9._%+\-]+@[a-zA-Z0-9.\-]+\.[a-zA-Z]{2,}$`)
	namePattern  = regexp.MustCompile(`^\p{L}[\p{L}\s'.\-]*$`)
	phoneStrip   = strings.NewReplacer(" ", "", "-", "", "(", "", ")", "", ".", "")
	digitsOnly   = regexp.MustCompile(`^\+?[0-9]{7,15}$`)
)

// ValidationOptions tunes ValidateInput for a single field.
type ValidationOptions struct {
	Field     string
	MaxLength int
	AllowHTML bool
	Required  bool
}

// ValidationResult is the outcome of checking one input string.
type ValidationResult struct {
	IsValid   bool             `json:"is_valid"`
	Sanitized string           `json:"sanitized"`
	Errors    []string         `json:"errors,omitempty"`
	Threats   []ThreatCategory `json:"threats,omitempty"`
	RiskScore int              `json:"risk_score"`
}

// SanitizeHTML encodes the characters that can open markup or break out of an attribute.
func SanitizeHTML(s string) string {
	return htmlEncoder.Replace(s)
}

var htmlEncoder = strings.NewReplacer(
	"&", "&amp;",
	"<", "&lt;",
	">", "&gt;",
	`"`, "&quot;",
	"'", "&#x27;",
	"/", "&#x2F;",
)

// DetectThreats returns the distinct threat categories found in input, in stable order.
// Percent-encoded and entity-encoded variants are decoded once before matching.
func DetectThreats(input string) []ThreatCategory {
	candidates := []string{input}
	if dec, err := url.QueryUnescape(input); err == nil && dec != input {
		candidates = append(candidates, dec)
	}
	if unesc := html.UnescapeString(input); unesc != input {
		candidates = append(candidates, unesc)
	}

	found := map[ThreatCategory]bool{}
	for _, p := range threatPatterns {
		if found[p.category] {
			continue
		}
		for _, c := range candidates {
			if p.re.MatchString(c) {
				found[p.category] = true
				break
			}
		}
	}

	out := make([]ThreatCategory, 0, len(found))
	for c := range found {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// RiskScore adds the weight of each category and caps the result at 100.
func RiskScore(threats []ThreatCategory) int {
	score := 0
	for _, t := range threats {
		score += threatWeights[t]
	}
	if score > 100 {
		score = 100
	}
	return score
}

// ValidateInput checks a free-text field against the threat denylist, the length
// limit and the required flag. Sanitized is always filled in.
func ValidateInput(input string, opts ValidationOptions) ValidationResult {
	maxLen := opts.MaxLength
	if maxLen <= 0 {
		maxLen = defaultMaxInputLength
	}
	field := opts.Field
	if field == "" {
		field = "input"
	}

	trimmed := strings.TrimSpace(input)
	res := ValidationResult{IsValid: true}

	if opts.Required && trimmed == "" {
		res.Errors = append(res.Errors, fmt.Sprintf("%s is required", field))
	}
	if utf8.RuneCountInString(trimmed) > maxLen {
		res.Errors = append(res.Errors, fmt.Sprintf("%s must be at most %d characters", field, maxLen))
		trimmed = truncateRunes(trimmed, maxLen)
	}

	res.Threats = DetectThreats(input)
	for _, t := range res.Threats {
		res.Errors = append(res.Errors, fmt.Sprintf("%s contains disallowed content (%s)", field, t))
	}
	res.RiskScore = RiskScore(res.Threats)

	if opts.AllowHTML {
		res.Sanitized = trimmed
	} else {
		res.Sanitized = SanitizeHTML(trimmed)
	}
	res.IsValid = len(res.Errors) == 0
	return res
}

func truncateRunes(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	r := []rune(s)
	return string(r[:n])
}

// ValidateEmail checks the address shape and length.
func ValidateEmail(email string) error {
	email = strings.TrimSpace(email)
	if email == "" || len(email) > 254 || !emailPattern.MatchString(email) {
		return fmt.Errorf("%w: email address is not valid", ErrInvalidInput)
	}
	return nil
}

// ValidatePhone accepts 7 to 15 digits with an optional leading plus, ignoring
// spaces, dashes, dots and parentheses.
func ValidatePhone(phone string) error {
	if !digitsOnly.MatchString(NormalizePhone(phone)) {
		return fmt.Errorf("%w: phone number is not valid", ErrInvalidInput)
	}
	return nil
}

// NormalizePhone strips the separators ValidatePhone ignores.
func NormalizePhone(phone string) string {
	return phoneStrip.Replace(strings.TrimSpace(phone))
}

// ValidateName accepts 2 to 100 letters with spaces, apostrophes, dots and hyphens.
func ValidateName(name string) error {
	name = NormalizeName(name)
	n := utf8.RuneCountInString(name)
	if n < 2 || n > 100 || !namePattern.MatchString(name) {
		return fmt.Errorf("%w: name is not valid", ErrInvalidInput)
	}
	return nil
}

// FieldValidation aggregates ValidateInput over several named fields.
type FieldValidation struct {
	Sanitized map[string]string   `json:"sanitized"`
	Errors    map[string][]string `json:"errors,omitempty"`
	Threats   []ThreatCategory    `json:"threats,omitempty"`
	RiskScore int                 `json:"risk_score"`
}

// Valid reports whether no field produced an error.
func (v FieldValidation) Valid() bool {
	return len(v.Errors) == 0
}

// ValidateFields runs ValidateInput on every entry of fields with the shared opts;
// opts.Field is replaced by each key.
func ValidateFields(fields map[string]string, opts ValidationOptions) FieldValidation {
	out := FieldValidation{
		Sanitized: make(map[string]string, len(fields)),
		Errors:    map[string][]string{},
	}
	seen := map[ThreatCategory]bool{}
	for name, value := range fields {
		o := opts
		o.Field = name
		res := ValidateInput(value, o)
		out.Sanitized[name] = res.Sanitized
		if !res.IsValid {
			out.Errors[name] = res.Errors
		}
		for _, t := range res.Threats {
			if !seen[t] {
				seen[t] = true
				out.Threats = append(out.Threats, t)
			}
		}
	}
	sort.Slice(out.Threats, func(i, j int) bool { return out.Threats[i] < out.Threats[j] })
	out.RiskScore = RiskScore(out.Threats)
	return out
}
