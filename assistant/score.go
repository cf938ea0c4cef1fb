package assistant

// Lead score weights. All fields present sum to 100.
const (
	scoreName       = 20
	scoreEmail      = 20
	scorePhone      = 20
	scorePreference = 10
	scoreLocation   = 10
	scoreBudget     = 15
	scoreTimeline   = 5
)

// LeadScore rates how complete a lead is. The budget only counts when both bounds are known.
func LeadScore(d ChatUserData) int {
	score := 0
	if d.Name != "" {
		score += scoreName
	}
	if d.Email != "" {
		score += scoreEmail
	}
	if d.Phone != "" {
		score += scorePhone
	}
	if d.Preference != "" {
		score += scorePreference
	}
	if d.Location != "" {
		score += scoreLocation
	}
	if d.BudgetMin != nil && d.BudgetMax != nil {
		score += scoreBudget
	}
	if d.Timeline != "" {
		score += scoreTimeline
	}
	return score
}
