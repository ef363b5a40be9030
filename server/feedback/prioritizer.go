// Package feedback turns analysis results into coaching output tuned to the
// user's fitness level.
package feedback

import (
	"sort"

	"formcoach/server/models"
)

// safetyIssues are surfaced first for beginners when severities tie; form
// breakdowns here carry injury risk under load.
var safetyIssues = map[models.IssueType]struct{}{
	models.IssueSpinalRounding:   {},
	models.IssueKneeValgus:       {},
	models.IssueImproperHipHinge: {},
}

// efficiencyIssues are surfaced first for intermediate and advanced lifters
// when severities tie.
var efficiencyIssues = map[models.IssueType]struct{}{
	models.IssueInefficientBarPath: {},
	models.IssueInconsistentTempo:  {},
	models.IssueInsufficientDepth:  {},
}

// Prioritize returns the issues ordered worst first: by severity, then with
// the level's preferred set ahead within equal severity. The sort is stable,
// so otherwise-equal issues keep their incoming order.
func Prioritize(issues []models.FormIssue, level models.UserFitnessLevel) []models.FormIssue {
	out := make([]models.FormIssue, len(issues))
	copy(out, issues)

	preferred := efficiencyIssues
	if level == models.LevelBeginner {
		preferred = safetyIssues
	}

	sort.SliceStable(out, func(i, j int) bool {
		ri, rj := out[i].Severity.Rank(), out[j].Severity.Rank()
		if ri != rj {
			return ri > rj
		}
		_, pi := preferred[out[i].Type]
		_, pj := preferred[out[j].Type]
		return pi && !pj
	})
	return out
}
