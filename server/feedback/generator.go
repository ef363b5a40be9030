package feedback

import (
	"strings"

	"formcoach/server/models"
)

const (
	maxCorrections = 3

	excellentScore = 0.8
	goodScore      = 0.6
)

// Generate builds user-facing feedback from an analysis result: a main
// message assembled from the score band, an encouragement when strengths
// exist and the top issue, plus up to three corrections with instructions
// matched to the user's level. Pure: no clock, no randomness.
func Generate(result models.FormAnalysisResult, level models.UserFitnessLevel) models.FormFeedback {
	prioritized := Prioritize(result.Issues, level)

	fb := models.FormFeedback{
		Exercise:     result.Exercise,
		Level:        level,
		OverallScore: result.OverallScore,
		Strengths:    result.Strengths,
		Priority:     models.SeverityLow,
	}

	parts := []string{bandMessage(result.OverallScore)}
	if len(result.Strengths) > 0 {
		parts = append(parts, "You're doing a lot right here, so keep building on it.")
	}
	if len(prioritized) > 0 {
		parts = append(parts, prioritized[0].Description)
		fb.Priority = prioritized[0].Severity
	}
	fb.MainFeedback = strings.TrimSpace(strings.Join(parts, " "))

	for i, issue := range prioritized {
		if i == maxCorrections {
			break
		}
		fb.Corrections = append(fb.Corrections, models.FormCorrection{
			Issue:       issue.Type,
			Instruction: instructionFor(issue.Type, level),
			Priority:    issue.Severity,
		})
	}
	return fb
}

func bandMessage(score models.FormScore) string {
	switch {
	case float64(score) >= excellentScore:
		return "Excellent form! Keep up the great work."
	case float64(score) >= goodScore:
		return "Good form overall, with some room for improvement."
	default:
		return "Your form needs attention before you add more weight."
	}
}

// leveledInstructions carries separate cues per fitness level for the two
// issue types where the right cue really depends on training age.
var leveledInstructions = map[models.IssueType]map[models.UserFitnessLevel]string{
	models.IssueKneeValgus: {
		models.LevelBeginner:     "Think about pushing your knees out so they point the same way as your toes.",
		models.LevelIntermediate: "Screw your feet into the floor and drive your knees out over your toes.",
		models.LevelAdvanced:     "Cue external hip rotation through the descent and keep the glutes loaded.",
	},
	models.IssueSpinalRounding: {
		models.LevelBeginner:     "Keep your chest up and look slightly ahead to keep your back flat.",
		models.LevelIntermediate: "Brace your core hard before each rep and keep your chest proud.",
		models.LevelAdvanced:     "Breathe into your brace and set your lats before you break at the hips.",
	},
}

var standardInstructions = map[models.IssueType]string{
	models.IssueInsufficientDepth:  "Work on sinking your hips until they drop below knee level.",
	models.IssueInconsistentTempo:  "Count a steady cadence, around two seconds down and one second up.",
	models.IssueInefficientBarPath: "Keep the bar dragging up your legs in a straight vertical line.",
	models.IssueImproperHipHinge:   "Push your hips back first and keep your chest over the bar.",
	models.IssueUnstableShoulders:  "Pull your shoulder blades down and back, and keep them pinned.",
}

func instructionFor(issue models.IssueType, level models.UserFitnessLevel) string {
	if byLevel, ok := leveledInstructions[issue]; ok {
		return byLevel[level]
	}
	return standardInstructions[issue]
}
