package analysis

import (
	"errors"
	"fmt"
	"time"

	"formcoach/server/models"
)

var (
	// ErrNoPoseData means the submitted sequence had no frames at all.
	ErrNoPoseData = errors.New("no pose data to analyze")

	// ErrUnsupportedExercise means no criterion table exists for the
	// exercise type. The returned error names the offending type.
	ErrUnsupportedExercise = errors.New("unsupported exercise")

	// ErrAnalysisIncomplete is reserved for pipeline stages that can fail
	// partway through a sequence. Nothing returns it today.
	ErrAnalysisIncomplete = errors.New("analysis incomplete")
)

// Criterion names, used as keys of FormAnalysisResult.CriterionScores.
const (
	CriterionKneeTracking      = "knee_tracking"
	CriterionSquatDepth        = "squat_depth"
	CriterionSpinalAlignment   = "spinal_alignment"
	CriterionTempo             = "tempo"
	CriterionBarPath           = "bar_path"
	CriterionHipHinge          = "hip_hinge"
	CriterionShoulderStability = "shoulder_stability"
)

const highSeverityScore = 0.5

// criterion ties an analyzer to its aggregation weight, the thresholds that
// turn its score into an issue or a strength, and the texts shown for each.
type criterion struct {
	name              string
	analyze           func([]models.PoseFrame) (models.FormScore, []int)
	weight            float64
	issueThreshold    float64
	strengthThreshold float64
	issue             models.IssueType
	issueText         string
	strength          models.StrengthType
	strengthText      string
	lowSeverityOnly   bool
}

var (
	kneeTrackingCriterion = criterion{
		name:              CriterionKneeTracking,
		analyze:           AnalyzeKneeTracking,
		issueThreshold:    0.6,
		strengthThreshold: 0.6,
		issue:             models.IssueKneeValgus,
		issueText:         "Your knees are drifting inward instead of tracking over your toes.",
		strength:          models.StrengthKneeTracking,
		strengthText:      "Great knee control, tracking right over your toes.",
	}
	squatDepthCriterion = criterion{
		name:              CriterionSquatDepth,
		analyze:           AnalyzeSquatDepth,
		issueThreshold:    0.7,
		strengthThreshold: 0.7,
		issue:             models.IssueInsufficientDepth,
		issueText:         "You're cutting the squat short of proper depth.",
		strength:          models.StrengthSquatDepth,
		strengthText:      "You're hitting solid depth on every rep.",
	}
	spinalAlignmentCriterion = criterion{
		name:              CriterionSpinalAlignment,
		analyze:           AnalyzeSpinalAlignment,
		issueThreshold:    0.7,
		strengthThreshold: 0.7,
		issue:             models.IssueSpinalRounding,
		issueText:         "Your back is rounding during the movement.",
		strength:          models.StrengthSpinalAlignment,
		strengthText:      "Strong neutral spine throughout the set.",
	}
	tempoCriterion = criterion{
		name:              CriterionTempo,
		analyze:           AnalyzeTempo,
		issueThreshold:    0.6,
		strengthThreshold: 0.6,
		issue:             models.IssueInconsistentTempo,
		issueText:         "Your rep speed varies noticeably through the set.",
		strength:          models.StrengthTempo,
		strengthText:      "Nice, even rep tempo.",
		lowSeverityOnly:   true,
	}
	barPathCriterion = criterion{
		name:              CriterionBarPath,
		analyze:           AnalyzeBarPath,
		issueThreshold:    0.6,
		strengthThreshold: 0.6,
		issue:             models.IssueInefficientBarPath,
		issueText:         "The bar is drifting away from your body on the way up.",
		strength:          models.StrengthBarPath,
		strengthText:      "The bar stays close in a clean vertical line.",
	}
	hipHingeCriterion = criterion{
		name:              CriterionHipHinge,
		analyze:           AnalyzeHipHinge,
		issueThreshold:    0.7,
		strengthThreshold: 0.7,
		issue:             models.IssueImproperHipHinge,
		issueText:         "Your hips are rising too early instead of hinging through the pull.",
		strength:          models.StrengthHipHinge,
		strengthText:      "Textbook hip hinge mechanics.",
	}
	shoulderStabilityCriterion = criterion{
		name:              CriterionShoulderStability,
		analyze:           AnalyzeShoulderStability,
		issueThreshold:    0.6,
		strengthThreshold: 0.6,
		issue:             models.IssueUnstableShoulders,
		issueText:         "Your shoulders are shifting around under load.",
		strength:          models.StrengthShoulderStability,
		strengthText:      "Shoulders stayed locked in and stable.",
	}
)

// exerciseCriteria maps each supported exercise to its weighted criteria.
// Weights are relative; the aggregator renormalizes over whatever scored.
var exerciseCriteria = map[models.ExerciseType][]criterion{
	models.ExerciseSquat: {
		withWeight(kneeTrackingCriterion, 0.3),
		withWeight(squatDepthCriterion, 0.25),
		withWeight(spinalAlignmentCriterion, 0.35),
		withWeight(tempoCriterion, 0.1),
	},
	models.ExerciseDeadlift: {
		withWeight(barPathCriterion, 0.25),
		withWeight(hipHingeCriterion, 0.35),
		withWeight(spinalAlignmentCriterion, 0.4),
	},
	models.ExerciseBenchPress: {
		withWeight(shoulderStabilityCriterion, 1.0),
	},
	models.ExerciseShoulderPress: {
		withWeight(shoulderStabilityCriterion, 1.0),
	},
	models.ExercisePullUp: {
		withWeight(shoulderStabilityCriterion, 1.0),
	},
}

func withWeight(c criterion, w float64) criterion {
	c.weight = w
	return c
}

// SupportedExercises lists the exercise types Evaluate accepts.
func SupportedExercises() []models.ExerciseType {
	out := make([]models.ExerciseType, 0, len(exerciseCriteria))
	for ex := range exerciseCriteria {
		out = append(out, ex)
	}
	return out
}

// Evaluate runs every criterion configured for the exercise over the pose
// sequence and assembles the full analysis: per-criterion scores, detected
// issues with their problem frames, observed strengths, the weighted overall
// score and the rep count. Identical input produces an identical result
// apart from the AnalyzedAt timestamp.
func Evaluate(frames []models.PoseFrame, exercise models.ExerciseType) (models.FormAnalysisResult, error) {
	if len(frames) == 0 {
		return models.FormAnalysisResult{}, ErrNoPoseData
	}
	criteria, ok := exerciseCriteria[exercise]
	if !ok {
		return models.FormAnalysisResult{}, fmt.Errorf("%w: %s", ErrUnsupportedExercise, exercise)
	}

	result := models.FormAnalysisResult{
		Exercise:        exercise,
		CriterionScores: make(map[string]models.FormScore, len(criteria)),
		AnalyzedAt:      time.Now(),
	}
	weights := make(map[string]float64, len(criteria))
	for _, c := range criteria {
		score, flagged := c.analyze(frames)
		result.CriterionScores[c.name] = score
		weights[c.name] = c.weight

		if float64(score) < c.issueThreshold {
			result.Issues = append(result.Issues, models.FormIssue{
				Type:           c.issue,
				Severity:       issueSeverity(c, score),
				Description:    c.issueText,
				AffectedFrames: flagged,
			})
		}
		if float64(score) >= c.strengthThreshold {
			result.Strengths = append(result.Strengths, models.FormStrength{
				Type:        c.strength,
				Description: c.strengthText,
			})
		}
	}

	result.OverallScore = OverallScore(result.CriterionScores, weights)
	result.RepCount = CountReps(frames)
	return result, nil
}

func issueSeverity(c criterion, score models.FormScore) models.Severity {
	if c.lowSeverityOnly {
		return models.SeverityLow
	}
	if float64(score) < highSeverityScore {
		return models.SeverityHigh
	}
	return models.SeverityMedium
}
