package models

import "time"

type FormScore float64

type Severity string

const (
	SeverityLow    Severity = "low"
	SeverityMedium Severity = "medium"
	SeverityHigh   Severity = "high"
)

func (s Severity) Rank() int {
	switch s {
	case SeverityHigh:
		return 3
	case SeverityMedium:
		return 2
	case SeverityLow:
		return 1
	}
	return 0
}

type IssueType string

const (
	IssueKneeValgus         IssueType = "knee_valgus"
	IssueInsufficientDepth  IssueType = "insufficient_depth"
	IssueSpinalRounding     IssueType = "spinal_rounding"
	IssueInconsistentTempo  IssueType = "inconsistent_tempo"
	IssueInefficientBarPath IssueType = "inefficient_bar_path"
	IssueImproperHipHinge   IssueType = "improper_hip_hinge"
	IssueUnstableShoulders  IssueType = "unstable_shoulders"
)

type StrengthType string

const (
	StrengthKneeTracking      StrengthType = "knee_tracking"
	StrengthSquatDepth        StrengthType = "squat_depth"
	StrengthSpinalAlignment   StrengthType = "spinal_alignment"
	StrengthTempo             StrengthType = "tempo"
	StrengthBarPath           StrengthType = "bar_path"
	StrengthHipHinge          StrengthType = "hip_hinge"
	StrengthShoulderStability StrengthType = "shoulder_stability"
)

type FormIssue struct {
	Type           IssueType `json:"type"`
	Severity       Severity  `json:"severity"`
	Description    string    `json:"description"`
	AffectedFrames []int     `json:"affected_frames,omitempty"`
}

type FormStrength struct {
	Type        StrengthType `json:"type"`
	Description string       `json:"description"`
}

type FormAnalysisResult struct {
	Exercise        ExerciseType         `json:"exercise"`
	OverallScore    FormScore            `json:"overall_score"`
	CriterionScores map[string]FormScore `json:"criterion_scores"`
	Issues          []FormIssue          `json:"issues"`
	Strengths       []FormStrength       `json:"strengths"`
	RepCount        int                  `json:"rep_count"`
	AnalyzedAt      time.Time            `json:"analyzed_at"`
}

type FormCorrection struct {
	Issue       IssueType `json:"issue"`
	Instruction string    `json:"instruction"`
	Priority    Severity  `json:"priority"`
}

type FormFeedback struct {
	Exercise     ExerciseType     `json:"exercise"`
	Level        UserFitnessLevel `json:"level"`
	OverallScore FormScore        `json:"overall_score"`
	MainFeedback string           `json:"main_feedback"`
	Corrections  []FormCorrection `json:"corrections"`
	Strengths    []FormStrength   `json:"strengths"`
	Priority     Severity         `json:"priority"`
}

type Session struct {
	ID        string             `json:"id"`
	ClientID  string             `json:"client_id,omitempty"`
	Exercise  ExerciseType       `json:"exercise"`
	Level     UserFitnessLevel   `json:"level"`
	Analysis  FormAnalysisResult `json:"analysis"`
	Feedback  FormFeedback       `json:"feedback"`
	CreatedAt time.Time          `json:"created_at"`
}
