package models

type AnalyzeRequest struct {
	Exercise  ExerciseType     `json:"exercise"`
	UserLevel UserFitnessLevel `json:"user_level"`
	ClientID  string           `json:"client_id,omitempty"`
	Frames    []PoseFrame      `json:"frames"`
}

type AnalyzeResponse struct {
	SessionID      string             `json:"session_id"`
	Analysis       FormAnalysisResult `json:"analysis"`
	Feedback       FormFeedback       `json:"feedback"`
	CacheHit       bool               `json:"cache_hit"`
	ProcessingTime float64            `json:"processing_time_ms"`
}

type VideoAnalyzeRequest struct {
	Exercise  ExerciseType     `json:"exercise"`
	UserLevel UserFitnessLevel `json:"user_level"`
	ClientID  string           `json:"client_id,omitempty"`
	VideoData string           `json:"video_data"`
}

type ProcessingStats struct {
	TotalAnalyses  int64   `json:"total_analyses"`
	TotalErrors    int64   `json:"total_errors"`
	CacheHits      int64   `json:"cache_hits"`
	CacheMisses    int64   `json:"cache_misses"`
	AverageLatency float64 `json:"average_latency_ms"`
	QueueSize      int     `json:"queue_size"`
	ActiveJobs     int     `json:"active_jobs"`
	StoredSessions int     `json:"stored_sessions"`
}
