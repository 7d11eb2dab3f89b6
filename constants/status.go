package constants

// Status is the coarse, externally visible state of a contract.
type Status string

// Stable values (store these exact strings in DB).
const (
	StatusPending    Status = "pending"
	StatusProcessing Status = "processing"
	StatusCompleted  Status = "completed"
	StatusFailed     Status = "failed"
)

var allStatuses = []Status{StatusPending, StatusProcessing, StatusCompleted, StatusFailed}

// ParseStatus matches a query value against the known statuses.
func ParseStatus(s string) (Status, bool) {
	for _, st := range allStatuses {
		if string(st) == s {
			return st, true
		}
	}
	return "", false
}

// StatusValues lists every status as its stored string.
func StatusValues() []string {
	out := make([]string, len(allStatuses))
	for i, st := range allStatuses {
		out[i] = string(st)
	}
	return out
}

// Terminal reports whether the pipeline will not touch the record again.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// Stage is the fine-grained pipeline position used for progress reporting.
type Stage string

const (
	StageQueued         Stage = "queued"
	StageExtractingText Stage = "extracting_text"
	StageExtractingData Stage = "extracting_data"
	StageScoring        Stage = "scoring"
	StageCompleted      Stage = "completed"
	StageFailed         Stage = "failed"
)

var allStages = []Stage{StageQueued, StageExtractingText, StageExtractingData, StageScoring, StageCompleted, StageFailed}

// StageValues lists every stage as its stored string.
func StageValues() []string {
	out := make([]string, len(allStages))
	for i, st := range allStages {
		out[i] = string(st)
	}
	return out
}

// Status maps a stage onto the coarse status.
func (s Stage) Status() Status {
	switch s {
	case StageQueued, "":
		return StatusPending
	case StageCompleted:
		return StatusCompleted
	case StageFailed:
		return StatusFailed
	default:
		return StatusProcessing
	}
}

// Progress checkpoints.
const (
	ProgressPending      float64 = 0
	ProgressTextStarted  float64 = 10
	ProgressTextDone     float64 = 40
	ProgressDataStarted  float64 = 45
	ProgressDataDone     float64 = 80
	ProgressScoringStart float64 = 85
	ProgressCompleted    float64 = 100
)
