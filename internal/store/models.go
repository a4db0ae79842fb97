package store

import (
	"encoding/json"
	"strings"
	"time"
)

// VideoStatus represents the lifecycle of an uploaded video.
type VideoStatus string

const (
	VideoUploaded   VideoStatus = "uploaded"
	VideoProcessing VideoStatus = "processing"
	VideoCompleted  VideoStatus = "completed"
	VideoFailed     VideoStatus = "failed"
)

// JobStatus represents the lifecycle of a processing job.
type JobStatus string

const (
	JobPending    JobStatus = "pending"
	JobProcessing JobStatus = "processing"
	JobCompleted  JobStatus = "completed"
	JobFailed     JobStatus = "failed"
)

// Step identifies a pipeline stage as surfaced through progress polling.
type Step string

const (
	StepDownloading       Step = "downloading"
	StepAnalyzing         Step = "analyzing"
	StepFixingCuts        Step = "fixing_cuts"
	StepFixingAudio       Step = "fixing_audio"
	StepRemovingWindNoise Step = "removing_wind_noise"
	StepRecoveringFrames  Step = "recovering_frames"
	StepExporting         Step = "exporting"
)

var allVideoStatuses = []VideoStatus{
	VideoUploaded,
	VideoProcessing,
	VideoCompleted,
	VideoFailed,
}

var videoStatusSet = func() map[VideoStatus]struct{} {
	set := make(map[VideoStatus]struct{}, len(allVideoStatuses))
	for _, status := range allVideoStatuses {
		set[status] = struct{}{}
	}
	return set
}()

// AllVideoStatuses returns the ordered list of known video statuses.
func AllVideoStatuses() []VideoStatus {
	cp := make([]VideoStatus, len(allVideoStatuses))
	copy(cp, allVideoStatuses)
	return cp
}

// ParseVideoStatus converts a string into a known VideoStatus.
func ParseVideoStatus(value string) (VideoStatus, bool) {
	normalized := VideoStatus(strings.ToLower(strings.TrimSpace(value)))
	if normalized == "" {
		return "", false
	}
	_, ok := videoStatusSet[normalized]
	return normalized, ok
}

// IsTerminal reports whether a job status admits no further transitions.
func (s JobStatus) IsTerminal() bool {
	return s == JobCompleted || s == JobFailed
}

// DefectReport captures the analysis verdict for a source video. Cut, frame,
// and section defects carry counts; audio sync and wind noise are flags.
type DefectReport struct {
	StutteredCuts     int      `json:"stutteredCuts"`
	AudioSyncIssues   bool     `json:"audioSyncIssues"`
	DroppedFrames     int      `json:"droppedFrames"`
	CorruptedSections int      `json:"corruptedSections"`
	WindNoise         bool     `json:"windNoise"`
	Recommendations   []string `json:"recommendations,omitempty"`
}

// NeedsRepair reports whether any defect was detected.
func (r DefectReport) NeedsRepair() bool {
	return r.StutteredCuts > 0 || r.AudioSyncIssues || r.DroppedFrames > 0 || r.CorruptedSections > 0 || r.WindNoise
}

// FixesApplied records which repairs actually landed on the final artifact.
type FixesApplied struct {
	StutteredCutsFixed int      `json:"stutteredCutsFixed"`
	AudioSyncFixed     bool     `json:"audioSyncFixed"`
	FramesRecovered    int      `json:"framesRecovered"`
	SectionsRepaired   int      `json:"sectionsRepaired"`
	WindNoiseRemoved   bool     `json:"windNoiseRemoved"`
	DegradedStages     []string `json:"degradedStages,omitempty"`
}

// Video represents an uploaded video persisted in SQLite.
type Video struct {
	ID                string      `json:"id"`
	OriginalName      string      `json:"originalName"`
	UploadPath        string      `json:"uploadPath"`
	ProcessedFilePath string      `json:"processedFilePath,omitempty"`
	Status            VideoStatus `json:"status"`
	SizeBytes         int64       `json:"sizeBytes"`
	IssuesJSON        string      `json:"issues,omitempty"`
	FixesJSON         string      `json:"fixes,omitempty"`
	CreatedAt         time.Time   `json:"createdAt"`
	UpdatedAt         time.Time   `json:"updatedAt"`
}

// Issues decodes the stored defect report. A zero report is returned when no
// analysis has been recorded.
func (v *Video) Issues() (DefectReport, error) {
	var report DefectReport
	if strings.TrimSpace(v.IssuesJSON) == "" {
		return report, nil
	}
	if err := json.Unmarshal([]byte(v.IssuesJSON), &report); err != nil {
		return DefectReport{}, err
	}
	return report, nil
}

// Fixes decodes the stored repair summary.
func (v *Video) Fixes() (FixesApplied, error) {
	var fixes FixesApplied
	if strings.TrimSpace(v.FixesJSON) == "" {
		return fixes, nil
	}
	if err := json.Unmarshal([]byte(v.FixesJSON), &fixes); err != nil {
		return FixesApplied{}, err
	}
	return fixes, nil
}

// Job represents a processing job persisted in SQLite. Each video has at most
// one job row; retries reset the existing row rather than inserting another.
type Job struct {
	ID           int64     `json:"id"`
	VideoID      string    `json:"videoId"`
	Status       JobStatus `json:"status"`
	Progress     int       `json:"progress"`
	CurrentStep  Step      `json:"currentStep,omitempty"`
	ErrorMessage string    `json:"errorMessage,omitempty"`
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
}

// Draft represents a saved editing draft. Drafts survive deletion of the
// videos they were created from, so they carry their own artifact reference.
type Draft struct {
	ID           string    `json:"id"`
	VideoID      string    `json:"videoId"`
	Name         string    `json:"name"`
	FilePath     string    `json:"filePath"`
	FileSize     int64     `json:"fileSize"`
	AutoCreated  bool      `json:"autoCreated"`
	LastModified time.Time `json:"lastModified"`
	CreatedAt    time.Time `json:"createdAt"`
}

// HealthSummary describes aggregated job counts per key lifecycle states.
type HealthSummary struct {
	Total      int `json:"total"`
	Pending    int `json:"pending"`
	Processing int `json:"processing"`
	Completed  int `json:"completed"`
	Failed     int `json:"failed"`
}
