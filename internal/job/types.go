package job

import (
	"maps"
	"time"

	"github.com/fedutinova/speechcoach/internal/pipeline"
	uuid "github.com/google/uuid"
)

type Status string

const (
	StatusQueued     Status = "queued"
	StatusProcessing Status = "processing"
	StatusCompleted  Status = "completed"
	StatusFailed     Status = "failed"
	StatusCancelled  Status = "cancelled"
)

// Metadata keys understood by the analysis worker.
const (
	MetaContext  = "context"
	MetaLanguage = "language"
	// MetaAudioSource is set to AudioSourceUpload when the service stored
	// the recording itself and owns its lifetime.
	MetaAudioSource = "audio_source"
)

const AudioSourceUpload = "upload"

type Job struct {
	ID          uuid.UUID         `json:"id"`
	OwnerID     string            `json:"owner_id"`
	AudioRef    string            `json:"audio_ref"`
	Transcript  string            `json:"transcript"`
	Status      Status            `json:"status"`
	Progress    int               `json:"progress"`
	Result      *pipeline.Result  `json:"result,omitempty"`
	Error       string            `json:"error,omitempty"`
	Metadata    map[string]string `json:"metadata,omitempty"`
	CreatedAt   time.Time         `json:"created_at"`
	StartedAt   *time.Time        `json:"started_at,omitempty"`
	CompletedAt *time.Time        `json:"completed_at,omitempty"`
}

// Summary is the list view of a job.
type Summary struct {
	ID          uuid.UUID  `json:"id"`
	Status      Status     `json:"status"`
	Progress    int        `json:"progress"`
	Error       string     `json:"error,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
}

// IsTerminal reports whether no further transitions are possible from s.
func (s Status) IsTerminal() bool {
	switch s {
	case StatusCompleted, StatusFailed, StatusCancelled:
		return true
	default:
		return false
	}
}

// CanTransition enforces the job state machine:
// queued -> processing -> {completed, failed}, or queued -> cancelled.
func CanTransition(from, to Status) bool {
	switch from {
	case StatusQueued:
		return to == StatusProcessing || to == StatusCancelled
	case StatusProcessing:
		return to == StatusCompleted || to == StatusFailed
	default:
		return false
	}
}

// Context returns the context tag from metadata, or "" when unset.
func (j *Job) Context() string {
	return j.Metadata[MetaContext]
}

// Language returns the language hint from metadata, or "" when unset.
func (j *Job) Language() string {
	return j.Metadata[MetaLanguage]
}

// OwnsAudio reports whether the recording was uploaded through the service.
func (j *Job) OwnsAudio() bool {
	return j.Metadata[MetaAudioSource] == AudioSourceUpload
}

// Summary projects the job into its list view.
func (j *Job) Summary() Summary {
	return Summary{
		ID:          j.ID,
		Status:      j.Status,
		Progress:    j.Progress,
		Error:       j.Error,
		CreatedAt:   j.CreatedAt,
		CompletedAt: j.CompletedAt,
	}
}

// Clone returns a copy that shares no mutable maps or timestamps with j.
func (j *Job) Clone() *Job {
	if j == nil {
		return nil
	}
	c := *j
	c.Metadata = maps.Clone(j.Metadata)
	c.Result = j.Result.Clone()
	if j.StartedAt != nil {
		t := *j.StartedAt
		c.StartedAt = &t
	}
	if j.CompletedAt != nil {
		t := *j.CompletedAt
		c.CompletedAt = &t
	}
	return &c
}
