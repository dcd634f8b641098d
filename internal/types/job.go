package types

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type JobStatus string

const (
	JobStatusQueued     JobStatus = "queued"
	JobStatusInProgress JobStatus = "in_progress"
	JobStatusDone       JobStatus = "done"
	JobStatusFailed     JobStatus = "failed"
)

type JobTask string

const (
	JobTaskFullPipeline  JobTask = "full_pipeline"
	JobTaskSegmentTTS    JobTask = "segment_tts"
	JobTaskTestSynthesis JobTask = "test_synthesis"
)

// JobHistoryEntry is one line of a job's append-only status history.
type JobHistoryEntry struct {
	Status  JobStatus `json:"status"`
	TS      time.Time `json:"ts"`
	Message string    `json:"message,omitempty"`
}

// Job is one unit of dispatched worker work. Status may reach a terminal value
// (done/failed) while history keeps growing; transitions are not validated
// against a strict order.
type Job struct {
	ID          uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	ProjectID   uuid.UUID `gorm:"type:uuid;column:project_id;not null;index" json:"project_id"`
	Task        JobTask   `gorm:"column:task;not null;default:full_pipeline" json:"task"`
	Status      JobStatus `gorm:"column:status;not null;index" json:"status"`
	InputKey    string    `gorm:"column:input_key" json:"input_key,omitempty"`
	CallbackURL string    `gorm:"column:callback_url;not null" json:"callback_url"`
	ResultKey   string    `gorm:"column:result_key" json:"result_key,omitempty"`
	Error       string    `gorm:"column:error" json:"error,omitempty"`
	SourceLang  string    `gorm:"column:source_lang" json:"source_lang,omitempty"`
	TargetLang  string    `gorm:"column:target_lang;index" json:"target_lang,omitempty"`

	Metadata    datatypes.JSON `gorm:"column:metadata;type:jsonb" json:"metadata,omitempty"`
	TaskPayload datatypes.JSON `gorm:"column:task_payload;type:jsonb" json:"task_payload,omitempty"`
	History     datatypes.JSON `gorm:"column:history;type:jsonb" json:"history"`

	CreatedAt time.Time `gorm:"not null" json:"created_at"`
	UpdatedAt time.Time `gorm:"not null" json:"updated_at"`
}

func (Job) TableName() string { return "job" }

func (j *Job) BeforeCreate(tx *gorm.DB) error {
	if j.ID == uuid.Nil {
		j.ID = uuid.New()
	}
	if j.Task == "" {
		j.Task = JobTaskFullPipeline
	}
	if j.Status == "" {
		j.Status = JobStatusQueued
	}
	if len(j.History) == 0 {
		j.History = datatypes.JSON([]byte(`[]`))
	}
	return nil
}

// HistoryEntries decodes the append-only history column. A corrupt column
// yields an empty slice rather than an error; history is advisory.
func (j *Job) HistoryEntries() []JobHistoryEntry {
	var out []JobHistoryEntry
	if len(j.History) == 0 {
		return out
	}
	_ = json.Unmarshal(j.History, &out)
	return out
}

// AppendHistory adds one entry and re-encodes the column.
func (j *Job) AppendHistory(status JobStatus, ts time.Time, message string) {
	entries := append(j.HistoryEntries(), JobHistoryEntry{Status: status, TS: ts, Message: message})
	raw, err := json.Marshal(entries)
	if err != nil {
		return
	}
	j.History = datatypes.JSON(raw)
}

// TaskPayloadMap decodes the free-form task payload for envelope flattening.
func (j *Job) TaskPayloadMap() map[string]any {
	out := map[string]any{}
	if len(j.TaskPayload) == 0 {
		return out
	}
	_ = json.Unmarshal(j.TaskPayload, &out)
	return out
}

// TargetLanguageList decodes a project's declared target languages.
func TargetLanguageList(raw datatypes.JSON) []string {
	var out []string
	if len(raw) == 0 {
		return out
	}
	_ = json.Unmarshal(raw, &out)
	return out
}
