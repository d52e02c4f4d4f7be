package diagnostics

import (
	"time"

	"gorm.io/datatypes"
)

// RunRecord is one persisted record of a script/module execution
// (SPEC_FULL §2's ambient "Diagnostics store" row): source hash,
// diagnostics, backtrace, and instruction/memory counters, grounded on
// the teacher's `models.Stage`/`models.Session` shape (varchar primary
// key, JSON columns for structured sub-data, `autoCreateTime`
// timestamps) adapted from "a pending code transformation" to "a
// completed engine run."
type RunRecord struct {
	ID string `gorm:"primaryKey;type:varchar(36)"`

	// Kind distinguishes a RunScript record from a RunModule one.
	Kind       string `gorm:"type:varchar(20);not null"`
	SourceHash string `gorm:"type:varchar(64);index"`
	Specifier  string `gorm:"type:varchar(255)"`

	Succeeded    bool           `gorm:"default:false"`
	ErrorMessage string         `gorm:"type:text"`
	Backtrace    datatypes.JSON `gorm:"type:jsonb"`

	InstructionsSpent int64
	MemoryUsedBytes   uint64

	StartedAt  time.Time `gorm:"autoCreateTime"`
	FinishedAt time.Time
}

func (RunRecord) TableName() string { return "run_records" }
