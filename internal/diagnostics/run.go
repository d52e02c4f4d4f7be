package diagnostics

import (
	"crypto/sha256"
	"encoding/hex"
	"time"

	"github.com/google/uuid"
)

// HashSource returns the hex-encoded SHA-256 digest of source, the
// stable identifier a RunRecord stores instead of the (potentially
// large) source text itself.
func HashSource(source string) string {
	sum := sha256.Sum256([]byte(source))
	return hex.EncodeToString(sum[:])
}

// NewRunRecord builds a pending RunRecord for one script or module
// run, ID-stamped with a fresh UUID (google/uuid, kept from the
// teacher's dependency list) the way the teacher stamps each Stage/
// Apply/Session row with its own generated ID.
func NewRunRecord(kind, source, specifier string) *RunRecord {
	return &RunRecord{
		ID:         uuid.NewString(),
		Kind:       kind,
		SourceHash: HashSource(source),
		Specifier:  specifier,
	}
}

// Finish fills in the outcome fields of rec after a run completes.
func (rec *RunRecord) Finish(succeeded bool, errMessage string, instructionsSpent int64, memoryUsedBytes uint64) {
	rec.Succeeded = succeeded
	rec.ErrorMessage = errMessage
	rec.InstructionsSpent = instructionsSpent
	rec.MemoryUsedBytes = memoryUsedBytes
	rec.FinishedAt = time.Now()
}
