package pipeline

import "context"

// Stage names used by the default registry and the status endpoints.
const (
	StageValidate  = "validate"
	StageParse     = "parse"
	StageExtract   = "extract"
	StageTables    = "tables"
	StageOCR       = "ocr"
	StageClassify  = "classify"
	StageStructure = "structure"
	StageOrganize  = "organize"
	StageRender    = "render"
)

// Stage is the interface all pipeline stages implement. Stages read
// what earlier stages produced from the shared state and write their
// own slot.
type Stage interface {
	// Name identifies the stage, e.g. "validate", "ocr".
	Name() string

	// Dependencies lists stages that must complete first.
	Dependencies() []string

	// Description is a short summary for status listings.
	Description() string

	// Fatal reports whether a failure aborts the run. Non-fatal
	// failures are recorded and later stages keep going.
	Fatal() bool

	// Run executes the stage against the shared state.
	Run(ctx context.Context, st *State) error
}
