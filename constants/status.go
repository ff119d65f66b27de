package constants

// StatusKind is the category of the session status line.
type StatusKind string

const (
	StatusIdle    StatusKind = "IDLE"
	StatusRunning StatusKind = "RUNNING" // an action is awaiting the converter or the model
	StatusSuccess StatusKind = "SUCCESS"
	StatusInfo    StatusKind = "INFO" // success, but with a caveat (filtered pages, truncation)
	StatusFailure StatusKind = "FAILURE"
)

// Field names used in notices and validation errors.
const (
	FieldCriteria = "criteria"
	FieldCase     = "case"
)

// Operation names used in prompts, logs and saved runs.
const (
	OpExtractCriteria = "extract_criteria"
	OpOrganizeCase    = "organize_case"
	OpClassifyCase    = "classify_case"
)
