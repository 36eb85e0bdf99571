package model

import "strings"

// Region identifies which of the two provider deployments handles a call.
type Region string

// Region constants.
const (
	RegionGlobal Region = "global"
	RegionCN     Region = "cn"
)

// ParseRegion maps a user-supplied region string to a known Region,
// defaulting to global for anything unrecognized.
func ParseRegion(s string) Region {
	if strings.EqualFold(s, string(RegionCN)) {
		return RegionCN
	}
	return RegionGlobal
}

// Kind identifies which of the two remote execution engines a task targets.
type Kind string

// Backend kind constants.
const (
	KindWorkflow Kind = "workflow"
	KindApp      Kind = "app"
)

// Other returns the alternate backend kind, used by the fallback coordinator.
func (k Kind) Other() Kind {
	if k == KindWorkflow {
		return KindApp
	}
	return KindWorkflow
}

// BackendSelector names exactly one remote execution engine plus the
// identifier the task runs under. The constructors are the only way to
// build one, so a selector can never carry both identifiers or neither.
type BackendSelector struct {
	kind Kind
	id   string
}

// WorkflowSelector targets the workflow engine with the given workflow ID.
func WorkflowSelector(workflowID string) BackendSelector {
	return BackendSelector{kind: KindWorkflow, id: workflowID}
}

// AppSelector targets the hosted-app engine with the given webapp ID.
func AppSelector(webappID string) BackendSelector {
	return BackendSelector{kind: KindApp, id: webappID}
}

// Kind returns the selected backend kind.
func (s BackendSelector) Kind() Kind { return s.kind }

// ID returns the single active identifier.
func (s BackendSelector) ID() string { return s.id }

// TaskHandle is the immutable reference returned by submission and used by
// all later status, result, and cancel lookups.
type TaskHandle struct {
	TaskID  string          `json:"task_id"`
	Backend BackendSelector `json:"-"`
	Kind    Kind            `json:"backend"`
	Region  Region          `json:"region"`
}

// TaskStatus is the normalized lifecycle state of a remote task.
type TaskStatus string

// Task status constants.
const (
	StatusQueued    TaskStatus = "queued"
	StatusRunning   TaskStatus = "running"
	StatusSucceeded TaskStatus = "succeeded"
	StatusFailed    TaskStatus = "failed"
	StatusCancelled TaskStatus = "cancelled"
)

// Terminal reports whether no further transition can leave this status.
func (s TaskStatus) Terminal() bool {
	switch s {
	case StatusSucceeded, StatusFailed, StatusCancelled:
		return true
	}
	return false
}

// NormalizeStatus maps the heterogeneous raw status strings the two engines
// report onto TaskStatus. Unrecognized values normalize to running rather
// than failing, so one unexpected status string cannot abort a task that is
// still processing.
func NormalizeStatus(raw string) TaskStatus {
	switch strings.ToUpper(strings.TrimSpace(raw)) {
	case "QUEUED", "QUEUE", "PENDING", "WAITING":
		return StatusQueued
	case "RUNNING", "PROCESSING", "IN_PROGRESS":
		return StatusRunning
	case "SUCCESS", "SUCCEED", "SUCCEEDED", "COMPLETED", "FINISHED":
		return StatusSucceeded
	case "FAILED", "FAIL", "ERROR":
		return StatusFailed
	case "CANCELED", "CANCELLED", "KILLED":
		return StatusCancelled
	default:
		return StatusRunning
	}
}

// TaskResult is the ordered list of output asset URLs for a succeeded task.
type TaskResult struct {
	Outputs []string `json:"outputs"`
}

// CancelOutcome reports the result of a cancel call. Cancelling an already
// terminal task is a benign success, mirroring the remote API.
type CancelOutcome struct {
	OK      bool   `json:"ok"`
	Message string `json:"message,omitempty"`
}

// FileToken is the opaque identifier the upload gateway returns for an
// asset. It is the only artifact of an upload that outlives the request.
type FileToken string

// UploadedAsset holds a raw asset for the duration of one request. Once a
// FileToken is obtained the asset is discarded.
type UploadedAsset struct {
	Data     []byte
	Filename string
	Token    FileToken
}

// TemplateNode is one entry of a caller-supplied node template: it names
// which remote graph node needs which kind of value, without the value.
type TemplateNode struct {
	NodeID     string `json:"nodeId"     validate:"required"`
	FieldName  string `json:"fieldName"  validate:"required"`
	ParamKey   string `json:"paramKey"`
	FieldValue string `json:"fieldValue"`
}

// NodeBinding is a fully resolved template node. FieldValue is always a
// string once bound, regardless of the source type.
type NodeBinding struct {
	NodeID     string `json:"nodeId"`
	FieldName  string `json:"fieldName"`
	FieldValue string `json:"fieldValue"`
}
