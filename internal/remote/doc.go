// Package remote implements the outbound client for the workflow-execution
// provider: the upload gateway, the JSON envelope transport, and the two
// backend implementations (workflow engine and hosted app) behind a common
// Backend interface. It also defines the error taxonomy every
// network-facing component raises.
package remote
