package remote

import (
	"context"
	"fmt"

	"github.com/nkurosawa/taskrelay/internal/model"
)

// Workflow engine endpoints.
const (
	workflowCreatePath  = "/task/openapi/create"
	workflowStatusPath  = "/task/openapi/status"
	workflowOutputsPath = "/task/openapi/outputs"
	workflowCancelPath  = "/task/openapi/cancel"
)

// WorkflowBackend talks to the workflow execution engine, which runs tasks
// identified by a workflow ID.
type WorkflowBackend struct {
	c *Client
}

// NewWorkflowBackend wraps a provider client with workflow-engine routing.
func NewWorkflowBackend(c *Client) *WorkflowBackend {
	return &WorkflowBackend{c: c}
}

// Kind reports the workflow engine kind.
func (b *WorkflowBackend) Kind() model.Kind { return model.KindWorkflow }

type workflowCreateRequest struct {
	APIKey       string              `json:"apiKey"`
	WorkflowID   string              `json:"workflowId"`
	NodeInfoList []model.NodeBinding `json:"nodeInfoList"`
}

type taskLookupRequest struct {
	APIKey string `json:"apiKey"`
	TaskID string `json:"taskId"`
}

type workflowCreateData struct {
	TaskID string `json:"taskId"`
}

// Submit creates a workflow task from the bound node list.
func (b *WorkflowBackend) Submit(ctx context.Context, sel model.BackendSelector, bindings []model.NodeBinding, region model.Region) (model.TaskHandle, error) {
	if sel.Kind() != model.KindWorkflow {
		return model.TaskHandle{}, &ValidationError{Reason: fmt.Sprintf("selector kind %q routed to workflow backend", sel.Kind())}
	}

	env, err := b.c.postJSON(ctx, region, workflowCreatePath, workflowCreateRequest{
		APIKey:       b.c.cfg.APIKey,
		WorkflowID:   sel.ID(),
		NodeInfoList: bindings,
	})
	if err != nil {
		return model.TaskHandle{}, err
	}

	var data workflowCreateData
	if err := decodeData(env, &data); err != nil {
		return model.TaskHandle{}, err
	}
	if data.TaskID == "" {
		return model.TaskHandle{}, &UpstreamRejection{Code: env.Code, Message: "create response carried no task id"}
	}

	return model.TaskHandle{
		TaskID:  data.TaskID,
		Backend: sel,
		Kind:    model.KindWorkflow,
		Region:  region,
	}, nil
}

// Status queries the workflow engine, whose data field is a bare status
// string (for example "SUCCESS"), and normalizes it.
func (b *WorkflowBackend) Status(ctx context.Context, taskID string, region model.Region) (model.TaskStatus, string, error) {
	env, err := b.c.postJSON(ctx, region, workflowStatusPath, taskLookupRequest{APIKey: b.c.cfg.APIKey, TaskID: taskID})
	if err != nil {
		return "", "", err
	}

	raw, err := decodeStatus(env)
	if err != nil {
		return "", "", err
	}

	return model.NormalizeStatus(raw), env.Msg, nil
}

type workflowOutput struct {
	FileURL string `json:"fileUrl"`
}

// Result fetches the ordered output URLs of a succeeded workflow task.
func (b *WorkflowBackend) Result(ctx context.Context, taskID string, region model.Region) (model.TaskResult, error) {
	env, err := b.c.postJSON(ctx, region, workflowOutputsPath, taskLookupRequest{APIKey: b.c.cfg.APIKey, TaskID: taskID})
	if err != nil {
		return model.TaskResult{}, err
	}

	var outputs []workflowOutput
	if err := decodeData(env, &outputs); err != nil {
		return model.TaskResult{}, err
	}

	result := model.TaskResult{Outputs: make([]string, 0, len(outputs))}
	for _, o := range outputs {
		result.Outputs = append(result.Outputs, o.FileURL)
	}
	return result, nil
}

// Cancel asks the workflow engine to stop a task. The engine answers code 0
// for repeat cancellation of a finished task, so the call is idempotent.
func (b *WorkflowBackend) Cancel(ctx context.Context, taskID string, region model.Region) (model.CancelOutcome, error) {
	env, err := b.c.postJSON(ctx, region, workflowCancelPath, taskLookupRequest{APIKey: b.c.cfg.APIKey, TaskID: taskID})
	if err != nil {
		return model.CancelOutcome{}, err
	}
	return model.CancelOutcome{OK: true, Message: env.Msg}, nil
}
