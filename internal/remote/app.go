package remote

import (
	"context"
	"fmt"

	"github.com/nkurosawa/taskrelay/internal/model"
)

// Hosted-app engine endpoints.
const (
	appRunPath     = "/task/openapi/ai-app/run"
	appStatusPath  = "/task/openapi/ai-app/status"
	appOutputsPath = "/task/openapi/ai-app/outputs"
	appCancelPath  = "/task/openapi/ai-app/cancel"
)

// AppBackend talks to the hosted-app execution engine, which runs tasks
// identified by a webapp ID.
type AppBackend struct {
	c *Client
}

// NewAppBackend wraps a provider client with hosted-app routing.
func NewAppBackend(c *Client) *AppBackend {
	return &AppBackend{c: c}
}

// Kind reports the hosted-app engine kind.
func (b *AppBackend) Kind() model.Kind { return model.KindApp }

type appRunRequest struct {
	APIKey       string              `json:"apiKey"`
	WebappID     string              `json:"webappId"`
	NodeInfoList []model.NodeBinding `json:"nodeInfoList"`
}

type appRunData struct {
	TaskID string `json:"taskId"`
}

// Submit runs a hosted app with the bound node list.
func (b *AppBackend) Submit(ctx context.Context, sel model.BackendSelector, bindings []model.NodeBinding, region model.Region) (model.TaskHandle, error) {
	if sel.Kind() != model.KindApp {
		return model.TaskHandle{}, &ValidationError{Reason: fmt.Sprintf("selector kind %q routed to app backend", sel.Kind())}
	}

	env, err := b.c.postJSON(ctx, region, appRunPath, appRunRequest{
		APIKey:       b.c.cfg.APIKey,
		WebappID:     sel.ID(),
		NodeInfoList: bindings,
	})
	if err != nil {
		return model.TaskHandle{}, err
	}

	var data appRunData
	if err := decodeData(env, &data); err != nil {
		return model.TaskHandle{}, err
	}
	if data.TaskID == "" {
		return model.TaskHandle{}, &UpstreamRejection{Code: env.Code, Message: "run response carried no task id"}
	}

	return model.TaskHandle{
		TaskID:  data.TaskID,
		Backend: sel,
		Kind:    model.KindApp,
		Region:  region,
	}, nil
}

// Status queries the hosted-app engine and normalizes the raw status. The
// data field is usually an object carrying the status string, but bare-string
// payloads occur too and must parse the same way.
func (b *AppBackend) Status(ctx context.Context, taskID string, region model.Region) (model.TaskStatus, string, error) {
	env, err := b.c.postJSON(ctx, region, appStatusPath, taskLookupRequest{APIKey: b.c.cfg.APIKey, TaskID: taskID})
	if err != nil {
		return "", "", err
	}

	raw, err := decodeStatus(env)
	if err != nil {
		return "", "", err
	}

	return model.NormalizeStatus(raw), env.Msg, nil
}

type appOutput struct {
	URL string `json:"url"`
}

// Result fetches the ordered output URLs of a succeeded app task.
func (b *AppBackend) Result(ctx context.Context, taskID string, region model.Region) (model.TaskResult, error) {
	env, err := b.c.postJSON(ctx, region, appOutputsPath, taskLookupRequest{APIKey: b.c.cfg.APIKey, TaskID: taskID})
	if err != nil {
		return model.TaskResult{}, err
	}

	var outputs []appOutput
	if err := decodeData(env, &outputs); err != nil {
		return model.TaskResult{}, err
	}

	result := model.TaskResult{Outputs: make([]string, 0, len(outputs))}
	for _, o := range outputs {
		result.Outputs = append(result.Outputs, o.URL)
	}
	return result, nil
}

// Cancel asks the hosted-app engine to stop a task. Repeat cancellation of
// a finished task answers code 0, so the call is idempotent.
func (b *AppBackend) Cancel(ctx context.Context, taskID string, region model.Region) (model.CancelOutcome, error) {
	env, err := b.c.postJSON(ctx, region, appCancelPath, taskLookupRequest{APIKey: b.c.cfg.APIKey, TaskID: taskID})
	if err != nil {
		return model.CancelOutcome{}, err
	}
	return model.CancelOutcome{OK: true, Message: env.Msg}, nil
}
