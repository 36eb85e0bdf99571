package api_test

import (
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/nkurosawa/taskrelay/internal/api"
	"github.com/nkurosawa/taskrelay/internal/model"
	"github.com/nkurosawa/taskrelay/internal/remote"
	"github.com/nkurosawa/taskrelay/internal/task"
)

var discard = slog.New(slog.NewTextHandler(io.Discard, nil))

// newTestServer wires the full orchestration stack against a fake provider
// deployment and returns the HTTP server under test.
func newTestServer(t *testing.T, provider http.Handler) *api.Server {
	t.Helper()
	ts := httptest.NewServer(provider)
	t.Cleanup(ts.Close)

	client := remote.NewClient(remote.Config{
		APIKey: "test-key",
		Regions: map[model.Region]remote.RegionConfig{
			model.RegionGlobal: {BaseDomain: ts.URL, HostHeader: "api.nodehub.ai"},
			model.RegionCN:     {BaseDomain: ts.URL, HostHeader: "api.nodehub.cn"},
		},
	}, discard)

	workflow := remote.NewWorkflowBackend(client)
	app := remote.NewAppBackend(client)
	submitter := task.NewSubmitter(workflow, app, discard)
	resolver := task.NewResolver(workflow, app, model.KindWorkflow, discard)
	poller := task.NewPoller(resolver, discard)

	return api.NewServer(":0", client, submitter, resolver, poller,
		api.PollDefaults{Interval: time.Millisecond, MaxAttempts: 3}, discard)
}

func envelope(w http.ResponseWriter, code int, msg string, data any) {
	payload, _ := json.Marshal(data)
	_ = json.NewEncoder(w).Encode(map[string]any{
		"code": code,
		"msg":  msg,
		"data": json.RawMessage(payload),
	})
}

// jpegBytes is a minimal payload that sniffs as image/jpeg.
func jpegBytes() []byte {
	return append([]byte{0xff, 0xd8, 0xff, 0xe0}, make([]byte, 16)...)
}

// multipartTask builds a POST /v1/tasks body with the given reserved
// fields, extra form fields, and one optional file.
func multipartTask(t *testing.T, fields map[string]string, filename string, file []byte) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for k, v := range fields {
		if err := mw.WriteField(k, v); err != nil {
			t.Fatalf("write field %q: %v", k, err)
		}
	}
	if filename != "" {
		part, err := mw.CreateFormFile("files", filename)
		if err != nil {
			t.Fatalf("create file part: %v", err)
		}
		if _, err := part.Write(file); err != nil {
			t.Fatalf("write file part: %v", err)
		}
	}
	if err := mw.Close(); err != nil {
		t.Fatalf("close multipart writer: %v", err)
	}
	return &buf, mw.FormDataContentType()
}

func TestCreateTaskUploadsBindsAndSubmits(t *testing.T) {
	var created struct {
		WorkflowID   string              `json:"workflowId"`
		NodeInfoList []model.NodeBinding `json:"nodeInfoList"`
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/task/openapi/upload", func(w http.ResponseWriter, r *http.Request) {
		envelope(w, 0, "", map[string]string{"fileName": "api/uploaded-cat.jpg"})
	})
	mux.HandleFunc("/task/openapi/create", func(w http.ResponseWriter, r *http.Request) {
		if err := json.NewDecoder(r.Body).Decode(&created); err != nil {
			t.Errorf("decode create body: %v", err)
		}
		envelope(w, 0, "", map[string]string{"taskId": "task-77"})
	})

	srv := newTestServer(t, mux)

	body, contentType := multipartTask(t, map[string]string{
		"template":    `[{"nodeId":"19","fieldName":"image","paramKey":"image_19"},{"nodeId":"20","fieldName":"prompt","paramKey":"prompt_20"}]`,
		"workflow_id": "wf-1",
		"region":      "global",
		"prompt_20":   "a cat in the rain",
	}, "cat.jpg", jpegBytes())

	req := httptest.NewRequest(http.MethodPost, "/v1/tasks", body)
	req.Header.Set("Content-Type", contentType)
	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, req)

	if rec.Code != http.StatusAccepted {
		t.Fatalf("status = %d, want 202; body: %s", rec.Code, rec.Body.String())
	}

	var handle model.TaskHandle
	if err := json.Unmarshal(rec.Body.Bytes(), &handle); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if handle.TaskID != "task-77" || handle.Kind != model.KindWorkflow {
		t.Errorf("unexpected handle: %+v", handle)
	}

	// The image node received the upload's file token, the prompt node its
	// form value.
	if created.WorkflowID != "wf-1" {
		t.Errorf("workflowId = %q, want %q", created.WorkflowID, "wf-1")
	}
	if len(created.NodeInfoList) != 2 {
		t.Fatalf("nodeInfoList length = %d, want 2", len(created.NodeInfoList))
	}
	if created.NodeInfoList[0].FieldValue != "api/uploaded-cat.jpg" {
		t.Errorf("image node bound to %q, want the upload token", created.NodeInfoList[0].FieldValue)
	}
	if created.NodeInfoList[1].FieldValue != "a cat in the rain" {
		t.Errorf("prompt node bound to %q", created.NodeInfoList[1].FieldValue)
	}
}

func TestCreateTaskRequiresExactlyOneIdentifier(t *testing.T) {
	srv := newTestServer(t, http.NotFoundHandler())

	for _, fields := range []map[string]string{
		{"template": `[]`},
		{"template": `[]`, "workflow_id": "wf-1", "webapp_id": "app-1"},
	} {
		body, contentType := multipartTask(t, fields, "", nil)
		req := httptest.NewRequest(http.MethodPost, "/v1/tasks", body)
		req.Header.Set("Content-Type", contentType)
		rec := httptest.NewRecorder()
		srv.Router().ServeHTTP(rec, req)

		if rec.Code != http.StatusBadRequest {
			t.Errorf("fields %v: status = %d, want 400", fields, rec.Code)
		}
	}
}

func TestCreateTaskRejectsMalformedTemplate(t *testing.T) {
	srv := newTestServer(t, http.NotFoundHandler())

	tests := []string{
		`not json`,
		`[{"fieldName":"image"}]`,
		`[{"nodeId":"1"}]`,
	}
	for _, template := range tests {
		body, contentType := multipartTask(t, map[string]string{
			"template":    template,
			"workflow_id": "wf-1",
		}, "", nil)
		req := httptest.NewRequest(http.MethodPost, "/v1/tasks", body)
		req.Header.Set("Content-Type", contentType)
		rec := httptest.NewRecorder()
		srv.Router().ServeHTTP(rec, req)

		if rec.Code != http.StatusBadRequest {
			t.Errorf("template %q: status = %d, want 400", template, rec.Code)
		}
	}
}

func TestCreateTaskRejectsBadUploadWithoutSubmitting(t *testing.T) {
	creates := 0
	mux := http.NewServeMux()
	mux.HandleFunc("/task/openapi/create", func(w http.ResponseWriter, r *http.Request) {
		creates++
	})
	srv := newTestServer(t, mux)

	body, contentType := multipartTask(t, map[string]string{
		"template":    `[{"nodeId":"19","fieldName":"image","paramKey":"image_19"}]`,
		"workflow_id": "wf-1",
	}, "payload.exe", []byte("MZ\x90\x00"))

	req := httptest.NewRequest(http.MethodPost, "/v1/tasks", body)
	req.Header.Set("Content-Type", contentType)
	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400; body: %s", rec.Code, rec.Body.String())
	}
	if creates != 0 {
		t.Errorf("task was submitted despite a rejected upload")
	}
}

func TestStatusRouteFallsBackAcrossKinds(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/task/openapi/status", func(w http.ResponseWriter, r *http.Request) {
		// Workflow engine does not know this task.
		envelope(w, 803, "task not found", nil)
	})
	mux.HandleFunc("/task/openapi/ai-app/status", func(w http.ResponseWriter, r *http.Request) {
		envelope(w, 0, "", map[string]string{"status": "SUCCESS"})
	})
	srv := newTestServer(t, mux)

	req := httptest.NewRequest(http.MethodGet, "/v1/tasks/task-5/status?region=global", nil)
	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200; body: %s", rec.Code, rec.Body.String())
	}
	var resp struct {
		Status model.TaskStatus `json:"status"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.Status != model.StatusSucceeded {
		t.Errorf("status = %q, want %q", resp.Status, model.StatusSucceeded)
	}
}

func TestResultRouteReturnsNotFoundWhenNoKindKnowsTheTask(t *testing.T) {
	mux := http.NewServeMux()
	notFound := func(w http.ResponseWriter, r *http.Request) {
		envelope(w, 804, "no such task", nil)
	}
	mux.HandleFunc("/task/openapi/outputs", notFound)
	mux.HandleFunc("/task/openapi/ai-app/outputs", notFound)
	srv := newTestServer(t, mux)

	req := httptest.NewRequest(http.MethodGet, "/v1/tasks/ghost/result", nil)
	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404; body: %s", rec.Code, rec.Body.String())
	}
}

func TestWaitRouteReportsStillProcessingOnTimeout(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/task/openapi/status", func(w http.ResponseWriter, r *http.Request) {
		envelope(w, 0, "", "RUNNING")
	})
	srv := newTestServer(t, mux)

	req := httptest.NewRequest(http.MethodGet, "/v1/tasks/task-5/wait?interval_ms=1&max_attempts=2", nil)
	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, req)

	if rec.Code != http.StatusGatewayTimeout {
		t.Fatalf("status = %d, want 504; body: %s", rec.Code, rec.Body.String())
	}
	if !bytes.Contains(rec.Body.Bytes(), []byte("still processing")) {
		t.Errorf("timeout body should say the task is still processing: %s", rec.Body.String())
	}
}

func TestWaitRouteReturnsOutputs(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/task/openapi/status", func(w http.ResponseWriter, r *http.Request) {
		envelope(w, 0, "", "SUCCESS")
	})
	mux.HandleFunc("/task/openapi/outputs", func(w http.ResponseWriter, r *http.Request) {
		envelope(w, 0, "", []map[string]string{{"fileUrl": "https://cdn.example/out.png"}})
	})
	srv := newTestServer(t, mux)

	req := httptest.NewRequest(http.MethodGet, "/v1/tasks/task-5/wait", nil)
	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200; body: %s", rec.Code, rec.Body.String())
	}
	var result model.TaskResult
	if err := json.Unmarshal(rec.Body.Bytes(), &result); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if len(result.Outputs) != 1 || result.Outputs[0] != "https://cdn.example/out.png" {
		t.Errorf("Outputs = %v", result.Outputs)
	}
}

func TestCancelRoute(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/task/openapi/cancel", func(w http.ResponseWriter, r *http.Request) {
		envelope(w, 0, "canceled", nil)
	})
	srv := newTestServer(t, mux)

	req := httptest.NewRequest(http.MethodPost, "/v1/tasks/task-5/cancel", nil)
	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200; body: %s", rec.Code, rec.Body.String())
	}
	var outcome model.CancelOutcome
	if err := json.Unmarshal(rec.Body.Bytes(), &outcome); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if !outcome.OK {
		t.Error("cancel should report ok")
	}
}

func TestHealthz(t *testing.T) {
	srv := newTestServer(t, http.NotFoundHandler())

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
}
