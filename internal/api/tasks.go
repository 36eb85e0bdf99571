package api

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/nkurosawa/taskrelay/internal/binder"
	"github.com/nkurosawa/taskrelay/internal/model"
	"github.com/nkurosawa/taskrelay/internal/remote"
	"github.com/nkurosawa/taskrelay/internal/task"
)

const (
	// maxBodySize caps the whole multipart submission body.
	maxBodySize = 64 << 20 // 64 MB

	// multipartMemory is how much of the body is held in memory while
	// parsing; the rest spills to temp files.
	multipartMemory = 8 << 20
)

// Multipart form fields with reserved meaning on POST /v1/tasks. Every
// other form field is passed to the parameter binder as-is.
const (
	formTemplate   = "template"
	formWorkflowID = "workflow_id"
	formWebappID   = "webapp_id"
	formRegion     = "region"
	formFiles      = "files"
)

// statusResponse is the JSON body for GET /v1/tasks/{id}/status.
type statusResponse struct {
	TaskID  string           `json:"task_id"`
	Status  model.TaskStatus `json:"status"`
	Message string           `json:"message,omitempty"`
}

func (s *Server) handleCreateTask(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodySize)
	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid multipart body")
		return
	}
	defer func() {
		if err := r.MultipartForm.RemoveAll(); err != nil {
			s.logger.Error("cleanup multipart temp files", "error", err)
		}
	}()

	templateJSON := r.FormValue(formTemplate)
	if templateJSON == "" {
		s.writeError(w, http.StatusBadRequest, "template is required")
		return
	}
	var template []model.TemplateNode
	if err := json.Unmarshal([]byte(templateJSON), &template); err != nil {
		s.writeError(w, http.StatusBadRequest, "template is not valid JSON")
		return
	}
	for i, node := range template {
		if err := s.validate.Struct(node); err != nil {
			s.writeError(w, http.StatusBadRequest, "template entry "+strconv.Itoa(i)+" is malformed")
			return
		}
	}

	sel, ok := selectorFromForm(r.FormValue(formWorkflowID), r.FormValue(formWebappID))
	if !ok {
		s.writeError(w, http.StatusBadRequest, "exactly one of workflow_id and webapp_id is required")
		return
	}
	region := model.ParseRegion(r.FormValue(formRegion))

	// Upload raw assets in arrival order; the binder hands the k-th token
	// to the k-th image node.
	var assets []model.UploadedAsset
	for _, fh := range r.MultipartForm.File[formFiles] {
		f, err := fh.Open()
		if err != nil {
			s.writeError(w, http.StatusBadRequest, "unreadable file part "+fh.Filename)
			return
		}
		data, err := io.ReadAll(f)
		f.Close()
		if err != nil {
			s.writeError(w, http.StatusBadRequest, "unreadable file part "+fh.Filename)
			return
		}

		token, err := s.uploader.Upload(r.Context(), data, fh.Filename, region)
		if err != nil {
			s.writeTaskError(w, err)
			return
		}
		assets = append(assets, model.UploadedAsset{Filename: fh.Filename, Token: token})
	}

	fields := make(map[string]string, len(r.MultipartForm.Value))
	for key, values := range r.MultipartForm.Value {
		if key == formTemplate || key == formWorkflowID || key == formWebappID || key == formRegion {
			continue
		}
		if len(values) > 0 {
			fields[key] = values[0]
		}
	}

	bindings := binder.Bind(template, assets, fields, s.logger)

	handle, err := s.submitter.Submit(r.Context(), sel, bindings, region)
	if err != nil {
		s.writeTaskError(w, err)
		return
	}

	s.writeJSON(w, http.StatusAccepted, handle)
}

func (s *Server) handleTaskStatus(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	region := model.ParseRegion(r.URL.Query().Get(formRegion))

	status, msg, err := s.resolver.Status(r.Context(), id, region)
	if err != nil {
		s.writeTaskError(w, err)
		return
	}

	s.writeJSON(w, http.StatusOK, statusResponse{TaskID: id, Status: status, Message: msg})
}

func (s *Server) handleTaskResult(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	region := model.ParseRegion(r.URL.Query().Get(formRegion))

	result, err := s.resolver.Result(r.Context(), id, region)
	if err != nil {
		s.writeTaskError(w, err)
		return
	}

	s.writeJSON(w, http.StatusOK, result)
}

func (s *Server) handleTaskWait(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	q := r.URL.Query()
	region := model.ParseRegion(q.Get(formRegion))

	interval := s.poll.Interval
	if ms := parseIntQuery(q.Get("interval_ms")); ms > 0 {
		interval = time.Duration(ms) * time.Millisecond
	}
	attempts := s.poll.MaxAttempts
	if n := parseIntQuery(q.Get("max_attempts")); n > 0 {
		attempts = n
	}

	result, err := s.poller.WaitForCompletion(r.Context(), id, region, interval, attempts)
	if err != nil {
		s.writeTaskError(w, err)
		return
	}

	s.writeJSON(w, http.StatusOK, result)
}

func (s *Server) handleTaskCancel(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	region := model.ParseRegion(r.URL.Query().Get(formRegion))

	outcome, err := s.resolver.Cancel(r.Context(), id, region)
	if err != nil {
		s.writeTaskError(w, err)
		return
	}

	s.writeJSON(w, http.StatusOK, outcome)
}

// selectorFromForm builds the backend selector from the two identifier
// fields, requiring exactly one to be set.
func selectorFromForm(workflowID, webappID string) (model.BackendSelector, bool) {
	switch {
	case workflowID != "" && webappID == "":
		return model.WorkflowSelector(workflowID), true
	case webappID != "" && workflowID == "":
		return model.AppSelector(webappID), true
	default:
		return model.BackendSelector{}, false
	}
}

// writeTaskError translates the task-layer error taxonomy into HTTP. A poll
// timeout is reported as "still processing", never as task failure.
func (s *Server) writeTaskError(w http.ResponseWriter, err error) {
	var ve *remote.ValidationError
	if errors.As(err, &ve) {
		s.writeError(w, http.StatusBadRequest, ve.Reason)
		return
	}

	var term *task.TerminalError
	if errors.As(err, &term) {
		s.writeJSON(w, http.StatusConflict, map[string]string{
			"error":  "task ended without output",
			"status": string(term.Status),
			"detail": term.Message,
		})
		return
	}

	if errors.Is(err, task.ErrTimeoutExceeded) {
		s.writeJSON(w, http.StatusGatewayTimeout, map[string]string{
			"error": "task is still processing, retry later",
		})
		return
	}

	var ur *remote.UpstreamRejection
	if errors.As(err, &ur) {
		if ur.NotFound() {
			s.writeError(w, http.StatusNotFound, "task not found")
			return
		}
		s.logger.Error("upstream rejection", "code", ur.Code, "msg", ur.Message)
		s.writeError(w, http.StatusBadGateway, ur.Message)
		return
	}

	s.logger.Error("task operation failed", "error", err)
	s.writeError(w, http.StatusBadGateway, "provider unreachable")
}

// writeJSON writes a JSON response with the given status code.
func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Error("encode response", "error", err)
	}
}

// writeError writes a JSON error response.
func (s *Server) writeError(w http.ResponseWriter, status int, message string) {
	s.writeJSON(w, status, map[string]string{"error": message})
}

// parseIntQuery parses an integer query value, returning 0 when absent or
// malformed.
func parseIntQuery(s string) int {
	if s == "" {
		return 0
	}
	v, err := strconv.Atoi(s)
	if err != nil {
		return 0
	}
	return v
}
