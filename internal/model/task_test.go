package model_test

import (
	"testing"

	"github.com/nkurosawa/taskrelay/internal/model"
)

func TestSelectorCarriesExactlyOneIdentifier(t *testing.T) {
	wf := model.WorkflowSelector("wf-123")
	if wf.Kind() != model.KindWorkflow {
		t.Errorf("Kind = %q, want %q", wf.Kind(), model.KindWorkflow)
	}
	if wf.ID() != "wf-123" {
		t.Errorf("ID = %q, want %q", wf.ID(), "wf-123")
	}

	app := model.AppSelector("app-9")
	if app.Kind() != model.KindApp {
		t.Errorf("Kind = %q, want %q", app.Kind(), model.KindApp)
	}
	if app.ID() != "app-9" {
		t.Errorf("ID = %q, want %q", app.ID(), "app-9")
	}
}

func TestKindOther(t *testing.T) {
	if model.KindWorkflow.Other() != model.KindApp {
		t.Error("workflow's alternate kind must be app")
	}
	if model.KindApp.Other() != model.KindWorkflow {
		t.Error("app's alternate kind must be workflow")
	}
}

func TestNormalizeStatus(t *testing.T) {
	tests := []struct {
		raw  string
		want model.TaskStatus
	}{
		{"QUEUED", model.StatusQueued},
		{"pending", model.StatusQueued},
		{"RUNNING", model.StatusRunning},
		{"processing", model.StatusRunning},
		{"SUCCESS", model.StatusSucceeded},
		{"COMPLETED", model.StatusSucceeded},
		{" succeed ", model.StatusSucceeded},
		{"FAILED", model.StatusFailed},
		{"error", model.StatusFailed},
		{"CANCELED", model.StatusCancelled},
		{"CANCELLED", model.StatusCancelled},
		// Unknown values fail open as running so one odd status string
		// cannot abort a task that is still processing.
		{"REBALANCING", model.StatusRunning},
		{"", model.StatusRunning},
	}

	for _, tt := range tests {
		if got := model.NormalizeStatus(tt.raw); got != tt.want {
			t.Errorf("NormalizeStatus(%q) = %q, want %q", tt.raw, got, tt.want)
		}
	}
}

func TestTerminalStatuses(t *testing.T) {
	terminal := []model.TaskStatus{model.StatusSucceeded, model.StatusFailed, model.StatusCancelled}
	for _, s := range terminal {
		if !s.Terminal() {
			t.Errorf("%q should be terminal", s)
		}
	}
	for _, s := range []model.TaskStatus{model.StatusQueued, model.StatusRunning} {
		if s.Terminal() {
			t.Errorf("%q should not be terminal", s)
		}
	}
}

func TestParseRegion(t *testing.T) {
	if model.ParseRegion("cn") != model.RegionCN {
		t.Error("cn should parse to the CN region")
	}
	if model.ParseRegion("CN") != model.RegionCN {
		t.Error("region parsing should be case-insensitive")
	}
	for _, s := range []string{"global", "", "us-east"} {
		if model.ParseRegion(s) != model.RegionGlobal {
			t.Errorf("ParseRegion(%q) should default to global", s)
		}
	}
}

func TestNewRequestIDUnique(t *testing.T) {
	a, b := model.NewRequestID(), model.NewRequestID()
	if a == "" || a == b {
		t.Errorf("request IDs must be non-empty and unique, got %q and %q", a, b)
	}
}
