package health

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestLivenessHandler(t *testing.T) {
	checker := NewChecker(&CheckerConfig{Version: "test"})
	handler := NewHandler(checker)

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	w := httptest.NewRecorder()

	handler.LivenessHandler(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}

	var resp HealthResponse
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if resp.Status != StatusHealthy {
		t.Errorf("expected healthy, got %s", resp.Status)
	}
	if resp.Version != "test" {
		t.Errorf("expected version test, got %s", resp.Version)
	}
}

func TestDeepCheck_DataDir(t *testing.T) {
	checker := NewChecker(&CheckerConfig{DataDir: t.TempDir()})

	resp := checker.DeepCheck(context.Background())

	if resp.Status != StatusHealthy {
		t.Fatalf("expected healthy, got %s", resp.Status)
	}
	comp, ok := resp.Components["data_dir"]
	if !ok {
		t.Fatal("expected data_dir component")
	}
	if comp.Status != StatusHealthy {
		t.Errorf("expected data_dir healthy, got %s: %s", comp.Status, comp.Message)
	}
}

func TestDeepCheck_MissingTool(t *testing.T) {
	checker := NewChecker(&CheckerConfig{
		YtdlpPath: "definitely-not-a-real-binary-for-tests",
	})

	resp := checker.DeepCheck(context.Background())

	if resp.Status != StatusUnhealthy {
		t.Fatalf("expected unhealthy, got %s", resp.Status)
	}
	comp := resp.Components["ytdlp"]
	if comp.Status != StatusUnhealthy {
		t.Errorf("expected ytdlp unhealthy, got %s", comp.Status)
	}
}

func TestDeepCheck_StorageFailure(t *testing.T) {
	checker := NewChecker(&CheckerConfig{
		StorageCheck: func(ctx context.Context) error {
			return errors.New("connection refused")
		},
	})

	resp := checker.DeepCheck(context.Background())

	if resp.Status != StatusUnhealthy {
		t.Fatalf("expected unhealthy, got %s", resp.Status)
	}
}

func TestReadinessHandler_Unhealthy(t *testing.T) {
	checker := NewChecker(&CheckerConfig{
		StorageCheck: func(ctx context.Context) error {
			return errors.New("connection refused")
		},
	})
	handler := NewHandler(checker)

	req := httptest.NewRequest(http.MethodGet, "/health?deep=true", nil)
	w := httptest.NewRecorder()

	handler.HealthHandler(w, req)

	if w.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d", w.Code)
	}
}

func TestDeepCheck_SkipsUnconfiguredBackends(t *testing.T) {
	checker := NewChecker(&CheckerConfig{DataDir: t.TempDir()})

	resp := checker.DeepCheck(context.Background())

	for _, name := range []string{"database", "redis", "storage"} {
		if _, ok := resp.Components[name]; ok {
			t.Errorf("did not expect %s component when unconfigured", name)
		}
	}
}
