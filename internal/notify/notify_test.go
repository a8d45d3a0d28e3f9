package notify

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestResend_Notify(t *testing.T) {
	var got resendRequest
	var auth string

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		auth = r.Header.Get("Authorization")
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Errorf("failed to decode request: %v", err)
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	n := NewResend("re_test_key", "Lecture QA <qa@example.edu>", "prof@example.edu")
	n.endpoint = srv.URL

	err := n.Notify(context.Background(), &Feedback{
		JobID:        "abc123",
		LectureTitle: "Linear Algebra Week 3",
		Question:     "What is an eigenvalue?",
		Answer:       "An eigenvalue scales its eigenvector.",
		TimestampSec: 125,
	})
	if err != nil {
		t.Fatalf("Notify failed: %v", err)
	}

	if auth != "Bearer re_test_key" {
		t.Errorf("unexpected auth header %q", auth)
	}
	if len(got.To) != 1 || got.To[0] != "prof@example.edu" {
		t.Errorf("unexpected recipients %v", got.To)
	}
	if got.Subject != "Student question on Linear Algebra Week 3" {
		t.Errorf("unexpected subject %q", got.Subject)
	}
	if !strings.Contains(got.HTML, "What is an eigenvalue?") {
		t.Errorf("question missing from body:\n%s", got.HTML)
	}
	if !strings.Contains(got.HTML, "02:05") {
		t.Errorf("formatted timestamp missing from body:\n%s", got.HTML)
	}
}

func TestResend_NotifyRejected(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnprocessableEntity)
	}))
	defer srv.Close()

	n := NewResend("re_test_key", "qa@example.edu", "prof@example.edu")
	n.endpoint = srv.URL

	err := n.Notify(context.Background(), &Feedback{JobID: "abc123", Question: "?"})
	if err == nil {
		t.Fatal("expected error for rejected notification")
	}
}

func TestResend_EscapesHTML(t *testing.T) {
	body := renderHTML(&Feedback{
		Question: "<script>alert(1)</script>",
	})
	if strings.Contains(body, "<script>") {
		t.Error("question was not escaped")
	}
}
