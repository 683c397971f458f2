package remote

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/eventcompass/eventcompass/internal/model"
)

func TestCreateMemberDecodesCanonicalRecord(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/members" {
			t.Errorf("Unexpected request: %s %s", r.Method, r.URL.Path)
		}
		var in model.MemberInput
		if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
			t.Errorf("Failed to decode body: %v", err)
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(model.Member{ID: 57, Name: in.Name, Part: in.Part, Position: in.Position})
	}))
	defer srv.Close()

	client := New(srv.URL, nil)
	created, err := client.CreateMember(context.Background(), model.MemberInput{Name: "Aoi", Part: "stage", Position: "lead"})
	if err != nil {
		t.Fatalf("CreateMember failed: %v", err)
	}
	if created.ID != 57 {
		t.Errorf("Expected server id 57, got %d", created.ID)
	}
	if created.Name != "Aoi" {
		t.Errorf("Name lost: %q", created.Name)
	}
}

func TestNon2xxBecomesNetworkError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "member not found", http.StatusNotFound)
	}))
	defer srv.Close()

	client := New(srv.URL, nil)
	_, err := client.UpdateMember(context.Background(), 99, model.MemberUpdate{})
	var nerr *model.NetworkError
	if !errors.As(err, &nerr) {
		t.Fatalf("Expected NetworkError, got %T: %v", err, err)
	}
	if nerr.Status != http.StatusNotFound {
		t.Errorf("Expected status 404, got %d", nerr.Status)
	}
	if nerr.Body != "member not found" {
		t.Errorf("Expected response body in error, got %q", nerr.Body)
	}
}

func TestTransportFailureBecomesNetworkError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	srv.Close() // refuse all connections

	client := New(srv.URL, nil)
	err := client.Health(context.Background())
	var nerr *model.NetworkError
	if !errors.As(err, &nerr) {
		t.Fatalf("Expected NetworkError, got %T: %v", err, err)
	}
	if nerr.Status != 0 {
		t.Errorf("Transport failures must carry no HTTP status, got %d", nerr.Status)
	}
	if nerr.Err == nil {
		t.Error("Transport failure must wrap the underlying error")
	}
}

func TestDeleteAcceptsEmptyBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodDelete || r.URL.Path != "/tasks/5" {
			t.Errorf("Unexpected request: %s %s", r.Method, r.URL.Path)
		}
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	client := New(srv.URL, nil)
	if err := client.DeleteTask(context.Background(), 5); err != nil {
		t.Fatalf("DeleteTask failed: %v", err)
	}
}

func TestTasksAreScheduleScoped(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/schedules/44/tasks" {
			t.Errorf("Unexpected path: %s", r.URL.Path)
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode([]model.Task{{ID: 1, ScheduleID: 44, Name: "Rig"}})
	}))
	defer srv.Close()

	client := New(srv.URL, nil)
	tasks, err := client.ListTasks(context.Background(), 44)
	if err != nil {
		t.Fatalf("ListTasks failed: %v", err)
	}
	if len(tasks) != 1 || tasks[0].Name != "Rig" {
		t.Errorf("Unexpected tasks: %+v", tasks)
	}
}

func TestSetBaseURLRepoints(t *testing.T) {
	var hits int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits++
	}))
	defer srv.Close()

	client := New("http://localhost:1", nil)
	client.SetBaseURL(srv.URL + "/")
	if client.BaseURL() != srv.URL {
		t.Errorf("Trailing slash not trimmed: %q", client.BaseURL())
	}
	if err := client.Health(context.Background()); err != nil {
		t.Fatalf("Health after repoint failed: %v", err)
	}
	if hits != 1 {
		t.Errorf("Expected 1 request to the new backend, got %d", hits)
	}
}
