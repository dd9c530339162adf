package cli

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
)

func newTestAPI(t *testing.T) (*httptest.Server, *CreateRunRequest) {
	t.Helper()
	var received CreateRunRequest

	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/v1/tasks", func(w http.ResponseWriter, _ *http.Request) {
		w.Write([]byte(`{"data": [{"name": "test", "steps": ["jshint", "@default"], "running": true}], "total": 1}`))
	})
	mux.HandleFunc("GET /api/v1/tasks/{name}", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"data": {"name": "` + r.PathValue("name") + `", "steps": ["@default", "qunit"], "plan": ["githooks", "uglify", "qunit"]}}`))
	})
	mux.HandleFunc("GET /api/v1/schedules", func(w http.ResponseWriter, _ *http.Request) {
		w.Write([]byte(`{"data": [{"name": "nightly", "task": "test", "cron_expr": "0 3 * * *", "enabled": true}]}`))
	})
	mux.HandleFunc("POST /api/v1/tasks/{name}/runs", func(w http.ResponseWriter, r *http.Request) {
		if r.PathValue("name") == "busy" {
			w.WriteHeader(http.StatusConflict)
			w.Write([]byte(`{"error": {"code": "CONFLICT", "message": "task is already running: busy"}}`))
			return
		}
		json.NewDecoder(r.Body).Decode(&received)
		w.WriteHeader(http.StatusAccepted)
		w.Write([]byte(`{"data": {"id": "0b7e", "task": "` + r.PathValue("name") + `", "status": "PENDING", "plan": ["jshint", "qunit"]}}`))
	})
	mux.HandleFunc("GET /api/v1/runs", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("task") != "test" || r.URL.Query().Get("limit") != "5" {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		w.Write([]byte(`{"data": [{"id": "1", "task": "test", "status": "FAILED", "failed_step": "qunit"}], "total": 1}`))
	})

	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv, &received
}

func TestClient_ListTasks(t *testing.T) {
	srv, _ := newTestAPI(t)

	tasks, err := NewClient(srv.URL + "/").ListTasks(context.Background())
	if err != nil {
		t.Fatalf("list tasks: %v", err)
	}
	if len(tasks) != 1 || tasks[0].Name != "test" || !tasks[0].Running || tasks[0].Steps[1] != "@default" {
		t.Errorf("unexpected tasks: %+v", tasks)
	}
}

func TestClient_StartRun(t *testing.T) {
	srv, received := newTestAPI(t)
	client := NewClient(srv.URL)

	run, err := client.StartRun(context.Background(), "release", CreateRunRequest{Options: map[string]string{"tag": "v1.0.0"}})
	if err != nil {
		t.Fatalf("start run: %v", err)
	}
	if run.Task != "release" || run.Status != "PENDING" || len(run.Plan) != 2 {
		t.Errorf("unexpected run: %+v", run)
	}
	if received.Options["tag"] != "v1.0.0" {
		t.Errorf("options were not sent: %+v", received)
	}

	_, err = client.StartRun(context.Background(), "busy", CreateRunRequest{})
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected APIError, got %v", err)
	}
	if apiErr.Status != http.StatusConflict || apiErr.Code != "CONFLICT" {
		t.Errorf("unexpected error: %+v", apiErr)
	}
}

func TestClient_ListRuns(t *testing.T) {
	srv, _ := newTestAPI(t)

	runs, err := NewClient(srv.URL).ListRuns(context.Background(), ListRunsOpts{Task: "test", Limit: 5})
	if err != nil {
		t.Fatalf("list runs: %v", err)
	}
	if len(runs) != 1 || runs[0].FailedStep != "qunit" {
		t.Errorf("unexpected runs: %+v", runs)
	}
}

func TestClient_ErrorWithoutBody(t *testing.T) {
	srv, _ := newTestAPI(t)

	_, err := NewClient(srv.URL).GetRun(context.Background(), "missing")
	var apiErr *APIError
	if !errors.As(err, &apiErr) || apiErr.Status != http.StatusNotFound {
		t.Fatalf("expected 404 APIError, got %v", err)
	}
	if apiErr.Error() != "API error: HTTP 404" {
		t.Errorf("unexpected message: %s", apiErr.Error())
	}
}

func TestClient_GetTaskAndSchedules(t *testing.T) {
	srv, _ := newTestAPI(t)
	client := NewClient(srv.URL)

	task, err := client.GetTask(context.Background(), "ci")
	if err != nil {
		t.Fatalf("get task: %v", err)
	}
	if task.Name != "ci" || len(task.Plan) != 3 || task.Plan[0] != "githooks" {
		t.Errorf("unexpected task: %+v", task)
	}

	schedules, err := client.ListSchedules(context.Background())
	if err != nil {
		t.Fatalf("list schedules: %v", err)
	}
	if len(schedules) != 1 || schedules[0].CronExpr != "0 3 * * *" || !schedules[0].Enabled {
		t.Errorf("unexpected schedules: %+v", schedules)
	}
}
