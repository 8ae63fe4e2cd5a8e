package server

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/deepscout/deepscout/internal/testutil"
	"github.com/deepscout/deepscout/pkg/agent"
	"github.com/deepscout/deepscout/pkg/domain"
	"github.com/deepscout/deepscout/pkg/pipeline"
	"github.com/deepscout/deepscout/pkg/state"
)

const (
	triageValid   = `{"status":"valid","reasoning":"ok","clarification_question":""}`
	triageUnclear = `{"status":"needs_clarification","reasoning":"vague","clarification_question":"Which aspect?"}`

	planJSON = `{"topics":[{"title":"Basics","questions":["What is it?"]}]}`
)

func testClient(triage string) *testutil.MockModelClient {
	client := testutil.NewMockModelClient()
	client.CompleteFunc = func(ctx context.Context, req domain.CompletionRequest) (*domain.Completion, error) {
		content := "a summary"
		if req.Schema != nil {
			switch req.Schema.Name {
			case "triage_decision":
				content = triage
			case "research_plan":
				content = planJSON
			}
		} else if strings.Contains(req.System, "report writer") {
			content = "# Report\n\nBody."
		}
		return &domain.Completion{Content: content}, nil
	}
	return client
}

func testHandler(client *testutil.MockModelClient) (*ResearchHandler, *pipeline.Store) {
	orch := pipeline.New(pipeline.Config{SkipGapAnalysis: true},
		agent.NewQueryValidator(client),
		agent.NewResearchPlanner(client),
		agent.NewSearchExecutor(client, testutil.NewMockSearcher(), 5),
		agent.NewGapAnalyzer(client),
		agent.NewReportSynthesizer(client),
	)
	store := pipeline.NewStore()
	return NewResearchHandler(orch, store), store
}

func jsonRequest(method, target, body string) *http.Request {
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	return req
}

func waitDone(t *testing.T, run *pipeline.Run) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), testutil.TestTimeout)
	defer cancel()
	if err := run.Wait(ctx); err != nil {
		t.Fatalf("run failed: %v", err)
	}
}

func waitStage(t *testing.T, run *pipeline.Run, stage domain.Stage) {
	t.Helper()
	deadline := time.After(testutil.TestTimeout)
	for {
		select {
		case ev, ok := <-run.Events():
			if !ok {
				t.Fatalf("events closed before stage %v", stage)
			}
			if ev.Stage == stage {
				return
			}
		case <-deadline:
			t.Fatalf("timed out waiting for stage %v", stage)
		}
	}
}

func TestStartResearch(t *testing.T) {
	e := echo.New()
	h, store := testHandler(testClient(triageValid))

	req := jsonRequest(http.MethodPost, "/api/research", `{"topic":"quantum computing"}`)
	rec := httptest.NewRecorder()
	ctx := e.NewContext(req, rec)

	if err := h.start(ctx); err != nil {
		t.Fatalf("start: %v", err)
	}
	if rec.Code != http.StatusAccepted {
		t.Fatalf("expected 202, got %d", rec.Code)
	}

	var resp startResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.RunID == "" {
		t.Fatal("response has no run_id")
	}

	run, err := store.Get(resp.RunID)
	if err != nil {
		t.Fatalf("run not registered: %v", err)
	}
	waitDone(t, run)
}

func TestStartResearch_MissingTopic(t *testing.T) {
	e := echo.New()
	h, _ := testHandler(testClient(triageValid))

	req := jsonRequest(http.MethodPost, "/api/research", `{}`)
	rec := httptest.NewRecorder()

	err := h.start(e.NewContext(req, rec))
	he, ok := err.(*echo.HTTPError)
	if !ok || he.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 error, got %v", err)
	}
}

func TestGetResearch(t *testing.T) {
	e := echo.New()
	h, store := testHandler(testClient(triageValid))

	run := h.orch.Start(context.Background(), "quantum computing")
	if err := store.Add(run); err != nil {
		t.Fatalf("Add: %v", err)
	}
	waitDone(t, run)

	req := httptest.NewRequest(http.MethodGet, "/api/research/"+run.ID(), nil)
	rec := httptest.NewRecorder()
	ctx := e.NewContext(req, rec)
	ctx.SetParamNames("id")
	ctx.SetParamValues(run.ID())

	if err := h.get(ctx); err != nil {
		t.Fatalf("get: %v", err)
	}
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}

	var snap state.Snapshot
	if err := json.Unmarshal(rec.Body.Bytes(), &snap); err != nil {
		t.Fatalf("decode snapshot: %v", err)
	}
	if snap.Stage != domain.StageDone {
		t.Errorf("stage = %v, want done", snap.Stage)
	}
	if len(snap.Findings) == 0 {
		t.Error("snapshot has no findings")
	}
}

func TestGetResearch_NotFound(t *testing.T) {
	e := echo.New()
	h, _ := testHandler(testClient(triageValid))

	req := httptest.NewRequest(http.MethodGet, "/api/research/nope", nil)
	rec := httptest.NewRecorder()
	ctx := e.NewContext(req, rec)
	ctx.SetParamNames("id")
	ctx.SetParamValues("nope")

	err := h.get(ctx)
	he, ok := err.(*echo.HTTPError)
	if !ok || he.Code != http.StatusNotFound {
		t.Fatalf("expected 404 error, got %v", err)
	}
}

func TestClarifyResearch(t *testing.T) {
	e := echo.New()

	// First triage asks for clarification, the second accepts
	calls := 0
	client := testutil.NewMockModelClient()
	client.CompleteFunc = func(ctx context.Context, req domain.CompletionRequest) (*domain.Completion, error) {
		content := "a summary"
		if req.Schema != nil {
			switch req.Schema.Name {
			case "triage_decision":
				calls++
				if calls == 1 {
					content = triageUnclear
				} else {
					content = triageValid
				}
			case "research_plan":
				content = planJSON
			}
		} else if strings.Contains(req.System, "report writer") {
			content = "# Report"
		}
		return &domain.Completion{Content: content}, nil
	}

	h, store := testHandler(client)
	run := h.orch.Start(context.Background(), "AI")
	if err := store.Add(run); err != nil {
		t.Fatalf("Add: %v", err)
	}
	waitStage(t, run, domain.StageAwaitingClarification)

	req := jsonRequest(http.MethodPost, "/api/research/"+run.ID()+"/clarify", `{"answer":"AI in healthcare"}`)
	rec := httptest.NewRecorder()
	ctx := e.NewContext(req, rec)
	ctx.SetParamNames("id")
	ctx.SetParamValues(run.ID())

	if err := h.clarify(ctx); err != nil {
		t.Fatalf("clarify: %v", err)
	}
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}

	waitDone(t, run)
	if got := run.Snapshot().Topic; !strings.Contains(got, "AI in healthcare") {
		t.Errorf("topic = %q, want it refined with the clarification", got)
	}
}

func TestClarifyResearch_NotSuspended(t *testing.T) {
	e := echo.New()
	h, store := testHandler(testClient(triageValid))

	run := h.orch.Start(context.Background(), "quantum computing")
	if err := store.Add(run); err != nil {
		t.Fatalf("Add: %v", err)
	}
	waitDone(t, run)

	req := jsonRequest(http.MethodPost, "/api/research/"+run.ID()+"/clarify", `{"answer":"whatever"}`)
	rec := httptest.NewRecorder()
	ctx := e.NewContext(req, rec)
	ctx.SetParamNames("id")
	ctx.SetParamValues(run.ID())

	err := h.clarify(ctx)
	he, ok := err.(*echo.HTTPError)
	if !ok || he.Code != http.StatusConflict {
		t.Fatalf("expected 409 error, got %v", err)
	}
}

func TestGetReport(t *testing.T) {
	e := echo.New()
	h, store := testHandler(testClient(triageValid))

	run := h.orch.Start(context.Background(), "quantum computing")
	if err := store.Add(run); err != nil {
		t.Fatalf("Add: %v", err)
	}
	waitDone(t, run)

	req := httptest.NewRequest(http.MethodGet, "/api/research/"+run.ID()+"/report", nil)
	rec := httptest.NewRecorder()
	ctx := e.NewContext(req, rec)
	ctx.SetParamNames("id")
	ctx.SetParamValues(run.ID())

	if err := h.getReport(ctx); err != nil {
		t.Fatalf("getReport: %v", err)
	}
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}

	var resp reportResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.Report == nil || resp.Report.Body == "" {
		t.Error("report body is empty")
	}
}

func TestGetReport_StillRunning(t *testing.T) {
	e := echo.New()
	h, store := testHandler(testClient(triageUnclear))

	run := h.orch.Start(context.Background(), "vague")
	if err := store.Add(run); err != nil {
		t.Fatalf("Add: %v", err)
	}
	waitStage(t, run, domain.StageAwaitingClarification)

	req := httptest.NewRequest(http.MethodGet, "/api/research/"+run.ID()+"/report", nil)
	rec := httptest.NewRecorder()
	ctx := e.NewContext(req, rec)
	ctx.SetParamNames("id")
	ctx.SetParamValues(run.ID())

	err := h.getReport(ctx)
	he, ok := err.(*echo.HTTPError)
	if !ok || he.Code != http.StatusConflict {
		t.Fatalf("expected 409 error, got %v", err)
	}
}

func TestForceReport_AlreadyFinished(t *testing.T) {
	e := echo.New()
	h, store := testHandler(testClient(triageValid))

	run := h.orch.Start(context.Background(), "quantum computing")
	if err := store.Add(run); err != nil {
		t.Fatalf("Add: %v", err)
	}
	waitDone(t, run)

	req := jsonRequest(http.MethodPost, "/api/research/"+run.ID()+"/report", "")
	rec := httptest.NewRecorder()
	ctx := e.NewContext(req, rec)
	ctx.SetParamNames("id")
	ctx.SetParamValues(run.ID())

	err := h.forceReport(ctx)
	he, ok := err.(*echo.HTTPError)
	if !ok || he.Code != http.StatusConflict {
		t.Fatalf("expected 409 error, got %v", err)
	}
}

func TestEvents(t *testing.T) {
	e := echo.New()
	h, store := testHandler(testClient(triageValid))

	run := h.orch.Start(context.Background(), "quantum computing")
	if err := store.Add(run); err != nil {
		t.Fatalf("Add: %v", err)
	}
	waitDone(t, run)

	req := httptest.NewRequest(http.MethodGet, "/api/research/"+run.ID()+"/events", nil)
	rec := httptest.NewRecorder()
	ctx := e.NewContext(req, rec)
	ctx.SetParamNames("id")
	ctx.SetParamValues(run.ID())

	if err := h.events(ctx); err != nil {
		t.Fatalf("events: %v", err)
	}

	var events []pipeline.Event
	if err := json.Unmarshal(rec.Body.Bytes(), &events); err != nil {
		t.Fatalf("decode events: %v", err)
	}
	if len(events) == 0 {
		t.Fatal("event log is empty")
	}
	if events[len(events)-1].Stage != domain.StageDone {
		t.Errorf("last stage = %v, want done", events[len(events)-1].Stage)
	}
}

func TestListResearch(t *testing.T) {
	e := echo.New()
	h, store := testHandler(testClient(triageValid))

	run := h.orch.Start(context.Background(), "quantum computing")
	if err := store.Add(run); err != nil {
		t.Fatalf("Add: %v", err)
	}
	waitDone(t, run)

	req := httptest.NewRequest(http.MethodGet, "/api/research", nil)
	rec := httptest.NewRecorder()

	if err := h.list(e.NewContext(req, rec)); err != nil {
		t.Fatalf("list: %v", err)
	}

	var snaps []state.Snapshot
	if err := json.Unmarshal(rec.Body.Bytes(), &snaps); err != nil {
		t.Fatalf("decode list: %v", err)
	}
	if len(snaps) != 1 {
		t.Fatalf("listed %d runs, want 1", len(snaps))
	}
}
