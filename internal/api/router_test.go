package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/Harshitk-cp/storybrain/internal/domain"
	"github.com/Harshitk-cp/storybrain/internal/graph"
	"github.com/Harshitk-cp/storybrain/internal/service"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// stubAnalyzer answers Analyze with a fixed result and every other call with
// nothing. With partial set, the result comes back alongside err.
type stubAnalyzer struct {
	err     error
	partial bool
}

func (s *stubAnalyzer) Analyze(ctx context.Context, projectID uuid.UUID, text string) (*service.AnalysisResult, error) {
	if s.err != nil && !s.partial {
		return nil, s.err
	}
	return &service.AnalysisResult{
		ProjectID: projectID,
		Actions:   []domain.Triple{{Subject: "Sarah", Relation: "HAND", Object: "the key", Sentence: text}},
	}, s.err
}

func (s *stubAnalyzer) SaveDraft(ctx context.Context, projectID uuid.UUID, text string) (*domain.NarrativeChunk, []domain.Warning, error) {
	return &domain.NarrativeChunk{ProjectID: projectID, Content: text, ChunkIndex: 1}, nil, nil
}

func (s *stubAnalyzer) SeedEntities(ctx context.Context, projectID uuid.UUID, seeds []service.SeedEntity) ([]domain.Entity, error) {
	return nil, nil
}

func (s *stubAnalyzer) Entities(ctx context.Context, projectID uuid.UUID) ([]domain.Entity, error) {
	return nil, nil
}

func (s *stubAnalyzer) UpdateEntityMetadata(ctx context.Context, projectID, entityID uuid.UUID, metadata map[string]any) (*domain.Entity, error) {
	return nil, service.ErrEntityNotFound
}

func (s *stubAnalyzer) StoryBrain(ctx context.Context, projectID uuid.UUID) (*service.StoryBrain, error) {
	return &service.StoryBrain{ProjectID: projectID}, nil
}

func (s *stubAnalyzer) Facts(ctx context.Context, projectID uuid.UUID) ([]domain.AcceptedFact, error) {
	return nil, nil
}

func (s *stubAnalyzer) ObjectsFor(ctx context.Context, projectID uuid.UUID, subject, relation string) ([]string, error) {
	return nil, nil
}

func (s *stubAnalyzer) CheckFact(ctx context.Context, projectID uuid.UUID, subject, relation, object string) (*domain.Conflict, error) {
	return nil, nil
}

type stubReviewer struct{}

func (stubReviewer) Pending(ctx context.Context, projectID uuid.UUID, limit int) ([]domain.ConflictLog, error) {
	return nil, nil
}

func (stubReviewer) ProcessPending(ctx context.Context, projectID uuid.UUID) ([]domain.Alert, error) {
	return nil, nil
}

func (stubReviewer) Resolve(ctx context.Context, projectID, logID uuid.UUID, status domain.ConflictStatus) (*domain.ConflictLog, error) {
	return nil, service.ErrConflictNotFound
}

type stubSummarizer struct{}

func (stubSummarizer) Refresh(ctx context.Context, projectID, entityID uuid.UUID) (*domain.Entity, error) {
	return nil, service.ErrNotCharacter
}

type pingerFunc func(ctx context.Context) error

func (f pingerFunc) Ping(ctx context.Context) error { return f(ctx) }

func testApp(t *testing.T, deps Deps) (*App, *httptest.Server) {
	t.Helper()
	if deps.Analysis == nil {
		deps.Analysis = &stubAnalyzer{}
	}
	if deps.Conflicts == nil {
		deps.Conflicts = stubReviewer{}
	}
	if deps.Summaries == nil {
		deps.Summaries = stubSummarizer{}
	}
	app := newApp(deps, zap.NewNop())
	srv := httptest.NewServer(app.Router)
	t.Cleanup(srv.Close)
	return app, srv
}

func TestHealth(t *testing.T) {
	_, srv := testApp(t, Deps{DB: pingerFunc(func(context.Context) error { return nil })})
	resp, err := http.Get(srv.URL + "/health")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	_, down := testApp(t, Deps{DB: pingerFunc(func(context.Context) error { return errors.New("db down") })})
	resp, err = http.Get(down.URL + "/health")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
}

func TestMetricsCountsRequests(t *testing.T) {
	_, srv := testApp(t, Deps{Sessions: func() int { return 3 }})
	pid := uuid.NewString()

	resp, err := http.Post(srv.URL+"/v1/projects/"+pid+"/chunks", "application/json", strings.NewReader(`{"content":"Draft"}`))
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusCreated, resp.StatusCode)

	resp, err = http.Post(srv.URL+"/v1/projects/"+pid+"/conflicts/"+uuid.NewString()+"/resolve", "application/json", strings.NewReader(`{"status":"RESOLVED"}`))
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp, err = http.Get(srv.URL + "/metrics")
	require.NoError(t, err)
	defer resp.Body.Close()

	var body struct {
		Requests struct {
			Requests     int64 `json:"request_count"`
			ClientErrors int64 `json:"client_error_count"`
		} `json:"requests"`
		Sessions int               `json:"graph_sessions"`
		Build    struct {
			Version   string `json:"version"`
			GoVersion string `json:"go_version"`
		} `json:"build"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, int64(3), body.Requests.Requests)
	assert.Equal(t, int64(1), body.Requests.ClientErrors)
	assert.Equal(t, 3, body.Sessions)
	assert.Equal(t, "dev", body.Build.Version)
	assert.NotEmpty(t, body.Build.GoVersion)
}

func TestAPIKeyRequired(t *testing.T) {
	_, srv := testApp(t, Deps{APIKey: "s3cret"})
	url := srv.URL + "/v1/projects/" + uuid.NewString() + "/story-brain"

	resp, err := http.Get(url)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	req, _ := http.NewRequest(http.MethodGet, url, nil)
	req.Header.Set("Authorization", "Bearer s3cret")
	resp, err = http.DefaultClient.Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp, err = http.Get(srv.URL + "/health")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode, "health stays open")
}

func dialEditor(t *testing.T, srv *httptest.Server, query string) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws/editor" + query
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

type editorReply struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
	Detail  string          `json:"detail"`
}

func roundTrip(t *testing.T, conn *websocket.Conn, msg string) editorReply {
	t.Helper()
	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte(msg)))
	var reply editorReply
	require.NoError(t, conn.ReadJSON(&reply))
	return reply
}

func TestEditorWebsocket(t *testing.T) {
	_, srv := testApp(t, Deps{})
	conn := dialEditor(t, srv, "")
	pid := uuid.NewString()

	assert.Equal(t, "pong", roundTrip(t, conn, `{"type":"ping"}`).Type)

	reply := roundTrip(t, conn, `{"type":"analyze","project_id":"`+pid+`","content":"Sarah handed the key to John."}`)
	require.Equal(t, "analysis", reply.Type)
	var result service.AnalysisResult
	require.NoError(t, json.Unmarshal(reply.Payload, &result))
	require.Len(t, result.Actions, 1)
	assert.Equal(t, "HAND", result.Actions[0].Relation)

	reply = roundTrip(t, conn, `not json`)
	assert.Equal(t, "error", reply.Type)
	assert.Equal(t, "Invalid JSON", reply.Detail)

	reply = roundTrip(t, conn, `{"type":"analyze","project_id":"`+pid+`"}`)
	assert.Equal(t, "project_id and content are required", reply.Detail)

	reply = roundTrip(t, conn, `{"type":"subscribe"}`)
	assert.Equal(t, "Unknown message type: subscribe", reply.Detail)
}

func TestEditorWebsocketHidesInternalErrors(t *testing.T) {
	_, srv := testApp(t, Deps{Analysis: &stubAnalyzer{err: errors.New("pq: password authentication failed")}})
	conn := dialEditor(t, srv, "")

	reply := roundTrip(t, conn, `{"type":"analyze","project_id":"`+uuid.NewString()+`","content":"text"}`)
	assert.Equal(t, "error", reply.Type)
	assert.Equal(t, "analysis failed", reply.Detail)
}

func TestEditorWebsocketSendsPartialResult(t *testing.T) {
	perr := &graph.PersistenceError{Op: "insert fact", Err: errors.New("conn reset")}
	_, srv := testApp(t, Deps{Analysis: &stubAnalyzer{err: perr, partial: true}})
	conn := dialEditor(t, srv, "")

	reply := roundTrip(t, conn, `{"type":"analyze","project_id":"`+uuid.NewString()+`","content":"text"}`)
	assert.Equal(t, "error", reply.Type)
	assert.Equal(t, "analysis failed", reply.Detail)
	var result service.AnalysisResult
	require.NoError(t, json.Unmarshal(reply.Payload, &result))
	assert.Len(t, result.Actions, 1)
}

func TestEditorWebsocketAuth(t *testing.T) {
	_, srv := testApp(t, Deps{APIKey: "s3cret"})

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws/editor"
	_, resp, err := websocket.DefaultDialer.Dial(url, nil)
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	conn := dialEditor(t, srv, "?token=s3cret")
	assert.Equal(t, "pong", roundTrip(t, conn, `{"type":"ping"}`).Type)
}

func TestRefreshSummaryRoute(t *testing.T) {
	_, srv := testApp(t, Deps{})
	url := srv.URL + "/v1/projects/" + uuid.NewString() + "/entities/" + uuid.NewString() + "/refresh-summary"

	resp, err := http.Post(url, "application/json", nil)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	var body map[string]string
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, "entity not found or is not a CHARACTER", body["error"])
}

func TestAppStartStopWithoutBackgroundServices(t *testing.T) {
	app, _ := testApp(t, Deps{})
	app.Start()
	app.Stop(context.Background())
}
