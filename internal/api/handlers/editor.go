package handlers

import (
	"encoding/json"
	"net/http"
	"time"

	mw "github.com/Harshitk-cp/storybrain/internal/api/middleware"
	"github.com/Harshitk-cp/storybrain/internal/service"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const (
	editorReadLimit   = maxBodyBytes
	editorIdleTimeout = 10 * time.Minute
	editorWriteWait   = 10 * time.Second
)

// Editor message types.
const (
	MessageAnalyze  = "analyze"
	MessagePing     = "ping"
	MessageAnalysis = "analysis"
	MessagePong     = "pong"
	MessageError    = "error"
)

type editorRequest struct {
	Type      string `json:"type"`
	ProjectID string `json:"project_id"`
	Content   string `json:"content"`
}

type editorResponse struct {
	Type    string                  `json:"type"`
	Payload *service.AnalysisResult `json:"payload,omitempty"`
	Detail  string                  `json:"detail,omitempty"`
}

// EditorHandler serves the realtime editor channel. Each analyze message is
// run through the same pipeline as the HTTP analyze route.
type EditorHandler struct {
	svc      Analyzer
	upgrader websocket.Upgrader
	logger   *zap.Logger
}

func NewEditorHandler(svc Analyzer, logger *zap.Logger) *EditorHandler {
	return &EditorHandler{
		svc: svc,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
		logger: logger,
	}
}

func (h *EditorHandler) Serve(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade has already written the HTTP error.
		h.logger.Debug("websocket upgrade failed", zap.Error(err))
		return
	}
	defer conn.Close()

	conn.SetReadLimit(editorReadLimit)
	ctx := r.Context()

	for {
		_ = conn.SetReadDeadline(time.Now().Add(editorIdleTimeout))
		_, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				h.logger.Debug("editor connection closed", zap.Error(err))
			}
			return
		}

		resp := h.handle(r, data)
		_ = conn.SetWriteDeadline(time.Now().Add(editorWriteWait))
		if err := conn.WriteJSON(resp); err != nil {
			h.logger.Debug("failed to write editor message", zap.Error(err))
			return
		}
		if ctx.Err() != nil {
			return
		}
	}
}

func (h *EditorHandler) handle(r *http.Request, data []byte) editorResponse {
	var msg editorRequest
	if err := json.Unmarshal(data, &msg); err != nil {
		return editorResponse{Type: MessageError, Detail: "Invalid JSON"}
	}

	switch msg.Type {
	case MessagePing:
		return editorResponse{Type: MessagePong}

	case MessageAnalyze:
		if msg.ProjectID == "" || msg.Content == "" {
			return editorResponse{Type: MessageError, Detail: "project_id and content are required"}
		}
		projectID, err := uuid.Parse(msg.ProjectID)
		if err != nil {
			return editorResponse{Type: MessageError, Detail: "invalid project_id"}
		}

		result, err := h.svc.Analyze(r.Context(), projectID, msg.Content)
		if err != nil {
			h.logger.Warn("editor analysis failed",
				zap.String("request_id", mw.RequestIDFromContext(r.Context())),
				zap.String("project_id", projectID.String()),
				zap.Error(err),
			)
			// Payload is the partial result when the graph kept some facts.
			return editorResponse{Type: MessageError, Payload: result, Detail: editorDetail(err)}
		}
		return editorResponse{Type: MessageAnalysis, Payload: result}

	default:
		return editorResponse{Type: MessageError, Detail: "Unknown message type: " + msg.Type}
	}
}

func editorDetail(err error) string {
	if statusFor(err) >= http.StatusInternalServerError {
		return "analysis failed"
	}
	return err.Error()
}
