// file: internal/server/batch_service.go
// version: 2.0.0
// guid: 3f4a5b6c-7d8e-4f9a-0b1c-2d3e4f5a6b7c

package server

import (
	"log"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/net/websocket"

	"github.com/Shapuzzz/bookstrack-backend/internal/jobs"
	"github.com/Shapuzzz/bookstrack-backend/internal/server/middleware"
	"github.com/Shapuzzz/bookstrack-backend/internal/stream"
)

const (
	pingInterval = 30 * time.Second
	pongTimeout  = 60 * time.Second
)

type launchRequest struct {
	Items []jobs.ItemInput `json:"items" binding:"required"`
}

// launchBatch handles POST /v1/batch-enrichment.
func (s *Server) launchBatch(c *gin.Context) {
	var req launchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.RespondWithValidationError(c, "invalid request body: "+err.Error())
		return
	}

	result, err := s.registry.Launch(middleware.Principal(c), req.Items)
	if err != nil {
		s.RespondWithValidationError(c, err.Error())
		return
	}
	s.RespondWithData(c, http.StatusCreated, result, newMeta(c, "batch"))
}

// getBatchSnapshot handles GET /v1/batch-enrichment/{jobId}.
func (s *Server) getBatchSnapshot(c *gin.Context) {
	snapshot, err := s.registry.Snapshot(c.Param("jobId"))
	if err != nil {
		s.RespondWithJobError(c, err)
		return
	}
	s.RespondWithData(c, http.StatusOK, snapshot, newMeta(c, "batch"))
}

// cancelBatch handles POST /v1/batch-enrichment/{jobId}/cancel.
func (s *Server) cancelBatch(c *gin.Context) {
	token := bearerToken(c)
	if token == "" {
		s.RespondWithError(c, http.StatusUnauthorized, "Unauthenticated", "bearer token required")
		return
	}
	if err := s.registry.Cancel(c.Param("jobId"), token); err != nil {
		s.RespondWithJobError(c, err)
		return
	}
	s.RespondWithData(c, http.StatusOK, gin.H{"status": string(jobs.StatusCancelled)}, newMeta(c, "batch"))
}

type refreshRequest struct {
	JobID string `json:"jobId" binding:"required"`
	Token string `json:"token" binding:"required"`
}

// refreshToken handles POST /api/token/refresh.
func (s *Server) refreshToken(c *gin.Context) {
	var req refreshRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.RespondWithValidationError(c, "jobId and token are required")
		return
	}

	envelope, err := s.registry.RefreshToken(req.JobID, req.Token)
	if err != nil {
		s.RespondWithJobError(c, err)
		return
	}
	s.RespondWithData(c, http.StatusOK, gin.H{
		"token":     envelope.AuthToken,
		"expiresAt": envelope.AuthTokenExpiresAt.UTC().Format(time.RFC3339),
	}, newMeta(c, "batch"))
}

func bearerToken(c *gin.Context) string {
	auth := c.GetHeader("Authorization")
	if strings.HasPrefix(auth, "Bearer ") {
		return strings.TrimPrefix(auth, "Bearer ")
	}
	return ""
}

// clientMessage is what the attached client may send upstream.
type clientMessage struct {
	Type    string `json:"type"`
	LastSeq uint64 `json:"lastSeq,omitempty"`
	Token   string `json:"token,omitempty"`
}

// progressStream handles GET /ws/progress?jobId=… with a websocket upgrade.
func (s *Server) progressStream(c *gin.Context) {
	jobID := c.Query("jobId")
	if jobID == "" {
		s.RespondWithValidationError(c, "jobId is required")
		return
	}
	token := bearerToken(c)
	if token == "" {
		s.RespondWithError(c, http.StatusUnauthorized, "Unauthenticated", "bearer token required")
		return
	}
	if !strings.EqualFold(c.GetHeader("Upgrade"), "websocket") {
		s.RespondWithError(c, http.StatusUpgradeRequired, "UpgradeRequired", "this endpoint requires a websocket upgrade")
		return
	}

	var lastSeq uint64
	if raw := c.Query("lastSeq"); raw != "" {
		parsed, err := strconv.ParseUint(raw, 10, 64)
		if err != nil {
			s.RespondWithValidationError(c, "lastSeq must be a non-negative integer")
			return
		}
		lastSeq = parsed
	}

	// Validate and attach before the upgrade so auth failures stay plain HTTP.
	ch, detach, err := s.registry.AttachStream(jobID, token, lastSeq)
	if err != nil {
		s.RespondWithJobError(c, err)
		return
	}

	handler := websocket.Handler(func(ws *websocket.Conn) {
		s.serveProgress(ws, jobID, token, ch, detach)
	})
	handler.ServeHTTP(c.Writer, c.Request)
}

// serveProgress pumps session messages to the websocket and watches for
// pongs and client cancellation.
func (s *Server) serveProgress(ws *websocket.Conn, jobID, token string, ch <-chan stream.Message, detach func()) {
	defer detach()
	defer ws.Close()

	// Hello is connection-scoped and precedes the seq-ordered feed.
	if err := websocket.JSON.Send(ws, stream.Message{Type: stream.TypeHello, JobID: jobID}); err != nil {
		return
	}

	pong := make(chan struct{}, 1)
	gone := make(chan struct{})
	go func() {
		defer close(gone)
		for {
			var msg clientMessage
			if err := websocket.JSON.Receive(ws, &msg); err != nil {
				return
			}
			switch msg.Type {
			case "pong":
				select {
				case pong <- struct{}{}:
				default:
				}
			case "cancel":
				presented := msg.Token
				if presented == "" {
					presented = token
				}
				if err := s.registry.Cancel(jobID, presented); err != nil {
					log.Printf("[WARN] stream: job %s client cancel rejected: %v", jobID, err)
				}
			}
		}
	}()

	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()
	lastPong := time.Now()

	for {
		select {
		case msg, ok := <-ch:
			if !ok {
				return
			}
			if err := websocket.JSON.Send(ws, msg); err != nil {
				return
			}
		case <-ticker.C:
			if time.Since(lastPong) > pongTimeout {
				log.Printf("[WARN] stream: job %s client missed pong deadline, closing", jobID)
				return
			}
			if err := websocket.JSON.Send(ws, stream.Message{Type: stream.TypePing, JobID: jobID}); err != nil {
				return
			}
		case <-pong:
			lastPong = time.Now()
		case <-gone:
			return
		}
	}
}
