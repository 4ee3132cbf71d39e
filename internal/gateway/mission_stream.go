package gateway

import (
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/virulabs/nexus/internal/auth"
	"github.com/virulabs/nexus/internal/models"
	"github.com/virulabs/nexus/internal/store"
)

const missionPollInterval = 1500 * time.Millisecond

// MissionStream pushes autopilot mission log events to WebSocket clients.
// Events live in the message store; the stream tails them by id.
type MissionStream struct {
	store      *store.Store
	jwtManager *auth.JWTManager
	tracer     trace.Tracer
	upgrader   websocket.Upgrader
}

// NewMissionStream creates the mission event stream handler.
func NewMissionStream(st *store.Store, jwtManager *auth.JWTManager) *MissionStream {
	return &MissionStream{
		store:      st,
		jwtManager: jwtManager,
		tracer:     otel.Tracer("mission-stream"),
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				// Local-first deployment, the frontend origin is not fixed
				return true
			},
			HandshakeTimeout: 10 * time.Second,
		},
	}
}

// Stream handles WebSocket /api/missions/:projectId/stream
// @Summary Stream mission log events
// @Description WebSocket endpoint that tails the autopilot mission log for a project
// @Tags autopilot
// @Param projectId path string true "Project ID"
// @Param token query string false "JWT token"
// @Success 101 "Switching Protocols"
// @Failure 401 {object} map[string]string
// @Failure 403 {object} map[string]string
// @Security BearerAuth
// @Router /missions/{projectId}/stream [get]
func (ms *MissionStream) Stream(c *gin.Context) {
	ctx, span := ms.tracer.Start(c.Request.Context(), "mission_stream.stream")
	defer span.End()

	projectID := c.Param("projectId")
	span.SetAttributes(attribute.String("project_id", projectID))

	userID, err := ms.validateToken(c)
	if err != nil {
		span.RecordError(err)
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
		return
	}
	span.SetAttributes(attribute.String("user_id", userID))

	project, err := ms.store.GetProject(ctx, projectID)
	if err != nil || project.UserID != userID {
		span.SetAttributes(attribute.Bool("access_denied", true))
		c.JSON(http.StatusForbidden, gin.H{"error": "Forbidden"})
		return
	}

	conn, err := ms.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		span.RecordError(err)
		log.Printf(`{"level":"warn","message":"WebSocket upgrade failed","error":"%v"}`, err)
		return
	}
	defer conn.Close()

	log.Printf(`{"level":"info","message":"Mission stream opened","project_id":"%s","user_id":"%s"}`, projectID, userID)

	closed := make(chan struct{})
	go func() {
		defer close(closed)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ticker := time.NewTicker(missionPollInterval)
	defer ticker.Stop()

	var lastID int64
	for {
		events, err := ms.store.MissionEventsSince(ctx, projectID, lastID)
		if err != nil {
			log.Printf(`{"level":"error","message":"Mission event query failed","project_id":"%s","error":"%v"}`, projectID, err)
			return
		}
		for _, event := range events {
			if err := conn.WriteJSON(missionEvent(event)); err != nil {
				log.Printf(`{"level":"info","message":"Mission stream client gone","project_id":"%s"}`, projectID)
				return
			}
			lastID = event.ID
		}

		select {
		case <-closed:
			log.Printf(`{"level":"info","message":"Mission stream closed by client","project_id":"%s"}`, projectID)
			return
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

func (ms *MissionStream) validateToken(c *gin.Context) (string, error) {
	// Query parameter first (browser WebSocket clients cannot set headers),
	// Authorization header as fallback.
	token := c.Query("token")
	if token == "" {
		authHeader := c.GetHeader("Authorization")
		if len(authHeader) > 7 && authHeader[:7] == "Bearer " {
			token = authHeader[7:]
		}
	}
	if token == "" {
		return "", fmt.Errorf("missing JWT token")
	}

	claims, err := ms.jwtManager.ValidateToken(c.Request.Context(), token)
	if err != nil {
		return "", fmt.Errorf("invalid JWT: %w", err)
	}
	return claims.UserID, nil
}

func missionEvent(m models.Message) gin.H {
	return gin.H{
		"id":        m.ID,
		"agent":     m.Agent,
		"content":   m.Content,
		"createdAt": m.CreatedAt,
	}
}
