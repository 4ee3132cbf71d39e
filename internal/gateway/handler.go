// Package gateway is the HTTP surface: auth, chat, resource endpoints,
// and the mission event stream.
package gateway

import (
	"context"
	"log"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/crypto/bcrypt"

	"github.com/virulabs/nexus/internal/agent"
	"github.com/virulabs/nexus/internal/auth"
	"github.com/virulabs/nexus/internal/autopilot"
	"github.com/virulabs/nexus/internal/config"
	"github.com/virulabs/nexus/internal/deploy"
	"github.com/virulabs/nexus/internal/generation"
	"github.com/virulabs/nexus/internal/models"
	"github.com/virulabs/nexus/internal/rag"
	"github.com/virulabs/nexus/internal/store"
)

// AgentRAG tags chat responses answered from the knowledge store rather
// than through a persona.
const AgentRAG = "RAG_SYSTEM"

// Store is the persistence surface the gateway depends on.
type Store interface {
	CreateUser(ctx context.Context, username, hashedPassword string) (*models.User, error)
	GetUserByUsername(ctx context.Context, username string) (*models.User, error)
	ListUsers(ctx context.Context) ([]models.User, error)
	SetUserTier(ctx context.Context, userID, tier string) error
	CreateProject(ctx context.Context, userID, name, path string) (*models.Project, error)
	GetProject(ctx context.Context, id string) (*models.Project, error)
	ListProjects(ctx context.Context, userID string) ([]models.Project, error)
	AppendMessage(ctx context.Context, userID string, projectID *string, role, agent, content string) error
	History(ctx context.Context, userID string, limit int) ([]models.Message, error)
	Stats(ctx context.Context) (*store.Stats, []models.Project, error)
}

// Knowledge is the retrieval surface the gateway depends on.
type Knowledge interface {
	AddDocument(ctx context.Context, filename, content string) (int, error)
	ConstructContext(ctx context.Context, query string) string
	Stats() (documents, chunks int)
	GraphData() []rag.GraphNode
}

// InstructionProcessor routes one instruction through a persona.
type InstructionProcessor interface {
	Process(ctx context.Context, instruction, projectPath string) (string, agent.PersonaTag)
}

// Handler handles HTTP requests for the gateway layer
type Handler struct {
	cfg          *config.Config
	store        Store
	jwtManager   *auth.JWTManager
	orchestrator InstructionProcessor
	personas     *agent.PersonaStore
	gen          generation.Generator
	knowledge    Knowledge
	deployments  *deploy.Registry
	autopilot    *autopilot.Engine
}

// NewHandler creates a new gateway handler
func NewHandler(
	cfg *config.Config,
	st Store,
	jwtManager *auth.JWTManager,
	orchestrator InstructionProcessor,
	personas *agent.PersonaStore,
	gen generation.Generator,
	knowledge Knowledge,
	deployments *deploy.Registry,
	engine *autopilot.Engine,
) *Handler {
	return &Handler{
		cfg:          cfg,
		store:        st,
		jwtManager:   jwtManager,
		orchestrator: orchestrator,
		personas:     personas,
		gen:          gen,
		knowledge:    knowledge,
		deployments:  deployments,
		autopilot:    engine,
	}
}

// Register godoc
// @Summary Register a new operator account
// @Description Create an account and return a JWT token
// @Tags auth
// @Accept json
// @Produce json
// @Param request body models.RegisterRequest true "Credentials"
// @Success 201 {object} models.AuthResponse
// @Failure 400 {object} map[string]string
// @Failure 409 {object} map[string]string
// @Router /auth/register [post]
func (h *Handler) Register(c *gin.Context) {
	var req models.RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request"})
		return
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to hash password"})
		return
	}

	user, err := h.store.CreateUser(c.Request.Context(), req.Username, string(hashed))
	if err != nil {
		log.Printf(`{"level":"warn","message":"Registration failed","username":"%s","error":"%v"}`, req.Username, err)
		c.JSON(http.StatusConflict, gin.H{"error": "Username already taken"})
		return
	}

	token, err := h.jwtManager.GenerateToken(c.Request.Context(), user.ID, user.Username, 24*time.Hour)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to generate token"})
		return
	}

	c.JSON(http.StatusCreated, models.AuthResponse{Token: token, User: user.ToUserInfo()})
}

// Login godoc
// @Summary Operator login
// @Description Authenticate and return a JWT token
// @Tags auth
// @Accept json
// @Produce json
// @Param request body models.LoginRequest true "Credentials"
// @Success 200 {object} models.AuthResponse
// @Failure 400 {object} map[string]string
// @Failure 401 {object} map[string]string
// @Router /auth/login [post]
func (h *Handler) Login(c *gin.Context) {
	var req models.LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request"})
		return
	}

	user, err := h.store.GetUserByUsername(c.Request.Context(), req.Username)
	if err != nil {
		log.Printf(`{"level":"warn","message":"User not found","username":"%s"}`, req.Username)
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid username or password"})
		return
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.HashedPassword), []byte(req.Password)); err != nil {
		log.Printf(`{"level":"warn","message":"Invalid password","username":"%s"}`, req.Username)
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid username or password"})
		return
	}

	token, err := h.jwtManager.GenerateToken(c.Request.Context(), user.ID, user.Username, 24*time.Hour)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to generate token"})
		return
	}

	c.JSON(http.StatusOK, models.AuthResponse{Token: token, User: user.ToUserInfo()})
}

// ChatRequest represents a chat turn from the operator
type ChatRequest struct {
	Message   string  `json:"message" binding:"required"`
	ProjectID *string `json:"projectId"`
}

// ChatResponse carries the assistant reply and the persona that produced it
type ChatResponse struct {
	Response string `json:"response"`
	Agent    string `json:"agent"`
}

// Chat godoc
// @Summary Send an instruction to the assistant
// @Description Route the instruction through RAG or a persona and return the reply
// @Tags chat
// @Accept json
// @Produce json
// @Param request body ChatRequest true "Instruction"
// @Success 200 {object} ChatResponse
// @Failure 400 {object} map[string]string
// @Security BearerAuth
// @Router /chat [post]
func (h *Handler) Chat(c *gin.Context) {
	var req ChatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request"})
		return
	}

	userID, ok := auth.UserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "User not authenticated"})
		return
	}

	ctx := c.Request.Context()

	if err := h.store.AppendMessage(ctx, userID, req.ProjectID, models.RoleUser, "", req.Message); err != nil {
		log.Printf(`{"level":"error","message":"Failed to persist user message","error":"%v"}`, err)
	}

	var response, agentTag string
	if ragContext := h.knowledge.ConstructContext(ctx, req.Message); ragContext != "" {
		response = h.gen.Generate(ctx, generation.Request{Prompt: req.Message, Context: ragContext})
		agentTag = AgentRAG
	} else {
		projectPath := ""
		if req.ProjectID != nil {
			project, err := h.store.GetProject(ctx, *req.ProjectID)
			if err != nil {
				c.JSON(http.StatusNotFound, gin.H{"error": "Project not found"})
				return
			}
			projectPath = project.Path
		}
		var tag agent.PersonaTag
		response, tag = h.orchestrator.Process(ctx, req.Message, projectPath)
		agentTag = string(tag)
	}

	if err := h.store.AppendMessage(ctx, userID, req.ProjectID, models.RoleAI, agentTag, response); err != nil {
		log.Printf(`{"level":"error","message":"Failed to persist AI message","error":"%v"}`, err)
	}

	c.JSON(http.StatusOK, ChatResponse{Response: response, Agent: agentTag})
}

// History godoc
// @Summary Chat history
// @Description Return the operator's last 100 messages, oldest first
// @Tags chat
// @Produce json
// @Success 200 {array} models.Message
// @Security BearerAuth
// @Router /chat/history [get]
func (h *Handler) History(c *gin.Context) {
	userID, ok := auth.UserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "User not authenticated"})
		return
	}

	messages, err := h.store.History(c.Request.Context(), userID, 100)
	if err != nil {
		log.Printf(`{"level":"error","message":"Failed to load history","error":"%v"}`, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to load history"})
		return
	}
	if messages == nil {
		messages = []models.Message{}
	}

	c.JSON(http.StatusOK, messages)
}

// VisionRequest carries a base64 image and an optional question about it
type VisionRequest struct {
	Image     string  `json:"image" binding:"required"`
	Prompt    string  `json:"prompt"`
	ProjectID *string `json:"projectId"`
}

// AnalyzeImage godoc
// @Summary Analyze an image
// @Description Run the vision model over a base64 image
// @Tags vision
// @Accept json
// @Produce json
// @Param request body VisionRequest true "Image payload"
// @Success 200 {object} ChatResponse
// @Failure 400 {object} map[string]string
// @Security BearerAuth
// @Router /vision/analyze [post]
func (h *Handler) AnalyzeImage(c *gin.Context) {
	var req VisionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request"})
		return
	}

	userID, ok := auth.UserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "User not authenticated"})
		return
	}

	prompt := req.Prompt
	if prompt == "" {
		prompt = "Describe this image in detail."
	}

	ctx := c.Request.Context()
	response := h.gen.Generate(ctx, generation.Request{
		Prompt: prompt,
		System: "You are an expert frontend engineer. Analyze UI screenshots precisely: layout, components, colors, and how to rebuild them.",
		Images: []string{req.Image},
		Model:  h.cfg.VisionModel,
	})

	if err := h.store.AppendMessage(ctx, userID, req.ProjectID, models.RoleUser, "", "[Image uploaded] "+prompt); err != nil {
		log.Printf(`{"level":"error","message":"Failed to persist vision message","error":"%v"}`, err)
	}
	if err := h.store.AppendMessage(ctx, userID, req.ProjectID, models.RoleAI, "VISION", response); err != nil {
		log.Printf(`{"level":"error","message":"Failed to persist vision reply","error":"%v"}`, err)
	}

	c.JSON(http.StatusOK, ChatResponse{Response: response, Agent: "VISION"})
}
