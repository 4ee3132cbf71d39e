package gateway

import (
	"fmt"
	"log"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/virulabs/nexus/internal/agent"
	"github.com/virulabs/nexus/internal/auth"
	"github.com/virulabs/nexus/internal/models"
)

// CreateProjectRequest represents a project creation request
type CreateProjectRequest struct {
	Name string `json:"name" binding:"required"`
}

// CreateProject godoc
// @Summary Create project
// @Description Create a project directory under the workspace root and register it
// @Tags projects
// @Accept json
// @Produce json
// @Param request body CreateProjectRequest true "Project details"
// @Success 201 {object} models.Project
// @Failure 400 {object} map[string]string
// @Security BearerAuth
// @Router /projects [post]
func (h *Handler) CreateProject(c *gin.Context) {
	var req CreateProjectRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request"})
		return
	}

	userID, ok := auth.UserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "User not authenticated"})
		return
	}

	slug := slugify(req.Name)
	if slug == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid project name"})
		return
	}

	if err := os.MkdirAll(filepath.Join(h.cfg.WorkspaceRoot, slug), 0o755); err != nil {
		log.Printf(`{"level":"error","message":"Failed to create project dir","error":"%v"}`, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create project directory"})
		return
	}

	project, err := h.store.CreateProject(c.Request.Context(), userID, req.Name, slug)
	if err != nil {
		log.Printf(`{"level":"error","message":"Failed to create project","error":"%v","user_id":"%s"}`, err, userID)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create project"})
		return
	}

	c.JSON(http.StatusCreated, project)
}

// ListProjects godoc
// @Summary List projects
// @Tags projects
// @Produce json
// @Success 200 {array} models.Project
// @Security BearerAuth
// @Router /projects [get]
func (h *Handler) ListProjects(c *gin.Context) {
	userID, ok := auth.UserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "User not authenticated"})
		return
	}

	projects, err := h.store.ListProjects(c.Request.Context(), userID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to list projects"})
		return
	}
	if projects == nil {
		projects = []models.Project{}
	}

	c.JSON(http.StatusOK, projects)
}

// ListAgents godoc
// @Summary List personas
// @Tags agents
// @Produce json
// @Success 200 {object} map[string]agent.Persona
// @Security BearerAuth
// @Router /agents [get]
func (h *Handler) ListAgents(c *gin.Context) {
	all, err := h.personas.List()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to load personas"})
		return
	}
	c.JSON(http.StatusOK, all)
}

// SaveAgents godoc
// @Summary Replace the persona store
// @Tags agents
// @Accept json
// @Produce json
// @Param request body map[string]agent.Persona true "Full persona map"
// @Success 200 {object} map[string]string
// @Failure 400 {object} map[string]string
// @Security BearerAuth
// @Router /agents [post]
func (h *Handler) SaveAgents(c *gin.Context) {
	var all map[agent.PersonaTag]agent.Persona
	if err := c.ShouldBindJSON(&all); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request"})
		return
	}

	if err := h.personas.Put(all); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to save personas"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "saved"})
}

// FileEntry is one workspace file in a listing
type FileEntry struct {
	Path  string `json:"path"`
	IsDir bool   `json:"isDir"`
}

// ListFiles godoc
// @Summary List project files
// @Tags files
// @Produce json
// @Param projectId query string true "Project ID"
// @Success 200 {array} FileEntry
// @Failure 404 {object} map[string]string
// @Security BearerAuth
// @Router /files [get]
func (h *Handler) ListFiles(c *gin.Context) {
	root, ok := h.projectRoot(c)
	if !ok {
		return
	}

	var entries []FileEntry
	err := filepath.WalkDir(root, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if path == root {
			return nil
		}
		rel, err := filepath.Rel(root, path)
		if err != nil {
			return err
		}
		if strings.HasPrefix(d.Name(), ".") {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		entries = append(entries, FileEntry{Path: filepath.ToSlash(rel), IsDir: d.IsDir()})
		return nil
	})
	if err != nil && !os.IsNotExist(err) {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to list files"})
		return
	}
	if entries == nil {
		entries = []FileEntry{}
	}

	c.JSON(http.StatusOK, entries)
}

// ReadFile godoc
// @Summary Read a project file
// @Tags files
// @Produce json
// @Param projectId query string true "Project ID"
// @Param path query string true "Relative file path"
// @Success 200 {object} map[string]string
// @Failure 400 {object} map[string]string
// @Failure 404 {object} map[string]string
// @Security BearerAuth
// @Router /files/content [get]
func (h *Handler) ReadFile(c *gin.Context) {
	root, ok := h.projectRoot(c)
	if !ok {
		return
	}

	full, err := resolveInside(root, c.Query("path"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	data, err := os.ReadFile(full)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "File not found"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"path": c.Query("path"), "content": string(data)})
}

// WriteFileRequest represents a file write
type WriteFileRequest struct {
	ProjectID string `json:"projectId" binding:"required"`
	Path      string `json:"path" binding:"required"`
	Content   string `json:"content"`
}

// WriteFile godoc
// @Summary Write a project file
// @Tags files
// @Accept json
// @Produce json
// @Param request body WriteFileRequest true "File payload"
// @Success 200 {object} map[string]string
// @Failure 400 {object} map[string]string
// @Security BearerAuth
// @Router /files/content [post]
func (h *Handler) WriteFile(c *gin.Context) {
	var req WriteFileRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request"})
		return
	}

	project, err := h.store.GetProject(c.Request.Context(), req.ProjectID)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Project not found"})
		return
	}

	root := filepath.Join(h.cfg.WorkspaceRoot, project.Path)
	full, err := resolveInside(root, req.Path)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create directories"})
		return
	}
	if err := os.WriteFile(full, []byte(req.Content), 0o644); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to write file"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "written", "path": req.Path})
}

// IngestRequest represents a knowledge upload
type IngestRequest struct {
	Filename string `json:"filename" binding:"required"`
	Content  string `json:"content" binding:"required"`
}

// IngestDocument godoc
// @Summary Ingest a document into the knowledge store
// @Tags rag
// @Accept json
// @Produce json
// @Param request body IngestRequest true "Document"
// @Success 200 {object} map[string]int
// @Failure 400 {object} map[string]string
// @Security BearerAuth
// @Router /rag/ingest [post]
func (h *Handler) IngestDocument(c *gin.Context) {
	var req IngestRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request"})
		return
	}

	chunks, err := h.knowledge.AddDocument(c.Request.Context(), req.Filename, req.Content)
	if err != nil {
		log.Printf(`{"level":"error","message":"Ingest failed","error":"%v"}`, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to ingest document"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"chunks": chunks})
}

// KnowledgeStats godoc
// @Summary Knowledge store statistics
// @Tags rag
// @Produce json
// @Success 200 {object} map[string]int
// @Security BearerAuth
// @Router /rag/stats [get]
func (h *Handler) KnowledgeStats(c *gin.Context) {
	documents, chunks := h.knowledge.Stats()
	c.JSON(http.StatusOK, gin.H{"documents": documents, "chunks": chunks})
}

// KnowledgeGraph godoc
// @Summary Knowledge store graph nodes
// @Tags rag
// @Produce json
// @Success 200 {array} rag.GraphNode
// @Security BearerAuth
// @Router /rag/graph [get]
func (h *Handler) KnowledgeGraph(c *gin.Context) {
	c.JSON(http.StatusOK, h.knowledge.GraphData())
}

// Deploy godoc
// @Summary Deploy a project preview
// @Tags deploy
// @Produce json
// @Param projectId path string true "Project ID"
// @Success 200 {object} deploy.Deployment
// @Failure 404 {object} map[string]string
// @Security BearerAuth
// @Router /deploy/{projectId} [post]
func (h *Handler) Deploy(c *gin.Context) {
	project, err := h.store.GetProject(c.Request.Context(), c.Param("projectId"))
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Project not found"})
		return
	}

	deployment, err := h.deployments.Deploy(c.Request.Context(), project.ID, project.Path)
	if err != nil {
		log.Printf(`{"level":"error","message":"Deploy failed","project_id":"%s","error":"%v"}`, project.ID, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to start preview server"})
		return
	}

	c.JSON(http.StatusOK, deployment)
}

// StopDeploy godoc
// @Summary Stop a project preview
// @Tags deploy
// @Produce json
// @Param projectId path string true "Project ID"
// @Success 200 {object} map[string]string
// @Failure 404 {object} map[string]string
// @Security BearerAuth
// @Router /deploy/{projectId}/stop [post]
func (h *Handler) StopDeploy(c *gin.Context) {
	if !h.deployments.Stop(c.Param("projectId")) {
		c.JSON(http.StatusNotFound, gin.H{"error": "No deployment running"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "stopped"})
}

// StartMissionRequest represents an autopilot mission request
type StartMissionRequest struct {
	ProjectID string `json:"projectId" binding:"required"`
	Goal      string `json:"goal" binding:"required"`
}

// StartMission godoc
// @Summary Start an autopilot mission
// @Description Fire-and-forget: the mission runs in the background and logs to the mission stream
// @Tags autopilot
// @Accept json
// @Produce json
// @Param request body StartMissionRequest true "Mission"
// @Success 202 {object} map[string]string
// @Failure 400 {object} map[string]string
// @Security BearerAuth
// @Router /autopilot/start [post]
func (h *Handler) StartMission(c *gin.Context) {
	var req StartMissionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request"})
		return
	}

	userID, ok := auth.UserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "User not authenticated"})
		return
	}

	h.autopilot.StartMission(req.ProjectID, userID, req.Goal)

	c.JSON(http.StatusAccepted, gin.H{"status": "mission_started", "projectId": req.ProjectID})
}

// ListUsers godoc
// @Summary List accounts
// @Tags admin
// @Produce json
// @Success 200 {array} models.UserInfo
// @Security BearerAuth
// @Router /admin/users [get]
func (h *Handler) ListUsers(c *gin.Context) {
	users, err := h.store.ListUsers(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to list users"})
		return
	}

	infos := make([]models.UserInfo, 0, len(users))
	for i := range users {
		infos = append(infos, users[i].ToUserInfo())
	}
	c.JSON(http.StatusOK, infos)
}

// BroadcastRequest represents an announcement to all accounts
type BroadcastRequest struct {
	Message string `json:"message" binding:"required"`
}

// Broadcast godoc
// @Summary Broadcast an announcement to all accounts
// @Tags admin
// @Accept json
// @Produce json
// @Param request body BroadcastRequest true "Announcement"
// @Success 200 {object} map[string]int
// @Failure 400 {object} map[string]string
// @Security BearerAuth
// @Router /admin/broadcast [post]
func (h *Handler) Broadcast(c *gin.Context) {
	var req BroadcastRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request"})
		return
	}

	users, err := h.store.ListUsers(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to list users"})
		return
	}

	delivered := 0
	for i := range users {
		if err := h.store.AppendMessage(c.Request.Context(), users[i].ID, nil, models.RoleAI, "SYSTEM", req.Message); err != nil {
			log.Printf(`{"level":"warn","message":"Broadcast delivery failed","user_id":"%s","error":"%v"}`, users[i].ID, err)
			continue
		}
		delivered++
	}

	c.JSON(http.StatusOK, gin.H{"delivered": delivered})
}

// SetTierRequest represents a tier change
type SetTierRequest struct {
	UserID string `json:"userId" binding:"required"`
	Tier   string `json:"tier" binding:"required"`
}

// SetTier godoc
// @Summary Change an account's tier
// @Tags admin
// @Accept json
// @Produce json
// @Param request body SetTierRequest true "Tier change"
// @Success 200 {object} map[string]string
// @Failure 400 {object} map[string]string
// @Failure 404 {object} map[string]string
// @Security BearerAuth
// @Router /admin/tier [post]
func (h *Handler) SetTier(c *gin.Context) {
	var req SetTierRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request"})
		return
	}

	if err := h.store.SetUserTier(c.Request.Context(), req.UserID, req.Tier); err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "User not found"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "updated"})
}

// DBStats godoc
// @Summary Database statistics
// @Tags admin
// @Produce json
// @Success 200 {object} map[string]interface{}
// @Security BearerAuth
// @Router /db/stats [get]
func (h *Handler) DBStats(c *gin.Context) {
	stats, recent, err := h.store.Stats(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to load stats"})
		return
	}
	if recent == nil {
		recent = []models.Project{}
	}

	c.JSON(http.StatusOK, gin.H{
		"projects":        stats.Projects,
		"users":           stats.Users,
		"messages":        stats.Messages,
		"recent_projects": recent,
	})
}

func (h *Handler) projectRoot(c *gin.Context) (string, bool) {
	projectID := c.Query("projectId")
	if projectID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "projectId is required"})
		return "", false
	}
	project, err := h.store.GetProject(c.Request.Context(), projectID)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Project not found"})
		return "", false
	}
	return filepath.Join(h.cfg.WorkspaceRoot, project.Path), true
}

// resolveInside joins rel under root and rejects paths that would land
// outside it.
func resolveInside(root, rel string) (string, error) {
	if rel == "" {
		return "", fmt.Errorf("path is required")
	}
	if filepath.IsAbs(rel) {
		return "", fmt.Errorf("path must be relative")
	}
	full := filepath.Join(root, rel)
	back, err := filepath.Rel(root, full)
	if err != nil || back == ".." || strings.HasPrefix(back, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("path escapes the project root")
	}
	return full, nil
}

func slugify(name string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(strings.TrimSpace(name)) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
		case r == ' ', r == '-', r == '_':
			b.WriteByte('-')
		}
	}
	return strings.Trim(b.String(), "-")
}
