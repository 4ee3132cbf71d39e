package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/virulabs/nexus/internal/agent"
	"github.com/virulabs/nexus/internal/auth"
	"github.com/virulabs/nexus/internal/config"
	"github.com/virulabs/nexus/internal/generation"
	"github.com/virulabs/nexus/internal/models"
)

type fakeStore struct {
	Store
	projects map[string]*models.Project
	appended []models.Message
}

func (s *fakeStore) GetProject(ctx context.Context, id string) (*models.Project, error) {
	project, ok := s.projects[id]
	if !ok {
		return nil, fmt.Errorf("project not found")
	}
	return project, nil
}

func (s *fakeStore) AppendMessage(ctx context.Context, userID string, projectID *string, role, agentTag, content string) error {
	s.appended = append(s.appended, models.Message{
		UserID:    userID,
		ProjectID: projectID,
		Role:      role,
		Agent:     agentTag,
		Content:   content,
	})
	return nil
}

type fakeKnowledge struct {
	Knowledge
	context string
}

func (k *fakeKnowledge) ConstructContext(ctx context.Context, query string) string {
	return k.context
}

type fakeChatGenerator struct {
	reply string
	calls int
	last  generation.Request
}

func (g *fakeChatGenerator) Generate(ctx context.Context, req generation.Request) string {
	g.calls++
	g.last = req
	return g.reply
}

type fakeProcessor struct {
	reply           string
	tag             agent.PersonaTag
	calls           int
	lastInstruction string
	lastPath        string
}

func (p *fakeProcessor) Process(ctx context.Context, instruction, projectPath string) (string, agent.PersonaTag) {
	p.calls++
	p.lastInstruction = instruction
	p.lastPath = projectPath
	return p.reply, p.tag
}

func asUser(id string) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Set(auth.UserIDKey, id)
	}
}

func newChatHandler(st *fakeStore, gen *fakeChatGenerator, knowledge *fakeKnowledge, processor *fakeProcessor) (*Handler, *gin.Engine) {
	gin.SetMode(gin.TestMode)

	cfg := &config.Config{VisionModel: "llava"}
	handler := NewHandler(cfg, st, nil, processor, nil, gen, knowledge, nil, nil)

	router := gin.New()
	router.POST("/api/chat", asUser("user-1"), handler.Chat)
	router.POST("/api/vision/analyze", asUser("user-1"), handler.AnalyzeImage)
	return handler, router
}

func postJSON(t *testing.T, router *gin.Engine, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest("POST", path, bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func TestChat_KnowledgeContextBypassesPersonas(t *testing.T) {
	st := &fakeStore{}
	gen := &fakeChatGenerator{reply: "The server listens on 5000."}
	knowledge := &fakeKnowledge{context: "[Context from notes.md]:\nThe port is 5000."}
	processor := &fakeProcessor{reply: "unused", tag: agent.PersonaRoot}
	_, router := newChatHandler(st, gen, knowledge, processor)

	w := postJSON(t, router, "/api/chat", `{"message":"what is the port?"}`)

	require.Equal(t, http.StatusOK, w.Code)
	var resp ChatResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "The server listens on 5000.", resp.Response)
	assert.Equal(t, AgentRAG, resp.Agent)

	// Retrieved context goes straight to the generator; no persona runs.
	assert.Equal(t, 0, processor.calls)
	assert.Equal(t, 1, gen.calls)
	assert.Equal(t, knowledge.context, gen.last.Context)

	require.Len(t, st.appended, 2)
	assert.Equal(t, models.RoleUser, st.appended[0].Role)
	assert.Equal(t, AgentRAG, st.appended[1].Agent)
}

func TestChat_NoContextRoutesThroughPersonas(t *testing.T) {
	st := &fakeStore{projects: map[string]*models.Project{
		"p1": {ID: "p1", UserID: "user-1", Name: "Demo", Path: "demo"},
	}}
	gen := &fakeChatGenerator{reply: "unused"}
	knowledge := &fakeKnowledge{}
	processor := &fakeProcessor{reply: "func main() {}", tag: agent.PersonaDeveloper}
	_, router := newChatHandler(st, gen, knowledge, processor)

	w := postJSON(t, router, "/api/chat", `{"message":"write a main function","projectId":"p1"}`)

	require.Equal(t, http.StatusOK, w.Code)
	var resp ChatResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "func main() {}", resp.Response)
	assert.Equal(t, "DEVELOPER", resp.Agent)

	assert.Equal(t, 0, gen.calls)
	assert.Equal(t, 1, processor.calls)
	assert.Equal(t, "write a main function", processor.lastInstruction)
	assert.Equal(t, "demo", processor.lastPath)
}

func TestChat_UnknownProjectIsNotFound(t *testing.T) {
	st := &fakeStore{}
	processor := &fakeProcessor{tag: agent.PersonaRoot}
	_, router := newChatHandler(st, &fakeChatGenerator{}, &fakeKnowledge{}, processor)

	w := postJSON(t, router, "/api/chat", `{"message":"hello","projectId":"ghost"}`)

	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, 0, processor.calls)
	// Only the user turn was persisted before the lookup failed.
	assert.Len(t, st.appended, 1)
}

func TestAnalyzeImage_UsesVisionModelAndPersistsProject(t *testing.T) {
	st := &fakeStore{}
	gen := &fakeChatGenerator{reply: "A blue login button."}
	_, router := newChatHandler(st, gen, &fakeKnowledge{}, &fakeProcessor{})

	w := postJSON(t, router, "/api/vision/analyze", `{"image":"aGVsbG8=","prompt":"describe","projectId":"p1"}`)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "llava", gen.last.Model)
	require.Len(t, gen.last.Images, 1)

	require.Len(t, st.appended, 2)
	require.NotNil(t, st.appended[0].ProjectID)
	assert.Equal(t, "p1", *st.appended[0].ProjectID)
	require.NotNil(t, st.appended[1].ProjectID)
	assert.Equal(t, "p1", *st.appended[1].ProjectID)
	assert.Equal(t, "VISION", st.appended[1].Agent)
	assert.Equal(t, "[Image uploaded] describe", st.appended[0].Content)
}
