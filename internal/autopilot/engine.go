// Package autopilot runs bounded multi-file missions: plan a file list
// with the model, delegate each file to the agent orchestrator, verify
// the result, and record every phase transition in a durable log.
package autopilot

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/virulabs/nexus/internal/agent"
	"github.com/virulabs/nexus/internal/generation"
	"github.com/virulabs/nexus/internal/metrics"
)

// minFileContentLength is the verification threshold: anything shorter
// is treated as an empty or failed write.
const minFileContentLength = 10

// errPlanUnparsable marks a planning response with no usable JSON. It is
// mission-fatal but already reported through its own log event, so the
// engine does not emit a second critical-failure event for it.
var errPlanUnparsable = errors.New("could not parse plan")

// Project is the slice of the project registry the engine needs.
type Project struct {
	ID   string
	Path string // relative to the workspace root
}

// ProjectRegistry resolves project ids.
type ProjectRegistry interface {
	GetProject(ctx context.Context, id string) (*Project, error)
}

// MissionLog is the durable, ordered, append-only event sink. Every event
// is persisted individually at the moment it is generated, so a crash
// mid-mission leaves a truthful partial log.
type MissionLog interface {
	Append(ctx context.Context, projectID, userID, event string) error
}

// InstructionProcessor is the agent orchestrator contract the engine
// delegates per-file implementation to.
type InstructionProcessor interface {
	Process(ctx context.Context, instruction, projectPath string) (string, agent.PersonaTag)
}

// Engine runs autopilot missions. One mission per Start call; missions
// run detached from their triggering request and cannot be cancelled.
type Engine struct {
	projects      ProjectRegistry
	missionLog    MissionLog
	agent         InstructionProcessor
	gen           generation.Generator
	workspaceRoot string
	metrics       *metrics.MissionMetrics
}

// NewEngine creates a mission engine over the given collaborators.
func NewEngine(projects ProjectRegistry, missionLog MissionLog, processor InstructionProcessor, gen generation.Generator, workspaceRoot string, mm *metrics.MissionMetrics) *Engine {
	return &Engine{
		projects:      projects,
		missionLog:    missionLog,
		agent:         processor,
		gen:           gen,
		workspaceRoot: workspaceRoot,
		metrics:       mm,
	}
}

// StartMission launches a mission in the background and returns
// immediately. All progress is observable only through the mission log.
func (e *Engine) StartMission(projectID, userID, goal string) {
	go e.run(context.Background(), projectID, userID, goal)
}

// Run executes a mission synchronously. Exported for the engine's own
// tests and for callers that want to block on completion.
func (e *Engine) Run(ctx context.Context, projectID, userID, goal string) {
	e.run(ctx, projectID, userID, goal)
}

func (e *Engine) run(ctx context.Context, projectID, userID, goal string) {
	start := time.Now()
	if e.metrics != nil {
		e.metrics.RecordMissionStarted(ctx, projectID)
	}

	if err := e.missionLog.Append(ctx, projectID, userID, fmt.Sprintf("🚀 **Autopilot Engaged**\nMission: %s", goal)); err != nil {
		log.Printf(`{"level":"error","message":"Failed to record mission start","error":"%v"}`, err)
		if e.metrics != nil {
			e.metrics.RecordMissionFailed(ctx, projectID, "log_unavailable", time.Since(start))
		}
		return
	}

	files, err := e.execute(ctx, projectID, userID, goal)

	switch {
	case err == nil:
		if logErr := e.missionLog.Append(ctx, projectID, userID, "🎉 **Mission Complete**: All tasks finished."); logErr != nil {
			log.Printf(`{"level":"error","message":"Failed to record mission completion","error":"%v"}`, logErr)
		}
		if e.metrics != nil {
			e.metrics.RecordMissionCompleted(ctx, projectID, files, time.Since(start))
		}
	case errors.Is(err, errPlanUnparsable):
		// Already reported as a plan-failure event.
		if e.metrics != nil {
			e.metrics.RecordMissionFailed(ctx, projectID, "plan_parse", time.Since(start))
		}
	default:
		if logErr := e.missionLog.Append(ctx, projectID, userID, fmt.Sprintf("💥 **CRITICAL FAILURE**: %s", err.Error())); logErr != nil {
			log.Printf(`{"level":"error","message":"Failed to record mission failure","error":"%v"}`, logErr)
		}
		if e.metrics != nil {
			e.metrics.RecordMissionFailed(ctx, projectID, "error", time.Since(start))
		}
	}
}

// execute runs the planning, execution, and verification phases. It
// returns the number of planned files processed. Panics anywhere in the
// loop are converted to errors so they end the mission through the
// normal critical-failure path; files already written stay written.
func (e *Engine) execute(ctx context.Context, projectID, userID, goal string) (files int, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("mission panic: %v", r)
		}
	}()

	proj, lookupErr := e.projects.GetProject(ctx, projectID)
	if lookupErr != nil || proj == nil {
		return 0, fmt.Errorf("project not found")
	}

	plan, planErr := e.plan(ctx, goal, proj.Path)
	if planErr != nil {
		if errors.Is(planErr, errPlanUnparsable) {
			if logErr := e.missionLog.Append(ctx, projectID, userID, "❌ **Plan Failed**: Could not parse AI plan."); logErr != nil {
				return 0, logErr
			}
		}
		return 0, planErr
	}

	var lines []string
	for _, f := range plan {
		lines = append(lines, fmt.Sprintf("- `%s`", f))
	}
	if err := e.missionLog.Append(ctx, projectID, userID, "📋 **Plan Approved**: \n"+strings.Join(lines, "\n")); err != nil {
		return 0, err
	}

	for _, file := range plan {
		if err := e.executeFile(ctx, projectID, userID, goal, proj.Path, file); err != nil {
			return files, err
		}
		files++
	}

	return files, nil
}

// plan asks the model for the file list required by the goal and parses
// the first brace-delimited JSON object out of the response, tolerating
// surrounding prose.
func (e *Engine) plan(ctx context.Context, goal, projectPath string) ([]string, error) {
	planPrompt := fmt.Sprintf(`You are a Lead Software Architect.
Goal: "%s"
Project Path: "%s"

Identify the LIST of files directly required to achieve this goal.
Do not list existing files unless they need modification.
Return strictly a JSON object: { "files": ["src/components/MyComponent.tsx", "src/utils/helper.ts"] }`, goal, projectPath)

	response := e.gen.Generate(ctx, generation.Request{
		Prompt: planPrompt,
		System: "You output strictly JSON.",
	})

	raw, ok := extractJSON(response)
	if !ok {
		return nil, errPlanUnparsable
	}

	var plan struct {
		Files []string `json:"files"`
	}
	if err := json.Unmarshal([]byte(raw), &plan); err != nil {
		return nil, errPlanUnparsable
	}

	return plan.Files, nil
}

// executeFile delegates one planned file to the orchestrator and then
// verifies the write. The implementation prompt is phrased to classify
// as DEVELOPER so the orchestrator's file-write pass triggers.
func (e *Engine) executeFile(ctx context.Context, projectID, userID, goal, projectPath, file string) error {
	if err := e.missionLog.Append(ctx, projectID, userID, fmt.Sprintf("🔨 **Implementing**: `%s`...", file)); err != nil {
		return err
	}

	filePrompt := fmt.Sprintf(`Implementation Goal: Create/Update %s to satisfy: "%s".
Context: This is part of a larger feature.
Ensure the code is complete and production ready.`, file, goal)

	e.agent.Process(ctx, filePrompt, projectPath)

	if err := e.missionLog.Append(ctx, projectID, userID, fmt.Sprintf("🧐 **Verifying**: `%s`...", file)); err != nil {
		return err
	}

	// Re-read what the orchestrator (hopefully) wrote. Verification
	// failures are logged and skipped, not retried.
	content, readErr := os.ReadFile(filepath.Join(e.workspaceRoot, projectPath, file))
	if readErr != nil || len(content) < minFileContentLength {
		return e.missionLog.Append(ctx, projectID, userID, "⚠️ **Correction Needed**: File seems empty or missing.")
	}
	return e.missionLog.Append(ctx, projectID, userID, fmt.Sprintf("✅ **Verified**: `%s` looks good.", file))
}

// extractJSON returns the first brace-delimited substring of text.
func extractJSON(text string) (string, bool) {
	start := strings.IndexByte(text, '{')
	end := strings.LastIndexByte(text, '}')
	if start < 0 || end <= start {
		return "", false
	}
	return text[start : end+1], true
}
