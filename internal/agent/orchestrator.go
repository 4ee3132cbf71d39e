package agent

import (
	"context"
	"log"

	"github.com/virulabs/nexus/internal/generation"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// Orchestrator composes the intent router, persona store, generation
// backend, and action executor into a single process-one-instruction
// operation.
type Orchestrator struct {
	personas *PersonaStore
	gen      generation.Generator
	actions  *ActionExecutor
	tracer   trace.Tracer
}

// NewOrchestrator creates an orchestrator over the given collaborators.
func NewOrchestrator(personas *PersonaStore, gen generation.Generator, actions *ActionExecutor) *Orchestrator {
	return &Orchestrator{
		personas: personas,
		gen:      gen,
		actions:  actions,
		tracer:   otel.Tracer("agent-orchestrator"),
	}
}

// Process classifies the instruction, generates a response under the
// selected persona, and applies any embedded actions. It returns the
// (possibly rewritten) response text and the persona tag used.
//
// Generation failures have already been flattened to diagnostic text by
// the client, so the action passes below only ever see well-formed text
// or marker-free diagnostics.
func (o *Orchestrator) Process(ctx context.Context, instruction, projectPath string) (string, PersonaTag) {
	ctx, span := o.tracer.Start(ctx, "agent.process")
	defer span.End()

	tag := Classify(instruction)
	span.SetAttributes(attribute.String("persona", string(tag)))
	log.Printf(`{"level":"info","message":"Routing instruction","persona":"%s"}`, tag)

	persona := o.personas.Get(tag)

	response := o.gen.Generate(ctx, generation.Request{
		Prompt: instruction,
		System: persona.SystemPrompt,
	})

	if tag == PersonaDeveloper && HasFileActions(response) {
		response = o.actions.ApplyFileActions(response, projectPath)
	}

	if tag == PersonaGitSpecialist && HasCommandActions(response) {
		response = o.actions.ApplyCommandActions(ctx, response)
	}

	return response, tag
}
