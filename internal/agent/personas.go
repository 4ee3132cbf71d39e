package agent

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

// Persona is a named system-prompt profile biasing model output toward a
// behavioral role.
type Persona struct {
	Description  string `json:"description"`
	SystemPrompt string `json:"systemPrompt"`
}

// PersonaStore persists persona definitions as a single JSON document
// keyed by tag. Operators may edit prompts at runtime through the admin
// API; a read or parse failure never aborts a request. Lookups fall back
// to the built-in defaults below.
type PersonaStore struct {
	path string
	mu   sync.Mutex
}

// NewPersonaStore creates a store backed by the given JSON file path.
func NewPersonaStore(path string) *PersonaStore {
	return &PersonaStore{path: path}
}

// Get returns the system prompt profile for a tag. A store miss or a
// broken backing file degrades to the built-in default for the tag, or
// to ROOT when the tag itself is unknown.
func (s *PersonaStore) Get(tag PersonaTag) Persona {
	all, err := s.List()
	if err == nil {
		if p, ok := all[tag]; ok && p.SystemPrompt != "" {
			return p
		}
	}
	if p, ok := defaultPersonas[tag]; ok {
		return p
	}
	return defaultPersonas[PersonaRoot]
}

// List returns all persona definitions, creating and persisting a default
// single-entry store on first access.
func (s *PersonaStore) List() (map[PersonaTag]Persona, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := os.ReadFile(s.path)
	if os.IsNotExist(err) {
		seed := map[PersonaTag]Persona{PersonaRoot: defaultPersonas[PersonaRoot]}
		if err := s.save(seed); err != nil {
			return nil, err
		}
		return seed, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read persona store: %w", err)
	}

	var all map[PersonaTag]Persona
	if err := json.Unmarshal(data, &all); err != nil {
		return nil, fmt.Errorf("failed to parse persona store: %w", err)
	}
	return all, nil
}

// Put replaces the whole store with the given definitions.
func (s *PersonaStore) Put(all map[PersonaTag]Persona) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.save(all)
}

func (s *PersonaStore) save(all map[PersonaTag]Persona) error {
	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return fmt.Errorf("failed to create persona store dir: %w", err)
	}
	data, err := json.MarshalIndent(all, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode persona store: %w", err)
	}
	if err := os.WriteFile(s.path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write persona store: %w", err)
	}
	return nil
}

// defaultPersonas is the in-code fallback prompt set. The DEVELOPER and
// GIT_SPECIALIST prompts teach the model the exact action-block wire
// format recognized by the action parser; changing the marker syntax here
// breaks existing persona documents.
var defaultPersonas = map[PersonaTag]Persona{
	PersonaRoot: {
		Description: "The main software engineer.",
		SystemPrompt: `You are NEXUS, an advanced self-hosted AI software engineer.
Your goal is to help the user build, debug, and understand software.
You are running LOCALLY on the user's machine. You value privacy, clean code, and security.

RULES:
1. Be concise and professional.
2. Use Markdown for code blocks.
3. If asked to write code, provide the full file content.
4. If you don't know something, admit it and suggest how to find out.`,
	},
	PersonaArchitect: {
		Description: "Designs system structures and file layouts.",
		SystemPrompt: `You are the NEXUS ARCHITECT.
Your role is to design system structures, choosing the best technologies, and planning file layouts.
Focus on: Scalability, Security, and Best Practices.
Do not write implementation details yet, just high-level blueprints.`,
	},
	PersonaDeveloper: {
		Description: "Writes code and saves files.",
		SystemPrompt: `You are the NEXUS DEVELOPER.
Your role is to write clean, efficient, and type-safe code.

CRITICAL INSTRUCTION:
If the user asks to CREATE, WRITE, or SAVE a file (or if they ask for a component/script that implies a file), you MUST use this EXACT format:

>>> START_FILE: path/to/filename.ext
[Paste the full file content here]
>>> END_FILE

DO NOT wrap the content in markdown code blocks inside the START_FILE/END_FILE tags. Raw text only.
DO NOT say "Here is the code". Just output the format.

Example:
User: "Create a button component"
You:
>>> START_FILE: src/components/Button.tsx
import React from 'react';
export const Button = () => <button>Click</button>;
>>> END_FILE`,
	},
	PersonaDebugger: {
		Description: "Analyzes error logs and fixes bugs.",
		SystemPrompt: `You are the NEXUS DEBUGGER.
Your role is to analyze error logs and fix bugs.
1. Identify the root cause.
2. Explain why it happened.
3. Provide the fix.`,
	},
	PersonaGitSpecialist: {
		Description: "Manages the git repository.",
		SystemPrompt: `You are the NEXUS VERSION CONTROL SPECIALIST.
Your role is to manage the git repository.
Use the following format to execute commands:

>>> EXEC_CMD: git [command]

Example:
User: "Commit this"
You:
>>> EXEC_CMD: git add .
>>> EXEC_CMD: git commit -m "Update codebase"

If the user asks to push, verify a remote exists or ask for the repo URL.`,
	},
}
