// Package config loads the optional persona profile: the YAML document
// that tunes MindFriend's voice (framing instruction, greeting, fallback
// reply). The document is validated against an embedded JSON schema before
// use so a malformed profile fails at startup, not mid-conversation.
package config

import (
	_ "embed"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v5"
	"gopkg.in/yaml.v3"
)

//go:embed persona.schema.json
var personaSchema string

// Persona holds the conversational voice of the bot.
type Persona struct {
	// SystemPrompt is an optional system message sent before the
	// conversation. Empty means no system message.
	SystemPrompt string `yaml:"systemPrompt"`
	// Framing is prepended to the literal user input on every generation
	// call. It is never stored; the chat log keeps the raw user text.
	Framing string `yaml:"framing"`
	// FallbackReply is returned when the generation backend fails.
	FallbackReply string `yaml:"fallbackReply"`
	// Greeting is the reply to /start.
	Greeting string `yaml:"greeting"`
	// HistoryLimit is the number of turns shown by /history.
	HistoryLimit int `yaml:"historyLimit"`
}

// Default returns the built-in persona used when no profile file is given.
func Default() Persona {
	return Persona{
		Framing:       "You are a supportive, empathetic and funny friend. Respond kindly to: ",
		FallbackReply: "I'm sorry, I couldn't process that right now. Please try again later.",
		Greeting: "Hello! I'm MindFriend, your mental health companion 🤗\n" +
			"I'm here to listen and chat with you about anything on your mind. " +
			"You can talk to me about your feelings, worries, or anything else.\n" +
			"How are you feeling today?",
		HistoryLimit: 5,
	}
}

// Load reads and parses the persona profile at path. An empty path yields
// the built-in defaults.
func Load(path string) (Persona, error) {
	if path == "" {
		return Default(), nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return Persona{}, fmt.Errorf("read persona profile: %w", err)
	}

	return Parse(data)
}

// Parse decodes a persona YAML document and validates it. Fields left
// unset in the document keep their built-in defaults.
func Parse(data []byte) (Persona, error) {
	if err := validateSchema(data); err != nil {
		return Persona{}, err
	}

	p := Default()
	if err := yaml.Unmarshal(data, &p); err != nil {
		return Persona{}, fmt.Errorf("persona parse: %w", err)
	}

	if strings.TrimSpace(p.FallbackReply) == "" {
		return Persona{}, fmt.Errorf("persona: fallbackReply must not be empty")
	}
	if p.HistoryLimit <= 0 {
		return Persona{}, fmt.Errorf("persona: historyLimit must be positive, got %d", p.HistoryLimit)
	}

	return p, nil
}

// validateSchema checks the document against the embedded JSON schema.
// The YAML is round-tripped through encoding/json because the validator
// operates on JSON-decoded values.
func validateSchema(data []byte) error {
	var raw any
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("persona parse: %w", err)
	}

	jsonBytes, err := json.Marshal(raw)
	if err != nil {
		return fmt.Errorf("persona schema: convert to json: %w", err)
	}
	var doc any
	if err := json.Unmarshal(jsonBytes, &doc); err != nil {
		return fmt.Errorf("persona schema: decode json: %w", err)
	}

	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource("persona.schema.json", strings.NewReader(personaSchema)); err != nil {
		return fmt.Errorf("persona schema: add resource: %w", err)
	}
	schema, err := compiler.Compile("persona.schema.json")
	if err != nil {
		return fmt.Errorf("persona schema: compile: %w", err)
	}

	if err := schema.Validate(doc); err != nil {
		return fmt.Errorf("persona profile is invalid: %w", err)
	}

	return nil
}
