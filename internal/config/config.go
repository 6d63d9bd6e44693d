// Package config loads and validates the pipeline's JSON configuration file
// and auxiliary word lists.
package config

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

//go:embed schema.json
var schemaJSON string

// Endpoints lists the backend capability URLs.
type Endpoints struct {
	Moderation      string `json:"moderation"`
	Reply           string `json:"reply"`
	Speech          string `json:"speech"`
	DefaultQuestion string `json:"default_question"`
	TemplateMessage string `json:"template_message"`
	ChatFeed        string `json:"chat_feed"`
}

// ReplacementRule rewrites a substring in text sent to speech synthesis.
type ReplacementRule struct {
	From string `json:"from"`
	To   string `json:"to"`
}

// SpeechConfig selects the synthesis backend and voices.
type SpeechConfig struct {
	Backend        string            `json:"backend"`
	NarratorVoice  string            `json:"narrator_voice"`
	PresenterVoice string            `json:"presenter_voice"`
	PollyRegion    string            `json:"polly_region"`
	PollyEngine    string            `json:"polly_engine"`
	PollyVoices    map[string]string `json:"polly_voices"`
	Replacements   []ReplacementRule `json:"replacements"`
}

// ModerationConfig tunes the moderation batch loop.
type ModerationConfig struct {
	MaxBatchSize int `json:"max_batch_size"`
	MaxRetries   int `json:"max_retries"`
}

// AutoQuestionConfig tunes filler injection.
type AutoQuestionConfig struct {
	Enabled        bool    `json:"enabled"`
	MinQueueLength int     `json:"min_queue_length"`
	QuietSeconds   int     `json:"quiet_seconds"`
	QuestionRatio  float64 `json:"question_ratio"`
}

// Config is the top-level configuration document.
type Config struct {
	Endpoints     Endpoints          `json:"endpoints"`
	Speech        SpeechConfig       `json:"speech"`
	Moderation    ModerationConfig   `json:"moderation"`
	StopWordDir   string             `json:"stop_word_dir"`
	QuestionCSV   string             `json:"question_csv"`
	AutoQuestions AutoQuestionConfig `json:"auto_questions"`
}

// Load reads, schema-validates, and decodes the configuration at path.
func Load(path string) (Config, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("read config: %w", err)
	}
	return Parse(raw)
}

// Parse validates raw JSON against the embedded schema and decodes it.
func Parse(raw []byte) (Config, error) {
	schema, err := compiledSchema()
	if err != nil {
		return Config{}, err
	}

	var payload any
	if err := json.Unmarshal(raw, &payload); err != nil {
		return Config{}, fmt.Errorf("parse config: %w", err)
	}
	if err := schema.Validate(payload); err != nil {
		return Config{}, fmt.Errorf("validate config: %w", err)
	}

	var cfg Config
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&cfg); err != nil {
		return Config{}, fmt.Errorf("decode config: %w", err)
	}
	return cfg, nil
}

func compiledSchema() (*jsonschema.Schema, error) {
	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource("config.schema.json", strings.NewReader(schemaJSON)); err != nil {
		return nil, fmt.Errorf("add schema resource: %w", err)
	}
	schema, err := compiler.Compile("config.schema.json")
	if err != nil {
		return nil, fmt.Errorf("compile schema: %w", err)
	}
	return schema, nil
}

// LoadStopWords reads every .txt file under dir and returns the combined
// word list. One word per line; blank lines and lines starting with // are
// skipped. A missing or empty dir yields an empty list.
func LoadStopWords(dir string) ([]string, error) {
	if dir == "" {
		return nil, nil
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("read stop-word dir: %w", err)
	}

	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() || filepath.Ext(e.Name()) != ".txt" {
			continue
		}
		names = append(names, e.Name())
	}
	sort.Strings(names)

	var words []string
	for _, name := range names {
		raw, err := os.ReadFile(filepath.Join(dir, name))
		if err != nil {
			return nil, fmt.Errorf("read stop-word file %s: %w", name, err)
		}
		for _, line := range strings.Split(string(raw), "\n") {
			word := strings.TrimSpace(line)
			if word == "" || strings.HasPrefix(word, "//") {
				continue
			}
			words = append(words, word)
		}
	}
	return words, nil
}
