package config

import (
	"fmt"
	"os"
	"strings"
	"unicode/utf8"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"gopkg.in/yaml.v3"
)

const schemaDefinition = "#Pipeline"

// ValidateWithCue validates a YAML configuration file against the #Pipeline definition
// of a CUE schema file.
func ValidateWithCue(configFile, cueFile string) error {
	ctx := cuecontext.New()

	yamlBytes, err := os.ReadFile(configFile)
	if err != nil {
		return fmt.Errorf("cannot read YAML config: %w", err)
	}
	var configData map[string]interface{}
	if err := yaml.Unmarshal(yamlBytes, &configData); err != nil {
		return fmt.Errorf("cannot unmarshal YAML config: %w", err)
	}
	if configData == nil {
		configData = map[string]interface{}{}
	}
	configVal := ctx.Encode(configData)
	if err := configVal.Err(); err != nil {
		return fmt.Errorf("cannot encode YAML config: %w", err)
	}

	schemaBytes, err := os.ReadFile(cueFile)
	if err != nil {
		return fmt.Errorf("cannot read CUE schema: %w", err)
	}
	schemaVal := ctx.CompileBytes(schemaBytes, cue.Filename(cueFile))
	if err := schemaVal.Err(); err != nil {
		return fmt.Errorf("cannot compile CUE schema: %w", err)
	}

	def := schemaVal.LookupPath(cue.ParsePath(schemaDefinition))
	if !def.Exists() {
		return fmt.Errorf("CUE schema %s has no %s definition", cueFile, schemaDefinition)
	}

	if err := def.Unify(configVal).Validate(); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}

	return nil
}

// Validate checks the values the YAML schema cannot express and those that may come
// from the environment or flags.
func (c *PipelineConfig) Validate() error {
	var problems []string

	if c.Inputs.Features == "" {
		problems = append(problems, "inputs.features is required")
	}
	if utf8.RuneCountInString(c.Inputs.Delimiter) != 1 {
		problems = append(problems, fmt.Sprintf("inputs.delimiter must be a single character, got %q", c.Inputs.Delimiter))
	}
	if c.Columns.ID == "" || c.Columns.Type == "" {
		problems = append(problems, "columns.id and columns.type are required")
	}
	if c.Training.Fraction <= 0 || c.Training.Fraction > 1 {
		problems = append(problems, fmt.Sprintf("training.fraction must be in (0, 1], got %g", c.Training.Fraction))
	}
	if c.Training.Epochs <= 0 {
		problems = append(problems, "training.epochs must be positive")
	}
	if c.Training.BatchSize <= 0 {
		problems = append(problems, "training.batch_size must be positive")
	}
	if c.Training.LearningRate <= 0 {
		problems = append(problems, "training.learning_rate must be positive")
	}
	if c.Training.Sparsity < 0 {
		problems = append(problems, "training.sparsity must not be negative")
	}
	if len(c.Training.Activations) != 0 && len(c.Training.Activations) != 4 {
		problems = append(problems, fmt.Sprintf("training.activations needs 4 entries, got %d", len(c.Training.Activations)))
	}
	switch c.Scaling.Mode {
	case "per-pool", "fit-once":
	default:
		problems = append(problems, fmt.Sprintf("scaling.mode must be per-pool or fit-once, got %q", c.Scaling.Mode))
	}
	if c.Thresholds.RankK < 0 {
		problems = append(problems, "thresholds.rank_k must not be negative")
	}
	if c.Thresholds.Cutoff < 0 {
		problems = append(problems, "thresholds.cutoff must not be negative")
	}
	if c.Outputs.Checkpoint == "" {
		problems = append(problems, "outputs.checkpoint is required")
	}
	switch c.Store.Type {
	case "sqlite", "mongo", "json", "none":
	default:
		problems = append(problems, fmt.Sprintf("store.type must be sqlite, mongo, json or none, got %q", c.Store.Type))
	}

	if len(problems) > 0 {
		return fmt.Errorf("invalid configuration: %s", strings.Join(problems, "; "))
	}
	return nil
}

// DelimiterRune returns the configured delimiter as a rune.
func (c *PipelineConfig) DelimiterRune() rune {
	r, _ := utf8.DecodeRuneInString(c.Inputs.Delimiter)
	if r == utf8.RuneError {
		return ','
	}
	return r
}
