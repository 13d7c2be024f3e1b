// YAML pipeline configuration with CUE validation and environment overrides
package config

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
	"strconv"

	"gopkg.in/yaml.v3"

	"surveil-screener/utils"
)

// Inputs locates the source tables.
type Inputs struct {
	Features  string `yaml:"features"`
	Labels    string `yaml:"labels"`
	Reference string `yaml:"reference"`
	Encoder   string `yaml:"encoder"`
	Delimiter string `yaml:"delimiter"`
}

// Columns names the special columns of the source tables.
type Columns struct {
	ID       string `yaml:"id"`
	Type     string `yaml:"type"`
	Class    string `yaml:"class"`
	Positive string `yaml:"positive"`
}

// Training holds the partitioning and network hyper-parameters.
type Training struct {
	Fraction     float64  `yaml:"fraction"`
	Seed         int64    `yaml:"seed"`
	Epochs       int      `yaml:"epochs"`
	BatchSize    int      `yaml:"batch_size"`
	LearningRate float64  `yaml:"learning_rate"`
	Sparsity     float64  `yaml:"sparsity"`
	Optimizer    string   `yaml:"optimizer"`
	Activations  []string `yaml:"activations"`
}

// Scaling selects how pools are normalised.
type Scaling struct {
	Mode string `yaml:"mode"`
	Clip bool   `yaml:"clip"`
}

// Thresholds configures both labelling policies.
type Thresholds struct {
	RankK  int     `yaml:"rank_k"`
	Cutoff float64 `yaml:"cutoff"`
}

// Outputs locates the artifacts a run writes.
type Outputs struct {
	Checkpoint string `yaml:"checkpoint"`
	Scores     string `yaml:"scores"`
}

// Store selects where run records are persisted.
type Store struct {
	Type          string `yaml:"type"`
	SQLitePath    string `yaml:"sqlite_path"`
	MongoURI      string `yaml:"mongo_uri"`
	MongoDatabase string `yaml:"mongo_database"`
	JSONPath      string `yaml:"json_path"`
}

// PipelineConfig is the root configuration of a screening run.
type PipelineConfig struct {
	Inputs     Inputs     `yaml:"inputs"`
	Columns    Columns    `yaml:"columns"`
	Training   Training   `yaml:"training"`
	Scaling    Scaling    `yaml:"scaling"`
	Thresholds Thresholds `yaml:"thresholds"`
	Outputs    Outputs    `yaml:"outputs"`
	Store      Store      `yaml:"store"`
}

// Default returns the settings of the reference analysis.
func Default() *PipelineConfig {
	return &PipelineConfig{
		Inputs: Inputs{
			Features:  "data/features.csv",
			Labels:    "data/train.csv",
			Reference: "data/candidates.csv",
			Delimiter: ",",
		},
		Columns: Columns{
			ID:       "adshex",
			Type:     "type",
			Class:    "class",
			Positive: "surveil",
		},
		Training: Training{
			Fraction:     0.1,
			Seed:         42,
			Epochs:       100,
			BatchSize:    50,
			LearningRate: 0.001,
			Sparsity:     1e-5,
			Optimizer:    "adam",
			Activations:  []string{"tanh", "relu", "tanh", "relu"},
		},
		Scaling: Scaling{
			Mode: "per-pool",
			Clip: true,
		},
		Thresholds: Thresholds{
			RankK:  97,
			Cutoff: 0.2,
		},
		Outputs: Outputs{
			Checkpoint: "model/autoencoder.json",
			Scores:     "output/scores.csv",
		},
		Store: Store{
			Type:          "sqlite",
			SQLitePath:    "db/screener.sqlite3",
			MongoURI:      "mongodb://localhost:27017",
			MongoDatabase: "screener",
			JSONPath:      "output/runs.json",
		},
	}
}

// Load reads a YAML config over the defaults. When cueSchemaPath is not empty the file is
// validated against it first. An empty configPath returns the defaults.
func Load(configPath, cueSchemaPath string) (*PipelineConfig, error) {
	cfg := Default()
	if configPath == "" {
		return cfg, nil
	}

	if cueSchemaPath != "" {
		if err := ValidateWithCue(configPath, cueSchemaPath); err != nil {
			return nil, err
		}
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("cannot read config %s: %w", configPath, err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("cannot unmarshal config %s: %w", configPath, err)
	}

	utils.GetLogger().Debug("configuration loaded", "path", configPath)
	return cfg, nil
}

// ApplyEnv overlays environment variables (after .env has been loaded by the caller).
func (c *PipelineConfig) ApplyEnv() {
	c.Inputs.Features = utils.GetEnv("SCREENER_FEATURES", c.Inputs.Features)
	c.Inputs.Labels = utils.GetEnv("SCREENER_LABELS", c.Inputs.Labels)
	c.Inputs.Reference = utils.GetEnv("SCREENER_REFERENCE", c.Inputs.Reference)
	c.Outputs.Checkpoint = utils.GetEnv("SCREENER_MODEL_PATH", c.Outputs.Checkpoint)
	c.Outputs.Scores = utils.GetEnv("SCREENER_SCORES_PATH", c.Outputs.Scores)
	c.Scaling.Mode = utils.GetEnv("SCREENER_SCALING", c.Scaling.Mode)
	c.Training.Epochs = utils.GetEnvInt("SCREENER_EPOCHS", c.Training.Epochs)
	c.Thresholds.RankK = utils.GetEnvInt("SCREENER_RANK_K", c.Thresholds.RankK)
	c.Thresholds.Cutoff = utils.GetEnvFloat("SCREENER_CUTOFF", c.Thresholds.Cutoff)

	if seed := utils.GetEnv("SCREENER_SEED", ""); seed != "" {
		if parsed, err := strconv.ParseInt(seed, 10, 64); err == nil {
			c.Training.Seed = parsed
		}
	}

	c.Store.Type = utils.GetEnv("DB_TYPE", c.Store.Type)
	c.Store.SQLitePath = utils.GetEnv("SQLITE_PATH", c.Store.SQLitePath)
	c.Store.MongoURI = utils.GetEnv("MONGO_URI", c.Store.MongoURI)
	c.Store.MongoDatabase = utils.GetEnv("MONGO_DATABASE", c.Store.MongoDatabase)
	c.Store.JSONPath = utils.GetEnv("RUNS_JSON_PATH", c.Store.JSONPath)
}

// Digest returns a short hash of the effective configuration, stored with every run so
// results can be matched to the settings that produced them.
func (c *PipelineConfig) Digest() string {
	data, err := yaml.Marshal(c)
	if err != nil {
		return ""
	}
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:8])
}
