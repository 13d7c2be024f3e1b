package flights

// Screening Pipeline
//
// Stages run strictly in order and hand immutable values to each other:
//
//   load tables -> partition -> normalise -> train on the training pool
//   -> score the labeled pool, rank-threshold it, build the confusion matrix
//   -> score the scoring pool, fixed-threshold it -> compare with the reference list
//
// Training writes a checkpoint every time the validation loss (on the labeled pool)
// improves; the best checkpoint is loaded back before scoring.

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
	"time"

	"surveil-screener/autoencoder"
	"surveil-screener/config"
	"surveil-screener/models"
	"surveil-screener/utils"
)

// ModelMetadata travels inside the checkpoint so a later scoring run prepares its input
// exactly the way the training run did.
type ModelMetadata struct {
	Columns     []string         `json:"columns"`
	Encoder     *CategoryEncoder `json:"encoder"`
	ScalingMode ScalingMode      `json:"scalingMode"`
	Scaler      *MinMaxScaler    `json:"scaler,omitempty"`
}

// TrainResult is what the training half of the pipeline produces.
type TrainResult struct {
	Partition Partitioned
	Labeled   Pool // normalised
	Scoring   Pool // normalised
	Model     *autoencoder.Network
	History   autoencoder.History
	Reference []string
}

// RunResult is the outcome of a full screening run.
type RunResult struct {
	RunID         string
	StartedAt     time.Time
	Duration      time.Duration
	LabeledCount  int
	TrainingCount int
	ScoringCount  int
	MissingLabels int
	History       autoencoder.History

	LabeledScores []models.ScoreRow // rank-thresholded
	RankBoundary  float64
	Confusion     models.Confusion

	ScoringScores []models.ScoreRow // fixed-thresholded
	Candidates    []string
	Overlap       *OverlapReport // nil when no reference list was given
}

// Record converts the result into its persisted summary.
func (r *RunResult) Record(cfg *config.PipelineConfig) models.RunRecord {
	rec := models.RunRecord{
		ID:             r.RunID,
		CreatedAt:      r.StartedAt,
		ConfigDigest:   cfg.Digest(),
		FeaturesPath:   cfg.Inputs.Features,
		CheckpointPath: cfg.Outputs.Checkpoint,
		ScalingMode:    cfg.Scaling.Mode,
		Seed:           cfg.Training.Seed,
		LabeledCount:   r.LabeledCount,
		TrainingCount:  r.TrainingCount,
		ScoringCount:   r.ScoringCount,
		Epochs:         len(r.History.Epochs),
		BestEpoch:      r.History.BestEpoch,
		BestValLoss:    r.History.BestValLoss,
		RankK:          cfg.Thresholds.RankK,
		Cutoff:         cfg.Thresholds.Cutoff,
		Confusion:      r.Confusion,
		CandidateCount: len(r.Candidates),
	}
	if r.Overlap != nil {
		rec.OverlapCount = r.Overlap.Size
	}
	return rec
}

// Pipeline runs the screening stages for one configuration.
type Pipeline struct {
	Config *config.PipelineConfig
	Logger *slog.Logger

	// Update, if set, receives every training epoch.
	Update func(autoencoder.Epoch)
}

func NewPipeline(cfg *config.PipelineConfig) *Pipeline {
	return &Pipeline{Config: cfg, Logger: utils.GetLogger()}
}

func (p *Pipeline) tableOptions(encoder *CategoryEncoder) TableOptions {
	return TableOptions{
		IDColumn:   p.Config.Columns.ID,
		TypeColumn: p.Config.Columns.Type,
		Delimiter:  p.Config.DelimiterRune(),
		Encoder:    encoder,
	}
}

func (p *Pipeline) loadEncoder() (*CategoryEncoder, error) {
	if p.Config.Inputs.Encoder == "" {
		return nil, nil
	}
	return LoadCategoryEncoder(p.Config.Inputs.Encoder, p.Config.Columns.Type, p.Config.DelimiterRune())
}

func (p *Pipeline) networkConfig(inputSize int) (autoencoder.Config, error) {
	netCfg := autoencoder.DefaultConfig(inputSize)
	netCfg.Sparsity = p.Config.Training.Sparsity
	netCfg.Seed = p.Config.Training.Seed
	for i, name := range p.Config.Training.Activations {
		if i >= len(netCfg.Activations) {
			break
		}
		act, err := autoencoder.ParseActivation(name)
		if err != nil {
			return netCfg, err
		}
		netCfg.Activations[i] = act
	}
	return netCfg, nil
}

// Train loads the inputs, partitions and normalises them, and trains the network. The
// best checkpoint is written to the configured path and loaded back.
func (p *Pipeline) Train(ctx context.Context) (*TrainResult, error) {
	cfg := p.Config
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	delim := cfg.DelimiterRune()

	encoder, err := p.loadEncoder()
	if err != nil {
		return nil, err
	}
	table, err := LoadFeatureTable(cfg.Inputs.Features, p.tableOptions(encoder))
	if err != nil {
		return nil, err
	}

	labels := map[string]string{}
	if cfg.Inputs.Labels != "" {
		labels, err = LoadLabels(cfg.Inputs.Labels, cfg.Columns.ID, cfg.Columns.Class, delim)
		if err != nil {
			return nil, err
		}
	}

	var reference []string
	if cfg.Inputs.Reference != "" {
		reference, err = LoadReferenceList(cfg.Inputs.Reference, cfg.Columns.ID, delim)
		if err != nil {
			return nil, err
		}
		if absent := Overlap(reference, table.IDs()).OnlyA; absent > 0 {
			p.Logger.Warn("reference identifiers not in the feature table",
				slog.String("path", cfg.Inputs.Reference),
				slog.Int("count", absent))
		}
	}

	parts, err := Partition(table, labels, cfg.Training.Fraction, cfg.Training.Seed)
	if err != nil {
		return nil, err
	}
	p.Logger.Info("dataset partitioned",
		slog.Int("labeled", parts.Labeled.Len()),
		slog.Int("training", parts.Training.Len()),
		slog.Int("scoring", parts.Scoring.Len()),
		slog.Int("missingLabels", parts.MissingLabels))
	if parts.MissingLabels > 0 {
		p.Logger.Debug("labelled identifiers absent from feature table were ignored",
			slog.Int("count", parts.MissingLabels))
	}

	mode, err := ParseScalingMode(cfg.Scaling.Mode)
	if err != nil {
		return nil, err
	}
	normalizer := NewNormalizer(mode, cfg.Scaling.Clip)

	training, err := normalizer.FitTraining(parts.Training)
	if err != nil {
		return nil, err
	}
	labeled, err := normalizer.Apply(parts.Labeled)
	if err != nil {
		return nil, err
	}
	scoring, err := normalizer.Apply(parts.Scoring)
	if err != nil {
		return nil, err
	}

	netCfg, err := p.networkConfig(len(table.Columns))
	if err != nil {
		return nil, err
	}
	net, err := autoencoder.New(netCfg)
	if err != nil {
		return nil, err
	}
	opt, err := autoencoder.NewOptimizer(cfg.Training.Optimizer, cfg.Training.LearningRate)
	if err != nil {
		return nil, err
	}

	meta, err := json.Marshal(ModelMetadata{
		Columns:     table.Columns,
		Encoder:     table.Encoder,
		ScalingMode: mode,
		Scaler:      normalizer.Scaler(),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to encode model metadata: %w", err)
	}

	if labeled.Len() == 0 {
		p.Logger.Warn("labeled pool is empty, validating on the training pool")
	}

	update := p.Update
	if update == nil {
		update = func(autoencoder.Epoch) {}
	}
	hist, err := net.Train(ctx, autoencoder.TrainArgs{
		Train:      training.Matrix(),
		Validation: labeled.Matrix(),
		Epochs:     cfg.Training.Epochs,
		BatchSize:  cfg.Training.BatchSize,
		Optimizer:  opt,
		Seed:       cfg.Training.Seed,
		Checkpoint: &autoencoder.FileCheckpointer{Path: cfg.Outputs.Checkpoint, Metadata: meta},
		Update: func(e autoencoder.Epoch) {
			p.Logger.Debug("epoch finished",
				slog.Int("epoch", e.Index),
				slog.Float64("loss", e.Loss),
				slog.Float64("valLoss", e.ValLoss),
				slog.Bool("improved", e.Improved))
			update(e)
		},
	})
	if err != nil {
		if errors.Is(err, autoencoder.ErrNoImprovement) {
			return nil, fmt.Errorf("training failed, no usable checkpoint was written: %w", err)
		}
		return nil, fmt.Errorf("training failed: %w", err)
	}

	if err := table.Encoder.Save(EncoderPath(cfg.Outputs.Checkpoint)); err != nil {
		return nil, err
	}

	p.Logger.Info("training finished",
		slog.Int("epochs", len(hist.Epochs)),
		slog.Int("bestEpoch", hist.BestEpoch),
		slog.Float64("bestValLoss", hist.BestValLoss),
		slog.String("checkpoint", cfg.Outputs.Checkpoint))

	return &TrainResult{
		Partition: parts,
		Labeled:   labeled,
		Scoring:   scoring,
		Model:     net,
		History:   hist,
		Reference: reference,
	}, nil
}

// Run executes the whole screening pipeline.
func (p *Pipeline) Run(ctx context.Context) (*RunResult, error) {
	started := time.Now()

	trained, err := p.Train(ctx)
	if err != nil {
		return nil, err
	}

	result := &RunResult{
		RunID:         utils.NewRunID(),
		StartedAt:     started.UTC(),
		LabeledCount:  trained.Partition.Labeled.Len(),
		TrainingCount: trained.Partition.Training.Len(),
		ScoringCount:  trained.Partition.Scoring.Len(),
		MissingLabels: trained.Partition.MissingLabels,
		History:       trained.History,
	}

	labeledScores, err := Score(trained.Model, trained.Labeled)
	if err != nil {
		return nil, err
	}
	result.LabeledScores, result.RankBoundary = RankThreshold(labeledScores, p.Config.Thresholds.RankK)
	result.Confusion = ConfusionMatrix(result.LabeledScores, p.Config.Columns.Positive)

	scoringScores, err := Score(trained.Model, trained.Scoring)
	if err != nil {
		return nil, err
	}
	result.ScoringScores = FixedThreshold(scoringScores, p.Config.Thresholds.Cutoff)
	result.Candidates = Candidates(result.ScoringScores)

	if p.Config.Inputs.Reference != "" {
		overlap := Overlap(result.Candidates, trained.Reference)
		result.Overlap = &overlap
	}

	result.Duration = time.Since(started)
	p.Logger.Info("screening finished",
		slog.String("runID", result.RunID),
		slog.Int("candidates", len(result.Candidates)),
		slog.Float64("rankBoundary", result.RankBoundary),
		slog.Int("truePositive", result.Confusion.TruePositive))

	return result, nil
}

// ScoreResult is the outcome of scoring a table with an existing checkpoint.
type ScoreResult struct {
	Rows       []models.ScoreRow
	Candidates []string
	History    autoencoder.History
}

// scoringModel is a checkpoint reloaded for scoring new tables.
type scoringModel struct {
	net     *autoencoder.Network
	meta    ModelMetadata
	history autoencoder.History
}

func loadScoringModel(checkpointPath string) (*scoringModel, error) {
	cp, err := autoencoder.Load(checkpointPath)
	if err != nil {
		return nil, err
	}
	net, err := cp.Network()
	if err != nil {
		return nil, err
	}

	m := &scoringModel{net: net, history: cp.History}
	if len(cp.Metadata) > 0 {
		if err := json.Unmarshal(cp.Metadata, &m.meta); err != nil {
			return nil, fmt.Errorf("unable to parse checkpoint metadata: %w", err)
		}
	}
	return m, nil
}

func (m *scoringModel) loadTable(path string, cfg *config.PipelineConfig) (Table, error) {
	table, err := LoadFeatureTable(path, TableOptions{
		IDColumn:   cfg.Columns.ID,
		TypeColumn: cfg.Columns.Type,
		Delimiter:  cfg.DelimiterRune(),
		Encoder:    m.meta.Encoder,
	})
	if err != nil {
		return Table{}, err
	}
	if err := sameColumns(m.meta.Columns, table.Columns); err != nil {
		return Table{}, err
	}
	return table, nil
}

// score normalizes pool the way the checkpoint was trained: on itself for per-pool
// checkpoints, with the stored training scaler for fit-once ones.
func (m *scoringModel) score(pool Pool) ([]models.ScoreRow, error) {
	normalizer := NewNormalizer(ScalePerPool, false)
	if m.meta.ScalingMode == ScaleFitOnce && m.meta.Scaler != nil {
		normalizer = NewNormalizerFromScaler(m.meta.Scaler)
	}
	pool, err := normalizer.Apply(pool)
	if err != nil {
		return nil, err
	}
	return Score(m.net, pool)
}

// ScoreTable scores every record of the table at path with the checkpoint at
// checkpointPath. With rankK > 0 the top rankK records are marked, otherwise records
// above cutoff are.
func ScoreTable(path, checkpointPath string, cfg *config.PipelineConfig, rankK int, cutoff float64) (*ScoreResult, error) {
	model, err := loadScoringModel(checkpointPath)
	if err != nil {
		return nil, err
	}
	table, err := model.loadTable(path, cfg)
	if err != nil {
		return nil, err
	}

	rows, err := model.score(PoolFromTable("scoring", table))
	if err != nil {
		return nil, err
	}
	if rankK > 0 {
		rows, _ = RankThreshold(rows, rankK)
	} else {
		rows = FixedThreshold(rows, cutoff)
	}

	return &ScoreResult{Rows: rows, Candidates: Candidates(rows), History: model.history}, nil
}

// ScoreLabeled scores only the labelled records of the table at path, normalized as a
// pool of their own, which is how Run evaluates them. Rows carry their class and are
// not thresholded.
func ScoreLabeled(path string, labels map[string]string, checkpointPath string, cfg *config.PipelineConfig) ([]models.ScoreRow, error) {
	model, err := loadScoringModel(checkpointPath)
	if err != nil {
		return nil, err
	}
	table, err := model.loadTable(path, cfg)
	if err != nil {
		return nil, err
	}

	parts, err := Partition(table, labels, cfg.Training.Fraction, cfg.Training.Seed)
	if err != nil {
		return nil, err
	}
	if parts.Labeled.Len() == 0 {
		return nil, fmt.Errorf("no labelled records found in %s", path)
	}
	return model.score(parts.Labeled)
}

// EncoderPath is where the category encoder of a checkpoint is written.
func EncoderPath(checkpointPath string) string {
	ext := filepath.Ext(checkpointPath)
	return strings.TrimSuffix(checkpointPath, ext) + ".encoder.json"
}

func sameColumns(trained, current []string) error {
	if len(trained) == 0 {
		return nil
	}
	if len(trained) != len(current) {
		return fmt.Errorf("table has %d features, model was trained on %d", len(current), len(trained))
	}
	for i := range trained {
		if trained[i] != current[i] {
			return fmt.Errorf("feature %d is %q, model was trained on %q", i, current[i], trained[i])
		}
	}
	return nil
}
