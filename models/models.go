package models

import (
	"time"
)

// FeatureRecord is one aircraft row of the feature table.
type FeatureRecord struct {
	ID       string    `json:"id"`
	Features []float64 `json:"features"` // encoded type code first, then numeric metrics
}

// ScoreRow is one row of the reconstruction error table.
type ScoreRow struct {
	ID        string  `json:"id" bson:"id"`
	Error     float64 `json:"error" bson:"error"`
	Actual    string  `json:"actual,omitempty" bson:"actual,omitempty"` // only set for labeled pools
	Predicted bool    `json:"predicted" bson:"predicted"`
}

// Confusion holds the 2x2 cross-tabulation of predicted vs actual class.
type Confusion struct {
	TruePositive  int `json:"truePositive" bson:"truePositive"`
	FalsePositive int `json:"falsePositive" bson:"falsePositive"`
	TrueNegative  int `json:"trueNegative" bson:"trueNegative"`
	FalseNegative int `json:"falseNegative" bson:"falseNegative"`
}

// RunRecord summarises a stored pipeline run.
type RunRecord struct {
	ID             string    `json:"id" bson:"_id"`
	CreatedAt      time.Time `json:"createdAt" bson:"createdAt"`
	ConfigDigest   string    `json:"configDigest" bson:"configDigest"`
	FeaturesPath   string    `json:"featuresPath" bson:"featuresPath"`
	CheckpointPath string    `json:"checkpointPath" bson:"checkpointPath"`
	ScalingMode    string    `json:"scalingMode" bson:"scalingMode"`
	Seed           int64     `json:"seed" bson:"seed"`
	LabeledCount   int       `json:"labeledCount" bson:"labeledCount"`
	TrainingCount  int       `json:"trainingCount" bson:"trainingCount"`
	ScoringCount   int       `json:"scoringCount" bson:"scoringCount"`
	Epochs         int       `json:"epochs" bson:"epochs"`
	BestEpoch      int       `json:"bestEpoch" bson:"bestEpoch"`
	BestValLoss    float64   `json:"bestValLoss" bson:"bestValLoss"`
	RankK          int       `json:"rankK" bson:"rankK"`
	Cutoff         float64   `json:"cutoff" bson:"cutoff"`
	Confusion      Confusion `json:"confusion" bson:"confusion"`
	CandidateCount int       `json:"candidateCount" bson:"candidateCount"`
	OverlapCount   int       `json:"overlapCount" bson:"overlapCount"`
}

// StoredScore is a ScoreRow persisted under the run and pool that produced it.
type StoredScore struct {
	RunID    string `json:"runId" bson:"runId"`
	Pool     string `json:"pool" bson:"pool"`
	ScoreRow `bson:",inline"`
}
