package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"log/slog"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/mdobak/go-xerrors"

	"surveil-screener/autoencoder"
	"surveil-screener/config"
	"surveil-screener/db"
	"surveil-screener/flights"
	"surveil-screener/models"
	"surveil-screener/utils"
)

func printHistory(hist autoencoder.History) {
	if len(hist.Epochs) == 0 {
		return
	}
	last := hist.Epochs[len(hist.Epochs)-1]
	fmt.Printf("Epochs run:            %d\n", len(hist.Epochs))
	fmt.Printf("Final loss / val loss: %.6f / %.6f\n", last.Loss, last.ValLoss)
	fmt.Printf("Best epoch:            %d (val loss %.6f)\n", hist.BestEpoch+1, hist.BestValLoss)
}

func epochPrinter(total int) func(autoencoder.Epoch) {
	return func(e autoencoder.Epoch) {
		marker := ""
		if e.Improved {
			marker = "  * checkpoint"
		}
		log.Printf("  epoch %3d/%d  loss %.6f  val_loss %.6f%s", e.Index+1, total, e.Loss, e.ValLoss, marker)
	}
}

func runPipeline(ctx context.Context, cfg *config.PipelineConfig) error {
	logger := utils.GetLogger()

	log.Printf("Step 1: Loading %s and partitioning (fraction %.2f, seed %d)...", cfg.Inputs.Features, cfg.Training.Fraction, cfg.Training.Seed)
	log.Printf("Step 2: Training autoencoder for %d epochs (batch %d, %s scaling)...", cfg.Training.Epochs, cfg.Training.BatchSize, cfg.Scaling.Mode)

	pipeline := flights.NewPipeline(cfg)
	pipeline.Update = epochPrinter(cfg.Training.Epochs)

	result, err := pipeline.Run(ctx)
	if err != nil {
		return err
	}

	fmt.Println()
	fmt.Printf("Run %s\n", result.RunID)
	fmt.Printf("Labeled / training / scoring: %d / %d / %d\n", result.LabeledCount, result.TrainingCount, result.ScoringCount)
	if result.MissingLabels > 0 {
		fmt.Printf("Labels not found in feature table: %d\n", result.MissingLabels)
	}
	printHistory(result.History)

	log.Printf("Step 3: Evaluating labeled pool with the top %d errors as %s...", cfg.Thresholds.RankK, cfg.Columns.Positive)
	fmt.Println()
	fmt.Print(flights.FormatConfusion(result.Confusion, cfg.Columns.Positive))
	precision, recall, accuracy := flights.ConfusionStats(result.Confusion)
	fmt.Printf("Precision %.3f  Recall %.3f  Accuracy %.3f  (boundary error %.6f)\n", precision, recall, accuracy, result.RankBoundary)

	log.Printf("Step 4: Screening %d records with cutoff %.3f...", result.ScoringCount, cfg.Thresholds.Cutoff)
	fmt.Println()
	fmt.Printf("Candidates above cutoff: %d\n", len(result.Candidates))
	if result.Overlap != nil {
		fmt.Printf("Overlap with reference list: %d (only ours %d, only reference %d)\n",
			result.Overlap.Size, result.Overlap.OnlyA, result.Overlap.OnlyB)
	}

	if cfg.Outputs.Scores != "" {
		log.Printf("Step 5: Writing scores to %s...", cfg.Outputs.Scores)
		all := append(append([]models.ScoreRow{}, result.LabeledScores...), result.ScoringScores...)
		if err := flights.WriteScoresCSV(cfg.Outputs.Scores, all); err != nil {
			return err
		}
	}

	if err := persistRun(ctx, cfg, result); err != nil {
		logger.ErrorContext(ctx, "Failed to store run.", slog.Any("error", xerrors.New(err)))
	}

	log.Println("Done.")
	return nil
}

func persistRun(ctx context.Context, cfg *config.PipelineConfig, result *flights.RunResult) error {
	client, err := db.NewDBClient(ctx, cfg.Store)
	if errors.Is(err, db.ErrStoreDisabled) {
		return nil
	}
	if err != nil {
		return err
	}
	defer client.Close()

	log.Printf("Step 6: Storing run in %s store...", cfg.Store.Type)
	if err := client.SaveRun(ctx, result.Record(cfg)); err != nil {
		return err
	}
	if err := client.SaveScores(ctx, result.RunID, "labeled", result.LabeledScores); err != nil {
		return err
	}
	return client.SaveScores(ctx, result.RunID, "scoring", result.ScoringScores)
}

func trainOnly(ctx context.Context, cfg *config.PipelineConfig) error {
	log.Printf("Step 1: Loading %s and partitioning...", cfg.Inputs.Features)
	log.Printf("Step 2: Training autoencoder for %d epochs...", cfg.Training.Epochs)

	pipeline := flights.NewPipeline(cfg)
	pipeline.Update = epochPrinter(cfg.Training.Epochs)

	trained, err := pipeline.Train(ctx)
	if err != nil {
		return err
	}

	fmt.Println()
	fmt.Printf("Labeled / training / scoring: %d / %d / %d\n",
		trained.Partition.Labeled.Len(), trained.Partition.Training.Len(), trained.Partition.Scoring.Len())
	printHistory(trained.History)
	fmt.Printf("Checkpoint: %s\n", cfg.Outputs.Checkpoint)
	fmt.Printf("Encoder:    %s\n", flights.EncoderPath(cfg.Outputs.Checkpoint))
	return nil
}

func scoreWithCheckpoint(cfg *config.PipelineConfig, input, checkpoint, output string, useRank bool) error {
	if input == "" {
		input = cfg.Inputs.Features
	}
	if checkpoint == "" {
		checkpoint = cfg.Outputs.Checkpoint
	}
	if output == "" {
		output = cfg.Outputs.Scores
	}

	rankK := 0
	if useRank {
		rankK = cfg.Thresholds.RankK
	}

	log.Printf("Step 1: Scoring %s with %s...", input, checkpoint)
	result, err := flights.ScoreTable(input, checkpoint, cfg, rankK, cfg.Thresholds.Cutoff)
	if err != nil {
		return err
	}

	if useRank {
		fmt.Printf("Top %d records by reconstruction error:\n", rankK)
	} else {
		fmt.Printf("Records above cutoff %.3f:\n", cfg.Thresholds.Cutoff)
	}
	for _, row := range flights.SortByError(result.Rows) {
		if row.Predicted {
			fmt.Printf("  %-10s %.6f\n", row.ID, row.Error)
		}
	}
	fmt.Printf("%d of %d records flagged\n", len(result.Candidates), len(result.Rows))

	if output != "" {
		log.Printf("Step 2: Writing scores to %s...", output)
		if err := flights.WriteScoresCSV(output, result.Rows); err != nil {
			return err
		}
	}
	return nil
}

func compareLists(cfg *config.PipelineConfig, pathA, pathB, column string) error {
	if pathB == "" {
		pathB = cfg.Inputs.Reference
	}
	if column == "" {
		column = cfg.Columns.ID
	}

	a, err := flights.LoadReferenceList(pathA, column, cfg.DelimiterRune())
	if err != nil {
		return err
	}
	b, err := flights.LoadReferenceList(pathB, column, cfg.DelimiterRune())
	if err != nil {
		return err
	}

	report := flights.Overlap(a, b)
	fmt.Printf("%s: %d identifiers\n", pathA, len(a))
	fmt.Printf("%s: %d identifiers\n", pathB, len(b))
	fmt.Printf("Shared: %d (only first %d, only second %d)\n", report.Size, report.OnlyA, report.OnlyB)
	if len(report.IDs) > 0 {
		fmt.Println(strings.Join(report.IDs, "\n"))
	}
	return nil
}

func listRuns(ctx context.Context, cfg *config.PipelineConfig, limit int, show string, top int) error {
	client, err := db.NewDBClient(ctx, cfg.Store)
	if err != nil {
		return err
	}
	defer client.Close()

	if show != "" {
		return showRun(ctx, client, show, top)
	}

	runs, err := client.ListRuns(ctx, limit)
	if err != nil {
		return err
	}
	if len(runs) == 0 {
		fmt.Println("No runs stored.")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tCREATED\tSCALING\tTRAIN\tSCORE\tBEST VAL\tTP/FP/TN/FN\tCANDIDATES\tOVERLAP")
	for _, r := range runs {
		c := r.Confusion
		fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%d\t%.6f\t%d/%d/%d/%d\t%d\t%d\n",
			r.ID, r.CreatedAt.Format("2006-01-02 15:04"), r.ScalingMode, r.TrainingCount, r.ScoringCount,
			r.BestValLoss, c.TruePositive, c.FalsePositive, c.TrueNegative, c.FalseNegative,
			r.CandidateCount, r.OverlapCount)
	}
	return w.Flush()
}

func showRun(ctx context.Context, client db.DBClient, id string, top int) error {
	run, ok, err := client.GetRun(ctx, id)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("run %s not found", id)
	}

	fmt.Printf("Run %s (%s, config %s)\n", run.ID, run.CreatedAt.Format("2006-01-02 15:04:05"), run.ConfigDigest)
	fmt.Printf("Features %s, checkpoint %s\n", run.FeaturesPath, run.CheckpointPath)

	scores, err := client.GetScores(ctx, id)
	if err != nil {
		return err
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "POOL\tID\tERROR\tACTUAL\tPREDICTED")
	shown := map[string]int{}
	for _, s := range scores {
		if top > 0 && shown[s.Pool] >= top {
			continue
		}
		shown[s.Pool]++
		fmt.Fprintf(w, "%s\t%s\t%.6f\t%s\t%t\n", s.Pool, s.ID, s.Error, s.Actual, s.Predicted)
	}
	return w.Flush()
}
