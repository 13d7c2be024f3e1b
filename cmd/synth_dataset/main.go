package main

import (
	"encoding/csv"
	"flag"
	"fmt"
	"log"
	"math/rand"
	"os"
	"path/filepath"
	"sort"
	"strconv"

	"surveil-screener/utils"
)

// Behaviour profile of one synthetic aircraft class.
type profile struct {
	class     string
	types     []string
	duration  [2]float64 // minutes
	turnRate  [2]float64 // degrees per second
	circles   [2]float64 // full circles flown
	altitude  [2]float64 // feet
	steadyAlt [2]float64 // share of time at constant altitude
}

var (
	normal = profile{
		class:     "other",
		types:     []string{"B738", "A320", "E75L", "C172", "PC12"},
		duration:  [2]float64{40, 240},
		turnRate:  [2]float64{0.1, 0.8},
		circles:   [2]float64{0, 1},
		altitude:  [2]float64{8000, 38000},
		steadyAlt: [2]float64{0.6, 0.95},
	}
	surveil = profile{
		class:     "surveil",
		types:     []string{"C208", "C182", "AS50"},
		duration:  [2]float64{180, 420},
		turnRate:  [2]float64{1.5, 4},
		circles:   [2]float64{8, 40},
		altitude:  [2]float64{3000, 9000},
		steadyAlt: [2]float64{0.2, 0.5},
	}
)

func uniform(rng *rand.Rand, r [2]float64) float64 {
	return r[0] + rng.Float64()*(r[1]-r[0])
}

func main() {
	outDir := flag.String("out", "data", "Output directory")
	records := flag.Int("n", 2000, "Number of aircraft")
	surveilShare := flag.Float64("surveil", 0.05, "Share of surveillance-like aircraft")
	labeledShare := flag.Float64("labeled", 0.1, "Share of aircraft written to the label table")
	seed := flag.Int64("seed", 42, "Random seed")
	flag.Parse()

	if *records <= 0 || *surveilShare < 0 || *surveilShare > 1 || *labeledShare < 0 || *labeledShare > 1 {
		log.Fatalf("ERROR: invalid sizes")
	}
	if err := utils.CreateFolder(*outDir); err != nil {
		log.Fatalf("ERROR: %v", err)
	}

	rng := rand.New(rand.NewSource(*seed))

	log.Printf("Step 1: Generating %d aircraft (%.0f%% surveillance-like)...", *records, *surveilShare*100)
	type aircraft struct {
		id    string
		p     profile
		typ   string
		feats []float64
	}
	fleet := make([]aircraft, *records)
	seen := map[string]bool{}
	for i := range fleet {
		p := normal
		if rng.Float64() < *surveilShare {
			p = surveil
		}
		id := fmt.Sprintf("%06x", rng.Intn(1<<24))
		for seen[id] {
			id = fmt.Sprintf("%06x", rng.Intn(1<<24))
		}
		seen[id] = true

		fleet[i] = aircraft{
			id:  id,
			p:   p,
			typ: p.types[rng.Intn(len(p.types))],
			feats: []float64{
				uniform(rng, p.duration),
				uniform(rng, p.turnRate),
				float64(int(uniform(rng, p.circles))),
				uniform(rng, p.altitude),
				uniform(rng, p.steadyAlt),
			},
		}
	}

	log.Println("Step 2: Writing feature table...")
	featuresPath := filepath.Join(*outDir, "features.csv")
	rows := [][]string{{"adshex", "type", "duration", "turn_rate", "circles", "altitude", "steady_alt"}}
	for _, a := range fleet {
		row := []string{a.id, a.typ}
		for _, f := range a.feats {
			row = append(row, strconv.FormatFloat(f, 'f', 4, 64))
		}
		rows = append(rows, row)
	}
	if err := writeCSV(featuresPath, rows); err != nil {
		log.Fatalf("ERROR: %v", err)
	}

	log.Println("Step 3: Writing label table and reference list...")
	labelRows := [][]string{{"adshex", "class"}}
	var reference []string
	for _, a := range fleet {
		if rng.Float64() < *labeledShare {
			labelRows = append(labelRows, []string{a.id, a.p.class})
			continue
		}
		// the reference list misses some surveillance aircraft and includes a few others
		if (a.p.class == "surveil" && rng.Float64() < 0.7) || rng.Float64() < 0.005 {
			reference = append(reference, a.id)
		}
	}
	sort.Strings(reference)
	refRows := [][]string{{"adshex"}}
	for _, id := range reference {
		refRows = append(refRows, []string{id})
	}

	labelsPath := filepath.Join(*outDir, "train.csv")
	referencePath := filepath.Join(*outDir, "candidates.csv")
	if err := writeCSV(labelsPath, labelRows); err != nil {
		log.Fatalf("ERROR: %v", err)
	}
	if err := writeCSV(referencePath, refRows); err != nil {
		log.Fatalf("ERROR: %v", err)
	}

	log.Printf("Wrote %s (%d rows), %s (%d rows), %s (%d rows)",
		featuresPath, len(rows)-1, labelsPath, len(labelRows)-1, referencePath, len(refRows)-1)
}

func writeCSV(path string, rows [][]string) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", path, err)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if err := w.WriteAll(rows); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	return nil
}
