package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"strings"
	"text/tabwriter"

	"surveil-screener/autoencoder"
	"surveil-screener/flights"
)

func main() {
	modelPath := flag.String("model", "model/autoencoder.json", "Checkpoint to inspect")
	showEpochs := flag.Bool("epochs", false, "Print the loss of every recorded epoch")
	flag.Parse()

	cp, err := autoencoder.Load(*modelPath)
	if err != nil {
		log.Fatalf("ERROR: %v", err)
	}
	net, err := cp.Network()
	if err != nil {
		log.Fatalf("ERROR: %v", err)
	}

	fmt.Printf("=== Checkpoint %s ===\n", *modelPath)
	fmt.Printf("Saved:   %s\n", cp.SavedAt.Format("2006-01-02 15:04:05 MST"))
	fmt.Printf("Inputs:  %d\n", net.InputSize())

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "\nLAYER\tINPUTS\tSIZE\tACTIVATION\tL1\tPARAMS")
	total := 0
	for i, l := range net.Layers {
		params := l.Size*l.Inputs + l.Size
		total += params
		fmt.Fprintf(w, "%d\t%d\t%d\t%s\t%g\t%d\n", i, l.Inputs, l.Size, l.Activation, l.ActivityL1, params)
	}
	w.Flush()
	fmt.Printf("Total parameters: %d\n", total)

	if len(cp.Metadata) > 0 {
		var meta flights.ModelMetadata
		if err := json.Unmarshal(cp.Metadata, &meta); err != nil {
			log.Printf("WARNING: unreadable metadata: %v", err)
		} else {
			fmt.Println()
			fmt.Printf("Features: %s\n", strings.Join(meta.Columns, ", "))
			fmt.Printf("Scaling:  %s\n", meta.ScalingMode)
			if meta.Encoder != nil {
				fmt.Printf("Types:    %s\n", strings.Join(meta.Encoder.Categories(), ", "))
			}
		}
	}

	hist := cp.History
	fmt.Println()
	fmt.Printf("Epochs recorded: %d, best epoch %d (val loss %.6f)\n", len(hist.Epochs), hist.BestEpoch+1, hist.BestValLoss)
	if *showEpochs {
		for _, e := range hist.Epochs {
			marker := ""
			if e.Improved {
				marker = " *"
			}
			fmt.Printf("  %3d  loss %.6f  val_loss %.6f%s\n", e.Index+1, e.Loss, e.ValLoss, marker)
		}
	}
}
