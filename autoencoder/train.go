package autoencoder

import (
	"context"
	"math"
	"math/rand"

	"github.com/pkg/errors"
)

// ErrNoImprovement is returned by Train when no epoch produced a finite validation loss
// lower than the starting point, so no checkpoint was ever written.
var ErrNoImprovement = errors.New("training produced no improving checkpoint")

// Epoch is the progress report sent after every pass over the training rows.
type Epoch struct {
	Index    int     `json:"epoch"`
	Loss     float64 `json:"loss"`
	ValLoss  float64 `json:"valLoss"`
	Improved bool    `json:"improved"`
}

// History records every epoch of a training run and where the best one was.
type History struct {
	Epochs      []Epoch `json:"epochs"`
	BestEpoch   int     `json:"bestEpoch"`
	BestValLoss float64 `json:"bestValLoss"`
}

// Checkpointer persists the best weights seen during training and hands them back once
// training has finished.
type Checkpointer interface {
	Save(net *Network, hist History) error
	Restore() (*Network, error)
}

type TrainArgs struct {
	// Train holds the rows the Network learns to reconstruct.
	Train [][]float64

	// Validation is measured after each epoch. If empty, the training rows are used.
	Validation [][]float64

	Epochs    int
	BatchSize int

	// Optimizer defaults to Adam(0.001) when nil.
	Optimizer Optimizer

	// Seed drives the per-epoch shuffling.
	Seed int64

	// Checkpoint defaults to an in-memory copy of the best weights when nil.
	Checkpoint Checkpointer

	// Update, if not nil, is called after every epoch.
	Update func(Epoch)
}

// Train runs mini-batch training and leaves the Network holding the weights of the epoch
// with the lowest validation loss.
func (net *Network) Train(ctx context.Context, args TrainArgs) (History, error) {
	var hist History

	// handle error cases and set defaults
	{
		if err := net.validate(); err != nil {
			return hist, errors.Wrap(err, "invalid network")
		}
		if len(args.Train) == 0 {
			return hist, errors.New("no training rows")
		}
		if args.Epochs <= 0 {
			return hist, errors.Errorf("epochs must be positive, got %d", args.Epochs)
		}
		if args.BatchSize <= 0 {
			return hist, errors.Errorf("batch size must be positive, got %d", args.BatchSize)
		}
		for i, row := range args.Train {
			if len(row) != net.InputSize() {
				return hist, errors.Wrapf(ErrSizeMismatch, "training row %d has %d values", i, len(row))
			}
		}
		for i, row := range args.Validation {
			if len(row) != net.InputSize() {
				return hist, errors.Wrapf(ErrSizeMismatch, "validation row %d has %d values", i, len(row))
			}
		}
		if len(args.Validation) == 0 {
			args.Validation = args.Train
		}
		if args.Optimizer == nil {
			args.Optimizer = Adam(0.001)
		}
		if args.Checkpoint == nil {
			args.Checkpoint = &memoryCheckpointer{}
		}
		if args.Update == nil {
			args.Update = func(Epoch) {}
		}
	}

	rng := rand.New(rand.NewSource(args.Seed))
	order := make([]int, len(args.Train))
	for i := range order {
		order[i] = i
	}

	grads := newGradients(net)
	hist.BestEpoch = -1
	hist.BestValLoss = math.Inf(1)

	for epoch := 0; epoch < args.Epochs; epoch++ {
		if err := ctx.Err(); err != nil {
			return hist, err
		}

		rng.Shuffle(len(order), func(i, j int) { order[i], order[j] = order[j], order[i] })

		var total float64
		for start := 0; start < len(order); start += args.BatchSize {
			end := min(start+args.BatchSize, len(order))

			grads.reset()
			for _, idx := range order[start:end] {
				tr := net.forward(args.Train[idx])
				total += net.sampleLoss(tr)
				net.backward(tr, grads)
			}
			net.apply(grads, end-start, args.Optimizer)
		}

		valLoss, err := net.Loss(args.Validation)
		if err != nil {
			return hist, errors.Wrap(err, "validation failed")
		}

		e := Epoch{
			Index:   epoch,
			Loss:    total / float64(len(order)),
			ValLoss: valLoss,
		}

		diverged := math.IsNaN(e.Loss) || math.IsInf(e.Loss, 0) || math.IsNaN(valLoss) || math.IsInf(valLoss, 0)
		if !diverged && valLoss < hist.BestValLoss {
			e.Improved = true
			hist.BestEpoch = epoch
			hist.BestValLoss = valLoss
		}
		hist.Epochs = append(hist.Epochs, e)

		if e.Improved {
			if err := args.Checkpoint.Save(net, hist); err != nil {
				return hist, errors.Wrapf(err, "saving checkpoint for epoch %d failed", epoch)
			}
		}
		args.Update(e)

		if diverged {
			break
		}
	}

	if hist.BestEpoch < 0 {
		return hist, ErrNoImprovement
	}

	best, err := args.Checkpoint.Restore()
	if err != nil {
		return hist, errors.Wrap(err, "restoring best checkpoint failed")
	}
	if err := best.validate(); err != nil {
		return hist, errors.Wrap(err, "restored checkpoint is invalid")
	}
	if best.InputSize() != net.InputSize() {
		return hist, errors.Wrapf(ErrSizeMismatch, "restored checkpoint has %d inputs", best.InputSize())
	}
	net.Layers = best.Layers

	return hist, nil
}

type memoryCheckpointer struct {
	best *Network
}

func (m *memoryCheckpointer) Save(net *Network, _ History) error {
	m.best = net.Clone()
	return nil
}

func (m *memoryCheckpointer) Restore() (*Network, error) {
	if m.best == nil {
		return nil, errors.New("no checkpoint saved")
	}
	return m.best.Clone(), nil
}
