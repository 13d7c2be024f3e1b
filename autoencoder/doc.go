// Package autoencoder implements the small feed-forward bottleneck network used to
// score records by how badly it reconstructs them.
//
// Creating Networks
//
// A Network is a stack of dense Layers. New builds the symmetric shape the screener
// uses: two encoding layers that roughly halve the width each time, then two decoding
// layers expanding back to the input width.
//
//		cfg := autoencoder.DefaultConfig(len(columns))
//		cfg.Seed = 42
//		net, err := autoencoder.New(cfg)
//
// The first encoding layer carries an L1 activity penalty (Config.Sparsity), which
// pushes the code towards sparse activations.
//
// Training
//
// Training minimises the mean squared reconstruction error over mini-batches that are
// reshuffled every epoch. After each epoch the loss on the validation rows is measured,
// and whenever it strictly improves the Checkpointer is asked to persist the weights.
// Once the epochs are exhausted the best checkpoint is restored into the Network:
//
//		hist, err := net.Train(ctx, autoencoder.TrainArgs{
//			Train:      rows,
//			Validation: valRows,
//			Epochs:     100,
//			BatchSize:  50,
//			Optimizer:  autoencoder.Adam(0.001),
//			Seed:       42,
//			Checkpoint: &autoencoder.FileCheckpointer{Path: "model.json"},
//		})
//
// If no epoch ever improves (typically because the loss went NaN) Train returns
// ErrNoImprovement rather than leaving an untrained model behind.
//
// Saving and Loading
//
// Checkpoints are JSON documents holding the layer weights, the training history up to
// the save point and opaque caller metadata. Load reads one back and Checkpoint.Network
// rebuilds the Network from it.
package autoencoder
