// Command train fits the digit CNN on the MNIST dataset and writes the
// model artifact the server loads.
package main

import (
	"flag"
	"log/slog"
	"math/rand"
	"os"
	"time"

	"github.com/romba050/hand-written-digits/internal/mnist"
	"github.com/romba050/hand-written-digits/internal/nn"
	"github.com/romba050/hand-written-digits/internal/tensor"
)

func main() {
	dataDir := flag.String("data", "data/mnist", "directory with the four MNIST .gz files")
	out := flag.String("out", "mnist_model.gob", "output model path")
	epochs := flag.Int("epochs", 10, "training epochs")
	batchSize := flag.Int("batch", 128, "minibatch size")
	lr := flag.Float64("lr", 1e-3, "Adam learning rate")
	seed := flag.Int64("seed", 1, "rng seed")
	flag.Parse()

	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))
	slog.SetDefault(logger)

	logger.Info("loading dataset", "dir", *dataDir)
	train, test, err := mnist.Load(*dataDir)
	if err != nil {
		logger.Error("dataset load failed", "error", err)
		os.Exit(1)
	}
	logger.Info("dataset loaded", "train", len(train.Images), "test", len(test.Images))

	rng := rand.New(rand.NewSource(*seed))
	net := nn.NewMnistCNN(rng)
	opt := nn.NewAdam(float32(*lr))

	order := make([]int, len(train.Images))
	for i := range order {
		order[i] = i
	}

	for epoch := 1; epoch <= *epochs; epoch++ {
		start := time.Now()
		rng.Shuffle(len(order), func(i, j int) { order[i], order[j] = order[j], order[i] })

		var epochLoss float64
		var batches int
		for at := 0; at+*batchSize <= len(order); at += *batchSize {
			batch, labels := gather(train, order[at:at+*batchSize])
			logits := net.ForwardTrain(batch)
			loss, grad := nn.CrossEntropyLoss(logits, labels)
			net.Backward(grad)
			opt.Step(net.Params(), net.Grads())
			epochLoss += float64(loss)
			batches++

			if batches%50 == 0 {
				logger.Info("progress", "epoch", epoch, "batch", batches, "loss", loss)
			}
		}

		acc := evaluate(net, test)
		logger.Info("epoch done",
			"epoch", epoch,
			"loss", epochLoss/float64(batches),
			"test_accuracy", acc,
			"elapsed", time.Since(start))
	}

	if err := net.Save(*out); err != nil {
		logger.Error("save failed", "error", err)
		os.Exit(1)
	}
	logger.Info("model saved", "path", *out)
}

// gather stacks the selected examples into one (B,28,28,1) batch tensor.
func gather(set *mnist.Set, idx []int) (*tensor.Tensor, []int) {
	side := mnist.ImgSize
	batch := tensor.New(len(idx), side, side, 1)
	labels := make([]int, len(idx))
	bd := batch.Data()
	per := side * side
	for i, j := range idx {
		copy(bd[i*per:(i+1)*per], set.Images[j].Data())
		labels[i] = set.Labels[j]
	}
	return batch, labels
}

// evaluate returns top-1 accuracy over a split using pure inference
// passes, batched for speed.
func evaluate(net *nn.Network, set *mnist.Set) float64 {
	const bs = 256
	correct := 0
	total := 0
	for at := 0; at < len(set.Images); at += bs {
		end := at + bs
		if end > len(set.Images) {
			end = len(set.Images)
		}
		idx := make([]int, end-at)
		for i := range idx {
			idx[i] = at + i
		}
		batch, labels := gather(set, idx)
		probs := net.Forward(batch)
		pd := probs.Data()
		for i, label := range labels {
			row := pd[i*10 : (i+1)*10]
			best := 0
			for c, v := range row {
				if v > row[best] {
					best = c
				}
			}
			if best == label {
				correct++
			}
		}
		total += len(labels)
	}
	return float64(correct) / float64(total)
}
