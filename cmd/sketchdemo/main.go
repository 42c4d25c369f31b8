// sketchdemo is a runnable illustration of the sketchcore.dev library's
// public API: construct, update, merge, serialize, and query each sketch
// family. It has no network or service surface, the way axiomhq/hyperloglog's
// demo/ directory and limite's cmd/limite-check illustrate their libraries
// without turning the library itself into a service.
package main

import (
	"flag"
	"log/slog"
	"os"

	"sketchcore.dev/frequency"
	"sketchcore.dev/hashfn"
	"sketchcore.dev/internal/bucketstore"
	"sketchcore.dev/quantiles"
	"sketchcore.dev/req"
	"sketchcore.dev/sketchrand"
)

func main() {
	which := flag.String("sketch", "all", "which sketch to demo: frequency, quantiles, req, hll, all")
	streamSize := flag.Int("n", 100_000, "number of synthetic stream values to feed")
	seed := flag.Uint64("seed", 42, "RNG seed for reproducible demo runs")
	flag.Parse()

	logger := slog.New(slog.NewTextHandler(os.Stdout, nil))
	rng := sketchrand.NewPCG(*seed, *seed^0xdeadbeef)

	switch *which {
	case "frequency":
		runFrequencyDemo(logger, rng, *streamSize)
	case "quantiles":
		runQuantilesDemo(logger, rng, *streamSize)
	case "req":
		runREQDemo(logger, rng, *streamSize)
	case "hll":
		runBucketStoreDemo(logger)
	case "all":
		runFrequencyDemo(logger, rng, *streamSize)
		runQuantilesDemo(logger, rng, *streamSize)
		runREQDemo(logger, rng, *streamSize)
		runBucketStoreDemo(logger)
	default:
		logger.Error("unknown sketch", "sketch", *which)
		os.Exit(1)
	}
}

// zipfLikeWord maps i into a ten-word space in round-robin order, so every
// word recurs with the same frequency across the demo stream.
func zipfLikeWord(i int) string {
	words := []string{"the", "of", "and", "a", "to", "in", "is", "you", "that", "it"}
	return words[i%len(words)]
}

func runFrequencyDemo(logger *slog.Logger, rng sketchrand.UniformRng, n int) {
	logger.Info("frequency: building sketch", "maxMapSize", 64, "stream", n)
	sk, err := frequency.New[string](64, hashfn.XXHashString, rng)
	if err != nil {
		logger.Error("frequency: construct failed", "err", err)
		os.Exit(1)
	}
	for i := 0; i < n; i++ {
		if err := sk.Update(zipfLikeWord(i), 1); err != nil {
			logger.Error("frequency: update failed", "err", err)
			os.Exit(1)
		}
	}
	for _, row := range sk.TopItems(5) {
		logger.Info("frequency: top item", "item", row.Item, "estimate", row.Estimate,
			"lowerBound", row.LowerBound, "upperBound", row.UpperBound)
	}

	b := sk.ToBytes(frequency.StringCodec{})
	restored, err := frequency.FromBytes[string](b, frequency.StringCodec{}, hashfn.XXHashString, rng)
	if err != nil {
		logger.Error("frequency: round trip failed", "err", err)
		os.Exit(1)
	}
	logger.Info("frequency: serialized", "bytes", len(b), "restoredStreamLength", restored.StreamLength())
}

func runQuantilesDemo(logger *slog.Logger, rng sketchrand.UniformRng, n int) {
	logger.Info("quantiles: building sketch", "k", 128, "stream", n)
	sk, err := quantiles.New(128, rng)
	if err != nil {
		logger.Error("quantiles: construct failed", "err", err)
		os.Exit(1)
	}
	for i := 1; i <= n; i++ {
		if err := sk.Update(float64(i)); err != nil {
			logger.Error("quantiles: update failed", "err", err)
			os.Exit(1)
		}
	}
	median := sk.Quantile(0.5)
	rank, _ := sk.Rank(float64(n) / 2)
	logger.Info("quantiles: summary", "n", sk.N(), "min", sk.MinValue(), "max", sk.MaxValue(),
		"median", median, "rankAtMidpoint", rank)
}

func runREQDemo(logger *slog.Logger, rng sketchrand.UniformRng, n int) {
	logger.Info("req: building sketch", "k", 32, "hra", true, "stream", n)
	sk, err := req.NewSketch(32, true, rng)
	if err != nil {
		logger.Error("req: construct failed", "err", err)
		os.Exit(1)
	}
	for i := 1; i <= n; i++ {
		if err := sk.Update(float64(i)); err != nil {
			logger.Error("req: update failed", "err", err)
			os.Exit(1)
		}
	}
	aux, err := req.BuildAuxiliary(sk)
	if err != nil {
		logger.Error("req: build auxiliary failed", "err", err)
		os.Exit(1)
	}
	p99 := aux.GetQuantile(0.99, req.Inclusive)
	logger.Info("req: summary", "n", sk.N(), "retained", sk.RetainedItems(), "p99", p99)
}

func runBucketStoreDemo(logger *slog.Logger) {
	const k = 1024
	store := bucketstore.NewDenseStore(k)
	for i := 0; i < k/4; i++ {
		store.Update(i, byte(1+i%20))
	}
	sum, err := bucketstore.ComputeInvPow2Sum(k, store.Iterator())
	if err != nil {
		logger.Error("hll: invpow2 sum failed", "err", err)
		os.Exit(1)
	}
	logger.Info("hll: bucket aggregation", "k", k, "invPow2Sum", sum)
}
