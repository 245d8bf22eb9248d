// Package riskmodel implements the health risk classifier: a bagged ensemble
// of CART decision trees trained once on synthetic data with a fixed seed.
//
// A Model starts Untrained. Train moves it to Trained exactly once; after
// that the fitted state is read-only and safe for concurrent use.
package riskmodel

import (
	"context"
	"errors"
	"fmt"
	"math"
	"math/rand/v2"
	"runtime"
	"sync"
	"sync/atomic"

	"github.com/go-playground/validator/v10"
	"golang.org/x/sync/errgroup"
	"gonum.org/v1/gonum/floats"

	"github.com/liamcoop/healthrisk/features"
)

// Defaults used when a Config field is left at zero.
const (
	DefaultTrees           = 100
	DefaultSamples         = 1000
	DefaultSeed     uint64 = 42
	DefaultMinSplit        = 2
)

var (
	// ErrInvalidInput is returned for malformed feature vectors.
	ErrInvalidInput = features.ErrInvalidInput

	// ErrModelNotReady is returned when the model is used before training.
	ErrModelNotReady = errors.New("risk model is not trained")

	// ErrAlreadyTrained is returned when Train is called on a trained model.
	ErrAlreadyTrained = errors.New("risk model is already trained")
)

// Config controls synthetic data generation and tree induction.
// Zero values select the defaults.
type Config struct {
	// Trees is the number of trees in the ensemble.
	Trees int `validate:"gte=0,lte=10000"`

	// Samples is the size of the synthetic training set.
	Samples int `validate:"gte=0,lte=1000000"`

	// Seed drives data generation and bootstrapping. Zero selects DefaultSeed.
	Seed uint64

	// MaxFeatures is the number of candidate features per split.
	// Zero selects floor(sqrt(features.Count)).
	MaxFeatures int `validate:"gte=0,lte=10"`

	// MinSamplesSplit is the minimum node size that may be split.
	MinSamplesSplit int `validate:"gte=0"`

	// MaxDepth limits tree depth. Zero grows trees until leaves are pure.
	MaxDepth int `validate:"gte=0"`
}

var configValidator = validator.New(validator.WithRequiredStructEnabled())

// DefaultConfig returns the configuration the assessment tool ships with.
func DefaultConfig() Config {
	return Config{}.withDefaults()
}

func (c Config) withDefaults() Config {
	if c.Trees == 0 {
		c.Trees = DefaultTrees
	}
	if c.Samples == 0 {
		c.Samples = DefaultSamples
	}
	if c.Seed == 0 {
		c.Seed = DefaultSeed
	}
	if c.MaxFeatures == 0 {
		c.MaxFeatures = int(math.Sqrt(features.Count))
	}
	if c.MinSamplesSplit == 0 {
		c.MinSamplesSplit = DefaultMinSplit
	}
	return c
}

// Model is a bagged decision-tree classifier over feature vectors.
type Model struct {
	cfg Config

	trainMu    sync.Mutex
	ready      atomic.Bool
	trees      []*tree
	importance [features.Count]float64
}

// New returns an untrained model.
func New(cfg Config) *Model {
	return &Model{cfg: cfg}
}

// CreateModel returns a model trained on the synthetic dataset described by cfg.
// It blocks until training completes.
func CreateModel(ctx context.Context, cfg Config) (*Model, error) {
	m := New(cfg)
	if err := m.Train(ctx); err != nil {
		return nil, err
	}
	return m, nil
}

// Config returns the effective configuration of the model.
func (m *Model) Config() Config {
	return m.cfg.withDefaults()
}

// Ready reports whether the model has been trained.
func (m *Model) Ready() bool {
	return m != nil && m.ready.Load()
}

// Train generates the synthetic dataset and fits the ensemble.
// Trees are grown concurrently, each from its own seed, so the fitted state
// depends only on the configuration.
func (m *Model) Train(ctx context.Context) error {
	m.trainMu.Lock()
	defer m.trainMu.Unlock()

	if m.ready.Load() {
		return ErrAlreadyTrained
	}

	if err := configValidator.Struct(m.cfg); err != nil {
		return fmt.Errorf("invalid model config: %w", err)
	}
	cfg := m.cfg.withDefaults()

	ds := GenerateSynthetic(cfg.Samples, cfg.Seed)
	if err := m.fit(ctx, ds, cfg); err != nil {
		return err
	}

	m.ready.Store(true)
	return nil
}

func (m *Model) fit(ctx context.Context, ds Dataset, cfg Config) error {
	if len(ds.X) == 0 {
		return errors.New("cannot fit on an empty dataset")
	}

	params := treeParams{
		maxFeatures:     cfg.MaxFeatures,
		minSamplesSplit: cfg.MinSamplesSplit,
		maxDepth:        cfg.MaxDepth,
	}

	master := rand.New(rand.NewPCG(cfg.Seed, ^cfg.Seed))
	seeds := make([]uint64, cfg.Trees)
	for i := range seeds {
		seeds[i] = master.Uint64()
	}

	trees := make([]*tree, cfg.Trees)
	importances := make([][]float64, cfg.Trees)

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(runtime.GOMAXPROCS(0))
	for i := range trees {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			trees[i], importances[i] = growTree(ds, seeds[i], params)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return fmt.Errorf("failed to grow trees: %w", err)
	}

	imp := make([]float64, features.Count)
	for _, ti := range importances {
		floats.Add(imp, ti)
	}
	if total := floats.Sum(imp); total > 0 {
		floats.Scale(1/total, imp)
	} else {
		for i := range imp {
			imp[i] = 1.0 / features.Count
		}
	}

	m.trees = trees
	copy(m.importance[:], imp)
	return nil
}

// Predict classifies a feature vector given in raw units.
// Class probabilities are the mean of the per-tree leaf distributions and the
// predicted level is their argmax, ties going to the lower level.
func (m *Model) Predict(v features.Vector) (RiskLevel, Probabilities, error) {
	if !m.Ready() {
		return Low, Probabilities{}, ErrModelNotReady
	}
	if err := v.Validate(); err != nil {
		return Low, Probabilities{}, err
	}

	var sum Probabilities
	for _, t := range m.trees {
		p := t.predict(v)
		for c := range sum {
			sum[c] += p[c]
		}
	}

	probs := sum[:]
	floats.Scale(1/floats.Sum(probs), probs)

	return RiskLevel(floats.MaxIdx(probs)), sum, nil
}

// FeatureImportance returns the ensemble's mean impurity decrease per
// feature, normalized to sum to 1.
func (m *Model) FeatureImportance() ([features.Count]float64, error) {
	if !m.Ready() {
		return [features.Count]float64{}, ErrModelNotReady
	}
	return m.importance, nil
}
