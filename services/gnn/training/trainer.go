// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package training drives contrastive training of the graph encoder.
//
// # Description
//
// A run walks the state machine Idle → Batching → ForwardPass →
// LossComputation → BackwardPass → ParameterUpdate, looping back to
// Batching until the epoch budget is spent, the validation loss
// plateaus, the context is cancelled, or the loss diverges. Each batch
// takes two augmented views per unit, embeds every view on its own
// tape in parallel, couples the embeddings in one contrastive loss,
// and pushes the loss gradients back through each view's tape before a
// single-writer parameter update. A non-finite loss skips the update;
// a streak of them fails the run with DivergentTrainingError.
//
// # Thread Safety
//
// A Trainer accepts one run at a time; Train returns an error while a
// run is active. Status may be read concurrently from any goroutine.
// The encoder is exclusively owned during a run; serving traffic reads
// the separately restored encoder published to the params.Publisher,
// never the one being trained.
package training

import (
	"context"
	"fmt"
	"math"
	"math/rand"
	"runtime"
	"sync/atomic"
	"time"

	"log/slog"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"github.com/bobinzuks/GNN-CODE-INTELLIGENCE-SYSTEM/services/codegraph/graph"
	"github.com/bobinzuks/GNN-CODE-INTELLIGENCE-SYSTEM/services/gnn/encode"
	"github.com/bobinzuks/GNN-CODE-INTELLIGENCE-SYSTEM/services/gnn/layers"
	"github.com/bobinzuks/GNN-CODE-INTELLIGENCE-SYSTEM/services/gnn/params"
	"github.com/bobinzuks/GNN-CODE-INTELLIGENCE-SYSTEM/services/gnn/tensor"
)

var trainerTracer = otel.Tracer("gnn.training")

// =============================================================================
// States and Configuration
// =============================================================================

// State is one phase of the training state machine.
type State string

const (
	StateIdle            State = "idle"
	StateBatching        State = "batching"
	StateForwardPass     State = "forward_pass"
	StateLossComputation State = "loss_computation"
	StateBackwardPass    State = "backward_pass"
	StateParameterUpdate State = "parameter_update"
	StateConverged       State = "converged"
	StateFailed          State = "failed"
)

// Defaults applied by Config.WithDefaults.
const (
	DefaultEpochs       = 50
	DefaultBatchSize    = 8
	DefaultLearningRate = float32(0.001)
	DefaultWeightDecay  = float32(1e-4)
	DefaultClipNorm     = float32(1.0)
	DefaultPatience     = 20
	DefaultMinDelta     = 1e-4
)

// Config controls one training run. The zero value of every field
// selects a sensible default, so Config{} trains.
type Config struct {
	// Epochs is the hard epoch budget.
	Epochs int `json:"epochs" yaml:"epochs"`

	// BatchSize is the number of units per batch, minimum 2 so every
	// positive pair has at least one in-batch negative.
	BatchSize int `json:"batch_size" yaml:"batch_size"`

	// LearningRate is the base step size.
	LearningRate float32 `json:"learning_rate" yaml:"learning_rate"`

	// Loss selects the contrastive objective: "infonce" or "margin".
	Loss string `json:"loss" yaml:"loss"`

	// Temperature scales InfoNCE similarities.
	Temperature float32 `json:"temperature" yaml:"temperature"`

	// Margin is the hinge gap for the margin loss.
	Margin float32 `json:"margin" yaml:"margin"`

	// Optimizer selects "adam" or "sgd".
	Optimizer string `json:"optimizer" yaml:"optimizer"`

	// WeightDecay is the L2 penalty folded into gradients.
	WeightDecay float32 `json:"weight_decay" yaml:"weight_decay"`

	// Momentum applies to SGD only.
	Momentum float32 `json:"momentum" yaml:"momentum"`

	// ClipNorm caps the global gradient norm. Zero selects the
	// default; a negative value disables clipping.
	ClipNorm float32 `json:"clip_norm" yaml:"clip_norm"`

	// Scheduler selects the learning rate schedule: "constant",
	// "step", "exponential", or "cosine".
	Scheduler string `json:"scheduler" yaml:"scheduler"`

	// Patience is the number of epochs without relative improvement
	// beyond MinDelta before the run stops as converged.
	Patience int `json:"patience" yaml:"patience"`

	// MinDelta is the relative improvement threshold for the plateau
	// check.
	MinDelta float64 `json:"min_delta" yaml:"min_delta"`

	// Augment sets the view augmentation strengths. Nil selects the
	// defaults; a pointer to the zero Augmentor disables augmentation.
	Augment *Augmentor `json:"augment,omitempty" yaml:"augment,omitempty"`

	// Workers bounds the per-view parallelism within a batch.
	Workers int `json:"workers" yaml:"workers"`

	// Seed makes shuffling, augmentation, and dropout reproducible.
	Seed int64 `json:"seed" yaml:"seed"`
}

// WithDefaults returns a copy with every zero field replaced by its
// default. Validate expects a defaulted config.
func (c Config) WithDefaults() Config {
	if c.Epochs == 0 {
		c.Epochs = DefaultEpochs
	}
	if c.BatchSize == 0 {
		c.BatchSize = DefaultBatchSize
	}
	if c.LearningRate == 0 {
		c.LearningRate = DefaultLearningRate
	}
	if c.Loss == "" {
		c.Loss = LossInfoNCE
	}
	if c.Temperature == 0 {
		c.Temperature = DefaultTemperature
	}
	if c.Margin == 0 {
		c.Margin = DefaultMargin
	}
	if c.Optimizer == "" {
		c.Optimizer = OptimizerAdam
	}
	if c.WeightDecay == 0 {
		c.WeightDecay = DefaultWeightDecay
	}
	if c.ClipNorm == 0 {
		c.ClipNorm = DefaultClipNorm
	}
	if c.Scheduler == "" {
		c.Scheduler = SchedulerConstant
	}
	if c.Patience == 0 {
		c.Patience = DefaultPatience
	}
	if c.MinDelta == 0 {
		c.MinDelta = DefaultMinDelta
	}
	if c.Augment == nil {
		a := DefaultAugmentor()
		c.Augment = &a
	}
	if c.Workers == 0 {
		c.Workers = runtime.GOMAXPROCS(0)
	}
	if c.Seed == 0 {
		c.Seed = 1
	}
	return c
}

// Validate checks a fully defaulted config.
func (c Config) Validate() error {
	if c.Epochs < 1 {
		return fmt.Errorf("epochs must be at least 1, got %d", c.Epochs)
	}
	if c.BatchSize < 2 {
		return fmt.Errorf("batch size must be at least 2 so every positive has a negative, got %d", c.BatchSize)
	}
	if c.LearningRate <= 0 {
		return fmt.Errorf("learning rate must be positive, got %v", c.LearningRate)
	}
	if c.Patience < 1 {
		return fmt.Errorf("patience must be at least 1, got %d", c.Patience)
	}
	if c.MinDelta < 0 {
		return fmt.Errorf("min delta must not be negative, got %v", c.MinDelta)
	}
	if c.Workers < 1 {
		return fmt.Errorf("workers must be at least 1, got %d", c.Workers)
	}
	if c.Augment != nil {
		if err := c.Augment.Validate(); err != nil {
			return err
		}
	}
	if _, err := NewLoss(c.Loss, c.Temperature, c.Margin); err != nil {
		return err
	}
	if _, err := NewOptimizer(c.Optimizer, c.LearningRate, c.WeightDecay, c.Momentum); err != nil {
		return err
	}
	if _, err := NewScheduler(c.Scheduler, c.Epochs); err != nil {
		return err
	}
	return nil
}

// =============================================================================
// Trainer
// =============================================================================

// Status is an observable snapshot of the trainer.
type Status struct {
	RunID          string  `json:"run_id"`
	State          State   `json:"state"`
	Epoch          int     `json:"epoch"`
	Batch          int     `json:"batch"`
	LastLoss       float64 `json:"last_loss"`
	BestLoss       float64 `json:"best_loss"`
	LearningRate   float32 `json:"learning_rate"`
	DivergentSkips int     `json:"divergent_skips"`
	Converged      bool    `json:"converged"`
	FailureReason  string  `json:"failure_reason,omitempty"`
	StartedAtMilli int64   `json:"started_at_milli,omitempty"`
	UpdatedAtMilli int64   `json:"updated_at_milli,omitempty"`
}

// Result summarizes a finished run.
type Result struct {
	RunID     string
	Epochs    int
	FinalLoss float64
	BestLoss  float64
	Converged bool
	Cancelled bool

	// Snapshot is the captured parameter state at run end. It is
	// published to the trainer's publisher only for runs that complete
	// their schedule; cancelled runs leave publishing to the caller.
	Snapshot *params.Snapshot
}

// Trainer owns an encoder through successive training runs.
type Trainer struct {
	cfg       Config
	encoder   *layers.Encoder
	publisher *params.Publisher
	logger    *slog.Logger

	running atomic.Bool
	status  atomic.Pointer[Status]
}

// NewTrainer creates a trainer. The publisher may be nil when trained
// parameters are collected from the Result instead of being served.
func NewTrainer(cfg Config, enc *layers.Encoder, pub *params.Publisher, logger *slog.Logger) (*Trainer, error) {
	if enc == nil {
		return nil, fmt.Errorf("encoder must not be nil")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger must not be nil")
	}
	cfg = cfg.WithDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	t := &Trainer{cfg: cfg, encoder: enc, publisher: pub, logger: logger}
	t.status.Store(&Status{State: StateIdle})
	return t, nil
}

// Config returns the fully defaulted run configuration.
func (t *Trainer) Config() Config { return t.cfg }

// Running reports whether a run is in progress.
func (t *Trainer) Running() bool { return t.running.Load() }

// Status returns the current run status.
func (t *Trainer) Status() Status { return *t.status.Load() }

func (t *Trainer) setStatus(mut func(*Status)) {
	next := *t.status.Load()
	mut(&next)
	next.UpdatedAtMilli = time.Now().UnixMilli()
	t.status.Store(&next)
}

// Train runs the full loop over the given units and returns the final
// parameter snapshot. Units that fail to encode are excluded with a
// warning; the run proceeds as long as two usable units remain.
// Cancellation is honored between batches: the in-flight batch
// completes, then the run stops cleanly as non-converged.
func (t *Trainer) Train(ctx context.Context, units []*graph.Graph) (*Result, error) {
	if ctx == nil {
		return nil, fmt.Errorf("ctx must not be nil")
	}
	if !t.running.CompareAndSwap(false, true) {
		return nil, fmt.Errorf("a training run is already in progress")
	}
	defer t.running.Store(false)

	runID := uuid.NewString()
	data, err := t.encodeUnits(ctx, runID, units)
	if err != nil {
		return nil, err
	}

	loss, err := NewLoss(t.cfg.Loss, t.cfg.Temperature, t.cfg.Margin)
	if err != nil {
		return nil, err
	}
	opt, err := NewOptimizer(t.cfg.Optimizer, t.cfg.LearningRate, t.cfg.WeightDecay, t.cfg.Momentum)
	if err != nil {
		return nil, err
	}
	sched, err := NewScheduler(t.cfg.Scheduler, t.cfg.Epochs)
	if err != nil {
		return nil, err
	}

	r := &run{
		t:        t,
		id:       runID,
		data:     data,
		loss:     loss,
		opt:      opt,
		sched:    sched,
		aug:      *t.cfg.Augment,
		named:    t.encoder.Params(),
		rng:      rand.New(rand.NewSource(t.cfg.Seed)),
		bestLoss: math.Inf(1),
	}
	return r.execute(ctx)
}

// encodeUnits converts the unit graphs to tensor form in parallel.
// Per-unit failures never abort sibling units.
func (t *Trainer) encodeUnits(ctx context.Context, runID string, units []*graph.Graph) ([]tensor.GraphData, error) {
	if len(units) < 2 {
		return nil, fmt.Errorf("training needs at least 2 units, got %d", len(units))
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	data := make([]tensor.GraphData, len(units))
	failures := make([]error, len(units))

	var g errgroup.Group
	sem := make(chan struct{}, t.cfg.Workers)
	for i, u := range units {
		i, u := i, u
		g.Go(func() error {
			sem <- struct{}{}
			defer func() { <-sem }()

			d, err := encode.Data(u)
			if err != nil {
				failures[i] = err
				return nil
			}
			data[i] = d
			return nil
		})
	}
	_ = g.Wait()

	kept := make([]tensor.GraphData, 0, len(units))
	for i := range data {
		if failures[i] != nil {
			t.logger.Warn("unit excluded from training",
				slog.String("run_id", runID),
				slog.Int("unit", i),
				slog.Any("error", failures[i]),
			)
			continue
		}
		kept = append(kept, data[i])
	}
	if len(kept) < 2 {
		return nil, fmt.Errorf("only %d of %d units usable, need at least 2", len(kept), len(units))
	}
	return kept, nil
}

// =============================================================================
// Run Loop
// =============================================================================

// run carries the state of one training run.
type run struct {
	t     *Trainer
	id    string
	data  []tensor.GraphData
	loss  Loss
	opt   Optimizer
	sched Scheduler
	aug   Augmentor
	named []layers.NamedTensor
	rng   *rand.Rand

	epoch        int
	batch        int
	bestLoss     float64
	lastLoss     float64
	plateau      int
	divergentRun int
	epochsRan    int
	cancelled    bool
}

// view is one augmented graph's forward pass, kept until its backward
// half runs.
type view struct {
	tape *tensor.Tape
	bind *layers.Binding
	out  *tensor.Value
}

func (r *run) execute(ctx context.Context) (*Result, error) {
	ctx, span := trainerTracer.Start(ctx, "training.run",
		trace.WithAttributes(
			attribute.String("run_id", r.id),
			attribute.Int("units", len(r.data)),
			attribute.Int("epoch_budget", r.t.cfg.Epochs),
		),
	)
	defer span.End()

	started := time.Now()
	r.t.setStatus(func(s *Status) {
		*s = Status{
			RunID:          r.id,
			State:          StateBatching,
			BestLoss:       math.Inf(1),
			LearningRate:   r.t.cfg.LearningRate,
			StartedAtMilli: started.UnixMilli(),
		}
	})
	r.t.logger.Info("training run started",
		slog.String("run_id", r.id),
		slog.Int("units", len(r.data)),
		slog.Int("epochs", r.t.cfg.Epochs),
		slog.String("loss", r.loss.Name()),
		slog.String("optimizer", r.opt.Name()),
	)

	converged := false
	for r.epoch = 0; r.epoch < r.t.cfg.Epochs; r.epoch++ {
		epochLoss, hadUpdates, err := r.runEpoch(ctx)
		if err != nil {
			r.fail(span, err)
			return nil, err
		}
		if r.cancelled {
			break
		}
		r.epochsRan++
		trainingEpochsTotal.Inc()
		if !hadUpdates {
			continue
		}

		improved := (r.bestLoss - epochLoss) > r.t.cfg.MinDelta*math.Max(1, math.Abs(r.bestLoss))
		if improved {
			r.bestLoss = epochLoss
			r.plateau = 0
		} else {
			r.plateau++
			if r.plateau >= r.t.cfg.Patience {
				converged = true
			}
		}
		r.t.setStatus(func(s *Status) { s.BestLoss = r.bestLoss })

		lr := r.sched.LR(r.epoch+1, r.t.cfg.LearningRate)
		r.opt.SetLR(lr)
		trainingLearningRate.Set(float64(lr))
		r.t.setStatus(func(s *Status) { s.LearningRate = lr })

		r.t.logger.Info("epoch complete",
			slog.String("run_id", r.id),
			slog.Int("epoch", r.epoch),
			slog.Float64("loss", epochLoss),
			slog.Float64("best_loss", r.bestLoss),
			slog.Int("plateau", r.plateau),
		)
		if converged {
			break
		}
	}

	return r.finish(span, converged, started)
}

// finish captures the final snapshot, publishes it for completed runs,
// and settles the terminal state.
func (r *run) finish(span trace.Span, converged bool, started time.Time) (*Result, error) {
	snap := params.Capture(r.t.encoder, params.TrainInfo{
		RunID:     r.id,
		Epochs:    r.epochsRan,
		FinalLoss: r.lastLoss,
		Converged: converged,
	})

	outcome := "budget_exhausted"
	switch {
	case r.cancelled:
		outcome = "cancelled"
	case converged:
		outcome = "converged"
	}
	recordRunOutcome(outcome)
	span.SetAttributes(
		attribute.String("outcome", outcome),
		attribute.Int("epochs_ran", r.epochsRan),
		attribute.Float64("best_loss", r.bestLoss),
	)

	if !r.cancelled && r.t.publisher != nil {
		if err := r.t.publisher.Publish(snap); err != nil {
			return nil, fmt.Errorf("publishing trained parameters: %w", err)
		}
		r.t.logger.Info("parameters published",
			slog.String("run_id", r.id),
			slog.String("version", snap.Version),
		)
	}

	terminal := StateIdle
	if converged {
		terminal = StateConverged
	}
	r.t.setStatus(func(s *Status) {
		s.State = terminal
		s.Converged = converged
	})
	r.t.logger.Info("training run finished",
		slog.String("run_id", r.id),
		slog.String("outcome", outcome),
		slog.Int("epochs", r.epochsRan),
		slog.Float64("best_loss", r.bestLoss),
		slog.Duration("elapsed", time.Since(started)),
	)

	return &Result{
		RunID:     r.id,
		Epochs:    r.epochsRan,
		FinalLoss: r.lastLoss,
		BestLoss:  r.bestLoss,
		Converged: converged,
		Cancelled: r.cancelled,
		Snapshot:  snap,
	}, nil
}

func (r *run) fail(span trace.Span, err error) {
	recordRunOutcome("failed")
	span.SetAttributes(attribute.String("outcome", "failed"))
	r.t.setStatus(func(s *Status) {
		s.State = StateFailed
		s.FailureReason = err.Error()
	})
	r.t.logger.Error("training run failed",
		slog.String("run_id", r.id),
		slog.Any("error", err),
	)
}

// runEpoch shuffles the units and walks them in batches. It returns
// the mean loss over applied batches and whether any update applied.
func (r *run) runEpoch(ctx context.Context) (float64, bool, error) {
	ctx, span := trainerTracer.Start(ctx, "training.epoch",
		trace.WithAttributes(attribute.Int("epoch", r.epoch)),
	)
	defer span.End()

	order := r.rng.Perm(len(r.data))
	var sum float64
	var batches int

	for start := 0; start < len(order); start += r.t.cfg.BatchSize {
		r.t.setStatus(func(s *Status) {
			s.State = StateBatching
			s.Epoch = r.epoch
			s.Batch = r.batch
		})
		if ctx.Err() != nil {
			r.cancelled = true
			span.SetAttributes(attribute.Bool("cancelled", true))
			break
		}

		idxs := order[start:min(start+r.t.cfg.BatchSize, len(order))]
		if len(idxs) < 2 {
			// A leftover single unit has no in-batch negative.
			break
		}

		outcome, err := r.runBatch(idxs)
		r.batch++
		if err != nil {
			return 0, false, err
		}
		if outcome.skipped {
			continue
		}
		sum += outcome.loss
		batches++
	}

	if batches == 0 {
		return 0, false, nil
	}
	return sum / float64(batches), true, nil
}

type batchOutcome struct {
	loss    float64
	skipped bool
}

// runBatch embeds two views of every unit in parallel, couples them in
// the contrastive loss, and applies one optimizer step. Cancellation
// is not observed here; an in-flight batch always runs to completion
// so no partial update can apply. The update is skipped for non-finite
// losses; only a divergence streak or an internal inconsistency
// returns an error.
func (r *run) runBatch(idxs []int) (batchOutcome, error) {
	n := len(idxs)

	// Seeds come off the run rng serially so the parallel section
	// cannot perturb determinism. View i < n is the anchor of unit
	// idxs[i]; view i+n is its positive.
	seeds := make([]int64, 2*n)
	for i := range seeds {
		seeds[i] = r.rng.Int63()
	}

	r.t.setStatus(func(s *Status) { s.State = StateForwardPass })
	views := make([]view, 2*n)
	var g errgroup.Group
	sem := make(chan struct{}, r.t.cfg.Workers)
	for i := 0; i < 2*n; i++ {
		i := i
		g.Go(func() error {
			sem <- struct{}{}
			defer func() { <-sem }()

			vrng := rand.New(rand.NewSource(seeds[i]))
			d := r.aug.View(r.data[idxs[i%n]], vrng)
			vb, err := tensor.NewBatch(encode.KindCount(), d)
			if err != nil {
				return fmt.Errorf("view %d: %w", i, err)
			}
			tp := tensor.NewTape()
			bd := layers.NewBinding(tp)
			out := r.t.encoder.Embed(bd, vb, layers.ForwardOpts{Training: true, Rng: vrng})
			views[i] = view{tape: tp, bind: bd, out: out}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		r.t.logger.Warn("batch construction failed, skipping",
			slog.String("run_id", r.id),
			slog.Int("epoch", r.epoch),
			slog.Int("batch", r.batch),
			slog.Any("error", err),
		)
		recordBatchSkipped("error")
		return batchOutcome{skipped: true}, nil
	}

	r.t.setStatus(func(s *Status) { s.State = StateLossComputation })
	lt := tensor.NewTape()
	leaves := make([]*tensor.Value, 2*n)
	for i := range views {
		leaves[i] = lt.Param(views[i].out.T)
	}
	anchors := lt.StackRows(leaves[:n]...)
	positives := lt.StackRows(leaves[n:]...)
	lossVal, err := r.loss.Compute(lt, anchors, positives)
	if err != nil {
		return batchOutcome{}, fmt.Errorf("computing loss: %w", err)
	}

	lossScalar := float64(lossVal.T.At(0, 0))
	if math.IsNaN(lossScalar) || math.IsInf(lossScalar, 0) {
		r.divergentRun++
		r.t.setStatus(func(s *Status) { s.DivergentSkips++ })
		recordBatchSkipped("divergent")
		r.t.logger.Warn("divergent batch skipped",
			slog.String("run_id", r.id),
			slog.Int("epoch", r.epoch),
			slog.Int("batch", r.batch),
			slog.Float64("loss", lossScalar),
			slog.Int("consecutive", r.divergentRun),
		)
		if r.divergentRun >= maxConsecutiveDivergent {
			return batchOutcome{}, &DivergentTrainingError{
				RunID:       r.id,
				Epoch:       r.epoch,
				Batch:       r.batch,
				Consecutive: r.divergentRun,
			}
		}
		return batchOutcome{skipped: true}, nil
	}
	r.divergentRun = 0

	r.t.setStatus(func(s *Status) { s.State = StateBackwardPass })
	if err := lt.Backward(lossVal); err != nil {
		return batchOutcome{}, fmt.Errorf("loss backward: %w", err)
	}
	var bg errgroup.Group
	for i := range views {
		i := i
		bg.Go(func() error {
			sem <- struct{}{}
			defer func() { <-sem }()
			return views[i].tape.BackwardFrom(views[i].out, leaves[i].Grad())
		})
	}
	if err := bg.Wait(); err != nil {
		return batchOutcome{}, fmt.Errorf("view backward: %w", err)
	}

	// Single-writer barrier: all view passes are done, sum their
	// gradients in fixed view order and apply one update.
	r.t.setStatus(func(s *Status) { s.State = StateParameterUpdate })
	grads := make([]*tensor.Tensor, len(r.named))
	for pi, nt := range r.named {
		var acc *tensor.Tensor
		for _, v := range views {
			gt := v.bind.GradOf(nt.Tensor)
			if gt == nil {
				continue
			}
			if acc == nil {
				acc = gt.Clone()
			} else {
				accumulate(acc, gt)
			}
		}
		grads[pi] = acc
	}

	norm := ClipGradients(grads, r.t.cfg.ClipNorm)
	if err := r.opt.Step(r.named, grads); err != nil {
		return batchOutcome{}, fmt.Errorf("optimizer step: %w", err)
	}

	recordBatchUpdated(lossScalar, norm)
	r.lastLoss = lossScalar
	r.t.setStatus(func(s *Status) { s.LastLoss = lossScalar })
	return batchOutcome{loss: lossScalar}, nil
}

func accumulate(dst, src *tensor.Tensor) {
	d, s := dst.Data(), src.Data()
	for i := range d {
		d[i] += s[i]
	}
}
