// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package api

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/bobinzuks/GNN-CODE-INTELLIGENCE-SYSTEM/services/codegraph/graph"
	"github.com/bobinzuks/GNN-CODE-INTELLIGENCE-SYSTEM/services/gnn/training"
)

// trainingState returns the current run state, idle when no run has
// been started since boot.
func (h *Handlers) trainingState() training.State {
	h.trainMu.Lock()
	tr := h.trainer
	h.trainMu.Unlock()
	if tr == nil {
		return training.StateIdle
	}
	return tr.Status().State
}

// HandleTrainingStatus handles GET /v1/training/status.
//
// Description:
//
//	Reports the trainer's observable state: run ID, epoch, batch,
//	losses, and learning rate. Before the first run it reports idle.
//
// Response:
//
//	200 OK: training.Status
//
// Thread Safety: This method is safe for concurrent use.
func (h *Handlers) HandleTrainingStatus(c *gin.Context) {
	h.trainMu.Lock()
	tr := h.trainer
	h.trainMu.Unlock()

	if tr == nil {
		c.JSON(http.StatusOK, training.Status{State: training.StateIdle})
		return
	}
	c.JSON(http.StatusOK, tr.Status())
}

// HandleTrainingStart handles POST /v1/training/start.
//
// Description:
//
//	Starts one training run over stored graphs in the background and
//	returns immediately. The run trains the live encoder and publishes
//	a new parameter snapshot on success; in-flight inference keeps the
//	snapshot it already holds. One run at a time.
//
// Request Body:
//
//	TrainStartRequest (config optional, graph_ids optional)
//
// Response:
//
//	202 Accepted: TrainStartResponse
//	400 Bad Request: Invalid config, unknown graph ID, or no units
//	409 Conflict: A run is already in progress
//
// Thread Safety: This method is safe for concurrent use.
func (h *Handlers) HandleTrainingStart(c *gin.Context) {
	requestID := getOrCreateRequestID(c)
	logger := h.logger.With("request_id", requestID, "handler", "HandleTrainingStart")

	var req TrainStartRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		// Allow an empty body; both fields are optional.
		req = TrainStartRequest{}
	}

	cfg := h.trainDefaults
	if req.Config != nil {
		cfg = *req.Config
	}

	var units []*graph.Graph
	if len(req.GraphIDs) > 0 {
		units = make([]*graph.Graph, 0, len(req.GraphIDs))
		for _, id := range req.GraphIDs {
			g, ok := h.store.Get(id)
			if !ok {
				c.JSON(http.StatusNotFound, ErrorResponse{
					Error: "graph " + id + " not found",
					Code:  CodeGraphNotFound,
				})
				return
			}
			units = append(units, g)
		}
	} else {
		units = h.store.All()
	}
	if len(units) == 0 {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Error: "no graphs stored; build graphs before training",
			Code:  CodeNoUnits,
		})
		return
	}

	h.trainMu.Lock()
	defer h.trainMu.Unlock()

	if h.trainer != nil && h.trainer.Running() {
		c.JSON(http.StatusConflict, ErrorResponse{
			Error: "a training run is already in progress",
			Code:  CodeRunInProgress,
		})
		return
	}

	tr, err := training.NewTrainer(cfg, h.encoder, h.publisher, h.logger)
	if err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Error: err.Error(),
			Code:  CodeInvalidRequest,
		})
		return
	}

	runCtx, cancel := context.WithCancel(context.Background())
	h.trainer = tr
	h.trainCancel = cancel

	go func() {
		defer cancel()
		result, err := tr.Train(runCtx, units)
		if err != nil {
			h.logger.Error("training run failed", slog.Any("error", err))
			return
		}
		h.logger.Info("training run finished",
			slog.String("run_id", result.RunID),
			slog.Int("epochs", result.Epochs),
			slog.Float64("final_loss", result.FinalLoss),
		)
		h.persistPublished()
	}()

	logger.Info("training run accepted",
		slog.Int("units", len(units)),
		slog.Int("epochs", tr.Config().Epochs),
	)

	c.JSON(http.StatusAccepted, TrainStartResponse{
		Units:  len(units),
		Config: tr.Config(),
	})
}

// HandleTrainingCancel handles POST /v1/training/cancel.
//
// Description:
//
//	Requests cancellation of the active run. The trainer stops at the
//	next batch boundary; the in-flight batch completes or is skipped
//	whole. The run's snapshot is not published.
//
// Response:
//
//	202 Accepted: Cancellation requested
//	409 Conflict: No active run
//
// Thread Safety: This method is safe for concurrent use.
func (h *Handlers) HandleTrainingCancel(c *gin.Context) {
	h.trainMu.Lock()
	defer h.trainMu.Unlock()

	if h.trainer == nil || !h.trainer.Running() || h.trainCancel == nil {
		c.JSON(http.StatusConflict, ErrorResponse{
			Error: "no active training run",
			Code:  CodeNoActiveRun,
		})
		return
	}

	h.trainCancel()
	c.JSON(http.StatusAccepted, gin.H{"status": "cancelling"})
}

// persistPublished saves the currently published snapshot to the
// params store. Best effort: failures are logged, never surfaced to
// the run that produced the snapshot.
func (h *Handlers) persistPublished() {
	if h.paramsStore == nil {
		return
	}
	cur := h.publisher.Current()
	if cur == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	meta, err := h.paramsStore.Save(ctx, cur.Snapshot)
	if err != nil {
		h.logger.Warn("snapshot persistence failed",
			slog.String("version", cur.Snapshot.Version),
			slog.Any("error", err),
		)
		return
	}
	h.logger.Info("snapshot persisted",
		slog.String("version", meta.Version),
		slog.Int("params", meta.ParamCount),
	)
}
