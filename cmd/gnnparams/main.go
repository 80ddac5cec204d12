// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// gnnparams inspects the GNN parameter snapshot store.
//
// The server persists trained parameter snapshots in BadgerDB between
// restarts. This tool opens the store read-only and prints a
// human-readable summary: stored versions, producing runs, creation
// times, loss values, and payload sizes. With -version it loads one
// snapshot and prints its architecture and per-tensor statistics.
//
// Usage:
//
//	gnnparams [-dir /var/lib/gnn] [-limit 20]
//	gnnparams -dir /var/lib/gnn -version <version>
//
// If -dir is not given, reads GNN_STORE_DIR from the environment.
//
// Exit codes:
//
//	0 — success (including "empty store", which prints a message)
//	1 — error opening or reading the store
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"math"
	"os"
	"strings"
	"time"

	"github.com/dgraph-io/badger/v4"

	"github.com/bobinzuks/GNN-CODE-INTELLIGENCE-SYSTEM/services/gnn/params"
)

func main() {
	dirFlag := flag.String("dir", "", "Path to the snapshot store directory (overrides GNN_STORE_DIR env var)")
	versionFlag := flag.String("version", "", "Dump one snapshot's architecture and tensors")
	limitFlag := flag.Int("limit", 20, "Maximum snapshots to list")
	flag.Parse()

	dir := *dirFlag
	if dir == "" {
		dir = os.Getenv("GNN_STORE_DIR")
	}
	if dir == "" {
		fatalf("no store directory; pass -dir or set GNN_STORE_DIR")
	}

	fmt.Printf("Snapshot store path: %s\n", dir)

	// Stat first so a missing store prints a short hint instead of
	// BadgerDB's "no such file or directory" wrapped in a long open error.
	if _, err := os.Stat(dir); os.IsNotExist(err) {
		fmt.Println("Store directory does not exist. The server has not yet persisted any snapshots.")
		fmt.Println("Run a training job against the server to produce one.")
		os.Exit(0)
	}

	// Open read-only: this tool never writes.
	opts := badger.DefaultOptions(dir).
		WithLogger(nil). // suppress BadgerDB internal logs
		WithReadOnly(true)

	db, err := badger.Open(opts)
	if err != nil {
		fatalf("open BadgerDB at %s: %v", dir, err)
	}
	defer func() { _ = db.Close() }()

	quiet := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
	store, err := params.NewStore(db, quiet)
	if err != nil {
		fatalf("open snapshot store: %v", err)
	}

	ctx := context.Background()
	if *versionFlag != "" {
		dumpSnapshot(ctx, store, *versionFlag)
		return
	}
	listSnapshots(ctx, store, dir, *limitFlag)
}

// listSnapshots prints a metadata table of stored snapshots, newest
// first.
func listSnapshots(ctx context.Context, store *params.Store, dir string, limit int) {
	metas, err := store.List(ctx, limit)
	if err != nil {
		fatalf("list snapshots: %v", err)
	}
	if len(metas) == 0 {
		fmt.Println("\nNo snapshots found.")
		fmt.Println("The store exists but no training run has published parameters yet.")
		os.Exit(0)
	}

	latestVersion := ""
	if _, meta, err := store.LoadLatest(ctx); err == nil {
		latestVersion = meta.Version
	}

	fmt.Printf("\nFound %d snapshot%s:\n", len(metas), plural(len(metas), "", "s"))
	fmt.Println(strings.Repeat("─", 100))
	fmt.Printf("%-18s  %-36s  %-19s  %9s  %9s  %10s\n",
		"Version", "Run", "Created", "Params", "Loss", "Size")
	fmt.Println(strings.Repeat("─", 100))

	for _, m := range metas {
		created := time.UnixMilli(m.CreatedAtMilli).UTC().Format("2006-01-02 15:04:05")
		marker := " "
		if m.Version == latestVersion {
			marker = "*"
		}
		converged := ""
		if m.Converged {
			converged = " (converged)"
		}
		fmt.Printf("%s%-17s  %-36s  %-19s  %9d  %9.4f  %10s%s\n",
			marker, m.Version, m.RunID, created, m.ParamCount, m.FinalLoss,
			formatBytes(int(m.CompressedSize)), converged)
	}

	fmt.Printf("%s\n", strings.Repeat("─", 100))
	fmt.Printf("Summary: %d snapshot%s (* = latest), store path: %s\n",
		len(metas), plural(len(metas), "", "s"), dir)
}

// dumpSnapshot prints one snapshot's architecture and a per-tensor
// statistics table.
func dumpSnapshot(ctx context.Context, store *params.Store, version string) {
	snap, meta, err := store.Load(ctx, version)
	if err != nil {
		if errors.Is(err, params.ErrNotFound) {
			fatalf("snapshot %s not found", version)
		}
		fatalf("load snapshot %s: %v", version, err)
	}

	created := time.UnixMilli(snap.CreatedAtMilli).UTC().Format("2006-01-02 15:04:05 MST")
	fmt.Printf("\nVersion:      %s\n", snap.Version)
	fmt.Printf("Schema:       %s\n", snap.SchemaVersion)
	fmt.Printf("Created:      %s\n", created)
	fmt.Printf("Run:          %s (%d epochs, final loss %.4f)\n",
		snap.Train.RunID, snap.Train.Epochs, snap.Train.FinalLoss)
	fmt.Printf("Architecture: %s, input %d, hidden %v, heads %d\n",
		snap.Architecture.Architecture, snap.Architecture.InputDim,
		snap.Architecture.HiddenDims, snap.Architecture.Heads)
	fmt.Printf("Readout:      %s (%d dims)\n", snap.ReadoutName, snap.EmbedDim)
	fmt.Printf("Stored size:  %s\n", formatBytes(int(meta.CompressedSize)))

	maxNameLen := 0
	for _, tensor := range snap.Tensors {
		if len(tensor.Name) > maxNameLen {
			maxNameLen = len(tensor.Name)
		}
	}
	colWidth := maxNameLen + 2

	fmt.Printf("\n%-*s  %11s  %9s  %9s\n", colWidth, "Tensor", "Shape", "Params", "L2Norm")
	fmt.Printf("%s  %s  %s  %s\n",
		strings.Repeat("─", colWidth),
		strings.Repeat("─", 11),
		strings.Repeat("─", 9),
		strings.Repeat("─", 9),
	)
	for _, tensor := range snap.Tensors {
		shape := fmt.Sprintf("%dx%d", tensor.Rows, tensor.Cols)
		fmt.Printf("%-*s  %11s  %9d  %9.4f\n",
			colWidth, tensor.Name, shape, len(tensor.Data), l2Norm(tensor.Data))
	}

	fmt.Printf("\nTotal: %d tensors, %d parameters\n", len(snap.Tensors), snap.ParamCount())
}

// l2Norm computes the L2 norm of a float32 vector. Freshly initialized
// layers show small norms; a norm of 0 or NaN flags a dead tensor.
func l2Norm(v []float32) float64 {
	var sum float64
	for _, x := range v {
		sum += float64(x) * float64(x)
	}
	return math.Sqrt(sum)
}

// formatBytes formats a byte count as a human-readable string.
func formatBytes(n int) string {
	switch {
	case n >= 1024*1024:
		return fmt.Sprintf("%.1f MB", float64(n)/1024/1024)
	case n >= 1024:
		return fmt.Sprintf("%.1f KB", float64(n)/1024)
	default:
		return fmt.Sprintf("%d B", n)
	}
}

// plural returns singular or plural suffix based on count.
func plural(n int, singular, pluralSuffix string) string {
	if n == 1 {
		return singular
	}
	return pluralSuffix
}

// fatalf prints to stderr and exits 1.
func fatalf(format string, args ...any) {
	fmt.Fprintf(os.Stderr, "gnnparams: "+format+"\n", args...)
	os.Exit(1)
}
