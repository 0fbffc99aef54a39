// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

// Command scenerydemo runs a headless renderer with recording devices and
// prints the events of every frame.
package main

import (
	"flag"
	"log"
	"log/slog"
	"os"
	"time"

	"github.com/gogpu/scenery"
)

func main() {
	var (
		frames      = flag.Int("frames", 10, "number of frames to run")
		displays    = flag.Int("displays", 1, "number of displays")
		threaded    = flag.Bool("threaded", false, "run every display on its own goroutine")
		minFrame    = flag.Duration("min-frame", time.Second/60, "minimum frame duration of threaded displays")
		shaderCache = flag.String("shader-cache", "", "binary shader cache file")
		kpiFile     = flag.String("kpi", "", "KPI CSV file written by the first display")
		verbose     = flag.Bool("v", false, "log renderer diagnostics to stderr")
	)
	flag.Parse()

	if *verbose {
		scenery.SetLogger(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
			Level: slog.LevelDebug,
		})))
	}

	cfg := demoConfig{
		Frames:      *frames,
		Displays:    *displays,
		Threaded:    *threaded,
		MinFrame:    *minFrame,
		ShaderCache: *shaderCache,
		KPIFile:     *kpiFile,
	}
	stats, err := run(cfg, os.Stdout)
	if err != nil {
		log.Fatalf("scenerydemo: %v", err)
	}
	log.Printf("ran %d frames on %d displays: %d draw calls, %d presents", cfg.Frames, cfg.Displays, stats.draws, stats.presents)
}
