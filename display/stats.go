// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package display

import (
	"encoding/csv"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/gogpu/scenery/event"
	"github.com/gogpu/scenery/internal/logging"
)

// frameTiming accumulates loop times for FrameTimingReport events.
type frameTiming struct {
	period time.Duration
	start  time.Time
	loops  int
	max    time.Duration
	total  time.Duration
}

func (t *frameTiming) setPeriod(p time.Duration) {
	*t = frameTiming{period: p}
}

// add records one loop. It returns the maximum and average loop time when
// a reporting period ended.
func (t *frameTiming) add(now time.Time, loop time.Duration) (maxLoop, avgLoop time.Duration, report bool) {
	if t.period <= 0 {
		return 0, 0, false
	}
	if t.start.IsZero() {
		t.start = now
	}
	t.loops++
	t.total += loop
	t.max = max(t.max, loop)
	if now.Sub(t.start) < t.period {
		return 0, 0, false
	}
	maxLoop, avgLoop = t.max, t.total/time.Duration(t.loops)
	*t = frameTiming{period: t.period, start: now}
	return maxLoop, avgLoop, true
}

// updateStatistics runs at the end of every loop.
func (b *Bundle) updateStatistics(start time.Time, sleep time.Duration) {
	now := b.opts.Now()
	loop := now.Sub(start)
	if maxLoop, avgLoop, ok := b.timing.add(now, loop); ok {
		b.outMu.Lock()
		b.rendererOut = append(b.rendererOut, event.FrameTimingReport{
			Display:      b.id,
			FirstDisplay: b.opts.FirstDisplay,
			MaxLoop:      maxLoop,
			AverageLoop:  avgLoop,
		})
		b.outMu.Unlock()
	}
	if b.kpi != nil && b.dev != nil {
		if err := b.kpi.frame(now, sleep, b.dev.DrawCallsAndReset(), b.dev.GPUMemoryUsage()); err != nil {
			logging.Logger().Error("display: writing KPIs, monitor disabled", "display", b.id, "err", err)
			_ = b.kpi.close()
			b.kpi = nil
		}
	}
}

// kpiMonitor appends one CSV line of frame statistics per interval.
type kpiMonitor struct {
	f        *os.File
	w        *csv.Writer
	interval time.Duration
	start    time.Time
	frames   int
	draws    uint64
	sleep    time.Duration
}

var kpiHeader = []string{"timestamp_ms", "fps", "draw_calls_per_frame", "gpu_memory_bytes", "sleep_ms_per_frame"}

func newKPIMonitor(path string, interval time.Duration, now time.Time) (*kpiMonitor, error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("kpi monitor: %w", err)
	}
	k := &kpiMonitor{f: f, w: csv.NewWriter(f), interval: interval, start: now}
	if err := k.w.Write(kpiHeader); err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("kpi monitor: %w", err)
	}
	return k, nil
}

func (k *kpiMonitor) frame(now time.Time, sleep time.Duration, draws uint32, gpuMemory uint64) error {
	k.frames++
	k.draws += uint64(draws)
	k.sleep += sleep
	elapsed := now.Sub(k.start)
	if elapsed < k.interval {
		return nil
	}
	fps := float64(k.frames) / elapsed.Seconds()
	record := []string{
		strconv.FormatInt(now.UnixMilli(), 10),
		strconv.FormatFloat(fps, 'f', 2, 64),
		strconv.FormatUint(k.draws/uint64(k.frames), 10),
		strconv.FormatUint(gpuMemory, 10),
		strconv.FormatFloat(float64(k.sleep.Milliseconds())/float64(k.frames), 'f', 2, 64),
	}
	k.start, k.frames, k.draws, k.sleep = now, 0, 0, 0
	if err := k.w.Write(record); err != nil {
		return err
	}
	k.w.Flush()
	return k.w.Error()
}

func (k *kpiMonitor) close() error {
	k.w.Flush()
	if err := k.w.Error(); err != nil {
		_ = k.f.Close()
		return err
	}
	return k.f.Close()
}
