package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestRunLockstep(t *testing.T) {
	var out bytes.Buffer
	stats, err := run(demoConfig{Frames: 12, Displays: 2, MinFrame: time.Millisecond}, &out)
	if err != nil {
		t.Fatal(err)
	}
	for _, want := range []string{
		"DisplayCreated",
		"SceneStateChanged(scene=1, state=Rendered)",
		"SceneStateChanged(scene=2, state=Rendered)",
	} {
		if !strings.Contains(out.String(), want) {
			t.Errorf("expected output to contain %q, got:\n%s", want, out.String())
		}
	}
	if stats.draws == 0 || stats.presents == 0 {
		t.Errorf("expected frames to be drawn and presented, got %+v", stats)
	}
}

func TestRunThreaded(t *testing.T) {
	var out bytes.Buffer
	if _, err := run(demoConfig{Frames: 200, Displays: 1, Threaded: true, MinFrame: time.Millisecond}, &out); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(out.String(), "SceneStateChanged(scene=1, state=Rendered)") {
		t.Errorf("expected scene to be rendered, got:\n%s", out.String())
	}
}

func TestRunWritesKPIs(t *testing.T) {
	path := filepath.Join(t.TempDir(), "kpi.csv")
	if _, err := run(demoConfig{Frames: 2, Displays: 1, KPIFile: path}, &bytes.Buffer{}); err != nil {
		t.Fatal(err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.HasPrefix(string(data), "timestamp_ms,fps") {
		t.Errorf("expected KPI header, got %q", data)
	}
}
