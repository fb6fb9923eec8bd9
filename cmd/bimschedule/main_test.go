package main

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/png"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func testEnv(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	t.Setenv("DB_PATH", filepath.Join(dir, "data", "app.db"))
	t.Setenv("MAIL_RAW_DIR", filepath.Join(dir, "raw"))
	t.Setenv("OUTPUT_DIR", filepath.Join(dir, "out"))
	t.Setenv("TABLES_PATH", "")
	t.Setenv("LOG_MODE", "production")
	t.Setenv("DEMO_MODE", "true")
	return dir
}

func TestRunWritesScheduleAndLogsRun(t *testing.T) {
	dir := testEnv(t)

	var img bytes.Buffer
	if err := png.Encode(&img, image.NewRGBA(image.Rect(0, 0, 8, 8))); err != nil {
		t.Fatal(err)
	}
	photo := filepath.Join(dir, "room.png")
	if err := os.WriteFile(photo, img.Bytes(), 0o644); err != nil {
		t.Fatal(err)
	}

	out := filepath.Join(dir, "exports", "schedule.csv")
	var stdout bytes.Buffer
	if err := run(context.Background(), []string{"run", "--image", photo, "--out", out}, &stdout); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(stdout.String(), "materials=3") {
		t.Fatalf("stdout=%q", stdout.String())
	}
	csv, err := os.ReadFile(out)
	if err != nil || !strings.HasPrefix(string(csv), "Code,") {
		t.Fatalf("csv=%q err=%v", csv, err)
	}

	stdout.Reset()
	if err := run(context.Background(), []string{"runs", "--limit", "5"}, &stdout); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(stdout.String(), "source=cli materials=3 fallback=false") {
		t.Fatalf("runs=%q", stdout.String())
	}
}

func TestRunReturnsErrorsAndClosesApp(t *testing.T) {
	dir := testEnv(t)
	dbPath := filepath.Join(dir, "data", "app.db")

	cases := []struct {
		name    string
		args    []string
		isUsage bool
		want    string
	}{
		{name: "no command", args: nil, isUsage: true},
		{name: "unknown command", args: []string{"export"}, isUsage: true},
		{name: "missing flags", args: []string{"run"}, want: "--image and --out are required"},
		{name: "missing image", args: []string{"run", "--image", filepath.Join(dir, "nope.png"), "--out", filepath.Join(dir, "x.csv")}, want: "no such file"},
		{name: "process without provider", args: []string{"mail:process", "--messageId", "<m@example.com>"}, want: "--provider is required"},
		{name: "bad flag", args: []string{"runs", "--limit", "many"}, want: "invalid value"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := run(context.Background(), tc.args, &bytes.Buffer{})
			if err == nil {
				t.Fatal("expected error")
			}
			if tc.isUsage != errors.Is(err, errUsage) {
				t.Fatalf("err=%v", err)
			}
			if tc.want != "" && !strings.Contains(err.Error(), tc.want) {
				t.Fatalf("err=%v", err)
			}
			// The last sqlite connection removes the WAL file when it closes.
			if _, statErr := os.Stat(dbPath + "-wal"); !os.IsNotExist(statErr) {
				t.Fatalf("db left open after %v", err)
			}
		})
	}
}

func TestWriteScheduleRejectsUnknownExtension(t *testing.T) {
	err := writeSchedule(filepath.Join(t.TempDir(), "schedule.pdf"), nil)
	if err == nil || !strings.Contains(err.Error(), "unsupported output extension") {
		t.Fatalf("err=%v", err)
	}
}
