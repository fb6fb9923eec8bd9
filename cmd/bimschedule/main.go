package main

import (
	"bytes"
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"bimschedule/internal"
	"bimschedule/internal/app"
	"bimschedule/internal/config"
	"bimschedule/internal/pipeline"
	"bimschedule/internal/server"
)

var errUsage = errors.New("unknown command")

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := run(ctx, os.Args[1:], os.Stdout)
	cancel()
	if errors.Is(err, errUsage) {
		usage(os.Stderr)
		os.Exit(1)
	}
	must(err)
}

// run executes one command. Errors are returned rather than exiting so the
// app is always closed (logger synced, db closed) before the process ends.
func run(ctx context.Context, args []string, stdout io.Writer) error {
	if len(args) < 1 {
		return errUsage
	}

	cfg, err := config.Load()
	if err != nil {
		return err
	}

	a, err := app.New(cfg)
	if err != nil {
		return err
	}
	defer a.Close()

	cmd := args[0]
	fs := flag.NewFlagSet(cmd, flag.ContinueOnError)
	switch cmd {
	case "serve":
		addr := fs.String("addr", cfg.HTTPAddr, "listen address")
		if err := fs.Parse(args[1:]); err != nil {
			return err
		}
		a.Cfg.HTTPAddr = *addr
		srv, err := server.New(a.Cfg, a.Schedules, a.Vision, a.Log)
		if err != nil {
			return err
		}
		return srv.Run(ctx)
	case "run":
		image := fs.String("image", "", "path to an interior photo")
		out := fs.String("out", "", "output path (.xlsx, .csv or .txt)")
		if err := fs.Parse(args[1:]); err != nil {
			return err
		}
		if strings.TrimSpace(*image) == "" || strings.TrimSpace(*out) == "" {
			return fmt.Errorf("--image and --out are required")
		}
		data, err := os.ReadFile(*image)
		if err != nil {
			return err
		}
		schedule, err := a.Schedules.Generate(ctx, internal.ImageInput{Data: data, MimeType: http.DetectContentType(data)}, internal.SourceCLI)
		if err != nil {
			return err
		}
		if err := writeSchedule(*out, schedule.Materials); err != nil {
			return err
		}
		fmt.Fprintf(stdout, "run done run=%s materials=%d fallback=%t output=%s\n", schedule.RunID, len(schedule.Materials), schedule.UsedFallback, *out)
	case "mail:fetch":
		provider := fs.String("provider", cfg.MailListenerProvider, "gmail|imap")
		label := fs.String("label", cfg.MailListenerLabel, "mailbox/label")
		max := fs.Int("max", 50, "max messages")
		if err := fs.Parse(args[1:]); err != nil {
			return err
		}
		fetch, err := a.FetchService(ctx, *provider)
		if err != nil {
			return err
		}
		result, err := fetch.FetchAndStore(ctx, *label, *max)
		if err != nil {
			return err
		}
		fmt.Fprintf(stdout, "mail fetch done provider=%s fetched=%d stored=%d\n", *provider, result.Fetched, result.Stored)
	case "mail:process":
		provider := fs.String("provider", "", "gmail|imap (empty for all)")
		messageID := fs.String("messageId", "", "specific message-id")
		batch := fs.Int("batch", 20, "batch size")
		if err := fs.Parse(args[1:]); err != nil {
			return err
		}
		processor := a.Processor()
		if strings.TrimSpace(*messageID) != "" {
			if *provider == "" {
				return fmt.Errorf("--provider is required with --messageId")
			}
			res, err := processor.ProcessByProviderMessageID(ctx, *provider, *messageID)
			if err != nil {
				return err
			}
			fmt.Fprintf(stdout, "processed submission id=%d status=%s schedules=%d output=%s\n", res.SubmissionID, res.Status, res.Schedules, res.OutputRef)
			return nil
		}
		results, err := processor.ProcessPending(ctx, *batch, *provider)
		if err != nil {
			return err
		}
		counts := map[string]int{}
		for _, r := range results {
			counts[r.Status]++
		}
		fmt.Fprintf(stdout, "processed pending submissions=%d exported=%d skipped=%d failed=%d\n", len(results), counts["exported"], counts["skipped"], counts["failed"])
	case "mail:listen":
		s, err := a.Listener(ctx)
		if err != nil {
			return err
		}
		return s.Run(ctx)
	case "runs":
		limit := fs.Int("limit", 20, "number of runs")
		if err := fs.Parse(args[1:]); err != nil {
			return err
		}
		runs, err := a.DB.ListRuns(*limit)
		if err != nil {
			return err
		}
		for _, r := range runs {
			status := "ok"
			if r.Error != "" {
				status = "error: " + r.Error
			}
			fmt.Fprintf(stdout, "%s source=%s materials=%d fallback=%t durationMs=%d %s\n", r.RunID, r.Source, r.Materials, r.UsedFallback, r.DurationMs, status)
		}
	default:
		return errUsage
	}
	return nil
}

func writeSchedule(path string, records []internal.MaterialRecord) error {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".xlsx":
		name := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
		return pipeline.ExportXLSX(path, pipeline.Sheet{Name: name, Records: records})
	case ".csv":
		var buf bytes.Buffer
		if err := pipeline.WriteCSV(&buf, records); err != nil {
			return err
		}
		return writeFile(path, buf.Bytes())
	case ".txt":
		return writeFile(path, []byte(pipeline.Summary(records)+"\n"))
	default:
		return fmt.Errorf("unsupported output extension: %s", filepath.Ext(path))
	}
}

func writeFile(path string, data []byte) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	return os.WriteFile(path, data, 0o644)
}

func usage(w io.Writer) {
	fmt.Fprintln(w, "usage: bimschedule <command>")
	fmt.Fprintln(w, "commands:")
	fmt.Fprintln(w, "  serve [--addr=:3000]")
	fmt.Fprintln(w, "  run --image=photo.jpg --out=./out/schedule.xlsx|.csv|.txt")
	fmt.Fprintln(w, "  mail:fetch --provider=gmail|imap --label=INBOX --max=50")
	fmt.Fprintln(w, "  mail:process [--provider=gmail|imap] [--messageId=...] [--batch=20]")
	fmt.Fprintln(w, "  mail:listen")
	fmt.Fprintln(w, "  runs [--limit=20]")
}

func must(err error) {
	if err == nil {
		return
	}
	fmt.Fprintf(os.Stderr, "error: %v\n", err)
	os.Exit(1)
}
