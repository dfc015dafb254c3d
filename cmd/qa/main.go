package main

import (
	"bufio"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/dmosk/agro-evidence-qa/internal/bootstrap"
	"github.com/dmosk/agro-evidence-qa/internal/config"
	"github.com/dmosk/agro-evidence-qa/internal/eval"
	"github.com/dmosk/agro-evidence-qa/internal/observability/logging"
)

func main() {
	question := flag.String("question", "", "answer a single question and print the record as JSON")
	batch := flag.String("batch", "", "path to a batch file: one question per line, optional 'id<TAB>question'")
	out := flag.String("out", "", "JSONL output path for batch mode (default stdout)")
	evalRun := flag.String("eval", "", "path to a JSONL run file to evaluate")
	report := flag.String("report", "eval_report.xlsx", "XLSX report path for eval mode")
	flag.Parse()

	cfg := config.Load()
	logger := logging.NewJSONLogger("qa", cfg.LogLevel)
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app, err := bootstrap.NewQA(ctx, cfg, logger)
	if err != nil {
		log.Fatalf("bootstrap error: %v", err)
	}
	defer app.Close()

	switch {
	case *question != "":
		err = runSingle(ctx, app, *question)
	case *batch != "":
		err = runBatch(ctx, app, *batch, *out)
	case *evalRun != "":
		err = runEval(ctx, app, *evalRun, *report)
	default:
		flag.Usage()
		os.Exit(2)
	}
	if err != nil {
		log.Fatalf("qa error: %v", err)
	}
}

func runSingle(ctx context.Context, app *bootstrap.QAApp, question string) error {
	record, err := app.AnswerUC.Answer(ctx, question)
	if err != nil {
		return err
	}
	encoder := json.NewEncoder(os.Stdout)
	encoder.SetIndent("", "  ")
	return encoder.Encode(record)
}

func runBatch(ctx context.Context, app *bootstrap.QAApp, batchPath, outPath string) error {
	in, err := os.Open(batchPath)
	if err != nil {
		return fmt.Errorf("open batch file: %w", err)
	}
	defer in.Close()

	var w io.Writer = os.Stdout
	if outPath != "" {
		f, err := os.Create(outPath)
		if err != nil {
			return fmt.Errorf("create output file: %w", err)
		}
		defer f.Close()
		w = f
	}
	encoder := json.NewEncoder(w)

	scanner := bufio.NewScanner(in)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		id, question := splitBatchLine(line)

		record, err := app.AnswerUC.Answer(ctx, question)
		if err != nil {
			return fmt.Errorf("answer %q: %w", question, err)
		}
		record.QuestionID = id
		if err := encoder.Encode(record); err != nil {
			return fmt.Errorf("write record: %w", err)
		}
	}
	return scanner.Err()
}

// splitBatchLine accepts either "question" or "id<TAB>question".
func splitBatchLine(line string) (id, question string) {
	if idx := strings.IndexByte(line, '\t'); idx > 0 {
		return strings.TrimSpace(line[:idx]), strings.TrimSpace(line[idx+1:])
	}
	return "", line
}

func runEval(ctx context.Context, app *bootstrap.QAApp, runPath, reportPath string) error {
	f, err := os.Open(runPath)
	if err != nil {
		return fmt.Errorf("open run file: %w", err)
	}
	defer f.Close()

	records, err := eval.LoadRecords(f)
	if err != nil {
		return err
	}
	summary := eval.Summarize(records)

	checker := eval.NewOffsetChecker(app.Repo, app.Extractor)
	offsetErrors, err := checker.Validate(ctx, records)
	if err != nil {
		return fmt.Errorf("validate citation offsets: %w", err)
	}

	if err := eval.WriteReport(reportPath, summary, records, offsetErrors); err != nil {
		return err
	}
	log.Printf("report written to %s", reportPath)

	encoder := json.NewEncoder(os.Stdout)
	encoder.SetIndent("", "  ")
	return encoder.Encode(struct {
		eval.Summary
		OffsetErrors int `json:"offset_errors"`
	}{Summary: summary, OffsetErrors: len(offsetErrors)})
}
