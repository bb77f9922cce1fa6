package deepsearch_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"testing"

	"github.com/m-mizutani/gt"
	deepsearch "github.com/quantalogic/open-deepsearch"
)

func TestReportWriterSequentialIDs(t *testing.T) {
	dir := t.TempDir()
	w := deepsearch.NewReportWriter(dir)
	ctx := context.Background()

	for i, body := range []string{"# first", "# second", "# third"} {
		report := gt.R1(w.Finalize(ctx, body)).NoError(t)
		gt.Equal(t, report.ID, []string{"report_001", "report_002", "report_003"}[i])
		gt.Equal(t, report.Body, body)

		data := gt.R1(os.ReadFile(report.Path)).NoError(t)
		gt.Equal(t, string(data), body)
	}
}

func TestReportWriterResumesNumbering(t *testing.T) {
	dir := t.TempDir()
	gt.NoError(t, os.WriteFile(filepath.Join(dir, "report_007.md"), []byte("existing"), 0o644))
	gt.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("ignored"), 0o644))

	w := deepsearch.NewReportWriter(dir)
	report := gt.R1(w.Finalize(context.Background(), "next")).NoError(t)
	gt.Equal(t, report.ID, "report_008")
}

func TestReportWriterConcurrentFinalize(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()

	const n = 8
	var wg sync.WaitGroup
	ids := make(chan string, n)
	errs := make(chan error, n)

	for i := 0; i < n; i++ {
		// Independent writers share nothing but the directory.
		w := deepsearch.NewReportWriter(dir)
		wg.Add(1)
		go func() {
			defer wg.Done()
			report, err := w.Finalize(ctx, "body")
			if err != nil {
				errs <- err
				return
			}
			ids <- report.ID
		}()
	}
	wg.Wait()
	close(ids)
	close(errs)

	for err := range errs {
		t.Fatalf("concurrent finalize failed: %v", err)
	}

	var got []string
	for id := range ids {
		got = append(got, id)
	}
	sort.Strings(got)

	gt.Equal(t, len(got), n)
	for i, id := range got {
		gt.Equal(t, id, []string{
			"report_001", "report_002", "report_003", "report_004",
			"report_005", "report_006", "report_007", "report_008",
		}[i])
	}
}

func TestReportWriterPersistError(t *testing.T) {
	dir := t.TempDir()
	blocked := filepath.Join(dir, "occupied")
	gt.NoError(t, os.WriteFile(blocked, []byte("not a directory"), 0o644))

	w := deepsearch.NewReportWriter(blocked)
	_, err := w.Finalize(context.Background(), "body")
	gt.Error(t, err)
	gt.True(t, errors.Is(err, deepsearch.ErrReportPersist))
}
