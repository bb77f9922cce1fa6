package deepsearch

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"sync"
	"time"

	"github.com/m-mizutani/goerr/v2"
)

// Report is the final persisted artifact of a session.
type Report struct {
	// ID is the sequential identifier scoped to the output directory,
	// e.g. "report_001".
	ID string

	// Path is the absolute or relative path of the persisted file.
	Path string

	// Body is the synthesized Markdown, written to the file verbatim.
	Body string

	// Partial is true when the session aborted and the body is a
	// best-effort partial synthesis.
	Partial bool

	// CreatedAt is the creation time of the report file.
	CreatedAt time.Time
}

// PartialReportMarker is prepended to the body of a report persisted from an
// aborted session.
const PartialReportMarker = "<!-- PARTIAL REPORT: session aborted before convergence -->\n\n"

var reportNamePattern = regexp.MustCompile(`^report_(\d{3})\.md$`)

// ReportWriter persists reports into an output directory with unique,
// monotonically increasing identifiers. Identifier assignment is serialized
// with a writer mutex plus an atomic create-if-absent retry loop, so two
// concurrent Finalize calls never collide even across independent writers.
type ReportWriter struct {
	dir   string
	clock func() time.Time
	mu    sync.Mutex
}

// NewReportWriter creates a writer for the given output directory. The
// directory is created on the first Finalize call if it does not exist.
func NewReportWriter(dir string) *ReportWriter {
	return &ReportWriter{dir: dir, clock: time.Now}
}

// Finalize assigns the next unused sequential identifier in the output
// directory and atomically creates the report file with the given body.
// It fails with ErrReportPersist on I/O failure.
func (w *ReportWriter) Finalize(ctx context.Context, body string) (*Report, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if err := os.MkdirAll(w.dir, 0o755); err != nil {
		return nil, goerr.Wrap(ErrReportPersist, "failed to create output directory", goerr.V("dir", w.dir), goerr.V("cause", err.Error()))
	}

	// O_EXCL makes the create atomic: if another process took the number
	// between the scan and the create, retry with a fresh scan.
	const maxAttempts = 100
	for attempt := 0; attempt < maxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return nil, goerr.Wrap(ErrReportPersist, "finalize cancelled", goerr.V("cause", err.Error()))
		}

		next, err := w.nextNumber()
		if err != nil {
			return nil, err
		}

		id := fmt.Sprintf("report_%03d", next)
		path := filepath.Join(w.dir, id+".md")

		f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
		if err != nil {
			if os.IsExist(err) {
				continue
			}
			return nil, goerr.Wrap(ErrReportPersist, "failed to create report file", goerr.V("path", path), goerr.V("cause", err.Error()))
		}

		if _, err := f.WriteString(body); err != nil {
			_ = f.Close()
			return nil, goerr.Wrap(ErrReportPersist, "failed to write report file", goerr.V("path", path), goerr.V("cause", err.Error()))
		}
		if err := f.Close(); err != nil {
			return nil, goerr.Wrap(ErrReportPersist, "failed to close report file", goerr.V("path", path), goerr.V("cause", err.Error()))
		}

		return &Report{
			ID:        id,
			Path:      path,
			Body:      body,
			CreatedAt: w.clock(),
		}, nil
	}

	return nil, goerr.Wrap(ErrReportPersist, "could not assign a unique report identifier", goerr.V("dir", w.dir))
}

// nextNumber scans the output directory for existing report files and
// returns the next unused sequential number.
func (w *ReportWriter) nextNumber() (int, error) {
	entries, err := os.ReadDir(w.dir)
	if err != nil {
		return 0, goerr.Wrap(ErrReportPersist, "failed to scan output directory", goerr.V("dir", w.dir), goerr.V("cause", err.Error()))
	}

	highest := 0
	for _, entry := range entries {
		m := reportNamePattern.FindStringSubmatch(entry.Name())
		if m == nil {
			continue
		}
		n, err := strconv.Atoi(m[1])
		if err != nil {
			continue
		}
		if n > highest {
			highest = n
		}
	}

	return highest + 1, nil
}
