package phh

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/charmbracelet/log"

	"github.com/lox/cardroom/internal/fileutil"
	"github.com/lox/cardroom/internal/history"
)

// queueSize bounds how many finished hands can wait on the writer. Hands
// are dropped once the writer falls this far behind.
const queueSize = 128

// Job is one finished hand awaiting archival.
type Job struct {
	Meta   Meta
	Record history.Record
}

// Archiver writes finished hands to disk, one PHH file per hand in a
// directory per table. Enqueue never blocks the table that produced the
// hand; Run does the writing.
type Archiver struct {
	dir    string
	logger *log.Logger
	jobs   chan Job
}

// NewArchiver creates an archiver rooted at dir. The directory is created
// when Run starts.
func NewArchiver(dir string, logger *log.Logger) *Archiver {
	return &Archiver{
		dir:    dir,
		logger: logger.WithPrefix("phh"),
		jobs:   make(chan Job, queueSize),
	}
}

// Enqueue hands a finished hand to the writer, dropping it with a warning
// when the queue is full.
func (a *Archiver) Enqueue(job Job) {
	select {
	case a.jobs <- job:
	default:
		a.logger.Warn("archive queue full, dropping hand",
			"table", job.Meta.TableID, "hand", job.Record.HandNum)
	}
}

// Run consumes the queue until ctx is cancelled, then drains whatever was
// already queued before returning.
func (a *Archiver) Run(ctx context.Context) error {
	if err := os.MkdirAll(a.dir, 0o755); err != nil {
		return fmt.Errorf("create archive dir: %w", err)
	}
	a.logger.Info("archiving hands", "dir", a.dir)
	for {
		select {
		case job := <-a.jobs:
			a.write(job)
		case <-ctx.Done():
			for {
				select {
				case job := <-a.jobs:
					a.write(job)
				default:
					return nil
				}
			}
		}
	}
}

func (a *Archiver) write(job Job) {
	data, err := EncodeToBytes(FromRecord(job.Meta, job.Record))
	if err != nil {
		a.logger.Error("encode hand",
			"table", job.Meta.TableID, "hand", job.Record.HandNum, "error", err)
		return
	}
	dir := filepath.Join(a.dir, job.Meta.TableID)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		a.logger.Error("create table dir", "table", job.Meta.TableID, "error", err)
		return
	}
	path := filepath.Join(dir, fmt.Sprintf("hand-%06d.phh", job.Record.HandNum))
	if err := fileutil.WriteFileAtomic(path, data, 0o644); err != nil {
		a.logger.Error("write hand", "path", path, "error", err)
		return
	}
	a.logger.Debug("archived hand", "path", path)
}
