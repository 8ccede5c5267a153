// Package journal appends chart revisions and alerts to date-organized JSON
// lines files.
package journal

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/dgnsrekt/yieldview/internal/chartsync"
)

// Record kinds.
const (
	KindChart = "chart"
	KindAlert = "alert"
)

// ErrClosed is returned by Write after Close.
var ErrClosed = errors.New("journal: writer is closed")

// ErrBufferFull is returned when the write queue is saturated.
var ErrBufferFull = errors.New("journal: buffer full")

// Record is one journal line.
type Record struct {
	Time       time.Time `json:"time"`
	Kind       string    `json:"kind"`
	AnalysisID int       `json:"analysis_id,omitempty"`
	Revision   uint64    `json:"revision,omitempty"`
	Series     []string  `json:"series,omitempty"`
	Level      string    `json:"level,omitempty"`
	Message    string    `json:"message,omitempty"`
}

// Writer queues records and writes them from a single goroutine. Files live
// under dir/<UTC date>/yieldview.jsonl and rotate by size.
type Writer struct {
	dir        string
	analysisID int
	maxSizeMB  int
	now        func() time.Time

	records chan Record
	done    chan struct{}
	wg      sync.WaitGroup

	closeOnce sync.Once
	mu        sync.Mutex
	closed    bool
	date      string
	out       *lumberjack.Logger
}

// New starts a writer for one analysis. bufferSize bounds the queue.
func New(dir string, analysisID, bufferSize, maxSizeMB int) *Writer {
	if bufferSize <= 0 {
		bufferSize = 256
	}
	if maxSizeMB <= 0 {
		maxSizeMB = 25
	}
	w := &Writer{
		dir:        dir,
		analysisID: analysisID,
		maxSizeMB:  maxSizeMB,
		now:        time.Now,
		records:    make(chan Record, bufferSize),
		done:       make(chan struct{}),
	}
	w.wg.Add(1)
	go w.loop()
	return w
}

// Write queues rec without blocking.
func (w *Writer) Write(rec Record) error {
	w.mu.Lock()
	closed := w.closed
	w.mu.Unlock()
	if closed {
		return ErrClosed
	}
	if rec.Time.IsZero() {
		rec.Time = w.now().UTC()
	}
	if rec.AnalysisID == 0 {
		rec.AnalysisID = w.analysisID
	}
	select {
	case w.records <- rec:
		return nil
	default:
		slog.Warn("journal buffer full, dropping record", "kind", rec.Kind)
		return ErrBufferFull
	}
}

// Render records a chart revision with its series labels.
func (w *Writer) Render(_ context.Context, state chartsync.ChartState) error {
	series := make([]string, 0, len(state.Datasets))
	for _, d := range state.Datasets {
		series = append(series, d.Label)
	}
	return w.Write(Record{Kind: KindChart, Revision: state.Revision, Series: series})
}

// Alert records a user-facing message. An empty level means error.
func (w *Writer) Alert(_ context.Context, level, message string) {
	if level == "" {
		level = "error"
	}
	if err := w.Write(Record{Kind: KindAlert, Level: level, Message: message}); err != nil {
		slog.Debug("journal alert dropped", "error", err)
	}
}

// Close stops the writer after flushing queued records.
func (w *Writer) Close() error {
	var err error
	w.closeOnce.Do(func() {
		w.mu.Lock()
		w.closed = true
		w.mu.Unlock()

		close(w.done)
		w.wg.Wait()

		w.mu.Lock()
		defer w.mu.Unlock()
		if w.out != nil {
			err = w.out.Close()
		}
	})
	return err
}

func (w *Writer) loop() {
	defer w.wg.Done()
	for {
		select {
		case rec := <-w.records:
			w.write(rec)
		case <-w.done:
			for {
				select {
				case rec := <-w.records:
					w.write(rec)
				default:
					return
				}
			}
		}
	}
}

func (w *Writer) write(rec Record) {
	data, err := json.Marshal(rec)
	if err != nil {
		slog.Error("journal marshal failed", "kind", rec.Kind, "error", err)
		return
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	date := rec.Time.UTC().Format("2006-01-02")
	if w.out == nil || date != w.date {
		if err := w.rotate(date); err != nil {
			slog.Error("journal rotate failed", "dir", w.dir, "error", err)
			return
		}
	}
	if _, err := w.out.Write(append(data, '\n')); err != nil {
		slog.Error("journal write failed", "kind", rec.Kind, "error", err)
	}
}

// rotate must be called with mu held.
func (w *Writer) rotate(date string) error {
	if w.out != nil {
		if err := w.out.Close(); err != nil {
			slog.Debug("journal close failed", "date", w.date, "error", err)
		}
		w.out = nil
	}
	dir := filepath.Join(w.dir, date)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	filename := filepath.Join(dir, "yieldview.jsonl")
	w.out = &lumberjack.Logger{
		Filename:   filename,
		MaxSize:    w.maxSizeMB,
		MaxBackups: 100,
		MaxAge:     30,
	}
	w.date = date
	slog.Info("journal file opened", "file", filename)
	return nil
}

// Path returns the journal file for a UTC date.
func Path(dir string, date time.Time) string {
	return filepath.Join(dir, date.UTC().Format("2006-01-02"), "yieldview.jsonl")
}
