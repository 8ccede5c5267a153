package journal

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"os"
	"testing"
	"time"

	"github.com/dgnsrekt/yieldview/internal/chartsync"
)

func readRecords(t *testing.T, path string) []Record {
	t.Helper()
	f, err := os.Open(path)
	if err != nil {
		t.Fatalf("Open(%s) error = %v", path, err)
	}
	defer f.Close()

	var out []Record
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		var rec Record
		if err := json.Unmarshal(sc.Bytes(), &rec); err != nil {
			t.Fatalf("Unmarshal(%q) error = %v", sc.Text(), err)
		}
		out = append(out, rec)
	}
	if err := sc.Err(); err != nil {
		t.Fatalf("Scan() error = %v", err)
	}
	return out
}

func TestWriterRecordsChartAndAlerts(t *testing.T) {
	dir := t.TempDir()
	w := New(dir, 12, 16, 1)
	fixed := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)
	w.now = func() time.Time { return fixed }

	state := chartsync.ChartState{Revision: 3, Datasets: []chartsync.Descriptor{
		{Kind: chartsync.KindScatter, Label: "US 2024-03-01"},
		{Kind: chartsync.KindLine, Label: "US 2024-03-01 Zero Curve"},
	}}
	if err := w.Render(context.Background(), state); err != nil {
		t.Fatalf("Render() error = %v", err)
	}
	w.Alert(context.Background(), "", "Failed to load zero curve")
	if err := w.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}

	recs := readRecords(t, Path(dir, fixed))
	if len(recs) != 2 {
		t.Fatalf("records = %d; want 2", len(recs))
	}
	if recs[0].Kind != KindChart || recs[0].Revision != 3 || recs[0].AnalysisID != 12 {
		t.Fatalf("chart record = %+v", recs[0])
	}
	if len(recs[0].Series) != 2 || recs[0].Series[1] != "US 2024-03-01 Zero Curve" {
		t.Fatalf("chart series = %v", recs[0].Series)
	}
	if recs[1].Kind != KindAlert || recs[1].Level != "error" || recs[1].Message != "Failed to load zero curve" {
		t.Fatalf("alert record = %+v", recs[1])
	}
	if !recs[1].Time.Equal(fixed) {
		t.Fatalf("alert time = %v; want %v", recs[1].Time, fixed)
	}
}

func TestWriteAfterClose(t *testing.T) {
	w := New(t.TempDir(), 1, 1, 1)
	if err := w.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	if err := w.Close(); err != nil {
		t.Fatalf("second Close() error = %v", err)
	}
	if err := w.Write(Record{Kind: KindAlert}); !errors.Is(err, ErrClosed) {
		t.Fatalf("Write() after Close error = %v; want ErrClosed", err)
	}
}
