package cli

import (
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/dustin/go-humanize"
)

// Table provides a simple table formatter.
type Table struct {
	w *tabwriter.Writer
}

// NewTableWriter creates a table writing to out with the given headers.
func NewTableWriter(out io.Writer, headers ...string) *Table {
	t := &Table{w: tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)}
	if len(headers) > 0 {
		_, _ = t.w.Write([]byte(strings.Join(headers, "\t") + "\n"))
	}
	return t
}

// AddRow adds a row to the table.
func (t *Table) AddRow(values ...string) {
	_, _ = t.w.Write([]byte(strings.Join(values, "\t") + "\n"))
}

// Flush writes the table.
func (t *Table) Flush() {
	_ = t.w.Flush()
}

// formatMillis renders a probed duration, or "unknown" for the -1 sentinel.
func formatMillis(millis int64) string {
	if millis < 0 {
		return "unknown"
	}
	d := time.Duration(millis) * time.Millisecond
	secs := int(d / time.Second)
	return fmt.Sprintf("%d:%02d.%03d", secs/60, secs%60, millis%1000)
}

// describeFile renders "path (size)" for a written output.
func describeFile(path string) string {
	info, err := os.Stat(path)
	if err != nil {
		return path
	}
	return fmt.Sprintf("%s (%s)", path, humanize.Bytes(uint64(info.Size())))
}
