package monitor

import (
	"fmt"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/mjasion/balena-home/heatexchanger/pkg/types"
)

// TimestampLayout is the timestamp format of a reading log line
const TimestampLayout = "2006-01-02 15:04:05"

// ReadingLog appends one line per cycle to a flat text file:
//
//	2025-01-02 15:04:05,T1:85.12,T2:45.03,T3:15.40,T4:55.91,Efficiency:57.7%
type ReadingLog struct {
	path string
	mu   sync.Mutex
}

// NewReadingLog returns a log writing to path. The file is created on the
// first Append.
func NewReadingLog(path string) *ReadingLog {
	return &ReadingLog{path: path}
}

// Path returns the file path
func (l *ReadingLog) Path() string {
	return l.path
}

// Append writes a line for readings. Temperatures are written in sorted name
// order with two decimals, followed by the efficiency pseudo-entry if present.
func (l *ReadingLog) Append(ts time.Time, readings types.ReadingSet) error {
	line := FormatLine(ts, readings)

	l.mu.Lock()
	defer l.mu.Unlock()

	f, err := os.OpenFile(l.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return fmt.Errorf("failed to open reading log: %w", err)
	}
	if _, err := f.WriteString(line); err != nil {
		f.Close()
		return fmt.Errorf("failed to write reading log: %w", err)
	}
	return f.Close()
}

// FormatLine renders a log line including the trailing newline
func FormatLine(ts time.Time, readings types.ReadingSet) string {
	var b strings.Builder
	b.WriteString(ts.Format(TimestampLayout))

	temps := readings.Temperatures()
	for _, name := range temps.Names() {
		fmt.Fprintf(&b, ",%s:%.2f", name, temps[name])
	}
	if eff, ok := readings.Efficiency(); ok {
		fmt.Fprintf(&b, ",%s:%.1f%%", types.EfficiencyKey, eff)
	}

	b.WriteByte('\n')
	return b.String()
}
