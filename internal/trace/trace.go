// Package trace loads performance-entry traces for the replay command.
//
// A trace is a JSONL file, one object per line. A line with type "navigation"
// carries requestStart/responseStart for TTFB; every other line is a
// performance entry:
//
//	{"type":"navigation","requestStart":10,"responseStart":150}
//	{"type":"paint","name":"first-contentful-paint","startTime":800}
//	{"type":"largest-contentful-paint","startTime":1200}
//	{"type":"layout-shift","value":0.01}
//	{"type":"event","name":"interaction-to-next-paint","duration":120}
package trace

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/tidwall/gjson"

	"github.com/codesharp/webvitals/internal/vitals"
)

// Trace is a parsed performance trace for one page view.
type Trace struct {
	Navigation     vitals.NavigationTiming
	HaveNavigation bool
	Entries        []vitals.Entry
}

// Load reads and parses a JSONL trace file.
func Load(path string) (*Trace, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open trace '%s': %w", path, err)
	}
	defer f.Close()

	t := &Trace{}
	scanner := bufio.NewScanner(f)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		if !gjson.Valid(line) {
			return nil, fmt.Errorf("trace '%s' line %d: invalid JSON", path, lineNo)
		}
		if err := t.parseLine(line); err != nil {
			return nil, fmt.Errorf("trace '%s' line %d: %w", path, lineNo, err)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read trace '%s': %w", path, err)
	}
	return t, nil
}

func (t *Trace) parseLine(line string) error {
	typ := gjson.Get(line, "type").String()
	if typ == "" {
		return fmt.Errorf("missing type")
	}

	if typ == "navigation" {
		t.Navigation = vitals.NavigationTiming{
			RequestStart:  gjson.Get(line, "requestStart").Float(),
			ResponseStart: gjson.Get(line, "responseStart").Float(),
		}
		t.HaveNavigation = true
		return nil
	}

	switch vitals.EntryType(typ) {
	case vitals.EntryPaint, vitals.EntryLargestContentfulPaint,
		vitals.EntryEvent, vitals.EntryLayoutShift:
	default:
		return fmt.Errorf("unknown entry type %q", typ)
	}

	t.Entries = append(t.Entries, vitals.Entry{
		Type:           vitals.EntryType(typ),
		Name:           gjson.Get(line, "name").String(),
		StartTime:      gjson.Get(line, "startTime").Float(),
		Duration:       gjson.Get(line, "duration").Float(),
		Value:          gjson.Get(line, "value").Float(),
		HadRecentInput: gjson.Get(line, "hadRecentInput").Bool(),
	})
	return nil
}

// Source builds a replay source preloaded with the trace. Entries are buffered
// before any subscription, exercising the buffered-replay path.
func (t *Trace) Source() *vitals.ReplaySource {
	var src *vitals.ReplaySource
	if t.HaveNavigation {
		src = vitals.NewReplaySource(t.Navigation)
	} else {
		src = vitals.NewReplaySourceWithoutNavigation()
	}
	for _, e := range t.Entries {
		src.Publish(e)
	}
	return src
}
