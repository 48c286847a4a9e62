// Package export renders a user's logs as a flat text file
package export

import (
	"context"
	"strings"
	"time"

	"github.com/benvon/tag-a-log/internal/models"
)

// FileName is the name offered for downloaded exports
const FileName = "tag-a-log-export.txt"

const (
	dateLayout   = "2006-01-02 15:04:05"
	unknownDate  = "Unknown Date"
	untitled     = "(No Title)"
	entrySep     = "-------------------------"
	entryJoinSep = "\n\n"
)

// LogLister lists an owner's logs, newest first
type LogLister interface {
	List(ctx context.Context, ownerID string, filter models.LogFilter) ([]*models.Log, error)
}

// Exporter produces text exports
type Exporter struct {
	logs     LogLister
	location *time.Location
}

// NewExporter creates an exporter that prints dates in loc (UTC when nil)
func NewExporter(logs LogLister, loc *time.Location) *Exporter {
	if loc == nil {
		loc = time.UTC
	}
	return &Exporter{logs: logs, location: loc}
}

// Export returns every log of ownerID rendered by Format
func (e *Exporter) Export(ctx context.Context, ownerID string) (string, error) {
	logs, err := e.logs.List(ctx, ownerID, models.LogFilter{})
	if err != nil {
		return "", err
	}
	return Format(logs, e.location), nil
}

// Format renders logs in the given order, one block per log:
//
//	[<date>] <title>
//	<content>
//	-------------------------
//
// Blocks are separated by a blank line.
func Format(logs []*models.Log, loc *time.Location) string {
	if loc == nil {
		loc = time.UTC
	}
	entries := make([]string, 0, len(logs))
	for _, l := range logs {
		date := unknownDate
		if !l.CreatedAt.IsZero() {
			date = l.CreatedAt.In(loc).Format(dateLayout)
		}
		title := l.Title
		if title == "" {
			title = untitled
		}

		var b strings.Builder
		b.WriteString("[")
		b.WriteString(date)
		b.WriteString("] ")
		b.WriteString(title)
		b.WriteString("\n")
		b.WriteString(l.Content)
		b.WriteString("\n")
		b.WriteString(entrySep)
		entries = append(entries, b.String())
	}
	return strings.Join(entries, entryJoinSep)
}
