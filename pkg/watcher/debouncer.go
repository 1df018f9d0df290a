package watcher

import (
	"context"
	"time"

	"github.com/samber/lo"

	"github.com/ritzau/sbom-sunburst/pkg/logging"
)

// Debouncer merges bursts of change events. A batch is emitted once no event
// arrived for the quiet period, or when the first event of the batch is older
// than maxWait.
type Debouncer struct {
	input       <-chan ChangeEvent
	output      chan ChangeEvent
	quietPeriod time.Duration
	maxWait     time.Duration
}

// NewDebouncer creates a debouncer reading from input.
func NewDebouncer(input <-chan ChangeEvent, quietPeriod, maxWait time.Duration) *Debouncer {
	return &Debouncer{
		input:       input,
		output:      make(chan ChangeEvent, 4),
		quietPeriod: quietPeriod,
		maxWait:     maxWait,
	}
}

// Start begins debouncing. Output is closed when input is closed, after the
// pending batch was emitted, or when ctx is cancelled, dropping it.
func (d *Debouncer) Start(ctx context.Context) {
	go d.run(ctx)
}

// Output returns the channel of debounced events, at most one per change type
// and batch.
func (d *Debouncer) Output() <-chan ChangeEvent {
	return d.output
}

func (d *Debouncer) run(ctx context.Context) {
	defer close(d.output)

	var (
		quietTimer  = time.NewTimer(d.quietPeriod)
		maxTimer    = time.NewTimer(d.maxWait)
		quiet       <-chan time.Time
		deadline    <-chan time.Time
		accumulated = make(map[ChangeType][]string)
		eventCount  int
	)
	quietTimer.Stop()
	maxTimer.Stop()

	flush := func() bool {
		quietTimer.Stop()
		maxTimer.Stop()
		quiet, deadline = nil, nil
		if eventCount == 0 {
			return true
		}

		logging.Debug("flushing accumulated changes", "count", eventCount)
		for _, kind := range []ChangeType{ChangeTypeSBOM, ChangeTypeDecomposition} {
			paths, ok := accumulated[kind]
			if !ok {
				continue
			}
			select {
			case d.output <- ChangeEvent{Type: kind, Paths: lo.Uniq(paths), Timestamp: time.Now()}:
			case <-ctx.Done():
				return false
			}
		}
		clear(accumulated)
		eventCount = 0
		return true
	}

	for {
		select {
		case <-ctx.Done():
			return

		case event, ok := <-d.input:
			if !ok {
				flush()
				return
			}

			accumulated[event.Type] = append(accumulated[event.Type], event.Paths...)
			eventCount++

			quietTimer.Reset(d.quietPeriod)
			quiet = quietTimer.C
			if deadline == nil {
				maxTimer.Reset(d.maxWait)
				deadline = maxTimer.C
			}

		case <-quiet:
			if !flush() {
				return
			}

		case <-deadline:
			if !flush() {
				return
			}
		}
	}
}
