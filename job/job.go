// Package job runs a workbook conversion in the background and reports its
// progress as a sequence of events:
//
//	init → status* → ready → status* → payload → done | error
//
// A Handle can be cancelled at any point; a cancelled job ends with an
// error event carrying context.Canceled.
package job

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/cosheet/cosheet-cli/codec"
	"github.com/cosheet/cosheet-cli/internal"
	"github.com/cosheet/cosheet-cli/workbook"
)

// EventKind identifies a step in the job's event sequence.
type EventKind string

const (
	EventInit    EventKind = "init"
	EventStatus  EventKind = "status"
	EventReady   EventKind = "ready"
	EventPayload EventKind = "payload"
	EventDone    EventKind = "done"
	EventError   EventKind = "error"
)

// SheetInfo describes one sheet in the ready metadata.
type SheetInfo struct {
	Name  string `json:"name"`
	Ref   string `json:"ref,omitempty"` // used range, e.g. "A1:C9"; empty for an empty sheet
	Cells int    `json:"cells"`
}

// Metadata is published once the workbook has been parsed.
type Metadata struct {
	Name   string      `json:"name"`
	Sheets []SheetInfo `json:"sheets"`
}

// SheetNames lists sheet names in workbook order.
func (m *Metadata) SheetNames() []string {
	names := make([]string, len(m.Sheets))
	for i, s := range m.Sheets {
		names[i] = s.Name
	}
	return names
}

// Event is one step of a job.
type Event struct {
	Kind     EventKind
	Message  string          // status text
	Metadata *Metadata       // ready
	Mode     codec.Mode      // payload
	Streams  []*codec.Stream // payload: one per sheet, or one concatenated stream
	Err      error           // error
}

// Options configures a job.
type Options struct {
	Mode codec.Mode
	// Name is the workbook name recorded in metadata and used as the title
	// of a concatenated stream.
	Name   string
	Logger *slog.Logger
}

// A job publishes at most eight events (init, four status, ready, payload,
// terminal), so sends into a channel of this size never block.
const eventBuffer = 16

// Handle tracks a submitted job.
type Handle struct {
	events chan Event
	cancel context.CancelFunc
	done   chan struct{}

	mu      sync.Mutex
	streams []*codec.Stream
	meta    *Metadata
	err     error
}

// Submit starts converting data in the background.
func Submit(ctx context.Context, data []byte, opts Options) *Handle {
	ctx, cancel := context.WithCancel(ctx)
	h := &Handle{
		events: make(chan Event, eventBuffer),
		cancel: cancel,
		done:   make(chan struct{}),
	}
	if opts.Mode == "" {
		opts.Mode = codec.ModePerSheet
	}
	if opts.Logger == nil {
		opts.Logger = slog.New(slog.DiscardHandler)
	}
	go h.run(ctx, data, opts)
	return h
}

// Events returns the event channel. It is closed after the terminal event.
func (h *Handle) Events() <-chan Event { return h.events }

// Cancel stops the job. Safe to call more than once and after completion.
func (h *Handle) Cancel() { h.cancel() }

// Done is closed when the job has finished.
func (h *Handle) Done() <-chan struct{} { return h.done }

// Wait blocks until the job finishes and returns its streams. It does not
// require the caller to drain Events.
func (h *Handle) Wait() ([]*codec.Stream, error) {
	<-h.done
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.streams, h.err
}

// Metadata returns the parsed workbook metadata, or nil before ready.
func (h *Handle) Metadata() *Metadata {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.meta
}

func (h *Handle) run(ctx context.Context, data []byte, opts Options) {
	defer close(h.done)
	defer close(h.events)
	defer h.cancel()

	h.emit(Event{Kind: EventInit, Message: "job started"})
	streams, err := h.convert(ctx, data, opts)

	h.mu.Lock()
	h.streams, h.err = streams, err
	h.mu.Unlock()

	if err != nil {
		opts.Logger.Debug("job failed", "name", opts.Name, "err", err)
		h.emit(Event{Kind: EventError, Err: err})
		return
	}
	h.emit(Event{Kind: EventDone})
}

func (h *Handle) convert(ctx context.Context, data []byte, opts Options) ([]*codec.Stream, error) {
	h.status("reading workbook data")
	if err := workbook.CheckFormat(data); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	h.status("parsing workbook")
	wb, err := workbook.LoadBytes(data, workbook.Options{Name: opts.Name, Logger: opts.Logger})
	if err != nil {
		return nil, err
	}
	if err := wb.Validate(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	h.status("building metadata")
	meta := buildMetadata(wb)
	h.mu.Lock()
	h.meta = meta
	h.mu.Unlock()
	h.emit(Event{Kind: EventReady, Metadata: meta})

	var streams []*codec.Stream
	switch opts.Mode {
	case codec.ModeConcatenated:
		h.status("converting to interchange format")
		streams = []*codec.Stream{codec.EmitConcatenated(wb)}
	case codec.ModePerSheet:
		h.status(fmt.Sprintf("converting %d sheets", len(wb.Sheets)))
		for i, s := range wb.Sheets {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
			opts.Logger.Debug("converting sheet", "index", i+1, "of", len(wb.Sheets), "sheet", s.Name)
			streams = append(streams, codec.EmitSheet(s))
		}
	default:
		return nil, fmt.Errorf("unknown mode %q", opts.Mode)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	h.emit(Event{Kind: EventPayload, Mode: opts.Mode, Streams: streams})
	return streams, nil
}

func buildMetadata(wb *codec.Workbook) *Metadata {
	meta := &Metadata{Name: wb.Name}
	for _, s := range wb.Sheets {
		info := SheetInfo{Name: s.Name, Cells: s.Len()}
		if r, ok := s.Range(); ok {
			info.Ref = internal.Range{
				StartCol: r.MinCol + 1,
				StartRow: r.MinRow + 1,
				EndCol:   r.MaxCol + 1,
				EndRow:   r.MaxRow + 1,
			}.String()
		}
		meta.Sheets = append(meta.Sheets, info)
	}
	return meta
}

func (h *Handle) status(msg string) {
	h.emit(Event{Kind: EventStatus, Message: msg})
}

func (h *Handle) emit(ev Event) {
	h.events <- ev
}
