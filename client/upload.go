package client

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"sync"

	"github.com/cosheet/cosheet-cli/codec"
	"golang.org/x/sync/errgroup"
)

// Store is the write side of the sheet server.
type Store interface {
	Put(ctx context.Context, id string, payload []byte, kind ContentKind) error
}

// Deleter removes resources; used to clean up after a failed upload.
type Deleter interface {
	Delete(ctx context.Context, id string) error
}

// SheetResourceID names sheet i (1-based) under room.
func SheetResourceID(room string, i int) string {
	return room + "." + strconv.Itoa(i)
}

// Plan is the set of writes for one per-sheet upload.
type Plan struct {
	Room   string
	Sheets []UploadUnit
	TOC    UploadUnit
}

// NewPlan maps per-sheet streams onto room.1 … room.N plus the table of
// contents at room.
func NewPlan(room string, streams []*codec.Stream) (*Plan, error) {
	if err := ValidateRoom(room); err != nil {
		return nil, err
	}
	p := &Plan{Room: room}
	var toc codec.TableOfContents
	for i, s := range streams {
		id := SheetResourceID(room, i+1)
		p.Sheets = append(p.Sheets, UploadUnit{
			ResourceID: id,
			Payload:    s.Bytes(),
			Kind:       ContentInterchange,
			Title:      s.Title,
		})
		toc.Add(id, s.Title)
	}
	p.TOC = UploadUnit{ResourceID: room, Payload: []byte(toc.String()), Kind: ContentTabular}
	return p, nil
}

// SingleUnit is the one write of a concatenated upload: the stream stored
// directly at room.
func SingleUnit(room string, s *codec.Stream) (UploadUnit, error) {
	if err := ValidateRoom(room); err != nil {
		return UploadUnit{}, err
	}
	return UploadUnit{ResourceID: room, Payload: s.Bytes(), Kind: ContentInterchange, Title: s.Title}, nil
}

// ValidateRoom rejects ids the server would route elsewhere.
func ValidateRoom(room string) error {
	switch {
	case room == "":
		return errors.New("room id is empty")
	case strings.ContainsAny(room, "/?#"):
		return fmt.Errorf("room id %q contains a reserved character", room)
	case strings.HasPrefix(room, "_") || strings.HasPrefix(room, "="):
		return fmt.Errorf("room id %q starts with a reserved character", room)
	}
	return nil
}

const roomAlphabet = "0123456789abcdefghijklmnopqrstuvwxyz"

// NewRoomID returns a random lowercase base36 room id of length n.
func NewRoomID(n int) (string, error) {
	if n < 1 {
		n = 12
	}
	out := make([]byte, 0, n)
	buf := make([]byte, n*2)
	for len(out) < n {
		if _, err := rand.Read(buf); err != nil {
			return "", fmt.Errorf("generating room id: %w", err)
		}
		for _, b := range buf {
			// 252 is the largest multiple of 36 below 256.
			if b >= 252 {
				continue
			}
			out = append(out, roomAlphabet[int(b)%36])
			if len(out) == n {
				break
			}
		}
	}
	return string(out), nil
}

// SheetUploadError reports that one or more sheet writes failed. The table
// of contents was not attempted.
type SheetUploadError struct {
	Room       string
	Index      int // first failing sheet, 1-based
	ResourceID string
	Failed     []int
	Succeeded  []string
	Total      int
	Err        error
}

func (e *SheetUploadError) Error() string {
	return fmt.Sprintf("uploading sheet %d (%s): %v; %d of %d sheets written, table of contents not written",
		e.Index, e.ResourceID, e.Err, len(e.Succeeded), e.Total)
}

func (e *SheetUploadError) Unwrap() error { return e.Err }

// TOCUploadError reports that every sheet was written but the table of
// contents was not, leaving the room without an index.
type TOCUploadError struct {
	Room      string
	Succeeded []string
	Err       error
}

func (e *TOCUploadError) Error() string {
	return fmt.Sprintf("uploading table of contents for room %s: %v; %d sheets written without an index",
		e.Room, e.Err, len(e.Succeeded))
}

func (e *TOCUploadError) Unwrap() error { return e.Err }

// Sequencer writes a Plan. Sheet units may run concurrently; the table of
// contents is written only after every sheet unit has succeeded.
type Sequencer struct {
	Store Store
	// Concurrency bounds in-flight sheet writes. Values below 1 mean 1.
	Concurrency int
	Logger      *slog.Logger
	// OnWritten, if set, is called after each successful write. It may be
	// called from several goroutines at once.
	OnWritten func(UploadUnit)
}

// Upload writes the plan. Units whose ids are in skip are treated as already
// written. The returned result is non-nil even when err is not.
func (s *Sequencer) Upload(ctx context.Context, plan *Plan, skip map[string]bool) (*UploadResult, error) {
	logger := s.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	limit := s.Concurrency
	if limit < 1 {
		limit = 1
	}

	res := &UploadResult{Room: plan.Room}
	errs := make([]error, len(plan.Sheets))

	// Per-unit outcomes are collected rather than short-circuited so every
	// sheet reaches a definite result before the TOC decision.
	var g errgroup.Group
	g.SetLimit(limit)
	for i, u := range plan.Sheets {
		if skip[u.ResourceID] {
			continue
		}
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				errs[i] = err
				return nil
			}
			logger.Debug("writing sheet", "id", u.ResourceID, "title", u.Title, "bytes", len(u.Payload))
			if err := s.Store.Put(ctx, u.ResourceID, u.Payload, u.Kind); err != nil {
				errs[i] = err
				return nil
			}
			s.written(u)
			return nil
		})
	}
	_ = g.Wait()

	var failed []int
	var firstErr error
	for i, u := range plan.Sheets {
		switch {
		case skip[u.ResourceID]:
			res.Skipped = append(res.Skipped, u.ResourceID)
			res.Succeeded = append(res.Succeeded, u.ResourceID)
		case errs[i] != nil:
			if firstErr == nil {
				firstErr = errs[i]
			}
			failed = append(failed, i+1)
		default:
			res.Succeeded = append(res.Succeeded, u.ResourceID)
		}
	}
	if len(failed) > 0 {
		return res, &SheetUploadError{
			Room:       plan.Room,
			Index:      failed[0],
			ResourceID: plan.Sheets[failed[0]-1].ResourceID,
			Failed:     failed,
			Succeeded:  res.Succeeded,
			Total:      len(plan.Sheets),
			Err:        firstErr,
		}
	}

	if skip[plan.TOC.ResourceID] {
		res.TOCWritten = true
		return res, nil
	}
	if err := ctx.Err(); err != nil {
		return res, &TOCUploadError{Room: plan.Room, Succeeded: res.Succeeded, Err: err}
	}
	logger.Debug("writing table of contents", "id", plan.TOC.ResourceID, "sheets", len(plan.Sheets))
	if err := s.Store.Put(ctx, plan.TOC.ResourceID, plan.TOC.Payload, plan.TOC.Kind); err != nil {
		return res, &TOCUploadError{Room: plan.Room, Succeeded: res.Succeeded, Err: err}
	}
	s.written(plan.TOC)
	res.TOCWritten = true
	return res, nil
}

// UploadSingle writes one concatenated stream.
func (s *Sequencer) UploadSingle(ctx context.Context, u UploadUnit) (*UploadResult, error) {
	res := &UploadResult{Room: u.ResourceID}
	if err := s.Store.Put(ctx, u.ResourceID, u.Payload, u.Kind); err != nil {
		return res, fmt.Errorf("uploading %s: %w", u.ResourceID, err)
	}
	s.written(u)
	res.Succeeded = []string{u.ResourceID}
	return res, nil
}

func (s *Sequencer) written(u UploadUnit) {
	if s.OnWritten != nil {
		s.OnWritten(u)
	}
}

// Cleanup deletes ids concurrently and joins any failures.
func Cleanup(ctx context.Context, d Deleter, ids []string) error {
	var (
		mu   sync.Mutex
		errs []error
		g    errgroup.Group
	)
	g.SetLimit(4)
	for _, id := range ids {
		g.Go(func() error {
			if err := d.Delete(ctx, id); err != nil {
				mu.Lock()
				errs = append(errs, fmt.Errorf("deleting %s: %w", id, err))
				mu.Unlock()
			}
			return nil
		})
	}
	_ = g.Wait()
	return errors.Join(errs...)
}
