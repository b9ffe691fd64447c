package export

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"roomcal/internal/ics"
	appLog "roomcal/internal/log"
	"roomcal/internal/model"
	"roomcal/internal/schedule"
)

var (
	// ErrInvalidTerm rejects a term window that is missing, malformed or
	// ends before it starts.
	ErrInvalidTerm = errors.New("export: invalid term window")
	// ErrNoRooms rejects an export with no room selected.
	ErrNoRooms = errors.New("export: no rooms selected")
)

const (
	DefaultProductID = "-//roomcal//Room Calendar Export//EN"
	DefaultUIDDomain = "roomcal.invalid"
)

// Options configures an Exporter.
type Options struct {
	// Location is the rooms' fixed timezone. Required.
	Location  *time.Location
	ProductID string
	UIDDomain string
	// Workers bounds how many rooms are generated at once. Zero means one
	// per CPU.
	Workers int
	// Verify re-parses every generated document before returning it.
	Verify bool
	// Now supplies the generation timestamp. Defaults to time.Now.
	Now func() time.Time
}

// Request is the input of one export run.
type Request struct {
	Term       model.TermWindow
	Exceptions []model.ExceptionDate
	Rooms      []string
	Sessions   []model.ScheduleSession
}

// RoomDocument is the calendar generated for one room.
type RoomDocument struct {
	Room        string
	Filename    string
	Body        []byte
	Events      int
	Occurrences int
	// Skips lists patterns and groups of this room that produced no event.
	Skips []schedule.Skip
}

// OmittedRoom is a requested room for which no event was produced.
// Skips tells "room has no classes" (empty) apart from "room's data could
// not be used" (non-empty).
type OmittedRoom struct {
	Room  string
	Skips []schedule.Skip
}

// Result holds the documents of one export run, in the order the rooms were
// requested.
type Result struct {
	Term        string
	GeneratedAt time.Time
	Documents   []RoomDocument
	Omitted     []OmittedRoom
}

func (r *Result) EventCount() int {
	n := 0
	for _, d := range r.Documents {
		n += d.Events
	}
	return n
}

func (r *Result) OccurrenceCount() int {
	n := 0
	for _, d := range r.Documents {
		n += d.Occurrences
	}
	return n
}

// Summary is a one-line human readable report of the run.
func (r *Result) Summary() string {
	s := fmt.Sprintf("%s: %d room(s), %d event(s), %d meeting(s)",
		r.Term, len(r.Documents), r.EventCount(), r.OccurrenceCount())
	if len(r.Omitted) > 0 {
		names := make([]string, len(r.Omitted))
		for i, o := range r.Omitted {
			names[i] = o.Room
		}
		s += fmt.Sprintf("; omitted %d room(s) without events: %s", len(r.Omitted), strings.Join(names, ", "))
	}
	return s
}

// Exporter generates per-room calendar documents.
type Exporter struct {
	opts Options
}

func New(opts Options) (*Exporter, error) {
	if opts.Location == nil {
		return nil, errors.New("export: location is required")
	}
	if opts.ProductID == "" {
		opts.ProductID = DefaultProductID
	}
	if opts.UIDDomain == "" {
		opts.UIDDomain = DefaultUIDDomain
	}
	if opts.Workers <= 0 {
		opts.Workers = runtime.NumCPU()
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Exporter{opts: opts}, nil
}

// Validate checks the parts of a request that must hold before any output
// is generated.
func (req Request) Validate() error {
	if strings.TrimSpace(req.Term.Term) == "" || !req.Term.Valid() {
		return fmt.Errorf("%w: %q %s..%s", ErrInvalidTerm, req.Term.Term, req.Term.StartDate, req.Term.EndDate)
	}
	if len(normalizeRooms(req.Rooms)) == 0 {
		return ErrNoRooms
	}
	return nil
}

// Export generates one document per requested room. Configuration problems
// abort the whole run; data problems only drop the affected events. Rooms
// without any event are left out of Documents and listed in Omitted.
func (e *Exporter) Export(ctx context.Context, req Request) (*Result, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	rooms := normalizeRooms(req.Rooms)
	now := e.opts.Now().UTC().Truncate(time.Second)

	docs := make([]RoomDocument, len(rooms))
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(e.opts.Workers)
	for i, room := range rooms {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			doc, err := e.exportRoom(room, req, now)
			if err != nil {
				return fmt.Errorf("room %q: %w", room, err)
			}
			docs[i] = doc
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	res := &Result{Term: req.Term.Term, GeneratedAt: now}
	for _, d := range docs {
		if d.Events == 0 {
			res.Omitted = append(res.Omitted, OmittedRoom{Room: d.Room, Skips: d.Skips})
			continue
		}
		res.Documents = append(res.Documents, d)
	}
	uniqueFilenames(res.Documents)

	appLog.Info("export completed",
		"term", req.Term.Term,
		"rooms", len(res.Documents),
		"omitted", len(res.Omitted),
		"events", res.EventCount(),
		"occurrences", res.OccurrenceCount(),
	)
	return res, nil
}

// ExportRoom generates the document for a single room. The result has zero
// Events when nothing in the room could be exported.
func (e *Exporter) ExportRoom(room string, req Request) (RoomDocument, error) {
	if err := req.Validate(); err != nil {
		return RoomDocument{}, err
	}
	return e.exportRoom(strings.TrimSpace(room), req, e.opts.Now().UTC().Truncate(time.Second))
}

func (e *Exporter) exportRoom(room string, req Request, now time.Time) (RoomDocument, error) {
	b := ics.Builder{
		Location:  e.opts.Location,
		UIDDomain: e.opts.UIDDomain,
		Now:       func() time.Time { return now },
	}

	var events []ics.CalendarEvent
	var skips []schedule.Skip
	for _, s := range req.Sessions {
		if !s.InRoom(room) {
			continue
		}
		groups, gs := schedule.GroupPatterns(s, req.Term)
		skips = append(skips, gs...)
		for _, grp := range groups {
			res := b.BuildEvent(room, s, grp, req.Exceptions)
			if ev, ok := res.Right(); ok {
				events = append(events, ev)
				continue
			}
			skips = append(skips, res.MustLeft())
		}
	}

	for _, sk := range skips {
		appLog.Debug("export skip", "room", room, "session", sk.SessionID, "pattern", sk.Pattern, "slot", sk.Slot, "reason", string(sk.Reason))
	}

	doc := RoomDocument{
		Room:     room,
		Filename: Filename(room, req.Term.Term, now),
		Events:   len(events),
		Skips:    skips,
	}
	if len(events) == 0 {
		return doc, nil
	}

	for _, ev := range events {
		n, err := ics.CountOccurrences(ev)
		if err != nil {
			return RoomDocument{}, err
		}
		doc.Occurrences += n
	}

	body := []byte(ics.Document{
		ProductID: e.opts.ProductID,
		Name:      room,
		Location:  e.opts.Location,
		Year:      req.Term.StartDate.Year,
		Events:    events,
	}.Serialize())

	if e.opts.Verify {
		if err := ics.Verify(body, len(events)); err != nil {
			return RoomDocument{}, err
		}
	}
	doc.Body = body
	return doc, nil
}

// normalizeRooms trims names and drops blanks and duplicates, keeping the
// first position of each room.
func normalizeRooms(rooms []string) []string {
	seen := make(map[string]bool, len(rooms))
	out := make([]string, 0, len(rooms))
	for _, r := range rooms {
		r = strings.TrimSpace(r)
		if r == "" || seen[r] {
			continue
		}
		seen[r] = true
		out = append(out, r)
	}
	return out
}

// RoomsOf lists every room named by the sessions, in first-seen order.
func RoomsOf(sessions []model.ScheduleSession) []string {
	var all []string
	for _, s := range sessions {
		all = append(all, s.RoomNames...)
	}
	return normalizeRooms(all)
}
