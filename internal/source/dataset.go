package source

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/goccy/go-json"
	"github.com/golang-sql/civil"
	"gopkg.in/yaml.v3"

	"roomcal/internal/export"
	"roomcal/internal/model"
)

// ErrUnknownTerm is returned when a dataset holds no term of the given name.
var ErrUnknownTerm = errors.New("source: unknown term")

// Term is a term window together with the days on which no class meets.
type Term struct {
	Term       string                `yaml:"term" json:"term" validate:"required"`
	StartDate  civil.Date            `yaml:"start_date" json:"start_date"`
	EndDate    civil.Date            `yaml:"end_date" json:"end_date"`
	Exceptions []model.ExceptionDate `yaml:"exceptions,omitempty" json:"exceptions,omitempty"`
}

// Window returns the term bounds.
func (t Term) Window() model.TermWindow {
	return model.TermWindow{Term: t.Term, StartDate: t.StartDate, EndDate: t.EndDate}
}

// Dataset is the schedule feed: terms and the sessions taught in them.
type Dataset struct {
	Terms    []Term                  `yaml:"terms" json:"terms" validate:"dive"`
	Sessions []model.ScheduleSession `yaml:"sessions" json:"sessions" validate:"dive"`
}

var validate = validator.New()

// Decode parses a dataset. JSON is detected by a leading '{'; anything else
// is read as YAML.
func Decode(body []byte) (*Dataset, error) {
	var ds Dataset
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 {
		return nil, errors.New("source: empty dataset")
	}
	if trimmed[0] == '{' {
		if err := json.Unmarshal(trimmed, &ds); err != nil {
			return nil, fmt.Errorf("source: decode json: %w", err)
		}
	} else {
		if err := yaml.Unmarshal(trimmed, &ds); err != nil {
			return nil, fmt.Errorf("source: decode yaml: %w", err)
		}
	}
	if err := ds.Validate(); err != nil {
		return nil, err
	}
	return &ds, nil
}

// Validate checks the structural rules of the dataset: required fields,
// valid term windows and unique term names.
func (d *Dataset) Validate() error {
	if err := validate.Struct(d); err != nil {
		return fmt.Errorf("source: invalid dataset: %w", err)
	}
	seen := make(map[string]bool, len(d.Terms))
	for _, t := range d.Terms {
		name := strings.TrimSpace(t.Term)
		if seen[name] {
			return fmt.Errorf("source: duplicate term %q", name)
		}
		seen[name] = true
		if !t.Window().Valid() {
			return fmt.Errorf("source: term %q: %w", name, export.ErrInvalidTerm)
		}
	}
	return nil
}

// Term looks a term up by name.
func (d *Dataset) Term(name string) (Term, error) {
	name = strings.TrimSpace(name)
	for _, t := range d.Terms {
		if strings.TrimSpace(t.Term) == name {
			return t, nil
		}
	}
	return Term{}, fmt.Errorf("%w: %q", ErrUnknownTerm, name)
}

// TermNames lists the terms in dataset order.
func (d *Dataset) TermNames() []string {
	out := make([]string, len(d.Terms))
	for i, t := range d.Terms {
		out[i] = t.Term
	}
	return out
}

// SessionsForTerm returns the sessions belonging to the named term.
func (d *Dataset) SessionsForTerm(name string) []model.ScheduleSession {
	name = strings.TrimSpace(name)
	var out []model.ScheduleSession
	for _, s := range d.Sessions {
		if strings.TrimSpace(s.Term) == name {
			out = append(out, s)
		}
	}
	return out
}

// Rooms lists every room used in the named term, sorted.
func (d *Dataset) Rooms(term string) []string {
	rooms := export.RoomsOf(d.SessionsForTerm(term))
	sort.Strings(rooms)
	return rooms
}

// Request assembles an export request for the named term. With no rooms
// given, every room of the term is selected.
func (d *Dataset) Request(term string, rooms []string) (export.Request, error) {
	t, err := d.Term(term)
	if err != nil {
		return export.Request{}, err
	}
	if len(rooms) == 0 {
		rooms = d.Rooms(t.Term)
	}
	return export.Request{
		Term:       t.Window(),
		Exceptions: t.Exceptions,
		Rooms:      rooms,
		Sessions:   d.SessionsForTerm(t.Term),
	}, nil
}

// Load fetches and decodes the dataset at location.
func (f *Fetcher) Load(ctx context.Context, location string) (*Dataset, error) {
	res, err := f.Fetch(ctx, location)
	if err != nil {
		return nil, err
	}
	return Decode(res.Body)
}
