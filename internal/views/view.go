// Package views holds the dashboard screens. Each view loads the data for
// one screen; views that can be saved as a table also implement Exportable.
package views

import (
	"context"
	"fmt"
	"net/url"
	"sort"
	"strconv"
	"strings"

	"apex-dashboard/internal/f1data"
	"apex-dashboard/internal/jolpica"
)

// View is one dashboard screen.
type View interface {
	Name() string
	Title() string
	// Params lists the query parameters the view reads.
	Params() []string
	Load(ctx context.Context, p Params) (any, error)
}

// Exportable is implemented by views whose data can be saved as a table.
type Exportable interface {
	Export(ctx context.Context, p Params) (Table, error)
}

// Data is the accessor surface the views read from. *f1data.Service
// implements it.
type Data interface {
	Schedule(ctx context.Context, year int) ([]jolpica.Race, error)
	RaceResults(ctx context.Context, year int, race string) (*jolpica.Race, error)
	Qualifying(ctx context.Context, year int, race string) (*jolpica.Race, error)
	DriverStandings(ctx context.Context, year int, round *int) (*jolpica.DriverStandings, error)
	ConstructorStandings(ctx context.Context, year int, round *int) (*jolpica.ConstructorStandings, error)
	DriverProfile(ctx context.Context, driverID string) (*jolpica.Driver, error)
	DriverCareer(ctx context.Context, driverID string) (*f1data.CareerStats, error)
	DriverSeasonResults(ctx context.Context, driverID string, year int) ([]f1data.SeasonResult, error)
	ConstructorProfile(ctx context.Context, constructorID string) (*jolpica.Constructor, error)
	ConstructorSeason(ctx context.Context, year int, constructorID string) ([]f1data.ConstructorRound, error)
	CompareDrivers(ctx context.Context, year int, driverIDs ...string) ([]f1data.DriverComparison, error)
}

var _ Data = (*f1data.Service)(nil)

// Params are the query parameters of a view request. Malformed values are
// reported as f1data.ErrInvalidInput.
type Params struct {
	values url.Values
}

func NewParams(v url.Values) Params {
	return Params{values: v}
}

func (p Params) String(name string) string {
	return strings.TrimSpace(p.values.Get(name))
}

// Required returns a non-empty string parameter.
func (p Params) Required(name string) (string, error) {
	v := p.String(name)
	if v == "" {
		return "", fmt.Errorf("%w: %s is required", f1data.ErrInvalidInput, name)
	}
	return v, nil
}

// Int returns a required integer parameter.
func (p Params) Int(name string) (int, error) {
	raw, err := p.Required(name)
	if err != nil {
		return 0, err
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("%w: %s must be an integer", f1data.ErrInvalidInput, name)
	}
	return n, nil
}

// OptionalInt returns nil when the parameter is absent.
func (p Params) OptionalInt(name string) (*int, error) {
	if p.String(name) == "" {
		return nil, nil
	}
	n, err := p.Int(name)
	if err != nil {
		return nil, err
	}
	return &n, nil
}

// List accepts both repeated and comma separated values.
func (p Params) List(name string) []string {
	var out []string
	for _, v := range p.values[name] {
		for _, part := range strings.Split(v, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
	}
	return out
}

// Summary describes a view for the index endpoint.
type Summary struct {
	Name       string   `json:"name"`
	Title      string   `json:"title"`
	Params     []string `json:"params"`
	Exportable bool     `json:"exportable"`
}

// Registry maps view names to views.
type Registry struct {
	views map[string]View
}

func NewRegistry(views ...View) *Registry {
	r := &Registry{views: make(map[string]View, len(views))}
	for _, v := range views {
		r.views[v.Name()] = v
	}
	return r
}

// Default registers every dashboard view over d.
func Default(d Data) *Registry {
	return NewRegistry(
		ResultsView{data: d},
		QualifyingView{data: d},
		DriverStandingsView{data: d},
		ConstructorStandingsView{data: d},
		ScheduleView{data: d},
		DriverHubView{data: d},
		TeamHubView{data: d},
		ComparisonView{data: d},
		SeasonAnalyticsView{data: d},
	)
}

func (r *Registry) Get(name string) (View, bool) {
	v, ok := r.views[name]
	return v, ok
}

// List returns the registered views sorted by name.
func (r *Registry) List() []Summary {
	out := make([]Summary, 0, len(r.views))
	for _, v := range r.views {
		_, exportable := v.(Exportable)
		out = append(out, Summary{
			Name:       v.Name(),
			Title:      v.Title(),
			Params:     v.Params(),
			Exportable: exportable,
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}
