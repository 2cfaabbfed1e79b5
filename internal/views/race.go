package views

import (
	"context"
	"strconv"

	"apex-dashboard/internal/jolpica"
)

// ResultsView is the race results screen.
type ResultsView struct{ data Data }

func (ResultsView) Name() string     { return "results" }
func (ResultsView) Title() string    { return "Race Results" }
func (ResultsView) Params() []string { return []string{"year", "race"} }

func (v ResultsView) race(ctx context.Context, p Params) (*jolpica.Race, error) {
	year, err := p.Int("year")
	if err != nil {
		return nil, err
	}
	race, err := p.Required("race")
	if err != nil {
		return nil, err
	}
	return v.data.RaceResults(ctx, year, race)
}

func (v ResultsView) Load(ctx context.Context, p Params) (any, error) {
	return v.race(ctx, p)
}

func (v ResultsView) Export(ctx context.Context, p Params) (Table, error) {
	race, err := v.race(ctx, p)
	if err != nil {
		return Table{}, err
	}
	t := Table{Columns: []string{"position", "driver", "code", "constructor", "grid", "laps", "points", "status", "time"}}
	for _, r := range race.Results {
		pos := r.PositionText
		if r.Position > 0 {
			pos = strconv.Itoa(r.Position)
		}
		t.add(pos, r.Driver.FullName(), r.Driver.Code, r.Constructor.Name,
			optInt(r.Grid), strconv.Itoa(r.Laps), ftoa(r.Points), r.Status, r.Time)
	}
	return t, nil
}

// QualifyingView is the qualifying screen.
type QualifyingView struct{ data Data }

func (QualifyingView) Name() string     { return "qualifying" }
func (QualifyingView) Title() string    { return "Qualifying" }
func (QualifyingView) Params() []string { return []string{"year", "race"} }

func (v QualifyingView) race(ctx context.Context, p Params) (*jolpica.Race, error) {
	year, err := p.Int("year")
	if err != nil {
		return nil, err
	}
	race, err := p.Required("race")
	if err != nil {
		return nil, err
	}
	return v.data.Qualifying(ctx, year, race)
}

func (v QualifyingView) Load(ctx context.Context, p Params) (any, error) {
	return v.race(ctx, p)
}

func (v QualifyingView) Export(ctx context.Context, p Params) (Table, error) {
	race, err := v.race(ctx, p)
	if err != nil {
		return Table{}, err
	}
	t := Table{Columns: []string{"position", "driver", "code", "constructor", "q1", "q2", "q3"}}
	for _, q := range race.Qualifying {
		t.add(optInt(q.Position), q.Driver.FullName(), q.Driver.Code, q.Constructor.Name, q.Q1, q.Q2, q.Q3)
	}
	return t, nil
}

// ScheduleView is the season calendar.
type ScheduleView struct{ data Data }

func (ScheduleView) Name() string     { return "schedule" }
func (ScheduleView) Title() string    { return "Season Schedule" }
func (ScheduleView) Params() []string { return []string{"year"} }

func (v ScheduleView) Load(ctx context.Context, p Params) (any, error) {
	year, err := p.Int("year")
	if err != nil {
		return nil, err
	}
	return v.data.Schedule(ctx, year)
}

func (v ScheduleView) Export(ctx context.Context, p Params) (Table, error) {
	year, err := p.Int("year")
	if err != nil {
		return Table{}, err
	}
	races, err := v.data.Schedule(ctx, year)
	if err != nil {
		return Table{}, err
	}
	t := Table{Columns: []string{"round", "race", "circuit", "locality", "country", "date", "time"}}
	for _, r := range races {
		t.add(strconv.Itoa(r.Round), r.Name, r.Circuit.Name, r.Circuit.Locality, r.Circuit.Country, r.Date, r.Time)
	}
	return t, nil
}
