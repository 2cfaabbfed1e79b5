package views

import (
	"context"
	"errors"
	"sort"
	"strconv"

	"golang.org/x/sync/errgroup"

	"apex-dashboard/internal/jolpica"
)

const analyticsTop = 10

// SeasonAnalyticsView is the season snapshot: the ten highest scoring
// drivers and constructors. Seasons without a constructors' championship
// show drivers only.
type SeasonAnalyticsView struct{ data Data }

type SeasonAnalytics struct {
	Season       int                           `json:"season"`
	Drivers      []jolpica.DriverStanding      `json:"drivers"`
	Constructors []jolpica.ConstructorStanding `json:"constructors"`
}

func (SeasonAnalyticsView) Name() string     { return "season-analytics" }
func (SeasonAnalyticsView) Title() string    { return "Season Analytics" }
func (SeasonAnalyticsView) Params() []string { return []string{"year"} }

func (v SeasonAnalyticsView) Load(ctx context.Context, p Params) (any, error) {
	year, err := p.Int("year")
	if err != nil {
		return nil, err
	}
	return v.snapshot(ctx, year)
}

func (v SeasonAnalyticsView) snapshot(ctx context.Context, year int) (*SeasonAnalytics, error) {
	var drivers *jolpica.DriverStandings
	var constructors *jolpica.ConstructorStandings

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		drivers, err = v.data.DriverStandings(gctx, year, nil)
		return tolerateNotFound(err)
	})
	g.Go(func() error {
		var err error
		constructors, err = v.data.ConstructorStandings(gctx, year, nil)
		return tolerateNotFound(err)
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	out := &SeasonAnalytics{
		Season:       year,
		Drivers:      []jolpica.DriverStanding{},
		Constructors: []jolpica.ConstructorStanding{},
	}
	if drivers != nil {
		out.Drivers = append(out.Drivers, drivers.Standings...)
		sort.SliceStable(out.Drivers, func(i, j int) bool { return out.Drivers[i].Points > out.Drivers[j].Points })
		out.Drivers = out.Drivers[:min(len(out.Drivers), analyticsTop)]
	}
	if constructors != nil {
		out.Constructors = append(out.Constructors, constructors.Standings...)
		sort.SliceStable(out.Constructors, func(i, j int) bool { return out.Constructors[i].Points > out.Constructors[j].Points })
		out.Constructors = out.Constructors[:min(len(out.Constructors), analyticsTop)]
	}

	if len(out.Drivers) == 0 && len(out.Constructors) == 0 {
		return nil, &jolpica.Error{Kind: jolpica.ErrNotFound, Op: "season_analytics"}
	}
	return out, nil
}

func (v SeasonAnalyticsView) Export(ctx context.Context, p Params) (Table, error) {
	year, err := p.Int("year")
	if err != nil {
		return Table{}, err
	}
	s, err := v.snapshot(ctx, year)
	if err != nil {
		return Table{}, err
	}
	t := Table{Columns: []string{"category", "rank", "name", "code", "points", "wins"}}
	for i, d := range s.Drivers {
		t.add("driver", strconv.Itoa(i+1), d.Driver.FullName(), d.Driver.Code, ftoa(d.Points), strconv.Itoa(d.Wins))
	}
	for i, c := range s.Constructors {
		t.add("constructor", strconv.Itoa(i+1), c.Constructor.Name, "", ftoa(c.Points), strconv.Itoa(c.Wins))
	}
	return t, nil
}

func tolerateNotFound(err error) error {
	if errors.Is(err, jolpica.ErrNotFound) {
		return nil
	}
	return err
}
