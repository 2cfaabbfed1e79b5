package views

import (
	"context"
	"strconv"

	"golang.org/x/sync/errgroup"

	"apex-dashboard/internal/f1data"
	"apex-dashboard/internal/jolpica"
)

// DriverHubView is the driver profile screen: profile, career totals and,
// when a year is given, that season's results. It has no table form.
type DriverHubView struct{ data Data }

type DriverHub struct {
	Profile *jolpica.Driver       `json:"profile"`
	Career  *f1data.CareerStats   `json:"career"`
	Season  []f1data.SeasonResult `json:"season,omitempty"`
}

func (DriverHubView) Name() string     { return "driver-hub" }
func (DriverHubView) Title() string    { return "Driver Hub" }
func (DriverHubView) Params() []string { return []string{"driver", "year"} }

func (v DriverHubView) Load(ctx context.Context, p Params) (any, error) {
	id, err := p.Required("driver")
	if err != nil {
		return nil, err
	}
	year, err := p.OptionalInt("year")
	if err != nil {
		return nil, err
	}

	var hub DriverHub
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		hub.Profile, err = v.data.DriverProfile(gctx, id)
		return err
	})
	g.Go(func() error {
		var err error
		hub.Career, err = v.data.DriverCareer(gctx, id)
		return err
	})
	if year != nil {
		g.Go(func() error {
			var err error
			hub.Season, err = v.data.DriverSeasonResults(gctx, id, *year)
			return err
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return hub, nil
}

// TeamHubView is the constructor screen: profile plus per-round totals.
type TeamHubView struct{ data Data }

type TeamHub struct {
	Profile *jolpica.Constructor      `json:"profile"`
	Season  []f1data.ConstructorRound `json:"season"`
}

func (TeamHubView) Name() string     { return "team-hub" }
func (TeamHubView) Title() string    { return "Team Hub" }
func (TeamHubView) Params() []string { return []string{"constructor", "year"} }

func (v TeamHubView) Load(ctx context.Context, p Params) (any, error) {
	id, err := p.Required("constructor")
	if err != nil {
		return nil, err
	}
	year, err := p.Int("year")
	if err != nil {
		return nil, err
	}

	var hub TeamHub
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		hub.Profile, err = v.data.ConstructorProfile(gctx, id)
		return err
	})
	g.Go(func() error {
		var err error
		hub.Season, err = v.data.ConstructorSeason(gctx, year, id)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return hub, nil
}

func (v TeamHubView) Export(ctx context.Context, p Params) (Table, error) {
	id, err := p.Required("constructor")
	if err != nil {
		return Table{}, err
	}
	year, err := p.Int("year")
	if err != nil {
		return Table{}, err
	}
	rounds, err := v.data.ConstructorSeason(ctx, year, id)
	if err != nil {
		return Table{}, err
	}
	t := Table{Columns: []string{"round", "race", "points", "wins", "podiums", "cumulative_points"}}
	total := 0.0
	for _, r := range rounds {
		total += r.Points
		t.add(strconv.Itoa(r.Round), r.Race, ftoa(r.Points), strconv.Itoa(r.Wins), strconv.Itoa(r.Podiums), ftoa(total))
	}
	return t, nil
}

// ComparisonView puts several drivers' seasons side by side.
type ComparisonView struct{ data Data }

func (ComparisonView) Name() string     { return "comparison" }
func (ComparisonView) Title() string    { return "Driver Comparison" }
func (ComparisonView) Params() []string { return []string{"year", "drivers"} }

func (v ComparisonView) compare(ctx context.Context, p Params) ([]f1data.DriverComparison, error) {
	year, err := p.Int("year")
	if err != nil {
		return nil, err
	}
	return v.data.CompareDrivers(ctx, year, p.List("drivers")...)
}

func (v ComparisonView) Load(ctx context.Context, p Params) (any, error) {
	return v.compare(ctx, p)
}

func (v ComparisonView) Export(ctx context.Context, p Params) (Table, error) {
	rows, err := v.compare(ctx, p)
	if err != nil {
		return Table{}, err
	}
	t := Table{Columns: []string{"driver", "code", "races", "wins", "podiums", "points", "best_finish", "average_grid", "average_finish", "dnfs"}}
	for _, c := range rows {
		t.add(c.Name, c.Code, strconv.Itoa(c.Races), strconv.Itoa(c.Wins), strconv.Itoa(c.Podiums),
			ftoa(c.Points), optInt(c.BestFinish), ftoa2(c.AverageGrid), ftoa2(c.AverageFinish), strconv.Itoa(c.DNFs))
	}
	return t, nil
}
