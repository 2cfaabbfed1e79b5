package views

import (
	"context"
	"strconv"
	"strings"
)

// DriverStandingsView is the drivers' championship table. Without a round
// it shows the final (or latest) standings.
type DriverStandingsView struct{ data Data }

func (DriverStandingsView) Name() string     { return "driver-standings" }
func (DriverStandingsView) Title() string    { return "Driver Standings" }
func (DriverStandingsView) Params() []string { return []string{"year", "round"} }

func (v DriverStandingsView) Load(ctx context.Context, p Params) (any, error) {
	year, round, err := seasonRound(p)
	if err != nil {
		return nil, err
	}
	return v.data.DriverStandings(ctx, year, round)
}

func (v DriverStandingsView) Export(ctx context.Context, p Params) (Table, error) {
	year, round, err := seasonRound(p)
	if err != nil {
		return Table{}, err
	}
	st, err := v.data.DriverStandings(ctx, year, round)
	if err != nil {
		return Table{}, err
	}
	t := Table{Columns: []string{"position", "driver", "code", "nationality", "constructor", "points", "wins"}}
	for _, s := range st.Standings {
		teams := make([]string, 0, len(s.Constructors))
		for _, c := range s.Constructors {
			teams = append(teams, c.Name)
		}
		t.add(optInt(s.Position), s.Driver.FullName(), s.Driver.Code, s.Driver.Nationality,
			strings.Join(teams, " / "), ftoa(s.Points), strconv.Itoa(s.Wins))
	}
	return t, nil
}

// ConstructorStandingsView is the constructors' championship table.
type ConstructorStandingsView struct{ data Data }

func (ConstructorStandingsView) Name() string     { return "constructor-standings" }
func (ConstructorStandingsView) Title() string    { return "Constructor Standings" }
func (ConstructorStandingsView) Params() []string { return []string{"year", "round"} }

func (v ConstructorStandingsView) Load(ctx context.Context, p Params) (any, error) {
	year, round, err := seasonRound(p)
	if err != nil {
		return nil, err
	}
	return v.data.ConstructorStandings(ctx, year, round)
}

func (v ConstructorStandingsView) Export(ctx context.Context, p Params) (Table, error) {
	year, round, err := seasonRound(p)
	if err != nil {
		return Table{}, err
	}
	st, err := v.data.ConstructorStandings(ctx, year, round)
	if err != nil {
		return Table{}, err
	}
	t := Table{Columns: []string{"position", "constructor", "nationality", "points", "wins"}}
	for _, s := range st.Standings {
		t.add(optInt(s.Position), s.Constructor.Name, s.Constructor.Nationality, ftoa(s.Points), strconv.Itoa(s.Wins))
	}
	return t, nil
}

func seasonRound(p Params) (int, *int, error) {
	year, err := p.Int("year")
	if err != nil {
		return 0, nil, err
	}
	round, err := p.OptionalInt("round")
	if err != nil {
		return 0, nil, err
	}
	return year, round, nil
}
