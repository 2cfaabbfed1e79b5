package jolpica

import (
	"fmt"
	"strconv"
)

// Wire shapes of the Ergast-compatible MRData envelope. Every number comes
// back as a string.

type mrEnvelope struct {
	MRData *mrData `json:"MRData"`
}

type mrData struct {
	Limit  string `json:"limit"`
	Offset string `json:"offset"`
	Total  string `json:"total"`

	RaceTable        *wireRaceTable        `json:"RaceTable,omitempty"`
	StandingsTable   *wireStandingsTable   `json:"StandingsTable,omitempty"`
	DriverTable      *wireDriverTable      `json:"DriverTable,omitempty"`
	ConstructorTable *wireConstructorTable `json:"ConstructorTable,omitempty"`
}

// window returns the paging counters of one page.
func (m *mrData) window() (total, limit int, err error) {
	if total, err = strconv.Atoi(m.Total); err != nil {
		return 0, 0, fmt.Errorf("total %q: %w", m.Total, err)
	}
	if limit, err = strconv.Atoi(m.Limit); err != nil {
		return 0, 0, fmt.Errorf("limit %q: %w", m.Limit, err)
	}
	return total, limit, nil
}

type wireRaceTable struct {
	Season string     `json:"season"`
	Round  string     `json:"round"`
	Races  []wireRace `json:"Races"`
}

type wireRace struct {
	Season            string                 `json:"season"`
	Round             string                 `json:"round"`
	URL               string                 `json:"url"`
	RaceName          string                 `json:"raceName"`
	Circuit           wireCircuit            `json:"Circuit"`
	Date              string                 `json:"date"`
	Time              string                 `json:"time"`
	Results           []wireResult           `json:"Results"`
	QualifyingResults []wireQualifyingResult `json:"QualifyingResults"`
}

type wireCircuit struct {
	CircuitID   string `json:"circuitId"`
	URL         string `json:"url"`
	CircuitName string `json:"circuitName"`
	Location    struct {
		Lat      string `json:"lat"`
		Long     string `json:"long"`
		Locality string `json:"locality"`
		Country  string `json:"country"`
	} `json:"Location"`
}

type wireDriver struct {
	DriverID        string `json:"driverId"`
	PermanentNumber string `json:"permanentNumber"`
	Code            string `json:"code"`
	URL             string `json:"url"`
	GivenName       string `json:"givenName"`
	FamilyName      string `json:"familyName"`
	DateOfBirth     string `json:"dateOfBirth"`
	Nationality     string `json:"nationality"`
}

type wireConstructor struct {
	ConstructorID string `json:"constructorId"`
	URL           string `json:"url"`
	Name          string `json:"name"`
	Nationality   string `json:"nationality"`
}

type wireTime struct {
	Millis string `json:"millis"`
	Time   string `json:"time"`
}

type wireFastestLap struct {
	Rank string    `json:"rank"`
	Lap  string    `json:"lap"`
	Time *wireTime `json:"Time"`
}

type wireResult struct {
	Number       string          `json:"number"`
	Position     string          `json:"position"`
	PositionText string          `json:"positionText"`
	Points       string          `json:"points"`
	Driver       wireDriver      `json:"Driver"`
	Constructor  wireConstructor `json:"Constructor"`
	Grid         string          `json:"grid"`
	Laps         string          `json:"laps"`
	Status       string          `json:"status"`
	Time         *wireTime       `json:"Time"`
	FastestLap   *wireFastestLap `json:"FastestLap"`
}

type wireQualifyingResult struct {
	Number      string          `json:"number"`
	Position    string          `json:"position"`
	Driver      wireDriver      `json:"Driver"`
	Constructor wireConstructor `json:"Constructor"`
	Q1          string          `json:"Q1"`
	Q2          string          `json:"Q2"`
	Q3          string          `json:"Q3"`
}

type wireStandingsTable struct {
	Season         string              `json:"season"`
	Round          string              `json:"round"`
	StandingsLists []wireStandingsList `json:"StandingsLists"`
}

type wireStandingsList struct {
	Season               string                    `json:"season"`
	Round                string                    `json:"round"`
	DriverStandings      []wireDriverStanding      `json:"DriverStandings"`
	ConstructorStandings []wireConstructorStanding `json:"ConstructorStandings"`
}

type wireDriverStanding struct {
	Position     string            `json:"position"`
	PositionText string            `json:"positionText"`
	Points       string            `json:"points"`
	Wins         string            `json:"wins"`
	Driver       wireDriver        `json:"Driver"`
	Constructors []wireConstructor `json:"Constructors"`
}

type wireConstructorStanding struct {
	Position     string          `json:"position"`
	PositionText string          `json:"positionText"`
	Points       string          `json:"points"`
	Wins         string          `json:"wins"`
	Constructor  wireConstructor `json:"Constructor"`
}

type wireDriverTable struct {
	Drivers []wireDriver `json:"Drivers"`
}

type wireConstructorTable struct {
	Constructors []wireConstructor `json:"Constructors"`
}

// numbers converts the API's string-encoded numbers and remembers the first
// failure, so a whole row can be converted before checking.
type numbers struct {
	err error
}

func (n *numbers) int(field, s string) int {
	if s == "" || n.err != nil {
		return 0
	}
	v, err := strconv.Atoi(s)
	if err != nil {
		n.err = fmt.Errorf("%s %q: %w", field, s, err)
	}
	return v
}

func (n *numbers) float(field, s string) float64 {
	if s == "" || n.err != nil {
		return 0
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		n.err = fmt.Errorf("%s %q: %w", field, s, err)
	}
	return v
}

func (w wireDriver) toDriver() Driver {
	return Driver{
		ID:          w.DriverID,
		Code:        w.Code,
		Number:      w.PermanentNumber,
		GivenName:   w.GivenName,
		FamilyName:  w.FamilyName,
		DateOfBirth: w.DateOfBirth,
		Nationality: w.Nationality,
		URL:         w.URL,
	}
}

func (w wireConstructor) toConstructor() Constructor {
	return Constructor{
		ID:          w.ConstructorID,
		Name:        w.Name,
		Nationality: w.Nationality,
		URL:         w.URL,
	}
}

func (w wireRace) toRace() (Race, error) {
	var n numbers
	r := Race{
		Season: n.int("season", w.Season),
		Round:  n.int("round", w.Round),
		Name:   w.RaceName,
		Date:   w.Date,
		Time:   w.Time,
		Circuit: Circuit{
			ID:       w.Circuit.CircuitID,
			Name:     w.Circuit.CircuitName,
			Locality: w.Circuit.Location.Locality,
			Country:  w.Circuit.Location.Country,
		},
	}

	for _, res := range w.Results {
		out := Result{
			Position:     n.int("position", res.Position),
			PositionText: res.PositionText,
			Number:       res.Number,
			Driver:       res.Driver.toDriver(),
			Constructor:  res.Constructor.toConstructor(),
			Grid:         n.int("grid", res.Grid),
			Laps:         n.int("laps", res.Laps),
			Points:       n.float("points", res.Points),
			Status:       res.Status,
		}
		if res.Time != nil {
			out.Time = res.Time.Time
		}
		if fl := res.FastestLap; fl != nil {
			out.FastestLapRank = n.int("fastest lap rank", fl.Rank)
			if fl.Time != nil {
				out.FastestLapTime = fl.Time.Time
			}
		}
		r.Results = append(r.Results, out)
	}

	for _, q := range w.QualifyingResults {
		r.Qualifying = append(r.Qualifying, QualifyingResult{
			Position:    n.int("position", q.Position),
			Number:      q.Number,
			Driver:      q.Driver.toDriver(),
			Constructor: q.Constructor.toConstructor(),
			Q1:          q.Q1,
			Q2:          q.Q2,
			Q3:          q.Q3,
		})
	}

	if n.err != nil {
		return Race{}, fmt.Errorf("race %s/%s: %w", w.Season, w.Round, n.err)
	}
	return r, nil
}

func (w wireDriverStanding) toStanding(n *numbers) DriverStanding {
	s := DriverStanding{
		Position:     n.int("position", w.Position),
		PositionText: w.PositionText,
		Points:       n.float("points", w.Points),
		Wins:         n.int("wins", w.Wins),
		Driver:       w.Driver.toDriver(),
	}
	for _, c := range w.Constructors {
		s.Constructors = append(s.Constructors, c.toConstructor())
	}
	return s
}

func (w wireConstructorStanding) toStanding(n *numbers) ConstructorStanding {
	return ConstructorStanding{
		Position:     n.int("position", w.Position),
		PositionText: w.PositionText,
		Points:       n.float("points", w.Points),
		Wins:         n.int("wins", w.Wins),
		Constructor:  w.Constructor.toConstructor(),
	}
}
