package jolpica

import (
	"context"
	"strings"
)

// Client fetches Formula 1 results data. Every method returns an *Error
// whose Kind is ErrNetwork, ErrNotFound or ErrParse. An empty answer is
// ErrNotFound.
type Client interface {
	// RaceResults returns one race with its classified results.
	RaceResults(ctx context.Context, year, round int) (*Race, error)
	// Qualifying returns one race with its qualifying results.
	Qualifying(ctx context.Context, year, round int) (*Race, error)
	// DriverStandings returns the championship after round, or at the end
	// of the season when round is nil.
	DriverStandings(ctx context.Context, year int, round *int) (*DriverStandings, error)
	ConstructorStandings(ctx context.Context, year int, round *int) (*ConstructorStandings, error)
	// Schedule returns every race of a season in round order.
	Schedule(ctx context.Context, year int) ([]Race, error)
	Driver(ctx context.Context, driverID string) (*Driver, error)
	Constructor(ctx context.Context, constructorID string) (*Constructor, error)
	// DriverStandingsHistory returns the driver's final championship
	// standing for every season they raced.
	DriverStandingsHistory(ctx context.Context, driverID string) ([]SeasonStanding, error)
	// DriverResults returns every race the driver started, optionally
	// limited to one season. Each race carries only that driver's result.
	DriverResults(ctx context.Context, driverID string, year *int) ([]Race, error)
	// ConstructorResults returns the team's results in every race of a
	// season; each race carries one result per team car.
	ConstructorResults(ctx context.Context, year int, constructorID string) ([]Race, error)
	Close() error
}

type Driver struct {
	ID          string `json:"driver_id"`
	Code        string `json:"code,omitempty"`
	Number      string `json:"number,omitempty"`
	GivenName   string `json:"given_name"`
	FamilyName  string `json:"family_name"`
	DateOfBirth string `json:"dob,omitempty"`
	Nationality string `json:"nationality,omitempty"`
	URL         string `json:"url,omitempty"`
}

func (d Driver) FullName() string {
	return strings.TrimSpace(d.GivenName + " " + d.FamilyName)
}

type Constructor struct {
	ID          string `json:"constructor_id"`
	Name        string `json:"name"`
	Nationality string `json:"nationality,omitempty"`
	URL         string `json:"url,omitempty"`
}

type Circuit struct {
	ID       string `json:"circuit_id"`
	Name     string `json:"name"`
	Locality string `json:"locality,omitempty"`
	Country  string `json:"country,omitempty"`
}

type Race struct {
	Season     int                `json:"season"`
	Round      int                `json:"round"`
	Name       string             `json:"race_name"`
	Date       string             `json:"date"`
	Time       string             `json:"time,omitempty"`
	Circuit    Circuit            `json:"circuit"`
	Results    []Result           `json:"results,omitempty"`
	Qualifying []QualifyingResult `json:"qualifying,omitempty"`
}

// Result is one car's classification. Position is 0 for cars the API
// leaves unclassified; PositionText carries "R", "D" and the like.
type Result struct {
	Position       int         `json:"position"`
	PositionText   string      `json:"position_text"`
	Number         string      `json:"number"`
	Driver         Driver      `json:"driver"`
	Constructor    Constructor `json:"constructor"`
	Grid           int         `json:"grid"`
	Laps           int         `json:"laps"`
	Points         float64     `json:"points"`
	Status         string      `json:"status"`
	Time           string      `json:"time,omitempty"`
	FastestLapRank int         `json:"fastest_lap_rank,omitempty"`
	FastestLapTime string      `json:"fastest_lap_time,omitempty"`
}

type QualifyingResult struct {
	Position    int         `json:"position"`
	Number      string      `json:"number"`
	Driver      Driver      `json:"driver"`
	Constructor Constructor `json:"constructor"`
	Q1          string      `json:"q1,omitempty"`
	Q2          string      `json:"q2,omitempty"`
	Q3          string      `json:"q3,omitempty"`
}

type DriverStanding struct {
	Position     int           `json:"position"`
	PositionText string        `json:"position_text"`
	Points       float64       `json:"points"`
	Wins         int           `json:"wins"`
	Driver       Driver        `json:"driver"`
	Constructors []Constructor `json:"constructors,omitempty"`
}

type ConstructorStanding struct {
	Position     int         `json:"position"`
	PositionText string      `json:"position_text"`
	Points       float64     `json:"points"`
	Wins         int         `json:"wins"`
	Constructor  Constructor `json:"constructor"`
}

type DriverStandings struct {
	Season    int              `json:"season"`
	Round     int              `json:"round"`
	Standings []DriverStanding `json:"standings"`
}

type ConstructorStandings struct {
	Season    int                   `json:"season"`
	Round     int                   `json:"round"`
	Standings []ConstructorStanding `json:"standings"`
}

// SeasonStanding is a driver's championship position at the end of a season.
type SeasonStanding struct {
	Season   int            `json:"season"`
	Round    int            `json:"round"`
	Standing DriverStanding `json:"standing"`
}
