package f1data

// CareerStats aggregates a driver's whole career.
type CareerStats struct {
	DriverID      string  `json:"driver_id"`
	Championships int     `json:"championships"`
	Wins          int     `json:"wins"`
	Podiums       int     `json:"podiums"`
	Poles         int     `json:"poles"`
	FastestLaps   int     `json:"fastest_laps"`
	Points        float64 `json:"points"`
	DNFs          int     `json:"dnfs"`
	Races         int     `json:"races"`
	Seasons       int     `json:"seasons"`
	Debut         int     `json:"debut,omitempty"`
}

// SeasonResult is one driver's result in one race.
type SeasonResult struct {
	Round          int     `json:"round"`
	Race           string  `json:"race"`
	Date           string  `json:"date"`
	Constructor    string  `json:"constructor"`
	Grid           int     `json:"grid"`
	Position       int     `json:"position"`
	PositionText   string  `json:"position_text"`
	Points         float64 `json:"points"`
	Status         string  `json:"status"`
	FastestLapRank int     `json:"fastest_lap_rank,omitempty"`
	Time           string  `json:"time,omitempty"`
}

// ConstructorRound sums a team's cars for one race.
type ConstructorRound struct {
	Round   int     `json:"round"`
	Race    string  `json:"race"`
	Points  float64 `json:"points"`
	Wins    int     `json:"wins"`
	Podiums int     `json:"podiums"`
}

// DriverComparison summarizes one driver's season for side-by-side display.
type DriverComparison struct {
	DriverID      string  `json:"driver_id"`
	Name          string  `json:"name"`
	Code          string  `json:"code,omitempty"`
	Races         int     `json:"races"`
	Wins          int     `json:"wins"`
	Podiums       int     `json:"podiums"`
	Points        float64 `json:"points"`
	BestFinish    int     `json:"best_finish,omitempty"`
	AverageGrid   float64 `json:"average_grid"`
	AverageFinish float64 `json:"average_finish"`
	DNFs          int     `json:"dnfs"`
}
