package f1data

import (
	"strings"

	"apex-dashboard/internal/jolpica"
)

// finished reports whether a result status means the car took the flag,
// including lapped finishers ("+1 Lap", "Lapped").
func finished(status string) bool {
	return status == "Finished" || strings.HasPrefix(status, "+") || status == "Lapped"
}

// isDNF reports a retirement. Entries that never started the race (did not
// qualify, withdrew) are not retirements.
func isDNF(r jolpica.Result) bool {
	if finished(r.Status) {
		return false
	}
	s := strings.ToLower(r.Status)
	for _, ns := range []string{"did not", "qualify", "withdrew", "excluded", "disqualified"} {
		if strings.Contains(s, ns) {
			return false
		}
	}
	return r.Status != ""
}

func podium(r jolpica.Result) bool {
	return r.Position >= 1 && r.Position <= 3
}

func careerStats(driverID string, history []jolpica.SeasonStanding, races []jolpica.Race) CareerStats {
	out := CareerStats{DriverID: driverID, Seasons: len(history)}

	for i, h := range history {
		if i == 0 || h.Season < out.Debut {
			out.Debut = h.Season
		}
		out.Wins += h.Standing.Wins
		out.Points += h.Standing.Points
		if h.Standing.Position == 1 {
			out.Championships++
		}
	}

	for _, race := range races {
		if len(race.Results) == 0 {
			continue
		}
		r := race.Results[0]
		out.Races++
		if podium(r) {
			out.Podiums++
		}
		if r.Grid == 1 {
			out.Poles++
		}
		if r.FastestLapRank == 1 {
			out.FastestLaps++
		}
		if isDNF(r) {
			out.DNFs++
		}
	}
	return out
}

func seasonResults(races []jolpica.Race) []SeasonResult {
	out := make([]SeasonResult, 0, len(races))
	for _, race := range races {
		if len(race.Results) == 0 {
			continue
		}
		r := race.Results[0]
		out = append(out, SeasonResult{
			Round:          race.Round,
			Race:           race.Name,
			Date:           race.Date,
			Constructor:    r.Constructor.Name,
			Grid:           r.Grid,
			Position:       r.Position,
			PositionText:   r.PositionText,
			Points:         r.Points,
			Status:         r.Status,
			FastestLapRank: r.FastestLapRank,
			Time:           r.Time,
		})
	}
	return out
}

func constructorRounds(races []jolpica.Race) []ConstructorRound {
	out := make([]ConstructorRound, 0, len(races))
	for _, race := range races {
		if len(race.Results) == 0 {
			continue
		}
		cr := ConstructorRound{Round: race.Round, Race: race.Name}
		for _, r := range race.Results {
			cr.Points += r.Points
			if r.Position == 1 {
				cr.Wins++
			}
			if podium(r) {
				cr.Podiums++
			}
		}
		out = append(out, cr)
	}
	return out
}

func compareSeason(driver jolpica.Driver, results []SeasonResult) DriverComparison {
	out := DriverComparison{
		DriverID: driver.ID,
		Name:     driver.FullName(),
		Code:     driver.Code,
		Races:    len(results),
	}

	var gridSum, finishSum, started, classified int
	for _, r := range results {
		out.Points += r.Points
		if r.Position == 1 {
			out.Wins++
		}
		if r.Position >= 1 && r.Position <= 3 {
			out.Podiums++
		}
		if r.Grid > 0 {
			gridSum += r.Grid
			started++
		}
		if finished(r.Status) && r.Position > 0 {
			finishSum += r.Position
			classified++
			if out.BestFinish == 0 || r.Position < out.BestFinish {
				out.BestFinish = r.Position
			}
		}
		if isDNF(jolpica.Result{Status: r.Status}) {
			out.DNFs++
		}
	}
	if started > 0 {
		out.AverageGrid = float64(gridSum) / float64(started)
	}
	if classified > 0 {
		out.AverageFinish = float64(finishSum) / float64(classified)
	}
	return out
}
