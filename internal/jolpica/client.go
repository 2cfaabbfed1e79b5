package jolpica

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"go.uber.org/zap"

	"apex-dashboard/internal/metrics"
)

const (
	maxResponseSize = 8 * 1024 * 1024
	// maxPages bounds a paged walk; a full career is well under this.
	maxPages = 50
)

func (c *client) RaceResults(ctx context.Context, year, round int) (*Race, error) {
	const op = "race_results"
	races, err := c.races(ctx, op, fmt.Sprintf("/%d/%d/results.json", year, round))
	if err != nil {
		return nil, err
	}
	if len(races[0].Results) == 0 {
		return nil, notFound(op, http.StatusOK)
	}
	return &races[0], nil
}

func (c *client) Qualifying(ctx context.Context, year, round int) (*Race, error) {
	const op = "qualifying"
	races, err := c.races(ctx, op, fmt.Sprintf("/%d/%d/qualifying.json", year, round))
	if err != nil {
		return nil, err
	}
	if len(races[0].Qualifying) == 0 {
		return nil, notFound(op, http.StatusOK)
	}
	return &races[0], nil
}

func (c *client) Schedule(ctx context.Context, year int) ([]Race, error) {
	return c.races(ctx, "schedule", fmt.Sprintf("/%d.json", year))
}

func (c *client) DriverResults(ctx context.Context, driverID string, year *int) ([]Race, error) {
	path := "/drivers/" + url.PathEscape(driverID) + "/results.json"
	if year != nil {
		path = fmt.Sprintf("/%d", *year) + path
	}
	return c.races(ctx, "driver_results", path)
}

func (c *client) ConstructorResults(ctx context.Context, year int, constructorID string) ([]Race, error) {
	path := fmt.Sprintf("/%d/constructors/%s/results.json", year, url.PathEscape(constructorID))
	return c.races(ctx, "constructor_results", path)
}

func (c *client) DriverStandings(ctx context.Context, year int, round *int) (*DriverStandings, error) {
	const op = "driver_standings"
	lists, err := c.standings(ctx, op, seasonPath(year, round)+"/driverStandings.json")
	if err != nil {
		return nil, err
	}

	var n numbers
	l := lists[0]
	out := &DriverStandings{Season: n.int("season", l.Season), Round: n.int("round", l.Round)}
	for _, s := range l.DriverStandings {
		out.Standings = append(out.Standings, s.toStanding(&n))
	}
	if n.err != nil {
		return nil, parseError(op, n.err)
	}
	if len(out.Standings) == 0 {
		return nil, notFound(op, http.StatusOK)
	}
	return out, nil
}

func (c *client) ConstructorStandings(ctx context.Context, year int, round *int) (*ConstructorStandings, error) {
	const op = "constructor_standings"
	lists, err := c.standings(ctx, op, seasonPath(year, round)+"/constructorStandings.json")
	if err != nil {
		return nil, err
	}

	var n numbers
	l := lists[0]
	out := &ConstructorStandings{Season: n.int("season", l.Season), Round: n.int("round", l.Round)}
	for _, s := range l.ConstructorStandings {
		out.Standings = append(out.Standings, s.toStanding(&n))
	}
	if n.err != nil {
		return nil, parseError(op, n.err)
	}
	if len(out.Standings) == 0 {
		return nil, notFound(op, http.StatusOK)
	}
	return out, nil
}

func (c *client) DriverStandingsHistory(ctx context.Context, driverID string) ([]SeasonStanding, error) {
	const op = "driver_standings_history"
	lists, err := c.standings(ctx, op, "/drivers/"+url.PathEscape(driverID)+"/driverStandings.json")
	if err != nil {
		return nil, err
	}

	var n numbers
	out := make([]SeasonStanding, 0, len(lists))
	for _, l := range lists {
		if len(l.DriverStandings) == 0 {
			continue
		}
		out = append(out, SeasonStanding{
			Season:   n.int("season", l.Season),
			Round:    n.int("round", l.Round),
			Standing: l.DriverStandings[0].toStanding(&n),
		})
	}
	if n.err != nil {
		return nil, parseError(op, n.err)
	}
	if len(out) == 0 {
		return nil, notFound(op, http.StatusOK)
	}
	return out, nil
}

func (c *client) Driver(ctx context.Context, driverID string) (*Driver, error) {
	const op = "driver"
	md, err := c.fetch(ctx, op, "/drivers/"+url.PathEscape(driverID)+".json", 0)
	if err != nil {
		return nil, err
	}
	if md.DriverTable == nil {
		return nil, parseError(op, errors.New("missing DriverTable"))
	}
	if len(md.DriverTable.Drivers) == 0 {
		return nil, notFound(op, http.StatusOK)
	}
	d := md.DriverTable.Drivers[0].toDriver()
	return &d, nil
}

func (c *client) Constructor(ctx context.Context, constructorID string) (*Constructor, error) {
	const op = "constructor"
	md, err := c.fetch(ctx, op, "/constructors/"+url.PathEscape(constructorID)+".json", 0)
	if err != nil {
		return nil, err
	}
	if md.ConstructorTable == nil {
		return nil, parseError(op, errors.New("missing ConstructorTable"))
	}
	if len(md.ConstructorTable.Constructors) == 0 {
		return nil, notFound(op, http.StatusOK)
	}
	k := md.ConstructorTable.Constructors[0].toConstructor()
	return &k, nil
}

func seasonPath(year int, round *int) string {
	if round == nil {
		return fmt.Sprintf("/%d", year)
	}
	return fmt.Sprintf("/%d/%d", year, *round)
}

// races walks every page of a race table. The API pages by result row, so
// one race can straddle two pages; those halves are merged.
func (c *client) races(ctx context.Context, op, path string) ([]Race, error) {
	var wire []wireRace
	err := c.paginate(ctx, op, path, func(md *mrData) (int, error) {
		if md.RaceTable == nil {
			return 0, errors.New("missing RaceTable")
		}
		rows := 0
		for _, r := range md.RaceTable.Races {
			rows += max(1, len(r.Results)+len(r.QualifyingResults))
			if last := len(wire) - 1; last >= 0 && wire[last].Season == r.Season && wire[last].Round == r.Round {
				wire[last].Results = append(wire[last].Results, r.Results...)
				wire[last].QualifyingResults = append(wire[last].QualifyingResults, r.QualifyingResults...)
				continue
			}
			wire = append(wire, r)
		}
		return rows, nil
	})
	if err != nil {
		return nil, err
	}
	if len(wire) == 0 {
		return nil, notFound(op, http.StatusOK)
	}

	out := make([]Race, 0, len(wire))
	for _, w := range wire {
		r, err := w.toRace()
		if err != nil {
			return nil, parseError(op, err)
		}
		out = append(out, r)
	}
	return out, nil
}

// standings walks every page of a standings table, merging lists split
// across pages.
func (c *client) standings(ctx context.Context, op, path string) ([]wireStandingsList, error) {
	var lists []wireStandingsList
	err := c.paginate(ctx, op, path, func(md *mrData) (int, error) {
		if md.StandingsTable == nil {
			return 0, errors.New("missing StandingsTable")
		}
		rows := 0
		for _, l := range md.StandingsTable.StandingsLists {
			rows += max(1, len(l.DriverStandings)+len(l.ConstructorStandings))
			if last := len(lists) - 1; last >= 0 && lists[last].Season == l.Season && lists[last].Round == l.Round {
				lists[last].DriverStandings = append(lists[last].DriverStandings, l.DriverStandings...)
				lists[last].ConstructorStandings = append(lists[last].ConstructorStandings, l.ConstructorStandings...)
				continue
			}
			lists = append(lists, l)
		}
		return rows, nil
	})
	if err != nil {
		return nil, err
	}
	if len(lists) == 0 {
		return nil, notFound(op, http.StatusOK)
	}
	return lists, nil
}

// paginate fetches pages until total is reached. collect returns how many
// rows the page carried; an empty page ends the walk.
func (c *client) paginate(ctx context.Context, op, path string, collect func(*mrData) (int, error)) error {
	offset := 0
	for page := 0; page < maxPages; page++ {
		md, err := c.fetch(ctx, op, path, offset)
		if err != nil {
			return err
		}
		rows, err := collect(md)
		if err != nil {
			return parseError(op, err)
		}
		total, limit, err := md.window()
		if err != nil {
			return parseError(op, err)
		}
		offset += limit
		if rows == 0 || limit <= 0 || offset >= total {
			return nil
		}
	}
	c.logger.Warn("result set truncated", zap.String("op", op), zap.Int("pages", maxPages))
	return nil
}

// fetch performs one GET and decodes the MRData envelope, mapping every
// failure onto an error kind.
func (c *client) fetch(parentCtx context.Context, op, path string, offset int) (md *mrData, err error) {
	start := time.Now()
	defer func() {
		metrics.UpstreamRequestSeconds.
			WithLabelValues(op, outcome(err)).
			Observe(time.Since(start).Seconds())
	}()

	ctx, cancel := context.WithTimeout(parentCtx, c.cfg.UpstreamTimeout)
	defer cancel()

	q := url.Values{}
	q.Set("limit", strconv.Itoa(c.cfg.PageLimit))
	if offset > 0 {
		q.Set("offset", strconv.Itoa(offset))
	}
	target := c.cfg.BaseURL + path + "?" + q.Encode()

	doOnce := func(ctx context.Context) (*http.Response, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
		if err != nil {
			return nil, err
		}
		req.Header.Set("Accept", "application/json")
		if c.cfg.APIKey != "" {
			req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)
		}
		return c.httpClient.Do(req)
	}

	resp, status, err := c.doWithRetry(ctx, op, doOnce)
	if err != nil {
		c.logger.Error("upstream request failed",
			zap.String("op", op),
			zap.String("path", path),
			zap.Error(err),
			zap.Duration("duration", time.Since(start)),
		)
		return nil, networkError(op, status, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil, notFound(op, resp.StatusCode)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		c.logger.Error("upstream error",
			zap.String("op", op),
			zap.Int("status", resp.StatusCode),
			zap.String("body", truncate(string(body), 200)),
		)
		return nil, networkError(op, resp.StatusCode, fmt.Errorf("unexpected status"))
	}

	var env mrEnvelope
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxResponseSize)).Decode(&env); err != nil {
		return nil, parseError(op, fmt.Errorf("decode: %w", err))
	}
	if env.MRData == nil {
		return nil, parseError(op, errors.New("missing MRData"))
	}

	c.logger.Debug("upstream request completed",
		zap.String("op", op),
		zap.String("path", path),
		zap.Int("offset", offset),
		zap.Duration("duration", time.Since(start)),
	)
	return env.MRData, nil
}

func outcome(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, ErrNotFound):
		return "not_found"
	case errors.Is(err, ErrParse):
		return "parse_error"
	default:
		return "network_error"
	}
}

func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + "..."
}
