package f1data

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"apex-dashboard/internal/cache"
	"apex-dashboard/internal/jolpica"
	"apex-dashboard/internal/realtime"
	"apex-dashboard/pkg/logging"
)

// source prefixes every cache key written by this package.
const source = "jolpica"

// ErrInvalidInput is returned for arguments the accessors reject before
// touching the cache or the network.
var ErrInvalidInput = errors.New("invalid input")

// Publisher receives fetch notifications. *realtime.Hub implements it.
type Publisher interface {
	Publish(ctx context.Context, eventType string, data any)
}

type nopPublisher struct{}

func (nopPublisher) Publish(context.Context, string, any) {}

// Service is the accessor layer: every method checks the cache, fetches on
// a miss and stores successful results. Failures are returned and never
// cached. Concurrent misses for the same key share one upstream fetch.
type Service struct {
	cache     cache.Cache
	client    jolpica.Client
	events    Publisher
	group     singleflight.Group
	fanOut    int
	minSeason int
	maxSeason int
}

type Option func(*Service)

// WithPublisher sets where fetch events go.
func WithPublisher(p Publisher) Option {
	return func(s *Service) {
		if p != nil {
			s.events = p
		}
	}
}

// WithFanOut bounds concurrent upstream calls made by a single comparison.
func WithFanOut(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.fanOut = n
		}
	}
}

// WithSeasonRange bounds the seasons accepted by the accessors.
func WithSeasonRange(minSeason, maxSeason int) Option {
	return func(s *Service) {
		s.minSeason, s.maxSeason = minSeason, maxSeason
	}
}

func NewService(c cache.Cache, client jolpica.Client, opts ...Option) *Service {
	s := &Service{
		cache:     c,
		client:    client,
		events:    nopPublisher{},
		fanOut:    4,
		minSeason: 1950,
		maxSeason: 2100,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// load is the read-through path shared by every accessor.
func load[T any](ctx context.Context, s *Service, key string, fetch func(ctx context.Context) (T, error)) (T, error) {
	if v, ok := cache.GetJSON[T](ctx, s.cache, key); ok {
		return v, nil
	}

	ch := s.group.DoChan(key, func() (any, error) {
		// The flight outlives any single caller; the client bounds it with
		// its own per-request timeout.
		fctx := context.WithoutCancel(ctx)

		// Another flight may have filled the key since our miss.
		if v, ok := cache.GetJSON[T](fctx, s.cache, key); ok {
			return v, nil
		}

		v, err := fetch(fctx)
		if err != nil {
			logging.L(fctx).Warn("fetch failed", zap.String("cache_key", key), zap.Error(err))
			s.events.Publish(fctx, realtime.EventFetchFailed, map[string]string{
				"key":   key,
				"error": errorCode(err),
			})
			return nil, err
		}

		cache.SetJSON(fctx, s.cache, key, v)
		s.events.Publish(fctx, realtime.EventFetchCompleted, map[string]string{"key": key})
		return v, nil
	})

	var zero T
	select {
	case <-ctx.Done():
		return zero, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return zero, res.Err
		}
		v, _ := res.Val.(T)
		return v, nil
	}
}

// errorCode names the failure class for event consumers.
func errorCode(err error) string {
	switch {
	case errors.Is(err, jolpica.ErrNotFound):
		return "not_found"
	case errors.Is(err, jolpica.ErrParse):
		return "parse_error"
	case errors.Is(err, jolpica.ErrNetwork):
		return "network_error"
	default:
		return "error"
	}
}

func (s *Service) checkSeason(year int) error {
	if year < s.minSeason || year > s.maxSeason {
		return fmt.Errorf("%w: season %d outside %d-%d", ErrInvalidInput, year, s.minSeason, s.maxSeason)
	}
	return nil
}

func checkID(kind, id string) error {
	if strings.TrimSpace(id) == "" {
		return fmt.Errorf("%w: %s id is required", ErrInvalidInput, kind)
	}
	return nil
}

// Schedule returns the season calendar.
func (s *Service) Schedule(ctx context.Context, year int) ([]jolpica.Race, error) {
	if err := s.checkSeason(year); err != nil {
		return nil, err
	}
	return load(ctx, s, cache.BuildKey(source, "schedule", year), func(ctx context.Context) ([]jolpica.Race, error) {
		return s.client.Schedule(ctx, year)
	})
}

// ResolveRound turns a round number or a race name into a round number.
// Names match the race name with or without "Grand Prix", the country,
// the locality or the circuit, case-insensitively.
func (s *Service) ResolveRound(ctx context.Context, year int, race string) (int, error) {
	race = strings.TrimSpace(race)
	if race == "" {
		return 0, fmt.Errorf("%w: race is required", ErrInvalidInput)
	}
	if round, err := strconv.Atoi(race); err == nil {
		if round < 1 {
			return 0, fmt.Errorf("%w: round must be positive", ErrInvalidInput)
		}
		return round, nil
	}

	schedule, err := s.Schedule(ctx, year)
	if err != nil {
		return 0, err
	}
	if round, ok := matchRace(schedule, race); ok {
		return round, nil
	}
	return 0, &jolpica.Error{
		Kind: jolpica.ErrNotFound,
		Op:   "resolve_race",
		Err:  fmt.Errorf("no race matching %q in %d", race, year),
	}
}

func matchRace(schedule []jolpica.Race, name string) (int, bool) {
	want := normalizeName(name)
	for _, r := range schedule {
		candidates := []string{
			r.Name,
			strings.TrimSuffix(r.Name, " Grand Prix"),
			r.Circuit.Country,
			r.Circuit.Locality,
			r.Circuit.Name,
			r.Circuit.ID,
		}
		for _, c := range candidates {
			if c != "" && normalizeName(c) == want {
				return r.Round, true
			}
		}
	}
	return 0, false
}

func normalizeName(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	return strings.NewReplacer("_", " ", "-", " ").Replace(s)
}

// RaceResults returns the classification of one race. race is a round
// number or a name; both share one cache entry per round.
func (s *Service) RaceResults(ctx context.Context, year int, race string) (*jolpica.Race, error) {
	if err := s.checkSeason(year); err != nil {
		return nil, err
	}
	round, err := s.ResolveRound(ctx, year, race)
	if err != nil {
		return nil, err
	}
	return load(ctx, s, cache.BuildKey(source, "race_results", year, round), func(ctx context.Context) (*jolpica.Race, error) {
		return s.client.RaceResults(ctx, year, round)
	})
}

// Qualifying returns the qualifying classification of one race.
func (s *Service) Qualifying(ctx context.Context, year int, race string) (*jolpica.Race, error) {
	if err := s.checkSeason(year); err != nil {
		return nil, err
	}
	round, err := s.ResolveRound(ctx, year, race)
	if err != nil {
		return nil, err
	}
	return load(ctx, s, cache.BuildKey(source, "qualifying", year, round), func(ctx context.Context) (*jolpica.Race, error) {
		return s.client.Qualifying(ctx, year, round)
	})
}

// DriverStandings returns the championship after round, or the final table
// when round is nil.
func (s *Service) DriverStandings(ctx context.Context, year int, round *int) (*jolpica.DriverStandings, error) {
	if err := s.checkSeason(year); err != nil {
		return nil, err
	}
	return load(ctx, s, cache.BuildKey(source, "driver_standings", year, round), func(ctx context.Context) (*jolpica.DriverStandings, error) {
		return s.client.DriverStandings(ctx, year, round)
	})
}

func (s *Service) ConstructorStandings(ctx context.Context, year int, round *int) (*jolpica.ConstructorStandings, error) {
	if err := s.checkSeason(year); err != nil {
		return nil, err
	}
	return load(ctx, s, cache.BuildKey(source, "constructor_standings", year, round), func(ctx context.Context) (*jolpica.ConstructorStandings, error) {
		return s.client.ConstructorStandings(ctx, year, round)
	})
}

func (s *Service) DriverProfile(ctx context.Context, driverID string) (*jolpica.Driver, error) {
	if err := checkID("driver", driverID); err != nil {
		return nil, err
	}
	return load(ctx, s, cache.BuildKey(source, "driver_profile", driverID), func(ctx context.Context) (*jolpica.Driver, error) {
		return s.client.Driver(ctx, driverID)
	})
}

// DriverCareer aggregates championships, wins, podiums, poles, fastest
// laps, points, retirements, starts and seasons over a whole career.
func (s *Service) DriverCareer(ctx context.Context, driverID string) (*CareerStats, error) {
	if err := checkID("driver", driverID); err != nil {
		return nil, err
	}
	return load(ctx, s, cache.BuildKey(source, "driver_career", driverID), func(ctx context.Context) (*CareerStats, error) {
		var (
			history []jolpica.SeasonStanding
			races   []jolpica.Race
		)
		g, gctx := errgroup.WithContext(ctx)
		g.Go(func() error {
			var err error
			history, err = s.client.DriverStandingsHistory(gctx, driverID)
			return err
		})
		g.Go(func() error {
			var err error
			races, err = s.client.DriverResults(gctx, driverID, nil)
			return err
		})
		if err := g.Wait(); err != nil {
			return nil, err
		}
		stats := careerStats(driverID, history, races)
		return &stats, nil
	})
}

// DriverSeasonResults returns the driver's result in every race of a season.
func (s *Service) DriverSeasonResults(ctx context.Context, driverID string, year int) ([]SeasonResult, error) {
	if err := checkID("driver", driverID); err != nil {
		return nil, err
	}
	if err := s.checkSeason(year); err != nil {
		return nil, err
	}
	return load(ctx, s, cache.BuildKey(source, "driver_season_results", driverID, year), func(ctx context.Context) ([]SeasonResult, error) {
		races, err := s.client.DriverResults(ctx, driverID, &year)
		if err != nil {
			return nil, err
		}
		return seasonResults(races), nil
	})
}

func (s *Service) ConstructorProfile(ctx context.Context, constructorID string) (*jolpica.Constructor, error) {
	if err := checkID("constructor", constructorID); err != nil {
		return nil, err
	}
	return load(ctx, s, cache.BuildKey(source, "constructor_profile", constructorID), func(ctx context.Context) (*jolpica.Constructor, error) {
		return s.client.Constructor(ctx, constructorID)
	})
}

// ConstructorSeason sums the team's points, wins and podiums per round.
func (s *Service) ConstructorSeason(ctx context.Context, year int, constructorID string) ([]ConstructorRound, error) {
	if err := checkID("constructor", constructorID); err != nil {
		return nil, err
	}
	if err := s.checkSeason(year); err != nil {
		return nil, err
	}
	return load(ctx, s, cache.BuildKey(source, "constructor_season", year, constructorID), func(ctx context.Context) ([]ConstructorRound, error) {
		races, err := s.client.ConstructorResults(ctx, year, constructorID)
		if err != nil {
			return nil, err
		}
		return constructorRounds(races), nil
	})
}

// CompareDrivers summarizes each driver's season. Lookups run concurrently,
// bounded by the service's fan-out; the first failure cancels the rest.
// Results keep the order of driverIDs.
func (s *Service) CompareDrivers(ctx context.Context, year int, driverIDs ...string) ([]DriverComparison, error) {
	if err := s.checkSeason(year); err != nil {
		return nil, err
	}
	ids := dedupe(driverIDs)
	if len(ids) < 2 {
		return nil, fmt.Errorf("%w: at least two distinct drivers are required", ErrInvalidInput)
	}

	out := make([]DriverComparison, len(ids))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.fanOut)
	for i, id := range ids {
		i, id := i, id
		g.Go(func() error {
			profile, err := s.DriverProfile(gctx, id)
			if err != nil {
				return err
			}
			results, err := s.DriverSeasonResults(gctx, id, year)
			if err != nil {
				return err
			}
			out[i] = compareSeason(*profile, results)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

func dedupe(ids []string) []string {
	seen := make(map[string]struct{}, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		id = strings.ToLower(strings.TrimSpace(id))
		if id == "" {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
