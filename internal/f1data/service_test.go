package f1data

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"apex-dashboard/internal/cache"
	"apex-dashboard/internal/jolpica"
	"apex-dashboard/internal/realtime"
)

type fakeClient struct {
	calls   sync.Map // op -> *atomic.Int32
	err     error
	gate    chan struct{}
	results map[int]*jolpica.Race
}

func (f *fakeClient) count(op string) int {
	v, ok := f.calls.Load(op)
	if !ok {
		return 0
	}
	return int(v.(*atomic.Int32).Load())
}

func (f *fakeClient) hit(op string) error {
	v, _ := f.calls.LoadOrStore(op, new(atomic.Int32))
	v.(*atomic.Int32).Add(1)
	if f.gate != nil {
		<-f.gate
	}
	return f.err
}

var schedule2024 = []jolpica.Race{
	{Season: 2024, Round: 1, Name: "Bahrain Grand Prix", Circuit: jolpica.Circuit{ID: "bahrain", Country: "Bahrain", Locality: "Sakhir"}},
	{Season: 2024, Round: 7, Name: "Emilia Romagna Grand Prix", Circuit: jolpica.Circuit{ID: "imola", Country: "Italy", Locality: "Imola"}},
	{Season: 2024, Round: 8, Name: "Monaco Grand Prix", Circuit: jolpica.Circuit{ID: "monaco", Country: "Monaco", Locality: "Monte-Carlo"}},
}

func (f *fakeClient) RaceResults(_ context.Context, year, round int) (*jolpica.Race, error) {
	if err := f.hit("race_results"); err != nil {
		return nil, err
	}
	if r, ok := f.results[round]; ok {
		return r, nil
	}
	return &jolpica.Race{Season: year, Round: round, Results: []jolpica.Result{{Position: 1}}}, nil
}

func (f *fakeClient) Qualifying(_ context.Context, year, round int) (*jolpica.Race, error) {
	if err := f.hit("qualifying"); err != nil {
		return nil, err
	}
	return &jolpica.Race{Season: year, Round: round, Qualifying: []jolpica.QualifyingResult{{Position: 1, Q3: "1:10.270"}}}, nil
}

func (f *fakeClient) DriverStandings(_ context.Context, year int, round *int) (*jolpica.DriverStandings, error) {
	if err := f.hit("driver_standings"); err != nil {
		return nil, err
	}
	r := 24
	if round != nil {
		r = *round
	}
	return &jolpica.DriverStandings{Season: year, Round: r, Standings: []jolpica.DriverStanding{{Position: 1, Points: 437}}}, nil
}

func (f *fakeClient) ConstructorStandings(_ context.Context, year int, round *int) (*jolpica.ConstructorStandings, error) {
	if err := f.hit("constructor_standings"); err != nil {
		return nil, err
	}
	return &jolpica.ConstructorStandings{Season: year, Standings: []jolpica.ConstructorStanding{{Position: 1, Points: 666}}}, nil
}

func (f *fakeClient) Schedule(_ context.Context, year int) ([]jolpica.Race, error) {
	if err := f.hit("schedule"); err != nil {
		return nil, err
	}
	return schedule2024, nil
}

func (f *fakeClient) Driver(_ context.Context, id string) (*jolpica.Driver, error) {
	if err := f.hit("driver"); err != nil {
		return nil, err
	}
	return &jolpica.Driver{ID: id, GivenName: "Test", FamilyName: id}, nil
}

func (f *fakeClient) Constructor(_ context.Context, id string) (*jolpica.Constructor, error) {
	if err := f.hit("constructor"); err != nil {
		return nil, err
	}
	return &jolpica.Constructor{ID: id, Name: "McLaren"}, nil
}

func (f *fakeClient) DriverStandingsHistory(_ context.Context, id string) ([]jolpica.SeasonStanding, error) {
	if err := f.hit("history"); err != nil {
		return nil, err
	}
	return []jolpica.SeasonStanding{
		{Season: 2008, Standing: jolpica.DriverStanding{Position: 1, Wins: 5, Points: 98}},
		{Season: 2007, Standing: jolpica.DriverStanding{Position: 2, Wins: 4, Points: 109}},
	}, nil
}

func (f *fakeClient) DriverResults(_ context.Context, id string, year *int) ([]jolpica.Race, error) {
	if err := f.hit("driver_results"); err != nil {
		return nil, err
	}
	return []jolpica.Race{
		{Round: 1, Name: "A", Results: []jolpica.Result{{Position: 1, Grid: 1, Points: 25, Status: "Finished", FastestLapRank: 1}}},
		{Round: 2, Name: "B", Results: []jolpica.Result{{Position: 3, Grid: 4, Points: 15, Status: "+1 Lap"}}},
		{Round: 3, Name: "C", Results: []jolpica.Result{{Position: 18, PositionText: "R", Grid: 2, Status: "Engine"}}},
	}, nil
}

func (f *fakeClient) ConstructorResults(_ context.Context, year int, id string) ([]jolpica.Race, error) {
	if err := f.hit("constructor_results"); err != nil {
		return nil, err
	}
	return []jolpica.Race{
		{Round: 1, Name: "A", Results: []jolpica.Result{{Position: 1, Points: 26}, {Position: 3, Points: 15}}},
		{Round: 2, Name: "B", Results: []jolpica.Result{{Position: 6, Points: 8}, {Position: 11}}},
	}, nil
}

func (f *fakeClient) Close() error { return nil }

type recordingPublisher struct {
	mu    sync.Mutex
	types []string
}

func (p *recordingPublisher) Publish(_ context.Context, eventType string, _ any) {
	p.mu.Lock()
	p.types = append(p.types, eventType)
	p.mu.Unlock()
}

func newService(t *testing.T, client *fakeClient, opts ...Option) (*Service, cache.Cache) {
	t.Helper()
	store, err := cache.NewStore(cache.Options{TTL: time.Hour, MaxMemoryItems: 50, Logger: zaptest.NewLogger(t)})
	require.NoError(t, err)
	return NewService(store, client, opts...), store
}

func TestRaceResults_CachesByRound(t *testing.T) {
	client := &fakeClient{}
	s, _ := newService(t, client)
	ctx := context.Background()

	byName, err := s.RaceResults(ctx, 2024, "Monaco")
	require.NoError(t, err)
	require.Equal(t, 8, byName.Round)

	byNumber, err := s.RaceResults(ctx, 2024, "8")
	require.NoError(t, err)
	require.Equal(t, byName.Round, byNumber.Round)

	require.Equal(t, 1, client.count("race_results"))
	require.Equal(t, 1, client.count("schedule"))
}

func TestResolveRound(t *testing.T) {
	s, _ := newService(t, &fakeClient{})
	ctx := context.Background()

	for name, want := range map[string]int{
		"Emilia Romagna":            7,
		"emilia-romagna grand prix": 7,
		"Imola":                     7,
		"Bahrain":                   1,
		"monaco":                    8,
		"3":                         3,
	} {
		got, err := s.ResolveRound(ctx, 2024, name)
		require.NoError(t, err, name)
		require.Equal(t, want, got, name)
	}

	_, err := s.ResolveRound(ctx, 2024, "Narnia")
	require.ErrorIs(t, err, jolpica.ErrNotFound)

	_, err = s.ResolveRound(ctx, 2024, "0")
	require.ErrorIs(t, err, ErrInvalidInput)
}

func TestErrorsAreNotCached(t *testing.T) {
	client := &fakeClient{err: &jolpica.Error{Kind: jolpica.ErrNetwork, Op: "driver"}}
	pub := &recordingPublisher{}
	s, _ := newService(t, client, WithPublisher(pub))
	ctx := context.Background()

	_, err := s.DriverProfile(ctx, "hamilton")
	require.ErrorIs(t, err, jolpica.ErrNetwork)

	client.err = nil
	d, err := s.DriverProfile(ctx, "hamilton")
	require.NoError(t, err)
	require.Equal(t, "hamilton", d.ID)
	require.Equal(t, 2, client.count("driver"))

	require.Equal(t, []string{realtime.EventFetchFailed, realtime.EventFetchCompleted}, pub.types)
}

func TestFailureKeepsPreviouslyCachedData(t *testing.T) {
	client := &fakeClient{}
	s, store := newService(t, client)
	ctx := context.Background()

	_, err := s.ConstructorProfile(ctx, "mclaren")
	require.NoError(t, err)

	client.err = &jolpica.Error{Kind: jolpica.ErrNetwork, Op: "constructor"}
	_, err = s.ConstructorProfile(ctx, "ferrari")
	require.Error(t, err)

	_, ok := store.Get(ctx, cache.BuildKey(source, "constructor_profile", "mclaren"))
	require.True(t, ok)
}

func TestConcurrentMissesShareOneFetch(t *testing.T) {
	client := &fakeClient{gate: make(chan struct{})}
	s, _ := newService(t, client)
	ctx := context.Background()

	const callers = 8
	var wg sync.WaitGroup
	errs := make(chan error, callers)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := s.ConstructorProfile(ctx, "mclaren")
			errs <- err
		}()
	}

	require.Eventually(t, func() bool { return client.count("constructor") == 1 }, time.Second, time.Millisecond)
	// Give the remaining callers time to join the flight.
	time.Sleep(20 * time.Millisecond)
	close(client.gate)
	wg.Wait()
	close(errs)

	for err := range errs {
		require.NoError(t, err)
	}
	require.Equal(t, 1, client.count("constructor"))
}

func TestCallerCancellationDoesNotFailFlight(t *testing.T) {
	client := &fakeClient{gate: make(chan struct{})}
	s, store := newService(t, client)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		_, err := s.Schedule(ctx, 2024)
		done <- err
	}()

	require.Eventually(t, func() bool { return client.count("schedule") == 1 }, time.Second, time.Millisecond)
	cancel()
	require.ErrorIs(t, <-done, context.Canceled)

	close(client.gate)
	require.Eventually(t, func() bool {
		_, ok := store.Get(context.Background(), cache.BuildKey(source, "schedule", 2024))
		return ok
	}, time.Second, 5*time.Millisecond)
}

func TestStandingsKeys(t *testing.T) {
	client := &fakeClient{}
	s, store := newService(t, client)
	ctx := context.Background()
	round := 5

	final, err := s.DriverStandings(ctx, 2023, nil)
	require.NoError(t, err)
	require.Equal(t, 24, final.Round)

	after5, err := s.DriverStandings(ctx, 2023, &round)
	require.NoError(t, err)
	require.Equal(t, 5, after5.Round)

	_, ok := store.Get(ctx, "jolpica:driver_standings:2023:final")
	require.True(t, ok)
	_, ok = store.Get(ctx, "jolpica:driver_standings:2023:5")
	require.True(t, ok)

	_, err = s.ConstructorStandings(ctx, 2023, nil)
	require.NoError(t, err)
	_, err = s.ConstructorStandings(ctx, 2023, nil)
	require.NoError(t, err)
	require.Equal(t, 1, client.count("constructor_standings"))
}

func TestDriverCareer(t *testing.T) {
	s, _ := newService(t, &fakeClient{})

	stats, err := s.DriverCareer(context.Background(), "hamilton")
	require.NoError(t, err)
	require.Equal(t, CareerStats{
		DriverID:      "hamilton",
		Championships: 1,
		Wins:          9,
		Podiums:       2,
		Poles:         1,
		FastestLaps:   1,
		Points:        207,
		DNFs:          1,
		Races:         3,
		Seasons:       2,
		Debut:         2007,
	}, *stats)
}

func TestDriverCareer_PartialFailureFails(t *testing.T) {
	client := &fakeClient{err: &jolpica.Error{Kind: jolpica.ErrParse, Op: "history"}}
	s, _ := newService(t, client)

	_, err := s.DriverCareer(context.Background(), "hamilton")
	require.ErrorIs(t, err, jolpica.ErrParse)
}

func TestConstructorSeason(t *testing.T) {
	s, _ := newService(t, &fakeClient{})

	rounds, err := s.ConstructorSeason(context.Background(), 2024, "mclaren")
	require.NoError(t, err)
	require.Equal(t, []ConstructorRound{
		{Round: 1, Race: "A", Points: 41, Wins: 1, Podiums: 2},
		{Round: 2, Race: "B", Points: 8},
	}, rounds)
}

func TestCompareDrivers(t *testing.T) {
	s, _ := newService(t, &fakeClient{}, WithFanOut(2))
	ctx := context.Background()

	cmp, err := s.CompareDrivers(ctx, 2024, "norris", "piastri", "NORRIS")
	require.NoError(t, err)
	require.Len(t, cmp, 2)
	require.Equal(t, "norris", cmp[0].DriverID)
	require.Equal(t, "piastri", cmp[1].DriverID)

	c := cmp[0]
	require.Equal(t, 3, c.Races)
	require.Equal(t, 1, c.Wins)
	require.Equal(t, 2, c.Podiums)
	require.Equal(t, 1, c.BestFinish)
	require.Equal(t, 1, c.DNFs)
	require.InDelta(t, 40.0, c.Points, 0.001)
	require.InDelta(t, 7.0/3.0, c.AverageGrid, 0.001)
	require.InDelta(t, 2.0, c.AverageFinish, 0.001)

	_, err = s.CompareDrivers(ctx, 2024, "norris")
	require.ErrorIs(t, err, ErrInvalidInput)
}

func TestInputValidation(t *testing.T) {
	s, _ := newService(t, &fakeClient{})
	ctx := context.Background()

	_, err := s.Schedule(ctx, 1900)
	require.ErrorIs(t, err, ErrInvalidInput)
	_, err = s.DriverProfile(ctx, "  ")
	require.ErrorIs(t, err, ErrInvalidInput)
	_, err = s.RaceResults(ctx, 2024, "")
	require.True(t, errors.Is(err, ErrInvalidInput))
}
