package routing

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"edge-gateway/internal/cache"
	"edge-gateway/internal/common/errors"
	"edge-gateway/internal/models"
	"edge-gateway/internal/storage"
)

// staticFacts counts which client facts were read.
type staticFacts struct {
	ua, os, device, country, language string
	now                               time.Time
	reads                             map[string]int
}

func newFacts() *staticFacts {
	return &staticFacts{
		ua:       "Chrome",
		os:       "Android",
		device:   "Pixel",
		country:  "FR",
		language: "fr",
		now:      time.Date(2024, time.March, 15, 10, 0, 0, 0, time.UTC),
		reads:    map[string]int{},
	}
}

func (f *staticFacts) UserAgentFamily() string { f.reads["ua"]++; return f.ua }
func (f *staticFacts) OSFamily() string        { f.reads["os"]++; return f.os }
func (f *staticFacts) DeviceFamily() string    { f.reads["device"]++; return f.device }
func (f *staticFacts) Country() string         { f.reads["country"]++; return f.country }
func (f *staticFacts) Language() string        { return f.language }
func (f *staticFacts) Now() time.Time          { return f.now }

func TestEvaluate(t *testing.T) {
	e := NewEvaluator(WithRandom(func() int { return 42 }))

	tests := []struct {
		name string
		cond models.Condition
		want bool
	}{
		{"empty node never matches", models.Condition{}, false},
		{"country equals ignores case", models.Condition{Country: &models.StringPredicate{Equals: models.Str("fr")}}, true},
		{"country in", models.Condition{Country: &models.StringPredicate{In: []string{"DE", "fr"}}}, true},
		{"country mismatch", models.Condition{Country: &models.StringPredicate{Equals: models.Str("US")}}, false},
		{"predicate without comparison", models.Condition{Country: &models.StringPredicate{}}, false},
		{"ua starts with", models.Condition{UserAgent: &models.StringPredicate{StartsWith: models.Str("chr")}}, true},
		{"os ends with", models.Condition{OS: &models.StringPredicate{EndsWith: models.Str("OID")}}, true},
		{"random below", models.Condition{Random: &models.OrderedPredicate[int]{Less: models.Num(50)}}, true},
		{"random above", models.Condition{Random: &models.OrderedPredicate[int]{Greater: models.Num(50)}}, false},
		{"day of month", models.Condition{DayOfMonth: &models.OrderedPredicate[int]{Equals: models.Num(15)}}, true},
		{"friday", models.Condition{DayOfWeek: &models.OrderedPredicate[int]{In: []int{5, 6}}}, true},
		{"month range", models.Condition{Month: &models.OrderedPredicate[int]{Greater: models.Num(2), Less: models.Num(4)}}, true},
		{"date before", models.Condition{Date: &models.OrderedPredicate[string]{Less: models.Str("2024-04-01")}}, true},
		{
			"siblings default to and",
			models.Condition{
				Country:  &models.StringPredicate{Equals: models.Str("FR")},
				Language: &models.StringPredicate{Equals: models.Str("de")},
			},
			false,
		},
		{
			"siblings with or",
			models.Condition{
				Country:         &models.StringPredicate{Equals: models.Str("FR")},
				Language:        &models.StringPredicate{Equals: models.Str("de")},
				DefaultOperator: models.OperatorOr,
			},
			true,
		},
		{
			"and children",
			models.Condition{And: []models.Condition{
				{Country: &models.StringPredicate{Equals: models.Str("FR")}},
				{OS: &models.StringPredicate{Equals: models.Str("iOS")}},
			}},
			false,
		},
		{
			"or children",
			models.Condition{Or: []models.Condition{
				{Country: &models.StringPredicate{Equals: models.Str("US")}},
				{OS: &models.StringPredicate{Equals: models.Str("android")}},
			}},
			true,
		},
		{"expression", models.Condition{Expr: `country == "fr" && month == 3`}, true},
		{"expression false", models.Condition{Expr: `random > 50`}, false},
		{"invalid expression", models.Condition{Expr: `country ==`}, false},
		{"non boolean expression", models.Condition{Expr: `day_of_month + 1`}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, e.Evaluate(newFacts(), &tt.cond))
		})
	}

	assert.False(t, e.Evaluate(newFacts(), nil))
}

func TestEvaluate_RandomDrawsEveryTime(t *testing.T) {
	var n atomic.Int32
	e := NewEvaluator(WithRandom(func() int { return int(n.Add(1)) * 30 % 100 }))
	cond := &models.Condition{Random: &models.OrderedPredicate[int]{Less: models.Num(50)}}

	// Draws are 30, 60, 90, 20.
	got := []bool{}
	for i := 0; i < 4; i++ {
		got = append(got, e.Evaluate(newFacts(), cond))
	}
	assert.Equal(t, []bool{true, false, false, true}, got)
}

func TestFindFirstMatch(t *testing.T) {
	e := NewEvaluator()
	conditions := []models.ConditionalRoute{
		{Key: "A", Condition: models.Condition{Country: &models.StringPredicate{Equals: models.Str("US")}}},
		{Key: "B", Condition: models.Condition{Country: &models.StringPredicate{Equals: models.Str("FR")}}},
		{Key: "C", Condition: models.Condition{Country: &models.StringPredicate{Equals: models.Str("FR")}}},
	}

	facts := newFacts()
	key, ok := e.FindFirstMatch(facts, conditions)
	require.True(t, ok)
	assert.Equal(t, "B", key)
	assert.Zero(t, facts.reads["ua"]+facts.reads["os"]+facts.reads["device"])

	facts.country = "JP"
	_, ok = e.FindFirstMatch(facts, conditions)
	assert.False(t, ok)
}

func TestRequiredFacts(t *testing.T) {
	countryOnly := []models.ConditionalRoute{
		{Key: "B", Condition: models.Condition{Country: &models.StringPredicate{Equals: models.Str("FR")}}},
	}
	assert.Equal(t, FactLocation, RequiredFacts(countryOnly))
	assert.False(t, RequiredFacts(countryOnly).Has(FactUserAgent))

	nested := []models.ConditionalRoute{
		{Key: "A", Condition: models.Condition{Or: []models.Condition{
			{OS: &models.StringPredicate{Equals: models.Str("ios")}},
			{And: []models.Condition{{Device: &models.StringPredicate{Equals: models.Str("ipad")}}}},
		}}},
		{Key: "B", Condition: models.Condition{Language: &models.StringPredicate{Equals: models.Str("fr")}}},
	}
	assert.Equal(t, FactOS|FactDevice, RequiredFacts(nested))

	withExpr := []models.ConditionalRoute{{Key: "X", Condition: models.Condition{Expr: "true"}}}
	assert.Equal(t, FactAll, RequiredFacts(withExpr))

	assert.Equal(t, FactNone, RequiredFacts(nil))
}

// countingStore counts backend lookups.
type countingStore struct {
	mu     sync.Mutex
	routes map[string]*models.Route
	calls  map[string]int
	err    error
	delay  time.Duration
}

func newCountingStore() *countingStore {
	return &countingStore{routes: map[string]*models.Route{}, calls: map[string]int{}}
}

func (s *countingStore) GetRoute(_ context.Context, switchName, key string) (*models.Route, bool, error) {
	time.Sleep(s.delay)
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls[switchName+"/"+key]++
	if s.err != nil {
		return nil, false, s.err
	}
	r, ok := s.routes[switchName+"/"+key]
	return r, ok, nil
}

func (s *countingStore) callsFor(switchName, domain, path string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls[switchName+"/"+models.RouteKey(domain, path)]
}

var _ storage.RouteStore = (*countingStore)(nil)

func newTestManager(t *testing.T, store storage.RouteStore) *Manager {
	routes, err := cache.New[*models.Route](cache.Options{Capacity: 100, TTL: time.Minute})
	require.NoError(t, err)
	t.Cleanup(routes.Close)
	return NewManager(store, routes, nil)
}

func TestManager_NegativeCachingAndSingleFlight(t *testing.T) {
	store := newCountingStore()
	store.delay = 20 * time.Millisecond
	m := newTestManager(t, store)
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			assert.Nil(t, m.Get(ctx, "main", "missing.com", "/x"))
		}()
	}
	wg.Wait()
	assert.Equal(t, 1, store.callsFor("main", "missing.com", "/x"))

	assert.Nil(t, m.Get(ctx, "main", "missing.com", "/x"))
	assert.Equal(t, 1, store.callsFor("main", "missing.com", "/x"))

	_, err := m.Lookup(ctx, "main", "missing.com", "/x")
	assert.ErrorIs(t, err, ErrRouteNotFound)
}

func TestManager_KeyIsCaseInsensitive(t *testing.T) {
	store := newCountingStore()
	store.routes["main/"+models.RouteKey("example.com", "/go")] = &models.Route{Destination: models.Str("https://dest")}
	m := newTestManager(t, store)
	ctx := context.Background()

	route := m.Get(ctx, "main", "EXAMPLE.com", "/GO")
	require.NotNil(t, route)
	assert.Equal(t, "https://dest", route.DestinationURL())

	require.NotNil(t, m.Get(ctx, "main", "example.com", "/go"))
	assert.Equal(t, 1, store.callsFor("main", "example.com", "/go"))

	m.Invalidate("main", "example.com", "/go")
	require.NotNil(t, m.Get(ctx, "main", "example.com", "/go"))
	assert.Equal(t, 2, store.callsFor("main", "example.com", "/go"))
}

func TestManager_BackendErrorIsAMissAndNotCached(t *testing.T) {
	store := newCountingStore()
	store.err = errors.ConnectionError("down", fmt.Errorf("refused"))
	m := newTestManager(t, store)
	ctx := context.Background()

	assert.Nil(t, m.Get(ctx, "main", "example.com", "/"))
	_, err := m.Lookup(ctx, "main", "example.com", "/")
	assert.True(t, errors.IsType(err, errors.ErrTypeConnection))
	assert.Equal(t, 2, store.callsFor("main", "example.com", "/"))
}
