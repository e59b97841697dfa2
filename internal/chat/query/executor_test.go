// internal/chat/query/executor_test.go
package query

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redismock/v9"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"library-assistant/internal/common/database"
	apperrors "library-assistant/internal/common/errors"
	"library-assistant/internal/common/logger"
	"library-assistant/internal/models"
	"library-assistant/internal/schema"
)

type fakeStore struct {
	selectFn func(table string, spec models.FilterSpec) ([]models.Record, error)
	calls    int
}

func (s *fakeStore) Select(_ context.Context, table string, spec models.FilterSpec, _ int) ([]models.Record, error) {
	s.calls++
	if s.selectFn == nil {
		return nil, nil
	}
	return s.selectFn(table, spec)
}

func (s *fakeStore) Probe(context.Context, string) error { return nil }
func (s *fakeStore) Close() error                        { return nil }

func newExecutor(store Store, cache Cache, opts Options) *Executor {
	return NewExecutor(store, cache, schema.Static(schema.Default()), opts, logger.NewNoOpLogger())
}

func bookSpec(title string) models.FilterSpec {
	return models.FilterSpec{
		Table:      "books",
		Conditions: []models.Condition{{Column: "title", Op: models.OpILike, Value: title}},
		Limit:      models.DefaultLimit,
	}
}

func TestExecuteReturnsPrimaryRecords(t *testing.T) {
	store := &fakeStore{selectFn: func(table string, _ models.FilterSpec) ([]models.Record, error) {
		return []models.Record{{"title": "Dune"}}, nil
	}}
	e := newExecutor(store, nil, Options{})

	result := e.Execute(context.Background(), models.IntentGeneral, bookSpec("Dune"))

	require.Len(t, result.Primary, 1)
	assert.Equal(t, "Dune", result.Primary[0].GetString("title"))
}

func TestExecuteStoreErrorDegradesToEmpty(t *testing.T) {
	store := &fakeStore{selectFn: func(table string, _ models.FilterSpec) ([]models.Record, error) {
		return nil, apperrors.NewQueryTimeoutError(table)
	}}
	e := newExecutor(store, nil, Options{})

	result := e.Execute(context.Background(), models.IntentBookSearch, bookSpec("Dune"))

	assert.Empty(t, result.Primary)
	assert.Empty(t, result.Related)
}

func TestExecuteBookSearchAttachesLoansAndHolder(t *testing.T) {
	store := &fakeStore{selectFn: func(table string, spec models.FilterSpec) ([]models.Record, error) {
		switch table {
		case "books":
			return []models.Record{{"book_id": "12345", "title": "Dune"}}, nil
		case "transactions":
			// Open loan: no return_date.
			return []models.Record{{"transaction_id": "t1", "book_id": "12345", "member_id": "m9"}}, nil
		case "members":
			require.Equal(t, "member_id", spec.Conditions[0].Column)
			return []models.Record{{"member_id": "m9", "full_name": "Ada Lovelace"}}, nil
		}
		return nil, nil
	}}
	e := newExecutor(store, nil, Options{})

	result := e.Execute(context.Background(), models.IntentBookSearch, bookSpec("Dune"))

	require.Len(t, result.Primary, 1)
	require.Contains(t, result.Related, "loans:12345")
	require.Contains(t, result.Related, "member:m9")
	assert.Equal(t, "Ada Lovelace", result.Related["member:m9"][0].GetString("full_name"))
}

func TestExecuteReturnedLoanSkipsHolderLookup(t *testing.T) {
	memberQueries := 0
	store := &fakeStore{selectFn: func(table string, _ models.FilterSpec) ([]models.Record, error) {
		switch table {
		case "books":
			return []models.Record{{"book_id": "12345"}}, nil
		case "transactions":
			return []models.Record{{"book_id": "12345", "member_id": "m9", "return_date": "2024-01-11"}}, nil
		case "members":
			memberQueries++
		}
		return nil, nil
	}}
	e := newExecutor(store, nil, Options{})

	result := e.Execute(context.Background(), models.IntentAvailability, bookSpec("Dune"))

	assert.Contains(t, result.Related, "loans:12345")
	assert.Zero(t, memberQueries)
}

func TestExecuteMemberInfoAttachesActivity(t *testing.T) {
	store := &fakeStore{selectFn: func(table string, spec models.FilterSpec) ([]models.Record, error) {
		switch table {
		case "members":
			return []models.Record{{"member_id": "m1"}}, nil
		case "transactions":
			return []models.Record{{"transaction_id": "t1", "member_id": "m1"}}, nil
		case "reservations":
			return []models.Record{{"reservation_id": "r1", "member_id": "m1"}}, nil
		}
		return nil, nil
	}}
	e := newExecutor(store, nil, Options{})

	spec := models.FilterSpec{
		Table:      "members",
		Conditions: []models.Condition{{Column: "member_id", Op: models.OpEq, Value: "m1"}},
		Limit:      models.DefaultLimit,
	}
	result := e.Execute(context.Background(), models.IntentMemberInfo, spec)

	assert.Contains(t, result.Related, "loans:m1")
	assert.Contains(t, result.Related, "reservations:m1")
}

func TestExecuteRelatedLookupsAreBounded(t *testing.T) {
	loanQueries := 0
	store := &fakeStore{selectFn: func(table string, _ models.FilterSpec) ([]models.Record, error) {
		switch table {
		case "books":
			records := make([]models.Record, 10)
			for i := range records {
				records[i] = models.Record{"book_id": string(rune('a' + i))}
			}
			return records, nil
		case "transactions":
			loanQueries++
		}
		return nil, nil
	}}
	e := newExecutor(store, nil, Options{RelatedBooks: 3})

	e.Execute(context.Background(), models.IntentBookSearch, bookSpec("x"))

	assert.Equal(t, 3, loanQueries)
}

func TestExecuteCacheHitSkipsStore(t *testing.T) {
	mr := miniredis.RunT(t)
	cache := &database.RedisClient{Client: redis.NewClient(&redis.Options{Addr: mr.Addr()})}

	store := &fakeStore{selectFn: func(string, models.FilterSpec) ([]models.Record, error) {
		return []models.Record{{"title": "Dune"}}, nil
	}}
	e := newExecutor(store, cache, Options{CacheTTL: time.Minute})

	spec := bookSpec("Dune")
	first := e.Execute(context.Background(), models.IntentGeneral, spec)
	callsAfterFirst := store.calls

	second := e.Execute(context.Background(), models.IntentGeneral, spec)

	assert.Equal(t, callsAfterFirst, store.calls, "cache hit must not touch the store")
	assert.Equal(t, first.Primary, second.Primary)
}

func TestExecuteCacheFailureIsSilent(t *testing.T) {
	// No expectations registered: every cache command errors. The executor
	// must fall through to the store regardless.
	client, _ := redismock.NewClientMock()
	cache := &database.RedisClient{Client: client}

	store := &fakeStore{selectFn: func(string, models.FilterSpec) ([]models.Record, error) {
		return []models.Record{{"title": "Dune"}}, nil
	}}
	e := newExecutor(store, cache, Options{CacheTTL: time.Minute})

	result := e.Execute(context.Background(), models.IntentGeneral, bookSpec("Dune"))

	require.Len(t, result.Primary, 1)
}

func TestExecuteStoreErrorResultNotCached(t *testing.T) {
	mr := miniredis.RunT(t)
	cache := &database.RedisClient{Client: redis.NewClient(&redis.Options{Addr: mr.Addr()})}

	healthy := false
	store := &fakeStore{selectFn: func(table string, _ models.FilterSpec) ([]models.Record, error) {
		if !healthy {
			return nil, apperrors.NewQueryTimeoutError(table)
		}
		return []models.Record{{"title": "Dune"}}, nil
	}}
	e := newExecutor(store, cache, Options{CacheTTL: time.Minute})

	spec := bookSpec("Dune")
	first := e.Execute(context.Background(), models.IntentGeneral, spec)
	assert.Empty(t, first.Primary)

	// Store back up: the degraded turn must not have been cached, so the
	// same query now hits the store and sees the records.
	healthy = true
	second := e.Execute(context.Background(), models.IntentGeneral, spec)
	require.Len(t, second.Primary, 1)
	assert.Equal(t, "Dune", second.Primary[0].GetString("title"))
}

func TestExecuteRelatedLookupErrorNotCached(t *testing.T) {
	mr := miniredis.RunT(t)
	cache := &database.RedisClient{Client: redis.NewClient(&redis.Options{Addr: mr.Addr()})}

	loansHealthy := false
	store := &fakeStore{selectFn: func(table string, _ models.FilterSpec) ([]models.Record, error) {
		switch table {
		case "books":
			return []models.Record{{"book_id": "12345", "title": "Dune"}}, nil
		case "transactions":
			if !loansHealthy {
				return nil, apperrors.NewQueryTimeoutError(table)
			}
			return []models.Record{{"book_id": "12345", "member_id": "m9", "return_date": "2024-01-11"}}, nil
		}
		return nil, nil
	}}
	e := newExecutor(store, cache, Options{CacheTTL: time.Minute})

	spec := bookSpec("Dune")
	first := e.Execute(context.Background(), models.IntentBookSearch, spec)
	assert.NotContains(t, first.Related, "loans:12345")

	// A failure in the enrichment pass alone also keeps the result out of
	// the cache.
	loansHealthy = true
	second := e.Execute(context.Background(), models.IntentBookSearch, spec)
	assert.Contains(t, second.Related, "loans:12345")
}

func TestExecuteNilCache(t *testing.T) {
	store := &fakeStore{}
	e := newExecutor(store, nil, Options{CacheTTL: time.Minute})

	assert.NotPanics(t, func() {
		e.Execute(context.Background(), models.IntentGeneral, bookSpec("Dune"))
	})
}
