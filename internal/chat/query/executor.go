// Package query fetches records for a FilterSpec from the remote store and
// enriches them with related lookups (loans for books, holder records for
// loans, activity for members). Store failures never escape this package:
// every error path degrades to an empty result so the turn can proceed.
package query

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"time"

	apperrors "library-assistant/internal/common/errors"
	"library-assistant/internal/common/logger"
	"library-assistant/internal/common/metrics"
	"library-assistant/internal/models"
	"library-assistant/internal/schema"
)

// Store is the table-query boundary. Implementations exist for the Supabase
// REST surface and for direct Postgres.
type Store interface {
	Select(ctx context.Context, table string, spec models.FilterSpec, limit int) ([]models.Record, error)
	Probe(ctx context.Context, table string) error
	Close() error
}

// Cache is the optional result cache. database.RedisClient satisfies it.
type Cache interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) error
}

// Result is everything the renderer needs for one turn: the primary rows
// plus related rows keyed by "<kind>:<id>".
type Result struct {
	Primary []models.Record            `json:"primary"`
	Related map[string][]models.Record `json:"related,omitempty"`
}

// Options bound the enrichment pass and the cache lifetime.
type Options struct {
	RelatedBooks int           // books enriched with their loans
	RelatedLoans int           // loans/members enriched per record
	CacheTTL     time.Duration // zero disables caching even with a cache set
}

type Executor struct {
	store  Store
	cache  Cache
	tables *schema.Resolved
	opts   Options
	log    logger.Logger
}

// NewExecutor wires the executor. cache may be nil.
func NewExecutor(store Store, cache Cache, tables *schema.Resolved, opts Options, log logger.Logger) *Executor {
	if opts.RelatedBooks <= 0 {
		opts.RelatedBooks = 3
	}
	if opts.RelatedLoans <= 0 {
		opts.RelatedLoans = 2
	}
	return &Executor{store: store, cache: cache, tables: tables, opts: opts, log: log}
}

// pass is the state of one Execute call. A store error anywhere during the
// pass marks it degraded: the partial result is still served, but never
// cached, so a transient outage cannot keep answering from the cache after
// the store recovers.
type pass struct {
	*Executor
	degraded bool
}

// Execute runs the primary query and the intent-specific related lookups.
// It always returns a usable Result; an unreachable store yields an empty
// one.
func (e *Executor) Execute(ctx context.Context, intent models.Intent, spec models.FilterSpec) Result {
	key := cacheKey(intent, spec)
	if cached, ok := e.cacheGet(ctx, key); ok {
		return cached
	}

	p := &pass{Executor: e}
	result := Result{
		Primary: p.fetch(ctx, spec.Table, spec, spec.Limit),
		Related: map[string][]models.Record{},
	}

	switch intent {
	case models.IntentBookSearch, models.IntentAvailability:
		p.relateBooks(ctx, &result)
	case models.IntentTransactions, models.IntentFinesOverdue:
		p.relateLoans(ctx, &result)
	case models.IntentMemberInfo:
		p.relateMembers(ctx, &result)
	}

	if !p.degraded {
		e.cacheSet(ctx, key, result)
	}
	return result
}

// relateBooks attaches current loans to each book, and for open loans the
// holding member, so availability can be derived downstream.
func (p *pass) relateBooks(ctx context.Context, result *Result) {
	loansTable := p.tables.Table(schema.EntityLoans)

	for i, book := range result.Primary {
		if i >= p.opts.RelatedBooks {
			break
		}
		key := book.FirstString("book_id", "id", "isbn")
		if key == "" {
			continue
		}

		column := "book_id"
		if !book.Has("book_id") && !book.Has("id") && book.Has("isbn") {
			column = "isbn"
		}
		loans := p.fetchEq(ctx, loansTable, column, key)
		if len(loans) == 0 {
			continue
		}
		result.Related["loans:"+key] = loans

		for _, loan := range loans {
			if loan.Has("return_date") {
				continue
			}
			if member := p.lookupHolder(ctx, loan); member != nil {
				holderKey := loan.FirstString("member_id", "user_id")
				result.Related["member:"+holderKey] = []models.Record{member}
			}
		}
	}
}

// relateLoans attaches the book and the member behind each loan row.
func (p *pass) relateLoans(ctx context.Context, result *Result) {
	booksTable := p.tables.Table(schema.EntityBooks)

	for i, loan := range result.Primary {
		if i >= p.opts.RelatedBooks {
			break
		}
		if bookID := loan.FirstString("book_id"); bookID != "" {
			if books := p.fetchEq(ctx, booksTable, "book_id", bookID); len(books) > 0 {
				result.Related["book:"+bookID] = books
			}
		}
		if member := p.lookupHolder(ctx, loan); member != nil {
			holderKey := loan.FirstString("member_id", "user_id")
			result.Related["member:"+holderKey] = []models.Record{member}
		}
	}
}

// relateMembers attaches loans and reservations to each member.
func (p *pass) relateMembers(ctx context.Context, result *Result) {
	loansTable := p.tables.Table(schema.EntityLoans)
	reservationsTable := p.tables.Table(schema.EntityReservations)

	for i, member := range result.Primary {
		if i >= p.opts.RelatedLoans {
			break
		}
		memberID := member.FirstString("member_id", "user_id", "id")
		if memberID == "" {
			continue
		}
		if loans := p.fetchEq(ctx, loansTable, "member_id", memberID); len(loans) > 0 {
			result.Related["loans:"+memberID] = loans
		}
		if reservations := p.fetchEq(ctx, reservationsTable, "member_id", memberID); len(reservations) > 0 {
			result.Related["reservations:"+memberID] = reservations
		}
	}
}

// lookupHolder resolves the member behind a loan through the
// member_id/user_id fallback chain.
func (p *pass) lookupHolder(ctx context.Context, loan models.Record) models.Record {
	membersTable := p.tables.Table(schema.EntityMembers)

	if id := loan.FirstString("member_id"); id != "" {
		if members := p.fetchEq(ctx, membersTable, "member_id", id); len(members) > 0 {
			return members[0]
		}
	}
	if id := loan.FirstString("user_id"); id != "" {
		if members := p.fetchEq(ctx, membersTable, "user_id", id); len(members) > 0 {
			return members[0]
		}
	}
	return nil
}

// fetch is the single chokepoint to the store. Errors are logged and
// counted, never returned; they mark the pass degraded instead.
func (p *pass) fetch(ctx context.Context, table string, spec models.FilterSpec, limit int) []models.Record {
	if limit <= 0 {
		limit = models.DefaultLimit
	}
	records, err := p.store.Select(ctx, table, spec, limit)
	if err != nil {
		p.degraded = true
		metrics.StoreQueries.WithLabelValues(table, "error").Inc()
		metrics.RemoteErrors.WithLabelValues("query", string(apperrors.CodeOf(err))).Inc()
		p.log.Warn("store query failed, continuing with empty result", map[string]interface{}{
			"table": table,
			"error": err.Error(),
		})
		return []models.Record{}
	}

	outcome := "ok"
	if len(records) == 0 {
		outcome = "empty"
	}
	metrics.StoreQueries.WithLabelValues(table, outcome).Inc()
	return records
}

func (p *pass) fetchEq(ctx context.Context, table, column, value string) []models.Record {
	spec := models.FilterSpec{
		Table:      table,
		Conditions: []models.Condition{{Column: column, Op: models.OpEq, Value: value}},
		Limit:      models.DefaultLimit,
	}
	return p.fetch(ctx, table, spec, spec.Limit)
}

func (e *Executor) cacheGet(ctx context.Context, key string) (Result, bool) {
	if e.cache == nil || e.opts.CacheTTL <= 0 {
		return Result{}, false
	}
	raw, err := e.cache.Get(ctx, key)
	if err != nil || raw == "" {
		metrics.CacheHits.WithLabelValues("miss").Inc()
		return Result{}, false
	}
	var result Result
	if err := json.Unmarshal([]byte(raw), &result); err != nil {
		metrics.CacheHits.WithLabelValues("corrupt").Inc()
		return Result{}, false
	}
	metrics.CacheHits.WithLabelValues("hit").Inc()
	return result, true
}

func (e *Executor) cacheSet(ctx context.Context, key string, result Result) {
	if e.cache == nil || e.opts.CacheTTL <= 0 {
		return
	}
	payload, err := json.Marshal(result)
	if err != nil {
		return
	}
	if err := e.cache.Set(ctx, key, string(payload), e.opts.CacheTTL); err != nil {
		e.log.Debug("cache write failed", map[string]interface{}{"error": err.Error()})
	}
}

// cacheKey hashes the filter so arbitrary user text cannot produce
// unbounded key shapes.
func cacheKey(intent models.Intent, spec models.FilterSpec) string {
	payload, _ := json.Marshal(spec)
	sum := sha256.Sum256(payload)
	return fmt.Sprintf("assistant:query:%s:%s", intent, hex.EncodeToString(sum[:8]))
}
