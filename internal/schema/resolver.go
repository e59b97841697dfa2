// internal/schema/resolver.go
package schema

import (
	"context"

	apperrors "library-assistant/internal/common/errors"
	"library-assistant/internal/common/logger"
)

// Prober checks whether a table exists in the remote store.
type Prober interface {
	Probe(ctx context.Context, table string) error
}

// Resolved holds the table pinned for each entity. Built once at startup;
// read-only afterwards, safe to share.
type Resolved struct {
	tables map[Entity]string
}

// Resolve probes each entity's candidates in order and pins the first table
// that exists. A missing table moves on to the next candidate; a transient
// probe failure pins the first candidate rather than leaving the entity
// unresolved, so a flaky startup degrades to the common-case table name.
func Resolve(ctx context.Context, m *Mapping, prober Prober, log logger.Logger) *Resolved {
	r := &Resolved{tables: make(map[Entity]string, len(m.Entities))}

	for entity, candidates := range m.Entities {
		r.tables[entity] = pickTable(ctx, entity, candidates, prober, log)
	}
	return r
}

func pickTable(ctx context.Context, entity Entity, candidates []string, prober Prober, log logger.Logger) string {
	for _, table := range candidates {
		err := prober.Probe(ctx, table)
		if err == nil {
			log.Info("schema: pinned table", map[string]interface{}{
				"entity": string(entity),
				"table":  table,
			})
			return table
		}
		if apperrors.CodeOf(err) == apperrors.ErrCodeTableNotFound {
			continue
		}
		log.Warn("schema: probe failed, falling back to first candidate", map[string]interface{}{
			"entity": string(entity),
			"table":  table,
			"error":  err.Error(),
		})
		return candidates[0]
	}

	log.Warn("schema: no candidate table found", map[string]interface{}{
		"entity": string(entity),
	})
	return candidates[0]
}

// Table returns the pinned table for entity. Falls back to the entity name
// itself for entities outside the mapping.
func (r *Resolved) Table(entity Entity) string {
	if t, ok := r.tables[entity]; ok {
		return t
	}
	return string(entity)
}

// Static builds a Resolved that pins each entity's first candidate without
// probing, for configurations that disable startup probing.
func Static(m *Mapping) *Resolved {
	r := &Resolved{tables: make(map[Entity]string, len(m.Entities))}
	for entity, candidates := range m.Entities {
		if len(candidates) > 0 {
			r.tables[entity] = candidates[0]
		}
	}
	return r
}
