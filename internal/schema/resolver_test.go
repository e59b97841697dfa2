// internal/schema/resolver_test.go
package schema

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "library-assistant/internal/common/errors"
	"library-assistant/internal/common/logger"
)

type fakeProber struct {
	existing  map[string]bool
	transient map[string]bool
	probed    []string
}

func (p *fakeProber) Probe(_ context.Context, table string) error {
	p.probed = append(p.probed, table)
	if p.transient[table] {
		return apperrors.NewQueryTimeoutError(table)
	}
	if p.existing[table] {
		return nil
	}
	return apperrors.NewTableNotFoundError(table)
}

func TestResolvePinsFirstExistingCandidate(t *testing.T) {
	prober := &fakeProber{existing: map[string]bool{
		"catalog":      true,
		"members":      true,
		"transactions": true,
		"fines":        true,
		"reservations": true,
	}}

	resolved := Resolve(context.Background(), Default(), prober, logger.NewNoOpLogger())

	// "books" does not exist, so the second candidate wins.
	assert.Equal(t, "catalog", resolved.Table(EntityBooks))
	assert.Equal(t, "members", resolved.Table(EntityMembers))
	assert.Equal(t, "transactions", resolved.Table(EntityLoans))
}

func TestResolveFallsBackOnTransientFailure(t *testing.T) {
	prober := &fakeProber{
		existing:  map[string]bool{"members": true, "transactions": true, "fines": true, "reservations": true},
		transient: map[string]bool{"books": true},
	}

	resolved := Resolve(context.Background(), Default(), prober, logger.NewNoOpLogger())

	// A timeout on the first candidate pins it anyway instead of skipping.
	assert.Equal(t, "books", resolved.Table(EntityBooks))
}

func TestResolveNoCandidateExists(t *testing.T) {
	prober := &fakeProber{existing: map[string]bool{}}

	resolved := Resolve(context.Background(), Default(), prober, logger.NewNoOpLogger())

	// Every probe misses; the first candidate is still pinned so queries
	// have a deterministic target.
	assert.Equal(t, "books", resolved.Table(EntityBooks))
	assert.Equal(t, "transactions", resolved.Table(EntityLoans))
}

func TestStaticSkipsProbing(t *testing.T) {
	resolved := Static(Default())

	assert.Equal(t, "books", resolved.Table(EntityBooks))
	assert.Equal(t, "reservations", resolved.Table(EntityReservations))
}

func TestResolvedUnknownEntity(t *testing.T) {
	resolved := Static(Default())
	assert.Equal(t, "unknown_thing", resolved.Table(Entity("unknown_thing")))
}

func TestLoadMissingFileUsesDefault(t *testing.T) {
	m, err := Load(filepath.Join(t.TempDir(), "nope.json"))
	require.NoError(t, err)
	assert.Equal(t, Default().Entities[EntityBooks], m.Candidates(EntityBooks))
}

func TestLoadValidFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "mapping.json")
	content := `{
		"version": 2,
		"entities": {
			"books": ["book_inventory"]
		}
	}`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	m, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 2, m.Version)
	assert.Equal(t, []string{"book_inventory"}, m.Candidates(EntityBooks))
	// Entities not listed in the file keep defaults.
	assert.Equal(t, Default().Entities[EntityMembers], m.Candidates(EntityMembers))
}

func TestLoadRejectsInvalidMapping(t *testing.T) {
	cases := []struct {
		name    string
		content string
	}{
		{"missing version", `{"entities": {"books": ["books"]}}`},
		{"empty candidates", `{"version": 1, "entities": {"books": []}}`},
		{"wrong type", `{"version": "one", "entities": {}}`},
		{"not json", `{{{`},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "mapping.json")
			require.NoError(t, os.WriteFile(path, []byte(tc.content), 0o644))

			_, err := Load(path)
			require.Error(t, err)
			assert.Equal(t, apperrors.ErrCodeSchemaMappingInvalid, apperrors.CodeOf(err))
		})
	}
}
