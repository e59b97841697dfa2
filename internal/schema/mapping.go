// Package schema maps logical entities (books, members, loans, fines,
// reservations) onto concrete remote table names. The hosted database's
// schema is not statically known, so each entity carries an ordered list of
// candidate table names; the resolver pins one table per entity at startup
// instead of probing on every request.
package schema

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/xeipuuv/gojsonschema"

	apperrors "library-assistant/internal/common/errors"
)

// Entity is a logical table the pipeline queries.
type Entity string

const (
	EntityBooks        Entity = "books"
	EntityMembers      Entity = "members"
	EntityLoans        Entity = "loans"
	EntityFines        Entity = "fines"
	EntityReservations Entity = "reservations"
)

// Mapping is the versioned entity-to-candidate-tables configuration.
type Mapping struct {
	Version  int                 `json:"version"`
	Entities map[Entity][]string `json:"entities"`
}

// mappingSchema validates the on-disk mapping file before use.
const mappingSchema = `{
  "type": "object",
  "required": ["version", "entities"],
  "properties": {
    "version": {"type": "integer", "minimum": 1},
    "entities": {
      "type": "object",
      "additionalProperties": {
        "type": "array",
        "items": {"type": "string", "minLength": 1},
        "minItems": 1
      }
    }
  }
}`

// Default returns the built-in mapping, matching the table names the hosted
// library databases have been seen to use.
func Default() *Mapping {
	return &Mapping{
		Version: 1,
		Entities: map[Entity][]string{
			EntityBooks:        {"books", "catalog", "library", "book_inventory"},
			EntityMembers:      {"members", "students", "users", "library_members"},
			EntityLoans:        {"transactions", "loans", "borrowed_books", "issues"},
			EntityFines:        {"fines", "fees", "accounts", "transactions"},
			EntityReservations: {"reservations"},
		},
	}
}

// Load reads and validates a mapping file. A missing path falls back to the
// built-in default; an invalid file is a startup error.
func Load(path string) (*Mapping, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Default(), nil
		}
		return nil, apperrors.NewSchemaMappingInvalidError(err.Error())
	}

	result, err := gojsonschema.Validate(
		gojsonschema.NewStringLoader(mappingSchema),
		gojsonschema.NewBytesLoader(data),
	)
	if err != nil {
		return nil, apperrors.NewSchemaMappingInvalidError(err.Error())
	}
	if !result.Valid() {
		return nil, apperrors.NewSchemaMappingInvalidError(formatSchemaErrors(result))
	}

	var m Mapping
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, apperrors.NewSchemaMappingInvalidError(err.Error())
	}

	// Entities absent from the file keep their default candidates.
	def := Default()
	for entity, candidates := range def.Entities {
		if _, ok := m.Entities[entity]; !ok {
			m.Entities[entity] = candidates
		}
	}

	return &m, nil
}

func formatSchemaErrors(result *gojsonschema.Result) string {
	msg := ""
	for i, desc := range result.Errors() {
		if i > 0 {
			msg += "; "
		}
		msg += desc.String()
	}
	return msg
}

// Candidates returns the ordered candidate tables for entity.
func (m *Mapping) Candidates(entity Entity) []string {
	if tables, ok := m.Entities[entity]; ok {
		return tables
	}
	return nil
}

func (m *Mapping) String() string {
	return fmt.Sprintf("schema mapping v%d (%d entities)", m.Version, len(m.Entities))
}
