// internal/models/query_types.go
package models

// Intent is the classified purpose of a user query.
type Intent string

const (
	IntentBookSearch   Intent = "book_search"
	IntentAvailability Intent = "availability"
	IntentMemberInfo   Intent = "member_info"
	IntentTransactions Intent = "transactions"
	IntentFinesOverdue Intent = "fines_overdue"
	IntentReservations Intent = "reservations"
	IntentGeneral      Intent = "general"
)

// Field names produced by the extractor.
const (
	FieldTitle   = "title"
	FieldAuthor  = "author"
	FieldISBN    = "isbn"
	FieldEmail   = "email"
	FieldID      = "id"
	FieldGeneral = "general"
)

// ExtractedFields maps a field name to the extracted string.
// At most one value per field name per query; absent means no match.
type ExtractedFields map[string]string

// Operator is a single-column predicate operator understood by every Store.
type Operator string

const (
	OpEq     Operator = "eq"
	OpILike  Operator = "ilike"
	OpGt     Operator = "gt"
	OpIsNull Operator = "is.null"
)

// Condition is one column predicate. Conditions within a FilterSpec are
// OR-combined.
type Condition struct {
	Column string   `json:"column"`
	Op     Operator `json:"op"`
	Value  string   `json:"value,omitempty"`
}

// FilterSpec describes what to fetch: a table plus either a bounded
// select-all or a set of OR-combined conditions.
type FilterSpec struct {
	Table      string      `json:"table"`
	All        bool        `json:"all"`
	Conditions []Condition `json:"conditions,omitempty"`
	Limit      int         `json:"limit"`
}

// DefaultLimit bounds select-all queries.
const DefaultLimit = 10
