// Package filter turns (intent, extracted fields) into a FilterSpec: one
// table plus either a bounded select-all or a set of OR-combined column
// predicates. The mapping is a fixed lookup with per-intent field
// precedence; unknown combinations degrade to a bounded select-all on the
// books table. Build never fails.
package filter

import (
	"library-assistant/internal/models"
	"library-assistant/internal/schema"
)

// Builder resolves entity names through the pinned schema mapping. It holds
// no mutable state; Build is deterministic for a given input.
type Builder struct {
	tables *schema.Resolved
}

func NewBuilder(tables *schema.Resolved) *Builder {
	return &Builder{tables: tables}
}

// Build maps the classified intent and extracted fields onto a FilterSpec.
// Field precedence is fixed per intent; for book_search it is
// title > author > isbn > id > general.
func (b *Builder) Build(intent models.Intent, fields models.ExtractedFields) models.FilterSpec {
	switch intent {
	case models.IntentBookSearch:
		return b.buildBookSearch(fields)
	case models.IntentAvailability:
		return b.buildAvailability(fields)
	case models.IntentMemberInfo:
		return b.buildMemberInfo(fields)
	case models.IntentTransactions:
		return b.buildTransactions(fields)
	case models.IntentFinesOverdue:
		return b.buildFinesOverdue()
	case models.IntentReservations:
		return b.buildReservations(fields)
	default:
		return b.defaultSpec()
	}
}

func (b *Builder) buildBookSearch(fields models.ExtractedFields) models.FilterSpec {
	table := b.tables.Table(schema.EntityBooks)

	if v, ok := fields[models.FieldTitle]; ok {
		return oneCondition(table, "title", models.OpILike, v)
	}
	if v, ok := fields[models.FieldAuthor]; ok {
		return oneCondition(table, "author", models.OpILike, v)
	}
	if v, ok := fields[models.FieldISBN]; ok {
		return oneCondition(table, "isbn", models.OpEq, v)
	}
	if v, ok := fields[models.FieldID]; ok {
		return oneCondition(table, "book_id", models.OpEq, v)
	}
	if v, ok := fields[models.FieldGeneral]; ok {
		return models.FilterSpec{
			Table: table,
			Conditions: []models.Condition{
				{Column: "title", Op: models.OpILike, Value: v},
				{Column: "author", Op: models.OpILike, Value: v},
				{Column: "genre", Op: models.OpILike, Value: v},
			},
			Limit: models.DefaultLimit,
		}
	}
	return b.defaultSpec()
}

func (b *Builder) buildAvailability(fields models.ExtractedFields) models.FilterSpec {
	table := b.tables.Table(schema.EntityBooks)

	if v, ok := fields[models.FieldTitle]; ok {
		return oneCondition(table, "title", models.OpILike, v)
	}
	if v, ok := fields[models.FieldAuthor]; ok {
		return oneCondition(table, "author", models.OpILike, v)
	}
	if v, ok := fields[models.FieldID]; ok {
		return oneCondition(table, "book_id", models.OpEq, v)
	}
	if v, ok := fields[models.FieldGeneral]; ok {
		return models.FilterSpec{
			Table: table,
			Conditions: []models.Condition{
				{Column: "title", Op: models.OpILike, Value: v},
				{Column: "author", Op: models.OpILike, Value: v},
			},
			Limit: models.DefaultLimit,
		}
	}
	return b.defaultSpec()
}

func (b *Builder) buildMemberInfo(fields models.ExtractedFields) models.FilterSpec {
	table := b.tables.Table(schema.EntityMembers)

	if v, ok := fields[models.FieldEmail]; ok {
		return oneCondition(table, "email", models.OpEq, v)
	}
	if v, ok := fields[models.FieldID]; ok {
		return oneCondition(table, "member_id", models.OpEq, v)
	}
	if v, ok := fields[models.FieldGeneral]; ok {
		return models.FilterSpec{
			Table: table,
			Conditions: []models.Condition{
				{Column: "full_name", Op: models.OpILike, Value: v},
				{Column: "email", Op: models.OpILike, Value: v},
			},
			Limit: models.DefaultLimit,
		}
	}
	return b.defaultSpec()
}

func (b *Builder) buildTransactions(fields models.ExtractedFields) models.FilterSpec {
	table := b.tables.Table(schema.EntityLoans)

	if v, ok := fields[models.FieldISBN]; ok {
		return oneCondition(table, "isbn", models.OpEq, v)
	}
	if v, ok := fields[models.FieldID]; ok {
		// The id could name either side of the loan.
		return models.FilterSpec{
			Table: table,
			Conditions: []models.Condition{
				{Column: "book_id", Op: models.OpEq, Value: v},
				{Column: "member_id", Op: models.OpEq, Value: v},
			},
			Limit: models.DefaultLimit,
		}
	}
	// Title and author lookups resolve through the books table in the
	// executor's related-data pass; here a bounded select-all suffices.
	return models.FilterSpec{Table: table, All: true, Limit: models.DefaultLimit}
}

// buildFinesOverdue reads fines off the fines entity. Its candidate list
// ends in the transactions table, so on schemas without a dedicated fines
// table the probe resolves it to the same table the loans entity uses.
func (b *Builder) buildFinesOverdue() models.FilterSpec {
	return models.FilterSpec{
		Table: b.tables.Table(schema.EntityFines),
		Conditions: []models.Condition{
			{Column: "return_date", Op: models.OpIsNull},
			{Column: "fine", Op: models.OpGt, Value: "0"},
		},
		Limit: models.DefaultLimit,
	}
}

func (b *Builder) buildReservations(fields models.ExtractedFields) models.FilterSpec {
	table := b.tables.Table(schema.EntityReservations)

	if _, ok := fields[models.FieldTitle]; ok {
		return models.FilterSpec{Table: table, All: true, Limit: models.DefaultLimit}
	}
	if _, ok := fields[models.FieldGeneral]; ok {
		return models.FilterSpec{Table: table, All: true, Limit: models.DefaultLimit}
	}
	return oneCondition(table, "status", models.OpEq, "Pending")
}

func (b *Builder) defaultSpec() models.FilterSpec {
	return models.FilterSpec{
		Table: b.tables.Table(schema.EntityBooks),
		All:   true,
		Limit: models.DefaultLimit,
	}
}

func oneCondition(table, column string, op models.Operator, value string) models.FilterSpec {
	return models.FilterSpec{
		Table:      table,
		Conditions: []models.Condition{{Column: column, Op: op, Value: value}},
		Limit:      models.DefaultLimit,
	}
}
