// Package render flattens a query result into the plain-text context block
// handed to the language model. Missing fields render as "N/A"; derived
// values (availability, days issued) degrade to sentinels rather than
// failing the turn.
package render

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"library-assistant/internal/chat/query"
	"library-assistant/internal/models"
)

// DefaultRenderedLimit caps how many primary records appear in the context.
const DefaultRenderedLimit = 5

// Renderer builds context blocks. now is injectable for tests.
type Renderer struct {
	limit int
	now   func() time.Time
}

func NewRenderer(limit int) *Renderer {
	if limit <= 0 {
		limit = DefaultRenderedLimit
	}
	return &Renderer{limit: limit, now: time.Now}
}

// Render produces the context text for one turn. An empty result yields an
// explicit no-data line so the model does not hallucinate records.
func (r *Renderer) Render(intent models.Intent, result query.Result) string {
	if len(result.Primary) == 0 {
		return "No matching records were found in the library database."
	}

	var b strings.Builder
	records := result.Primary
	if len(records) > r.limit {
		records = records[:r.limit]
	}

	switch intent {
	case models.IntentBookSearch, models.IntentAvailability:
		r.renderBooks(&b, records, result)
	case models.IntentTransactions, models.IntentFinesOverdue:
		r.renderLoans(&b, records, result)
	case models.IntentMemberInfo:
		r.renderMembers(&b, records, result)
	default:
		r.renderGeneric(&b, records)
	}

	if len(result.Primary) > r.limit {
		fmt.Fprintf(&b, "(%d more records not shown)\n", len(result.Primary)-r.limit)
	}
	return strings.TrimRight(b.String(), "\n")
}

func (r *Renderer) renderBooks(b *strings.Builder, books []models.Record, result query.Result) {
	fmt.Fprintf(b, "Found %d book(s):\n", len(books))

	for _, book := range books {
		fmt.Fprintf(b, "- Title: %s | Author: %s | ISBN: %s | Genre: %s\n",
			book.GetString("title"), book.GetString("author"),
			book.GetString("isbn"), book.GetString("genre"))

		key := book.FirstString("book_id", "id", "isbn")
		status, holder, days := r.availability(key, result)
		line := "  Status: " + status
		if holder != "" {
			line += " (held by " + holder
			if days != "" {
				line += ", out for " + days + " day(s)"
			}
			line += ")"
		}
		b.WriteString(line + "\n")
	}
}

// availability derives the status of one book from its related loans: a
// loan with no return date means the book is out.
func (r *Renderer) availability(bookKey string, result query.Result) (status, holder, days string) {
	loans := result.Related["loans:"+bookKey]
	for _, loan := range loans {
		if loan.Has("return_date") {
			continue
		}
		holder = models.Placeholder
		if memberKey := loan.FirstString("member_id", "user_id"); memberKey != "" {
			if members := result.Related["member:"+memberKey]; len(members) > 0 {
				holder = members[0].FirstString("full_name", "name", "email")
				if holder == "" {
					holder = models.Placeholder
				}
			}
		}
		days = DaysIssued(loan.FirstString("issue_date", "issued_date", "borrow_date"), "", r.now())
		return "issued", holder, days
	}
	return "available", "", ""
}

func (r *Renderer) renderLoans(b *strings.Builder, loans []models.Record, result query.Result) {
	fmt.Fprintf(b, "Found %d loan record(s):\n", len(loans))

	for _, loan := range loans {
		title := models.Placeholder
		if bookID := loan.FirstString("book_id"); bookID != "" {
			if books := result.Related["book:"+bookID]; len(books) > 0 {
				title = books[0].GetString("title")
			}
		}

		borrower := models.Placeholder
		if memberKey := loan.FirstString("member_id", "user_id"); memberKey != "" {
			if members := result.Related["member:"+memberKey]; len(members) > 0 {
				borrower = orPlaceholder(members[0].FirstString("full_name", "name", "email"))
			}
		}

		issue := loan.FirstString("issue_date", "issued_date", "borrow_date")
		ret := loan.FirstString("return_date", "returned_date")
		days := DaysIssued(issue, ret, r.now())

		returned := "not returned"
		if ret != "" {
			returned = "returned " + ret
		}

		fmt.Fprintf(b, "- Book: %s | Borrower: %s | Issued: %s (%s day(s), %s) | Fine: %s\n",
			title, borrower, orPlaceholder(issue), days, returned, loan.GetString("fine"))
	}
}

func (r *Renderer) renderMembers(b *strings.Builder, members []models.Record, result query.Result) {
	fmt.Fprintf(b, "Found %d member(s):\n", len(members))

	for _, member := range members {
		fmt.Fprintf(b, "- Name: %s | Email: %s | Membership: %s\n",
			orPlaceholder(member.FirstString("full_name", "name")), member.GetString("email"),
			member.GetString("membership_type"))

		memberID := member.FirstString("member_id", "user_id", "id")
		if loans := result.Related["loans:"+memberID]; len(loans) > 0 {
			fmt.Fprintf(b, "  Loans: %d record(s)\n", len(loans))
			for _, loan := range loans {
				issue := loan.FirstString("issue_date", "issued_date", "borrow_date")
				ret := loan.FirstString("return_date", "returned_date")
				fmt.Fprintf(b, "    - Book %s, issued %s, out %s day(s), fine %s\n",
					loan.GetString("book_id"), orPlaceholder(issue),
					DaysIssued(issue, ret, r.now()), loan.GetString("fine"))
			}
		}
		if reservations := result.Related["reservations:"+memberID]; len(reservations) > 0 {
			fmt.Fprintf(b, "  Reservations: %d record(s)\n", len(reservations))
		}
	}
}

// renderGeneric emits sorted key/value lines for records of unknown shape.
func (r *Renderer) renderGeneric(b *strings.Builder, records []models.Record) {
	fmt.Fprintf(b, "Found %d record(s):\n", len(records))

	for _, record := range records {
		keys := make([]string, 0, len(record))
		for k := range record {
			keys = append(keys, k)
		}
		sort.Strings(keys)

		parts := make([]string, 0, len(keys))
		for _, k := range keys {
			parts = append(parts, k+": "+record.GetString(k))
		}
		b.WriteString("- " + strings.Join(parts, " | ") + "\n")
	}
}

func orPlaceholder(s string) string {
	if s == "" {
		return models.Placeholder
	}
	return s
}
