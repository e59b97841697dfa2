// internal/chat/render/context_test.go
package render

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"library-assistant/internal/chat/query"
	"library-assistant/internal/models"
)

func fixedNow() time.Time {
	return time.Date(2024, 1, 21, 12, 0, 0, 0, time.UTC)
}

func newTestRenderer(limit int) *Renderer {
	r := NewRenderer(limit)
	r.now = fixedNow
	return r
}

func TestRenderEmptyResult(t *testing.T) {
	out := newTestRenderer(5).Render(models.IntentBookSearch, query.Result{})
	assert.Equal(t, "No matching records were found in the library database.", out)
}

func TestRenderBookWithMissingFields(t *testing.T) {
	result := query.Result{
		Primary: []models.Record{{"title": "Dune"}},
	}

	out := newTestRenderer(5).Render(models.IntentBookSearch, result)

	assert.Contains(t, out, "Title: Dune")
	assert.Contains(t, out, "Author: N/A")
	assert.Contains(t, out, "ISBN: N/A")
	assert.Contains(t, out, "Status: available")
}

func TestRenderIssuedBookWithHolder(t *testing.T) {
	result := query.Result{
		Primary: []models.Record{{"book_id": "12345", "title": "Dune"}},
		Related: map[string][]models.Record{
			"loans:12345": {{"book_id": "12345", "member_id": "m9", "issue_date": "2024-01-01"}},
			"member:m9":   {{"member_id": "m9", "full_name": "Ada Lovelace"}},
		},
	}

	out := newTestRenderer(5).Render(models.IntentAvailability, result)

	assert.Contains(t, out, "Status: issued")
	assert.Contains(t, out, "held by Ada Lovelace")
	// fixed now is 2024-01-21: twenty days out
	assert.Contains(t, out, "out for 20 day(s)")
}

func TestRenderReturnedBookIsAvailable(t *testing.T) {
	result := query.Result{
		Primary: []models.Record{{"book_id": "12345", "title": "Dune"}},
		Related: map[string][]models.Record{
			"loans:12345": {{"book_id": "12345", "return_date": "2024-01-11"}},
		},
	}

	out := newTestRenderer(5).Render(models.IntentAvailability, result)

	assert.Contains(t, out, "Status: available")
}

func TestRenderLoanRow(t *testing.T) {
	result := query.Result{
		Primary: []models.Record{{
			"book_id": "b1", "member_id": "m1",
			"issue_date": "2024-01-01", "return_date": "2024-01-11",
			"fine": float64(0),
		}},
		Related: map[string][]models.Record{
			"book:b1":   {{"book_id": "b1", "title": "Dune"}},
			"member:m1": {{"member_id": "m1", "full_name": "Ada Lovelace"}},
		},
	}

	out := newTestRenderer(5).Render(models.IntentTransactions, result)

	assert.Contains(t, out, "Book: Dune")
	assert.Contains(t, out, "Borrower: Ada Lovelace")
	assert.Contains(t, out, "(10 day(s), returned 2024-01-11)")
}

func TestRenderCapsPrimaryRecords(t *testing.T) {
	records := make([]models.Record, 8)
	for i := range records {
		records[i] = models.Record{"title": "Book"}
	}

	out := newTestRenderer(5).Render(models.IntentBookSearch, query.Result{Primary: records})

	assert.Equal(t, 5, strings.Count(out, "- Title:"))
	assert.Contains(t, out, "(3 more records not shown)")
}

func TestRenderMemberWithActivity(t *testing.T) {
	result := query.Result{
		Primary: []models.Record{{"member_id": "m1", "full_name": "Ada Lovelace", "email": "ada@example.com"}},
		Related: map[string][]models.Record{
			"loans:m1":        {{"book_id": "b1", "issue_date": "2024-01-01"}},
			"reservations:m1": {{"reservation_id": "r1"}, {"reservation_id": "r2"}},
		},
	}

	out := newTestRenderer(5).Render(models.IntentMemberInfo, result)

	assert.Contains(t, out, "Name: Ada Lovelace")
	assert.Contains(t, out, "Loans: 1 record(s)")
	assert.Contains(t, out, "Reservations: 2 record(s)")
}

func TestRenderGenericSortsKeys(t *testing.T) {
	result := query.Result{
		Primary: []models.Record{{"zeta": "z", "alpha": "a"}},
	}

	out := newTestRenderer(5).Render(models.IntentGeneral, result)

	assert.Contains(t, out, "- alpha: a | zeta: z")
}

func TestDaysIssued(t *testing.T) {
	now := fixedNow()

	cases := []struct {
		name   string
		issue  string
		ret    string
		expect string
	}{
		{"returned after ten days", "2024-01-01", "2024-01-11", "10"},
		{"still out", "2024-01-01", "", "20"},
		{"rfc3339 timestamps", "2024-01-01T08:30:00Z", "2024-01-11T08:30:00Z", "10"},
		{"no zone", "2024-01-01T08:30:00", "2024-01-11T08:30:00", "10"},
		{"unparseable issue", "01/13/2024", "", UnknownDays},
		{"unparseable return", "2024-01-01", "next tuesday", UnknownDays},
		{"empty issue", "", "", UnknownDays},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.expect, DaysIssued(tc.issue, tc.ret, now))
		})
	}
}
