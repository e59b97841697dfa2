// internal/chat/classify/patterns.go
package classify

import (
	"regexp"

	"library-assistant/internal/models"
)

// intentPattern pairs an intent with the regexes that vote for it. Intents
// are checked in slice order; the first pattern that matches the lowercased
// query decides the intent.
type intentPattern struct {
	intent   models.Intent
	patterns []*regexp.Regexp
}

var intentPatterns = []intentPattern{
	{
		intent: models.IntentBookSearch,
		patterns: compileAll(
			`(find|search|show|get).*books?.*(by|author).*`,
			`books?.*(title|called|named).*`,
			`(show|find).*book.*id.*`,
			`isbn.*\d+`,
			`(i want|need|looking for).*(book|title).*`,
			`(do you have|is there).*(book|title).*`,
		),
	},
	{
		intent: models.IntentAvailability,
		patterns: compileAll(
			`(is|are).*available\??`,
			`(how many|available).*copies.*`,
			`(in stock|available).*`,
			`(i want|need|can i get).*`,
		),
	},
	{
		intent: models.IntentMemberInfo,
		patterns: compileAll(
			`(member|user).*info.*`,
			`show.*member.*`,
			`member.*id.*`,
			`.*@.*\.com.*`,
		),
	},
	{
		intent: models.IntentTransactions,
		patterns: compileAll(
			`(who|which member).*(borrowed|has|issued).*`,
			`(borrowed|issued).*books?.*`,
			`transaction.*history.*`,
		),
	},
	{
		intent: models.IntentFinesOverdue,
		patterns: compileAll(
			`(fine|fees?).*`,
			`overdue.*books?.*`,
			`late.*returns?.*`,
			`outstanding.*amount.*`,
		),
	},
	{
		intent: models.IntentReservations,
		patterns: compileAll(
			`reserv.*`,
			`(hold|book.*hold).*`,
			`waiting.*list.*`,
		),
	},
}

// Extraction patterns.
var (
	quotedTitleRe = regexp.MustCompile(`["']([^"']+)["']`)
	authorRe      = regexp.MustCompile(`by\s+([a-z][a-z\s.]*)`)
	isbnRe        = regexp.MustCompile(`isbn\s*:?\s*(\d+)`)
	emailRe       = regexp.MustCompile(`\b[A-Za-z0-9._%+-]+@[A-Za-z0-9.-]+\.[A-Za-z]{2,}\b`)
	uuidTokenRe   = regexp.MustCompile(`[a-f0-9]{8}-[a-f0-9]{4}-[a-f0-9]{4}-[a-f0-9]{4}-[a-f0-9]{12}`)
	numericIDRe   = regexp.MustCompile(`\b(\d{3,})\b`)

	// Heuristic title patterns, tried only when no quoted title matched.
	titlePatterns = compileAll(
		`(?i:want|need|looking for|find|get|show).*?((?:[A-Z][a-z]+\s*){2,})`,
		`(?i)(?:book|title)\s+(?:called|named)?\s*["']?([^"']+)["']?`,
		`(?i)(Harry Potter[^,.\n]*)`,
		`(The [A-Z][a-z]+(?:\s+[A-Z][a-z]+)*)`,
		`([A-Z][a-z]+(?:\s+and\s+the\s+[A-Z][a-z]+)*)`,
	)

	titleLeadingNoiseRe = regexp.MustCompile(`(?i)^(want|need|this|book|title)\s+`)
)

// stopWords are dropped when deriving general search terms.
var stopWords = map[string]bool{
	"the": true, "and": true, "or": true, "but": true,
	"show": true, "find": true, "get": true,
	"book": true, "books": true,
	"want": true, "need": true,
	"this": true, "that": true, "have": true,
}

func compileAll(exprs ...string) []*regexp.Regexp {
	out := make([]*regexp.Regexp, len(exprs))
	for i, e := range exprs {
		out[i] = regexp.MustCompile(e)
	}
	return out
}
