// internal/chat/classify/extractor.go
package classify

import (
	"strings"

	"github.com/google/uuid"

	"library-assistant/internal/common/logger"
	"library-assistant/internal/models"
)

// Extractor pulls typed search terms out of a user query. At most one value
// per field; an empty map means nothing recognizable was found. Pure and
// error-free by design: malformed input just yields fewer fields.
type Extractor struct {
	log logger.Logger
}

func NewExtractor(log logger.Logger) *Extractor {
	return &Extractor{log: log}
}

// Extract scans the query for a quoted or heuristic title, an author after
// "by", an ISBN, an email, and a UUID. When none of those match, it falls
// back to up to three general keywords with stop words removed.
func (e *Extractor) Extract(query string) models.ExtractedFields {
	fields := models.ExtractedFields{}
	lowered := strings.ToLower(query)

	// Quoted titles keep their original casing.
	if m := quotedTitleRe.FindStringSubmatch(query); m != nil {
		fields[models.FieldTitle] = strings.TrimSpace(m[1])
	}

	if m := authorRe.FindStringSubmatch(lowered); m != nil {
		fields[models.FieldAuthor] = strings.TrimSpace(m[1])
	}

	if m := isbnRe.FindStringSubmatch(lowered); m != nil {
		fields[models.FieldISBN] = m[1]
	}

	if m := emailRe.FindString(query); m != "" {
		fields[models.FieldEmail] = m
	}

	if m := uuidTokenRe.FindString(lowered); m != "" {
		if _, err := uuid.Parse(m); err == nil {
			fields[models.FieldID] = m
		}
	}

	// A bare numeric token is a record id ("Is book 12345 available?"),
	// unless those digits were already claimed as an ISBN.
	if _, ok := fields[models.FieldID]; !ok {
		if _, hasISBN := fields[models.FieldISBN]; !hasISBN {
			if m := numericIDRe.FindStringSubmatch(lowered); m != nil {
				fields[models.FieldID] = m[1]
			}
		}
	}

	// Heuristic title guessing runs only when no typed extractor matched;
	// explicit signals (quotes, "by", isbn, email, uuid) are stronger and
	// must not be overridden by a capitalization guess.
	if len(fields) == 0 {
		if title := e.heuristicTitle(query); title != "" {
			fields[models.FieldTitle] = title
		}
	}

	if len(fields) == 0 {
		if general := generalTerms(query); general != "" {
			fields[models.FieldGeneral] = general
		}
	}

	e.log.Debug("fields extracted", map[string]interface{}{
		"count":  len(fields),
		"fields": fieldNames(fields),
	})
	return fields
}

func (e *Extractor) heuristicTitle(query string) string {
	for _, re := range titlePatterns {
		m := re.FindStringSubmatch(query)
		if m == nil {
			continue
		}
		title := strings.TrimSpace(m[1])
		title = titleLeadingNoiseRe.ReplaceAllString(title, "")
		title = strings.TrimSpace(strings.TrimRight(title, "?!.,"))
		if len(title) > 3 {
			return title
		}
	}
	return ""
}

// generalTerms keeps up to three words longer than two characters that are
// not stop words, lowercased and space-joined.
func generalTerms(query string) string {
	var kept []string
	for _, word := range strings.Fields(query) {
		cleaned := strings.Trim(word, "?!.,;:")
		if len(cleaned) <= 2 || stopWords[strings.ToLower(cleaned)] {
			continue
		}
		kept = append(kept, strings.ToLower(cleaned))
		if len(kept) == 3 {
			break
		}
	}
	return strings.Join(kept, " ")
}

func fieldNames(fields models.ExtractedFields) []string {
	names := make([]string, 0, len(fields))
	for k := range fields {
		names = append(names, k)
	}
	return names
}
