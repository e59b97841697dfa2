// internal/chat/classify/classifier.go
package classify

import (
	"strings"

	"library-assistant/internal/common/logger"
	"library-assistant/internal/models"
)

// Classifier assigns exactly one intent to a user query. Pure pattern
// matching, no remote calls, never errors.
type Classifier struct {
	log logger.Logger
}

func NewClassifier(log logger.Logger) *Classifier {
	return &Classifier{log: log}
}

// Classify returns the first intent whose pattern list matches the
// lowercased query, or IntentGeneral when nothing matches. Intent order is
// fixed, so ambiguous queries resolve deterministically.
func (c *Classifier) Classify(query string) models.Intent {
	lowered := strings.ToLower(query)

	for _, ip := range intentPatterns {
		for _, re := range ip.patterns {
			if re.MatchString(lowered) {
				c.log.Debug("query classified", map[string]interface{}{
					"intent":  string(ip.intent),
					"pattern": re.String(),
				})
				return ip.intent
			}
		}
	}

	return models.IntentGeneral
}
