package resolver

import (
	"strings"

	"github.com/opsdeck/opsdeck/pkg/models"
)

// Fallback confidence levels. The listing branch is certain by
// construction; single and multiple keyword matches carry fixed,
// reproducible confidences.
const (
	confidenceListing   = 1.0
	confidenceSingle    = 0.8
	confidenceAmbiguous = 0.7
)

// fallback is the deterministic offline resolution path. Given the same
// candidate snapshot, input, and locale it returns an identical result on
// every invocation.
func (r *Resolver) fallback(text string, candidates []*models.Action, locale string) models.IntentResult {
	table := tableFor(locale)
	lowered := strings.ToLower(text)

	for _, keyword := range table.listKeywords {
		if strings.Contains(lowered, keyword) {
			return models.IntentResult{
				SuggestedActionIDs: actionIDs(candidates),
				Reply:              table.offlineAll,
				Confidence:         confidenceListing,
				Fallback:           true,
			}
		}
	}

	tokens := make([]string, 0)

	for _, token := range strings.Fields(lowered) {
		if len(token) > 1 {
			tokens = append(tokens, token)
		}
	}

	matches := make([]*models.Action, 0)

	for _, candidate := range candidates {
		haystack := candidate.Haystack()

		for _, token := range tokens {
			if strings.Contains(haystack, token) {
				matches = append(matches, candidate)

				break
			}
		}
	}

	switch len(matches) {
	case 0:
		return models.IntentResult{
			Reply:      table.offlineNoMatch,
			Confidence: 0,
			Fallback:   true,
		}
	case 1:
		return models.IntentResult{
			MatchedActionID: matches[0].ID,
			Reply:           table.matched(matches[0].Name),
			Confidence:      confidenceSingle,
			Fallback:        true,
		}
	default:
		return models.IntentResult{
			SuggestedActionIDs: actionIDs(matches),
			Reply:              table.offlineAmbiguous,
			Confidence:         confidenceAmbiguous,
			Fallback:           true,
		}
	}
}

func actionIDs(actions []*models.Action) []string {
	ids := make([]string, 0, len(actions))

	for _, action := range actions {
		ids = append(ids, action.ID)
	}

	return ids
}
