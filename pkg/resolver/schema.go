package resolver

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/xeipuuv/gojsonschema"

	"github.com/opsdeck/opsdeck/pkg/models"
)

// remoteResultSchema is the structured-output contract of the remote
// classifier. Payloads are rejected before unmarshalling rather than
// trusted shape-wise.
const remoteResultSchema = `{
	"type": "object",
	"properties": {
		"matchedConfigId": {"type": ["string", "null"]},
		"suggestedConfigIds": {
			"type": ["array", "null"],
			"items": {"type": "string"}
		},
		"reply": {"type": "string", "minLength": 1},
		"confidence": {"type": "number", "minimum": 0, "maximum": 1}
	},
	"required": ["reply", "confidence"]
}`

var schemaLoader = gojsonschema.NewStringLoader(remoteResultSchema)

var errPayloadRejected = errors.New("remote payload rejected by schema")

type remotePayload struct {
	MatchedConfigID    *string  `json:"matchedConfigId"`
	SuggestedConfigIDs []string `json:"suggestedConfigIds"`
	Reply              string   `json:"reply"`
	Confidence         float64  `json:"confidence"`
}

// parseRemotePayload validates and normalizes the remote classifier's raw
// JSON. A literal "null" match id becomes an absent value, and any id not
// present in the candidate set is discarded, which keeps env-kind and
// deleted actions out of results no matter what the model returns.
func parseRemotePayload(raw json.RawMessage, candidates []*models.Action) (models.IntentResult, error) {
	validation, err := gojsonschema.Validate(schemaLoader, gojsonschema.NewBytesLoader(raw))
	if err != nil {
		return models.IntentResult{}, fmt.Errorf("failed to validate remote payload: %w", err)
	}

	if !validation.Valid() {
		return models.IntentResult{}, fmt.Errorf("%w: %v", errPayloadRejected, validation.Errors())
	}

	var payload remotePayload

	err = json.Unmarshal(raw, &payload)
	if err != nil {
		return models.IntentResult{}, fmt.Errorf("failed to parse remote payload: %w", err)
	}

	known := make(map[string]bool, len(candidates))
	for _, candidate := range candidates {
		known[candidate.ID] = true
	}

	result := models.IntentResult{
		Reply:      payload.Reply,
		Confidence: payload.Confidence,
	}

	if payload.MatchedConfigID != nil {
		matched := *payload.MatchedConfigID
		if matched != "" && matched != "null" && known[matched] {
			result.MatchedActionID = matched
		}
	}

	for _, id := range payload.SuggestedConfigIDs {
		if known[id] {
			result.SuggestedActionIDs = append(result.SuggestedActionIDs, id)
		}
	}

	return result, nil
}
