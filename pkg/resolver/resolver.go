// Package resolver maps free-form user text to registered actions, either
// through a remote language-model call or a deterministic local fallback.
package resolver

import (
	"context"
	"encoding/json"
	"log/slog"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/opsdeck/opsdeck/pkg/models"
	"github.com/opsdeck/opsdeck/pkg/otelhelper"
)

// Candidate is the reduced action shape handed to the remote classifier.
type Candidate struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
	Kind        string `json:"kind"`
	Tags        string `json:"tags"`
}

// RemoteClient performs the remote classification call and returns its raw
// JSON payload. Implementations report transport and API failures as
// errors; the resolver converts every failure into a fallback result.
type RemoteClient interface {
	Classify(ctx context.Context, query string, candidates []Candidate, locale string) (json.RawMessage, error)
}

// Resolver resolves user text against the action catalog. Resolve never
// fails: any remote error degrades to the local fallback.
type Resolver struct {
	remote RemoteClient
	logger *slog.Logger
	tracer trace.Tracer
}

// New creates a resolver. A nil remote client puts the resolver in
// permanent offline mode.
func New(logger *slog.Logger, remote RemoteClient) *Resolver {
	return &Resolver{
		remote: remote,
		logger: logger.With("module", "resolver"),
		tracer: otel.Tracer("opsdeck/resolver"),
	}
}

// Resolve interprets text against the given actions. Env-kind actions are
// excluded from the candidate set before either path runs, so they can
// never be matched or suggested.
func (r *Resolver) Resolve(ctx context.Context, text string, actions []*models.Action, locale string) models.IntentResult {
	ctx, span := otelhelper.StartSpan(ctx, r.tracer, "resolver.resolve",
		attribute.String(otelhelper.LocaleKey, locale),
	)
	defer span.End()

	candidates := make([]*models.Action, 0, len(actions))

	for _, action := range actions {
		if action.Executable() {
			candidates = append(candidates, action)
		}
	}

	if r.remote == nil {
		return r.fallback(text, candidates, locale)
	}

	payload, err := r.remote.Classify(ctx, text, reduceCandidates(candidates), locale)
	if err != nil {
		r.logger.WarnContext(ctx, "Remote intent resolution failed, using local fallback", "error", err)
		otelhelper.SetError(span, err)

		return r.fallback(text, candidates, locale)
	}

	result, err := parseRemotePayload(payload, candidates)
	if err != nil {
		r.logger.WarnContext(ctx, "Remote intent payload rejected, using local fallback", "error", err)
		otelhelper.SetError(span, err)

		return r.fallback(text, candidates, locale)
	}

	return result
}

// Offline reports whether the resolver has no remote classifier configured.
func (r *Resolver) Offline() bool {
	return r.remote == nil
}

func reduceCandidates(actions []*models.Action) []Candidate {
	candidates := make([]Candidate, 0, len(actions))

	for _, action := range actions {
		candidates = append(candidates, Candidate{
			ID:          action.ID,
			Name:        action.Name,
			Description: action.Description,
			Kind:        string(action.Kind),
			Tags:        strings.Join(action.Tags, ","),
		})
	}

	return candidates
}
