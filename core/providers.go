package booking

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/hiyadrive/hiya-core/core/directory"
	"github.com/hiyadrive/hiya-core/core/messages"
	"github.com/hiyadrive/hiya-core/core/speech"
)

// searchProviders queries the directory for matching providers. An empty
// result broadens the radius and loops back, up to the expansion budget;
// past the budget the miss becomes an error for recovery to deal with.
func (e *Engine) searchProviders(ctx context.Context, s *BookingState) Outcome {
	ctx, span := tracer.Start(ctx, "search providers")
	defer span.End()

	query := directory.Query{
		Category: s.Intent.ServiceType,
		Location: s.Intent.Location,
		RadiusKM: e.config.searchRadiusKM * float64(1+s.SearchExpansions),
	}
	span.SetAttributes(
		attribute.String("search.category", query.Category),
		attribute.Float64("search.radius_km", query.RadiusKM),
	)

	e.speak(ctx, messages.KindSearching, messageContext(s))
	results, err := e.directory.Search(ctx, query)
	if err != nil {
		recordedErr := fmt.Errorf("provider search failed: %w", err)
		span.RecordError(recordedErr)
		span.SetStatus(codes.Error, recordedErr.Error())
		s.appendError(ErrorKindSearch, StageSearchProviders, recordedErr.Error(), true)
		return OutcomeError
	}

	if len(results) == 0 {
		if s.SearchExpansions >= e.config.searchExpansionBudget {
			s.appendError(ErrorKindSearch, StageSearchProviders,
				"no providers found after broadened search", false)
			return OutcomeError
		}
		s.SearchExpansions++
		e.speak(ctx, messages.KindSearchBroadened, messageContext(s))
		return OutcomeEmpty
	}

	s.CandidateProviders = results
	c := messageContext(s)
	c.ResultCount = len(results)
	e.speak(ctx, messages.KindSearchResults, c)
	logger.InfoContext(ctx, "providers found",
		"session_id", s.SessionID, "count", len(results))
	return OutcomeFound
}

// selectProvider reads the top three candidates to the user and waits for a
// choice. Silence or no stated preference defaults to the highest-rated
// candidate, ties broken by ascending distance. Rejecting the whole
// shortlist broadens the next search.
func (e *Engine) selectProvider(ctx context.Context, s *BookingState) Outcome {
	ctx, span := tracer.Start(ctx, "select provider")
	defer span.End()

	top := s.topCandidates(3)
	if len(top) == 0 {
		// Routing should never reach selection without candidates.
		s.SearchExpansions++
		return OutcomeRejectedAll
	}

	for i, provider := range top {
		c := messageContext(s)
		c.OptionIndex = i + 1
		c.ProviderName = provider.Name
		c.ProviderRating = provider.Rating
		c.ProviderAddress = provider.Address
		e.speak(ctx, messages.KindProviderOption, c)
	}
	e.speak(ctx, messages.KindSelectionPrompt, messageContext(s))

	reply, err := e.speechIn.Listen(ctx, e.config.listenTimeout)
	if err != nil && !errors.Is(err, speech.ErrTimeout) {
		logger.WarnContext(ctx, "failed to hear provider preference, using default",
			"session_id", s.SessionID, "error", err)
		reply = ""
	}

	if rejectsAll(reply) {
		s.SearchExpansions++
		e.speak(ctx, messages.KindSelectionRejected, messageContext(s))
		return OutcomeRejectedAll
	}

	pick := top[0]
	if idx := spokenOptionIndex(reply); idx > 0 && idx <= len(top) {
		pick = top[idx-1]
	} else {
		pick = bestRated(top)
	}

	s.SelectedProvider = &pick
	c := messageContext(s)
	c.ProviderName = pick.Name
	c.ProviderRating = pick.Rating
	e.speak(ctx, messages.KindProviderSelected, c)
	logger.InfoContext(ctx, "provider selected",
		"session_id", s.SessionID, "provider", pick.Name, "rating", pick.Rating)
	return OutcomeSelected
}

// bestRated picks the highest-rated provider; on equal rating the closer one
// wins. Stable with respect to search rank for full ties.
func bestRated(candidates []directory.Provider) directory.Provider {
	ranked := slices.Clone(candidates)
	slices.SortStableFunc(ranked, func(a, b directory.Provider) int {
		switch {
		case a.Rating > b.Rating:
			return -1
		case a.Rating < b.Rating:
			return 1
		case a.DistanceKM < b.DistanceKM:
			return -1
		case a.DistanceKM > b.DistanceKM:
			return 1
		default:
			return 0
		}
	})
	return ranked[0]
}

func rejectsAll(reply string) bool {
	reply = strings.ToLower(reply)
	for _, phrase := range []string{"no", "nope", "none", "neither", "none of those", "something else", "different"} {
		if containsWord(reply, phrase) {
			return true
		}
	}
	return false
}

func spokenOptionIndex(reply string) int {
	reply = strings.ToLower(reply)
	options := map[string]int{
		"1": 1, "one": 1, "first": 1,
		"2": 2, "two": 2, "second": 2,
		"3": 3, "three": 3, "third": 3,
	}
	for word, idx := range options {
		if containsWord(reply, word) {
			return idx
		}
	}
	return 0
}
