package services

import (
	"context"
	"encoding/json"

	"github.com/rs/zerolog"

	"github.com/aliialzein/PsyConnect/internal/repository"
)

const summaryUnavailable = "AI summary unavailable"

type summaryGenerator interface {
	ChatComplete(ctx context.Context, systemPrompt, userPrompt string) (string, error)
}

// SummaryService turns a booking-stats snapshot into a short narrative for
// the admin dashboard. A provider failure degrades to a fixed message and is
// never surfaced as an error.
type SummaryService struct {
	client summaryGenerator
	log    zerolog.Logger
}

func NewSummaryService(client summaryGenerator, log zerolog.Logger) *SummaryService {
	return &SummaryService{client: client, log: log}
}

func (s *SummaryService) Summarize(ctx context.Context, stats *repository.BookingStats) string {
	if s.client == nil {
		return summaryUnavailable
	}

	snapshot, err := json.MarshalIndent(stats, "", "  ")
	if err != nil {
		s.log.Warn().Err(err).Msg("stats snapshot marshal failed")
		return summaryUnavailable
	}

	prompt := "Generate a short professional admin summary for a psychotherapy platform. " +
		"Use the data below and give clear business insight.\n\nDATA:\n" + string(snapshot) +
		"\n\nReturn only a short summary paragraph."

	text, err := s.client.ChatComplete(ctx, "You are a business analytics assistant.", prompt)
	if err != nil {
		s.log.Warn().Err(err).Msg("admin summary generation failed")
		return summaryUnavailable
	}
	return text
}
