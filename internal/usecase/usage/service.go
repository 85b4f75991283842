// Package usage reports embedding token consumption against the configured
// budget windows.
package usage

import (
	"context"
	"time"
)

// Window is consumption state for one budget period. Limit 0 means unlimited;
// Remaining is -1 in that case.
type Window struct {
	Limit     int64     `json:"limit"`
	Used      int64     `json:"used"`
	Remaining int64     `json:"remaining"`
	Exhausted bool      `json:"exhausted"`
	ResetsAt  time.Time `json:"resets_at"`
}

// Report is the full usage view returned by the API.
type Report struct {
	Provider string `json:"provider"`
	Model    string `json:"model"`
	Daily    Window `json:"daily"`
	Monthly  Window `json:"monthly"`
}

// Service handles usage reporting.
type Service struct {
	provider string
	model    string
	br       BudgetReader
	now      func() time.Time
}

// New creates a Service. br can be nil (unlimited mode).
func New(provider, model string, br BudgetReader) *Service {
	return &Service{
		provider: provider,
		model:    model,
		br:       br,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// GetReport builds the current usage report.
func (s *Service) GetReport(_ context.Context) Report {
	now := s.now()
	dayEnd := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC).Add(24 * time.Hour)
	monthEnd := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC).AddDate(0, 1, 0)

	report := Report{
		Provider: s.provider,
		Model:    s.model,
		Daily:    Window{Remaining: -1, ResetsAt: dayEnd},
		Monthly:  Window{Remaining: -1, ResetsAt: monthEnd},
	}
	if s.br == nil {
		return report
	}

	report.Daily = window(s.br.DailyLimit(), s.br.DailyUsed(), s.br.RemainingDaily(), dayEnd)
	report.Monthly = window(s.br.MonthlyLimit(), s.br.MonthlyUsed(), s.br.RemainingMonthly(), monthEnd)
	return report
}

func window(limit, used, remaining int64, resetsAt time.Time) Window {
	return Window{
		Limit:     limit,
		Used:      used,
		Remaining: remaining,
		Exhausted: limit > 0 && remaining <= 0,
		ResetsAt:  resetsAt,
	}
}
