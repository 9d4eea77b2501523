package app

import (
	"context"
	"errors"

	"caffmed-api/internal/model"
	"caffmed-api/internal/repository"
)

var ErrHistoryDisabled = errors.New("prediction history is disabled")

type HistoryStore interface {
	ListRecent(ctx context.Context, limit int) ([]model.Prediction, error)
	CountByLabel(ctx context.Context) ([]repository.LabelCount, error)
}

type HistoryService struct {
	store HistoryStore
}

// NewHistoryService accepts a nil store, in which case every call reports
// ErrHistoryDisabled.
func NewHistoryService(store HistoryStore) *HistoryService {
	return &HistoryService{store: store}
}

func (s *HistoryService) Enabled() bool {
	return s.store != nil
}

type HistorySummary struct {
	Recent  []model.Prediction      `json:"recent"`
	ByLabel []repository.LabelCount `json:"by_label"`
}

func (s *HistoryService) Summary(ctx context.Context, limit int) (*HistorySummary, error) {
	if !s.Enabled() {
		return nil, ErrHistoryDisabled
	}
	recent, err := s.store.ListRecent(ctx, limit)
	if err != nil {
		return nil, err
	}
	counts, err := s.store.CountByLabel(ctx)
	if err != nil {
		return nil, err
	}
	return &HistorySummary{Recent: recent, ByLabel: counts}, nil
}
