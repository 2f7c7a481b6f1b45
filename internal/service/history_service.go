package service

import (
	"context"

	"github.com/lshigami/iqtester/internal/model"
	"github.com/rs/zerolog/log"
)

type HistoryAPI interface {
	History(ctx context.Context) ([]model.HistoryEntry, error)
}

type HistoryService interface {
	GetHistory(ctx context.Context) ([]model.HistoryEntry, error)
}

type historyService struct {
	api HistoryAPI
}

func NewHistoryService(api HistoryAPI) HistoryService {
	return &historyService{api: api}
}

func (s *historyService) GetHistory(ctx context.Context) ([]model.HistoryEntry, error) {
	entries, err := s.api.History(ctx)
	if err != nil {
		log.Error().Err(err).Msg("Failed to load history")
		return nil, err
	}
	return entries, nil
}
