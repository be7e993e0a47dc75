package service

import (
	"context"
	"errors"

	apperrors "multitimer/internal/errors"
	"multitimer/internal/model"
	"multitimer/internal/transfer"
)

// TransferService moves a user's timers in and out as YAML documents.
type TransferService struct {
	timers *TimerService
}

func NewTransferService(timers *TimerService) *TransferService {
	return &TransferService{timers: timers}
}

func (s *TransferService) ExportDocument(ctx context.Context, userID string) (transfer.Document, *apperrors.APIError) {
	snapshot, apiErr := s.timers.Snapshot(ctx, userID)
	if apiErr != nil {
		return transfer.Document{}, apiErr
	}
	return transfer.FromTimers(snapshot.Timers, snapshot.Presets), nil
}

func (s *TransferService) Export(ctx context.Context, userID string) ([]byte, *apperrors.APIError) {
	doc, apiErr := s.ExportDocument(ctx, userID)
	if apiErr != nil {
		return nil, apiErr
	}
	data, err := transfer.Encode(doc)
	if err != nil {
		return nil, apperrors.Internal("failed to encode export")
	}
	return data, nil
}

func (s *TransferService) Import(ctx context.Context, userID string, data []byte) ([]model.Timer, *apperrors.APIError) {
	doc, err := transfer.Decode(data)
	if err != nil {
		if errors.Is(err, transfer.ErrUnsupportedVersion) {
			return nil, apperrors.BadRequest("unsupported_version", err.Error())
		}
		return nil, apperrors.BadRequest("invalid_document", err.Error())
	}
	return s.ImportDocument(ctx, userID, doc)
}

func (s *TransferService) ImportDocument(ctx context.Context, userID string, doc transfer.Document) ([]model.Timer, *apperrors.APIError) {
	timers, err := doc.Records()
	if err != nil {
		return nil, apperrors.BadRequest("invalid_document", err.Error())
	}
	return s.timers.Import(ctx, userID, timers)
}
