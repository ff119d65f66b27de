package server

import (
	"context"
	"encoding/base64"
	"log/slog"

	"google.golang.org/protobuf/types/known/structpb"

	"github.com/joseph-ayodele/trial-screener/internal/common"
	"github.com/joseph-ayodele/trial-screener/internal/export"
	"github.com/joseph-ayodele/trial-screener/internal/repository"
	"github.com/joseph-ayodele/trial-screener/internal/utils"
)

// Store bundles the saved-runs repository and its exporter.
type Store struct {
	Runs   repository.RunRepository
	Export *export.Service
}

func NewStore(runs repository.RunRepository, logger *slog.Logger) *Store {
	return &Store{Runs: runs, Export: export.NewService(runs, logger)}
}

func (s *ScreeningService) requireStore() error {
	if s.store == nil {
		return common.FailedPreconditionError("run store is not configured")
	}
	return nil
}

// SaveRun persists the current session's verdict.
func (s *ScreeningService) SaveRun(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	if err := s.requireStore(); err != nil {
		return nil, err
	}
	if _, err := decode(in, emptySchema); err != nil {
		return nil, err
	}
	run, err := utils.RunFromSession(s.ctrl.Snapshot())
	if err != nil {
		return nil, toStatus(err)
	}
	saved, err := s.store.Runs.Save(ctx, run)
	if err != nil {
		return nil, toStatus(err)
	}
	return structpb.NewStruct(map[string]any{"run": runMap(saved)})
}

func (s *ScreeningService) ListRuns(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	if err := s.requireStore(); err != nil {
		return nil, err
	}
	req, err := decode(in, limitSchema)
	if err != nil {
		return nil, err
	}
	runs, err := s.store.Runs.List(ctx, num(req, "limit"))
	if err != nil {
		return nil, toStatus(err)
	}
	out := make([]any, 0, len(runs))
	for _, r := range runs {
		out = append(out, runMap(r))
	}
	return structpb.NewStruct(map[string]any{"runs": out})
}

// ExportRuns returns the workbook base64 encoded under "xlsx".
func (s *ScreeningService) ExportRuns(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	if err := s.requireStore(); err != nil {
		return nil, err
	}
	req, err := decode(in, limitSchema)
	if err != nil {
		return nil, err
	}
	data, err := s.store.Export.ExportRunsXLSX(ctx, num(req, "limit"))
	if err != nil {
		s.logger.Error("export.xlsx.failed", "error", err)
		return nil, common.InternalError(err.Error())
	}
	return structpb.NewStruct(map[string]any{
		"xlsx":  base64.StdEncoding.EncodeToString(data),
		"bytes": len(data),
	})
}
