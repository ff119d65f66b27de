package server

import (
	"context"
	"log/slog"

	"google.golang.org/protobuf/types/known/structpb"

	"github.com/joseph-ayodele/trial-screener/constants"
	"github.com/joseph-ayodele/trial-screener/internal/common"
	"github.com/joseph-ayodele/trial-screener/internal/screening"
)

// ScreeningService exposes one screening session over gRPC.
type ScreeningService struct {
	ctrl   *screening.Controller
	store  *Store
	logger *slog.Logger
}

// NewScreeningService serves ctrl. store may be nil, in which case the run
// methods answer FailedPrecondition.
func NewScreeningService(ctrl *screening.Controller, store *Store, logger *slog.Logger) *ScreeningService {
	if logger == nil {
		logger = slog.Default()
	}
	return &ScreeningService{ctrl: ctrl, store: store, logger: logger}
}

func (s *ScreeningService) session() (*structpb.Struct, error) {
	out, err := sessionStruct(s.ctrl.Snapshot(), s.ctrl.Status())
	if err != nil {
		s.logger.Error("grpc.encode_session_failed", "error", err)
		return nil, toStatus(err)
	}
	return out, nil
}

func (s *ScreeningService) LoadCriteria(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	req, err := decode(in, pathSchema)
	if err != nil {
		return nil, err
	}
	pages, err := pageRange(req)
	if err != nil {
		return nil, err
	}
	if err := s.ctrl.LoadCriteriaDocument(ctx, str(req, "path"), pages); err != nil {
		return nil, toStatus(err)
	}
	return s.session()
}

func (s *ScreeningService) ExtractCriteria(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	if _, err := decode(in, emptySchema); err != nil {
		return nil, err
	}
	if err := s.ctrl.ExtractCriteria(ctx); err != nil {
		return nil, toStatus(err)
	}
	return s.session()
}

func (s *ScreeningService) LoadCase(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	req, err := decode(in, pathSchema)
	if err != nil {
		return nil, err
	}
	if err := s.ctrl.LoadCaseDocument(ctx, str(req, "path")); err != nil {
		return nil, toStatus(err)
	}
	return s.session()
}

func (s *ScreeningService) OrganizeCase(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	if _, err := decode(in, emptySchema); err != nil {
		return nil, err
	}
	if err := s.ctrl.OrganizeCase(ctx); err != nil {
		return nil, toStatus(err)
	}
	return s.session()
}

// ClassifyCase stores the verdict even when it is a failure; callers can
// read it back with GetSession.
func (s *ScreeningService) ClassifyCase(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	if _, err := decode(in, emptySchema); err != nil {
		return nil, err
	}
	if _, err := s.ctrl.ClassifyCase(ctx); err != nil {
		return nil, toStatus(err)
	}
	return s.session()
}

func (s *ScreeningService) SetText(_ context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	req, err := decode(in, setTextSchema)
	if err != nil {
		return nil, err
	}
	target, text := str(req, "target"), str(req, "text")
	v := common.NewValidator().Field("target", target, common.OneOf(constants.FieldCriteria, constants.FieldCase))
	if err := common.ValidateAndReturnError(v); err != nil {
		return nil, err
	}
	if target == constants.FieldCriteria {
		err = s.ctrl.SetCriteria(text)
	} else {
		err = s.ctrl.SetCase(text)
	}
	if err != nil {
		return nil, toStatus(err)
	}
	return s.session()
}

func (s *ScreeningService) GetSession(_ context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	if _, err := decode(in, emptySchema); err != nil {
		return nil, err
	}
	return s.session()
}

func (s *ScreeningService) Reset(_ context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	if _, err := decode(in, emptySchema); err != nil {
		return nil, err
	}
	if err := s.ctrl.Reset(); err != nil {
		return nil, toStatus(err)
	}
	return s.session()
}
