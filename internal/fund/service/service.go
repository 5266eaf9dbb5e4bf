package service

import (
	"context"
	"strings"

	"github.com/smallbiznis/fundtrack/internal/fund/category"
	"github.com/smallbiznis/fundtrack/internal/fund/domain"
	"github.com/smallbiznis/fundtrack/pkg/db/pagination"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB   *gorm.DB
	Log  *zap.Logger
	Repo domain.Repository
}

type Service struct {
	db   *gorm.DB
	log  *zap.Logger
	repo domain.Repository
}

func New(p Params) domain.Service {
	return &Service{
		db:   p.DB,
		log:  p.Log.Named("fund.service"),
		repo: p.Repo,
	}
}

func (s *Service) List(ctx context.Context, req domain.ListRequest) (domain.ListResponse, error) {
	filter := domain.ListFilter{Limit: req.Limit()}

	if raw := strings.TrimSpace(req.Category); raw != "" {
		normalized := category.Normalize(raw)
		if !category.IsCanonical(normalized) {
			return domain.ListResponse{}, domain.ErrInvalidCategory
		}
		filter.Category = normalized
	}

	if raw := strings.TrimSpace(req.Status); raw != "" {
		status, ok := parseStatus(raw)
		if !ok {
			return domain.ListResponse{}, domain.ErrInvalidStatus
		}
		filter.Status = status
	}

	if token := strings.TrimSpace(req.PageToken); token != "" {
		cursor, err := pagination.DecodeCursor(token)
		if err != nil || cursor.ID == "" {
			return domain.ListResponse{}, domain.ErrInvalidCursor
		}
		filter.AfterFundID = cursor.ID
	}

	limit := filter.Limit
	if limit > 0 {
		filter.Limit = limit + 1
	}

	masters, err := s.repo.ListMasters(ctx, s.db, filter)
	if err != nil {
		return domain.ListResponse{}, err
	}

	page, info, err := pagination.Trim(masters, limit, func(m domain.FundMaster) string { return m.FundID })
	if err != nil {
		return domain.ListResponse{}, err
	}
	if page == nil {
		page = []domain.FundMaster{}
	}
	return domain.ListResponse{Funds: page, PageInfo: info}, nil
}

// GetByFundID returns the master with its month back-references attached.
func (s *Service) GetByFundID(ctx context.Context, fundID string) (domain.FundMaster, error) {
	fundID = strings.TrimSpace(fundID)
	if fundID == "" {
		return domain.FundMaster{}, domain.ErrInvalidFundID
	}

	master, err := s.repo.FindMasterByFundID(ctx, s.db, fundID)
	if err != nil {
		return domain.FundMaster{}, err
	}
	if master == nil {
		return domain.FundMaster{}, domain.ErrNotFound
	}

	tracks, err := s.repo.ListMonthTracks(ctx, s.db, master.ID)
	if err != nil {
		return domain.FundMaster{}, err
	}
	master.MonthTracks = tracks
	return *master, nil
}

func (s *Service) History(ctx context.Context, req domain.HistoryRequest) ([]domain.MonthlySnapshot, error) {
	fundID := strings.TrimSpace(req.FundID)
	if fundID == "" {
		return nil, domain.ErrInvalidFundID
	}

	filter := domain.HistoryFilter{}
	if req.From != nil {
		from := domain.NormalizeMonth(*req.From)
		filter.From = &from
	}
	if req.To != nil {
		to := domain.NormalizeMonth(*req.To)
		filter.To = &to
	}
	if filter.From != nil && filter.To != nil && filter.From.After(*filter.To) {
		return nil, domain.ErrInvalidRange
	}

	master, err := s.repo.FindMasterByFundID(ctx, s.db, fundID)
	if err != nil {
		return nil, err
	}
	if master == nil {
		return nil, domain.ErrNotFound
	}

	snapshots, err := s.repo.ListSnapshots(ctx, s.db, master.ID, filter)
	if err != nil {
		return nil, err
	}
	if snapshots == nil {
		snapshots = []domain.MonthlySnapshot{}
	}
	return snapshots, nil
}

// ByCategory returns one category's snapshots for a month, defaulting to the
// most recent month that category has data for.
func (s *Service) ByCategory(ctx context.Context, req domain.CategoryRequest) (domain.CategorySnapshots, error) {
	normalized := category.Normalize(req.Category)
	if !category.IsCanonical(normalized) {
		return domain.CategorySnapshots{}, domain.ErrInvalidCategory
	}

	result := domain.CategorySnapshots{Category: normalized, Snapshots: []domain.MonthlySnapshot{}}

	if req.Month != nil {
		m := domain.NormalizeMonth(*req.Month)
		result.Month = &m
	} else {
		latest, err := s.repo.LatestMonth(ctx, s.db, normalized)
		if err != nil {
			return domain.CategorySnapshots{}, err
		}
		if latest == nil {
			return result, nil
		}
		result.Month = latest
	}

	snapshots, err := s.repo.ListSnapshotsByCategory(ctx, s.db, normalized, *result.Month)
	if err != nil {
		return domain.CategorySnapshots{}, err
	}
	if snapshots != nil {
		result.Snapshots = snapshots
	}
	return result, nil
}

func (s *Service) Stats(ctx context.Context) (domain.Stats, error) {
	return s.repo.Stats(ctx, s.db)
}

func parseStatus(raw string) (domain.FundStatus, bool) {
	for _, status := range []domain.FundStatus{
		domain.FundStatusActive,
		domain.FundStatusClosed,
		domain.FundStatusMerged,
		domain.FundStatusSuspended,
	} {
		if strings.EqualFold(raw, string(status)) {
			return status, true
		}
	}
	return "", false
}
