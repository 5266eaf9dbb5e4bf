package domain

import (
	"context"
	"errors"
	"time"

	"github.com/smallbiznis/fundtrack/pkg/db/pagination"
)

type ListRequest struct {
	Category string
	Status   string
	pagination.Pagination
}

type ListResponse struct {
	Funds    []FundMaster        `json:"funds"`
	PageInfo pagination.PageInfo `json:"page_info"`
}

type HistoryRequest struct {
	FundID string
	From   *time.Time
	To     *time.Time
}

type CategoryRequest struct {
	Category string
	Month    *time.Time
}

type CategorySnapshots struct {
	Category  string            `json:"category"`
	Month     *time.Time        `json:"month"`
	Snapshots []MonthlySnapshot `json:"snapshots"`
}

// Service exposes read access to ingested funds.
type Service interface {
	List(context.Context, ListRequest) (ListResponse, error)
	GetByFundID(ctx context.Context, fundID string) (FundMaster, error)
	History(context.Context, HistoryRequest) ([]MonthlySnapshot, error)
	ByCategory(context.Context, CategoryRequest) (CategorySnapshots, error)
	Stats(context.Context) (Stats, error)
}

var (
	ErrNotFound        = errors.New("not_found")
	ErrInvalidFundID   = errors.New("invalid_fund_id")
	ErrInvalidCategory = errors.New("invalid_category")
	ErrInvalidStatus   = errors.New("invalid_status")
	ErrInvalidRange    = errors.New("invalid_range")
	ErrInvalidCursor   = errors.New("invalid_page_token")
	ErrSnapshotExists  = errors.New("snapshot_exists")
)
