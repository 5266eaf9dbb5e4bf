package domain

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

type Repository interface {
	FindMasterByFundID(ctx context.Context, db *gorm.DB, fundID string) (*FundMaster, error)
	// UpsertMaster inserts master or refreshes name and category of the row
	// sharing its FundID, returning the stored row.
	UpsertMaster(ctx context.Context, db *gorm.DB, master *FundMaster) (*FundMaster, error)
	ListMasters(ctx context.Context, db *gorm.DB, filter ListFilter) ([]FundMaster, error)

	FindSnapshot(ctx context.Context, db *gorm.DB, masterID snowflake.ID, month time.Time) (*MonthlySnapshot, error)
	// InsertSnapshot returns ErrSnapshotExists when (master, month) is taken.
	InsertSnapshot(ctx context.Context, db *gorm.DB, snapshot *MonthlySnapshot) error
	UpdateSnapshot(ctx context.Context, db *gorm.DB, snapshot *MonthlySnapshot) error
	// ListSnapshots returns newest first.
	ListSnapshots(ctx context.Context, db *gorm.DB, masterID snowflake.ID, filter HistoryFilter) ([]MonthlySnapshot, error)
	ListSnapshotsByCategory(ctx context.Context, db *gorm.DB, category string, month time.Time) ([]MonthlySnapshot, error)
	LatestMonth(ctx context.Context, db *gorm.DB, category string) (*time.Time, error)

	// UpsertMonthTrack records the snapshot for (master, month), replacing
	// the snapshot id in place if the month is already tracked.
	UpsertMonthTrack(ctx context.Context, db *gorm.DB, track MonthTrack) error
	ListMonthTracks(ctx context.Context, db *gorm.DB, masterID snowflake.ID) ([]MonthTrack, error)

	Stats(ctx context.Context, db *gorm.DB) (Stats, error)
}

// ListFilter narrows ListMasters. Rows come back ordered by FundID; a
// non-empty AfterFundID resumes after that key and Limit caps the result.
type ListFilter struct {
	Category    string
	Status      FundStatus
	AfterFundID string
	Limit       int
}

type HistoryFilter struct {
	From *time.Time
	To   *time.Time
}

type Stats struct {
	Masters     int64      `json:"masters"`
	Snapshots   int64      `json:"snapshots"`
	LatestMonth *time.Time `json:"latest_month,omitempty"`
}
