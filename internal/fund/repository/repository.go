package repository

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/fundtrack/internal/fund/domain"
	"github.com/smallbiznis/fundtrack/pkg/db"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) FindMasterByFundID(ctx context.Context, db *gorm.DB, fundID string) (*domain.FundMaster, error) {
	var master domain.FundMaster
	err := db.WithContext(ctx).
		Where("fund_id = ?", fundID).
		Limit(1).
		Find(&master).Error
	if err != nil {
		return nil, err
	}
	if master.ID == 0 {
		return nil, nil
	}
	return &master, nil
}

func (r *repo) UpsertMaster(ctx context.Context, tx *gorm.DB, master *domain.FundMaster) (*domain.FundMaster, error) {
	err := tx.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "fund_id"}},
			DoUpdates: clause.AssignmentColumns([]string{"fund_name", "category", "updated_at"}),
		}).
		Create(master).Error
	if err != nil {
		return nil, err
	}

	stored, err := r.FindMasterByFundID(ctx, tx, master.FundID)
	if err != nil {
		return nil, err
	}
	if stored == nil {
		return nil, gorm.ErrRecordNotFound
	}
	return stored, nil
}

func (r *repo) ListMasters(ctx context.Context, db *gorm.DB, filter domain.ListFilter) ([]domain.FundMaster, error) {
	var masters []domain.FundMaster
	stmt := db.WithContext(ctx).Model(&domain.FundMaster{})
	if filter.Category != "" {
		stmt = stmt.Where("category = ?", filter.Category)
	}
	if filter.Status != "" {
		stmt = stmt.Where("status = ?", filter.Status)
	}
	if filter.AfterFundID != "" {
		stmt = stmt.Where("fund_id > ?", filter.AfterFundID)
	}
	if filter.Limit > 0 {
		stmt = stmt.Limit(filter.Limit)
	}
	if err := stmt.Order("fund_id asc").Find(&masters).Error; err != nil {
		return nil, err
	}
	return masters, nil
}

func (r *repo) FindSnapshot(ctx context.Context, db *gorm.DB, masterID snowflake.ID, month time.Time) (*domain.MonthlySnapshot, error) {
	var snapshot domain.MonthlySnapshot
	err := db.WithContext(ctx).
		Where("fund_master_id = ? AND timestamp = ?", masterID, month).
		Limit(1).
		Find(&snapshot).Error
	if err != nil {
		return nil, err
	}
	if snapshot.ID == 0 {
		return nil, nil
	}
	return &snapshot, nil
}

func (r *repo) InsertSnapshot(ctx context.Context, tx *gorm.DB, snapshot *domain.MonthlySnapshot) error {
	err := tx.WithContext(ctx).Create(snapshot).Error
	if db.IsDuplicateKeyErr(err) {
		return domain.ErrSnapshotExists
	}
	return err
}

func (r *repo) UpdateSnapshot(ctx context.Context, db *gorm.DB, snapshot *domain.MonthlySnapshot) error {
	result := db.WithContext(ctx).
		Model(&domain.MonthlySnapshot{}).
		Where("id = ?", snapshot.ID).
		Updates(map[string]any{
			"fund_id":    snapshot.FundID,
			"fund_name":  snapshot.FundName,
			"category":   snapshot.Category,
			"payload":    snapshot.Payload,
			"updated_at": snapshot.UpdatedAt,
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

func (r *repo) ListSnapshots(ctx context.Context, db *gorm.DB, masterID snowflake.ID, filter domain.HistoryFilter) ([]domain.MonthlySnapshot, error) {
	var snapshots []domain.MonthlySnapshot
	stmt := db.WithContext(ctx).
		Model(&domain.MonthlySnapshot{}).
		Where("fund_master_id = ?", masterID)
	if filter.From != nil {
		stmt = stmt.Where("timestamp >= ?", *filter.From)
	}
	if filter.To != nil {
		stmt = stmt.Where("timestamp <= ?", *filter.To)
	}
	if err := stmt.Order("timestamp desc").Find(&snapshots).Error; err != nil {
		return nil, err
	}
	return snapshots, nil
}

func (r *repo) ListSnapshotsByCategory(ctx context.Context, db *gorm.DB, category string, month time.Time) ([]domain.MonthlySnapshot, error) {
	var snapshots []domain.MonthlySnapshot
	err := db.WithContext(ctx).
		Where("category = ? AND timestamp = ?", category, month).
		Order("fund_id asc").
		Find(&snapshots).Error
	if err != nil {
		return nil, err
	}
	return snapshots, nil
}

func (r *repo) LatestMonth(ctx context.Context, db *gorm.DB, category string) (*time.Time, error) {
	var months []time.Time
	stmt := db.WithContext(ctx).Model(&domain.MonthlySnapshot{})
	if category != "" {
		stmt = stmt.Where("category = ?", category)
	}
	if err := stmt.Order("timestamp desc").Limit(1).Pluck("timestamp", &months).Error; err != nil {
		return nil, err
	}
	if len(months) == 0 {
		return nil, nil
	}
	latest := months[0].UTC()
	return &latest, nil
}

func (r *repo) UpsertMonthTrack(ctx context.Context, tx *gorm.DB, track domain.MonthTrack) error {
	return tx.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "fund_master_id"}, {Name: "timestamp"}},
			DoUpdates: clause.AssignmentColumns([]string{"snapshot_id"}),
		}).
		Create(&track).Error
}

func (r *repo) ListMonthTracks(ctx context.Context, db *gorm.DB, masterID snowflake.ID) ([]domain.MonthTrack, error) {
	var tracks []domain.MonthTrack
	err := db.WithContext(ctx).
		Where("fund_master_id = ?", masterID).
		Order("timestamp asc").
		Find(&tracks).Error
	if err != nil {
		return nil, err
	}
	return tracks, nil
}

func (r *repo) Stats(ctx context.Context, db *gorm.DB) (domain.Stats, error) {
	var stats domain.Stats
	if err := db.WithContext(ctx).Model(&domain.FundMaster{}).Count(&stats.Masters).Error; err != nil {
		return domain.Stats{}, err
	}
	if err := db.WithContext(ctx).Model(&domain.MonthlySnapshot{}).Count(&stats.Snapshots).Error; err != nil {
		return domain.Stats{}, err
	}
	latest, err := r.LatestMonth(ctx, db, "")
	if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		return domain.Stats{}, err
	}
	stats.LatestMonth = latest
	return stats, nil
}
