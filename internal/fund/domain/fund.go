package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/datatypes"
)

type FundStatus string

const (
	FundStatusActive    FundStatus = "Active"
	FundStatusClosed    FundStatus = "Closed"
	FundStatusMerged    FundStatus = "Merged"
	FundStatusSuspended FundStatus = "Suspended"
)

func (s FundStatus) Valid() bool {
	switch s {
	case FundStatusActive, FundStatusClosed, FundStatusMerged, FundStatusSuspended:
		return true
	default:
		return false
	}
}

// FundMaster is the single canonical identity of a fund. Rows are upserted,
// never deleted.
type FundMaster struct {
	ID          snowflake.ID `gorm:"primaryKey" json:"id"`
	FundID      string       `gorm:"column:fund_id;not null;uniqueIndex:ux_fund_masters_fund_id" json:"fund_id"`
	FundName    string       `gorm:"not null" json:"fund_name"`
	Category    string       `gorm:"not null;index" json:"category"`
	Status      FundStatus   `gorm:"type:varchar(16);not null;default:'Active'" json:"status"`
	CreatedAt   time.Time    `gorm:"not null" json:"created_at"`
	UpdatedAt   time.Time    `gorm:"not null" json:"updated_at"`
	MonthTracks []MonthTrack `gorm:"-" json:"month_tracks,omitempty"`
}

func (FundMaster) TableName() string { return "fund_masters" }

// MonthTrack is the back-reference from a master to its snapshot for one
// month. The (fund_master_id, timestamp) pair is unique.
type MonthTrack struct {
	FundMasterID snowflake.ID `gorm:"primaryKey;autoIncrement:false" json:"-"`
	Timestamp    time.Time    `gorm:"primaryKey" json:"timestamp"`
	SnapshotID   snowflake.ID `gorm:"not null" json:"snapshot_id"`
}

func (MonthTrack) TableName() string { return "fund_month_tracks" }

// MonthlySnapshot holds one fund's full record for one month.
type MonthlySnapshot struct {
	ID           snowflake.ID                   `gorm:"primaryKey" json:"id"`
	FundMasterID snowflake.ID                   `gorm:"not null;uniqueIndex:ux_monthly_snapshots_master_month" json:"fund_master_id"`
	Timestamp    time.Time                      `gorm:"not null;uniqueIndex:ux_monthly_snapshots_master_month;index" json:"timestamp"`
	FundID       string                         `gorm:"column:fund_id;not null;index" json:"fund_id"`
	FundName     string                         `gorm:"not null" json:"fund_name"`
	Category     string                         `gorm:"not null;index" json:"category"`
	Payload      datatypes.JSONType[FundRecord] `gorm:"not null" json:"payload"`
	CreatedAt    time.Time                      `gorm:"not null" json:"created_at"`
	UpdatedAt    time.Time                      `gorm:"not null" json:"updated_at"`
}

func (MonthlySnapshot) TableName() string { return "monthly_snapshots" }

// Record returns the stored provider record.
func (s MonthlySnapshot) Record() FundRecord {
	return s.Payload.Data()
}

// NormalizeMonth truncates t to the first instant of its UTC month.
func NormalizeMonth(t time.Time) time.Time {
	u := t.UTC()
	return time.Date(u.Year(), u.Month(), 1, 0, 0, 0, 0, time.UTC)
}

// PreviousMonth returns the month preceding t on loc's calendar, as the
// first instant of that month in UTC. A nil loc means UTC.
func PreviousMonth(t time.Time, loc *time.Location) time.Time {
	if loc == nil {
		loc = time.UTC
	}
	l := t.In(loc)
	return time.Date(l.Year(), l.Month()-1, 1, 0, 0, 0, 0, time.UTC)
}
