package service

import (
	"context"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/fundtrack/internal/fund/domain"
	"github.com/smallbiznis/fundtrack/internal/fund/fundtest"
	"github.com/smallbiznis/fundtrack/internal/fund/repository"
	"github.com/smallbiznis/fundtrack/pkg/db/pagination"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type fixture struct {
	svc  domain.Service
	db   *gorm.DB
	repo domain.Repository
	node *snowflake.Node
}

func newFixture(t *testing.T) fixture {
	db := fundtest.OpenDB(t)
	repo := repository.Provide()
	return fixture{
		svc:  New(Params{DB: db, Log: zap.NewNop(), Repo: repo}),
		db:   db,
		repo: repo,
		node: fundtest.Node(t),
	}
}

func (f fixture) seed(t *testing.T, fundID, cat string, months ...time.Time) domain.FundMaster {
	t.Helper()
	ctx := context.Background()
	node := f.node
	now := time.Now().UTC()

	master, err := f.repo.UpsertMaster(ctx, f.db, &domain.FundMaster{
		ID: node.Generate(), FundID: fundID, FundName: fundID + " Fund", Category: cat,
		Status: domain.FundStatusActive, CreatedAt: now, UpdatedAt: now,
	})
	require.NoError(t, err)

	for _, month := range months {
		snapshot := &domain.MonthlySnapshot{
			ID: node.Generate(), FundMasterID: master.ID, Timestamp: month,
			FundID: fundID, FundName: master.FundName, Category: cat,
			Payload:   datatypes.NewJSONType(domain.FundRecord{FundID: fundID, FundName: master.FundName, Category: cat}),
			CreatedAt: now, UpdatedAt: now,
		}
		require.NoError(t, f.repo.InsertSnapshot(ctx, f.db, snapshot))
		require.NoError(t, f.repo.UpsertMonthTrack(ctx, f.db, domain.MonthTrack{
			FundMasterID: master.ID, Timestamp: month, SnapshotID: snapshot.ID,
		}))
	}
	return *master
}

func month(m time.Month) time.Time {
	return time.Date(2025, m, 1, 0, 0, 0, 0, time.UTC)
}

func TestListNormalizesFilters(t *testing.T) {
	f := newFixture(t)
	f.seed(t, "MF001", "Large Cap Equity")
	f.seed(t, "MF002", "Mid Cap Equity")

	resp, err := f.svc.List(context.Background(), domain.ListRequest{Category: "large cap", Status: "active"})
	require.NoError(t, err)
	require.Len(t, resp.Funds, 1)
	assert.Equal(t, "MF001", resp.Funds[0].FundID)

	_, err = f.svc.List(context.Background(), domain.ListRequest{Category: "Crypto"})
	assert.ErrorIs(t, err, domain.ErrInvalidCategory)

	_, err = f.svc.List(context.Background(), domain.ListRequest{Status: "Dormant"})
	assert.ErrorIs(t, err, domain.ErrInvalidStatus)
}

func TestListPages(t *testing.T) {
	f := newFixture(t)
	f.seed(t, "MF001", "Large Cap Equity")
	f.seed(t, "MF002", "Large Cap Equity")
	f.seed(t, "MF003", "Large Cap Equity")

	first, err := f.svc.List(context.Background(), domain.ListRequest{Pagination: pagination.Pagination{PageSize: 2}})
	require.NoError(t, err)
	require.Len(t, first.Funds, 2)
	assert.True(t, first.PageInfo.HasMore)

	second, err := f.svc.List(context.Background(), domain.ListRequest{
		Pagination: pagination.Pagination{PageSize: 2, PageToken: first.PageInfo.NextPageToken},
	})
	require.NoError(t, err)
	require.Len(t, second.Funds, 1)
	assert.Equal(t, "MF003", second.Funds[0].FundID)
	assert.False(t, second.PageInfo.HasMore)

	_, err = f.svc.List(context.Background(), domain.ListRequest{Pagination: pagination.Pagination{PageToken: "!!"}})
	assert.ErrorIs(t, err, domain.ErrInvalidCursor)
}

func TestGetByFundIDAttachesMonthTracks(t *testing.T) {
	f := newFixture(t)
	f.seed(t, "MF001", "Large Cap Equity", month(8), month(9))

	master, err := f.svc.GetByFundID(context.Background(), "MF001")
	require.NoError(t, err)
	require.Len(t, master.MonthTracks, 2)
	assert.True(t, master.MonthTracks[0].Timestamp.Equal(month(8)))

	_, err = f.svc.GetByFundID(context.Background(), "missing")
	assert.ErrorIs(t, err, domain.ErrNotFound)

	_, err = f.svc.GetByFundID(context.Background(), " ")
	assert.ErrorIs(t, err, domain.ErrInvalidFundID)
}

func TestHistoryRange(t *testing.T) {
	f := newFixture(t)
	f.seed(t, "MF001", "Large Cap Equity", month(7), month(8), month(9))

	from := time.Date(2025, 8, 15, 10, 0, 0, 0, time.UTC)
	snapshots, err := f.svc.History(context.Background(), domain.HistoryRequest{FundID: "MF001", From: &from})
	require.NoError(t, err)
	require.Len(t, snapshots, 2)
	assert.True(t, snapshots[0].Timestamp.Equal(month(9)))

	to := month(6)
	_, err = f.svc.History(context.Background(), domain.HistoryRequest{FundID: "MF001", From: &from, To: &to})
	assert.ErrorIs(t, err, domain.ErrInvalidRange)

	_, err = f.svc.History(context.Background(), domain.HistoryRequest{FundID: "MF404"})
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestByCategoryDefaultsToLatestMonth(t *testing.T) {
	f := newFixture(t)
	f.seed(t, "MF001", "Large Cap Equity", month(8), month(9))
	f.seed(t, "MF002", "Large Cap Equity", month(8))

	latest, err := f.svc.ByCategory(context.Background(), domain.CategoryRequest{Category: "Large Cap"})
	require.NoError(t, err)
	assert.Equal(t, "Large Cap Equity", latest.Category)
	require.NotNil(t, latest.Month)
	assert.True(t, latest.Month.Equal(month(9)))
	assert.Len(t, latest.Snapshots, 1)

	aug := month(8)
	older, err := f.svc.ByCategory(context.Background(), domain.CategoryRequest{Category: "Large Cap Equity", Month: &aug})
	require.NoError(t, err)
	assert.Len(t, older.Snapshots, 2)

	empty, err := f.svc.ByCategory(context.Background(), domain.CategoryRequest{Category: "Debt – Gilt"})
	require.NoError(t, err)
	assert.Nil(t, empty.Month)
	assert.Empty(t, empty.Snapshots)

	_, err = f.svc.ByCategory(context.Background(), domain.CategoryRequest{Category: "Real Estate"})
	assert.ErrorIs(t, err, domain.ErrInvalidCategory)
}

func TestStats(t *testing.T) {
	f := newFixture(t)
	f.seed(t, "MF001", "Large Cap Equity", month(8), month(9))

	stats, err := f.svc.Stats(context.Background())
	require.NoError(t, err)
	assert.EqualValues(t, 1, stats.Masters)
	assert.EqualValues(t, 2, stats.Snapshots)
	require.NotNil(t, stats.LatestMonth)
	assert.True(t, stats.LatestMonth.Equal(month(9)))
}
