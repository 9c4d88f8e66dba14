package postgres

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/yoockh/yoointerview/internal/models"
	"github.com/yoockh/yoointerview/internal/utils"
	"gorm.io/datatypes"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// sqlite has no uuid, jsonb or text[] columns, so the tables are declared by
// hand with equivalent affinities instead of AutoMigrate.
const testSchema = `
CREATE TABLE analysis_tasks (
	task_id TEXT PRIMARY KEY,
	session_id TEXT NOT NULL,
	status TEXT NOT NULL,
	priority INTEGER NOT NULL DEFAULT 0,
	retry_count INTEGER NOT NULL DEFAULT 0,
	max_retries INTEGER NOT NULL,
	error_message TEXT,
	run_after DATETIME,
	lease_until DATETIME,
	worker_id TEXT,
	retried_from TEXT,
	version INTEGER NOT NULL DEFAULT 0,
	started_at DATETIME,
	completed_at DATETIME,
	created_at DATETIME,
	updated_at DATETIME
);
CREATE TABLE analysis_reports (
	session_id TEXT PRIMARY KEY,
	task_id TEXT,
	overall_score REAL,
	competency_scores TEXT,
	strengths TEXT,
	improvements TEXT,
	job_match TEXT,
	tips TEXT,
	generated_at DATETIME
);`

func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:%d?mode=memory&cache=shared", time.Now().UnixNano())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Silent),
		TranslateError: true,
	})
	require.NoError(t, err)
	require.NoError(t, db.Exec(testSchema).Error)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	t.Cleanup(func() { _ = sqlDB.Close() })
	return db
}

func newTask(id, session string, status models.TaskStatus, created time.Time) *models.AnalysisTask {
	return &models.AnalysisTask{
		TaskID: id, SessionID: session, Status: status, MaxRetries: 3,
		RunAfter: created, CreatedAt: created, UpdatedAt: created,
	}
}

func TestTaskRepoCreateGetPut(t *testing.T) {
	ctx := context.Background()
	repo := NewTaskRepo(setupTestDB(t))
	now := time.Now().UTC().Truncate(time.Second)

	task := newTask("t1", "s1", models.TaskQueued, now)
	require.NoError(t, repo.Create(ctx, task))
	assert.Equal(t, int64(1), task.Version)
	assert.ErrorIs(t, repo.Create(ctx, newTask("t1", "s1", models.TaskQueued, now)), utils.ErrConflict)

	got, err := repo.Get(ctx, "t1")
	require.NoError(t, err)
	require.NoError(t, got.Start(now, "w1", time.Minute))
	require.NoError(t, repo.Put(ctx, got))
	assert.Equal(t, int64(2), got.Version)

	// stale writer loses
	require.NoError(t, task.Start(now, "w2", time.Minute))
	assert.ErrorIs(t, repo.Put(ctx, task), utils.ErrConflict)

	stored, err := repo.Get(ctx, "t1")
	require.NoError(t, err)
	assert.Equal(t, models.TaskRunning, stored.Status)
	assert.Equal(t, "w1", stored.WorkerID)
	require.NotNil(t, stored.LeaseUntil)

	_, err = repo.Get(ctx, "missing")
	assert.ErrorIs(t, err, utils.ErrNotFound)
	assert.ErrorIs(t, repo.Put(ctx, newTask("missing", "s", models.TaskQueued, now)), utils.ErrNotFound)
}

func TestTaskRepoListingAndCounts(t *testing.T) {
	ctx := context.Background()
	repo := NewTaskRepo(setupTestDB(t))
	base := time.Now().UTC().Truncate(time.Second)

	require.NoError(t, repo.Create(ctx, newTask("a", "s1", models.TaskQueued, base)))
	require.NoError(t, repo.Create(ctx, newTask("b", "s2", models.TaskFailed, base.Add(time.Second))))
	require.NoError(t, repo.Create(ctx, newTask("c", "s1", models.TaskFailed, base.Add(2*time.Second))))
	require.NoError(t, repo.Create(ctx, newTask("d", "s3", models.TaskCompleted, base.Add(3*time.Second))))

	failed, total, err := repo.ListByStatus(ctx, models.TaskFilter{Status: models.TaskFailed})
	require.NoError(t, err)
	assert.Equal(t, int64(2), total)
	require.Len(t, failed, 2)
	assert.Equal(t, "c", failed[0].TaskID)

	page, total, err := repo.ListByStatus(ctx, models.TaskFilter{Limit: 2, Offset: 1})
	require.NoError(t, err)
	assert.Equal(t, int64(4), total)
	require.Len(t, page, 2)
	assert.Equal(t, "c", page[0].TaskID)
	assert.Equal(t, "b", page[1].TaskID)

	latest, err := repo.LatestBySession(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, "c", latest.TaskID)

	counts, err := repo.CountByStatus(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), counts[models.TaskQueued])
	assert.Equal(t, int64(0), counts[models.TaskRunning])
	assert.Equal(t, int64(2), counts[models.TaskFailed])
	assert.Equal(t, int64(1), counts[models.TaskCompleted])

	require.NoError(t, repo.Delete(ctx, "d"))
	assert.ErrorIs(t, repo.Delete(ctx, "d"), utils.ErrNotFound)
}

func TestReportRepoUpsertReplaces(t *testing.T) {
	ctx := context.Background()
	repo := NewReportRepo(setupTestDB(t))

	first := &models.AnalysisReport{
		SessionID:        "s1",
		TaskID:           "t1",
		OverallScore:     70,
		CompetencyScores: datatypes.NewJSONType(map[string]float64{"communication": 70}),
		Strengths:        []string{"clear"},
		Improvements:     []string{"depth"},
		JobMatch:         datatypes.NewJSONType(models.JobMatch{Title: "Backend", Ratio: 0.6}),
		GeneratedAt:      time.Now().UTC(),
	}
	require.NoError(t, repo.Upsert(ctx, first))

	second := *first
	second.TaskID = "t2"
	second.OverallScore = 85
	second.Strengths = []string{"clear", "structured"}
	require.NoError(t, repo.Upsert(ctx, &second))

	got, err := repo.GetBySession(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, "t2", got.TaskID)
	assert.Equal(t, 85.0, got.OverallScore)
	assert.Equal(t, []string{"clear", "structured"}, []string(got.Strengths))
	assert.Equal(t, 70.0, got.Competencies()["communication"])
	assert.Equal(t, "Backend", got.Match().Title)

	_, err = repo.GetBySession(ctx, "nope")
	assert.ErrorIs(t, err, utils.ErrNotFound)
}
