package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"
	"github.com/jackc/pgx/v5/pgxpool"
	"golang.org/x/sync/errgroup"

	"github.com/cadencehr/cadence/internal/authz"
	jobmetrics "github.com/cadencehr/cadence/internal/jobs"
	"github.com/cadencehr/cadence/internal/permissions"
	"github.com/cadencehr/cadence/internal/shared"
)

var defaultJobMetrics = jobmetrics.NewMetrics(nil)

// MatrixWarmupJob pre-populates the permission matrix cache for active
// users so the first decision after a cache bump does not pay the load
// latency. Warming is best-effort per user; a failed tenant aborts the run
// so the retry policy re-covers it.
type MatrixWarmupJob struct {
	Permissions *permissions.Service
	Pool        *pgxpool.Pool
	Logger      *slog.Logger
	Metrics     *jobmetrics.Metrics
	clock       func() time.Time
}

// NewMatrixWarmupJob wires dependencies for the warmup handler.
func NewMatrixWarmupJob(svc *permissions.Service, pool *pgxpool.Pool, logger *slog.Logger, metrics *jobmetrics.Metrics) *MatrixWarmupJob {
	return &MatrixWarmupJob{
		Permissions: svc,
		Pool:        pool,
		Logger:      logger,
		Metrics:     metrics,
		clock: func() time.Time {
			return time.Now().UTC()
		},
	}
}

// Handle processes matrix warmup tasks.
func (j *MatrixWarmupJob) Handle(ctx context.Context, t *asynq.Task) error {
	if j == nil {
		return errors.New("matrix warmup: handler not configured")
	}
	var payload MatrixWarmupPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return asynq.SkipRetry
	}

	tracker := j.metrics().Track(TaskMatrixWarmup)
	var resultErr error
	defer func() {
		resultErr = tracker.End(resultErr)
	}()

	logger := j.logger()
	logger.Info("starting matrix warmup")

	actors, err := j.fetchActors(ctx, payload.TenantIDs)
	if err != nil {
		resultErr = err
		logger.Error("load warmup actors", slog.Any("error", err))
		return resultErr
	}
	if len(actors) == 0 {
		logger.Info("no active users discovered for warmup")
		return resultErr
	}

	start := j.now()
	group, groupCtx := errgroup.WithContext(ctx)
	group.SetLimit(4)
	for _, actor := range actors {
		group.Go(func() error {
			if err := j.warmActor(groupCtx, actor); err != nil {
				logger.Error("warm snapshot", slog.Int64("tenant_id", actor.TenantID), slog.Int64("user_id", actor.UserID), slog.Any("error", err))
				return err
			}
			return nil
		})
	}
	if err := group.Wait(); err != nil {
		resultErr = err
		return resultErr
	}
	j.metrics().AddWarmedSnapshots(len(actors))

	logger.Info("completed matrix warmup", slog.Int("snapshots", len(actors)), slog.Duration("duration", time.Since(start)))
	return resultErr
}

func (j *MatrixWarmupJob) warmActor(ctx context.Context, actor shared.Actor) error {
	if j.Permissions == nil {
		return nil
	}
	actorCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	_, err := j.Permissions.Snapshot(actorCtx, actor)
	return err
}

func (j *MatrixWarmupJob) fetchActors(ctx context.Context, tenantIDs []int64) ([]shared.Actor, error) {
	if j.Pool == nil {
		return nil, errors.New("matrix warmup: pool not configured")
	}
	query := `SELECT u.id, u.tenant_id, u.role
		FROM users u
		JOIN tenant_subscriptions ts ON ts.tenant_id = u.tenant_id
		WHERE u.is_active AND ts.account_active`
	args := []any{}
	if len(tenantIDs) > 0 {
		query += ` AND u.tenant_id = ANY($1)`
		args = append(args, tenantIDs)
	}
	query += ` ORDER BY u.tenant_id, u.id`

	rows, err := j.Pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	actors := make([]shared.Actor, 0)
	for rows.Next() {
		var (
			userID   int64
			tenantID int64
			rawRole  string
		)
		if err := rows.Scan(&userID, &tenantID, &rawRole); err != nil {
			return nil, err
		}
		role, err := authz.ParseRole(rawRole)
		if err != nil {
			// Skip rows with roles this binary does not know yet.
			continue
		}
		if role == authz.RoleSuperAdmin {
			continue
		}
		actors = append(actors, shared.Actor{UserID: userID, TenantID: tenantID, Role: role})
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return actors, nil
}

func (j *MatrixWarmupJob) logger() *slog.Logger {
	if j.Logger != nil {
		return j.Logger.With(slog.String("job", TaskMatrixWarmup))
	}
	return slog.Default().With(slog.String("job", TaskMatrixWarmup))
}

func (j *MatrixWarmupJob) metrics() *jobmetrics.Metrics {
	if j.Metrics != nil {
		return j.Metrics
	}
	return defaultJobMetrics
}

func (j *MatrixWarmupJob) now() time.Time {
	if j.clock != nil {
		return j.clock()
	}
	return time.Now().UTC()
}
