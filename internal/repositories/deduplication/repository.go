package deduplication

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/Gobusters/ectoerror/httperror"
	"github.com/Gobusters/ectologger"
	"github.com/google/uuid"

	"github.com/Ramsey-B/clover/pkg/database"
	"github.com/Ramsey-B/clover/pkg/models"
	"github.com/Ramsey-B/clover/pkg/tracing"
)

const (
	DefaultMaxDisplay      = 25
	DefaultMinScoreDisplay = 0.7
)

var deduplicationColumns = []string{
	"id", "status", "last_deduplication", "duplicate_contacts", "deduplicated_contacts",
	"max_display", "min_score_display", "created_at", "updated_at",
}

// Repository handles deduplication job persistence
type Repository struct {
	db     database.DB
	logger ectologger.Logger
}

// NewRepository creates a new deduplication repository
func NewRepository(db database.DB, logger ectologger.Logger) *Repository {
	return &Repository{
		db:     db,
		logger: logger,
	}
}

// Create creates a new job in the new status
func (r *Repository) Create(ctx context.Context, req models.CreateDeduplicationRequest) (*models.Deduplication, error) {
	ctx, span := tracing.StartSpan(ctx, "deduplication.Repository.Create")
	defer span.End()

	now := time.Now().UTC()
	job := &models.Deduplication{
		ID:              uuid.New().String(),
		Status:          models.DeduplicationStatusNew,
		MaxDisplay:      req.MaxDisplay,
		MinScoreDisplay: req.MinScoreDisplay,
		CreatedAt:       now,
		UpdatedAt:       now,
		Groups:          req.Groups,
	}
	if job.MaxDisplay == 0 {
		job.MaxDisplay = DefaultMaxDisplay
	}
	if job.MinScoreDisplay == 0 {
		job.MinScoreDisplay = DefaultMinScoreDisplay
	}

	ib := r.db.Flavor().NewInsertBuilder()
	ib.InsertInto("deduplications")
	ib.Cols("id", "status", "duplicate_contacts", "deduplicated_contacts", "max_display", "min_score_display", "created_at", "updated_at")
	ib.Values(job.ID, job.Status, job.DuplicateContacts, job.DeduplicatedContacts, job.MaxDisplay, job.MinScoreDisplay, job.CreatedAt, job.UpdatedAt)

	query, args := ib.Build()
	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		r.logger.WithContext(ctx).WithError(err).Error("Failed to create deduplication")
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to create deduplication")
	}

	if len(job.Groups) > 0 {
		gb := r.db.Flavor().NewInsertBuilder()
		gb.InsertInto("deduplication_groups")
		gb.Cols("deduplication_id", "group_name")
		for _, g := range job.Groups {
			gb.Values(job.ID, g)
		}
		query, args := gb.Build()
		query += " ON CONFLICT DO NOTHING"
		if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
			r.logger.WithContext(ctx).WithError(err).WithField("deduplication_id", job.ID).Error("Failed to create deduplication groups")
			return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to create deduplication")
		}
	}

	return job, nil
}

// Get retrieves a job with its groups
func (r *Repository) Get(ctx context.Context, id string) (*models.Deduplication, error) {
	ctx, span := tracing.StartSpan(ctx, "deduplication.Repository.Get")
	defer span.End()

	sb := r.db.Flavor().NewSelectBuilder()
	sb.Select(deduplicationColumns...)
	sb.From("deduplications")
	sb.Where(sb.Equal("id", id))

	query, args := sb.Build()
	var job models.Deduplication
	if err := r.db.GetContext(ctx, &job, query, args...); err != nil {
		if database.IsNoRows(err) {
			return nil, httperror.NewHTTPError(http.StatusNotFound, fmt.Sprintf("deduplication %s not found", id))
		}
		r.logger.WithContext(ctx).WithError(err).Error("Failed to get deduplication")
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to get deduplication")
	}

	groups, err := r.listGroups(ctx, id)
	if err != nil {
		return nil, err
	}
	job.Groups = groups

	return &job, nil
}

// ListByStatus retrieves the jobs in a status, oldest first. Groups are not loaded.
func (r *Repository) ListByStatus(ctx context.Context, status models.DeduplicationStatus) ([]models.Deduplication, error) {
	ctx, span := tracing.StartSpan(ctx, "deduplication.Repository.ListByStatus")
	defer span.End()

	sb := r.db.Flavor().NewSelectBuilder()
	sb.Select(deduplicationColumns...)
	sb.From("deduplications")
	sb.Where(sb.Equal("status", status))
	sb.OrderBy("created_at", "id")

	query, args := sb.Build()
	jobs := make([]models.Deduplication, 0)
	if err := r.db.SelectContext(ctx, &jobs, query, args...); err != nil {
		r.logger.WithContext(ctx).WithError(err).Error("Failed to list deduplications")
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to list deduplications")
	}

	return jobs, nil
}

// UpdateStatus moves a job from one status to another. It fails with 409 when the job
// is no longer in the expected status.
func (r *Repository) UpdateStatus(ctx context.Context, id string, from, to models.DeduplicationStatus) error {
	ctx, span := tracing.StartSpan(ctx, "deduplication.Repository.UpdateStatus")
	defer span.End()

	ub := r.db.Flavor().NewUpdateBuilder()
	ub.Update("deduplications")
	ub.Set(
		ub.Assign("status", to),
		ub.Assign("updated_at", time.Now().UTC()),
	)
	ub.Where(
		ub.Equal("id", id),
		ub.Equal("status", from),
	)

	query, args := ub.Build()
	res, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		r.logger.WithContext(ctx).WithError(err).WithField("deduplication_id", id).Error("Failed to update deduplication status")
		return httperror.NewHTTPError(http.StatusInternalServerError, "failed to update deduplication status")
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return httperror.NewHTTPError(http.StatusConflict, fmt.Sprintf("deduplication %s is not %s", id, from))
	}
	return nil
}

// SaveResults stores the duplicate map of a finished run
func (r *Repository) SaveResults(ctx context.Context, id string, duplicates string, ranAt time.Time) error {
	ctx, span := tracing.StartSpan(ctx, "deduplication.Repository.SaveResults")
	defer span.End()

	ub := r.db.Flavor().NewUpdateBuilder()
	ub.Update("deduplications")
	ub.Set(
		ub.Assign("duplicate_contacts", duplicates),
		ub.Assign("last_deduplication", ranAt.UTC()),
		ub.Assign("updated_at", time.Now().UTC()),
	)
	ub.Where(ub.Equal("id", id))

	query, args := ub.Build()
	return r.exec(ctx, query, args, id, "save deduplication results")
}

// SaveResolved stores the resolved pair keys of a job
func (r *Repository) SaveResolved(ctx context.Context, id string, resolved string) error {
	ctx, span := tracing.StartSpan(ctx, "deduplication.Repository.SaveResolved")
	defer span.End()

	ub := r.db.Flavor().NewUpdateBuilder()
	ub.Update("deduplications")
	ub.Set(
		ub.Assign("deduplicated_contacts", resolved),
		ub.Assign("updated_at", time.Now().UTC()),
	)
	ub.Where(ub.Equal("id", id))

	query, args := ub.Build()
	return r.exec(ctx, query, args, id, "save resolved contacts")
}

func (r *Repository) exec(ctx context.Context, query string, args []any, id, action string) error {
	res, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		r.logger.WithContext(ctx).WithError(err).WithField("deduplication_id", id).Errorf("Failed to %s", action)
		return httperror.NewHTTPError(http.StatusInternalServerError, fmt.Sprintf("failed to %s", action))
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return httperror.NewHTTPError(http.StatusNotFound, fmt.Sprintf("deduplication %s not found", id))
	}
	return nil
}

func (r *Repository) listGroups(ctx context.Context, id string) ([]string, error) {
	sb := r.db.Flavor().NewSelectBuilder()
	sb.Select("group_name")
	sb.From("deduplication_groups")
	sb.Where(sb.Equal("deduplication_id", id))
	sb.OrderBy("group_name")

	query, args := sb.Build()
	groups := make([]string, 0)
	if err := r.db.SelectContext(ctx, &groups, query, args...); err != nil {
		r.logger.WithContext(ctx).WithError(err).WithField("deduplication_id", id).Error("Failed to list deduplication groups")
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to get deduplication")
	}
	return groups, nil
}
