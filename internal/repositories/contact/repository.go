package contact

import (
	"context"
	"fmt"
	"net/http"
	"sort"
	"time"

	"github.com/Gobusters/ectoerror/httperror"
	"github.com/Gobusters/ectologger"
	"github.com/google/uuid"

	"github.com/Ramsey-B/clover/pkg/database"
	"github.com/Ramsey-B/clover/pkg/models"
	"github.com/Ramsey-B/clover/pkg/tracing"
)

var contactColumns = []string{
	"id", "title", "first_name", "last_name", "position", "organisation", "department",
	"street_1", "street_2", "zip", "city", "country", "email", "second_email", "third_email",
	"created_at", "updated_at", "deleted_at",
}

// Repository handles contact persistence
type Repository struct {
	db     database.DB
	logger ectologger.Logger
}

// NewRepository creates a new contact repository
func NewRepository(db database.DB, logger ectologger.Logger) *Repository {
	return &Repository{
		db:     db,
		logger: logger,
	}
}

// Create stores a new contact and adds it to the given groups
func (r *Repository) Create(ctx context.Context, c *models.Contact, groups ...string) (*models.Contact, error) {
	ctx, span := tracing.StartSpan(ctx, "contact.Repository.Create")
	defer span.End()

	if c.ID == "" {
		c.ID = uuid.New().String()
	}
	c.CreatedAt = time.Now().UTC()
	c.UpdatedAt = c.CreatedAt

	ib := r.db.Flavor().NewInsertBuilder()
	ib.InsertInto("contacts")
	ib.Cols(contactColumns[:len(contactColumns)-1]...)
	ib.Values(c.ID, c.Title, c.FirstName, c.LastName, c.Position, c.Organisation, c.Department,
		c.Street1, c.Street2, c.Zip, c.City, c.Country, c.Email, c.SecondEmail, c.ThirdEmail,
		c.CreatedAt, c.UpdatedAt)

	query, args := ib.Build()
	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		r.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{"contact_id": c.ID}).Error("Failed to create contact")
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to create contact")
	}

	if err := r.AddToGroups(ctx, c.ID, groups...); err != nil {
		return nil, err
	}

	return c, nil
}

// AddToGroups adds a contact to groups it is not yet a member of
func (r *Repository) AddToGroups(ctx context.Context, contactID string, groups ...string) error {
	ctx, span := tracing.StartSpan(ctx, "contact.Repository.AddToGroups")
	defer span.End()

	if len(groups) == 0 {
		return nil
	}

	ib := r.db.Flavor().NewInsertBuilder()
	ib.InsertInto("contact_groups")
	ib.Cols("contact_id", "group_name")
	for _, g := range groups {
		ib.Values(contactID, g)
	}

	query, args := ib.Build()
	query += " ON CONFLICT DO NOTHING"
	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		r.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{"contact_id": contactID}).Error("Failed to add contact to groups")
		return httperror.NewHTTPError(http.StatusInternalServerError, "failed to add contact to groups")
	}
	return nil
}

// Get retrieves a contact by ID
func (r *Repository) Get(ctx context.Context, id string) (*models.Contact, error) {
	ctx, span := tracing.StartSpan(ctx, "contact.Repository.Get")
	defer span.End()

	sb := r.db.Flavor().NewSelectBuilder()
	sb.Select(contactColumns...)
	sb.From("contacts")
	sb.Where(
		sb.Equal("id", id),
		sb.IsNull("deleted_at"),
	)

	query, args := sb.Build()
	var c models.Contact
	if err := r.db.GetContext(ctx, &c, query, args...); err != nil {
		if database.IsNoRows(err) {
			return nil, httperror.NewHTTPError(http.StatusNotFound, fmt.Sprintf("contact %s not found", id))
		}
		r.logger.WithContext(ctx).WithError(err).Error("Failed to get contact")
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to get contact")
	}

	return &c, nil
}

// List retrieves every contact that is not deleted, oldest first
func (r *Repository) List(ctx context.Context) ([]models.Contact, error) {
	ctx, span := tracing.StartSpan(ctx, "contact.Repository.List")
	defer span.End()

	sb := r.db.Flavor().NewSelectBuilder()
	sb.Select(contactColumns...)
	sb.From("contacts")
	sb.Where(sb.IsNull("deleted_at"))
	sb.OrderBy("created_at", "id")

	query, args := sb.Build()
	contacts := make([]models.Contact, 0)
	if err := r.db.SelectContext(ctx, &contacts, query, args...); err != nil {
		r.logger.WithContext(ctx).WithError(err).Error("Failed to list contacts")
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to list contacts")
	}

	return contacts, nil
}

// ListIDsInGroups retrieves the ids of contacts in any of the groups, ordered by id
func (r *Repository) ListIDsInGroups(ctx context.Context, groups []string) ([]string, error) {
	ctx, span := tracing.StartSpan(ctx, "contact.Repository.ListIDsInGroups")
	defer span.End()

	ids := make([]string, 0)
	if len(groups) == 0 {
		return ids, nil
	}

	sb := r.db.Flavor().NewSelectBuilder()
	sb.Select("c.id").Distinct()
	sb.From("contacts c")
	sb.Join("contact_groups cg", "cg.contact_id = c.id")
	sb.Where(
		sb.In("cg.group_name", toArgs(groups)...),
		sb.IsNull("c.deleted_at"),
	)
	sb.OrderBy("c.id")

	query, args := sb.Build()
	if err := r.db.SelectContext(ctx, &ids, query, args...); err != nil {
		r.logger.WithContext(ctx).WithError(err).Error("Failed to list contacts in groups")
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to list contacts in groups")
	}

	return ids, nil
}

// GetByIDs retrieves the contacts with the given ids. Unknown and deleted ids are absent from the result.
func (r *Repository) GetByIDs(ctx context.Context, ids []string) (map[string]models.Contact, error) {
	ctx, span := tracing.StartSpan(ctx, "contact.Repository.GetByIDs")
	defer span.End()

	result := make(map[string]models.Contact, len(ids))
	if len(ids) == 0 {
		return result, nil
	}

	sb := r.db.Flavor().NewSelectBuilder()
	sb.Select(contactColumns...)
	sb.From("contacts")
	sb.Where(
		sb.In("id", toArgs(ids)...),
		sb.IsNull("deleted_at"),
	)

	query, args := sb.Build()
	var contacts []models.Contact
	if err := r.db.SelectContext(ctx, &contacts, query, args...); err != nil {
		r.logger.WithContext(ctx).WithError(err).Error("Failed to get contacts by ids")
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to get contacts")
	}

	for _, c := range contacts {
		result[c.ID] = c
	}
	return result, nil
}

// Update sets the given columns of a contact
func (r *Repository) Update(ctx context.Context, id string, update models.ContactUpdate) error {
	ctx, span := tracing.StartSpan(ctx, "contact.Repository.Update")
	defer span.End()

	fields := make([]string, 0, len(update))
	for field := range update {
		if _, ok := models.UpdatableContactFields[field]; !ok {
			return httperror.NewHTTPError(http.StatusBadRequest, fmt.Sprintf("contact field %s cannot be updated", field))
		}
		fields = append(fields, field)
	}
	sort.Strings(fields)

	ub := r.db.Flavor().NewUpdateBuilder()
	ub.Update("contacts")
	assignments := make([]string, 0, len(fields)+1)
	for _, field := range fields {
		assignments = append(assignments, ub.Assign(field, update[field]))
	}
	assignments = append(assignments, ub.Assign("updated_at", time.Now().UTC()))
	ub.Set(assignments...)
	ub.Where(
		ub.Equal("id", id),
		ub.IsNull("deleted_at"),
	)

	query, args := ub.Build()
	return r.execOne(ctx, query, args, id, "update")
}

// Delete marks a contact as deleted
func (r *Repository) Delete(ctx context.Context, id string) error {
	ctx, span := tracing.StartSpan(ctx, "contact.Repository.Delete")
	defer span.End()

	now := time.Now().UTC()
	ub := r.db.Flavor().NewUpdateBuilder()
	ub.Update("contacts")
	ub.Set(
		ub.Assign("deleted_at", now),
		ub.Assign("updated_at", now),
	)
	ub.Where(
		ub.Equal("id", id),
		ub.IsNull("deleted_at"),
	)

	query, args := ub.Build()
	return r.execOne(ctx, query, args, id, "delete")
}

func (r *Repository) execOne(ctx context.Context, query string, args []any, id, action string) error {
	res, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		r.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{"contact_id": id}).Errorf("Failed to %s contact", action)
		return httperror.NewHTTPError(http.StatusInternalServerError, fmt.Sprintf("failed to %s contact", action))
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return httperror.NewHTTPError(http.StatusInternalServerError, fmt.Sprintf("failed to %s contact", action))
	}
	if affected == 0 {
		return httperror.NewHTTPError(http.StatusNotFound, fmt.Sprintf("contact %s not found", id))
	}
	return nil
}

func toArgs(values []string) []any {
	args := make([]any, len(values))
	for i, v := range values {
		args[i] = v
	}
	return args
}
