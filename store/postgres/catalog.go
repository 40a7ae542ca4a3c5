package postgres

import (
	"context"
	"database/sql"
	"errors"

	"learnhub/models"
	"learnhub/store"
)

// CatalogRepository is a PostgreSQL implementation of store.CatalogRepository.
// Catalog records are managed elsewhere; this service only reads them.
type CatalogRepository struct {
	db *sql.DB
}

// NewCatalogRepository creates a new PostgreSQL catalog repository.
func NewCatalogRepository(db *sql.DB) *CatalogRepository {
	return &CatalogRepository{db: db}
}

func (r *CatalogRepository) UserByID(ctx context.Context, id string) (*models.User, error) {
	return r.scanUser(r.db.QueryRowContext(ctx, `
		SELECT id, name, email, role, institution_id, created_at
		FROM users WHERE id = $1`, id))
}

func (r *CatalogRepository) UserByToken(ctx context.Context, apiToken string) (*models.User, error) {
	return r.scanUser(r.db.QueryRowContext(ctx, `
		SELECT id, name, email, role, institution_id, created_at
		FROM users WHERE api_token = $1`, apiToken))
}

func (r *CatalogRepository) scanUser(row *sql.Row) (*models.User, error) {
	var u models.User
	var institutionID sql.NullString
	err := row.Scan(&u.ID, &u.Name, &u.Email, &u.Role, &institutionID, &u.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	u.InstitutionID = strOf(institutionID)
	return &u, nil
}

func (r *CatalogRepository) CourseByID(ctx context.Context, id string) (*models.Course, error) {
	var c models.Course
	var instructorID sql.NullString
	err := r.db.QueryRowContext(ctx, `
		SELECT id, title, institution_id, instructor_id, price, currency, created_at
		FROM courses WHERE id = $1`, id,
	).Scan(&c.ID, &c.Title, &c.InstitutionID, &instructorID, &c.Price, &c.Currency, &c.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	c.InstructorID = strOf(instructorID)
	return &c, nil
}

func (r *CatalogRepository) InstitutionByID(ctx context.Context, id string) (*models.Institution, error) {
	var inst models.Institution
	var template, folder sql.NullString
	err := r.db.QueryRowContext(ctx, `
		SELECT id, name, slug, certificate_template, certificate_folder, created_at
		FROM institutions WHERE id = $1`, id,
	).Scan(&inst.ID, &inst.Name, &inst.Slug, &template, &folder, &inst.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	inst.CertificateTemplate = strOf(template)
	inst.CertificateFolder = strOf(folder)
	return &inst, nil
}
