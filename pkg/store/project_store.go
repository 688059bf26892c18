package store

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ProjectStore implements the tenant-root CRUD of spec §3.
type ProjectStore struct {
	pool *pgxpool.Pool
}

// NewProjectStore builds a ProjectStore over an open pool.
func NewProjectStore(pool *pgxpool.Pool) *ProjectStore {
	return &ProjectStore{pool: pool}
}

// CreateProject inserts a new project.
func (s *ProjectStore) CreateProject(ctx context.Context, name string) (*Project, error) {
	var p Project
	err := s.pool.QueryRow(ctx,
		`INSERT INTO projects (name) VALUES ($1) RETURNING id, name, created_at, updated_at`,
		name).Scan(&p.ID, &p.Name, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// FetchProject returns one project by id.
func (s *ProjectStore) FetchProject(ctx context.Context, projectID uuid.UUID) (*Project, error) {
	var p Project
	err := s.pool.QueryRow(ctx,
		`SELECT id, name, created_at, updated_at FROM projects WHERE id = $1`, projectID).
		Scan(&p.ID, &p.Name, &p.CreatedAt, &p.UpdatedAt)
	if err == pgx.ErrNoRows {
		return nil, fmt.Errorf("%w: project %s", ErrNotFound, projectID)
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// SpaceStore implements per-project space CRUD.
type SpaceStore struct {
	pool *pgxpool.Pool
}

// NewSpaceStore builds a SpaceStore over an open pool.
func NewSpaceStore(pool *pgxpool.Pool) *SpaceStore {
	return &SpaceStore{pool: pool}
}

// CreateSpace inserts a new space under a project.
func (s *SpaceStore) CreateSpace(ctx context.Context, projectID uuid.UUID, name string) (*Space, error) {
	var sp Space
	err := s.pool.QueryRow(ctx,
		`INSERT INTO spaces (project_id, name) VALUES ($1, $2)
		 RETURNING id, project_id, name, created_at, updated_at`,
		projectID, name).Scan(&sp.ID, &sp.ProjectID, &sp.Name, &sp.CreatedAt, &sp.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &sp, nil
}

// FetchSpace returns one space by id.
func (s *SpaceStore) FetchSpace(ctx context.Context, spaceID uuid.UUID) (*Space, error) {
	var sp Space
	err := s.pool.QueryRow(ctx,
		`SELECT id, project_id, name, created_at, updated_at FROM spaces WHERE id = $1`, spaceID).
		Scan(&sp.ID, &sp.ProjectID, &sp.Name, &sp.CreatedAt, &sp.UpdatedAt)
	if err == pgx.ErrNoRows {
		return nil, fmt.Errorf("%w: space %s", ErrNotFound, spaceID)
	}
	if err != nil {
		return nil, err
	}
	return &sp, nil
}

// ListSpacesByProject returns every space owned by a project.
func (s *SpaceStore) ListSpacesByProject(ctx context.Context, projectID uuid.UUID) ([]*Space, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, project_id, name, created_at, updated_at FROM spaces WHERE project_id = $1 ORDER BY created_at ASC`,
		projectID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var spaces []*Space
	for rows.Next() {
		var sp Space
		if err := rows.Scan(&sp.ID, &sp.ProjectID, &sp.Name, &sp.CreatedAt, &sp.UpdatedAt); err != nil {
			return nil, err
		}
		spaces = append(spaces, &sp)
	}
	return spaces, rows.Err()
}
