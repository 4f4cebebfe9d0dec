package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/lib/pq"

	"github.com/mohammad-safakhou/postwise/internal/content"
)

// ErrOrganizationNotFound is returned when an organization id is unknown.
var ErrOrganizationNotFound = errors.New("organization not found")

// Store wraps the Postgres database holding organization profiles and the
// archive of generated posts.
type Store struct {
	DB *sql.DB
}

// NewWithDSN constructs the Store using an explicit Postgres DSN.
func NewWithDSN(ctx context.Context, dsn string) (*Store, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, err
	}
	if err := db.PingContext(ctx); err != nil {
		return nil, err
	}
	return &Store{DB: db}, nil
}

// GetOrganization loads one organization profile.
func (s *Store) GetOrganization(ctx context.Context, id string) (content.Organization, error) {
	var org content.Organization
	err := s.DB.QueryRowContext(ctx,
		`SELECT id, name, industry, tone, audience, description FROM organizations WHERE id=$1`, id,
	).Scan(&org.ID, &org.Name, &org.Industry, &org.Tone, &org.Audience, &org.Description)
	if errors.Is(err, sql.ErrNoRows) {
		return content.Organization{}, fmt.Errorf("%w: %s", ErrOrganizationNotFound, id)
	}
	if err != nil {
		return content.Organization{}, err
	}
	return org, nil
}

// RecentPostTitles returns the newest post titles for an organization, used
// to steer idea generation away from repeats.
func (s *Store) RecentPostTitles(ctx context.Context, orgID string, limit int) ([]string, error) {
	if limit <= 0 {
		limit = 10
	}
	rows, err := s.DB.QueryContext(ctx,
		`SELECT title FROM posts WHERE organization_id=$1 ORDER BY created_at DESC LIMIT $2`, orgID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var titles []string
	for rows.Next() {
		var t string
		if err := rows.Scan(&t); err != nil {
			return nil, err
		}
		titles = append(titles, t)
	}
	return titles, rows.Err()
}

// SavePosts persists the finalized suggestions of a completed chain in one
// transaction.
func (s *Store) SavePosts(ctx context.Context, chainID string, posts []content.Post) error {
	if len(posts) == 0 {
		return nil
	}
	tx, err := s.DB.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()
	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO posts (id, chain_id, organization_id, platform, title, body, hashtags, seo_keywords, seo_score, needs_retry, scheduled_at, status, created_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13)
		ON CONFLICT (id) DO NOTHING`)
	if err != nil {
		return err
	}
	defer stmt.Close()
	now := time.Now().UTC()
	for _, p := range posts {
		var scheduledAt sql.NullTime
		if !p.ScheduledAt.IsZero() {
			scheduledAt = sql.NullTime{Time: p.ScheduledAt.UTC(), Valid: true}
		}
		if _, err := stmt.ExecContext(ctx,
			p.ID, chainID, p.OrganizationID, p.Platform, p.Title, p.Body,
			pq.Array(p.Hashtags), pq.Array(p.SEO.Keywords), p.SEO.Score,
			p.NeedsRetry, scheduledAt, p.Status, now,
		); err != nil {
			return err
		}
	}
	return tx.Commit()
}
