package repo

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/doug-martin/goqu/v9"
	_ "github.com/doug-martin/goqu/v9/dialect/sqlite3"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"

	"github.com/snipd/snipd/internal"
)

var shortLinkCols = []any{"id", "label", "original_url", "owner_id", "created_at", "updated_at"}

type shortLinkRow struct {
	ID          string `db:"id"`
	Label       string `db:"label"`
	OriginalURL string `db:"original_url"`
	OwnerID     string `db:"owner_id"`
	CreatedAt   Date   `db:"created_at"`
	UpdatedAt   Date   `db:"updated_at"`
}

type ShortLinksRepo struct {
	db *sql.DB
}

func NewShortLinksRepo(db *sql.DB) *ShortLinksRepo {
	return &ShortLinksRepo{db: db}
}

// Create inserts a new short link. A unique-constraint violation on the label
// column maps to ErrLabelTaken; this is the serialization point that closes
// the check-then-create race between concurrent writers.
func (r *ShortLinksRepo) Create(ctx context.Context, ownerID, label, originalURL string) (*internal.ShortLink, error) {
	executor := goqu.New("sqlite", r.db)

	log.Debug().Str("label", label).Str("owner_id", ownerID).Msg("creating short link")

	now := Date(time.Now().UTC())
	query := executor.Insert("short_links").
		Cols("id", "label", "original_url", "owner_id", "created_at", "updated_at").
		Vals([]any{uuid.NewString(), label, originalURL, ownerID, now, now}).
		Returning(shortLinkCols...)

	var row shortLinkRow
	found, err := query.Executor().ScanStructContext(ctx, &row)
	if err != nil {
		if isUniqueViolation(err) {
			log.Warn().Str("label", label).Msg("label taken at insert time")
			return nil, internal.ErrLabelTaken
		}
		log.Error().Err(err).Str("label", label).Msg("failed to create short link")
		return nil, fmt.Errorf("%w: %v", internal.ErrStoreUnavailable, err)
	}
	if !found {
		log.Warn().Str("label", label).Msg("short link creation returned no rows")
		return nil, fmt.Errorf("%w: insert returned no rows", internal.ErrStoreUnavailable)
	}

	link := row.toDomain()
	log.Info().Str("id", link.ID).Str("label", link.Label).Msg("short link created")

	return link, nil
}

func (r *ShortLinksRepo) GetByID(ctx context.Context, id string) (*internal.ShortLink, error) {
	return r.getOne(ctx, goqu.Ex{"id": id})
}

// GetByLabel looks up a link by exact label match against the stored,
// already-normalized value.
func (r *ShortLinksRepo) GetByLabel(ctx context.Context, label string) (*internal.ShortLink, error) {
	return r.getOne(ctx, goqu.Ex{"label": label})
}

func (r *ShortLinksRepo) getOne(ctx context.Context, where goqu.Ex) (*internal.ShortLink, error) {
	executor := goqu.New("sqlite", r.db)

	query := executor.From("short_links").Where(where).Select(shortLinkCols...)

	var row shortLinkRow
	found, err := query.Executor().ScanStructContext(ctx, &row)
	if err != nil {
		log.Error().Err(err).Msg("failed to fetch short link")
		return nil, fmt.Errorf("%w: %v", internal.ErrStoreUnavailable, err)
	}
	if !found {
		return nil, internal.ErrNotFound
	}

	return row.toDomain(), nil
}

// UpdateURL replaces the destination and bumps updated_at. The label is
// immutable and not part of the statement.
func (r *ShortLinksRepo) UpdateURL(ctx context.Context, id, originalURL string) (*internal.ShortLink, error) {
	executor := goqu.New("sqlite", r.db)

	log.Debug().Str("id", id).Msg("updating short link destination")

	query := executor.Update("short_links").
		Set(goqu.Record{"original_url": originalURL, "updated_at": Date(time.Now().UTC())}).
		Where(goqu.Ex{"id": id}).
		Returning(shortLinkCols...)

	var row shortLinkRow
	found, err := query.Executor().ScanStructContext(ctx, &row)
	if err != nil {
		log.Error().Err(err).Str("id", id).Msg("failed to update short link")
		return nil, fmt.Errorf("%w: %v", internal.ErrStoreUnavailable, err)
	}
	if !found {
		return nil, internal.ErrNotFound
	}

	return row.toDomain(), nil
}

// Delete hard-deletes the record.
func (r *ShortLinksRepo) Delete(ctx context.Context, id string) error {
	executor := goqu.New("sqlite", r.db)

	res, err := executor.Delete("short_links").Where(goqu.Ex{"id": id}).Executor().ExecContext(ctx)
	if err != nil {
		log.Error().Err(err).Str("id", id).Msg("failed to delete short link")
		return fmt.Errorf("%w: %v", internal.ErrStoreUnavailable, err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("%w: %v", internal.ErrStoreUnavailable, err)
	}
	if affected == 0 {
		return internal.ErrNotFound
	}

	log.Info().Str("id", id).Msg("short link deleted")
	return nil
}

func (r *ShortLinksRepo) LabelExists(ctx context.Context, label string) (bool, error) {
	executor := goqu.New("sqlite", r.db)

	count, err := executor.From("short_links").Where(goqu.Ex{"label": label}).CountContext(ctx)
	if err != nil {
		log.Error().Err(err).Str("label", label).Msg("failed to check label existence")
		return false, fmt.Errorf("%w: %v", internal.ErrStoreUnavailable, err)
	}
	return count > 0, nil
}

func (r *ShortLinksRepo) ListByOwner(ctx context.Context, ownerID string) ([]*internal.ShortLink, error) {
	executor := goqu.New("sqlite", r.db)

	query := executor.From("short_links").
		Where(goqu.Ex{"owner_id": ownerID}).
		Select(shortLinkCols...).
		Order(goqu.C("created_at").Desc())

	var rows []shortLinkRow
	if err := query.Executor().ScanStructsContext(ctx, &rows); err != nil {
		log.Error().Err(err).Str("owner_id", ownerID).Msg("failed to list short links")
		return nil, fmt.Errorf("%w: %v", internal.ErrStoreUnavailable, err)
	}

	links := make([]*internal.ShortLink, len(rows))
	for i, row := range rows {
		links[i] = row.toDomain()
	}
	return links, nil
}

func (r *shortLinkRow) toDomain() *internal.ShortLink {
	return &internal.ShortLink{
		ID:          r.ID,
		Label:       r.Label,
		OriginalURL: r.OriginalURL,
		OwnerID:     r.OwnerID,
		CreatedAt:   r.CreatedAt.Time(),
		UpdatedAt:   r.UpdatedAt.Time(),
	}
}

func isUniqueViolation(err error) bool {
	var se *sqlite.Error
	return errors.As(err, &se) && se.Code() == sqlite3.SQLITE_CONSTRAINT_UNIQUE
}
