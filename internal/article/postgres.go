package article

import (
	"context"
	_ "embed"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/SergeyParamoshkin/articles/internal/model"
)

//go:embed schema.sql
var schemaSQL string

// DB is the subset of *pgxpool.Pool the store needs.
type DB interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Ping(ctx context.Context) error
}

const (
	articleColumns = `article_id, author, content, created, updated`

	listSQL   = `SELECT ` + articleColumns + ` FROM articles ORDER BY article_id`
	getSQL    = `SELECT ` + articleColumns + ` FROM articles WHERE article_id = $1`
	createSQL = `INSERT INTO articles (author, content, created, updated)
		VALUES ($1, $2, $3, $3)
		RETURNING ` + articleColumns
	// NULL arguments keep the stored value.
	updateSQL = `UPDATE articles SET
			author = COALESCE($2, author),
			content = COALESCE($3, content),
			updated = GREATEST($4, created)
		WHERE article_id = $1
		RETURNING ` + articleColumns
	deleteSQL = `DELETE FROM articles WHERE article_id = $1`
)

// PostgresStore keeps articles in the articles table. Every operation is a
// single statement.
type PostgresStore struct {
	db    DB
	clock Clock
}

var _ Store = (*PostgresStore)(nil)

func NewPostgresStore(db DB, clock Clock) *PostgresStore {
	return &PostgresStore{db: db, clock: clock}
}

// Connect opens a pool for dsn and fails fast when the database is not
// reachable.
func Connect(ctx context.Context, dsn string) (*pgxpool.Pool, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse database url: %w", err)
	}

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("create connection pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()

		return nil, fmt.Errorf("ping database: %w", err)
	}

	return pool, nil
}

// EnsureSchema creates the articles table when it does not exist yet.
func EnsureSchema(ctx context.Context, db DB) error {
	if _, err := db.Exec(ctx, schemaSQL); err != nil {
		return fmt.Errorf("create articles table: %w", err)
	}

	return nil
}

func (s *PostgresStore) List(ctx context.Context) ([]*model.Article, error) {
	rows, err := s.db.Query(ctx, listSQL)
	if err != nil {
		return nil, fmt.Errorf("list articles: %w", err)
	}

	list, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (*model.Article, error) {
		return scanArticle(row)
	})
	if err != nil {
		return nil, fmt.Errorf("list articles: %w", err)
	}

	return list, nil
}

func (s *PostgresStore) Get(ctx context.Context, id int64) (*model.Article, error) {
	a, err := scanArticle(s.db.QueryRow(ctx, getSQL, id))
	if err != nil {
		return nil, notFound(id, "get article", err)
	}

	return a, nil
}

func (s *PostgresStore) Create(ctx context.Context, author, content string) (*model.Article, error) {
	a, err := scanArticle(s.db.QueryRow(ctx, createSQL, author, content, s.clock.now()))
	if err != nil {
		return nil, fmt.Errorf("create article: %w", err)
	}

	return a, nil
}

func (s *PostgresStore) Update(ctx context.Context, id int64, patch model.ArticlePatch) (*model.Article, error) {
	row := s.db.QueryRow(ctx, updateSQL, id, patch.Author.Ptr(), patch.Content.Ptr(), s.clock.now())

	a, err := scanArticle(row)
	if err != nil {
		return nil, notFound(id, "update article", err)
	}

	return a, nil
}

func (s *PostgresStore) Delete(ctx context.Context, id int64) error {
	tag, err := s.db.Exec(ctx, deleteSQL, id)
	if err != nil {
		return fmt.Errorf("delete article %d: %w", id, err)
	}

	if tag.RowsAffected() == 0 {
		return &model.NotFoundError{ID: id}
	}

	return nil
}

func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.db.Ping(ctx)
}

func scanArticle(row pgx.Row) (*model.Article, error) {
	var a model.Article
	if err := row.Scan(&a.ID, &a.Author, &a.Content, &a.Created, &a.Updated); err != nil {
		return nil, err
	}

	return &a, nil
}

func notFound(id int64, op string, err error) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return &model.NotFoundError{ID: id}
	}

	return fmt.Errorf("%s %d: %w", op, id, err)
}
