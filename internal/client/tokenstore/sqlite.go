package tokenstore

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/dmitrijs2005/bezrook/internal/client/repositories/metadata"
	"github.com/dmitrijs2005/bezrook/internal/dbx"
)

// TokenKey is the metadata row holding the token.
const TokenKey = "auth_token"

type SQLite struct {
	db *sql.DB
}

// NewSQLite expects a database migrated with client.RunMigrations.
func NewSQLite(db *sql.DB) *SQLite {
	return &SQLite{db: db}
}

func (s *SQLite) Set(ctx context.Context, token string) error {
	if token == "" {
		return s.Clear(ctx)
	}
	err := dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		return metadata.NewSQLiteRepository(tx).Set(ctx, TokenKey, []byte(token))
	})
	if err != nil {
		return fmt.Errorf("store token: %w", err)
	}
	return nil
}

func (s *SQLite) Get(ctx context.Context) (string, bool, error) {
	v, err := metadata.NewSQLiteRepository(s.db).Get(ctx, TokenKey)
	if err != nil {
		return "", false, fmt.Errorf("load token: %w", err)
	}
	if len(v) == 0 {
		return "", false, nil
	}
	return string(v), true, nil
}

func (s *SQLite) Clear(ctx context.Context) error {
	if err := metadata.NewSQLiteRepository(s.db).Delete(ctx, TokenKey); err != nil {
		return fmt.Errorf("clear token: %w", err)
	}
	return nil
}
