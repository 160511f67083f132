package session

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type PostgresStore struct {
	pool   *pgxpool.Pool
	ttl    time.Duration
	logger *log.Logger
}

func NewPostgresStore(pool *pgxpool.Pool, ttl time.Duration, logger *log.Logger) *PostgresStore {
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}
	return &PostgresStore{pool: pool, ttl: ttl, logger: logger}
}

func (s *PostgresStore) Load(ctx context.Context, id string) (*Session, error) {
	const q = `
SELECT data::text, version, expires_at
FROM sessions
WHERE id = $1 AND expires_at > now()
`
	var (
		data      string
		version   int64
		expiresAt time.Time
	)
	err := s.pool.QueryRow(ctx, q, id).Scan(&data, &version, &expiresAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		s.logger.Printf("session store: load id=%s error=%v", id, err)
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	values, err := decodeValues([]byte(data))
	if err != nil {
		return nil, fmt.Errorf("decode session %s: %w", id, err)
	}
	return restore(id, version, values, expiresAt), nil
}

// Save writes the full document in one statement, guarded by the version the
// session was loaded with.
func (s *PostgresStore) Save(ctx context.Context, sess *Session) error {
	data, err := sess.Encode()
	if err != nil {
		return err
	}
	expiresAt := time.Now().UTC().Add(s.ttl)

	var (
		q    string
		args []interface{}
	)
	if sess.IsNew() {
		q = `
INSERT INTO sessions (id, data, version, expires_at)
VALUES ($1, $2::jsonb, 1, $3)
ON CONFLICT (id) DO UPDATE
SET data = EXCLUDED.data, version = 1, expires_at = EXCLUDED.expires_at
WHERE sessions.expires_at <= now()
RETURNING version
`
		args = []interface{}{sess.ID(), string(data), expiresAt}
	} else {
		q = `
UPDATE sessions
SET data = $2::jsonb, version = version + 1, expires_at = $3
WHERE id = $1 AND version = $4
RETURNING version
`
		args = []interface{}{sess.ID(), string(data), expiresAt, sess.Version()}
	}

	var version int64
	if err := s.pool.QueryRow(ctx, q, args...).Scan(&version); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			s.logger.Printf("session store: save id=%s version=%d conflict", sess.ID(), sess.Version())
			return ErrConflict
		}
		s.logger.Printf("session store: save id=%s error=%v", sess.ID(), err)
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	sess.committed(version, expiresAt)
	return nil
}

func (s *PostgresStore) Delete(ctx context.Context, id string) error {
	if _, err := s.pool.Exec(ctx, `DELETE FROM sessions WHERE id = $1`, id); err != nil {
		s.logger.Printf("session store: delete id=%s error=%v", id, err)
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return nil
}

// DeleteExpired purges expired rows and returns how many were removed.
func (s *PostgresStore) DeleteExpired(ctx context.Context) (int64, error) {
	cmd, err := s.pool.Exec(ctx, `DELETE FROM sessions WHERE expires_at <= now()`)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	s.logger.Printf("session store: purged expired count=%d", cmd.RowsAffected())
	return cmd.RowsAffected(), nil
}

// PurgeLoop calls DeleteExpired every interval until ctx is done.
func (s *PostgresStore) PurgeLoop(ctx context.Context, every time.Duration) {
	if every <= 0 {
		return
	}
	ticker := time.NewTicker(every)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := s.DeleteExpired(ctx); err != nil && ctx.Err() == nil {
				s.logger.Printf("session store: purge error=%v", err)
			}
		}
	}
}
