package sqlxrepos

import (
	"context"

	"github.com/pkg/errors"

	"github.com/trezcool/ratiba/core"
	"github.com/trezcool/ratiba/core/session"
)

// AdvisoryLocker holds Postgres session-level advisory locks on a dedicated connection.
// Keys are hashed with hashtext(); a collision only serializes unrelated requests.
type AdvisoryLocker struct {
	db     core.DB
	logger core.Logger
}

var _ session.Locker = (*AdvisoryLocker)(nil)

func NewAdvisoryLocker(db core.DB, logger core.Logger) *AdvisoryLocker {
	return &AdvisoryLocker{db: db, logger: logger}
}

func (l *AdvisoryLocker) Acquire(ctx context.Context, keys ...string) (func(), error) {
	if len(keys) == 0 {
		return func() {}, nil
	}
	conn, err := l.db.Conn(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "getting lock connection")
	}

	held := make([]string, 0, len(keys))
	release := func() {
		bg := context.Background()
		for i := len(held) - 1; i >= 0; i-- {
			if _, err := conn.ExecContext(bg, "SELECT pg_advisory_unlock(hashtext($1))", held[i]); err != nil {
				l.logger.Error("releasing advisory lock", errors.Wrap(err, held[i]))
			}
		}
		_ = conn.Close()
	}

	for _, k := range keys {
		if _, err = conn.ExecContext(ctx, "SELECT pg_advisory_lock(hashtext($1))", k); err != nil {
			release()
			return nil, errors.Wrapf(err, "locking %s", k)
		}
		held = append(held, k)
	}
	return release, nil
}
