package db

import (
	"context"
	"fmt"
	"time"
)

// LockUser は user_locks の行を UPDATE して同一ユーザの書き込みを直列化する。
// InnoDB では行ロックがコミットまで保持される。SQLite は DB 単位の書き込みロック。
func LockUser(ctx context.Context, tx DBTX, userID string, now time.Time) error {
	touch := func() (int64, error) {
		res, err := tx.ExecContext(ctx, `UPDATE user_locks SET touched_at = ? WHERE user_id = ?`, Stamp(now), userID)
		if err != nil {
			return 0, err
		}
		return res.RowsAffected()
	}

	n, err := touch()
	if err != nil {
		return fmt.Errorf("lock user %s: %w", userID, err)
	}
	if n > 0 {
		return nil
	}

	_, err = tx.ExecContext(ctx, `INSERT INTO user_locks (user_id, touched_at) VALUES (?, ?)`, userID, Stamp(now))
	if err == nil {
		return nil
	}
	if !IsDuplicateKey(err) {
		return fmt.Errorf("lock user %s: %w", userID, err)
	}
	// 並行リクエストが先に INSERT 済み。UPDATE で行ロックを取り直す
	if _, err := touch(); err != nil {
		return fmt.Errorf("lock user %s: %w", userID, err)
	}
	return nil
}
