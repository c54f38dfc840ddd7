package syncagent

import (
	"database/sql"
	"encoding/json"
	"fmt"

	_ "modernc.org/sqlite"
)

const queueSchema = `
CREATE TABLE IF NOT EXISTS offline_actions (
    seq        INTEGER PRIMARY KEY AUTOINCREMENT,
    player_id  TEXT NOT NULL,
    payload    TEXT NOT NULL,
    queued_at  TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_offline_actions_player ON offline_actions(player_id);
`

// SQLiteQueue is the durable Queue: an append-only log in a local sqlite
// file that survives process restarts.
type SQLiteQueue struct {
	db *sql.DB
}

func OpenSQLiteQueue(path string) (*SQLiteQueue, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open queue db: %w", err)
	}
	if _, err := db.Exec(queueSchema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create queue schema: %w", err)
	}
	return &SQLiteQueue{db: db}, nil
}

func (q *SQLiteQueue) Enqueue(a Action) error {
	payload, err := json.Marshal(a)
	if err != nil {
		return err
	}
	_, err = q.db.Exec(
		`INSERT INTO offline_actions (player_id, payload, queued_at) VALUES (?, ?, ?)`,
		a.PlayerID, string(payload), a.QueuedAt.UTC().Format("2006-01-02T15:04:05.000Z"),
	)
	return err
}

func (q *SQLiteQueue) Drain(playerID string) ([]Action, error) {
	rows, err := q.db.Query(
		`SELECT seq, payload FROM offline_actions WHERE player_id = ? ORDER BY seq ASC`,
		playerID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Action
	for rows.Next() {
		var seq int64
		var payload string
		if err := rows.Scan(&seq, &payload); err != nil {
			return nil, err
		}
		var a Action
		if err := json.Unmarshal([]byte(payload), &a); err != nil {
			return nil, err
		}
		a.Seq = seq
		out = append(out, a)
	}
	return out, rows.Err()
}

func (q *SQLiteQueue) ClearThrough(playerID string, seq int64) error {
	_, err := q.db.Exec(
		`DELETE FROM offline_actions WHERE player_id = ? AND seq <= ?`,
		playerID, seq,
	)
	return err
}

func (q *SQLiteQueue) Clear(playerID string) error {
	_, err := q.db.Exec(`DELETE FROM offline_actions WHERE player_id = ?`, playerID)
	return err
}

func (q *SQLiteQueue) Close() error {
	return q.db.Close()
}
