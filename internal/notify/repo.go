package notify

import (
	"context"
	"encoding/json"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Topics other than "all" select profiles by user_type.
var roleTopics = map[string]bool{
	"dealer":  true,
	"general": true,
}

type Repo struct{ DB *pgxpool.Pool }

// InsertNotifications writes all rows in one transaction.
func (r *Repo) InsertNotifications(ctx context.Context, ns []Notification) error {
	if len(ns) == 0 {
		return nil
	}
	tx, err := r.DB.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	b := &pgx.Batch{}
	for _, n := range ns {
		b.Queue(`
			INSERT INTO notifications(user_id, type, title, message, reference_id, reference_type, created_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7)`,
			n.UserID, n.Type, n.Title, n.Message, nullable(n.ReferenceID), nullable(n.ReferenceType), n.CreatedAt)
	}
	if err := tx.SendBatch(ctx, b).Close(); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

func (r *Repo) InsertDeliveryLog(ctx context.Context, l DeliveryLog) error {
	data, err := json.Marshal(l.Data)
	if err != nil {
		return err
	}
	resp, err := json.Marshal(l.Result)
	if err != nil {
		return err
	}
	_, err = r.DB.Exec(ctx, `
		INSERT INTO notification_logs(user_id, user_ids, topic, title, body, data, fcm_response, success_count, failure_count)
		VALUES ($1, $2, $3, $4, $5, $6::jsonb, $7::jsonb, $8, $9)
	`, nullable(l.UserID), l.UserIDs, []string(l.Topics), l.Title, l.Body, string(data), string(resp),
		l.Result.SuccessCount, l.Result.FailureCount)
	return err
}

// PurgeDeliveryLogs deletes delivery log rows created before the cutoff.
func (r *Repo) PurgeDeliveryLogs(ctx context.Context, before time.Time) (int64, error) {
	ct, err := r.DB.Exec(ctx, `DELETE FROM notification_logs WHERE created_at < $1`, before)
	if err != nil {
		return 0, err
	}
	return ct.RowsAffected(), nil
}

// UsersForTopic resolves "all" to every profile holding a device token and a
// role topic to the profiles of that user_type holding one. Unknown topics
// select nobody.
func (r *Repo) UsersForTopic(ctx context.Context, topic string) ([]string, error) {
	const hasToken = `(p.fcm_token IS NOT NULL OR EXISTS (SELECT 1 FROM fcm_tokens t WHERE t.user_id = p.id))`
	var (
		rows pgx.Rows
		err  error
	)
	switch {
	case topic == TopicAll:
		rows, err = r.DB.Query(ctx, `SELECT p.id::text FROM profiles p WHERE `+hasToken+` ORDER BY p.id`)
	case roleTopics[topic]:
		rows, err = r.DB.Query(ctx, `SELECT p.id::text FROM profiles p WHERE p.user_type = $1 AND `+hasToken+` ORDER BY p.id`, topic)
	default:
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, pgx.RowTo[string])
}

func (r *Repo) DeviceTokens(ctx context.Context, userIDs []string) ([]Device, error) {
	if len(userIDs) == 0 {
		return nil, nil
	}
	rows, err := r.DB.Query(ctx, `
		SELECT id::text, fcm_token, '' FROM profiles
		WHERE id::text = ANY($1::text[]) AND fcm_token IS NOT NULL
		UNION ALL
		SELECT user_id::text, token, COALESCE(platform, '') FROM fcm_tokens
		WHERE user_id::text = ANY($1::text[])
	`, userIDs)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Device
	for rows.Next() {
		var d Device
		if err := rows.Scan(&d.UserID, &d.Token, &d.Platform); err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}
