package notification

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/Abhinaba-code/curalinkproject-sub000/internal/platform/apperr"
	"github.com/Abhinaba-code/curalinkproject-sub000/internal/platform/db"
)

type queryable interface {
	Query(ctx context.Context, sql string, args ...interface{}) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...interface{}) pgx.Row
	Exec(ctx context.Context, sql string, args ...interface{}) (pgconn.CommandTag, error)
}

type repoPG struct{ pool *pgxpool.Pool }

func NewRepoPG(pool *pgxpool.Pool) Repository {
	return &repoPG{pool: pool}
}

func (r *repoPG) conn(ctx context.Context) queryable {
	if tx := db.TxFromContext(ctx); tx != nil {
		return tx
	}
	return r.pool
}

const notifCols = `id, kind, target_ref, target_label, subject_ref, actor_id, actor_display_name,
	recipient, reason, read, linked_reply_content, linked_source, created_at`

func (r *repoPG) scan(row pgx.Row) (*Notification, error) {
	var (
		n            Notification
		replyContent *string
		source       []byte
	)
	err := row.Scan(&n.ID, &n.Kind, &n.TargetRef, &n.TargetLabel, &n.SubjectRef,
		&n.ActorID, &n.ActorDisplayName, &n.Recipient, &n.Reason, &n.Read,
		&replyContent, &source, &n.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, apperr.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	if replyContent != nil {
		n.LinkedReply = &LinkedReply{Content: *replyContent}
		if len(source) > 0 {
			var src Notification
			if err := json.Unmarshal(source, &src); err != nil {
				return nil, fmt.Errorf("decode linked source of notification %d: %w", n.ID, err)
			}
			n.LinkedReply.Source = &src
		}
	}
	return &n, nil
}

func (r *repoPG) scanAll(rows pgx.Rows) ([]*Notification, error) {
	defer rows.Close()
	var items []*Notification
	for rows.Next() {
		n, err := r.scan(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, n)
	}
	return items, rows.Err()
}

func (r *repoPG) Create(ctx context.Context, n *Notification) error {
	var (
		replyContent *string
		source       []byte
	)
	if n.LinkedReply != nil {
		replyContent = &n.LinkedReply.Content
		if n.LinkedReply.Source != nil {
			b, err := json.Marshal(n.LinkedReply.Source)
			if err != nil {
				return fmt.Errorf("encode linked source: %w", err)
			}
			source = b
		}
	}
	// The partial unique indexes on active requests and on answered requests
	// make a duplicate insert a no-op that returns no row.
	err := r.conn(ctx).QueryRow(ctx, `
		INSERT INTO notifications (kind, target_ref, target_label, subject_ref, actor_id,
			actor_display_name, recipient, reason, read, linked_reply_content, linked_source)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)
		ON CONFLICT DO NOTHING
		RETURNING id, created_at`,
		n.Kind, n.TargetRef, n.TargetLabel, n.SubjectRef, n.ActorID,
		n.ActorDisplayName, n.Recipient, n.Reason, n.Read, replyContent, source,
	).Scan(&n.ID, &n.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return apperr.ErrConflict
	}
	return err
}

func (r *repoPG) GetByID(ctx context.Context, id int64) (*Notification, error) {
	return r.scan(r.conn(ctx).QueryRow(ctx, `SELECT `+notifCols+` FROM notifications WHERE id = $1`, id))
}

func (r *repoPG) ListForRecipients(ctx context.Context, recipients []string) ([]*Notification, error) {
	if len(recipients) == 0 {
		return nil, nil
	}
	rows, err := r.conn(ctx).Query(ctx,
		`SELECT `+notifCols+` FROM notifications WHERE recipient = ANY($1) ORDER BY id DESC`, recipients)
	if err != nil {
		return nil, err
	}
	return r.scanAll(rows)
}

func (r *repoPG) FindByActorTarget(ctx context.Context, kind Kind, actorID, targetRef string) (*Notification, error) {
	return r.scan(r.conn(ctx).QueryRow(ctx, `
		SELECT `+notifCols+` FROM notifications
		WHERE kind = $1 AND actor_id = $2 AND target_ref = $3
		ORDER BY id DESC LIMIT 1`, kind, actorID, targetRef))
}

func (r *repoPG) FindBySubject(ctx context.Context, kind Kind, subjectRef string) (*Notification, error) {
	return r.scan(r.conn(ctx).QueryRow(ctx, `
		SELECT `+notifCols+` FROM notifications
		WHERE kind = $1 AND subject_ref = $2
		ORDER BY id DESC LIMIT 1`, kind, subjectRef))
}

func (r *repoPG) MarkRead(ctx context.Context, ids []int64) (int, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	tag, err := r.conn(ctx).Exec(ctx,
		`UPDATE notifications SET read = TRUE WHERE id = ANY($1) AND read = FALSE`, ids)
	if err != nil {
		return 0, err
	}
	return int(tag.RowsAffected()), nil
}

func (r *repoPG) Delete(ctx context.Context, ids []int64) (int, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	tag, err := r.conn(ctx).Exec(ctx, `DELETE FROM notifications WHERE id = ANY($1)`, ids)
	if err != nil {
		return 0, err
	}
	return int(tag.RowsAffected()), nil
}

func (r *repoPG) DeleteByTarget(ctx context.Context, kinds []Kind, targetRef string) (int, error) {
	ks := make([]string, len(kinds))
	for i, k := range kinds {
		ks[i] = string(k)
	}
	tag, err := r.conn(ctx).Exec(ctx,
		`DELETE FROM notifications WHERE kind = ANY($1) AND target_ref = $2`, ks, targetRef)
	if err != nil {
		return 0, err
	}
	return int(tag.RowsAffected()), nil
}

func (r *repoPG) DeleteBySubject(ctx context.Context, kind Kind, subjectRef string) (int, error) {
	tag, err := r.conn(ctx).Exec(ctx,
		`DELETE FROM notifications WHERE kind = $1 AND subject_ref = $2`, kind, subjectRef)
	if err != nil {
		return 0, err
	}
	return int(tag.RowsAffected()), nil
}

func (r *repoPG) PurgeReadBefore(ctx context.Context, cutoff time.Time) (int, error) {
	tag, err := r.conn(ctx).Exec(ctx,
		`DELETE FROM notifications WHERE read = TRUE AND created_at < $1`, cutoff)
	if err != nil {
		return 0, err
	}
	return int(tag.RowsAffected()), nil
}
