package forum

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
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

type postRepoPG struct{ pool *pgxpool.Pool }

func NewPostRepoPG(pool *pgxpool.Pool) PostRepository {
	return &postRepoPG{pool: pool}
}

func (r *postRepoPG) conn(ctx context.Context) queryable {
	if tx := db.TxFromContext(ctx); tx != nil {
		return tx
	}
	return r.pool
}

const postCols = `id, author_id, author_display_name, author_avatar_ref, author_role,
	title, content, tags, upvotes, reactions, created_at, updated_at`

const replyCols = `id, post_id, author_id, author_display_name, author_avatar_ref, author_role,
	content, reactions, created_at`

func encodeReactions(m ReactionMap) ([]byte, error) {
	if m == nil {
		m = ReactionMap{}
	}
	return json.Marshal(m)
}

func decodeReactions(raw []byte) (ReactionMap, error) {
	m := ReactionMap{}
	if len(raw) == 0 {
		return m, nil
	}
	if err := json.Unmarshal(raw, &m); err != nil {
		return nil, fmt.Errorf("decode reactions: %w", err)
	}
	return m, nil
}

func (r *postRepoPG) scanPost(row pgx.Row) (*Post, error) {
	var (
		p         Post
		reactions []byte
	)
	err := row.Scan(&p.ID, &p.Author.ID, &p.Author.DisplayName, &p.Author.AvatarRef, &p.Author.Role,
		&p.Title, &p.Content, &p.Tags, &p.Upvotes, &reactions, &p.CreatedAt, &p.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, apperr.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	if p.Reactions, err = decodeReactions(reactions); err != nil {
		return nil, err
	}
	return &p, nil
}

func (r *postRepoPG) scanReply(row pgx.Row) (*Reply, error) {
	var (
		rp        Reply
		reactions []byte
	)
	err := row.Scan(&rp.ID, &rp.PostID, &rp.Author.ID, &rp.Author.DisplayName, &rp.Author.AvatarRef,
		&rp.Author.Role, &rp.Content, &reactions, &rp.CreatedAt)
	if err != nil {
		return nil, err
	}
	if rp.Reactions, err = decodeReactions(reactions); err != nil {
		return nil, err
	}
	return &rp, nil
}

// attachReplies loads the replies of every post in one query.
func (r *postRepoPG) attachReplies(ctx context.Context, posts []*Post) error {
	if len(posts) == 0 {
		return nil
	}
	ids := make([]string, len(posts))
	byID := make(map[uuid.UUID]*Post, len(posts))
	for i, p := range posts {
		ids[i] = p.ID.String()
		byID[p.ID] = p
		p.Replies = []*Reply{}
	}
	rows, err := r.conn(ctx).Query(ctx, `SELECT `+replyCols+` FROM replies
		WHERE post_id = ANY($1::uuid[]) ORDER BY created_at, id`, ids)
	if err != nil {
		return err
	}
	defer rows.Close()
	for rows.Next() {
		rp, err := r.scanReply(rows)
		if err != nil {
			return err
		}
		if p := byID[rp.PostID]; p != nil {
			p.Replies = append(p.Replies, rp)
		}
	}
	return rows.Err()
}

func (r *postRepoPG) Create(ctx context.Context, p *Post) error {
	p.ID = uuid.New()
	now := time.Now().UTC()
	p.CreatedAt, p.UpdatedAt = now, now
	reactions, err := encodeReactions(p.Reactions)
	if err != nil {
		return err
	}
	_, err = r.conn(ctx).Exec(ctx, `
		INSERT INTO posts (id, author_id, author_display_name, author_avatar_ref, author_role,
			title, content, tags, upvotes, reactions, created_at, updated_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12)`,
		p.ID, p.Author.ID, p.Author.DisplayName, p.Author.AvatarRef, p.Author.Role,
		p.Title, p.Content, p.Tags, p.Upvotes, reactions, p.CreatedAt, p.UpdatedAt)
	return err
}

func (r *postRepoPG) get(ctx context.Context, query string, id uuid.UUID) (*Post, error) {
	p, err := r.scanPost(r.conn(ctx).QueryRow(ctx, query, id))
	if err != nil {
		return nil, err
	}
	if err := r.attachReplies(ctx, []*Post{p}); err != nil {
		return nil, err
	}
	return p, nil
}

func (r *postRepoPG) GetByID(ctx context.Context, id uuid.UUID) (*Post, error) {
	return r.get(ctx, `SELECT `+postCols+` FROM posts WHERE id = $1`, id)
}

func (r *postRepoPG) GetForUpdate(ctx context.Context, id uuid.UUID) (*Post, error) {
	return r.get(ctx, `SELECT `+postCols+` FROM posts WHERE id = $1 FOR UPDATE`, id)
}

func (r *postRepoPG) List(ctx context.Context, limit, offset int) ([]*Post, int, error) {
	var total int
	if err := r.conn(ctx).QueryRow(ctx, `SELECT COUNT(*) FROM posts`).Scan(&total); err != nil {
		return nil, 0, err
	}
	rows, err := r.conn(ctx).Query(ctx, `SELECT `+postCols+` FROM posts
		ORDER BY created_at DESC, id DESC LIMIT $1 OFFSET $2`, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	var items []*Post
	for rows.Next() {
		p, err := r.scanPost(rows)
		if err != nil {
			return nil, 0, err
		}
		items = append(items, p)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}
	if err := r.attachReplies(ctx, items); err != nil {
		return nil, 0, err
	}
	return items, total, nil
}

func notFoundIfNone(tag pgconn.CommandTag, err error) error {
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return apperr.ErrNotFound
	}
	return nil
}

// Delete removes the post; replies go with it through ON DELETE CASCADE.
func (r *postRepoPG) Delete(ctx context.Context, id uuid.UUID) error {
	return notFoundIfNone(r.conn(ctx).Exec(ctx, `DELETE FROM posts WHERE id = $1`, id))
}

func (r *postRepoPG) UpdateReactions(ctx context.Context, id uuid.UUID, reactions ReactionMap) error {
	raw, err := encodeReactions(reactions)
	if err != nil {
		return err
	}
	return notFoundIfNone(r.conn(ctx).Exec(ctx,
		`UPDATE posts SET reactions = $2, updated_at = now() WHERE id = $1`, id, raw))
}

func (r *postRepoPG) AddReply(ctx context.Context, rp *Reply) error {
	rp.ID = uuid.New()
	rp.CreatedAt = time.Now().UTC()
	reactions, err := encodeReactions(rp.Reactions)
	if err != nil {
		return err
	}
	_, err = r.conn(ctx).Exec(ctx, `
		INSERT INTO replies (id, post_id, author_id, author_display_name, author_avatar_ref,
			author_role, content, reactions, created_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)`,
		rp.ID, rp.PostID, rp.Author.ID, rp.Author.DisplayName, rp.Author.AvatarRef,
		rp.Author.Role, rp.Content, reactions, rp.CreatedAt)
	if err != nil {
		return err
	}
	_, err = r.conn(ctx).Exec(ctx, `UPDATE posts SET updated_at = $2 WHERE id = $1`, rp.PostID, rp.CreatedAt)
	return err
}

func (r *postRepoPG) DeleteReply(ctx context.Context, postID, replyID uuid.UUID) error {
	return notFoundIfNone(r.conn(ctx).Exec(ctx,
		`DELETE FROM replies WHERE id = $1 AND post_id = $2`, replyID, postID))
}

func (r *postRepoPG) UpdateReplyReactions(ctx context.Context, postID, replyID uuid.UUID, reactions ReactionMap) error {
	raw, err := encodeReactions(reactions)
	if err != nil {
		return err
	}
	return notFoundIfNone(r.conn(ctx).Exec(ctx,
		`UPDATE replies SET reactions = $3 WHERE id = $1 AND post_id = $2`, replyID, postID, raw))
}
