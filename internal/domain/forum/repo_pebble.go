package forum

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/Abhinaba-code/curalinkproject-sub000/internal/platform/apperr"
	"github.com/Abhinaba-code/curalinkproject-sub000/internal/platform/kv"
)

// Posts are stored as one document each, replies embedded:
//
//	post/id/<uuid>                    JSON post
//	post/at/<created unix nanos>/<uuid> feed index
const (
	postPrefix = "post/id/"
	feedPrefix = "post/at/"
)

type postRepoPebble struct{ store *kv.Store }

func NewPostRepoPebble(store *kv.Store) PostRepository {
	return &postRepoPebble{store: store}
}

func postKey(id uuid.UUID) []byte {
	return []byte(postPrefix + id.String())
}

func feedKey(p *Post) []byte {
	return []byte(feedPrefix + kv.Uint64Key(uint64(p.CreatedAt.UnixNano())) + "/" + p.ID.String())
}

func (r *postRepoPebble) load(ctx context.Context, id uuid.UUID) (*Post, error) {
	var p Post
	if err := r.store.GetJSON(ctx, postKey(id), &p); err != nil {
		if errors.Is(err, kv.ErrNotFound) {
			return nil, apperr.ErrNotFound
		}
		return nil, err
	}
	p.normalize()
	return &p, nil
}

func (r *postRepoPebble) save(ctx context.Context, p *Post) error {
	return r.store.SetJSON(ctx, postKey(p.ID), p)
}

// modify applies fn to the stored post inside one unit of work.
func (r *postRepoPebble) modify(ctx context.Context, id uuid.UUID, fn func(p *Post) error) error {
	return r.store.WithinTx(ctx, func(ctx context.Context) error {
		p, err := r.load(ctx, id)
		if err != nil {
			return err
		}
		if err := fn(p); err != nil {
			return err
		}
		return r.save(ctx, p)
	})
}

func (r *postRepoPebble) Create(ctx context.Context, p *Post) error {
	p.ID = uuid.New()
	now := time.Now().UTC()
	p.CreatedAt, p.UpdatedAt = now, now
	return r.store.WithinTx(ctx, func(ctx context.Context) error {
		if err := r.save(ctx, p); err != nil {
			return err
		}
		return r.store.Set(ctx, feedKey(p), nil)
	})
}

func (r *postRepoPebble) GetByID(ctx context.Context, id uuid.UUID) (*Post, error) {
	return r.load(ctx, id)
}

// GetForUpdate needs no row lock: writers are serialised by the store.
func (r *postRepoPebble) GetForUpdate(ctx context.Context, id uuid.UUID) (*Post, error) {
	return r.load(ctx, id)
}

func (r *postRepoPebble) List(ctx context.Context, limit, offset int) ([]*Post, int, error) {
	var (
		ids   []uuid.UUID
		total int
	)
	err := r.store.ScanReverse(ctx, []byte(feedPrefix), func(key, _ []byte) error {
		total++
		if total <= offset || len(ids) >= limit {
			return nil
		}
		raw := string(key)
		id, err := uuid.Parse(raw[len(raw)-36:])
		if err != nil {
			return fmt.Errorf("feed key %q: %w", raw, err)
		}
		ids = append(ids, id)
		return nil
	})
	if err != nil {
		return nil, 0, err
	}

	items := make([]*Post, 0, len(ids))
	for _, id := range ids {
		p, err := r.load(ctx, id)
		if errors.Is(err, apperr.ErrNotFound) {
			continue
		}
		if err != nil {
			return nil, 0, err
		}
		items = append(items, p)
	}
	return items, total, nil
}

func (r *postRepoPebble) Delete(ctx context.Context, id uuid.UUID) error {
	return r.store.WithinTx(ctx, func(ctx context.Context) error {
		p, err := r.load(ctx, id)
		if err != nil {
			return err
		}
		if err := r.store.Delete(ctx, feedKey(p)); err != nil {
			return err
		}
		return r.store.Delete(ctx, postKey(id))
	})
}

func (r *postRepoPebble) UpdateReactions(ctx context.Context, id uuid.UUID, reactions ReactionMap) error {
	return r.modify(ctx, id, func(p *Post) error {
		p.Reactions = reactions
		p.UpdatedAt = time.Now().UTC()
		return nil
	})
}

func (r *postRepoPebble) AddReply(ctx context.Context, rp *Reply) error {
	rp.ID = uuid.New()
	rp.CreatedAt = time.Now().UTC()
	if rp.Reactions == nil {
		rp.Reactions = ReactionMap{}
	}
	return r.modify(ctx, rp.PostID, func(p *Post) error {
		p.Replies = append(p.Replies, rp)
		p.UpdatedAt = rp.CreatedAt
		return nil
	})
}

func (r *postRepoPebble) DeleteReply(ctx context.Context, postID, replyID uuid.UUID) error {
	return r.modify(ctx, postID, func(p *Post) error {
		for i, rp := range p.Replies {
			if rp.ID == replyID {
				p.Replies = append(p.Replies[:i], p.Replies[i+1:]...)
				return nil
			}
		}
		return apperr.ErrNotFound
	})
}

func (r *postRepoPebble) UpdateReplyReactions(ctx context.Context, postID, replyID uuid.UUID, reactions ReactionMap) error {
	return r.modify(ctx, postID, func(p *Post) error {
		rp := p.reply(replyID)
		if rp == nil {
			return apperr.ErrNotFound
		}
		rp.Reactions = reactions
		return nil
	})
}
