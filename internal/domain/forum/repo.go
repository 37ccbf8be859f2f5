package forum

import (
	"context"

	"github.com/google/uuid"
)

// PostRepository persists posts and their replies. Lookups of missing rows
// return apperr.ErrNotFound. Posts are returned with their replies in
// creation order.
type PostRepository interface {
	Create(ctx context.Context, p *Post) error
	GetByID(ctx context.Context, id uuid.UUID) (*Post, error)
	// GetForUpdate loads a post and holds it against concurrent writers until
	// the surrounding unit of work ends.
	GetForUpdate(ctx context.Context, id uuid.UUID) (*Post, error)
	// List returns a page of posts, newest first, and the total count.
	List(ctx context.Context, limit, offset int) ([]*Post, int, error)
	Delete(ctx context.Context, id uuid.UUID) error
	UpdateReactions(ctx context.Context, id uuid.UUID, reactions ReactionMap) error

	AddReply(ctx context.Context, r *Reply) error
	DeleteReply(ctx context.Context, postID, replyID uuid.UUID) error
	UpdateReplyReactions(ctx context.Context, postID, replyID uuid.UUID, reactions ReactionMap) error
}
