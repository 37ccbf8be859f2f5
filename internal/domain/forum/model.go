package forum

import (
	"time"

	"github.com/google/uuid"

	"github.com/Abhinaba-code/curalinkproject-sub000/internal/platform/auth"
)

// AuthorSnapshot is the author's identity as it was when the post or reply
// was written. Later profile edits never reach it.
type AuthorSnapshot struct {
	ID          string    `json:"id"`
	DisplayName string    `json:"display_name"`
	AvatarRef   string    `json:"avatar_ref,omitempty"`
	Role        auth.Role `json:"role"`
}

func snapshotOf(a *auth.Actor) AuthorSnapshot {
	return AuthorSnapshot{
		ID:          a.ID,
		DisplayName: a.DisplayName,
		AvatarRef:   a.AvatarRef,
		Role:        a.Role,
	}
}

// ReactionMap maps an emoji to the sorted ids of the actors who chose it. An
// actor appears under at most one emoji and empty sets are never stored.
type ReactionMap map[string][]string

type Post struct {
	ID        uuid.UUID      `json:"id"`
	Author    AuthorSnapshot `json:"author"`
	Title     string         `json:"title"`
	Content   string         `json:"content"`
	Tags      []string       `json:"tags"`
	Upvotes   int            `json:"upvotes"`
	Replies   []*Reply       `json:"replies"`
	Reactions ReactionMap    `json:"reactions"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
}

func (p *Post) reply(id uuid.UUID) *Reply {
	for _, r := range p.Replies {
		if r.ID == id {
			return r
		}
	}
	return nil
}

type Reply struct {
	ID        uuid.UUID      `json:"id"`
	PostID    uuid.UUID      `json:"post_id"`
	Author    AuthorSnapshot `json:"author"`
	Content   string         `json:"content"`
	Reactions ReactionMap    `json:"reactions"`
	CreatedAt time.Time      `json:"created_at"`
}

type PostInput struct {
	Title   string   `json:"title"`
	Content string   `json:"content"`
	Tags    []string `json:"tags"`
}

// PostView is a post as presented to one actor, with what that actor may do
// to it and to each of its replies.
type PostView struct {
	*Post
	Permissions      Permissions                 `json:"permissions"`
	ReplyPermissions map[string]ReplyPermissions `json:"reply_permissions"`
}

// normalize replaces nil collections so that JSON renders [] and {}.
func (p *Post) normalize() {
	if p.Tags == nil {
		p.Tags = []string{}
	}
	if p.Replies == nil {
		p.Replies = []*Reply{}
	}
	if p.Reactions == nil {
		p.Reactions = ReactionMap{}
	}
	for _, r := range p.Replies {
		if r.Reactions == nil {
			r.Reactions = ReactionMap{}
		}
	}
}
