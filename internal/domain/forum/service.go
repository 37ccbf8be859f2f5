package forum

import (
	"context"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/Abhinaba-code/curalinkproject-sub000/internal/domain/notification"
	"github.com/Abhinaba-code/curalinkproject-sub000/internal/platform/apperr"
	"github.com/Abhinaba-code/curalinkproject-sub000/internal/platform/auth"
	"github.com/Abhinaba-code/curalinkproject-sub000/internal/platform/db"
	"github.com/Abhinaba-code/curalinkproject-sub000/internal/platform/metrics"
)

const (
	maxTitleLen   = 300
	maxContentLen = 10000
	maxTags       = 10
	maxTagLen     = 50
)

// Notifier fans forum mutations out as notifications. *notification.Router
// implements it.
type Notifier interface {
	NotifyNewPost(ctx context.Context, actor *auth.Actor, ev notification.PostEvent) (*notification.Notification, error)
	NotifyNewReply(ctx context.Context, actor *auth.Actor, ev notification.PostEvent) (*notification.Notification, error)
	RemoveForPost(ctx context.Context, postID string) (int, error)
	RemoveForReply(ctx context.Context, replyID string) (int, error)
}

type Options struct {
	StrictRoles bool
	// EmojiPalette restricts reactions to the listed emoji. Empty allows any.
	EmojiPalette []string
	Metrics      *metrics.Metrics
}

// Service is the post/reply store. Each mutation and the notifications it
// causes are committed together.
type Service struct {
	posts    PostRepository
	tx       db.Transactor
	notifier Notifier
	policy   Policy
	palette  map[string]bool
	metrics  *metrics.Metrics
	logger   zerolog.Logger
}

func NewService(posts PostRepository, tx db.Transactor, notifier Notifier, logger zerolog.Logger, opts Options) *Service {
	var palette map[string]bool
	if len(opts.EmojiPalette) > 0 {
		palette = make(map[string]bool, len(opts.EmojiPalette))
		for _, e := range opts.EmojiPalette {
			palette[e] = true
		}
	}
	return &Service{
		posts:    posts,
		tx:       tx,
		notifier: notifier,
		policy:   Policy{StrictRoles: opts.StrictRoles},
		palette:  palette,
		metrics:  opts.Metrics,
		logger:   logger,
	}
}

func requireActor(actor *auth.Actor) error {
	if !actor.Valid() {
		return apperr.ErrUnauthenticated
	}
	return nil
}

func requiredText(field, s string, max int) (string, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return "", fmt.Errorf("%w: %s is required", apperr.ErrInvalid, field)
	}
	if utf8.RuneCountInString(s) > max {
		return "", fmt.Errorf("%w: %s exceeds %d characters", apperr.ErrInvalid, field, max)
	}
	return s, nil
}

// cleanTags trims, drops blanks and duplicates, and keeps input order.
func cleanTags(tags []string) ([]string, error) {
	out := make([]string, 0, len(tags))
	seen := make(map[string]bool, len(tags))
	for _, t := range tags {
		t = strings.TrimSpace(t)
		if t == "" || seen[t] {
			continue
		}
		if utf8.RuneCountInString(t) > maxTagLen {
			return nil, fmt.Errorf("%w: tag %q exceeds %d characters", apperr.ErrInvalid, t, maxTagLen)
		}
		seen[t] = true
		out = append(out, t)
	}
	if len(out) > maxTags {
		return nil, fmt.Errorf("%w: at most %d tags are allowed", apperr.ErrInvalid, maxTags)
	}
	return out, nil
}

func (s *Service) validEmoji(emoji string) error {
	if strings.TrimSpace(emoji) == "" {
		return fmt.Errorf("%w: emoji is required", apperr.ErrInvalid)
	}
	if s.palette != nil && !s.palette[emoji] {
		return fmt.Errorf("%w: emoji %q is not offered", apperr.ErrInvalid, emoji)
	}
	return nil
}

func (s *Service) AddPost(ctx context.Context, actor *auth.Actor, in PostInput) (*Post, error) {
	if err := requireActor(actor); err != nil {
		return nil, err
	}
	title, err := requiredText("title", in.Title, maxTitleLen)
	if err != nil {
		return nil, err
	}
	content, err := requiredText("content", in.Content, maxContentLen)
	if err != nil {
		return nil, err
	}
	tags, err := cleanTags(in.Tags)
	if err != nil {
		return nil, err
	}

	p := &Post{
		Author:    snapshotOf(actor),
		Title:     title,
		Content:   content,
		Tags:      tags,
		Replies:   []*Reply{},
		Reactions: ReactionMap{},
	}
	err = s.tx.WithinTx(ctx, func(ctx context.Context) error {
		if err := s.posts.Create(ctx, p); err != nil {
			return err
		}
		_, err := s.notifier.NotifyNewPost(ctx, actor, notification.PostEvent{
			PostID:     p.ID.String(),
			Title:      p.Title,
			AuthorID:   p.Author.ID,
			AuthorRole: p.Author.Role,
		})
		if err != nil {
			return err
		}
		db.AfterCommit(ctx, func() { s.metrics.ForumWrite("post", "created") })
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("add post: %w", err)
	}
	s.logger.Debug().Str("post_id", p.ID.String()).Str("author_id", actor.ID).Msg("post created")
	return p, nil
}

func (s *Service) GetPost(ctx context.Context, id uuid.UUID) (*Post, error) {
	p, err := s.posts.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	p.normalize()
	return p, nil
}

func (s *Service) ListPosts(ctx context.Context, limit, offset int) ([]*Post, int, error) {
	items, total, err := s.posts.List(ctx, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	for _, p := range items {
		p.normalize()
	}
	return items, total, nil
}

// DeletePost removes the actor's own post with its replies and every
// notification that points at it.
func (s *Service) DeletePost(ctx context.Context, actor *auth.Actor, id uuid.UUID) error {
	if err := requireActor(actor); err != nil {
		return err
	}
	err := s.tx.WithinTx(ctx, func(ctx context.Context) error {
		p, err := s.posts.GetForUpdate(ctx, id)
		if err != nil {
			return err
		}
		if !CanDeletePost(actor, p) {
			return fmt.Errorf("%w: only the author can delete this post", apperr.ErrForbidden)
		}
		if err := s.posts.Delete(ctx, id); err != nil {
			return err
		}
		if _, err := s.notifier.RemoveForPost(ctx, id.String()); err != nil {
			return err
		}
		db.AfterCommit(ctx, func() { s.metrics.ForumWrite("post", "deleted") })
		return nil
	})
	if err != nil {
		return fmt.Errorf("delete post %s: %w", id, err)
	}
	return nil
}

func (s *Service) AddReply(ctx context.Context, actor *auth.Actor, postID uuid.UUID, content string) (*Reply, error) {
	if err := requireActor(actor); err != nil {
		return nil, err
	}
	content, err := requiredText("content", content, maxContentLen)
	if err != nil {
		return nil, err
	}

	rp := &Reply{
		PostID:    postID,
		Author:    snapshotOf(actor),
		Content:   content,
		Reactions: ReactionMap{},
	}
	err = s.tx.WithinTx(ctx, func(ctx context.Context) error {
		p, err := s.posts.GetForUpdate(ctx, postID)
		if err != nil {
			return err
		}
		if !s.policy.allowReply(actor, p) {
			return fmt.Errorf("%w: %s cannot reply to this post", apperr.ErrForbidden, actor.Role)
		}
		if err := s.posts.AddReply(ctx, rp); err != nil {
			return err
		}
		_, err = s.notifier.NotifyNewReply(ctx, actor, notification.PostEvent{
			PostID:     p.ID.String(),
			Title:      p.Title,
			AuthorID:   p.Author.ID,
			AuthorRole: p.Author.Role,
			ReplyID:    rp.ID.String(),
		})
		if err != nil {
			return err
		}
		db.AfterCommit(ctx, func() { s.metrics.ForumWrite("reply", "created") })
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("add reply to post %s: %w", postID, err)
	}
	return rp, nil
}

func (s *Service) DeleteReply(ctx context.Context, actor *auth.Actor, postID, replyID uuid.UUID) error {
	if err := requireActor(actor); err != nil {
		return err
	}
	err := s.tx.WithinTx(ctx, func(ctx context.Context) error {
		p, err := s.posts.GetForUpdate(ctx, postID)
		if err != nil {
			return err
		}
		rp := p.reply(replyID)
		if rp == nil {
			return apperr.ErrNotFound
		}
		if !CanDeleteReply(actor, rp) {
			return fmt.Errorf("%w: only the author can delete this reply", apperr.ErrForbidden)
		}
		if err := s.posts.DeleteReply(ctx, postID, replyID); err != nil {
			return err
		}
		if _, err := s.notifier.RemoveForReply(ctx, replyID.String()); err != nil {
			return err
		}
		db.AfterCommit(ctx, func() { s.metrics.ForumWrite("reply", "deleted") })
		return nil
	})
	if err != nil {
		return fmt.Errorf("delete reply %s: %w", replyID, err)
	}
	return nil
}

func (s *Service) TogglePostReaction(ctx context.Context, actor *auth.Actor, postID uuid.UUID, emoji string) (ReactionMap, error) {
	if err := requireActor(actor); err != nil {
		return nil, err
	}
	if err := s.validEmoji(emoji); err != nil {
		return nil, err
	}
	var out ReactionMap
	err := s.tx.WithinTx(ctx, func(ctx context.Context) error {
		p, err := s.posts.GetForUpdate(ctx, postID)
		if err != nil {
			return err
		}
		if !s.policy.allowPostReaction(actor, p) {
			return fmt.Errorf("%w: %s cannot react to this post", apperr.ErrForbidden, actor.Role)
		}
		out = ToggleReaction(p.Reactions, actor.ID, emoji)
		if err := s.posts.UpdateReactions(ctx, postID, out); err != nil {
			return err
		}
		outcome := toggleOutcome(p.Reactions, out, actor.ID)
		db.AfterCommit(ctx, func() { s.metrics.ReactionToggled("post", outcome) })
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("toggle reaction on post %s: %w", postID, err)
	}
	return out, nil
}

func (s *Service) ToggleReplyReaction(ctx context.Context, actor *auth.Actor, postID, replyID uuid.UUID, emoji string) (ReactionMap, error) {
	if err := requireActor(actor); err != nil {
		return nil, err
	}
	if err := s.validEmoji(emoji); err != nil {
		return nil, err
	}
	var out ReactionMap
	err := s.tx.WithinTx(ctx, func(ctx context.Context) error {
		p, err := s.posts.GetForUpdate(ctx, postID)
		if err != nil {
			return err
		}
		rp := p.reply(replyID)
		if rp == nil {
			return apperr.ErrNotFound
		}
		if !s.policy.allowReplyReaction(actor, p) {
			return fmt.Errorf("%w: %s cannot react to this reply", apperr.ErrForbidden, actor.Role)
		}
		out = ToggleReaction(rp.Reactions, actor.ID, emoji)
		if err := s.posts.UpdateReplyReactions(ctx, postID, replyID, out); err != nil {
			return err
		}
		outcome := toggleOutcome(rp.Reactions, out, actor.ID)
		db.AfterCommit(ctx, func() { s.metrics.ReactionToggled("reply", outcome) })
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("toggle reaction on reply %s: %w", replyID, err)
	}
	return out, nil
}
