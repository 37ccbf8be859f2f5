package notification

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
	"unicode"
	"unicode/utf8"

	"github.com/rs/zerolog"

	"github.com/Abhinaba-code/curalinkproject-sub000/internal/platform/apperr"
	"github.com/Abhinaba-code/curalinkproject-sub000/internal/platform/auth"
	"github.com/Abhinaba-code/curalinkproject-sub000/internal/platform/cache"
	"github.com/Abhinaba-code/curalinkproject-sub000/internal/platform/db"
	"github.com/Abhinaba-code/curalinkproject-sub000/internal/platform/metrics"
)

const maxTextLen = 4000

type Options struct {
	// Cache holds unread counts. Nil disables caching.
	Cache    cache.Cache
	CacheTTL time.Duration
	Metrics  *metrics.Metrics
}

// Router derives notifications from forum mutations and expert-directed
// actions, and serves each actor's visible inbox. Every public operation is
// one unit of work on tx; when called inside an outer unit (a forum write)
// it joins it.
type Router struct {
	repo    Repository
	tx      db.Transactor
	unread  *unreadCache
	metrics *metrics.Metrics
	logger  zerolog.Logger
}

func NewRouter(repo Repository, tx db.Transactor, logger zerolog.Logger, opts Options) *Router {
	c := opts.Cache
	if c == nil {
		c = cache.Noop{}
	}
	ttl := opts.CacheTTL
	if ttl <= 0 {
		ttl = time.Minute
	}
	return &Router{
		repo:    repo,
		tx:      tx,
		metrics: opts.Metrics,
		logger:  logger,
		unread:  &unreadCache{c: c, ttl: ttl, metrics: opts.Metrics, logger: logger},
	}
}

func requireActor(actor *auth.Actor) error {
	if !actor.Valid() {
		return apperr.ErrUnauthenticated
	}
	return nil
}

func cleanText(field, s string, required bool) (string, error) {
	s = strings.TrimSpace(s)
	if required && s == "" {
		return "", fmt.Errorf("%w: %s is required", apperr.ErrInvalid, field)
	}
	if utf8.RuneCountInString(s) > maxTextLen {
		return "", fmt.Errorf("%w: %s exceeds %d characters", apperr.ErrInvalid, field, maxTextLen)
	}
	return s, nil
}

// changed schedules post-commit bookkeeping for a write.
func (r *Router) changed(ctx context.Context, record func()) {
	db.AfterCommit(ctx, func() {
		if record != nil {
			record()
		}
		ictx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		r.unread.invalidate(ictx)
	})
}

func (r *Router) create(ctx context.Context, n *Notification) error {
	if err := r.repo.Create(ctx, n); err != nil {
		return err
	}
	kind := string(n.Kind)
	r.changed(ctx, func() { r.metrics.NotificationCreated(kind) })
	r.logger.Debug().
		Int64("notification_id", n.ID).
		Str("kind", kind).
		Str("actor_id", n.ActorID).
		Str("recipient", n.Recipient).
		Msg("notification created")
	return nil
}

// NotifyNewPost broadcasts a patient's new post to all researchers. Posts by
// researchers produce nothing and return (nil, nil).
func (r *Router) NotifyNewPost(ctx context.Context, actor *auth.Actor, ev PostEvent) (*Notification, error) {
	if err := requireActor(actor); err != nil {
		return nil, err
	}
	if !actor.IsPatient() {
		return nil, nil
	}
	n := &Notification{
		Kind:             KindNewPost,
		TargetRef:        ev.PostID,
		TargetLabel:      ev.Title,
		ActorID:          actor.ID,
		ActorDisplayName: actor.DisplayName,
		Recipient:        RecipientAllResearchers,
	}
	if err := r.tx.WithinTx(ctx, func(ctx context.Context) error { return r.create(ctx, n) }); err != nil {
		return nil, fmt.Errorf("notify new post: %w", err)
	}
	return n, nil
}

// NotifyNewReply tells a patient that a researcher replied to their post.
// Every other combination produces nothing and returns (nil, nil).
func (r *Router) NotifyNewReply(ctx context.Context, actor *auth.Actor, ev PostEvent) (*Notification, error) {
	if err := requireActor(actor); err != nil {
		return nil, err
	}
	if !actor.IsResearcher() || ev.AuthorRole != auth.RolePatient || ev.AuthorID == actor.ID {
		return nil, nil
	}
	n := &Notification{
		Kind:             KindNewReply,
		TargetRef:        ev.PostID,
		TargetLabel:      ev.Title,
		SubjectRef:       ev.ReplyID,
		ActorID:          actor.ID,
		ActorDisplayName: actor.DisplayName,
		Recipient:        ev.AuthorID,
	}
	if err := r.tx.WithinTx(ctx, func(ctx context.Context) error { return r.create(ctx, n) }); err != nil {
		return nil, fmt.Errorf("notify new reply: %w", err)
	}
	return n, nil
}

// RemoveForPost deletes the new_post and new_reply notifications that point
// at a deleted post.
func (r *Router) RemoveForPost(ctx context.Context, postID string) (int, error) {
	var n int
	err := r.tx.WithinTx(ctx, func(ctx context.Context) error {
		var err error
		n, err = r.repo.DeleteByTarget(ctx, []Kind{KindNewPost, KindNewReply}, postID)
		if err != nil {
			return err
		}
		if n > 0 {
			count := n
			r.changed(ctx, func() { r.metrics.NotificationsDeleted("cascade", count) })
		}
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("remove notifications for post %s: %w", postID, err)
	}
	return n, nil
}

// RemoveForReply deletes the new_reply notification raised by a deleted reply.
func (r *Router) RemoveForReply(ctx context.Context, replyID string) (int, error) {
	var n int
	err := r.tx.WithinTx(ctx, func(ctx context.Context) error {
		var err error
		n, err = r.repo.DeleteBySubject(ctx, KindNewReply, replyID)
		if err != nil {
			return err
		}
		if n > 0 {
			count := n
			r.changed(ctx, func() { r.metrics.NotificationsDeleted("cascade", count) })
		}
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("remove notifications for reply %s: %w", replyID, err)
	}
	return n, nil
}

func validExpertID(id string) (string, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return "", fmt.Errorf("%w: expert_id is required", apperr.ErrInvalid)
	}
	if strings.IndexFunc(id, unicode.IsControl) >= 0 {
		return "", fmt.Errorf("%w: expert_id contains control characters", apperr.ErrInvalid)
	}
	return id, nil
}

func validExpert(expert ExpertRef) (ExpertRef, error) {
	id, err := validExpertID(expert.ID)
	if err != nil {
		return expert, err
	}
	expert.ID = id
	expert.DisplayName = strings.TrimSpace(expert.DisplayName)
	if expert.DisplayName == "" {
		expert.DisplayName = expert.ID
	}
	return expert, nil
}

// raise creates a broadcast about an expert unless the actor already has an
// active one of the same kind, in which case that one is returned with
// created=false.
func (r *Router) raise(ctx context.Context, actor *auth.Actor, kind Kind, expert ExpertRef, reason string) (*Notification, bool, error) {
	var (
		out     *Notification
		created bool
	)
	err := r.tx.WithinTx(ctx, func(ctx context.Context) error {
		existing, err := r.repo.FindByActorTarget(ctx, kind, actor.ID, expert.ID)
		if err == nil {
			out = existing
			return nil
		}
		if !errors.Is(err, apperr.ErrNotFound) {
			return err
		}

		n := &Notification{
			Kind:             kind,
			TargetRef:        expert.ID,
			TargetLabel:      expert.DisplayName,
			ActorID:          actor.ID,
			ActorDisplayName: actor.DisplayName,
			Recipient:        RecipientAllResearchers,
			Reason:           reason,
		}
		err = r.create(ctx, n)
		if errors.Is(err, apperr.ErrConflict) {
			// Lost a race with a concurrent identical request.
			out, err = r.repo.FindByActorTarget(ctx, kind, actor.ID, expert.ID)
			return err
		}
		if err != nil {
			return err
		}
		out, created = n, true
		return nil
	})
	if err != nil {
		return nil, false, err
	}
	return out, created, nil
}

func (r *Router) withdraw(ctx context.Context, actor *auth.Actor, kind Kind, expertID string) error {
	expertID, err := validExpertID(expertID)
	if err != nil {
		return err
	}
	return r.tx.WithinTx(ctx, func(ctx context.Context) error {
		n, err := r.repo.FindByActorTarget(ctx, kind, actor.ID, expertID)
		if err != nil {
			return err
		}
		if _, err := r.repo.Delete(ctx, []int64{n.ID}); err != nil {
			return err
		}
		r.changed(ctx, func() { r.metrics.NotificationsDeleted("user", 1) })
		return nil
	})
}

// SendNudge broadcasts the actor's interest in an expert to all researchers.
func (r *Router) SendNudge(ctx context.Context, actor *auth.Actor, expert ExpertRef) (*Notification, bool, error) {
	if err := requireActor(actor); err != nil {
		return nil, false, err
	}
	expert, err := validExpert(expert)
	if err != nil {
		return nil, false, err
	}
	n, created, err := r.raise(ctx, actor, KindNudge, expert, "")
	if err != nil {
		return nil, false, fmt.Errorf("send nudge: %w", err)
	}
	return n, created, nil
}

func (r *Router) CancelNudge(ctx context.Context, actor *auth.Actor, expertID string) error {
	if err := requireActor(actor); err != nil {
		return err
	}
	if err := r.withdraw(ctx, actor, KindNudge, expertID); err != nil {
		return fmt.Errorf("cancel nudge for expert %s: %w", expertID, err)
	}
	return nil
}

// SendMeetingRequest broadcasts a meeting request about an expert, keeping
// the requester's reason on the record.
func (r *Router) SendMeetingRequest(ctx context.Context, actor *auth.Actor, expert ExpertRef, reason string) (*Notification, bool, error) {
	if err := requireActor(actor); err != nil {
		return nil, false, err
	}
	expert, err := validExpert(expert)
	if err != nil {
		return nil, false, err
	}
	reason, err = cleanText("reason", reason, false)
	if err != nil {
		return nil, false, err
	}
	n, created, err := r.raise(ctx, actor, KindMeetingRequest, expert, reason)
	if err != nil {
		return nil, false, fmt.Errorf("send meeting request: %w", err)
	}
	return n, created, nil
}

func (r *Router) CancelMeetingRequest(ctx context.Context, actor *auth.Actor, expertID string) error {
	if err := requireActor(actor); err != nil {
		return err
	}
	if err := r.withdraw(ctx, actor, KindMeetingRequest, expertID); err != nil {
		return fmt.Errorf("cancel meeting request for expert %s: %w", expertID, err)
	}
	return nil
}

// ReplyToMeetingRequest answers a meeting request the responder can see. The
// reply is addressed to the original requester and carries the request as
// its source. A request can be answered once.
func (r *Router) ReplyToMeetingRequest(ctx context.Context, responder *auth.Actor, requestID int64, text string) (*Notification, error) {
	if err := requireActor(responder); err != nil {
		return nil, err
	}
	text, err := cleanText("reply", text, true)
	if err != nil {
		return nil, err
	}

	var out *Notification
	err = r.tx.WithinTx(ctx, func(ctx context.Context) error {
		orig, err := r.repo.GetByID(ctx, requestID)
		if err != nil {
			return err
		}
		if orig.Kind != KindMeetingRequest {
			return fmt.Errorf("%w: notification %d is not a meeting request", apperr.ErrInvalid, requestID)
		}
		if !IsVisibleTo(orig, responder) {
			return apperr.ErrForbidden
		}

		subject := strconv.FormatInt(orig.ID, 10)
		if _, err := r.repo.FindBySubject(ctx, KindMeetingReply, subject); err == nil {
			return fmt.Errorf("%w: meeting request %d was already answered", apperr.ErrConflict, requestID)
		} else if !errors.Is(err, apperr.ErrNotFound) {
			return err
		}

		n := &Notification{
			Kind:             KindMeetingReply,
			TargetRef:        orig.TargetRef,
			TargetLabel:      orig.TargetLabel,
			SubjectRef:       subject,
			ActorID:          responder.ID,
			ActorDisplayName: responder.DisplayName,
			Recipient:        orig.ActorID,
			LinkedReply:      &LinkedReply{Content: text, Source: orig},
		}
		if err := r.create(ctx, n); err != nil {
			if errors.Is(err, apperr.ErrConflict) {
				return fmt.Errorf("%w: meeting request %d was already answered", apperr.ErrConflict, requestID)
			}
			return err
		}
		out = n
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("reply to meeting request %d: %w", requestID, err)
	}
	return out, nil
}

func (r *Router) visible(ctx context.Context, actor *auth.Actor) ([]*Notification, error) {
	all, err := r.repo.ListForRecipients(ctx, recipientsFor(actor))
	if err != nil {
		return nil, err
	}
	return Visible(all, actor), nil
}

// List returns the actor's visible notifications, newest first, and how many
// of them are unread. No actor sees an empty list.
func (r *Router) List(ctx context.Context, actor *auth.Actor) ([]*Notification, int, error) {
	if !actor.Valid() {
		return []*Notification{}, 0, nil
	}
	vis, err := r.visible(ctx, actor)
	if err != nil {
		return nil, 0, fmt.Errorf("list notifications: %w", err)
	}
	return vis, UnreadCount(vis), nil
}

func (r *Router) UnreadCount(ctx context.Context, actor *auth.Actor) (int, error) {
	if !actor.Valid() {
		return 0, nil
	}
	count, gen, ok := r.unread.get(ctx, actor)
	if ok {
		return count, nil
	}
	_, count, err := r.List(ctx, actor)
	if err != nil {
		return 0, err
	}
	r.unread.set(ctx, gen, actor, count)
	return count, nil
}

// MarkAllVisibleAsRead flips every unread visible notification and returns
// how many changed.
func (r *Router) MarkAllVisibleAsRead(ctx context.Context, actor *auth.Actor) (int, error) {
	if err := requireActor(actor); err != nil {
		return 0, err
	}
	var n int
	err := r.tx.WithinTx(ctx, func(ctx context.Context) error {
		vis, err := r.visible(ctx, actor)
		if err != nil {
			return err
		}
		var ids []int64
		for _, v := range vis {
			if !v.Read {
				ids = append(ids, v.ID)
			}
		}
		if n, err = r.repo.MarkRead(ctx, ids); err != nil {
			return err
		}
		if n > 0 {
			r.changed(ctx, nil)
		}
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("mark notifications read: %w", err)
	}
	return n, nil
}

// ClearAllVisible deletes every notification visible to the actor. Because a
// broadcast is visible to every researcher, clearing it removes it for all.
func (r *Router) ClearAllVisible(ctx context.Context, actor *auth.Actor) (int, error) {
	if err := requireActor(actor); err != nil {
		return 0, err
	}
	var n int
	err := r.tx.WithinTx(ctx, func(ctx context.Context) error {
		vis, err := r.visible(ctx, actor)
		if err != nil {
			return err
		}
		ids := make([]int64, len(vis))
		for i, v := range vis {
			ids[i] = v.ID
		}
		if n, err = r.repo.Delete(ctx, ids); err != nil {
			return err
		}
		if n > 0 {
			count := n
			r.changed(ctx, func() { r.metrics.NotificationsDeleted("user", count) })
		}
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("clear notifications: %w", err)
	}
	return n, nil
}

// lookupVisible loads id and hides it unless actor can see it.
func (r *Router) lookupVisible(ctx context.Context, actor *auth.Actor, id int64) (*Notification, error) {
	n, err := r.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !IsVisibleTo(n, actor) {
		return nil, apperr.ErrNotFound
	}
	return n, nil
}

func (r *Router) MarkAsRead(ctx context.Context, actor *auth.Actor, id int64) error {
	if err := requireActor(actor); err != nil {
		return err
	}
	err := r.tx.WithinTx(ctx, func(ctx context.Context) error {
		n, err := r.lookupVisible(ctx, actor, id)
		if err != nil {
			return err
		}
		if n.Read {
			return nil
		}
		if _, err := r.repo.MarkRead(ctx, []int64{id}); err != nil {
			return err
		}
		r.changed(ctx, nil)
		return nil
	})
	if err != nil {
		return fmt.Errorf("mark notification %d read: %w", id, err)
	}
	return nil
}

// DeleteOne removes a single notification visible to the actor.
func (r *Router) DeleteOne(ctx context.Context, actor *auth.Actor, id int64) error {
	if err := requireActor(actor); err != nil {
		return err
	}
	err := r.tx.WithinTx(ctx, func(ctx context.Context) error {
		if _, err := r.lookupVisible(ctx, actor, id); err != nil {
			return err
		}
		if _, err := r.repo.Delete(ctx, []int64{id}); err != nil {
			return err
		}
		r.changed(ctx, func() { r.metrics.NotificationsDeleted("user", 1) })
		return nil
	})
	if err != nil {
		return fmt.Errorf("delete notification %d: %w", id, err)
	}
	return nil
}

// PurgeRead removes read notifications created before cutoff.
func (r *Router) PurgeRead(ctx context.Context, cutoff time.Time) (int, error) {
	var n int
	err := r.tx.WithinTx(ctx, func(ctx context.Context) error {
		var err error
		if n, err = r.repo.PurgeReadBefore(ctx, cutoff); err != nil {
			return err
		}
		if n > 0 {
			count := n
			r.changed(ctx, func() { r.metrics.NotificationsDeleted("retention", count) })
		}
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("purge read notifications: %w", err)
	}
	return n, nil
}
