package notification

import (
	"context"
	"time"
)

// Repository persists notifications. Implementations pick up the current
// unit of work from ctx. Lookups that match nothing return apperr.ErrNotFound.
type Repository interface {
	// Create assigns ID and CreatedAt.
	Create(ctx context.Context, n *Notification) error
	GetByID(ctx context.Context, id int64) (*Notification, error)
	// ListForRecipients returns every notification whose recipient is one of
	// recipients, in no particular order.
	ListForRecipients(ctx context.Context, recipients []string) ([]*Notification, error)
	// FindByActorTarget returns the newest notification of kind raised by
	// actorID about targetRef.
	FindByActorTarget(ctx context.Context, kind Kind, actorID, targetRef string) (*Notification, error)
	FindBySubject(ctx context.Context, kind Kind, subjectRef string) (*Notification, error)
	MarkRead(ctx context.Context, ids []int64) (int, error)
	Delete(ctx context.Context, ids []int64) (int, error)
	DeleteByTarget(ctx context.Context, kinds []Kind, targetRef string) (int, error)
	DeleteBySubject(ctx context.Context, kind Kind, subjectRef string) (int, error)
	// PurgeReadBefore removes read notifications created before cutoff.
	PurgeReadBefore(ctx context.Context, cutoff time.Time) (int, error)
}
