package notification

import (
	"context"
	"encoding/json"
	"errors"
	"strconv"
	"time"

	"github.com/Abhinaba-code/curalinkproject-sub000/internal/platform/apperr"
	"github.com/Abhinaba-code/curalinkproject-sub000/internal/platform/kv"
)

// Key layout:
//
//	notif/id/<id>                           JSON record
//	notif/r\x00<len><recipient>\x00<id>     recipient index
//	notif/t\x00<len><targetRef>\x00<id>     target index
//	notif/s\x00<len><subjectRef>\x00<id>    subject index
//
// <len> is the byte length of the value, so no value's prefix can match a
// longer value that starts with it.
const (
	seqName      = "notifications"
	recordPrefix = "notif/id/"
	sep          = "\x00"
)

type repoPebble struct{ store *kv.Store }

func NewRepoPebble(store *kv.Store) Repository {
	return &repoPebble{store: store}
}

func recordKey(id int64) []byte {
	return []byte(recordPrefix + kv.Uint64Key(uint64(id)))
}

func indexPrefix(kind, value string) []byte {
	return []byte("notif/" + kind + sep + kv.Uint64Key(uint64(len(value))) + value + sep)
}

func indexKey(kind, value string, id int64) []byte {
	return append(indexPrefix(kind, value), kv.Uint64Key(uint64(id))...)
}

func (n *Notification) indexKeys() [][]byte {
	keys := [][]byte{
		indexKey("r", n.Recipient, n.ID),
		indexKey("t", n.TargetRef, n.ID),
	}
	if n.SubjectRef != "" {
		keys = append(keys, indexKey("s", n.SubjectRef, n.ID))
	}
	return keys
}

func idFromIndexKey(key []byte) (int64, error) {
	if len(key) < 20 {
		return 0, errors.New("short index key")
	}
	return strconv.ParseInt(string(key[len(key)-20:]), 10, 64)
}

func (r *repoPebble) put(ctx context.Context, n *Notification) error {
	if err := r.store.SetJSON(ctx, recordKey(n.ID), n); err != nil {
		return err
	}
	for _, k := range n.indexKeys() {
		if err := r.store.Set(ctx, k, nil); err != nil {
			return err
		}
	}
	return nil
}

func (r *repoPebble) remove(ctx context.Context, n *Notification) error {
	if err := r.store.Delete(ctx, recordKey(n.ID)); err != nil {
		return err
	}
	for _, k := range n.indexKeys() {
		if err := r.store.Delete(ctx, k); err != nil {
			return err
		}
	}
	return nil
}

// byIndex loads the records referenced by an index prefix, newest first.
func (r *repoPebble) byIndex(ctx context.Context, kind, value string, keep func(*Notification) bool) ([]*Notification, error) {
	var ids []int64
	err := r.store.ScanReverse(ctx, indexPrefix(kind, value), func(key, _ []byte) error {
		id, err := idFromIndexKey(key)
		if err != nil {
			return err
		}
		ids = append(ids, id)
		return nil
	})
	if err != nil {
		return nil, err
	}

	var out []*Notification
	for _, id := range ids {
		n, err := r.GetByID(ctx, id)
		if errors.Is(err, apperr.ErrNotFound) {
			continue
		}
		if err != nil {
			return nil, err
		}
		if keep == nil || keep(n) {
			out = append(out, n)
		}
	}
	return out, nil
}

func (r *repoPebble) Create(ctx context.Context, n *Notification) error {
	return r.store.WithinTx(ctx, func(ctx context.Context) error {
		id, err := r.store.NextSeq(ctx, seqName)
		if err != nil {
			return err
		}
		n.ID = id
		n.CreatedAt = time.Now().UTC()
		return r.put(ctx, n)
	})
}

func (r *repoPebble) GetByID(ctx context.Context, id int64) (*Notification, error) {
	var n Notification
	if err := r.store.GetJSON(ctx, recordKey(id), &n); err != nil {
		if errors.Is(err, kv.ErrNotFound) {
			return nil, apperr.ErrNotFound
		}
		return nil, err
	}
	return &n, nil
}

func (r *repoPebble) ListForRecipients(ctx context.Context, recipients []string) ([]*Notification, error) {
	var out []*Notification
	for _, rcpt := range recipients {
		items, err := r.byIndex(ctx, "r", rcpt, nil)
		if err != nil {
			return nil, err
		}
		out = append(out, items...)
	}
	return out, nil
}

func (r *repoPebble) FindByActorTarget(ctx context.Context, kind Kind, actorID, targetRef string) (*Notification, error) {
	items, err := r.byIndex(ctx, "t", targetRef, func(n *Notification) bool {
		return n.Kind == kind && n.ActorID == actorID
	})
	if err != nil {
		return nil, err
	}
	if len(items) == 0 {
		return nil, apperr.ErrNotFound
	}
	return items[0], nil
}

func (r *repoPebble) FindBySubject(ctx context.Context, kind Kind, subjectRef string) (*Notification, error) {
	items, err := r.byIndex(ctx, "s", subjectRef, func(n *Notification) bool { return n.Kind == kind })
	if err != nil {
		return nil, err
	}
	if len(items) == 0 {
		return nil, apperr.ErrNotFound
	}
	return items[0], nil
}

func (r *repoPebble) MarkRead(ctx context.Context, ids []int64) (int, error) {
	count := 0
	err := r.store.WithinTx(ctx, func(ctx context.Context) error {
		for _, id := range ids {
			n, err := r.GetByID(ctx, id)
			if errors.Is(err, apperr.ErrNotFound) {
				continue
			}
			if err != nil {
				return err
			}
			if n.Read {
				continue
			}
			n.Read = true
			if err := r.store.SetJSON(ctx, recordKey(id), n); err != nil {
				return err
			}
			count++
		}
		return nil
	})
	return count, err
}

func (r *repoPebble) deleteAll(ctx context.Context, items []*Notification) (int, error) {
	err := r.store.WithinTx(ctx, func(ctx context.Context) error {
		for _, n := range items {
			if err := r.remove(ctx, n); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return len(items), nil
}

func (r *repoPebble) Delete(ctx context.Context, ids []int64) (int, error) {
	var items []*Notification
	for _, id := range ids {
		n, err := r.GetByID(ctx, id)
		if errors.Is(err, apperr.ErrNotFound) {
			continue
		}
		if err != nil {
			return 0, err
		}
		items = append(items, n)
	}
	return r.deleteAll(ctx, items)
}

func (r *repoPebble) DeleteByTarget(ctx context.Context, kinds []Kind, targetRef string) (int, error) {
	want := make(map[Kind]bool, len(kinds))
	for _, k := range kinds {
		want[k] = true
	}
	items, err := r.byIndex(ctx, "t", targetRef, func(n *Notification) bool { return want[n.Kind] })
	if err != nil {
		return 0, err
	}
	return r.deleteAll(ctx, items)
}

func (r *repoPebble) DeleteBySubject(ctx context.Context, kind Kind, subjectRef string) (int, error) {
	items, err := r.byIndex(ctx, "s", subjectRef, func(n *Notification) bool { return n.Kind == kind })
	if err != nil {
		return 0, err
	}
	return r.deleteAll(ctx, items)
}

func (r *repoPebble) PurgeReadBefore(ctx context.Context, cutoff time.Time) (int, error) {
	count := 0
	err := r.store.WithinTx(ctx, func(ctx context.Context) error {
		var stale []*Notification
		err := r.store.Scan(ctx, []byte(recordPrefix), func(_, value []byte) error {
			var n Notification
			if err := json.Unmarshal(value, &n); err != nil {
				return err
			}
			if n.Read && n.CreatedAt.Before(cutoff) {
				stale = append(stale, &n)
			}
			return nil
		})
		if err != nil {
			return err
		}
		for _, n := range stale {
			if err := r.remove(ctx, n); err != nil {
				return err
			}
		}
		count = len(stale)
		return nil
	})
	return count, err
}
