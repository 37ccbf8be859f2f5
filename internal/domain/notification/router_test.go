package notification

import (
	"context"
	"errors"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/Abhinaba-code/curalinkproject-sub000/internal/platform/apperr"
	"github.com/Abhinaba-code/curalinkproject-sub000/internal/platform/auth"
	"github.com/Abhinaba-code/curalinkproject-sub000/internal/platform/metrics"
)

func counterValue(t *testing.T, m *metrics.Metrics, name string, labels map[string]string) float64 {
	t.Helper()
	families, err := m.Registry().Gather()
	if err != nil {
		t.Fatalf("gather: %v", err)
	}
	for _, f := range families {
		if f.GetName() != name {
			continue
		}
	metric:
		for _, mt := range f.GetMetric() {
			for _, lp := range mt.GetLabel() {
				if want, ok := labels[lp.GetName()]; ok && want != lp.GetValue() {
					continue metric
				}
			}
			return mt.GetCounter().GetValue()
		}
	}
	return 0
}

func TestNotifyNewPost_PatientBroadcastsToResearchers(t *testing.T) {
	r, _ := newTestRouter(t, Options{})
	ctx := context.Background()

	n, err := r.NotifyNewPost(ctx, patient1, PostEvent{PostID: "post-1", Title: "Fatigue after trial", AuthorID: "p1", AuthorRole: auth.RolePatient})
	if err != nil {
		t.Fatalf("NotifyNewPost: %v", err)
	}
	if n == nil || n.Kind != KindNewPost || n.Recipient != RecipientAllResearchers {
		t.Fatalf("unexpected notification: %+v", n)
	}
	if n.ID == 0 || n.CreatedAt.IsZero() {
		t.Error("expected id and creation time to be assigned")
	}
	if n.TargetRef != "post-1" || n.TargetLabel != "Fatigue after trial" || n.ActorDisplayName != "Pat One" {
		t.Errorf("unexpected fields: %+v", n)
	}

	if got := mustList(t, r, researcher1); len(got) != 1 {
		t.Errorf("researcher should see 1 notification, got %d", len(got))
	}
	if got := mustList(t, r, patient1); len(got) != 0 {
		t.Errorf("author must not see own broadcast, got %d", len(got))
	}
	if got := mustList(t, r, patient2); len(got) != 0 {
		t.Errorf("other patients must not see researcher broadcast, got %d", len(got))
	}
}

func TestNotifyNewPost_ResearcherPostEmitsNothing(t *testing.T) {
	r, _ := newTestRouter(t, Options{})

	n, err := r.NotifyNewPost(context.Background(), researcher1, PostEvent{PostID: "post-2", Title: "Call for participants"})
	if err != nil {
		t.Fatalf("NotifyNewPost: %v", err)
	}
	if n != nil {
		t.Fatalf("expected no notification, got %+v", n)
	}
	if got := mustList(t, r, researcher2); len(got) != 0 {
		t.Errorf("expected nothing for researcher2, got %d", len(got))
	}
}

func TestNotifyNewPost_RequiresActor(t *testing.T) {
	r, _ := newTestRouter(t, Options{})
	if _, err := r.NotifyNewPost(context.Background(), nil, PostEvent{PostID: "x"}); !errors.Is(err, apperr.ErrUnauthenticated) {
		t.Errorf("expected ErrUnauthenticated, got %v", err)
	}
}

func TestNotifyNewReply_Policy(t *testing.T) {
	tests := []struct {
		name   string
		actor  *auth.Actor
		ev     PostEvent
		expect bool
	}{
		{"researcher on patient post", researcher1, PostEvent{PostID: "p", AuthorID: "p1", AuthorRole: auth.RolePatient, ReplyID: "r"}, true},
		{"patient on own post", patient1, PostEvent{PostID: "p", AuthorID: "p1", AuthorRole: auth.RolePatient, ReplyID: "r"}, false},
		{"researcher on researcher post", researcher1, PostEvent{PostID: "p", AuthorID: "r2", AuthorRole: auth.RoleResearcher, ReplyID: "r"}, false},
		{"researcher on own post", researcher1, PostEvent{PostID: "p", AuthorID: "r1", AuthorRole: auth.RolePatient, ReplyID: "r"}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r, _ := newTestRouter(t, Options{})
			n, err := r.NotifyNewReply(context.Background(), tt.actor, tt.ev)
			if err != nil {
				t.Fatalf("NotifyNewReply: %v", err)
			}
			if (n != nil) != tt.expect {
				t.Fatalf("expected notification=%v, got %+v", tt.expect, n)
			}
			if n == nil {
				return
			}
			if n.Kind != KindNewReply || n.Recipient != tt.ev.AuthorID || n.SubjectRef != tt.ev.ReplyID {
				t.Errorf("unexpected notification: %+v", n)
			}
		})
	}
}

func TestSendNudge_DedupesPerActorAndExpert(t *testing.T) {
	r, _ := newTestRouter(t, Options{})
	ctx := context.Background()
	expert := ExpertRef{ID: "exp-9", DisplayName: "Dr. Nine"}

	first, created, err := r.SendNudge(ctx, patient1, expert)
	if err != nil || !created {
		t.Fatalf("first nudge: created=%v err=%v", created, err)
	}
	again, created, err := r.SendNudge(ctx, patient1, expert)
	if err != nil {
		t.Fatalf("second nudge: %v", err)
	}
	if created || again.ID != first.ID {
		t.Errorf("expected existing nudge %d to be returned, got %d created=%v", first.ID, again.ID, created)
	}

	if _, created, err := r.SendNudge(ctx, patient2, expert); err != nil || !created {
		t.Errorf("other actor must get its own nudge: created=%v err=%v", created, err)
	}
	if got := mustList(t, r, researcher1); len(got) != 2 {
		t.Errorf("expected 2 nudges visible, got %d", len(got))
	}
}

func TestSendNudge_ConcurrentCallsCreateOne(t *testing.T) {
	r, _ := newTestRouter(t, Options{})
	ctx := context.Background()
	expert := ExpertRef{ID: "exp-1"}

	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		created int
	)
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, c, err := r.SendNudge(ctx, patient1, expert)
			if err != nil {
				t.Errorf("SendNudge: %v", err)
				return
			}
			if c {
				mu.Lock()
				created++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	if created != 1 {
		t.Errorf("expected exactly one creation, got %d", created)
	}
	if got := mustList(t, r, researcher1); len(got) != 1 {
		t.Errorf("expected one nudge stored, got %d", len(got))
	}
}

func TestSendNudge_Validation(t *testing.T) {
	r, _ := newTestRouter(t, Options{})
	if _, _, err := r.SendNudge(context.Background(), patient1, ExpertRef{ID: "  "}); !errors.Is(err, apperr.ErrInvalid) {
		t.Errorf("expected ErrInvalid for blank expert, got %v", err)
	}
	n, _, err := r.SendNudge(context.Background(), patient1, ExpertRef{ID: "exp-2"})
	if err != nil {
		t.Fatalf("SendNudge: %v", err)
	}
	if n.TargetLabel != "exp-2" {
		t.Errorf("expected label to default to the expert id, got %q", n.TargetLabel)
	}
}

func TestSendNudge_RejectsControlCharacters(t *testing.T) {
	r, _ := newTestRouter(t, Options{})
	ctx := context.Background()

	if _, _, err := r.SendNudge(ctx, patient1, ExpertRef{ID: "e1\x00x"}); !errors.Is(err, apperr.ErrInvalid) {
		t.Errorf("expected ErrInvalid for NUL in expert id, got %v", err)
	}
	if _, _, err := r.SendMeetingRequest(ctx, patient1, ExpertRef{ID: "e1\nx"}, ""); !errors.Is(err, apperr.ErrInvalid) {
		t.Errorf("expected ErrInvalid for newline in expert id, got %v", err)
	}
	if err := r.CancelNudge(ctx, patient1, "e1\x00x"); !errors.Is(err, apperr.ErrInvalid) {
		t.Errorf("expected ErrInvalid on cancel, got %v", err)
	}
	n, created, err := r.SendNudge(ctx, patient1, ExpertRef{ID: "e1"})
	if err != nil || !created {
		t.Fatalf("SendNudge(e1): created=%v err=%v", created, err)
	}
	if n.TargetRef != "e1" {
		t.Errorf("expected target e1, got %q", n.TargetRef)
	}
}

func TestCancelNudge(t *testing.T) {
	r, _ := newTestRouter(t, Options{})
	ctx := context.Background()

	if _, _, err := r.SendNudge(ctx, patient1, ExpertRef{ID: "exp-3"}); err != nil {
		t.Fatalf("SendNudge: %v", err)
	}
	if err := r.CancelNudge(ctx, patient2, "exp-3"); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("another actor cannot cancel: got %v", err)
	}
	if err := r.CancelNudge(ctx, patient1, "exp-3"); err != nil {
		t.Fatalf("CancelNudge: %v", err)
	}
	if got := mustList(t, r, researcher1); len(got) != 0 {
		t.Errorf("expected nudge removed, got %d", len(got))
	}
	if err := r.CancelNudge(ctx, patient1, "exp-3"); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("second cancel should be ErrNotFound, got %v", err)
	}
	if _, created, err := r.SendNudge(ctx, patient1, ExpertRef{ID: "exp-3"}); err != nil || !created {
		t.Errorf("nudge after cancel must be new: created=%v err=%v", created, err)
	}
}

func TestSendMeetingRequest_KeepsReason(t *testing.T) {
	r, _ := newTestRouter(t, Options{})
	n, created, err := r.SendMeetingRequest(context.Background(), patient1,
		ExpertRef{ID: "exp-4", DisplayName: "Dr. Four"}, "  Second opinion on dosage  ")
	if err != nil || !created {
		t.Fatalf("SendMeetingRequest: created=%v err=%v", created, err)
	}
	if n.Reason != "Second opinion on dosage" {
		t.Errorf("unexpected reason %q", n.Reason)
	}
	if n.Kind != KindMeetingRequest || n.Recipient != RecipientAllResearchers {
		t.Errorf("unexpected notification: %+v", n)
	}

	_, _, err = r.SendMeetingRequest(context.Background(), patient2, ExpertRef{ID: "exp-4"}, strings.Repeat("x", maxTextLen+1))
	if !errors.Is(err, apperr.ErrInvalid) {
		t.Errorf("expected ErrInvalid for oversized reason, got %v", err)
	}
}

func TestReplyToMeetingRequest_RoutesToRequester(t *testing.T) {
	r, _ := newTestRouter(t, Options{})
	ctx := context.Background()

	req, _, err := r.SendMeetingRequest(ctx, patient1, ExpertRef{ID: "exp-5", DisplayName: "Dr. Five"}, "")
	if err != nil {
		t.Fatalf("SendMeetingRequest: %v", err)
	}
	reply, err := r.ReplyToMeetingRequest(ctx, researcher1, req.ID, "Happy to meet on Tuesday")
	if err != nil {
		t.Fatalf("ReplyToMeetingRequest: %v", err)
	}

	if reply.Kind != KindMeetingReply || reply.Recipient != "p1" || reply.ActorID != "r1" {
		t.Errorf("unexpected reply routing: %+v", reply)
	}
	if reply.TargetRef != "exp-5" || reply.SubjectRef != strconv.FormatInt(req.ID, 10) {
		t.Errorf("reply must reference the request: %+v", reply)
	}
	if reply.LinkedReply == nil || reply.LinkedReply.Content != "Happy to meet on Tuesday" {
		t.Fatalf("missing linked reply: %+v", reply.LinkedReply)
	}
	if reply.LinkedReply.Source == nil || reply.LinkedReply.Source.ID != req.ID {
		t.Errorf("linked reply must carry the source request")
	}

	inbox := mustList(t, r, patient1)
	if len(inbox) != 1 || inbox[0].ID != reply.ID {
		t.Fatalf("requester should see only the reply, got %d items", len(inbox))
	}
	if inbox[0].LinkedReply == nil || inbox[0].LinkedReply.Source == nil {
		t.Error("linked reply must survive storage")
	}
	for _, n := range mustList(t, r, researcher2) {
		if n.ID == reply.ID {
			t.Error("reply must not reach other researchers")
		}
	}
}

func TestReplyToMeetingRequest_Errors(t *testing.T) {
	r, _ := newTestRouter(t, Options{})
	ctx := context.Background()

	req, _, err := r.SendMeetingRequest(ctx, patient1, ExpertRef{ID: "exp-6"}, "")
	if err != nil {
		t.Fatalf("SendMeetingRequest: %v", err)
	}
	nudge, _, err := r.SendNudge(ctx, patient1, ExpertRef{ID: "exp-6"})
	if err != nil {
		t.Fatalf("SendNudge: %v", err)
	}

	if _, err := r.ReplyToMeetingRequest(ctx, researcher1, req.ID, "   "); !errors.Is(err, apperr.ErrInvalid) {
		t.Errorf("blank reply: expected ErrInvalid, got %v", err)
	}
	if _, err := r.ReplyToMeetingRequest(ctx, researcher1, 9999, "hi"); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("unknown request: expected ErrNotFound, got %v", err)
	}
	if _, err := r.ReplyToMeetingRequest(ctx, researcher1, nudge.ID, "hi"); !errors.Is(err, apperr.ErrInvalid) {
		t.Errorf("reply to nudge: expected ErrInvalid, got %v", err)
	}
	if _, err := r.ReplyToMeetingRequest(ctx, patient2, req.ID, "hi"); !errors.Is(err, apperr.ErrForbidden) {
		t.Errorf("patient cannot see the request: expected ErrForbidden, got %v", err)
	}
	if _, err := r.ReplyToMeetingRequest(ctx, patient1, req.ID, "hi"); !errors.Is(err, apperr.ErrForbidden) {
		t.Errorf("requester cannot answer own request: expected ErrForbidden, got %v", err)
	}

	if _, err := r.ReplyToMeetingRequest(ctx, researcher1, req.ID, "yes"); err != nil {
		t.Fatalf("first reply: %v", err)
	}
	if _, err := r.ReplyToMeetingRequest(ctx, researcher2, req.ID, "me too"); !errors.Is(err, apperr.ErrConflict) {
		t.Errorf("second reply: expected ErrConflict, got %v", err)
	}
}

func TestMarkAllVisibleAsRead(t *testing.T) {
	r, _ := newTestRouter(t, Options{})
	ctx := context.Background()

	for _, id := range []string{"a", "b", "c"} {
		if _, err := r.NotifyNewPost(ctx, patient1, PostEvent{PostID: id, Title: id}); err != nil {
			t.Fatalf("NotifyNewPost: %v", err)
		}
	}
	if _, err := r.NotifyNewReply(ctx, researcher2, PostEvent{PostID: "a", AuthorID: "p1", AuthorRole: auth.RolePatient, ReplyID: "x"}); err != nil {
		t.Fatalf("NotifyNewReply: %v", err)
	}

	if got := mustUnread(t, r, researcher1); got != 3 {
		t.Fatalf("expected 3 unread, got %d", got)
	}
	n, err := r.MarkAllVisibleAsRead(ctx, researcher1)
	if err != nil {
		t.Fatalf("MarkAllVisibleAsRead: %v", err)
	}
	if n != 3 {
		t.Errorf("expected 3 updated, got %d", n)
	}
	if got := mustUnread(t, r, researcher1); got != 0 {
		t.Errorf("expected 0 unread after mark, got %d", got)
	}
	if got := mustUnread(t, r, patient1); got != 1 {
		t.Errorf("patient's reply notification must stay unread, got %d", got)
	}

	n, err = r.MarkAllVisibleAsRead(ctx, researcher1)
	if err != nil || n != 0 {
		t.Errorf("second mark: n=%d err=%v", n, err)
	}
}

func TestMarkAsRead_OnlyVisible(t *testing.T) {
	r, _ := newTestRouter(t, Options{})
	ctx := context.Background()

	post, err := r.NotifyNewPost(ctx, patient1, PostEvent{PostID: "a", Title: "a"})
	if err != nil {
		t.Fatalf("NotifyNewPost: %v", err)
	}
	if err := r.MarkAsRead(ctx, patient2, post.ID); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("invisible notification: expected ErrNotFound, got %v", err)
	}
	if err := r.MarkAsRead(ctx, patient1, post.ID); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("own broadcast: expected ErrNotFound, got %v", err)
	}
	if err := r.MarkAsRead(ctx, researcher1, post.ID); err != nil {
		t.Fatalf("MarkAsRead: %v", err)
	}
	if err := r.MarkAsRead(ctx, researcher1, post.ID); err != nil {
		t.Errorf("marking twice must be a no-op, got %v", err)
	}
	if got := mustList(t, r, researcher2); len(got) != 1 || !got[0].Read {
		t.Error("read state is shared by every viewer of a broadcast")
	}
}

func TestDeleteOne_OnlyVisible(t *testing.T) {
	r, _ := newTestRouter(t, Options{})
	ctx := context.Background()

	reply, err := r.NotifyNewReply(ctx, researcher1, PostEvent{PostID: "a", AuthorID: "p1", AuthorRole: auth.RolePatient, ReplyID: "x"})
	if err != nil {
		t.Fatalf("NotifyNewReply: %v", err)
	}
	if err := r.DeleteOne(ctx, researcher1, reply.ID); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("sender cannot delete recipient's notification: got %v", err)
	}
	if err := r.DeleteOne(ctx, patient1, reply.ID); err != nil {
		t.Fatalf("DeleteOne: %v", err)
	}
	if err := r.DeleteOne(ctx, patient1, reply.ID); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("second delete: expected ErrNotFound, got %v", err)
	}
}

func TestClearAllVisible(t *testing.T) {
	r, _ := newTestRouter(t, Options{})
	ctx := context.Background()

	if _, err := r.NotifyNewPost(ctx, patient1, PostEvent{PostID: "a", Title: "a"}); err != nil {
		t.Fatal(err)
	}
	if _, _, err := r.SendNudge(ctx, researcher2, ExpertRef{ID: "exp"}); err != nil {
		t.Fatal(err)
	}
	if _, err := r.NotifyNewReply(ctx, researcher1, PostEvent{PostID: "a", AuthorID: "p1", AuthorRole: auth.RolePatient, ReplyID: "x"}); err != nil {
		t.Fatal(err)
	}

	n, err := r.ClearAllVisible(ctx, researcher1)
	if err != nil {
		t.Fatalf("ClearAllVisible: %v", err)
	}
	if n != 2 {
		t.Errorf("expected 2 deleted, got %d", n)
	}
	if got := mustList(t, r, researcher2); len(got) != 0 {
		t.Errorf("cleared broadcasts are gone for every researcher, got %d", len(got))
	}
	if got := mustList(t, r, patient1); len(got) != 1 {
		t.Errorf("patient's direct notification must survive, got %d", len(got))
	}
}

func TestRemoveForPostAndReply(t *testing.T) {
	r, _ := newTestRouter(t, Options{})
	ctx := context.Background()

	if _, err := r.NotifyNewPost(ctx, patient1, PostEvent{PostID: "post-a", Title: "A"}); err != nil {
		t.Fatal(err)
	}
	for _, replyID := range []string{"reply-1", "reply-2"} {
		if _, err := r.NotifyNewReply(ctx, researcher1, PostEvent{PostID: "post-a", AuthorID: "p1", AuthorRole: auth.RolePatient, ReplyID: replyID}); err != nil {
			t.Fatal(err)
		}
	}
	if _, err := r.NotifyNewPost(ctx, patient2, PostEvent{PostID: "post-b", Title: "B"}); err != nil {
		t.Fatal(err)
	}

	n, err := r.RemoveForReply(ctx, "reply-1")
	if err != nil || n != 1 {
		t.Fatalf("RemoveForReply: n=%d err=%v", n, err)
	}
	if got := mustList(t, r, patient1); len(got) != 1 || got[0].SubjectRef != "reply-2" {
		t.Errorf("expected only reply-2 notification left, got %+v", got)
	}

	n, err = r.RemoveForPost(ctx, "post-a")
	if err != nil || n != 2 {
		t.Fatalf("RemoveForPost: n=%d err=%v", n, err)
	}
	if got := mustList(t, r, patient1); len(got) != 0 {
		t.Errorf("expected patient inbox empty, got %d", len(got))
	}
	got := mustList(t, r, researcher1)
	if len(got) != 1 || got[0].TargetRef != "post-b" {
		t.Errorf("unrelated post notification must survive, got %+v", got)
	}

	if n, err := r.RemoveForPost(ctx, "post-a"); err != nil || n != 0 {
		t.Errorf("second removal: n=%d err=%v", n, err)
	}
}

func TestRouter_JoinsOuterUnitOfWork(t *testing.T) {
	r, store := newTestRouter(t, Options{})
	ctx := context.Background()
	boom := errors.New("post insert failed")

	err := store.WithinTx(ctx, func(ctx context.Context) error {
		if _, err := r.NotifyNewPost(ctx, patient1, PostEvent{PostID: "a", Title: "a"}); err != nil {
			return err
		}
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("expected outer error, got %v", err)
	}
	if got := mustList(t, r, researcher1); len(got) != 0 {
		t.Errorf("rolled back unit must leave no notification, got %d", len(got))
	}
}

func TestUnreadCount_CachedAndInvalidated(t *testing.T) {
	c := newMapCache()
	m := metrics.New()
	r, _ := newTestRouter(t, Options{Cache: c, CacheTTL: time.Minute, Metrics: m})
	ctx := context.Background()

	first, err := r.NotifyNewPost(ctx, patient1, PostEvent{PostID: "a", Title: "a"})
	if err != nil {
		t.Fatal(err)
	}
	if got := mustUnread(t, r, researcher1); got != 1 {
		t.Fatalf("expected 1 unread, got %d", got)
	}
	if got := mustUnread(t, r, researcher1); got != 1 {
		t.Fatalf("expected cached 1 unread, got %d", got)
	}
	if hits := counterValue(t, m, "curalink_unread_cache_lookups_total", map[string]string{"result": "hit"}); hits != 1 {
		t.Errorf("expected 1 cache hit, got %v", hits)
	}

	if _, err := r.NotifyNewPost(ctx, patient2, PostEvent{PostID: "b", Title: "b"}); err != nil {
		t.Fatal(err)
	}
	if got := mustUnread(t, r, researcher1); got != 2 {
		t.Errorf("write must invalidate the cached count, got %d", got)
	}

	if err := r.MarkAsRead(ctx, researcher1, first.ID); err != nil {
		t.Fatal(err)
	}
	if got := mustUnread(t, r, researcher1); got != 1 {
		t.Errorf("expected 1 unread after marking, got %d", got)
	}
}

func TestUnreadCount_RolledBackWriteKeepsCache(t *testing.T) {
	c := newMapCache()
	r, store := newTestRouter(t, Options{Cache: c})
	ctx := context.Background()

	if got := mustUnread(t, r, researcher1); got != 0 {
		t.Fatalf("expected 0, got %d", got)
	}
	_ = store.WithinTx(ctx, func(ctx context.Context) error {
		if _, err := r.NotifyNewPost(ctx, patient1, PostEvent{PostID: "a", Title: "a"}); err != nil {
			return err
		}
		return errors.New("abort")
	})
	if _, ok := c.data[unreadGenKey]; ok {
		t.Error("generation must not move for a rolled back write")
	}
}

func TestRouter_RecordsMetrics(t *testing.T) {
	m := metrics.New()
	r, _ := newTestRouter(t, Options{Metrics: m})
	ctx := context.Background()

	if _, err := r.NotifyNewPost(ctx, patient1, PostEvent{PostID: "a", Title: "a"}); err != nil {
		t.Fatal(err)
	}
	if _, _, err := r.SendNudge(ctx, patient1, ExpertRef{ID: "e"}); err != nil {
		t.Fatal(err)
	}
	if _, err := r.RemoveForPost(ctx, "a"); err != nil {
		t.Fatal(err)
	}

	if v := counterValue(t, m, "curalink_notifications_created_total", map[string]string{"kind": "new_post"}); v != 1 {
		t.Errorf("new_post created = %v", v)
	}
	if v := counterValue(t, m, "curalink_notifications_created_total", map[string]string{"kind": "nudge"}); v != 1 {
		t.Errorf("nudge created = %v", v)
	}
	if v := counterValue(t, m, "curalink_notifications_deleted_total", map[string]string{"cause": "cascade"}); v != 1 {
		t.Errorf("cascade deleted = %v", v)
	}
}

func TestPurgeRead(t *testing.T) {
	r, _ := newTestRouter(t, Options{})
	ctx := context.Background()

	a, _ := r.NotifyNewPost(ctx, patient1, PostEvent{PostID: "a", Title: "a"})
	if _, err := r.NotifyNewPost(ctx, patient1, PostEvent{PostID: "b", Title: "b"}); err != nil {
		t.Fatal(err)
	}
	if err := r.MarkAsRead(ctx, researcher1, a.ID); err != nil {
		t.Fatal(err)
	}

	n, err := r.PurgeRead(ctx, time.Now().Add(-time.Hour))
	if err != nil || n != 0 {
		t.Fatalf("nothing is old enough yet: n=%d err=%v", n, err)
	}
	n, err = r.PurgeRead(ctx, time.Now().Add(time.Hour))
	if err != nil || n != 1 {
		t.Fatalf("expected the read notification purged: n=%d err=%v", n, err)
	}
	got := mustList(t, r, researcher1)
	if len(got) != 1 || got[0].TargetRef != "b" {
		t.Errorf("unread notification must survive, got %+v", got)
	}
}
