package notification

import (
	"context"
	"errors"
	"testing"

	"github.com/Abhinaba-code/curalinkproject-sub000/internal/platform/apperr"
)

func TestRepoPebble_IndexValuesDoNotOverlap(t *testing.T) {
	repo := NewRepoPebble(newTestStore(t))
	ctx := context.Background()

	longer := &Notification{Kind: KindNudge, TargetRef: "e1\x00x", ActorID: "p1", Recipient: RecipientAllResearchers}
	if err := repo.Create(ctx, longer); err != nil {
		t.Fatalf("Create: %v", err)
	}

	if _, err := repo.FindByActorTarget(ctx, KindNudge, "p1", "e1"); !errors.Is(err, apperr.ErrNotFound) {
		t.Fatalf("lookup for e1 must not match e1\\x00x, got %v", err)
	}
	n, err := repo.DeleteByTarget(ctx, []Kind{KindNudge}, "e1")
	if err != nil {
		t.Fatalf("DeleteByTarget: %v", err)
	}
	if n != 0 {
		t.Errorf("expected nothing deleted for e1, got %d", n)
	}

	shorter := &Notification{Kind: KindNudge, TargetRef: "e1", ActorID: "p1", Recipient: RecipientAllResearchers}
	if err := repo.Create(ctx, shorter); err != nil {
		t.Fatalf("Create: %v", err)
	}
	got, err := repo.FindByActorTarget(ctx, KindNudge, "p1", "e1")
	if err != nil {
		t.Fatalf("FindByActorTarget: %v", err)
	}
	if got.ID != shorter.ID {
		t.Errorf("expected record %d, got %d", shorter.ID, got.ID)
	}
	if still, err := repo.GetByID(ctx, longer.ID); err != nil || still.TargetRef != "e1\x00x" {
		t.Errorf("other expert's record must survive: %+v %v", still, err)
	}
}

func TestRepoPebble_RecipientIndexPrefixes(t *testing.T) {
	repo := NewRepoPebble(newTestStore(t))
	ctx := context.Background()

	for _, rcpt := range []string{"r1", "r10", "r1\x00z"} {
		n := &Notification{Kind: KindMeetingReply, TargetRef: "exp", ActorID: "r9", Recipient: rcpt}
		if err := repo.Create(ctx, n); err != nil {
			t.Fatalf("Create(%q): %v", rcpt, err)
		}
	}
	items, err := repo.ListForRecipients(ctx, []string{"r1"})
	if err != nil {
		t.Fatalf("ListForRecipients: %v", err)
	}
	if len(items) != 1 || items[0].Recipient != "r1" {
		t.Errorf("expected only r1's notification, got %d", len(items))
	}
}
