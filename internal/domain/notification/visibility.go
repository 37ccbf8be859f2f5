package notification

import (
	"sort"

	"github.com/Abhinaba-code/curalinkproject-sub000/internal/platform/auth"
)

// IsVisibleTo reports whether actor may see n: it is addressed to the actor
// (directly, or to all researchers when the actor is one) and the actor did
// not originate it.
func IsVisibleTo(n *Notification, actor *auth.Actor) bool {
	if n == nil || !actor.Valid() {
		return false
	}
	if n.ActorID == actor.ID {
		return false
	}
	return n.Recipient == actor.ID ||
		(actor.IsResearcher() && n.Recipient == RecipientAllResearchers)
}

// Visible filters all down to what actor may see, newest first. The input is
// not modified. A nil actor sees nothing.
func Visible(all []*Notification, actor *auth.Actor) []*Notification {
	out := make([]*Notification, 0)
	for _, n := range all {
		if IsVisibleTo(n, actor) {
			out = append(out, n)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	return out
}

// UnreadCount counts the unread entries of an already filtered list.
func UnreadCount(visible []*Notification) int {
	n := 0
	for _, v := range visible {
		if !v.Read {
			n++
		}
	}
	return n
}

// recipientsFor lists the recipient values whose notifications may be
// visible to actor. Repositories use it as a coarse index before Visible
// applies the exact rule.
func recipientsFor(actor *auth.Actor) []string {
	if !actor.Valid() {
		return nil
	}
	if actor.IsResearcher() {
		return []string{actor.ID, RecipientAllResearchers}
	}
	return []string{actor.ID}
}
