package forum

import "sort"

// ToggleReaction returns the reactions after actorID picks emoji. Picking the
// emoji the actor already chose removes their reaction; picking another one
// moves it. The input map is never modified.
func ToggleReaction(reactions ReactionMap, actorID, emoji string) ReactionMap {
	had := contains(reactions[emoji], actorID)

	out := make(ReactionMap, len(reactions)+1)
	for e, ids := range reactions {
		kept := make([]string, 0, len(ids))
		for _, id := range ids {
			if id != actorID {
				kept = append(kept, id)
			}
		}
		if len(kept) > 0 {
			out[e] = kept
		}
	}
	if !had {
		ids := append(out[emoji], actorID)
		sort.Strings(ids)
		out[emoji] = ids
	}
	return out
}

// ReactionOf returns the emoji actorID has chosen, or "".
func ReactionOf(reactions ReactionMap, actorID string) string {
	for e, ids := range reactions {
		if contains(ids, actorID) {
			return e
		}
	}
	return ""
}

// toggleOutcome classifies a toggle as "added", "removed" or "switched".
func toggleOutcome(before, after ReactionMap, actorID string) string {
	prev, next := ReactionOf(before, actorID), ReactionOf(after, actorID)
	switch {
	case next == "":
		return "removed"
	case prev == "":
		return "added"
	default:
		return "switched"
	}
}

func contains(ids []string, id string) bool {
	for _, v := range ids {
		if v == id {
			return true
		}
	}
	return false
}
