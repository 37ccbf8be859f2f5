package forum

import (
	"github.com/Abhinaba-code/curalinkproject-sub000/internal/platform/auth"
)

// Permissions describes what an actor may do with a post.
type Permissions struct {
	CanDelete bool `json:"can_delete"`
	CanReply  bool `json:"can_reply"`
	CanReact  bool `json:"can_react"`
}

type ReplyPermissions struct {
	CanDelete bool `json:"can_delete"`
	CanReact  bool `json:"can_react"`
}

// CanDeletePost reports whether actor wrote p.
func CanDeletePost(actor *auth.Actor, p *Post) bool {
	return actor.Valid() && p != nil && p.Author.ID == actor.ID
}

func CanDeleteReply(actor *auth.Actor, r *Reply) bool {
	return actor.Valid() && r != nil && r.Author.ID == actor.ID
}

// CanReactToPost allows researchers to react to posts written by patients.
func CanReactToPost(actor *auth.Actor, p *Post) bool {
	return actor.IsResearcher() && p != nil && p.Author.Role == auth.RolePatient
}

// CanReply allows researchers to reply anywhere and patients to reply in
// their own threads.
func CanReply(actor *auth.Actor, p *Post) bool {
	if !actor.Valid() || p == nil {
		return false
	}
	return actor.IsResearcher() || p.Author.ID == actor.ID
}

// CanReactToReply allows anyone taking part in the thread to react to a reply.
func CanReactToReply(actor *auth.Actor, p *Post) bool {
	return CanReply(actor, p)
}

// PostPermissions evaluates every rule for actor against p.
func PostPermissions(actor *auth.Actor, p *Post) Permissions {
	return Permissions{
		CanDelete: CanDeletePost(actor, p),
		CanReply:  CanReply(actor, p),
		CanReact:  CanReactToPost(actor, p),
	}
}

// View decorates p with the permissions of actor.
func View(actor *auth.Actor, p *Post) *PostView {
	v := &PostView{
		Post:             p,
		Permissions:      PostPermissions(actor, p),
		ReplyPermissions: make(map[string]ReplyPermissions, len(p.Replies)),
	}
	canReact := CanReactToReply(actor, p)
	for _, r := range p.Replies {
		v.ReplyPermissions[r.ID.String()] = ReplyPermissions{
			CanDelete: CanDeleteReply(actor, r),
			CanReact:  canReact,
		}
	}
	return v
}

// Policy decides which role rules the service enforces. Ownership is always
// enforced; role gating of replies and reactions only when StrictRoles is
// set.
type Policy struct {
	StrictRoles bool
}

func (p Policy) allowReply(actor *auth.Actor, post *Post) bool {
	return !p.StrictRoles || CanReply(actor, post)
}

func (p Policy) allowPostReaction(actor *auth.Actor, post *Post) bool {
	return !p.StrictRoles || CanReactToPost(actor, post)
}

func (p Policy) allowReplyReaction(actor *auth.Actor, post *Post) bool {
	return !p.StrictRoles || CanReactToReply(actor, post)
}
