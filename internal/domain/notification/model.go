package notification

import (
	"time"

	"github.com/Abhinaba-code/curalinkproject-sub000/internal/platform/auth"
)

type Kind string

const (
	KindNewPost        Kind = "new_post"
	KindNewReply       Kind = "new_reply"
	KindNudge          Kind = "nudge"
	KindMeetingRequest Kind = "meeting_request"
	KindMeetingReply   Kind = "meeting_reply"
)

// RecipientAllResearchers addresses a notification to every researcher.
const RecipientAllResearchers = "all_researchers"

// Notification is a directed event derived from a forum mutation or an
// expert-directed action. ID is server-assigned, strictly increasing, and the
// only recency ordering.
type Notification struct {
	ID          int64  `json:"id"`
	Kind        Kind   `json:"kind"`
	TargetRef   string `json:"target_ref"`
	TargetLabel string `json:"target_label"`
	// SubjectRef is the reply id of a new_reply, or the request id answered
	// by a meeting_reply.
	SubjectRef       string       `json:"subject_ref,omitempty"`
	ActorID          string       `json:"actor_id"`
	ActorDisplayName string       `json:"actor_display_name"`
	Recipient        string       `json:"recipient"`
	Reason           string       `json:"reason,omitempty"`
	Read             bool         `json:"read"`
	LinkedReply      *LinkedReply `json:"linked_reply,omitempty"`
	CreatedAt        time.Time    `json:"created_at"`
}

type LinkedReply struct {
	Content string        `json:"content"`
	Source  *Notification `json:"source_notification"`
}

// ExpertRef identifies the external expert a nudge or meeting request is
// about.
type ExpertRef struct {
	ID          string `json:"expert_id"`
	DisplayName string `json:"expert_name"`
}

// PostEvent describes a forum mutation that may fan out a notification.
type PostEvent struct {
	PostID     string
	Title      string
	AuthorID   string
	AuthorRole auth.Role
	// ReplyID is set for new replies.
	ReplyID string
}
