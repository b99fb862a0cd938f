package models

import "time"

// Event types emitted after a mutation changed state.
const (
	EventUserAdded    = "user.added"
	EventPostAdded    = "post.added"
	EventPostLiked    = "post.liked"
	EventCommentAdded = "comment.added"
	EventUserFollowed = "user.followed"
)

// Event describes one committed graph change. Actor is the user who caused it;
// Target is the entity it was applied to.
type Event struct {
	Type       string    `json:"type"`
	Actor      string    `json:"actor"`
	TargetKind Kind      `json:"target_kind"`
	Target     string    `json:"target"`
	ItemID     string    `json:"item_id,omitempty"`
	At         time.Time `json:"at"`
}
