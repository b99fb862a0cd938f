package models

import "time"

// Comment belongs to exactly one post for its lifetime.
type Comment struct {
	ID        string    `json:"id" bson:"_id"`
	Content   string    `json:"content" bson:"content"`
	Author    string    `json:"author" bson:"author"`
	Post      string    `json:"post" bson:"post"`
	CreatedAt time.Time `json:"created_at" bson:"created_at"`
	Rev       int64     `json:"-" bson:"rev"`
}

func (c *Comment) EntityKind() Kind      { return KindComment }
func (c *Comment) EntityID() string      { return c.ID }
func (c *Comment) Revision() int64       { return c.Rev }
func (c *Comment) SetRevision(rev int64) { c.Rev = rev }

func (c *Comment) Attr(name string) (string, bool) {
	switch name {
	case "_id", "id":
		return c.ID, true
	case "author":
		return c.Author, true
	case "post":
		return c.Post, true
	}
	return "", false
}

func (c *Comment) Clone() Entity {
	cp := *c
	return &cp
}
