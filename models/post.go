package models

import "time"

type Post struct {
	ID       string  `json:"id" bson:"_id"`
	Title    string  `json:"title" bson:"title"`
	Content  string  `json:"content" bson:"content"`
	ImageURL *string `json:"imageUrl,omitempty" bson:"image_url,omitempty"`
	Author   string  `json:"author" bson:"author"`
	// Likes is a set of user ids.
	Likes []string `json:"likes" bson:"likes"`
	// Comments is append-only, in creation order.
	Comments  []string  `json:"comments" bson:"comments"`
	CreatedAt time.Time `json:"created_at" bson:"created_at"`
	Rev       int64     `json:"-" bson:"rev"`
}

func (p *Post) EntityKind() Kind      { return KindPost }
func (p *Post) EntityID() string      { return p.ID }
func (p *Post) Revision() int64       { return p.Rev }
func (p *Post) SetRevision(rev int64) { p.Rev = rev }

func (p *Post) Attr(name string) (string, bool) {
	switch name {
	case "_id", "id":
		return p.ID, true
	case "title":
		return p.Title, true
	case "author":
		return p.Author, true
	case "image_url":
		if p.ImageURL == nil {
			return "", false
		}
		return *p.ImageURL, true
	}
	return "", false
}

func (p *Post) Clone() Entity {
	c := *p
	if p.ImageURL != nil {
		img := *p.ImageURL
		c.ImageURL = &img
	}
	c.Likes = cloneIDs(p.Likes)
	c.Comments = cloneIDs(p.Comments)
	return &c
}
