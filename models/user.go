package models

import "time"

// User is a member of the graph. Posts are never stored here; they are derived
// from Post.Author at resolution time.
type User struct {
	ID        string    `json:"id" bson:"_id"`
	Name      string    `json:"name" bson:"name"`
	Email     string    `json:"email" bson:"email"`
	Followers []string  `json:"followers" bson:"followers"`
	Following []string  `json:"following" bson:"following"`
	CreatedAt time.Time `json:"created_at" bson:"created_at"`
	Rev       int64     `json:"-" bson:"rev"`
}

func (u *User) EntityKind() Kind      { return KindUser }
func (u *User) EntityID() string      { return u.ID }
func (u *User) Revision() int64       { return u.Rev }
func (u *User) SetRevision(rev int64) { u.Rev = rev }

func (u *User) Attr(name string) (string, bool) {
	switch name {
	case "_id", "id":
		return u.ID, true
	case "name":
		return u.Name, true
	case "email":
		return u.Email, true
	}
	return "", false
}

func (u *User) Clone() Entity {
	c := *u
	c.Followers = cloneIDs(u.Followers)
	c.Following = cloneIDs(u.Following)
	return &c
}
