package graph

import (
	"sort"
	"strings"

	"socialgraph/models"
)

// Relation describes one traversable field of an entity kind.
type Relation struct {
	Target models.Kind
	Many   bool
	// Derived relations are computed by scanning the target kind instead of
	// reading a stored field.
	Derived bool
}

var relations = map[models.Kind]map[string]Relation{
	models.KindUser: {
		"posts":     {Target: models.KindPost, Many: true, Derived: true},
		"followers": {Target: models.KindUser, Many: true},
		"following": {Target: models.KindUser, Many: true},
	},
	models.KindPost: {
		"author":   {Target: models.KindUser},
		"likes":    {Target: models.KindUser, Many: true},
		"comments": {Target: models.KindComment, Many: true},
	},
	models.KindComment: {
		"author": {Target: models.KindUser},
		"post":   {Target: models.KindPost},
	},
}

// Selection is a tree of relation names to expand. An empty Selection
// resolves scalar fields only.
type Selection map[string]Selection

// Depth is the length of the longest path in s.
func (s Selection) Depth() int {
	deepest := 0
	for _, sub := range s {
		if d := 1 + sub.Depth(); d > deepest {
			deepest = d
		}
	}
	return deepest
}

// Paths lists s as sorted dot-separated paths, leaves only.
func (s Selection) Paths() []string {
	var out []string
	for name, sub := range s {
		if len(sub) == 0 {
			out = append(out, name)
			continue
		}
		for _, p := range sub.Paths() {
			out = append(out, name+"."+p)
		}
	}
	sort.Strings(out)
	return out
}

// ParseSelection turns dot-separated relation paths such as "comments.author"
// into a Selection rooted at kind. Unknown relations and paths longer than
// maxDepth are rejected.
func ParseSelection(kind models.Kind, paths []string, maxDepth int) (Selection, error) {
	sel := Selection{}
	for _, raw := range paths {
		path := strings.TrimSpace(raw)
		if path == "" {
			continue
		}
		parts := strings.Split(path, ".")
		if len(parts) > maxDepth {
			return nil, Validation("path %q is deeper than %d", path, maxDepth)
		}
		cur, k := sel, kind
		for _, name := range parts {
			rel, ok := relations[k][name]
			if !ok {
				return nil, Validation("%s has no relation %q", k, name)
			}
			next, ok := cur[name]
			if !ok {
				next = Selection{}
				cur[name] = next
			}
			cur, k = next, rel.Target
		}
	}
	return sel, nil
}

// DefaultSelection is the expansion used when a caller names no paths.
func DefaultSelection(kind models.Kind) Selection {
	switch kind {
	case models.KindUser:
		return Selection{"posts": {}, "followers": {}, "following": {}}
	case models.KindPost:
		return Selection{"author": {}, "likes": {}, "comments": {"author": {}}}
	case models.KindComment:
		return Selection{"author": {}, "post": {}}
	}
	return Selection{}
}
