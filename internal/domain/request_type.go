package domain

import "time"

// RequestType is a node of a client's request taxonomy forest.
type RequestType struct {
	ID        string
	ParentID  *string
	Name      string
	Code      *string
	Weight    int
	Active    bool
	CreatedAt time.Time
	UpdatedAt time.Time
}

// WouldCycle reports whether giving node id the parent newParent would create
// a cycle, walking the parent chain of the given forest.
func WouldCycle(types []RequestType, id, newParent string) bool {
	parents := make(map[string]*string, len(types))
	for i := range types {
		parents[types[i].ID] = types[i].ParentID
	}
	seen := map[string]bool{}
	for cur := newParent; cur != ""; {
		if cur == id || seen[cur] {
			return true
		}
		seen[cur] = true
		p, ok := parents[cur]
		if !ok || p == nil {
			return false
		}
		cur = *p
	}
	return false
}
