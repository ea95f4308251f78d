package repository

import (
	"fmt"
	"strings"

	"github.com/lib/pq"
)

// where accumulates AND-ed conditions with numbered placeholders.
type where struct {
	conds []string
	args  []interface{}
}

func (w *where) arg(v interface{}) string {
	w.args = append(w.args, v)
	return fmt.Sprintf("$%d", len(w.args))
}

func (w *where) add(cond string) {
	w.conds = append(w.conds, cond)
}

func (w *where) String() string {
	if len(w.conds) == 0 {
		return ""
	}
	return "WHERE " + strings.Join(w.conds, " AND ")
}

func (w *where) postFilter(f PostFilter) {
	w.add("p.is_active")

	if len(f.Visibilities) > 0 {
		w.add("p.visibility = ANY(" + w.arg(pq.Array(visibilityStrings(f.Visibilities))) + ")")
	}
	if f.Kind != "" {
		w.add("p.type = " + w.arg(string(f.Kind)))
	}
	if len(f.Tags) > 0 {
		w.add("p.tags && " + w.arg(pq.Array(f.Tags)))
	}
	if f.AuthorID > 0 {
		w.add("p.author_id = " + w.arg(f.AuthorID))
	}
	if f.Personal != nil {
		viewer := w.arg(f.Personal.ViewerID)
		following := w.arg(pq.Array(nonNilIDs(f.Personal.Following)))
		shared := w.arg(pq.Array([]string{"public", "followers"}))
		w.add(fmt.Sprintf("(p.author_id = %s OR (p.author_id = ANY(%s) AND p.visibility = ANY(%s)))", viewer, following, shared))
	}
}

func orderBy(s PostSort) string {
	if s == SortRecent {
		return "ORDER BY p.created_at DESC, p.id DESC"
	}
	return "ORDER BY p.is_pinned DESC, p.created_at DESC, p.id DESC"
}

func nonNilIDs(ids []int64) []int64 {
	if ids == nil {
		return []int64{}
	}
	return ids
}
