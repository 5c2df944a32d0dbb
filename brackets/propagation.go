package brackets

import (
	"errors"
	"fmt"
	"sort"

	"github.com/Dosada05/tournify/models"
)

var ErrMatchNotInArena = errors.New("match not found in bracket")

// Arena holds the matches of one tournament keyed by id, plus the reverse
// parent -> children index. Parent links stay plain ids.
type Arena struct {
	matches  map[int]*models.Match
	children map[int][]int
}

func NewArena(matches []*models.Match) *Arena {
	a := &Arena{
		matches:  make(map[int]*models.Match, len(matches)),
		children: make(map[int][]int),
	}
	for _, m := range matches {
		a.matches[m.ID] = m
	}
	for _, m := range matches {
		if m.ParentMatch1ID != nil {
			a.children[*m.ParentMatch1ID] = append(a.children[*m.ParentMatch1ID], m.ID)
		}
		if m.ParentMatch2ID != nil && (m.ParentMatch1ID == nil || *m.ParentMatch2ID != *m.ParentMatch1ID) {
			a.children[*m.ParentMatch2ID] = append(a.children[*m.ParentMatch2ID], m.ID)
		}
	}
	for id := range a.children {
		sort.Ints(a.children[id])
	}
	return a
}

func (a *Arena) Match(id int) (*models.Match, bool) {
	m, ok := a.matches[id]
	return m, ok
}

// Children returns the matches fed by the given match, ordered by id.
func (a *Arena) Children(id int) []*models.Match {
	ids := a.children[id]
	out := make([]*models.Match, 0, len(ids))
	for _, cid := range ids {
		out = append(out, a.matches[cid])
	}
	return out
}

// Propagate pushes the current winner of changedID into every dependent
// match. Each child gets the corresponding slot replaced (nil when the winner
// was cleared) and its own result cleared, then its children are processed
// the same way. A bye child re-advances its new occupant immediately.
//
// The matches in the arena are mutated in place. The returned slice holds
// every touched child once, in the order it was first visited, so the caller
// can persist them in a single transaction.
func Propagate(a *Arena, changedID int) ([]*models.Match, error) {
	if _, ok := a.matches[changedID]; !ok {
		return nil, fmt.Errorf("propagate from match %d: %w", changedID, ErrMatchNotInArena)
	}

	var touched []*models.Match
	seen := map[int]bool{changedID: true}
	queue := []int{changedID}

	for len(queue) > 0 {
		parentID := queue[0]
		queue = queue[1:]
		parent := a.matches[parentID]

		for _, child := range a.Children(parentID) {
			if child.ParentMatch1ID != nil && *child.ParentMatch1ID == parentID {
				child.Participant1ID = copyIntPtr(parent.WinnerID)
			}
			if child.ParentMatch2ID != nil && *child.ParentMatch2ID == parentID {
				child.Participant2ID = copyIntPtr(parent.WinnerID)
			}
			child.WinnerID = nil
			child.IsDraw = false

			if child.ParentMatch2ID == nil && child.Participant2ID == nil && child.Participant1ID != nil {
				child.WinnerID = copyIntPtr(child.Participant1ID)
			}

			if !seen[child.ID] {
				seen[child.ID] = true
				touched = append(touched, child)
				queue = append(queue, child.ID)
			}
		}
	}
	return touched, nil
}

func copyIntPtr(p *int) *int {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}
