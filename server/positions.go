package main

import (
	"context"
	"fmt"

	sq "github.com/Masterminds/squirrel"
)

// orderedSet names a sibling collection kept in position order.
type orderedSet struct {
	table  string
	parent string
	kind   entity
}

var (
	listOrder      = orderedSet{table: "lists", parent: "board_id", kind: entityList}
	cardOrder      = orderedSet{table: "cards", parent: "list_id", kind: entityCard}
	checklistOrder = orderedSet{table: "checklists", parent: "card_id", kind: entityChecklist}
	itemOrder      = orderedSet{table: "checklist_items", parent: "checklist_id", kind: entityItem}
)

type PositionUpdate struct {
	ID       int64 `json:"id" validate:"required"`
	Position int   `json:"position" validate:"min=0"`
}

// nextPosition is the append rule: max(position)+1 within the parent, 0 when empty.
func nextPosition(ctx context.Context, q querier, set orderedSet, parentID int64) (int, error) {
	var pos int
	err := q.QueryRowContext(ctx,
		fmt.Sprintf(`select coalesce(max(position), -1) + 1 from %s where %s=$1`, set.table, set.parent), parentID).
		Scan(&pos)
	return pos, err
}

// Reorder writes the submitted positions one row at a time. Duplicates and
// gaps are accepted as given; the next full reorder repairs them.
func (s *Store) Reorder(ctx context.Context, set orderedSet, items []PositionUpdate) error {
	for _, it := range items {
		b := psql.Update(set.table).
			Set("position", it.Position).
			Set("updated_at", sq.Expr("now()")).
			Where(sq.Eq{"id": it.ID})
		if err := execUpdate(ctx, s.db, b); err != nil {
			return fmt.Errorf("reorder %s %d: %w", set.table, it.ID, err)
		}
	}
	return nil
}

func positionIDs(items []PositionUpdate) []int64 {
	ids := make([]int64, 0, len(items))
	for _, it := range items {
		ids = append(ids, it.ID)
	}
	return ids
}
