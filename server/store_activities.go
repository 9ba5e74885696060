package main

import (
	"context"
	"encoding/json"
	"time"

	sq "github.com/Masterminds/squirrel"
)

const activityCols = `a.id, a.user_id, a.board_id, a.card_id, a.action_type, coalesce(a.action_data::text,'null'), a.created_at, ` + userCols

const activityFrom = `activities a join users u on u.id=a.user_id`

func scanActivity(sc scanner) (Activity, error) {
	var a Activity
	var u User
	var data string
	err := sc.Scan(&a.ID, &a.UserID, &a.BoardID, &a.CardID, &a.ActionType, &data, &a.CreatedAt,
		&u.ID, &u.Name, &u.Email, &u.AvatarURL, &u.CreatedAt)
	a.ActionData = json.RawMessage(data)
	a.User = &u
	return a, err
}

// ActivityFilter narrows activity reads. Without BoardID or CardID the
// rows are limited to boards ScopeUserID can reach plus their own
// board-less rows.
type ActivityFilter struct {
	BoardID     *int64
	CardID      *int64
	UserID      *int64
	From        *time.Time
	To          *time.Time
	ScopeUserID int64
	Limit       int
	Offset      int
}

func (f ActivityFilter) where(b sq.SelectBuilder) sq.SelectBuilder {
	if f.BoardID != nil {
		b = b.Where(sq.Eq{"a.board_id": *f.BoardID})
	}
	if f.CardID != nil {
		b = b.Where(sq.Eq{"a.card_id": *f.CardID})
	}
	if f.BoardID == nil && f.CardID == nil {
		b = b.Where(sq.Or{
			sq.Expr("a.board_id in ("+accessibleBoardsSQL+")", f.ScopeUserID, f.ScopeUserID),
			sq.Expr("(a.board_id is null and a.user_id = ?)", f.ScopeUserID),
		})
	}
	if f.UserID != nil {
		b = b.Where(sq.Eq{"a.user_id": *f.UserID})
	}
	if f.From != nil {
		b = b.Where(sq.GtOrEq{"a.created_at": *f.From})
	}
	if f.To != nil {
		b = b.Where(sq.LtOrEq{"a.created_at": *f.To})
	}
	return b
}

func (f ActivityFilter) query() sq.SelectBuilder {
	b := f.where(psql.Select(activityCols).From(activityFrom)).OrderBy("a.created_at desc", "a.id desc")
	if f.Limit > 0 {
		b = b.Limit(uint64(f.Limit))
	}
	if f.Offset > 0 {
		b = b.Offset(uint64(f.Offset))
	}
	return b
}

func (s *Store) ListActivities(ctx context.Context, f ActivityFilter) ([]Activity, error) {
	return selectAll(ctx, s.db, f.query(), scanActivity)
}

func (s *Store) CountActivities(ctx context.Context, f ActivityFilter) (int, error) {
	query, args, err := f.where(psql.Select("count(*)").From("activities a")).ToSql()
	if err != nil {
		return 0, err
	}
	var n int
	err = s.db.QueryRowContext(ctx, query, args...).Scan(&n)
	return n, err
}

func (s *Store) createActivity(ctx context.Context, q querier, a Activity) (int64, error) {
	var data any
	if len(a.ActionData) > 0 && string(a.ActionData) != "null" {
		data = string(a.ActionData)
	}
	var id int64
	err := q.QueryRowContext(ctx, `insert into activities(user_id, board_id, card_id, action_type, action_data)
		values($1,$2,$3,$4,$5::jsonb) returning id`, a.UserID, a.BoardID, a.CardID, a.ActionType, data).Scan(&id)
	return id, err
}

func (s *Store) CreateActivity(ctx context.Context, a Activity) (Activity, error) {
	id, err := s.createActivity(ctx, s.db, a)
	if err != nil {
		return Activity{}, err
	}
	return s.GetActivity(ctx, id)
}

func (s *Store) GetActivity(ctx context.Context, id int64) (Activity, error) {
	a, err := scanActivity(s.db.QueryRowContext(ctx, `select `+activityCols+` from `+activityFrom+` where a.id=$1`, id))
	if err != nil {
		return Activity{}, noRowsMsg(err, "activity not found")
	}
	return a, nil
}

// ActivitiesByIDs loads rows and returns them in the order of ids.
func (s *Store) ActivitiesByIDs(ctx context.Context, ids []int64) ([]Activity, error) {
	if len(ids) == 0 {
		return []Activity{}, nil
	}
	rows, err := selectAll(ctx, s.db, psql.Select(activityCols).From(activityFrom).Where(sq.Eq{"a.id": ids}), scanActivity)
	if err != nil {
		return nil, err
	}
	byID := make(map[int64]Activity, len(rows))
	for _, a := range rows {
		byID[a.ID] = a
	}
	out := make([]Activity, 0, len(rows))
	for _, id := range ids {
		if a, ok := byID[id]; ok {
			out = append(out, a)
		}
	}
	return out, nil
}

// searchActivitiesQuery matches action_type or author name,
// case-insensitively. A boardID replaces the membership scope; callers gate
// the board before asking.
func searchActivitiesQuery(userID int64, query string, boardID *int64, limit int) sq.SelectBuilder {
	like := "%" + query + "%"
	f := ActivityFilter{ScopeUserID: userID, BoardID: boardID}
	return f.where(psql.Select(activityCols).From(activityFrom)).
		Where(sq.Or{sq.ILike{"a.action_type": like}, sq.ILike{"u.name": like}}).
		OrderBy("a.created_at desc", "a.id desc").
		Limit(uint64(limit))
}

func (s *Store) SearchActivitiesSQL(ctx context.Context, userID int64, query string, boardID *int64, limit int) ([]Activity, error) {
	return selectAll(ctx, s.db, searchActivitiesQuery(userID, query, boardID, limit), scanActivity)
}

type DayCount struct {
	Date  string `json:"date"`
	Count int    `json:"count"`
}

type UserCount struct {
	User          User `json:"user"`
	ActivityCount int  `json:"activity_count"`
}

type ActivityStats struct {
	Total  int            `json:"total_activities"`
	ByType map[string]int `json:"activities_by_type"`
	ByDay  []DayCount     `json:"activities_by_day"`
	Top    []UserCount    `json:"top_users"`
}

// ActivityStats aggregates rows created since the given time.
func (s *Store) ActivityStats(ctx context.Context, f ActivityFilter, since time.Time) (ActivityStats, error) {
	f.From = &since
	st := ActivityStats{ByType: map[string]int{}, ByDay: []DayCount{}, Top: []UserCount{}}
	var err error
	if st.Total, err = s.CountActivities(ctx, f); err != nil {
		return st, err
	}

	type kv struct {
		key string
		n   int
	}
	scanKV := func(sc scanner) (kv, error) {
		var r kv
		err := sc.Scan(&r.key, &r.n)
		return r, err
	}
	byType, err := selectAll(ctx, s.db,
		f.where(psql.Select("a.action_type", "count(*)").From("activities a")).GroupBy("a.action_type"), scanKV)
	if err != nil {
		return st, err
	}
	for _, r := range byType {
		st.ByType[r.key] = r.n
	}

	byDay, err := selectAll(ctx, s.db,
		f.where(psql.Select("to_char(a.created_at::date, 'YYYY-MM-DD') as day", "count(*)").From("activities a")).
			GroupBy("day").OrderBy("day desc"), scanKV)
	if err != nil {
		return st, err
	}
	for _, r := range byDay {
		st.ByDay = append(st.ByDay, DayCount{Date: r.key, Count: r.n})
	}

	top, err := selectAll(ctx, s.db,
		f.where(psql.Select(userCols, "count(*) as n").From(activityFrom)).
			GroupBy("u.id").OrderBy("n desc", "u.id").Limit(5),
		func(sc scanner) (UserCount, error) {
			var r UserCount
			err := sc.Scan(&r.User.ID, &r.User.Name, &r.User.Email, &r.User.AvatarURL, &r.User.CreatedAt, &r.ActivityCount)
			return r, err
		})
	if err != nil {
		return st, err
	}
	st.Top = top
	return st, nil
}

// ClearOldActivities deletes rows on the given boards created before cutoff.
func (s *Store) ClearOldActivities(ctx context.Context, boardIDs []int64, cutoff time.Time) (int64, error) {
	if len(boardIDs) == 0 {
		return 0, nil
	}
	query, args, err := psql.Delete("activities").
		Where(sq.Eq{"board_id": boardIDs}).
		Where(sq.Lt{"created_at": cutoff}).
		ToSql()
	if err != nil {
		return 0, err
	}
	res, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// activityDocs pages through all activities for search indexing.
func (s *Store) activityDocs(ctx context.Context, afterID int64, limit int) ([]Activity, error) {
	b := psql.Select(activityCols).From(activityFrom).Where(sq.Gt{"a.id": afterID}).OrderBy("a.id").Limit(uint64(limit))
	return selectAll(ctx, s.db, b, scanActivity)
}
