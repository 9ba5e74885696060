package main

import (
	"context"

	sq "github.com/Masterminds/squirrel"
)

const commentCols = `cm.id, cm.card_id, cm.user_id, cm.text, cm.created_at, cm.updated_at, ` + userCols

const commentFrom = `comments cm join users u on u.id=cm.user_id`

func scanComment(sc scanner) (Comment, error) {
	var c Comment
	var u User
	err := sc.Scan(&c.ID, &c.CardID, &c.UserID, &c.Text, &c.CreatedAt, &c.UpdatedAt,
		&u.ID, &u.Name, &u.Email, &u.AvatarURL, &u.CreatedAt)
	c.User = &u
	return c, err
}

// CardComments returns a card's comments, newest first.
func (s *Store) CardComments(ctx context.Context, cardID int64) ([]Comment, error) {
	b := psql.Select(commentCols).From(commentFrom).Where(sq.Eq{"cm.card_id": cardID}).OrderBy("cm.created_at desc", "cm.id desc")
	return selectAll(ctx, s.db, b, scanComment)
}

func (s *Store) CommentsForCards(ctx context.Context, cardIDs []int64) ([]Comment, error) {
	b := psql.Select(commentCols).From(commentFrom).Where(sq.Eq{"cm.card_id": cardIDs}).OrderBy("cm.created_at desc", "cm.id desc")
	return selectAll(ctx, s.db, b, scanComment)
}

// RecentComments returns the user's own latest comments with their board id.
func (s *Store) RecentComments(ctx context.Context, userID int64, limit int) ([]Comment, error) {
	b := psql.Select(commentCols, "l.board_id").From(commentFrom).
		Join("cards c on c.id=cm.card_id").
		Join("lists l on l.id=c.list_id").
		Where(sq.Eq{"cm.user_id": userID}).
		OrderBy("cm.created_at desc", "cm.id desc").
		Limit(uint64(limit))
	return selectAll(ctx, s.db, b, func(sc scanner) (Comment, error) {
		var c Comment
		var u User
		err := sc.Scan(&c.ID, &c.CardID, &c.UserID, &c.Text, &c.CreatedAt, &c.UpdatedAt,
			&u.ID, &u.Name, &u.Email, &u.AvatarURL, &u.CreatedAt, &c.BoardID)
		c.User = &u
		return c, err
	})
}

func (s *Store) GetComment(ctx context.Context, id int64) (Comment, error) {
	c, err := scanComment(s.db.QueryRowContext(ctx, `select `+commentCols+` from `+commentFrom+` where cm.id=$1`, id))
	if err != nil {
		return Comment{}, noRowsMsg(err, "comment not found")
	}
	return c, nil
}

func (s *Store) CreateComment(ctx context.Context, cardID, userID int64, text string) (Comment, error) {
	var id int64
	if err := s.db.QueryRowContext(ctx, `insert into comments(card_id, user_id, text) values($1,$2,$3) returning id`,
		cardID, userID, text).Scan(&id); err != nil {
		return Comment{}, err
	}
	return s.GetComment(ctx, id)
}

func (s *Store) UpdateComment(ctx context.Context, id int64, text string) (Comment, error) {
	if err := execUpdate(ctx, s.db, psql.Update("comments").
		Set("text", text).
		Set("updated_at", sq.Expr("now()")).
		Where(sq.Eq{"id": id})); err != nil {
		return Comment{}, err
	}
	return s.GetComment(ctx, id)
}

func (s *Store) DeleteComment(ctx context.Context, id int64) error {
	return execDelete(ctx, s.db, `delete from comments where id=$1`, id)
}
