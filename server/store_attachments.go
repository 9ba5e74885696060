package main

import (
	"context"

	sq "github.com/Masterminds/squirrel"
)

const attachmentCols = `at.id, at.card_id, at.type, at.file_name, at.file_url, coalesce(at.file_path,''), at.display_text,
	at.file_size, at.mime_type, at.uploaded_by, at.created_at, at.updated_at, ` + userCols

const attachmentFrom = `attachments at join users u on u.id=at.uploaded_by`

func scanAttachment(sc scanner) (Attachment, error) {
	var a Attachment
	var u User
	err := sc.Scan(&a.ID, &a.CardID, &a.Type, &a.FileName, &a.FileURL, &a.FilePath, &a.DisplayText,
		&a.FileSize, &a.MimeType, &a.UploadedBy, &a.CreatedAt, &a.UpdatedAt,
		&u.ID, &u.Name, &u.Email, &u.AvatarURL, &u.CreatedAt)
	a.Uploader = &u
	return a, err
}

func (s *Store) createAttachment(ctx context.Context, q querier, a Attachment) (int64, error) {
	var id int64
	err := q.QueryRowContext(ctx, `insert into attachments(card_id, type, file_name, file_url, file_path, display_text, file_size, mime_type, uploaded_by)
		values($1,$2,$3,$4,$5,$6,$7,$8,$9) returning id`,
		a.CardID, a.Type, a.FileName, a.FileURL, nullString(a.FilePath), a.DisplayText, a.FileSize, a.MimeType, a.UploadedBy).Scan(&id)
	return id, err
}

func (s *Store) CreateAttachment(ctx context.Context, a Attachment) (Attachment, error) {
	id, err := s.createAttachment(ctx, s.db, a)
	if err != nil {
		return Attachment{}, err
	}
	return s.GetAttachment(ctx, id)
}

func (s *Store) GetAttachment(ctx context.Context, id int64) (Attachment, error) {
	a, err := scanAttachment(s.db.QueryRowContext(ctx, `select `+attachmentCols+` from `+attachmentFrom+` where at.id=$1`, id))
	if err != nil {
		return Attachment{}, noRowsMsg(err, "attachment not found")
	}
	return a, nil
}

// CardAttachments returns a card's attachments, newest first.
func (s *Store) CardAttachments(ctx context.Context, cardID int64) ([]Attachment, error) {
	b := psql.Select(attachmentCols).From(attachmentFrom).Where(sq.Eq{"at.card_id": cardID}).OrderBy("at.created_at desc", "at.id desc")
	return selectAll(ctx, s.db, b, scanAttachment)
}

func (s *Store) AttachmentsByIDs(ctx context.Context, ids []int64) ([]Attachment, error) {
	b := psql.Select(attachmentCols).From(attachmentFrom).Where(sq.Eq{"at.id": ids}).OrderBy("at.id")
	return selectAll(ctx, s.db, b, scanAttachment)
}

// UpdateAttachment changes the display text, and the file name for links only.
func (s *Store) UpdateAttachment(ctx context.Context, a Attachment, displayText, fileName *string) (Attachment, error) {
	b := psql.Update("attachments").Set("updated_at", sq.Expr("now()")).Where(sq.Eq{"id": a.ID})
	if displayText != nil {
		b = b.Set("display_text", nullString(*displayText))
	}
	if fileName != nil && a.Type == attachmentLink {
		b = b.Set("file_name", *fileName)
	}
	if err := execUpdate(ctx, s.db, b); err != nil {
		return Attachment{}, err
	}
	return s.GetAttachment(ctx, a.ID)
}

func (s *Store) DeleteAttachment(ctx context.Context, id int64) error {
	return execDelete(ctx, s.db, `delete from attachments where id=$1`, id)
}

func (s *Store) DeleteAttachments(ctx context.Context, ids []int64) (int64, error) {
	query, args, err := psql.Delete("attachments").Where(sq.Eq{"id": ids}).ToSql()
	if err != nil {
		return 0, err
	}
	res, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

type AttachmentStats struct {
	Total     int   `json:"total"`
	Files     int   `json:"files"`
	Links     int   `json:"links"`
	TotalSize int64 `json:"total_size"`
}

func (s *Store) AttachmentStats(ctx context.Context, cardID int64) (AttachmentStats, error) {
	var st AttachmentStats
	err := s.db.QueryRowContext(ctx, `select count(*),
		count(*) filter (where type='file'),
		count(*) filter (where type='link'),
		coalesce(sum(file_size) filter (where type='file'), 0)
		from attachments where card_id=$1`, cardID).Scan(&st.Total, &st.Files, &st.Links, &st.TotalSize)
	return st, err
}
