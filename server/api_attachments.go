package main

import (
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"path"
	"strconv"
	"strings"
)

type linkAttachmentRequest struct {
	CardID      int64   `json:"card_id" validate:"required"`
	Type        string  `json:"type" validate:"required,eq=link"`
	URL         string  `json:"url" validate:"required,url,max=2048"`
	Name        string  `json:"name" validate:"required,max=255"`
	DisplayText *string `json:"display_text" validate:"omitempty,max=255"`
}

type fileAttachmentForm struct {
	CardID      int64   `json:"card_id" validate:"required"`
	Type        string  `json:"type" validate:"required,eq=file"`
	DisplayText *string `json:"display_text" validate:"omitempty,max=255"`
}

// POST /api/attachments accepts a multipart upload or a link, as JSON or as
// a form.
func (a *api) handleCreateAttachment(w http.ResponseWriter, r *http.Request) {
	ct, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	switch ct {
	case "multipart/form-data", "application/x-www-form-urlencoded":
		r.Body = http.MaxBytesReader(w, r.Body, a.cfg.Storage.MaxUploadBytes+1<<20)
		if err := r.ParseMultipartForm(32 << 20); err != nil && !errors.Is(err, http.ErrNotMultipart) {
			writeError(w, http.StatusUnprocessableEntity, "The file may not be greater than "+strconv.FormatInt(a.cfg.Storage.MaxUploadBytes>>10, 10)+" kilobytes.")
			return
		}
		if r.FormValue("type") == attachmentLink {
			a.createLink(w, r, linkFromForm(r))
			return
		}
		a.createFile(w, r)
	default:
		var req linkAttachmentRequest
		if err := readJSON(w, r, &req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid json")
			return
		}
		a.createLink(w, r, req)
	}
}

func linkFromForm(r *http.Request) linkAttachmentRequest {
	cardID, _ := parseID(r.FormValue("card_id"))
	req := linkAttachmentRequest{CardID: cardID, Type: r.FormValue("type"), URL: r.FormValue("url"), Name: r.FormValue("name")}
	if v := r.FormValue("display_text"); v != "" {
		req.DisplayText = &v
	}
	return req
}

func (a *api) createLink(w http.ResponseWriter, r *http.Request, req linkAttachmentRequest) {
	if !a.check(w, &req) {
		return
	}
	boardID, ok := a.gateEntity(w, r, entityCard, req.CardID, true)
	if !ok {
		return
	}
	att, err := a.store.CreateAttachment(r.Context(), Attachment{
		CardID:      req.CardID,
		Type:        attachmentLink,
		FileName:    strings.TrimSpace(req.Name),
		FileURL:     req.URL,
		DisplayText: req.DisplayText,
		UploadedBy:  userFrom(r).ID,
	})
	if err != nil {
		a.fail(w, "create link", err)
		return
	}
	a.attachmentCreated(w, r, boardID, att)
}

func (a *api) createFile(w http.ResponseWriter, r *http.Request) {
	cardID, _ := parseID(r.FormValue("card_id"))
	form := fileAttachmentForm{CardID: cardID, Type: r.FormValue("type")}
	if v := r.FormValue("display_text"); v != "" {
		form.DisplayText = &v
	}
	if !a.check(w, &form) {
		return
	}
	boardID, ok := a.gateEntity(w, r, entityCard, form.CardID, true)
	if !ok {
		return
	}
	file, hdr, err := r.FormFile("file")
	if err != nil {
		writeJSON(w, http.StatusUnprocessableEntity, map[string]any{
			"message": "The given data was invalid.",
			"errors":  map[string][]string{"file": {"The file field is required."}},
		})
		return
	}
	defer file.Close()
	if hdr.Size > a.cfg.Storage.MaxUploadBytes {
		writeError(w, http.StatusUnprocessableEntity, fmt.Sprintf("The file may not be greater than %d kilobytes.", a.cfg.Storage.MaxUploadBytes>>10))
		return
	}

	mimeType := hdr.Header.Get("Content-Type")
	if mimeType == "" {
		mimeType = mime.TypeByExtension(path.Ext(hdr.Filename))
	}
	if mimeType == "" {
		mimeType = "application/octet-stream"
	}
	key := newBlobKey(form.CardID, hdr.Filename)
	if err := a.blobs.Put(r.Context(), key, file, hdr.Size, mimeType); err != nil {
		a.fail(w, "store upload", err)
		return
	}
	size := hdr.Size
	att, err := a.store.CreateAttachment(r.Context(), Attachment{
		CardID:      form.CardID,
		Type:        attachmentFile,
		FileName:    path.Base(hdr.Filename),
		FileURL:     a.blobs.URL(key),
		FilePath:    key,
		DisplayText: form.DisplayText,
		FileSize:    &size,
		MimeType:    &mimeType,
		UploadedBy:  userFrom(r).ID,
	})
	if err != nil {
		if derr := a.blobs.Delete(r.Context(), key); derr != nil {
			a.log.Warn("drop orphan blob", "key", key, "err", derr)
		}
		a.fail(w, "create attachment", err)
		return
	}
	a.attachmentCreated(w, r, boardID, att)
}

func (a *api) attachmentCreated(w http.ResponseWriter, r *http.Request, boardID int64, att Attachment) {
	a.record(r, boardID, &att.CardID, "attachment_added", map[string]any{
		"attachment_id": att.ID, "file_name": att.FileName, "type": att.Type,
	})
	a.publish(r, boardID, "created", "attachment", att.ID, att)
	writeJSON(w, http.StatusCreated, map[string]any{"message": "Attachment added successfully", "attachment": att})
}

func (a *api) handleCardAttachments(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	if _, ok := a.gateEntity(w, r, entityCard, id, false); !ok {
		return
	}
	items, err := a.store.CardAttachments(r.Context(), id)
	if err != nil {
		a.fail(w, "card attachments", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"attachments": items})
}

func (a *api) handleAttachmentStats(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	if _, ok := a.gateEntity(w, r, entityCard, id, false); !ok {
		return
	}
	st, err := a.store.AttachmentStats(r.Context(), id)
	if err != nil {
		a.fail(w, "attachment stats", err)
		return
	}
	writeJSON(w, http.StatusOK, st)
}

func (a *api) handleGetAttachment(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	if _, ok := a.gateEntity(w, r, entityAttachment, id, false); !ok {
		return
	}
	att, err := a.store.GetAttachment(r.Context(), id)
	if err != nil {
		a.fail(w, "get attachment", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"attachment": att})
}

func (a *api) handleUpdateAttachment(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	boardID, ok := a.gateEntity(w, r, entityAttachment, id, true)
	if !ok {
		return
	}
	var req struct {
		DisplayText *string `json:"display_text" validate:"omitempty,max=255"`
		FileName    *string `json:"file_name" validate:"omitempty,min=1,max=255"`
	}
	if !a.decode(w, r, &req) {
		return
	}
	att, err := a.store.GetAttachment(r.Context(), id)
	if err != nil {
		a.fail(w, "load attachment", err)
		return
	}
	att, err = a.store.UpdateAttachment(r.Context(), att, req.DisplayText, req.FileName)
	if err != nil {
		a.fail(w, "update attachment", err)
		return
	}
	a.publish(r, boardID, "updated", "attachment", att.ID, att)
	writeJSON(w, http.StatusOK, map[string]any{"message": "Attachment updated successfully", "attachment": att})
}

func (a *api) handleDownloadAttachment(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	if _, ok := a.gateEntity(w, r, entityAttachment, id, false); !ok {
		return
	}
	att, err := a.store.GetAttachment(r.Context(), id)
	if err != nil {
		a.fail(w, "load attachment", err)
		return
	}
	if att.Type != attachmentFile || att.FilePath == "" {
		writeError(w, http.StatusBadRequest, "Cannot download link attachments")
		return
	}
	body, err := a.blobs.Open(r.Context(), att.FilePath)
	if errors.Is(err, ErrNotFound) {
		writeError(w, http.StatusNotFound, "File not found")
		return
	}
	if err != nil {
		a.fail(w, "open blob", err)
		return
	}
	defer body.Close()

	ct := "application/octet-stream"
	if att.MimeType != nil && *att.MimeType != "" {
		ct = *att.MimeType
	}
	w.Header().Set("Content-Type", ct)
	w.Header().Set("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{"filename": att.FileName}))
	if att.FileSize != nil {
		w.Header().Set("Content-Length", strconv.FormatInt(*att.FileSize, 10))
	}
	if _, err := io.Copy(w, body); err != nil {
		a.log.Warn("download", "id", id, "err", err)
	}
}

func (a *api) handleDeleteAttachment(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	boardID, ok := a.gateEntity(w, r, entityAttachment, id, true)
	if !ok {
		return
	}
	att, err := a.store.GetAttachment(r.Context(), id)
	if err != nil {
		a.fail(w, "load attachment", err)
		return
	}
	if err := a.store.DeleteAttachment(r.Context(), id); err != nil {
		a.fail(w, "delete attachment", err)
		return
	}
	a.dropBlobs(r, att)
	a.record(r, boardID, &att.CardID, "attachment_deleted", map[string]any{"attachment_id": id, "file_name": att.FileName})
	a.publish(r, boardID, "deleted", "attachment", id, nil)
	writeJSON(w, http.StatusOK, map[string]any{"message": "Attachment deleted successfully"})
}

// DELETE /api/attachments/bulk {attachment_ids}
func (a *api) handleBulkDeleteAttachments(w http.ResponseWriter, r *http.Request) {
	var req struct {
		AttachmentIDs []int64 `json:"attachment_ids" validate:"required,min=1,max=100"`
	}
	if !a.decode(w, r, &req) {
		return
	}
	boards, ok := a.gateMany(w, r, entityAttachment, req.AttachmentIDs)
	if !ok {
		return
	}
	atts, err := a.store.AttachmentsByIDs(r.Context(), req.AttachmentIDs)
	if err != nil {
		a.fail(w, "load attachments", err)
		return
	}
	n, err := a.store.DeleteAttachments(r.Context(), req.AttachmentIDs)
	if err != nil {
		a.fail(w, "bulk delete attachments", err)
		return
	}
	a.dropBlobs(r, atts...)
	for _, boardID := range boards {
		a.publish(r, boardID, "deleted", "attachment", 0, req.AttachmentIDs)
	}
	writeJSON(w, http.StatusOK, map[string]any{"message": "Attachments deleted successfully", "deleted_count": n})
}

// dropBlobs removes stored bodies after their rows are gone. Failures only
// leave an orphan blob behind.
func (a *api) dropBlobs(r *http.Request, atts ...Attachment) {
	for _, att := range atts {
		if att.Type != attachmentFile || att.FilePath == "" {
			continue
		}
		if err := a.blobs.Delete(r.Context(), att.FilePath); err != nil {
			a.log.Warn("delete blob", "key", att.FilePath, "err", err)
		}
	}
}
