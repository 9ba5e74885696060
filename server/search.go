package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"sync/atomic"
	"time"

	meili "github.com/meilisearch/meilisearch-go"
)

const idxActivities = "kanban_activities"

// activityDoc is the indexed shape of an activity row.
type activityDoc struct {
	ID         int64  `json:"id"`
	BoardID    int64  `json:"board_id"`
	CardID     int64  `json:"card_id,omitempty"`
	ActionType string `json:"action_type"`
	UserName   string `json:"user_name"`
	CreatedAt  int64  `json:"created_at"`
}

func toActivityDoc(a Activity) activityDoc {
	d := activityDoc{ID: a.ID, ActionType: a.ActionType, CreatedAt: a.CreatedAt.Unix()}
	if a.BoardID != nil {
		d.BoardID = *a.BoardID
	}
	if a.CardID != nil {
		d.CardID = *a.CardID
	}
	if a.User != nil {
		d.UserName = a.User.Name
	}
	return d
}

// activitySearch indexes activities in Meilisearch. Callers fall back to SQL
// whenever it reports unhealthy.
type activitySearch struct {
	client  meili.ServiceManager
	log     *slog.Logger
	healthy atomic.Bool
	done    chan struct{}
}

func newActivitySearch(url, apiKey string, log *slog.Logger) *activitySearch {
	s := &activitySearch{
		client: meili.New(url, meili.WithAPIKey(apiKey)),
		log:    log,
		done:   make(chan struct{}),
	}
	if _, err := s.client.Health(); err != nil {
		log.Warn("meilisearch unavailable", "url", url, "err", err)
	} else {
		s.healthy.Store(true)
		s.configure()
	}
	go s.healthLoop()
	return s
}

func (s *activitySearch) configure() {
	if _, err := s.client.CreateIndex(&meili.IndexConfig{Uid: idxActivities, PrimaryKey: "id"}); err != nil {
		s.log.Debug("create index (may already exist)", "index", idxActivities, "err", err)
	}
	index := s.client.Index(idxActivities)
	filterable := []interface{}{"board_id", "card_id"}
	if _, err := index.UpdateFilterableAttributes(&filterable); err != nil {
		s.log.Warn("update filterable attributes", "err", err)
	}
	searchable := []string{"action_type", "user_name"}
	if _, err := index.UpdateSearchableAttributes(&searchable); err != nil {
		s.log.Warn("update searchable attributes", "err", err)
	}
	sortable := []string{"created_at"}
	if _, err := index.UpdateSortableAttributes(&sortable); err != nil {
		s.log.Warn("update sortable attributes", "err", err)
	}
}

func (s *activitySearch) healthLoop() {
	ticker := time.NewTicker(10 * time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-s.done:
			return
		case <-ticker.C:
			_, err := s.client.Health()
			was := s.healthy.Load()
			s.healthy.Store(err == nil)
			if err == nil && !was {
				s.log.Info("meilisearch recovered")
				s.configure()
			}
		}
	}
}

func (s *activitySearch) Close() { close(s.done) }

func (s *activitySearch) Healthy() bool { return s != nil && s.healthy.Load() }

// Index sends one activity to the index without waiting for it.
func (s *activitySearch) Index(a Activity) {
	if !s.Healthy() {
		return
	}
	go func() {
		if _, err := s.client.Index(idxActivities).AddDocuments([]activityDoc{toActivityDoc(a)}, nil); err != nil {
			s.log.Warn("index activity", "id", a.ID, "err", err)
		}
	}()
}

// Backfill pages through the activity table and indexes every row.
func (s *activitySearch) Backfill(ctx context.Context, store *Store) error {
	var after int64
	for {
		rows, err := store.activityDocs(ctx, after, 500)
		if err != nil {
			return err
		}
		if len(rows) == 0 {
			return nil
		}
		docs := make([]activityDoc, len(rows))
		for i, a := range rows {
			docs[i] = toActivityDoc(a)
		}
		if _, err := s.client.Index(idxActivities).AddDocuments(docs, nil); err != nil {
			return fmt.Errorf("index batch after %d: %w", after, err)
		}
		after = rows[len(rows)-1].ID
	}
}

// Search returns matching activity ids, newest first, limited to boardIDs.
func (s *activitySearch) Search(query string, boardIDs []int64, limit int) ([]int64, error) {
	if !s.Healthy() {
		return nil, fmt.Errorf("meilisearch unhealthy")
	}
	if len(boardIDs) == 0 {
		return []int64{}, nil
	}
	resp, err := s.client.Index(idxActivities).Search(query, &meili.SearchRequest{
		Limit:  int64(limit),
		Filter: boardFilter(boardIDs),
		Sort:   []string{"created_at:desc"},
	})
	if err != nil {
		s.healthy.Store(false)
		return nil, fmt.Errorf("meilisearch search: %w", err)
	}
	ids := make([]int64, 0, len(resp.Hits))
	for _, hit := range resp.Hits {
		raw, ok := hit["id"]
		if !ok {
			continue
		}
		var id int64
		if err := json.Unmarshal(raw, &id); err == nil {
			ids = append(ids, id)
		}
	}
	return ids, nil
}

func boardFilter(boardIDs []int64) string {
	parts := make([]string, len(boardIDs))
	for i, id := range boardIDs {
		parts[i] = fmt.Sprint(id)
	}
	return "board_id IN [" + strings.Join(parts, ", ") + "]"
}
