package search

import (
	"context"
	"sort"
	"strings"
	"sync"
)

// BuiltinEngine is the in-process [Engine]: a guarded document map with
// case-insensitive substring ranking.
type BuiltinEngine struct {
	mu   sync.RWMutex
	docs map[string]Document
}

// NewBuiltinEngine creates an empty built-in search engine.
func NewBuiltinEngine() *BuiltinEngine {
	return &BuiltinEngine{docs: make(map[string]Document)}
}

// Index implements [Engine].
func (e *BuiltinEngine) Index(ctx context.Context, doc Document) error {
	e.mu.Lock()
	e.docs[doc.ID] = doc
	e.mu.Unlock()
	return nil
}

// Remove implements [Engine].
func (e *BuiltinEngine) Remove(ctx context.Context, id string) error {
	e.mu.Lock()
	delete(e.docs, id)
	e.mu.Unlock()
	return nil
}

type scored struct {
	id    string
	score int
}

// Search implements [Engine]. Documents whose primary name matches rank
// above documents that only match through a related field or lyrics.
func (e *BuiltinEngine) Search(ctx context.Context, query string, limit int) ([]string, error) {
	query = strings.ToLower(strings.TrimSpace(query))

	e.mu.RLock()
	var matches []scored
	for id, doc := range e.docs {
		score := scoreDocument(doc, query)
		if score > 0 {
			matches = append(matches, scored{id: id, score: score})
		}
	}
	e.mu.RUnlock()

	sort.Slice(matches, func(i, j int) bool {
		if matches[i].score != matches[j].score {
			return matches[i].score > matches[j].score
		}
		return matches[i].id < matches[j].id
	})

	if limit > 0 && len(matches) > limit {
		matches = matches[:limit]
	}
	ids := make([]string, len(matches))
	for i, m := range matches {
		ids[i] = m.id
	}
	return ids, nil
}

func scoreDocument(doc Document, query string) int {
	if query == "" {
		return 1
	}
	score := 0
	score += fieldScore(doc.Artist, query, 4)
	score += fieldScore(doc.Album, query, 4)
	score += fieldScore(doc.Track, query, 4)
	score += fieldScore(doc.Playlist, query, 4)
	score += fieldScore(doc.Lyrics, query, 1)
	return score
}

func fieldScore(field, query string, weight int) int {
	field = strings.ToLower(field)
	switch {
	case field == "":
		return 0
	case field == query:
		return 4 * weight
	case strings.HasPrefix(field, query):
		return 2 * weight
	case strings.Contains(field, query):
		return weight
	default:
		return 0
	}
}
