package contextstore

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/rhuss/lokal/pkg/debug"
	"github.com/rhuss/lokal/pkg/observability"
	"github.com/rhuss/lokal/pkg/storage"
)

// Record is a stored context.
type Record = storage.ContextRecord

// Message is one turn of a stored conversation.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// ConversationType is the metadata type of records created by AddConversation.
const ConversationType = "conversation"

// Store holds context records in insertion order.
type Store struct {
	persister storage.ContextPersister
	now       func() time.Time

	mu      sync.RWMutex
	records []Record
	index   map[string]int
	nextSeq int64

	saveMu sync.Mutex
}

// New creates an empty Store. persister may be nil.
func New(persister storage.ContextPersister) *Store {
	return &Store{
		persister: persister,
		now:       time.Now,
		index:     make(map[string]int),
		nextSeq:   1,
	}
}

// Add stores a new record and returns its id. Adding the same content twice
// creates two records.
func (s *Store) Add(ctx context.Context, name string, content any, metadata map[string]any) (string, error) {
	now := s.now().UTC()

	s.mu.Lock()
	id := fmt.Sprintf("ctx_%d_%d", s.nextSeq, now.Unix())
	s.nextSeq++
	s.index[id] = len(s.records)
	s.records = append(s.records, Record{
		ID:        id,
		Name:      name,
		Content:   content,
		Metadata:  copyMap(metadata),
		CreatedAt: now,
		UpdatedAt: now,
	})
	count := len(s.records)
	s.mu.Unlock()

	observability.Contexts.Set(float64(count))
	slog.Info("context added", "id", id, "name", name)
	s.persist(ctx)
	return id, nil
}

// AddConversation stores messages as a conversation record named after
// conversationID.
func (s *Store) AddConversation(ctx context.Context, conversationID string, messages []Message) (string, error) {
	if messages == nil {
		messages = []Message{}
	}
	content := map[string]any{
		"conversation_id": conversationID,
		"messages":        messages,
		"message_count":   len(messages),
		"created_at":      s.now().UTC().Format(time.RFC3339),
	}
	return s.Add(ctx, "Conversation "+conversationID, content, map[string]any{
		"type":            ConversationType,
		"conversation_id": conversationID,
	})
}

// Get returns the record with the given id.
func (s *Store) Get(id string) (Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	i, ok := s.index[id]
	if !ok {
		return Record{}, storage.ErrNotFound
	}
	return s.records[i], nil
}

// Update replaces the content and metadata of an existing record and
// refreshes UpdatedAt. A nil metadata keeps the current one.
func (s *Store) Update(ctx context.Context, id string, content any, metadata map[string]any) error {
	s.mu.Lock()
	i, ok := s.index[id]
	if !ok {
		s.mu.Unlock()
		return storage.ErrNotFound
	}
	rec := &s.records[i]
	rec.Content = content
	if metadata != nil {
		rec.Metadata = copyMap(metadata)
	}
	rec.UpdatedAt = s.now().UTC()
	s.mu.Unlock()

	debug.Log("context", "context updated", "id", id)
	s.persist(ctx)
	return nil
}

// Search returns records whose content or metadata contains query,
// ignoring case, in insertion order. limit <= 0 returns every match.
func (s *Store) Search(query string, limit int) []Record {
	needle := strings.ToLower(query)

	s.mu.RLock()
	defer s.mu.RUnlock()

	out := []Record{}
	for _, r := range s.records {
		if limit > 0 && len(out) >= limit {
			break
		}
		if matches(r, needle) {
			out = append(out, r)
		}
	}
	debug.Log("context", "search", "query", query, "matches", len(out))
	return out
}

func matches(r Record, needle string) bool {
	if strings.Contains(strings.ToLower(searchText(r.Content)), needle) {
		return true
	}
	if len(r.Metadata) == 0 {
		return false
	}
	return strings.Contains(strings.ToLower(searchText(r.Metadata)), needle)
}

// searchText renders v for substring matching: strings as is, everything
// else as JSON.
func searchText(v any) string {
	if s, ok := v.(string); ok {
		return s
	}
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Sprint(v)
	}
	return string(data)
}

// Len returns the number of records.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.records)
}

// List returns all records in insertion order.
func (s *Store) List() []Record {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Record, len(s.records))
	copy(out, s.records)
	return out
}

// IDs returns the ids of all records in insertion order.
func (s *Store) IDs() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ids := make([]string, len(s.records))
	for i, r := range s.records {
		ids[i] = r.ID
	}
	return ids
}

// Save writes all records and the sequence counter through the persister.
func (s *Store) Save(ctx context.Context) error {
	if s.persister == nil {
		return nil
	}
	s.saveMu.Lock()
	defer s.saveMu.Unlock()

	s.mu.RLock()
	snap := storage.ContextSnapshot{
		Records: make([]Record, len(s.records)),
		NextSeq: s.nextSeq,
	}
	copy(snap.Records, s.records)
	s.mu.RUnlock()

	if err := s.persister.SaveContexts(ctx, snap); err != nil {
		observability.PersistenceErrorsTotal.WithLabelValues("contexts", "save").Inc()
		return fmt.Errorf("saving contexts: %w", err)
	}
	return nil
}

// Load replaces the in-memory records with the persisted ones. The
// sequence counter resumes after the highest sequence seen.
func (s *Store) Load(ctx context.Context) error {
	if s.persister == nil {
		return nil
	}
	snap, err := s.persister.LoadContexts(ctx)
	if err != nil {
		observability.PersistenceErrorsTotal.WithLabelValues("contexts", "load").Inc()
		return fmt.Errorf("loading contexts: %w", err)
	}

	next := snap.NextSeq
	index := make(map[string]int, len(snap.Records))
	records := make([]Record, 0, len(snap.Records))
	for _, r := range snap.Records {
		if _, dup := index[r.ID]; dup {
			continue
		}
		if seq, ok := parseSeq(r.ID); ok && seq >= next {
			next = seq + 1
		}
		if r.Metadata == nil {
			r.Metadata = map[string]any{}
		}
		index[r.ID] = len(records)
		records = append(records, r)
	}
	if next < 1 {
		next = 1
	}

	s.mu.Lock()
	s.records = records
	s.index = index
	s.nextSeq = next
	s.mu.Unlock()

	observability.Contexts.Set(float64(len(records)))
	slog.Info("contexts loaded", "count", len(records), "next_seq", next)
	return nil
}

func (s *Store) persist(ctx context.Context) {
	if err := s.Save(context.WithoutCancel(ctx)); err != nil {
		slog.Error("context persistence failed", "error", err)
	}
}

// parseSeq extracts the sequence number from an id of the form
// ctx_<seq>_<unix>.
func parseSeq(id string) (int64, bool) {
	rest, ok := strings.CutPrefix(id, "ctx_")
	if !ok {
		return 0, false
	}
	seqStr, _, ok := strings.Cut(rest, "_")
	if !ok {
		return 0, false
	}
	seq, err := strconv.ParseInt(seqStr, 10, 64)
	if err != nil {
		return 0, false
	}
	return seq, true
}

func copyMap(m map[string]any) map[string]any {
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}
