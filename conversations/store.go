// Package conversations persists chat history in sqlite so sessions can be
// resumed across process restarts.
package conversations

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	sq "github.com/Masterminds/squirrel"

	"github.com/parleyhq/parley/llm"
)

// Store writes conversation turns to sqlite, one row per message with the
// part list serialized as JSON.
type Store struct {
	db *sql.DB
}

// NewStore creates a store over an already-migrated database.
func NewStore(db *sql.DB) *Store {
	return &Store{db: db}
}

// Append writes one message to a conversation. Messages carrying a vendor id
// are deduplicated on (conversation, id), so replaying a turn after a crash
// does not double-write.
func (s *Store) Append(ctx context.Context, conversationID string, msg llm.Message) error {
	parts, err := json.Marshal(msg.Parts)
	if err != nil {
		return fmt.Errorf("marshal message parts: %w", err)
	}

	query := sq.Insert("messages").
		Columns("conversation_id", "role", "name", "message_id", "parts", "created_at").
		Values(conversationID, string(msg.Role), msg.Name, msg.ID, string(parts), time.Now().Unix())

	queryStr, args, err := query.ToSql()
	if err != nil {
		return fmt.Errorf("build query: %w", err)
	}

	// SQLite wants "OR IGNORE" between INSERT and INTO.
	queryStr = strings.Replace(queryStr, "INSERT INTO", "INSERT OR IGNORE INTO", 1)

	_, err = s.db.ExecContext(ctx, queryStr, args...)
	return err
}

// Messages loads a conversation's history, oldest first.
func (s *Store) Messages(ctx context.Context, conversationID string) ([]llm.Message, error) {
	query := sq.Select("role", "name", "message_id", "parts").
		From("messages").
		Where(sq.Eq{"conversation_id": conversationID}).
		OrderBy("created_at ASC", "id ASC")

	queryStr, args, err := query.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	rows, err := s.db.QueryContext(ctx, queryStr, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var msgs []llm.Message
	for rows.Next() {
		var role, name, messageID, partsJSON string
		if err := rows.Scan(&role, &name, &messageID, &partsJSON); err != nil {
			return nil, err
		}

		var parts []llm.Part
		if err := json.Unmarshal([]byte(partsJSON), &parts); err != nil {
			return nil, fmt.Errorf("unmarshal message parts: %w", err)
		}
		msgs = append(msgs, llm.Message{
			Role:  llm.Role(role),
			Name:  name,
			ID:    messageID,
			Parts: parts,
		})
	}
	return msgs, rows.Err()
}

// Summary describes one stored conversation.
type Summary struct {
	ID           string
	MessageCount int
	UpdatedAt    time.Time
}

// Conversations lists the stored conversations, most recently active first.
func (s *Store) Conversations(ctx context.Context) ([]Summary, error) {
	query := sq.Select("conversation_id", "COUNT(*)", "MAX(created_at)").
		From("messages").
		GroupBy("conversation_id").
		OrderBy("MAX(created_at) DESC")

	queryStr, args, err := query.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	rows, err := s.db.QueryContext(ctx, queryStr, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var summaries []Summary
	for rows.Next() {
		var summary Summary
		var updatedAt int64
		if err := rows.Scan(&summary.ID, &summary.MessageCount, &updatedAt); err != nil {
			return nil, err
		}
		summary.UpdatedAt = time.Unix(updatedAt, 0)
		summaries = append(summaries, summary)
	}
	return summaries, rows.Err()
}

// Delete removes a conversation's rows.
func (s *Store) Delete(ctx context.Context, conversationID string) error {
	query := sq.Delete("messages").Where(sq.Eq{"conversation_id": conversationID})

	queryStr, args, err := query.ToSql()
	if err != nil {
		return fmt.Errorf("build query: %w", err)
	}

	_, err = s.db.ExecContext(ctx, queryStr, args...)
	return err
}

// Thread binds the store to one conversation id. It satisfies the engine's
// persister hook.
type Thread struct {
	store *Store
	id    string
}

// Thread returns a view of one conversation.
func (s *Store) Thread(conversationID string) *Thread {
	return &Thread{store: s, id: conversationID}
}

// AppendMessage writes one message to the bound conversation.
func (t *Thread) AppendMessage(ctx context.Context, msg llm.Message) error {
	return t.store.Append(ctx, t.id, msg)
}

// Messages loads the bound conversation's history, oldest first.
func (t *Thread) Messages(ctx context.Context) ([]llm.Message, error) {
	return t.store.Messages(ctx, t.id)
}
