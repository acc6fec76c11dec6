package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"console_go/internal/domain"
)

type ConversationRepo struct {
	db *sql.DB
}

func NewConversationRepo(db *sql.DB) *ConversationRepo {
	return &ConversationRepo{db: db}
}

var _ domain.ConversationStore = (*ConversationRepo)(nil)

const conversationColumns = `
	id, customer_phone, customer_name, platform, control_mode,
	needs_human_attention, last_message_time,
	latest_content, latest_sender, latest_timestamp,
	unread_count, starred, starred_at, archived, archived_at,
	pinned, pinned_at, phone_line_id`

func scanConversation(row interface{ Scan(...any) error }) (*domain.Conversation, error) {
	c := &domain.Conversation{}
	var latestContent, latestSender sql.NullString
	var latestTS sql.NullTime
	err := row.Scan(
		&c.ID,
		&c.CustomerPhone,
		&c.CustomerName,
		&c.Platform,
		&c.ControlMode,
		&c.NeedsHumanAttention,
		&c.LastMessageTime,
		&latestContent,
		&latestSender,
		&latestTS,
		&c.UnreadCount,
		&c.Starred,
		&c.StarredAt,
		&c.Archived,
		&c.ArchivedAt,
		&c.Pinned,
		&c.PinnedAt,
		&c.PhoneLineID,
	)
	if err != nil {
		return nil, err
	}
	if latestContent.Valid {
		c.LatestMessage = &domain.LatestMessage{
			Content: latestContent.String,
			Sender:  latestSender.String,
		}
		if latestTS.Valid {
			c.LatestMessage.Timestamp = latestTS.Time
		}
	}
	return c, nil
}

// List returns the conversations matching the scope, newest first. Pinned
// ordering is a presentation concern and is left to the filter pipeline.
func (r *ConversationRepo) List(ctx context.Context, scope domain.Scope) ([]*domain.Conversation, error) {
	query := `SELECT ` + conversationColumns + ` FROM conversations WHERE 1=1`
	var args []any

	switch scope.Status {
	case domain.StatusArchived:
		query += ` AND archived = 1`
	case domain.StatusAttention:
		query += ` AND archived = 0 AND needs_human_attention = 1`
	default:
		query += ` AND archived = 0`
	}
	if scope.PhoneLineID != nil {
		query += ` AND phone_line_id = ?`
		args = append(args, *scope.PhoneLineID)
	}
	query += ` ORDER BY last_message_time DESC, id ASC`

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list conversations: %w", err)
	}
	defer rows.Close()

	var res []*domain.Conversation
	for rows.Next() {
		c, err := scanConversation(rows)
		if err != nil {
			return nil, fmt.Errorf("scan conversation: %w", err)
		}
		res = append(res, c)
	}
	return res, rows.Err()
}

func (r *ConversationRepo) GetByID(ctx context.Context, id int64) (*domain.Conversation, error) {
	query := `SELECT ` + conversationColumns + ` FROM conversations WHERE id = ?`
	c, err := scanConversation(r.db.QueryRowContext(ctx, query, id))
	if err == sql.ErrNoRows {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get conversation: %w", err)
	}
	return c, nil
}

func (r *ConversationRepo) Create(ctx context.Context, c *domain.Conversation) error {
	var latestContent, latestSender *string
	var latestTS *time.Time
	if c.LatestMessage != nil {
		latestContent = &c.LatestMessage.Content
		latestSender = &c.LatestMessage.Sender
		latestTS = &c.LatestMessage.Timestamp
	}
	res, err := r.db.ExecContext(ctx, `
		INSERT INTO conversations (
			customer_phone, customer_name, platform, control_mode,
			needs_human_attention, last_message_time,
			latest_content, latest_sender, latest_timestamp,
			unread_count, starred, archived, pinned, phone_line_id
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		c.CustomerPhone, c.CustomerName, c.Platform, c.ControlMode,
		c.NeedsHumanAttention, c.LastMessageTime,
		latestContent, latestSender, latestTS,
		c.UnreadCount, c.Starred, c.Archived, c.Pinned, c.PhoneLineID,
	)
	if err != nil {
		return fmt.Errorf("insert conversation: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("last insert id: %w", err)
	}
	c.ID = id
	return nil
}

// SetControlMode changes the control mode. The only legal transition is
// ai -> human; anything else returns ErrInvalidTransition.
func (r *ConversationRepo) SetControlMode(ctx context.Context, id int64, mode domain.ControlMode) error {
	cur, err := r.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if !(cur.ControlMode == domain.ControlAI && mode == domain.ControlHuman) {
		return domain.ErrInvalidTransition
	}
	_, err = r.db.ExecContext(ctx, `
		UPDATE conversations
		SET control_mode = ?, needs_human_attention = 0
		WHERE id = ?
	`, mode, id)
	if err != nil {
		return fmt.Errorf("set control mode: %w", err)
	}
	return nil
}

func (r *ConversationRepo) SetFlag(ctx context.Context, id int64, flag domain.Flag, value bool) error {
	var col, tsCol string
	switch flag {
	case domain.FlagStarred:
		col, tsCol = "starred", "starred_at"
	case domain.FlagArchived:
		col, tsCol = "archived", "archived_at"
	case domain.FlagPinned:
		col, tsCol = "pinned", "pinned_at"
	default:
		return domain.ErrInvalidInput
	}

	ts := any(nil)
	if value {
		ts = time.Now().UTC()
	}
	res, err := r.db.ExecContext(ctx, fmt.Sprintf(`
		UPDATE conversations SET %s = ?, %s = ? WHERE id = ?
	`, col, tsCol), value, ts, id)
	if err != nil {
		return fmt.Errorf("set %s: %w", col, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("set %s: %w", col, err)
	}
	if n == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// RecordMessage updates the denormalized preview and ordering fields for a
// new message. Inbound messages bump the unread count; outbound ones
// (operator or AI) reset it.
func (r *ConversationRepo) RecordMessage(ctx context.Context, id int64, content, sender string, at time.Time, inbound bool) error {
	var query string
	if inbound {
		query = `
			UPDATE conversations
			SET latest_content = ?, latest_sender = ?, latest_timestamp = ?,
			    last_message_time = ?, unread_count = unread_count + 1
			WHERE id = ?`
	} else {
		query = `
			UPDATE conversations
			SET latest_content = ?, latest_sender = ?, latest_timestamp = ?,
			    last_message_time = ?, unread_count = 0
			WHERE id = ?`
	}
	res, err := r.db.ExecContext(ctx, query, content, sender, at, at, id)
	if err != nil {
		return fmt.Errorf("record message: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("record message: %w", err)
	}
	if n == 0 {
		return domain.ErrNotFound
	}
	return nil
}
