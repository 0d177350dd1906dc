package chat

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Store is the persistence contract consumed by the Engine. Every mutating
// operation is conditional on the stored current state (compare-and-set), so
// concurrent transitions never regress a message or lose an update.
type Store interface {
	// Insert persists a new message. A missing ID is generated.
	Insert(ctx context.Context, m *Message) error

	// Get returns the message with the given id, or ErrNotFound.
	Get(ctx context.Context, id string) (*Message, error)

	// MarkMessageRead transitions a single message to READ. It only touches
	// rows that are not yet READ; an already-READ message is returned
	// unchanged. Returns ErrNotFound if the id does not resolve.
	MarkMessageRead(ctx context.Context, id string) (*Message, error)

	// MarkConversationRead transitions every unread message in the
	// conversation created at or before the boundary message to READ, as a
	// single statement. Returns the number of messages updated.
	MarkConversationRead(ctx context.Context, conversationID, boundaryID string) (int64, error)

	// CompareAndSetOffer atomically moves the offer state from "from" to
	// "to". The bool result reports whether the swap applied; false means
	// the stored state no longer equals "from".
	CompareAndSetOffer(ctx context.Context, id string, from, to OfferStatus) (*Message, bool, error)

	// ListConversation returns the conversation's messages in chronological
	// order.
	ListConversation(ctx context.Context, conversationID string) ([]Message, error)
}

const messageColumns = `id, conversation_id, sender_username, receiver_username, body, file,
	read_status, offer, created_at, delivered_at, read_at, offer_updated_at`

// PostgresStore implements Store on a pgx connection pool.
type PostgresStore struct {
	pool *pgxpool.Pool
}

func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

func (s *PostgresStore) Insert(ctx context.Context, m *Message) error {
	if m.ID == "" {
		m.ID = uuid.New().String()
	}
	if m.ConversationID == "" {
		m.ConversationID = ConversationID(m.SenderUsername, m.ReceiverUsername)
	}
	if m.ReadStatus == "" {
		m.ReadStatus = ReadStatusSent
	}
	if m.Offer == "" {
		m.Offer = OfferNone
	}

	row := s.pool.QueryRow(ctx,
		`INSERT INTO messages (id, conversation_id, sender_username, receiver_username, body, file, read_status, offer)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		 RETURNING `+messageColumns,
		m.ID, m.ConversationID, m.SenderUsername, m.ReceiverUsername, m.Body, m.File, m.ReadStatus, m.Offer,
	)

	inserted, err := scanMessage(row)
	if err != nil {
		return fmt.Errorf("insert message: %w", err)
	}
	*m = *inserted
	return nil
}

func (s *PostgresStore) Get(ctx context.Context, id string) (*Message, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+messageColumns+` FROM messages WHERE id = $1`, id)

	m, err := scanMessage(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get message: %w", err)
	}
	return m, nil
}

func (s *PostgresStore) MarkMessageRead(ctx context.Context, id string) (*Message, error) {
	row := s.pool.QueryRow(ctx,
		`UPDATE messages
		 SET read_status = $2, read_at = now()
		 WHERE id = $1 AND read_status <> $2
		 RETURNING `+messageColumns,
		id, ReadStatusRead,
	)

	m, err := scanMessage(row)
	if errors.Is(err, pgx.ErrNoRows) {
		// Either the id does not exist or the message is already READ.
		return s.Get(ctx, id)
	}
	if err != nil {
		return nil, fmt.Errorf("mark message read: %w", err)
	}
	return m, nil
}

func (s *PostgresStore) MarkConversationRead(ctx context.Context, conversationID, boundaryID string) (int64, error) {
	// One conditional statement covers the whole batch, so concurrent marks
	// on overlapping messages cannot interleave into a partial state.
	tag, err := s.pool.Exec(ctx,
		`UPDATE messages
		 SET read_status = $3, read_at = now()
		 WHERE conversation_id = $1
		   AND read_status <> $3
		   AND created_at <= (SELECT created_at FROM messages WHERE id = $2)`,
		conversationID, boundaryID, ReadStatusRead,
	)
	if err != nil {
		return 0, fmt.Errorf("mark conversation read: %w", err)
	}
	return tag.RowsAffected(), nil
}

func (s *PostgresStore) CompareAndSetOffer(ctx context.Context, id string, from, to OfferStatus) (*Message, bool, error) {
	row := s.pool.QueryRow(ctx,
		`UPDATE messages
		 SET offer = $3, offer_updated_at = now()
		 WHERE id = $1 AND offer = $2
		 RETURNING `+messageColumns,
		id, from, to,
	)

	m, err := scanMessage(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("update offer: %w", err)
	}
	return m, true, nil
}

func (s *PostgresStore) ListConversation(ctx context.Context, conversationID string) ([]Message, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+messageColumns+` FROM messages
		 WHERE conversation_id = $1
		 ORDER BY created_at ASC`,
		conversationID,
	)
	if err != nil {
		return nil, fmt.Errorf("list conversation: %w", err)
	}
	defer rows.Close()

	var messages []Message
	for rows.Next() {
		m, err := scanMessage(rows)
		if err != nil {
			return nil, fmt.Errorf("list conversation: %w", err)
		}
		messages = append(messages, *m)
	}

	if messages == nil {
		messages = []Message{}
	}
	return messages, rows.Err()
}

func scanMessage(row pgx.Row) (*Message, error) {
	var m Message
	err := row.Scan(
		&m.ID, &m.ConversationID, &m.SenderUsername, &m.ReceiverUsername, &m.Body, &m.File,
		&m.ReadStatus, &m.Offer, &m.CreatedAt, &m.DeliveredAt, &m.ReadAt, &m.OfferUpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &m, nil
}
