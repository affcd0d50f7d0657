package memory

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/ent0n29/companion/internal/extract"
)

// PostgresStore persists profiles and conversations in PostgreSQL.
//
// A partial unique index keeps at most one active conversation per
// (user_id, session_id); appends lock that row for the duration of the
// transaction, so concurrent appends for the same pair serialise.
type PostgresStore struct {
	pool *pgxpool.Pool
}

func NewPostgresStore(ctx context.Context, databaseURL string) (*PostgresStore, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, storeErr("connect postgres", err)
	}

	if err := initSchema(ctx, pool); err != nil {
		pool.Close()
		return nil, err
	}

	return &PostgresStore{pool: pool}, nil
}

func initSchema(ctx context.Context, pool *pgxpool.Pool) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS user_profiles (
			user_id TEXT PRIMARY KEY,
			name TEXT NOT NULL DEFAULT '',
			interests TEXT[] NOT NULL DEFAULT '{}',
			favorite_color TEXT NOT NULL DEFAULT '',
			location TEXT NOT NULL DEFAULT '',
			communication_style TEXT NOT NULL DEFAULT 'friendly',
			mood_history TEXT[] NOT NULL DEFAULT '{}',
			total_interactions INTEGER NOT NULL DEFAULT 0,
			last_interaction TIMESTAMPTZ NOT NULL DEFAULT now(),
			created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
			updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
		);`,
		`CREATE INDEX IF NOT EXISTS idx_user_profiles_last_interaction ON user_profiles (user_id, last_interaction DESC);`,
		`CREATE TABLE IF NOT EXISTS conversations (
			id TEXT PRIMARY KEY,
			user_id TEXT NOT NULL,
			session_id TEXT NOT NULL,
			summary TEXT NOT NULL DEFAULT '',
			topics TEXT[] NOT NULL DEFAULT '{}',
			started_at TIMESTAMPTZ NOT NULL DEFAULT now(),
			ended_at TIMESTAMPTZ,
			is_active BOOLEAN NOT NULL DEFAULT TRUE
		);`,
		`CREATE UNIQUE INDEX IF NOT EXISTS idx_conversations_one_active ON conversations (user_id, session_id) WHERE is_active;`,
		`CREATE INDEX IF NOT EXISTS idx_conversations_user_active ON conversations (user_id, is_active);`,
		`CREATE TABLE IF NOT EXISTS conversation_messages (
			id TEXT PRIMARY KEY,
			conversation_id TEXT NOT NULL REFERENCES conversations (id) ON DELETE CASCADE,
			seq BIGSERIAL,
			role TEXT NOT NULL,
			content TEXT NOT NULL,
			emotion TEXT NOT NULL DEFAULT '',
			extracted_info JSONB NOT NULL DEFAULT '{}',
			created_at TIMESTAMPTZ NOT NULL DEFAULT now()
		);`,
		`CREATE INDEX IF NOT EXISTS idx_conversation_messages_conv_seq ON conversation_messages (conversation_id, seq);`,
	}

	for _, stmt := range stmts {
		if _, err := pool.Exec(ctx, stmt); err != nil {
			return storeErr("init schema", fmt.Errorf("statement %q: %w", stmt, err))
		}
	}
	return nil
}

// inTx runs fn inside one transaction, committing only when fn succeeds.
func (s *PostgresStore) inTx(ctx context.Context, fn func(pgx.Tx) error) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if err := fn(tx); err != nil {
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

const profileColumns = `user_id, name, interests, favorite_color, location, communication_style,
	mood_history, total_interactions, last_interaction, created_at, updated_at`

func scanProfile(row pgx.Row) (UserProfile, error) {
	var p UserProfile
	err := row.Scan(
		&p.UserID,
		&p.Name,
		&p.Preferences.Interests,
		&p.Preferences.FavoriteColor,
		&p.Preferences.Location,
		&p.Personality.CommunicationStyle,
		&p.Personality.MoodHistory,
		&p.TotalInteractions,
		&p.LastInteraction,
		&p.CreatedAt,
		&p.UpdatedAt,
	)
	return p, err
}

func ensureProfile(ctx context.Context, tx pgx.Tx, userID string, now time.Time) error {
	_, err := tx.Exec(ctx,
		`INSERT INTO user_profiles (user_id, communication_style, last_interaction, created_at, updated_at)
		 VALUES ($1, $2, $3, $3, $3)
		 ON CONFLICT (user_id) DO NOTHING`,
		userID, DefaultCommunicationStyle, now,
	)
	return err
}

func (s *PostgresStore) GetOrCreateProfile(ctx context.Context, userID string) (UserProfile, error) {
	var out UserProfile
	err := s.inTx(ctx, func(tx pgx.Tx) error {
		if err := ensureProfile(ctx, tx, userID, time.Now().UTC()); err != nil {
			return err
		}
		p, err := scanProfile(tx.QueryRow(ctx, `SELECT `+profileColumns+` FROM user_profiles WHERE user_id=$1`, userID))
		out = p
		return err
	})
	if err != nil {
		return UserProfile{}, storeErr("get or create profile", err)
	}
	return out, nil
}

func (s *PostgresStore) MergeProfile(ctx context.Context, userID string, facts extract.Facts, at time.Time) (UserProfile, error) {
	var out UserProfile
	err := s.inTx(ctx, func(tx pgx.Tx) error {
		p, err := mergeProfileTx(ctx, tx, userID, facts, at)
		out = p
		return err
	})
	if err != nil {
		return UserProfile{}, storeErr("merge profile", err)
	}
	return out, nil
}

func mergeProfileTx(ctx context.Context, tx pgx.Tx, userID string, facts extract.Facts, at time.Time) (UserProfile, error) {
	if err := ensureProfile(ctx, tx, userID, at); err != nil {
		return UserProfile{}, err
	}
	p, err := scanProfile(tx.QueryRow(ctx, `SELECT `+profileColumns+` FROM user_profiles WHERE user_id=$1 FOR UPDATE`, userID))
	if err != nil {
		return UserProfile{}, err
	}
	applyFacts(&p, facts, at)
	_, err = tx.Exec(ctx,
		`UPDATE user_profiles
		 SET name=$2, interests=$3, favorite_color=$4, location=$5,
		     total_interactions=$6, last_interaction=$7, updated_at=$7
		 WHERE user_id=$1`,
		p.UserID,
		p.Name,
		p.Preferences.Interests,
		p.Preferences.FavoriteColor,
		p.Preferences.Location,
		p.TotalInteractions,
		p.LastInteraction,
	)
	if err != nil {
		return UserProfile{}, err
	}
	return p, nil
}

func (s *PostgresStore) Profile(ctx context.Context, userID string) (*UserProfile, error) {
	p, err := scanProfile(s.pool.QueryRow(ctx, `SELECT `+profileColumns+` FROM user_profiles WHERE user_id=$1`, userID))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, storeErr("load profile", err)
	}
	return &p, nil
}

const conversationColumns = `id, user_id, session_id, summary, topics, started_at, ended_at, is_active`

func scanConversation(row pgx.Row) (Conversation, error) {
	var c Conversation
	err := row.Scan(&c.ID, &c.UserID, &c.SessionID, &c.Summary, &c.Topics, &c.StartedAt, &c.EndedAt, &c.IsActive)
	return c, err
}

func (s *PostgresStore) AppendMessage(ctx context.Context, userID, sessionID string, msg Message, facts extract.Facts) (Conversation, error) {
	if msg.ID == "" {
		msg.ID = uuid.NewString()
	}
	if msg.Timestamp.IsZero() {
		msg.Timestamp = time.Now().UTC()
	}
	if msg.ExtractedInfo == nil {
		msg.ExtractedInfo = map[string]string{}
	}

	var out Conversation
	err := s.inTx(ctx, func(tx pgx.Tx) error {
		if !facts.IsEmpty() {
			if _, err := mergeProfileTx(ctx, tx, userID, facts, msg.Timestamp); err != nil {
				return fmt.Errorf("merge profile: %w", err)
			}
		}

		if _, err := tx.Exec(ctx,
			`INSERT INTO conversations (id, user_id, session_id, started_at, is_active)
			 VALUES ($1, $2, $3, $4, TRUE)
			 ON CONFLICT (user_id, session_id) WHERE is_active DO NOTHING`,
			uuid.NewString(), userID, sessionID, msg.Timestamp,
		); err != nil {
			return fmt.Errorf("create conversation: %w", err)
		}

		conv, err := scanConversation(tx.QueryRow(ctx,
			`SELECT `+conversationColumns+` FROM conversations
			 WHERE user_id=$1 AND session_id=$2 AND is_active FOR UPDATE`,
			userID, sessionID,
		))
		if err != nil {
			return fmt.Errorf("lock conversation: %w", err)
		}

		if _, err := tx.Exec(ctx,
			`INSERT INTO conversation_messages (id, conversation_id, role, content, emotion, extracted_info, created_at)
			 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
			msg.ID, conv.ID, string(msg.Role), msg.Content, msg.Emotion, msg.ExtractedInfo, msg.Timestamp,
		); err != nil {
			return fmt.Errorf("insert message: %w", err)
		}

		if len(facts.Interests) > 0 {
			conv.Topics = unionStrings(conv.Topics, facts.Interests)
			if _, err := tx.Exec(ctx, `UPDATE conversations SET topics=$2 WHERE id=$1`, conv.ID, conv.Topics); err != nil {
				return fmt.Errorf("update topics: %w", err)
			}
		}

		msgs, err := loadMessages(ctx, tx, conv.ID, 0)
		if err != nil {
			return err
		}
		conv.Messages = msgs
		out = conv
		return nil
	})
	if err != nil {
		return Conversation{}, storeErr("append message", err)
	}
	return out, nil
}

// rowQuerier is satisfied by both the pool and a transaction.
type rowQuerier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

// loadMessages returns the last limit messages of a conversation in
// chronological order; limit <= 0 loads all of them.
func loadMessages(ctx context.Context, q rowQuerier, conversationID string, limit int) ([]Message, error) {
	query := `SELECT id, role, content, emotion, extracted_info, created_at
		FROM conversation_messages WHERE conversation_id=$1 ORDER BY seq DESC`
	args := []any{conversationID}
	if limit > 0 {
		query += ` LIMIT $2`
		args = append(args, limit)
	}

	rows, err := q.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query messages: %w", err)
	}
	defer rows.Close()

	var items []Message
	for rows.Next() {
		var (
			m    Message
			role string
		)
		if err := rows.Scan(&m.ID, &role, &m.Content, &m.Emotion, &m.ExtractedInfo, &m.Timestamp); err != nil {
			return nil, fmt.Errorf("scan message row: %w", err)
		}
		m.Role = Role(role)
		items = append(items, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate message rows: %w", err)
	}

	// Reverse into chronological order for prompt coherence.
	for i, j := 0, len(items)-1; i < j; i, j = i+1, j-1 {
		items[i], items[j] = items[j], items[i]
	}
	return items, nil
}

func (s *PostgresStore) RecentMessages(ctx context.Context, userID, sessionID string, limit int) ([]Message, error) {
	var convID string
	err := s.pool.QueryRow(ctx,
		`SELECT id FROM conversations WHERE user_id=$1 AND session_id=$2 AND is_active`,
		userID, sessionID,
	).Scan(&convID)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, storeErr("find active conversation", err)
	}
	msgs, err := loadMessages(ctx, s.pool, convID, limit)
	if err != nil {
		return nil, storeErr("recent messages", err)
	}
	return msgs, nil
}

func (s *PostgresStore) EndConversation(ctx context.Context, userID, sessionID string, endedAt time.Time) (*Conversation, error) {
	var out *Conversation
	err := s.inTx(ctx, func(tx pgx.Tx) error {
		conv, err := scanConversation(tx.QueryRow(ctx,
			`SELECT `+conversationColumns+` FROM conversations
			 WHERE user_id=$1 AND session_id=$2 AND is_active FOR UPDATE`,
			userID, sessionID,
		))
		if errors.Is(err, pgx.ErrNoRows) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("lock conversation: %w", err)
		}

		var count int
		if err := tx.QueryRow(ctx,
			`SELECT count(*) FROM conversation_messages WHERE conversation_id=$1`, conv.ID,
		).Scan(&count); err != nil {
			return fmt.Errorf("count messages: %w", err)
		}

		conv.IsActive = false
		conv.EndedAt = &endedAt
		conv.Summary = Digest(conv.Topics, count)
		if _, err := tx.Exec(ctx,
			`UPDATE conversations SET is_active=FALSE, ended_at=$2, summary=$3 WHERE id=$1`,
			conv.ID, endedAt, conv.Summary,
		); err != nil {
			return fmt.Errorf("end conversation: %w", err)
		}
		out = &conv
		return nil
	})
	if err != nil {
		return nil, storeErr("end conversation", err)
	}
	return out, nil
}

func (s *PostgresStore) PastConversations(ctx context.Context, userID string, limit int) ([]PastConversation, error) {
	if limit <= 0 {
		limit = 3
	}
	rows, err := s.pool.Query(ctx,
		`SELECT session_id, summary, topics, ended_at FROM conversations
		 WHERE user_id=$1 AND NOT is_active AND ended_at IS NOT NULL
		 ORDER BY ended_at DESC LIMIT $2`,
		userID, limit,
	)
	if err != nil {
		return nil, storeErr("query past conversations", err)
	}
	defer rows.Close()

	items := make([]PastConversation, 0, limit)
	for rows.Next() {
		var pc PastConversation
		if err := rows.Scan(&pc.SessionID, &pc.Summary, &pc.Topics, &pc.EndedAt); err != nil {
			return nil, storeErr("scan past conversation", err)
		}
		items = append(items, pc)
	}
	if err := rows.Err(); err != nil {
		return nil, storeErr("iterate past conversations", err)
	}
	return items, nil
}

func (s *PostgresStore) DeleteUser(ctx context.Context, userID string) error {
	err := s.inTx(ctx, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, `DELETE FROM conversations WHERE user_id=$1`, userID); err != nil {
			return err
		}
		_, err := tx.Exec(ctx, `DELETE FROM user_profiles WHERE user_id=$1`, userID)
		return err
	})
	return storeErr("delete user", err)
}

func (s *PostgresStore) Ping(ctx context.Context) error {
	return storeErr("ping", s.pool.Ping(ctx))
}

func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}
