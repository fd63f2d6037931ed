package chat

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type chatRecord struct {
	ID        string    `gorm:"primaryKey;size:26"` // ULID length
	UserID    string    `gorm:"type:varchar(64);index;not null"`
	Title     string    `gorm:"type:varchar(255);not null"`
	CreatedAt time.Time `gorm:"autoCreateTime:false"`
	UpdatedAt time.Time `gorm:"autoUpdateTime:false"`
}

func (chatRecord) TableName() string { return "chats" }

type messageRecord struct {
	ID        string    `gorm:"primaryKey;size:26"`
	ChatID    string    `gorm:"size:26;not null;index:idx_chat_msg_chat_seq,priority:1"`
	UserID    string    `gorm:"type:varchar(64);index;not null"`
	Seq       int       `gorm:"not null;index:idx_chat_msg_chat_seq,priority:2"`
	Role      string    `gorm:"type:varchar(16);not null"`
	Content   string    `gorm:"type:text;not null"`
	Pending   bool      `gorm:"not null;default:false"`
	Failed    bool      `gorm:"not null;default:false"`
	CreatedAt time.Time `gorm:"autoCreateTime:false"`
}

func (messageRecord) TableName() string { return "chat_messages" }

// Models lists the tables Repo needs, for AutoMigrate.
func Models() []any { return []any{&chatRecord{}, &messageRecord{}} }

var errChatOwnedByOther = errors.New("chat id belongs to another user")

// Repo is the SQL Session Store.
type Repo struct {
	db *gorm.DB
}

func NewRepo(db *gorm.DB) *Repo {
	return &Repo{db: db}
}

// ListChats returns the user's chats newest first, messages in append order.
func (r *Repo) ListChats(ctx context.Context, userID string) ([]Chat, error) {
	var recs []chatRecord
	if err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at DESC").Order("id DESC").
		Find(&recs).Error; err != nil {
		return nil, err
	}
	if len(recs) == 0 {
		return []Chat{}, nil
	}

	ids := make([]string, 0, len(recs))
	for _, rec := range recs {
		ids = append(ids, rec.ID)
	}

	var msgs []messageRecord
	if err := r.db.WithContext(ctx).
		Where("user_id = ? AND chat_id IN ?", userID, ids).
		Order("chat_id ASC").Order("seq ASC").
		Find(&msgs).Error; err != nil {
		return nil, err
	}

	byChat := make(map[string][]Message, len(recs))
	for _, m := range msgs {
		byChat[m.ChatID] = append(byChat[m.ChatID], Message{
			ID:        m.ID,
			Role:      Role(m.Role),
			Content:   m.Content,
			Pending:   m.Pending,
			Failed:    m.Failed,
			CreatedAt: m.CreatedAt,
		})
	}

	out := make([]Chat, 0, len(recs))
	for _, rec := range recs {
		messages := byChat[rec.ID]
		if messages == nil {
			messages = []Message{}
		}
		out = append(out, Chat{
			ID:        rec.ID,
			Title:     rec.Title,
			CreatedAt: rec.CreatedAt,
			UpdatedAt: rec.UpdatedAt,
			Messages:  messages,
		})
	}
	return out, nil
}

// SaveChat replaces the chat row and its message list in one transaction.
func (r *Repo) SaveChat(ctx context.Context, userID string, c Chat) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var existing chatRecord
		err := tx.Select("id", "user_id").Where("id = ?", c.ID).Take(&existing).Error
		switch {
		case err == nil && existing.UserID != userID:
			return errChatOwnedByOther
		case err != nil && !errors.Is(err, gorm.ErrRecordNotFound):
			return err
		}

		rec := chatRecord{
			ID:        c.ID,
			UserID:    userID,
			Title:     c.Title,
			CreatedAt: c.CreatedAt,
			UpdatedAt: c.UpdatedAt,
		}
		if err := tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "id"}},
			DoUpdates: clause.AssignmentColumns([]string{"title", "updated_at"}),
		}).Create(&rec).Error; err != nil {
			return err
		}

		if err := tx.Where("chat_id = ? AND user_id = ?", c.ID, userID).
			Delete(&messageRecord{}).Error; err != nil {
			return err
		}
		if len(c.Messages) == 0 {
			return nil
		}

		recs := make([]messageRecord, 0, len(c.Messages))
		for i, m := range c.Messages {
			recs = append(recs, messageRecord{
				ID:        m.ID,
				ChatID:    c.ID,
				UserID:    userID,
				Seq:       i,
				Role:      string(m.Role),
				Content:   m.Content,
				Pending:   m.Pending,
				Failed:    m.Failed,
				CreatedAt: m.CreatedAt,
			})
		}
		return tx.Create(&recs).Error
	})
}

// DeleteChat is a no-op for unknown ids.
func (r *Repo) DeleteChat(ctx context.Context, userID, chatID string) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("chat_id = ? AND user_id = ?", chatID, userID).
			Delete(&messageRecord{}).Error; err != nil {
			return err
		}
		return tx.Where("id = ? AND user_id = ?", chatID, userID).
			Delete(&chatRecord{}).Error
	})
}
