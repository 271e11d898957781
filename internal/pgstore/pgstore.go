// Package pgstore keeps the board in PostgreSQL through gorm. It uses the
// same tables and columns as the sqlite store in internal/database but
// does not import it, so postgres builds stay free of cgo.
package pgstore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"

	"github.com/go-while/pugboard/internal/models"
)

type postRow struct {
	ID   int64     `gorm:"primaryKey;autoIncrement"`
	Name string    `gorm:"not null"`
	Post string    `gorm:"column:post;not null"`
	Date time.Time `gorm:"column:date;not null;index:idx_posts_date"`
}

func (postRow) TableName() string { return "posts" }

type replyRow struct {
	ID     int64     `gorm:"primaryKey;autoIncrement"`
	PostID int64     `gorm:"column:postId;not null;index:idx_replies_post"`
	Name   string    `gorm:"not null"`
	Reply  string    `gorm:"column:reply;not null"`
	Date   time.Time `gorm:"column:date;not null;index:idx_replies_post"`
	Parent *postRow  `gorm:"foreignKey:PostID;constraint:OnDelete:CASCADE"`
}

func (replyRow) TableName() string { return "replies" }

type sessionRow struct {
	ID        string    `gorm:"primaryKey"`
	CSRFToken string    `gorm:"column:csrf_token;not null"`
	CreatedAt time.Time `gorm:"column:created_at;not null"`
	LastSeen  time.Time `gorm:"column:last_seen;not null;index"`
}

func (sessionRow) TableName() string { return "sessions" }

// boardRow is a post with its reply count, as returned by ListBoardPosts
type boardRow struct {
	ID         int64
	Name       string
	Post       string
	Date       time.Time
	ReplyCount int
}

var now = func() time.Time { return time.Now().UTC() }

// Store implements the board store on PostgreSQL
type Store struct {
	db *gorm.DB
}

// Open connects to dsn and migrates the schema. Connection failures are
// returned as *models.StoreConnectionError.
func Open(dsn string) (*Store, error) {
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Warn),
	})
	if err != nil {
		return nil, &models.StoreConnectionError{Driver: "postgres", Err: err}
	}
	sqlDB, err := db.DB()
	if err != nil {
		return nil, &models.StoreConnectionError{Driver: "postgres", Err: err}
	}
	sqlDB.SetMaxOpenConns(16)
	sqlDB.SetMaxIdleConns(4)
	sqlDB.SetConnMaxLifetime(time.Hour)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := sqlDB.PingContext(ctx); err != nil {
		sqlDB.Close()
		return nil, &models.StoreConnectionError{Driver: "postgres", Err: err}
	}

	if err := db.AutoMigrate(&postRow{}, &replyRow{}, &sessionRow{}); err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("failed to migrate postgres schema: %w", err)
	}
	zap.L().Info("[PGSTORE]: connected and migrated")
	return &Store{db: db}, nil
}

// Close closes the connection pool
func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func (s *Store) CreatePost(ctx context.Context, name, body string) (*models.Post, error) {
	row := &postRow{Name: name, Post: body, Date: now()}
	if err := s.db.WithContext(ctx).Create(row).Error; err != nil {
		return nil, fmt.Errorf("failed to insert post: %w", err)
	}
	return row.model(), nil
}

// CreateReply returns models.ErrPostNotFound when postID does not exist
func (s *Store) CreateReply(ctx context.Context, postID int64, name, body string) (*models.Reply, error) {
	row := &replyRow{PostID: postID, Name: name, Reply: body, Date: now()}
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var parent postRow
		// lock the parent so a concurrent reset cannot orphan the reply
		err := tx.Clauses(clause.Locking{Strength: "SHARE"}).Select("id").First(&parent, postID).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return models.ErrPostNotFound
		}
		if err != nil {
			return err
		}
		return tx.Omit("Parent").Create(row).Error
	})
	if errors.Is(err, models.ErrPostNotFound) {
		return nil, err
	}
	if err != nil {
		return nil, fmt.Errorf("failed to insert reply to post %d: %w", postID, err)
	}
	return row.model(), nil
}

func (s *Store) GetPost(ctx context.Context, id int64) (*models.Post, error) {
	var row postRow
	err := s.db.WithContext(ctx).First(&row, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, models.ErrPostNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get post %d: %w", id, err)
	}
	return row.model(), nil
}

func (s *Store) ListBoardPosts(ctx context.Context, limit, offset int) ([]*models.BoardPost, error) {
	var rows []boardRow
	err := s.db.WithContext(ctx).
		Model(&postRow{}).
		Select(`posts.id, posts.name, posts.post, posts.date,
			(SELECT COUNT(*) FROM replies WHERE replies."postId" = posts.id) AS reply_count`).
		Order("posts.date DESC, posts.id DESC").
		Limit(limit).
		Offset(offset).
		Scan(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list posts: %w", err)
	}
	out := make([]*models.BoardPost, 0, len(rows))
	for _, r := range rows {
		out = append(out, &models.BoardPost{
			Post:       &models.Post{ID: r.ID, Name: r.Name, Body: r.Post, CreatedAt: r.Date},
			ReplyCount: r.ReplyCount,
		})
	}
	return out, nil
}

func (s *Store) CountPosts(ctx context.Context) (int, error) {
	var n int64
	if err := s.db.WithContext(ctx).Model(&postRow{}).Count(&n).Error; err != nil {
		return 0, fmt.Errorf("failed to count posts: %w", err)
	}
	return int(n), nil
}

func (s *Store) GetReplies(ctx context.Context, postID int64) ([]*models.Reply, error) {
	var rows []replyRow
	err := s.db.WithContext(ctx).
		Where(`"postId" = ?`, postID).
		Order("date ASC, id ASC").
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("failed to get replies for post %d: %w", postID, err)
	}
	out := make([]*models.Reply, 0, len(rows))
	for i := range rows {
		out = append(out, rows[i].model())
	}
	return out, nil
}

// Stats counts posts, replies and sessions
func (s *Store) Stats(ctx context.Context) (*models.BoardStats, error) {
	stats := &models.BoardStats{}
	db := s.db.WithContext(ctx)
	if err := db.Model(&postRow{}).Count(&stats.Posts).Error; err != nil {
		return nil, err
	}
	if err := db.Model(&replyRow{}).Count(&stats.Replies).Error; err != nil {
		return nil, err
	}
	if err := db.Model(&sessionRow{}).Count(&stats.Sessions).Error; err != nil {
		return nil, err
	}
	return stats, nil
}

// ResetBoard deletes every post and reply and restarts the id sequences
func (s *Store) ResetBoard(ctx context.Context) error {
	err := s.db.WithContext(ctx).Exec(`TRUNCATE TABLE replies, posts RESTART IDENTITY`).Error
	if err != nil {
		return fmt.Errorf("failed to reset board: %w", err)
	}
	return nil
}

func (s *Store) CreateSession(ctx context.Context) (*models.Session, error) {
	session, err := models.NewSession(now())
	if err != nil {
		return nil, err
	}
	row := &sessionRow{
		ID:        session.ID,
		CSRFToken: session.CSRFToken,
		CreatedAt: session.CreatedAt,
		LastSeen:  session.LastSeen,
	}
	if err := s.db.WithContext(ctx).Create(row).Error; err != nil {
		return nil, fmt.Errorf("failed to create session: %w", err)
	}
	return session, nil
}

// GetSession returns models.ErrSessionNotFound for unknown sessions and
// for sessions idle longer than maxIdle
func (s *Store) GetSession(ctx context.Context, id string, maxIdle time.Duration) (*models.Session, error) {
	var row sessionRow
	err := s.db.WithContext(ctx).
		Where("id = ? AND last_seen > ?", id, now().Add(-maxIdle)).
		First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, models.ErrSessionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get session: %w", err)
	}
	return &models.Session{
		ID:        row.ID,
		CSRFToken: row.CSRFToken,
		CreatedAt: row.CreatedAt,
		LastSeen:  row.LastSeen,
	}, nil
}

func (s *Store) TouchSession(ctx context.Context, id string) error {
	return s.db.WithContext(ctx).Model(&sessionRow{}).Where("id = ?", id).Update("last_seen", now()).Error
}

func (s *Store) CleanupExpiredSessions(ctx context.Context, maxIdle time.Duration) (int64, error) {
	res := s.db.WithContext(ctx).Where("last_seen <= ?", now().Add(-maxIdle)).Delete(&sessionRow{})
	if res.Error != nil {
		return 0, fmt.Errorf("failed to clean up sessions: %w", res.Error)
	}
	return res.RowsAffected, nil
}

func (r *postRow) model() *models.Post {
	return &models.Post{ID: r.ID, Name: r.Name, Body: r.Post, CreatedAt: r.Date}
}

func (r *replyRow) model() *models.Reply {
	return &models.Reply{ID: r.ID, PostID: r.PostID, Name: r.Name, Body: r.Reply, CreatedAt: r.Date}
}
