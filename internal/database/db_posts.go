package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/go-while/pugboard/internal/models"
)

const (
	query_InsertPost = `INSERT INTO posts (name, post, date) VALUES (?, ?, ?)`

	// inserts nothing when the parent post is missing
	query_InsertReply = `INSERT INTO replies (postId, name, reply, date)
		SELECT ?, ?, ?, ? WHERE EXISTS (SELECT 1 FROM posts WHERE id = ?)`

	query_GetPost = `SELECT id, name, post, date FROM posts WHERE id = ?`

	query_ListBoardPosts = `SELECT p.id, p.name, p.post, p.date,
		(SELECT COUNT(*) FROM replies r WHERE r.postId = p.id)
		FROM posts p
		ORDER BY p.date DESC, p.id DESC
		LIMIT ? OFFSET ?`

	query_CountPosts = `SELECT COUNT(*) FROM posts`

	query_GetReplies = `SELECT id, postId, name, reply, date FROM replies
		WHERE postId = ? ORDER BY date ASC, id ASC`

)

// now is the server clock used for created_at, UTC so that stored values sort as text
var now = func() time.Time { return time.Now().UTC() }

// CreatePost inserts a top-level post
func (db *Database) CreatePost(ctx context.Context, name, body string) (*models.Post, error) {
	post := &models.Post{Name: name, Body: body, CreatedAt: now()}
	res, err := retryableExec(ctx, db.mainDB, query_InsertPost, post.Name, post.Body, post.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to insert post: %w", err)
	}
	if post.ID, err = res.LastInsertId(); err != nil {
		return nil, fmt.Errorf("failed to get post id: %w", err)
	}
	return post, nil
}

// CreateReply inserts a reply to postID, models.ErrPostNotFound if there is no such post
func (db *Database) CreateReply(ctx context.Context, postID int64, name, body string) (*models.Reply, error) {
	reply := &models.Reply{PostID: postID, Name: name, Body: body, CreatedAt: now()}
	res, err := retryableExec(ctx, db.mainDB, query_InsertReply, postID, reply.Name, reply.Body, reply.CreatedAt, postID)
	if err != nil {
		return nil, fmt.Errorf("failed to insert reply to post %d: %w", postID, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("failed to insert reply to post %d: %w", postID, err)
	}
	if n == 0 {
		return nil, models.ErrPostNotFound
	}
	if reply.ID, err = res.LastInsertId(); err != nil {
		return nil, fmt.Errorf("failed to get reply id: %w", err)
	}
	return reply, nil
}

// GetPost returns a single post by id
func (db *Database) GetPost(ctx context.Context, id int64) (*models.Post, error) {
	var p models.Post
	err := retryableQueryRowScan(ctx, db.mainDB, query_GetPost, []any{id}, &p.ID, &p.Name, &p.Body, &p.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, models.ErrPostNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get post %d: %w", id, err)
	}
	return &p, nil
}

// ListBoardPosts returns one board page, newest first, with reply counts
func (db *Database) ListBoardPosts(ctx context.Context, limit, offset int) ([]*models.BoardPost, error) {
	rows, err := retryableQuery(ctx, db.mainDB, query_ListBoardPosts, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to list posts: %w", err)
	}
	defer rows.Close()

	var posts []*models.BoardPost
	for rows.Next() {
		bp := &models.BoardPost{Post: &models.Post{}}
		if err := rows.Scan(&bp.ID, &bp.Name, &bp.Body, &bp.CreatedAt, &bp.ReplyCount); err != nil {
			return nil, fmt.Errorf("failed to scan post: %w", err)
		}
		posts = append(posts, bp)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating posts: %w", err)
	}
	return posts, nil
}

// CountPosts returns the number of posts on the board
func (db *Database) CountPosts(ctx context.Context) (int, error) {
	var n int
	if err := retryableQueryRowScan(ctx, db.mainDB, query_CountPosts, nil, &n); err != nil {
		return 0, fmt.Errorf("failed to count posts: %w", err)
	}
	return n, nil
}

// GetReplies returns the replies of a post, oldest first
func (db *Database) GetReplies(ctx context.Context, postID int64) ([]*models.Reply, error) {
	rows, err := retryableQuery(ctx, db.mainDB, query_GetReplies, postID)
	if err != nil {
		return nil, fmt.Errorf("failed to get replies of post %d: %w", postID, err)
	}
	defer rows.Close()

	var replies []*models.Reply
	for rows.Next() {
		r := &models.Reply{}
		if err := rows.Scan(&r.ID, &r.PostID, &r.Name, &r.Body, &r.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan reply: %w", err)
		}
		replies = append(replies, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating replies: %w", err)
	}
	return replies, nil
}


// Stats returns row counts of the board tables
func (db *Database) Stats(ctx context.Context) (*models.BoardStats, error) {
	var s models.BoardStats
	err := retryableQueryRowScan(ctx, db.mainDB,
		`SELECT (SELECT COUNT(*) FROM posts), (SELECT COUNT(*) FROM replies), (SELECT COUNT(*) FROM sessions)`,
		nil, &s.Posts, &s.Replies, &s.Sessions)
	if err != nil {
		return nil, fmt.Errorf("failed to read board stats: %w", err)
	}
	return &s, nil
}

// ResetBoard deletes every reply and post and restarts the id counters
func (db *Database) ResetBoard(ctx context.Context) error {
	return retryableTx(ctx, db.mainDB, func(tx *sql.Tx) error {
		for _, q := range []string{
			`DELETE FROM replies`,
			`DELETE FROM posts`,
			`DELETE FROM sqlite_sequence WHERE name IN ('posts', 'replies')`,
		} {
			if _, err := tx.ExecContext(ctx, q); err != nil {
				return fmt.Errorf("failed to reset board: %w", err)
			}
		}
		return nil
	})
}
