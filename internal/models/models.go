// Package models defines the board's data types and input sanitizing
package models

import (
	"time"
)

// Post is a top-level message on the board
type Post struct {
	ID        int64     `json:"id"`
	Name      string    `json:"name"`
	Body      string    `json:"body"`
	CreatedAt time.Time `json:"created_at"`
}

// Reply is a message in a post's thread
type Reply struct {
	ID        int64     `json:"id"`
	PostID    int64     `json:"post_id"`
	Name      string    `json:"name"`
	Body      string    `json:"body"`
	CreatedAt time.Time `json:"created_at"`
}

// BoardPost is a board listing row: a post and how many replies it has
type BoardPost struct {
	*Post
	ReplyCount int `json:"reply_count"`
}

// Thread is a post with its replies, oldest first
type Thread struct {
	Post    *Post
	Replies []*Reply
}

// BoardStats holds row counts for the operator tools
type BoardStats struct {
	Posts    int64
	Replies  int64
	Sessions int64
}

// Session is a visitor session carrying its anti-forgery token
type Session struct {
	ID        string
	CSRFToken string
	CreatedAt time.Time
	LastSeen  time.Time
}

// PaginationInfo represents pagination information for templates
type PaginationInfo struct {
	CurrentPage int
	PageSize    int
	TotalCount  int
	TotalPages  int
	HasNext     bool
	HasPrev     bool
	NextPage    int
	PrevPage    int
}

// NewPaginationInfo creates pagination info. The requested page is clamped
// into [1, TotalPages]; an empty board has zero pages and stays on page 1.
func NewPaginationInfo(page, pageSize, totalCount int) *PaginationInfo {
	if pageSize < 1 {
		pageSize = 1
	}
	if totalCount < 0 {
		totalCount = 0
	}
	totalPages := (totalCount + pageSize - 1) / pageSize
	if page > totalPages {
		page = totalPages
	}
	if page < 1 {
		page = 1
	}

	return &PaginationInfo{
		CurrentPage: page,
		PageSize:    pageSize,
		TotalCount:  totalCount,
		TotalPages:  totalPages,
		HasNext:     page < totalPages,
		HasPrev:     page > 1,
		NextPage:    page + 1,
		PrevPage:    page - 1,
	}
}

// Offset returns the row offset of the current page
func (p *PaginationInfo) Offset() int {
	return (p.CurrentPage - 1) * p.PageSize
}

// Pages lists the page numbers to link, empty when there is nothing to page
func (p *PaginationInfo) Pages() []int {
	pages := make([]int, 0, p.TotalPages)
	for i := 1; i <= p.TotalPages; i++ {
		pages = append(pages, i)
	}
	return pages
}
