package web

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/go-while/pugboard/internal/models"
)

const modeReply = "reply"

// boardIndex handles GET /: the board listing, or a thread with ?mode=reply&postId=N
func (s *WebServer) boardIndex(c *gin.Context) {
	if c.Query("mode") == modeReply {
		s.threadPage(c, FormData{Name: s.Board.DefaultName}, http.StatusOK)
		return
	}
	s.boardPage(c, FormData{Name: s.Board.DefaultName}, http.StatusOK)
}

// boardPage renders one page of top-level posts with their reply counts
func (s *WebServer) boardPage(c *gin.Context, form FormData, status int) {
	ctx := c.Request.Context()

	// Get pagination parameters, clamped by NewPaginationInfo
	page, err := strconv.Atoi(c.DefaultQuery("page", "1"))
	if err != nil {
		page = 1
	}

	total, err := s.DB.CountPosts(ctx)
	if err != nil {
		s.renderError(c, http.StatusInternalServerError, "Failed to load board", err.Error())
		return
	}
	pagination := models.NewPaginationInfo(page, s.Board.PageSize, total)

	posts, err := s.DB.ListBoardPosts(ctx, pagination.PageSize, pagination.Offset())
	if err != nil {
		s.renderError(c, http.StatusInternalServerError, "Failed to load board", err.Error())
		return
	}

	if _, err := s.ensureSession(c); err != nil {
		s.renderError(c, http.StatusInternalServerError, "Could not start a session", err.Error())
		return
	}
	s.metrics.pageViews.WithLabelValues("board").Inc()
	data := BoardPageData{
		TemplateData: s.getBaseTemplateData(c, "Board"),
		Posts:        posts,
		Pagination:   pagination,
		Form:         form,
	}
	s.renderTemplate(c, status, "board.html", data)
}

// threadPage renders a post and its replies, oldest first
func (s *WebServer) threadPage(c *gin.Context, form FormData, status int) {
	ctx := c.Request.Context()

	postID, ok := parsePostID(c)
	if !ok {
		s.renderError(c, http.StatusNotFound, "Post not found", "missing or invalid postId "+strconv.Quote(c.Query("postId")))
		return
	}

	post, err := s.DB.GetPost(ctx, postID)
	if errors.Is(err, models.ErrPostNotFound) {
		s.renderError(c, http.StatusNotFound, "Post not found", "no post "+strconv.FormatInt(postID, 10))
		return
	}
	if err != nil {
		s.renderError(c, http.StatusInternalServerError, "Failed to load thread", err.Error())
		return
	}

	replies, err := s.DB.GetReplies(ctx, postID)
	if err != nil {
		s.renderError(c, http.StatusInternalServerError, "Failed to load thread", err.Error())
		return
	}

	if _, err := s.ensureSession(c); err != nil {
		s.renderError(c, http.StatusInternalServerError, "Could not start a session", err.Error())
		return
	}
	s.metrics.pageViews.WithLabelValues("thread").Inc()
	data := ThreadPageData{
		TemplateData: s.getBaseTemplateData(c, "Reply Mode"),
		Thread:       &models.Thread{Post: post, Replies: replies},
		Form:         form,
	}
	s.renderTemplate(c, status, "thread.html", data)
}

// parsePostID reads a positive postId from the query string
func parsePostID(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Query("postId"), 10, 64)
	if err != nil || id < 1 {
		return 0, false
	}
	return id, true
}
