package web

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/go-while/pugboard/internal/models"
)

// boardSubmit handles POST / (new post) and POST /?mode=reply&postId=N (reply)
func (s *WebServer) boardSubmit(c *gin.Context) {
	ctx := c.Request.Context()
	isReply := c.Query("mode") == modeReply
	kind := "post"
	if isReply {
		kind = "reply"
	}

	if !validToken(sessionFrom(c), c.PostForm("csrf_token")) {
		s.metrics.submissions.WithLabelValues(kind, "invalid_token").Inc()
		s.renderError(c, http.StatusForbidden, "Invalid anti-forgery token, reload the page and try again", models.ErrInvalidToken.Error())
		return
	}

	var postID int64
	if isReply {
		var ok bool
		if postID, ok = parsePostID(c); !ok {
			s.metrics.submissions.WithLabelValues(kind, "not_found").Inc()
			s.renderError(c, http.StatusNotFound, "Post not found", "missing or invalid postId "+strconv.Quote(c.Query("postId")))
			return
		}
	}

	name := s.Sanitizer.Name(c.PostForm("name"))
	body, err := s.Sanitizer.Body(c.PostForm("post"))
	var verr *models.ValidationError
	if errors.As(err, &verr) {
		s.metrics.submissions.WithLabelValues(kind, "invalid").Inc()
		form := FormData{Name: c.PostForm("name"), Body: c.PostForm("post"), Error: verr.Reason}
		if isReply {
			s.threadPage(c, form, http.StatusBadRequest)
		} else {
			s.boardPage(c, form, http.StatusBadRequest)
		}
		return
	}
	if err != nil {
		s.renderError(c, http.StatusInternalServerError, "Failed to read submission", err.Error())
		return
	}

	location := "/"
	if isReply {
		reply, err := s.DB.CreateReply(ctx, postID, name, body)
		if errors.Is(err, models.ErrPostNotFound) {
			s.metrics.submissions.WithLabelValues(kind, "not_found").Inc()
			s.renderError(c, http.StatusNotFound, "Post not found", "no post "+strconv.FormatInt(postID, 10))
			return
		}
		if err != nil {
			s.renderError(c, http.StatusInternalServerError, "Failed to save reply", err.Error())
			return
		}
		s.Logger.Debug("[WEB]: reply created", zap.Int64("post_id", postID), zap.Int64("reply_id", reply.ID))
		location = "/?mode=reply&postId=" + strconv.FormatInt(postID, 10)
	} else {
		post, err := s.DB.CreatePost(ctx, name, body)
		if err != nil {
			s.renderError(c, http.StatusInternalServerError, "Failed to save post", err.Error())
			return
		}
		s.Logger.Debug("[WEB]: post created", zap.Int64("post_id", post.ID))
	}

	s.metrics.submissions.WithLabelValues(kind, "created").Inc()
	// 303 so that a refresh does not resubmit the form
	c.Redirect(http.StatusSeeOther, location)
}
