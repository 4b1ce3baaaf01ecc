package server

import (
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/hupe1980/silo/apierr"
	"github.com/hupe1980/silo/codec"
	"github.com/hupe1980/silo/output"
)

const (
	headerDataVersion = "data-version"
	headerRequestID   = "x-request-id"

	contentTypeYAML = "application/yaml"
)

// errorResponse is the body of every failed request.
type errorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

func (s *Server) handleQuery(c *gin.Context) {
	body := c.Request.Body
	if s.cfg.MaxBodyBytes > 0 {
		body = http.MaxBytesReader(c.Writer, body, s.cfg.MaxBodyBytes)
	}
	data, err := io.ReadAll(body)
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			err = apierr.BadRequestf("The query exceeds the maximum size of %d bytes.", tooLarge.Limit)
		}
		s.renderError(c, err)
		return
	}

	resp, err := s.db.Query(c.Request.Context(), data)
	if err != nil {
		s.renderError(c, err)
		return
	}

	format := output.Negotiate(c.GetHeader("Accept"))
	c.Header(headerDataVersion, resp.DataVersion)
	c.Header("Content-Type", format.ContentType())
	c.Status(http.StatusOK)

	if err := output.Write(c.Writer, format, resp.Result, output.WithBatchSize(s.cfg.ArrowBatchSize)); err != nil {
		// The status line is already sent.
		s.logger.ErrorContext(c.Request.Context(), "writing query result failed",
			"requestId", c.GetString(headerRequestID),
			"format", format.String(),
			"error", err,
		)
	}
}

func (s *Server) handleInfo(c *gin.Context) {
	if details, _ := strconv.ParseBool(c.Query("details")); details {
		info, err := s.db.DetailedInfo(s.cfg.SectionLength)
		if err != nil {
			s.renderError(c, err)
			return
		}
		c.Header(headerDataVersion, info.DataVersion)
		s.renderJSON(c, http.StatusOK, info)
		return
	}

	info, err := s.db.Info()
	if err != nil {
		s.renderError(c, err)
		return
	}
	c.Header(headerDataVersion, info.DataVersion)
	s.renderJSON(c, http.StatusOK, info)
}

func (s *Server) handleLineageDefinition(c *gin.Context) {
	def, version, err := s.db.LineageDefinition(c.Param("column"))
	if version != "" {
		c.Header(headerDataVersion, version)
	}
	if err != nil {
		s.renderError(c, err)
		return
	}
	c.Data(http.StatusOK, contentTypeYAML, def)
}

func (s *Server) handleHealth(c *gin.Context) {
	version := s.db.DataVersion()
	status := "ok"
	if version == "" {
		status = "initializing"
	}
	s.renderJSON(c, http.StatusOK, map[string]string{
		"status":      status,
		"dataVersion": version,
	})
}

func (s *Server) handleNotFound(c *gin.Context) {
	s.renderError(c, apierr.NotFoundf("Resource %s does not exist", c.Request.URL.Path))
}

func (s *Server) handleMethodNotAllowed(c *gin.Context) {
	s.renderError(c, apierr.MethodNotAllowedf("%s is not allowed on resource %s", c.Request.Method, c.Request.URL.Path))
}

// renderError writes err as an errorResponse. Errors without an API kind
// are logged and reported with a generic message.
func (s *Server) renderError(c *gin.Context, err error) {
	status, label, msg := apierr.Status(err)
	if status == http.StatusInternalServerError {
		s.logger.ErrorContext(c.Request.Context(), "request failed",
			"requestId", c.GetString(headerRequestID),
			"path", c.Request.URL.Path,
			"error", err,
		)
	}
	s.renderJSON(c, status, errorResponse{Error: label, Message: msg})
}

func (s *Server) renderJSON(c *gin.Context, status int, v any) {
	data, err := codec.Default.Marshal(v)
	if err != nil {
		s.logger.ErrorContext(c.Request.Context(), "encoding response failed", "error", err)
		c.AbortWithStatus(http.StatusInternalServerError)
		return
	}
	c.Data(status, output.ContentTypeJSON, data)
	c.Abort()
}
