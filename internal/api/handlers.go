package api

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/endo-report-server/internal/audit"
	"github.com/endo-report-server/internal/domain"
	"github.com/endo-report-server/internal/letter"
	"github.com/endo-report-server/internal/middleware"
)

// LetterRequest is the body of POST /api/letter
type LetterRequest struct {
	Case        domain.CaseRecord  `json:"case"`
	Attachments domain.Attachments `json:"attachments"`
}

// handleHealth handles health check requests
func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":          "healthy",
		"timestamp":       time.Now().UTC(),
		"version":         Version,
		"model":           s.rewriter.Model(),
		"circuit_breaker": s.rewriter.BreakerState(),
	})
}

// handleRewrite answers 200 {"output"} or 500 {"error"} and nothing else
func (s *Server) handleRewrite(c *gin.Context) {
	var req domain.RewriteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.logger.WithError(err).WithField("correlation_id", middleware.GetCorrelationID(c)).Warn("Malformed rewrite request")
		c.JSON(http.StatusInternalServerError, domain.RewriteResponse{Error: domain.MsgInvalidBody})
		return
	}

	output, err := s.rewriter.Rewrite(c.Request.Context(), req.Notes, req.PatientName)
	if err != nil {
		c.JSON(http.StatusInternalServerError, domain.RewriteResponse{Error: domain.PublicMessage(err)})
		return
	}

	c.JSON(http.StatusOK, domain.RewriteResponse{Output: output})
}

// handleProcedures lists the registered letter variants
func (s *Server) handleProcedures(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"procedures": letter.Procedures()})
}

// handleRender renders the letter body of a case record
func (s *Server) handleRender(c *gin.Context) {
	var rec domain.CaseRecord
	if err := c.ShouldBindJSON(&rec); err != nil {
		s.badRequest(c, err)
		return
	}

	start := time.Now()
	body, err := letter.Render(rec)
	s.recordRender(c.Request.Context(), rec.ProcedureType, len(body), start, err)
	if err != nil {
		s.badRequest(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"procedureType": rec.ProcedureType,
		"body":          body,
	})
}

// handleLetter renders the full letter as text or, with ?format=html, printable HTML
func (s *Server) handleLetter(c *gin.Context) {
	var req LetterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.badRequest(c, err)
		return
	}

	start := time.Now()
	doc, err := s.composer.Compose(req.Case, req.Attachments)
	if err != nil {
		s.recordRender(c.Request.Context(), req.Case.ProcedureType, 0, start, err)
		s.badRequest(c, err)
		return
	}

	if c.Query("format") == "html" {
		html, err := doc.HTML()
		if err != nil {
			s.logger.WithError(err).Error("Failed to render letter HTML")
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to render letter"})
			return
		}
		s.recordRender(c.Request.Context(), req.Case.ProcedureType, len(html), start, nil)
		c.Data(http.StatusOK, "text/html; charset=utf-8", []byte(html))
		return
	}

	text := doc.Text()
	s.recordRender(c.Request.Context(), req.Case.ProcedureType, len(text), start, nil)
	c.Data(http.StatusOK, "text/plain; charset=utf-8", []byte(text))
}

// handleCaseRewrite rewrites the notes of a case and returns it with its rendered body.
// On failure the case comes back with its notes untouched.
func (s *Server) handleCaseRewrite(c *gin.Context) {
	var rec domain.CaseRecord
	if err := c.ShouldBindJSON(&rec); err != nil {
		s.badRequest(c, err)
		return
	}

	updated, err := s.rewriter.RewriteCase(c.Request.Context(), rec)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": domain.PublicMessage(err),
			"case":  updated,
		})
		return
	}

	body, err := letter.Render(updated)
	if err != nil {
		s.badRequest(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"case": updated,
		"body": body,
	})
}

func (s *Server) badRequest(c *gin.Context, err error) {
	code := domain.ErrorCode(err)
	if code == domain.ErrInternalServer {
		code = domain.ErrInvalidInput
	}

	message := err.Error()
	if errors.Is(err, domain.ErrUnknownProcedureKind) {
		message = "unknown procedure kind"
	}

	c.JSON(http.StatusBadRequest, gin.H{
		"error":          message,
		"code":           code,
		"correlation_id": middleware.GetCorrelationID(c),
	})
}

func (s *Server) recordRender(ctx context.Context, kind domain.ProcedureKind, outputLen int, start time.Time, err error) {
	event := audit.NewEvent(ctx, audit.OperationRender, start, err)
	event.ProcedureKind = string(kind)
	event.OutputLength = outputLen

	if recErr := s.recorder.Record(context.WithoutCancel(ctx), event); recErr != nil {
		s.logger.WithError(recErr).Warn("Failed to record audit event")
	}
}
