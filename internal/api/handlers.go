package api

import (
	"fmt"
	"net/http"
	"strings"
	"unicode/utf8"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/ahrav/go-rubric/internal/domain"
)

const (
	requestIDHeader = "X-Request-ID"
	internalError   = "Evaluation failed due to an internal error. Please check your request or contact support."
)

func (s *Server) health(c *gin.Context) {
	n := s.evaluator.Catalog().Len()
	status := StatusHealthy
	if n == 0 {
		status = StatusDegraded
	}
	c.JSON(http.StatusOK, HealthResponse{Status: status, Version: Version, SchemesLoaded: n})
}

func (s *Server) listSchemes(c *gin.Context) {
	infos := s.evaluator.Catalog().Infos()
	c.JSON(http.StatusOK, SchemesResponse{Schemes: infos, Total: len(infos), Status: "success"})
}

func (s *Server) getScheme(c *gin.Context) {
	def, ok := s.evaluator.Catalog().Get(c.Param("id"))
	if !ok {
		c.JSON(http.StatusNotFound, ErrorResponse{Detail: fmt.Sprintf("Scheme not found: %s", c.Param("id"))})
		return
	}
	c.JSON(http.StatusOK, def.Info())
}

func (s *Server) evaluate(c *gin.Context) {
	var body EvaluateRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusUnprocessableEntity, ErrorResponse{Detail: err.Error()})
		return
	}
	if unknown := s.evaluator.Catalog().Unknown(body.Schemes); len(unknown) > 0 {
		c.JSON(http.StatusBadRequest, ErrorResponse{Detail: "Unknown schemes: " + formatIDs(unknown)})
		return
	}

	requestID := c.GetHeader(requestIDHeader)
	if requestID == "" {
		requestID = uuid.NewString()
	}
	c.Header(requestIDHeader, requestID)

	req := domain.EvaluationRequest{
		RequestID:   requestID,
		Text:        body.Text,
		SchemeIDs:   body.Schemes,
		Model:       body.Model,
		ContextType: body.ContextType,
	}

	start := s.now()
	outcome, err := s.evaluator.Evaluate(c.Request.Context(), req)
	elapsed := s.now().Sub(start)
	if err != nil {
		s.logger.ErrorContext(c.Request.Context(), "evaluation failed",
			"request_id", requestID,
			"error", err)
		c.JSON(http.StatusInternalServerError, ErrorResponse{Detail: internalError})
		return
	}

	reasoning := body.includeReasoning()
	results := outcome.Results
	if !reasoning {
		results = make([]domain.EvaluationResult, len(outcome.Results))
		for i, r := range outcome.Results {
			results[i] = r.WithoutDetails()
		}
	}

	model := body.Model
	if model == "" {
		model = s.evaluator.DefaultModel()
	}

	c.JSON(http.StatusOK, EvaluateResponse{
		Results:      results,
		GatesPassed:  outcome.GatesPassed,
		OverallScore: outcome.OverallScore,
		OverallLabel: outcome.OverallLabel,
		Metadata: Metadata{
			ProcessingTimeMs: elapsed.Milliseconds(),
			ModelUsed:        model,
			IncludeReasoning: reasoning,
			RequestID:        requestID,
		},
		Provenance: Provenance{
			Timestamp:    start.UTC(),
			APIVersion:   Version,
			TextLength:   utf8.RuneCountInString(body.Text),
			SchemesCount: len(body.Schemes),
		},
	})
}

// formatIDs renders ids as a bracketed, quoted list: ['a', 'b'].
func formatIDs(ids []string) string {
	quoted := make([]string, len(ids))
	for i, id := range ids {
		quoted[i] = "'" + id + "'"
	}
	return "[" + strings.Join(quoted, ", ") + "]"
}
