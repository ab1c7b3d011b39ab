package handlers

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/proflinker/api/internal/ai"
	"github.com/proflinker/api/internal/eventbus"
	"github.com/proflinker/api/internal/generation"
	"github.com/proflinker/api/internal/mailer"
	"github.com/proflinker/api/internal/metrics"
	"github.com/proflinker/api/internal/middleware"
	"github.com/proflinker/api/internal/models"
	"github.com/proflinker/api/internal/verification"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.uber.org/zap"
)

// FunctionDeps are the collaborators of the function surface
type FunctionDeps struct {
	Registry *generation.Registry
	// NewControllers builds a throwaway controller pair for anonymous callers
	NewControllers func(userID uuid.UUID) *generation.UserControllers
	Writer         *ai.EmailWriter
	Mail           mailer.Sender
	Codes          *verification.CodeService
	Events         eventbus.EventStore
	Metrics        *metrics.Metrics
}

// FunctionsHandler serves the camelCase remote functions called by the web client
type FunctionsHandler struct {
	deps   FunctionDeps
	logger *zap.Logger
}

// NewFunctionsHandler creates a new functions handler
func NewFunctionsHandler(deps FunctionDeps, logger *zap.Logger) *FunctionsHandler {
	return &FunctionsHandler{deps: deps, logger: logger}
}

// GenerateEmailResponse is the body of generate-email
type GenerateEmailResponse struct {
	GeneratedEmail string `json:"generatedEmail"`
}

// SendEmailFunctionRequest is the body of send-email. From is accepted for
// compatibility but replies always go to the caller's account address.
type SendEmailFunctionRequest struct {
	From    string   `json:"from"`
	To      []string `json:"to" binding:"required,min=1"`
	Subject string   `json:"subject" binding:"required"`
	HTML    string   `json:"html" binding:"required"`
}

// VerificationRequest is the body of send-verification and verify-code
type VerificationRequest struct {
	Email string `json:"email" binding:"required"`
	Code  string `json:"code"`
}

// GenerateUniversities runs a university generation
// @Summary Generate universities
// @Tags functions
// @Accept json
// @Produce json
// @Param body body generation.FunctionRequest true "inputs"
// @Success 200 {array} models.University
// @Failure 422 {object} generation.FunctionError
// @Router /functions/v1/generate-universities [post]
func (h *FunctionsHandler) GenerateUniversities(c *gin.Context) {
	req, uc, ok := h.generationRequest(c, models.KindUniversities)
	if !ok {
		return
	}
	runFunction(c, h, uc.Universities, req)
}

// GenerateProfessors runs a professor generation
// @Summary Generate professors
// @Tags functions
// @Accept json
// @Produce json
// @Param body body generation.FunctionRequest true "inputs"
// @Success 200 {array} models.Professor
// @Router /functions/v1/generate-professors [post]
func (h *FunctionsHandler) GenerateProfessors(c *gin.Context) {
	req, uc, ok := h.generationRequest(c, models.KindProfessors)
	if !ok {
		return
	}
	runFunction(c, h, uc.Professors, req)
}

// generationRequest binds the body and picks the caller's controllers. A
// signed-in caller shares the controllers of the application API, so a new
// call supersedes the previous one.
func (h *FunctionsHandler) generationRequest(c *gin.Context, kind models.CandidateKind) (generation.Request, *generation.UserControllers, bool) {
	var body generation.FunctionRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		respondFunctionError(c, http.StatusBadRequest, "Invalid request body", err.Error())
		return generation.Request{}, nil, false
	}

	if userID, ok := middleware.GetUserID(c); ok && h.deps.Registry != nil {
		return body.ToRequest(kind), h.deps.Registry.For(userID), true
	}
	return body.ToRequest(kind), h.deps.NewControllers(uuid.Nil), true
}

func runFunction[T any](c *gin.Context, h *FunctionsHandler, ctrl *generation.Controller[T], req generation.Request) {
	ctx, span := tracer.Start(c.Request.Context(), "functions.generate-"+string(req.Kind))
	defer span.End()
	span.SetAttributes(attribute.String("generation.kind", string(req.Kind)))

	candidates, err := ctrl.Run(ctx, req)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, generation.Kind(err))
		status, _ := generationStatus(err)
		respondFunctionError(c, status, generation.UserMessage(err, string(req.Kind)), generation.Kind(err))
		return
	}
	c.JSON(http.StatusOK, gin.H{string(req.Kind): emptyIfNil(candidates)})
}

// GenerateEmail drafts an outreach email
// @Summary Generate an outreach email
// @Tags functions
// @Accept json
// @Produce json
// @Param body body ai.EmailRequest true "professor, template, tone and applicant"
// @Success 200 {object} GenerateEmailResponse
// @Router /functions/v1/generate-email [post]
func (h *FunctionsHandler) GenerateEmail(c *gin.Context) {
	var req ai.EmailRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondFunctionError(c, http.StatusBadRequest, "Invalid request body", err.Error())
		return
	}

	text, err := h.deps.Writer.Write(c.Request.Context(), req)
	h.observe("generate", err)
	if err != nil {
		if errors.Is(err, ai.ErrMissingProfessor) {
			respondFunctionError(c, http.StatusBadRequest, err.Error(), "")
			return
		}
		h.logger.Error("failed to generate email", zap.Error(err))
		respondFunctionError(c, http.StatusBadGateway, "Failed to generate email", "")
		return
	}
	c.JSON(http.StatusOK, GenerateEmailResponse{GeneratedEmail: text})
}

// SendEmail sends an email through the configured SMTP relay on behalf of the
// signed-in caller
// @Summary Send an email
// @Tags functions
// @Security BearerAuth
// @Accept json
// @Produce json
// @Param body body SendEmailFunctionRequest true "message"
// @Router /functions/v1/send-email [post]
func (h *FunctionsHandler) SendEmail(c *gin.Context) {
	id, ok := middleware.GetIdentity(c)
	if !ok {
		respondFunctionError(c, http.StatusUnauthorized, "Sign in to send email", "")
		return
	}

	var req SendEmailFunctionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondFunctionError(c, http.StatusBadRequest, "Invalid request body", err.Error())
		return
	}

	to := make([]string, 0, len(req.To))
	for _, addr := range req.To {
		if addr = strings.TrimSpace(addr); addr != "" {
			to = append(to, addr)
		}
	}

	err := h.deps.Mail.Send(c.Request.Context(), mailer.Message{
		From:    id.Email,
		To:      to,
		Subject: req.Subject,
		HTML:    req.HTML,
	})
	h.observe("send", err)
	if err != nil {
		if errors.Is(err, mailer.ErrInvalidMessage) {
			respondFunctionError(c, http.StatusBadRequest, "Invalid email", err.Error())
			return
		}
		respondFunctionError(c, http.StatusBadGateway, "Failed to send email", "")
		return
	}

	if h.deps.Events != nil {
		if err := h.deps.Events.Append(eventbus.SubjectEmailSent, map[string]any{"user_id": id.UserID, "to": to}); err != nil {
			h.logger.Warn("failed to publish email event", zap.Error(err))
		}
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}

// SendVerification issues a verification code by email
// @Summary Send a verification code
// @Tags functions
// @Accept json
// @Produce json
// @Param body body VerificationRequest true "email"
// @Router /functions/v1/send-verification [post]
func (h *FunctionsHandler) SendVerification(c *gin.Context) {
	var req VerificationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondFunctionError(c, http.StatusBadRequest, "Invalid request body", err.Error())
		return
	}

	err := h.deps.Codes.Send(c.Request.Context(), req.Email)
	h.observe("verification", err)
	if err != nil {
		if errors.Is(err, verification.ErrInvalidEmail) {
			respondFunctionError(c, http.StatusBadRequest, err.Error(), "")
			return
		}
		h.logger.Error("failed to send verification code", zap.Error(err))
		respondFunctionError(c, http.StatusInternalServerError, "Failed to send verification code", "")
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}

// VerifyCode consumes a verification code
// @Summary Verify a code
// @Tags functions
// @Accept json
// @Produce json
// @Param body body VerificationRequest true "email and code"
// @Router /functions/v1/verify-code [post]
func (h *FunctionsHandler) VerifyCode(c *gin.Context) {
	var req VerificationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondFunctionError(c, http.StatusBadRequest, "Invalid request body", err.Error())
		return
	}

	err := h.deps.Codes.Verify(c.Request.Context(), req.Email, req.Code)
	switch {
	case err == nil:
		c.JSON(http.StatusOK, gin.H{"success": true, "verified": true})
	case errors.Is(err, verification.ErrInvalidEmail), errors.Is(err, verification.ErrInvalidCode):
		respondFunctionError(c, http.StatusBadRequest, err.Error(), "")
	default:
		h.logger.Error("failed to verify code", zap.Error(err))
		respondFunctionError(c, http.StatusInternalServerError, "Failed to verify code", "")
	}
}

func (h *FunctionsHandler) observe(op string, err error) {
	if h.deps.Metrics != nil {
		h.deps.Metrics.ObserveEmail(op, err)
	}
}
