package handlers

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/proflinker/api/internal/ai"
	"github.com/proflinker/api/internal/eventbus"
	"github.com/proflinker/api/internal/mailer"
	"github.com/proflinker/api/internal/metrics"
	"github.com/proflinker/api/internal/middleware"
	"github.com/proflinker/api/internal/models"
	"github.com/proflinker/api/internal/profile"
	"go.uber.org/zap"
)

// EmailHandler drafts and sends outreach email for signed-in users
type EmailHandler struct {
	writer   *ai.EmailWriter
	mail     mailer.Sender
	profiles *profile.Service
	events   eventbus.EventStore
	metrics  *metrics.Metrics
	logger   *zap.Logger
}

// NewEmailHandler creates a new email handler
func NewEmailHandler(writer *ai.EmailWriter, mail mailer.Sender, profiles *profile.Service, events eventbus.EventStore, m *metrics.Metrics, logger *zap.Logger) *EmailHandler {
	return &EmailHandler{writer: writer, mail: mail, profiles: profiles, events: events, metrics: m, logger: logger}
}

// DraftEmailRequest asks for an outreach email to one professor
type DraftEmailRequest struct {
	Professor models.Professor `json:"professor"`
	Template  string           `json:"template"`
	Tone      string           `json:"tone"`
}

// DraftEmailResponse carries the generated email and its client-side actions
type DraftEmailResponse struct {
	Subject   string `json:"subject"`
	Body      string `json:"body"`
	Text      string `json:"text"`
	MailtoURL string `json:"mailto_url"`
}

// SendEmailRequest sends an edited email from the signed-in user
type SendEmailRequest struct {
	To      string `json:"to" binding:"required,email"`
	Subject string `json:"subject" binding:"required"`
	Body    string `json:"body" binding:"required"`
}

// Draft generates an outreach email from the session draft
// @Summary Draft an outreach email
// @Tags emails
// @Security BearerAuth
// @Accept json
// @Produce json
// @Param body body DraftEmailRequest true "professor and tone"
// @Success 200 {object} DraftEmailResponse
// @Router /api/v1/emails/draft [post]
func (h *EmailHandler) Draft(c *gin.Context) {
	id, ok := middleware.GetIdentity(c)
	if !ok {
		middleware.Unauthorized(c, "unauthorized")
		return
	}

	var req DraftEmailRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		middleware.BadRequest(c, err.Error())
		return
	}

	d, err := h.profiles.Draft(c.Request.Context(), id.UserID)
	if err != nil {
		h.logger.Warn("failed to load draft for email", zap.Error(err))
	}

	text, err := h.writer.Write(c.Request.Context(), ai.EmailRequest{
		Professor: req.Professor,
		Template:  req.Template,
		Tone:      req.Tone,
		UserData: ai.Applicant{
			Name:               d.UserName,
			Email:              id.Email,
			FieldOfInterest:    d.FieldOfInterest,
			EducationLevel:     d.EducationLevel,
			ResearchExperience: d.ResearchExperience,
			AcademicGoals:      d.AcademicGoals,
		},
	})
	h.observe("generate", err)
	if err != nil {
		if errors.Is(err, ai.ErrMissingProfessor) {
			middleware.BadRequest(c, err.Error())
			return
		}
		h.logger.Error("failed to generate email", zap.Error(err))
		middleware.RespondError(c, http.StatusBadGateway, middleware.ErrCodeUpstream, "Failed to generate email. Please try again.")
		return
	}

	subject, body := mailer.SplitSubject(text)
	c.JSON(http.StatusOK, DraftEmailResponse{
		Subject:   subject,
		Body:      body,
		Text:      text,
		MailtoURL: mailer.MailtoURL(req.Professor.Email, subject, body),
	})
}

// Send delivers an email on behalf of the signed-in user. Replies go to the
// user's address.
// @Summary Send an outreach email
// @Tags emails
// @Security BearerAuth
// @Accept json
// @Param body body SendEmailRequest true "message"
// @Success 202
// @Router /api/v1/emails/send [post]
func (h *EmailHandler) Send(c *gin.Context) {
	id, ok := middleware.GetIdentity(c)
	if !ok {
		middleware.Unauthorized(c, "unauthorized")
		return
	}

	var req SendEmailRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		middleware.BadRequest(c, err.Error())
		return
	}

	msg := mailer.Message{
		From:    id.Email,
		To:      []string{strings.TrimSpace(req.To)},
		Subject: strings.TrimSpace(req.Subject),
		Text:    req.Body,
		HTML:    mailer.TextToHTML(req.Body),
	}
	err := h.mail.Send(c.Request.Context(), msg)
	h.observe("send", err)
	if err != nil {
		if errors.Is(err, mailer.ErrInvalidMessage) {
			middleware.BadRequest(c, err.Error())
			return
		}
		middleware.RespondError(c, http.StatusBadGateway, middleware.ErrCodeMailUnavailable, "Failed to send email. Please try again.")
		return
	}

	h.appendSent(id.UserID.String(), msg.To)
	c.JSON(http.StatusAccepted, gin.H{"success": true})
}

func (h *EmailHandler) observe(op string, err error) {
	if h.metrics != nil {
		h.metrics.ObserveEmail(op, err)
	}
}

func (h *EmailHandler) appendSent(userID string, to []string) {
	if h.events == nil {
		return
	}
	if err := h.events.Append(eventbus.SubjectEmailSent, map[string]any{"user_id": userID, "to": to}); err != nil {
		h.logger.Warn("failed to publish email event", zap.Error(err))
	}
}
