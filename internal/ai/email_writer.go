package ai

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/proflinker/api/internal/models"
)

// Email tones accepted by the writer
const (
	ToneFormal       = "formal"
	ToneFriendly     = "friendly"
	ToneEnthusiastic = "enthusiastic"
)

// ErrMissingProfessor is returned when a draft has no recipient name
var ErrMissingProfessor = errors.New("professor name is required")

// Applicant is what the writer knows about the sender
type Applicant struct {
	Name               string `json:"name"`
	Email              string `json:"email,omitempty"`
	FieldOfInterest    string `json:"fieldOfInterest,omitempty"`
	EducationLevel     string `json:"educationLevel,omitempty"`
	ResearchExperience string `json:"researchExperience,omitempty"`
	AcademicGoals      string `json:"academicGoals,omitempty"`
}

// EmailRequest is the input of one outreach email
type EmailRequest struct {
	Professor models.Professor `json:"professor"`
	Template  string           `json:"template"`
	Tone      string           `json:"tone"`
	UserData  Applicant        `json:"userData"`
}

// EmailWriter drafts outreach emails with a language model.
type EmailWriter struct {
	completer Completer
}

func NewEmailWriter(completer Completer) *EmailWriter {
	return &EmailWriter{completer: completer}
}

// Write returns the plain text of a generated email.
func (w *EmailWriter) Write(ctx context.Context, req EmailRequest) (string, error) {
	if strings.TrimSpace(req.Professor.Name) == "" {
		return "", ErrMissingProfessor
	}

	tone := strings.ToLower(strings.TrimSpace(req.Tone))
	switch tone {
	case ToneFormal, ToneFriendly, ToneEnthusiastic:
	default:
		tone = ToneFormal
	}

	system := fmt.Sprintf(`You write concise outreach emails from prospective graduate students to professors.
Use a %s tone. Mention one or two of the professor's research areas specifically.
Keep it under 250 words. Return only the email body, starting with a subject line "Subject: ...".`, tone)

	text, err := w.completer.Complete(ctx, system, emailPrompt(req))
	if err != nil {
		return "", fmt.Errorf("generate email: %w", err)
	}
	return strings.TrimSpace(StripCodeFences(text)), nil
}

func emailPrompt(req EmailRequest) string {
	p := req.Professor
	u := req.UserData

	var b strings.Builder
	fmt.Fprintf(&b, "Professor: %s", p.Name)
	if p.Title != "" {
		fmt.Fprintf(&b, ", %s", p.Title)
	}
	if p.University != "" {
		fmt.Fprintf(&b, " at %s", p.University)
	}
	if p.Department != "" {
		fmt.Fprintf(&b, " (%s)", p.Department)
	}
	if len(p.ResearchAreas) > 0 {
		fmt.Fprintf(&b, "\nResearch areas: %s", strings.Join(p.ResearchAreas, ", "))
	}
	if len(p.RecentPublications) > 0 {
		fmt.Fprintf(&b, "\nRecent publications: %s", strings.Join(p.RecentPublications, "; "))
	}

	fmt.Fprintf(&b, "\n\nStudent: %s", u.Name)
	if u.EducationLevel != "" {
		fmt.Fprintf(&b, "\nEducation level: %s", u.EducationLevel)
	}
	if u.FieldOfInterest != "" {
		fmt.Fprintf(&b, "\nField of interest: %s", u.FieldOfInterest)
	}
	if u.ResearchExperience != "" {
		fmt.Fprintf(&b, "\nResearch experience: %s", u.ResearchExperience)
	}
	if u.AcademicGoals != "" {
		fmt.Fprintf(&b, "\nAcademic goals: %s", u.AcademicGoals)
	}

	if t := strings.TrimSpace(req.Template); t != "" {
		fmt.Fprintf(&b, "\n\nFollow this template, filling in the details:\n%s", t)
	}
	return b.String()
}
