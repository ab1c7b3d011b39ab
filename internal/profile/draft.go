package profile

import (
	"strconv"
	"strings"

	"github.com/proflinker/api/internal/generation"
	"github.com/proflinker/api/internal/models"
)

// Draft keys, shared by every store
const (
	KeyFieldOfInterest    = "field_of_interest"
	KeyEducationLevel     = "education_level"
	KeyUserName           = "user_name"
	KeyResearchExperience = "research_experience"
	KeyAcademicGoals      = "academic_goals"
	KeyDesiredCount       = "desired_count"
	KeyCookieConsent      = "cookie_consent"
)

// Education levels offered by the client
const (
	LevelUndergraduate = "undergraduate"
	LevelMasters       = "masters"
	LevelPhD           = "phd"
	LevelPostdoc       = "postdoc"
)

// Draft is the session-scoped working copy of a user's preferences
type Draft struct {
	FieldOfInterest    string `json:"field_of_interest"`
	EducationLevel     string `json:"education_level"`
	UserName           string `json:"user_name"`
	ResearchExperience string `json:"research_experience"`
	AcademicGoals      string `json:"academic_goals"`
	DesiredCount       int    `json:"desired_count"`
	CookieConsent      bool   `json:"cookie_consent"`
}

// DefaultDraft is the value of a session that has stored nothing
func DefaultDraft() Draft {
	return Draft{DesiredCount: generation.DefaultCount}
}

// Ready reports whether the draft carries enough to generate
func (d Draft) Ready() bool {
	return strings.TrimSpace(d.FieldOfInterest) != ""
}

// Request builds a generation request from the draft
func (d Draft) Request(kind models.CandidateKind, university string) generation.Request {
	return generation.Request{
		Kind:            kind,
		FieldOfInterest: d.FieldOfInterest,
		EducationLevel:  d.EducationLevel,
		University:      university,
		Count:           d.DesiredCount,
	}
}

// Fields flattens the draft into string values keyed by the draft keys
func (d Draft) Fields() map[string]string {
	return map[string]string{
		KeyFieldOfInterest:    d.FieldOfInterest,
		KeyEducationLevel:     d.EducationLevel,
		KeyUserName:           d.UserName,
		KeyResearchExperience: d.ResearchExperience,
		KeyAcademicGoals:      d.AcademicGoals,
		KeyDesiredCount:       strconv.Itoa(d.DesiredCount),
		KeyCookieConsent:      strconv.FormatBool(d.CookieConsent),
	}
}

// DraftFromFields is the inverse of Fields. Missing or unparsable values take defaults.
func DraftFromFields(fields map[string]string) Draft {
	d := DefaultDraft()
	d.FieldOfInterest = fields[KeyFieldOfInterest]
	d.EducationLevel = fields[KeyEducationLevel]
	d.UserName = fields[KeyUserName]
	d.ResearchExperience = fields[KeyResearchExperience]
	d.AcademicGoals = fields[KeyAcademicGoals]
	if n, err := strconv.Atoi(fields[KeyDesiredCount]); err == nil && n > 0 {
		d.DesiredCount = n
	}
	if b, err := strconv.ParseBool(fields[KeyCookieConsent]); err == nil {
		d.CookieConsent = b
	}
	return d
}

// Patch is a partial draft update; nil fields are left unchanged
type Patch struct {
	FieldOfInterest    *string `json:"field_of_interest"`
	EducationLevel     *string `json:"education_level"`
	UserName           *string `json:"user_name"`
	ResearchExperience *string `json:"research_experience"`
	AcademicGoals      *string `json:"academic_goals"`
	DesiredCount       *int    `json:"desired_count"`
	CookieConsent      *bool   `json:"cookie_consent"`
}

// Apply returns d with the patch applied, and whether a generation input changed
func (p Patch) Apply(d Draft) (Draft, bool) {
	before := d
	if p.FieldOfInterest != nil {
		d.FieldOfInterest = strings.TrimSpace(*p.FieldOfInterest)
	}
	if p.EducationLevel != nil {
		d.EducationLevel = strings.TrimSpace(*p.EducationLevel)
	}
	if p.UserName != nil {
		d.UserName = strings.TrimSpace(*p.UserName)
	}
	if p.ResearchExperience != nil {
		d.ResearchExperience = *p.ResearchExperience
	}
	if p.AcademicGoals != nil {
		d.AcademicGoals = *p.AcademicGoals
	}
	if p.DesiredCount != nil {
		d.DesiredCount = clampCount(*p.DesiredCount)
	}
	if p.CookieConsent != nil {
		d.CookieConsent = *p.CookieConsent
	}

	changed := before.FieldOfInterest != d.FieldOfInterest ||
		before.EducationLevel != d.EducationLevel ||
		before.DesiredCount != d.DesiredCount
	return d, changed
}

// ToProfile maps the persisted subset of the draft
func (d Draft) ToProfile(p models.Profile) models.Profile {
	p.FullName = d.UserName
	p.FieldOfInterest = d.FieldOfInterest
	p.EducationLevel = d.EducationLevel
	p.ResearchExperience = d.ResearchExperience
	p.AcademicGoals = d.AcademicGoals
	return p
}

// DraftFromProfile seeds a draft from the remote profile
func DraftFromProfile(p models.Profile) Draft {
	d := DefaultDraft()
	d.UserName = p.FullName
	d.FieldOfInterest = p.FieldOfInterest
	d.EducationLevel = p.EducationLevel
	d.ResearchExperience = p.ResearchExperience
	d.AcademicGoals = p.AcademicGoals
	return d
}

func clampCount(n int) int {
	switch {
	case n <= 0:
		return generation.DefaultCount
	case n > generation.MaxCount:
		return generation.MaxCount
	default:
		return n
	}
}
