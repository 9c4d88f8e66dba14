package models

import "strings"

// CandidateProfile conditions question generation and scoring.
type CandidateProfile struct {
	TargetJob       string   `bson:"target_job" json:"target_job" validate:"required,max=200"`
	TargetCompany   string   `bson:"target_company,omitempty" json:"target_company,omitempty" validate:"max=200"`
	Background      string   `bson:"background,omitempty" json:"background,omitempty" validate:"max=4000"`
	Experience      string   `bson:"experience,omitempty" json:"experience,omitempty" validate:"max=4000"`
	Skills          []string `bson:"skills,omitempty" json:"skills,omitempty" validate:"max=50,dive,max=100"`
	Language        string   `bson:"language,omitempty" json:"language,omitempty" validate:"omitempty,oneof=en id"`
	RequestedRounds int      `bson:"requested_rounds,omitempty" json:"requested_rounds,omitempty" validate:"omitempty,min=3,max=15"`
}

// Merge overlays the non-empty fields of update onto p.
func (p CandidateProfile) Merge(update CandidateProfile) CandidateProfile {
	if v := strings.TrimSpace(update.TargetJob); v != "" {
		p.TargetJob = v
	}
	if v := strings.TrimSpace(update.TargetCompany); v != "" {
		p.TargetCompany = v
	}
	if v := strings.TrimSpace(update.Background); v != "" {
		p.Background = v
	}
	if v := strings.TrimSpace(update.Experience); v != "" {
		p.Experience = v
	}
	if len(update.Skills) > 0 {
		skills := make([]string, 0, len(update.Skills))
		for _, s := range update.Skills {
			if s = strings.TrimSpace(s); s != "" {
				skills = append(skills, s)
			}
		}
		p.Skills = skills
	}
	if v := strings.TrimSpace(update.Language); v != "" {
		p.Language = v
	}
	if update.RequestedRounds != 0 {
		p.RequestedRounds = update.RequestedRounds
	}
	return p
}

func (p CandidateProfile) Clone() CandidateProfile {
	p.Skills = append([]string(nil), p.Skills...)
	return p
}

func (p CandidateProfile) LanguageOrDefault() string {
	if p.Language == "" {
		return "en"
	}
	return p.Language
}
