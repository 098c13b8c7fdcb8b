package generator

import (
	"encoding/json"
	"fmt"
	"slices"
	"strings"
)

// PRD is the product requirements document drafted from a brief before any
// interface is built.
type PRD struct {
	Title                string   `json:"title"`
	Tagline              string   `json:"tagline,omitempty"`
	Overview             string   `json:"overview,omitempty"`
	Features             []string `json:"features,omitempty"`
	TargetAudience       string   `json:"targetAudience,omitempty"`
	TechnicalConstraints string   `json:"technicalConstraints,omitempty"`
	AppType              string   `json:"appType,omitempty"`
}

// App types a PRD may name. Anything else is stored as AppOther.
const (
	AppLandingPage = "landing_page"
	AppDashboard   = "dashboard"
	AppMobile      = "mobile_app"
	AppForm        = "form"
	AppPortfolio   = "portfolio"
	AppOther       = "other"
)

var appTypes = []string{AppLandingPage, AppDashboard, AppMobile, AppForm, AppPortfolio, AppOther}

type Palette struct {
	Primary    string `json:"primary"`
	Secondary  string `json:"secondary"`
	Background string `json:"background"`
	Surface    string `json:"surface"`
	Text       string `json:"text"`
	Accent     string `json:"accent"`
}

type Typography struct {
	HeadingFont string `json:"headingFont"`
	BodyFont    string `json:"bodyFont"`
}

// DesignSystem is the visual direction derived from a PRD.
type DesignSystem struct {
	Palette      Palette    `json:"palette"`
	Typography   Typography `json:"typography"`
	BorderRadius string     `json:"borderRadius,omitempty"`
	SpacingUnit  string     `json:"spacingUnit,omitempty"`
}

// Plan is the output of the planning stages. Every tree pass of a session
// is built from it.
type Plan struct {
	PRD    PRD          `json:"prd"`
	Design DesignSystem `json:"design_system"`
}

// Clone returns a copy of p sharing no storage with it.
func (p *Plan) Clone() *Plan {
	if p == nil {
		return nil
	}
	c := *p
	c.PRD.Features = slices.Clone(p.PRD.Features)
	return &c
}

func (p PRD) normalize(brief Brief) PRD {
	if strings.TrimSpace(p.Title) == "" {
		p.Title = brief.Prompt
	}
	if !slices.Contains(appTypes, p.AppType) {
		p.AppType = AppOther
	}
	return p
}

// decodePlanJSON extracts the JSON object from a model reply, which may be
// wrapped in a code fence or surrounded by prose.
func decodePlanJSON(text string, v any) error {
	start := strings.IndexByte(text, '{')
	end := strings.LastIndexByte(text, '}')
	if start < 0 || end < start {
		return fmt.Errorf("%w: no JSON object in reply", ErrBadPlan)
	}
	if err := json.Unmarshal([]byte(text[start:end+1]), v); err != nil {
		return fmt.Errorf("%w: %v", ErrBadPlan, err)
	}
	return nil
}
