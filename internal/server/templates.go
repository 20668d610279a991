package server

import (
	_ "embed"
	"html/template"
)

//go:embed templates/consent.html
var consentPageTemplateHTML string

//go:embed templates/error.html
var errorPageTemplateHTML string

//go:embed templates/success.html
var successPageTemplateHTML string

var consentPageTemplate = template.Must(template.New("consent").Parse(consentPageTemplateHTML))
var errorPageTemplate = template.Must(template.New("error").Parse(errorPageTemplateHTML))
var successPageTemplate = template.Must(template.New("success").Parse(successPageTemplateHTML))

// ConsentPageData represents the data for the consent prompt page
type ConsentPageData struct {
	Challenge  string
	ClientName string
	Subject    string
	Scopes     []string
}

// ErrorPageData represents the data for the generic error page. It carries
// display text only, never tokens or session payloads.
type ErrorPageData struct {
	Error       string
	Description string
	RequestID   string
}
