// internal/service/template_service.go
package service

import (
	"regexp"
	"strings"

	"github.com/unclebandit/campaign-dispatcher/internal/model"
)

var placeholderRe = regexp.MustCompile(`\{([A-Za-z0-9_]+)\}`)

// RenderTemplate substitutes every {key} found in data. Placeholders without a
// value are left as written. Substituted values are not scanned again.
func RenderTemplate(template string, data map[string]string) string {
	return placeholderRe.ReplaceAllStringFunc(template, func(m string) string {
		if v, ok := data[m[1:len(m)-1]]; ok {
			return v
		}
		return m
	})
}

// RecipientData builds the substitution map for one recipient. Free-form
// attributes come first so the name and organization aliases always win.
func RecipientData(r model.Recipient) map[string]string {
	data := make(map[string]string, len(r.Attributes)+6)
	for k, v := range r.Attributes {
		data[k] = v
	}

	name := strings.TrimSpace(r.Name)
	if name == "" {
		name = "User"
	}
	org := strings.TrimSpace(r.Organization)
	if org == "" {
		org = "Business"
	}
	for _, k := range []string{"name", "Name", "User"} {
		data[k] = name
	}
	for _, k := range []string{"businessName", "Business", "organization"} {
		data[k] = org
	}
	return data
}

// RenderForRecipient renders body with the recipient's placeholders.
func RenderForRecipient(body string, r model.Recipient) string {
	return RenderTemplate(body, RecipientData(r))
}
