// Package message renders the outbound notification copy from placeholder maps.
package message

import (
	"regexp"
	"strings"

	"github.com/kursadbilgin/renewal-engine/internal/domain"
)

const missingValue = "N/A"

var placeholderPattern = regexp.MustCompile(`\{\{\s*([^{}]+?)\s*\}\}`)

// Content is a rendered message. Subject and HTML are only used by email.
type Content struct {
	Subject string
	Text    string
	HTML    string
}

const (
	reminderText    = "Hola {{titular}}, te recordamos que el recibo de tu póliza {{poliza}} ({{ramo}}) con {{aseguradora}} vence el {{desde}} y debe ser renovado. Contáctanos."
	reminderSubject = "Recordatorio: tu póliza {{poliza}} vence el {{desde}}"
	reminderHTML    = "<p>Hola <strong>{{titular}}</strong>, te recordamos que el recibo de tu póliza <strong>{{poliza}}</strong> con {{aseguradora}} vence el <strong>{{desde}}</strong>.</p><p>Contáctanos para gestionarlo.</p>"
)

// Render replaces every {{key}} with its placeholder value. Keys are matched
// case-insensitively and with spaces or underscores treated alike; unknown or
// empty keys render as N/A.
func Render(tmpl string, placeholders map[string]string) string {
	normalized := make(map[string]string, len(placeholders))
	for k, v := range placeholders {
		normalized[normalizeKey(k)] = v
	}

	return placeholderPattern.ReplaceAllStringFunc(tmpl, func(match string) string {
		key := placeholderPattern.FindStringSubmatch(match)[1]
		if v := strings.TrimSpace(normalized[normalizeKey(key)]); v != "" {
			return v
		}
		return missingValue
	})
}

func normalizeKey(key string) string {
	return strings.ReplaceAll(strings.ToLower(strings.TrimSpace(key)), " ", "_")
}

// Reminder renders the expiry reminder for WhatsApp and email.
func Reminder(placeholders map[string]string) Content {
	return Content{
		Subject: Render(reminderSubject, placeholders),
		Text:    Render(reminderText, placeholders),
		HTML:    Render(reminderHTML, placeholders),
	}
}

// ReceiptPlaceholders is the placeholder set used by the batch notification run.
func ReceiptPlaceholders(r domain.Receipt) map[string]string {
	return map[string]string{
		"titular":     orDefault(r.ClientName, "Cliente"),
		"tipo_recibo": orDefault(r.ReceiptType, "Sin tipo"),
		"ramo":        orDefault(r.BranchName, missingValue),
		"poliza":      orDefault(r.PolicyNumber, missingValue),
		"aseguradora": orDefault(r.InsurerName, missingValue),
		"desde":       orDefault(r.StartDate, missingValue),
		"hasta":       orDefault(r.EndDate, missingValue),
	}
}

// ScheduledPlaceholders extends ReceiptPlaceholders with receipt, amount and company fields.
func ScheduledPlaceholders(r domain.Receipt) map[string]string {
	p := ReceiptPlaceholders(r)
	p["recibo"] = orDefault(r.Number, missingValue)
	p["vencimiento"] = orDefault(r.StartDate, missingValue)
	p["empresa"] = orDefault(r.CompanyName, missingValue)
	p["monto"] = missingValue
	if !r.Amount.IsZero() {
		p["monto"] = r.Amount.StringFixed(2)
	}
	return p
}

func orDefault(v string, fallback string) string {
	if strings.TrimSpace(v) == "" {
		return fallback
	}
	return strings.TrimSpace(v)
}
