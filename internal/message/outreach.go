package message

import (
	"fmt"
	"strings"

	"github.com/kursadbilgin/renewal-engine/internal/domain"
)

// OutreachMode selects the copy used by mass outreach sends.
type OutreachMode string

const (
	ModeExpiry    OutreachMode = "expiry"
	ModeNoRCV     OutreachMode = "no-rcv"
	ModeNoVehicle OutreachMode = "no-vehicle"
)

func (m OutreachMode) String() string { return string(m) }

// ParseOutreachMode defaults to ModeExpiry when raw is empty.
func ParseOutreachMode(raw string) (OutreachMode, error) {
	mode := OutreachMode(strings.ToLower(strings.TrimSpace(raw)))
	switch mode {
	case "":
		return ModeExpiry, nil
	case ModeExpiry, ModeNoRCV, ModeNoVehicle:
		return mode, nil
	}
	return "", fmt.Errorf("%w: unknown outreach mode %q", domain.ErrValidation, raw)
}

// Contact is one recipient of a mass outreach send.
type Contact struct {
	Name          string `json:"name"`
	Phone         string `json:"phone"`
	Email         string `json:"email"`
	PolicyID      string `json:"policyId"`
	PolicyEndDate string `json:"policyEndDate"`
	CompanyName   string `json:"companyName"`
}

// Outreach renders the copy for mode. quoteURL is the renewal quote page the
// policy id is appended to.
func Outreach(mode OutreachMode, c Contact, quoteURL string) Content {
	name := orDefault(c.Name, "Cliente")
	broker := orDefault(c.CompanyName, "Tu Corredor")
	link := quoteLink(quoteURL, c.PolicyID)

	switch mode {
	case ModeNoRCV:
		text := fmt.Sprintf("Hola %s,\n\nNotamos que ya cuentas con un vehículo asegurado, pero *aún no tienes activa tu póliza RCV*, "+
			"que es la que te protege legalmente ante terceros y evita sanciones.\n\n"+
			"Cotización personalizada, sin papeleo y 100%% en línea, con el apoyo de tu corredor de confianza.\n\n"+
			"Solo haz clic aquí y obtén tu RCV hoy:\n%s\n\n"+
			"Este mensaje ha sido enviado por %s, quien ya gestiona tu póliza actual.\n\nSaludos,\n%s\nCorredor autorizado",
			name, link, broker, broker)
		return Content{
			Subject: fmt.Sprintf("%s, ya tienes carro... ahora solo falta tu RCV", name),
			Text:    text,
			HTML: fmt.Sprintf("<p>Hola %s,</p><p>Notamos que ya cuentas con un vehículo asegurado, pero aún no tienes activa tu póliza RCV.</p>"+
				"<p>Solo haz clic aquí y obtén tu RCV hoy:</p><p><a href=\"%s\">%s</a></p><p>Saludos,<br>%s</p>",
				name, link, link, broker),
		}
	case ModeNoVehicle:
		text := fmt.Sprintf("Hola %s,\n\nSabemos que aún no tienes registrado un vehículo con nosotros, pero puede que tengas uno "+
			"o conozcas a alguien cercano que sí lo tenga.\n\n"+
			"Te damos acceso a una *cotización rápida y sin compromiso* para obtener el RCV obligatorio.\n\n"+
			"Cotiza aquí en segundos:\n%s\n\n"+
			"Este mensaje ha sido enviado por %s.\n\nSaludos,\n%s",
			name, link, broker, broker)
		return Content{
			Subject: fmt.Sprintf("%s, ¿tienes un carro o conoces a alguien que lo necesite?", name),
			Text:    text,
			HTML: fmt.Sprintf("<p>Hola %s,</p><p>Te damos acceso a una <strong>cotización rápida y sin compromiso</strong> para obtener el RCV obligatorio.</p>"+
				"<p>Cotiza aquí en segundos:</p><p><a href=\"%s\">%s</a></p><p>Saludos,<br>%s</p>",
				name, link, link, broker),
		}
	}

	due := orDefault(c.PolicyEndDate, "pronto")
	return Content{
		Subject: fmt.Sprintf("Recordatorio Importante: Tu Póliza Vence Pronto (%s)", due),
		Text:    fmt.Sprintf("Hola %s, te recordamos que tu póliza vence el %s y debe ser renovada. Contáctanos.", name, due),
		HTML: fmt.Sprintf("<p>Hola <strong>%s</strong>, te recordamos que tu póliza vence el <strong>%s</strong> y debe ser renovada.</p>"+
			"<p>Contáctanos para gestionarlo.</p>", name, due),
	}
}

func quoteLink(base string, policyID string) string {
	if strings.TrimSpace(policyID) == "" {
		policyID = "0"
	}
	return strings.TrimSpace(base) + strings.TrimSpace(policyID)
}
