package templatefmt

import (
	"regexp"
	"strconv"
	"strings"
	"time"

	"reminders/internal/domain"
)

// DateLayout renders calendar days as dd/mm/yyyy.
const DateLayout = "02/01/2006"

// Placeholder names shared by both template syntaxes.
const (
	VarFirstName       = "nome"
	VarFullName        = "nome_completo"
	VarLastName        = "cognome"
	VarAppointmentDate = "data_appuntamento"
	VarAppointmentTime = "ora_appuntamento"
	VarPlate           = "targa"
	VarVehicleModel    = "modello"
	VarPhone           = "telefono"
	VarEmail           = "email"
	VarPassword        = "password"
	VarToday           = "data_oggi"
	VarTomorrow        = "data_domani"
	VarAddress         = "indirizzo"
	VarAge             = "anni"
	VarAgeAlias        = "eta"
)

var knownVars = map[string]struct{}{
	VarFirstName: {}, VarFullName: {}, VarLastName: {}, VarAppointmentDate: {},
	VarAppointmentTime: {}, VarPlate: {}, VarVehicleModel: {}, VarPhone: {},
	VarEmail: {}, VarPassword: {}, VarToday: {}, VarTomorrow: {}, VarAddress: {},
	VarAge: {}, VarAgeAlias: {},
}

var placeholderPattern = regexp.MustCompile(`\{\{\s*([A-Za-z_]+)\s*\}\}|\*([A-Za-z_]+)\*`)

// Vars is the substitution table for one message.
type Vars map[string]string

// BuildVars collects every known variable from candidate context.
// Params: context entities and compile time in the workshop location.
// Returns: table holding all fixed variable names; unavailable values are empty strings.
func BuildVars(data domain.ContextData, now time.Time) Vars {
	vars := make(Vars, len(knownVars))
	for name := range knownVars {
		vars[name] = ""
	}
	vars[VarToday] = now.Format(DateLayout)
	vars[VarTomorrow] = now.AddDate(0, 0, 1).Format(DateLayout)

	if client := data.Client; client != nil {
		first, last := domain.SplitName(client.Name)
		vars[VarFirstName] = first
		vars[VarLastName] = last
		vars[VarFullName] = strings.TrimSpace(client.Name)
		vars[VarPhone] = client.Phone
		vars[VarEmail] = client.Email
		vars[VarPassword] = client.Password
		vars[VarAddress] = client.Address
		if client.BirthDate != nil {
			age := strconv.Itoa(Age(*client.BirthDate, now))
			vars[VarAge] = age
			vars[VarAgeAlias] = age
		}
	}
	if quote := data.Quote; quote != nil {
		vars[VarPlate] = quote.Plate
		vars[VarVehicleModel] = quote.VehicleModel
	}
	if appointment := data.Appointment; appointment != nil {
		if !appointment.Date.IsZero() {
			vars[VarAppointmentDate] = appointment.Date.Format(DateLayout)
		}
		vars[VarAppointmentTime] = appointment.Time
		if vars[VarPlate] == "" {
			vars[VarPlate] = appointment.Plate
		}
		if vars[VarVehicleModel] == "" {
			vars[VarVehicleModel] = appointment.VehicleModel
		}
	}
	return vars
}

// Compile substitutes placeholders of both syntaxes in one pass.
// Params: template content and substitution table.
// Returns: final text; unknown {{...}} tokens become empty and unknown *...* spans stay as formatting.
func Compile(content string, vars Vars) string {
	return placeholderPattern.ReplaceAllStringFunc(content, func(token string) string {
		braced := strings.HasPrefix(token, "{{")
		name := strings.ToLower(strings.TrimSpace(strings.Trim(token, "{}*")))
		if _, ok := knownVars[name]; ok {
			return vars[name]
		}
		if braced {
			return ""
		}
		return token
	})
}

// Age returns completed years between birth and now.
// Params: birth date and reference time.
// Returns: year difference reduced by one when the birthday has not happened yet this year.
func Age(birth, now time.Time) int {
	years := now.Year() - birth.Year()
	if now.Month() < birth.Month() || (now.Month() == birth.Month() && now.Day() < birth.Day()) {
		years--
	}
	if years < 0 {
		return 0
	}
	return years
}

// SubjectLabel renders a short human label for the candidate subject.
// Params: candidate event.
// Returns: label such as "Preventivo 2025-014 (AB123CD)"; empty when the subject is missing.
func SubjectLabel(candidate domain.CandidateEvent) string {
	data := candidate.ContextData
	switch candidate.SubjectEntityKind {
	case domain.EntityQuote:
		if data.Quote == nil {
			return ""
		}
		number := data.Quote.Number
		if number == "" {
			number = data.Quote.ID
		}
		return withPlate("Preventivo "+number, data.Quote.Plate)
	case domain.EntityAppointment:
		if data.Appointment == nil {
			return ""
		}
		label := "Appuntamento"
		if !data.Appointment.Date.IsZero() {
			label += " " + data.Appointment.Date.Format(DateLayout)
		}
		if data.Appointment.Time != "" {
			label += " " + data.Appointment.Time
		}
		return withPlate(label, data.Appointment.Plate)
	case domain.EntityClient:
		if data.Client == nil {
			return ""
		}
		return "Cliente " + strings.TrimSpace(data.Client.Name)
	default:
		return ""
	}
}

func withPlate(label, plate string) string {
	if plate = strings.TrimSpace(plate); plate == "" {
		return label
	}
	return label + " (" + plate + ")"
}
