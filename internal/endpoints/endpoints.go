// Package endpoints names the backend REST paths the gateway calls.
//
// Paths are relative to the configured BACKEND_URL. Builders path-escape IDs.
package endpoints

import (
	"net/url"
	"sort"
)

const (
	AuthLogin   = "/auth/login"
	AuthLogout  = "/auth/logout"
	AuthProfile = "/auth/me"

	Students      = "/students"
	Appointments  = "/appointments"
	HealthRecords = "/health-records"
	Medications   = "/medications"
	Incidents     = "/incidents"
	Invoices      = "/billing/invoices"

	AuditLogs = "/audit/logs"
	Health    = "/health"
)

func item(collection, id string) string {
	return collection + "/" + url.PathEscape(id)
}

func StudentByID(id string) string {
	return item(Students, id)
}

func StudentDeactivate(id string) string {
	return StudentByID(id) + "/deactivate"
}

func StudentReactivate(id string) string {
	return StudentByID(id) + "/reactivate"
}

func AppointmentByID(id string) string {
	return item(Appointments, id)
}

func AppointmentCancel(id string) string {
	return AppointmentByID(id) + "/cancel"
}

func AppointmentComplete(id string) string {
	return AppointmentByID(id) + "/complete"
}

func AppointmentNoShow(id string) string {
	return AppointmentByID(id) + "/no-show"
}

func HealthRecordByID(id string) string {
	return item(HealthRecords, id)
}

func MedicationByID(id string) string {
	return item(Medications, id)
}

// MedicationAdministrations is the administration log of one medication order.
func MedicationAdministrations(id string) string {
	return MedicationByID(id) + "/administrations"
}

func IncidentByID(id string) string {
	return item(Incidents, id)
}

func IncidentFollowUps(id string) string {
	return IncidentByID(id) + "/follow-ups"
}

func InvoiceByID(id string) string {
	return item(Invoices, id)
}

func InvoicePayments(id string) string {
	return InvoiceByID(id) + "/payments"
}

// Endpoint is one row of the table printed by `whitecross endpoints`.
type Endpoint struct {
	Name    string   `json:"name" yaml:"name"`
	Path    string   `json:"path" yaml:"path"`
	Methods []string `json:"methods" yaml:"methods"`
}

// All returns every backend endpoint the gateway uses, sorted by name.
func All() []Endpoint {
	const id = "{id}"
	table := []Endpoint{
		{"auth.login", AuthLogin, []string{"POST"}},
		{"auth.logout", AuthLogout, []string{"POST"}},
		{"auth.profile", AuthProfile, []string{"GET"}},
		{"students", Students, []string{"GET", "POST"}},
		{"students.item", StudentByID(id), []string{"GET", "PUT", "DELETE"}},
		{"students.deactivate", StudentDeactivate(id), []string{"POST"}},
		{"students.reactivate", StudentReactivate(id), []string{"POST"}},
		{"appointments", Appointments, []string{"GET", "POST"}},
		{"appointments.item", AppointmentByID(id), []string{"GET", "PUT", "DELETE"}},
		{"appointments.cancel", AppointmentCancel(id), []string{"POST"}},
		{"appointments.complete", AppointmentComplete(id), []string{"POST"}},
		{"appointments.no_show", AppointmentNoShow(id), []string{"POST"}},
		{"health_records", HealthRecords, []string{"GET", "POST"}},
		{"health_records.item", HealthRecordByID(id), []string{"GET", "PUT", "DELETE"}},
		{"medications", Medications, []string{"GET", "POST"}},
		{"medications.item", MedicationByID(id), []string{"GET", "PUT", "DELETE"}},
		{"medications.administrations", MedicationAdministrations(id), []string{"GET", "POST"}},
		{"incidents", Incidents, []string{"GET", "POST"}},
		{"incidents.item", IncidentByID(id), []string{"GET", "PUT", "DELETE"}},
		{"incidents.follow_ups", IncidentFollowUps(id), []string{"GET", "POST"}},
		{"billing.invoices", Invoices, []string{"GET", "POST"}},
		{"billing.invoices.item", InvoiceByID(id), []string{"GET", "PUT", "DELETE"}},
		{"billing.invoices.payments", InvoicePayments(id), []string{"POST"}},
		{"audit.logs", AuditLogs, []string{"POST"}},
		{"health", Health, []string{"GET"}},
	}
	sort.Slice(table, func(i, j int) bool { return table[i].Name < table[j].Name })
	return table
}
