package handlers

import (
	"net/http"

	"github.com/whitecross/gateway/internal/domain/appointments"
	"github.com/whitecross/gateway/internal/domain/billing"
	"github.com/whitecross/gateway/internal/domain/healthrecords"
	"github.com/whitecross/gateway/internal/domain/incidents"
	"github.com/whitecross/gateway/internal/domain/medications"
	"github.com/whitecross/gateway/internal/domain/resource"
	"github.com/whitecross/gateway/internal/domain/students"
)

type StudentsHandler struct {
	*Collection[students.Student, students.Input]
	Students *students.Service
}

func NewStudentsHandler(svc *students.Service, env string, maxBody int64) *StudentsHandler {
	return &StudentsHandler{Collection: NewCollection[students.Student, students.Input](svc, nil, env, maxBody), Students: svc}
}

func (h *StudentsHandler) Deactivate(w http.ResponseWriter, r *http.Request) {
	student, err := h.Students.Deactivate(r.Context(), pathParam(r, "id"))
	if err != nil {
		writeError(w, r, err, h.Env)
		return
	}
	writeData(w, http.StatusOK, "student", student)
}

func (h *StudentsHandler) Reactivate(w http.ResponseWriter, r *http.Request) {
	student, err := h.Students.Reactivate(r.Context(), pathParam(r, "id"))
	if err != nil {
		writeError(w, r, err, h.Env)
		return
	}
	writeData(w, http.StatusOK, "student", student)
}

func (h *StudentsHandler) Summary(w http.ResponseWriter, r *http.Request) {
	summary, err := h.Students.Summary(r.Context(), pathParam(r, "id"))
	if err != nil {
		writeError(w, r, err, h.Env)
		return
	}
	writeData(w, http.StatusOK, "summary", summary)
}

type AppointmentsHandler struct {
	*Collection[appointments.Appointment, appointments.Input]
	Appointments *appointments.Service
}

func NewAppointmentsHandler(svc *appointments.Service, env string, maxBody int64) *AppointmentsHandler {
	return &AppointmentsHandler{
		Collection:   NewCollection[appointments.Appointment, appointments.Input](svc, appointments.Statuses, env, maxBody),
		Appointments: svc,
	}
}

func (h *AppointmentsHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r)
	if err != nil {
		writeError(w, r, err, h.Env)
		return
	}
	var in appointments.CancelInput
	if err := decodeBody(r, h.MaxBody, &in, false); err != nil {
		writeError(w, r, err, h.Env)
		return
	}
	h.respond(w, r)(h.Appointments.Cancel(r.Context(), id, in.Reason))
}

func (h *AppointmentsHandler) Complete(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r)
	if err != nil {
		writeError(w, r, err, h.Env)
		return
	}
	var in appointments.CompleteInput
	if err := decodeBody(r, h.MaxBody, &in, true); err != nil {
		writeError(w, r, err, h.Env)
		return
	}
	h.respond(w, r)(h.Appointments.Complete(r.Context(), id, in.Notes))
}

func (h *AppointmentsHandler) NoShow(w http.ResponseWriter, r *http.Request) {
	h.respond(w, r)(h.Appointments.MarkNoShow(r.Context(), pathParam(r, "id")))
}

func (h *AppointmentsHandler) respond(w http.ResponseWriter, r *http.Request) func(*appointments.Appointment, error) {
	return func(appt *appointments.Appointment, err error) {
		if err != nil {
			writeError(w, r, err, h.Env)
			return
		}
		writeData(w, http.StatusOK, "appointment", appt)
	}
}

type HealthRecordsHandler struct {
	*Collection[healthrecords.HealthRecord, healthrecords.Input]
	Records *healthrecords.Service
}

func NewHealthRecordsHandler(svc *healthrecords.Service, env string, maxBody int64) *HealthRecordsHandler {
	return &HealthRecordsHandler{
		Collection: NewCollection[healthrecords.HealthRecord, healthrecords.Input](svc, nil, env, maxBody),
		Records:    svc,
	}
}

// List scopes the listing to one student when studentId is given.
func (h *HealthRecordsHandler) List(w http.ResponseWriter, r *http.Request) {
	studentID := r.URL.Query().Get("studentId")
	if studentID == "" {
		h.Collection.List(w, r)
		return
	}
	query, err := resource.ParseListQuery(r.URL.Query())
	if err != nil {
		writeError(w, r, err, h.Env)
		return
	}
	page, err := h.Records.ListByStudent(r.Context(), studentID, query)
	if err != nil {
		writeError(w, r, err, h.Env)
		return
	}
	writeList(w, healthrecords.Definition.ListKey, page)
}

type MedicationsHandler struct {
	*Collection[medications.Medication, medications.Input]
	Medications *medications.Service
}

func NewMedicationsHandler(svc *medications.Service, env string, maxBody int64) *MedicationsHandler {
	return &MedicationsHandler{
		Collection:  NewCollection[medications.Medication, medications.Input](svc, nil, env, maxBody),
		Medications: svc,
	}
}

func (h *MedicationsHandler) RecordAdministration(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r)
	if err != nil {
		writeError(w, r, err, h.Env)
		return
	}
	var in medications.AdministrationInput
	if err := decodeBody(r, h.MaxBody, &in, false); err != nil {
		writeError(w, r, err, h.Env)
		return
	}
	admin, err := h.Medications.RecordAdministration(r.Context(), id, in)
	if err != nil {
		writeError(w, r, err, h.Env)
		return
	}
	writeData(w, http.StatusCreated, "administration", admin)
}

func (h *MedicationsHandler) ListAdministrations(w http.ResponseWriter, r *http.Request) {
	query, err := resource.ParseListQuery(r.URL.Query())
	if err != nil {
		writeError(w, r, err, h.Env)
		return
	}
	page, err := h.Medications.ListAdministrations(r.Context(), pathParam(r, "id"), query)
	if err != nil {
		writeError(w, r, err, h.Env)
		return
	}
	writeList(w, "administrations", page)
}

type IncidentsHandler struct {
	*Collection[incidents.Incident, incidents.Input]
	Incidents *incidents.Service
}

func NewIncidentsHandler(svc *incidents.Service, env string, maxBody int64) *IncidentsHandler {
	return &IncidentsHandler{
		Collection: NewCollection[incidents.Incident, incidents.Input](svc, nil, env, maxBody),
		Incidents:  svc,
	}
}

func (h *IncidentsHandler) AddFollowUp(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r)
	if err != nil {
		writeError(w, r, err, h.Env)
		return
	}
	var in incidents.FollowUpInput
	if err := decodeBody(r, h.MaxBody, &in, false); err != nil {
		writeError(w, r, err, h.Env)
		return
	}
	followUp, err := h.Incidents.AddFollowUp(r.Context(), id, in)
	if err != nil {
		writeError(w, r, err, h.Env)
		return
	}
	writeData(w, http.StatusCreated, "followUp", followUp)
}

func (h *IncidentsHandler) ListFollowUps(w http.ResponseWriter, r *http.Request) {
	query, err := resource.ParseListQuery(r.URL.Query())
	if err != nil {
		writeError(w, r, err, h.Env)
		return
	}
	page, err := h.Incidents.ListFollowUps(r.Context(), pathParam(r, "id"), query)
	if err != nil {
		writeError(w, r, err, h.Env)
		return
	}
	writeList(w, "followUps", page)
}

type InvoicesHandler struct {
	*Collection[billing.Invoice, billing.InvoiceInput]
	Billing *billing.Service
}

func NewInvoicesHandler(svc *billing.Service, env string, maxBody int64) *InvoicesHandler {
	return &InvoicesHandler{
		Collection: NewCollection[billing.Invoice, billing.InvoiceInput](svc, billing.Statuses, env, maxBody),
		Billing:    svc,
	}
}

func (h *InvoicesHandler) RecordPayment(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r)
	if err != nil {
		writeError(w, r, err, h.Env)
		return
	}
	var in billing.PaymentInput
	if err := decodeBody(r, h.MaxBody, &in, false); err != nil {
		writeError(w, r, err, h.Env)
		return
	}
	payment, err := h.Billing.RecordPayment(r.Context(), id, in)
	if err != nil {
		writeError(w, r, err, h.Env)
		return
	}
	writeData(w, http.StatusCreated, "payment", payment)
}
