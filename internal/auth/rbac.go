package auth

import "strings"

type Role string

const (
	RoleAdmin         Role = "ADMIN"
	RoleDistrictAdmin Role = "DISTRICT_ADMIN"
	RoleSchoolAdmin   Role = "SCHOOL_ADMIN"
	RoleNurse         Role = "NURSE"
	RoleCounselor     Role = "COUNSELOR"
	RoleStaff         Role = "STAFF"
	RoleViewer        Role = "VIEWER"
)

// Roles lists every known role, most privileged first.
var Roles = []Role{RoleAdmin, RoleDistrictAdmin, RoleSchoolAdmin, RoleNurse, RoleCounselor, RoleStaff, RoleViewer}

type Resource string

const (
	ResourceStudents      Resource = "students"
	ResourceAppointments  Resource = "appointments"
	ResourceHealthRecords Resource = "health_records"
	ResourceMedications   Resource = "medications"
	ResourceIncidents     Resource = "incidents"
	ResourceBilling       Resource = "billing"
)

type Action string

const (
	ActionRead   Action = "read"
	ActionWrite  Action = "write"
	ActionDelete Action = "delete"
)

type perm uint8

const (
	permRead perm = 1 << iota
	permWrite
	permDelete

	rw  = permRead | permWrite
	rwd = permRead | permWrite | permDelete
)

var actionBits = map[Action]perm{ActionRead: permRead, ActionWrite: permWrite, ActionDelete: permDelete}

var permissions = map[Role]map[Resource]perm{
	RoleAdmin: {
		ResourceStudents: rwd, ResourceAppointments: rwd, ResourceHealthRecords: rwd,
		ResourceMedications: rwd, ResourceIncidents: rwd, ResourceBilling: rwd,
	},
	RoleDistrictAdmin: {
		ResourceStudents: rwd, ResourceAppointments: rwd, ResourceHealthRecords: rw,
		ResourceMedications: rw, ResourceIncidents: rwd, ResourceBilling: rwd,
	},
	RoleSchoolAdmin: {
		ResourceStudents: rwd, ResourceAppointments: rwd, ResourceHealthRecords: permRead,
		ResourceMedications: permRead, ResourceIncidents: rw, ResourceBilling: rwd,
	},
	RoleNurse: {
		ResourceStudents: rw, ResourceAppointments: rwd, ResourceHealthRecords: rwd,
		ResourceMedications: rwd, ResourceIncidents: rw,
	},
	RoleCounselor: {
		ResourceStudents: permRead, ResourceAppointments: rw, ResourceIncidents: rw,
	},
	RoleStaff: {
		ResourceStudents: permRead, ResourceAppointments: rw, ResourceIncidents: permWrite, ResourceBilling: rw,
	},
	RoleViewer: {
		ResourceStudents: permRead, ResourceAppointments: permRead,
	},
}

// NormalizeRole maps a case-insensitive role name to a Role, or "" if unknown.
func NormalizeRole(role string) Role {
	candidate := Role(strings.ToUpper(strings.TrimSpace(role)))
	if _, ok := permissions[candidate]; ok {
		return candidate
	}
	return ""
}

// Can reports whether role may perform action on resource. Unknown roles can do nothing.
func Can(role Role, resource Resource, action Action) bool {
	grants, ok := permissions[NormalizeRole(string(role))]
	if !ok {
		return false
	}
	bit, ok := actionBits[action]
	if !ok {
		return false
	}
	return grants[resource]&bit != 0
}

func HasRole(role Role, allowed ...Role) bool {
	current := NormalizeRole(string(role))
	if current == "" {
		return false
	}
	for _, candidate := range allowed {
		if current == candidate {
			return true
		}
	}
	return false
}

func IsAdmin(role Role) bool {
	return NormalizeRole(string(role)) == RoleAdmin
}
