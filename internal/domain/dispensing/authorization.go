package dispensing

import "strings"

// DefaultSuperRole is the role that may always override excess
const DefaultSuperRole = "master"

// DefaultPrivilegeThreshold is the module access level that may override excess
const DefaultPrivilegeThreshold = 3

// Privilege decides whether an operator may continue despite over-allocation
type Privilege interface {
	CanOverrideExcess() bool
}

// Unprivileged never overrides excess
type Unprivileged struct{}

// CanOverrideExcess implements Privilege
func (Unprivileged) CanOverrideExcess() bool { return false }

// RolePrivilege grants the override to holders of the super role
type RolePrivilege struct {
	Roles     []string
	SuperRole string
}

// CanOverrideExcess implements Privilege
func (p RolePrivilege) CanOverrideExcess() bool {
	super := p.SuperRole
	if super == "" {
		super = DefaultSuperRole
	}
	for _, r := range p.Roles {
		if strings.EqualFold(strings.TrimSpace(r), super) {
			return true
		}
	}
	return false
}

// AccessLevelPrivilege grants the override from the numeric module access level.
// A nil level means the backend reported no access.
type AccessLevelPrivilege struct {
	Level     *int
	Threshold int
}

// CanOverrideExcess implements Privilege
func (p AccessLevelPrivilege) CanOverrideExcess() bool {
	if p.Level == nil {
		return false
	}
	threshold := p.Threshold
	if threshold <= 0 {
		threshold = DefaultPrivilegeThreshold
	}
	return *p.Level >= threshold
}

// AnyPrivilege grants the override when any member does
type AnyPrivilege []Privilege

// CanOverrideExcess implements Privilege
func (a AnyPrivilege) CanOverrideExcess() bool {
	for _, p := range a {
		if p != nil && p.CanOverrideExcess() {
			return true
		}
	}
	return false
}

// PrivilegeSnapshot is the raw privilege data resolved for an operator.
// It is what gets cached between sessions.
type PrivilegeSnapshot struct {
	OperatorID  int64    `json:"operator_id"`
	Roles       []string `json:"roles"`
	AccessLevel *int     `json:"access_level,omitempty"`
}

// Privilege combines the role and access level checks of the snapshot
func (s PrivilegeSnapshot) Privilege(superRole string, threshold int) Privilege {
	return AnyPrivilege{
		RolePrivilege{Roles: s.Roles, SuperRole: superRole},
		AccessLevelPrivilege{Level: s.AccessLevel, Threshold: threshold},
	}
}

// BannerLevel is the severity of the banner shown with a gate decision
type BannerLevel string

const (
	BannerNone    BannerLevel = ""
	BannerWarning BannerLevel = "warning"
	BannerError   BannerLevel = "error"
)

// GateDecision is the outcome of the authorization gate
type GateDecision struct {
	Blocked bool
	Warned  bool
	Banner  BannerLevel
}

// CanContinue returns true when the operator may move on to review
func (d GateDecision) CanContinue() bool {
	return !d.Blocked
}

// EvaluateGate combines the audit outcome with the operator privilege
func EvaluateGate(hasExcess, privileged bool) GateDecision {
	switch {
	case hasExcess && !privileged:
		return GateDecision{Blocked: true, Banner: BannerError}
	case hasExcess:
		return GateDecision{Warned: true, Banner: BannerWarning}
	default:
		return GateDecision{}
	}
}
