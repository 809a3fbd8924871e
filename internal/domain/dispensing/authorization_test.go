package dispensing

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestEvaluateGate(t *testing.T) {
	tests := []struct {
		name       string
		hasExcess  bool
		privileged bool
		want       GateDecision
	}{
		{"no excess unprivileged", false, false, GateDecision{}},
		{"excess unprivileged blocks", true, false, GateDecision{Blocked: true, Banner: BannerError}},
		{"excess privileged warns", true, true, GateDecision{Warned: true, Banner: BannerWarning}},
		{"no excess privileged", false, true, GateDecision{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := EvaluateGate(tt.hasExcess, tt.privileged)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, !tt.want.Blocked, got.CanContinue())
		})
	}
}

func TestPrivilege(t *testing.T) {
	level := func(n int) *int { return &n }

	t.Run("super role", func(t *testing.T) {
		assert.True(t, RolePrivilege{Roles: []string{"operator", "Master"}}.CanOverrideExcess())
		assert.False(t, RolePrivilege{Roles: []string{"operator"}}.CanOverrideExcess())
		assert.True(t, RolePrivilege{Roles: []string{"supervisor"}, SuperRole: "supervisor"}.CanOverrideExcess())
	})

	t.Run("access level threshold", func(t *testing.T) {
		assert.True(t, AccessLevelPrivilege{Level: level(3)}.CanOverrideExcess())
		assert.False(t, AccessLevelPrivilege{Level: level(2)}.CanOverrideExcess())
		assert.True(t, AccessLevelPrivilege{Level: level(2), Threshold: 2}.CanOverrideExcess())
		assert.False(t, AccessLevelPrivilege{}.CanOverrideExcess())
	})

	t.Run("any of", func(t *testing.T) {
		p := AnyPrivilege{RolePrivilege{Roles: []string{"operator"}}, AccessLevelPrivilege{Level: level(4)}}
		assert.True(t, p.CanOverrideExcess())
		assert.False(t, AnyPrivilege{Unprivileged{}, nil}.CanOverrideExcess())
	})

	t.Run("snapshot", func(t *testing.T) {
		snap := PrivilegeSnapshot{OperatorID: 7, Roles: []string{"operator"}, AccessLevel: level(3)}
		assert.True(t, snap.Privilege("master", 3).CanOverrideExcess())
		assert.False(t, snap.Privilege("master", 4).CanOverrideExcess())
		assert.True(t, PrivilegeSnapshot{Roles: []string{"master"}}.Privilege("", 0).CanOverrideExcess())
	})
}
