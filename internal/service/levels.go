package service

import "backend/internal/model"

// ApproverLevel binds one role to one ordinal position in the approval chain.
type ApproverLevel struct {
	Role  string
	Level int
}

// ApprovalChain is the ordered role->level table. Levels are 1..N in slice
// order; a request's required_approval_levels may stop the walk early.
type ApprovalChain []ApproverLevel

// DefaultApprovalChain mirrors the standard three-step procurement flow.
func DefaultApprovalChain() ApprovalChain {
	return ApprovalChain{
		{Role: model.RoleApprover1, Level: 1},
		{Role: model.RoleApprover2, Level: 2},
		{Role: model.RoleFinance, Level: 3},
	}
}

// LevelForRole resolves the approval level a role acts at.
func (c ApprovalChain) LevelForRole(role string) (int, bool) {
	for _, entry := range c {
		if entry.Role == role {
			return entry.Level, true
		}
	}
	return 0, false
}

// MaxLevel is the deepest level the chain supports.
func (c ApprovalChain) MaxLevel() int {
	max := 0
	for _, entry := range c {
		if entry.Level > max {
			max = entry.Level
		}
	}
	return max
}

// Roles lists every approver role in chain order.
func (c ApprovalChain) Roles() []string {
	roles := make([]string, 0, len(c))
	for _, entry := range c {
		roles = append(roles, entry.Role)
	}
	return roles
}
