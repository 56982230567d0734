package project

// Action is something an identity attempts on a project or its issues.
type Action int

const (
	ActionView Action = iota
	ActionUpdateProject
	ActionDeleteProject
	ActionManageMembers
	ActionCreateIssue
	ActionUpdateIssue
	ActionDeleteIssue
)

// RoleOf returns the role held by email in p, or ErrNotMember.
func (p *Project) RoleOf(email string) (Role, error) {
	for _, m := range p.Members {
		if m.Email == email {
			return m.Role, nil
		}
	}
	return "", ErrNotMember
}

// Authorize checks that email may perform action on p and returns its role.
// Issue update and delete only check membership here; the ownership rules
// need the issue and are applied by AuthorizeIssue.
func Authorize(p *Project, email string, action Action) (Role, error) {
	role, err := p.RoleOf(email)
	if err != nil {
		return "", err
	}

	switch action {
	case ActionView, ActionUpdateIssue, ActionDeleteIssue:
		return role, nil
	case ActionCreateIssue:
		if role == RoleAdmin || role == RoleMember {
			return role, nil
		}
	case ActionUpdateProject, ActionDeleteProject, ActionManageMembers:
		if role == RoleAdmin {
			return role, nil
		}
	}
	return role, ErrForbidden
}

// AuthorizeIssue applies the per-issue rules for update and delete.
// Admins may do both on any issue. Members may update issues they reported
// or are assigned to, and delete issues they reported. Viewers may do neither.
func AuthorizeIssue(role Role, email string, action Action, reporter string, assignee *string) error {
	switch role {
	case RoleAdmin:
		return nil
	case RoleMember:
		switch action {
		case ActionUpdateIssue:
			if reporter == email || (assignee != nil && *assignee == email) {
				return nil
			}
		case ActionDeleteIssue:
			if reporter == email {
				return nil
			}
		}
	}
	return ErrForbidden
}
