package auth

// PrincipalKind distinguishes desk administrators from patrons.
type PrincipalKind string

const (
	PrincipalAdmin  PrincipalKind = "admin"
	PrincipalPatron PrincipalKind = "patron"
)

// AnonymousName labels the implicit administrator when AUTH_MODE=none.
const AnonymousName = "anonymous"

// Principal is the identity attached to a request. For admins ID is the user
// id; for patrons it is the card number.
type Principal struct {
	Kind PrincipalKind `json:"kind"`
	ID   string        `json:"id"`
	Name string        `json:"name"`
}

// AnonymousAdmin is the principal injected when authentication is disabled.
// It has no user id, so loans it records carry no operator.
func AnonymousAdmin() *Principal {
	return &Principal{Kind: PrincipalAdmin, Name: AnonymousName}
}

func (p *Principal) IsAdmin() bool {
	return p != nil && p.Kind == PrincipalAdmin
}

func (p *Principal) IsPatron() bool {
	return p != nil && p.Kind == PrincipalPatron
}

// OperatorID is the user id recorded on loans this principal handles.
// Patrons and the anonymous admin have none.
func (p *Principal) OperatorID() string {
	if !p.IsAdmin() {
		return ""
	}
	return p.ID
}

// Actor is the name written to the audit log.
func (p *Principal) Actor() string {
	if p == nil {
		return ""
	}
	if p.IsPatron() {
		return "card:" + p.ID
	}
	return p.ID
}

// CanAccessCard reports whether the principal may read cardNo's loans and stats.
func (p *Principal) CanAccessCard(cardNo string) bool {
	return p.IsAdmin() || (p.IsPatron() && p.ID == cardNo)
}
