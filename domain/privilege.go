package domain

import "time"

// Privilege is one grant: the principal may perform the action on the
// entity. The tuple is the identity — granting an existing tuple is a
// no-op, and revocation removes exactly one tuple.
type Privilege struct {
	Principal string
	Entity    EntityRef
	Action    Action
}

func (p Privilege) String() string {
	return p.Principal + " " + string(p.Action) + " " + p.Entity.Key()
}

// Audit verbs recorded for privilege mutations.
const (
	AuditGrant         = "GRANT"
	AuditRevoke        = "REVOKE"
	AuditTransfer      = "TRANSFER"
	AuditCascadeDelete = "CASCADE_DELETE"
)

// AuditEntry records one privilege mutation for the governance trail.
type AuditEntry struct {
	ID        string // uuid
	Principal string
	EntityKey string
	Action    string // action or pattern description
	Verb      string // one of the Audit* constants
	CreatedAt time.Time
}
