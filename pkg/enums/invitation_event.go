package enums

// InvitationEventKind tags lifecycle events published on the bus.
type InvitationEventKind string

const (
	InvitationEventCreated InvitationEventKind = "invitation.created"
	InvitationEventUpdated InvitationEventKind = "invitation.updated"
	InvitationEventTimeout InvitationEventKind = "invitation.timeout"
)
