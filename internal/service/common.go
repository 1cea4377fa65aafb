package service

import "github.com/tutorhub/backoffice-api/internal/repository"

// AuditMeta carries request attribution through the service layer into the
// audit trail.
type AuditMeta struct {
	ActorID   *string
	IPAddress string
	UserAgent string
}

func (m AuditMeta) actor() repository.AuditActor {
	return repository.AuditActor{ActorID: m.ActorID, IPAddress: m.IPAddress, UserAgent: m.UserAgent}
}
