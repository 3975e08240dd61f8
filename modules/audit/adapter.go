package audit

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/go-monolith/mono"
	"github.com/go-monolith/mono/pkg/helper"
)

// AuditPort reads the audit trail from another module.
type AuditPort interface {
	Trail(ctx context.Context, ownerID, kind string, limit int) ([]Entry, error)
}

type auditAdapter struct {
	container mono.ServiceContainer
}

// NewAuditAdapter creates an AuditPort over the audit module's services.
func NewAuditAdapter(container mono.ServiceContainer) AuditPort {
	if container == nil {
		panic("audit adapter requires non-nil ServiceContainer")
	}
	return &auditAdapter{container: container}
}

// Trail fetches the owner's entries via the audit-trail service.
func (a *auditAdapter) Trail(ctx context.Context, ownerID, kind string, limit int) ([]Entry, error) {
	req := TrailRequest{OwnerID: ownerID, Type: kind, Limit: limit}
	var resp TrailResponse
	if err := helper.CallRequestReplyService(
		ctx,
		a.container,
		ServiceTrail,
		json.Marshal,
		json.Unmarshal,
		&req,
		&resp,
	); err != nil {
		return nil, fmt.Errorf("%s service call failed: %w", ServiceTrail, err)
	}
	if resp.Error != "" {
		return nil, errors.New(resp.Error)
	}
	if resp.Entries == nil {
		resp.Entries = []Entry{}
	}
	return resp.Entries, nil
}
