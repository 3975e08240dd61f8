package audit

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/go-monolith/mono"
	"github.com/go-monolith/mono/pkg/helper"
)

// ServiceTrail is the request-reply service that reads the audit trail.
const ServiceTrail = "audit-trail"

// TrailRequest asks for the entries involving OwnerID.
type TrailRequest struct {
	OwnerID string `json:"owner_id"`
	Type    string `json:"type,omitempty"`
	Limit   int    `json:"limit,omitempty"`
}

// TrailResponse carries the matching entries, oldest first.
type TrailResponse struct {
	Entries []Entry `json:"entries"`
	Error   string  `json:"error,omitempty"`
}

func (m *AuditModule) RegisterServices(container mono.ServiceContainer) error {
	if err := helper.RegisterTypedRequestReplyService(
		container, ServiceTrail, json.Unmarshal, json.Marshal, m.trail,
	); err != nil {
		return fmt.Errorf("failed to register %s service: %w", ServiceTrail, err)
	}
	m.logger.Info("registered services", "services", []string{ServiceTrail})
	return nil
}

func (m *AuditModule) trail(_ context.Context, req TrailRequest, _ *mono.Msg) (TrailResponse, error) {
	if req.OwnerID == "" {
		return TrailResponse{Entries: []Entry{}, Error: "owner_id is required"}, nil
	}
	if req.Type != "" && !ValidType(req.Type) {
		return TrailResponse{Entries: []Entry{}, Error: fmt.Sprintf("unknown entry type %q", req.Type)}, nil
	}
	return TrailResponse{Entries: m.Trail(req.OwnerID, req.Type, req.Limit)}, nil
}
