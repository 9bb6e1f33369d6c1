// Package codec serializes domain events to and from outbox payloads.
//
// Payloads are flat JSON objects; the event kind is never embedded in the
// payload because the outbox row's event_type column is the discriminator.
// The registry is keyed by event kind and the set is closed: unknown kinds
// fail fast on both encode and decode.
package codec

import (
	"encoding/json"
	"fmt"

	"github.com/openshift-hyperfleet/kartograph-sub002/internal/domain"
)

// Aggregate type discriminators stored in outbox rows.
const (
	AggregateTenant    = "tenant"
	AggregateGroup     = "group"
	AggregateWorkspace = "workspace"
	AggregateAPIKey    = "api_key"
)

func decodeAs[E domain.Event](payload []byte) (domain.Event, error) {
	var event E
	if err := json.Unmarshal(payload, &event); err != nil {
		return nil, fmt.Errorf("decode %s payload: %w", event.Kind(), err)
	}
	return event, nil
}

var decoders = map[string]func([]byte) (domain.Event, error){
	domain.KindGroupCreated:        decodeAs[domain.GroupCreated],
	domain.KindGroupDeleted:        decodeAs[domain.GroupDeleted],
	domain.KindMemberAdded:         decodeAs[domain.MemberAdded],
	domain.KindMemberRemoved:       decodeAs[domain.MemberRemoved],
	domain.KindMemberRoleChanged:   decodeAs[domain.MemberRoleChanged],
	domain.KindTenantCreated:       decodeAs[domain.TenantCreated],
	domain.KindTenantDeleted:       decodeAs[domain.TenantDeleted],
	domain.KindTenantMemberAdded:   decodeAs[domain.TenantMemberAdded],
	domain.KindTenantMemberRemoved: decodeAs[domain.TenantMemberRemoved],
	domain.KindWorkspaceCreated:    decodeAs[domain.WorkspaceCreated],
	domain.KindWorkspaceDeleted:    decodeAs[domain.WorkspaceDeleted],
	domain.KindAPIKeyCreated:       decodeAs[domain.APIKeyCreated],
	domain.KindAPIKeyRevoked:       decodeAs[domain.APIKeyRevoked],
	domain.KindAPIKeyDeleted:       decodeAs[domain.APIKeyDeleted],
}

// Encode serializes an event to its outbox payload.
func Encode(event domain.Event) ([]byte, error) {
	if _, ok := decoders[event.Kind()]; !ok {
		return nil, fmt.Errorf("unregistered event kind %q", event.Kind())
	}
	payload, err := json.Marshal(event)
	if err != nil {
		return nil, fmt.Errorf("encode %s payload: %w", event.Kind(), err)
	}
	return payload, nil
}

// Decode deserializes a payload back into its event by kind.
func Decode(kind string, payload []byte) (domain.Event, error) {
	decode, ok := decoders[kind]
	if !ok {
		return nil, fmt.Errorf("unregistered event kind %q", kind)
	}
	return decode(payload)
}

// AggregateRef derives the owning aggregate's type and id for an event.
func AggregateRef(event domain.Event) (aggregateType, aggregateID string, err error) {
	switch e := event.(type) {
	case domain.TenantCreated:
		return AggregateTenant, string(e.TenantID), nil
	case domain.TenantDeleted:
		return AggregateTenant, string(e.TenantID), nil
	case domain.TenantMemberAdded:
		return AggregateTenant, string(e.TenantID), nil
	case domain.TenantMemberRemoved:
		return AggregateTenant, string(e.TenantID), nil
	case domain.GroupCreated:
		return AggregateGroup, string(e.GroupID), nil
	case domain.GroupDeleted:
		return AggregateGroup, string(e.GroupID), nil
	case domain.MemberAdded:
		return AggregateGroup, string(e.GroupID), nil
	case domain.MemberRemoved:
		return AggregateGroup, string(e.GroupID), nil
	case domain.MemberRoleChanged:
		return AggregateGroup, string(e.GroupID), nil
	case domain.WorkspaceCreated:
		return AggregateWorkspace, string(e.WorkspaceID), nil
	case domain.WorkspaceDeleted:
		return AggregateWorkspace, string(e.WorkspaceID), nil
	case domain.APIKeyCreated:
		return AggregateAPIKey, string(e.APIKeyID), nil
	case domain.APIKeyRevoked:
		return AggregateAPIKey, string(e.APIKeyID), nil
	case domain.APIKeyDeleted:
		return AggregateAPIKey, string(e.APIKeyID), nil
	default:
		return "", "", fmt.Errorf("unregistered event type %T", event)
	}
}
