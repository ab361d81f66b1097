package rbac

import (
	"context"
	"errors"
	"fmt"
)

// Kind names. Keep these stable; they are part of auth/RBAC contracts.
type Kind string

const (
	KindCenter   Kind = "center"
	KindProducer Kind = "producer"
	KindAdmin    Kind = "admin"
)

var ErrInvalidRole = errors.New("rbac: invalid role")

// CustomerRole is the caller's resolved role. Center and producer roles are
// bound to the party they act for; admin is not bound to any party.
type CustomerRole struct {
	Kind    Kind
	PartyID string
}

// Resolve turns verified token claims into a CustomerRole.
func Resolve(role, partyID string) (CustomerRole, error) {
	switch Kind(role) {
	case KindAdmin:
		return CustomerRole{Kind: KindAdmin}, nil
	case KindCenter, KindProducer:
		if partyID == "" {
			return CustomerRole{}, fmt.Errorf("%w: %s token without party_id", ErrInvalidRole, role)
		}
		return CustomerRole{Kind: Kind(role), PartyID: partyID}, nil
	default:
		return CustomerRole{}, fmt.Errorf("%w: %q", ErrInvalidRole, role)
	}
}

func (r CustomerRole) IsAdmin() bool { return r.Kind == KindAdmin }

// CustomerID is the customer the caller may act for, empty unless a center.
func (r CustomerRole) CustomerID() string {
	if r.Kind == KindCenter {
		return r.PartyID
	}
	return ""
}

// ProducerID is the producer the caller may act for, empty unless a producer.
func (r CustomerRole) ProducerID() string {
	if r.Kind == KindProducer {
		return r.PartyID
	}
	return ""
}

type roleKey struct{}

func WithRole(ctx context.Context, r CustomerRole) context.Context {
	return context.WithValue(ctx, roleKey{}, r)
}

func FromContext(ctx context.Context) (CustomerRole, bool) {
	r, ok := ctx.Value(roleKey{}).(CustomerRole)
	return r, ok
}
