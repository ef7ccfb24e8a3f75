package service

import (
	"github.com/google/uuid"

	"github.com/ordermgmt/ordercore/internal/domain"
)

// Authorize is the single access-control gate for order and payment
// operations: elevated roles pass, customers only reach their own
// resources.
func Authorize(actor domain.Principal, ownerID uuid.UUID) error {
	if actor.Elevated() {
		return nil
	}
	if actor.CustomerID == ownerID {
		return nil
	}
	return domain.ErrForbidden
}

// AuthorizeElevated restricts an operation to ADMIN and MANAGER roles.
func AuthorizeElevated(actor domain.Principal) error {
	if actor.Elevated() {
		return nil
	}
	return domain.ErrForbidden
}
