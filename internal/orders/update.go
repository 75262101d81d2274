package orders

import "time"

// DefaultCancelReason is recorded when an administrator cancels without a reason.
const DefaultCancelReason = "관리자 취소"

// Update is the set of fields one transition writes. It is a closed union:
// ConfirmUpdate, ShipUpdate, CompleteUpdate and CancelUpdate are the only variants.
type Update interface {
	// Status is the status the update moves the order into.
	Status() Status
	// Apply returns o with the update's fields merged in.
	Apply(o Order) Order

	isUpdate()
}

type ConfirmUpdate struct {
	ConfirmedAt time.Time
	ConfirmedBy string
}

func (ConfirmUpdate) Status() Status { return StatusConfirmed }

func (u ConfirmUpdate) Apply(o Order) Order {
	o.Status = StatusConfirmed
	o.ConfirmedAt = &u.ConfirmedAt
	o.ConfirmedBy = &u.ConfirmedBy
	o.UpdatedAt = u.ConfirmedAt
	return o
}

func (ConfirmUpdate) isUpdate() {}

type ShipUpdate struct {
	ShippedAt time.Time
}

func (ShipUpdate) Status() Status { return StatusShipped }

func (u ShipUpdate) Apply(o Order) Order {
	o.Status = StatusShipped
	o.ShippedAt = &u.ShippedAt
	o.UpdatedAt = u.ShippedAt
	return o
}

func (ShipUpdate) isUpdate() {}

type CompleteUpdate struct {
	CompletedAt time.Time
}

func (CompleteUpdate) Status() Status { return StatusCompleted }

func (u CompleteUpdate) Apply(o Order) Order {
	o.Status = StatusCompleted
	o.CompletedAt = &u.CompletedAt
	o.UpdatedAt = u.CompletedAt
	return o
}

func (CompleteUpdate) isUpdate() {}

type CancelUpdate struct {
	CancelledAt time.Time
	Reason      string
}

func (CancelUpdate) Status() Status { return StatusCancelled }

func (u CancelUpdate) Apply(o Order) Order {
	o.Status = StatusCancelled
	o.CancelledAt = &u.CancelledAt
	o.CancelledReason = &u.Reason
	o.UpdatedAt = u.CancelledAt
	return o
}

func (CancelUpdate) isUpdate() {}
