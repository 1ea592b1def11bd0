package hosting

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tffhost/backend/internal/domain/shared"
)

var t0 = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

func billing() ContactInfo {
	return ContactInfo{Name: "Alice", Email: "alice@example.com", Phone: "+32", Address: "Main street 1"}
}

func newOrder(t *testing.T, status OrderStatus) *NodeOrder {
	t.Helper()
	o, err := NewNodeOrder(1000000000000001, "alice", billing(), ContactInfo{}, "EU", true, t0)
	require.NoError(t, err)
	o.Status = status
	o.ClearDomainEvents()
	return o
}

// ============ Status Tests ============

func TestOrderStatus_IsValid(t *testing.T) {
	for _, s := range []OrderStatus{-1, 0, 1, 2, 3, 4, 5} {
		assert.True(t, s.IsValid(), s.String())
	}
	assert.False(t, OrderStatus(6).IsValid())
	assert.False(t, OrderStatus(-2).IsValid())
	assert.Equal(t, "UNKNOWN(9)", OrderStatus(9).String())
	assert.Equal(t, "WAITING_APPROVAL", OrderStatusWaitingApproval.String())
}

func TestAllowedNextStatuses(t *testing.T) {
	tests := []struct {
		from OrderStatus
		want []OrderStatus
	}{
		{OrderStatusCanceled, []OrderStatus{}},
		{OrderStatusWaitingApproval, []OrderStatus{OrderStatusCanceled, OrderStatusApproved}},
		{OrderStatusApproved, []OrderStatus{OrderStatusCanceled, OrderStatusSigned}},
		{OrderStatusSigned, []OrderStatus{OrderStatusCanceled, OrderStatusPaid}},
		{OrderStatusPaid, []OrderStatus{OrderStatusSent}},
		{OrderStatusSent, []OrderStatus{}},
		{OrderStatusArrived, []OrderStatus{}},
		{OrderStatus(42), []OrderStatus{}},
	}
	for _, tt := range tests {
		t.Run(tt.from.String(), func(t *testing.T) {
			assert.Equal(t, tt.want, AllowedNextStatuses(tt.from))
		})
	}
}

func TestOrderStatus_CanTransitionTo(t *testing.T) {
	all := []OrderStatus{
		OrderStatusCanceled, OrderStatusApproved, OrderStatusSigned, OrderStatusSent,
		OrderStatusArrived, OrderStatusWaitingApproval, OrderStatusPaid,
	}
	allowed := map[OrderStatus]map[OrderStatus]bool{
		OrderStatusWaitingApproval: {OrderStatusCanceled: true, OrderStatusApproved: true},
		OrderStatusApproved:        {OrderStatusCanceled: true, OrderStatusSigned: true},
		OrderStatusSigned:          {OrderStatusCanceled: true, OrderStatusPaid: true},
		OrderStatusPaid:            {OrderStatusSent: true},
	}

	for _, from := range all {
		for _, to := range all {
			t.Run(from.String()+"->"+to.String(), func(t *testing.T) {
				assert.Equal(t, allowed[from][to], from.CanTransitionTo(to))
			})
		}
	}
}

// ============ Creation Tests ============

func TestNewNodeOrder(t *testing.T) {
	t.Run("approved when the user can host", func(t *testing.T) {
		o, err := NewNodeOrder(1000000000000001, "alice", billing(), ContactInfo{}, "EU", true, t0)
		require.NoError(t, err)

		assert.Equal(t, OrderStatusApproved, o.Status)
		assert.Equal(t, billing(), o.ShippingInfo, "shipping defaults to billing")
		assert.Equal(t, t0, o.OrderTime)
		assert.Equal(t, 1, o.Version)

		events := o.GetDomainEvents()
		require.Len(t, events, 1)
		created := events[0].(*NodeOrderCreatedEvent)
		assert.Equal(t, OrderStatusApproved, created.Status)
		assert.Equal(t, o.ID.String(), created.AggregateID())
	})

	t.Run("waiting approval otherwise", func(t *testing.T) {
		shipping := ContactInfo{Name: "Bob", Address: "Elsewhere 2"}
		o, err := NewNodeOrder(1000000000000001, "alice", billing(), shipping, "US", false, t0)
		require.NoError(t, err)

		assert.Equal(t, OrderStatusWaitingApproval, o.Status)
		assert.Equal(t, shipping, o.ShippingInfo)
	})

	t.Run("validation", func(t *testing.T) {
		_, err := NewNodeOrder(0, "alice", billing(), ContactInfo{}, "EU", true, t0)
		assert.Error(t, err)
		_, err = NewNodeOrder(1, "", billing(), ContactInfo{}, "EU", true, t0)
		assert.Error(t, err)
		_, err = NewNodeOrder(1, "alice", ContactInfo{Name: "Alice"}, ContactInfo{}, "EU", true, t0)
		assert.Error(t, err)
	})
}

func TestImportNodeOrder(t *testing.T) {
	sign := t0.Add(-48 * time.Hour)
	send := t0.Add(-24 * time.Hour)

	t.Run("drops timestamps the status does not imply", func(t *testing.T) {
		o, err := ImportNodeOrder(ImportedOrder{
			Number: 1, Username: "alice", BillingInfo: billing(), Status: OrderStatusApproved,
			SaleOrderID: 7, SignTime: &sign, SendTime: &send,
		}, t0)
		require.NoError(t, err)
		assert.Nil(t, o.SignTime)
		assert.Nil(t, o.SendTime)
		assert.Nil(t, o.ArrivalTime)
		assert.Equal(t, t0, o.OrderTime)
		assert.True(t, o.Imported)
	})

	t.Run("keeps timestamps of a sent order", func(t *testing.T) {
		o, err := ImportNodeOrder(ImportedOrder{
			Number: 1, Username: "alice", BillingInfo: billing(), Status: OrderStatusSent,
			SaleOrderID: 7, SignTime: &sign, SendTime: &send,
		}, t0)
		require.NoError(t, err)
		assert.Equal(t, &sign, o.SignTime)
		assert.Equal(t, &send, o.SendTime)
		assert.IsType(t, &NodeOrderImportedEvent{}, o.GetDomainEvents()[0])
	})

	t.Run("paid keeps sign time only", func(t *testing.T) {
		o, err := ImportNodeOrder(ImportedOrder{
			Number: 1, Username: "alice", BillingInfo: billing(), Status: OrderStatusPaid,
			SaleOrderID: 7, SignTime: &sign, SendTime: &send,
		}, t0)
		require.NoError(t, err)
		assert.NotNil(t, o.SignTime)
		assert.Nil(t, o.SendTime)
	})

	t.Run("arrived order keeps its arrival time", func(t *testing.T) {
		arrived := t0.Add(-time.Hour)
		o, err := ImportNodeOrder(ImportedOrder{
			Number: 1, Username: "alice", BillingInfo: billing(), Status: OrderStatusArrived,
			SaleOrderID: 7, SignTime: &sign, SendTime: &send, ArrivalTime: &arrived,
		}, t0)
		require.NoError(t, err)
		assert.Equal(t, &arrived, o.ArrivalTime)
		assert.Equal(t, &send, o.SendTime)
	})

	t.Run("arrived order defaults arrival to send time", func(t *testing.T) {
		o, err := ImportNodeOrder(ImportedOrder{
			Number: 1, Username: "alice", BillingInfo: billing(), Status: OrderStatusArrived,
			SaleOrderID: 7, SendTime: &send,
		}, t0)
		require.NoError(t, err)
		require.NotNil(t, o.ArrivalTime)
		assert.Equal(t, send, *o.ArrivalTime)
	})

	t.Run("arrived order without send time arrived now", func(t *testing.T) {
		o, err := ImportNodeOrder(ImportedOrder{
			Number: 1, Username: "alice", BillingInfo: billing(), Status: OrderStatusArrived, SaleOrderID: 7,
		}, t0)
		require.NoError(t, err)
		require.NotNil(t, o.ArrivalTime)
		assert.Equal(t, t0, *o.ArrivalTime)
	})

	t.Run("arrival time is dropped before arrival", func(t *testing.T) {
		arrived := t0
		o, err := ImportNodeOrder(ImportedOrder{
			Number: 1, Username: "alice", BillingInfo: billing(), Status: OrderStatusSent,
			SaleOrderID: 7, SendTime: &send, ArrivalTime: &arrived,
		}, t0)
		require.NoError(t, err)
		assert.Nil(t, o.ArrivalTime)
	})

	t.Run("requires a sale order", func(t *testing.T) {
		_, err := ImportNodeOrder(ImportedOrder{Number: 1, Username: "alice", Status: OrderStatusSent}, t0)
		assert.Error(t, err)
	})
}

func TestHumanReadableID(t *testing.T) {
	assert.Equal(t, "1234.5678.1234.5678", HumanReadableID(1234567812345678))
	assert.Equal(t, "1234.5678", HumanReadableID(12345678))
	assert.Equal(t, "12345", HumanReadableID(12345))
	assert.Equal(t, "1000", HumanReadableID(1000))
	assert.Equal(t, "7", HumanReadableID(7))
}

// ============ Transition Tests ============

func TestNodeOrder_TransitionTo(t *testing.T) {
	o := newOrder(t, OrderStatusPaid)

	require.NoError(t, o.TransitionTo(OrderStatusSent, t0))
	assert.Equal(t, OrderStatusSent, o.Status)
	assert.Equal(t, t0, *o.SendTime)

	events := o.GetDomainEvents()
	require.Len(t, events, 1)
	changed := events[0].(*NodeOrderStatusChangedEvent)
	assert.Equal(t, OrderStatusPaid, changed.FromStatus)
	assert.Equal(t, OrderStatusSent, changed.ToStatus)
}

func TestNodeOrder_TransitionTo_Rejected(t *testing.T) {
	o := newOrder(t, OrderStatusApproved)

	err := o.TransitionTo(OrderStatusSent, t0)

	require.ErrorIs(t, err, ErrCannotChangeStatus)
	var de *shared.DomainError
	require.ErrorAs(t, err, &de)
	assert.Equal(t, int(OrderStatusApproved), de.Details["from"])
	assert.Equal(t, int(OrderStatusSent), de.Details["to"])
	assert.Equal(t, []int{-1, 1}, de.Details["allowed_new_statuses"])
	assert.Equal(t, OrderStatusApproved, o.Status, "rejected transitions are not applied")
	assert.Empty(t, o.GetDomainEvents())
}

func TestNodeOrder_UpdateStatusByAdmin(t *testing.T) {
	tests := []struct {
		name    string
		from    OrderStatus
		to      OrderStatus
		changed bool
		err     error
	}{
		{"cancel waiting order", OrderStatusWaitingApproval, OrderStatusCanceled, true, nil},
		{"approve waiting order", OrderStatusWaitingApproval, OrderStatusApproved, true, nil},
		{"mark signed order paid", OrderStatusSigned, OrderStatusPaid, true, nil},
		{"send paid order", OrderStatusPaid, OrderStatusSent, true, nil},
		{"same status is a no-op", OrderStatusPaid, OrderStatusPaid, false, nil},
		{"canceled order is frozen", OrderStatusCanceled, OrderStatusApproved, false, ErrOrderCanceled},
		{"signed cannot be set by admin", OrderStatusApproved, OrderStatusSigned, false, ErrInvalidStatus},
		{"arrived cannot be set by admin", OrderStatusSent, OrderStatusArrived, false, ErrInvalidStatus},
		{"sent is terminal", OrderStatusSent, OrderStatusCanceled, false, ErrCannotChangeStatus},
		{"paid cannot be canceled", OrderStatusPaid, OrderStatusCanceled, false, ErrCannotChangeStatus},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			o := newOrder(t, tt.from)
			changed, err := o.UpdateStatusByAdmin(tt.to, t0)

			assert.Equal(t, tt.changed, changed)
			if tt.err != nil {
				assert.ErrorIs(t, err, tt.err)
				assert.Equal(t, tt.from, o.Status)
				return
			}
			require.NoError(t, err)
			if tt.changed {
				assert.Equal(t, tt.to, o.Status)
			}
		})
	}
}

func TestNodeOrder_Cancel_SetsCancelTime(t *testing.T) {
	o := newOrder(t, OrderStatusSigned)
	_, err := o.UpdateStatusByAdmin(OrderStatusCanceled, t0)
	require.NoError(t, err)
	assert.Equal(t, t0, *o.CancelTime)
}

func TestNodeOrder_Sign(t *testing.T) {
	o := newOrder(t, OrderStatusApproved)

	require.NoError(t, o.Sign("sig", "payload", t0))
	assert.Equal(t, OrderStatusSigned, o.Status)
	assert.Equal(t, "sig", o.Signature)
	assert.Equal(t, "payload", o.SignaturePayload)
	assert.Equal(t, t0, *o.SignTime)

	waiting := newOrder(t, OrderStatusWaitingApproval)
	assert.ErrorIs(t, waiting.Sign("sig", "payload", t0), ErrCannotChangeStatus)
	assert.Error(t, newOrder(t, OrderStatusApproved).Sign("", "payload", t0))
}

func TestNodeOrder_MarkArrived(t *testing.T) {
	o := newOrder(t, OrderStatusSent)
	require.NoError(t, o.MarkArrived(t0))
	assert.Equal(t, OrderStatusArrived, o.Status)
	assert.Equal(t, t0, *o.ArrivalTime)

	changed := o.GetDomainEvents()[0].(*NodeOrderStatusChangedEvent)
	assert.Equal(t, OrderStatusArrived, changed.ToStatus)

	paid := newOrder(t, OrderStatusPaid)
	assert.ErrorIs(t, paid.MarkArrived(t0), shared.ErrInvalidState)
}

func TestNodeOrder_AttachSaleOrder(t *testing.T) {
	o := newOrder(t, OrderStatusApproved)
	assert.False(t, o.HasSaleOrder())

	require.NoError(t, o.AttachSaleOrder(55, t0))
	assert.True(t, o.HasSaleOrder())
	assert.Error(t, o.AttachSaleOrder(0, t0))
}

func TestTagsForOrder(t *testing.T) {
	for _, s := range []OrderStatus{OrderStatusArrived, OrderStatusSent, OrderStatusSigned, OrderStatusPaid} {
		assert.Equal(t, []string{TagHoster}, TagsForOrder(newOrder(t, s)), s.String())
	}
	for _, s := range []OrderStatus{OrderStatusApproved, OrderStatusWaitingApproval, OrderStatusCanceled} {
		assert.Empty(t, TagsForOrder(newOrder(t, s)), s.String())
	}
}
