package handler

import (
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	hostingapp "github.com/tffhost/backend/internal/application/hosting"
	nodeapp "github.com/tffhost/backend/internal/application/node"
	"github.com/tffhost/backend/internal/domain/effect"
	"github.com/tffhost/backend/internal/domain/hosting"
	"github.com/tffhost/backend/internal/interfaces/http/dto"
	"github.com/tffhost/backend/tests/testutil"
)

var orderBilling = hosting.ContactInfo{Name: "Alice", Email: "alice@example.com", Address: "Main street 1"}

func newOrderHandler(orders *testutil.NodeOrderRepository) *OrderHandler {
	fleet := new(testutil.MockFleet)
	nodes := nodeapp.NewService(testutil.NewNodeRepository(), testutil.NewProfileRepository(), fleet, nil, zap.NewNop())
	service := hostingapp.NewService(orders, testutil.NewAgreementRepository(), orders, nodes,
		new(testutil.MockERP), fleet, new(testutil.MockDocumentStore),
		hostingapp.Options{DocumentSecret: []byte("secret")}, zap.NewNop())
	return NewOrderHandler(service)
}

func existingOrder(t *testing.T, username string, status hosting.OrderStatus) *hosting.NodeOrder {
	t.Helper()
	o, err := hosting.NewNodeOrder(1000000000000007, username, orderBilling, hosting.ContactInfo{}, "EU", true, time.Now())
	require.NoError(t, err)
	o.Status = status
	o.ClearDomainEvents()
	return o
}

func TestOrderHandler_CreateMyOrder(t *testing.T) {
	body := MyOrderRequest{
		BillingInfo: hostingapp.ContactInfo{Name: "Alice", Email: "alice@example.com", Address: "Main street 1"},
		Socket:      "EU",
	}

	t.Run("creates the order of the caller", func(t *testing.T) {
		orders := testutil.NewNodeOrderRepository()
		testutil.RunHTTPTestCase(t, newOrderHandler(orders).CreateMyOrder, testutil.HTTPTestCase{
			Method:         http.MethodPost,
			Path:           "/me/orders",
			Username:       testutil.TestUsername,
			Body:           body,
			ExpectedStatus: http.StatusCreated,
			Validate: func(t *testing.T, tc *testutil.TestContext) {
				data := testutil.ResponseData(t, tc)
				assert.Equal(t, testutil.TestUsername, data["username"])
				assert.Equal(t, "WAITING_APPROVAL", data["status_name"])
				assert.Len(t, orders.Orders, 1)
			},
		})
	})

	t.Run("second active order is refused", func(t *testing.T) {
		orders := testutil.NewNodeOrderRepository(existingOrder(t, testutil.TestUsername, hosting.OrderStatusApproved))
		testutil.RunHTTPTestCase(t, newOrderHandler(orders).CreateMyOrder, testutil.HTTPTestCase{
			Method:         http.MethodPost,
			Username:       testutil.TestUsername,
			Body:           body,
			ExpectedStatus: http.StatusConflict,
			ExpectedCode:   "ORDER_ALREADY_EXISTS",
			Validate: func(t *testing.T, tc *testutil.TestContext) {
				assert.Len(t, orders.Orders, 1)
				assert.Equal(t, []effect.Type{effect.TypeOrderRefusedMessage}, orders.Types())
			},
		})
	})

	t.Run("billing address is required", func(t *testing.T) {
		orders := testutil.NewNodeOrderRepository()
		testutil.RunHTTPTestCase(t, newOrderHandler(orders).CreateMyOrder, testutil.HTTPTestCase{
			Method:         http.MethodPost,
			Username:       testutil.TestUsername,
			Body:           map[string]any{"billing_info": map[string]string{"name": "Alice"}},
			ExpectedStatus: http.StatusBadRequest,
			ExpectedCode:   dto.ErrCodeValidation,
		})
		assert.Empty(t, orders.Orders)
	})
}

func TestOrderHandler_UpdateOrderStatus(t *testing.T) {
	status := func(s hosting.OrderStatus) map[string]int { return map[string]int{"status": int(s)} }
	approved := existingOrder(t, "alice", hosting.OrderStatusApproved)
	canceled := existingOrder(t, "bob", hosting.OrderStatusCanceled)
	orders := testutil.NewNodeOrderRepository(approved, canceled)
	h := newOrderHandler(orders)

	testutil.RunHTTPTestCases(t, h.UpdateOrderStatus, []testutil.HTTPTestCase{
		{
			Name:           "transition outside the table",
			Method:         http.MethodPut,
			Params:         map[string]string{"id": approved.ID.String()},
			Body:           status(hosting.OrderStatusSent),
			ExpectedStatus: http.StatusUnprocessableEntity,
			ExpectedCode:   "CANNOT_CHANGE_STATUS",
		},
		{
			Name:           "status an administrator cannot set",
			Method:         http.MethodPut,
			Params:         map[string]string{"id": approved.ID.String()},
			Body:           status(hosting.OrderStatusArrived),
			ExpectedStatus: http.StatusUnprocessableEntity,
			ExpectedCode:   "INVALID_STATUS",
		},
		{
			Name:           "canceled order",
			Method:         http.MethodPut,
			Params:         map[string]string{"id": canceled.ID.String()},
			Body:           status(hosting.OrderStatusApproved),
			ExpectedStatus: http.StatusUnprocessableEntity,
			ExpectedCode:   "ORDER_CANCELED",
		},
		{
			Name:           "unknown status",
			Method:         http.MethodPut,
			Params:         map[string]string{"id": approved.ID.String()},
			Body:           map[string]int{"status": 9},
			ExpectedStatus: http.StatusBadRequest,
			ExpectedCode:   dto.ErrCodeValidation,
		},
		{
			Name:           "missing order",
			Method:         http.MethodPut,
			Params:         map[string]string{"id": testutil.NewTestUUID("missing-order").String()},
			Body:           status(hosting.OrderStatusCanceled),
			ExpectedStatus: http.StatusNotFound,
			ExpectedCode:   dto.ErrCodeNotFound,
		},
		{
			Name:           "malformed id",
			Method:         http.MethodPut,
			Params:         map[string]string{"id": "42"},
			Body:           status(hosting.OrderStatusCanceled),
			ExpectedStatus: http.StatusBadRequest,
			ExpectedCode:   dto.ErrCodeInvalidInput,
		},
		{
			Name:           "cancels an approved order",
			Method:         http.MethodPut,
			Params:         map[string]string{"id": approved.ID.String()},
			Body:           status(hosting.OrderStatusCanceled),
			ExpectedStatus: http.StatusOK,
			Validate: func(t *testing.T, tc *testutil.TestContext) {
				assert.Equal(t, "CANCELED", testutil.ResponseData(t, tc)["status_name"])
				assert.Equal(t, hosting.OrderStatusCanceled, orders.Orders[approved.ID].Status)
			},
		},
	})
}

func TestOrderHandler_OrderSignResult(t *testing.T) {
	order := existingOrder(t, "alice", hosting.OrderStatusApproved)
	orders := testutil.NewNodeOrderRepository(order)
	h := newOrderHandler(orders)

	testutil.RunHTTPTestCases(t, h.OrderSignResult, []testutil.HTTPTestCase{
		{
			Name:           "accepted without signature",
			Method:         http.MethodPost,
			Params:         map[string]string{"id": order.ID.String()},
			Body:           map[string]any{"accepted": true},
			ExpectedStatus: http.StatusBadRequest,
			ExpectedCode:   dto.ErrCodeValidation,
		},
		{
			Name:           "signs the order",
			Method:         http.MethodPost,
			Params:         map[string]string{"id": order.ID.String()},
			Body:           map[string]any{"accepted": true, "signature": "c2lnbmF0dXJl", "payload": "cGF5bG9hZA=="},
			ExpectedStatus: http.StatusOK,
			Validate: func(t *testing.T, tc *testutil.TestContext) {
				assert.Equal(t, "SIGNED", testutil.ResponseData(t, tc)["status_name"])
				assert.Equal(t, "c2lnbmF0dXJl", orders.Orders[order.ID].Signature)
			},
		},
		{
			Name:           "second signature",
			Method:         http.MethodPost,
			Params:         map[string]string{"id": order.ID.String()},
			Body:           map[string]any{"accepted": true, "signature": "c2lnbmF0dXJl"},
			ExpectedStatus: http.StatusUnprocessableEntity,
			ExpectedCode:   "CANNOT_CHANGE_STATUS",
		},
	})
}

func TestOrderHandler_ListMyOrders(t *testing.T) {
	orders := testutil.NewNodeOrderRepository(
		existingOrder(t, testutil.TestUsername, hosting.OrderStatusApproved),
		existingOrder(t, "someone.else", hosting.OrderStatusApproved),
	)

	testutil.RunHTTPTestCase(t, newOrderHandler(orders).ListMyOrders, testutil.HTTPTestCase{
		Username:       testutil.TestUsername,
		ExpectedStatus: http.StatusOK,
		Validate: func(t *testing.T, tc *testutil.TestContext) {
			items, ok := testutil.JSONResponse(t, tc)["data"].([]any)
			require.True(t, ok)
			require.Len(t, items, 1)
			assert.Equal(t, testutil.TestUsername, items[0].(map[string]any)["username"])
		},
	})
}
