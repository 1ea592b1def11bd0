// Package hosting runs the node order flow: ordering, approval, the hosting agreement
// chain, administration and the detection of nodes coming online.
package hosting

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	nodeapp "github.com/tffhost/backend/internal/application/node"
	"github.com/tffhost/backend/internal/domain/effect"
	"github.com/tffhost/backend/internal/domain/hosting"
	"github.com/tffhost/backend/internal/domain/integration"
	"github.com/tffhost/backend/internal/domain/node"
	"github.com/tffhost/backend/internal/domain/shared"
	"github.com/tffhost/backend/internal/infrastructure/telemetry"
	"go.uber.org/zap"
)

// Defaults of Options
const (
	DefaultRequiredTokens = 120
	DefaultOnlineAfter    = 14 * 24 * time.Hour
)

// TokenLedger returns the tokens a user paid for
type TokenLedger interface {
	PaidTokenTotal(ctx context.Context, username string) (decimal.Decimal, error)
}

// NodeAssigner assigns fleet nodes to users
type NodeAssigner interface {
	AssignNodes(ctx context.Context, username string, inputs []nodeapp.AssignNodeInput) ([]nodeapp.NodeResponse, error)
	ListForUser(ctx context.Context, username string) ([]nodeapp.NodeResponse, error)
}

// Enqueuer enqueues tasks that do not belong to an aggregate write
type Enqueuer interface {
	Enqueue(ctx context.Context, tasks ...*effect.Task) error
}

// Options configures the hosting service
type Options struct {
	// RequiredTokens is the paid token total that approves an order automatically
	RequiredTokens decimal.Decimal
	// OnlineAfter is how long after shipping an order is checked for online nodes
	OnlineAfter    time.Duration
	DocumentSecret []byte
}

// Service handles node order operations
type Service struct {
	orders          hosting.NodeOrderRepository
	ledger          TokenLedger
	queue           Enqueuer
	nodes           NodeAssigner
	erp             integration.ERP
	fleet           integration.Fleet
	documents       integration.DocumentStore
	opts            Options
	logger          *zap.Logger
	businessMetrics *telemetry.BusinessMetrics
}

// NewService creates a new hosting service
func NewService(
	orders hosting.NodeOrderRepository,
	ledger TokenLedger,
	queue Enqueuer,
	nodes NodeAssigner,
	erp integration.ERP,
	fleet integration.Fleet,
	documents integration.DocumentStore,
	opts Options,
	logger *zap.Logger,
) *Service {
	if opts.RequiredTokens.IsZero() {
		opts.RequiredTokens = decimal.NewFromInt(DefaultRequiredTokens)
	}
	if opts.OnlineAfter <= 0 {
		opts.OnlineAfter = DefaultOnlineAfter
	}
	return &Service{
		orders:    orders,
		ledger:    ledger,
		queue:     queue,
		nodes:     nodes,
		erp:       erp,
		fleet:     fleet,
		documents: documents,
		opts:      opts,
		logger:    logger,
	}
}

// SetBusinessMetrics sets the business metrics collector
func (s *Service) SetBusinessMetrics(bm *telemetry.BusinessMetrics) {
	s.businessMetrics = bm
}

// CreateOrder creates the node order of a user. A user or billing address can only
// have one active order; refused requests are answered in the chat.
func (s *Service) CreateOrder(ctx context.Context, req CreateOrderRequest) (*OrderResponse, error) {
	exists, err := s.orders.ExistsActiveForUserOrAddress(ctx, req.Username, req.BillingInfo.Address)
	if err != nil {
		return nil, err
	}
	if exists {
		refused, err := effect.NewTask(req.Username, effect.TypeOrderRefusedMessage, effect.UserRef{Username: req.Username})
		if err != nil {
			return nil, err
		}
		if err := s.queue.Enqueue(ctx, refused); err != nil {
			return nil, err
		}
		return nil, hosting.ErrOrderExists
	}

	paid, err := s.ledger.PaidTokenTotal(ctx, req.Username)
	if err != nil {
		return nil, err
	}
	number, err := s.orders.NextNumber(ctx)
	if err != nil {
		return nil, err
	}
	var shipping hosting.ContactInfo
	if req.ShippingInfo != nil {
		shipping = req.ShippingInfo.toDomain()
	}
	order, err := hosting.NewNodeOrder(number, req.Username, req.BillingInfo.toDomain(), shipping, req.Socket,
		paid.GreaterThanOrEqual(s.opts.RequiredTokens), time.Now())
	if err != nil {
		return nil, err
	}
	if err := s.save(ctx, order); err != nil {
		return nil, err
	}

	s.logger.Info("Node order created",
		zap.String("order_id", order.ID.String()),
		zap.String("username", order.Username),
		zap.String("status", order.Status.String()),
		zap.String("paid_tokens", paid.String()),
	)
	resp := ToOrderResponse(order)
	return &resp, nil
}

// Get returns one order
func (s *Service) Get(ctx context.Context, id uuid.UUID) (*OrderResponse, error) {
	order, err := s.orders.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	resp := ToOrderResponse(order)
	return &resp, nil
}

// List lists orders with an optional status filter
func (s *Service) List(ctx context.Context, filter OrderListFilter) (*shared.Paginated[OrderResponse], error) {
	f := shared.DefaultFilter()
	if filter.Page > 0 {
		f.Page = filter.Page
	}
	if filter.PageSize > 0 {
		f.PageSize = filter.PageSize
	}
	if filter.Status != nil {
		status := hosting.OrderStatus(*filter.Status)
		if !status.IsValid() {
			return nil, hosting.ErrInvalidStatus
		}
		f.Filters["status"] = status
	}

	orders, total, err := s.orders.FindAll(ctx, f)
	if err != nil {
		return nil, err
	}
	items := make([]OrderResponse, len(orders))
	for i := range orders {
		items[i] = ToOrderResponse(&orders[i])
	}
	result := shared.NewPaginated(items, total, f.Page, f.PageSize)
	return &result, nil
}

// ListForUser returns every order of a user
func (s *Service) ListForUser(ctx context.Context, username string) ([]OrderResponse, error) {
	orders, err := s.orders.FindByUsername(ctx, username)
	if err != nil {
		return nil, err
	}
	items := make([]OrderResponse, len(orders))
	for i := range orders {
		items[i] = ToOrderResponse(&orders[i])
	}
	return items, nil
}

// UpdateStatus applies an administrator's status change
func (s *Service) UpdateStatus(ctx context.Context, id uuid.UUID, status hosting.OrderStatus) (*OrderResponse, error) {
	order, err := s.orders.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if status == hosting.OrderStatusSent && !order.IsCanceled() && order.Status.CanTransitionTo(status) {
		if err := s.requireSerialNumbers(ctx, order); err != nil {
			return nil, err
		}
	}

	changed, err := order.UpdateStatusByAdmin(status, time.Now())
	if err != nil {
		return nil, err
	}
	if changed {
		if err := s.save(ctx, order); err != nil {
			return nil, err
		}
		s.logger.Info("Node order status updated",
			zap.String("order_id", order.ID.String()),
			zap.String("status", order.Status.String()),
		)
	}
	resp := ToOrderResponse(order)
	return &resp, nil
}

// requireSerialNumbers checks that the ERP assigned nodes to the sale order
func (s *Service) requireSerialNumbers(ctx context.Context, order *hosting.NodeOrder) error {
	if !order.HasSaleOrder() {
		return hosting.ErrNoSerialNumber
	}
	nodes, err := s.erp.NodesForSaleOrder(ctx, order.SaleOrderID)
	if err != nil {
		return err
	}
	if len(nodes) == 0 {
		return hosting.ErrNoSerialNumber
	}
	return nil
}

// SignResult records the outcome of the hosting agreement sign flow
func (s *Service) SignResult(ctx context.Context, id uuid.UUID, req SignResultRequest) (*OrderResponse, error) {
	order, err := s.orders.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	now := time.Now()
	if req.Accepted {
		err = order.Sign(req.Signature, req.Payload, now)
	} else {
		err = order.TransitionTo(hosting.OrderStatusCanceled, now)
	}
	if err != nil {
		return nil, err
	}
	if err := s.save(ctx, order); err != nil {
		return nil, err
	}
	resp := ToOrderResponse(order)
	return &resp, nil
}

// ImportOrder registers an order that was created in the ERP directly. The nodes of the
// sale order are assigned to the user before the order itself is saved.
func (s *Service) ImportOrder(ctx context.Context, req ImportOrderRequest) (*OrderResponse, error) {
	exists, err := s.orders.ExistsBySaleOrder(ctx, req.SaleOrderID)
	if err != nil {
		return nil, err
	}
	if exists {
		return nil, hosting.ErrOrderExists
	}
	erpNodes, err := s.erp.NodesForSaleOrder(ctx, req.SaleOrderID)
	if err != nil {
		return nil, err
	}
	if len(erpNodes) == 0 {
		return nil, hosting.ErrNoSerialNumber
	}
	content, err := shared.DecodePDFDataURL(req.Document)
	if err != nil {
		return nil, err
	}

	number, err := s.orders.NextNumber(ctx)
	if err != nil {
		return nil, err
	}
	now := time.Now()
	in := hosting.ImportedOrder{
		Number:      number,
		Username:    req.Username,
		BillingInfo: req.BillingInfo.toDomain(),
		Status:      hosting.OrderStatus(*req.Status),
		Socket:      req.Socket,
		SaleOrderID: req.SaleOrderID,
		SignTime:    req.SignTime,
		SendTime:    req.SendTime,
		ArrivalTime: req.ArrivalTime,
	}
	if req.ShippingInfo != nil {
		in.ShippingInfo = req.ShippingInfo.toDomain()
	}
	if req.OrderTime != nil {
		in.OrderTime = *req.OrderTime
	}
	order, err := hosting.ImportNodeOrder(in, now)
	if err != nil {
		return nil, err
	}

	key, err := shared.DocumentKey(hosting.DocumentPrefix, order.ID.String(), s.opts.DocumentSecret)
	if err != nil {
		return nil, err
	}
	if err := s.documents.Put(ctx, key, content, "application/pdf"); err != nil {
		return nil, err
	}
	order.AttachDocument(key, now)

	if _, err := s.assignMissingNodes(ctx, order.Username, erpNodes, s.fleetStatuses(ctx, erpNodes)); err != nil {
		return nil, err
	}
	if err := s.save(ctx, order); err != nil {
		return nil, err
	}

	s.logger.Info("Node order imported",
		zap.String("order_id", order.ID.String()),
		zap.Int64("sale_order_id", order.SaleOrderID),
		zap.String("username", order.Username),
		zap.Int("nodes", len(erpNodes)),
	)
	resp := ToOrderResponse(order)
	return &resp, nil
}

// CheckOnlineOrders looks at orders shipped long enough ago and marks them arrived once
// every node of the sale order reports running. Nodes found on the way are assigned to
// the owner of the order.
func (s *Service) CheckOnlineOrders(ctx context.Context, now time.Time) (*OnlineCheckResult, error) {
	orders, err := s.orders.FindSentBefore(ctx, now.Add(-s.opts.OnlineAfter))
	if err != nil {
		return nil, err
	}

	result := &OnlineCheckResult{}
	for i := range orders {
		order := &orders[i]
		result.Checked++
		arrived, err := s.checkOnline(ctx, order, now)
		if err != nil {
			result.Failed++
			s.logger.Error("Failed to check node order online status",
				zap.String("order_id", order.ID.String()),
				zap.Int64("sale_order_id", order.SaleOrderID),
				zap.Error(err),
			)
			continue
		}
		if arrived {
			result.Arrived++
		}
	}

	s.logger.Info("Online orders checked",
		zap.Int("checked", result.Checked),
		zap.Int("arrived", result.Arrived),
		zap.Int("failed", result.Failed),
	)
	return result, nil
}

func (s *Service) checkOnline(ctx context.Context, order *hosting.NodeOrder, now time.Time) (bool, error) {
	if !order.HasSaleOrder() {
		return false, nil
	}
	erpNodes, err := s.erp.NodesForSaleOrder(ctx, order.SaleOrderID)
	if err != nil {
		return false, err
	}
	if len(erpNodes) == 0 {
		return false, nil
	}
	ids := make([]string, len(erpNodes))
	for i, n := range erpNodes {
		ids[i] = n.ID
	}
	statuses, err := s.fleet.NodeStatuses(ctx, ids)
	if err != nil {
		return false, err
	}
	if _, err := s.assignMissingNodes(ctx, order.Username, erpNodes, statuses); err != nil {
		return false, err
	}

	for _, id := range ids {
		if statuses[id] != node.StatusRunning {
			return false, nil
		}
	}
	if err := order.MarkArrived(now); err != nil {
		return false, err
	}
	if err := s.save(ctx, order); err != nil {
		return false, err
	}
	s.logger.Info("Node order arrived",
		zap.String("order_id", order.ID.String()),
		zap.Strings("node_ids", ids),
	)
	return true, nil
}

// fleetStatuses returns the fleet status of the nodes. The fleet being unreachable
// only degrades the initial status to halted.
func (s *Service) fleetStatuses(ctx context.Context, erpNodes []integration.ERPNode) map[string]node.Status {
	ids := make([]string, len(erpNodes))
	for i, n := range erpNodes {
		ids[i] = n.ID
	}
	statuses, err := s.fleet.NodeStatuses(ctx, ids)
	if err != nil {
		s.logger.Warn("Failed to fetch fleet statuses", zap.Strings("node_ids", ids), zap.Error(err))
		return map[string]node.Status{}
	}
	return statuses
}

// assignMissingNodes assigns the ERP nodes the user does not own yet
func (s *Service) assignMissingNodes(ctx context.Context, username string, erpNodes []integration.ERPNode, statuses map[string]node.Status) (int, error) {
	owned, err := s.nodes.ListForUser(ctx, username)
	if err != nil {
		return 0, err
	}
	known := make(map[string]bool, len(owned))
	for _, n := range owned {
		known[n.ID] = true
	}

	var inputs []nodeapp.AssignNodeInput
	for _, n := range erpNodes {
		if known[n.ID] {
			continue
		}
		status, ok := statuses[n.ID]
		if !ok {
			status = node.StatusHalted
		}
		inputs = append(inputs, nodeapp.AssignNodeInput{ID: n.ID, SerialNumber: n.SerialNumber, Status: status})
	}
	if len(inputs) == 0 {
		return 0, nil
	}
	if _, err := s.nodes.AssignNodes(ctx, username, inputs); err != nil {
		return 0, err
	}
	return len(inputs), nil
}

func (s *Service) save(ctx context.Context, order *hosting.NodeOrder) error {
	events := order.GetDomainEvents()
	tasks, err := PlanEffects(order, events)
	if err != nil {
		return err
	}
	if err := s.orders.SaveWithEffects(ctx, order, tasks); err != nil {
		return err
	}
	order.ClearDomainEvents()
	if s.businessMetrics != nil {
		for _, e := range events {
			if changed, ok := e.(*hosting.NodeOrderStatusChangedEvent); ok {
				s.businessMetrics.RecordOrderStatus(ctx, changed.ToStatus.String())
			}
		}
	}
	return nil
}

// PlanEffects maps node order events to their side effects
func PlanEffects(order *hosting.NodeOrder, events []shared.DomainEvent) ([]*effect.Task, error) {
	plan := effect.NewPlan()
	id := order.ID.String()
	username := order.Username
	ref := effect.OrderRef{OrderID: id}
	progress := func(t effect.Type, step effect.HosterStep) {
		plan.Add(username, t, effect.HosterProgress{Username: username, Step: step})
	}

	for _, e := range events {
		switch ev := e.(type) {
		case *hosting.NodeOrderCreatedEvent:
			canOrder := false
			plan.Add(username, effect.TypeUserDataHoster, effect.HosterData{Username: username, CanOrder: &canOrder})
			if ev.Status == hosting.OrderStatusApproved {
				plan.Add(id, effect.TypeAgreementDocument, ref)
			} else {
				plan.Add(id, effect.TypeSupportNewOrder, ref)
			}

		case *hosting.NodeOrderImportedEvent:
			plan.Add(username, effect.TypeUserDataHoster, effect.HosterData{Username: username})
			plan.Add(username, effect.TypeChatRoleHoster, effect.UserRef{Username: username})
			plan.Add(id, effect.TypeCRMTagHoster, effect.Tags{Username: username, Tags: hosting.TagsForOrder(order)})

		case *hosting.NodeOrderQuotationCreatedEvent:
			plan.Add(id, effect.TypeSignAgreementMessage, ref)

		case *hosting.NodeOrderStatusChangedEvent:
			switch ev.ToStatus {
			case hosting.OrderStatusCanceled:
				if ev.SaleOrderID > 0 {
					plan.Add(id, effect.TypeERPCancelQuotation, effect.Quotation{OrderID: id, SaleOrderID: ev.SaleOrderID})
				}
				progress(effect.TypeHosterProgressReset, "")
				plan.Add(username, effect.TypeUserDataHoster, effect.HosterData{Username: username})
			case hosting.OrderStatusApproved:
				plan.Add(id, effect.TypeAgreementDocument, ref)
			case hosting.OrderStatusSigned:
				plan.Add(username, effect.TypeChatRoleHoster, effect.UserRef{Username: username})
				progress(effect.TypeHosterProgressSign, effect.HosterStepFlowSign)
				plan.Add(id, effect.TypeCRMTagHoster, effect.Tags{Username: username, Tags: hosting.TagsForOrder(order)})
			case hosting.OrderStatusPaid:
				if ev.SaleOrderID > 0 {
					plan.Add(id, effect.TypeERPConfirmQuotation, effect.Quotation{OrderID: id, SaleOrderID: ev.SaleOrderID})
				}
			case hosting.OrderStatusSent:
				progress(effect.TypeHosterProgressSent, effect.HosterStepNodeSent)
				plan.Add(id, effect.TypeOrderSentMessage, ref)
			case hosting.OrderStatusArrived:
				progress(effect.TypeHosterProgressPowered, effect.HosterStepNodePowered)
			}
		}
	}
	return plan.Tasks()
}
