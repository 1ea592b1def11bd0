package hosting

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/tffhost/backend/internal/domain/effect"
	"github.com/tffhost/backend/internal/domain/hosting"
	"github.com/tffhost/backend/internal/domain/integration"
	"github.com/tffhost/backend/internal/domain/shared"
	"go.uber.org/zap"
)

const (
	hosterRole     = "hoster"
	signFlowTag    = "sign_hosting_agreement"
	signLinkTTL    = 7 * 24 * time.Hour
	signPush       = "Please sign your hosting agreement"
	memberGreeting = "Dear ThreeFold Member,\n\n"
	memberClosing  = "\nKind regards,\nThe ThreeFold Team"
)

// ExecutorOptions configures the node order executors
type ExecutorOptions struct {
	DocumentSecret []byte
	// SignFlow is the chat flow that collects the agreement signature
	SignFlow string
}

// Executors runs the node order side effects
type Executors struct {
	orders    hosting.NodeOrderRepository
	members   integration.MemberDirectory
	chat      integration.Chat
	crm       integration.CRM
	erp       integration.ERP
	documents integration.DocumentStore
	renderer  integration.AgreementRenderer
	opts      ExecutorOptions
	logger    *zap.Logger
}

// NewExecutors creates the node order effect executors
func NewExecutors(
	orders hosting.NodeOrderRepository,
	members integration.MemberDirectory,
	chat integration.Chat,
	crm integration.CRM,
	erp integration.ERP,
	documents integration.DocumentStore,
	renderer integration.AgreementRenderer,
	opts ExecutorOptions,
	logger *zap.Logger,
) *Executors {
	return &Executors{
		orders:    orders,
		members:   members,
		chat:      chat,
		crm:       crm,
		erp:       erp,
		documents: documents,
		renderer:  renderer,
		opts:      opts,
		logger:    logger,
	}
}

// Register returns the executors keyed by effect type
func (e *Executors) Register() map[effect.Type]effect.Executor {
	progress := effect.ExecutorFunc(e.putProgress)
	return map[effect.Type]effect.Executor{
		effect.TypeAgreementDocument:     effect.ExecutorFunc(e.generateAgreement),
		effect.TypeERPCreateQuotation:    effect.ExecutorFunc(e.createQuotation),
		effect.TypeSignAgreementMessage:  effect.ExecutorFunc(e.sendSignAgreement),
		effect.TypeERPCancelQuotation:    effect.ExecutorFunc(e.cancelQuotation),
		effect.TypeERPConfirmQuotation:   effect.ExecutorFunc(e.confirmQuotation),
		effect.TypeOrderSentMessage:      effect.ExecutorFunc(e.sendOrderSent),
		effect.TypeOrderRefusedMessage:   effect.ExecutorFunc(e.sendOrderRefused),
		effect.TypeSupportNewOrder:       effect.ExecutorFunc(e.notifySupport),
		effect.TypeChatRoleHoster:        effect.ExecutorFunc(e.addHosterRole),
		effect.TypeCRMTagHoster:          effect.ExecutorFunc(e.tagHoster),
		effect.TypeUserDataHoster:        effect.ExecutorFunc(e.putHosterInUserData),
		effect.TypeHosterProgressAddress: progress,
		effect.TypeHosterProgressSign:    progress,
		effect.TypeHosterProgressSent:    progress,
		effect.TypeHosterProgressPowered: progress,
		effect.TypeHosterProgressReset:   progress,
	}
}

func (e *Executors) order(ctx context.Context, task *effect.Task) (*hosting.NodeOrder, error) {
	var ref effect.OrderRef
	if err := task.DecodePayload(&ref); err != nil {
		return nil, err
	}
	id, err := uuid.Parse(ref.OrderID)
	if err != nil {
		return nil, effect.Permanent(err)
	}
	return e.orders.FindByID(ctx, id)
}

func (e *Executors) skip(task *effect.Task, order *hosting.NodeOrder) error {
	e.logger.Info("Skipping effect for node order",
		zap.String("effect_type", string(task.EffectType)),
		zap.String("order_id", order.ID.String()),
		zap.String("status", order.Status.String()),
	)
	return nil
}

// generateAgreement renders and stores the hosting agreement, then continues the chain
// with the ERP quotation.
func (e *Executors) generateAgreement(ctx context.Context, task *effect.Task) error {
	order, err := e.order(ctx, task)
	if err != nil {
		return err
	}
	if order.Status != hosting.OrderStatusApproved {
		return e.skip(task, order)
	}

	now := time.Now()
	if order.DocumentKey == "" {
		pdf, err := e.renderer.RenderHostingAgreement(ctx, integration.HostingAgreement{
			OrderReference: order.HumanReadableID(),
			Name:           order.BillingInfo.Name,
			Address:        order.BillingInfo.Address,
			Email:          order.BillingInfo.Email,
			Socket:         order.Socket,
			Date:           order.OrderTime,
		})
		if err != nil {
			return fmt.Errorf("render hosting agreement: %w", err)
		}
		key, err := shared.DocumentKey(hosting.DocumentPrefix, order.ID.String(), e.opts.DocumentSecret)
		if err != nil {
			return effect.Permanent(err)
		}
		if err := e.documents.Put(ctx, key, pdf, "application/pdf"); err != nil {
			return err
		}
		order.AttachDocument(key, now)
	}

	plan := effect.NewPlan()
	if !order.HasSaleOrder() {
		plan.Add(order.ID.String(), effect.TypeERPCreateQuotation, effect.OrderRef{OrderID: order.ID.String()})
	}
	plan.Add(order.Username, effect.TypeHosterProgressAddress, effect.HosterProgress{Username: order.Username, Step: effect.HosterStepFlowAddress})
	tasks, err := plan.Tasks()
	if err != nil {
		return err
	}
	return e.orders.SaveWithEffects(ctx, order, tasks)
}

// createQuotation creates the ERP quotation of an approved order. Saving the sale order
// id plans the sign flow.
func (e *Executors) createQuotation(ctx context.Context, task *effect.Task) error {
	order, err := e.order(ctx, task)
	if err != nil {
		return err
	}
	if order.IsCanceled() || order.HasSaleOrder() {
		return e.skip(task, order)
	}

	saleOrderID, err := e.erp.CreateQuotation(ctx, integration.QuotationRequest{
		Reference: order.HumanReadableID(),
		Socket:    order.Socket,
		Billing:   order.BillingInfo,
		Shipping:  order.ShippingInfo,
	})
	if err != nil {
		return err
	}
	if err := order.AttachSaleOrder(saleOrderID, time.Now()); err != nil {
		return effect.Permanent(err)
	}
	tasks, err := PlanEffects(order, order.GetDomainEvents())
	if err != nil {
		return err
	}
	if err := e.orders.SaveWithEffects(ctx, order, tasks); err != nil {
		return err
	}
	order.ClearDomainEvents()
	e.logger.Info("ERP quotation created",
		zap.String("order_id", order.ID.String()),
		zap.Int64("sale_order_id", saleOrderID),
	)
	return nil
}

func (e *Executors) sendSignAgreement(ctx context.Context, task *effect.Task) error {
	order, err := e.order(ctx, task)
	if err != nil {
		return err
	}
	if order.Status != hosting.OrderStatusApproved {
		return e.skip(task, order)
	}
	if order.DocumentKey == "" {
		return fmt.Errorf("order %s has no agreement document yet", order.ID)
	}
	url, err := e.documents.URL(ctx, order.DocumentKey, signLinkTTL)
	if err != nil {
		return err
	}
	member, err := e.members.Member(ctx, order.Username)
	if err != nil {
		return err
	}
	ref := order.HumanReadableID()
	return e.chat.StartFlow(ctx, member, integration.Flow{
		Tag:         signFlowTag,
		Flow:        e.opts.SignFlow,
		PushMessage: signPush,
		Params: map[string]any{
			"order_id":  order.ID.String(),
			"reference": ref,
		},
		Attachments: []integration.Attachment{{
			Name:        "hosting-agreement-" + ref + ".pdf",
			URL:         url,
			ContentType: "application/pdf",
		}},
	})
}

func (e *Executors) cancelQuotation(ctx context.Context, task *effect.Task) error {
	var q effect.Quotation
	if err := task.DecodePayload(&q); err != nil {
		return err
	}
	return e.erp.CancelQuotation(ctx, q.SaleOrderID)
}

func (e *Executors) confirmQuotation(ctx context.Context, task *effect.Task) error {
	var q effect.Quotation
	if err := task.DecodePayload(&q); err != nil {
		return err
	}
	return e.erp.ConfirmQuotation(ctx, q.SaleOrderID)
}

func (e *Executors) sendOrderSent(ctx context.Context, task *effect.Task) error {
	order, err := e.order(ctx, task)
	if err != nil {
		return err
	}
	member, err := e.members.Member(ctx, order.Username)
	if err != nil {
		return err
	}
	body := memberGreeting +
		fmt.Sprintf("Your node order %s has been shipped. Connect the node to power and network when it arrives.\n", order.HumanReadableID()) +
		memberClosing
	return e.chat.SendMessage(ctx, member, "Your node has been shipped", body)
}

func (e *Executors) sendOrderRefused(ctx context.Context, task *effect.Task) error {
	var ref effect.UserRef
	if err := task.DecodePayload(&ref); err != nil {
		return err
	}
	member, err := e.members.Member(ctx, ref.Username)
	if err != nil {
		return err
	}
	body := memberGreeting +
		"We could not accept your node order: an order already exists for your account or billing address.\n" +
		memberClosing
	return e.chat.SendMessage(ctx, member, "Your node order could not be placed", body)
}

func (e *Executors) notifySupport(ctx context.Context, task *effect.Task) error {
	order, err := e.order(ctx, task)
	if err != nil {
		return err
	}
	if order.Status != hosting.OrderStatusWaitingApproval {
		return e.skip(task, order)
	}
	subject := fmt.Sprintf("Node order %s is waiting for approval", order.HumanReadableID())
	body := fmt.Sprintf("User %s (%s, %s) ordered a node. Check their investments and approve or cancel order %s.",
		order.Username, order.BillingInfo.Name, order.BillingInfo.Email, order.ID)
	return e.chat.NotifySupport(ctx, subject, body)
}

func (e *Executors) addHosterRole(ctx context.Context, task *effect.Task) error {
	var ref effect.UserRef
	if err := task.DecodePayload(&ref); err != nil {
		return err
	}
	member, err := e.members.Member(ctx, ref.Username)
	if err != nil {
		return err
	}
	return e.chat.AddRole(ctx, member, hosterRole)
}

func (e *Executors) tagHoster(ctx context.Context, task *effect.Task) error {
	var tags effect.Tags
	if err := task.DecodePayload(&tags); err != nil {
		return err
	}
	if len(tags.Tags) == 0 {
		return nil
	}
	member, err := e.members.Member(ctx, tags.Username)
	if err != nil {
		return err
	}
	return e.crm.TagUser(ctx, tags.Username, member.Email, tags.Tags)
}

func (e *Executors) putHosterInUserData(ctx context.Context, task *effect.Task) error {
	var data effect.HosterData
	if err := task.DecodePayload(&data); err != nil {
		return err
	}
	canOrder := data.CanOrder
	if canOrder == nil {
		active, err := e.activeOrder(ctx, data.Username)
		if err != nil {
			return err
		}
		b := active == nil
		canOrder = &b
	}
	member, err := e.members.Member(ctx, data.Username)
	if err != nil {
		return err
	}
	return e.chat.PutUserData(ctx, member, map[string]any{
		"hoster": map[string]any{"can_order": *canOrder},
	})
}

// putProgress publishes the hoster to-do list. Every progress effect publishes the
// whole list, derived from the user's active order, so their execution order does
// not matter.
func (e *Executors) putProgress(ctx context.Context, task *effect.Task) error {
	var p effect.HosterProgress
	if err := task.DecodePayload(&p); err != nil {
		return err
	}
	active, err := e.activeOrder(ctx, p.Username)
	if err != nil {
		return err
	}
	member, err := e.members.Member(ctx, p.Username)
	if err != nil {
		return err
	}
	return e.chat.PutUserData(ctx, member, map[string]any{"hoster_progress": Progress(active)})
}

// Progress returns the hoster to-do list of an order. A nil order has no step done.
func Progress(order *hosting.NodeOrder) map[effect.HosterStep]bool {
	progress := map[effect.HosterStep]bool{
		effect.HosterStepFlowAddress: false,
		effect.HosterStepFlowSign:    false,
		effect.HosterStepNodeSent:    false,
		effect.HosterStepNodePowered: false,
	}
	if order == nil {
		return progress
	}
	progress[effect.HosterStepFlowAddress] = order.DocumentKey != ""
	progress[effect.HosterStepFlowSign] = order.SignTime != nil
	progress[effect.HosterStepNodeSent] = order.SendTime != nil
	progress[effect.HosterStepNodePowered] = order.ArrivalTime != nil
	return progress
}

// activeOrder returns the latest non-canceled order of a user, or nil
func (e *Executors) activeOrder(ctx context.Context, username string) (*hosting.NodeOrder, error) {
	orders, err := e.orders.FindByUsername(ctx, username)
	if err != nil {
		return nil, err
	}
	var active *hosting.NodeOrder
	for i := range orders {
		o := &orders[i]
		if o.IsCanceled() {
			continue
		}
		if active == nil || o.OrderTime.After(active.OrderTime) {
			active = o
		}
	}
	return active, nil
}
