package investment

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/tffhost/backend/internal/domain/effect"
	"github.com/tffhost/backend/internal/domain/integration"
	"github.com/tffhost/backend/internal/domain/investment"
)

// Executors runs the investment side effects
type Executors struct {
	repo    investment.AgreementRepository
	members integration.MemberDirectory
	chat    integration.Chat
	crm     integration.CRM
}

// NewExecutors creates the investment effect executors
func NewExecutors(repo investment.AgreementRepository, members integration.MemberDirectory, chat integration.Chat, crm integration.CRM) *Executors {
	return &Executors{repo: repo, members: members, chat: chat, crm: crm}
}

// Register returns the executors keyed by effect type
func (e *Executors) Register() map[effect.Type]effect.Executor {
	return map[effect.Type]effect.Executor{
		effect.TypeCRMTagInvestor:        effect.ExecutorFunc(e.tagInvestor),
		effect.TypeSupportNewInvestment:  effect.ExecutorFunc(e.notifySupport),
		effect.TypeTokensAssignedMessage: effect.ExecutorFunc(e.sendTokensAssigned),
	}
}

func (e *Executors) agreement(ctx context.Context, task *effect.Task) (*investment.Agreement, error) {
	var ref effect.AgreementRef
	if err := task.DecodePayload(&ref); err != nil {
		return nil, err
	}
	id, err := uuid.Parse(ref.AgreementID)
	if err != nil {
		return nil, effect.Permanent(err)
	}
	return e.repo.FindByID(ctx, id)
}

func (e *Executors) tagInvestor(ctx context.Context, task *effect.Task) error {
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

func (e *Executors) notifySupport(ctx context.Context, task *effect.Task) error {
	a, err := e.agreement(ctx, task)
	if err != nil {
		return err
	}
	subject := fmt.Sprintf("New signed purchase agreement from %s", a.Username)
	body := fmt.Sprintf("User %s signed purchase agreement %s for %s %s (%s %s).",
		a.Username, a.ID, a.TokenCountDecimal().String(), a.Token, a.Amount.StringFixed(2), a.Currency)
	return e.chat.NotifySupport(ctx, subject, body)
}

func (e *Executors) sendTokensAssigned(ctx context.Context, task *effect.Task) error {
	a, err := e.agreement(ctx, task)
	if err != nil {
		return err
	}
	member, err := e.members.Member(ctx, a.Username)
	if err != nil {
		return err
	}
	subject := "Your tokens have been assigned"
	body := fmt.Sprintf("Dear ThreeFold Member,\n\n"+
		"We received your payment and %s %s have been assigned to your wallet.\n"+
		"Kind regards,\nThe ThreeFold Team", a.TokenCountDecimal().String(), a.Token)
	return e.chat.SendMessage(ctx, member, subject, body)
}
