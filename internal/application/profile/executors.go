package profile

import (
	"context"

	"github.com/tffhost/backend/internal/domain/effect"
	"github.com/tffhost/backend/internal/domain/integration"
	"github.com/tffhost/backend/internal/domain/profile"
)

const (
	kycFlowTag         = "kyc_part_1"
	kycPushMessage     = "KYC procedure has been initiated"
	kycApprovedSubject = "KYC procedure approved"
	kycApprovedBody    = "Dear ThreeFold Member,\n\n" +
		"Your identity has been verified. You can now continue on the ThreeFold app.\n" +
		"Kind regards,\nThe ThreeFold Team"
)

// Executors runs the KYC side effects
type Executors struct {
	repo    profile.Repository
	members integration.MemberDirectory
	chat    integration.Chat
	kycFlow string
}

// NewExecutors creates the KYC effect executors. kycFlow is the chat flow that
// collects the KYC information.
func NewExecutors(repo profile.Repository, members integration.MemberDirectory, chat integration.Chat, kycFlow string) *Executors {
	return &Executors{repo: repo, members: members, chat: chat, kycFlow: kycFlow}
}

// Register returns the executors keyed by effect type
func (e *Executors) Register() map[effect.Type]effect.Executor {
	return map[effect.Type]effect.Executor{
		effect.TypeKYCFlowMessage:     effect.ExecutorFunc(e.startKYCFlow),
		effect.TypeKYCApprovedMessage: effect.ExecutorFunc(e.sendApproved),
		effect.TypeUserDataKYC:        effect.ExecutorFunc(e.putKYCInUserData),
	}
}

func (e *Executors) startKYCFlow(ctx context.Context, task *effect.Task) error {
	var payload effect.KYCFlow
	if err := task.DecodePayload(&payload); err != nil {
		return err
	}
	member, err := e.members.Member(ctx, payload.Username)
	if err != nil {
		return err
	}
	return e.chat.StartFlow(ctx, member, integration.Flow{
		Tag:         kycFlowTag,
		Flow:        e.kycFlow,
		PushMessage: kycPushMessage,
		Params:      map[string]any{"message": payload.Comment},
	})
}

func (e *Executors) sendApproved(ctx context.Context, task *effect.Task) error {
	var ref effect.UserRef
	if err := task.DecodePayload(&ref); err != nil {
		return err
	}
	member, err := e.members.Member(ctx, ref.Username)
	if err != nil {
		return err
	}
	return e.chat.SendMessage(ctx, member, kycApprovedSubject, kycApprovedBody)
}

func (e *Executors) putKYCInUserData(ctx context.Context, task *effect.Task) error {
	var ref effect.UserRef
	if err := task.DecodePayload(&ref); err != nil {
		return err
	}
	p, err := e.repo.FindByUsername(ctx, ref.Username)
	if err != nil {
		return err
	}
	member, err := e.members.Member(ctx, ref.Username)
	if err != nil {
		return err
	}
	return e.chat.PutUserData(ctx, member, map[string]any{
		"kyc": map[string]any{
			"status":           int(p.KYC.Status),
			"verified":         p.IsVerified(),
			"has_utility_bill": p.KYC.UtilityBillURL != "",
		},
	})
}
