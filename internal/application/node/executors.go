package node

import (
	"context"
	"fmt"

	"github.com/tffhost/backend/internal/domain/effect"
	"github.com/tffhost/backend/internal/domain/integration"
	"github.com/tffhost/backend/internal/domain/node"
	"go.uber.org/zap"
)

const notificationDateLayout = "2006-01-02 15:04:05"

// Executors runs the node side effects
type Executors struct {
	nodes   node.Repository
	members integration.MemberDirectory
	chat    integration.Chat
	logger  *zap.Logger
}

// NewExecutors creates the node effect executors
func NewExecutors(nodes node.Repository, members integration.MemberDirectory, chat integration.Chat, logger *zap.Logger) *Executors {
	return &Executors{nodes: nodes, members: members, chat: chat, logger: logger}
}

// Register returns the executors keyed by effect type
func (e *Executors) Register() map[effect.Type]effect.Executor {
	return map[effect.Type]effect.Executor{
		effect.TypeNodeStatusMessage: effect.ExecutorFunc(e.sendStatusMessage),
		effect.TypeUserDataNodes:     effect.ExecutorFunc(e.putNodesInUserData),
	}
}

// StatusMessage returns the subject and body announcing a node status change
func StatusMessage(status node.Status, serialNumber, since string) (subject, body string, ok bool) {
	switch status {
	case node.StatusHalted:
		subject = fmt.Sprintf("Connection to your node(%s) has been lost since %s", serialNumber, since)
		body = fmt.Sprintf("Dear ThreeFold Member,\n\n"+
			"Connection to your node(%s) has been lost since %s. Please check the network connection of your node.\n"+
			"Kind regards,\nThe ThreeFold Team", serialNumber, since)
		return subject, body, true
	case node.StatusRunning:
		subject = fmt.Sprintf("Connection to your node(%s) has been resumed since %s", serialNumber, since)
		body = fmt.Sprintf("Dear ThreeFold Member,\n\n"+
			"Congratulations! Your node(%s) is now successfully connected to our system, and has been resumed since %s.\n"+
			"Kind regards,\nThe ThreeFold Team", serialNumber, since)
		return subject, body, true
	}
	return "", "", false
}

func (e *Executors) sendStatusMessage(ctx context.Context, task *effect.Task) error {
	var msg effect.NodeStatusMessage
	if err := task.DecodePayload(&msg); err != nil {
		return err
	}
	subject, body, ok := StatusMessage(node.Status(msg.Status), msg.SerialNumber, msg.Since.Format(notificationDateLayout))
	if !ok {
		e.logger.Debug("No status message for node status",
			zap.String("node_id", msg.NodeID),
			zap.String("status", msg.Status),
		)
		return nil
	}
	member, err := e.members.Member(ctx, msg.Username)
	if err != nil {
		return err
	}
	return e.chat.SendMessage(ctx, member, subject, body)
}

func (e *Executors) putNodesInUserData(ctx context.Context, task *effect.Task) error {
	var ref effect.UserRef
	if err := task.DecodePayload(&ref); err != nil {
		return err
	}
	nodes, err := e.nodes.FindByUsername(ctx, ref.Username)
	if err != nil {
		return err
	}
	member, err := e.members.Member(ctx, ref.Username)
	if err != nil {
		return err
	}
	data := make([]NodeResponse, len(nodes))
	for i, n := range nodes {
		data[i] = ToNodeResponse(n)
	}
	return e.chat.PutUserData(ctx, member, map[string]any{"nodes": data})
}
