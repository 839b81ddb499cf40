package service

import (
	"context"
	"encoding/json"

	"forumhub/internal/model"
	"forumhub/internal/repository"
	"forumhub/internal/util"

	"go.uber.org/zap"
)

// recordAudit appends an audit entry. Failures are logged and never fail the caller.
func recordAudit(ctx context.Context, repo repository.AuditRepository, userID string, actorID *string, action, ip string, details map[string]interface{}) {
	if repo == nil {
		return
	}
	entry := &model.AuditLog{
		UserID:    userID,
		ActorID:   actorID,
		Action:    action,
		IPAddress: ip,
	}
	if details != nil {
		if b, err := json.Marshal(details); err == nil {
			entry.Details = string(b)
		}
	}
	if err := repo.Create(ctx, entry); err != nil {
		util.Logger.Warn("audit log failed",
			zap.String("user_id", userID), zap.String("action", action), zap.Error(err))
	}
}
