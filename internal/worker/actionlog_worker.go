package worker

import (
	"github.com/spec-kit/ticketbox/internal/service"
)

// StartActionLogWorker registers action-log handlers.
func StartActionLogWorker(actionLog *service.ActionLogService) {
	if actionLog == nil {
		return
	}
	actionLog.RegisterHandlers()
}
