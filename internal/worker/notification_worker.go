package worker

import (
	"github.com/spec-kit/kanban-service/internal/service"
)

// StartNotificationWorker registers the board activity handlers.
func StartNotificationWorker(notificationService *service.NotificationService) {
	if notificationService == nil {
		return
	}
	notificationService.RegisterHandlers()
}
