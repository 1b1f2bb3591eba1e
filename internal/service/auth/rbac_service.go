package auth

import (
	"go.uber.org/zap"

	"github.com/seu-repo/parkflow/internal/domain"
)

// Permission represents a single resource-action pair.
type Permission struct {
	Resource string
	Action   string
}

// Resources and actions guarded by the HTTP API
const (
	ResourceBookings      = "bookings"
	ResourceScans         = "scans"
	ResourceSubscriptions = "subscriptions"
	ResourceSlots         = "slots"
	ResourceAnalytics     = "analytics"
	ResourceNotifications = "notifications"

	ActionRead  = "read"
	ActionWrite = "write"
)

// RBACService maps roles to the resource/action pairs they may use.
//
// Roles:
//   - "admin"    : everything security may do, plus analytics
//   - "security" : gate scans and the scan log
//   - "user"     : own bookings, subscriptions and notifications
type RBACService struct {
	permissions map[domain.UserRole][]Permission
	log         *zap.Logger
}

func NewRBACService(log *zap.Logger) *RBACService {
	own := []Permission{
		{Resource: ResourceBookings, Action: ActionRead},
		{Resource: ResourceBookings, Action: ActionWrite},
		{Resource: ResourceSubscriptions, Action: ActionRead},
		{Resource: ResourceSubscriptions, Action: ActionWrite},
		{Resource: ResourceNotifications, Action: ActionRead},
		{Resource: ResourceNotifications, Action: ActionWrite},
		{Resource: ResourceSlots, Action: ActionRead},
	}
	security := append(append([]Permission(nil), own...),
		Permission{Resource: ResourceScans, Action: ActionRead},
		Permission{Resource: ResourceScans, Action: ActionWrite},
	)
	admin := append(append([]Permission(nil), security...),
		Permission{Resource: ResourceAnalytics, Action: ActionRead},
	)

	permissions := map[domain.UserRole][]Permission{
		domain.UserRoleAdmin:    admin,
		domain.UserRoleSecurity: security,
		domain.UserRoleUser:     own,
	}

	log.Info("RBAC service initialized",
		zap.Int("roles", len(permissions)),
	)

	return &RBACService{
		permissions: permissions,
		log:         log,
	}
}

// CheckPermission reports whether role may perform action on resource
func (s *RBACService) CheckPermission(role domain.UserRole, resource, action string) bool {
	perms, exists := s.permissions[role]
	if !exists {
		s.log.Warn("unknown role attempted access",
			zap.String("role", string(role)),
			zap.String("resource", resource),
			zap.String("action", action),
		)
		return false
	}

	for _, p := range perms {
		if p.Resource == resource && p.Action == action {
			return true
		}
	}

	s.log.Warn("permission denied",
		zap.String("role", string(role)),
		zap.String("resource", resource),
		zap.String("action", action),
	)
	return false
}

// GetPermissions returns a copy of the permissions of role, or nil
func (s *RBACService) GetPermissions(role domain.UserRole) []Permission {
	perms, exists := s.permissions[role]
	if !exists {
		return nil
	}
	result := make([]Permission, len(perms))
	copy(result, perms)
	return result
}
