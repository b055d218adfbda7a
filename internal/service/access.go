package service

import (
	"time"

	"github.com/iliyamo/workbook-assignment/internal/model"
)

// CanAccessUser reports whether the user's dashboard is still open: the
// link has not expired and the user has neither completed nor been expired.
// A user without a link expiry never times out.
func CanAccessUser(u model.User, now time.Time) bool {
	if u.LinkExpiresAt != nil && u.LinkExpiresAt.Before(now) {
		return false
	}
	return !u.IsCompleted && !u.DashboardExpired
}

// CanAccessInstance reports whether the user may read or write inst.  An
// instance that is not yet submitted stays reachable after the user's
// global access lapses so in-flight work can be finished.
func CanAccessInstance(u model.User, inst model.Instance, now time.Time) bool {
	return CanAccessUser(u, now) || !inst.Status.Frozen()
}

// hasActiveInstance reports whether any instance is still editable.
func hasActiveInstance(instances []model.Instance) bool {
	for _, inst := range instances {
		if !inst.Status.Frozen() {
			return true
		}
	}
	return false
}
