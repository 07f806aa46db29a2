package entity

import (
	"github.com/xtxerr/scope/config"
	"github.com/xtxerr/scope/internal/event"
)

// Reconciler groups the engine's entity collections: services and incidents
// are uncapped, alerts and logs keep most-recent-N.
type Reconciler struct {
	Services  *Collection[event.ServiceHealth]
	Incidents *Collection[event.Incident]
	Alerts    *Collection[event.Alert]
	Logs      *Collection[event.LogEntry]
}

// NewReconciler creates a reconciler. A cap of 0 or less uses the default
// collection cap for alerts and logs.
func NewReconciler(cap int) *Reconciler {
	if cap <= 0 {
		cap = config.DefaultCollectionCap
	}
	return &Reconciler{
		Services:  NewCollection[event.ServiceHealth](),
		Incidents: NewCollection[event.Incident](),
		Alerts:    NewCapped[event.Alert](cap),
		Logs:      NewCapped[event.LogEntry](cap),
	}
}
