package health

import (
	"context"

	"github.com/TrongNghianeee/Fraud-Creaditcard-Model-Detection-App/types"
)

// PingChecker turns an error-returning ping into a checker. A critical
// failure makes the whole report unhealthy.
func PingChecker(critical bool, ping func(ctx context.Context) error) types.HealthChecker {
	return func(ctx context.Context) types.HealthCheck {
		if err := ping(ctx); err != nil {
			return types.HealthCheck{Status: types.StatusUnhealthy, Critical: critical, Message: err.Error()}
		}
		return types.HealthCheck{Status: types.StatusHealthy, Critical: critical}
	}
}

// ConfiguredChecker reports degraded when an optional feature lacks its
// configuration.
func ConfiguredChecker(configured func() bool, message string) types.HealthChecker {
	return func(context.Context) types.HealthCheck {
		if !configured() {
			return types.HealthCheck{Status: types.StatusDegraded, Message: message}
		}
		return types.HealthCheck{Status: types.StatusHealthy}
	}
}

func CacheChecker(stores ...types.CacheManager) types.HealthChecker {
	return func(context.Context) types.HealthCheck {
		check := types.HealthCheck{Status: types.StatusHealthy, Details: make(map[string]interface{}, len(stores))}

		for _, store := range stores {
			if !store.IsRunning() {
				check.Status = types.StatusDegraded
				check.Message = store.Name() + " cache is not running"
			}
			check.Details[store.Name()] = store.Len()
		}

		return check
	}
}

func HistoryChecker(store types.HistoryStore) types.HealthChecker {
	return func(ctx context.Context) types.HealthCheck {
		if store == nil {
			return types.HealthCheck{Status: types.StatusHealthy, Message: "history disabled"}
		}

		count, err := store.Count(ctx)
		if err != nil {
			return types.HealthCheck{Status: types.StatusDegraded, Message: err.Error()}
		}

		return types.HealthCheck{
			Status:  types.StatusHealthy,
			Details: map[string]interface{}{"records": count},
		}
	}
}
