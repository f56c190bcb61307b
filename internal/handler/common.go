package handler

import (
	"errors"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/school-election/internal/audit"
)

// getUserID extracts the operator's user_id from echo.Context, as set
// by the JWT middleware, and converts it to uint64.  Claim values may
// arrive as several numeric types depending on the JSON decoder.
func getUserID(c echo.Context) (uint64, error) {
	v := c.Get("user_id")
	switch t := v.(type) {
	case uint64:
		return t, nil
	case int:
		return uint64(t), nil
	case int64:
		return uint64(t), nil
	case float64:
		return uint64(t), nil
	case string:
		if n, err := strconv.ParseUint(t, 10, 64); err == nil {
			return n, nil
		}
	}
	return 0, errors.New("invalid user_id in context")
}

// auditAction publishes one audit event for an administrative action.
// Publishing is best effort; failures are logged inside the publisher
// and never fail the request that triggered the event.
func auditAction(c echo.Context, action, kind, targetID, reason string, outcome int) {
	actor, _ := getUserID(c)
	_ = audit.Publish(c.Request().Context(), audit.Event{
		Actor:      actor,
		Action:     action,
		TargetKind: kind,
		TargetID:   targetID,
		Reason:     reason,
		Outcome:    outcome,
	})
}
