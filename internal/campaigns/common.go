package campaigns

import (
	"context"
	"errors"
	"strings"

	"wacrm/internal/types"
)

func requireCompany(companyID string) error {
	if companyID == "" {
		return types.NewAppError(types.ErrCodeAuthNoCompany, "authenticated company is required", nil)
	}
	return nil
}

func missingField(field string) error {
	return types.NewAppErrorWithDetails(types.ErrCodeValidationMissingField,
		field+" is required", nil, map[string]any{"field": field})
}

// loadOwnedSchedule fetches a schedule and rejects it when it belongs to
// another tenant.
func loadOwnedSchedule(ctx context.Context, store ScheduleStore, companyID, scheduleID string) (*types.Schedule, error) {
	schedule, err := store.GetByID(ctx, scheduleID)
	if err != nil {
		return nil, err
	}
	if schedule.CompanyID != companyID {
		return nil, types.NewAppError(types.ErrCodePermissionOrgMismatch,
			"schedule belongs to another company", nil)
	}
	return schedule, nil
}

// normalizeIDs trims, drops empties and removes duplicates, keeping the
// first occurrence order.
func normalizeIDs(ids []string) []string {
	seen := make(map[string]struct{}, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		id = strings.TrimSpace(id)
		if id == "" {
			continue
		}
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}

func chunk(ids []string, size int) [][]string {
	if size <= 0 {
		size = len(ids)
	}
	var out [][]string
	for start := 0; start < len(ids); start += size {
		end := min(start+size, len(ids))
		out = append(out, ids[start:end])
	}
	return out
}

func errorCode(err error) types.ErrorCode {
	var appErr *types.AppError
	if errors.As(err, &appErr) {
		return appErr.Code
	}
	return ""
}
