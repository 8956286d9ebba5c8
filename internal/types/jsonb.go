package types

import (
	"database/sql"
	"database/sql/driver"
	"encoding/json"
	"fmt"
)

// Compile-time interface assertions.
// Scan is on pointer receivers; Value is on value receivers.
var (
	_ sql.Scanner   = (*ContactFilters)(nil)
	_ driver.Valuer = ContactFilters(nil)
	_ sql.Scanner   = (*NotificationMetadata)(nil)
	_ driver.Valuer = NotificationMetadata{}
)

// scanJSONB scans a JSONB database value into dest. It accepts the []byte and
// string representations produced by different drivers.
func scanJSONB(dest any, value any) error {
	if value == nil {
		return nil
	}
	var data []byte
	switch v := value.(type) {
	case []byte:
		data = v
	case string:
		data = []byte(v)
	default:
		return fmt.Errorf("jsonb: unsupported scan type %T", value)
	}
	return json.Unmarshal(data, dest)
}

// Scan implements sql.Scanner for batch_schedules.contact_filters.
func (cf *ContactFilters) Scan(value any) error {
	if value == nil {
		*cf = nil
		return nil
	}
	return scanJSONB(cf, value)
}

// Value implements driver.Valuer. A nil filter list is stored as SQL NULL.
func (cf ContactFilters) Value() (driver.Value, error) {
	if cf == nil {
		return nil, nil
	}
	return json.Marshal([]ContactFilter(cf))
}

// Scan implements sql.Scanner for notifications.metadata.
func (m *NotificationMetadata) Scan(value any) error {
	return scanJSONB(m, value)
}

// Value implements driver.Valuer for notifications.metadata.
func (m NotificationMetadata) Value() (driver.Value, error) {
	return json.Marshal(m)
}
