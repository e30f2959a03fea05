package storage

import (
	"context"
	"encoding/json"
	"log"
)

// LogAudit appends an audit row. Audit failures are logged, never propagated:
// the action that triggered the entry has already happened.
func (s *Storage) LogAudit(ctx context.Context, employeeID int64, roleType, action string, orgID int64, resourceType string, resourceID int64, details map[string]interface{}) {
	detailsJSON := []byte("{}")
	if details != nil {
		if data, err := json.Marshal(details); err == nil {
			detailsJSON = data
		}
	}

	query := `
		INSERT INTO audit_log (employee_id, role_type, action, organization_id, resource_type, resource_id, details)
		VALUES ($1, $2, $3, $4, $5, $6, $7::jsonb)
	`
	if _, err := s.db.ExecContext(ctx, query, employeeID, roleType, action, orgID, resourceType, resourceID, detailsJSON); err != nil {
		log.Printf("WARN audit log write failed (action=%s): %v", action, err)
	}
}
