// Copyright 2025 Agentic World, LLC (Sherin Thomas)
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package store

import "fmt"

// AppendSecurityEvent writes one audit log entry. Callers treat failures as
// non-fatal: an audit miss never fails the triggering request.
func (s *Store) AppendSecurityEvent(event SecurityEvent) error {
	if err := s.db.Create(&event).Error; err != nil {
		return fmt.Errorf("failed to append security event: %v", err)
	}
	return nil
}

// ListSecurityEvents returns the newest audit entries, up to limit
func (s *Store) ListSecurityEvents(limit int) ([]SecurityEvent, error) {
	if limit <= 0 {
		limit = 100
	}
	var events []SecurityEvent
	if err := s.db.Order("id DESC").Limit(limit).Find(&events).Error; err != nil {
		return nil, fmt.Errorf("failed to list security events: %v", err)
	}
	return events, nil
}
