// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Agora Contributors

package post

import "time"

// SetClock replaces the service clock.
func (s *Service) SetClock(now func() time.Time) {
	s.now = now
}
