// Package assign picks the technician that receives a new order.
package assign

import "github.com/m3rciful/pestbot/internal/domain"

// Select returns the least-loaded technician from roster.
//
// roster must be in registration order. loads maps technician id to the number
// of active orders; ids missing from loads have load 0. Ties go to the earliest
// registered technician.
func Select(roster []int64, loads map[int64]int) (int64, error) {
	if len(roster) == 0 {
		return 0, domain.ErrNoTechnicianAvailable
	}
	selected := roster[0]
	minLoad := loads[selected]
	for _, id := range roster[1:] {
		if l := loads[id]; l < minLoad {
			selected, minLoad = id, l
		}
	}
	return selected, nil
}
