package sqlite

import (
	"fmt"
	"sort"

	"gonum.org/v1/gonum/stat"

	"github.com/spinwave-labs/gatelink/internal/message"
)

// CoordSummary aggregates the recorded outcomes at one grid position.
type CoordSummary struct {
	Coord    message.Coord
	Count    int
	Mean     float64
	Variance float64
}

// SessionSummary computes per-coordinate outcome statistics for a session,
// ordered by row then column. Mean is the fraction of 1 outcomes; variance
// is the sample variance of the bit sequence.
func (s *Store) SessionSummary(sessionID string) ([]CoordSummary, error) {
	rows, err := s.db.Query(
		`SELECT x, y, bit FROM measurements WHERE session_id = ? ORDER BY seq`,
		sessionID,
	)
	if err != nil {
		return nil, fmt.Errorf("query session %s: %w", sessionID, err)
	}
	defer rows.Close()

	outcomes := make(map[message.Coord][]float64)
	for rows.Next() {
		var x, y int32
		var bit float64
		if err := rows.Scan(&x, &y, &bit); err != nil {
			return nil, fmt.Errorf("scan measurement row: %w", err)
		}
		c := message.Coord{X: x, Y: y}
		outcomes[c] = append(outcomes[c], bit)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	summaries := make([]CoordSummary, 0, len(outcomes))
	for c, bits := range outcomes {
		summaries = append(summaries, CoordSummary{
			Coord:    c,
			Count:    len(bits),
			Mean:     stat.Mean(bits, nil),
			Variance: stat.Variance(bits, nil),
		})
	}
	sort.Slice(summaries, func(i, j int) bool {
		if summaries[i].Coord.Y != summaries[j].Coord.Y {
			return summaries[i].Coord.Y < summaries[j].Coord.Y
		}
		return summaries[i].Coord.X < summaries[j].Coord.X
	})
	return summaries, nil
}
