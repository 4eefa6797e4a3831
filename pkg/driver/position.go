package driver

import (
	"strconv"

	"github.com/samsamfire/playernsd/internal/config"
)

// Position2D is a planar pose: x, y in meters, a (heading) in radians,
// mirroring player_position2d_data_t's pos field in the original driver.
type Position2D struct {
	X, Y, A float64
}

// rebase subtracts the localization origin from p, matching the original
// driver's ProcessMessage handling of PLAYER_POSITION2D_DATA_STATE/_GEOM
// (nsdnet_driver.cc: x = pos.px - localizationX, etc. — the pose tuple is
// read from the world file but never applied to position updates in the
// original; only the localization origin is).
func rebase(p Position2D, origin config.Origin) Position2D {
	return Position2D{
		X: p.X - origin.X,
		Y: p.Y - origin.Y,
		A: p.A - origin.A,
	}
}

// formatPosition renders a position as "<x> <y> <a>" using Go's shortest
// round-tripping decimal representation, the locale-free equivalent of the
// original driver's std::ostringstream formatting.
func formatPosition(p Position2D) string {
	return strconv.FormatFloat(p.X, 'g', -1, 64) + " " +
		strconv.FormatFloat(p.Y, 'g', -1, 64) + " " +
		strconv.FormatFloat(p.A, 'g', -1, 64)
}
