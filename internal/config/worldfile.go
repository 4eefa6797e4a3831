// Package config reads the stage world-file pose and localization-origin
// tuples a driver needs to translate simulator-local position updates into
// the daemon's shared coordinate frame.
package config

import (
	"fmt"
	"strconv"
	"strings"

	"gopkg.in/ini.v1"
)

// Origin is a 2D pose: x, y in meters, a (heading) in radians.
type Origin struct {
	X, Y, A float64
}

// WorldOrigin bundles the two origins a driver needs to rebase position2d
// updates into the daemon's coordinate frame: the model's own placed pose in
// the world file, and its localization origin (the point the robot's own
// odometry considers (0,0,0)).
type WorldOrigin struct {
	Pose               Origin
	LocalizationOrigin Origin
}

// LoadWorldFile reads the named model's [model] section out of the stage
// world file at path, parsing its "pose" and "localization_origin" tuple
// keys. Both keys are space-separated "x y a" triples; a missing key
// defaults to the zero Origin, matching the original driver's behavior of
// treating an absent tuple as no offset rather than an error.
func LoadWorldFile(path, model string) (WorldOrigin, error) {
	cfg, err := ini.Load(path)
	if err != nil {
		return WorldOrigin{}, fmt.Errorf("config: loading world file %q: %w", path, err)
	}

	section, err := cfg.GetSection(model)
	if err != nil {
		return WorldOrigin{}, fmt.Errorf("config: world file %q has no section %q: %w", path, model, err)
	}

	pose, err := readTuple(section, "pose")
	if err != nil {
		return WorldOrigin{}, fmt.Errorf("config: section %q: %w", model, err)
	}
	loc, err := readTuple(section, "localization_origin")
	if err != nil {
		return WorldOrigin{}, fmt.Errorf("config: section %q: %w", model, err)
	}

	return WorldOrigin{Pose: pose, LocalizationOrigin: loc}, nil
}

func readTuple(section *ini.Section, key string) (Origin, error) {
	if !section.HasKey(key) {
		return Origin{}, nil
	}
	raw := strings.Fields(section.Key(key).String())
	if len(raw) != 3 {
		return Origin{}, fmt.Errorf("key %q: expected 3 fields, got %d", key, len(raw))
	}
	var vals [3]float64
	for i, tok := range raw {
		v, err := strconv.ParseFloat(tok, 64)
		if err != nil {
			return Origin{}, fmt.Errorf("key %q: field %d: %w", key, i, err)
		}
		vals[i] = v
	}
	return Origin{X: vals[0], Y: vals[1], A: vals[2]}, nil
}
