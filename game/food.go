// food.go implements the optional food spawning policy used by self-play.
// Board.Update never calls it; simulations inside a decision keep food
// depleting only.

package game

import (
	"math/rand"
)

// FoodSettings controls food spawning behavior.
type FoodSettings struct {
	MinimumFood     int // Guaranteed minimum on board after each turn
	FoodSpawnChance int // Percentage chance (0–100) to spawn one extra food each turn
}

// DefaultFoodSettings matches the usual server knobs (1 minimum, 15% chance each turn).
var DefaultFoodSettings = FoodSettings{MinimumFood: 1, FoodSpawnChance: 15}

// NoFood disables spawning entirely.
var NoFood = FoodSettings{}

// ApplyFoodSettings spawns food on free cells of b according to settings and
// returns the cells that were added. Free means no live snake segment and no
// existing food. The board's grid is rebuilt when anything spawns.
//
// rng must not be nil; pass a seeded source for reproducible games.
func ApplyFoodSettings(b *Board, rng *rand.Rand, settings FoodSettings) []Point {
	if b == nil || rng == nil || b.Width <= 0 || b.Height <= 0 {
		return nil
	}
	if settings.FoodSpawnChance < 0 {
		settings.FoodSpawnChance = 0
	}
	if settings.FoodSpawnChance > 100 {
		settings.FoodSpawnChance = 100
	}

	toSpawn := settings.MinimumFood - len(b.Food)
	if toSpawn < 0 {
		toSpawn = 0
	}
	if settings.FoodSpawnChance > 0 && rng.Intn(100) < settings.FoodSpawnChance {
		toSpawn++
	}
	if toSpawn == 0 {
		return nil
	}

	available := b.freeCells()
	var spawned []Point
	for ; toSpawn > 0 && len(available) > 0; toSpawn-- {
		i := rng.Intn(len(available))
		p := available[i]
		available[i] = available[len(available)-1]
		available = available[:len(available)-1]

		b.Food[p] = struct{}{}
		spawned = append(spawned, p)
	}

	if len(spawned) > 0 {
		b.rebuildGrid()
	}
	return spawned
}

// freeCells lists every in-bounds cell with nothing on it, in row-major order.
func (b *Board) freeCells() []Point {
	out := make([]Point, 0, b.Width*b.Height)
	for y := 0; y < b.Height; y++ {
		for x := 0; x < b.Width; x++ {
			p := Point{X: x, Y: y}
			if b.Entity(p) == Empty {
				out = append(out, p)
			}
		}
	}
	return out
}
