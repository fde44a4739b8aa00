package game

import (
	"fmt"
	"reflect"
	"sort"
	"strings"
	"testing"
)

func dumpBoard(b *Board) string {
	if b == nil {
		return "<nil board>"
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "Size=%dx%d\n", b.Width, b.Height)

	fmt.Fprintf(&sb, "Food(%d):", len(b.Food))
	for _, f := range b.FoodList() {
		fmt.Fprintf(&sb, " %s", f)
	}
	sb.WriteString("\n")

	for _, id := range b.LiveIDs() {
		s := b.Snakes[id]
		fmt.Fprintf(&sb, "Snake %s Health=%d Len=%d Body:", id, s.Health, s.Len())
		for _, p := range s.Body {
			fmt.Fprintf(&sb, " %s", p)
		}
		sb.WriteString("\n")
	}
	dead := make([]string, 0, len(b.Dead))
	for id := range b.Dead {
		dead = append(dead, id)
	}
	sort.Strings(dead)
	if len(dead) > 0 {
		fmt.Fprintf(&sb, "Dead: %s\n", strings.Join(dead, ","))
	}

	if b.Width <= 40 && b.Height <= 40 {
		sb.WriteString("Board:\n")
		for y := 0; y < b.Height; y++ {
			for x := 0; x < b.Width; x++ {
				switch b.Entity(Point{X: x, Y: y}) {
				case Head:
					sb.WriteByte('H')
				case Body:
					sb.WriteByte('s')
				case Food:
					sb.WriteByte('F')
				default:
					sb.WriteByte('.')
				}
			}
			sb.WriteByte('\n')
		}
	}
	return sb.String()
}

func logUpdate(t *testing.T, name string, before *Board, moves map[string]Move, after *Board) {
	t.Helper()
	ids := make([]string, 0, len(moves))
	for id := range moves {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	var mv strings.Builder
	mv.WriteString("Moves:")
	for _, id := range ids {
		fmt.Fprintf(&mv, " %s=%s", id, moves[id])
	}
	mv.WriteByte('\n')
	t.Logf("=== %s ===\nBefore:\n%s%sAfter:\n%s", name, dumpBoard(before), mv.String(), dumpBoard(after))
}

func pts(xy ...int) []Point {
	out := make([]Point, 0, len(xy)/2)
	for i := 0; i+1 < len(xy); i += 2 {
		out = append(out, Point{X: xy[i], Y: xy[i+1]})
	}
	return out
}

func TestUpdate_NormalMove_NoFood(t *testing.T) {
	before := NewBoard(7, 7, []Snake{{
		ID:     "me",
		Health: 10,
		Body:   pts(3, 3, 3, 4, 3, 5),
	}}, nil, nil)

	moves := map[string]Move{"me": Up}
	after := before.Update(moves)
	logUpdate(t, "TestUpdate_NormalMove_NoFood", before, moves, after)

	s, ok := after.Snake("me")
	if !ok {
		t.Fatalf("snake died unexpectedly")
	}
	if want := pts(3, 2, 3, 3, 3, 4); !reflect.DeepEqual(s.Body, want) {
		t.Fatalf("body=%v want=%v", s.Body, want)
	}
	if s.Health != 9 {
		t.Fatalf("health=%d want=9", s.Health)
	}
	if got := after.Entity(Point{X: 3, Y: 5}); got != Empty {
		t.Fatalf("old tail cell=%s want=EMPTY", got)
	}
	if got := after.Entity(Point{X: 3, Y: 2}); got != Head {
		t.Fatalf("new head cell=%s want=HEAD", got)
	}
}

func TestUpdate_DoesNotMutateReceiver(t *testing.T) {
	before := NewBoard(7, 7, []Snake{
		{ID: "a", Health: 50, Body: pts(1, 1, 1, 2, 1, 3)},
		{ID: "b", Health: 50, Body: pts(5, 5, 5, 4, 5, 3)},
	}, nil, pts(1, 0))
	snapshot := dumpBoard(before)

	_ = before.Update(map[string]Move{"a": Up, "b": Down})

	if got := dumpBoard(before); got != snapshot {
		t.Fatalf("receiver changed:\nbefore:\n%s\nafter:\n%s", snapshot, got)
	}
}

func TestUpdate_Deterministic(t *testing.T) {
	before := NewBoard(7, 7, []Snake{
		{ID: "a", Health: 50, Body: pts(2, 3, 1, 3, 0, 3)},
		{ID: "b", Health: 50, Body: pts(4, 3, 5, 3, 6, 3)},
		{ID: "c", Health: 1, Body: pts(3, 0, 4, 0, 5, 0)},
	}, nil, pts(3, 3, 0, 6))

	moves := map[string]Move{"a": Right, "b": Left, "c": Down}
	first := before.Update(moves)
	for i := 0; i < 20; i++ {
		again := before.Update(moves)
		if !reflect.DeepEqual(first, again) {
			t.Fatalf("run %d differs:\n%s\nvs\n%s", i, dumpBoard(first), dumpBoard(again))
		}
	}
}

func TestUpdate_EatFood_Grows(t *testing.T) {
	before := NewBoard(7, 7, []Snake{{
		ID:     "me",
		Health: 40,
		Body:   pts(3, 3, 3, 4, 3, 5),
	}}, nil, pts(3, 2, 0, 0))

	moves := map[string]Move{"me": Up}
	after := before.Update(moves)
	logUpdate(t, "TestUpdate_EatFood_Grows", before, moves, after)

	s, ok := after.Snake("me")
	if !ok {
		t.Fatalf("snake died unexpectedly")
	}
	if s.Len() != 4 {
		t.Fatalf("len=%d want=4", s.Len())
	}
	if want := pts(3, 2, 3, 3, 3, 4, 3, 4); !reflect.DeepEqual(s.Body, want) {
		t.Fatalf("body=%v want=%v", s.Body, want)
	}
	if s.Health != MaxHealth {
		t.Fatalf("health=%d want=%d", s.Health, MaxHealth)
	}
	if after.HasFood(Point{X: 3, Y: 2}) {
		t.Fatalf("eaten food still on board")
	}
	if !after.HasFood(Point{X: 0, Y: 0}) {
		t.Fatalf("uneaten food removed")
	}
	if len(after.Food) != 1 {
		t.Fatalf("food=%d want=1 (no respawn)", len(after.Food))
	}
}

func TestUpdate_Starvation(t *testing.T) {
	before := NewBoard(7, 7, []Snake{{
		ID:     "me",
		Health: 1,
		Body:   pts(3, 3, 3, 4, 3, 5),
	}}, nil, nil)

	moves := map[string]Move{"me": Left}
	after := before.Update(moves)
	logUpdate(t, "TestUpdate_Starvation", before, moves, after)

	if _, ok := after.Snake("me"); ok {
		t.Fatalf("snake should have starved")
	}
	if !after.IsDead("me") {
		t.Fatalf("starved snake missing from dead map")
	}
	if got := after.Dead["me"].Health; got != 0 {
		t.Fatalf("dead health=%d want=0", got)
	}
	for y := 0; y < after.Height; y++ {
		for x := 0; x < after.Width; x++ {
			if e := after.Entity(Point{X: x, Y: y}); e != Empty {
				t.Fatalf("cell (%d,%d)=%s, dead snake still on grid", x, y, e)
			}
		}
	}
}

func TestUpdate_StarvingSnakeOnFoodDies(t *testing.T) {
	before := NewBoard(7, 7, []Snake{{
		ID:     "me",
		Health: 1,
		Body:   pts(3, 3, 3, 4, 3, 5),
	}}, nil, pts(2, 3))

	after := before.Update(map[string]Move{"me": Left})
	logUpdate(t, "starving snake steps onto food", before, map[string]Move{"me": Left}, after)

	if _, ok := after.Snake("me"); ok {
		t.Fatalf("snake at health 0 survived by eating")
	}
	if !after.IsDead("me") {
		t.Fatalf("starved snake missing from dead map")
	}
	if !after.HasFood(Point{X: 2, Y: 3}) {
		t.Fatalf("food under a starved snake was consumed")
	}
	if e := after.Entity(Point{X: 2, Y: 3}); e != Food {
		t.Fatalf("cell (2,3)=%s want=%s", e, Food)
	}
}

func TestUpdate_OutOfBounds(t *testing.T) {
	before := NewBoard(5, 5, []Snake{{
		ID:     "me",
		Health: 90,
		Body:   pts(0, 2, 1, 2, 2, 2),
	}}, nil, nil)

	after := before.Update(map[string]Move{"me": Left})
	if !after.IsDead("me") {
		t.Fatalf("snake leaving the board should die")
	}
}

func TestUpdate_BodyCollision(t *testing.T) {
	before := NewBoard(7, 7, []Snake{
		{ID: "a", Health: 90, Body: pts(2, 3, 1, 3, 0, 3)},
		{ID: "b", Health: 90, Body: pts(3, 1, 3, 2, 3, 3, 3, 4, 3, 5)},
	}, nil, nil)

	moves := map[string]Move{"a": Right, "b": Up}
	after := before.Update(moves)
	logUpdate(t, "TestUpdate_BodyCollision", before, moves, after)

	if !after.IsDead("a") {
		t.Fatalf("a ran into b's body and should be dead")
	}
	if _, ok := after.Snake("b"); !ok {
		t.Fatalf("b should survive")
	}
}

func TestUpdate_SelfCollision(t *testing.T) {
	before := NewBoard(7, 7, []Snake{{
		ID:     "me",
		Health: 90,
		Body:   pts(2, 2, 2, 3, 3, 3, 3, 2, 3, 1),
	}}, nil, nil)

	after := before.Update(map[string]Move{"me": Down})
	if !after.IsDead("me") {
		t.Fatalf("moving into own neck should kill:\n%s", dumpBoard(after))
	}
}

func TestUpdate_ChaseOwnTail(t *testing.T) {
	// 2x2 loop: the tail vacates the cell the head moves into.
	before := NewBoard(5, 5, []Snake{{
		ID:     "me",
		Health: 90,
		Body:   pts(1, 1, 2, 1, 2, 2, 1, 2),
	}}, nil, nil)

	after := before.Update(map[string]Move{"me": Down})
	if _, ok := after.Snake("me"); !ok {
		t.Fatalf("following own tail should be safe:\n%s", dumpBoard(after))
	}
}

func TestUpdate_HeadToHead_TieBothDie(t *testing.T) {
	before := NewBoard(7, 7, []Snake{
		{ID: "a", Health: 90, Body: pts(2, 3, 1, 3, 0, 3)},
		{ID: "b", Health: 90, Body: pts(4, 3, 5, 3, 6, 3)},
	}, nil, nil)

	moves := map[string]Move{"a": Right, "b": Left}
	after := before.Update(moves)
	logUpdate(t, "TestUpdate_HeadToHead_TieBothDie", before, moves, after)

	if !after.IsDead("a") || !after.IsDead("b") {
		t.Fatalf("equal length head-to-head should kill both")
	}
	if len(after.Snakes) != 0 {
		t.Fatalf("live=%d want=0", len(after.Snakes))
	}
}

func TestUpdate_HeadToHead_LongerWins(t *testing.T) {
	before := NewBoard(9, 7, []Snake{
		{ID: "long", Health: 90, Body: pts(3, 3, 2, 3, 1, 3, 0, 3)},
		{ID: "short", Health: 90, Body: pts(5, 3, 6, 3, 7, 3)},
	}, nil, pts(4, 3))

	moves := map[string]Move{"long": Right, "short": Left}
	after := before.Update(moves)
	logUpdate(t, "TestUpdate_HeadToHead_LongerWins", before, moves, after)

	s, ok := after.Snake("long")
	if !ok {
		t.Fatalf("longer snake should survive")
	}
	if !after.IsDead("short") {
		t.Fatalf("shorter snake should die")
	}
	if s.Len() != 5 {
		t.Fatalf("winner should eat the contested food: len=%d want=5", s.Len())
	}
	if after.HasFood(Point{X: 4, Y: 3}) {
		t.Fatalf("contested food should be consumed")
	}
}

func TestUpdate_HeadToHead_ThreeWay(t *testing.T) {
	// The longest snake must beat the longest of the rest, not each pairwise.
	before := NewBoard(7, 7, []Snake{
		{ID: "a", Health: 90, Body: pts(3, 2, 3, 1, 3, 0, 2, 0)},
		{ID: "b", Health: 90, Body: pts(2, 3, 1, 3, 0, 3, 0, 4)},
		{ID: "c", Health: 90, Body: pts(4, 3, 5, 3, 6, 3)},
	}, nil, nil)

	after := before.Update(map[string]Move{"a": Down, "b": Right, "c": Left})
	for _, id := range []string{"a", "b", "c"} {
		if !after.IsDead(id) {
			t.Fatalf("%s should die in a tied three-way collision:\n%s", id, dumpBoard(after))
		}
	}
}

func TestUpdate_UnknownAndDeadIDsIgnored(t *testing.T) {
	before := NewBoard(7, 7, []Snake{
		{ID: "me", Health: 50, Body: pts(3, 3, 3, 4, 3, 5)},
	}, []Snake{
		{ID: "ghost", Health: 0, Body: pts(0, 0, 0, 1, 0, 2)},
	}, nil)

	after := before.Update(map[string]Move{"ghost": Right, "nobody": Up})

	s, ok := after.Snake("me")
	if !ok {
		t.Fatalf("snake without a move should stay alive")
	}
	if want := pts(3, 3, 3, 4, 3, 5); !reflect.DeepEqual(s.Body, want) {
		t.Fatalf("body=%v want=%v", s.Body, want)
	}
	if s.Health != 49 {
		t.Fatalf("health=%d want=49", s.Health)
	}
	if _, ok := after.Snake("ghost"); ok {
		t.Fatalf("dead snake resurrected")
	}
	if g := after.Dead["ghost"]; !reflect.DeepEqual(g.Body, pts(0, 0, 0, 1, 0, 2)) {
		t.Fatalf("dead snake moved: %v", g.Body)
	}
}

func TestBoard_CloneIsIndependent(t *testing.T) {
	b := NewBoard(5, 5, []Snake{{ID: "me", Health: 50, Body: pts(1, 1, 1, 2)}}, nil, pts(4, 4))
	c := b.Clone()
	c.Snakes["me"].Body[0] = Point{X: 0, Y: 0}
	delete(c.Food, Point{X: 4, Y: 4})

	if b.Snakes["me"].Head() != (Point{X: 1, Y: 1}) {
		t.Fatalf("clone aliases snake body")
	}
	if !b.HasFood(Point{X: 4, Y: 4}) {
		t.Fatalf("clone aliases food")
	}
}
