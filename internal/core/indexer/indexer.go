package indexer

import "github.com/agenthands/storyforge/internal/core/model"

// NominalChapters is the assumed span of a story when spreading chapters over
// acts. It is a heuristic with no configuration override; act boundaries are
// approximate and a story may run past it (later chapters clamp to the last act).
const NominalChapters = 20

// Position locates the next chapter in the story's structure.
type Position struct {
	Index int
	// Act is nil for chapter-structured stories.
	Act *int
}

// Next computes the position of the chapter that follows historyLen existing ones.
func Next(structure model.Structure, actCount, historyLen int) Position {
	pos := Position{Index: historyLen}
	if act, ok := ActFor(structure, actCount, historyLen); ok {
		pos.Act = &act
	}
	return pos
}

// ActFor maps a 0-based chapter index to a 1-based act number.
func ActFor(structure model.Structure, actCount, index int) (int, bool) {
	if structure != model.StructureActs || actCount <= 0 {
		return 0, false
	}
	actSize := (NominalChapters + actCount - 1) / actCount
	act := index/actSize + 1
	if act > actCount {
		act = actCount
	}
	return act, true
}
