package diff

// ResolveCommentPosition maps a model-chosen virtual position to the
// new-file line number a comment can anchor to. An exact reviewable hit
// returns its own file line; otherwise the search moves forward through the
// same hunk's positions to the next reviewable line. The search never
// crosses into another hunk: an anchor there would point at unrelated code.
// The second return value is false when nothing in the hunk can anchor the
// comment, or the position was never rendered at all.
func (p *NumberedPatch) ResolveCommentPosition(position int) (int, bool) {
	meta, ok := p.Meta[position]
	if !ok {
		return 0, false
	}
	if meta.Reviewable && meta.FileLineNumber > 0 {
		return meta.FileLineNumber, true
	}

	for _, candidate := range p.Hunks[meta.HunkIndex] {
		if candidate <= position {
			continue
		}
		if m := p.Meta[candidate]; m.Reviewable && m.FileLineNumber > 0 {
			return m.FileLineNumber, true
		}
	}
	return 0, false
}

// ResolveEndPosition is the backward counterpart used for the end of a
// multi-line range: an invalid end shrinks toward valid content instead of
// growing past the hunk.
func (p *NumberedPatch) ResolveEndPosition(position int) (int, bool) {
	meta, ok := p.Meta[position]
	if !ok {
		return 0, false
	}
	if meta.Reviewable && meta.FileLineNumber > 0 {
		return meta.FileLineNumber, true
	}

	positions := p.Hunks[meta.HunkIndex]
	for i := len(positions) - 1; i >= 0; i-- {
		candidate := positions[i]
		if candidate >= position {
			continue
		}
		if m := p.Meta[candidate]; m.Reviewable && m.FileLineNumber > 0 {
			return m.FileLineNumber, true
		}
	}
	return 0, false
}
