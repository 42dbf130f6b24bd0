// Package transform implements the Operation Transformer (spec §4.B): a
// pure, deterministic rebase of one operation against a list of already
// committed operations. Per spec §9, the contract is intentionally narrow
// — string-insert vs string-insert on the same path — and other
// type/path combinations pass through unchanged. This is a documented
// limitation, not an oversight: do not extend it to cover delete/update.
package transform

import (
	"github.com/kolabhq/tilepad/pkg/model"
)

// Rebase returns a copy of op with Position adjusted to account for every
// operation in against whose Timestamp precedes op's and which is a
// string-insert on the same Path. against need not be sorted; only the
// Timestamp ordering of each candidate relative to op is consulted.
func Rebase(op model.Operation, against []model.Operation) model.Operation {
	for _, other := range against {
		if other.Timestamp >= op.Timestamp {
			continue
		}
		if !isStringInsert(op) || !isStringInsert(other) {
			continue
		}
		if op.Path != other.Path {
			continue
		}

		otherPos := *other.Position
		opPos := *op.Position
		otherLen := insertedLength(other)

		switch {
		case otherPos < opPos:
			newPos := opPos + otherLen
			op.Position = &newPos
		case otherPos == opPos && op.ClientID > other.ClientID:
			newPos := opPos + otherLen
			op.Position = &newPos
		}
	}
	return op
}

func isStringInsert(op model.Operation) bool {
	if op.Type != model.OpInsert || op.Position == nil {
		return false
	}
	_, ok := op.Value.(string)
	return ok
}

func insertedLength(op model.Operation) int {
	s, _ := op.Value.(string)
	return len([]rune(s))
}
