package collection

import (
	"strings"

	"github.com/dgnsrekt/cardshuffler/internal/ctypes"
)

// OpKind identifies a mutation.
type OpKind int

const (
	OpCreate OpKind = iota
	OpUpdate
	OpDelete
	OpClearAll
)

// String returns the operation name
func (k OpKind) String() string {
	switch k {
	case OpCreate:
		return "create"
	case OpUpdate:
		return "update"
	case OpDelete:
		return "delete"
	case OpClearAll:
		return "clear"
	default:
		return "unknown"
	}
}

// Operation is a single mutation of the collection.
type Operation struct {
	Kind  OpKind
	ID    string
	Input ctypes.CardInput
	Patch ctypes.CardPatch
}

// CreateOp adds a card.
func CreateOp(in ctypes.CardInput) Operation {
	return Operation{Kind: OpCreate, Input: in}
}

// UpdateOp changes the fields set in patch on the card with id.
func UpdateOp(id string, patch ctypes.CardPatch) Operation {
	return Operation{Kind: OpUpdate, ID: id, Patch: patch}
}

// DeleteOp removes the card with id.
func DeleteOp(id string) Operation {
	return Operation{Kind: OpDelete, ID: id}
}

// ClearAllOp removes every card.
func ClearAllOp() Operation {
	return Operation{Kind: OpClearAll}
}

// Validate checks the operation before anything leaves the process.
func (op Operation) Validate() error {
	const name = "collection.validate"

	switch op.Kind {
	case OpCreate:
		if blank(op.Input.ImageRef) {
			return ctypes.NewError(ctypes.KindValidation, name, "image is required", nil)
		}
		if blank(op.Input.Link) {
			return ctypes.NewError(ctypes.KindValidation, name, "link is required", nil)
		}
	case OpUpdate:
		if blank(op.ID) {
			return ctypes.NewError(ctypes.KindValidation, name, "card id is required", nil)
		}
		if op.Patch.Empty() {
			return ctypes.NewError(ctypes.KindValidation, name, "nothing to update", nil)
		}
		if op.Patch.ImageRef != nil && blank(*op.Patch.ImageRef) {
			return ctypes.NewError(ctypes.KindValidation, name, "image cannot be empty", nil)
		}
		if op.Patch.Link != nil && blank(*op.Patch.Link) {
			return ctypes.NewError(ctypes.KindValidation, name, "link cannot be empty", nil)
		}
	case OpDelete:
		if blank(op.ID) {
			return ctypes.NewError(ctypes.KindValidation, name, "card id is required", nil)
		}
	case OpClearAll:
	default:
		return ctypes.Errorf(ctypes.KindValidation, name, "unknown operation %d", int(op.Kind))
	}
	return nil
}

func blank(s string) bool {
	return strings.TrimSpace(s) == ""
}

func orDefaultName(name string) string {
	if blank(name) {
		return ctypes.DefaultCardName
	}
	return strings.TrimSpace(name)
}
