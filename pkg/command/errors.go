package command

import (
	"fmt"

	cn "github.com/harborgrid-justin/cadcore/common/constant"
)

// InvalidInput wraps constant.ErrInvalidInput with a message.
func InvalidInput(msg string) error {
	return fmt.Errorf("%s: %w", msg, cn.ErrInvalidInput)
}

// InvalidSelection wraps constant.ErrInvalidSelection with a message.
func InvalidSelection(msg string) error {
	return fmt.Errorf("%s: %w", msg, cn.ErrInvalidSelection)
}

// InvalidState wraps constant.ErrInvalidState with a message.
func InvalidState(msg string) error {
	return fmt.Errorf("%s: %w", msg, cn.ErrInvalidState)
}

// EntityNotFound wraps constant.ErrEntityNotFound with a message.
func EntityNotFound(msg string) error {
	return fmt.Errorf("%s: %w", msg, cn.ErrEntityNotFound)
}

// ResourceLimit wraps constant.ErrResourceLimit with a message.
func ResourceLimit(msg string) error {
	return fmt.Errorf("%s: %w", msg, cn.ErrResourceLimit)
}

// Cancelled wraps constant.ErrCancelled.
func Cancelled() error {
	return cn.ErrCancelled
}

// GroupNotFound wraps constant.ErrGroupNotFound.
func GroupNotFound() error {
	return cn.ErrGroupNotFound
}
