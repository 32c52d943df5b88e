package bom

import "errors"

var (
	// ErrScratchBusy means another evaluation held the scratch lease for longer than the wait timeout.
	ErrScratchBusy = errors.New("recipe scratch range is busy")
	// ErrScratchDirty means injected values could not be cleared from the recipe sheet.
	ErrScratchDirty = errors.New("recipe scratch range left dirty")
	// ErrInvalidSchema is returned by Schema.Validate.
	ErrInvalidSchema = errors.New("invalid schema")
)
