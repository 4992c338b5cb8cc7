package io

import (
	"errors"

	"github.com/ezrec/crashvm/translate"
)

var f = translate.From

var (
	// ErrPeripheral is joined into every error a device reports.
	ErrPeripheral = errors.New(f("peripheral fault"))

	// Device errors
	ErrReadOnly  = errors.New(f("device is read-only"))
	ErrWriteOnly = errors.New(f("device is write-only"))
	ErrOffset    = errors.New(f("offset invalid"))
	ErrFull      = errors.New(f("device full"))
	ErrEmpty     = errors.New(f("device empty"))
	ErrTrack     = errors.New(f("track invalid"))
)

// fault reports a peripheral fault with its specific cause.
func fault(err error) error {
	return errors.Join(ErrPeripheral, err)
}
