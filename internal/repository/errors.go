// Package repository defines the persistence layer for seat packs and
// performances. Sentinel errors let higher layers separate "no such record"
// (expected, handled) from real system failures, instead of matching on
// driver error strings.
package repository

import "errors"

// ErrNotFound is returned when a lookup matches no record.
var ErrNotFound = errors.New("record not found")

// ErrDuplicateID is returned when an insert collides with an existing
// primary key. The executor recovers by regenerating the pack id.
var ErrDuplicateID = errors.New("duplicate internal pack id")
