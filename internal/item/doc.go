// Package item defines the data model shared by every part of the list
// synchronisation engine.
//
// An Item is an opaque record with a unique, totally ordered identifier
// assigned by the backend. Equality and replacement are always by ID; the
// payload (Fields) is never inspected by the engine except to detect no-op
// updates through ContentHash.
//
// # Canonical encoding
//
// Fields are restricted to canonical JSON values: strings, integers,
// booleans, arrays and objects. Floats and null are rejected so that the
// same payload always hashes to the same bytes. MarshalCanonical produces
// RFC 8785 style output (sorted keys by UTF-16 code units, NFC strings, no
// HTML escaping) and is the only encoding used for hashing.
package item
