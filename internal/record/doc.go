// Package record is the storage-side value model: the shape a record has
// inside the embedded store, independent of any domain type.
//
// Key design constraints:
//   - Value is sealed; only Null, String, Int, Bool, Array and Object
//     implement it
//   - No floats; numbers are int64
//   - Bodies are persisted as canonical JSON (sorted keys, NFC strings, no
//     HTML escaping) so equal records always produce equal bytes
package record
