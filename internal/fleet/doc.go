// Package fleet manages PMScan devices and their sensor records.
//
// Every operation runs the ownership cascade: a device must belong to the
// caller, and a record is reachable only through a device the caller owns.
// Record payloads are opaque bytes; decoding them is out of scope.
package fleet
