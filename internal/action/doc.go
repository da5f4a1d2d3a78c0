// Package action defines the closed set of edit actions recorded in a
// document's history and the catalog that applies them to a bitmap.
//
// Each action type has its own payload struct; together they form a sealed
// union behind the Payload interface. Payloads are serialized as JSON objects
// for storage and decoded back through mapstructure so that numeric fields
// survive the JSON float round trip.
//
// The catalog is pure with respect to its input bitmap: Apply returns a new
// image and never mutates the one it was given.
package action
