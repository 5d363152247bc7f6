// Package testutil contains builders and fakes shared by package tests:
// a fluent transcript builder, a scripted presenter and models that fail,
// panic or block on demand.
//
// It is internal and must never be imported by production code.
package testutil
