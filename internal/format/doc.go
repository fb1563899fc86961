// Package format classifies media formats and resolves conversion strategies.
//
// Every supported format is described by a Descriptor carrying its file
// extension, MIME type, and top-level Category (image, audio, video, or
// document). Formats conform to exactly one top-level category; video
// formats additionally conform to the audiovisual supercategory.
//
// The conversion strategy for a category pair is resolved by
// ResolveStrategy, which is a pure function over the closed strategy table.
// Pairs outside the table fail with IncompatibleError; there is no default
// branch.
package format
