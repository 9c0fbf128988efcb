// Package raster holds the in-memory data model shared by the engines and the
// classifiers: a georeferenced grid of float64 cells with a no-data sentinel,
// and the zonal statistic table produced by per-region reductions.
//
// A Layer is treated as immutable once an engine has stored it. Operations
// always build a new Layer (see Layer.Like) instead of mutating their inputs.
package raster
