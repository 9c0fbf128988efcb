// Package engine defines the contract between habitatgrid and a whole-raster
// geoprocessing engine.
//
// Every primitive the recipes and classifiers rely on is a typed method on
// Engine: it names its inputs and its output layer, takes explicit options,
// and reports failure as an error instead of aborting the process. Layers are
// addressed by logical name; how a name maps onto storage (a file in a working
// directory, an entry in memory) is the engine's concern, with Workspace
// providing the numbered file layout used by file-backed engines.
//
// Two implementations live in sub-packages: whitebox, which drives the
// WhiteboxTools command line, and memengine, an in-memory reference engine
// used for tests and small study areas.
package engine
