// Package classify implements the classification recipes that turn engine
// primitives into planning categories:
//
//   - Connectors types connector regions as island, spur, link or hole
//     relative to tree blocks.
//   - Patches tags same-typed land-cover clumps with a size tier and plugs
//     patches under a quarter acre into their smallest neighbouring class.
//   - Proportion flags regions whose overlap with a target cover reaches a
//     threshold share of their area.
//   - Representativeness measures attribute-class acreage over a nested
//     chain of containment sets.
//
// Each classifier only issues engine calls. Intermediate layers are named
// after the output layer with a suffix, so they land in the same workspace
// and numbering as any other step output.
//
// Codes are built by arithmetic on 0/1 layers, never assigned ad hoc, so the
// same upstream truth values always yield the same code.
package classify
