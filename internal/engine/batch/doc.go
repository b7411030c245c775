// Package batch provides sequential, paced processing of items in fixed-size batches.
//
// Both engine loops are built on it:
//   - the full loader walks missing keys with a batch size of one
//   - the price refresher walks loaded keys in batches of refresh_batch_size
//
// Batches run strictly one after another, never concurrently. A pacer is
// waited on between batches, a failing batch does not stop the ones after it,
// and a callback can return ErrStop to abandon the remaining batches.
// The package also holds the LoadProgress tracker published during full loads.
package batch
