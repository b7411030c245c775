// Package record defines the tracked instrument data model.
//
// A Record is split into two subsets:
//   - the volatile subset (Quote): price, change, volume, day high/low
//   - the stable subset: profile, fundamentals, analysis, financial statements
//
// Full loads replace a whole Record. Price refreshes replace only the Quote via
// a PricePatch; the stable subset is never touched by a refresh.
package record
