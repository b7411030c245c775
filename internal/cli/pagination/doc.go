// Package pagination provides the sorting and paging flags shared by the
// list-producing CLI commands.
//
//   - Params: --limit/--offset/--sort parsing and validation
//   - Meta: paging metadata attached to JSON output
//   - RecordSorter: field-based ordering of records
package pagination
