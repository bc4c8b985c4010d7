// Package tableschema is the table scanning engine used by the validator.
//
// A [Schema] describes the columns of a tabular resource: field names, types,
// string formats and constraints. [Load] binds a schema to a [Source] and
// positions the scan at a starting row; [Table.Read] then casts every
// remaining record and stops at the first row that does not conform.
//
// # Failure shapes
//
// Read and Load report problems in one of four shapes, which callers are
// expected to tell apart with errors.As / errors.Is:
//
//   - [*CastError]: one cell (or the row as a whole) is invalid.
//   - [*MultipleErrors]: several cells of the same row are invalid.
//   - [ErrSourceExhausted]: a resumed Load was positioned past the last row.
//   - anything else: schema, header, I/O or CSV syntax problems.
//
// Row numbers in CastError are 1-based and relative to the first data row
// read by the failing attempt, so a caller that resumes scans must add the
// attempt's starting row itself.
//
// # Sources
//
// [FileSource], [URLSource] and [ReaderSource] can be reopened any number of
// times and support resuming at an arbitrary row. [RecordsSource] wraps an
// already materialised sequence and only honours the starting row as an
// initial skip.
package tableschema
