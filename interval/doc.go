/*Package interval implements typed genomic intervals with 1-based inclusive
  coordinates, along with the operations the rest of this repository builds
  on: chromosome filtering, naming-style relabeling ("1" <-> "chr1"),
  closed-interval overlap tests, and tree-backed overlap queries.
  Intervals are value types and are treated as immutable once constructed;
  a Set is an ordered slice, and ordering is preserved by every operation
  that returns a subset.
*/
package interval
