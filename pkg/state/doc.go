// Package state defines the persistence contract for wizard session snapshots
// and ships three implementations of it.
//
// Responsibilities:
//   - Store[T] only loads/saves a single snapshot for a single Ref.
//   - The wizard store owns when to save; implementations own where and how.
//   - Meta travels with every snapshot so callers can trace which write they
//     are looking at and detect concurrent writers through ETag.
//
// Implementations:
//
//	MemoryStore  tests and examples
//	FileStore    one JSON document per session, written atomically, with an
//	             optional byte quota that mirrors browser storage limits
//	SQLiteStore  one row per session in a wizard_snapshots table
//
// Deterministic keys:
//
//	Ref.Identifier() returns "<domain>/<session>". Both parts are restricted
//	to letters, digits, dash, underscore and dot so the key is safe to use as
//	a file name and a primary key.
package state
