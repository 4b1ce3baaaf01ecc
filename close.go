package silo

// Close stops the snapshot watcher, waits for it to exit and shuts down the
// worker pool. Queries started after Close fail with ErrClosed.
//
// Close is idempotent.
func (db *DB) Close() error {
	if db == nil || !db.closed.CompareAndSwap(false, true) {
		return nil
	}
	if db.stopWatch != nil {
		db.stopWatch()
		<-db.watchDone
	}
	db.pool.Close()
	return nil
}
