package reroaring

import "errors"

// Close stops the background rewriter and closes the AOF and the snapshot
// manager. It does not save a snapshot; call Save first for that.
//
// Close waits for running commands. Later calls fail with ErrClosed.
func (d *DB) Close() error {
	if d == nil {
		return nil
	}

	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return nil
	}
	d.closed = true
	d.mu.Unlock()

	close(d.stopCh)
	d.bgWg.Wait()

	var errs []error
	if d.aof != nil {
		errs = append(errs, d.aof.Close())
	}
	if d.snapshots != nil {
		errs = append(errs, d.snapshots.Close())
	}
	return errors.Join(errs...)
}
