// Package resource bounds the background work of a database.
//
// A Controller hands out three kinds of budget:
//
//   - background slots: snapshots and log rewrites each hold one while they
//     run, so a busy database never runs more than MaxBackgroundWorkers of
//     them at once
//   - memory: a snapshot reserves the size of its encoded payload before
//     buffering it
//   - IO: snapshot uploads and downloads are paced to IOLimitBytesPerSec
//
// All methods are safe on a nil *Controller, which imposes no limits.
package resource
