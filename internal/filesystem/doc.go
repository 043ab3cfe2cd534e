/*
Package filesystem wraps the file reads done during media preparation with
retries for NFS stale file handle errors (ESTALE).

Spooled uploads may live on a network volume. A stale handle there is
usually transient, so StatWithRetry, OpenWithRetry and ReadFileWithRetry
retry it with exponential backoff (50ms, 100ms, 200ms by default, capped at
MaxBackoff). Every other error is returned immediately.

	info, err := filesystem.StatWithRetry(path, filesystem.DefaultRetryConfig())

Metrics are labelled by volume. Configure the labels once at startup:

	filesystem.SetDefaultVolumeResolver(filesystem.NewVolumeResolver(map[string]string{
	    "spool":    cfg.SpoolDir,
	    "database": cfg.DatabaseDir,
	}))
	filesystem.SetObserver(metrics.NewFilesystemObserver())
*/
package filesystem
