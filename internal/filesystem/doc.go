/*
Package filesystem wraps the file operations used on DATA_DIR (stat, open,
readdir, remove) with retries for NFS stale file handle errors (ESTALE).

Artifacts and uploads often live on a network volume in Kubernetes. A stale
handle there is transient, so each operation retries with exponential backoff
(default: 3 retries, 50ms doubling to 500ms). Any other error is returned
immediately.

	info, err := filesystem.StatWithRetry(path, filesystem.DefaultRetryConfig())

Retries are counted per operation and volume. Volumes are resolved from the
path by a [VolumeResolver], set once at startup:

	filesystem.SetDefaultVolumeResolver(filesystem.NewVolumeResolver(map[string]string{
	    "outputs": cfg.OutputDir,
	    "uploads": cfg.UploadDir,
	    "scratch": cfg.ScratchDir,
	}))
*/
package filesystem
