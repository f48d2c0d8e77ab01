// Package s3 downloads and deletes the objects referenced by queue
// notifications, using the AWS SDK v2 S3 client.
//
// A [Client] is created with [New] and initialised with [Client.Init]. It is
// safe for concurrent use and is shared by all workers:
//
//	client, err := s3.New(&awsCfg, logger).Init()
//	if err := client.Download(ctx, bucket, key, "/tmp/s3ingest/file.gz"); err != nil {
//	    ...
//	}
//
// Downloads are streamed to the destination file; nothing is buffered in
// memory. The destination is left in place on failure and the caller is
// responsible for removing it.
package s3
