// Package minio stores snapshots in MinIO or any other S3-compatible server
// (Ceph, Garage, SeaweedFS) through the MinIO client.
//
//	client, err := minio.New("localhost:9000", &minio.Options{
//	    Creds:  credentials.NewStaticV4("minioadmin", "minioadmin", ""),
//	    Secure: false,
//	})
//	if err != nil { ... }
//
//	store := miniostore.NewStore(client, "snapshots", "reroaring/")
//	db, err := reroaring.Open(reroaring.WithSnapshotStore(store))
//
// Unlike package blobstore/s3 it needs no AWS SDK, which suits air-gapped
// deployments.
package minio
