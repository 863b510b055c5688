// Package minio stores checkpoint blobs in MinIO or any other
// S3-compatible object store (Ceph, Garage, SeaweedFS) through the MinIO
// client, without pulling in the AWS SDK.
//
//	client, err := minio.New("localhost:9000", &minio.Options{
//	    Creds:  credentials.NewStaticV4("minioadmin", "minioadmin", ""),
//	    Secure: false,
//	})
//	if err != nil {
//	    return err
//	}
//	store := minioblob.NewStore(client, "checkpoints", "run-7/")
package minio
