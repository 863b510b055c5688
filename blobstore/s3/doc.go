// Package s3 stores checkpoint blobs in Amazon S3 and records committed
// checkpoints in DynamoDB.
//
// # Usage
//
//	cfg, err := config.LoadDefaultConfig(ctx)
//	if err != nil {
//	    return err
//	}
//	store := s3.NewStore(awss3.NewFromConfig(cfg), "my-bucket", "checkpoints/")
//	committer := s3.NewDDBCommitter(dynamodb.NewFromConfig(cfg), "distvec-commits", "s3://my-bucket/checkpoints/")
//
//	err = checkpoint.Save(ctx, v, store, "step-0042", checkpoint.WithCommitter(committer))
//
// Objects larger than the part size are written with multipart uploads.
// Reads use ranged GETs, so a worker fetches only the parts it needs.
package s3
