// Package storage persists imported attachments.
//
// Bytes go to an S3-compatible bucket (S3Store works against AWS, MinIO and
// Supabase Storage) and one metadata row per document goes to the Postgres
// documents table (PostgresStore). A document is identified by the pair
// (user ID, storage path); StoragePath derives the path from the filename, so
// re-importing the same attachment maps onto the same row and object.
package storage
