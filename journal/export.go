package journal

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/xitongsys/parquet-go-source/writerfile"
	"github.com/xitongsys/parquet-go/parquet"
	"github.com/xitongsys/parquet-go/writer"
)

type parquetRow struct {
	ID         string `parquet:"name=id, type=BYTE_ARRAY, convertedtype=UTF8"`
	Sequence   int64  `parquet:"name=sequence, type=INT64"`
	Type       string `parquet:"name=type, type=BYTE_ARRAY, convertedtype=UTF8"`
	IntentID   int64  `parquet:"name=intent_id, type=INT64"`
	PositionID int64  `parquet:"name=position_id, type=INT64"`
	Attributes string `parquet:"name=attributes, type=BYTE_ARRAY, convertedtype=UTF8"`
	PrevDigest string `parquet:"name=prev_digest, type=BYTE_ARRAY, convertedtype=UTF8"`
	Digest     string `parquet:"name=digest, type=BYTE_ARRAY, convertedtype=UTF8"`
	CreatedAt  string `parquet:"name=created_at, type=BYTE_ARRAY, convertedtype=UTF8"`
}

func optionalID(v *uint64) int64 {
	if v == nil {
		return -1
	}
	return int64(*v)
}

// ExportParquet writes every record to path as a Snappy-compressed Parquet
// file for offline audit. Missing intent or position ids are written as -1.
func (j *Journal) ExportParquet(ctx context.Context, path string) (int, error) {
	file, err := os.Create(path)
	if err != nil {
		return 0, fmt.Errorf("journal: create parquet: %w", err)
	}
	fw := writerfile.NewWriterFile(file)
	pw, err := writer.NewParquetWriter(fw, new(parquetRow), 1)
	if err != nil {
		file.Close()
		return 0, fmt.Errorf("journal: parquet schema: %w", err)
	}
	pw.CompressionType = parquet.CompressionCodec_SNAPPY

	const page = 1000
	var (
		after   uint64
		written int
	)
	for {
		batch, err := j.Since(ctx, after, page)
		if err != nil {
			pw.WriteStop()
			file.Close()
			return written, err
		}
		for i := range batch {
			rec := &batch[i]
			row := &parquetRow{
				ID:         rec.ID.String(),
				Sequence:   int64(rec.Sequence),
				Type:       rec.Type,
				IntentID:   optionalID(rec.IntentID),
				PositionID: optionalID(rec.PositionID),
				Attributes: rec.Attributes,
				PrevDigest: rec.PrevDigest,
				Digest:     rec.Digest,
				CreatedAt:  rec.CreatedAt.UTC().Format(time.RFC3339Nano),
			}
			if err := pw.Write(row); err != nil {
				pw.WriteStop()
				file.Close()
				return written, fmt.Errorf("journal: parquet write: %w", err)
			}
			written++
			after = rec.Sequence
		}
		if len(batch) < page {
			break
		}
	}
	if err := pw.WriteStop(); err != nil {
		file.Close()
		return written, fmt.Errorf("journal: parquet flush: %w", err)
	}
	if err := file.Close(); err != nil {
		return written, fmt.Errorf("journal: close parquet file: %w", err)
	}
	return written, nil
}
