package dataset

import (
	"fmt"
	"io"
	"os"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/arrow/csv"

	"github.com/23skdu/longbow-seq2seq/internal/logger"
	"github.com/23skdu/longbow-seq2seq/internal/metrics"
)

var pairSchema = arrow.NewSchema([]arrow.Field{
	{Name: "source", Type: arrow.BinaryTypes.String},
	{Name: "target", Type: arrow.BinaryTypes.String},
}, nil)

// LoadTSV reads source<TAB>target rows from path.
func LoadTSV(path string) ([]Pair, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open dataset: %w", err)
	}
	defer f.Close()

	pairs, err := ReadTSV(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	logger.Log.Info("Dataset loaded", "path", path, "pairs", len(pairs))
	return pairs, nil
}

// ReadTSV decodes two string columns per row. The first invalid row fails
// the whole read.
func ReadTSV(r io.Reader) ([]Pair, error) {
	rdr := csv.NewReader(r, pairSchema,
		csv.WithComma('\t'),
		csv.WithHeader(false),
		csv.WithLazyQuotes(true),
		csv.WithChunk(256),
	)
	defer rdr.Release()

	var pairs []Pair
	row := 0
	for rdr.Next() {
		rec := rdr.Record()
		src, ok := rec.Column(0).(*array.String)
		if !ok {
			return nil, fmt.Errorf("source column has type %s", rec.Column(0).DataType())
		}
		tgt, ok := rec.Column(1).(*array.String)
		if !ok {
			return nil, fmt.Errorf("target column has type %s", rec.Column(1).DataType())
		}
		for i := 0; i < int(rec.NumRows()); i++ {
			row++
			p := Pair{Source: src.Value(i), Target: tgt.Value(i)}
			if err := p.Validate(); err != nil {
				metrics.RecordValidationError("dataset", "invalid_pair")
				return nil, fmt.Errorf("row %d: %w", row, err)
			}
			pairs = append(pairs, p)
		}
	}
	if err := rdr.Err(); err != nil {
		return nil, fmt.Errorf("read tsv: %w", err)
	}
	return pairs, nil
}
