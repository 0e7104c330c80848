package fetch

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/OFFIS-RIT/keggflow/internal/kegg"
	"github.com/OFFIS-RIT/keggflow/pkg/common"
	"github.com/OFFIS-RIT/keggflow/pkg/ident"
	"github.com/OFFIS-RIT/keggflow/pkg/logger"
)

// Client is the part of *kegg.Client the fetcher needs.
type Client interface {
	Get(ctx context.Context, ids []string) ([]byte, error)
	Link(ctx context.Context, target string, ids []string) ([]byte, error)
}

// Stats counts batches of one fetch run.
type Stats struct {
	Batches   int
	Succeeded int
	Failed    int
}

// AllFailed reports whether there was work and none of it succeeded.
func (s Stats) AllFailed() bool {
	return s.Batches > 0 && s.Succeeded == 0
}

// Fetcher sends one request per batch, in order, and keeps going when a
// batch fails. Failed batches are written to the error log as
// *common.FetchError lines.
type Fetcher struct {
	client    Client
	batchSize int
	errorLog  io.Writer
}

type NewFetcherParams struct {
	Client    Client
	BatchSize int
	// ErrorLog receives one line per failed batch. Nil discards them.
	ErrorLog io.Writer
}

func NewFetcher(params NewFetcherParams) *Fetcher {
	errorLog := params.ErrorLog
	if errorLog == nil {
		errorLog = io.Discard
	}
	return &Fetcher{
		client:    params.Client,
		batchSize: params.BatchSize,
		errorLog:  errorLog,
	}
}

// FetchRecords fetches the flat records of ids and appends each successful
// response body to acc, terminated by a record delimiter.
func (f *Fetcher) FetchRecords(ctx context.Context, kind ident.Kind, ids []string, acc io.Writer) (Stats, error) {
	return f.run(ctx, "get", kind, ids, func(ctx context.Context, batch []string) error {
		body, err := f.client.Get(ctx, batch)
		if err != nil {
			return err
		}
		return appendRecords(acc, body)
	})
}

// FetchLinks fetches the target cross references of ids. The returned edges
// are sorted and unique.
func (f *Fetcher) FetchLinks(ctx context.Context, target string, kind ident.Kind, ids []string) ([]common.Edge, Stats, error) {
	var edges []common.Edge
	stats, err := f.run(ctx, "link/"+target, kind, ids, func(ctx context.Context, batch []string) error {
		body, err := f.client.Link(ctx, target, batch)
		if err != nil {
			return err
		}
		edges = append(edges, kegg.ParseLinks(body)...)
		return nil
	})
	if err != nil {
		return nil, stats, err
	}
	return common.SortedUniqueEdges(edges), stats, nil
}

// errWrite marks failures to write local output, which stop the run.
type errWrite struct{ err error }

func (e errWrite) Error() string { return e.err.Error() }

func (f *Fetcher) run(
	ctx context.Context,
	endpoint string,
	kind ident.Kind,
	ids []string,
	do func(ctx context.Context, batch []string) error,
) (Stats, error) {
	batches := Batches(ids, f.batchSize)
	stats := Stats{Batches: len(batches)}

	for i, batch := range batches {
		qualified := kind.QualifyAll(batch)
		err := do(ctx, qualified)
		if err == nil {
			stats.Succeeded++
			logger.Info("[Fetch] Fetched batch", "endpoint", endpoint, "batch", i+1, "of", len(batches), "ids", len(batch))
			continue
		}

		var werr errWrite
		if errors.As(err, &werr) {
			return stats, werr.err
		}
		if ctx.Err() != nil {
			return stats, ctx.Err()
		}

		stats.Failed++
		fetchErr := &common.FetchError{
			Endpoint:   endpoint,
			Batch:      qualified,
			StatusCode: kegg.StatusCode(err),
			Err:        err,
		}
		logger.Warn("[Fetch] Batch failed", "endpoint", endpoint, "batch", i+1, "error", err)
		if _, werr := fmt.Fprintln(f.errorLog, fetchErr.LogLine()); werr != nil {
			return stats, fmt.Errorf("failed to write error log: %w", werr)
		}
	}

	if stats.AllFailed() {
		logger.Error("[Fetch] Every batch failed", "endpoint", endpoint, "batches", stats.Batches)
	}
	return stats, nil
}

func appendRecords(acc io.Writer, body []byte) error {
	trimmed := bytes.TrimRight(body, " \t\r\n")
	if len(trimmed) == 0 {
		return nil
	}
	var buf bytes.Buffer
	buf.Write(trimmed)
	if !bytes.HasSuffix(trimmed, []byte("///")) {
		buf.WriteString("\n///")
	}
	buf.WriteByte('\n')
	if _, err := acc.Write(buf.Bytes()); err != nil {
		return errWrite{fmt.Errorf("failed to append to accumulator: %w", err)}
	}
	return nil
}
