// Package storage publishes pipeline outputs to S3 compatible object storage.
package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"mime"
	"os"
	"path"
	"path/filepath"
	"slices"
	"strings"

	"github.com/OFFIS-RIT/keggflow/pkg/logger"

	"golang.org/x/sync/errgroup"
)

const uploadConcurrency = 4

// ObjectStore is what Publish needs from a bucket.
type ObjectStore interface {
	Put(ctx context.Context, key string, body io.ReadSeeker, contentType string) error
	List(ctx context.Context, prefix string) ([]string, error)
	Delete(ctx context.Context, keys []string) error
}

type PublishParams struct {
	// Prefix is the key prefix, e.g. "runs/2024-05-01".
	Prefix string
	Files  []string
	// Prune deletes objects under Prefix that were not uploaded by this call.
	Prune bool
}

type PublishResult struct {
	Uploaded []string
	Skipped  []string
	Pruned   []string
}

// Publish uploads every existing file to Prefix/<base name>. Missing files
// are skipped.
func Publish(ctx context.Context, store ObjectStore, params PublishParams) (PublishResult, error) {
	var result PublishResult
	if params.Prune && listPrefix(params.Prefix) == "" {
		return result, errors.New("refusing to prune without a prefix")
	}
	type upload struct{ path, key string }
	var uploads []upload

	for _, f := range params.Files {
		if _, err := os.Stat(f); errors.Is(err, os.ErrNotExist) {
			result.Skipped = append(result.Skipped, f)
			continue
		} else if err != nil {
			return result, err
		}
		uploads = append(uploads, upload{path: f, key: ObjectKey(params.Prefix, f)})
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(uploadConcurrency)
	for _, u := range uploads {
		g.Go(func() error {
			file, err := os.Open(u.path)
			if err != nil {
				return fmt.Errorf("failed to open %s: %w", u.path, err)
			}
			defer file.Close()
			if err := store.Put(gctx, u.key, file, contentType(u.path)); err != nil {
				return err
			}
			logger.Debug("[Publish] Uploaded", "key", u.key)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return result, err
	}
	for _, u := range uploads {
		result.Uploaded = append(result.Uploaded, u.key)
	}

	if params.Prune {
		existing, err := store.List(ctx, listPrefix(params.Prefix))
		if err != nil {
			return result, err
		}
		for _, key := range existing {
			if !slices.Contains(result.Uploaded, key) {
				result.Pruned = append(result.Pruned, key)
			}
		}
		if err := store.Delete(ctx, result.Pruned); err != nil {
			return result, err
		}
	}

	logger.Info("[Publish] Published outputs",
		"prefix", params.Prefix,
		"uploaded", len(result.Uploaded),
		"skipped", len(result.Skipped),
		"pruned", len(result.Pruned),
	)
	return result, nil
}

// ObjectKey is the key a local file is published under.
func ObjectKey(prefix, file string) string {
	return path.Join(strings.Trim(prefix, "/"), filepath.Base(file))
}

func listPrefix(prefix string) string {
	p := strings.Trim(prefix, "/")
	if p == "" {
		return ""
	}
	return p + "/"
}

func contentType(file string) string {
	switch ext := filepath.Ext(file); ext {
	case ".csv":
		return "text/csv"
	case ".txt", ".log", ".flat":
		return "text/plain"
	default:
		if t := mime.TypeByExtension(ext); t != "" {
			return t
		}
		return "application/octet-stream"
	}
}
