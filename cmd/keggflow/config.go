package main

import (
	"flag"

	"github.com/OFFIS-RIT/keggflow/internal/pipeline"
)

// bindConfig registers the pipeline settings on fs. Flags default to the
// values already in cfg, so the environment stays the fallback.
func bindConfig(fs *flag.FlagSet, cfg *pipeline.Config) {
	fs.StringVar(&cfg.DataDir, "data-dir", cfg.DataDir, "root of the stage file layout")
	fs.StringVar(&cfg.Supplement, "supplement", cfg.Supplement, "grouped CSV of extra reaction ids")
	fs.StringVar(&cfg.BaseURL, "base-url", cfg.BaseURL, "KEGG REST base URL")
	fs.IntVar(&cfg.BatchSize, "batch-size", cfg.BatchSize, "ids per KEGG request (1-10)")
	fs.DurationVar(&cfg.Delay, "delay", cfg.Delay, "minimum delay between KEGG requests")
	fs.IntVar(&cfg.MaxRetries, "retries", cfg.MaxRetries, "attempts per request for 429, 503 and network errors")
	fs.DurationVar(&cfg.Timeout, "timeout", cfg.Timeout, "per-request timeout")
	fs.BoolVar(&cfg.Debug, "debug", cfg.Debug, "debug logging")
}

// fetchStage maps the -kind flag of the fetch command to its stage.
func fetchStage(kind string) (string, bool) {
	switch kind {
	case "reaction", "reactions", "rn":
		return pipeline.StageFetchReactions, true
	case "compound", "compounds", "cpd":
		return pipeline.StageFetchCompounds, true
	}
	return "", false
}
