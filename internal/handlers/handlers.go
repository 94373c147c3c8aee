package handlers

import (
	"time"

	"photo-archive/internal/database"
	"photo-archive/internal/metadata"
	"photo-archive/internal/previews"
	"photo-archive/internal/runs"
	"photo-archive/internal/scanner"
	"photo-archive/internal/search"
)

type Handlers struct {
	db        *database.Database
	registry  *runs.Registry
	executor  *search.Executor
	store     *previews.Store
	scanner   *scanner.Scanner
	generator *previews.Generator
	orphans   *previews.OrphanCleaner
	backfill  *metadata.Backfill
	reindexer *search.Reindexer
	startTime time.Time
}

func New(
	db *database.Database,
	registry *runs.Registry,
	executor *search.Executor,
	store *previews.Store,
	scan *scanner.Scanner,
	generator *previews.Generator,
	orphans *previews.OrphanCleaner,
	backfill *metadata.Backfill,
	reindexer *search.Reindexer,
) *Handlers {
	return &Handlers{
		db:        db,
		registry:  registry,
		executor:  executor,
		store:     store,
		scanner:   scan,
		generator: generator,
		orphans:   orphans,
		backfill:  backfill,
		reindexer: reindexer,
		startTime: time.Now(),
	}
}
