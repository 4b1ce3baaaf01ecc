package silo

import (
	"context"
	"errors"
	"fmt"

	"github.com/hupe1980/silo/apierr"
	"github.com/hupe1980/silo/internal/worker"
	"github.com/hupe1980/silo/resource"
	"github.com/hupe1980/silo/snapshot"
	"github.com/hupe1980/silo/storage"
)

var (
	// ErrNoSnapshot is returned while no snapshot has been loaded.
	ErrNoSnapshot = errors.New("database not initialized")

	// ErrClosed is returned by operations on a closed database.
	ErrClosed = errors.New("database closed")

	// ErrCorruptPartition indicates a partition that does not match its schema.
	ErrCorruptPartition = errors.New("corrupt partition")

	errNoNucleotideSequence = apierr.New(apierr.BadRequest, "The database does not contain a nucleotide sequence.")
)

// ErrLineageColumn is returned when a lineage definition is requested for a
// column that has none.
//
// The client-facing message is available through apierr.
type ErrLineageColumn struct {
	Column string
	// Exists reports whether the column is part of the schema.
	Exists bool
}

func (e *ErrLineageColumn) Error() string {
	if !e.Exists {
		return fmt.Sprintf("The column %s does not exist in this instance.", e.Column)
	}
	return fmt.Sprintf("The column %s does not have a lineageIndex defined.", e.Column)
}

func translateError(err error) error {
	if err == nil {
		return nil
	}

	var ae *apierr.Error
	if errors.As(err, &ae) {
		return err
	}

	var le *ErrLineageColumn
	if errors.As(err, &le) {
		return apierr.Wrap(apierr.BadRequest, err, le.Error())
	}

	switch {
	case errors.Is(err, ErrNoSnapshot), errors.Is(err, snapshot.ErrNoSnapshot):
		if !errors.Is(err, ErrNoSnapshot) {
			err = fmt.Errorf("%w: %w", ErrNoSnapshot, err)
		}
		return apierr.Wrap(apierr.Unavailable, err, "Database not initialized yet.")
	case errors.Is(err, ErrClosed), errors.Is(err, worker.ErrClosed):
		if !errors.Is(err, ErrClosed) {
			err = fmt.Errorf("%w: %w", ErrClosed, err)
		}
		return apierr.Wrap(apierr.Unavailable, err, "The database is shutting down.")
	case errors.Is(err, resource.ErrOverloaded), errors.Is(err, resource.ErrRateLimited):
		return apierr.Wrap(apierr.Unavailable, err, "Too many queries. Please try again later.")
	case errors.Is(err, context.DeadlineExceeded):
		return apierr.Wrap(apierr.Unavailable, err, "The query did not finish in time.")
	case errors.Is(err, storage.ErrCorrupt):
		return fmt.Errorf("%w: %w", ErrCorruptPartition, err)
	}
	return err
}
