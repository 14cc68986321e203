package graph

import (
	"errors"

	"github.com/OFFIS-RIT/graphloom/backend/pkg/store"
)

// Pipeline turns extractor records into nodes and relationships of a
// GraphStorage. It is safe for concurrent use as long as the underlying
// store is.
//
// A Pipeline should be created using NewPipeline.
type Pipeline struct {
	store           store.GraphStorage
	parallelUpserts int
	maxRetries      int
}

// NewPipelineParams defines the configuration parameters for creating
// a new Pipeline.
//
// ParallelUpserts bounds how many node upserts run at the same time.
// MaxRetries is the number of attempts for idempotent store calls.
type NewPipelineParams struct {
	Store           store.GraphStorage
	ParallelUpserts int
	MaxRetries      int
}

// NewPipeline creates and returns a new Pipeline configured with
// the provided parameters.
//
// Example:
//
//	pipeline, err := graph.NewPipeline(graph.NewPipelineParams{
//		Store:           s,
//		ParallelUpserts: 8,
//		MaxRetries:      3,
//	})
//	if err != nil {
//		log.Fatal(err)
//	}
func NewPipeline(params NewPipelineParams) (*Pipeline, error) {
	if params.Store == nil {
		return nil, errors.New("graph pipeline requires a store")
	}
	parallel := params.ParallelUpserts
	if parallel <= 0 {
		parallel = 8
	}
	maxRetries := params.MaxRetries
	if maxRetries <= 0 {
		maxRetries = 3
	}
	return &Pipeline{
		store:           params.Store,
		parallelUpserts: parallel,
		maxRetries:      maxRetries,
	}, nil
}
