package driven

import (
	"context"

	"github.com/ericfisherdev/basicci/internal/domain/model"
)

// PipelineLoader defines the driven port for reading the stage list of a run.
// Implementations return errors wrapping model.ErrPipelineNotFound or
// model.ErrPipelineInvalid.
type PipelineLoader interface {
	Load(ctx context.Context) (model.PipelineDefinition, error)
}
