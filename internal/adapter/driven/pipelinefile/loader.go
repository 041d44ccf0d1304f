// Package pipelinefile reads pipeline definitions from a YAML file.
package pipelinefile

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/ericfisherdev/basicci/internal/domain/model"
	"github.com/ericfisherdev/basicci/internal/domain/port/driven"
)

// Compile-time interface satisfaction check.
var _ driven.PipelineLoader = (*Loader)(nil)

// document is the on-disk shape:
//
//	project: my-service
//	stages:
//	  - stage: build
//	    command: go build ./...
type document struct {
	Project *string    `yaml:"project"`
	Stages  []stageDoc `yaml:"stages"`
}

type stageDoc struct {
	Stage   *string `yaml:"stage"`
	Command *string `yaml:"command"`
}

// Loader implements driven.PipelineLoader. The file is read on every Load so
// edits take effect for the next run.
type Loader struct {
	path string
}

// NewLoader creates a Loader for the YAML file at path.
func NewLoader(path string) *Loader {
	return &Loader{path: path}
}

// Load reads and validates the pipeline file. Errors carry model.KindConfig.
func (l *Loader) Load(_ context.Context) (model.PipelineDefinition, error) {
	f, err := os.Open(l.path)
	if errors.Is(err, fs.ErrNotExist) {
		return model.PipelineDefinition{}, configError(fmt.Errorf("%w: %s", model.ErrPipelineNotFound, l.path))
	}
	if err != nil {
		return model.PipelineDefinition{}, configError(fmt.Errorf("%w: open %s: %v", model.ErrPipelineInvalid, l.path, err))
	}
	defer f.Close()

	def, err := Parse(f)
	if err != nil {
		return model.PipelineDefinition{}, configError(err)
	}
	return def, nil
}

func configError(err error) error {
	return model.NewError(model.KindConfig, "load pipeline", err)
}

// Parse decodes a pipeline definition from r. Unknown keys, stages without a
// name or command, and an empty document are rejected.
func Parse(r io.Reader) (model.PipelineDefinition, error) {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)

	var doc document
	if err := dec.Decode(&doc); err != nil {
		if errors.Is(err, io.EOF) {
			return model.PipelineDefinition{}, fmt.Errorf("%w: empty document", model.ErrPipelineInvalid)
		}
		return model.PipelineDefinition{}, fmt.Errorf("%w: %v", model.ErrPipelineInvalid, err)
	}

	def := model.PipelineDefinition{
		Project: model.DefaultProjectName,
		Stages:  make([]model.StageDefinition, 0, len(doc.Stages)),
	}
	if doc.Project != nil {
		def.Project = *doc.Project
	}

	for i, s := range doc.Stages {
		if s.Stage == nil || strings.TrimSpace(*s.Stage) == "" {
			return model.PipelineDefinition{}, fmt.Errorf("%w: stage %d: missing stage name", model.ErrPipelineInvalid, i+1)
		}
		if s.Command == nil || strings.TrimSpace(*s.Command) == "" {
			return model.PipelineDefinition{}, fmt.Errorf("%w: stage %q: missing command", model.ErrPipelineInvalid, *s.Stage)
		}
		def.Stages = append(def.Stages, model.StageDefinition{Name: *s.Stage, Command: *s.Command})
	}

	return def, nil
}
