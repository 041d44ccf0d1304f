package model

// DefaultProjectName is used when a pipeline definition omits "project".
const DefaultProjectName = "default_project"

// StageDefinition is one named command of a pipeline.
type StageDefinition struct {
	Name    string
	Command string
}

// PipelineDefinition is the ordered stage list read from the pipeline file.
type PipelineDefinition struct {
	Project string
	Stages  []StageDefinition
}

// CommandResult is the raw outcome of one executed command.
type CommandResult struct {
	ExitCode int
	Stdout   string
	Stderr   string
}

// Succeeded reports whether the command exited with status zero.
func (r CommandResult) Succeeded() bool {
	return r.ExitCode == 0
}
