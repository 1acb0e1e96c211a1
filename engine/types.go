package engine

import (
	"time"

	"github.com/forgen-run/forgen/utils/ai"
	"github.com/forgen-run/forgen/utils/config"
	"github.com/forgen-run/forgen/utils/tmpl"
)

// Recipe is a named, versioned declaration of a step graph.
type Recipe struct {
	Name        string                  `yaml:"name"`
	Description string                  `yaml:"description,omitempty"`
	Version     string                  `yaml:"version,omitempty"`
	Author      string                  `yaml:"author,omitempty"`
	Variables   map[string]VariableSpec `yaml:"variables,omitempty"`
	Steps       []Step                  `yaml:"steps"`

	// StepsPre and StepsPost run, respectively, immediately before and
	// after Automatic Template Processing's default pass over
	// ./templates/ (see engine.go's runAutomaticTemplates). A recipe
	// with no `steps:` entries at all may still declare these to do
	// pure pre/post work around a templates-only generation.
	StepsPre  []Step                 `yaml:"stepsPre,omitempty"`
	StepsPost []Step                 `yaml:"stepsPost,omitempty"`

	Provides    map[string]string       `yaml:"provides,omitempty"`
	Hooks       *Hooks                  `yaml:"hooks,omitempty"`
	OnSuccess   string                  `yaml:"onSuccess,omitempty"`
	OnError     string                  `yaml:"onError,omitempty"`
	Composition *Composition            `yaml:"composition,omitempty"`
	Settings    map[string]interface{}  `yaml:"settings,omitempty"`

	// SourcePath is the file the recipe was loaded from, used to
	// resolve a sibling ./templates/ directory for automatic
	// template processing. Empty when loaded from inline content.
	SourcePath string `yaml:"-"`
}

// VariableSpec describes one entry in a recipe's variable schema.
type VariableSpec struct {
	Type     string      `yaml:"type"`
	Default  interface{} `yaml:"default,omitempty"`
	Required bool        `yaml:"required,omitempty"`
	Prompt   string      `yaml:"prompt,omitempty"`
	Validate string      `yaml:"validate,omitempty"`
}

// Hooks holds recipe-level lifecycle message templates, rendered the
// same way as onSuccess/onError at the matching point in the run.
type Hooks struct {
	BeforeRecipe string `yaml:"beforeRecipe,omitempty"`
	AfterRecipe  string `yaml:"afterRecipe,omitempty"`
	BeforeStep   string `yaml:"beforeStep,omitempty"`
	AfterStep    string `yaml:"afterStep,omitempty"`
	OnError      string `yaml:"onError,omitempty"`
}

func (h *Hooks) beforeRecipe() string {
	if h == nil {
		return ""
	}
	return h.BeforeRecipe
}

func (h *Hooks) afterRecipe() string {
	if h == nil {
		return ""
	}
	return h.AfterRecipe
}

func (h *Hooks) beforeStep() string {
	if h == nil {
		return ""
	}
	return h.BeforeStep
}

func (h *Hooks) afterStep() string {
	if h == nil {
		return ""
	}
	return h.AfterStep
}

func (h *Hooks) onError() string {
	if h == nil {
		return ""
	}
	return h.OnError
}

// Composition declares other recipes this one extends or includes.
type Composition struct {
	Extends  []string `yaml:"extends,omitempty"`
	Includes []string `yaml:"includes,omitempty"`
}

// ToolKind discriminates a Step's tool-specific payload.
type ToolKind string

const (
	ToolTemplate   ToolKind = "template"
	ToolAction     ToolKind = "action"
	ToolCodeMod    ToolKind = "codemod"
	ToolRecipe     ToolKind = "recipe"
	ToolShell      ToolKind = "shell"
	ToolPrompt     ToolKind = "prompt"
	ToolInstall    ToolKind = "install"
	ToolQuery      ToolKind = "query"
	ToolPatch      ToolKind = "patch"
	ToolEnsureDirs ToolKind = "ensure_dirs"
	ToolSequence   ToolKind = "sequence"
	ToolParallel   ToolKind = "parallel"
	ToolAI         ToolKind = "ai"
)

// Step is the tagged-union step record:
// a common header plus a tool-specific payload decoded generically
// into Params (see step.go's UnmarshalYAML). Each Tool implementation
// knows how to decode its own fields out of Params.
type Step struct {
	Name            string                 `yaml:"name"`
	Description     string                 `yaml:"description,omitempty"`
	Tool            ToolKind               `yaml:"tool"`
	When            string                 `yaml:"when,omitempty"`
	DependsOn       []string               `yaml:"dependsOn,omitempty"`
	Parallel        bool                   `yaml:"parallel,omitempty"`
	ContinueOnError bool                   `yaml:"continueOnError,omitempty"`
	TimeoutMS       int                    `yaml:"timeout,omitempty"`
	Retries         int                    `yaml:"retries,omitempty"`
	Variables       map[string]interface{} `yaml:"variables,omitempty"`
	Environment     map[string]string      `yaml:"environment,omitempty"`
	Exports         map[string]string      `yaml:"exports,omitempty"`

	// Params carries the remaining, tool-specific YAML fields
	// untouched; tool implementations re-decode it into their own
	// typed struct via yaml.Node re-marshaling.
	Params map[string]interface{} `yaml:"-"`
	node   interface{}            `yaml:"-"` // *yaml.Node, kept to let tools re-decode with strict types
}

// RawNode exposes the originating *yaml.Node so a tool can decode its
// own typed params struct without forcing every field through
// map[string]interface{} round-tripping.
func (s *Step) RawNode() interface{} { return s.node }

// StepContext is the per-step, read-mostly record the executor builds
// and hands to a tool. Step variables shadow Context variables, which
// shadow Recipe variables (merge already applied to Variables here).
type StepContext struct {
	Step        *Step
	Variables   map[string]interface{}
	ProjectRoot string
	Results     map[string]*StepResult
	RecipeName  string
	Answers     map[string]string
	CollectMode bool
	DryRun      bool
	Force       bool
	SkipPrompts bool
	OnMessage   func(level, text string)

	// RenderEngine and Collector give the Template and AI tools access
	// to the shared rendering/collection services without every tool
	// constructor needing its own copies.
	RenderEngine *tmpl.Engine
	Collector    *ai.Collector

	// Engine lets the Recipe tool recurse back into ExecuteRecipe for
	// a nested recipe, reusing the same render engine/collector/
	// transport and the owning Engine's cycle-detection call stack.
	Engine *Engine

	// EnvConfig carries provider API keys to the AI tool, independent
	// of the AI Transport used for the two-pass template protocol.
	EnvConfig *config.EnvConfig

	// Communication is the run-scoped shared-data/message channel
	// handed to Action tool invocations; nested Recipe steps and
	// Parallel children inherit the same instance.
	Communication *Communication
}

// Get reads a variable by name.
func (c *StepContext) Get(name string) interface{} {
	if c.Variables == nil {
		return nil
	}
	return c.Variables[name]
}

// Status is a StepResult's terminal or in-flight state.
type Status string

const (
	StatusPending   Status = "pending"
	StatusRunning   Status = "running"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
	StatusSkipped   Status = "skipped"
	StatusCancelled Status = "cancelled"
)

// StepResult is the outcome of running one step.
type StepResult struct {
	Status                Status
	StepName              string
	ToolType              ToolKind
	StartTime             time.Time
	EndTime               time.Time
	Duration              time.Duration
	RetryCount            int
	DependenciesSatisfied bool
	ConditionResult       *bool
	ToolResult            interface{}
	FilesCreated          []string
	FilesModified         []string
	FilesDeleted          []string
	Error                 error
	Output                string
	Metadata              map[string]interface{}
}

// ExecutionMetadata aggregates counts across the whole step graph,
// including leaves nested inside Sequence/Parallel containers.
type ExecutionMetadata struct {
	TotalSteps     int
	CompletedSteps int
	FailedSteps    int
	SkippedSteps   int
	CancelledSteps int
	WorkingDir     string
	UserID         string
	SessionID      string
}

// RecipeExecution is the engine's top-level, always-returned result.
type RecipeExecution struct {
	Success      bool
	Recipe       *Recipe
	StepResults  []*StepResult
	Metadata     ExecutionMetadata
	Provides     map[string]interface{}
	Deferred     bool // stdout transport paused the run awaiting --answers
	Message      string
	FatalError   *Error
}
