package pipeline

import (
	"errors"
	"fmt"
	"net/url"

	"github.com/JakeFAU/sitemirror/internal/selector"
)

// Sentinel errors returned by Advance and the download executor. All of them
// abort the run.
var (
	// ErrSelectorContract means a matched element lacked the attribute its step reads.
	ErrSelectorContract = errors.New("selector contract violation")
	// ErrURLResolution means a link or resource reference could not be resolved.
	ErrURLResolution = errors.New("url resolution failed")
	// ErrFilesystem wraps unrecoverable filesystem failures.
	ErrFilesystem = errors.New("filesystem error")
	// ErrUnknownStep is returned for step keys other than the supported two.
	ErrUnknownStep = errors.New("unknown step")
)

// StepKind tags a Step.
type StepKind int

// Supported step kinds.
const (
	ExtractLinks StepKind = iota + 1
	DownloadResource
)

// Configuration keys for each step kind.
const (
	ExtractLinksKey     = "ExtractHrefsFromHTML"
	DownloadResourceKey = "DownloadImage"
)

// ParseStepKind maps a configuration key onto a StepKind.
func ParseStepKind(key string) (StepKind, error) {
	switch key {
	case ExtractLinksKey:
		return ExtractLinks, nil
	case DownloadResourceKey:
		return DownloadResource, nil
	default:
		return 0, fmt.Errorf("%w: %q (want %s or %s)", ErrUnknownStep, key, ExtractLinksKey, DownloadResourceKey)
	}
}

func (k StepKind) String() string {
	switch k {
	case ExtractLinks:
		return ExtractLinksKey
	case DownloadResource:
		return DownloadResourceKey
	default:
		return fmt.Sprintf("StepKind(%d)", int(k))
	}
}

// Attribute is the element attribute the step reads its URL from.
func (k StepKind) Attribute() string {
	if k == DownloadResource {
		return "src"
	}
	return "href"
}

// Step is one stage of a destination pipeline.
type Step struct {
	Kind     StepKind
	Selector selector.Selector
}

// NewStep compiles rawSelector for the given kind.
func NewStep(kind StepKind, rawSelector string) (Step, error) {
	sel, err := selector.Compile(rawSelector)
	if err != nil {
		return Step{}, fmt.Errorf("%s: %w", kind, err)
	}
	return Step{Kind: kind, Selector: sel}, nil
}

func (s Step) String() string {
	return fmt.Sprintf("%s(%s)", s.Kind, s.Selector)
}

// CrawlState is carried by a crawl task from submission to response.
type CrawlState struct {
	Dest  string
	Steps []Step
}

// Split returns the first remaining step and the rest. The rest shares the
// backing array of s.Steps; callers handing it to new states must copy it.
// ok is false when no steps remain.
func (s CrawlState) Split() (Step, []Step, bool) {
	if len(s.Steps) == 0 {
		return Step{}, nil, false
	}
	return s.Steps[0], s.Steps[1:], true
}

// Task is a crawl submission for the task source.
type Task struct {
	URL   *url.URL
	State CrawlState
}

// DownloadTask is a resolved resource awaiting fetch-and-write.
type DownloadTask struct {
	Source *url.URL
	Dest   string
}

// Response is a fetched page as seen by the engine.
type Response struct {
	// URL is the final request URL, used as the base for relative references.
	URL  *url.URL
	Body string
}

// OutcomeKind tags an Outcome.
type OutcomeKind int

// Outcome kinds produced by Advance.
const (
	OutcomeTerminal OutcomeKind = iota
	OutcomeNewTasks
	OutcomeOutput
)

func (k OutcomeKind) String() string {
	switch k {
	case OutcomeNewTasks:
		return "new_tasks"
	case OutcomeOutput:
		return "output"
	default:
		return "terminal"
	}
}

// Outcome is the result of advancing one state.
type Outcome struct {
	Kind  OutcomeKind
	Tasks []Task
	Batch []DownloadTask
}
