package pipeline

import (
	"fmt"
	"net/url"
	"path/filepath"
	"strings"

	"go.uber.org/zap"

	"github.com/JakeFAU/sitemirror/internal/metrics"
	"github.com/JakeFAU/sitemirror/internal/naming"
	"github.com/JakeFAU/sitemirror/internal/selector"
)

// Engine advances crawl states one page at a time. It keeps no state of its
// own between calls.
type Engine struct {
	parser selector.Parser
	fs     FileSystem
	logger *zap.Logger
}

// NewEngine wires an Engine. A nil logger disables logging.
func NewEngine(parser selector.Parser, fs FileSystem, logger *zap.Logger) *Engine {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Engine{
		parser: parser,
		fs:     fs,
		logger: logger,
	}
}

// Advance executes the first remaining step of state against resp.
func (e *Engine) Advance(state CrawlState, resp Response) (Outcome, error) {
	step, rest, ok := state.Split()
	if !ok {
		e.logger.Debug("no steps remaining", zap.String("dest", state.Dest), zap.Stringer("url", resp.URL))
		return Outcome{Kind: OutcomeTerminal}, nil
	}
	metrics.ObservePage(step.Kind.String())

	doc, err := e.parser.Parse(resp.Body)
	if err != nil {
		return Outcome{}, fmt.Errorf("parse %s: %w", resp.URL, err)
	}

	switch step.Kind {
	case ExtractLinks:
		tasks, err := e.extractLinks(doc, step, rest, state.Dest, resp.URL)
		if err != nil {
			return Outcome{}, err
		}
		metrics.ObserveSubmitted(len(tasks))
		return Outcome{Kind: OutcomeNewTasks, Tasks: tasks}, nil
	case DownloadResource:
		batch, err := e.extractResources(doc, step, state.Dest, resp.URL)
		if err != nil {
			return Outcome{}, err
		}
		return Outcome{Kind: OutcomeOutput, Batch: batch}, nil
	default:
		return Outcome{}, fmt.Errorf("%w: %s", ErrUnknownStep, step.Kind)
	}
}

func (e *Engine) extractLinks(doc selector.Document, step Step, rest []Step, dest string, base *url.URL) ([]Task, error) {
	var tasks []Task
	for _, el := range doc.Select(step.Selector) {
		href, err := requireAttr(el, step)
		if err != nil {
			return nil, err
		}

		name := el.Text()
		child := filepath.Join(dest, naming.Sanitize(name))
		exists, err := e.fs.Exists(child)
		if err != nil {
			return nil, err
		}
		if exists {
			e.logger.Info("skipping link, destination exists", zap.String("name", name), zap.String("dest", child))
			metrics.ObserveSkip("directory")
			continue
		}

		target, err := resolve(base, href)
		if err != nil {
			return nil, err
		}
		e.logger.Info("found link", zap.String("name", name), zap.Stringer("url", target))
		tasks = append(tasks, Task{
			URL: target,
			State: CrawlState{
				Dest:  child,
				Steps: cloneSteps(rest),
			},
		})
	}
	return tasks, nil
}

func (e *Engine) extractResources(doc selector.Document, step Step, dest string, base *url.URL) ([]DownloadTask, error) {
	var batch []DownloadTask
	for i, el := range doc.Select(step.Selector) {
		src, err := requireAttr(el, step)
		if err != nil {
			return nil, err
		}
		target, err := resolve(base, src)
		if err != nil {
			return nil, err
		}
		filename, err := naming.FilenameFromURL(target)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrURLResolution, err)
		}

		path := filepath.Join(dest, naming.IndexedName(i, naming.Sanitize(filename)))
		exists, err := e.fs.Exists(path)
		if err != nil {
			return nil, err
		}
		if exists {
			e.logger.Info("skipping resource, destination exists", zap.String("file", filename), zap.String("dest", path))
			metrics.ObserveSkip("file")
			continue
		}

		e.logger.Info("to download", zap.Stringer("url", target), zap.String("dest", path))
		batch = append(batch, DownloadTask{Source: target, Dest: path})
	}
	return batch, nil
}

func requireAttr(el selector.Element, step Step) (string, error) {
	attr := step.Kind.Attribute()
	v, ok := el.Attr(attr)
	if !ok {
		return "", fmt.Errorf("%w: %s matched an element without %q: %s", ErrSelectorContract, step, attr, el.HTML())
	}
	return v, nil
}

func resolve(base *url.URL, ref string) (*url.URL, error) {
	if base == nil {
		return nil, fmt.Errorf("%w: no base url for %q", ErrURLResolution, ref)
	}
	u, err := base.Parse(strings.TrimSpace(ref))
	if err != nil {
		return nil, fmt.Errorf("%w: base %q and reference %q: %w", ErrURLResolution, base, ref, err)
	}
	u.Fragment = ""
	u.RawFragment = ""
	return u, nil
}

// cloneSteps gives every child branch its own backing array.
func cloneSteps(steps []Step) []Step {
	if len(steps) == 0 {
		return nil
	}
	out := make([]Step, len(steps))
	copy(out, steps)
	return out
}
