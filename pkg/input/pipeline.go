package input

import (
	"context"
	"fmt"
	"log"
	"path/filepath"
	"sort"
	"sync"
)

// DeviceInfo describes an input device node.
type DeviceInfo struct {
	Path  string
	Name  string
	MaxX  int
	MaxY  int
	Touch bool
}

// ListDevices enumerates /dev/input/event* nodes. Nodes that cannot be
// inspected are skipped.
func ListDevices() ([]DeviceInfo, error) {
	paths, err := filepath.Glob("/dev/input/event*")
	if err != nil {
		return nil, fmt.Errorf("input: list devices: %w", err)
	}
	sort.Strings(paths)

	var out []DeviceInfo
	for _, p := range paths {
		info, err := inspectDevice(p)
		if err != nil {
			log.Printf("input: skip %s: %v", p, err)
			continue
		}
		out = append(out, info)
	}
	return out, nil
}

// Pipeline runs one reader goroutine per device.
type Pipeline struct {
	Queue     *Queue
	Transform Transform

	// Open opens a device path. It defaults to OpenEvdev.
	Open func(path string) (Source, error)

	wg sync.WaitGroup
}

// NewPipeline returns a pipeline feeding q.
func NewPipeline(q *Queue, t Transform) *Pipeline {
	return &Pipeline{Queue: q, Transform: t, Open: OpenEvdev}
}

// Start opens every path and starts its reader. Devices that fail to open
// are logged and skipped; Start only fails when no device could be opened.
func (p *Pipeline) Start(ctx context.Context, paths []string) error {
	if err := p.Transform.Validate(); err != nil {
		return err
	}
	started := 0
	for _, path := range paths {
		src, err := p.Open(path)
		if err != nil {
			log.Printf("input: %v", err)
			continue
		}
		r := NewReader(path, src, p.Transform, p.Queue)
		started++
		p.wg.Add(1)
		go func() {
			defer p.wg.Done()
			r.Run(ctx)
		}()
	}
	if started == 0 && len(paths) > 0 {
		return fmt.Errorf("input: none of %d devices could be opened", len(paths))
	}
	return nil
}

// Wait blocks until every reader has exited.
func (p *Pipeline) Wait() {
	p.wg.Wait()
}
