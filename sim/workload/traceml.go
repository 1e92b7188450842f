package workload

import (
	"encoding/xml"
	"fmt"
	"os"
	"strconv"
)

const (
	taskBeginTag    = "task_begin"
	taskEndTag      = "task_end"
	threadAttribute = "Thread"
)

// Traces maps a stage name to its recorded service times in nanoseconds.
type Traces map[string][]int64

type traceMLDocument struct {
	Descriptions []struct {
		Attributes []struct {
			Name   string     `xml:"name,attr"`
			Values []xmlBlank `xml:",any"`
		} `xml:"attribute"`
	} `xml:"description"`
	Nodes []traceMLNode `xml:",any"`
}

type xmlBlank struct {
	XMLName xml.Name
}

type traceMLNode struct {
	XMLName xml.Name
	Attrs   []xml.Attr `xml:",any,attr"`
}

func (n traceMLNode) attr(name string) (string, bool) {
	for _, a := range n.Attrs {
		if a.Name.Local == name {
			return a.Value, true
		}
	}
	return "", false
}

func (n traceMLNode) intAttr(name string) (int64, error) {
	v, ok := n.attr(name)
	if !ok {
		return 0, fmt.Errorf("%s: missing %q attribute", n.XMLName.Local, name)
	}
	i, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%s: bad %q attribute: %w", n.XMLName.Local, name, err)
	}
	return i, nil
}

type openTask struct {
	id    string
	begin int64
}

// ParseTraceML reads a TBB traceml file and returns per-stage task
// durations. Task ids found in names are folded into their stage name;
// unknown ids are kept as is.
func ParseTraceML(path string, names map[string]string) (Traces, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read traceml %s: %w", path, err)
	}
	traces, err := parseTraceML(data, names)
	if err != nil {
		return nil, fmt.Errorf("parse traceml %s: %w", path, err)
	}
	return traces, nil
}

func parseTraceML(data []byte, names map[string]string) (Traces, error) {
	var doc traceMLDocument
	if err := xml.Unmarshal(data, &doc); err != nil {
		return nil, err
	}
	threads, err := threadCount(&doc)
	if err != nil {
		return nil, err
	}

	// Each thread runs nested tasks, so begin/end pairs match per thread.
	stacks := make([][]openTask, threads)
	durations := make(map[string][]int64)
	var order []string

	for i, node := range doc.Nodes {
		if _, ok := node.attr("tid"); !ok {
			continue
		}
		tid, err := node.intAttr("tid")
		if err != nil {
			return nil, fmt.Errorf("node %d: %w", i, err)
		}
		if tid < 0 || tid >= int64(threads) {
			return nil, fmt.Errorf("node %d: tid %d out of range [0, %d)", i, tid, threads)
		}
		ts, err := node.intAttr("ts")
		if err != nil {
			return nil, fmt.Errorf("node %d: %w", i, err)
		}

		switch node.XMLName.Local {
		case taskBeginTag:
			id, ok := node.attr("id")
			if !ok {
				return nil, fmt.Errorf("node %d: task_begin without id", i)
			}
			stacks[tid] = append(stacks[tid], openTask{id: id, begin: ts})
		case taskEndTag:
			stack := stacks[tid]
			if len(stack) == 0 {
				return nil, fmt.Errorf("node %d: task_end on thread %d without task_begin", i, tid)
			}
			open := stack[len(stack)-1]
			stacks[tid] = stack[:len(stack)-1]
			d := ts - open.begin
			if d < 0 {
				return nil, fmt.Errorf("node %d: task %s ends before it begins (%dns)", i, open.id, d)
			}
			if _, seen := durations[open.id]; !seen {
				order = append(order, open.id)
			}
			durations[open.id] = append(durations[open.id], d)
		}
	}

	// Fold in first-seen order so sample order does not depend on map iteration.
	traces := make(Traces)
	for _, id := range order {
		name := id
		if n, ok := names[id]; ok {
			name = n
		}
		traces[name] = append(traces[name], durations[id]...)
	}
	return traces, nil
}

func threadCount(doc *traceMLDocument) (int, error) {
	for _, d := range doc.Descriptions {
		for _, a := range d.Attributes {
			if a.Name == threadAttribute {
				return len(a.Values), nil
			}
		}
	}
	return 0, fmt.Errorf("no %s attribute in description", threadAttribute)
}
