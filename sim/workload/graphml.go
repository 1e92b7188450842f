package workload

import (
	"encoding/xml"
	"fmt"
	"os"
)

// nodeNameKey is the GraphML data key that carries a node's display name.
const nodeNameKey = "d0"

type graphMLDocument struct {
	Graphs []struct {
		Nodes []struct {
			ID   string `xml:"id,attr"`
			Data []struct {
				Key   string `xml:"key,attr"`
				Value string `xml:",chardata"`
			} `xml:"data"`
		} `xml:"node"`
	} `xml:"graph"`
}

// ParseGraphML maps TBB flow-graph node ids to stage names across one or
// more GraphML files. Later files override earlier ones.
func ParseGraphML(paths ...string) (map[string]string, error) {
	names := make(map[string]string)
	for _, path := range paths {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read graph %s: %w", path, err)
		}
		single, err := parseGraphMLNames(data)
		if err != nil {
			return nil, fmt.Errorf("parse graph %s: %w", path, err)
		}
		for id, name := range single {
			names[id] = name
		}
	}
	return names, nil
}

func parseGraphMLNames(data []byte) (map[string]string, error) {
	var doc graphMLDocument
	if err := xml.Unmarshal(data, &doc); err != nil {
		return nil, err
	}
	names := make(map[string]string)
	for _, g := range doc.Graphs {
		for _, n := range g.Nodes {
			if n.ID == "" {
				return nil, fmt.Errorf("node without id")
			}
			for _, d := range n.Data {
				if d.Key == nodeNameKey {
					names[n.ID] = d.Value
					break
				}
			}
		}
	}
	return names, nil
}
