package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// AddCluster writes clusters.<name>.hosts into the config file, replacing any
// existing host list for that cluster. Existing YAML structure and comments
// are preserved. A missing file is created with only the new cluster.
func AddCluster(configPath, name string, hosts []string) error {
	if err := ValidateCluster(name, ClusterConfig{Hosts: hosts}); err != nil {
		return err
	}

	data, err := os.ReadFile(configPath)
	if os.IsNotExist(err) || (err == nil && strings.TrimSpace(string(data)) == "") {
		return writeNewConfig(configPath, name, hosts)
	}
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}

	var root yaml.Node
	if err := yaml.Unmarshal(data, &root); err != nil {
		return fmt.Errorf("failed to parse config file: %w", err)
	}

	if root.Kind != yaml.DocumentNode || len(root.Content) == 0 {
		return fmt.Errorf("invalid YAML document structure")
	}

	docNode := root.Content[0]
	if docNode.Kind != yaml.MappingNode {
		return fmt.Errorf("expected mapping at document root")
	}

	clustersNode := findOrAddMapping(docNode, "clusters")
	clusterNode := findOrAddMapping(clustersNode, name)

	hostsNode := &yaml.Node{Kind: yaml.SequenceNode, Tag: "!!seq", Style: yaml.FlowStyle}
	for _, h := range hosts {
		hostsNode.Content = append(hostsNode.Content, &yaml.Node{
			Kind:  yaml.ScalarNode,
			Tag:   "!!str",
			Value: h,
		})
	}
	setMapValue(clusterNode, "hosts", hostsNode)

	return encodeTo(configPath, &root)
}

func writeNewConfig(configPath, name string, hosts []string) error {
	cfg := struct {
		Version  int                      `yaml:"version"`
		Clusters map[string]ClusterConfig `yaml:"clusters"`
	}{
		Version:  CurrentConfigVersion,
		Clusters: map[string]ClusterConfig{name: {Hosts: hosts}},
	}

	if dir := filepath.Dir(configPath); dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create config directory: %w", err)
		}
	}
	return encodeTo(configPath, cfg)
}

func encodeTo(configPath string, v interface{}) error {
	var buf strings.Builder
	encoder := yaml.NewEncoder(&buf)
	encoder.SetIndent(2)
	if err := encoder.Encode(v); err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}
	encoder.Close()

	if err := os.WriteFile(configPath, []byte(buf.String()), 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

// findMapValue finds a value in a mapping node by key name.
func findMapValue(node *yaml.Node, key string) *yaml.Node {
	if node.Kind != yaml.MappingNode {
		return nil
	}

	for i := 0; i < len(node.Content)-1; i += 2 {
		if node.Content[i].Value == key {
			return node.Content[i+1]
		}
	}
	return nil
}

// findOrAddMapping returns the mapping stored under key, creating it (or
// replacing a null/scalar placeholder) when needed.
func findOrAddMapping(node *yaml.Node, key string) *yaml.Node {
	if v := findMapValue(node, key); v != nil && v.Kind == yaml.MappingNode {
		return v
	}
	m := &yaml.Node{Kind: yaml.MappingNode, Tag: "!!map"}
	setMapValue(node, key, m)
	return m
}

func setMapValue(node *yaml.Node, key string, value *yaml.Node) {
	for i := 0; i < len(node.Content)-1; i += 2 {
		if node.Content[i].Value == key {
			node.Content[i+1] = value
			return
		}
	}
	node.Content = append(node.Content,
		&yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: key},
		value,
	)
}
