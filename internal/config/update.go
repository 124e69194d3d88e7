package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/rileyhilliard/vmwatch/internal/registry"
)

// WriteDefault writes a commented default config to path. It refuses to
// overwrite an existing file unless force is set.
func WriteDefault(path string, force bool) error {
	if !force {
		if _, err := os.Stat(path); err == nil {
			return fmt.Errorf("%s already exists", path)
		}
	}

	var doc yaml.Node
	if err := doc.Encode(DefaultConfig()); err != nil {
		return fmt.Errorf("failed to encode defaults: %w", err)
	}
	annotate(&doc)

	return writeNode(path, &doc)
}

// sectionComments are written above each top-level key by WriteDefault.
var sectionComments = map[string]string{
	"registry":   "Where host credentials live. driver: sqlite (managed with 'vmw host add') or static (the hosts list).\nSQLite secrets are sealed when the variable named by seal_key_env is set.",
	"hosts":      "Static registry entries, used when registry.driver is static.",
	"ssh":        "SSH dialing. Set strict_host_keys: false only on trusted networks.",
	"cache":      "Host metrics are cached per label for ttl.",
	"monitor":    "docker_command prefixes every docker call on the VMs.",
	"thresholds": "Alert limits. Percentages, except container_block_io_mb.",
	"alerts":     "Fleet evaluation fan-out and dial pacing (hosts per second, 0 = unlimited).",
	"server":     "Listen address for 'vmw serve'.",
	"notify":     "SMTP settings for 'vmw alerts --send'. Put the password in .env as VMW_NOTIFY_EMAIL_PASSWORD.",
}

func annotate(doc *yaml.Node) {
	if doc.Kind != yaml.MappingNode {
		return
	}
	for i := 0; i < len(doc.Content)-1; i += 2 {
		if c, ok := sectionComments[doc.Content[i].Value]; ok {
			doc.Content[i].HeadComment = c
		}
	}
}

// AddHost appends cred to the hosts list of the config file at path,
// preserving the rest of the file and its comments. An entry with the same
// label is replaced only when force is set.
func AddHost(path string, cred registry.Credential, force bool) error {
	root, err := readNode(path)
	if err != nil {
		return err
	}
	docNode := root.Content[0]

	hostsNode := findMapValue(docNode, "hosts")
	if hostsNode == nil || hostsNode.Kind != yaml.SequenceNode {
		hostsNode = &yaml.Node{Kind: yaml.SequenceNode, Tag: "!!seq"}
		setMapValue(docNode, "hosts", hostsNode)
	}

	var entry yaml.Node
	if err := entry.Encode(cred.Normalize()); err != nil {
		return fmt.Errorf("failed to encode host: %w", err)
	}

	for i, item := range hostsNode.Content {
		label := findMapValue(item, "label")
		if label == nil || label.Value != cred.Label {
			continue
		}
		if !force {
			return fmt.Errorf("host '%s' already exists in %s", cred.Label, path)
		}
		hostsNode.Content[i] = &entry
		return writeNode(path, root)
	}

	hostsNode.Content = append(hostsNode.Content, &entry)
	return writeNode(path, root)
}

// RemoveHost deletes the hosts entry labelled label. It reports whether an
// entry was removed.
func RemoveHost(path, label string) (bool, error) {
	root, err := readNode(path)
	if err != nil {
		return false, err
	}

	hostsNode := findMapValue(root.Content[0], "hosts")
	if hostsNode == nil || hostsNode.Kind != yaml.SequenceNode {
		return false, nil
	}
	for i, item := range hostsNode.Content {
		if l := findMapValue(item, "label"); l != nil && l.Value == label {
			hostsNode.Content = append(hostsNode.Content[:i], hostsNode.Content[i+1:]...)
			return true, writeNode(path, root)
		}
	}
	return false, nil
}

func readNode(path string) (*yaml.Node, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var root yaml.Node
	if err := yaml.Unmarshal(data, &root); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}
	if root.Kind != yaml.DocumentNode || len(root.Content) == 0 {
		return nil, fmt.Errorf("invalid YAML document structure")
	}
	if root.Content[0].Kind != yaml.MappingNode {
		return nil, fmt.Errorf("expected mapping at document root")
	}
	return &root, nil
}

func writeNode(path string, node *yaml.Node) error {
	var buf strings.Builder
	encoder := yaml.NewEncoder(&buf)
	encoder.SetIndent(2)
	if err := encoder.Encode(node); err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}
	encoder.Close()

	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("failed to create %s: %w", dir, err)
		}
	}
	// Static hosts may carry passwords.
	if err := os.WriteFile(path, []byte(buf.String()), 0o600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

// findMapValue finds a value in a mapping node by key name.
func findMapValue(node *yaml.Node, key string) *yaml.Node {
	if node == nil || node.Kind != yaml.MappingNode {
		return nil
	}

	for i := 0; i < len(node.Content)-1; i += 2 {
		keyNode := node.Content[i]
		valueNode := node.Content[i+1]

		if keyNode.Kind == yaml.ScalarNode && keyNode.Value == key {
			return valueNode
		}
	}

	return nil
}

func setMapValue(node *yaml.Node, key string, value *yaml.Node) {
	for i := 0; i < len(node.Content)-1; i += 2 {
		if node.Content[i].Value == key {
			node.Content[i+1] = value
			return
		}
	}
	keyNode := &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: key}
	node.Content = append(node.Content, keyNode, value)
}

// Summary returns the one-line description `vmw init` prints.
func Summary(cfg *Config) string {
	pool := "off"
	if cfg.SSH.Pool.Enabled {
		pool = "max " + strconv.Itoa(cfg.SSH.Pool.MaxSize)
	}
	return fmt.Sprintf("registry=%s cache_ttl=%s pool=%s server=%s",
		cfg.Registry.Driver, cfg.Cache.TTL, pool, cfg.Server.Addr)
}
