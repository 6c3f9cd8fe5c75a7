package config

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"gopkg.in/yaml.v3"
)

// Preferences keeps the active user in the config file.
type Preferences struct {
	mu   sync.Mutex
	cfg  *Config
	path string
}

// NewPreferences binds cfg to the config file it was loaded from.
func NewPreferences(cfg *Config, path string) *Preferences {
	return &Preferences{cfg: cfg, path: path}
}

func (p *Preferences) ActiveUser() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.cfg.ActiveUser
}

// SetActiveUser rewrites only the ActiveUser entry of the file. Everything
// else on disk, comments included, is left as it was; environment overrides
// and defaults applied at load time never reach the file.
func (p *Preferences) SetActiveUser(name string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := setFileKey(p.path, "ActiveUser", name); err != nil {
		return err
	}
	p.cfg.ActiveUser = name
	return nil
}

func setFileKey(configPath, key, value string) error {
	var doc yaml.Node
	data, err := os.ReadFile(configPath)
	if err != nil && !os.IsNotExist(err) {
		return err
	}
	if len(data) > 0 {
		if err := yaml.Unmarshal(data, &doc); err != nil {
			return fmt.Errorf("parse %s: %w", configPath, err)
		}
	}
	if doc.Kind == 0 || len(doc.Content) == 0 {
		doc = yaml.Node{Kind: yaml.DocumentNode, Content: []*yaml.Node{{Kind: yaml.MappingNode}}}
	}
	root := doc.Content[0]
	if root.Kind != yaml.MappingNode {
		return fmt.Errorf("parse %s: top level is not a mapping", configPath)
	}

	found := false
	for i := 0; i+1 < len(root.Content); i += 2 {
		if root.Content[i].Value == key {
			root.Content[i+1] = &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: value}
			found = true
			break
		}
	}
	if !found {
		root.Content = append(root.Content,
			&yaml.Node{Kind: yaml.ScalarNode, Value: key},
			&yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: value},
		)
	}

	out, err := yaml.Marshal(&doc)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(configPath), 0755); err != nil {
		return err
	}
	return os.WriteFile(configPath, out, 0644)
}
