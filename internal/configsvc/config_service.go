// Package configsvc loads YAML configuration files and notifies subscribers when they change on disk.
package configsvc

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/fsnotify/fsnotify"
	"github.com/ghodss/yaml"
	"go.uber.org/zap"
)

var ErrNotStarted = errors.New("config service is not started")

type subscriber func(event fsnotify.Event)

type Service struct {
	log *zap.Logger

	mu          sync.Mutex
	watcher     *fsnotify.Watcher
	watched     map[string]struct{}
	subscribers []subscriber
	ready       chan struct{}
}

func New(log *zap.Logger) *Service {
	return &Service{
		log:     log,
		watched: make(map[string]struct{}),
		ready:   make(chan struct{}),
	}
}

func (s *Service) Start(ctx context.Context) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create fsnotify watcher: %w", err)
	}
	defer watcher.Close()
	s.mu.Lock()
	s.watcher = watcher
	s.mu.Unlock()
	close(s.ready)
	s.log.Info("Config service started")
	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			s.mu.Lock()
			subs := s.subscribers
			s.mu.Unlock()
			for _, sub := range subs {
				sub(event)
			}
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			s.log.Error("Watcher error", zap.Error(err))
		}
	}
}

func (s *Service) Ready() <-chan struct{} {
	return s.ready
}

func (s *Service) watch(dir string, sub subscriber) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.watcher == nil {
		return ErrNotStarted
	}
	if _, ok := s.watched[dir]; !ok {
		if err := s.watcher.Add(dir); err != nil {
			return fmt.Errorf("failed to add path to watcher %s: %w", dir, err)
		}
		s.watched[dir] = struct{}{}
	}
	s.subscribers = append(s.subscribers, sub)
	return nil
}

// Register watches path and calls fn with every configuration successfully re-read after a change.
// It returns the current configuration. The service must be started.
// Service instance is used as a parameter instead of the method receiver to enable generic types.
func Register[T any](s *Service, path string, def T, fn func(config T)) (T, error) {
	absPath, err := filepath.Abs(path)
	if err != nil {
		return def, fmt.Errorf("failed to get absolute path for %s: %w", path, err)
	}
	config, err := Load(absPath, def)
	if err != nil {
		return def, err
	}
	err = s.watch(filepath.Dir(absPath), func(event fsnotify.Event) {
		if event.Name != absPath || !(event.Has(fsnotify.Write) || event.Has(fsnotify.Create)) {
			return
		}
		newConfig, err := Load(absPath, def)
		if err != nil {
			s.log.Warn("Keeping previous configuration", zap.String("path", absPath), zap.Error(err))
			return
		}
		s.log.Info("Configuration reloaded", zap.String("path", absPath))
		fn(newConfig)
	})
	if err != nil {
		return def, err
	}
	return config, nil
}

// Initialize reads path, writing def to it first when the file does not exist.
func Initialize[T any](path string, def T) (T, error) {
	config, err := Load(path, def)
	switch {
	case errors.Is(err, os.ErrNotExist):
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return def, fmt.Errorf("failed to create config directory: %w", err)
		}
		if err := write(path, def); err != nil {
			return def, fmt.Errorf("failed to initialize config: %w", err)
		}
		return def, nil
	case err != nil:
		return def, err
	}
	return config, nil
}

// Load reads a YAML file into a copy of def.
func Load[T any](path string, def T) (T, error) {
	yamlB, err := os.ReadFile(path)
	if err != nil {
		return def, fmt.Errorf("failed to read config file: %w", err)
	}
	jsonB, err := yaml.YAMLToJSON(yamlB)
	if err != nil {
		return def, fmt.Errorf("failed to convert yaml to json: %w", err)
	}
	err = json.Unmarshal(jsonB, &def)
	if err != nil {
		return def, fmt.Errorf("failed to unmarshal json: %w", err)
	}
	return def, nil
}

func write[T any](path string, config T) error {
	jsonB, err := json.Marshal(config)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	yamlB, err := yaml.JSONToYAML(jsonB)
	if err != nil {
		return fmt.Errorf("failed to convert json to yaml: %w", err)
	}
	err = os.WriteFile(path, yamlB, 0o644)
	if err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}
