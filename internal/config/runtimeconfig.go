package config

import (
	"encoding/json"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// RuntimeConfig holds the recognized options for the transfer and auth
// cores: upload/download policy, session/lockout/rate-limit tuning, and
// protocol-engine defaults. It deliberately does not carry the BBS-wide
// server, theme, or menu configuration a full ServerConfig would mix in —
// those are external-collaborator concerns per this system's scope.
type RuntimeConfig struct {
	MaxFileSize          int64    `json:"max_file_size"`
	AllowedExtensions    []string `json:"allowed_extensions"`
	BlockedExtensions    []string `json:"blocked_extensions"`
	MaxFilesPerDay       int      `json:"max_files_per_day"`
	MaxBytesPerDay       uint64   `json:"max_bytes_per_day"`
	EnableDuplicateCheck bool     `json:"enable_duplicate_check"`
	EnableVirusScan      bool     `json:"enable_virus_scan"`

	SessionIdleTimeoutSeconds int     `json:"session_idle_timeout"`
	LockoutMaxFailures        int     `json:"lockout_max_failures"`
	LockoutDurationSeconds    int     `json:"lockout_duration"`
	RateLimitMax              int     `json:"rate_limit_max"`
	RateLimitWindowSeconds    int     `json:"rate_limit_window"`
	MaxDownloadRatio          float64 `json:"max_download_ratio"`

	ZmodemBufferSize int  `json:"zmodem_buffer_size"`
	ZmodemTimeout    int  `json:"zmodem_timeout"`
	MaxRetries       int  `json:"max_retries"`
	EnableResume     bool `json:"enable_resume"`
	UseCRC32         bool `json:"use_crc32"`
}

func defaultRuntimeConfig() RuntimeConfig {
	return RuntimeConfig{
		MaxFileSize:               50 * 1024 * 1024,
		BlockedExtensions:         []string{".exe", ".bat", ".cmd", ".scr"},
		MaxFilesPerDay:            0,
		MaxBytesPerDay:            0,
		EnableDuplicateCheck:      true,
		EnableVirusScan:           false,
		SessionIdleTimeoutSeconds: 300,
		LockoutMaxFailures:        5,
		LockoutDurationSeconds:    1800,
		RateLimitMax:              10,
		RateLimitWindowSeconds:    60,
		MaxDownloadRatio:          3.0,
		ZmodemBufferSize:          1024,
		ZmodemTimeout:             10,
		MaxRetries:                10,
		EnableResume:              true,
		UseCRC32:                  true,
	}
}

// LoadRuntimeConfig loads transfer.json from configPath, filling in
// defaults for any field the file omits. A missing file is not an error;
// it yields the default configuration, same as LoadServerConfig.
func LoadRuntimeConfig(configPath string) (RuntimeConfig, error) {
	filePath := filepath.Join(configPath, "transfer.json")
	cfg := defaultRuntimeConfig()

	data, err := os.ReadFile(filePath)
	if err != nil {
		if os.IsNotExist(err) {
			log.Printf("WARN: %s not found. Using default transfer settings.", filePath)
			return cfg, nil
		}
		return cfg, fmt.Errorf("failed to read transfer config %s: %w", filePath, err)
	}

	if err := json.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("failed to parse transfer config %s: %w", filePath, err)
	}
	return cfg, nil
}

// RuntimeConfigWatcher holds the live RuntimeConfig and reloads it from
// disk on change, debounced the same way a ConnectionTracker debounces
// IP list reloads.
type RuntimeConfigWatcher struct {
	configPath string

	mu      sync.RWMutex
	current RuntimeConfig

	watcher *fsnotify.Watcher
	done    chan struct{}
}

// NewRuntimeConfigWatcher loads the initial configuration and, if the
// underlying file exists, starts watching it for changes in the
// background. Call Stop to release the watcher goroutine.
func NewRuntimeConfigWatcher(configPath string) (*RuntimeConfigWatcher, error) {
	cfg, err := LoadRuntimeConfig(configPath)
	if err != nil {
		return nil, err
	}

	w := &RuntimeConfigWatcher{configPath: configPath, current: cfg}

	filePath := filepath.Join(configPath, "transfer.json")
	if _, statErr := os.Stat(filePath); statErr != nil {
		log.Printf("DEBUG: %s does not exist, hot reload disabled", filePath)
		return w, nil
	}

	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create config watcher: %w", err)
	}
	if err := fw.Add(filePath); err != nil {
		_ = fw.Close()
		return nil, fmt.Errorf("failed to watch %s: %w", filePath, err)
	}

	w.watcher = fw
	w.done = make(chan struct{})
	go w.watchLoop()
	log.Printf("INFO: Watching %s for changes (auto-reload enabled)", filePath)
	return w, nil
}

// Current returns a snapshot of the live configuration.
func (w *RuntimeConfigWatcher) Current() RuntimeConfig {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.current
}

func (w *RuntimeConfigWatcher) watchLoop() {
	var debounceTimer *time.Timer
	const debounceDuration = 500 * time.Millisecond

	for {
		select {
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if event.Op&fsnotify.Write == fsnotify.Write || event.Op&fsnotify.Create == fsnotify.Create {
				if debounceTimer != nil {
					debounceTimer.Stop()
				}
				debounceTimer = time.AfterFunc(debounceDuration, w.reload)
			}

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			log.Printf("ERROR: transfer config watcher error: %v", err)

		case <-w.done:
			return
		}
	}
}

func (w *RuntimeConfigWatcher) reload() {
	cfg, err := LoadRuntimeConfig(w.configPath)
	if err != nil {
		log.Printf("ERROR: failed to reload transfer config: %v", err)
		return
	}
	w.mu.Lock()
	w.current = cfg
	w.mu.Unlock()
	log.Printf("INFO: transfer config reloaded from %s", filepath.Join(w.configPath, "transfer.json"))
}

// Stop releases the background watcher goroutine, if one was started.
func (w *RuntimeConfigWatcher) Stop() {
	if w.watcher == nil {
		return
	}
	close(w.done)
	_ = w.watcher.Close()
}
