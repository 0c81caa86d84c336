// Command impulsed wires up the message-base, transfer, and
// authentication cores against a data directory and exposes them as the
// contracts a connection-handling front end would call. It does not open
// a network listener: TELNET/SSH session transport and ANSI rendering
// are external collaborators that this binary only names, never
// implements. Run it to verify a data/config tree loads cleanly and to
// exercise the cores from a shell for smoke testing.
package main

import (
	"flag"
	"log"
	"os"
	"path/filepath"
	"time"

	"github.com/stlalpha/impulse-bbs/internal/auth"
	"github.com/stlalpha/impulse-bbs/internal/config"
	"github.com/stlalpha/impulse-bbs/internal/file"
	"github.com/stlalpha/impulse-bbs/internal/jam"
	"github.com/stlalpha/impulse-bbs/internal/transfer"
	"github.com/stlalpha/impulse-bbs/internal/user"
)

var (
	dataPath   string
	configPath string
)

func main() {
	flag.StringVar(&dataPath, "data", "data", "path to the data directory (users, file areas, message bases)")
	flag.StringVar(&configPath, "config", "configs", "path to the configuration directory")
	flag.Parse()

	log.Printf("INFO: impulsed starting, data=%s config=%s", dataPath, configPath)

	rtCfg, err := config.NewRuntimeConfigWatcher(configPath)
	if err != nil {
		log.Fatalf("FATAL: failed to load transfer configuration: %v", err)
	}
	defer rtCfg.Stop()

	userMgr, err := user.NewUserManager(dataPath)
	if err != nil {
		log.Fatalf("FATAL: failed to open user manager: %v", err)
	}

	fileMgr, err := file.NewFileManager(dataPath, configPath)
	if err != nil {
		log.Fatalf("FATAL: failed to open file manager: %v", err)
	}

	generalBase, err := jam.Open(filepath.Join(dataPath, "msgbases", "general"))
	if err != nil {
		log.Fatalf("FATAL: failed to open general message base: %v", err)
	}
	defer generalBase.Close()

	authCore := newAuthCore(userMgr, rtCfg.Current())
	uploads, downloads := newTransferPipelines(fileMgr, rtCfg.Current())

	log.Printf("INFO: impulsed ready: %d file area(s) loaded, message base at %s open", len(fileMgr.ListAreas()), generalBase.BasePath)
	log.Printf("INFO: connection front ends authenticate via auth.Core.Login and run transfers via %T/%T", uploads, downloads)

	// The connection-handling loop (accept TELNET/SSH, negotiate options,
	// render menus, dispatch to these cores per user keystroke) lives
	// outside this system's scope.
	_ = authCore
	os.Exit(0)
}

func newAuthCore(userMgr *user.UserMgr, cfg config.RuntimeConfig) *auth.Core {
	return &auth.Core{
		Users:       userMgr,
		RateLimiter: auth.NewRateLimiter(auth.RateLimiterConfig{MaxAttempts: cfg.RateLimitMax, WindowSeconds: cfg.RateLimitWindowSeconds}),
		Lockout:     auth.NewLockoutManager(auth.LockoutConfig{MaxFailures: cfg.LockoutMaxFailures, LockoutDuration: time.Duration(cfg.LockoutDurationSeconds) * time.Second}),
		Sessions:    auth.NewSessionStore(auth.SessionStoreConfig{IdleTimeout: time.Duration(cfg.SessionIdleTimeoutSeconds) * time.Second}),
	}
}

func newTransferPipelines(fileMgr *file.FileManager, cfg config.RuntimeConfig) (*transfer.UploadPipeline, *transfer.DownloadPipeline) {
	uploads := &transfer.UploadPipeline{
		Areas: fileMgr,
		Config: transfer.UploadConfig{
			MaxFileSize:          cfg.MaxFileSize,
			AllowedExtensions:    cfg.AllowedExtensions,
			BlockedExtensions:    cfg.BlockedExtensions,
			MaxFilesPerDay:       cfg.MaxFilesPerDay,
			MaxBytesPerDay:       cfg.MaxBytesPerDay,
			EnableDuplicateCheck: cfg.EnableDuplicateCheck,
			EnableVirusScan:      cfg.EnableVirusScan,
		},
	}
	downloads := &transfer.DownloadPipeline{
		Areas: fileMgr,
		Config: transfer.DownloadConfig{
			BufferSize:     cfg.ZmodemBufferSize,
			TimeoutSeconds: cfg.ZmodemTimeout,
			MaxRetries:     cfg.MaxRetries,
			EnableResume:   cfg.EnableResume,
			UseCRC32:       cfg.UseCRC32,
			MaxRatio:       cfg.MaxDownloadRatio,
		},
	}
	return uploads, downloads
}
