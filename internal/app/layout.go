package app

import (
	"os"
	"path/filepath"
)

// Layout maps the on-disk state directories: owner configuration and server
// caches under the config dir, client download output under the data dir.
type Layout struct {
	ConfigDir string
	DataDir   string
}

// NewLayout resolves empty directories to platform defaults. configDir
// defaults to <user-config>/ariami, dataDir to a sibling of the config dir.
func NewLayout(configDir, dataDir string) (Layout, error) {
	if configDir == "" {
		base, err := os.UserConfigDir()
		if err != nil {
			return Layout{}, err
		}
		configDir = filepath.Join(base, "ariami")
	}
	if dataDir == "" {
		dataDir = filepath.Join(configDir, "data")
	}
	return Layout{ConfigDir: configDir, DataDir: dataDir}, nil
}

// Ensure creates the directories the server writes into.
func (l Layout) Ensure() error {
	for _, dir := range []string{
		l.ConfigDir,
		l.TranscodeCacheDir(),
		l.DownloadsSongsDir(),
		l.ArtworkCacheDir(),
	} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	return nil
}

// SettingsPath is the owner configuration document.
func (l Layout) SettingsPath() string {
	return filepath.Join(l.ConfigDir, "config.json")
}

// MetadataCachePath is the persistent song metadata cache.
func (l Layout) MetadataCachePath() string {
	return filepath.Join(l.ConfigDir, "metadata_cache.json")
}

// TranscodeCacheDir holds transcoded stream artifacts.
func (l Layout) TranscodeCacheDir() string {
	return filepath.Join(l.ConfigDir, "transcoded_cache")
}

// ServerLogPath is the append-only log used when the server is daemonized.
func (l Layout) ServerLogPath() string {
	return filepath.Join(l.ConfigDir, "server.log")
}

// PIDPath records the daemonized server process ID.
func (l Layout) PIDPath() string {
	return filepath.Join(l.ConfigDir, "ariamid.pid")
}

// DownloadsSongsDir is where the pull client stores downloaded songs.
func (l Layout) DownloadsSongsDir() string {
	return filepath.Join(l.DataDir, "downloads", "songs")
}

// DownloadQueuePath is the pull client's persistent task queue.
func (l Layout) DownloadQueuePath() string {
	return filepath.Join(l.DataDir, "downloads", "queue.json")
}

// ArtworkCacheDir is the pull client's media cache.
func (l Layout) ArtworkCacheDir() string {
	return filepath.Join(l.DataDir, "cache", "artwork")
}
