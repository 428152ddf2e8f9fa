package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
)

// Client is the terminal client's configuration, read from
// ~/.healthchat/config.toml.
type Client struct {
	RelayURL string `toml:"relay_url"`
	Token    string `toml:"token"`
	UserID   string `toml:"user_id"`
	DataDir  string `toml:"data_dir"`
	Language string `toml:"language"`
	Debug    bool   `toml:"debug"`
}

func DefaultClient() Client {
	dir := ".healthchat"
	if home, err := os.UserHomeDir(); err == nil {
		dir = filepath.Join(home, ".healthchat")
	}
	return Client{
		RelayURL: "http://localhost:5000",
		DataDir:  dir,
		Language: "ar",
	}
}

// DefaultClientPath returns ~/.healthchat/config.toml.
func DefaultClientPath() string {
	return filepath.Join(DefaultClient().DataDir, "config.toml")
}

// LoadClient reads path over the defaults. A missing file is not an error.
func LoadClient(path string) (Client, error) {
	cfg := DefaultClient()
	if path == "" {
		return cfg, nil
	}
	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return cfg, nil
		}
		return cfg, fmt.Errorf("read client config %s: %w", path, err)
	}
	if cfg.DataDir == "" {
		cfg.DataDir = DefaultClient().DataDir
	}
	return cfg, nil
}

// SaveClient writes cfg to path, creating the parent directory.
func SaveClient(path string, cfg Client) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o600)
	if err != nil {
		return err
	}
	defer f.Close()
	return toml.NewEncoder(f).Encode(cfg)
}
