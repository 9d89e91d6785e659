package dashboard

import (
	"embed"
	"io/fs"
	"os"
)

// Embed the dashboard assets
//
//go:embed all:assets
var assetsFS embed.FS

// AssetsDirEnv names a directory to serve assets from instead of the
// embedded copy, so templates can be edited without rebuilding
const AssetsDirEnv = "SOLARCOMPARE_DASHBOARD_ASSETS_DIR"

// GetAssets returns the assets filesystem, either from disk or embedded
func GetAssets() fs.FS {
	if dir := os.Getenv(AssetsDirEnv); dir != "" {
		if info, err := os.Stat(dir); err == nil && info.IsDir() {
			return os.DirFS(dir)
		}
	}

	assets, err := fs.Sub(assetsFS, "assets")
	if err != nil {
		panic("failed to create assets sub-filesystem: " + err.Error())
	}
	return assets
}
