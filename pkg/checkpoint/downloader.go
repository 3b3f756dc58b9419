package checkpoint

import (
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/xyangyan/CsdBERT/pkg/config"
	"github.com/xyangyan/CsdBERT/pkg/session"
)

const (
	WeightsFile  = "pytorch_model.bin"
	VocabFile    = "vocab.txt"
	ModelCfgFile = "config.json"
)

type Downloader struct {
	cacheDir string
	client   *http.Client
}

func NewDownloader(sess *session.Session) *Downloader {
	client := &http.Client{}
	if sess != nil {
		client = sess.Client
	}

	return &Downloader{
		cacheDir: config.GetModelCacheDir(),
		client:   client,
	}
}

// ResolveModel turns a model_name_or_path into a local directory the
// trainer can load. A path that already holds a config.json is used
// as-is; anything else is treated as a hub repository and fetched into
// the model cache on first use.
func (d *Downloader) ResolveModel(nameOrPath string, forceDownload bool) (string, error) {
	if fileExists(filepath.Join(nameOrPath, ModelCfgFile)) {
		return nameOrPath, nil
	}

	if strings.HasPrefix(nameOrPath, ".") || filepath.IsAbs(nameOrPath) {
		return "", fmt.Errorf("model directory not found: %s", nameOrPath)
	}

	return d.downloadModel(nameOrPath, forceDownload)
}

func (d *Downloader) downloadModel(repo string, forceDownload bool) (string, error) {
	modelDir := filepath.Join(d.cacheDir, strings.ReplaceAll(repo, "/", "_"))
	if err := os.MkdirAll(modelDir, 0755); err != nil {
		return "", fmt.Errorf("failed to create cache directory: %w", err)
	}

	files := []string{ModelCfgFile, VocabFile, WeightsFile}

	if !forceDownload {
		complete := true
		for _, name := range files {
			if !fileExists(filepath.Join(modelDir, name)) {
				complete = false
				break
			}
		}
		if complete {
			if DebugLog != nil {
				DebugLog("pretrained weights cached at %s", modelDir)
			}
			return modelDir, nil
		}
	}

	baseURL := fmt.Sprintf("https://huggingface.co/%s/resolve/main", repo)

	fmt.Printf("[MODEL] Downloading pretrained weights for %s (first run)...\n", repo)

	for _, name := range files {
		dest := filepath.Join(modelDir, name)
		if !forceDownload && fileExists(dest) {
			continue
		}

		fmt.Printf("[MODEL]   downloading %s...\n", name)
		if err := d.downloadFile(baseURL+"/"+name, dest); err != nil {
			return "", fmt.Errorf("failed to download %s: %w", name, err)
		}
	}

	fmt.Printf("[MODEL] Weights cached at %s\n", modelDir)

	return modelDir, nil
}

func (d *Downloader) downloadFile(url, dest string) error {
	resp, err := d.client.Get(url)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("HTTP %d: %s", resp.StatusCode, resp.Status)
	}

	out, err := os.Create(dest)
	if err != nil {
		return err
	}
	defer out.Close()

	_, err = io.Copy(out, resp.Body)
	return err
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
