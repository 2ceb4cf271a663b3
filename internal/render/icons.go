package render

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/ekbrothers/aggregated-devops-rss-ai/internal/logx"
)

// DefaultIcon 为未收录 provider 的图标。
const DefaultIcon = "question.svg"

// IconDir 为输出目录内的图标相对路径。
const IconDir = "assets/icons"

var iconMapping = map[string]string{
	"terraform":                  "terraform.svg",
	"terraform-provider-google":  "terraform.svg",
	"terraform-provider-azurerm": "terraform.svg",
	"terraform-provider-aws":     "terraform.svg",
	"terraform-docs":             "terraform.svg",
	"hashicorp":                  "hashicorp.svg",
	"github":                     "github.svg",
	"gitlab":                     "gitlab.svg",
	"azure-devops":               "azuredevops.svg",
	"google-cloud":               "googlecloud.svg",
	"aws":                        "aws.svg",
	"azure":                      "azure.svg",
	"openai":                     "openai.svg",
	"anthropic":                  "anthropic.svg",
	"kubernetes":                 "kubernetes.svg",
	"docker":                     "docker.svg",
}

// IconFile 返回 provider 对应的图标文件名（不区分大小写）。
func IconFile(provider string) string {
	if f, ok := iconMapping[strings.ToLower(strings.TrimSpace(provider))]; ok {
		return f
	}
	return DefaultIcon
}

// IconPath 返回页面中引用的相对路径。
func IconPath(provider string) string {
	return IconDir + "/" + IconFile(provider)
}

// CopyIcons 将 srcDir 中存在的图标复制到 outDir/assets/icons；缺失的文件只记录日志。
// 返回实际复制的文件数。
func CopyIcons(srcDir, outDir string) (int, error) {
	dst := filepath.Join(outDir, filepath.FromSlash(IconDir))
	if err := os.MkdirAll(dst, 0o755); err != nil {
		return 0, fmt.Errorf("mkdir %s: %w", dst, err)
	}
	files := map[string]struct{}{DefaultIcon: {}}
	for _, f := range iconMapping {
		files[f] = struct{}{}
	}
	names := make([]string, 0, len(files))
	for f := range files {
		names = append(names, f)
	}
	sort.Strings(names)

	copied := 0
	for _, name := range names {
		err := copyFile(filepath.Join(srcDir, name), filepath.Join(dst, name))
		switch {
		case errors.Is(err, fs.ErrNotExist):
			logx.Warnf("图标文件不存在：%s", filepath.Join(srcDir, name))
		case err != nil:
			return copied, err
		default:
			copied++
		}
	}
	return copied, nil
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()
	out, err := os.Create(dst)
	if err != nil {
		return fmt.Errorf("create %s: %w", dst, err)
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return fmt.Errorf("copy %s: %w", src, err)
	}
	return out.Close()
}
