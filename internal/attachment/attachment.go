package attachment

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/ledongthuc/pdf"
)

const previewChars = 280

var (
	// ErrUnsupportedType is returned for anything that is not a PDF.
	ErrUnsupportedType = errors.New("only PDF files are supported")

	extraneousWhitespace = regexp.MustCompile(`\s+`)
)

// Info describes a local document staged for upload.
type Info struct {
	Path    string
	Name    string
	Size    int64
	Pages   int
	Preview string
}

// IsPDF reports whether name carries a .pdf extension.
func IsPDF(name string) bool {
	return strings.EqualFold(filepath.Ext(name), ".pdf")
}

// Inspect validates path and reads its page count and a short text preview.
// Text extraction failures are tolerated; scanned PDFs simply have no preview.
func Inspect(path string) (Info, error) {
	if !IsPDF(path) {
		return Info{}, fmt.Errorf("%s: %w", filepath.Base(path), ErrUnsupportedType)
	}
	stat, err := os.Stat(path)
	if err != nil {
		return Info{}, err
	}
	if stat.IsDir() {
		return Info{}, fmt.Errorf("%s is a directory", path)
	}

	file, reader, err := pdf.Open(path)
	if err != nil {
		return Info{}, fmt.Errorf("failed to open pdf: %w", err)
	}
	defer file.Close()

	info := Info{
		Path:  path,
		Name:  filepath.Base(path),
		Size:  stat.Size(),
		Pages: reader.NumPage(),
	}
	if text, err := plainText(reader); err == nil {
		info.Preview = clip(text, previewChars)
	}
	return info, nil
}

// ExtractText returns the whitespace-normalised text of the PDF at path.
func ExtractText(path string) (string, error) {
	file, reader, err := pdf.Open(path)
	if err != nil {
		return "", fmt.Errorf("failed to open pdf: %w", err)
	}
	defer file.Close()
	return plainText(reader)
}

func plainText(reader *pdf.Reader) (string, error) {
	content, err := reader.GetPlainText()
	if err != nil {
		return "", fmt.Errorf("failed to extract pdf text: %w", err)
	}
	var builder strings.Builder
	if _, err := io.Copy(&builder, content); err != nil {
		return "", err
	}
	return strings.TrimSpace(extraneousWhitespace.ReplaceAllString(builder.String(), " ")), nil
}

func clip(text string, limit int) string {
	if utf8.RuneCountInString(text) <= limit {
		return text
	}
	runes := []rune(text)
	return strings.TrimSpace(string(runes[:limit])) + "…"
}

// HumanSize formats n bytes for display.
func HumanSize(n int64) string {
	const unit = 1024
	if n < unit {
		return fmt.Sprintf("%d B", n)
	}
	div, exp := int64(unit), 0
	for m := n / unit; m >= unit; m /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %cB", float64(n)/float64(div), "KMGT"[exp])
}
