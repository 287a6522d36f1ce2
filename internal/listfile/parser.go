package listfile

import (
	"bufio"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/Confuzu/CivitAI-Downloader/internal/domain"
	"github.com/go-playground/validator/v10"
)

// Separator splits a line into filename and URL. Only the first
// occurrence counts, so a URL containing the sequence stays intact.
const Separator = " - "

var validate = validator.New()

// Parse reads `<filename> - <url>` lines from r and returns the ordered
// task list. Blank lines and lines without the separator are skipped
// silently; entries with an empty half or a URL that is not http(s) are
// skipped with a warning naming the line number. An empty result is not
// an error here; callers decide whether to proceed.
func Parse(r io.Reader, logger *slog.Logger) ([]domain.Task, error) {
	if logger == nil {
		logger = slog.Default()
	}

	var tasks []domain.Task
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	lineno := 0
	for scanner.Scan() {
		lineno++
		line := strings.TrimSpace(scanner.Text())
		if line == "" || !strings.Contains(line, Separator) {
			continue
		}

		filename, url, _ := strings.Cut(line, Separator)
		filename = strings.TrimSpace(filename)
		url = strings.TrimSpace(url)

		if filename == "" || url == "" {
			logger.Warn("malformed entry skipped", "line", lineno)
			continue
		}
		if err := validate.Var(url, "required,http_url"); err != nil {
			logger.Warn("invalid URL skipped", "line", lineno, "url", url)
			continue
		}

		tasks = append(tasks, domain.Task{Filename: filename, URL: url})
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read url list: %w", err)
	}
	return tasks, nil
}

// ParseFile opens path and parses it with Parse.
func ParseFile(path string, logger *slog.Logger) ([]domain.Task, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open url list: %w", err)
	}
	defer f.Close()
	return Parse(f, logger)
}
