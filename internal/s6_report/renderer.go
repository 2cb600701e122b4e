package s6_report

import (
	"bytes"
	"context"
	"embed"
	"encoding/json"
	"fmt"
	"html/template"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/wonny/covid-report/internal/contracts"
	"github.com/wonny/covid-report/pkg/logger"
)

//go:embed templates/*.html
var templateFS embed.FS

// Page names
const (
	PageIndex   = "index"
	PageTesting = "testing"
	PageMap     = "map"
	PageAreas   = "areas"
	PageApp     = "app"
)

// AllPages returns every page in navigation order
func AllPages() []string {
	return []string{PageIndex, PageTesting, PageMap, PageAreas, PageApp}
}

// Section is one chart slot on a page. A section without a chart is
// omitted from the output; Error says why.
type Section struct {
	Key   string
	Title string
	Chart Chart
	Error string
}

// Page is everything one HTML page shows
type Page struct {
	Name            string
	Title           string
	Sections        []Section
	Scores          *contracts.ScoreSet
	Sources         []contracts.Citation
	MapData         *contracts.MapData
	ProvisionalDays int
	GeneratedAt     time.Time
	RunID           string
}

// view is the template data
type view struct {
	Page
	Nav     []navItem
	Charts  []chartView
	Omitted []Section
	MapJSON template.JS
}

type navItem struct {
	Name    string
	Href    string
	Current bool
}

type chartView struct {
	Key    string
	Title  string
	Src    string
	Height int
}

// Renderer writes pages and their charts under an output directory
type Renderer struct {
	outDir    string
	templates map[string]*template.Template
	logger    *logger.Logger
}

// NewRenderer parses the embedded templates
func NewRenderer(outDir string, log *logger.Logger) (*Renderer, error) {
	funcs := template.FuncMap{
		// 숫자만 들어가므로 이스케이프 불필요 ("+"가 &#43;로 바뀌지 않게)
		"score": func(v float64) template.HTML { return template.HTML(fmt.Sprintf("%+.2f", v)) },
		"join":  strings.Join,
	}

	templates := make(map[string]*template.Template, len(AllPages()))
	for _, name := range AllPages() {
		t, err := template.New("layout.html").Funcs(funcs).ParseFS(templateFS, "templates/layout.html", "templates/"+name+".html")
		if err != nil {
			return nil, fmt.Errorf("parse %s template: %w", name, err)
		}
		templates[name] = t
	}

	return &Renderer{
		outDir:    outDir,
		templates: templates,
		logger:    log.WithStage(contracts.StagePresentation.String()),
	}, nil
}

// Render writes <out>/charts/<page>-<key>.html for each chart, the map
// JSON when present, and finally <out>/<page>.html. It returns the page path.
func (r *Renderer) Render(ctx context.Context, page Page) (string, error) {
	tmpl, ok := r.templates[page.Name]
	if !ok {
		return "", fmt.Errorf("unknown page %q", page.Name)
	}

	chartDir := filepath.Join(r.outDir, "charts")
	if err := os.MkdirAll(chartDir, 0o755); err != nil {
		return "", fmt.Errorf("create chart dir: %w", err)
	}

	v := view{Page: page}
	for _, name := range AllPages() {
		v.Nav = append(v.Nav, navItem{Name: name, Href: name + ".html", Current: name == page.Name})
	}

	for _, s := range page.Sections {
		if err := ctx.Err(); err != nil {
			return "", err
		}
		if s.Chart == nil {
			v.Omitted = append(v.Omitted, s)
			continue
		}

		file := fmt.Sprintf("%s-%s.html", page.Name, s.Key)
		var buf bytes.Buffer
		if err := s.Chart.Render(&buf); err != nil {
			// 차트 하나 실패는 섹션만 생략
			s.Error = err.Error()
			v.Omitted = append(v.Omitted, s)
			r.logger.WithError(err).WithFields(map[string]interface{}{
				"page":    page.Name,
				"section": s.Key,
			}).Error("Chart render failed")
			continue
		}
		if err := writeFile(filepath.Join(chartDir, file), buf.Bytes()); err != nil {
			return "", err
		}
		v.Charts = append(v.Charts, chartView{Key: s.Key, Title: s.Title, Src: "charts/" + file, Height: 460})
	}

	if page.MapData != nil {
		data, err := json.Marshal(page.MapData)
		if err != nil {
			return "", fmt.Errorf("encode map data: %w", err)
		}
		if err := os.MkdirAll(filepath.Join(r.outDir, "data"), 0o755); err != nil {
			return "", fmt.Errorf("create data dir: %w", err)
		}
		if err := writeFile(filepath.Join(r.outDir, "data", "map.json"), data); err != nil {
			return "", err
		}
		v.MapJSON = template.JS(data)
	}

	var buf bytes.Buffer
	if err := tmpl.ExecuteTemplate(&buf, "layout.html", v); err != nil {
		return "", fmt.Errorf("execute %s template: %w", page.Name, err)
	}

	path := filepath.Join(r.outDir, page.Name+".html")
	if err := writeFile(path, buf.Bytes()); err != nil {
		return "", err
	}

	r.logger.WithFields(map[string]interface{}{
		"page":    page.Name,
		"charts":  len(v.Charts),
		"omitted": len(v.Omitted),
		"path":    path,
	}).Info("Rendered page")

	return path, nil
}

// writeFile replaces path atomically so a half-written page is never served
func writeFile(path string, data []byte) error {
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("rename %s: %w", path, err)
	}
	return nil
}

// Slugify lower-cases s and joins words with hyphens, for chart keys
func Slugify(s string) string {
	return strings.ReplaceAll(strings.ToLower(strings.TrimSpace(s)), " ", "-")
}
