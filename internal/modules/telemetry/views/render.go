package views

import (
	"embed"
	"errors"
	"html/template"
	"io"
	"io/fs"
	"time"

	"hkco-server/internal/modules/telemetry/types"
)

//go:embed templates
var viewsFS embed.FS

const timestampLayout = "Jan 2, 03:04:05 PM MST"

var pageTmpl *template.Template

// loadTemplatesFromFS loads viewer templates from the given fs and dir.
// Used by LoadTemplates and by tests to simulate failure scenarios.
func loadTemplatesFromFS(fsys fs.FS, dir string) error {
	sub, err := fs.Sub(fsys, dir)
	if err != nil {
		return err
	}
	pageTmpl, err = template.ParseFS(sub, "*.html", "partials/*.html")
	if err != nil {
		return err
	}
	return nil
}

// LoadTemplates loads embedded viewer templates. Call during startup before
// serving requests; if it returns an error, do not start the server.
func LoadTemplates() error {
	return loadTemplatesFromFS(viewsFS, "templates")
}

// ReadingPartial is the display form of a Reading.
type ReadingPartial struct {
	Location      string
	TemperatureC  float64
	TemperatureF  float64
	Humidity      float64
	Updated       string
	ObservedAtISO string
}

type LiveTempData struct {
	PollSeconds int
	Reading     ReadingPartial
}

func NewReadingPartial(r types.Reading) ReadingPartial {
	return ReadingPartial{
		Location:      r.Location,
		TemperatureC:  r.Temperature,
		TemperatureF:  CelsiusToFahrenheit(r.Temperature),
		Humidity:      r.Humidity,
		Updated:       FormatTimestamp(r.ObservedAt),
		ObservedAtISO: r.ObservedAt.UTC().Format(time.RFC3339),
	}
}

func CelsiusToFahrenheit(c float64) float64 {
	return c*9/5 + 32
}

// FormatTimestamp renders t in UTC in the viewer's short style, e.g. "Mar 4, 02:05:09 PM UTC".
func FormatTimestamp(t time.Time) string {
	return t.UTC().Format(timestampLayout)
}

func RenderLiveTemp(w io.Writer, data LiveTempData) error {
	if pageTmpl == nil {
		return errors.New("live-temp template not loaded: call views.LoadTemplates during startup")
	}
	return pageTmpl.ExecuteTemplate(w, "live-temp.html", data)
}

// RenderCurrentReadingPartial executes only the reading partial into w.
// Use for HTMX fragment refresh.
func RenderCurrentReadingPartial(w io.Writer, data ReadingPartial) error {
	if pageTmpl == nil {
		return errors.New("current reading template not loaded: call views.LoadTemplates during startup")
	}
	return pageTmpl.ExecuteTemplate(w, "partials/current-reading.html", data)
}
