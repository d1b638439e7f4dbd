package output

import (
	"fmt"
	"io"
	"path/filepath"
	"strconv"

	"github.com/fatih/color"

	"github.com/panbanda/refmine/pkg/models"
)

// MetricsHeaders are the column names of a rendered metrics table.
var MetricsHeaders = []string{
	"Commit", "File", "ADD", "DEL",
	"COMM", "ADEV", "DDEV", "OWN", "MINOR", "OEXP", "EXP",
	"NADEV", "NDDEV", "NCOMM",
	"NOM", "NOPM", "NOF", "NOSF", "NOPF", "DIT", "NOC", "RFC", "ELOC",
	"WMC", "CBO", "HsLCOM", "C3", "ComRead", "NOSM", "NOSI", "SEXP",
	"ND", "NS", "AGE", "FIX", "NUC", "CEXP", "REXP",
}

// MetricsView renders a metrics table.
type MetricsView struct {
	Table *models.MetricsTable
}

// NewMetricsView wraps table for rendering.
func NewMetricsView(table *models.MetricsTable) *MetricsView {
	return &MetricsView{Table: table}
}

func (v *MetricsView) RenderData() any {
	return v.Table
}

func (v *MetricsView) report() *Report {
	rows := make([][]string, 0, len(v.Table.Records))
	for i := range v.Table.Records {
		rows = append(rows, MetricsRow(&v.Table.Records[i]))
	}
	footer := make([]string, len(MetricsHeaders))
	footer[0] = "Records"
	footer[1] = strconv.Itoa(len(v.Table.Records))

	r := &Report{
		Title:    fmt.Sprintf("Metrics: %s", v.Table.Project),
		Sections: []Renderable{NewTable("", MetricsHeaders, rows, footer, nil)},
	}
	if len(v.Table.Diagnostics) > 0 {
		r.Sections = append(r.Sections, DiagnosticsTable(v.Table.Diagnostics))
	}
	return r
}

func (v *MetricsView) RenderText(w io.Writer, colored bool) error {
	if err := v.report().RenderText(w, colored); err != nil {
		return err
	}
	fp := v.Table.Fingerprint
	if colored {
		fp = color.New(color.Faint).Sprint(fp)
	}
	_, err := fmt.Fprintf(w, "fingerprint %s\n", fp)
	return err
}

func (v *MetricsView) RenderMarkdown(w io.Writer) error {
	if err := v.report().RenderMarkdown(w); err != nil {
		return err
	}
	_, err := fmt.Fprintf(w, "Fingerprint: `%s`\n", v.Table.Fingerprint)
	return err
}

// MetricsRow formats one record in MetricsHeaders order. Unsupported
// fields render as "-".
func MetricsRow(r *models.MetricsRecord) []string {
	o, c, s, x := r.Ownership, r.Coupling, r.Structural, r.Context
	field := func(name, value string) string {
		if r.IsUnsupported(name) {
			return "-"
		}
		return value
	}
	return []string{
		shortHash(r.CommitHash), r.File, itoa(r.ADD), itoa(r.DEL),
		itoa(o.COMM), itoa(o.ADEV), itoa(o.DDEV), ftoa(o.OWN), itoa(o.MINOR), ftoa(o.OEXP), ftoa(o.EXP),
		itoa(c.NADEV), itoa(c.NDDEV), itoa(c.NCOMM),
		field("NOM", itoa(s.NOM)), field("NOPM", itoa(s.NOPM)), field("NOF", itoa(s.NOF)),
		field("NOSF", itoa(s.NOSF)), field("NOPF", itoa(s.NOPF)), field("DIT", itoa(s.DIT)),
		field("NOC", itoa(s.NOC)), field("RFC", itoa(s.RFC)), field("ELOC", itoa(s.ELOC)),
		field("WMC", itoa(s.WMC)), field("CBO", itoa(s.CBO)), field("HsLCOM", ftoa(s.HsLCOM)),
		field("C3", ftoa(s.C3)), field("ComRead", ftoa(s.ComRead)), field("NOSM", itoa(s.NOSM)),
		field("NOSI", itoa(s.NOSI)), field("SEXP", ftoa(s.SEXP)),
		itoa(x.ND), itoa(x.NS), ftoa(x.AGE), strconv.FormatBool(x.FIX), itoa(x.NUC), itoa(x.CEXP), itoa(x.REXP),
	}
}

// DiagnosticsTable lists diagnostics as a table.
func DiagnosticsTable(diags []models.Diagnostic) *Table {
	rows := make([][]string, 0, len(diags))
	for _, d := range diags {
		rows = append(rows, []string{string(d.Kind), shortHash(d.Commit), d.File, d.Message})
	}
	return NewTable("Diagnostics", []string{"Kind", "Commit", "File", "Message"}, rows, nil, diags)
}

// MetricsPath returns <dir>/<project>_metrics.<ext>.
func MetricsPath(dir, project string, format Format) string {
	return filepath.Join(dir, project+"_metrics."+format.Extension())
}

// WriteMetrics writes table to its per-project file under dir and returns the
// path written.
func WriteMetrics(dir string, table *models.MetricsTable, format Format) (string, error) {
	path := MetricsPath(dir, table.Project, format)
	f, err := NewFormatter(format, path, false)
	if err != nil {
		return "", fmt.Errorf("create %s: %w", path, err)
	}
	if err := f.Output(NewMetricsView(table)); err != nil {
		f.Close()
		return "", fmt.Errorf("write %s: %w", path, err)
	}
	if err := f.Close(); err != nil {
		return "", err
	}
	return path, nil
}

func shortHash(h string) string {
	if len(h) > 10 {
		return h[:10]
	}
	return h
}

func itoa(n int) string {
	return strconv.Itoa(n)
}

func ftoa(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}
