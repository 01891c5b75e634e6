package decision

import "github.com/local/ocrcheck/internal/textlayer"

// Thresholds holds the tunable limits used by the OCR rules.
type Thresholds struct {
	MinTextPagesRatio float64 // rule 2
	MinVisualDensity  float64 // rule 3
	LargeFileMB       float64 // rule 4
	MinAvgTextPerPage float64 // rule 4
	ManyPages         int     // rule 5
	ManyPagesMinRatio float64 // rule 5
}

// DefaultThresholds returns the empirically chosen limits.
func DefaultThresholds() Thresholds {
	return Thresholds{
		MinTextPagesRatio: 0.30,
		MinVisualDensity:  0.02,
		LargeFileMB:       5,
		MinAvgTextPerPage: 50,
		ManyPages:         10,
		ManyPagesMinRatio: 0.50,
	}
}

// FileInfo is the subset of file attributes the rules look at.
type FileInfo struct {
	SizeMB float64
}

// Input bundles everything a rule may inspect.
type Input struct {
	Text    textlayer.Metrics
	Density float64
	File    FileInfo
}

// Rule is a named predicate over the extracted metrics.
type Rule struct {
	Name  string
	Check func(in Input, th Thresholds) bool
}

// Rule names, stable for reports and downstream consumers.
const (
	RuleNoTextLayer         = "no_text_layer"
	RuleSparseTextPages     = "sparse_text_pages"
	RuleLowVisualDensity    = "low_visual_density"
	RuleLargeFileLittleText = "large_file_little_text"
	RuleManyPagesLowRatio   = "many_pages_low_ratio"
)

// NoTextLayer fires when no page carries extractable text.
func NoTextLayer(in Input, _ Thresholds) bool {
	return !in.Text.HasTextLayer()
}

// SparseTextPages fires when too few pages carry text.
func SparseTextPages(in Input, th Thresholds) bool {
	return in.Text.TextPagesRatio() < th.MinTextPagesRatio
}

// LowVisualDensity fires when the rendered pages look nearly empty.
// A density of 0.0 from a missing raster backend also fires this rule.
func LowVisualDensity(in Input, th Thresholds) bool {
	return in.Density < th.MinVisualDensity
}

// LargeFileLittleText fires for big files with little text per page (likely scans).
func LargeFileLittleText(in Input, th Thresholds) bool {
	return in.File.SizeMB > th.LargeFileMB && in.Text.AvgTextPerPage() < th.MinAvgTextPerPage
}

// ManyPagesLowRatio fires for long documents where most pages lack text.
func ManyPagesLowRatio(in Input, th Thresholds) bool {
	return in.Text.TotalPages > th.ManyPages && in.Text.TextPagesRatio() < th.ManyPagesMinRatio
}

// Rules lists every rule in table order.
var Rules = []Rule{
	{Name: RuleNoTextLayer, Check: NoTextLayer},
	{Name: RuleSparseTextPages, Check: SparseTextPages},
	{Name: RuleLowVisualDensity, Check: LowVisualDensity},
	{Name: RuleLargeFileLittleText, Check: LargeFileLittleText},
	{Name: RuleManyPagesLowRatio, Check: ManyPagesLowRatio},
}

// Verdict is the outcome of evaluating all rules.
type Verdict struct {
	OCRRequired bool
	Fired       []string
}

// Evaluate runs every rule and reports which ones fired.
// All rules are evaluated; none has side effects.
func Evaluate(in Input, th Thresholds) Verdict {
	v := Verdict{}
	for _, r := range Rules {
		if r.Check(in, th) {
			v.Fired = append(v.Fired, r.Name)
		}
	}
	v.OCRRequired = len(v.Fired) > 0
	return v
}

// NeedsOCR reports whether any rule fires for the given metrics.
func NeedsOCR(text textlayer.Metrics, density float64, file FileInfo, th Thresholds) bool {
	return Evaluate(Input{Text: text, Density: density, File: file}, th).OCRRequired
}
