package widgetbridge

import (
	"regexp"
	"strings"
)

// Convention identifies how a widget's ESM source exposes its entry point.
// The frontend supports exactly these two calling conventions.
type Convention string

const (
	// ConventionClass is `export default class Name { constructor(args) ... }`.
	// The constructor receives the container element and initial trait
	// values; the instance exposes render() and on("change", cb).
	ConventionClass Convention = "class"

	// ConventionModule is `export default { render }`, where
	// render({ model, el }) talks to the host through model.get, model.set,
	// model.save_changes and model.on("change:<attr>").
	ConventionModule Convention = "module"
)

// ProtocolVersion is sent with every widget so the frontend can reject
// payloads it does not understand.
const ProtocolVersion = 1

var (
	classExport  = regexp.MustCompile(`export\s+default\s+class\s+([A-Za-z_$][\w$]*)`)
	moduleExport = regexp.MustCompile(`export\s+default\s*\{`)
	renderExport = regexp.MustCompile(`export\s+(async\s+)?function\s+render\b`)
)

// DetectConvention inspects an ESM source and reports which convention it
// follows. The source is never executed.
func DetectConvention(esm string) (Convention, error) {
	if strings.TrimSpace(esm) == "" {
		return "", ErrUnsupportedESM
	}
	if classExport.MatchString(esm) {
		return ConventionClass, nil
	}
	if moduleExport.MatchString(esm) || renderExport.MatchString(esm) {
		return ConventionModule, nil
	}
	return "", ErrUnsupportedESM
}

// ClassName returns the name of the default-exported class, or "" when the
// source does not follow the class convention.
func ClassName(esm string) string {
	m := classExport.FindStringSubmatch(esm)
	if m == nil {
		return ""
	}
	return m[1]
}
